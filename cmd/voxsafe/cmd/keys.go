package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/voxsafe/voxsafe/internal/util"
	"github.com/voxsafe/voxsafe/keys"
)

var (
	initBiometric   bool
	keygenBiometric bool
	rotateBiometric bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate the installation's master key",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return err
		}
		defer s.Close()

		if s.manager.HasMasterKey() {
			return fmt.Errorf("a master key already exists; use 'rotate master' to replace it")
		}
		if err := s.manager.GenerateMasterKey(initBiometric); err != nil {
			return err
		}
		successf("master key generated")
		return nil
	},
}

var keygenCmd = &cobra.Command{
	Use:   "keygen <identifier>",
	Short: "Generate a data key for a journal entry identifier",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return err
		}
		defer s.Close()

		rawKey, err := s.manager.GenerateDataKey(args[0], keygenBiometric)
		if err != nil {
			return err
		}
		util.WipeBytes(rawKey)

		versioned, err := s.manager.LatestDataKeyVersion(args[0])
		if err != nil {
			return err
		}
		successf("data key %s generated", versioned)
		return nil
	},
}

var rotateCmd = &cobra.Command{
	Use:   "rotate <identifier>",
	Short: "Rotate the master key or a data key",
	Long: `Rotate replaces the key for the given identifier. Rotating "master"
overwrites the single master entry. Rotating a data key creates a new
version while keeping every prior version, so existing journal entries
stay decryptable.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return err
		}
		defer s.Close()

		rawKey, err := s.manager.Rotate(keyTypeFor(args[0]), args[0], rotateBiometric)
		if err != nil {
			return err
		}
		util.WipeBytes(rawKey)
		successf("%s rotated", args[0])
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <identifier>",
	Short: "Delete a key unrecoverably",
	Long: `Delete removes the master key, or every version of a data key.
Content encrypted under a deleted key cannot be decrypted again.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return err
		}
		defer s.Close()

		if err := s.manager.Delete(keyTypeFor(args[0]), args[0]); err != nil {
			return err
		}
		successf("%s deleted", args[0])
		return nil
	},
}

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Inspect stored keys",
}

var keysListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored keys and their protection levels",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return err
		}
		defer s.Close()

		if s.manager.HasMasterKey() {
			level, err := s.store.Level("master")
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "master\t%s\n", level)
		}

		names, err := s.store.List("data:")
		if err != nil {
			return err
		}
		for _, name := range names {
			level, err := s.store.Level(name)
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "%s\t%s\n", strings.TrimPrefix(name, "data:"), level)
		}
		return nil
	},
}

func keyTypeFor(identifier string) keys.Type {
	if identifier == "master" {
		return keys.Master
	}
	return keys.Data
}

func init() {
	initCmd.Flags().BoolVar(&initBiometric, "biometric", false, "protect the key with biometric gating")
	keygenCmd.Flags().BoolVar(&keygenBiometric, "biometric", false, "protect the key with biometric gating")
	rotateCmd.Flags().BoolVar(&rotateBiometric, "biometric", false, "protect the new key with biometric gating")

	keysCmd.AddCommand(keysListCmd)
	rootCmd.AddCommand(initCmd, keygenCmd, rotateCmd, deleteCmd, keysCmd)
}

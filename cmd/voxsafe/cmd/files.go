package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/voxsafe/voxsafe/crypto"
)

var encryptKeyID string

var encryptCmd = &cobra.Command{
	Use:   "encrypt <src> <dst>",
	Short: "Encrypt a file into a self-describing container",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return err
		}
		defer s.Close()

		if err := s.engine.EncryptFile(args[0], args[1], encryptKeyID); err != nil {
			return err
		}
		successf("encrypted %s -> %s", args[0], args[1])
		return nil
	},
}

var decryptCmd = &cobra.Command{
	Use:   "decrypt <src> <dst>",
	Short: "Decrypt a container file using the key it names",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return err
		}
		defer s.Close()

		if err := s.engine.DecryptFile(args[0], args[1]); err != nil {
			return err
		}
		successf("decrypted %s -> %s", args[0], args[1])
		return nil
	},
}

var verifyCmd = &cobra.Command{
	Use:   "verify <file> <sha256>",
	Short: "Verify a file against an expected SHA-256 checksum",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ok, err := crypto.VerifyIntegrity(args[0], args[1])
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("checksum mismatch for %s", args[0])
		}
		successf("checksum verified")
		return nil
	},
}

func init() {
	encryptCmd.Flags().StringVar(&encryptKeyID, "key", "master", "key identifier to encrypt under")
	rootCmd.AddCommand(encryptCmd, decryptCmd, verifyCmd)
}

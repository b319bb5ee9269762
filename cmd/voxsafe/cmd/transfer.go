package cmd

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/voxsafe/voxsafe/crypto"
)

var transferPassword string

var exportCmd = &cobra.Command{
	Use:   "export <container> <dst>",
	Short: "Wrap an encrypted container in a password-protected package",
	Long: `Export re-wraps an encrypted container file in a password-protected
package suitable for moving to another device. The content is not
re-encrypted; the package records which key the receiving device needs.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		password, err := passwordFromFlagOrEnv(transferPassword)
		if err != nil {
			return err
		}
		s, err := openSession()
		if err != nil {
			return err
		}
		defer s.Close()

		encoded, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		container, err := crypto.DecodeContainer(encoded)
		if err != nil {
			return err
		}
		payload, err := container.Payload()
		if err != nil {
			return err
		}

		pkg, err := s.codec.Export(payload, container.KeyIdentifier, password)
		if err != nil {
			return err
		}
		if err := os.WriteFile(args[1], pkg, 0600); err != nil {
			return err
		}
		successf("exported %s -> %s", args[0], args[1])
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import <package> <dst>",
	Short: "Unwrap a password-protected package back into a container",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		password, err := passwordFromFlagOrEnv(transferPassword)
		if err != nil {
			return err
		}
		s, err := openSession()
		if err != nil {
			return err
		}
		defer s.Close()

		pkg, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		payload, keyIdentifier, err := s.codec.Import(pkg, password)
		if err != nil {
			return err
		}

		container, err := crypto.NewContainer(payload, s.cfg.Algorithm, keyIdentifier, time.Now())
		if err != nil {
			return err
		}
		encoded, err := container.Encode()
		if err != nil {
			return err
		}
		if err := os.WriteFile(args[1], encoded, 0600); err != nil {
			return err
		}
		successf("imported %s -> %s", args[0], args[1])
		return nil
	},
}

var backupCmd = &cobra.Command{
	Use:   "backup <dst>",
	Short: "Write a password-protected backup of the whole keyset",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		password, err := passwordFromFlagOrEnv(transferPassword)
		if err != nil {
			return err
		}
		s, err := openSession()
		if err != nil {
			return err
		}
		defer s.Close()

		data, err := s.manager.Backup(password)
		if err != nil {
			return err
		}
		if err := os.WriteFile(args[0], data, 0600); err != nil {
			return err
		}
		successf("keyset backed up to %s", args[0])
		return nil
	},
}

var restoreCmd = &cobra.Command{
	Use:   "restore <src>",
	Short: "Restore a keyset backup into the store",
	Long: `Restore decrypts a keyset backup and writes every key it contains
into the store, replacing same-named entries. An invalid backup
restores nothing.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		password, err := passwordFromFlagOrEnv(transferPassword)
		if err != nil {
			return err
		}
		s, err := openSession()
		if err != nil {
			return err
		}
		defer s.Close()

		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		if err := s.manager.Restore(data, password); err != nil {
			return err
		}
		successf("keyset restored from %s", args[0])
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{exportCmd, importCmd, backupCmd, restoreCmd} {
		c.Flags().StringVar(&transferPassword, "password", "", "password (or set VOXSAFE_PASSWORD)")
		rootCmd.AddCommand(c)
	}
}

package cmd

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/voxsafe/voxsafe/audit"
	"github.com/voxsafe/voxsafe/config"
	"github.com/voxsafe/voxsafe/crypto"
	"github.com/voxsafe/voxsafe/export"
	"github.com/voxsafe/voxsafe/keys"
	"github.com/voxsafe/voxsafe/securestore/bolt"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "voxsafe",
	Short: "VoxSafe manages the keys that protect encrypted audio journals",
	Long: `VoxSafe is the key lifecycle and authenticated-encryption tool for
encrypted audio journals: master and per-entry data keys, rotation,
password-protected exports, and keyset backups.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to a YAML config file")
}

func successf(format string, args ...any) {
	fmt.Fprintln(os.Stdout, color.GreenString("[ok] ")+fmt.Sprintf(format, args...))
}

func loadConfig() (config.Config, error) {
	return config.Load(cfgFile)
}

// session bundles the store, manager, and engine opened for one command.
type session struct {
	cfg     config.Config
	store   *bolt.Store
	manager *keys.Manager
	engine  *crypto.Engine
	codec   *export.Codec

	auditFile *os.File
}

func openSession() (*session, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	store, err := bolt.NewStoreFromFile(cfg.StorePath, nil)
	if err != nil {
		return nil, err
	}

	kdfParams, err := cfg.KDFParams()
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	s := &session{cfg: cfg, store: store}

	managerOpts := []keys.ManagerOption{
		keys.WithKDFParams(kdfParams),
		keys.WithPasswordPolicy(cfg.PasswordPolicy),
	}
	if cfg.Audit.Enabled {
		out := os.Stderr
		if cfg.Audit.Path != "" {
			f, err := os.OpenFile(cfg.Audit.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
			if err != nil {
				_ = store.Close()
				return nil, fmt.Errorf("opening audit log: %w", err)
			}
			s.auditFile = f
			out = f
		}
		managerOpts = append(managerOpts, keys.WithAuditSink(audit.NewLogrusSink(out)))
	}
	s.manager = keys.NewManager(store, managerOpts...)

	s.engine, err = crypto.NewEngine(s.manager, crypto.WithAlgorithm(cfg.Algorithm))
	if err != nil {
		s.Close()
		return nil, err
	}

	s.codec = export.NewCodec(
		export.WithPolicy(cfg.PasswordPolicy),
		export.WithKDFParams(kdfParams),
	)
	return s, nil
}

func (s *session) Close() {
	if s.auditFile != nil {
		_ = s.auditFile.Close()
	}
	_ = s.store.Close()
}

// passwordFromFlagOrEnv returns the password given by flag, falling back to
// the VOXSAFE_PASSWORD environment variable. Interactive prompting is a UI
// concern that stays outside this tool.
func passwordFromFlagOrEnv(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if v := os.Getenv("VOXSAFE_PASSWORD"); v != "" {
		return v, nil
	}
	return "", fmt.Errorf("no password given: use --password or VOXSAFE_PASSWORD")
}

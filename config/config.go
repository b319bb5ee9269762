// Package config holds the CLI configuration, loaded from a YAML file with
// environment-variable overrides.
package config

import (
	"fmt"
	"os"

	"github.com/voxsafe/voxsafe/crypto"
	"github.com/voxsafe/voxsafe/export"
	"github.com/voxsafe/voxsafe/internal/util"
	"gopkg.in/yaml.v3"
)

// AuditConfig controls the audit event sink.
type AuditConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"` // empty means stderr
}

// Config is the complete CLI configuration.
type Config struct {
	StorePath      string        `yaml:"store_path"`
	Algorithm      string        `yaml:"algorithm"`
	KDFProfile     string        `yaml:"kdf_profile"`
	PasswordPolicy export.Policy `yaml:"password_policy"`
	Audit          AuditConfig   `yaml:"audit"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		StorePath:      "voxsafe.db",
		Algorithm:      crypto.AlgorithmAES256GCM,
		KDFProfile:     util.KDFProfileModerate,
		PasswordPolicy: export.DefaultPolicy(),
	}
}

// Load reads the configuration from path (defaults apply when path is
// empty), applies VOXSAFE_* environment overrides, and validates the
// result.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("reading config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("VOXSAFE_STORE_PATH"); v != "" {
		cfg.StorePath = v
	}
	if v := os.Getenv("VOXSAFE_ALGORITHM"); v != "" {
		cfg.Algorithm = v
	}
	if v := os.Getenv("VOXSAFE_KDF_PROFILE"); v != "" {
		cfg.KDFProfile = v
	}
	if v := os.Getenv("VOXSAFE_AUDIT_PATH"); v != "" {
		cfg.Audit.Enabled = true
		cfg.Audit.Path = v
	}
}

// Validate checks the configuration for consistency.
func (c Config) Validate() error {
	if c.StorePath == "" {
		return fmt.Errorf("store_path must not be empty")
	}
	if !crypto.SupportedAlgorithm(c.Algorithm) {
		return fmt.Errorf("unsupported algorithm %q", c.Algorithm)
	}
	if _, err := util.Argon2idProfile(c.KDFProfile); err != nil {
		return err
	}
	if c.PasswordPolicy.MinLength < 1 {
		return fmt.Errorf("password_policy.min_length must be at least 1")
	}
	return nil
}

// KDFParams resolves the configured profile name to Argon2id parameters.
func (c Config) KDFParams() (util.Argon2idParams, error) {
	return util.Argon2idProfile(c.KDFProfile)
}

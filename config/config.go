package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

const (
	DefaultHubURL        = "http://127.0.0.1:7400"
	DefaultFactoryURL    = "http://127.0.0.1:7410"
	DefaultSecretEnv     = "CROSSHUB_HMAC_SECRET"
	defaultTokenTTL      = 300
	defaultTimeout       = 15
	defaultEnv           = "dev"
	defaultChainUID      = "hub"
	defaultIssuer        = "crosshub"
	defaultAudience      = "crosshub"
	defaultProfileSuffix = "hubctl.toml"
)

// Load loads the profile from the given path, writing a default profile
// when none exists yet.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("config file %s has unknown key %s", path, undecoded[0].String())
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

// DefaultPath returns the profile location under the user's config dir,
// falling back to the working directory.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil || dir == "" {
		return defaultProfileSuffix
	}
	return filepath.Join(dir, "crosshub", defaultProfileSuffix)
}

// Save validates cfg and writes it to path.
func Save(path string, cfg *Config) error {
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return err
	}
	return persist(path, cfg)
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.HubURL) == "" {
		c.HubURL = DefaultHubURL
	}
	if strings.TrimSpace(c.FactoryURL) == "" {
		c.FactoryURL = DefaultFactoryURL
	}
	if strings.TrimSpace(c.Env) == "" {
		c.Env = defaultEnv
	}
	if strings.TrimSpace(c.ChainUID) == "" {
		c.ChainUID = defaultChainUID
	}
	if strings.TrimSpace(c.Issuer) == "" {
		c.Issuer = defaultIssuer
	}
	if strings.TrimSpace(c.Audience) == "" {
		c.Audience = defaultAudience
	}
	if c.HMACSecret == "" && c.HMACSecretEnv == "" {
		c.HMACSecretEnv = DefaultSecretEnv
	}
	if c.TokenTTLSeconds == 0 {
		c.TokenTTLSeconds = defaultTokenTTL
	}
	if c.TimeoutSeconds == 0 {
		c.TimeoutSeconds = defaultTimeout
	}
	c.HubURL = strings.TrimRight(strings.TrimSpace(c.HubURL), "/")
	c.FactoryURL = strings.TrimRight(strings.TrimSpace(c.FactoryURL), "/")
}

// createDefault creates and saves a default profile.
func createDefault(path string) (*Config, error) {
	cfg := &Config{}
	cfg.applyDefaults()
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

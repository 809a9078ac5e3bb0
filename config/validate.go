package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"crosshub/core/types"
	gwconfig "crosshub/gateway/config"
)

// Validate checks both endpoints against the scheme policy of Env and the
// chain uid format.
func (c *Config) Validate() error {
	for name, raw := range map[string]string{"HubURL": c.HubURL, "FactoryURL": c.FactoryURL} {
		target, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		if target.Host == "" {
			return fmt.Errorf("%s: host is required", name)
		}
		if err := gwconfig.EnforceSecureScheme(c.Env, target); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	if err := types.ChainUID(c.ChainUID).Validate(); err != nil {
		return fmt.Errorf("ChainUID: %w", err)
	}
	return nil
}

// Secret resolves the HMAC secret used to mint bearer tokens. An inline
// secret wins over the environment variable.
func (c *Config) Secret() (string, error) {
	if c.HMACSecret != "" {
		return c.HMACSecret, nil
	}
	if c.HMACSecretEnv != "" {
		if v := strings.TrimSpace(os.Getenv(c.HMACSecretEnv)); v != "" {
			return v, nil
		}
		return "", fmt.Errorf("HMAC secret not found: set %s or HMACSecret", c.HMACSecretEnv)
	}
	return "", fmt.Errorf("HMAC secret not configured")
}

func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.TokenTTLSeconds) * time.Second
}

func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

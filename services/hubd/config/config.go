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

// Config captures runtime configuration for hubd.
type Config struct {
	HTTP    gwconfig.HTTP `yaml:"http"`
	DataDir string        `yaml:"dataDir"`
	Admin   string        `yaml:"admin"`
	Pools   PoolsConfig   `yaml:"pools"`
	Stream  StreamConfig  `yaml:"stream"`
	Chains  []ChainConfig `yaml:"chains"`
}

// PoolsConfig points hubd at the liquidity pool service.
type PoolsConfig struct {
	Endpoint      string            `yaml:"endpoint"`
	Timeout       gwconfig.Duration `yaml:"timeout"`
	RatePerSecond float64           `yaml:"ratePerSecond"`
	Burst         int               `yaml:"burst"`
	APIKey        string            `yaml:"apiKey"`
}

// StreamConfig tunes the event websocket.
type StreamConfig struct {
	Buffer       int               `yaml:"buffer"`
	WriteTimeout gwconfig.Duration `yaml:"writeTimeout"`
}

// ChainConfig registers a connected chain at startup.
type ChainConfig struct {
	UID                string `yaml:"uid"`
	ChainID            string `yaml:"chainId"`
	FactoryChainID     string `yaml:"factoryChainId"`
	Factory            string `yaml:"factory"`
	FromHubChannel     string `yaml:"fromHubChannel"`
	FromFactoryChannel string `yaml:"fromFactoryChannel"`
}

// Chain converts the entry to its registry form.
func (c ChainConfig) Chain() (types.ChainUID, types.Chain) {
	return types.ChainUID(strings.TrimSpace(c.UID)), types.Chain{
		ChainID:            c.ChainID,
		FactoryChainID:     c.FactoryChainID,
		Factory:            c.Factory,
		FromHubChannel:     c.FromHubChannel,
		FromFactoryChannel: c.FromFactoryChannel,
	}
}

// Load reads configuration from the supplied path. An empty path yields the
// defaults, which fail validation until the admin and pool endpoint are set.
func Load(path, env string) (Config, error) {
	cfg := Config{HTTP: gwconfig.DefaultHTTP("hubd", ":7400")}
	if err := gwconfig.Decode(path, &cfg); err != nil {
		return Config{}, err
	}
	cfg.HTTP.Telemetry.ApplyEnv(os.Getenv)
	applyDefaults(&cfg)
	if err := validate(&cfg, env); err != nil {
		return Config{}, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	cfg.HTTP.ApplyDefaults()
	if cfg.Pools.Timeout.Duration <= 0 {
		cfg.Pools.Timeout.Duration = 10 * time.Second
	}
	if cfg.Pools.RatePerSecond <= 0 {
		cfg.Pools.RatePerSecond = 50
	}
	if cfg.Pools.Burst <= 0 {
		cfg.Pools.Burst = 10
	}
	if cfg.Stream.Buffer <= 0 {
		cfg.Stream.Buffer = 64
	}
	if cfg.Stream.WriteTimeout.Duration <= 0 {
		cfg.Stream.WriteTimeout.Duration = 10 * time.Second
	}
}

func validate(cfg *Config, env string) error {
	if err := cfg.HTTP.Validate(); err != nil {
		return err
	}
	if err := types.ValidateAddress(strings.TrimSpace(cfg.Admin)); err != nil {
		return fmt.Errorf("admin: %w", err)
	}
	endpoint := strings.TrimSpace(cfg.Pools.Endpoint)
	if endpoint == "" {
		return fmt.Errorf("pools.endpoint required")
	}
	parsed, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("pools.endpoint: %w", err)
	}
	if err := gwconfig.EnforceSecureScheme(env, parsed); err != nil {
		return fmt.Errorf("pools.endpoint: %w", err)
	}
	seen := make(map[string]struct{}, len(cfg.Chains))
	for i, chain := range cfg.Chains {
		uid, _ := chain.Chain()
		if err := uid.Validate(); err != nil {
			return fmt.Errorf("chains[%d]: %w", i, err)
		}
		if _, dup := seen[string(uid)]; dup {
			return fmt.Errorf("chains[%d]: duplicate uid %s", i, uid)
		}
		seen[string(uid)] = struct{}{}
	}
	return nil
}

package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"crosshub/core/types"
	gwconfig "crosshub/gateway/config"
	"crosshub/native/common"
	"crosshub/native/factory"
)

// Config captures runtime configuration for factoryd.
type Config struct {
	HTTP     gwconfig.HTTP `yaml:"http"`
	DataDir  string        `yaml:"dataDir"`
	ChainUID string        `yaml:"chainUid"`
	Address  string        `yaml:"address"`
	Admin    string        `yaml:"admin"`

	// HubChannel seeds the hub channel of a fresh factory.
	HubChannel string        `yaml:"hubChannel"`
	Timeout    TimeoutConfig `yaml:"timeout"`
	Quota      QuotaConfig   `yaml:"quota"`
	Hub        HubConfig     `yaml:"hub"`
	Relayer    RelayerConfig `yaml:"relayer"`
	RelayLog   RelayLog      `yaml:"relayLog"`
}

// TimeoutConfig bounds packet timeouts in seconds.
type TimeoutConfig struct {
	Default uint64 `yaml:"default"`
	Min     uint64 `yaml:"min"`
	Max     uint64 `yaml:"max"`
}

// QuotaConfig limits requests per requester and epoch. Zero disables a limit.
type QuotaConfig struct {
	MaxRequestsPerEpoch uint32 `yaml:"maxRequestsPerEpoch"`
	MaxVolumePerEpoch   uint64 `yaml:"maxVolumePerEpoch"`
	EpochSeconds        uint32 `yaml:"epochSeconds"`
}

// HubConfig points the relayer at hubd. Relay tokens are minted locally from
// the shared secret.
type HubConfig struct {
	Endpoint   string            `yaml:"endpoint"`
	HMACSecret string            `yaml:"hmacSecret"`
	Issuer     string            `yaml:"issuer"`
	Audience   string            `yaml:"audience"`
	Timeout    gwconfig.Duration `yaml:"timeout"`
}

// RelayerConfig tunes the outbox drain loop.
type RelayerConfig struct {
	Interval gwconfig.Duration `yaml:"interval"`
	Batch    uint32            `yaml:"batch"`
}

// RelayLog selects the relay attempt database. An empty DatabaseURL keeps
// the log in a local sqlite file.
type RelayLog struct {
	DatabaseURL string `yaml:"databaseUrl"`
	SQLitePath  string `yaml:"sqlitePath"`
}

// Engine converts the configuration into the factory engine form.
func (c Config) Engine() factory.Config {
	return factory.Config{
		ChainUID: types.ChainUID(strings.TrimSpace(c.ChainUID)),
		Address:  strings.TrimSpace(c.Address),
		Admin:    strings.TrimSpace(c.Admin),
		Timeout:  factory.TimeoutPolicy{Default: c.Timeout.Default, Min: c.Timeout.Min, Max: c.Timeout.Max},
		Quota: common.Quota{
			MaxRequestsPerEpoch: c.Quota.MaxRequestsPerEpoch,
			MaxVolumePerEpoch:   c.Quota.MaxVolumePerEpoch,
			EpochSeconds:        c.Quota.EpochSeconds,
		},
	}
}

// Load reads configuration from the supplied path.
func Load(path, env string) (Config, error) {
	cfg := Config{HTTP: gwconfig.DefaultHTTP("factoryd", ":7410")}
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
	policy := factory.DefaultTimeoutPolicy()
	if cfg.Timeout.Default == 0 {
		cfg.Timeout.Default = policy.Default
	}
	if cfg.Timeout.Min == 0 {
		cfg.Timeout.Min = policy.Min
	}
	if cfg.Timeout.Max == 0 {
		cfg.Timeout.Max = policy.Max
	}
	if cfg.Hub.Timeout.Duration <= 0 {
		cfg.Hub.Timeout.Duration = 15 * time.Second
	}
	if cfg.Relayer.Interval.Duration <= 0 {
		cfg.Relayer.Interval.Duration = 2 * time.Second
	}
	if cfg.Relayer.Batch == 0 {
		cfg.Relayer.Batch = 32
	}
	if strings.TrimSpace(cfg.RelayLog.DatabaseURL) == "" && strings.TrimSpace(cfg.RelayLog.SQLitePath) == "" {
		cfg.RelayLog.SQLitePath = "relaylog.db"
	}
}

func validate(cfg *Config, env string) error {
	if err := cfg.HTTP.Validate(); err != nil {
		return err
	}
	if err := cfg.Engine().Validate(); err != nil {
		return err
	}
	endpoint := strings.TrimSpace(cfg.Hub.Endpoint)
	if endpoint == "" {
		return fmt.Errorf("hub.endpoint required")
	}
	parsed, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("hub.endpoint: %w", err)
	}
	if err := gwconfig.EnforceSecureScheme(env, parsed); err != nil {
		return fmt.Errorf("hub.endpoint: %w", err)
	}
	if strings.TrimSpace(cfg.Hub.HMACSecret) == "" {
		return fmt.Errorf("hub.hmacSecret required")
	}
	return nil
}

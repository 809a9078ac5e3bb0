package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"crosshub/gateway/middleware"
)

// Duration wraps time.Duration to support YAML unmarshalling.
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses human readable duration strings.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value == nil {
		return nil
	}
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("duration must be string")
	}
	raw := strings.TrimSpace(value.Value)
	if raw == "" {
		d.Duration = 0
		return nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	d.Duration = parsed
	return nil
}

type RateLimitConfig struct {
	ID                string         `yaml:"id"`
	RequestsPerMinute float64        `yaml:"requestsPerMinute"`
	RatePerSecond     float64        `yaml:"ratePerSecond"`
	Burst             int            `yaml:"burst"`
	DefaultTokens     int            `yaml:"defaultTokens"`
	Tokens            map[string]int `yaml:"tokens"`
}

type ObservabilityConfig struct {
	ServiceName   string `yaml:"serviceName"`
	Metrics       bool   `yaml:"metrics"`
	LogRequests   bool   `yaml:"logRequests"`
	MetricsPrefix string `yaml:"metricsPrefix"`
}

type CORSConfig struct {
	AllowedOrigins   []string `yaml:"allowedOrigins"`
	AllowCredentials bool     `yaml:"allowCredentials"`
}

type SecurityConfig struct {
	TLSCertFile string `yaml:"tlsCertFile"`
	TLSKeyFile  string `yaml:"tlsKeyFile"`
}

type AuthConfig struct {
	Enabled           bool     `yaml:"enabled"`
	HMACSecret        string   `yaml:"hmacSecret"`
	Issuer            string   `yaml:"issuer"`
	Audience          string   `yaml:"audience"`
	ScopeClaim        string   `yaml:"scopeClaim"`
	OptionalPaths     []string `yaml:"optionalPaths"`
	AllowAnonymous    bool     `yaml:"allowAnonymous"`
	ClockSkew         Duration `yaml:"clockSkew"`
	allowAnonymousSet bool     `yaml:"-"`
	enabledSet        bool     `yaml:"-"`
}

func (a *AuthConfig) UnmarshalYAML(node *yaml.Node) error {
	type rawAuthConfig struct {
		Enabled        *bool    `yaml:"enabled"`
		HMACSecret     string   `yaml:"hmacSecret"`
		Issuer         string   `yaml:"issuer"`
		Audience       string   `yaml:"audience"`
		ScopeClaim     string   `yaml:"scopeClaim"`
		OptionalPaths  []string `yaml:"optionalPaths"`
		AllowAnonymous *bool    `yaml:"allowAnonymous"`
		ClockSkew      Duration `yaml:"clockSkew"`
	}
	var raw rawAuthConfig
	if err := node.Decode(&raw); err != nil {
		return err
	}
	if raw.Enabled != nil {
		a.Enabled = *raw.Enabled
		a.enabledSet = true
	} else {
		a.Enabled = false
		a.enabledSet = false
	}
	a.HMACSecret = raw.HMACSecret
	a.Issuer = raw.Issuer
	a.Audience = raw.Audience
	a.ScopeClaim = raw.ScopeClaim
	a.OptionalPaths = raw.OptionalPaths
	if raw.AllowAnonymous != nil {
		a.AllowAnonymous = *raw.AllowAnonymous
		a.allowAnonymousSet = true
	} else {
		a.AllowAnonymous = false
		a.allowAnonymousSet = false
	}
	a.ClockSkew = raw.ClockSkew
	return nil
}

// HTTP is the listener section shared by the daemons.
type HTTP struct {
	ListenAddress string              `yaml:"listen"`
	ReadTimeout   Duration            `yaml:"readTimeout"`
	WriteTimeout  Duration            `yaml:"writeTimeout"`
	IdleTimeout   Duration            `yaml:"idleTimeout"`
	RateLimits    []RateLimitConfig   `yaml:"rateLimits"`
	Observability ObservabilityConfig `yaml:"observability"`
	Auth          AuthConfig          `yaml:"auth"`
	CORS          CORSConfig          `yaml:"cors"`
	Security      SecurityConfig      `yaml:"security"`
	Telemetry     TelemetryConfig     `yaml:"telemetry"`
}

// DefaultHTTP returns the listener defaults for service listening on listen.
func DefaultHTTP(service, listen string) HTTP {
	return HTTP{
		ListenAddress: listen,
		ReadTimeout:   Duration{30 * time.Second},
		WriteTimeout:  Duration{30 * time.Second},
		IdleTimeout:   Duration{120 * time.Second},
		Observability: ObservabilityConfig{
			ServiceName:   service,
			Metrics:       true,
			LogRequests:   true,
			MetricsPrefix: service + "_http",
		},
		Auth: AuthConfig{
			Enabled:    true,
			ScopeClaim: "scope",
			ClockSkew:  Duration{2 * time.Minute},
			enabledSet: true,
		},
	}
}

// Decode reads the YAML file at path into out. An empty path leaves out
// untouched.
func Decode(path string, out interface{}) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer file.Close()
	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)
	if err := decoder.Decode(out); err != nil {
		return fmt.Errorf("decode config: %w", err)
	}
	return nil
}

// ApplyDefaults fills zero values left by a partial YAML document.
func (cfg *HTTP) ApplyDefaults() {
	if cfg == nil {
		return
	}
	if !cfg.Auth.enabledSet {
		cfg.Auth.Enabled = true
		cfg.Auth.enabledSet = true
	}
	if cfg.Auth.ClockSkew.Duration <= 0 {
		cfg.Auth.ClockSkew.Duration = 2 * time.Minute
	}
	if cfg.Auth.ScopeClaim == "" {
		cfg.Auth.ScopeClaim = "scope"
	}
	if !cfg.Auth.allowAnonymousSet {
		cfg.Auth.AllowAnonymous = false
	}
	if cfg.ReadTimeout.Duration <= 0 {
		cfg.ReadTimeout.Duration = 30 * time.Second
	}
	if cfg.WriteTimeout.Duration <= 0 {
		cfg.WriteTimeout.Duration = 30 * time.Second
	}
	if cfg.IdleTimeout.Duration <= 0 {
		cfg.IdleTimeout.Duration = 120 * time.Second
	}
	cfg.Telemetry.applyDefaults()
}

var ErrAuthSecretMissing = errors.New("auth.hmacSecret must be set when auth is enabled")

func (cfg *HTTP) Validate() error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if strings.TrimSpace(cfg.ListenAddress) == "" {
		return fmt.Errorf("listen address required")
	}
	if cfg.Auth.Enabled && strings.TrimSpace(cfg.Auth.HMACSecret) == "" {
		return ErrAuthSecretMissing
	}
	if cfg.Auth.AllowAnonymous && !cfg.Auth.allowAnonymousSet {
		return fmt.Errorf("auth.allowAnonymous must be explicitly set to true to enable anonymous access")
	}
	trimmed := make([]string, len(cfg.Auth.OptionalPaths))
	for i, path := range cfg.Auth.OptionalPaths {
		trimmedPath := strings.TrimSpace(path)
		if trimmedPath == "" {
			return fmt.Errorf("auth.optionalPaths[%d] cannot be empty", i)
		}
		if !strings.HasPrefix(trimmedPath, "/") {
			return fmt.Errorf("auth.optionalPaths[%d] must start with '/'", i)
		}
		trimmed[i] = trimmedPath
	}
	cfg.Auth.OptionalPaths = trimmed
	if cfg.Auth.Enabled && cfg.Auth.AllowAnonymous && len(cfg.Auth.OptionalPaths) == 0 {
		return fmt.Errorf("auth.optionalPaths must list at least one entry when auth.allowAnonymous is true")
	}
	if (cfg.Security.TLSCertFile == "") != (cfg.Security.TLSKeyFile == "") {
		return fmt.Errorf("security.tlsCertFile and security.tlsKeyFile must be set together")
	}
	if err := cfg.Telemetry.validate(); err != nil {
		return err
	}
	seen := make(map[string]struct{}, len(cfg.RateLimits))
	for i, rl := range cfg.RateLimits {
		id := strings.TrimSpace(rl.ID)
		if id == "" {
			return fmt.Errorf("rateLimits[%d].id required", i)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("rateLimits[%d]: duplicate id %q", i, id)
		}
		seen[id] = struct{}{}
	}
	return nil
}

// Middleware converts the auth section to the authenticator configuration.
func (a AuthConfig) Middleware() middleware.AuthConfig {
	return middleware.AuthConfig{
		Enabled:        a.Enabled,
		HMACSecret:     a.HMACSecret,
		Issuer:         a.Issuer,
		Audience:       a.Audience,
		ScopeClaim:     a.ScopeClaim,
		OptionalPaths:  a.OptionalPaths,
		AllowAnonymous: a.AllowAnonymous,
		ClockSkew:      a.ClockSkew.Duration,
	}
}

// Limits converts the rate limit section. RequestsPerMinute is used when
// RatePerSecond is unset.
func (cfg HTTP) Limits() map[string]middleware.RateLimit {
	out := make(map[string]middleware.RateLimit, len(cfg.RateLimits))
	for _, rl := range cfg.RateLimits {
		perSecond := rl.RatePerSecond
		if perSecond <= 0 && rl.RequestsPerMinute > 0 {
			perSecond = rl.RequestsPerMinute / 60
		}
		out[strings.TrimSpace(rl.ID)] = middleware.RateLimit{
			RatePerSecond: perSecond,
			Burst:         rl.Burst,
			DefaultTokens: rl.DefaultTokens,
			Tokens:        rl.Tokens,
		}
	}
	return out
}

// EnforceSecureScheme ensures the supplied URL uses HTTPS outside of the dev environment.
func EnforceSecureScheme(env string, target *url.URL) error {
	if target == nil {
		return fmt.Errorf("target URL is nil")
	}
	switch strings.ToLower(strings.TrimSpace(target.Scheme)) {
	case "https":
		return nil
	case "http":
		if isDevEnv(env) {
			return nil
		}
		if strings.TrimSpace(env) == "" {
			env = "(unset)"
		}
		return fmt.Errorf("plaintext HTTP endpoints are not permitted for environment %s", env)
	case "":
		return fmt.Errorf("URL scheme is required")
	default:
		return fmt.Errorf("unsupported URL scheme %q", target.Scheme)
	}
}

func isDevEnv(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "test", "local":
		return true
	}
	return false
}

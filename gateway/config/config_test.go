package config

import (
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"
)

type wrapper struct {
	HTTP HTTP `yaml:"http"`
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "daemon.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func load(t *testing.T, content string) (HTTP, error) {
	t.Helper()
	w := wrapper{HTTP: DefaultHTTP("hubd", ":7400")}
	if err := Decode(writeConfig(t, content), &w); err != nil {
		t.Fatalf("decode: %v", err)
	}
	w.HTTP.ApplyDefaults()
	return w.HTTP, w.HTTP.Validate()
}

func TestDefaultsRequireSecretWhenAuthEnabled(t *testing.T) {
	cfg := DefaultHTTP("hubd", ":7400")
	cfg.ApplyDefaults()
	if !cfg.Auth.Enabled {
		t.Fatalf("expected auth enabled by default")
	}
	if err := cfg.Validate(); err != ErrAuthSecretMissing {
		t.Fatalf("expected missing secret error, got %v", err)
	}
}

func TestAuthEnabledOmittedDefaultsToTrue(t *testing.T) {
	cfg, err := load(t, "http:\n  auth:\n    hmacSecret: s3cret\n")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !cfg.Auth.Enabled {
		t.Fatalf("omitted auth.enabled must default to true")
	}
	if cfg.Auth.ClockSkew.Duration != 2*time.Minute {
		t.Fatalf("unexpected clock skew %s", cfg.Auth.ClockSkew)
	}
}

func TestAllowAnonymousNeedsOptionalPaths(t *testing.T) {
	if _, err := load(t, "http:\n  auth:\n    enabled: true\n    hmacSecret: s\n    allowAnonymous: true\n"); err == nil {
		t.Fatalf("expected error without optional paths")
	}
	cfg, err := load(t, "http:\n  auth:\n    enabled: true\n    hmacSecret: s\n    allowAnonymous: true\n    optionalPaths: [' /v1/state ']\n")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if cfg.Auth.OptionalPaths[0] != "/v1/state" {
		t.Fatalf("optional path not trimmed: %q", cfg.Auth.OptionalPaths[0])
	}
}

func TestRateLimitsConvert(t *testing.T) {
	cfg, err := load(t, `
http:
  auth:
    enabled: false
  rateLimits:
    - id: requests
      requestsPerMinute: 120
      burst: 10
      tokens:
        "POST /v1/requests/swap": 2
`)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	limits := cfg.Limits()
	got, ok := limits["requests"]
	if !ok {
		t.Fatalf("requests limit missing")
	}
	if got.RatePerSecond != 2 || got.Burst != 10 || got.Tokens["POST /v1/requests/swap"] != 2 {
		t.Fatalf("unexpected limit %+v", got)
	}
}

func TestDuplicateRateLimitRejected(t *testing.T) {
	_, err := load(t, "http:\n  auth:\n    enabled: false\n  rateLimits:\n    - id: a\n    - id: a\n")
	if err == nil {
		t.Fatalf("expected duplicate id error")
	}
}

func TestEnforceSecureScheme(t *testing.T) {
	plain, _ := url.Parse("http://hubd:7400")
	if err := EnforceSecureScheme("dev", plain); err != nil {
		t.Fatalf("dev should allow http: %v", err)
	}
	if err := EnforceSecureScheme("prod", plain); err == nil {
		t.Fatalf("prod must reject http")
	}
	secure, _ := url.Parse("https://hubd:7400")
	if err := EnforceSecureScheme("", secure); err != nil {
		t.Fatalf("https rejected: %v", err)
	}
}

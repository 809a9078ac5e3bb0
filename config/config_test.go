package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadCreatesDefaultProfile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "profiles", "hubctl.toml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HubURL != DefaultHubURL || cfg.FactoryURL != DefaultFactoryURL {
		t.Fatalf("unexpected endpoints: %s %s", cfg.HubURL, cfg.FactoryURL)
	}
	if cfg.HMACSecretEnv != DefaultSecretEnv {
		t.Fatalf("expected secret env default, got %q", cfg.HMACSecretEnv)
	}
	if cfg.TokenTTL() != 5*time.Minute {
		t.Fatalf("unexpected token ttl %s", cfg.TokenTTL())
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("profile not written: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("expected 0600 profile, got %v", info.Mode().Perm())
	}

	again, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if *again != *cfg {
		t.Fatalf("reload mismatch: %+v vs %+v", again, cfg)
	}
}

func TestLoadParsesProfile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hubctl.toml")
	contents := `HubURL = "https://hub.example.com/"
FactoryURL = "https://factory.example.com"
Env = "prod"
Subject = "osmo1operator"
ChainUID = "osmosis"
HMACSecret = "s3cret"
TokenTTLSeconds = 60
`
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HubURL != "https://hub.example.com" {
		t.Fatalf("trailing slash not trimmed: %s", cfg.HubURL)
	}
	if cfg.ChainUID != "osmosis" || cfg.Subject != "osmo1operator" {
		t.Fatalf("unexpected identity: %+v", cfg)
	}
	secret, err := cfg.Secret()
	if err != nil || secret != "s3cret" {
		t.Fatalf("secret: %q %v", secret, err)
	}
	if cfg.TokenTTL() != time.Minute || cfg.Timeout() != 15*time.Second {
		t.Fatalf("unexpected durations: %s %s", cfg.TokenTTL(), cfg.Timeout())
	}
}

func TestLoadRejectsInvalidProfiles(t *testing.T) {
	cases := map[string]struct {
		contents string
		want     string
	}{
		"unknown key":     {`Bogus = 1`, "unknown key Bogus"},
		"plaintext prod":  {"HubURL = \"http://hub.example.com\"\nEnv = \"prod\"", "plaintext HTTP"},
		"missing host":    {`FactoryURL = "https://"`, "host is required"},
		"bad chain uid":   {`ChainUID = "Osmosis"`, "ChainUID"},
		"malformed toml":  {`HubURL = `, ""},
		"unsupported url": {`HubURL = "ftp://hub"`, "unsupported URL scheme"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "hubctl.toml")
			if err := os.WriteFile(path, []byte(tc.contents), 0o600); err != nil {
				t.Fatalf("write: %v", err)
			}
			_, err := Load(path)
			if err == nil {
				t.Fatalf("expected error")
			}
			if tc.want != "" && !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected %q in %v", tc.want, err)
			}
		})
	}
}

func TestSecretFromEnvironment(t *testing.T) {
	cfg := &Config{HMACSecretEnv: "HUBCTL_TEST_SECRET"}
	t.Setenv("HUBCTL_TEST_SECRET", "")
	if _, err := cfg.Secret(); err == nil || !strings.Contains(err.Error(), "HUBCTL_TEST_SECRET") {
		t.Fatalf("expected missing secret error, got %v", err)
	}
	t.Setenv("HUBCTL_TEST_SECRET", " from-env ")
	secret, err := cfg.Secret()
	if err != nil || secret != "from-env" {
		t.Fatalf("secret: %q %v", secret, err)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hubctl.toml")
	cfg := &Config{HubURL: "http://localhost:9000", Subject: "osmo1alice", ChainUID: "osmosis"}
	if err := Save(path, cfg); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.HubURL != "http://localhost:9000" || loaded.Subject != "osmo1alice" {
		t.Fatalf("unexpected profile: %+v", loaded)
	}

	bad := &Config{HubURL: "http://localhost:9000", Env: "prod"}
	if err := Save(path, bad); err == nil {
		t.Fatalf("expected validation error")
	}
}

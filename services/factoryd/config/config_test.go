package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "factoryd.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const baseConfig = `
http:
  auth:
    hmacSecret: "api-secret"
chainUid: "osmosis"
address: "0x00000000000000000000000000000000000000fa"
admin: "0x00000000000000000000000000000000000000ad"
hub:
  endpoint: "https://hub.internal"
  hmacSecret: "relay-secret"
`

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, baseConfig), "prod")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	engine := cfg.Engine()
	if engine.Timeout.Default != 60 || engine.Timeout.Min != 30 || engine.Timeout.Max != 240 {
		t.Fatalf("unexpected timeout policy %+v", engine.Timeout)
	}
	if cfg.Relayer.Interval.Duration != 2*time.Second || cfg.Relayer.Batch != 32 {
		t.Fatalf("relayer defaults not applied: %+v", cfg.Relayer)
	}
	if cfg.RelayLog.SQLitePath != "relaylog.db" {
		t.Fatalf("expected sqlite relay log by default, got %+v", cfg.RelayLog)
	}
	if cfg.HTTP.ListenAddress != ":7410" {
		t.Fatalf("unexpected listen address %q", cfg.HTTP.ListenAddress)
	}
}

func TestLoadKeepsQuotaAndTimeouts(t *testing.T) {
	content := baseConfig + `
timeout:
  default: 90
  min: 45
  max: 120
quota:
  maxRequestsPerEpoch: 5
  epochSeconds: 60
relayLog:
  databaseUrl: "postgres://relay@db/relay"
`
	cfg, err := Load(writeConfig(t, content), "prod")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	engine := cfg.Engine()
	if engine.Timeout.Default != 90 || engine.Timeout.Min != 45 {
		t.Fatalf("timeout overrides lost: %+v", engine.Timeout)
	}
	if engine.Quota.MaxRequestsPerEpoch != 5 || engine.Quota.EpochSeconds != 60 {
		t.Fatalf("quota lost: %+v", engine.Quota)
	}
	if cfg.RelayLog.SQLitePath != "" {
		t.Fatalf("sqlite path must stay empty when a database url is set")
	}
}

func TestLoadRejectsInvalidConfigs(t *testing.T) {
	cases := map[string]struct {
		content string
		want    string
	}{
		"bad chain uid": {
			content: strings.Replace(baseConfig, `chainUid: "osmosis"`, `chainUid: ""`, 1),
			want:    "chain uid",
		},
		"bad address": {
			content: strings.Replace(baseConfig, `address: "0x00000000000000000000000000000000000000fa"`, `address: "nope"`, 1),
			want:    "factory address",
		},
		"timeout outside window": {
			content: baseConfig + "timeout:\n  default: 500\n",
			want:    "default timeout",
		},
		"missing relay secret": {
			content: strings.Replace(baseConfig, `hmacSecret: "relay-secret"`, "", 1),
			want:    "hub.hmacSecret",
		},
		"plaintext hub": {
			content: strings.Replace(baseConfig, "https://hub.internal", "http://hub.internal", 1),
			want:    "hub.endpoint",
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.content), "prod")
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

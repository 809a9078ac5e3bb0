package config

import (
	"testing"
	"time"
)

func TestTelemetrySectionDefaultsAndValidation(t *testing.T) {
	cfg, err := load(t, "http:\n  auth:\n    hmacSecret: s\n  telemetry:\n    endpoint: collector:4318\n    insecure: false\n    headers:\n      tenant: hub\n")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	tel := cfg.Telemetry
	if !tel.Enabled() || tel.UseInsecure() {
		t.Fatalf("unexpected exporter settings %+v", tel)
	}
	if tel.SampleRatio != 1 || tel.MetricInterval.Duration != 15*time.Second {
		t.Fatalf("unexpected defaults ratio=%v interval=%s", tel.SampleRatio, tel.MetricInterval)
	}
	if tel.Headers["tenant"] != "hub" {
		t.Fatalf("headers not decoded: %v", tel.Headers)
	}

	if _, err := load(t, "http:\n  auth:\n    hmacSecret: s\n  telemetry:\n    sampleRatio: 1.5\n"); err == nil {
		t.Fatalf("expected sample ratio above 1 to fail")
	}
}

func TestTelemetryEnvOverridesFile(t *testing.T) {
	tel := TelemetryConfig{Endpoint: "file:4318", Headers: map[string]string{"tenant": "hub"}}
	env := map[string]string{
		"OTEL_EXPORTER_OTLP_ENDPOINT": "env:4318",
		"OTEL_EXPORTER_OTLP_INSECURE": "false",
		"OTEL_EXPORTER_OTLP_HEADERS":  "api-key=abc, broken,=x",
		"OTEL_TRACES_SAMPLER_ARG":     "0.1",
	}
	tel.ApplyEnv(func(key string) string { return env[key] })
	if tel.Endpoint != "env:4318" || tel.UseInsecure() || tel.SampleRatio != 0.1 {
		t.Fatalf("env not applied: %+v", tel)
	}
	if len(tel.Headers) != 2 || tel.Headers["api-key"] != "abc" || tel.Headers["tenant"] != "hub" {
		t.Fatalf("unexpected headers %v", tel.Headers)
	}

	var off TelemetryConfig
	off.ApplyEnv(func(string) string { return "" })
	if off.Enabled() || !off.UseInsecure() {
		t.Fatalf("empty environment must leave exporters off: %+v", off)
	}
}

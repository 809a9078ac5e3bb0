package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TelemetryConfig points the OTLP exporters at a collector. Exporters stay
// off while Endpoint is empty.
type TelemetryConfig struct {
	Endpoint       string            `yaml:"endpoint"`
	Insecure       *bool             `yaml:"insecure"`
	Headers        map[string]string `yaml:"headers"`
	SampleRatio    float64           `yaml:"sampleRatio"`
	MetricInterval Duration          `yaml:"metricInterval"`
}

// Enabled reports whether an exporter endpoint is configured.
func (t TelemetryConfig) Enabled() bool { return strings.TrimSpace(t.Endpoint) != "" }

// UseInsecure reports whether exporters skip TLS. Unset means plaintext,
// which suits a collector sidecar.
func (t TelemetryConfig) UseInsecure() bool {
	return t.Insecure == nil || *t.Insecure
}

// ApplyEnv overlays the standard OTEL_EXPORTER_OTLP_* variables read through
// getenv on top of the file settings.
func (t *TelemetryConfig) ApplyEnv(getenv func(string) string) {
	if getenv == nil {
		return
	}
	if endpoint := strings.TrimSpace(getenv("OTEL_EXPORTER_OTLP_ENDPOINT")); endpoint != "" {
		t.Endpoint = endpoint
	}
	if raw := strings.TrimSpace(getenv("OTEL_EXPORTER_OTLP_INSECURE")); raw != "" {
		if parsed, err := strconv.ParseBool(raw); err == nil {
			t.Insecure = &parsed
		}
	}
	if headers := parseHeaders(getenv("OTEL_EXPORTER_OTLP_HEADERS")); len(headers) > 0 {
		if t.Headers == nil {
			t.Headers = make(map[string]string, len(headers))
		}
		for k, v := range headers {
			t.Headers[k] = v
		}
	}
	if raw := strings.TrimSpace(getenv("OTEL_TRACES_SAMPLER_ARG")); raw != "" {
		if ratio, err := strconv.ParseFloat(raw, 64); err == nil {
			t.SampleRatio = ratio
		}
	}
}

func (t *TelemetryConfig) applyDefaults() {
	t.Endpoint = strings.TrimSpace(t.Endpoint)
	if t.SampleRatio == 0 {
		t.SampleRatio = 1
	}
	if t.MetricInterval.Duration <= 0 {
		t.MetricInterval.Duration = 15 * time.Second
	}
}

func (t TelemetryConfig) validate() error {
	if t.SampleRatio < 0 || t.SampleRatio > 1 {
		return fmt.Errorf("telemetry.sampleRatio must be within [0,1], got %v", t.SampleRatio)
	}
	return nil
}

// parseHeaders converts "key=value,foo=bar" into a map; malformed pairs are
// skipped.
func parseHeaders(raw string) map[string]string {
	headers := map[string]string{}
	for _, pair := range strings.Split(raw, ",") {
		trimmed := strings.TrimSpace(pair)
		if trimmed == "" {
			continue
		}
		key, value, found := strings.Cut(trimmed, "=")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		headers[key] = strings.TrimSpace(value)
	}
	return headers
}

package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetupWritesRotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hubd.log")
	logger := SetupWithOptions("hubd", "test", Options{File: path, MaxSizeMB: 1})
	logger.Info("packet executed", "kind", "swap")

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	line := strings.TrimSpace(strings.Split(string(raw), "\n")[0])

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(line), &entry))
	require.Equal(t, "packet executed", entry["message"])
	require.Equal(t, "INFO", entry["severity"])
	require.Equal(t, "hubd", entry["service"])
	require.Equal(t, "test", entry["env"])
	require.Equal(t, "swap", entry["kind"])
	require.Contains(t, entry, "timestamp")
}

func TestMaskField(t *testing.T) {
	require.Equal(t, RedactedValue, MaskField("authorization", "Bearer abc").Value.String())
	require.Equal(t, "swap", MaskField("kind", "swap").Value.String())
	require.Equal(t, "", MaskField("authorization", "").Value.String())
	require.Equal(t, "0x0000…00a1", ShortAddress("0x00000000000000000000000000000000000000a1"))
	require.Equal(t, "short", ShortAddress("short"))
}

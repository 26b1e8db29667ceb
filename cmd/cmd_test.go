package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/kilianp07/agrolink/core/platform"
	"github.com/kilianp07/agrolink/core/store"
)

func TestParseValue(t *testing.T) {
	assert.Equal(t, int64(2), parseValue("2"))
	assert.Equal(t, 1.5, parseValue("1.5"))
	assert.Equal(t, true, parseValue("true"))
	assert.Equal(t, "open", parseValue("open"))
	assert.Equal(t, "on", parseValue(`"on"`))
	assert.Equal(t, map[string]any{"dir": float64(1)}, parseValue(`{"dir":1}`))
}

func TestParseKeys(t *testing.T) {
	assert.Equal(t, []string{"temperature", "humidity"}, parseKeys("temperature, humidity,,"))
	assert.Empty(t, parseKeys(" , "))
}

func TestRender(t *testing.T) {
	since := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	views := statusViews([]store.DeviceStatus{
		{DeviceID: "pump", Online: true, LastChecked: since},
		{DeviceID: "fan", LastChecked: since, OfflineSince: since},
	})

	var buf bytes.Buffer
	require.NoError(t, render(&buf, "yaml", views))
	var fromYAML []map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &fromYAML))
	require.Len(t, fromYAML, 2)
	assert.Equal(t, "pump", fromYAML[0]["device"])
	assert.NotContains(t, fromYAML[0], "offline_since")
	assert.Contains(t, fromYAML[1], "offline_since")

	buf.Reset()
	require.NoError(t, render(&buf, "json", views))
	var fromJSON []deviceStatusView
	require.NoError(t, json.Unmarshal(buf.Bytes(), &fromJSON))
	assert.False(t, fromJSON[1].Online)
	require.NotNil(t, fromJSON[1].OfflineSince)
	assert.True(t, since.Equal(*fromJSON[1].OfflineSince))

	assert.Error(t, render(&buf, "xml", views))
}

func TestSummarize(t *testing.T) {
	t0 := time.Unix(1700000000, 0).UTC()
	tel := platform.Telemetry{
		"temperature": {
			{TS: t0.Add(2 * time.Minute), Value: "24"},
			{TS: t0.Add(time.Minute), Value: "22"},
			{TS: t0, Value: "n/a"},
		},
		"status": {{TS: t0, Value: "open"}},
	}
	views := summarize(tel, []string{"temperature", "status", "missing"})
	require.Len(t, views, 3)

	assert.Equal(t, "missing", views[0].Key)
	assert.NotEmpty(t, views[0].Error)
	assert.Equal(t, "status", views[1].Key)
	assert.Equal(t, 1, views[1].Skipped)
	assert.NotEmpty(t, views[1].Error)

	temp := views[2]
	assert.Equal(t, 2, temp.Count)
	assert.Equal(t, 23.0, temp.Mean)
	assert.Equal(t, 22.0, temp.Min)
	assert.Equal(t, 1, temp.Skipped)
	assert.Equal(t, t0.Add(time.Minute), temp.First)
}

func TestCommandTreeRegistersSubcommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"command", "devices", "telemetry", "watch"} {
		assert.True(t, names[want], want)
	}
}

func TestLogLevelFlag(t *testing.T) {
	t.Setenv("LOG_LEVEL", "info")
	require.NoError(t, rootCmd.PersistentFlags().Set("log-level", "debug"))
	t.Cleanup(func() { logLevel = "" })

	require.NoError(t, applyLogLevel(rootCmd, nil))
	assert.Equal(t, "debug", os.Getenv("LOG_LEVEL"))
}

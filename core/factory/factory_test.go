package factory

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sinkConf struct {
	URL     string        `json:"url"`
	QoS     int           `json:"qos"`
	Retain  bool          `json:"retain"`
	Timeout time.Duration `json:"timeout"`
}

func TestRegistryCreateDecodes(t *testing.T) {
	reg := NewRegistry[sinkConf]()
	require.NoError(t, reg.Register("webhook", func(conf map[string]any) (sinkConf, error) {
		var c sinkConf
		err := Decode(conf, &c)
		return c, err
	}))

	got, err := reg.Create(ModuleConfig{Type: "webhook", Conf: map[string]any{
		"url": "http://hooks", "qos": "1", "retain": "true", "timeout": "1m30s",
	}})
	require.NoError(t, err)
	assert.Equal(t, sinkConf{URL: "http://hooks", QoS: 1, Retain: true, Timeout: 90 * time.Second}, got)
}

func TestRegistryErrors(t *testing.T) {
	reg := NewRegistry[int]()
	require.NoError(t, reg.Register("log", func(map[string]any) (int, error) { return 1, nil }))
	require.NoError(t, reg.Register("broken", func(map[string]any) (int, error) { return 0, errors.New("no broker") }))

	assert.Error(t, reg.Register("log", func(map[string]any) (int, error) { return 2, nil }))
	assert.Error(t, reg.Register("nil", nil))
	assert.Equal(t, []string{"broken", "log"}, reg.Names())

	_, err := reg.Create(ModuleConfig{Type: "mqtt"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "known: broken, log")

	_, err = reg.Create(ModuleConfig{Type: "broken"})
	assert.ErrorContains(t, err, "broken: no broker")
}

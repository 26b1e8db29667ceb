package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/agrolink/core/factory"
	"github.com/kilianp07/agrolink/core/model"
	corenotify "github.com/kilianp07/agrolink/core/notify"
	"github.com/kilianp07/agrolink/infra/logger"
	"github.com/kilianp07/agrolink/infra/mqtt"
	"github.com/kilianp07/agrolink/internal/eventbus"
)

func offlineNotification() model.Notification {
	return corenotify.New(model.NotificationDeviceOffline, model.SeverityWarning, "pump-1",
		"Device offline: Pump 1", "Pump 1 stopped reporting",
		map[string]any{"previous_status": "online", "new_status": "offline"},
		time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC))
}

func TestMQTTSinkPublishesJSON(t *testing.T) {
	pub := mqtt.NewMockPublisher()
	sink := NewMQTTSink(pub, "farm/alerts/")
	n := offlineNotification()

	require.NoError(t, sink.Notify(context.Background(), n))
	msgs := pub.Published()
	require.Len(t, msgs, 1)
	assert.Equal(t, "farm/alerts/pump-1/device_offline", msgs[0].Topic)

	var got model.Notification
	require.NoError(t, json.Unmarshal(msgs[0].Payload, &got))
	assert.Equal(t, n.ID, got.ID)
	assert.Equal(t, model.SeverityWarning, got.Severity)
	assert.Equal(t, "offline", got.Metadata["new_status"])
}

func TestMQTTSinkReturnsPublishError(t *testing.T) {
	pub := mqtt.NewMockPublisher()
	sink := NewMQTTSink(pub, "")
	n := offlineNotification()
	pub.FailTopics[sink.Topic(n)] = true

	assert.Error(t, sink.Notify(context.Background(), n))
	assert.Equal(t, DefaultTopicPrefix+"/pump-1/device_offline", sink.Topic(n))
}

func TestBusSink(t *testing.T) {
	bus := eventbus.NewTyped[model.Notification]()
	ch := bus.Subscribe()
	sink := NewBusSink(bus)

	require.NoError(t, sink.Notify(context.Background(), offlineNotification()))
	select {
	case n := <-ch:
		assert.Equal(t, "pump-1", n.DeviceID)
	case <-time.After(time.Second):
		t.Fatal("notification not published")
	}
}

func TestLogSinkWritesSeverityAndMetadata(t *testing.T) {
	var buf bytes.Buffer
	sink := NewLogSink(logger.NewZerologLoggerWithWriter("notifications", &buf, "debug"))

	require.NoError(t, sink.Notify(context.Background(), offlineNotification()))
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "pump-1", entry["device"])
	assert.Equal(t, "offline", entry["meta_new_status"])
	assert.Equal(t, "Pump 1 stopped reporting", entry["message"])
}

func TestRegisteredSinks(t *testing.T) {
	s, err := corenotify.NewSink(nil)
	require.NoError(t, err)
	assert.IsType(t, corenotify.NopSink{}, s)

	for _, typ := range []string{"log", "nop"} {
		_, err := corenotify.NewSink([]factory.ModuleConfig{{Type: typ}})
		assert.NoError(t, err, typ)
	}
	_, err = corenotify.NewSink([]factory.ModuleConfig{{Type: "mqtt", Conf: map[string]any{}}})
	assert.Error(t, err, "mqtt sink requires a broker")
}

package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kilianp07/agrolink/core/model"
	coremqtt "github.com/kilianp07/agrolink/core/mqtt"
)

// DefaultTopicPrefix is used when no prefix is configured.
const DefaultTopicPrefix = "agrolink/notifications"

// MQTTSink publishes notifications as JSON on
// <prefix>/<device>/<type>.
type MQTTSink struct {
	pub    coremqtt.Publisher
	prefix string
}

func NewMQTTSink(pub coremqtt.Publisher, prefix string) *MQTTSink {
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return &MQTTSink{pub: pub, prefix: strings.TrimSuffix(prefix, "/")}
}

// Topic returns the topic a notification is published on.
func (s *MQTTSink) Topic(n model.Notification) string {
	device := n.DeviceID
	if device == "" {
		device = "_"
	}
	return fmt.Sprintf("%s/%s/%s", s.prefix, device, n.Type)
}

func (s *MQTTSink) Notify(ctx context.Context, n model.Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	return s.pub.Publish(ctx, s.Topic(n), payload)
}

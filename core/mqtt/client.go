package mqtt

import "context"

// Publisher delivers payloads to an MQTT topic.
type Publisher interface {
	// Publish sends payload to topic, retrying transient failures until ctx
	// is done.
	Publish(ctx context.Context, topic string, payload []byte) error
}

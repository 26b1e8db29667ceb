package notify

import (
	"fmt"

	"github.com/kilianp07/agrolink/core/factory"
	corenotify "github.com/kilianp07/agrolink/core/notify"
	"github.com/kilianp07/agrolink/infra/logger"
	"github.com/kilianp07/agrolink/infra/mqtt"
)

func init() {
	_ = corenotify.RegisterSink("nop", func(map[string]any) (corenotify.Sink, error) {
		return corenotify.NopSink{}, nil
	})

	_ = corenotify.RegisterSink("log", func(map[string]any) (corenotify.Sink, error) {
		return NewLogSink(logger.New("notifications")), nil
	})

	_ = corenotify.RegisterSink("mqtt", func(conf map[string]any) (corenotify.Sink, error) {
		var c struct {
			mqtt.Config `json:",squash"`
			TopicPrefix string `json:"topic_prefix"`
		}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		c.Config.SetDefaults()
		if err := c.Config.Validate(); err != nil {
			return nil, err
		}
		if c.Config.Broker == "" {
			return nil, fmt.Errorf("mqtt sink: broker is required")
		}
		cli, err := mqtt.NewPahoClient(c.Config, logger.New("mqtt_notify"))
		if err != nil {
			return nil, err
		}
		return NewMQTTSink(cli, c.TopicPrefix), nil
	})
}

// Package factory instantiates pluggable modules, such as notification and
// metrics sinks, from configuration. A module is selected by its type name
// and receives its raw settings, which it decodes with Decode.
//
//	reg := factory.NewRegistry[notify.Sink]()
//	_ = reg.Register("webhook", func(conf map[string]any) (notify.Sink, error) {
//	    var c struct {
//	        URL string `json:"url"`
//	    }
//	    if err := factory.Decode(conf, &c); err != nil {
//	        return nil, err
//	    }
//	    return newWebhookSink(c.URL), nil
//	})
//	sink, err := reg.Create(factory.ModuleConfig{Type: "webhook", Conf: map[string]any{"url": "http://hooks"}})
package factory

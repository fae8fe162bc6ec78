// Package bridge turns device readings and discovery metadata into MQTT
// batches and hands them to a transport.
package bridge

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/bikerpatch/juntek_monitor/ports"
)

// DefaultDeviceName is announced when Announce is called with an empty name.
const DefaultDeviceName = "BTG065"

const discoveryTopic = "homeassistant/sensor/%s/config"

// Config is the broker the publisher sends to.
type Config struct {
	Broker   string
	Port     int
	Username string
	Password string
}

// Publisher is safe to share between goroutines; it holds no mutable state.
// Callers that need ordering between Announce and Publish must serialize them.
type Publisher struct {
	config    Config
	auth      *ports.Auth
	source    ports.DataSource
	transport ports.Transport
	logger    zerolog.Logger
}

func New(config Config, source ports.DataSource, transport ports.Transport, logger zerolog.Logger) *Publisher {
	return &Publisher{
		config:    config,
		auth:      &ports.Auth{Username: config.Username, Password: config.Password},
		source:    source,
		transport: transport,
		logger:    logger,
	}
}

// Announce publishes a retained Home Assistant discovery config for every
// entry the data source reports for deviceName.
func (p *Publisher) Announce(deviceName string) error {
	if deviceName == "" {
		deviceName = DefaultDeviceName
	}

	entries := p.source.Entries(deviceName)
	msgs := make([]ports.Message, 0, len(entries))
	for _, e := range entries {
		payload, err := compactJSON(e.Config)
		if err != nil {
			return err
		}
		msgs = append(msgs, ports.Message{
			Topic:   fmt.Sprintf(discoveryTopic, e.Key),
			Payload: payload,
			Retain:  true,
		})
	}

	p.logger.Info().Str("device", deviceName).Interface("messages", msgs).Msg("Publishing device config")
	return p.transport.PublishMultiple(msgs, p.config.Broker, p.config.Port, p.auth)
}

// Publish sends the current values as non-retained state messages. It does
// nothing when the data source has no values.
func (p *Publisher) Publish() error {
	values := p.source.Values()
	if len(values) == 0 {
		return nil
	}

	msgs := make([]ports.Message, 0, len(values))
	for _, v := range values {
		msgs = append(msgs, ports.Message{Topic: v.Key, Payload: formatValue(v.Value)})
	}

	p.logger.Info().Interface("messages", msgs).Msg("Publishing values")
	return p.transport.PublishMultiple(msgs, p.config.Broker, p.config.Port, p.auth)
}

// compactJSON marshals v without whitespace and without HTML escaping, so
// value templates containing '<', '>' or '&' reach the broker verbatim.
func compactJSON(v interface{}) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n")), nil
}

func formatValue(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case []byte:
		return string(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case nil:
		return ""
	default:
		return fmt.Sprint(val)
	}
}

package mosquitto

import (
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/bikerpatch/juntek_monitor/ports"
)

var (
	ErrTimeout      = errors.New("mqtt operation timed out")
	ErrNotConnected = errors.New("mqtt client not connected")
)

type MqttConfig struct {
	Broker   string `yaml:"mqtt_broker" envconfig:"MQTT_BROKER"`
	Port     int    `default:"1883" yaml:"mqtt_port" envconfig:"MQTT_PORT"`
	User     string `yaml:"mqtt_username" envconfig:"MQTT_USERNAME"`
	Password string `yaml:"mqtt_password" envconfig:"MQTT_PASSWORD"`
	ClientID string `yaml:"mqtt_client_id" envconfig:"MQTT_CLIENT_ID"`
	Qos      byte   `default:"0" yaml:"mqtt_qos" envconfig:"MQTT_QOS"`
	Timeout  int    `default:"5" yaml:"mqtt_timeout" envconfig:"MQTT_TIMEOUT"`
}

// Client is the part of mqtt.Client the transport uses.
type Client interface {
	Connect() mqtt.Token
	IsConnected() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

type ClientFactory interface {
	NewClient(opts *mqtt.ClientOptions) Client
}

type PahoClientFactory struct{}

func (PahoClientFactory) NewClient(opts *mqtt.ClientOptions) Client {
	return mqtt.NewClient(opts)
}

// Transport connects, publishes a batch and disconnects on every call, the
// same lifecycle as a one-shot multi-message publish.
type Transport struct {
	clientID string
	qos      byte
	timeout  time.Duration
	factory  ClientFactory
	logger   zerolog.Logger
}

func New(config *MqttConfig, logger zerolog.Logger, factory ClientFactory) *Transport {
	if factory == nil {
		factory = PahoClientFactory{}
	}

	clientID := config.ClientID
	if clientID == "" {
		clientID = "juntek-" + uuid.NewString()
	}

	timeout := time.Duration(config.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	return &Transport{
		clientID: clientID,
		qos:      config.Qos,
		timeout:  timeout,
		factory:  factory,
		logger:   logger,
	}
}

func (t *Transport) options(host string, port int, auth *ports.Auth) *mqtt.ClientOptions {
	broker := fmt.Sprintf("tcp://%s:%d", host, port)

	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(t.clientID)
	opts.SetConnectTimeout(t.timeout)
	opts.SetAutoReconnect(false)
	opts.SetOnConnectHandler(func(client mqtt.Client) {
		t.logger.Debug().Str("broker", broker).Msg("MQTT connected")
	})
	opts.SetConnectionLostHandler(func(client mqtt.Client, err error) {
		t.logger.Warn().Err(err).Str("broker", broker).Msg("MQTT connection lost")
	})

	if auth != nil {
		if auth.Username != "" {
			opts.SetUsername(auth.Username)
		}
		if auth.Password != "" {
			opts.SetPassword(auth.Password)
		}
	}

	return opts
}

func (t *Transport) wait(token mqtt.Token) error {
	if token == nil {
		return errors.New("mqtt client returned a nil token")
	}
	if !token.WaitTimeout(t.timeout) {
		return ErrTimeout
	}
	return token.Error()
}

// PublishMultiple sends msgs in order over one connection. The first failure
// aborts the rest of the batch.
func (t *Transport) PublishMultiple(msgs []ports.Message, host string, port int, auth *ports.Auth) error {
	client := t.factory.NewClient(t.options(host, port, auth))
	if client == nil {
		return errors.New("client factory returned a nil client")
	}

	if err := t.wait(client.Connect()); err != nil {
		return fmt.Errorf("connect to %s:%d: %w", host, port, err)
	}
	if !client.IsConnected() {
		return fmt.Errorf("connect to %s:%d: %w", host, port, ErrNotConnected)
	}
	defer client.Disconnect(250)

	for _, m := range msgs {
		if err := t.wait(client.Publish(m.Topic, t.qos, m.Retain, m.Payload)); err != nil {
			t.logger.Error().Err(err).Str("topic", m.Topic).Msg("error publishing to MQTT")
			return fmt.Errorf("publish %s: %w", m.Topic, err)
		}
	}

	t.logger.Debug().Int("count", len(msgs)).Msg("MQTT batch published")
	return nil
}

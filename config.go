package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v2"

	"github.com/bikerpatch/juntek_monitor/adapters/export/mosquitto"
)

type Config struct {
	mosquitto.MqttConfig `yaml:",inline"`
	Device               struct {
		Port         string `yaml:"port" envconfig:"DEVICE_PORT"`
		BaudRate     int    `default:"115200" yaml:"baud_rate" envconfig:"DEVICE_BAUD_RATE"`
		Address      int    `default:"1" yaml:"address" envconfig:"DEVICE_ADDRESS"`
		Name         string `default:"BTG065" yaml:"name" envconfig:"DEVICE_NAME"`
		StatePrefix  string `default:"juntek" yaml:"state_prefix" envconfig:"STATE_TOPIC_PREFIX"`
		ReadInterval int    `default:"60" yaml:"read_interval" envconfig:"READ_INTERVAL"`
	} `yaml:"device"`
	LogLevel string `default:"info" yaml:"log_level" envconfig:"LOG_LEVEL"`
}

func (c *Config) validate() error {
	if c.Broker == "" {
		return errors.New("missing required mqtt_broker config")
	}

	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid mqtt_port %d", c.Port)
	}

	if c.Device.Port == "" {
		return errors.New("missing required device.port config")
	}

	if c.Device.ReadInterval <= 0 {
		return fmt.Errorf("invalid device.read_interval %d", c.Device.ReadInterval)
	}

	return nil
}

// NewConfig layers configuration: environment first, then the YAML file
// (when it exists), then command-line options that were explicitly set.
func NewConfig(args []string) (*Config, error) {
	flags := pflag.NewFlagSet("juntek_monitor", pflag.ContinueOnError)
	configPath := flags.String("config", "config.yaml", "path to the YAML config file")
	broker := flags.String("mqtt_broker", "", "MQTT broker host")
	port := flags.Int("mqtt_port", 1883, "MQTT broker port")
	username := flags.String("mqtt_username", "", "MQTT username")
	password := flags.String("mqtt_password", "", "MQTT password")
	devicePort := flags.String("device", "", "serial device path or host:port of the monitor")
	interval := flags.Int("interval", 60, "seconds between measurements")
	logLevel := flags.String("log-level", "info", "log level (debug, info, warn, error)")
	if err := flags.Parse(args); err != nil {
		return nil, err
	}

	config := Config{}

	// Pick up from envs first
	if err := envconfig.Process("", &config); err != nil {
		return nil, err
	}

	// Load from file second, overwriting envs, if the file exists
	if err := loadFile(*configPath, &config); err != nil {
		return nil, err
	}

	// Command line last
	if flags.Changed("mqtt_broker") {
		config.Broker = *broker
	}
	if flags.Changed("mqtt_port") {
		config.Port = *port
	}
	if flags.Changed("mqtt_username") {
		config.User = *username
	}
	if flags.Changed("mqtt_password") {
		config.Password = *password
	}
	if flags.Changed("device") {
		config.Device.Port = *devicePort
	}
	if flags.Changed("interval") {
		config.Device.ReadInterval = *interval
	}
	if flags.Changed("log-level") {
		config.LogLevel = *logLevel
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func loadFile(path string, config *Config) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}

	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	d := yaml.NewDecoder(file)

	if err := d.Decode(config); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode %s: %w", path, err)
	}

	return nil
}

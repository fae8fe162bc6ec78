package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	gser "go.bug.st/serial"

	"github.com/bikerpatch/juntek_monitor/adapters/comms/serial"
	"github.com/bikerpatch/juntek_monitor/adapters/comms/tcpip"
	"github.com/bikerpatch/juntek_monitor/adapters/devices/juntek"
	"github.com/bikerpatch/juntek_monitor/adapters/export/mosquitto"
	"github.com/bikerpatch/juntek_monitor/bridge"
	"github.com/bikerpatch/juntek_monitor/ports"
)

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(os.Stdout).Level(lvl).With().Timestamp().Logger()
}

func newPort(config *Config, logger zerolog.Logger) ports.CommunicationPort {
	if isSerialPort(config.Device.Port) {
		logger.Info().Str("port", config.Device.Port).Int("baud", config.Device.BaudRate).Msg("using serial communications port")
		return serial.New(config.Device.Port, config.Device.BaudRate, 8, gser.NoParity, gser.OneStopBit)
	}
	logger.Info().Str("address", config.Device.Port).Msg("using TCP/IP communications port")
	return tcpip.New(config.Device.Port)
}

func main() {
	config, err := NewConfig(os.Args[1:])
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	logger := newLogger(config.LogLevel)
	logger.Info().
		Str("broker", config.Broker).
		Int("port", config.Port).
		Str("device", config.Device.Name).
		Int("read_interval", config.Device.ReadInterval).
		Msg("config loaded")

	transport := mosquitto.New(&config.MqttConfig, logger.With().Str("component", "mqtt").Logger(), nil)
	data := juntek.NewJTData(config.Device.StatePrefix)
	publisher := bridge.New(bridge.Config{
		Broker:   config.Broker,
		Port:     config.Port,
		Username: config.User,
		Password: config.Password,
	}, data, transport, logger.With().Str("component", "bridge").Logger())

	var device ports.Poller = juntek.NewMonitor(
		config.Device.Name,
		config.Device.Address,
		newPort(config, logger),
		data,
		publisher,
		logger.With().Str("component", "monitor").Logger(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := device.Poll(ctx, time.Duration(config.Device.ReadInterval)*time.Second); err != nil {
		logger.Fatal().Err(err).Msg("polling failed")
	}
	logger.Info().Msg("shutting down")
}

func isSerialPort(portName string) bool {
	return strings.HasPrefix(portName, "/")
}

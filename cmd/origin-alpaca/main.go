// Package main is the entry point for the Origin Alpaca gateway. It exposes
// a Celestron Origin telescope to ASCOM Alpaca clients, with an optional
// MQTT bridge for observatory dashboards.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/jrrk2/origin-alpaca-gateway/internal/alpaca"
	"github.com/jrrk2/origin-alpaca-gateway/internal/mqttbridge"
	"github.com/jrrk2/origin-alpaca-gateway/internal/origin"
)

func main() {
	// Parse command line flags. Flags override the config file and the
	// ORIGIN_* environment.
	configPath := flag.String("config", "", "Path to YAML configuration file")
	telescopeHost := flag.String("telescope-host", "", "Origin telescope hostname or IP")
	telescopePort := flag.Int("telescope-port", 0, "Origin telescope WebSocket port")
	listenAddress := flag.String("listen-address", "", "HTTP listen address for the Alpaca API")
	discoveryPort := flag.Int("discovery-port", 0, "Alpaca UDP discovery port")
	brokerURL := flag.String("broker-url", "", "MQTT broker URL, empty disables the bridge")
	logLevel := flag.String("log-level", "", "Log level (debug, info, warn, error)")
	wireLog := flag.String("wire-log", "", "File recording raw telescope WebSocket traffic")
	flag.Parse()

	config, err := alpaca.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}
	applyFlagOverrides(config, *telescopeHost, *telescopePort, *listenAddress,
		*discoveryPort, *brokerURL, *logLevel, *wireLog)
	if err := config.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logger, err := buildLogger(config.LogLevel)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer logger.Sync()

	logger.Info("Starting Origin Alpaca gateway",
		zap.String("telescope", fmt.Sprintf("%s:%d", config.TelescopeHost, config.TelescopePort)),
		zap.String("listen_address", config.ListenAddress),
		zap.Int("discovery_port", config.DiscoveryPort),
		zap.String("mqtt_broker", config.MQTTBroker))

	telescope := origin.NewClient(origin.Config{
		SiteLatitude:  config.SiteLatitude,
		SiteLongitude: config.SiteLongitude,
		WireLog:       config.WireLog,
	}, logger)

	server, err := alpaca.NewServer(config, telescope, logger)
	if err != nil {
		logger.Fatal("Failed to create server", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The bridge is the sole consumer of the telescope event stream. When
	// no broker is configured the stream is left alone; the client drops
	// events once its buffer fills.
	if config.MQTTBroker != "" {
		bridge, err := mqttbridge.NewBridge(mqttbridge.Config{
			BrokerURL:      config.MQTTBroker,
			ClientID:       config.MQTTClientID,
			Username:       config.MQTTUsername,
			Password:       config.MQTTPassword,
			ConnectTimeout: 10 * time.Second,
		}, logger)
		if err != nil {
			logger.Fatal("Failed to create MQTT bridge", zap.Error(err))
		}
		go func() {
			if err := bridge.Run(ctx, telescope.Events()); err != nil && err != context.Canceled {
				logger.Error("MQTT bridge stopped", zap.Error(err))
			}
		}()
	}

	// Run the server until a shutdown signal arrives. Start blocks and
	// handles its own graceful shutdown.
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- server.Start(ctx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("Gateway running",
		zap.String("alpaca_api", "http://"+config.ListenAddress),
		zap.String("discovery", fmt.Sprintf("UDP port %d", config.DiscoveryPort)))

	select {
	case sig := <-sigChan:
		logger.Info("Shutdown signal received", zap.String("signal", sig.String()))
		cancel()
		err = <-serverErrors
	case err = <-serverErrors:
	}

	telescope.Disconnect()

	if err != nil {
		logger.Error("Gateway exited with error", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("Gateway stopped")
}

// applyFlagOverrides copies any non-zero flag values over the loaded
// configuration.
func applyFlagOverrides(config *alpaca.Config, host string, port int,
	listen string, discovery int, broker, level, wire string) {
	if host != "" {
		config.TelescopeHost = host
	}
	if port != 0 {
		config.TelescopePort = port
	}
	if listen != "" {
		config.ListenAddress = listen
	}
	if discovery != 0 {
		config.DiscoveryPort = discovery
	}
	if broker != "" {
		config.MQTTBroker = broker
	}
	if level != "" {
		config.LogLevel = level
	}
	if wire != "" {
		config.WireLog = wire
	}
}

// buildLogger returns a production zap logger at the requested level, or a
// development logger for debug.
func buildLogger(level string) (*zap.Logger, error) {
	if level == "debug" {
		return zap.NewDevelopment()
	}

	cfg := zap.NewProductionConfig()
	parsed, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}
	cfg.Level = parsed
	return cfg.Build()
}

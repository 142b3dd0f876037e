// Package mqttbridge republishes gateway status and imaging events to an
// MQTT broker, so observatory dashboards can follow the telescope without
// polling the Alpaca API.
package mqttbridge

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/jrrk2/origin-alpaca-gateway/internal/origin"
)

// Topics published by the bridge.
const (
	// TopicStatus carries the latest telescope status snapshot, retained
	// so new subscribers see the current state immediately.
	TopicStatus = "origin-alpaca/telescope/status"

	// TopicEvents carries the gateway lifecycle events (connected,
	// disconnected, image ready), not retained.
	TopicEvents = "origin-alpaca/gateway/events"
)

// Config holds the broker connection settings.
type Config struct {
	// BrokerURL is the MQTT broker, e.g. "tcp://localhost:1883".
	BrokerURL string
	// ClientID identifies this gateway on the broker.
	ClientID string
	// Username and Password are optional broker credentials.
	Username string
	Password string
	// QoS applies to every publish.
	QoS byte
	// ConnectTimeout bounds the initial broker connection.
	ConnectTimeout time.Duration
}

// statusMessage is the JSON body published on TopicStatus.
type statusMessage struct {
	Timestamp        time.Time `json:"timestamp"`
	Connected        bool      `json:"connected"`
	Slewing          bool      `json:"slewing"`
	Tracking         bool      `json:"tracking"`
	Parked           bool      `json:"parked"`
	Aligned          bool      `json:"aligned"`
	RightAscension   float64   `json:"right_ascension_hours"`
	Declination      float64   `json:"declination_degrees"`
	Altitude         float64   `json:"altitude_degrees"`
	Azimuth          float64   `json:"azimuth_degrees"`
	Temperature      float64   `json:"temperature_celsius"`
	CurrentOperation string    `json:"current_operation"`
}

// eventMessage is the JSON body published on TopicEvents.
type eventMessage struct {
	Timestamp time.Time `json:"timestamp"`
	Event     string    `json:"event"`
}

// Bridge consumes the gateway event stream and mirrors it onto MQTT.
type Bridge struct {
	config Config
	client mqtt.Client
	logger *zap.Logger
}

// NewBridge creates a bridge for the given broker. The broker is not
// contacted until Run.
func NewBridge(config Config, logger *zap.Logger) (*Bridge, error) {
	if config.BrokerURL == "" {
		return nil, fmt.Errorf("broker URL cannot be empty")
	}
	if config.ClientID == "" {
		config.ClientID = "origin-alpaca-gateway"
	}
	if config.ConnectTimeout == 0 {
		config.ConnectTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "mqtt_bridge"))

	opts := mqtt.NewClientOptions()
	opts.AddBroker(config.BrokerURL)
	opts.SetClientID(config.ClientID)
	if config.Username != "" {
		opts.SetUsername(config.Username)
	}
	if config.Password != "" {
		opts.SetPassword(config.Password)
	}
	opts.SetConnectTimeout(config.ConnectTimeout)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(time.Minute)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn("MQTT connection lost", zap.Error(err))
	})
	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		logger.Info("MQTT connected", zap.String("broker", config.BrokerURL))
	})

	return &Bridge{
		config: config,
		client: mqtt.NewClient(opts),
		logger: logger,
	}, nil
}

// Run connects to the broker and republishes events until the stream closes
// or the context is cancelled. The broker connection is closed on return.
func (b *Bridge) Run(ctx context.Context, events <-chan origin.Event) error {
	token := b.client.Connect()
	if !token.WaitTimeout(b.config.ConnectTimeout) {
		return fmt.Errorf("broker connection timeout after %v", b.config.ConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("connecting to broker: %w", err)
	}
	defer b.client.Disconnect(250)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-events:
			if !ok {
				return nil
			}
			b.publish(event)
		}
	}
}

// publish mirrors one gateway event. Status snapshots go retained so late
// subscribers catch up; lifecycle events are fire-and-forget.
func (b *Bridge) publish(event origin.Event) {
	now := time.Now().UTC()

	status := event.Status
	b.publishJSON(TopicStatus, true, statusMessage{
		Timestamp:        now,
		Connected:        status.Connected,
		Slewing:          status.Slewing,
		Tracking:         status.Tracking,
		Parked:           status.Parked,
		Aligned:          status.Aligned,
		RightAscension:   status.RightAscension,
		Declination:      status.Declination,
		Altitude:         status.Altitude,
		Azimuth:          status.Azimuth,
		Temperature:      status.Temperature,
		CurrentOperation: status.CurrentOperation,
	})

	if event.Kind != origin.EventStatusUpdated {
		b.publishJSON(TopicEvents, false, eventMessage{
			Timestamp: now,
			Event:     event.Kind.String(),
		})
	}
}

func (b *Bridge) publishJSON(topic string, retained bool, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		b.logger.Error("Failed to marshal payload", zap.Error(err))
		return
	}

	token := b.client.Publish(topic, b.config.QoS, retained, data)
	token.Wait()
	if err := token.Error(); err != nil {
		b.logger.Warn("Publish failed",
			zap.String("topic", topic),
			zap.Error(err))
		return
	}
	b.logger.Debug("Published",
		zap.String("topic", topic),
		zap.Int("size", len(data)))
}

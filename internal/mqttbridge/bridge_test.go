package mqttbridge

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewBridge(t *testing.T) {
	logger := zap.NewNop()

	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{
			name:    "empty broker URL",
			config:  Config{},
			wantErr: true,
		},
		{
			name: "valid config",
			config: Config{
				BrokerURL:      "tcp://localhost:1883",
				ClientID:       "test-gateway",
				ConnectTimeout: 5 * time.Second,
			},
			wantErr: false,
		},
		{
			name: "defaults applied",
			config: Config{
				BrokerURL: "tcp://localhost:1883",
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bridge, err := NewBridge(tt.config, logger)

			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, bridge)
				return
			}
			assert.NoError(t, err)
			require.NotNil(t, bridge)
			assert.NotNil(t, bridge.client)
			assert.NotNil(t, bridge.logger)
			assert.NotEmpty(t, bridge.config.ClientID)
			assert.NotZero(t, bridge.config.ConnectTimeout)
		})
	}
}

func TestNewBridgeNilLogger(t *testing.T) {
	bridge, err := NewBridge(Config{BrokerURL: "tcp://localhost:1883"}, nil)
	require.NoError(t, err)
	assert.NotNil(t, bridge.logger)
}

func TestStatusMessageJSON(t *testing.T) {
	msg := statusMessage{
		Timestamp:        time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC),
		Connected:        true,
		Tracking:         true,
		RightAscension:   6.5,
		Declination:      45.0,
		Temperature:      11.25,
		CurrentOperation: "Tracking",
	}

	data, err := json.Marshal(msg)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, true, decoded["connected"])
	assert.Equal(t, true, decoded["tracking"])
	assert.Equal(t, false, decoded["slewing"])
	assert.Equal(t, 6.5, decoded["right_ascension_hours"])
	assert.Equal(t, 45.0, decoded["declination_degrees"])
	assert.Equal(t, 11.25, decoded["temperature_celsius"])
	assert.Equal(t, "Tracking", decoded["current_operation"])
	assert.Contains(t, decoded, "timestamp")
}

func TestEventMessageJSON(t *testing.T) {
	msg := eventMessage{
		Timestamp: time.Now().UTC(),
		Event:     "imageReady",
	}

	data, err := json.Marshal(msg)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"event":"imageReady"`)
}

package alpaca

import (
	"encoding/json"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDiscoveryBeaconPayload(t *testing.T) {
	beacon := NewDiscoveryBeacon(32227, 11111, zap.NewNop())

	var msg map[string]int
	require.NoError(t, json.Unmarshal(beacon.payload(), &msg))
	assert.Equal(t, 11111, msg["AlpacaPort"])
}

func TestDiscoveryResponder(t *testing.T) {
	// Bind the beacon to an ephemeral port so the test does not collide
	// with a real Alpaca server on the host.
	listener, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	port := listener.LocalAddr().(*net.UDPAddr).Port
	require.NoError(t, listener.Close())

	beacon := NewDiscoveryBeacon(port, 11111, zap.NewNop())
	require.NoError(t, beacon.Start())
	defer beacon.Stop()

	client, err := net.Dial("udp", fmt.Sprintf("127.0.0.1:%d", port))
	require.NoError(t, err)
	defer client.Close()

	_, err = client.Write([]byte("alpacadiscovery1"))
	require.NoError(t, err)

	require.NoError(t, client.SetReadDeadline(time.Now().Add(2*time.Second)))
	buffer := make([]byte, 1024)
	n, err := client.Read(buffer)
	require.NoError(t, err)

	var msg map[string]int
	require.NoError(t, json.Unmarshal(buffer[:n], &msg))
	assert.Equal(t, 11111, msg["AlpacaPort"])
}

func TestDiscoveryResponderIgnoresNoise(t *testing.T) {
	listener, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	port := listener.LocalAddr().(*net.UDPAddr).Port
	require.NoError(t, listener.Close())

	beacon := NewDiscoveryBeacon(port, 11111, zap.NewNop())
	require.NoError(t, beacon.Start())
	defer beacon.Stop()

	client, err := net.Dial("udp", fmt.Sprintf("127.0.0.1:%d", port))
	require.NoError(t, err)
	defer client.Close()

	_, err = client.Write([]byte("something else entirely"))
	require.NoError(t, err)

	require.NoError(t, client.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	buffer := make([]byte, 64)
	_, err = client.Read(buffer)
	assert.Error(t, err, "unrelated datagrams get no response")
}

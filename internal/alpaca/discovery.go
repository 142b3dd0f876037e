package alpaca

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"
)

// discoveryRequest is the fixed token Alpaca clients broadcast when
// scanning the network.
const discoveryRequest = "alpacadiscovery1"

// beaconInterval is how often the gateway announces itself unprompted.
const beaconInterval = 30 * time.Second

// DiscoveryBeacon makes the gateway findable on the local network two ways:
// it broadcasts an {"AlpacaPort":N} announcement immediately and then every
// 30 seconds, and it answers alpacadiscovery1 request datagrams with the
// same payload.
type DiscoveryBeacon struct {
	port    int
	apiPort int
	logger  *zap.Logger

	conn   *net.UDPConn
	stopCh chan struct{}
}

// NewDiscoveryBeacon creates a beacon for the given discovery and API
// ports.
func NewDiscoveryBeacon(port, apiPort int, logger *zap.Logger) *DiscoveryBeacon {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DiscoveryBeacon{
		port:    port,
		apiPort: apiPort,
		logger:  logger.With(zap.String("component", "discovery")),
		stopCh:  make(chan struct{}),
	}
}

// payload is the JSON announcement body.
func (d *DiscoveryBeacon) payload() []byte {
	data, _ := json.Marshal(map[string]int{"AlpacaPort": d.apiPort})
	return data
}

// Start launches the broadcast loop and, when the discovery port is free,
// the request responder. Another Alpaca server on the same host may already
// hold the port; the beacon still runs in that case.
func (d *DiscoveryBeacon) Start() error {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4zero, Port: d.port})
	if err != nil {
		d.logger.Warn("Discovery responder disabled, port unavailable",
			zap.Int("port", d.port),
			zap.Error(err))
	} else {
		d.conn = conn
		go d.respondLoop(conn)
	}

	go d.broadcastLoop()

	d.logger.Info("Discovery beacon started",
		zap.Int("udp_port", d.port),
		zap.Int("api_port", d.apiPort))
	return nil
}

// Stop shuts the beacon down.
func (d *DiscoveryBeacon) Stop() {
	close(d.stopCh)
	if d.conn != nil {
		_ = d.conn.Close()
	}
}

// broadcastLoop announces the gateway immediately and on a fixed period.
func (d *DiscoveryBeacon) broadcastLoop() {
	d.sendBroadcast()

	ticker := time.NewTicker(beaconInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.stopCh:
			return
		case <-ticker.C:
			d.sendBroadcast()
		}
	}
}

func (d *DiscoveryBeacon) sendBroadcast() {
	address := fmt.Sprintf("%s:%d", net.IPv4bcast.String(), d.port)
	conn, err := net.Dial("udp", address)
	if err != nil {
		d.logger.Debug("Discovery broadcast failed", zap.Error(err))
		return
	}
	defer conn.Close()

	if _, err := conn.Write(d.payload()); err != nil {
		d.logger.Debug("Discovery broadcast failed", zap.Error(err))
		return
	}
	d.logger.Debug("Sent discovery broadcast", zap.Int("port", d.port))
}

// respondLoop answers discovery requests until the socket is closed.
func (d *DiscoveryBeacon) respondLoop(conn *net.UDPConn) {
	buffer := make([]byte, 1024)
	for {
		n, remote, err := conn.ReadFromUDP(buffer)
		if err != nil {
			select {
			case <-d.stopCh:
			default:
				d.logger.Warn("Discovery responder stopped", zap.Error(err))
			}
			return
		}
		if !bytes.Contains(buffer[:n], []byte(discoveryRequest)) {
			continue
		}
		if _, err := conn.WriteToUDP(d.payload(), remote); err != nil {
			d.logger.Debug("Discovery response failed",
				zap.String("remote", remote.String()),
				zap.Error(err))
			continue
		}
		d.logger.Debug("Answered discovery request",
			zap.String("remote", remote.String()))
	}
}

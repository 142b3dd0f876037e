package origin

import (
	"context"
	"fmt"
	"image"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/jrrk2/origin-alpaca-gateway/pkg/coords"
)

// endpointPath is the WebSocket endpoint the Origin mount controller
// listens on.
const endpointPath = "/SmartScope-1.0/mountControlEndpoint"

// Config holds the tunables for a Client. Zero values are replaced by the
// defaults the Origin integration was built against.
type Config struct {
	// StatusInterval is the period of the repeating status poll.
	StatusInterval time.Duration

	// ConnectTimeout bounds the WebSocket handshake.
	ConnectTimeout time.Duration

	// SettleDelay is the pause between setting capture parameters and
	// starting an exposure, giving the firmware time to latch them.
	SettleDelay time.Duration

	// CaptureTimeout is added to the exposure duration to bound the wait
	// for the NewImageReady notification.
	CaptureTimeout time.Duration

	// SiteLatitude and SiteLongitude seed the RunInitialize command, in
	// degrees.
	SiteLatitude  float64
	SiteLongitude float64

	// WireLog, when set, names a file that receives every frame sent and
	// received on the session, one timestamped line each.
	WireLog string
}

func (c *Config) withDefaults() {
	if c.StatusInterval == 0 {
		c.StatusInterval = 2 * time.Second
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = 10 * time.Second
	}
	if c.SettleDelay == 0 {
		c.SettleDelay = 500 * time.Millisecond
	}
	if c.CaptureTimeout == 0 {
		c.CaptureTimeout = 30 * time.Second
	}
	if c.SiteLatitude == 0 {
		c.SiteLatitude = 52.2
	}
}

// exposureWait carries the synchronization for one in-flight exposure.
// done is closed when the capture file has been downloaded and decoded;
// abort is closed when the caller cancels the exposure.
type exposureWait struct {
	session   string
	done      chan struct{}
	abort     chan struct{}
	doneOnce  sync.Once
	abortOnce sync.Once
}

func (e *exposureWait) signalDone()  { e.doneOnce.Do(func() { close(e.done) }) }
func (e *exposureWait) signalAbort() { e.abortOnce.Do(func() { close(e.abort) }) }

// Client maintains the WebSocket session to an Origin telescope and exposes
// the mount and camera operations the Alpaca layer needs. All methods are
// safe for concurrent use; outbound frames are serialized, and the status
// snapshot is swapped wholesale under the state mutex.
type Client struct {
	config     Config
	logger     *zap.Logger
	httpClient *http.Client

	projector *Projector
	pending   *pendingTable
	seq       atomic.Int64

	// connectMu serializes Connect and Disconnect. The check-dial-install
	// sequence must be atomic: concurrent connect requests (the telescope
	// and camera devices share one backend) must never open a second
	// session.
	connectMu sync.Mutex

	// mu guards the connection state below.
	mu         sync.Mutex
	conn       *websocket.Conn
	connected  bool
	host       string
	status     TelescopeStatus
	lastImage  image.Image
	imageReady bool
	exposing   bool
	exp        *exposureWait
	stopCh     chan struct{}

	// writeMu serializes writes to the WebSocket; the status poll and
	// request handlers share the one connection.
	writeMu sync.Mutex

	events chan Event
	wg     sync.WaitGroup

	wireMu  sync.Mutex
	wireLog *os.File
}

// NewClient creates a disconnected client. Call Connect to open the device
// session.
func NewClient(config Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	config.withDefaults()

	c := &Client{
		config:     config,
		logger:     logger.With(zap.String("component", "origin_client")),
		httpClient: &http.Client{Timeout: 60 * time.Second},
		projector:  NewProjector(),
		pending:    newPendingTable(),
		events:     make(chan Event, 16),
	}
	c.seq.Store(firstSequenceID - 1)
	c.status.CurrentOperation = "Idle"
	return c
}

// Events returns the stream of typed lifecycle events. The channel is
// buffered; events are dropped rather than blocking the receive loop when
// nobody is listening.
func (c *Client) Events() <-chan Event {
	return c.events
}

// Connect opens the WebSocket session to the telescope and starts the
// status poll. It blocks for at most the configured connect timeout and
// reports failure through the returned error; an already-connected client
// returns nil.
func (c *Client) Connect(host string, port int) error {
	c.connectMu.Lock()
	defer c.connectMu.Unlock()

	c.mu.Lock()
	if c.connected {
		c.mu.Unlock()
		c.logger.Debug("Already connected to telescope")
		return nil
	}
	c.status.CurrentOperation = "Connecting"
	c.mu.Unlock()

	url := fmt.Sprintf("ws://%s:%d%s", host, port, endpointPath)
	c.logger.Info("Connecting to Origin telescope", zap.String("url", url))

	dialer := websocket.Dialer{HandshakeTimeout: c.config.ConnectTimeout}
	conn, _, err := dialer.Dial(url, nil)
	if err != nil {
		c.mu.Lock()
		c.status.CurrentOperation = "Idle"
		c.mu.Unlock()
		return fmt.Errorf("connecting to %s: %w", url, err)
	}

	c.openWireLog()

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.host = fmt.Sprintf("%s:%d", host, port)
	c.status = TelescopeStatus{Connected: true, CurrentOperation: "Idle", Temperature: 20.0}
	c.stopCh = make(chan struct{})
	stopCh := c.stopCh
	c.mu.Unlock()

	c.wg.Add(2)
	go c.readLoop(conn, stopCh)
	go c.pollLoop(stopCh)

	// Prime the caches before the first poll tick fires.
	if err := c.send(cmdGetStatus, destSystem, nil); err != nil {
		c.logger.Warn("Initial status request failed", zap.Error(err))
	}
	c.requestStatus()

	c.emit(EventConnected)
	return nil
}

// Disconnect closes the session and cancels the status poll. Status flags
// are forced to disconnected regardless of pending operations.
func (c *Client) Disconnect() {
	c.connectMu.Lock()
	defer c.connectMu.Unlock()

	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return
	}
	conn := c.conn
	exp := c.exp
	c.teardownLocked()
	c.mu.Unlock()

	if exp != nil {
		exp.signalAbort()
	}

	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	_ = conn.Close()

	c.closeWireLog()
	c.logger.Info("Disconnected from Origin telescope")
	c.emit(EventDisconnected)
}

// teardownLocked resets connection state. Caller holds mu.
func (c *Client) teardownLocked() {
	c.connected = false
	c.conn = nil
	c.status = TelescopeStatus{CurrentOperation: "Idle", Temperature: 20.0}
	c.exposing = false
	c.imageReady = false
	c.lastImage = nil
	c.exp = nil
	close(c.stopCh)
	c.pending.reset()
	c.projector.reset()
}

// IsConnected reports whether the device session is up.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Status returns the current snapshot.
func (c *Client) Status() TelescopeStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Telemetry returns the raw typed telemetry behind the status snapshot.
func (c *Client) Telemetry() TelescopeData {
	return c.projector.Data()
}

// Temperature returns the ambient temperature in Celsius.
func (c *Client) Temperature() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status.Temperature
}

// GotoPosition slews the mount to the given right ascension (hours) and
// declination (degrees). Non-blocking: the slewing flag is set
// optimistically and corrected by the next status poll.
func (c *Client) GotoPosition(raHours, decDegrees float64) error {
	err := c.send(cmdGotoRaDec, destMount, map[string]any{
		"Ra":  coords.HoursToRadians(raHours),
		"Dec": coords.DegreesToRadians(decDegrees),
	})
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.status.Slewing = true
	c.status.CurrentOperation = "Slewing"
	c.mu.Unlock()
	return nil
}

// SyncPosition recalibrates the mount's believed position without moving.
func (c *Client) SyncPosition(raHours, decDegrees float64) error {
	return c.send(cmdSyncToRaDec, destMount, map[string]any{
		"Ra":  coords.HoursToRadians(raHours),
		"Dec": coords.DegreesToRadians(decDegrees),
	})
}

// AbortMotion stops any axis movement in progress.
func (c *Client) AbortMotion() error {
	if err := c.send(cmdAbortAxisMovement, destMount, nil); err != nil {
		return err
	}
	c.mu.Lock()
	c.status.Slewing = false
	c.status.CurrentOperation = "Idle"
	c.mu.Unlock()
	return nil
}

// ParkMount moves the mount to its storage position.
func (c *Client) ParkMount() error {
	if err := c.send(cmdPark, destMount, nil); err != nil {
		return err
	}
	c.mu.Lock()
	c.status.Parked = true
	c.status.CurrentOperation = "Parking"
	c.mu.Unlock()
	return nil
}

// UnparkMount releases the mount from its storage position.
func (c *Client) UnparkMount() error {
	if err := c.send(cmdUnpark, destMount, nil); err != nil {
		return err
	}
	c.mu.Lock()
	c.status.Parked = false
	c.status.CurrentOperation = "Unparking"
	c.mu.Unlock()
	return nil
}

// InitializeTelescope starts the device's alignment routine, seeding it
// with the current date, time and the configured site location.
func (c *Client) InitializeTelescope() error {
	now := time.Now()
	err := c.send(cmdRunInitialize, destTaskController, map[string]any{
		"Date":           now.Format("02 01 2006"),
		"Time":           now.Format("15:04:05"),
		"TimeZone":       "UTC",
		"Latitude":       coords.DegreesToRadians(c.config.SiteLatitude),
		"Longitude":      coords.DegreesToRadians(c.config.SiteLongitude),
		"FakeInitialize": false,
	})
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.status.CurrentOperation = "Initializing"
	c.mu.Unlock()
	return nil
}

// SetTracking switches sidereal tracking on or off.
func (c *Client) SetTracking(enabled bool) error {
	command := cmdStopTracking
	if enabled {
		command = cmdStartTracking
	}
	if err := c.send(command, destMount, nil); err != nil {
		return err
	}
	c.mu.Lock()
	c.status.Tracking = enabled
	c.mu.Unlock()
	return nil
}

// MoveDirection starts manual motion in the given direction at a speed of
// 0-100.
func (c *Client) MoveDirection(direction Direction, speed int) error {
	axis, dir, err := direction.wire()
	if err != nil {
		return err
	}
	if speed < 0 || speed > 100 {
		return fmt.Errorf("speed %d out of range 0-100", speed)
	}
	return c.send(cmdMoveAxis, destMount, map[string]any{
		"Axis":      axis,
		"Direction": dir,
		"Speed":     speed,
	})
}

// IsExposing reports whether a capture is in flight.
func (c *Client) IsExposing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.exposing
}

// IsImageReady reports whether a decoded capture is available.
func (c *Client) IsImageReady() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.imageReady
}

// LastImage returns the most recent decoded capture, or nil.
func (c *Client) LastImage() image.Image {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastImage
}

// SingleShot runs one full capture: set parameters, start imaging, then
// block until the device announces the image and it has been downloaded and
// decoded, or until the deadline (exposure + capture timeout) passes. Abort
// and context cancellation wake the wait early. Only one capture may be in
// flight per client.
func (c *Client) SingleShot(ctx context.Context, gain, binning int, exposure time.Duration) (image.Image, error) {
	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return nil, ErrNotConnected
	}
	if c.exposing {
		c.mu.Unlock()
		return nil, ErrBusy
	}
	session := uuid.NewString()
	wait := &exposureWait{
		session: session,
		done:    make(chan struct{}),
		abort:   make(chan struct{}),
	}
	c.exposing = true
	c.imageReady = false
	c.exp = wait
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.exposing = false
		if c.exp == wait {
			c.exp = nil
		}
		c.mu.Unlock()
	}()

	err := c.send(cmdSetCaptureParameters, destCamera, map[string]any{
		"ISO":      gain,
		"Binning":  binning,
		"Exposure": exposure.Seconds(),
	})
	if err != nil {
		return nil, err
	}

	// Let the firmware latch the parameters before starting the run.
	select {
	case <-time.After(c.config.SettleDelay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	err = c.send(cmdRunImaging, destTaskController, map[string]any{
		"Name":         "AlpacaCapture_" + time.Now().Format("20060102_150405"),
		"Uuid":         session,
		"SaveRawImage": true,
	})
	if err != nil {
		return nil, err
	}

	deadline := exposure + c.config.CaptureTimeout
	timer := time.NewTimer(deadline)
	defer timer.Stop()

	select {
	case <-wait.done:
		c.mu.Lock()
		img := c.lastImage
		c.mu.Unlock()
		return img, nil
	case <-wait.abort:
		return nil, ErrAborted
	case <-timer.C:
		c.logger.Warn("Image capture timed out",
			zap.String("session", session),
			zap.Duration("deadline", deadline))
		return nil, ErrTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// AbortExposure cancels the current imaging run and wakes any SingleShot
// caller waiting on it, so the caller returns promptly instead of running
// out its deadline.
func (c *Client) AbortExposure() error {
	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return ErrNotConnected
	}
	exp := c.exp
	c.exposing = false
	c.mu.Unlock()

	if err := c.send(cmdCancelImaging, destTaskController, nil); err != nil {
		return err
	}
	if exp != nil {
		exp.signalAbort()
	}
	return nil
}

// send assembles and transmits one command frame, recording its sequence ID
// in the pending table.
func (c *Client) send(command, destination string, params map[string]any) error {
	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return ErrNotConnected
	}
	conn := c.conn
	c.mu.Unlock()

	sequenceID := int(c.seq.Add(1))
	data, err := encodeCommand(buildCommand(command, destination, sequenceID, params))
	if err != nil {
		return fmt.Errorf("encoding %s command: %w", command, err)
	}

	c.pending.record(sequenceID, command)

	c.writeMu.Lock()
	err = conn.WriteMessage(websocket.TextMessage, data)
	c.writeMu.Unlock()
	if err != nil {
		return fmt.Errorf("sending %s command: %w", command, err)
	}

	c.logWire("SEND", data)
	c.logger.Debug("Sent command",
		zap.String("command", command),
		zap.String("destination", destination),
		zap.Int("sequence_id", sequenceID))
	return nil
}

// readLoop drains the WebSocket until the connection drops or Disconnect
// closes it.
func (c *Client) readLoop(conn *websocket.Conn, stopCh chan struct{}) {
	defer c.wg.Done()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-stopCh:
				// Deliberate close.
			default:
				c.connectionLost(err)
			}
			return
		}
		c.logWire("RECV", raw)
		c.handleFrame(raw)
	}
}

// pollLoop requests fresh status on a fixed period for as long as the
// session lasts.
func (c *Client) pollLoop(stopCh chan struct{}) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.StatusInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			c.requestStatus()
		}
	}
}

func (c *Client) requestStatus() {
	for _, req := range []struct{ command, destination string }{
		{cmdGetStatus, destMount},
		{cmdGetStatus, destEnvironment},
		{cmdGetCaptureParameters, destCamera},
	} {
		if err := c.send(req.command, req.destination, nil); err != nil {
			c.logger.Debug("Status request failed", zap.Error(err))
			return
		}
	}
}

// handleFrame routes one inbound frame through the projector and reacts to
// whatever it updated.
func (c *Client) handleFrame(raw []byte) {
	update := c.projector.Process(raw)

	if update.SequenceID != 0 {
		if command, ok := c.pending.resolve(update.SequenceID); ok {
			c.logger.Debug("Correlated device reply",
				zap.Int("sequence_id", update.SequenceID),
				zap.String("command", command))
		}
	}

	switch update.Kind {
	case UpdateMount, UpdateEnvironment:
		c.refreshStatus()
	case UpdateImageReady:
		go c.handleImageReady(update.FilePath)
	}
}

// refreshStatus recomputes the public snapshot from the projected telemetry
// and publishes a statusUpdated event.
func (c *Client) refreshStatus() {
	data := c.projector.Data()

	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return
	}
	st := c.status
	st.Tracking = data.Mount.IsTracking
	st.Slewing = !data.Mount.IsGotoOver
	st.Aligned = data.Mount.IsAligned
	st.RightAscension = coords.RadiansToHours(data.Mount.Enc0)
	st.Declination = coords.RadiansToDegrees(data.Mount.Enc1)
	// The vendor stream reports encoder positions only; alt/az carry
	// fixed placeholder values. TODO: compute the equatorial-to-horizontal
	// transform from the site location and current sidereal time.
	st.Altitude = 45.0
	st.Azimuth = 180.0
	st.Temperature = data.Environment.AmbientTemperature

	switch {
	case st.Slewing:
		st.CurrentOperation = "Slewing"
	case st.Tracking:
		st.CurrentOperation = "Tracking"
	default:
		st.CurrentOperation = "Idle"
	}
	c.status = st
	c.mu.Unlock()

	c.emit(EventStatusUpdated)
}

// handleImageReady downloads and decodes the announced capture file, then
// wakes any waiting SingleShot call.
func (c *Client) handleImageReady(filePath string) {
	img, err := c.fetchImage(filePath)
	if err != nil {
		c.logger.Warn("Image download failed",
			zap.String("file", filePath),
			zap.Error(err))
		return
	}

	c.mu.Lock()
	c.lastImage = img
	c.imageReady = true
	exp := c.exp
	c.mu.Unlock()

	if exp != nil {
		exp.signalDone()
	}
	c.emit(EventImageReady)
}

// connectionLost handles an unexpected socket failure.
func (c *Client) connectionLost(err error) {
	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return
	}
	exp := c.exp
	c.teardownLocked()
	c.mu.Unlock()

	if exp != nil {
		exp.signalAbort()
	}

	c.logger.Warn("Telescope connection lost", zap.Error(err))
	c.closeWireLog()
	c.emit(EventDisconnected)
}

// emit publishes an event without ever blocking the caller; slow or absent
// consumers lose events rather than stalling the receive loop.
func (c *Client) emit(kind EventKind) {
	event := Event{Kind: kind, Status: c.Status()}
	select {
	case c.events <- event:
	default:
		c.logger.Debug("Event dropped, no consumer", zap.Stringer("kind", kind))
	}
}

func (c *Client) openWireLog() {
	if c.config.WireLog == "" {
		return
	}
	f, err := os.OpenFile(c.config.WireLog, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		c.logger.Warn("Cannot open wire log", zap.Error(err))
		return
	}
	c.wireMu.Lock()
	c.wireLog = f
	c.wireMu.Unlock()
}

func (c *Client) closeWireLog() {
	c.wireMu.Lock()
	defer c.wireMu.Unlock()
	if c.wireLog != nil {
		_ = c.wireLog.Close()
		c.wireLog = nil
	}
}

// logWire records one raw frame to the optional traffic log.
func (c *Client) logWire(direction string, payload []byte) {
	c.wireMu.Lock()
	defer c.wireMu.Unlock()
	if c.wireLog == nil {
		return
	}
	stamp := time.Now().Format("2006-01-02 15:04:05.000")
	fmt.Fprintf(c.wireLog, "[%s] %s: %s\n", stamp, direction, payload)
}

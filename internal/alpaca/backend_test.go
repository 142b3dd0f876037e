package alpaca

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jrrk2/origin-alpaca-gateway/internal/origin"
)

// fakeBackend records calls and serves canned state, standing in for the
// device gateway.
type fakeBackend struct {
	mu         sync.Mutex
	connected  bool
	status     origin.TelescopeStatus
	exposing   bool
	imageReady bool
	lastImage  image.Image
	calls      []string

	connectErr error
	opErr      error
	shotErr    error
	shotGain   int
	shotBin    int
	shotExp    time.Duration
}

func (f *fakeBackend) record(format string, args ...any) {
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
}

func (f *fakeBackend) Connect(host string, port int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("connect %s:%d", host, port)
	if f.connectErr != nil {
		return f.connectErr
	}
	f.connected = true
	f.status.Connected = true
	return nil
}

func (f *fakeBackend) Disconnect() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("disconnect")
	f.connected = false
	f.status.Connected = false
}

func (f *fakeBackend) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeBackend) Status() origin.TelescopeStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

func (f *fakeBackend) Temperature() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status.Temperature
}

func (f *fakeBackend) GotoPosition(ra, dec float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("goto %.4f %.4f", ra, dec)
	return f.opErr
}

func (f *fakeBackend) SyncPosition(ra, dec float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("sync %.4f %.4f", ra, dec)
	return f.opErr
}

func (f *fakeBackend) AbortMotion() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("abortmotion")
	return f.opErr
}

func (f *fakeBackend) ParkMount() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("park")
	return f.opErr
}

func (f *fakeBackend) UnparkMount() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("unpark")
	return f.opErr
}

func (f *fakeBackend) InitializeTelescope() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("initialize")
	return f.opErr
}

func (f *fakeBackend) SetTracking(enabled bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("tracking %v", enabled)
	if f.opErr == nil {
		f.status.Tracking = enabled
	}
	return f.opErr
}

func (f *fakeBackend) MoveDirection(direction origin.Direction, speed int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("move %d %d", direction, speed)
	return f.opErr
}

func (f *fakeBackend) IsExposing() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.exposing
}

func (f *fakeBackend) IsImageReady() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.imageReady
}

func (f *fakeBackend) LastImage() image.Image {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastImage
}

func (f *fakeBackend) SingleShot(ctx context.Context, gain, binning int, exposure time.Duration) (image.Image, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("shot")
	f.shotGain = gain
	f.shotBin = binning
	f.shotExp = exposure
	if f.shotErr != nil {
		return nil, f.shotErr
	}
	f.imageReady = true
	return f.lastImage, nil
}

func (f *fakeBackend) AbortExposure() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("abortexposure")
	if !f.connected {
		return origin.ErrNotConnected
	}
	return nil
}

func (f *fakeBackend) callList() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

func newTestServer(t *testing.T, backend Backend) *Server {
	t.Helper()
	config := &Config{TelescopeHost: "10.0.0.5", TelescopePort: 80, SiteLatitude: 52.2}
	server, err := NewServer(config, backend, zap.NewNop())
	require.NoError(t, err)
	return server
}

// doRequest runs one request through the router and decodes the envelope.
func doRequest(t *testing.T, router http.Handler, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var resp envelope
	if strings.Contains(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	}
	return w, resp
}

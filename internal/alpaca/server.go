package alpaca

import (
	"context"
	"fmt"
	"image"
	"net"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jrrk2/origin-alpaca-gateway/internal/origin"
)

// Backend is the device gateway the HTTP facade drives. *origin.Client
// implements it; tests substitute fakes.
type Backend interface {
	Connect(host string, port int) error
	Disconnect()
	IsConnected() bool
	Status() origin.TelescopeStatus
	Temperature() float64

	GotoPosition(raHours, decDegrees float64) error
	SyncPosition(raHours, decDegrees float64) error
	AbortMotion() error
	ParkMount() error
	UnparkMount() error
	InitializeTelescope() error
	SetTracking(enabled bool) error
	MoveDirection(direction origin.Direction, speed int) error

	IsExposing() bool
	IsImageReady() bool
	LastImage() image.Image
	SingleShot(ctx context.Context, gain, binning int, exposure time.Duration) (image.Image, error)
	AbortExposure() error
}

// Server is the Alpaca HTTP facade: one telescope and one camera device,
// both numbered 0, backed by a single Origin gateway.
type Server struct {
	config  *Config
	logger  *zap.Logger
	backend Backend

	// txCounter issues ServerTransactionID values. One counter for the
	// whole facade, bumped on every response regardless of endpoint.
	txCounter atomic.Int32

	// Slew targets set through targetrightascension/targetdeclination.
	targetMu     sync.Mutex
	targetRA     float64
	targetDec    float64
	targetRASet  bool
	targetDecSet bool

	// Duration of the last completed exposure.
	lastExposureMu sync.Mutex
	lastExposure   time.Duration

	beacon *DiscoveryBeacon
	stopCh chan struct{}
}

// NewServer creates the facade. The backend is not connected here; clients
// drive the device session through the connected endpoint.
func NewServer(config *Config, backend Backend, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &Server{
		config:  config,
		logger:  logger.With(zap.String("component", "alpaca_server")),
		backend: backend,
		stopCh:  make(chan struct{}),
	}, nil
}

// Start runs the discovery beacon and the HTTP server, blocking until the
// context is cancelled, Stop is called, or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	apiPort := listenPort(s.config.ListenAddress)

	s.beacon = NewDiscoveryBeacon(s.config.DiscoveryPort, apiPort, s.logger)
	if err := s.beacon.Start(); err != nil {
		return fmt.Errorf("starting discovery beacon: %w", err)
	}

	httpServer := &http.Server{
		Addr:        s.config.ListenAddress,
		Handler:     s.Router(),
		ReadTimeout: s.config.ReadTimeout,
		IdleTimeout: s.config.IdleTimeout,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("Alpaca HTTP server starting",
			zap.String("address", httpServer.Addr))
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			s.beacon.Stop()
			return fmt.Errorf("HTTP server error: %w", err)
		}
	case <-ctx.Done():
		s.logger.Info("Shutdown signal received")
	case <-s.stopCh:
		s.logger.Info("Server stop requested")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("Error during HTTP server shutdown", zap.Error(err))
	}

	s.beacon.Stop()
	s.logger.Info("Server shutdown complete")
	return nil
}

// Stop initiates a graceful shutdown of a running Start call.
func (s *Server) Stop() {
	close(s.stopCh)
}

// Router builds the gin engine with the full Alpaca routing table. Exposed
// separately from Start so tests can drive it with httptest.
func (s *Server) Router() *gin.Engine {
	if s.config.LogLevel == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(RecoveryMiddleware(s.logger))
	router.Use(LoggingMiddleware(s.logger))
	router.Use(CORSMiddleware())

	s.registerManagementRoutes(router)
	router.GET("/health", s.handleHealth)

	api := router.Group("/api/v1")
	s.registerTelescopeRoutes(api.Group("/telescope/0"))
	s.registerCameraRoutes(api.Group("/camera/0"))

	return router
}

// listenPort extracts the numeric port from a listen address, falling back
// to the conventional Alpaca port.
func listenPort(address string) int {
	_, portStr, err := net.SplitHostPort(address)
	if err != nil {
		return 11111
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port == 0 {
		return 11111
	}
	return port
}

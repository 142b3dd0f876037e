package alpaca

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jrrk2/origin-alpaca-gateway/internal/origin"
)

var cameraInfo = deviceInfo{
	name:             cameraDeviceName,
	description:      cameraDeviceName,
	driverInfo:       "Celestron Origin Camera Driver v1.0",
	driverVersion:    "1.0",
	interfaceVersion: 3,
}

// Alpaca camera states.
const (
	cameraStateIdle     = 0
	cameraStateExposing = 2
)

// cameraStatics describe the fixed Origin sensor: an IMX178-class color
// chip, 4144x2822 with 4.63 micron pixels, 16-bit samples, no binning, no
// cooler, no subframing.
var cameraStatics = map[string]any{
	"cameraxsize":          4144,
	"cameraysize":          2822,
	"pixelsizex":           4.63,
	"pixelsizey":           4.63,
	"sensorname":           "Origin Camera Sensor",
	"sensortype":           1, // color
	"maxadu":               65535,
	"binx":                 1,
	"biny":                 1,
	"maxbinx":              1,
	"maxbiny":              1,
	"numx":                 4144,
	"numy":                 2822,
	"startx":               0,
	"starty":               0,
	"gain":                 100,
	"gainmin":              0,
	"gainmax":              300,
	"gains":                gainSteps(),
	"exposuremin":          0.001,
	"exposuremax":          3600.0,
	"exposureresolution":   0.001,
	"canabortexposure":     true,
	"canstopexposure":      false,
	"canpulseguide":        false,
	"canasymmetricbin":     false,
	"canfastreadout":       false,
	"cangetcoolerpower":    false,
	"cansetccdtemperature": false,
	"cooleron":             false,
	"hasshutter":           false,
	"readoutmode":          0,
	"readoutmodes":         []string{"Normal"},
	"bayeroffsetx":         0,
	"bayeroffsety":         0,
}

func gainSteps() []int {
	steps := make([]int, 0, 31)
	for g := 0; g <= 300; g += 10 {
		steps = append(steps, g)
	}
	return steps
}

func (s *Server) registerCameraRoutes(g *gin.RouterGroup) {
	s.registerCommonRoutes(g, cameraInfo)

	for path, value := range cameraStatics {
		g.GET("/"+path, s.staticHandler(value))
	}

	// Frame geometry and gain are fixed; setting them is accepted and
	// ignored so conformance clients can run their set/get cycles.
	for _, path := range []string{"/binx", "/biny", "/numx", "/numy", "/startx", "/starty", "/gain"} {
		g.PUT(path, s.staticPutHandler())
	}

	g.GET("/camerastate", s.handleCameraState)
	g.GET("/imageready", s.handleImageReady)
	g.GET("/ccdtemperature", s.handleCCDTemperature)
	g.GET("/lastexposureduration", s.handleLastExposureDuration)
	g.PUT("/startexposure", s.handleStartExposure)
	g.PUT("/abortexposure", s.handleAbortExposure)
	g.GET("/imagearray", s.handleImageArray)
	g.GET("/imagearrayvariant", s.handleImageArray)
}

// staticPutHandler acknowledges a setter for a fixed property.
func (s *Server) staticPutHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		s.respond(c, parseTransaction(c), true)
	}
}

func (s *Server) handleCameraState(c *gin.Context) {
	state := cameraStateIdle
	if s.backend.IsExposing() {
		state = cameraStateExposing
	}
	s.respond(c, parseTransaction(c), state)
}

func (s *Server) handleImageReady(c *gin.Context) {
	s.respond(c, parseTransaction(c), s.backend.IsImageReady())
}

func (s *Server) handleCCDTemperature(c *gin.Context) {
	temperature := 20.0
	if s.backend.IsConnected() {
		temperature = s.backend.Temperature()
	}
	s.respond(c, parseTransaction(c), temperature)
}

func (s *Server) handleLastExposureDuration(c *gin.Context) {
	s.lastExposureMu.Lock()
	duration := s.lastExposure
	s.lastExposureMu.Unlock()
	s.respond(c, parseTransaction(c), duration.Seconds())
}

// handleStartExposure runs the full capture synchronously: the request
// blocks until the image has been taken, downloaded and decoded, or until
// the capture deadline passes.
func (s *Server) handleStartExposure(c *gin.Context) {
	tx := parseTransaction(c)
	params := parseBody(c)

	duration, err := params.float("Duration")
	if err != nil {
		s.respondError(c, errInvalidParams, err.Error())
		return
	}
	if duration <= 0 {
		s.respondError(c, errOutOfRange, "Invalid exposure duration")
		return
	}

	gain := 50
	if _, ok := params.get("Gain"); ok {
		if gain, err = params.integer("Gain"); err != nil {
			s.respondError(c, errInvalidParams, err.Error())
			return
		}
	}

	exposure := time.Duration(duration * float64(time.Second))
	_, err = s.backend.SingleShot(c.Request.Context(), gain, 1, exposure)
	switch {
	case err == nil:
		s.lastExposureMu.Lock()
		s.lastExposure = exposure
		s.lastExposureMu.Unlock()
		s.respond(c, tx, true)
	case err == origin.ErrNotConnected:
		s.respondError(c, errNotConnected, "Not connected to camera")
	case err == origin.ErrBusy:
		s.respondError(c, errGeneric, "An exposure is already in progress")
	case err == origin.ErrTimeout:
		s.logger.Warn("Exposure timed out", zap.Duration("exposure", exposure))
		s.respondError(c, errGeneric, "Exposure timed out")
	case err == origin.ErrAborted:
		s.respondError(c, errGeneric, "Exposure aborted")
	default:
		s.logger.Warn("Exposure failed", zap.Error(err))
		s.respondError(c, errGeneric, "Failed to start exposure")
	}
}

func (s *Server) handleAbortExposure(c *gin.Context) {
	tx := parseTransaction(c)
	if err := s.backend.AbortExposure(); err != nil {
		if err == origin.ErrNotConnected {
			s.respondError(c, errNotConnected, "Not connected to camera")
			return
		}
		s.respondError(c, errGeneric, "Failed to abort exposure")
		return
	}
	s.respond(c, tx, true)
}

// handleImageArray returns the captured frame, as the binary ImageBytes
// stream when the client advertises support for it and as a flat JSON array
// of 16-bit grayscale samples otherwise.
func (s *Server) handleImageArray(c *gin.Context) {
	tx := parseTransaction(c)
	if !s.backend.IsConnected() {
		s.respondError(c, errNotConnected, "Not connected to camera")
		return
	}
	if !s.backend.IsImageReady() {
		s.respondError(c, errGeneric, "No image is ready")
		return
	}
	img := s.backend.LastImage()
	if img == nil {
		s.respondError(c, errGeneric, "Failed to get image")
		return
	}

	if strings.Contains(strings.ToLower(c.GetHeader("Accept")), "application/imagebytes") {
		s.writeImageBytes(c, tx, img)
		return
	}

	pixels := grayscale16(img)
	s.respond(c, tx, pixels)
}

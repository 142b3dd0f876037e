package alpaca

import (
	"math"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jrrk2/origin-alpaca-gateway/internal/origin"
)

// deviceInfo holds the fixed identity strings of one Alpaca device.
type deviceInfo struct {
	name             string
	description      string
	driverInfo       string
	driverVersion    string
	interfaceVersion int
}

var telescopeInfo = deviceInfo{
	name:             "Celestron Origin",
	description:      telescopeDeviceName,
	driverInfo:       "Celestron Origin Alpaca Driver v1.0",
	driverVersion:    "1.0",
	interfaceVersion: 3,
}

// telescopeStatics are the capability and property endpoints that describe
// this one fixed device. The Origin is an alt-az GoTo mount with a 150 mm
// aperture; it cannot pulse guide and exposes no adjustable rates.
var telescopeStatics = map[string]any{
	"alignmentmode":            0, // alt-az
	"aperturearea":             math.Pi * 0.075 * 0.075,
	"aperturediameter":         0.150,
	"focallength":              0.335,
	"equatorialsystem":         1, // topocentric
	"athome":                   false,
	"ispulseguiding":           false,
	"sideofpier":               0,
	"siteelevation":            0.0,
	"slewsettletime":           0,
	"declinationrate":          0.0,
	"rightascensionrate":       0.0,
	"doesrefraction":           false,
	"guideratedeclination":     0.5,
	"guideraterightascension":  0.5,
	"trackingrate":             0, // sidereal
	"trackingrates":            []int{0},
	"canfindhome":              true,
	"canpark":                  true,
	"canunpark":                true,
	"canpulseguide":            false,
	"cansettracking":           true,
	"canslew":                  true,
	"canslewasync":             true,
	"canslewaltaz":             true,
	"canslewaltazasync":        true,
	"cansync":                  true,
	"cansyncaltaz":             true,
	"cansetdeclinationrate":    false,
	"cansetguiderates":         false,
	"cansetpark":               false,
	"cansetpierside":           false,
	"cansetrightascensionrate": false,
}

func (s *Server) registerTelescopeRoutes(g *gin.RouterGroup) {
	s.registerCommonRoutes(g, telescopeInfo)

	for path, value := range telescopeStatics {
		g.GET("/"+path, s.staticHandler(value))
	}

	g.GET("/altitude", s.statusField(func(st origin.TelescopeStatus) any { return st.Altitude }))
	g.GET("/azimuth", s.statusField(func(st origin.TelescopeStatus) any { return st.Azimuth }))
	g.GET("/rightascension", s.statusField(func(st origin.TelescopeStatus) any { return st.RightAscension }))
	g.GET("/declination", s.statusField(func(st origin.TelescopeStatus) any { return st.Declination }))
	g.GET("/slewing", s.statusField(func(st origin.TelescopeStatus) any { return st.Slewing }))
	g.GET("/atpark", s.statusField(func(st origin.TelescopeStatus) any { return st.Parked }))
	g.GET("/tracking", s.statusField(func(st origin.TelescopeStatus) any { return st.Tracking }))
	g.PUT("/tracking", s.handleTrackingPut)

	g.GET("/utcdate", s.handleUTCDate)
	g.GET("/sitelatitude", s.staticHandler(s.config.SiteLatitude))
	g.GET("/sitelongitude", s.staticHandler(s.config.SiteLongitude))
	g.GET("/canmoveaxis", s.handleCanMoveAxis)
	g.GET("/axisrates", s.handleAxisRates)

	g.PUT("/abortslew", s.mountAction(func(b Backend) error { return b.AbortMotion() }, "Failed to abort slew"))
	g.PUT("/park", s.mountAction(func(b Backend) error { return b.ParkMount() }, "Failed to park telescope"))
	g.PUT("/unpark", s.mountAction(func(b Backend) error { return b.UnparkMount() }, "Failed to unpark telescope"))
	g.PUT("/findhome", s.mountAction(func(b Backend) error { return b.InitializeTelescope() }, "Failed to initialize telescope"))

	g.PUT("/slewtocoordinates", s.coordinateAction(Backend.GotoPosition, "Failed to slew to coordinates"))
	g.PUT("/slewtocoordinatesasync", s.coordinateAction(Backend.GotoPosition, "Failed to slew to coordinates"))
	g.PUT("/synctocoordinates", s.coordinateAction(Backend.SyncPosition, "Failed to sync to coordinates"))

	g.PUT("/slewtoaltaz", s.altAzAction(Backend.GotoPosition, "Failed to slew to coordinates"))
	g.PUT("/slewtoaltazasync", s.altAzAction(Backend.GotoPosition, "Failed to slew to coordinates"))
	g.PUT("/synctoaltaz", s.altAzAction(Backend.SyncPosition, "Failed to sync to coordinates"))

	g.GET("/targetrightascension", s.handleTargetRAGet)
	g.PUT("/targetrightascension", s.handleTargetRAPut)
	g.GET("/targetdeclination", s.handleTargetDecGet)
	g.PUT("/targetdeclination", s.handleTargetDecPut)
	g.PUT("/slewtotarget", s.targetAction(Backend.GotoPosition, "Failed to slew to target"))
	g.PUT("/slewtotargetasync", s.targetAction(Backend.GotoPosition, "Failed to slew to target"))
	g.PUT("/synctotarget", s.targetAction(Backend.SyncPosition, "Failed to sync to target"))

	g.PUT("/moveaxis", s.handleMoveAxis)
	g.PUT("/pulseguide", s.handlePulseGuide)
}

// registerCommonRoutes wires the endpoints shared by the telescope and
// camera device paths.
func (s *Server) registerCommonRoutes(g *gin.RouterGroup, info deviceInfo) {
	g.GET("/connected", s.handleConnectedGet)
	g.PUT("/connected", s.handleConnectedPut)
	g.GET("/name", s.staticHandler(info.name))
	g.GET("/description", s.staticHandler(info.description))
	g.GET("/driverinfo", s.staticHandler(info.driverInfo))
	g.GET("/driverversion", s.staticHandler(info.driverVersion))
	g.GET("/interfaceversion", s.staticHandler(info.interfaceVersion))
	g.GET("/supportedactions", s.staticHandler([]string{}))

	for _, path := range []string{"/action", "/commandblind", "/commandbool", "/commandstring"} {
		g.PUT(path, s.handleUnknownAction)
	}
}

// staticHandler serves a fixed value.
func (s *Server) staticHandler(value any) gin.HandlerFunc {
	return func(c *gin.Context) {
		s.respond(c, parseTransaction(c), value)
	}
}

// statusField serves one field of the telescope status snapshot, failing
// with 1031 when the device session is down.
func (s *Server) statusField(pick func(origin.TelescopeStatus) any) gin.HandlerFunc {
	return func(c *gin.Context) {
		tx := parseTransaction(c)
		if !s.backend.IsConnected() {
			s.respondError(c, errNotConnected, "Not connected to telescope")
			return
		}
		s.respond(c, tx, pick(s.backend.Status()))
	}
}

// mountAction runs a parameterless mount operation.
func (s *Server) mountAction(op func(Backend) error, failMessage string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tx := parseTransaction(c)
		if !s.backend.IsConnected() {
			s.respondError(c, errNotConnected, "Not connected to telescope")
			return
		}
		if err := op(s.backend); err != nil {
			s.logger.Warn(failMessage, zap.Error(err))
			s.respondError(c, errGeneric, failMessage)
			return
		}
		s.respond(c, tx, true)
	}
}

// coordinateAction parses and validates RightAscension/Declination, then
// runs the given positional operation.
func (s *Server) coordinateAction(op func(Backend, float64, float64) error, failMessage string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tx := parseTransaction(c)
		if !s.backend.IsConnected() {
			s.respondError(c, errNotConnected, "Not connected to telescope")
			return
		}
		params := parseBody(c)
		ra, err := params.float("RightAscension")
		if err != nil {
			s.respondError(c, errInvalidParams, err.Error())
			return
		}
		dec, err := params.float("Declination")
		if err != nil {
			s.respondError(c, errInvalidParams, err.Error())
			return
		}
		if ra < 0 || ra >= 24 {
			s.respondError(c, errOutOfRange, "Invalid RightAscension value")
			return
		}
		if dec < -90 || dec > 90 {
			s.respondError(c, errOutOfRange, "Invalid Declination value")
			return
		}
		if err := op(s.backend, ra, dec); err != nil {
			s.logger.Warn(failMessage, zap.Error(err))
			s.respondError(c, errGeneric, failMessage)
			return
		}
		s.respond(c, tx, true)
	}
}

// altAzAction parses Azimuth/Altitude and maps them onto the equatorial
// operation. The mount aligns in alt-az but only accepts RA/Dec gotos, so
// azimuth is folded into hours and altitude into degrees of declination.
// This is the approximation the device's own integration uses.
func (s *Server) altAzAction(op func(Backend, float64, float64) error, failMessage string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tx := parseTransaction(c)
		if !s.backend.IsConnected() {
			s.respondError(c, errNotConnected, "Not connected to telescope")
			return
		}
		params := parseBody(c)
		az, err := params.float("Azimuth")
		if err != nil {
			s.respondError(c, errInvalidParams, err.Error())
			return
		}
		alt, err := params.float("Altitude")
		if err != nil {
			s.respondError(c, errInvalidParams, err.Error())
			return
		}
		if az < 0 || az >= 360 {
			s.respondError(c, errOutOfRange, "Invalid Azimuth value")
			return
		}
		if alt < 0 || alt > 90 {
			s.respondError(c, errOutOfRange, "Invalid Altitude value")
			return
		}
		if err := op(s.backend, az/15.0, alt); err != nil {
			s.logger.Warn(failMessage, zap.Error(err))
			s.respondError(c, errGeneric, failMessage)
			return
		}
		s.respond(c, tx, true)
	}
}

// targetAction runs a positional operation against the stored slew target.
func (s *Server) targetAction(op func(Backend, float64, float64) error, failMessage string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tx := parseTransaction(c)
		if !s.backend.IsConnected() {
			s.respondError(c, errNotConnected, "Not connected to telescope")
			return
		}
		s.targetMu.Lock()
		ra, dec := s.targetRA, s.targetDec
		set := s.targetRASet && s.targetDecSet
		s.targetMu.Unlock()
		if !set {
			s.respondError(c, errInvalidParams, "Target coordinates have not been set")
			return
		}
		if err := op(s.backend, ra, dec); err != nil {
			s.logger.Warn(failMessage, zap.Error(err))
			s.respondError(c, errGeneric, failMessage)
			return
		}
		s.respond(c, tx, true)
	}
}

func (s *Server) handleTrackingPut(c *gin.Context) {
	tx := parseTransaction(c)
	if !s.backend.IsConnected() {
		s.respondError(c, errNotConnected, "Not connected to telescope")
		return
	}
	tracking, err := parseBody(c).boolean("Tracking")
	if err != nil {
		s.respondError(c, errInvalidParams, err.Error())
		return
	}
	if err := s.backend.SetTracking(tracking); err != nil {
		s.respondError(c, errGeneric, "Failed to set tracking")
		return
	}
	s.respond(c, tx, true)
}

func (s *Server) handleUTCDate(c *gin.Context) {
	s.respond(c, parseTransaction(c), time.Now().UTC().Format("2006-01-02T15:04:05.000Z"))
}

func (s *Server) handleCanMoveAxis(c *gin.Context) {
	tx := parseTransaction(c)
	axis, err := axisParam(c)
	if err != nil {
		s.respondError(c, errInvalidParams, err.Error())
		return
	}
	// Axes 0 (azimuth/RA) and 1 (altitude/dec) move; there is no rotator.
	s.respond(c, tx, axis == 0 || axis == 1)
}

func (s *Server) handleAxisRates(c *gin.Context) {
	tx := parseTransaction(c)
	axis, err := axisParam(c)
	if err != nil {
		s.respondError(c, errInvalidParams, err.Error())
		return
	}
	if axis != 0 && axis != 1 {
		s.respond(c, tx, []gin.H{})
		return
	}
	s.respond(c, tx, []gin.H{{"Minimum": 0.0, "Maximum": 1.0}})
}

// axisParam reads the Axis query or body parameter of the axis endpoints.
func axisParam(c *gin.Context) (int, error) {
	if v := c.Query("Axis"); v != "" {
		return requestParams{"axis": v}.integer("Axis")
	}
	return parseBody(c).integer("Axis")
}

// handleMoveAxis maps the signed Alpaca axis rate onto the Origin's named
// directions: axis 0 moves east/west, axis 1 north/south, and the rate
// magnitude becomes a 0-100 speed.
func (s *Server) handleMoveAxis(c *gin.Context) {
	tx := parseTransaction(c)
	if !s.backend.IsConnected() {
		s.respondError(c, errNotConnected, "Not connected to telescope")
		return
	}
	params := parseBody(c)
	axis, err := params.integer("Axis")
	if err != nil {
		s.respondError(c, errInvalidParams, err.Error())
		return
	}
	rate, err := params.float("Rate")
	if err != nil {
		s.respondError(c, errInvalidParams, err.Error())
		return
	}

	var direction origin.Direction
	switch {
	case axis == 0 && rate >= 0:
		direction = origin.East
	case axis == 0:
		direction = origin.West
	case axis == 1 && rate >= 0:
		direction = origin.North
	case axis == 1:
		direction = origin.South
	default:
		s.respondError(c, errOutOfRange, "Invalid Axis value")
		return
	}

	speed := int(math.Min(100, math.Abs(rate)*100))
	if err := s.backend.MoveDirection(direction, speed); err != nil {
		s.respondError(c, errGeneric, "Failed to move axis")
		return
	}
	s.respond(c, tx, true)
}

func (s *Server) handlePulseGuide(c *gin.Context) {
	s.respondError(c, errNotSupported, "Pulse guiding is not supported")
}

func (s *Server) handleUnknownAction(c *gin.Context) {
	action, _ := parseBody(c).get("Action")
	s.respondError(c, errActionUnknown, "Action not implemented: "+action)
}

func (s *Server) handleTargetRAGet(c *gin.Context) {
	tx := parseTransaction(c)
	s.targetMu.Lock()
	ra, set := s.targetRA, s.targetRASet
	s.targetMu.Unlock()
	if !set {
		s.respondError(c, errGeneric, "Target right ascension has not been set")
		return
	}
	s.respond(c, tx, ra)
}

func (s *Server) handleTargetRAPut(c *gin.Context) {
	tx := parseTransaction(c)
	ra, err := parseBody(c).float("TargetRightAscension")
	if err != nil {
		s.respondError(c, errInvalidParams, err.Error())
		return
	}
	if ra < 0 || ra >= 24 {
		s.respondError(c, errOutOfRange, "Invalid TargetRightAscension value")
		return
	}
	s.targetMu.Lock()
	s.targetRA = ra
	s.targetRASet = true
	s.targetMu.Unlock()
	s.respond(c, tx, true)
}

func (s *Server) handleTargetDecGet(c *gin.Context) {
	tx := parseTransaction(c)
	s.targetMu.Lock()
	dec, set := s.targetDec, s.targetDecSet
	s.targetMu.Unlock()
	if !set {
		s.respondError(c, errGeneric, "Target declination has not been set")
		return
	}
	s.respond(c, tx, dec)
}

func (s *Server) handleTargetDecPut(c *gin.Context) {
	tx := parseTransaction(c)
	dec, err := parseBody(c).float("TargetDeclination")
	if err != nil {
		s.respondError(c, errInvalidParams, err.Error())
		return
	}
	if dec < -90 || dec > 90 {
		s.respondError(c, errOutOfRange, "Invalid TargetDeclination value")
		return
	}
	s.targetMu.Lock()
	s.targetDec = dec
	s.targetDecSet = true
	s.targetMu.Unlock()
	s.respond(c, tx, true)
}

func (s *Server) handleConnectedGet(c *gin.Context) {
	s.respond(c, parseTransaction(c), s.backend.IsConnected())
}

// handleConnectedPut drives the device session: connecting when the client
// asks for a connection that is not up, disconnecting on the reverse. The
// response reports the resulting state.
func (s *Server) handleConnectedPut(c *gin.Context) {
	tx := parseTransaction(c)
	want, err := parseBody(c).boolean("Connected")
	if err != nil {
		s.respondError(c, errInvalidParams, err.Error())
		return
	}

	switch {
	case want && !s.backend.IsConnected():
		if err := s.backend.Connect(s.config.TelescopeHost, s.config.TelescopePort); err != nil {
			s.logger.Warn("Telescope connection failed",
				zap.String("host", s.config.TelescopeHost),
				zap.Error(err))
			s.respondError(c, errGeneric, "Failed to connect to telescope")
			return
		}
	case !want && s.backend.IsConnected():
		s.backend.Disconnect()
	}

	s.respond(c, tx, s.backend.IsConnected())
}

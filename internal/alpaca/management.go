package alpaca

import (
	"github.com/gin-gonic/gin"
)

// Server identity reported by the management API.
const (
	serverName          = "Celestron Origin Alpaca Gateway"
	serverManufacturer  = "OriginAlpaca"
	serverVersion       = "1.0"
	serverLocation      = "Local Network"
	telescopeDeviceName = "Celestron Origin Telescope"
	cameraDeviceName    = "Celestron Origin Camera"
)

// registerManagementRoutes wires the Alpaca management endpoints. Each is
// also mirrored under /api/v1/alpaca/management for clients that probe the
// API prefix instead of the root.
func (s *Server) registerManagementRoutes(router *gin.Engine) {
	routes := map[string]gin.HandlerFunc{
		"/management/apiversions":          s.handleAPIVersions,
		"/management/v1/description":       s.handleDescription,
		"/management/v1/configureddevices": s.handleConfiguredDevices,
	}
	for path, handler := range routes {
		router.GET(path, handler)
		router.GET("/api/v1/alpaca"+path, handler)
	}
}

func (s *Server) handleAPIVersions(c *gin.Context) {
	s.respond(c, parseTransaction(c), []int{1})
}

func (s *Server) handleDescription(c *gin.Context) {
	s.respond(c, parseTransaction(c), gin.H{
		"ServerName":          serverName,
		"Manufacturer":        serverManufacturer,
		"ManufacturerVersion": serverVersion,
		"Location":            serverLocation,
	})
}

func (s *Server) handleConfiguredDevices(c *gin.Context) {
	s.respond(c, parseTransaction(c), []gin.H{
		{
			"DeviceName":   telescopeDeviceName,
			"DeviceType":   "Telescope",
			"DeviceNumber": 0,
			"UniqueID":     "CelestronOrigin_Telescope_0",
		},
		{
			"DeviceName":   cameraDeviceName,
			"DeviceType":   "Camera",
			"DeviceNumber": 0,
			"UniqueID":     "CelestronOrigin_Camera_0",
		},
	})
}

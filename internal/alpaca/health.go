package alpaca

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// healthStatus classifies a component for the health endpoint.
type healthStatus string

const (
	statusHealthy  healthStatus = "healthy"
	statusDegraded healthStatus = "degraded"
)

// healthResult is one component's entry in the health report.
type healthResult struct {
	Status    healthStatus   `json:"status"`
	Message   string         `json:"message,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Details   map[string]any `json:"details,omitempty"`
}

// healthReport is the /health response body. It sits outside the Alpaca
// envelope so generic monitoring tools can scrape it.
type healthReport struct {
	Status     healthStatus            `json:"status"`
	Components map[string]healthResult `json:"components"`
	Timestamp  time.Time               `json:"timestamp"`
}

// handleHealth reports gateway health. A gateway with no telescope session
// is degraded, not unhealthy: the HTTP facade is still serving and a client
// can connect the device at any time.
func (s *Server) handleHealth(c *gin.Context) {
	now := time.Now().UTC()
	components := make(map[string]healthResult)

	telescope := healthResult{Status: statusHealthy, Timestamp: now}
	if s.backend.IsConnected() {
		status := s.backend.Status()
		telescope.Details = map[string]any{
			"right_ascension": status.RightAscension,
			"declination":     status.Declination,
			"slewing":         status.Slewing,
			"tracking":        status.Tracking,
			"parked":          status.Parked,
			"aligned":         status.Aligned,
			"exposing":        s.backend.IsExposing(),
		}
	} else {
		telescope.Status = statusDegraded
		telescope.Message = "telescope not connected"
	}
	components["telescope"] = telescope

	discovery := healthResult{Status: statusHealthy, Timestamp: now}
	if s.beacon == nil {
		discovery.Status = statusDegraded
		discovery.Message = "discovery beacon not running"
	}
	components["discovery"] = discovery

	overall := statusHealthy
	for _, result := range components {
		if result.Status == statusDegraded {
			overall = statusDegraded
		}
	}

	c.JSON(http.StatusOK, healthReport{
		Status:     overall,
		Components: components,
		Timestamp:  now,
	})
}

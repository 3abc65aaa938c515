package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"probikes/internal/core"
)

func (s *Server) dashboardJobs(c *gin.Context) {
	jobs, err := s.svc.DashboardJobs(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, jobs)
}

func (s *Server) dashboardHistory(c *gin.Context) {
	jobs, err := s.svc.DashboardHistory(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, jobs)
}

func (s *Server) fullHistory(c *gin.Context) {
	services, err := s.svc.FullHistory(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, services)
}

func (s *Server) fleetStatus(c *gin.Context) {
	fleet, err := s.svc.FleetStatus(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, fleet)
}

// retentionAlerts lists alerts, or with ?bucketed=true splits them into
// urgent and upcoming.
func (s *Server) retentionAlerts(c *gin.Context) {
	alerts, err := s.svc.RetentionAlerts(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	if bucketed, _ := strconv.ParseBool(c.Query("bucketed")); bucketed {
		c.JSON(http.StatusOK, core.BucketAlerts(alerts))
		return
	}
	c.JSON(http.StatusOK, alerts)
}

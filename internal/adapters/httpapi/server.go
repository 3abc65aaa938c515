// Package httpapi exposes the workshop service over HTTP with gin.
package httpapi

import (
	"context"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"probikes/internal/core"
	"probikes/internal/logging"
	"probikes/pkg/domain"
)

// Config configures the router.
type Config struct {
	// Env is development, production or test. Production switches gin to
	// release mode.
	Env            string
	AllowedOrigins []string
	// JWTSecret enables HS256 bearer auth on /api when non-empty.
	JWTSecret string
	// Gatherer backs /metrics; nil uses the default registry.
	Gatherer prometheus.Gatherer
}

// Reloader re-reads the persisted document. Persistent stores implement it.
type Reloader interface {
	Reload(ctx context.Context) (domain.MigrationReport, error)
}

// Server routes HTTP requests onto a core.Service.
type Server struct {
	svc      *core.Service
	log      logging.Logger
	validate *validator.Validate
	reloader Reloader
	engine   *gin.Engine
}

// New builds the router. When the service store implements Reloader, stale
// revision conflicts trigger a reload and POST /api/system/reload is mounted.
func New(svc *core.Service, cfg Config, log logging.Logger) *Server {
	switch cfg.Env {
	case "production":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	}
	s := &Server{
		svc:      svc,
		log:      logging.OrNop(log),
		validate: validator.New(validator.WithRequiredStructEnabled()),
		engine:   gin.New(),
	}
	if r, ok := svc.Store().(Reloader); ok {
		s.reloader = r
	}

	r := s.engine
	r.Use(gin.Recovery(), requestID(), s.accessLog())
	r.Use(cors.New(corsConfig(cfg.AllowedOrigins)))

	gatherer := cfg.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	if cfg.JWTSecret != "" {
		api.Use(bearerAuth([]byte(cfg.JWTSecret)))
	}
	api.GET("/system", s.systemInfo)
	if s.reloader != nil {
		api.POST("/system/reload", s.reload)
	}

	clients := api.Group("/clients")
	{
		clients.GET("", s.listClients)
		clients.POST("", s.createClient)
		clients.GET("/:id", s.getClient)
		clients.PUT("/:id", s.updateClient)
		clients.DELETE("/:id", s.deleteClient)
		clients.GET("/:id/bikes", s.clientBikes)
		clients.GET("/:id/services", s.clientServices)
		clients.GET("/:id/reminders", s.clientReminders)
	}

	bikes := api.Group("/bikes")
	{
		bikes.GET("", s.listBikes)
		bikes.POST("", s.createBike)
		bikes.GET("/:id", s.getBike)
		bikes.PUT("/:id", s.updateBike)
		bikes.DELETE("/:id", s.deleteBike)
		bikes.GET("/:id/services", s.bikeServices)
		bikes.GET("/:id/reminders", s.bikeReminders)
		bikes.POST("/:id/reminders/dedupe", s.dedupeBikeReminders)
	}

	services := api.Group("/services")
	{
		services.POST("", s.createService)
		services.GET("/:id", s.getService)
		services.PUT("/:id", s.updateService)
		services.DELETE("/:id", s.deleteService)
		services.PUT("/:id/status", s.updateServiceStatus)
		services.POST("/:id/finalize", s.finalizeService)
	}

	reminders := api.Group("/reminders")
	{
		reminders.POST("", s.upsertReminders)
		reminders.GET("/alerts", s.retentionAlerts)
		reminders.GET("/:id", s.getReminder)
		reminders.PUT("/:id", s.updateReminder)
		reminders.DELETE("/:id", s.deleteReminder)
	}

	api.GET("/dashboard/jobs", s.dashboardJobs)
	api.GET("/dashboard/history", s.dashboardHistory)
	api.GET("/history/full", s.fullHistory)
	api.GET("/fleet", s.fleetStatus)

	backups := api.Group("/backups")
	{
		backups.GET("", s.listBackups)
		backups.GET("/export", s.exportBackup)
		backups.POST("/import", s.importBackup)
		backups.GET("/url", s.backupURL)
		backups.POST("/restore", s.restoreBackup)
	}
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.engine.ServeHTTP(w, r)
}

// Engine exposes the gin engine.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", requestIDHeader},
		ExposeHeaders: []string{"Content-Length", "Content-Disposition", requestIDHeader},
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg
}

func (s *Server) systemInfo(c *gin.Context) {
	info, err := s.svc.SystemInfo(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

func (s *Server) reload(c *gin.Context) {
	report, err := s.reloader.Reload(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

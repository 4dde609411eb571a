package routes

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/tradersage/bastion/internal/aegis"
	"github.com/tradersage/bastion/internal/api/handlers"
	"github.com/tradersage/bastion/internal/api/middleware"
	"github.com/tradersage/bastion/internal/config"
	"github.com/tradersage/bastion/internal/metrics"
	"github.com/tradersage/bastion/internal/models"
	"github.com/tradersage/bastion/internal/services"
)

// Register wires up the middleware chain and the versioned API routes, and
// performs automatic migrations. The returned engine is started and stopped
// by the caller.
func Register(router *gin.Engine, db *gorm.DB, cfg config.Config) (*aegis.Engine, error) {
	if err := db.AutoMigrate(&models.SecurityEvent{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}

	notifier := services.NewNotifierService(cfg.Security.NotifyURLs)
	events := services.NewEventService(db, notifier)
	sessions := services.NewSessionService(cfg.Security.JWTSecret)

	engine := aegis.New(aegis.Config{
		MaxPayloadBytes: cfg.Security.MaxPayloadBytes,
		SweepInterval:   cfg.Security.SweepInterval,
		BotDetection:    cfg.Security.BotDetection,
		Sink:            events,
	})

	registry := prometheus.NewRegistry()
	metrics.Register(registry)

	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.Recovery(cfg.Environment == "development"))
	router.Use(middleware.SecurityHeaders(middleware.SecurityHeadersConfig{
		IsDevelopment: cfg.Environment == "development",
	}))
	router.Use(middleware.Session(sessions))
	router.Use(middleware.Guard(engine))
	router.Use(middleware.CSRF(engine))

	router.GET("/api/v1/health", handlers.HealthHandler)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	api := router.Group("/api/v1")

	sessionHandler := handlers.NewSessionHandler(engine, sessions)
	api.POST("/session", sessionHandler.Create)
	api.POST("/session/csrf", sessionHandler.RotateCSRF)

	securityHandler := handlers.NewSecurityHandler(engine, events)
	api.GET("/security/report", securityHandler.GetReport)
	api.GET("/security/events", securityHandler.ListEvents)
	api.POST("/security/validate", securityHandler.ValidateInput)

	return engine, nil
}

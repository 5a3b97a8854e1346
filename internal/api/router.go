package api

import (
	"log/slog"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/welldanyogia/webrana-cms-backend/internal/api/handlers"
	"github.com/welldanyogia/webrana-cms-backend/internal/api/middleware"
	"github.com/welldanyogia/webrana-cms-backend/internal/attachment"
	"github.com/welldanyogia/webrana-cms-backend/internal/content"
	"github.com/welldanyogia/webrana-cms-backend/internal/events"
	"github.com/welldanyogia/webrana-cms-backend/internal/logger"
	"gorm.io/gorm"
)

// RouterConfig holds dependencies for the router
type RouterConfig struct {
	DB           *gorm.DB
	Attachments  attachment.Service
	Content      content.Processor
	Sweeper      handlers.Sweeper
	Hub          *events.Hub
	Upgrader     websocket.Upgrader
	HealthChecks map[string]handlers.Checker
	Logger       *slog.Logger
	Security     *logger.SecurityLogger

	APIKey         string   // empty disables authentication
	AllowedOrigins []string // CORS origins
	AppEnv         string
	RateLimiter    *middleware.IPRateLimiter
	BodyLimit      string // upload body cap such as "12M"; empty disables it
}

// NewRouter creates and configures the Echo router with all routes
func NewRouter(cfg *RouterConfig) *echo.Echo {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Order matters: recover first, then tag, then protect
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.SecureHeaders())
	e.Use(middleware.SecureCORS(cfg.AllowedOrigins, cfg.AppEnv))
	if cfg.RateLimiter != nil {
		e.Use(middleware.RateLimiter(cfg.RateLimiter, cfg.Security))
	}
	e.Use(middleware.RequestLogger(cfg.Logger))

	healthHandler := handlers.NewHealthHandler(cfg.DB, cfg.HealthChecks)
	attachmentHandler := handlers.NewAttachmentHandler(cfg.Attachments, cfg.Security, cfg.Logger)
	fileHandler := handlers.NewFileHandler(cfg.Attachments, cfg.Security)
	contentHandler := handlers.NewContentHandler(cfg.Content)

	// Health routes (no auth required)
	e.GET("/health", healthHandler.Health)
	e.GET("/ready", healthHandler.Ready)

	// Public files are addressed by unguessable canonical paths
	public := e.Group(cfg.Attachments.Layout().PublicPrefix)
	public.GET("/*", fileHandler.Serve)
	public.HEAD("/*", fileHandler.Serve)

	api := e.Group("/api")
	api.Use(middleware.APIKeyAuth(cfg.APIKey, cfg.Security))

	attachments := api.Group("/attachments")
	if cfg.BodyLimit != "" {
		attachments.POST("", attachmentHandler.Upload, middleware.BodyLimit(cfg.BodyLimit))
	} else {
		attachments.POST("", attachmentHandler.Upload)
	}
	attachments.POST("/associate", attachmentHandler.Associate)
	attachments.GET("/:id", attachmentHandler.Get)
	attachments.GET("/:id/content", attachmentHandler.Content)
	attachments.DELETE("/:id", attachmentHandler.Delete)

	owners := api.Group("/owners/:owner_type/:owner_id")
	owners.GET("/attachments", attachmentHandler.ListByOwner)
	owners.DELETE("/attachments", attachmentHandler.DeleteByOwner)

	contentRoutes := api.Group("/content")
	contentRoutes.POST("/process", contentHandler.Process)
	contentRoutes.POST("/reconstruct", contentHandler.Reconstruct)
	contentRoutes.POST("/attachment-ids", contentHandler.AttachmentIDs)

	if cfg.Sweeper != nil {
		retentionHandler := handlers.NewRetentionHandler(cfg.Sweeper, cfg.Logger)
		api.POST("/retention/sweep", retentionHandler.Sweep)
		api.GET("/retention/report", retentionHandler.Report)
	}

	if cfg.Hub != nil {
		eventsHandler := handlers.NewEventsHandler(cfg.Hub, cfg.Upgrader, cfg.Logger)
		api.GET("/events", eventsHandler.Connect)
	}

	return e
}

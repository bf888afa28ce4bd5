package main

import (
	"oauth2-server/internal/handler"
	"oauth2-server/internal/middleware"
	"oauth2-server/internal/store"
	"oauth2-server/pkg/config"
	"oauth2-server/pkg/database"
	"oauth2-server/pkg/logger"
	"oauth2-server/prometheus"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

func main() {
	// Load configuration from .env file and environment variables
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger with config
	logger.InitLogger(cfg)
	log := logger.GetLogger()
	log.Info("Starting OAuth2 authorization server...", zap.String("environment", cfg.Server.Env))

	// Open database and migrate the entity tables
	db, err := database.Open(cfg)
	if err != nil {
		log.Fatal("Failed to initialize database", zap.Error(err))
	}
	log.Info("Database connection established and migrations completed")

	// The store handle is constructed once and shared by reference
	st, err := store.New(db)
	if err != nil {
		log.Fatal("Failed to initialize store", zap.Error(err))
	}
	st.GrantTTL = cfg.OAuth.GrantTTL

	// Initialize Prometheus metrics
	prometheus.InitMetrics(cfg)
	log.Info("Prometheus metrics initialized")

	h := handler.New(st)

	// Initialize Echo framework
	e := echo.New()

	// Apply global middleware - order matters
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())
	e.Use(middleware.RequestIDMiddleware)
	e.Use(logger.Middleware(log))
	e.Use(prometheus.MetricsMiddleware())

	// Public routes - no authentication required
	e.GET("/", h.Hello)
	e.GET("/health", h.HealthCheck)
	e.GET("/metrics", prometheus.HandlerFunc())

	// OAuth2 routes
	oauth := e.Group("/oauth")

	// Client registration and administration
	clients := oauth.Group("/clients")
	clients.POST("", h.RegisterClient)
	clients.GET("", h.ListClients)
	clients.GET("/:id", h.GetClient)
	clients.PUT("/:id", h.UpdateClient)
	clients.DELETE("/:id", h.DeleteClient)
	clients.POST("/:id/revoke", h.RevokeClient)

	// Interactive authorization flow
	authorize := oauth.Group("/authorize")
	authorize.POST("", h.CreateAuthRequest)
	authorize.POST("/:id/grant", h.GrantAuthRequest)
	authorize.POST("/:id/deny", h.DenyAuthRequest)

	// Token endpoints
	clientAuth := middleware.ClientAuth(st)
	oauth.POST("/token", h.IssueToken, clientAuth)
	oauth.POST("/revoke", h.RevokeToken, clientAuth)
	oauth.POST("/introspect", h.IntrospectToken, clientAuth)
	oauth.GET("/tokens", h.ListTokens, clientAuth)
	oauth.GET("/stats", h.TokenStats)

	// Protected resource endpoints
	api := e.Group("/api")
	api.Use(middleware.BearerToken(st)) // All API routes require a valid access token

	// Start server
	port := cfg.Server.Port
	log.Info("Starting server", zap.String("port", port))
	if err := e.Start(":" + port); err != nil {
		log.Fatal("Failed to start server", zap.Error(err))
	}
}

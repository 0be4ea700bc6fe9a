package api

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/scriptguard/internal/api/auth"
	"github.com/scriptguard/internal/authoring"
	"github.com/scriptguard/internal/config"
	"github.com/scriptguard/internal/encoder"
	"github.com/scriptguard/internal/loader"
	"github.com/scriptguard/internal/store"
)

// Server represents the API server
type Server struct {
	echo      *echo.Echo
	cfg       *config.Config
	store     *store.Storage
	loader    *loader.Service
	authoring *authoring.Service
	tokens    *auth.TokenService
}

type requestValidator struct {
	validate *validator.Validate
}

func (v *requestValidator) Validate(i interface{}) error {
	return v.validate.Struct(i)
}

// NewServer creates a new API server
func NewServer(cfg *config.Config, db *sql.DB) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Validator = &requestValidator{validate: validator.New()}

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	storage := store.NewStorage(db)

	delivery := encoder.NewLuaLoader()
	obfuscator := encoder.NewObfuscator()
	if cfg.Delivery.Watermark != "" {
		delivery.Watermark = cfg.Delivery.Watermark
		obfuscator.Watermark = cfg.Delivery.Watermark
	}

	server := &Server{
		echo:      e,
		cfg:       cfg,
		store:     storage,
		loader:    loader.NewService(storage, delivery),
		authoring: authoring.NewService(storage, obfuscator),
		tokens:    auth.NewTokenService(cfg.Auth.JWTSecret, time.Duration(cfg.Auth.TokenTTLMinutes)*time.Minute),
	}

	server.setupRoutes()

	return server
}

// setupRoutes configures all API endpoints
func (s *Server) setupRoutes() {
	// Health check endpoint
	s.echo.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status": "healthy",
		})
	})
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Public loader endpoint, rate limited per client IP.
	s.echo.POST("/api/loader/authenticate", s.handleLoaderAuthenticate,
		blockBrowsers(), rateLimitByIP(s.cfg.Server.LoaderRateLimit, s.cfg.Server.LoaderRateBurst))

	authHandlers := auth.NewHandlers(s.tokens, s.store)
	s.echo.POST("/api/auth/login", authHandlers.Login)

	requireAuth := auth.RequireAuth(s.tokens, s.store)
	s.echo.GET("/api/auth/me", authHandlers.Me, requireAuth)

	// User endpoints (any authenticated account)
	user := s.echo.Group("/api/user", requireAuth)
	user.POST("/redeem", s.handleRedeemInvite)
	user.GET("/quota", s.handleQuotaStatus)

	// Admin endpoints
	admin := s.echo.Group("/api/admin", requireAuth, auth.RequireAdmin())

	admin.GET("/products", s.handleListProducts)
	admin.POST("/products", s.handleCreateProduct)
	admin.PUT("/products/:id", s.handleUpdateProduct)
	admin.DELETE("/products/:id", s.handleDeleteProduct)

	admin.GET("/licenses", s.handleListLicenses)
	admin.POST("/licenses", s.handleCreateLicense)
	admin.DELETE("/licenses/:id", s.handleDeleteLicense)
	admin.POST("/licenses/:id/reset-hwid", s.handleResetLicenseHwid)
	admin.POST("/licenses/:id/status", s.handleUpdateLicenseStatus)

	admin.GET("/hwid-bans", s.handleListBans)
	admin.POST("/hwid-bans", s.handleCreateBan)
	admin.DELETE("/hwid-bans/:id", s.handleDeleteBan)

	admin.GET("/scripts/:productId", s.handleGetScript)
	admin.POST("/scripts/:productId", s.handleSaveScript)

	admin.GET("/logs", s.handleListLogs)

	admin.POST("/invites", s.handleCreateInvite)
}

// Start begins the API server
func (s *Server) Start() error {
	go func() {
		addr := fmt.Sprintf(":%d", s.cfg.Server.Port)
		if err := s.echo.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("shutting down the server")
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return s.echo.Shutdown(ctx)
}

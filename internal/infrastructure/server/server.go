package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	echoSwagger "github.com/swaggo/echo-swagger"
	"golang.org/x/time/rate"

	_ "github.com/taskmaster/todos/docs"
	httpapi "github.com/taskmaster/todos/internal/adapters/http"
	"github.com/taskmaster/todos/internal/adapters/repository"
	"github.com/taskmaster/todos/internal/application/services"
	"github.com/taskmaster/todos/internal/domain/entities"
	"github.com/taskmaster/todos/internal/infrastructure/cache"
	"github.com/taskmaster/todos/internal/infrastructure/config"
	"github.com/taskmaster/todos/internal/infrastructure/database"
	"github.com/taskmaster/todos/internal/infrastructure/logger"
)

// Server represents the HTTP server
type Server struct {
	echo    *echo.Echo
	config  *config.Config
	logger  *logger.Logger
	db      *database.DB
	cache   *cache.UserCache
	metrics *metrics
}

// Handlers groups the HTTP handlers mounted under /api/v1
type Handlers struct {
	Auth  *httpapi.AuthHandler
	Users *httpapi.UserHandler
	Todos *httpapi.TodoHandler
}

// New creates a new server instance
func New(cfg *config.Config, db *database.DB, appLogger *logger.Logger) (*Server, error) {
	userCache, err := cache.NewUserCache(cfg.Cache.Size)
	if err != nil {
		return nil, err
	}

	store := repository.NewStore(db)

	authService := services.NewAuthService(store.Users, cfg.JWT, appLogger)
	userService := services.NewUserService(store.Users, store, userCache, cfg.Auth.BcryptCost, appLogger)
	todoService := services.NewTodoService(store.Todos, appLogger)

	handlers := Handlers{
		Auth:  httpapi.NewAuthHandler(authService, userService, appLogger),
		Users: httpapi.NewUserHandler(userService, appLogger),
		Todos: httpapi.NewTodoHandler(todoService, appLogger),
	}

	s := &Server{
		echo:   newEcho(appLogger),
		config: cfg,
		logger: appLogger,
		db:     db,
		cache:  userCache,
	}

	if cfg.Metrics.Enabled {
		s.metrics = newMetrics(userCache)
	}

	s.echo.Server.ReadTimeout = cfg.Server.ReadTimeout
	s.echo.Server.WriteTimeout = cfg.Server.WriteTimeout
	s.echo.Server.IdleTimeout = cfg.Server.IdleTimeout

	s.setupMiddleware()
	s.setupRoutes(handlers, authService)

	return s, nil
}

func newEcho(appLogger *logger.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = httpapi.NewRequestValidator()
	e.HTTPErrorHandler = httpapi.ErrorHandler(appLogger)
	return e
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware() {
	s.echo.Use(middleware.Recover())

	s.echo.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: func() string { return uuid.NewString() },
	}))

	if s.metrics != nil {
		s.echo.Use(s.metrics.middleware)
	}

	s.echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogLatency:   true,
		LogError:     true,
		LogRemoteIP:  true,
		LogUserAgent: true,
		LogRequestID: true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, values middleware.RequestLoggerValues) error {
			fields := []interface{}{
				"method", values.Method,
				"uri", values.URI,
				"status", values.Status,
				"latency_ms", float64(values.Latency.Nanoseconds()) / 1000000,
				"remote_ip", values.RemoteIP,
				"user_agent", values.UserAgent,
				"request_id", values.RequestID,
			}

			if values.Error != nil && values.Status >= http.StatusInternalServerError {
				fields = append(fields, "error", values.Error.Error())
				s.logger.Errorw("HTTP request failed", fields...)
			} else {
				s.logger.Infow("HTTP request", fields...)
			}

			return nil
		},
	}))

	s.echo.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: strings.Split(s.config.Security.CORSAllowedOrigins, ","),
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		AllowMethods: []string{http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPatch, http.MethodDelete},
	}))

	if s.config.Security.RateLimitRequests > 0 {
		window := s.config.Security.RateLimitWindow
		if window <= 0 {
			window = time.Minute
		}
		perSecond := rate.Limit(float64(s.config.Security.RateLimitRequests) / window.Seconds())
		s.echo.Use(middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
			Store: middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
				Rate:      perSecond,
				Burst:     s.config.Security.RateLimitRequests,
				ExpiresIn: window,
			}),
			IdentifierExtractor: func(c echo.Context) (string, error) {
				return c.RealIP(), nil
			},
			ErrorHandler: func(c echo.Context, err error) error {
				return c.JSON(http.StatusForbidden, httpapi.ErrorResponse{Message: "Rate limit identifier missing"})
			},
			DenyHandler: func(c echo.Context, identifier string, err error) error {
				return c.JSON(http.StatusTooManyRequests, httpapi.ErrorResponse{Message: "Rate limit exceeded"})
			},
		}))
	}

	s.echo.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		XSSProtection:      "1; mode=block",
		ContentTypeNosniff: "nosniff",
		XFrameOptions:      "DENY",
		HSTSMaxAge:         31536000,
	}))

	s.echo.Use(middleware.TimeoutWithConfig(middleware.TimeoutConfig{
		Timeout:      s.config.Server.RequestTimeout,
		ErrorMessage: `{"message":"Request timed out"}`,
	}))
}

// setupRoutes configures all routes
func (s *Server) setupRoutes(h Handlers, tokens TokenValidator) {
	s.echo.GET("/health", s.healthCheck)
	s.echo.GET("/health/detailed", s.detailedHealthCheck)
	s.echo.GET("/ready", s.readinessCheck)
	s.echo.GET("/docs/*", echoSwagger.WrapHandler)

	if s.metrics != nil {
		s.echo.GET("/metrics", s.metrics.handler())
	}

	RegisterAPI(s.echo.Group("/api/v1"), h, tokens, s.logger)
}

// RegisterAPI mounts the versioned API on g
func RegisterAPI(g *echo.Group, h Handlers, tokens TokenValidator, log *logger.Logger) {
	authenticated := Authenticate(tokens, log)
	adminOnly := RequireRole(entities.RoleAdmin, log)

	authGroup := g.Group("/auth")
	authGroup.POST("/register", h.Auth.Register)
	authGroup.POST("/login", h.Auth.Login)
	authGroup.GET("/me", h.Auth.Me, authenticated)

	userGroup := g.Group("/users", authenticated)
	userGroup.GET("", h.Users.ListUsers, adminOnly)
	userGroup.GET("/:id", h.Users.GetUser)
	userGroup.PATCH("/:id/role", h.Users.UpdateRole, adminOnly)

	todoGroup := g.Group("/todos", authenticated)
	todoGroup.GET("", h.Todos.ListTodos)
	todoGroup.POST("", h.Todos.CreateTodo)
	todoGroup.GET("/:id", h.Todos.GetTodo)
	todoGroup.PATCH("/:id", h.Todos.UpdateTodo)
	todoGroup.DELETE("/:id", h.Todos.DeleteTodo)
}

// Health check handlers
func (s *Server) healthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) detailedHealthCheck(c echo.Context) error {
	status := "ok"
	checks := make(map[string]interface{})

	if err := s.db.HealthCheck(c.Request().Context()); err != nil {
		status = "error"
		checks["database"] = map[string]interface{}{
			"status": "error",
			"error":  err.Error(),
		}
	} else {
		checks["database"] = map[string]interface{}{
			"status": "ok",
			"stats":  s.db.GetConnectionInfo(),
		}
	}

	checks["user_cache"] = s.cache.Stats()

	response := map[string]interface{}{
		"status":  status,
		"time":    time.Now().UTC().Format(time.RFC3339),
		"checks":  checks,
		"version": s.config.App.Version,
	}

	if status == "ok" {
		return c.JSON(http.StatusOK, response)
	}
	return c.JSON(http.StatusServiceUnavailable, response)
}

func (s *Server) readinessCheck(c echo.Context) error {
	if err := s.db.HealthCheck(c.Request().Context()); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"status": "not_ready",
			"reason": "database_not_ready",
		})
	}

	return c.JSON(http.StatusOK, map[string]string{
		"status": "ready",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	address := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.logger.Infow("Starting server", "address", address)
	return s.echo.Start(address)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Infow("Shutting down server")
	return s.echo.Shutdown(ctx)
}

// Package router provides HTTP routing, middleware configuration, and server setup for the web application
package router

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/amirphl/Susanoo/app/dto"
	"github.com/amirphl/Susanoo/app/handlers"
	"github.com/amirphl/Susanoo/app/middleware"
	"github.com/amirphl/Susanoo/config"
	_ "github.com/amirphl/Susanoo/docs"
	"github.com/amirphl/Susanoo/utils"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/limiter"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/gofiber/fiber/v3/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/swaggo/swag"
	"go.uber.org/zap"
)

// Router interface for HTTP routing
type Router interface {
	SetupRoutes()
	Start(address string) error
	Shutdown() error
	GetApp() *fiber.App
}

// Handlers groups the admin endpoint handlers
type Handlers struct {
	Commissions   handlers.CommissionHandlerInterface
	Distributions handlers.DistributionHandlerInterface
	Tiers         handlers.TierHandlerInterface
	WorkUnits     handlers.WorkUnitHandlerInterface
}

// FiberRouter implements Router using Fiber v3
type FiberRouter struct {
	app         *fiber.App
	handlers    Handlers
	security    config.SecurityConfig
	metricsCfg  config.MetricsConfig
	httpMetrics *middleware.HTTPMetrics
	gatherer    prometheus.Gatherer
	logger      *zap.Logger
}

// NewFiberRouter creates a new Fiber router. The registry backs both the HTTP collectors and /metrics.
func NewFiberRouter(h Handlers, cfg *config.ProductionConfig, registry *prometheus.Registry, logger *zap.Logger) Router {
	r := &FiberRouter{
		handlers:   h,
		security:   cfg.Security,
		metricsCfg: cfg.Metrics,
		gatherer:   registry,
		logger:     logger,
	}
	if cfg.Metrics.Enabled {
		r.httpMetrics = middleware.NewHTTPMetrics(registry)
	}

	r.app = fiber.New(fiber.Config{
		AppName:      "Susanoo Distribution Engine",
		ServerHeader: "Susanoo",
		ErrorHandler: r.errorHandler,
		BodyLimit:    cfg.Server.BodyLimit,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		JSONEncoder:  json.Marshal,
		JSONDecoder:  json.Unmarshal,
	})
	return r
}

// SetupRoutes configures all application routes
func (r *FiberRouter) SetupRoutes() {
	r.setupMiddleware()

	if r.metricsCfg.Enabled {
		r.app.Get(r.metricsCfg.Path, middleware.MetricsEndpoint(r.gatherer))
	}

	api := r.app.Group("/api/v1")
	api.Get("/health", r.healthCheck)
	api.Get("/swagger.json", r.serveSwaggerJSON)

	admin := api.Group("/admin")
	admin.Use(limiter.New(limiter.Config{
		Max:        600,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(dto.APIResponse{
				Success: false,
				Message: "Too many requests. Please try again later.",
				Error:   dto.ErrorDetail{Code: "RATE_LIMIT_EXCEEDED"},
			})
		},
	}))
	admin.Use(middleware.APIKey(r.security))

	admin.Post("/investments/:id/commissions", r.handlers.Commissions.ProcessCommissions)
	admin.Post("/investments/:id/withdrawals", r.handlers.Commissions.ProcessWithdrawal)
	admin.Post("/commissions/settle", r.handlers.Commissions.SettlePending)

	admin.Post("/distributions/annual", r.handlers.Distributions.DistributeAnnual)
	admin.Post("/distributions/quarterly", r.handlers.Distributions.DistributeQuarterlyBonus)
	admin.Get("/distributions/:id", r.handlers.Distributions.GetDistribution)
	admin.Get("/distributions/:id/report", r.handlers.Distributions.DownloadReport)

	admin.Post("/accounts/:id/tier", r.handlers.Tiers.UpgradeAccount)
	admin.Get("/accounts/:id/benefits", r.handlers.Tiers.Benefits)
	admin.Post("/tiers/sweep", r.handlers.Tiers.Sweep)

	admin.Get("/work-units/:uuid", r.handlers.WorkUnits.GetWorkUnit)

	r.app.Use(r.notFoundHandler)
	r.logger.Info("routes configured")
}

func (r *FiberRouter) setupMiddleware() {
	// Request ID middleware - must be first
	r.app.Use(requestid.New(requestid.Config{
		Header:    "X-Request-ID",
		Generator: generateRequestID,
	}))

	if r.httpMetrics != nil {
		r.app.Use(r.httpMetrics.Handler())
	}

	r.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(c fiber.Ctx, e any) {
			r.logger.Error("panic while serving request",
				zap.Any("panic", e),
				zap.Any("request_id", c.Locals("requestid")),
				zap.String("path", c.Path()),
				zap.String("method", c.Method()),
			)
		},
	}))
}

// Start starts the HTTP server
func (r *FiberRouter) Start(address string) error {
	r.logger.Info("starting server", zap.String("address", address))
	return r.app.Listen(address)
}

// Shutdown stops accepting connections and waits for in-flight requests
func (r *FiberRouter) Shutdown() error {
	return r.app.Shutdown()
}

// GetApp returns the Fiber app instance
func (r *FiberRouter) GetApp() *fiber.App {
	return r.app
}

func (r *FiberRouter) healthCheck(c fiber.Ctx) error {
	return c.JSON(dto.APIResponse{
		Success: true,
		Message: "Service is healthy",
		Data: fiber.Map{
			"status":    "ok",
			"timestamp": utils.UTCNow().Unix(),
			"service":   "susanoo",
		},
	})
}

func (r *FiberRouter) serveSwaggerJSON(c fiber.Ctx) error {
	doc, err := swag.ReadDoc()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.APIResponse{
			Success: false,
			Message: "Failed to load Swagger documentation",
			Error:   dto.ErrorDetail{Code: "SWAGGER_LOAD_ERROR"},
		})
	}
	c.Set("Content-Type", "application/json")
	return c.SendString(doc)
}

func (r *FiberRouter) notFoundHandler(c fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(dto.APIResponse{
		Success: false,
		Message: "The requested resource was not found",
		Error: dto.ErrorDetail{
			Code: "NOT_FOUND",
			Details: fiber.Map{
				"path":       c.Path(),
				"method":     c.Method(),
				"request_id": c.Locals("requestid"),
			},
		},
	})
}

// errorHandler renders errors that escape the handlers
func (r *FiberRouter) errorHandler(c fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}
	r.logger.Error("unhandled request error", zap.Int("status", code), zap.String("path", c.Path()), zap.Error(err))

	return c.Status(code).JSON(dto.APIResponse{
		Success: false,
		Message: "An internal server error occurred",
		Error: dto.ErrorDetail{
			Code: "INTERNAL_ERROR",
			Details: fiber.Map{
				"timestamp":  utils.UTCNow().Unix(),
				"request_id": c.Locals("requestid"),
			},
		},
	})
}

func generateRequestID() string {
	bytes := make([]byte, 8)
	_, _ = rand.Read(bytes)
	return hex.EncodeToString(bytes)
}

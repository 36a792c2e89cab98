package server

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
)

// RegisterRoutes configures all API routes, middleware, and error handlers
func RegisterRoutes(e *echo.Echo, h *Handlers, cfg ServerConfig) {
	// Set custom error handler for consistent JSON responses
	e.HTTPErrorHandler = NotFoundJSON()

	// Apply global middleware
	e.Use(SetJSONContentType) // Ensure all responses are JSON
	e.Use(SetNoCacheHeaders)  // Prevent caching of API responses

	// Optional API key authentication
	if cfg.APIKey != "" {
		e.Use(middleware.KeyAuthWithConfig(middleware.KeyAuthConfig{
			KeyLookup: "header:X-API-Key", // Look for API key in X-API-Key header
			Validator: func(key string, c echo.Context) (bool, error) {
				return key == cfg.APIKey, nil
			},
		}))
	}

	v1 := e.Group("/v1")
	v1.GET("/health", h.Health)
	v1.GET("/balances/:owner/:asset", h.Balance)

	// Pool reads
	pools := v1.Group("/pools")
	pools.GET("", h.ListPools)
	pools.GET("/:address", h.GetPool)
	pools.GET("/:address/quote", h.Quote)
	pools.GET("/:address/positions/:owner", h.Position)

	// Pool writes are rate limited per client IP
	var limit []echo.MiddlewareFunc
	if cfg.RateLimitRPS > 0 {
		burst := cfg.RateLimitBurst
		if burst <= 0 {
			burst = 1
		}
		limit = append(limit, middleware.RateLimiter(middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
			Rate:      rate.Limit(cfg.RateLimitRPS),
			Burst:     burst,
			ExpiresIn: 2 * time.Minute, // Rate limit window
		})))
	}
	pools.POST("", h.CreatePool, limit...)
	pools.POST("/:address/liquidity", h.AddLiquidity, limit...)
	pools.POST("/:address/withdraw", h.RemoveLiquidity, limit...)
	pools.POST("/:address/swap", h.Swap, limit...)

	// Development helpers
	if cfg.DevMode {
		v1.POST("/dev/fund", h.Fund)
	}

	// Catch-all route for 404 responses
	e.RouteNotFound("/*", func(c echo.Context) error {
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "not found", Code: http.StatusNotFound})
	})
}

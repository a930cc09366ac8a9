package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/flextalent-auth/internal/config"
	"github.com/iliyamo/flextalent-auth/internal/handler"
	"github.com/iliyamo/flextalent-auth/internal/middleware"
	"github.com/iliyamo/flextalent-auth/internal/session"
)

// RegisterRoutes registers routes that need neither authentication nor
// rate limiting. Currently that is only the health check used by load
// balancers.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuth wires the token endpoints and the protected group.
// Everything under /v1/auth is unauthenticated but rate limited: these
// routes trigger bcrypt work and outbound mail, so they sit behind the
// Redis token bucket. Protected endpoints live under /v1 behind the
// session cookie middleware.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, codec *session.Codec, rlCfg config.RateLimitConfig, rdb *redis.Client) {
	g := e.Group("/v1/auth")
	g.Use(middleware.NewTokenBucket(rlCfg, rdb))
	g.POST("/register", a.Register)
	g.POST("/verify-email", a.VerifyEmail)
	g.POST("/login", a.Login)
	g.POST("/logout", a.Logout)
	g.POST("/forgot-password", a.ForgotPassword)
	g.POST("/reset-password", a.ResetPassword)

	auth := e.Group("/v1")
	auth.Use(middleware.SessionAuth(codec))
	auth.Use(middleware.RequireRole("CANDIDATE", "EMPLOYER"))
	auth.GET("/me", a.Me)
}

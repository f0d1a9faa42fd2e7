package handler

import (
	"time"

	"token-launch-gateway/internal/adapter/http/middleware"
	"token-launch-gateway/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

const replayTTL = 24 * time.Hour

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	WorkflowSvc    ports.WorkflowService
	ReferralSvc    ports.ReferralService
	AuthSvc        ports.AuthService
	ReportingSvc   ports.ReportingService
	OperationsSvc  ports.OperationsService
	SigSvc         ports.SignatureService
	NonceStore     ports.NonceStore
	TokenSvc       ports.TokenService
	Frontend       middleware.FrontendCredentials
	ReplayCache    ports.IdempotencyCache // nil = redelivered updates run again
	RateLimitStore middleware.Counter     // nil = rate limiting disabled
	HealthCheckers []ports.HealthChecker
	AuditSvc       ports.AuditService // nil = audit logging disabled
	ReservationTTL time.Duration
	Mode           string
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	if deps.Mode != "" {
		gin.SetMode(deps.Mode)
	}
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit

	// Audit logging (after response)
	if deps.AuditSvc != nil {
		r.Use(middleware.AuditLog(deps.AuditSvc))
	}

	r.GET("/health", HealthCheck(deps.HealthCheckers...))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	rules := middleware.DefaultRateLimitRules()

	// Helper: return rate limiter middleware if store is available, else noop.
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		rule, ok := rules[group]
		if !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	replay := func(scope string) gin.HandlerFunc {
		if deps.ReplayCache == nil {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.Replay(deps.ReplayCache, scope, replayTTL, deps.Logger)
	}

	v1 := r.Group("/api/v1")

	// --- HMAC-authenticated routes (chat front-end) ---
	hmacAuth := middleware.HMACAuth(deps.Frontend, deps.SigSvc, deps.NonceStore, deps.Logger)

	sessionHandler := NewSessionHandler(deps.WorkflowSvc)
	sessions := v1.Group("/sessions", hmacAuth)
	{
		sessions.POST("", rl("sessions"), replay("draft-ready"), sessionHandler.Create)
		sessions.GET("/:id", rl("sessions"), sessionHandler.Get)
		sessions.POST("/:id/payment-check", rl("payment_check"), replay("payment-check"), sessionHandler.CheckPayment)
		sessions.DELETE("/:id", rl("sessions"), sessionHandler.Cancel)
	}

	userHandler := NewUserHandler(deps.ReferralSvc)
	users := v1.Group("/users", hmacAuth)
	{
		users.POST("", rl("users"), userHandler.Register)
		users.GET("/:id", rl("users"), userHandler.Get)
		users.PUT("/:id/payout-wallet", rl("users"), userHandler.SetPayoutWallet)
	}

	// --- Operator routes ---
	authHandler := NewAuthHandler(deps.AuthSvc)
	v1.POST("/admin/login", rl("admin_login"), authHandler.Login)

	jwtAuth := middleware.JWTAuth(deps.TokenSvc, deps.Logger)
	adminHandler := NewAdminHandler(deps.ReportingSvc, deps.OperationsSvc, deps.ReservationTTL)
	admin := v1.Group("/admin", jwtAuth, rl("admin"))
	{
		admin.GET("/stats", adminHandler.GetStats)
		admin.GET("/transactions", adminHandler.ListTransactions)
		admin.GET("/transactions/:signature", adminHandler.GetTransaction)
		admin.POST("/transactions/:signature/reset", adminHandler.ResetTransaction)
		admin.GET("/reservations", adminHandler.ListReservations)
		admin.POST("/reservations/sweep", adminHandler.SweepReservations)
		admin.DELETE("/reservations/:wallet", adminHandler.ReleaseReservation)
		admin.GET("/users/:id/stats", adminHandler.UserStats)
	}

	return r
}

package handler

import (
	"net/http"

	"chainpay-reconciler/internal/adapter/http/middleware"
	redisStore "chainpay-reconciler/internal/adapter/storage/redis"
	"chainpay-reconciler/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	TransferSvc    ports.TransferService
	ReconcileSvc   ports.ReconcileService
	QuerySvc       ports.TransactionQueryService
	LedgerSvc      ports.LedgerService
	TokenSvc       ports.TokenService
	RateLimitStore *redisStore.RateLimitStore // nil = rate limiting disabled
	HealthCheckers []ports.HealthChecker
	MetricsHandler http.Handler // nil = /metrics not served
	Mode           string       // gin mode; empty = release
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	mode := deps.Mode
	if mode == "" {
		mode = gin.ReleaseMode
	}
	gin.SetMode(mode)
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit
	r.Use(middleware.AuditLog(deps.Logger))

	r.GET("/health", HealthCheck(deps.HealthCheckers...))
	if deps.MetricsHandler != nil {
		r.GET("/metrics", gin.WrapH(deps.MetricsHandler))
	}

	rules := middleware.DefaultRateLimitRules()
	rl := func(group string) gin.HandlerFunc {
		rule, ok := rules[group]
		if deps.RateLimitStore == nil || !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	// Every API route is owner-scoped through the bearer token.
	v1 := r.Group("/api/v1", middleware.JWTAuth(deps.TokenSvc, deps.Logger))

	transferHandler := NewTransferHandler(deps.TransferSvc)
	v1.POST("/transfers", rl("transfers"), transferHandler.Submit)

	txHandler := NewTransactionHandler(deps.QuerySvc, deps.ReconcileSvc)
	transactions := v1.Group("/transactions")
	{
		transactions.GET("", rl("read"), txHandler.List)
		transactions.POST("/reconcile", rl("reconcile"), txHandler.Reconcile)
		transactions.GET("/:hash", rl("read"), txHandler.Get)
	}

	accountHandler := NewAccountHandler(deps.LedgerSvc)
	accounts := v1.Group("/accounts/:address")
	{
		accounts.GET("/balances", rl("read"), accountHandler.Balances)
		accounts.GET("/history", rl("read"), accountHandler.History)
	}

	chainHandler := NewChainHandler(deps.LedgerSvc)
	chain := v1.Group("/chain")
	{
		chain.GET("/height", rl("read"), chainHandler.Height)
		chain.GET("/txs/:hash", rl("read"), chainHandler.Transaction)
	}

	return r
}

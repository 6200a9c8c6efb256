package handler

import (
	"usdc-settlement-ledger/internal/adapter/http/middleware"
	redisStore "usdc-settlement-ledger/internal/adapter/storage/redis"
	"usdc-settlement-ledger/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	AuthSvc        ports.AuthService
	RegistrySvc    ports.RegistryService
	TreasurySvc    ports.TreasuryService
	SettlementSvc  ports.SettlementService
	FraudSvc       ports.FraudService
	FraudEngine    ports.FraudEngine
	ReportingSvc   ports.ReportingService
	StudentRepo    ports.StudentRepository
	EncSvc         ports.EncryptionService
	SigSvc         ports.SignatureService
	NonceStore     ports.NonceStore
	TokenSvc       ports.TokenService
	RateLimitStore *redisStore.RateLimitStore // nil = rate limiting disabled
	HealthCheckers []ports.HealthChecker

	RailWebhookSecret string // empty = rail webhook disabled
	AuthorityWallet   string

	Logger zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit

	// Health check (deep — verifies PostgreSQL + Redis)
	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	// Rate limit rules
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

	// API v1 routes
	v1 := r.Group("/api/v1")

	// --- Public routes (no auth) ---
	authHandler := NewAuthHandler(deps.AuthSvc)
	auth := v1.Group("/auth")
	{
		auth.POST("/login", rl("login"), authHandler.Login)
	}

	registryHandler := NewRegistryHandler(deps.RegistrySvc)
	v1.POST("/students", rl("register"), registryHandler.Register)

	// --- Rail webhook (HMAC over raw body with the rail's shared secret) ---
	if deps.RailWebhookSecret != "" {
		railHandler := NewRailHandler(
			deps.SettlementSvc,
			deps.FraudSvc,
			deps.FraudEngine,
			deps.SigSvc,
			deps.RailWebhookSecret,
			deps.AuthorityWallet,
			deps.Logger,
		)
		v1.POST("/rail/webhook", rl("rail"), railHandler.Webhook)
	}

	// --- HMAC-authenticated routes (student API) ---
	hmacAuth := middleware.HMACAuth(deps.StudentRepo, deps.EncSvc, deps.SigSvc, deps.NonceStore, deps.Logger)
	settlementHandler := NewSettlementHandler(deps.SettlementSvc)
	settlements := v1.Group("/settlements")
	{
		settlements.POST("/offramp", hmacAuth, rl("settlements"), settlementHandler.Offramp)
		settlements.POST("/send", hmacAuth, rl("settlements"), settlementHandler.Send)
	}

	// --- JWT-authenticated routes (treasury authority) ---
	jwtAuth := middleware.JWTAuth(deps.TokenSvc, deps.Logger)
	treasuryHandler := NewTreasuryHandler(deps.TreasurySvc)
	fraudHandler := NewFraudHandler(deps.FraudSvc)
	dashboardHandler := NewDashboardHandler(deps.ReportingSvc)

	settlements.POST("/onramp", jwtAuth, rl("settlements"), settlementHandler.Onramp)

	treasury := v1.Group("/treasury", jwtAuth)
	{
		treasury.POST("", rl("dashboard"), treasuryHandler.Initialize)
		treasury.GET("", rl("dashboard"), treasuryHandler.Get)
	}

	students := v1.Group("/students", jwtAuth)
	{
		students.GET("/:owner", rl("dashboard"), registryHandler.GetStudent)
		students.POST("/:owner/freeze", rl("dashboard"), registryHandler.Freeze)
	}

	fraud := v1.Group("/fraud", jwtAuth)
	{
		fraud.POST("/score", rl("fraud"), fraudHandler.UpdateScore)
	}

	dashboard := v1.Group("/dashboard", jwtAuth)
	{
		dashboard.GET("/records", rl("dashboard"), dashboardHandler.ListRecords)
		dashboard.GET("/stats", rl("dashboard"), dashboardHandler.GetStats)
		dashboard.GET("/events", rl("dashboard"), dashboardHandler.ListEvents)
	}

	return r
}

package handler

import (
	"note-issuance-engine/internal/adapter/http/middleware"
	redisStore "note-issuance-engine/internal/adapter/storage/redis"
	"note-issuance-engine/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	Issuance       ports.IssuanceService
	Rewards        ports.RewardService
	Redemption     ports.RedemptionService
	Notes          ports.NoteService
	Config         ports.ConfigService
	Reporting      ports.ReportingService
	Reserve        ReserveFunder // nil = deposits disabled
	ReserveAccount string
	Credentials    ports.CredentialStore
	SigSvc         ports.SignatureService
	NonceStore     ports.NonceStore
	TokenSvc       ports.TokenService
	RateLimitStore *redisStore.RateLimitStore // nil = rate limiting disabled
	HealthCheckers []ports.HealthChecker
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit
	r.Use(middleware.AuditLog(deps.Logger))

	// Health check (deep: pings storage and Redis)
	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	r.GET("/swagger", APIDocs)
	r.GET("/swagger/spec", APISpec)

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

	v1 := r.Group("/api/v1")

	// --- Public note lookups, holder redemption (JWT) ---
	noteHandler := NewNoteHandler(deps.Notes, deps.Redemption)
	jwtAuth := middleware.JWTAuth(deps.TokenSvc, deps.Logger)
	notes := v1.Group("/notes")
	{
		notes.GET("/:token_id", rl("notes"), noteHandler.Attributes)
		notes.GET("/:token_id/metadata", rl("notes"), noteHandler.Metadata)
		notes.POST("/:token_id/redeem", jwtAuth, rl("notes_redeem"), noteHandler.Redeem)
	}

	// --- Granter surface (HMAC, granter keys) ---
	granterAuth := middleware.HMACAuth(deps.Credentials, deps.SigSvc, deps.NonceStore, deps.Logger, ports.RoleGranter)
	rewardHandler := NewRewardHandler(deps.Rewards, deps.Redemption)
	rewards := v1.Group("/rewards", granterAuth)
	{
		rewards.POST("/grant", rl("rewards"), rewardHandler.Grant)
		rewards.POST("/grant/batch", rl("rewards_batch"), rewardHandler.GrantBatch)
		rewards.POST("/redeem", rl("rewards"), rewardHandler.RedeemFor)
		rewards.GET("/tiers/:id/preview", rl("rewards"), rewardHandler.Preview)
		rewards.GET("/tiers/:id/capacity", rl("rewards"), rewardHandler.Capacity)
	}

	// --- Operator surface (HMAC, operator keys) ---
	operatorAuth := middleware.HMACAuth(deps.Credentials, deps.SigSvc, deps.NonceStore, deps.Logger, ports.RoleOperator)
	adminHandler := NewAdminHandler(AdminDeps{
		Config:         deps.Config,
		Issuance:       deps.Issuance,
		Redemption:     deps.Redemption,
		Reporting:      deps.Reporting,
		Tokens:         deps.TokenSvc,
		Reserve:        deps.Reserve,
		ReserveAccount: deps.ReserveAccount,
	})
	admin := v1.Group("/admin", operatorAuth, rl("admin"))
	{
		admin.PUT("/series/:series_id", adminHandler.SetSeries)
		admin.PUT("/denominations/:id", adminHandler.SetDenomination)
		admin.PUT("/rarity", adminHandler.SetRarityTiers)
		admin.PUT("/rarity/:level", adminHandler.SetRarityTier)
		admin.PUT("/reward-tiers", adminHandler.SetRewardTiers)
		admin.PUT("/reward-tiers/:id", adminHandler.SetRewardTier)
		admin.PUT("/reward-supply/:id", adminHandler.SetRewardSupply)
		admin.PUT("/reward-settings", adminHandler.SetRewardSettings)
		admin.PUT("/serials", adminHandler.ResetSerial)
		admin.PUT("/notes/:token_id/rarity", adminHandler.CorrectNote)

		admin.POST("/issue", adminHandler.Issue)
		admin.POST("/issue/batch", adminHandler.IssueBatch)
		admin.GET("/settlements", adminHandler.ListSettlements)
		admin.POST("/settlements/:id/retry", adminHandler.RetrySettlement)
		admin.POST("/reserve/deposit", adminHandler.Deposit)
		admin.GET("/report", adminHandler.Report)
		admin.POST("/holder-tokens", adminHandler.HolderToken)
	}

	return r
}

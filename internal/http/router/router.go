package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/ulule/limiter/v3"

	"github.com/Abishake01/0G-Proof-Pass/internal/config"
	"github.com/Abishake01/0G-Proof-Pass/internal/http/handlers"
	"github.com/Abishake01/0G-Proof-Pass/internal/http/middleware"
	"github.com/Abishake01/0G-Proof-Pass/internal/service"
)

// Handlers набор HTTP хэндлеров приложения.
type Handlers struct {
	Auth    *handlers.AuthHandler
	Compute *handlers.ComputeHandler
	Storage *handlers.StorageHandler
	CheckIn *handlers.CheckInHandler
	Rewards *handlers.RewardsHandler
	Health  *handlers.HealthHandler
	WS      *handlers.WSHandler
}

func SetupRouter(
	cfg *config.Config,
	h Handlers,
	tokenManager *service.TokenManager,
	rateStore limiter.Store,
) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	r.GET("/health", h.Health.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")

	// per-IP лимит поверх лимита на email внутри OTPService
	authGroup := api.Group("/auth")
	authGroup.Use(middleware.RateLimitMiddleware(rateStore, cfg.RateLimitLimit, cfg.RateLimitPeriod))
	{
		authGroup.POST("/send-otp", h.Auth.SendOTP)
		authGroup.POST("/verify-otp", h.Auth.VerifyOTP)
	}

	api.POST("/compute/analyze", h.Compute.Analyze)
	api.GET("/contributions", h.Compute.ListContributions)

	storageGroup := api.Group("/storage")
	{
		storageGroup.POST("/upload", h.Storage.Upload)
		storageGroup.GET("/:hash", h.Storage.Download)
		storageGroup.GET("/:hash/info", h.Storage.Info)
	}

	api.POST("/checkin/attest", middleware.EmailTokenMiddleware(tokenManager), h.CheckIn.Attest)
	api.GET("/checkins", h.CheckIn.ListCheckIns)
	api.GET("/events/:id/checkin-qr", middleware.EventIDValidator("id"), h.CheckIn.QR)

	api.GET("/rewards/tiers", h.Rewards.Tiers)
	api.GET("/ws", h.WS.Handle)

	return r
}

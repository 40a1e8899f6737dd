package core

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/dr-electrique/rapport-server/api/common"
	handlerAuth "github.com/dr-electrique/rapport-server/api/handler/auth"
	handlerDashboard "github.com/dr-electrique/rapport-server/api/handler/dashboard"
	handlerPhotos "github.com/dr-electrique/rapport-server/api/handler/photos"
	handlerRapports "github.com/dr-electrique/rapport-server/api/handler/rapports"
	handlerVision "github.com/dr-electrique/rapport-server/api/handler/vision"
	"github.com/dr-electrique/rapport-server/api/middleware"
	"github.com/dr-electrique/rapport-server/cache"
	"github.com/dr-electrique/rapport-server/config"
	"github.com/dr-electrique/rapport-server/database/repo/photos"
	"github.com/dr-electrique/rapport-server/internal/auth"
	"github.com/dr-electrique/rapport-server/internal/dashboard"
	"github.com/dr-electrique/rapport-server/internal/rapport"
	"github.com/dr-electrique/rapport-server/internal/settings"
	"github.com/dr-electrique/rapport-server/internal/vision"
	"github.com/dr-electrique/rapport-server/storage"
)

var startTime = time.Now()

// ServerDependencies 服务器依赖项
type ServerDependencies struct {
	DB               *gorm.DB
	Storage          storage.Provider
	Cache            cache.Provider
	JWTService       *auth.JWTService
	KeyService       *auth.KeyService
	RapportService   *rapport.Service
	DashboardService *dashboard.Service
	VisionService    *vision.Service
	SettingsManager  *settings.Manager
	PhotosRepo       *photos.Repository
}

// setupRouter 启动gin
func setupRouter(deps *ServerDependencies) (*gin.Engine, func()) {
	cfg := config.Get()

	if config.CommitHash != "n/a" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	if config.CommitHash == "n/a" {
		router.Use(gin.Logger())
	}
	router.Use(gin.Recovery())

	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{cfg.BaseURL()},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.SetTrustedProxies(nil)

	// 限制上传文件大小
	router.MaxMultipartMemory = int64(cfg.UploadMaxSizeMB) << 20

	// 请求ID、基础监控指标
	router.Use(middleware.Metrics())

	// 速率限制
	authRateLimiter := middleware.NewIPRateLimiter(cfg.RateLimitAuthRPS, cfg.RateLimitAuthBurst, cfg.RateLimitExpireTime)
	apiRateLimiter := middleware.NewIPRateLimiter(cfg.RateLimitApiRPS, cfg.RateLimitApiBurst, cfg.RateLimitExpireTime)
	cleanup := func() {
		authRateLimiter.StopCleanup()
		apiRateLimiter.StopCleanup()
	}

	registerBasicRoutes(router, deps)
	registerAPIRoutes(router, deps, authRateLimiter, apiRateLimiter)

	return router, cleanup
}

// registerBasicRoutes 注册基础路由
func registerBasicRoutes(router *gin.Engine, deps *ServerDependencies) {
	router.GET("/health", func(c *gin.Context) {
		health := gin.H{
			"status":  "ok",
			"uptime":  time.Since(startTime).Round(time.Second).String(),
			"version": config.Version,
			"checks": gin.H{
				"database": checkDatabaseHealth(deps.DB),
				"cache":    checkCacheHealth(deps.Cache),
				"storage":  checkStorageHealth(deps.Storage),
			},
		}
		httpStatus := http.StatusOK
		for _, checkResult := range health["checks"].(gin.H) {
			if result, ok := checkResult.(string); ok && result != "ok" && result != "not configured" {
				httpStatus = http.StatusServiceUnavailable
				break
			}
		}
		c.JSON(httpStatus, health)
	})

	router.GET("/version", func(c *gin.Context) {
		common.RespondSuccess(c, gin.H{
			"version": config.Version,
			"commit":  config.CommitHash,
		})
	})

	router.GET("/metrics", func(c *gin.Context) {
		c.JSON(http.StatusOK, middleware.GetMetrics())
	})
}

// registerAPIRoutes 注册 API 路由
func registerAPIRoutes(router *gin.Engine, deps *ServerDependencies, authRL, apiRL *middleware.IPRateLimiter) {
	cfg := config.Get()

	authHandler := handlerAuth.NewHandler(deps.KeyService)
	rapportHandler := handlerRapports.NewHandler(deps.RapportService, deps.DashboardService)
	photoHandler := handlerPhotos.NewHandler(deps.SettingsManager, deps.Storage, deps.PhotosRepo, cfg.UploadMaxSizeMB)
	dashboardHandler := handlerDashboard.NewHandler(deps.DashboardService)
	visionHandler := handlerVision.NewHandler(deps.VisionService)

	apiGroup := router.Group("/api")
	apiGroup.Use(func(c *gin.Context) { // 所有API禁止缓存
		c.Header("Cache-Control", "no-store")
		c.Next()
	})
	{
		authGroup := apiGroup.Group("/auth")
		authGroup.Use(authRL.Middleware())
		{
			authGroup.POST("/token", authHandler.Token) // POST /api/auth/token
		}

		v1 := apiGroup.Group("/v1")
		v1.Use(apiRL.Middleware())
		v1.Use(middleware.DeviceAuth(deps.JWTService))
		{
			rapportsGroup := v1.Group("/rapports")
			{
				rapportsGroup.POST("", rapportHandler.Submit)                  // POST /api/v1/rapports
				rapportsGroup.GET("", rapportHandler.List)                     // GET /api/v1/rapports
				rapportsGroup.GET("/:id", rapportHandler.Get)                  // GET /api/v1/rapports/{id}
				rapportsGroup.PUT("/:id", rapportHandler.Update)               // PUT /api/v1/rapports/{id}
				rapportsGroup.GET("/:id/photos", photoHandler.ListByRapport)   // GET /api/v1/rapports/{id}/photos
			}

			photosGroup := v1.Group("/photos")
			{
				photosGroup.POST("/process", photoHandler.Process) // POST /api/v1/photos/process
			}

			v1.GET("/dashboard", dashboardHandler.Overview) // GET /api/v1/dashboard

			visionGroup := v1.Group("/vision")
			{
				visionGroup.POST("/detect", visionHandler.Detect) // POST /api/v1/vision/detect
			}
		}
	}
}

// StartServer 创建 http.Server
func StartServer(deps *ServerDependencies) (*http.Server, func()) {
	cfg := config.Get()
	router, clean := setupRouter(deps)

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  cfg.ServerIdleTimeout,
	}

	return srv, clean
}

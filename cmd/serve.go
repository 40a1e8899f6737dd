package cmd

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/davidbyttow/govips/v2/vips"
	"github.com/spf13/cobra"

	"github.com/dr-electrique/rapport-server/api/core"
	"github.com/dr-electrique/rapport-server/cache"
	"github.com/dr-electrique/rapport-server/config"
	"github.com/dr-electrique/rapport-server/database/dbcore"
	"github.com/dr-electrique/rapport-server/database/repo/devices"
	"github.com/dr-electrique/rapport-server/database/repo/photos"
	"github.com/dr-electrique/rapport-server/database/repo/rapports"
	"github.com/dr-electrique/rapport-server/internal/auth"
	"github.com/dr-electrique/rapport-server/internal/dashboard"
	"github.com/dr-electrique/rapport-server/internal/photo"
	"github.com/dr-electrique/rapport-server/internal/rapport"
	"github.com/dr-electrique/rapport-server/internal/settings"
	"github.com/dr-electrique/rapport-server/internal/vision"
	"github.com/dr-electrique/rapport-server/internal/worker"
	"github.com/dr-electrique/rapport-server/storage"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start API server",
	Run: func(cmd *cobra.Command, args []string) {
		RunServer()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func RunServer() {
	config.InitConfig()
	cfg := config.Get()

	if err := os.MkdirAll("./data", os.ModePerm); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}

	// 数据库
	if err := dbcore.Init(cfg); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	db := dbcore.Get()
	if err := dbcore.AutoMigrate(db); err != nil {
		log.Fatalf("Failed to auto migrate database: %v", err)
	}

	// 存储
	storageFactory, err := storage.NewFactory(storage.Config{
		Type:     cfg.StorageType,
		Settings: cfg.StorageSettings(),
	})
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	store := storageFactory.GetDefault()

	// 缓存
	cacheProvider, err := cache.New(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize cache: %v", err)
	}

	// 运行时配置
	settingsManager := settings.NewManager(db, cfg)

	// 仓库
	photosRepo := photos.NewRepository(db)
	rapportsRepo := rapports.NewRepository(db)
	devicesRepo := devices.NewRepository(db)

	// 服务
	jwtService, err := auth.NewJWTService(cfg.JwtSecret, cfg.JwtExpiresIn)
	if err != nil {
		log.Fatalf("Failed to initialize JWT: %v (set JWT_SECRET)", err)
	}
	keyService := auth.NewKeyService(devicesRepo, jwtService)

	txManager := photo.NewManager(storage.AsObjectStore(store), photosRepo)
	rapportService := rapport.NewService(rapportsRepo, txManager, settingsManager.TxOptions)
	dashboardService := dashboard.NewService(rapportsRepo, photosRepo, cacheProvider, cfg.CacheDashboardTTL)
	visionService := vision.NewService(vision.Config{
		APIURL:  cfg.VisionAPIURL,
		APIKey:  cfg.VisionAPIKey,
		Model:   cfg.VisionModel,
		Timeout: cfg.VisionTimeout,
	})

	// 异步任务协程池 + 缩略图扫描
	pool := worker.NewPool(cfg.WorkerCount, 256)
	pool.Start()

	var stopThumbnails func()
	if cfg.ThumbnailEnabled {
		vips.LoggingSettings(nil, vips.LogLevelError)
		vips.Startup(nil)
		stopThumbnails = startThumbnailScanner(pool, photosRepo, store, cfg.ThumbnailWidth)
	}

	// 创建服务器依赖
	deps := &core.ServerDependencies{
		DB:               db,
		Storage:          store,
		Cache:            cacheProvider,
		JWTService:       jwtService,
		KeyService:       keyService,
		RapportService:   rapportService,
		DashboardService: dashboardService,
		VisionService:    visionService,
		SettingsManager:  settingsManager,
		PhotosRepo:       photosRepo,
	}

	// 启动gin
	server, cleanup := core.StartServer(deps)
	go func() {
		log.Printf("Server started on %s", cfg.Addr())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	// 处理退出signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if cleanup != nil {
		cleanup()
	}
	if stopThumbnails != nil {
		stopThumbnails()
	}
	pool.Stop()
	if cfg.ThumbnailEnabled {
		vips.Shutdown()
	}
	if err := cacheProvider.Close(); err != nil {
		log.Printf("Error closing cache: %v", err)
	}

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited successfully")
}

// startThumbnailScanner periodically enqueues thumbnail generation for
// photo rows that don't have one yet.
func startThumbnailScanner(pool *worker.Pool, repo *photos.Repository, store storage.Provider, width int) func() {
	ticker := time.NewTicker(time.Minute)
	done := make(chan struct{})

	scan := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		rows, err := repo.PendingThumbnails(ctx, 50)
		if err != nil {
			log.Printf("[ThumbnailScanner] failed to list pending rows: %v", err)
			return
		}
		for _, row := range rows {
			if row.StoragePath == "" {
				continue
			}
			pool.Submit(&worker.ThumbnailTask{
				PhotoID:     row.ID,
				SourcePath:  row.StoragePath,
				TargetWidth: width,
				Repo:        repo,
				Storage:     store,
			})
		}
	}

	go func() {
		scan()
		for {
			select {
			case <-ticker.C:
				scan()
			case <-done:
				ticker.Stop()
				return
			}
		}
	}()

	return func() { close(done) }
}

package config

import (
	"fmt"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

var (
	globalConfig Config
	once         sync.Once
)

// Config 扁平化配置结构体 loaded once from .env / environment.
type Config struct {
	// 服务器配置
	ServerHost         string        `mapstructure:"server_host"`
	ServerPort         int           `mapstructure:"server_port"`
	ServerDomain       string        `mapstructure:"server_domain"`
	ServerReadTimeout  time.Duration `mapstructure:"server_read_timeout"`
	ServerWriteTimeout time.Duration `mapstructure:"server_write_timeout"`
	ServerIdleTimeout  time.Duration `mapstructure:"server_idle_timeout"`

	// 数据库配置
	DBType         string `mapstructure:"db_type"`
	DBHost         string `mapstructure:"db_host"`
	DBPort         int    `mapstructure:"db_port"`
	DBUsername     string `mapstructure:"db_username"`
	DBPassword     string `mapstructure:"db_password"`
	DBName         string `mapstructure:"db_name"`
	DBFilePath     string `mapstructure:"db_file_path"`
	DBMaxOpenConns int    `mapstructure:"db_max_open_conns"`
	DBMaxIdleConns int    `mapstructure:"db_max_idle_conns"`

	// 存储配置
	StorageType          string `mapstructure:"storage_type"`
	StorageLocalPath     string `mapstructure:"storage_local_path"`
	StorageLocalBaseURL  string `mapstructure:"storage_local_base_url"`
	MinioEndpoint        string `mapstructure:"minio_endpoint"`
	MinioAccessKeyID     string `mapstructure:"minio_access_key_id"`
	MinioSecretAccessKey string `mapstructure:"minio_secret_access_key"`
	MinioBucketName      string `mapstructure:"minio_bucket_name"`
	MinioUseSSL          bool   `mapstructure:"minio_use_ssl"`
	MinioPublicBaseURL   string `mapstructure:"minio_public_base_url"`
	WebdavURL            string `mapstructure:"webdav_url"`
	WebdavUsername       string `mapstructure:"webdav_username"`
	WebdavPassword       string `mapstructure:"webdav_password"`
	WebdavRootPath       string `mapstructure:"webdav_root_path"`
	WebdavPublicBaseURL  string `mapstructure:"webdav_public_base_url"`

	// 照片处理配置
	PhotoMaxWidth       int  `mapstructure:"photo_max_width"`
	PhotoMaxHeight      int  `mapstructure:"photo_max_height"`
	PhotoQuality        int  `mapstructure:"photo_quality"`
	PhotoQualityFloor   int  `mapstructure:"photo_quality_floor"`
	PhotoQualityStep    int  `mapstructure:"photo_quality_step"`
	PhotoMaxFileSize    int  `mapstructure:"photo_max_file_size"`
	PhotoWatermark      bool `mapstructure:"photo_watermark"`
	PhotoWatermarkBarPx int  `mapstructure:"photo_watermark_bar_px"`

	// 照片事务配置
	PhotoRollbackOnFailure  bool   `mapstructure:"photo_rollback_on_failure"`
	PhotoCriticalCategories string `mapstructure:"photo_critical_categories"` // comma-separated

	// 缩略图配置
	ThumbnailEnabled bool `mapstructure:"thumbnail_enabled"`
	ThumbnailWidth   int  `mapstructure:"thumbnail_width"`

	// 缓存配置
	CacheType          string        `mapstructure:"cache_type"`
	CacheRedisAddr     string        `mapstructure:"cache_redis_addr"`
	CacheRedisPassword string        `mapstructure:"cache_redis_password"`
	CacheRedisDB       int           `mapstructure:"cache_redis_db"`
	CacheDashboardTTL  time.Duration `mapstructure:"cache_dashboard_ttl"`

	// 限流配置
	RateLimitApiRPS     float64       `mapstructure:"rate_limit_api_rps"`
	RateLimitApiBurst   int           `mapstructure:"rate_limit_api_burst"`
	RateLimitAuthRPS    float64       `mapstructure:"rate_limit_auth_rps"`
	RateLimitAuthBurst  int           `mapstructure:"rate_limit_auth_burst"`
	RateLimitExpireTime time.Duration `mapstructure:"rate_limit_expire_time"`

	// JWT 配置
	JwtSecret    string        `mapstructure:"jwt_secret"`
	JwtExpiresIn time.Duration `mapstructure:"jwt_expires_in"`

	// 上传配置
	UploadMaxSizeMB int `mapstructure:"upload_max_size_mb"`

	// 视觉识别代理配置
	VisionAPIURL  string        `mapstructure:"vision_api_url"`
	VisionAPIKey  string        `mapstructure:"vision_api_key"`
	VisionModel   string        `mapstructure:"vision_model"`
	VisionTimeout time.Duration `mapstructure:"vision_timeout"`

	// Worker 配置
	WorkerCount int `mapstructure:"worker_count"`
}

// InitConfig Initialize configuration
func InitConfig() {
	once.Do(loadConfig)
}

func Get() *Config {
	return &globalConfig
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.ServerHost, c.ServerPort)
}

// BaseURL returns the externally visible base URL.
func (c *Config) BaseURL() string {
	if c.ServerDomain != "" {
		return c.ServerDomain
	}
	return "http://" + c.Addr()
}

// CriticalCategories splits the configured critical-category list.
func (c *Config) CriticalCategories() []string {
	if c.PhotoCriticalCategories == "" {
		return nil
	}
	parts := strings.Split(c.PhotoCriticalCategories, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// StorageSettings assembles the per-provider option maps consumed by the
// storage factory.
func (c *Config) StorageSettings() map[string]interface{} {
	return map[string]interface{}{
		"local": map[string]interface{}{
			"path":            c.StorageLocalPath,
			"public_base_url": c.StorageLocalBaseURL,
		},
		"minio": map[string]interface{}{
			"endpoint":          c.MinioEndpoint,
			"access_key_id":     c.MinioAccessKeyID,
			"secret_access_key": c.MinioSecretAccessKey,
			"bucket_name":       c.MinioBucketName,
			"use_ssl":           c.MinioUseSSL,
			"public_base_url":   c.MinioPublicBaseURL,
		},
		"webdav": map[string]interface{}{
			"url":             c.WebdavURL,
			"username":        c.WebdavUsername,
			"password":        c.WebdavPassword,
			"root_path":       c.WebdavRootPath,
			"public_base_url": c.WebdavPublicBaseURL,
		},
	}
}

// loadConfig Core configuration loading
func loadConfig() {
	setDefaults()

	viper.SetConfigFile(".env")
	viper.SetConfigType("env")

	if err := viper.ReadInConfig(); err != nil {
		fmt.Fprintln(os.Stderr, "Info: .env file not found, using defaults and environment variables")
	} else {
		fmt.Fprintln(os.Stderr, "Info: Loaded configuration from .env file")
	}

	viper.AutomaticEnv()
	for _, key := range viper.AllKeys() {
		viper.BindEnv(key)
	}

	if err := viper.Unmarshal(&globalConfig); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: Unable to unmarshal config, %v\n", err)
		os.Exit(1)
	}

	if globalConfig.WorkerCount <= 0 {
		globalConfig.WorkerCount = defaultWorkerCount()
	}
}

func defaultWorkerCount() int {
	n := runtime.NumCPU()
	if n < 2 {
		return 2
	}
	return n
}

// setDefaults 设置默认值
func setDefaults() {
	viper.SetDefault("server_host", "127.0.0.1")
	viper.SetDefault("server_port", 8080)
	viper.SetDefault("server_domain", "")
	viper.SetDefault("server_read_timeout", "30s")
	viper.SetDefault("server_write_timeout", "60s")
	viper.SetDefault("server_idle_timeout", "120s")

	viper.SetDefault("db_type", "sqlite")
	viper.SetDefault("db_host", "127.0.0.1")
	viper.SetDefault("db_port", 5432)
	viper.SetDefault("db_username", "")
	viper.SetDefault("db_password", "")
	viper.SetDefault("db_name", "rapports")
	viper.SetDefault("db_file_path", "./data/rapports.db")
	viper.SetDefault("db_max_open_conns", 25)
	viper.SetDefault("db_max_idle_conns", 5)

	viper.SetDefault("storage_type", "local")
	viper.SetDefault("storage_local_path", "./data/photos")
	viper.SetDefault("storage_local_base_url", "http://127.0.0.1:8080/photos")
	viper.SetDefault("minio_bucket_name", "rapport-photos")
	viper.SetDefault("minio_use_ssl", false)

	viper.SetDefault("photo_max_width", 1600)
	viper.SetDefault("photo_max_height", 1200)
	viper.SetDefault("photo_quality", 75)
	viper.SetDefault("photo_quality_floor", 50)
	viper.SetDefault("photo_quality_step", 20)
	viper.SetDefault("photo_max_file_size", 500000)
	viper.SetDefault("photo_watermark", true)
	viper.SetDefault("photo_watermark_bar_px", 28)

	viper.SetDefault("photo_rollback_on_failure", false)
	viper.SetDefault("photo_critical_categories", "")

	viper.SetDefault("thumbnail_enabled", true)
	viper.SetDefault("thumbnail_width", 300)

	viper.SetDefault("cache_type", "memory")
	viper.SetDefault("cache_redis_addr", "localhost:6379")
	viper.SetDefault("cache_redis_password", "")
	viper.SetDefault("cache_redis_db", 0)
	viper.SetDefault("cache_dashboard_ttl", "60s")

	viper.SetDefault("rate_limit_api_rps", 50.0)
	viper.SetDefault("rate_limit_api_burst", 100)
	viper.SetDefault("rate_limit_auth_rps", 5.0)
	viper.SetDefault("rate_limit_auth_burst", 10)
	viper.SetDefault("rate_limit_expire_time", "10m")

	viper.SetDefault("jwt_secret", "")
	viper.SetDefault("jwt_expires_in", "12h")

	viper.SetDefault("upload_max_size_mb", 25)

	viper.SetDefault("vision_api_url", "https://api.anthropic.com/v1/messages")
	viper.SetDefault("vision_api_key", "")
	viper.SetDefault("vision_model", "claude-sonnet-4-20250514")
	viper.SetDefault("vision_timeout", "30s")

	viper.SetDefault("worker_count", 0)
}

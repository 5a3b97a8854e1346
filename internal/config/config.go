package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// Storage drivers
const (
	StorageLocal = "local"
	StorageMinIO = "minio"
)

// Config holds all configuration for the application
type Config struct {
	// Database
	DatabaseURL string

	// Server
	APIPort int

	// Storage
	StorageDriver         string
	AttachmentStoragePath string
	PublicURLPrefix       string
	TempDir               string

	// Upload limits
	MaxUploadSize  int64
	MaxContentSize int64
	ImageReencode  bool
	JPEGQuality    int

	// Retention
	TempRetention     time.Duration
	EditorRetention   time.Duration
	OrphanGracePeriod time.Duration
	CleanupInterval   time.Duration
	CleanupRunAt      string
	MovingStaleAfter  time.Duration
	CleanupBatchSize  int
	CleanupEnabled    bool
	CleanupTimeout    time.Duration
	// OwnerLockTimeout bounds the wait for an owner's primary lock
	OwnerLockTimeout time.Duration

	// MinIO
	MinIOEndpoint  string
	MinIOAccessKey string
	MinIOSecretKey string
	MinIOBucket    string
	MinIORegion    string
	MinIOUseSSL    bool

	// Redis (owner locks); empty address keeps locks in process
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Logging
	LogLevel      string
	LogFormat     string
	LogFile       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int
	LogCompress   bool

	// Security
	APIKey         string
	AllowedOrigins string
	AppEnv         string

	// Rate Limiting
	RateLimitRequests float64
	RateLimitBurst    int
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// Required: DATABASE_URL
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required but not set")
	}

	// API_PORT (default: 8080)
	if cfg.APIPort, err = getInt("API_PORT", 8080); err != nil {
		return nil, err
	}

	// Storage
	cfg.StorageDriver = strings.ToLower(getString("STORAGE_DRIVER", StorageLocal))
	cfg.AttachmentStoragePath = getString("ATTACHMENT_STORAGE_PATH", "./attachments")
	cfg.PublicURLPrefix = "/" + strings.Trim(getString("PUBLIC_URL_PREFIX", "/uploads"), "/")
	cfg.TempDir = strings.Trim(getString("TEMP_DIR", "temp"), "/")

	// Upload limits accept human sizes such as 10MB
	if cfg.MaxUploadSize, err = getBytes("MAX_UPLOAD_SIZE", 10*humanize.MiByte); err != nil {
		return nil, err
	}
	if cfg.MaxContentSize, err = getBytes("MAX_CONTENT_SIZE", 2*humanize.MiByte); err != nil {
		return nil, err
	}
	if cfg.ImageReencode, err = getBool("IMAGE_REENCODE", true); err != nil {
		return nil, err
	}
	if cfg.JPEGQuality, err = getInt("JPEG_QUALITY", 85); err != nil {
		return nil, err
	}

	// Retention
	if cfg.TempRetention, err = getDuration("TEMP_RETENTION", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.EditorRetention, err = getDuration("EDITOR_RETENTION", 72*time.Hour); err != nil {
		return nil, err
	}
	if cfg.OrphanGracePeriod, err = getDuration("ORPHAN_GRACE_PERIOD", 48*time.Hour); err != nil {
		return nil, err
	}
	if cfg.CleanupInterval, err = getDuration("CLEANUP_INTERVAL", time.Hour); err != nil {
		return nil, err
	}
	cfg.CleanupRunAt = os.Getenv("CLEANUP_RUN_AT")
	if cfg.MovingStaleAfter, err = getDuration("MOVING_STALE_AFTER", time.Hour); err != nil {
		return nil, err
	}
	if cfg.CleanupBatchSize, err = getInt("CLEANUP_BATCH_SIZE", 100); err != nil {
		return nil, err
	}
	if cfg.CleanupEnabled, err = getBool("CLEANUP_ENABLED", true); err != nil {
		return nil, err
	}
	if cfg.CleanupTimeout, err = getDuration("CLEANUP_TIMEOUT", 30*time.Minute); err != nil {
		return nil, err
	}
	if cfg.OwnerLockTimeout, err = getDuration("OWNER_LOCK_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}

	// MinIO
	cfg.MinIOEndpoint = os.Getenv("MINIO_ENDPOINT")
	cfg.MinIOAccessKey = os.Getenv("MINIO_ACCESS_KEY")
	cfg.MinIOSecretKey = os.Getenv("MINIO_SECRET_KEY")
	cfg.MinIOBucket = getString("MINIO_BUCKET", "attachments")
	cfg.MinIORegion = os.Getenv("MINIO_REGION")
	if cfg.MinIOUseSSL, err = getBool("MINIO_USE_SSL", false); err != nil {
		return nil, err
	}

	// Redis
	cfg.RedisAddr = os.Getenv("REDIS_ADDR")
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	if cfg.RedisDB, err = getInt("REDIS_DB", 0); err != nil {
		return nil, err
	}

	// Logging
	cfg.LogLevel = getString("LOG_LEVEL", "info")
	cfg.LogFormat = getString("LOG_FORMAT", "json")
	cfg.LogFile = os.Getenv("LOG_FILE")
	if cfg.LogMaxSizeMB, err = getInt("LOG_MAX_SIZE_MB", 100); err != nil {
		return nil, err
	}
	if cfg.LogMaxBackups, err = getInt("LOG_MAX_BACKUPS", 5); err != nil {
		return nil, err
	}
	if cfg.LogMaxAgeDays, err = getInt("LOG_MAX_AGE_DAYS", 30); err != nil {
		return nil, err
	}
	if cfg.LogCompress, err = getBool("LOG_COMPRESS", true); err != nil {
		return nil, err
	}

	// Security configuration
	cfg.APIKey = os.Getenv("API_KEY")
	cfg.AllowedOrigins = os.Getenv("ALLOWED_ORIGINS")
	cfg.AppEnv = getString("APP_ENV", "development")

	// Rate limiting configuration
	if rps := os.Getenv("RATE_LIMIT_REQUESTS"); rps != "" {
		if v, err := strconv.ParseFloat(rps, 64); err == nil {
			cfg.RateLimitRequests = v
		}
	} else {
		cfg.RateLimitRequests = 10.0
	}

	if burst := os.Getenv("RATE_LIMIT_BURST"); burst != "" {
		if v, err := strconv.Atoi(burst); err == nil {
			cfg.RateLimitBurst = v
		}
	} else {
		cfg.RateLimitBurst = 20
	}

	return cfg, nil
}

func getString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid integer: %w", key, err)
	}
	return n, nil
}

func getBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s must be a valid boolean: %w", key, err)
	}
	return b, nil
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid duration: %w", key, err)
	}
	return d, nil
}

func getBytes(key string, def uint64) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return int64(def), nil
	}
	n, err := humanize.ParseBytes(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid size: %w", key, err)
	}
	return int64(n), nil
}

// LoadWithValidation loads and validates configuration, failing fast on errors
func LoadWithValidation() (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Production-specific validation
	if cfg.AppEnv == "production" {
		if err := cfg.ValidateProduction(); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DatabaseURL cannot be empty")
	}
	if c.APIPort <= 0 || c.APIPort > 65535 {
		return fmt.Errorf("APIPort must be between 1 and 65535")
	}
	switch c.StorageDriver {
	case StorageLocal:
		if c.AttachmentStoragePath == "" {
			return fmt.Errorf("AttachmentStoragePath cannot be empty")
		}
	case StorageMinIO:
		if c.MinIOEndpoint == "" || c.MinIOBucket == "" {
			return fmt.Errorf("MINIO_ENDPOINT and MINIO_BUCKET are required for the minio driver")
		}
	default:
		return fmt.Errorf("STORAGE_DRIVER must be %q or %q", StorageLocal, StorageMinIO)
	}
	if c.TempDir == "" || strings.Contains(c.TempDir, "..") {
		return fmt.Errorf("TEMP_DIR must be a relative directory name")
	}
	if c.PublicURLPrefix == "/" {
		return fmt.Errorf("PUBLIC_URL_PREFIX cannot be the root path")
	}
	if c.MaxUploadSize <= 0 {
		return fmt.Errorf("MAX_UPLOAD_SIZE must be positive")
	}
	if c.MaxContentSize <= 0 {
		return fmt.Errorf("MAX_CONTENT_SIZE must be positive")
	}
	if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
		return fmt.Errorf("JPEG_QUALITY must be between 1 and 100")
	}
	if c.TempRetention <= 0 || c.EditorRetention <= 0 {
		return fmt.Errorf("retention windows must be positive")
	}
	if c.OrphanGracePeriod < c.TempRetention {
		return fmt.Errorf("ORPHAN_GRACE_PERIOD must not be shorter than TEMP_RETENTION")
	}
	if c.CleanupRunAt == "" && c.CleanupInterval <= 0 {
		return fmt.Errorf("CLEANUP_INTERVAL must be positive")
	}
	if c.CleanupRunAt != "" {
		if _, err := time.Parse("15:04", c.CleanupRunAt); err != nil {
			return fmt.Errorf("CLEANUP_RUN_AT must be HH:MM: %w", err)
		}
	}
	if c.CleanupBatchSize <= 0 {
		return fmt.Errorf("CLEANUP_BATCH_SIZE must be positive")
	}
	if c.CleanupTimeout <= 0 {
		return fmt.Errorf("CLEANUP_TIMEOUT must be positive")
	}
	if c.OwnerLockTimeout <= 0 {
		return fmt.Errorf("OWNER_LOCK_TIMEOUT must be positive")
	}
	return nil
}

// ValidateProduction performs additional validation for production environment
func (c *Config) ValidateProduction() error {
	if c.APIKey == "" {
		return fmt.Errorf("API_KEY is required in production")
	}

	if c.AllowedOrigins == "" {
		return fmt.Errorf("ALLOWED_ORIGINS is required in production")
	}

	// Check for wildcard in production
	if strings.Contains(c.AllowedOrigins, "*") {
		return fmt.Errorf("wildcard (*) origins are not allowed in production")
	}

	// Check for sslmode=disable in database URL
	if strings.Contains(c.DatabaseURL, "sslmode=disable") {
		return fmt.Errorf("sslmode=disable is not allowed in production")
	}

	if c.StorageDriver == StorageMinIO && !c.MinIOUseSSL {
		return fmt.Errorf("MINIO_USE_SSL must be enabled in production")
	}

	return nil
}

// LogConfig logs configuration values (excluding secrets)
func (c *Config) LogConfig(logger *slog.Logger) {
	logger.Info("configuration loaded",
		slog.Int("api_port", c.APIPort),
		slog.String("storage_driver", c.StorageDriver),
		slog.String("storage_path", c.AttachmentStoragePath),
		slog.String("public_url_prefix", c.PublicURLPrefix),
		slog.String("temp_dir", c.TempDir),
		slog.String("max_upload_size", humanize.IBytes(uint64(c.MaxUploadSize))),
		slog.String("max_content_size", humanize.IBytes(uint64(c.MaxContentSize))),
		slog.Duration("temp_retention", c.TempRetention),
		slog.Duration("editor_retention", c.EditorRetention),
		slog.Duration("orphan_grace_period", c.OrphanGracePeriod),
		slog.Duration("cleanup_interval", c.CleanupInterval),
		slog.String("cleanup_run_at", c.CleanupRunAt),
		slog.Bool("cleanup_enabled", c.CleanupEnabled),
		slog.Duration("cleanup_timeout", c.CleanupTimeout),
		slog.Duration("owner_lock_timeout", c.OwnerLockTimeout),
		slog.Bool("redis_locks", c.RedisAddr != ""),
		slog.String("log_level", c.LogLevel),
		slog.String("app_env", c.AppEnv),
		slog.Bool("api_key_set", c.APIKey != ""),
		slog.Bool("allowed_origins_set", c.AllowedOrigins != ""),
		slog.Float64("rate_limit_rps", c.RateLimitRequests),
		slog.Int("rate_limit_burst", c.RateLimitBurst),
	)
}

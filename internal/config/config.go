package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Image storage backends.
const (
	ImageStorageS3         = "s3"
	ImageStorageCloudinary = "cloudinary"
)

// Config holds all configuration for the application.
type Config struct {
	// Environment
	RunMode string // Set via flag, not env

	// MongoDB
	MongoURI    string
	MongoDbName string

	// Redis
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// JWT
	JwtSecret       string
	JwtTTL          time.Duration
	CaptchaTokenTTL time.Duration

	// Server
	ApiPort        string
	ServiceApiPort string
	CorsOrigin     string

	// Cloudflare
	CloudflareTurnstileSecretKey string
	CloudflareSiteVerifyURL      string

	// Email
	SmtpHost        string
	SmtpPort        int
	SmtpUsername    string
	SmtpPassword    string
	SmtpFromAddress string

	// Images
	ImageStorage       string // "s3" or "cloudinary"
	ImageMaxDimension  int
	ImageMaxSizeMB     int
	ImageMaxPerListing int
	CloudinaryURL      string
	CloudinaryFolder   string
	AwsAccessKeyID     string
	AwsSecretAccessKey string
	AwsRegion          string
	AwsS3Bucket        string
	ImageBaseS3URL     string

	// Telegram
	TelegramBotToken    string
	TelegramAdminChatID int64

	// App Defaults
	AppName            string
	MetadataCacheTTL   time.Duration
	ListingPageSize    int
	ListingOwnPageSize int
	ListingMaxPageSize int
	SeedFile           string

	// Rate Limiting Defaults
	RateLimitSoftBucketSize int
	RateLimitSoftRefillRate int // tokens per second
	RateLimitHardBucketSize int
	RateLimitHardRefillRate int // tokens per second
}

// Load configuration from environment variables.
// RunMode needs to be passed in as it comes from command-line flags.
func Load(runMode string) (*Config, error) {
	// Load .env file, ignoring errors if it doesn't exist
	_ = godotenv.Load()

	cfg := &Config{
		RunMode: runMode,
	}

	var err error

	getEnv := func(key, defaultValue string) string {
		if value, exists := os.LookupEnv(key); exists {
			return value
		}
		return defaultValue
	}

	getRequiredEnv := func(key string) (string, error) {
		value, exists := os.LookupEnv(key)
		if !exists || value == "" {
			return "", fmt.Errorf("missing required environment variable: %s", key)
		}
		return value, nil
	}

	getInt := func(key, defaultValue string) (int, error) {
		v, err := strconv.Atoi(getEnv(key, defaultValue))
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", key, err)
		}
		return v, nil
	}

	getSeconds := func(key, defaultValue string) (time.Duration, error) {
		v, err := strconv.ParseInt(getEnv(key, defaultValue), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", key, err)
		}
		return time.Duration(v) * time.Second, nil
	}

	cfg.MongoURI, err = getRequiredEnv("MONGO_URI")
	if err != nil {
		return nil, err
	}
	cfg.MongoDbName = getEnv("MONGO_DB_NAME", "findmyphone")
	cfg.RedisAddr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.RedisPassword = getEnv("REDIS_PASSWORD", "")
	cfg.JwtSecret, err = getRequiredEnv("JWT_SECRET")
	if err != nil {
		return nil, err
	}
	cfg.ApiPort = getEnv("API_PORT", "5000")
	cfg.ServiceApiPort = getEnv("SERVICE_API_PORT", "12345")
	cfg.CorsOrigin = getEnv("CORS_ORIGIN", "*")
	cfg.CloudflareTurnstileSecretKey = getEnv("CLOUDFLARE_TURNSTILE_SECRET_KEY", "")
	cfg.CloudflareSiteVerifyURL = getEnv("CLOUDFLARE_SITEVERIFY_URL", "https://challenges.cloudflare.com/turnstile/v0/siteverify")
	cfg.SmtpHost = getEnv("SMTP_HOST", "")
	cfg.SmtpUsername = getEnv("SMTP_USERNAME", "")
	cfg.SmtpPassword = getEnv("SMTP_PASSWORD", "")
	cfg.SmtpFromAddress = getEnv("SMTP_FROM_ADDRESS", "noreply@findmyphone.lk")
	cfg.ImageStorage = strings.ToLower(getEnv("IMAGE_STORAGE", ImageStorageS3))
	cfg.CloudinaryURL = getEnv("CLOUDINARY_URL", "")
	cfg.CloudinaryFolder = getEnv("CLOUDINARY_FOLDER", "lost-phone-platform")
	cfg.AwsAccessKeyID = getEnv("AWS_ACCESS_KEY_ID", "")
	cfg.AwsSecretAccessKey = getEnv("AWS_SECRET_ACCESS_KEY", "")
	cfg.AwsRegion = getEnv("AWS_REGION", "")
	cfg.AwsS3Bucket = getEnv("AWS_S3_BUCKET", "")
	cfg.ImageBaseS3URL = getEnv("IMAGE_BASE_S3_URL", "")
	cfg.TelegramBotToken = getEnv("TELEGRAM_BOT_TOKEN", "")
	cfg.AppName = getEnv("APP_NAME", "FindMyPhone")
	cfg.SeedFile = getEnv("SEED_FILE", "")

	switch cfg.ImageStorage {
	case ImageStorageS3, ImageStorageCloudinary:
	default:
		return nil, fmt.Errorf("invalid IMAGE_STORAGE: %q (expected %q or %q)", cfg.ImageStorage, ImageStorageS3, ImageStorageCloudinary)
	}

	if cfg.RedisDB, err = getInt("REDIS_DB", "0"); err != nil {
		return nil, err
	}
	if cfg.JwtTTL, err = getSeconds("JWT_TTL_SECONDS", "604800"); err != nil { // 7 days
		return nil, err
	}
	if cfg.CaptchaTokenTTL, err = getSeconds("CAPTCHA_TOKEN_TTL", "1200"); err != nil {
		return nil, err
	}
	if cfg.MetadataCacheTTL, err = getSeconds("METADATA_CACHE_TTL_SECONDS", "300"); err != nil {
		return nil, err
	}
	if cfg.SmtpPort, err = getInt("SMTP_PORT", "587"); err != nil {
		return nil, err
	}
	if cfg.ImageMaxDimension, err = getInt("IMAGE_MAX_DIMENSION", "1600"); err != nil {
		return nil, err
	}
	if cfg.ImageMaxSizeMB, err = getInt("IMAGE_MAX_SIZE_MB", "5"); err != nil {
		return nil, err
	}
	if cfg.ImageMaxPerListing, err = getInt("IMAGE_MAX_PER_LISTING", "5"); err != nil {
		return nil, err
	}
	if cfg.ListingPageSize, err = getInt("LISTING_PAGE_SIZE", "12"); err != nil {
		return nil, err
	}
	if cfg.ListingOwnPageSize, err = getInt("LISTING_OWN_PAGE_SIZE", "10"); err != nil {
		return nil, err
	}
	if cfg.ListingMaxPageSize, err = getInt("LISTING_MAX_PAGE_SIZE", "100"); err != nil {
		return nil, err
	}

	if chatID := getEnv("TELEGRAM_ADMIN_CHAT_ID", ""); chatID != "" {
		cfg.TelegramAdminChatID, err = strconv.ParseInt(chatID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid TELEGRAM_ADMIN_CHAT_ID: %w", err)
		}
	}

	// Rate Limiting
	if cfg.RateLimitSoftBucketSize, err = getInt("RATE_LIMIT_SOFT_BUCKET_SIZE", "20"); err != nil {
		return nil, err
	}
	if cfg.RateLimitSoftRefillRate, err = getInt("RATE_LIMIT_SOFT_REFILL_RATE", "5"); err != nil {
		return nil, err
	}
	if cfg.RateLimitHardBucketSize, err = getInt("RATE_LIMIT_HARD_BUCKET_SIZE", "60"); err != nil {
		return nil, err
	}
	if cfg.RateLimitHardRefillRate, err = getInt("RATE_LIMIT_HARD_REFILL_RATE", "20"); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ListingDefaults returns the page size bounds used by listing searches.
func (c *Config) ListingDefaults() (pageSize, ownPageSize, maxPageSize int) {
	pageSize, ownPageSize, maxPageSize = c.ListingPageSize, c.ListingOwnPageSize, c.ListingMaxPageSize
	if pageSize <= 0 {
		pageSize = 12
	}
	if ownPageSize <= 0 {
		ownPageSize = 10
	}
	if maxPageSize <= 0 {
		maxPageSize = 100
	}
	return
}

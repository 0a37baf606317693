package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Storage drivers understood by the object storage factory. The filesystem driver is meant
// for local development: its files are served without authentication, and only when
// app.env is "development".
const (
	StorageDriverCloudinary = "cloudinary"
	StorageDriverFilesystem = "filesystem"
)

const envDevelopment = "development"

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName                   string
	AppEnv                    string
	AppPort                   string
	CORSOrigins               string
	DatabaseURL               string
	RedisURL                  string
	NATSURL                   string
	EventSubjectPrefix        string
	JWTSecret                 string
	StorageDriver             string
	StorageTimeout            time.Duration
	StorageFSRoot             string
	StoragePublicBaseURL      string
	CloudinaryCloudName       string
	CloudinaryAPIKey          string
	CloudinaryAPISecret       string
	CloudinaryUploadFolder    string
	SubmissionMaxAttempts     int
	SubmissionConflictRetries int
	SubmissionRateLimit       int
	SubmissionRateWindow      time.Duration
	UploadMaxSizeMB           int
	ProgressCacheTTL          time.Duration
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// ServesLocalUploads reports whether the /files route exposing filesystem uploads is mounted.
func (c Config) ServesLocalUploads() bool {
	return c.StorageDriver == StorageDriverFilesystem && strings.EqualFold(strings.TrimSpace(c.AppEnv), envDevelopment)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("GEMA")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "GEMA Courseware API")
	v.SetDefault("app.env", envDevelopment)
	v.SetDefault("app.port", "8080")
	v.SetDefault("http.cors_origins", "*")
	v.SetDefault("events.subject_prefix", "gema.courseware")
	v.SetDefault("storage.driver", StorageDriverCloudinary)
	v.SetDefault("storage.timeout", "30s")
	v.SetDefault("storage.fs_root", "./data/uploads")
	v.SetDefault("storage.public_base_url", "http://localhost:8080/files")
	v.SetDefault("cloudinary.folder", "gema/courseware")
	v.SetDefault("submission.max_attempts", 10)
	v.SetDefault("submission.conflict_retries", 3)
	v.SetDefault("submission.rate_limit", 30)
	v.SetDefault("submission.rate_window", "1m")
	v.SetDefault("upload.max_size_mb", 20)
	v.SetDefault("progress.cache_ttl", "5m")

	storageTimeout, err := parseDuration(v.GetString("storage.timeout"), 30*time.Second)
	if err != nil {
		return Config{}, fmt.Errorf("invalid storage timeout: %w", err)
	}

	rateWindow, err := parseDuration(v.GetString("submission.rate_window"), time.Minute)
	if err != nil {
		return Config{}, fmt.Errorf("invalid submission rate window: %w", err)
	}

	cacheTTL, err := parseDuration(v.GetString("progress.cache_ttl"), 5*time.Minute)
	if err != nil {
		return Config{}, fmt.Errorf("invalid progress cache ttl: %w", err)
	}

	cfg := Config{
		AppName:                   v.GetString("app.name"),
		AppEnv:                    v.GetString("app.env"),
		AppPort:                   v.GetString("app.port"),
		CORSOrigins:               v.GetString("http.cors_origins"),
		DatabaseURL:               v.GetString("database.url"),
		RedisURL:                  v.GetString("redis.url"),
		NATSURL:                   v.GetString("nats.url"),
		EventSubjectPrefix:        v.GetString("events.subject_prefix"),
		JWTSecret:                 v.GetString("jwt.secret"),
		StorageDriver:             strings.ToLower(strings.TrimSpace(v.GetString("storage.driver"))),
		StorageTimeout:            storageTimeout,
		StorageFSRoot:             v.GetString("storage.fs_root"),
		StoragePublicBaseURL:      v.GetString("storage.public_base_url"),
		CloudinaryCloudName:       v.GetString("cloudinary.cloud_name"),
		CloudinaryAPIKey:          v.GetString("cloudinary.api_key"),
		CloudinaryAPISecret:       v.GetString("cloudinary.api_secret"),
		CloudinaryUploadFolder:    v.GetString("cloudinary.folder"),
		SubmissionMaxAttempts:     v.GetInt("submission.max_attempts"),
		SubmissionConflictRetries: v.GetInt("submission.conflict_retries"),
		SubmissionRateLimit:       v.GetInt("submission.rate_limit"),
		SubmissionRateWindow:      rateWindow,
		UploadMaxSizeMB:           v.GetInt("upload.max_size_mb"),
		ProgressCacheTTL:          cacheTTL,
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	switch cfg.StorageDriver {
	case StorageDriverCloudinary, StorageDriverFilesystem:
	default:
		return Config{}, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}

	if cfg.SubmissionMaxAttempts <= 0 {
		cfg.SubmissionMaxAttempts = 10
	}

	if cfg.SubmissionConflictRetries < 0 {
		cfg.SubmissionConflictRetries = 0
	}

	if cfg.UploadMaxSizeMB <= 0 {
		cfg.UploadMaxSizeMB = 20
	}

	return cfg, nil
}

func parseDuration(raw string, fallback time.Duration) (time.Duration, error) {
	if strings.TrimSpace(raw) == "" {
		return fallback, nil
	}

	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	if parsed <= 0 {
		return fallback, nil
	}

	return parsed, nil
}

package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string
	JWTSecret   string
	AdminToken  string
	GeoIPDBPath string

	GeminiAPIKey         string
	GeminiBaseURL        string
	GeminiModel          string
	GeminiFallbackModels []string
	ProviderTimeout      time.Duration

	GlobalCooldown     time.Duration
	UserCooldown       time.Duration
	DailyQuotaLimit    int
	MaxCacheEntries    int
	CacheEvictionBatch int

	UploadDir           string
	MaxUploadBytes      int64
	KeepUploads         bool
	DefaultLanguage     string
	MaintenanceInterval time.Duration

	HTTPReadTimeout    time.Duration
	HTTPWriteTimeout   time.Duration
	HTTPIdleTimeout    time.Duration
	RateLimitPerMin    int
	CORSAllowedOrigins []string
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
// DATABASE_URL is optional: without it the service runs with the analysis archive disabled.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:      getEnv("APP_ENV", "development"),
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		JWTSecret:   os.Getenv("JWT_SECRET"),
		AdminToken:  os.Getenv("ADMIN_TOKEN"),
		GeoIPDBPath: os.Getenv("GEOIP_DB_PATH"),

		GeminiAPIKey:         os.Getenv("GEMINI_API_KEY"),
		GeminiBaseURL:        getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
		GeminiModel:          getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		GeminiFallbackModels: getEnvList("GEMINI_FALLBACK_MODELS", []string{"gemini-flash-latest", "gemini-1.5-flash-latest"}),
		ProviderTimeout:      time.Second * time.Duration(getEnvInt("PROVIDER_TIMEOUT_SECONDS", 60)),

		GlobalCooldown:     time.Second * time.Duration(getEnvInt("GLOBAL_COOLDOWN_SECONDS", 60)),
		UserCooldown:       time.Second * time.Duration(getEnvInt("USER_COOLDOWN_SECONDS", 60)),
		DailyQuotaLimit:    getEnvInt("DAILY_QUOTA_LIMIT", 15),
		MaxCacheEntries:    getEnvInt("MAX_CACHE_ENTRIES", 1000),
		CacheEvictionBatch: getEnvInt("CACHE_EVICTION_BATCH", 100),

		UploadDir:           getEnv("UPLOAD_DIR", "data/uploads"),
		MaxUploadBytes:      int64(getEnvInt("MAX_UPLOAD_BYTES", 16*1024*1024)),
		KeepUploads:         getEnvBool("KEEP_UPLOADS", false),
		DefaultLanguage:     getEnv("DEFAULT_LANGUAGE", "en"),
		MaintenanceInterval: time.Minute * time.Duration(getEnvInt("MAINTENANCE_INTERVAL_MINUTES", 10)),

		HTTPReadTimeout:    time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout:   time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 90)),
		HTTPIdleTimeout:    time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:    getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", nil),
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	if cfg.DailyQuotaLimit <= 0 {
		return nil, fmt.Errorf("DAILY_QUOTA_LIMIT must be positive, got %d", cfg.DailyQuotaLimit)
	}

	if cfg.CacheEvictionBatch <= 0 || cfg.CacheEvictionBatch > cfg.MaxCacheEntries {
		return nil, fmt.Errorf("CACHE_EVICTION_BATCH must be in 1..MAX_CACHE_ENTRIES, got %d", cfg.CacheEvictionBatch)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
// ⭐ SSOT: 모든 환경변수는 여기서만 읽음
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Database (optional local price store)
	Database DatabaseConfig

	// Redis (optional shared result cache)
	Redis RedisConfig

	// External data sources
	KRX     KRXConfig
	Naver   NaverConfig
	Gateway GatewayConfig

	// Screening defaults
	Screening ScreeningConfig

	// Query result cache
	Cache CacheConfig

	// Logging
	LogLevel  string
	LogFormat string

	// Monitoring
	MetricsEnabled bool

	// Scheduler
	ScheduleEnabled bool
	WarmSchedule    string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// Enabled reports whether a database URL was configured
func (d DatabaseConfig) Enabled() bool {
	return d.URL != ""
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// KRXConfig holds KRX data portal configuration
type KRXConfig struct {
	BaseURL string
}

// NaverConfig holds Naver Finance configuration
type NaverConfig struct {
	BaseURL  string
	ChartURL string
}

// GatewayConfig controls how the market data gateway talks to upstream sources
type GatewayConfig struct {
	ProbeTimeout   time.Duration // 날짜 1회 조회 제한 시간
	RequestTimeout time.Duration
	RatePerSecond  float64
	Burst          int
	MaxRetries     int // 5xx/429/network retries per request; 0 disables
}

// ScreeningConfig holds default screening criteria
type ScreeningConfig struct {
	CapMin           int64 // 원
	CapMax           int64 // 원
	TopN             int
	DivPolicy        string // zero, exclude
	MaxBacktrackDays int
}

// CacheConfig holds query result cache configuration
type CacheConfig struct {
	MaxEntries int           // 0 = unbounded
	TTL        time.Duration // 0 = never expires
	RedisTTL   time.Duration
}

// Load reads configuration from environment variables
// ⭐ SSOT: 이 함수만 os.Getenv()를 호출함
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		// Server
		Port: getEnv("PORT", "8089"),
		Env:  getEnv("ENV", "development"),

		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 1),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
		},

		KRX: KRXConfig{
			BaseURL: getEnv("KRX_BASE_URL", "http://data.krx.co.kr"),
		},

		Naver: NaverConfig{
			BaseURL:  getEnv("NAVER_BASE_URL", "https://finance.naver.com"),
			ChartURL: getEnv("NAVER_CHART_URL", "https://fchart.stock.naver.com"),
		},

		Gateway: GatewayConfig{
			ProbeTimeout:   getEnvAsDuration("GATEWAY_PROBE_TIMEOUT", "20s"),
			RequestTimeout: getEnvAsDuration("GATEWAY_REQUEST_TIMEOUT", "15s"),
			RatePerSecond:  getEnvAsFloat("GATEWAY_RATE_PER_SECOND", 5),
			Burst:          getEnvAsInt("GATEWAY_BURST", 5),
			MaxRetries:     getEnvAsInt("GATEWAY_MAX_RETRIES", 3),
		},

		Screening: ScreeningConfig{
			CapMin:           getEnvAsInt64("SCREEN_CAP_MIN", 500_000_000_000),   // 5천억
			CapMax:           getEnvAsInt64("SCREEN_CAP_MAX", 1_000_000_000_000), // 1조
			TopN:             getEnvAsInt("SCREEN_TOP_N", 10),
			DivPolicy:        getEnv("SCREEN_DIV_POLICY", "zero"),
			MaxBacktrackDays: getEnvAsInt("SCREEN_MAX_BACKTRACK_DAYS", 14),
		},

		Cache: CacheConfig{
			MaxEntries: getEnvAsInt("CACHE_MAX_ENTRIES", 0),
			TTL:        getEnvAsDuration("CACHE_TTL", "0s"),
			RedisTTL:   getEnvAsDuration("CACHE_REDIS_TTL", "24h"),
		},

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "console"),

		// Monitoring
		MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),

		// Scheduler
		ScheduleEnabled: getEnvAsBool("SCHEDULE_ENABLED", false),
		WarmSchedule:    getEnv("WARM_SCHEDULE", "0 30 18 * * 1-5"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// validate reports every unusable setting at once
func (c *Config) validate() error {
	sc, gw := c.Screening, c.Gateway
	rules := []struct {
		bad bool
		msg string
	}{
		{c.Env != "development" && c.Env != "staging" && c.Env != "production", "ENV must be one of: development, staging, production"},
		{sc.CapMin < 0 || sc.CapMin > sc.CapMax, "SCREEN_CAP_MIN must be between 0 and SCREEN_CAP_MAX"},
		{sc.TopN < 1 || sc.TopN > 100, "SCREEN_TOP_N must be between 1 and 100"},
		{sc.DivPolicy != "zero" && sc.DivPolicy != "exclude", "SCREEN_DIV_POLICY must be one of: zero, exclude"},
		{sc.MaxBacktrackDays < 0, "SCREEN_MAX_BACKTRACK_DAYS must not be negative"},
		{gw.ProbeTimeout <= 0 || gw.RequestTimeout <= 0, "GATEWAY_PROBE_TIMEOUT and GATEWAY_REQUEST_TIMEOUT must be positive"},
		{gw.RatePerSecond <= 0 || gw.Burst < 1, "GATEWAY_RATE_PER_SECOND and GATEWAY_BURST must be positive"},
		{gw.MaxRetries < 0, "GATEWAY_MAX_RETRIES must not be negative"},
	}

	var errs []error
	for _, r := range rules {
		if r.bad {
			errs = append(errs, errors.New(r.msg))
		}
	}
	return errors.Join(errs...)
}

// loadEnvFile loads the first .env found; real environment variables win
func loadEnvFile() {
	candidates := []string{".env", filepath.Join("backend", ".env")}
	if exe, err := os.Executable(); err == nil {
		dir := filepath.Dir(exe)
		candidates = append(candidates, filepath.Join(dir, ".env"), filepath.Join(dir, "..", ".env"))
	}

	for _, p := range candidates {
		if godotenv.Load(p) == nil {
			return
		}
	}
}

// envOr parses key with parse, falling back to def when unset or malformed
func envOr[T any](key string, def T, parse func(string) (T, error)) T {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return def
	}
	v, err := parse(raw)
	if err != nil {
		return def
	}
	return v
}

func getEnv(key, def string) string {
	return envOr(key, def, func(s string) (string, error) { return s, nil })
}

func getEnvAsInt(key string, def int) int {
	return envOr(key, def, strconv.Atoi)
}

func getEnvAsInt64(key string, def int64) int64 {
	return envOr(key, def, func(s string) (int64, error) { return strconv.ParseInt(s, 10, 64) })
}

func getEnvAsFloat(key string, def float64) float64 {
	return envOr(key, def, func(s string) (float64, error) { return strconv.ParseFloat(s, 64) })
}

func getEnvAsBool(key string, def bool) bool {
	return envOr(key, def, strconv.ParseBool)
}

// getEnvAsDuration takes the default as a string so call sites read like the env file
func getEnvAsDuration(key, def string) time.Duration {
	fallback, _ := time.ParseDuration(def)
	return envOr(key, fallback, time.ParseDuration)
}

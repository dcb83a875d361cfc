package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	OTP      OTPConfig
	ODMatrix ODMatrixConfig
	Logging  LoggingConfig
	Metrics  MetricsConfig
	NATS     NATSConfig
	Discord  DiscordConfig
}

// OTPConfig points at the routing service
type OTPConfig struct {
	BaseURL       string
	Router        string
	Timeout       time.Duration
	PlanCacheSize int
	PlanCacheTTL  time.Duration
}

// ODMatrixConfig bounds the work done per OD-matrix run
type ODMatrixConfig struct {
	Workers       int
	PairTimeout   time.Duration
	BufferDegrees float64
}

type LoggingConfig struct {
	Level    string
	FilePath string
}

type MetricsConfig struct {
	Addr string
}

type NATSConfig struct {
	URL           string
	SubjectPrefix string
}

type DiscordConfig struct {
	WebhookURL string
}

// Load reads an optional .env file and then the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	workers, err := getIntEnv("OD_WORKERS", 1)
	if err != nil {
		return nil, err
	}
	cacheSize, err := getIntEnv("OTP_PLAN_CACHE_SIZE", 1000)
	if err != nil {
		return nil, err
	}
	buffer, err := getFloatEnv("OD_BUFFER_DEGREES", 0.00001)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		OTP: OTPConfig{
			BaseURL:       getEnv("OTP_BASE_URL", "http://localhost:8080"),
			Router:        getEnv("OTP_ROUTER", "default"),
			Timeout:       getDurationEnv("OTP_HTTP_TIMEOUT", 60*time.Second),
			PlanCacheSize: cacheSize,
			PlanCacheTTL:  getDurationEnv("OTP_PLAN_CACHE_TTL", 10*time.Minute),
		},
		ODMatrix: ODMatrixConfig{
			Workers:       workers,
			PairTimeout:   getDurationEnv("OD_PAIR_TIMEOUT", 2*time.Minute),
			BufferDegrees: buffer,
		},
		Logging: LoggingConfig{
			Level:    getEnv("LOG_LEVEL", "info"),
			FilePath: getEnv("LOG_FILE", "otpanalysis.log"),
		},
		Metrics: MetricsConfig{
			Addr: os.Getenv("METRICS_ADDR"),
		},
		NATS: NATSConfig{
			URL:           os.Getenv("NATS_URL"),
			SubjectPrefix: getEnv("NATS_SUBJECT_PREFIX", "otpanalysis"),
		},
		Discord: DiscordConfig{
			WebhookURL: os.Getenv("DISCORD_WEBHOOK_URL"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values no run could work with.
func (c *Config) Validate() error {
	u, err := url.Parse(c.OTP.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid OTP_BASE_URL: %q", c.OTP.BaseURL)
	}
	if c.OTP.Router == "" {
		return fmt.Errorf("OTP_ROUTER cannot be empty")
	}
	if c.OTP.Timeout <= 0 {
		return fmt.Errorf("OTP_HTTP_TIMEOUT must be positive")
	}
	if c.OTP.PlanCacheSize < 0 {
		return fmt.Errorf("OTP_PLAN_CACHE_SIZE cannot be negative")
	}
	if c.ODMatrix.Workers <= 0 {
		return fmt.Errorf("OD_WORKERS must be positive")
	}
	if c.ODMatrix.PairTimeout <= 0 {
		return fmt.Errorf("OD_PAIR_TIMEOUT must be positive")
	}
	if c.ODMatrix.BufferDegrees <= 0 {
		return fmt.Errorf("OD_BUFFER_DEGREES must be positive")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", key, value)
	}
	return n, nil
}

func getFloatEnv(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", key, value)
	}
	return f, nil
}

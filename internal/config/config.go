package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aman-zulfiqar/minidex/internal/amm"
	"github.com/aman-zulfiqar/minidex/internal/pool"
	"github.com/sirupsen/logrus"
)

type Config struct {
	// API settings
	APIAddr        string
	APIKey         string
	DevMode        bool
	LogLevel       string
	RequestTimeout time.Duration
	RateLimitRPS   float64
	RateLimitBurst int

	// Pool settings
	ProgramID         string
	DefaultFeeBps     uint64
	MaxPriceImpactBps uint64
	MaxSlippageBps    uint64
	AllowedAssets     []string
	BootstrapFile     string

	// Redis settings (empty = in-memory pool store)
	RedisAddr string

	// ClickHouse settings (empty = no event archive)
	ClickHouseAddr     string
	ClickHouseDatabase string
	ClickHouseUsername string
	ClickHousePassword string
}

func Load() *Config {
	return &Config{
		// API
		APIAddr:        getEnv("API_ADDR", ":8090"),
		APIKey:         getEnv("API_KEY", ""),
		DevMode:        getBoolEnv("DEV_MODE", false),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		RequestTimeout: getDurationEnv("REQUEST_TIMEOUT", 10*time.Second),
		RateLimitRPS:   getFloatEnv("RATE_LIMIT_RPS", 20),
		RateLimitBurst: getIntEnv("RATE_LIMIT_BURST", 40),

		// Pools
		ProgramID:         getEnv("POOL_PROGRAM_ID", pool.DefaultProgramID.String()),
		DefaultFeeBps:     getUintEnv("POOL_DEFAULT_FEE_BPS", pool.DefaultFeeBps),
		MaxPriceImpactBps: getUintEnv("POOL_MAX_PRICE_IMPACT_BPS", 0),
		MaxSlippageBps:    getUintEnv("POOL_MAX_SLIPPAGE_BPS", 5000),
		AllowedAssets:     getListEnv("POOL_ALLOWED_ASSETS"),
		BootstrapFile:     getEnv("POOL_BOOTSTRAP_FILE", ""),

		// Redis
		RedisAddr: getEnv("REDIS_ADDR", ""),

		// ClickHouse
		ClickHouseAddr:     getEnv("CLICKHOUSE_ADDR", ""),
		ClickHouseDatabase: getEnv("CLICKHOUSE_DATABASE", "minidex"),
		ClickHouseUsername: getEnv("CLICKHOUSE_USERNAME", "default"),
		ClickHousePassword: getEnv("CLICKHOUSE_PASSWORD", ""),
	}
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.APIAddr) == "" {
		errs = append(errs, errors.New("API_ADDR is required"))
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("LOG_LEVEL: %w", err))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, errors.New("REQUEST_TIMEOUT must be > 0"))
	}
	if c.RateLimitRPS < 0 {
		errs = append(errs, errors.New("RATE_LIMIT_RPS must be >= 0"))
	}
	if _, err := pool.ParseKey(c.ProgramID); err != nil {
		errs = append(errs, fmt.Errorf("POOL_PROGRAM_ID: %w", err))
	}
	if c.DefaultFeeBps > amm.BpsDenominator {
		errs = append(errs, fmt.Errorf("POOL_DEFAULT_FEE_BPS must be <= %d", amm.BpsDenominator))
	}
	if c.MaxSlippageBps > amm.BpsDenominator {
		errs = append(errs, fmt.Errorf("POOL_MAX_SLIPPAGE_BPS must be <= %d", amm.BpsDenominator))
	}
	for _, a := range c.AllowedAssets {
		if _, err := pool.ParseAsset(a); err != nil {
			errs = append(errs, fmt.Errorf("POOL_ALLOWED_ASSETS %q: %w", a, err))
		}
	}
	return errors.Join(errs...)
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getIntEnv(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getUintEnv(key string, defaultVal uint64) uint64 {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.ParseUint(val, 10, 64); err == nil {
			return i
		}
	}
	return defaultVal
}

func getFloatEnv(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getBoolEnv(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getDurationEnv(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

// getListEnv splits a comma separated value, dropping empty items.
func getListEnv(key string) []string {
	var out []string
	for _, p := range strings.Split(os.Getenv(key), ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

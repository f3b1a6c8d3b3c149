package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Helius
	HeliusAPIKey  string
	HeliusBaseURL string
	Commitment    string

	// Birdeye (optional, enriches reports)
	BirdeyeAPIKey  string
	BirdeyeBaseURL string

	// Pagination
	PageLimit   int
	MaxPages    int
	PageDelay   time.Duration
	HTTPTimeout time.Duration

	// Cache
	CacheDir      string
	CacheTTL      time.Duration
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Analysis targets
	Tokens        []string
	WindowMinutes int
	CronSpec      string

	// DB
	DBPath string

	// API
	APIPort int

	Thresholds Thresholds
}

// Thresholds collects the heuristic constants used by the classifier and
// categorizer. Defaults are tuned for SOL-priced pairs.
type Thresholds struct {
	// Volume buckets: very_small/small/medium/large cutoffs.
	NativeBuckets [4]float64 // SOL-denominated amounts
	TokenBuckets  [4]float64 // token-denominated amounts

	// Pattern detection
	FlashLoanTolerance float64       // net in/out considered round-tripped
	SlippagePct        float64       // implied-price move flagged as high slippage
	RapidTradeWindow   time.Duration // same-wallet swap gap counted as rapid
	BotTradeWindow     time.Duration // same-wallet swap gap counted as a bot trade
	LargeTransfer      float64       // amount counted as a large transfer
	SandwichWindow     time.Duration // gap between large swaps flagged as sandwich
	WashTradeWindow    time.Duration // wallet burst window flagged as wash trading
	WashTradeMinTxs    int

	// Trader categories
	MinBotTrades           int
	MaxAvgTradeGap         time.Duration
	RapidTradeFraction     float64
	SniperSlippageFraction float64
	WhaleVolume            float64 // total volume in SOL
	LargeTradeSize         float64 // single trade in SOL
	LargeTradeFraction     float64
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		NativeBuckets:      [4]float64{0.1, 1, 10, 100},
		TokenBuckets:       [4]float64{100, 1_000, 10_000, 100_000},
		FlashLoanTolerance: 0.01,
		SlippagePct:        0.05,
		RapidTradeWindow:   60 * time.Second,
		BotTradeWindow:     3 * time.Second,
		LargeTransfer:      1000,
		SandwichWindow:     60 * time.Second,
		WashTradeWindow:    300 * time.Second,
		WashTradeMinTxs:    3,

		MinBotTrades:           50,
		MaxAvgTradeGap:         60 * time.Second,
		RapidTradeFraction:     0.8,
		SniperSlippageFraction: 0.3,
		WhaleVolume:            100,
		LargeTradeSize:         10,
		LargeTradeFraction:     0.5,
	}
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		HeliusAPIKey:  os.Getenv("HELIUS_API_KEY"),
		HeliusBaseURL: envOr("HELIUS_BASE_URL", "https://api.helius.xyz"),
		Commitment:    envOr("HELIUS_COMMITMENT", "confirmed"),

		BirdeyeAPIKey:  os.Getenv("BIRDEYE_API_KEY"),
		BirdeyeBaseURL: envOr("BIRDEYE_BASE_URL", "https://public-api.birdeye.so/defi"),

		PageLimit:   envInt("HELIUS_PAGE_LIMIT", 100),
		MaxPages:    envInt("HELIUS_MAX_PAGES", 20),
		PageDelay:   time.Duration(envInt("HELIUS_PAGE_DELAY_MS", 100)) * time.Millisecond,
		HTTPTimeout: time.Duration(envInt("HTTP_TIMEOUT_SECONDS", 30)) * time.Second,

		CacheDir:      envOr("CACHE_DIR", ".cache/transactions"),
		CacheTTL:      time.Duration(envInt("CACHE_TTL_SECONDS", 60)) * time.Second,
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       envInt("REDIS_DB", 0),

		Tokens:        splitTrim(os.Getenv("TOKEN_ADDRESSES")),
		WindowMinutes: envInt("ANALYSIS_WINDOW_MINUTES", 5),
		CronSpec:      envOr("ANALYSIS_CRON", "@every 5m"),

		DBPath:  envOr("DB_PATH", "token_pulse.db"),
		APIPort: envInt("API_PORT", 8080),

		Thresholds: DefaultThresholds(),
	}

	// Threshold overrides
	cfg.Thresholds.FlashLoanTolerance = envFloat("FLASH_LOAN_TOLERANCE", cfg.Thresholds.FlashLoanTolerance)
	cfg.Thresholds.SlippagePct = envFloat("HIGH_SLIPPAGE_PCT", cfg.Thresholds.SlippagePct)
	cfg.Thresholds.WhaleVolume = envFloat("WHALE_VOLUME_SOL", cfg.Thresholds.WhaleVolume)
	cfg.Thresholds.MinBotTrades = envInt("MIN_BOT_TRADES", cfg.Thresholds.MinBotTrades)

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.HeliusAPIKey == "" {
		return fmt.Errorf("missing HELIUS_API_KEY — required for transaction fetching")
	}
	if c.WindowMinutes <= 0 {
		return fmt.Errorf("ANALYSIS_WINDOW_MINUTES must be positive, got %d", c.WindowMinutes)
	}
	return nil
}

// helpers
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func splitTrim(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	var result []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

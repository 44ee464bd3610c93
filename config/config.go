package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	noticeerrors "cafenotice/noticebot/pkg/errors"
)

// Config represents the application configuration
type Config struct {
	// Discord configuration
	DiscordToken      string
	NoticeChannelID   string
	NoticeChannelName string
	CommandRatePerMin int

	// Browser configuration
	FetchMode   string
	ChromePath  string
	NavTimeout  time.Duration
	SettleDelay time.Duration
	RetryDelay  time.Duration

	// Cafe sources
	CafeBaseURL  string
	UpdateURL    string
	CouponURL    string
	PostSelector string
	MaxPosts     int

	// Polling configuration
	PollInterval time.Duration
	PollSchedule string
	PrimeOnStart bool

	// Seen set configuration
	SeenKey      string
	SeenBackend  string
	MemcacheAddr string
	RedisAddr    string
	RedisDB      int
	RedisSeenKey string

	// Redis stream mirror, disabled when RedisStream is empty
	RedisStream          string
	RedisStreamCount     int
	RedisStreamMaxLength int

	// Keep-alive endpoint
	KeepAliveAddr string

	// Environment
	Environment string
}

const (
	FetchModeChrome = "chrome"
	FetchModeHTTP   = "http"

	SeenKeyTitle = "title"
	SeenKeyLink  = "link"

	SeenBackendMemory   = "memory"
	SeenBackendMemcache = "memcache"
	SeenBackendRedis    = "redis"

	// MaxPostsLimit is the hard upper bound for posts returned per fetch
	MaxPostsLimit = 10
)

// DefaultPostSelector matches article anchors on the mobile cafe menu page
const DefaultPostSelector = "a[href*='/ArticleRead.nhn'], a[href*='/articles/']"

// LoadConfig loads the configuration from environment variables with defaults
func LoadConfig() Config {
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	redisStreamCount, _ := strconv.Atoi(getEnv("REDIS_STREAM_COUNT", "1"))
	redisStreamMaxLength, _ := strconv.Atoi(getEnv("REDIS_STREAM_MAX_LENGTH", "500"))
	maxPosts, _ := strconv.Atoi(getEnv("MAX_POSTS", "5"))
	pollInterval, _ := strconv.Atoi(getEnv("POLL_INTERVAL_SECONDS", "300"))
	navTimeout, _ := strconv.Atoi(getEnv("NAV_TIMEOUT_SECONDS", "60"))
	settleDelay, _ := strconv.Atoi(getEnv("SETTLE_DELAY_MS", "2000"))
	retryDelay, _ := strconv.Atoi(getEnv("RETRY_DELAY_SECONDS", "0"))
	commandRate, _ := strconv.Atoi(getEnv("COMMAND_RATE_PER_MIN", "6"))
	primeOnStart, _ := strconv.ParseBool(getEnv("PRIME_ON_START", "false"))

	token := os.Getenv("DISCORD_TOKEN")
	if token == "" {
		token = os.Getenv("TOKEN")
	}

	cfg := Config{
		DiscordToken:         token,
		NoticeChannelID:      getEnv("NOTICE_CHANNEL_ID", ""),
		NoticeChannelName:    getEnv("NOTICE_CHANNEL_NAME", "트릭컬공지"),
		CommandRatePerMin:    commandRate,
		FetchMode:            strings.ToLower(getEnv("FETCH_MODE", FetchModeChrome)),
		ChromePath:           getEnv("CHROME_PATH", ""),
		NavTimeout:           time.Duration(navTimeout) * time.Second,
		SettleDelay:          time.Duration(settleDelay) * time.Millisecond,
		RetryDelay:           time.Duration(retryDelay) * time.Second,
		CafeBaseURL:          getEnv("CAFE_BASE_URL", "https://m.cafe.naver.com"),
		UpdateURL:            getEnv("UPDATE_URL", "https://m.cafe.naver.com/ca-fe/web/cafes/30131231/menus/67"),
		CouponURL:            getEnv("COUPON_URL", "https://m.cafe.naver.com/ca-fe/web/cafes/30131231/menus/85"),
		PostSelector:         getEnv("POST_SELECTOR", DefaultPostSelector),
		MaxPosts:             clamp(maxPosts, 1, MaxPostsLimit),
		PollInterval:         time.Duration(pollInterval) * time.Second,
		PrimeOnStart:         primeOnStart,
		SeenKey:              strings.ToLower(getEnv("SEEN_KEY", SeenKeyTitle)),
		SeenBackend:          strings.ToLower(getEnv("SEEN_BACKEND", SeenBackendMemory)),
		MemcacheAddr:         getEnv("MEMCACHE_ADDR", "localhost:11211"),
		RedisAddr:            getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:              redisDB,
		RedisSeenKey:         getEnv("REDIS_SEEN_KEY", "noticebot:seen"),
		RedisStream:          getEnv("REDIS_STREAM", ""),
		RedisStreamCount:     redisStreamCount,
		RedisStreamMaxLength: redisStreamMaxLength,
		KeepAliveAddr:        getEnv("KEEPALIVE_ADDR", ":3000"),
		Environment:          getEnv("NOTICE_ENVIRONMENT", "development"),
	}

	cfg.PollSchedule = getEnv("POLL_SCHEDULE", "")
	if cfg.PollSchedule == "" && cfg.PollInterval > 0 {
		cfg.PollSchedule = fmt.Sprintf("@every %s", cfg.PollInterval)
	}

	return cfg
}

// Validate checks the configuration for values the bot cannot run without
func (c Config) Validate() error {
	var errs []error

	if c.DiscordToken == "" {
		errs = append(errs, errors.New("DISCORD_TOKEN (or TOKEN) is required"))
	}
	if c.UpdateURL == "" || c.CouponURL == "" {
		errs = append(errs, errors.New("UPDATE_URL and COUPON_URL must not be empty"))
	}
	if c.PollSchedule == "" {
		errs = append(errs, errors.New("POLL_SCHEDULE or a positive POLL_INTERVAL_SECONDS is required"))
	}

	switch c.FetchMode {
	case FetchModeChrome, FetchModeHTTP:
	default:
		errs = append(errs, fmt.Errorf("unknown FETCH_MODE %q", c.FetchMode))
	}

	switch c.SeenKey {
	case SeenKeyTitle, SeenKeyLink:
	default:
		errs = append(errs, fmt.Errorf("unknown SEEN_KEY %q", c.SeenKey))
	}

	switch c.SeenBackend {
	case SeenBackendMemory, SeenBackendMemcache, SeenBackendRedis:
	default:
		errs = append(errs, fmt.Errorf("unknown SEEN_BACKEND %q", c.SeenBackend))
	}

	if c.RedisStream != "" && c.RedisStreamCount <= 0 {
		errs = append(errs, errors.New("REDIS_STREAM_COUNT must be positive"))
	}

	if len(errs) == 0 {
		return nil
	}
	return noticeerrors.NewConfiguration("invalid configuration", errors.Join(errs...))
}

// IsProduction reports whether the bot runs in the production environment
func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

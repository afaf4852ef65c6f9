package genbot

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/alovak/cardgen-bot/internal/access"
	"github.com/joho/godotenv"
)

// Config is a configuration for the bot application
type Config struct {
	HTTPAddr string
	BotToken string
	Admin    access.Admin
	// RequiredChannel, when set, is a channel (e.g. "@news") users must join
	// before using gated commands.
	RequiredChannel string

	// AccessBackend is "file" or "pg".
	AccessBackend string
	AccessFile    string
	DBDSN         string

	// BINAPIURL is the remote lookup base; empty disables remote lookups.
	BINAPIURL     string
	BINAPITimeout time.Duration
	// BINTablePath optionally extends the curated BIN table; it is watched for changes.
	BINTablePath string
	RedisAddr    string
	BINCacheTTL  time.Duration

	GenDefaultCount int
	GenMaxCount     int
	GenMaxAttempts  int
	BatchMaxItems   int
	// ExpiryTZ is the location in which card expiry is evaluated.
	ExpiryTZ string

	LogLevel  string
	LogFormat string
}

func DefaultConfig() *Config {
	return &Config{
		HTTPAddr:        ":3000",
		AccessBackend:   "file",
		AccessFile:      "users.json",
		BINAPIURL:       "https://lookup.binlist.net",
		BINAPITimeout:   5 * time.Second,
		BINCacheTTL:     24 * time.Hour,
		GenDefaultCount: 20,
		GenMaxCount:     50,
		GenMaxAttempts:  1000,
		BatchMaxItems:   50,
		ExpiryTZ:        "UTC",
		LogLevel:        "info",
		LogFormat:       "text",
	}
}

// LoadConfig reads a .env file if present and then the environment.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := DefaultConfig()
	cfg.BotToken = os.Getenv("BOT_TOKEN")
	if port := os.Getenv("PORT"); port != "" {
		cfg.HTTPAddr = ":" + port
	}
	cfg.HTTPAddr = getenv("HTTP_ADDR", cfg.HTTPAddr)
	cfg.Admin.Username = os.Getenv("ADMIN_USERNAME")
	cfg.RequiredChannel = os.Getenv("REQUIRED_CHANNEL")
	cfg.AccessBackend = getenv("ACCESS_BACKEND", cfg.AccessBackend)
	cfg.AccessFile = getenv("ACCESS_FILE", cfg.AccessFile)
	cfg.DBDSN = os.Getenv("DB_DSN")
	cfg.BINAPIURL = getenv("BIN_API_URL", cfg.BINAPIURL)
	if cfg.BINAPIURL == "off" {
		cfg.BINAPIURL = ""
	}
	cfg.BINTablePath = os.Getenv("BIN_TABLE_PATH")
	cfg.RedisAddr = os.Getenv("REDIS_ADDR")
	cfg.ExpiryTZ = getenv("EXPIRY_TZ", cfg.ExpiryTZ)
	cfg.LogLevel = getenv("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getenv("LOG_FORMAT", cfg.LogFormat)

	if v := os.Getenv("ADMIN_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid ADMIN_ID %q: %w", v, err)
		}
		cfg.Admin.ID = id
	}

	var err error
	if cfg.BINAPITimeout, err = durationEnv("BIN_API_TIMEOUT", cfg.BINAPITimeout); err != nil {
		return nil, err
	}
	if cfg.BINCacheTTL, err = durationEnv("BIN_CACHE_TTL", cfg.BINCacheTTL); err != nil {
		return nil, err
	}
	for key, dst := range map[string]*int{
		"GEN_DEFAULT_COUNT": &cfg.GenDefaultCount,
		"GEN_MAX_COUNT":     &cfg.GenMaxCount,
		"GEN_MAX_ATTEMPTS":  &cfg.GenMaxAttempts,
		"BATCH_MAX_ITEMS":   &cfg.BatchMaxItems,
	} {
		if *dst, err = intEnv(key, *dst); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings that would otherwise fail later at runtime.
func (c *Config) Validate() error {
	if c.Admin.ID == 0 && c.Admin.Username == "" {
		return fmt.Errorf("ADMIN_ID or ADMIN_USERNAME is required")
	}
	switch c.AccessBackend {
	case "file":
		if c.AccessFile == "" {
			return fmt.Errorf("ACCESS_FILE is required for file backend")
		}
	case "pg":
		if c.DBDSN == "" {
			return fmt.Errorf("DB_DSN is required for pg backend")
		}
	default:
		return fmt.Errorf("unsupported ACCESS_BACKEND=%s", c.AccessBackend)
	}
	if c.GenDefaultCount <= 0 || c.GenMaxCount < c.GenDefaultCount {
		return fmt.Errorf("GEN_DEFAULT_COUNT must be in 1..GEN_MAX_COUNT")
	}
	if c.BatchMaxItems <= 0 {
		return fmt.Errorf("BATCH_MAX_ITEMS must be positive")
	}
	return nil
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func intEnv(k string, def int) (int, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", k, v, err)
	}
	return i, nil
}

func durationEnv(k string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", k, v, err)
	}
	return d, nil
}

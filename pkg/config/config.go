package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the application configuration.
type Config struct {
	ServerPort string `mapstructure:"SERVER_PORT"`
	LogLevel   string `mapstructure:"LOG_LEVEL"`
	LogFormat  string `mapstructure:"LOG_FORMAT"`

	DatabaseURL      string `mapstructure:"DATABASE_URL"`
	PostgresHost     string `mapstructure:"POSTGRES_HOST"`
	PostgresPort     string `mapstructure:"POSTGRES_PORT"`
	PostgresUser     string `mapstructure:"POSTGRES_USER"`
	PostgresPassword string `mapstructure:"POSTGRES_PASSWORD"`
	PostgresDB       string `mapstructure:"POSTGRES_DB"`
	PGMaxConns       int32  `mapstructure:"PG_MAX_CONNS"`

	RedisAddr            string `mapstructure:"REDIS_ADDR"`
	RedisPassword        string `mapstructure:"REDIS_PASSWORD"`
	RedisDB              int    `mapstructure:"REDIS_DB"`
	StatsCacheTTLSeconds int    `mapstructure:"STATS_CACHE_TTL_SECONDS"`

	WebDriverURL           string  `mapstructure:"WEB_DRIVER_URL"`
	ChromeBin              string  `mapstructure:"CHROME_BIN"`
	ReplayDir              string  `mapstructure:"REPLAY_DIR"`
	MarketplaceURL         string  `mapstructure:"MARKETPLACE_URL"`
	Currency               string  `mapstructure:"CURRENCY"`
	ScraperSleepSecs       int     `mapstructure:"SCRAPER_SLEEP_SECS"`
	ScreenshotDir          string  `mapstructure:"SCREENSHOT_DIR"`
	CatalogFiles           string  `mapstructure:"CATALOG_FILES"`
	LookupAttempts         int     `mapstructure:"LOOKUP_ATTEMPTS"`
	LookupDelayMS          int     `mapstructure:"LOOKUP_DELAY_MS"`
	PageLoadTimeoutSeconds int     `mapstructure:"PAGE_LOAD_TIMEOUT_SECONDS"`
	PageRPS                float64 `mapstructure:"PAGE_RPS"`
	ContinueOnError        bool    `mapstructure:"CONTINUE_ON_ERROR"`

	ShutdownTimeoutSeconds int `mapstructure:"SHUTDOWN_TIMEOUT_SECONDS"`
}

var defaults = map[string]any{
	"SERVER_PORT":               "8080",
	"LOG_LEVEL":                 "info",
	"LOG_FORMAT":                "json",
	"DATABASE_URL":              "",
	"POSTGRES_HOST":             "localhost",
	"POSTGRES_PORT":             "5432",
	"POSTGRES_USER":             "user",
	"POSTGRES_PASSWORD":         "password",
	"POSTGRES_DB":               "soldprice",
	"PG_MAX_CONNS":              10,
	"REDIS_ADDR":                "",
	"REDIS_PASSWORD":            "",
	"REDIS_DB":                  0,
	"STATS_CACHE_TTL_SECONDS":   300,
	"WEB_DRIVER_URL":            "",
	"CHROME_BIN":                "",
	"REPLAY_DIR":                "",
	"MARKETPLACE_URL":           "https://www.ebay.co.uk/",
	"CURRENCY":                  "GBP",
	"SCRAPER_SLEEP_SECS":        20,
	"SCREENSHOT_DIR":            "screenshots",
	"CATALOG_FILES":             "",
	"LOOKUP_ATTEMPTS":           5,
	"LOOKUP_DELAY_MS":           3000,
	"PAGE_LOAD_TIMEOUT_SECONDS": 60,
	"PAGE_RPS":                  0.5,
	"CONTINUE_ON_ERROR":         false,
	"SHUTDOWN_TIMEOUT_SECONDS":  10,
}

// Load reads configuration from an optional .env file and the environment.
// Variables already set in the environment win over the file.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		// A missing file is fine: production is configured purely by environment.
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.LookupAttempts < 1 {
		return fmt.Errorf("LOOKUP_ATTEMPTS must be at least 1, got %d", c.LookupAttempts)
	}
	if c.ScraperSleepSecs < 0 {
		return fmt.Errorf("SCRAPER_SLEEP_SECS must not be negative, got %d", c.ScraperSleepSecs)
	}
	if c.PageRPS < 0 {
		return fmt.Errorf("PAGE_RPS must not be negative, got %v", c.PageRPS)
	}
	return nil
}

// PostgresURL returns DATABASE_URL, or a URL built from the POSTGRES_* parts.
func (c *Config) PostgresURL() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.PostgresUser, c.PostgresPassword),
		Host:     c.PostgresHost + ":" + c.PostgresPort,
		Path:     c.PostgresDB,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

// CatalogPaths splits CATALOG_FILES on commas, dropping blanks.
func (c *Config) CatalogPaths() []string {
	var out []string
	for _, p := range strings.Split(c.CatalogFiles, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *Config) LookupDelay() time.Duration {
	return time.Duration(c.LookupDelayMS) * time.Millisecond
}

func (c *Config) PageLoadTimeout() time.Duration {
	return time.Duration(c.PageLoadTimeoutSeconds) * time.Second
}

func (c *Config) SleepInterval() time.Duration {
	return time.Duration(c.ScraperSleepSecs) * time.Second
}

func (c *Config) StatsCacheTTL() time.Duration {
	return time.Duration(c.StatsCacheTTLSeconds) * time.Second
}

func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSeconds) * time.Second
}

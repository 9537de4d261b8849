package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	DataSource struct {
		Provider          string        `yaml:"provider"` // alphavantage, yahoo or mock
		BaseURL           string        `yaml:"base_url"`
		APIKey            string        `yaml:"api_key"`
		OutputSize        string        `yaml:"output_size"`
		RequestsPerMinute int           `yaml:"requests_per_minute"`
		MaxRetries        int           `yaml:"max_retries"`
		Timeout           time.Duration `yaml:"timeout"`
	} `yaml:"data_source"`
	Refresh struct {
		Interval      time.Duration `yaml:"interval"`
		AutoRefresh   bool          `yaml:"auto_refresh"`
		DefaultSymbol string        `yaml:"default_symbol"`
	} `yaml:"refresh"`
	Watchlist struct {
		Backend  string   `yaml:"backend"` // file, sqlite or postgres
		File     string   `yaml:"file"`
		Defaults []string `yaml:"defaults"`
	} `yaml:"watchlist"`
	Database struct {
		SQLitePath  string `yaml:"sqlite_path"`
		PostgresDSN string `yaml:"postgres_dsn"`
	} `yaml:"database"`
	Schedule struct {
		ArchiveCron string `yaml:"archive_cron"`
	} `yaml:"schedule"`
	Redis struct {
		Addr      string        `yaml:"addr"`
		Password  string        `yaml:"password"`
		DB        int           `yaml:"db"`
		KeyPrefix string        `yaml:"key_prefix"`
		TTL       time.Duration `yaml:"ttl"`
	} `yaml:"redis"`
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	HTTP struct {
		Addr string `yaml:"addr"`
	} `yaml:"http"`
	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
	Proxy string `yaml:"proxy"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	cfg := &Config{}
	cfg.Refresh.AutoRefresh = true
	applyDefaults(cfg)
	return cfg
}

// Load reads .env, then the YAML file, then applies environment variable overrides and defaults.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg(".env file not found, relying on actual environment variables")
	}

	cfg := &Config{}
	cfg.Refresh.AutoRefresh = true

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	setString(&cfg.DataSource.Provider, "DATA_PROVIDER")
	setString(&cfg.DataSource.BaseURL, "DATA_BASE_URL")
	setString(&cfg.DataSource.APIKey, "ALPHAVANTAGE_API_KEY")
	setString(&cfg.Refresh.DefaultSymbol, "DEFAULT_SYMBOL")
	setString(&cfg.Watchlist.Backend, "WATCHLIST_BACKEND")
	setString(&cfg.Database.SQLitePath, "SQLITE_PATH")
	setString(&cfg.Database.PostgresDSN, "POSTGRES_DSN")
	setString(&cfg.Schedule.ArchiveCron, "CRON_ARCHIVE")
	setString(&cfg.Redis.Addr, "REDIS_ADDR")
	setString(&cfg.Redis.Password, "REDIS_PASSWORD")
	setString(&cfg.Telegram.BotToken, "TELEGRAM_BOT_TOKEN")
	setString(&cfg.Telegram.ChatID, "TELEGRAM_CHAT_ID")
	setString(&cfg.HTTP.Addr, "HTTP_ADDR")
	setString(&cfg.Log.Level, "LOG_LEVEL")
	setString(&cfg.Proxy, "HTTPS_PROXY")

	if v := os.Getenv("WATCHLIST_DEFAULTS"); v != "" {
		cfg.Watchlist.Defaults = splitList(v)
	}
	if v := os.Getenv("REFRESH_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("REFRESH_INTERVAL: %w", err)
		}
		cfg.Refresh.Interval = d
	}
	if v := os.Getenv("AUTO_REFRESH"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("AUTO_REFRESH: %w", err)
		}
		cfg.Refresh.AutoRefresh = b
	}
	if v := os.Getenv("REQUESTS_PER_MINUTE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("REQUESTS_PER_MINUTE: %w", err)
		}
		cfg.DataSource.RequestsPerMinute = n
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func applyDefaults(cfg *Config) {
	if cfg.DataSource.Provider == "" {
		cfg.DataSource.Provider = "alphavantage"
	}
	if cfg.DataSource.OutputSize == "" {
		cfg.DataSource.OutputSize = "compact"
	}
	if cfg.DataSource.RequestsPerMinute == 0 && cfg.DataSource.Provider == "alphavantage" {
		// Free-tier limit.
		cfg.DataSource.RequestsPerMinute = 5
	}
	if cfg.DataSource.Timeout == 0 {
		cfg.DataSource.Timeout = 30 * time.Second
	}
	if cfg.Refresh.Interval == 0 {
		cfg.Refresh.Interval = 5 * time.Second
	}
	if cfg.Refresh.DefaultSymbol == "" {
		cfg.Refresh.DefaultSymbol = "AAPL"
	}
	if cfg.Watchlist.Backend == "" {
		cfg.Watchlist.Backend = "file"
	}
	if cfg.Watchlist.File == "" {
		cfg.Watchlist.File = "data/watchlist.json"
	}
	if len(cfg.Watchlist.Defaults) == 0 {
		cfg.Watchlist.Defaults = []string{"AAPL", "TCS.BSE"}
	}
	if cfg.Database.SQLitePath == "" {
		cfg.Database.SQLitePath = "data/stockwatch.db"
	}
	if cfg.Schedule.ArchiveCron == "" {
		cfg.Schedule.ArchiveCron = "0 0 22 * * 1-5"
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = "stockwatch"
	}
	if cfg.Redis.TTL == 0 {
		cfg.Redis.TTL = 10 * time.Minute
	}
	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = ":8080"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

// Validate checks that all required fields are set.
func (c *Config) Validate() error {
	switch c.DataSource.Provider {
	case "alphavantage":
		if c.DataSource.APIKey == "" {
			return fmt.Errorf("data_source.api_key is required for alphavantage")
		}
	case "yahoo", "mock":
	default:
		return fmt.Errorf("data_source.provider %q is not supported", c.DataSource.Provider)
	}
	if c.DataSource.RequestsPerMinute < 0 || c.DataSource.MaxRetries < 0 {
		return fmt.Errorf("data_source.requests_per_minute and max_retries must not be negative")
	}
	if c.Refresh.Interval < time.Second {
		return fmt.Errorf("refresh.interval must be at least 1s")
	}
	switch c.Watchlist.Backend {
	case "file", "sqlite":
	case "postgres":
		if c.Database.PostgresDSN == "" {
			return fmt.Errorf("database.postgres_dsn is required for the postgres watchlist")
		}
	default:
		return fmt.Errorf("watchlist.backend %q is not supported", c.Watchlist.Backend)
	}
	if (c.Telegram.BotToken == "") != (c.Telegram.ChatID == "") {
		return fmt.Errorf("telegram.bot_token and telegram.chat_id must be set together")
	}
	return nil
}

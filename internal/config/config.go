package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Live backends.
const (
	BackendGateway   = "gateway"
	BackendYahoo     = "yahoo"
	BackendSimulated = "simulated"
	BackendNone      = "none"
)

// DefaultSymbols is the watch list used when the history store is empty.
var DefaultSymbols = []string{"AAPL", "GOOGL", "MSFT", "AMZN", "TSLA", "META", "NVDA", "NFLX", "AMD", "INTC"}

// Config holds all application configuration.
type Config struct {
	Server struct {
		Addr            string        `yaml:"addr"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		IdleTimeout     time.Duration `yaml:"idle_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	CORS struct {
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"cors"`
	Live struct {
		Backend           string        `yaml:"backend"`
		BaseURL           string        `yaml:"base_url"`
		APIKey            string        `yaml:"api_key"`
		SymbolPrefix      string        `yaml:"symbol_prefix"`
		ConnectTimeout    time.Duration `yaml:"connect_timeout"`
		ReconnectInterval time.Duration `yaml:"reconnect_interval"`
		FetchTimeout      time.Duration `yaml:"fetch_timeout"`
	} `yaml:"live"`
	Cache struct {
		TTL          map[string]time.Duration `yaml:"ttl"`
		DefaultTTL   time.Duration            `yaml:"default_ttl"`
		SingleFlight bool                     `yaml:"single_flight"`
		Store        string                   `yaml:"store"`
	} `yaml:"cache"`
	Redis struct {
		Addr     string        `yaml:"addr"`
		Password string        `yaml:"password"`
		DB       int           `yaml:"db"`
		Expiry   time.Duration `yaml:"expiry"`
	} `yaml:"redis"`
	Indicators struct {
		SMAPeriod       int     `yaml:"sma_period"`
		EMAPeriod       int     `yaml:"ema_period"`
		RSIPeriod       int     `yaml:"rsi_period"`
		BollingerPeriod int     `yaml:"bollinger_period"`
		BollingerStdDev float64 `yaml:"bollinger_std_dev"`
		MACDMode        string  `yaml:"macd_mode"`
	} `yaml:"indicators"`
	Schedule struct {
		RefreshCron string   `yaml:"refresh_cron"`
		CleanupCron string   `yaml:"cleanup_cron"`
		Workers     int      `yaml:"workers"`
		Symbols     []string `yaml:"symbols"`
		StateFile   string   `yaml:"state_file"`
	} `yaml:"schedule"`
	Database struct {
		SQLitePath       string `yaml:"sqlite_path"`
		RetentionDays    int    `yaml:"retention_days"`
		BarRetentionDays int    `yaml:"bar_retention_days"`
	} `yaml:"database"`
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	Proxy        string `yaml:"proxy"`
	HistoryDepth int    `yaml:"history_depth"`
}

// Load reads a .env file if present, then config from a YAML file, then
// applies environment variable overrides and defaults.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() error {
	str := map[string]*string{
		"SERVER_ADDR":        &c.Server.Addr,
		"LIVE_BACKEND":       &c.Live.Backend,
		"LIVE_BASE_URL":      &c.Live.BaseURL,
		"LIVE_API_KEY":       &c.Live.APIKey,
		"LIVE_SYMBOL_PREFIX": &c.Live.SymbolPrefix,
		"REDIS_ADDR":         &c.Redis.Addr,
		"REDIS_PASSWORD":     &c.Redis.Password,
		"SQLITE_PATH":        &c.Database.SQLitePath,
		"REFRESH_CRON":       &c.Schedule.RefreshCron,
		"TELEGRAM_BOT_TOKEN": &c.Telegram.BotToken,
		"TELEGRAM_CHAT_ID":   &c.Telegram.ChatID,
		"HTTPS_PROXY":        &c.Proxy,
	}
	for key, dst := range str {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	if v := os.Getenv("SYMBOLS"); v != "" {
		c.Schedule.Symbols = splitSymbols(v)
	}
	if v := os.Getenv("CACHE_SINGLE_FLIGHT"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("CACHE_SINGLE_FLIGHT: %w", err)
		}
		c.Cache.SingleFlight = b
	}
	if c.Redis.Addr != "" && c.Cache.Store == "" {
		c.Cache.Store = "redis"
	}
	return nil
}

func (c *Config) applyDefaults() {
	setDur(&c.Server.ReadTimeout, 15*time.Second)
	setDur(&c.Server.WriteTimeout, 15*time.Second)
	setDur(&c.Server.IdleTimeout, 60*time.Second)
	setDur(&c.Server.ShutdownTimeout, 30*time.Second)
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if len(c.CORS.AllowedOrigins) == 0 {
		c.CORS.AllowedOrigins = []string{"*"}
	}

	if c.Live.Backend == "" {
		c.Live.Backend = BackendSimulated
	}
	if c.Live.SymbolPrefix == "" {
		c.Live.SymbolPrefix = "US."
	}
	setDur(&c.Live.ConnectTimeout, 10*time.Second)
	setDur(&c.Live.ReconnectInterval, 30*time.Second)
	setDur(&c.Live.FetchTimeout, 10*time.Second)

	setDur(&c.Cache.DefaultTTL, 10*time.Minute)
	if c.Cache.TTL == nil {
		c.Cache.TTL = map[string]time.Duration{}
	}
	if _, ok := c.Cache.TTL["series"]; !ok {
		c.Cache.TTL["series"] = 5 * time.Minute
	}
	if _, ok := c.Cache.TTL["quote"]; !ok {
		c.Cache.TTL["quote"] = 5 * time.Minute
	}
	if c.Cache.Store == "" {
		c.Cache.Store = "memory"
	}
	setDur(&c.Redis.Expiry, 24*time.Hour)

	setInt(&c.Indicators.SMAPeriod, 20)
	setInt(&c.Indicators.EMAPeriod, 12)
	setInt(&c.Indicators.RSIPeriod, 14)
	setInt(&c.Indicators.BollingerPeriod, 20)
	if c.Indicators.BollingerStdDev == 0 {
		c.Indicators.BollingerStdDev = 2.0
	}
	if c.Indicators.MACDMode == "" {
		c.Indicators.MACDMode = "approx"
	}

	if c.Schedule.RefreshCron == "" {
		c.Schedule.RefreshCron = "@every 60s"
	}
	if c.Schedule.CleanupCron == "" {
		c.Schedule.CleanupCron = "0 0 2 * * *"
	}
	setInt(&c.Schedule.Workers, 4)
	if c.Schedule.StateFile == "" {
		c.Schedule.StateFile = "data/signal_state.json"
	}

	if c.Database.SQLitePath == "" {
		c.Database.SQLitePath = "data/quant_sentinel.db"
	}
	setInt(&c.Database.RetentionDays, 30)
	setInt(&c.Database.BarRetentionDays, 400)
	setInt(&c.HistoryDepth, 60)
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	switch c.Live.Backend {
	case BackendGateway:
		if c.Live.BaseURL == "" {
			return fmt.Errorf("live.base_url is required for the gateway backend")
		}
	case BackendYahoo, BackendSimulated, BackendNone:
	default:
		return fmt.Errorf("live.backend %q is not one of gateway, yahoo, simulated, none", c.Live.Backend)
	}
	switch c.Cache.Store {
	case "memory":
	case "redis":
		if c.Redis.Addr == "" {
			return fmt.Errorf("redis.addr is required when cache.store is redis")
		}
	default:
		return fmt.Errorf("cache.store %q is not one of memory, redis", c.Cache.Store)
	}
	for kind, ttl := range c.Cache.TTL {
		if ttl <= 0 {
			return fmt.Errorf("cache.ttl.%s must be positive", kind)
		}
	}
	switch c.Indicators.MACDMode {
	case "approx", "signal-ema":
	default:
		return fmt.Errorf("indicators.macd_mode %q is not one of approx, signal-ema", c.Indicators.MACDMode)
	}
	for name, p := range map[string]int{
		"indicators.sma_period":       c.Indicators.SMAPeriod,
		"indicators.ema_period":       c.Indicators.EMAPeriod,
		"indicators.rsi_period":       c.Indicators.RSIPeriod,
		"indicators.bollinger_period": c.Indicators.BollingerPeriod,
		"schedule.workers":            c.Schedule.Workers,
		"history_depth":               c.HistoryDepth,
	} {
		if p <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	if c.Database.BarRetentionDays < c.Database.RetentionDays {
		return fmt.Errorf("database.bar_retention_days must be at least retention_days")
	}
	if (c.Telegram.BotToken == "") != (c.Telegram.ChatID == "") {
		return fmt.Errorf("telegram.bot_token and telegram.chat_id must be set together")
	}
	return nil
}

// TelegramEnabled reports whether notifications are configured.
func (c *Config) TelegramEnabled() bool {
	return c.Telegram.BotToken != "" && c.Telegram.ChatID != ""
}

func splitSymbols(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.ToUpper(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func setDur(d *time.Duration, def time.Duration) {
	if *d == 0 {
		*d = def
	}
}

func setInt(i *int, def int) {
	if *i == 0 {
		*i = def
	}
}

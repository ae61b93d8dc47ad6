package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"

	"premarket-bias/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Logging  logging.Config `mapstructure:"logging"`
	Market   MarketConfig   `mapstructure:"market"`
	News     NewsConfig     `mapstructure:"news"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Secrets  SecretsConfig  `mapstructure:"secrets"`
	Server   ServerConfig   `mapstructure:"server"`
	Schedule ScheduleConfig `mapstructure:"schedule"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Export   ExportConfig   `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	Timezone    string `mapstructure:"timezone" validate:"required"`
}

// MarketConfig covers the price history provider.
type MarketConfig struct {
	BaseURL        string        `mapstructure:"base_url" validate:"required,url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
	RateLimit      int           `mapstructure:"rate_limit" validate:"gte=1"`
	Symbols        SymbolsConfig `mapstructure:"symbols"`
}

// SymbolsConfig maps the briefing instruments to provider tickers.
type SymbolsConfig struct {
	ES  string `mapstructure:"es" validate:"required"`
	NQ  string `mapstructure:"nq" validate:"required"`
	VIX string `mapstructure:"vix" validate:"required"`
	DXY string `mapstructure:"dxy" validate:"required"`
	TNX string `mapstructure:"tnx" validate:"required"`
}

// NewsConfig captures headline search settings.
type NewsConfig struct {
	BaseURL        string        `mapstructure:"base_url" validate:"required,url"`
	Query          string        `mapstructure:"query" validate:"required"`
	MaxHeadlines   int           `mapstructure:"max_headlines" validate:"gte=1,lte=100"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// LLMConfig selects and tunes the completion provider.
type LLMConfig struct {
	Provider       string        `mapstructure:"provider" validate:"oneof=openai anthropic gemini"`
	Model          string        `mapstructure:"model" validate:"required"`
	BaseURL        string        `mapstructure:"base_url" validate:"omitempty,url"`
	MaxTokens      int           `mapstructure:"max_tokens" validate:"gte=1"`
	Temperature    float64       `mapstructure:"temperature" validate:"gte=0,lte=2"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// CacheConfig selects the price stats cache backend.
type CacheConfig struct {
	Backend string        `mapstructure:"backend" validate:"oneof=memory redis"`
	TTL     time.Duration `mapstructure:"ttl"`
	Redis   RedisConfig   `mapstructure:"redis"`
}

// RedisConfig describes the optional redis cache.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// SecretsConfig points at the stored secrets file.
type SecretsConfig struct {
	Path string `mapstructure:"path"`
}

// ServerConfig governs the HTTP surface.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port" validate:"gte=1,lte=65535"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// ScheduleConfig governs the watch command.
type ScheduleConfig struct {
	Cron       string `mapstructure:"cron"`
	RunOnStart bool   `mapstructure:"run_on_start"`
}

// TelegramConfig 描述 Telegram 推送参数。
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	Width  int `mapstructure:"width" validate:"gte=100"`
	Height int `mapstructure:"height" validate:"gte=100"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("BIASGEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "biasgen")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.timezone", "US/Eastern")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.output", "stderr")

	v.SetDefault("market.base_url", "https://query1.finance.yahoo.com")
	v.SetDefault("market.request_timeout", "15s")
	v.SetDefault("market.user_agent", "Mozilla/5.0 (compatible; biasgen/1.0)")
	v.SetDefault("market.rate_limit", 5)
	v.SetDefault("market.symbols.es", "ES=F")
	v.SetDefault("market.symbols.nq", "NQ=F")
	v.SetDefault("market.symbols.vix", "^VIX")
	v.SetDefault("market.symbols.dxy", "DX-Y.NYB")
	v.SetDefault("market.symbols.tnx", "^TNX")

	v.SetDefault("news.base_url", "https://newsapi.org/v2")
	v.SetDefault("news.query", "S&P 500 OR Nasdaq futures")
	v.SetDefault("news.max_headlines", 5)
	v.SetDefault("news.request_timeout", "10s")

	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.model", "gpt-3.5-turbo")
	v.SetDefault("llm.max_tokens", 220)
	v.SetDefault("llm.temperature", 0.4)
	v.SetDefault("llm.request_timeout", "60s")

	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.ttl", "5m")
	v.SetDefault("cache.redis.addr", "localhost:6379")
	v.SetDefault("cache.redis.prefix", "biasgen")

	v.SetDefault("secrets.path", "secrets.toml")

	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8501)
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("schedule.cron", "CRON_TZ=America/New_York 45 8 * * 1-5")
	v.SetDefault("schedule.run_on_start", false)

	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.api_base", "https://api.telegram.org")

	v.SetDefault("export.width", 1280)
	v.SetDefault("export.height", 720)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.StringToTimeDurationHookFunc()
	}
}

// Validate performs sanity checks on the configuration values.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := time.LoadLocation(c.App.Timezone); err != nil {
		return fmt.Errorf("app.timezone %q: %w", c.App.Timezone, err)
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("cache.ttl must be greater than zero")
	}
	if c.Cache.Backend == "redis" && c.Cache.Redis.Addr == "" {
		return fmt.Errorf("cache.redis.addr is required for the redis backend")
	}
	if c.Schedule.Cron != "" {
		if _, err := cron.ParseStandard(c.Schedule.Cron); err != nil {
			return fmt.Errorf("schedule.cron: %w", err)
		}
	}
	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token 必须配置")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id 必须配置")
		}
	}
	return nil
}

// Location returns the session timezone.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.App.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ResolveModel returns either the CLI override or config default.
func (c *Config) ResolveModel(override string) string {
	if override != "" {
		return override
	}
	return c.LLM.Model
}

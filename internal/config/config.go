package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type Config struct {
	LogLevel string         `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	Server   ServerConfig   `yaml:"server"`
	Cache    CacheConfig    `yaml:"cache"`
	Sources  SourcesConfig  `yaml:"sources"`
	Browser  BrowserConfig  `yaml:"browser"`
	Admin    AdminConfig    `yaml:"admin"`
	Redis    RedisConfig    `yaml:"redis"`
	Postgres PostgresConfig `yaml:"postgres"`
	Kafka    KafkaConfig    `yaml:"kafka"`
}

type ServerConfig struct {
	Port         int           `yaml:"port" env:"SERVER_PORT" env-default:"8080"`
	ReadTimeout  time.Duration `yaml:"read_timeout" env:"SERVER_READ_TIMEOUT" env-default:"5s"`
	WriteTimeout time.Duration `yaml:"write_timeout" env:"SERVER_WRITE_TIMEOUT" env-default:"60s"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" env:"SERVER_IDLE_TIMEOUT" env-default:"120s"`
}

type CacheConfig struct {
	// Backend is "memory" or "redis".
	Backend        string        `yaml:"backend" env:"CACHE_BACKEND" env-default:"memory"`
	OfficialWindow time.Duration `yaml:"official_window" env:"CACHE_OFFICIAL_WINDOW" env-default:"30m"`
	ParallelWindow time.Duration `yaml:"parallel_window" env:"CACHE_PARALLEL_WINDOW" env-default:"10m"`
	NBEWindow      time.Duration `yaml:"nbe_window" env:"CACHE_NBE_WINDOW" env-default:"30m"`
	ChainTimeout   time.Duration `yaml:"chain_timeout" env:"CACHE_CHAIN_TIMEOUT" env-default:"90s"`
	// ResponseTimeout must stay below Server.WriteTimeout.
	ResponseTimeout time.Duration `yaml:"response_timeout" env:"CACHE_RESPONSE_TIMEOUT" env-default:"25s"`
	RefreshInterval time.Duration `yaml:"refresh_interval" env:"RATES_REFRESH_INTERVAL" env-default:"15m"`
}

type SourcesConfig struct {
	PublicDir           string        `yaml:"public_dir" env:"RATES_PUBLIC_DIR" env-default:"public"`
	OfficialJSON        string        `yaml:"official_json" env:"OFFICIAL_RATES_JSON" env-default:"official-rates.json"`
	ParallelJSON        string        `yaml:"parallel_json" env:"PARALLEL_RATES_JSON" env-default:"parallel-rates.json"`
	NBEJSON             string        `yaml:"nbe_json" env:"NBE_RATES_JSON" env-default:"nbe-rates.json"`
	OfficialPriority    []string      `yaml:"official_priority" env:"OFFICIAL_SOURCE_PRIORITY" env-separator:"," env-default:"ethioxchange,official-json,westernunion,bank-pages"`
	ParallelPriority    []string      `yaml:"parallel_priority" env:"PARALLEL_SOURCE_PRIORITY" env-separator:"," env-default:"parallel-json,ethioblackmarket,derived"`
	NBEPriority         []string      `yaml:"nbe_priority" env:"NBE_SOURCE_PRIORITY" env-separator:"," env-default:"nbe-api,nbe-json"`
	EthioxchangeBaseURL string        `yaml:"ethioxchange_base_url" env:"ETHIOXCHANGE_BASE_URL" env-default:"https://www.ethioxchange.com"`
	EthioxchangeBank    string        `yaml:"ethioxchange_bank" env:"ETHIOXCHANGE_BANK" env-default:"awash-bank"`
	WesternUnionURL     string        `yaml:"westernunion_url" env:"WESTERNUNION_URL" env-default:"https://www.westernunion.com/us/en/currency-converter/usd-to-etb-rate.html"`
	BankPages           []string      `yaml:"bank_pages" env:"BANK_PAGES" env-separator:"," env-default:"https://awashbank.com/exchange-historical/,https://nbe.gov.et/exchange/indicatives-rates/,https://nbe.gov.et/exchange/"`
	EthioBlackMarketURL string        `yaml:"ethioblackmarket_url" env:"ETHIOBLACKMARKET_URL" env-default:"https://ethioblackmarket.com"`
	NBEAPIURL           string        `yaml:"nbe_api_url" env:"NBE_API_URL" env-default:"https://api.nbe.gov.et/api/filter-exchange-rates"`
	ParallelPremium     float64       `yaml:"parallel_premium" env:"PARALLEL_PREMIUM" env-default:"20"`
	UserAgent           string        `yaml:"user_agent" env:"SCRAPE_USER_AGENT" env-default:"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"`
	HTTPTimeout         time.Duration `yaml:"http_timeout" env:"SCRAPE_HTTP_TIMEOUT" env-default:"15s"`
	HTTPRetries         int           `yaml:"http_retries" env:"SCRAPE_HTTP_RETRIES" env-default:"2"`
}

type BrowserConfig struct {
	Enabled         bool          `yaml:"enabled" env:"BROWSER_ENABLED" env-default:"true"`
	ExecPath        string        `yaml:"exec_path" env:"BROWSER_EXEC_PATH"`
	NavigateTimeout time.Duration `yaml:"navigate_timeout" env:"BROWSER_NAVIGATE_TIMEOUT" env-default:"25s"`
	SelectorTimeout time.Duration `yaml:"selector_timeout" env:"BROWSER_SELECTOR_TIMEOUT" env-default:"8s"`
	MaxConcurrent   int64         `yaml:"max_concurrent" env:"BROWSER_MAX_CONCURRENT" env-default:"2"`
}

type AdminConfig struct {
	Key string `yaml:"key" env:"RATES_ADMIN_KEY"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
	Prefix   string `yaml:"prefix" env:"REDIS_PREFIX" env-default:"birr:rates:"`
}

type PostgresConfig struct {
	// DSN enables snapshot history when set.
	DSN string `yaml:"dsn" env:"POSTGRES_DSN"`
}

type KafkaConfig struct {
	// Brokers enables rate events when set.
	Brokers []string `yaml:"brokers" env:"KAFKA_BROKERS" env-separator:","`
	Topic   string   `yaml:"topic" env:"KAFKA_TOPIC" env-default:"birr.rates"`
}

var ErrInvalidConfig = errors.New("invalid configuration")

// LoadConfig reads .env (if present), then CONFIG_PATH (if set), then the
// process environment.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	var cfg Config
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.Cache.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("%w: unknown cache backend %q", ErrInvalidConfig, c.Cache.Backend)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: server port %d", ErrInvalidConfig, c.Server.Port)
	}
	if c.Cache.OfficialWindow <= 0 || c.Cache.ParallelWindow <= 0 || c.Cache.NBEWindow <= 0 {
		return fmt.Errorf("%w: cache windows must be positive", ErrInvalidConfig)
	}
	if c.Cache.ResponseTimeout <= 0 || c.Cache.ResponseTimeout >= c.Server.WriteTimeout {
		return fmt.Errorf("%w: cache response timeout %s must be positive and below the server write timeout %s",
			ErrInvalidConfig, c.Cache.ResponseTimeout, c.Server.WriteTimeout)
	}
	if c.Browser.MaxConcurrent < 1 {
		c.Browser.MaxConcurrent = 1
	}
	if c.Sources.HTTPRetries < 0 {
		c.Sources.HTTPRetries = 0
	}
	return nil
}

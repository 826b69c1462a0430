package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" default:"development" validate:"required"`
	Server      struct {
		Port            int           `yaml:"port" default:"8080" validate:"gt=0,lte=65535"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"30s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"15s"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
		Pretty bool   `yaml:"pretty"`
		// CollectTopic, when set with kafka brokers, aggregates warn/error logs to Kafka.
		CollectTopic    string        `yaml:"collect_topic"`
		CollectInterval time.Duration `yaml:"collect_interval" default:"30s"`
	} `yaml:"log"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Backend struct {
		// Type selects the audit/history store.
		Type string `yaml:"type" default:"sqlite" validate:"oneof=clickhouse sqlite memory"`
	} `yaml:"backend"`
	Monitor struct {
		Interval      time.Duration `yaml:"interval" default:"5m" validate:"gte=1s"`
		HistorySize   int           `yaml:"history_size" default:"20" validate:"gte=1"`
		FetchTimeout  time.Duration `yaml:"fetch_timeout" default:"10s"`
		SentimentURL  string        `yaml:"sentiment_url" default:"https://api.alternative.me/fng/?limit=1" validate:"url"`
		BreadthBasket []string      `yaml:"breadth_basket"`
		BasketSize    int           `yaml:"basket_size" default:"50" validate:"gte=1"`
	} `yaml:"monitor"`
	Decision struct {
		Freshness          time.Duration `yaml:"freshness" default:"30s"`
		StrongFreshness    time.Duration `yaml:"strong_freshness" default:"60s"`
		HistoryLimit       int           `yaml:"history_limit" default:"10" validate:"gte=1"`
		HistoryWindow      time.Duration `yaml:"history_window" default:"4h"`
		OscillatorPeriod   int           `yaml:"oscillator_period" default:"14" validate:"gte=2"`
		OscillatorInterval string        `yaml:"oscillator_interval" default:"1h"`
		OscillatorCacheTTL time.Duration `yaml:"oscillator_cache_ttl" default:"60s"`
		MomentumUpper      float64       `yaml:"momentum_upper" default:"70" validate:"gt=0,lte=100"`
		MomentumLower      float64       `yaml:"momentum_lower" default:"30" validate:"gte=0,ltefield=MomentumUpper"`
	} `yaml:"decision"`
	Protection struct {
		SLMultiplier    float64 `yaml:"sl_multiplier" default:"2" validate:"gt=0"`
		TPMultiplier    float64 `yaml:"tp_multiplier" default:"3" validate:"gt=0"`
		MaxSLMultiplier float64 `yaml:"max_sl_multiplier" default:"5" validate:"gtefield=SLMultiplier"`
		MaxTPMultiplier float64 `yaml:"max_tp_multiplier" default:"6" validate:"gtefield=TPMultiplier"`
	} `yaml:"protection"`
	Executor struct {
		MaxWorkers      int           `yaml:"max_workers" default:"16" validate:"gte=1"`
		UserTimeout     time.Duration `yaml:"user_timeout" default:"5s"`
		LockTTL         time.Duration `yaml:"lock_ttl" default:"2h"`
		ReserveTTL      time.Duration `yaml:"reserve_ttl" default:"30s"`
		MinNotional     float64       `yaml:"min_notional" default:"5" validate:"gte=0"`
		DefaultLeverage int           `yaml:"default_leverage" default:"5" validate:"gte=1,lte=10"`
	} `yaml:"executor"`
	Intake struct {
		Burst       int           `yaml:"burst" default:"5" validate:"gte=1"`
		RefillPerS  float64       `yaml:"refill_per_second" default:"0.5" validate:"gt=0"`
		DedupWindow time.Duration `yaml:"dedup_window" default:"30s"`
		RetryBuffer int           `yaml:"retry_buffer" default:"100"`
		RetryMaxAge time.Duration `yaml:"retry_max_age" default:"60s"`
	} `yaml:"intake"`
	Reasoner struct {
		Enabled     bool          `yaml:"enabled"`
		ProviderURL string        `yaml:"provider_url" default:"https://api.openai.com/v1" validate:"omitempty,url"`
		APIKey      string        `yaml:"api_key"`
		Model       string        `yaml:"model" default:"gpt-4o-mini"`
		Timeout     time.Duration `yaml:"timeout" default:"8s"`
	} `yaml:"reasoner"`
	Accounts struct {
		ServiceURL string        `yaml:"service_url" validate:"omitempty,url"`
		APIKey     string        `yaml:"api_key"`
		Timeout    time.Duration `yaml:"timeout" default:"3s"`
	} `yaml:"accounts"`
	Classifier struct {
		LongKeywords  []string `yaml:"long_keywords"`
		ShortKeywords []string `yaml:"short_keywords"`
	} `yaml:"classifier"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Host     string `yaml:"host" default:"localhost"`
		Port     int    `yaml:"port" default:"6379"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix" default:"signalpilot"`
	} `yaml:"redis"`
	Kafka struct {
		Brokers      []string `yaml:"brokers"`
		EventsTopic  string   `yaml:"events_topic" default:"signalpilot.events"`
		SignalsTopic string   `yaml:"signals_topic" default:"signalpilot.signals"`
		RequiredAcks int      `yaml:"required_acks" default:"1"`
		Compression  string   `yaml:"compression" default:"snappy" validate:"oneof=none gzip snappy lz4 zstd"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			Linger       time.Duration `yaml:"linger" default:"10ms"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"5s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"5s"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			Enabled    bool          `yaml:"enabled"`
			GroupID    string        `yaml:"group_id" default:"signalpilot"`
			Workers    int           `yaml:"workers" default:"2"`
			BufferSize int           `yaml:"buffer_size" default:"16"`
			RetryMax   int           `yaml:"retry_max" default:"3"`
			BackoffMin time.Duration `yaml:"backoff_min" default:"50ms"`
			BackoffMax time.Duration `yaml:"backoff_max" default:"2s"`
			DLQTopic   string        `yaml:"dlq_topic"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Host             string        `yaml:"host" validate:"required_if=Enabled true"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"signalpilot"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"10s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"30s"`
		Enabled          bool          `yaml:"-"`
	} `yaml:"clickhouse"`
	SQLite struct {
		Path string `yaml:"path" default:"signalpilot.db"`
	} `yaml:"sqlite"`
	Postgres struct {
		DSN      string `yaml:"dsn"`
		MaxConns int32  `yaml:"max_conns" default:"25"`
	} `yaml:"postgres"`
	Binance struct {
		APIKey    string `yaml:"api_key"`
		APISecret string `yaml:"api_secret"`
		Testnet   bool   `yaml:"testnet"`
	} `yaml:"binance"`
	// Users seeds the in-memory directory when no postgres DSN is set.
	Users []UserSeed `yaml:"users" validate:"dive"`
}

type UserSeed struct {
	ID           string  `yaml:"id" validate:"required"`
	Tier         int     `yaml:"tier"`
	Leverage     int     `yaml:"leverage" validate:"gte=0,lte=10"`
	TradeAmount  float64 `yaml:"trade_amount" validate:"gt=0"`
	MaxPositions int     `yaml:"max_positions" validate:"gte=0"`
}

var validate = validator.New()

// Load reads a YAML file, applies defaults and validates.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML bytes, applies defaults and validates.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	c.applyEnv(os.Getenv)
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv("ENVIRONMENT"); v != "" {
		c.Environment = v
	}
	if v := getenv("HTTP_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Server.Port = p
		}
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := getenv("BACKEND"); v != "" {
		c.Backend.Type = v
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = splitList(v)
	}
	if v := getenv("REDIS_HOST"); v != "" {
		c.Redis.Host = v
		c.Redis.Enabled = true
	}
	if v := getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
	if v := getenv("SQLITE_PATH"); v != "" {
		c.SQLite.Path = v
	}
	if v := getenv("POSTGRES_DSN"); v != "" {
		c.Postgres.DSN = v
	}
	if v := getenv("BINANCE_API_KEY"); v != "" {
		c.Binance.APIKey = v
	}
	if v := getenv("BINANCE_API_SECRET"); v != "" {
		c.Binance.APISecret = v
	}
	if v := getenv("REASONER_API_KEY"); v != "" {
		c.Reasoner.APIKey = v
	}
	if v := getenv("ACCOUNTS_SERVICE_URL"); v != "" {
		c.Accounts.ServiceURL = v
	}
	if v := getenv("ACCOUNTS_API_KEY"); v != "" {
		c.Accounts.APIKey = v
	}
}

// Validate checks struct tags and cross-field rules.
func (c *Config) Validate() error {
	c.ClickHouse.Enabled = c.Backend.Type == "clickhouse"
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Decision.StrongFreshness < c.Decision.Freshness {
		return fmt.Errorf("decision.strong_freshness must be >= decision.freshness")
	}
	if c.Reasoner.Enabled && c.Reasoner.ProviderURL == "" {
		return fmt.Errorf("reasoner.enabled requires reasoner.provider_url")
	}
	if c.Kafka.Consumer.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.consumer.enabled requires kafka.brokers")
	}
	return nil
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

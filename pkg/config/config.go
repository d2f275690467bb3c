package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix scopes every environment variable consumed by the service.
const EnvPrefix = "USERSVC"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App      AppConfig
	DB       DBConfig
	Redis    RedisConfig
	RabbitMQ RabbitMQConfig
	Wallet   WalletConfig
	Outbox   OutboxConfig
	Auth     AuthConfig
}

// Load reads the full configuration from the environment. Missing required
// values fail here, at process start, not at request time.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"USERSVC_APP_ENV" required:"true"`
	LogLevel     string `envconfig:"USERSVC_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"USERSVC_LOG_WARN_STACK" default:"false"`
	Port         string `envconfig:"USERSVC_PORT" default:"8080"`
	MetricsPort  string `envconfig:"USERSVC_METRICS_PORT" default:"9090"`
	AutoMigrate  bool   `envconfig:"USERSVC_AUTO_MIGRATE" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"USERSVC_DB_DSN" required:"true"`
	Driver string `envconfig:"USERSVC_DB_DRIVER" default:"postgres"`

	MaxOpenConns    int           `envconfig:"USERSVC_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"USERSVC_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"USERSVC_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"USERSVC_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"USERSVC_REDIS_URL" required:"true"`
	PoolSize     int           `envconfig:"USERSVC_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"USERSVC_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"USERSVC_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"USERSVC_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"USERSVC_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type RabbitMQConfig struct {
	URL            string        `envconfig:"USERSVC_RABBITMQ_URL" required:"true"`
	ConfirmTimeout time.Duration `envconfig:"USERSVC_RABBITMQ_CONFIRM_TIMEOUT" default:"5s"`
	PrefetchCount  int           `envconfig:"USERSVC_RABBITMQ_PREFETCH" default:"16"`
}

// WalletConfig names the broker topology shared with the wallet service.
// Nothing in the core hardcodes these; they arrive here once at startup.
type WalletConfig struct {
	Exchange          string        `envconfig:"USERSVC_WALLET_EXCHANGE" required:"true"`
	CreateRoutingKey  string        `envconfig:"USERSVC_WALLET_CREATE_ROUTING_KEY" required:"true"`
	BalanceRoutingKey string        `envconfig:"USERSVC_WALLET_BALANCE_ROUTING_KEY" required:"true"`
	ReplyQueue        string        `envconfig:"USERSVC_WALLET_REPLY_QUEUE" required:"true"`
	CachePrefix       string        `envconfig:"USERSVC_WALLET_CACHE_PREFIX" default:"balance"`
	CacheTTL          time.Duration `envconfig:"USERSVC_WALLET_CACHE_TTL" default:"0"`
}

// AuthConfig points at the remote auth service that owns token
// issuance. Only the HTTP API binary needs it.
type AuthConfig struct {
	BaseURL string        `envconfig:"USERSVC_AUTH_BASE_URL" default:""`
	Timeout time.Duration `envconfig:"USERSVC_AUTH_TIMEOUT" default:"5s"`
}

type OutboxConfig struct {
	BatchSize      int           `envconfig:"USERSVC_OUTBOX_BATCH_SIZE" default:"50"`
	PollInterval   time.Duration `envconfig:"USERSVC_OUTBOX_POLL_INTERVAL" default:"5s"`
	PublishTimeout time.Duration `envconfig:"USERSVC_OUTBOX_PUBLISH_TIMEOUT" default:"15s"`
	MaxAttempts    int           `envconfig:"USERSVC_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

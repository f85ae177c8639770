package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

var ErrInvalidConfig = errors.New("invalid configuration")

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	MongoDB  MongoDBConfig  `mapstructure:"mongodb"`
	Redis    RedisConfig    `mapstructure:"redis"`
	RabbitMQ RabbitMQConfig `mapstructure:"rabbitmq"`
	Consul   ConsulConfig   `mapstructure:"consul"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Log      LogConfig      `mapstructure:"log"`
	Tracker  TrackerConfig  `mapstructure:"tracker"`
}

type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           string        `mapstructure:"port"`
	ServiceName    string        `mapstructure:"service_name"`
	ServiceAddress string        `mapstructure:"service_address"`
	ServiceID      string        `mapstructure:"service_id"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	AllowOrigins   []string      `mapstructure:"allow_origins"`
}

type MongoDBConfig struct {
	URI             string        `mapstructure:"uri"`
	Database        string        `mapstructure:"database"`
	MaxPoolSize     uint64        `mapstructure:"max_pool_size"`
	MinPoolSize     uint64        `mapstructure:"min_pool_size"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
	Timeout         time.Duration `mapstructure:"timeout"`
}

type RedisConfig struct {
	Address  string        `mapstructure:"address"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	DedupTTL time.Duration `mapstructure:"dedup_ttl"`
}

type RabbitMQConfig struct {
	URI              string `mapstructure:"uri"`
	FeedbackExchange string `mapstructure:"feedback_exchange"`
	FeedbackQueue    string `mapstructure:"feedback_queue"`
	EventsExchange   string `mapstructure:"events_exchange"`
	Prefetch         int    `mapstructure:"prefetch"`
}

type ConsulConfig struct {
	ConsulAddress string `mapstructure:"address"`
	Enabled       bool   `mapstructure:"enabled"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type TrackerConfig struct {
	SignatureMode string `mapstructure:"signature_mode"`
	DefaultLimit  int    `mapstructure:"default_limit"`
	MaxLimit      int    `mapstructure:"max_limit"`
}

// Load reads .env, an optional config.yaml and the environment, in that order of precedence
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	_ = v.BindEnv("server.port", "PORT")
	_ = v.BindEnv("server.service_name", "MISTAKE_SERVICE_NAME")
	_ = v.BindEnv("server.service_address", "MISTAKE_SERVICE_ADDRESS")
	_ = v.BindEnv("mongodb.uri", "MONGO_URI")
	_ = v.BindEnv("mongodb.database", "MISTAKE_SERVICE_MONGO_DB")
	_ = v.BindEnv("redis.address", "REDIS_ADDR")
	_ = v.BindEnv("redis.password", "REDIS_PWD")
	_ = v.BindEnv("rabbitmq.uri", "RABBITMQ_URI")
	_ = v.BindEnv("consul.address", "CONSUL_ADDRESS")
	_ = v.BindEnv("auth.jwt_secret", "JWT_SECRET")

	if err := v.ReadInConfig(); err != nil {
		var fileLookupErr viper.ConfigFileNotFoundError
		if !errors.As(err, &fileLookupErr) {
			return nil, fmt.Errorf("error loading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	if cfg.Server.ServiceID == "" {
		hostname, _ := os.Hostname()
		cfg.Server.ServiceID = cfg.Server.ServiceName + "-" + hostname
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "9350")
	v.SetDefault("server.service_name", "mistake-service")
	v.SetDefault("server.service_address", "mistake-service")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.allow_origins", []string{"*"})

	v.SetDefault("mongodb.database", "mistake_service")
	v.SetDefault("mongodb.max_pool_size", 100)
	v.SetDefault("mongodb.min_pool_size", 10)
	v.SetDefault("mongodb.max_conn_idle_time", 60*time.Second)
	v.SetDefault("mongodb.timeout", 10*time.Second)

	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.dedup_ttl", 24*time.Hour)

	v.SetDefault("rabbitmq.feedback_exchange", "feedback.events")
	v.SetDefault("rabbitmq.feedback_queue", "mistake-service.feedback")
	v.SetDefault("rabbitmq.events_exchange", "mistake.events")
	v.SetDefault("rabbitmq.prefetch", 10)

	v.SetDefault("consul.address", "consul:8500")
	v.SetDefault("consul.enabled", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("tracker.signature_mode", "exact")
	v.SetDefault("tracker.default_limit", 5)
	v.SetDefault("tracker.max_limit", 100)
}

func (c *Config) Validate() error {
	if c.MongoDB.URI == "" {
		return fmt.Errorf("%w: mongodb uri is required (MONGO_URI)", ErrInvalidConfig)
	}
	if c.MongoDB.Database == "" {
		return fmt.Errorf("%w: mongodb database is required", ErrInvalidConfig)
	}
	if c.Tracker.DefaultLimit <= 0 {
		return fmt.Errorf("%w: tracker.default_limit must be positive", ErrInvalidConfig)
	}
	if c.Tracker.MaxLimit < c.Tracker.DefaultLimit {
		return fmt.Errorf("%w: tracker.max_limit %d is below default_limit %d",
			ErrInvalidConfig, c.Tracker.MaxLimit, c.Tracker.DefaultLimit)
	}
	switch c.Tracker.SignatureMode {
	case "exact", "relaxed":
	default:
		return fmt.Errorf("%w: unknown tracker.signature_mode %q", ErrInvalidConfig, c.Tracker.SignatureMode)
	}
	return nil
}

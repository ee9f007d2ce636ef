package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Bot      BotConfig      `yaml:"bot"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Network  NetworkConfig  `yaml:"network"`
	Engine   EngineConfig   `yaml:"engine"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type BotConfig struct {
	Token    string `yaml:"token"`
	ClientID string `yaml:"client_id"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// RedisConfig enables the shared raid marker store. Empty URL keeps markers in memory.
type RedisConfig struct {
	URL       string `yaml:"url"`
	KeyPrefix string `yaml:"key_prefix"`
}

type KafkaConfig struct {
	Brokers      []string      `yaml:"brokers"`
	Topic        string        `yaml:"topic"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

type NetworkConfig struct {
	HTTPPoolSize   int           `yaml:"http_pool_size"`
	APIBaseURL     string        `yaml:"api_base_url"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

type EngineConfig struct {
	JoinRetention       time.Duration `yaml:"join_retention"`
	PruneInterval       time.Duration `yaml:"prune_interval"`
	MessageWindowTTL    time.Duration `yaml:"message_window_ttl"`
	MessageWindowAccts  int           `yaml:"message_window_accounts"`
	SimilarGroupMinSize int           `yaml:"similar_group_min_size"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

var GlobalConfig *Config

// Load reads the YAML file at path over DefaultConfig and applies environment overrides.
// A missing file is not an error; the defaults plus environment are returned.
func Load(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	applyEnv(cfg)

	GlobalConfig = cfg
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if token := os.Getenv("DISCORD_TOKEN"); token != "" {
		cfg.Bot.Token = token
	}
	if clientID := os.Getenv("CLIENT_ID"); clientID != "" {
		cfg.Bot.ClientID = clientID
	}
	if dbPath := os.Getenv("DATABASE_PATH"); dbPath != "" {
		cfg.Database.Path = dbPath
	}
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		cfg.Redis.URL = redisURL
	}
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.Kafka.Brokers = strings.Split(brokers, ",")
	}
	if addr := os.Getenv("METRICS_ADDR"); addr != "" {
		cfg.Metrics.Addr = addr
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
}

func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path: "antiraid.db",
		},
		Redis: RedisConfig{
			KeyPrefix: "antiraid/",
		},
		Kafka: KafkaConfig{
			Topic:        "antiraid.incidents",
			WriteTimeout: 5 * time.Second,
		},
		Network: NetworkConfig{
			HTTPPoolSize:   4,
			APIBaseURL:     "https://discord.com/api/v10",
			RequestTimeout: 5 * time.Second,
		},
		Engine: EngineConfig{
			JoinRetention:       24 * time.Hour,
			PruneInterval:       24 * time.Hour,
			MessageWindowTTL:    10 * time.Minute,
			MessageWindowAccts:  50000,
			SimilarGroupMinSize: 3,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

func Get() *Config {
	if GlobalConfig == nil {
		return DefaultConfig()
	}
	return GlobalConfig
}

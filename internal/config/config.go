package config

import (
	"time"

	"github.com/spf13/viper"

	"github.com/Degefa-Gomora/evangadiForum1/internal/cache"
	pkgconfig "github.com/Degefa-Gomora/evangadiForum1/pkg/config"
	"github.com/Degefa-Gomora/evangadiForum1/pkg/database"
	"github.com/Degefa-Gomora/evangadiForum1/pkg/log"
)

type Config struct {
	Server    ServerConfig
	WebSocket WebSocketConfig
	Auth      AuthConfig
	Database  database.Config
	Cache     CacheConfig
	Kafka     KafkaConfig
	Presence  PresenceConfig
	Chat      ChatConfig
	Log       log.Config
}

type ServerConfig struct {
	Host string
	Port int
}

type WebSocketConfig struct {
	PingInterval   time.Duration `mapstructure:"ping_interval"`
	PongWait       time.Duration `mapstructure:"pong_wait"`
	WriteWait      time.Duration `mapstructure:"write_wait"`
	MaxMessageSize int64         `mapstructure:"max_message_size"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	Issuer    string `mapstructure:"issuer"`
}

type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Redis   cache.Config  `mapstructure:",squash"`
	TTL     time.Duration `mapstructure:"ttl"`
}

type KafkaConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Brokers    string `mapstructure:"brokers"`
	Topic      string `mapstructure:"topic"`
	Partitions int    `mapstructure:"partitions"`
}

type PresenceConfig struct {
	SweepInterval     time.Duration `mapstructure:"sweep_interval"`
	InactivityTimeout time.Duration `mapstructure:"inactivity_timeout"`
}

type ChatConfig struct {
	HistoryPageSize    int     `mapstructure:"history_page_size"`
	MaxAttachmentBytes int     `mapstructure:"max_attachment_bytes"`
	SendRatePerSecond  float64 `mapstructure:"send_rate_per_second"`
	SendBurst          int     `mapstructure:"send_burst"`
}

func Load() (*Config, error) {
	v, err := pkgconfig.Load("./config", "config")
	if err != nil {
		return nil, err
	}

	// Set defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 5000)
	v.SetDefault("websocket.ping_interval", "30s")
	v.SetDefault("websocket.pong_wait", "60s")
	v.SetDefault("websocket.write_wait", "10s")
	v.SetDefault("websocket.max_message_size", 52428800)
	v.SetDefault("auth.jwt_secret", "supersecretjwtkey")
	v.SetDefault("auth.issuer", "evangadi-forum")
	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 3306)
	v.SetDefault("database.user", "root")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "evangadi_forum")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.file_path", "chat.db")
	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.address", "localhost:6379")
	v.SetDefault("cache.password", "")
	v.SetDefault("cache.db", 0)
	v.SetDefault("cache.prefix", "chat:history")
	v.SetDefault("cache.ttl", "30s")
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", "localhost:9092")
	v.SetDefault("kafka.topic", "chat-events")
	v.SetDefault("kafka.partitions", 8)
	v.SetDefault("presence.sweep_interval", "30s")
	v.SetDefault("presence.inactivity_timeout", "5m")
	v.SetDefault("chat.history_page_size", 200)
	v.SetDefault("chat.max_attachment_bytes", 10485760)
	v.SetDefault("chat.send_rate_per_second", 5)
	v.SetDefault("chat.send_burst", 10)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("log.service_name", "chat-server")

	// Override from environment
	v.BindEnv("server.port", "PORT")
	v.BindEnv("auth.jwt_secret", "JWT_SECRET")
	v.BindEnv("database.driver", "DB_DRIVER")
	v.BindEnv("database.host", "DB_HOST")
	v.BindEnv("database.port", "DB_PORT")
	v.BindEnv("database.user", "DB_USER")
	v.BindEnv("database.password", "DB_PASSWORD")
	v.BindEnv("database.dbname", "DB_NAME")
	v.BindEnv("cache.address", "REDIS_ADDRESS")
	v.BindEnv("cache.password", "REDIS_PASSWORD")
	v.BindEnv("kafka.brokers", "KAFKA_BROKERS")
	v.BindEnv("kafka.topic", "KAFKA_TOPIC")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Parse durations
	cfg.WebSocket.PingInterval = parseDuration(v, "websocket.ping_interval", 30*time.Second)
	cfg.WebSocket.PongWait = parseDuration(v, "websocket.pong_wait", 60*time.Second)
	cfg.WebSocket.WriteWait = parseDuration(v, "websocket.write_wait", 10*time.Second)
	cfg.Cache.TTL = parseDuration(v, "cache.ttl", 30*time.Second)
	cfg.Presence.SweepInterval = parseDuration(v, "presence.sweep_interval", 30*time.Second)
	cfg.Presence.InactivityTimeout = parseDuration(v, "presence.inactivity_timeout", 5*time.Minute)

	return &cfg, nil
}

func parseDuration(v *viper.Viper, key string, defaultVal time.Duration) time.Duration {
	str := v.GetString(key)
	d, err := time.ParseDuration(str)
	if err != nil {
		return defaultVal
	}
	return d
}

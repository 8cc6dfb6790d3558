package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Mongo     MongoConfig
	Redis     RedisConfig
	NATS      NATSConfig
	JWT       JWTConfig
	Chat      ChatConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Port         string
	Env          string
	LogLevel     string
	CORSOrigin   string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DatabaseConfig selects the message store backend. Driver is "mysql" or "mongo".
type DatabaseConfig struct {
	Driver          string
	DSN             string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

type MongoConfig struct {
	URI         string
	Database    string
	MaxPoolSize int
	MaxRetry    int
}

// RedisConfig is optional; an empty Addr disables the presence mirror.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	NodeID   string
}

// NATSConfig is optional; an empty URL disables event publishing.
type NATSConfig struct {
	URL     string
	Subject string
}

type JWTConfig struct {
	AccessSecret string
	Issuer       string
	// Required makes every websocket and history request carry a valid access token.
	Required bool
}

type ChatConfig struct {
	SendBuffer    int
	MaxFrameBytes int64
	MaxTextLen    int
	HistoryLimit  int
	WriteWait     time.Duration
	PongWait      time.Duration
}

// PingPeriod is derived from PongWait the same way for every connection.
func (c ChatConfig) PingPeriod() time.Duration {
	return (c.PongWait * 9) / 10
}

type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

const (
	DriverMySQL = "mysql"
	DriverMongo = "mongo"
)

// Load reads .env (if present) and the environment. Env vars override .env.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig()
	v.AutomaticEnv()

	v.SetDefault("PORT", "3001")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("CORS_ORIGIN", "*")
	v.SetDefault("READ_TIMEOUT", "10s")
	v.SetDefault("WRITE_TIMEOUT", "10s")

	v.SetDefault("DB_DRIVER", DriverMySQL)
	v.SetDefault("MYSQL_DSN", "foodmed:foodmed@tcp(localhost:3306)/foodmed_chat?charset=utf8mb4&parseTime=True&loc=UTC")
	v.SetDefault("DB_MAX_IDLE_CONNS", 10)
	v.SetDefault("DB_MAX_OPEN_CONNS", 100)
	v.SetDefault("DB_CONN_MAX_LIFETIME", "1h")

	v.SetDefault("MONGO_URI_CHAT", "mongodb://localhost:27017")
	v.SetDefault("MONGO_DATABASE", "foodmed_chat")
	v.SetDefault("MONGO_MAX_POOL_SIZE", 100)
	v.SetDefault("MONGO_MAX_RETRY", 3)

	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_NODE_ID", "node-1")

	v.SetDefault("NATS_URL", "")
	v.SetDefault("NATS_SUBJECT", "foodmed.chat")

	v.SetDefault("JWT_ACCESS_SECRET", "")
	v.SetDefault("JWT_ISSUER", "foodmed")
	v.SetDefault("JWT_REQUIRED", false)

	v.SetDefault("CHAT_SEND_BUFFER", 256)
	v.SetDefault("CHAT_MAX_FRAME_BYTES", 64*1024)
	v.SetDefault("CHAT_MAX_TEXT_LEN", 4000)
	v.SetDefault("CHAT_HISTORY_LIMIT", 500)
	v.SetDefault("CHAT_WRITE_WAIT", "10s")
	v.SetDefault("CHAT_PONG_WAIT", "60s")

	v.SetDefault("RATE_LIMIT_REQUESTS", 100)
	v.SetDefault("RATE_LIMIT_WINDOW", "60s")

	cfg := &Config{
		Server: ServerConfig{
			Port:         v.GetString("PORT"),
			Env:          v.GetString("APP_ENV"),
			LogLevel:     v.GetString("LOG_LEVEL"),
			CORSOrigin:   v.GetString("CORS_ORIGIN"),
			ReadTimeout:  v.GetDuration("READ_TIMEOUT"),
			WriteTimeout: v.GetDuration("WRITE_TIMEOUT"),
		},
		Database: DatabaseConfig{
			Driver:          v.GetString("DB_DRIVER"),
			DSN:             v.GetString("MYSQL_DSN"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			ConnMaxLifetime: v.GetDuration("DB_CONN_MAX_LIFETIME"),
		},
		Mongo: MongoConfig{
			URI:         v.GetString("MONGO_URI_CHAT"),
			Database:    v.GetString("MONGO_DATABASE"),
			MaxPoolSize: v.GetInt("MONGO_MAX_POOL_SIZE"),
			MaxRetry:    v.GetInt("MONGO_MAX_RETRY"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
			NodeID:   v.GetString("REDIS_NODE_ID"),
		},
		NATS: NATSConfig{
			URL:     v.GetString("NATS_URL"),
			Subject: v.GetString("NATS_SUBJECT"),
		},
		JWT: JWTConfig{
			AccessSecret: v.GetString("JWT_ACCESS_SECRET"),
			Issuer:       v.GetString("JWT_ISSUER"),
			Required:     v.GetBool("JWT_REQUIRED"),
		},
		Chat: ChatConfig{
			SendBuffer:    v.GetInt("CHAT_SEND_BUFFER"),
			MaxFrameBytes: v.GetInt64("CHAT_MAX_FRAME_BYTES"),
			MaxTextLen:    v.GetInt("CHAT_MAX_TEXT_LEN"),
			HistoryLimit:  v.GetInt("CHAT_HISTORY_LIMIT"),
			WriteWait:     v.GetDuration("CHAT_WRITE_WAIT"),
			PongWait:      v.GetDuration("CHAT_PONG_WAIT"),
		},
		RateLimit: RateLimitConfig{
			Requests: v.GetInt("RATE_LIMIT_REQUESTS"),
			Window:   v.GetDuration("RATE_LIMIT_WINDOW"),
		},
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port == "" {
		return errors.New("config: PORT must be set")
	}
	switch c.Database.Driver {
	case DriverMySQL:
		if c.Database.DSN == "" {
			return errors.New("config: MYSQL_DSN must be set when DB_DRIVER=mysql")
		}
	case DriverMongo:
		if c.Mongo.URI == "" || c.Mongo.Database == "" {
			return errors.New("config: MONGO_URI_CHAT and MONGO_DATABASE must be set when DB_DRIVER=mongo")
		}
	default:
		return fmt.Errorf("config: unsupported DB_DRIVER %q", c.Database.Driver)
	}
	if c.JWT.Required && c.JWT.AccessSecret == "" {
		return errors.New("config: JWT_ACCESS_SECRET must be set when JWT_REQUIRED=true")
	}
	if c.Chat.SendBuffer <= 0 {
		return errors.New("config: CHAT_SEND_BUFFER must be positive")
	}
	if c.Chat.MaxTextLen <= 0 {
		return errors.New("config: CHAT_MAX_TEXT_LEN must be positive")
	}
	if c.Chat.HistoryLimit <= 0 {
		return errors.New("config: CHAT_HISTORY_LIMIT must be positive")
	}
	if c.Chat.PongWait <= 0 || c.Chat.WriteWait <= 0 {
		return errors.New("config: CHAT_PONG_WAIT and CHAT_WRITE_WAIT must be positive")
	}
	if c.RateLimit.Requests <= 0 || c.RateLimit.Window <= 0 {
		return errors.New("config: RATE_LIMIT_REQUESTS and RATE_LIMIT_WINDOW must be positive")
	}
	return nil
}

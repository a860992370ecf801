package configuration

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const defaultConfigPath = "config/config.dev.json"

type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
}

type MongoConfig struct {
	Uri                string `mapstructure:"uri"`
	Database           string `mapstructure:"database"`
	MessagesCollection string `mapstructure:"messagesCollection"`
	UsersCollection    string `mapstructure:"usersCollection"`
}

type ServerConfig struct {
	AppPort        int      `mapstructure:"appPort"`
	SocketPort     int      `mapstructure:"socketPort"`
	SocketRoute    string   `mapstructure:"socketRoute"`
	AllowedOrigins []string `mapstructure:"allowedOrigins"`
}

type AuthConfig struct {
	JwtSecret string `mapstructure:"jwtSecret"`
	Issuer    string `mapstructure:"issuer"`
}

type GatewayConfig struct {
	InboundQueueSize int           `mapstructure:"inboundQueueSize"`
	SendBufferSize   int           `mapstructure:"sendBufferSize"`
	SendTimeout      time.Duration `mapstructure:"sendTimeout"`
	MessageRate      float64       `mapstructure:"messageRate"`
	MessageBurst     int           `mapstructure:"messageBurst"`
}

type MessagesConfig struct {
	MaxContentLength int `mapstructure:"maxContentLength"`
	DefaultPageSize  int `mapstructure:"defaultPageSize"`
	MaxPageSize      int `mapstructure:"maxPageSize"`
}

type RedisConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	Addr          string        `mapstructure:"addr"`
	Password      string        `mapstructure:"password"`
	DB            int           `mapstructure:"db"`
	ChannelPrefix string        `mapstructure:"channelPrefix"`
	PresenceTTL   time.Duration `mapstructure:"presenceTtl"`
}

type KafkaConfig struct {
	Enabled     bool     `mapstructure:"enabled"`
	Brokers     []string `mapstructure:"brokers"`
	TopicPrefix string   `mapstructure:"topicPrefix"`
}

type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Server   ServerConfig   `mapstructure:"server"`
	Mongo    MongoConfig    `mapstructure:"mongo"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Gateway  GatewayConfig  `mapstructure:"gateway"`
	Messages MessagesConfig `mapstructure:"messages"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
}

// LoadConfig reads the JSON config file at configPath (or CONFIG_PATH, or the
// dev default) and lets environment variables override any key, e.g.
// MONGO_URI or SERVER_APPPORT.
func LoadConfig(configPath string) (*Config, error) {
	_ = godotenv.Load()

	if configPath == "" {
		configPath = os.Getenv("CONFIG_PATH")
	}
	if configPath == "" {
		configPath = defaultConfigPath
	}

	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(configPath)
	v.SetConfigType("json")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config %s: %w", configPath, err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "recipegram-messaging")
	v.SetDefault("app.env", "development")

	v.SetDefault("server.appPort", 8080)
	v.SetDefault("server.socketPort", 8081)
	v.SetDefault("server.socketRoute", "ws")
	v.SetDefault("server.allowedOrigins", []string{"http://localhost:3000", "http://localhost:5173"})

	v.SetDefault("mongo.uri", "")
	v.SetDefault("mongo.database", "recipegram")
	v.SetDefault("mongo.messagesCollection", "messages")
	v.SetDefault("mongo.usersCollection", "users")

	v.SetDefault("auth.jwtSecret", "")
	v.SetDefault("auth.issuer", "recipegram")

	v.SetDefault("gateway.inboundQueueSize", 64)
	v.SetDefault("gateway.sendBufferSize", 256)
	v.SetDefault("gateway.sendTimeout", 2*time.Second)
	v.SetDefault("gateway.messageRate", 5.0)
	v.SetDefault("gateway.messageBurst", 10)

	v.SetDefault("messages.maxContentLength", 1000)
	v.SetDefault("messages.defaultPageSize", 30)
	v.SetDefault("messages.maxPageSize", 100)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.channelPrefix", "recipegram:dm")
	v.SetDefault("redis.presenceTtl", 90*time.Second)

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topicPrefix", "recipegram.messages")
}

// Validate checks the settings the process cannot start without.
func (c *Config) Validate() error {
	if c.Mongo.Uri == "" {
		return errors.New("mongo.uri is required")
	}
	if c.Auth.JwtSecret == "" {
		return errors.New("auth.jwtSecret is required")
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return errors.New("redis.addr is required when redis is enabled")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return errors.New("kafka.brokers is required when kafka is enabled")
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

package configuration

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfigFromFile(t *testing.T) {
	path := writeConfig(t, `{
		"app": {"env": "production"},
		"server": {"appPort": 9000, "allowedOrigins": ["https://recipegram.app"]},
		"mongo": {"uri": "mongodb://db:27017", "database": "dm"},
		"auth": {"jwtSecret": "s3cret"},
		"gateway": {"sendTimeout": "3s", "messageRate": 2.5},
		"redis": {"enabled": true, "addr": "cache:6379"}
	}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, 9000, cfg.Server.AppPort)
	assert.Equal(t, []string{"https://recipegram.app"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "dm", cfg.Mongo.Database)
	assert.Equal(t, 3*time.Second, cfg.Gateway.SendTimeout)
	assert.Equal(t, 2.5, cfg.Gateway.MessageRate)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "cache:6379", cfg.Redis.Addr)

	// untouched keys keep their defaults
	assert.Equal(t, 8081, cfg.Server.SocketPort)
	assert.Equal(t, "messages", cfg.Mongo.MessagesCollection)
	assert.Equal(t, 1000, cfg.Messages.MaxContentLength)
	assert.Equal(t, 90*time.Second, cfg.Redis.PresenceTTL)
	assert.Equal(t, 64, cfg.Gateway.InboundQueueSize)
	assert.False(t, cfg.Kafka.Enabled)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	path := writeConfig(t, `{
		"mongo": {"uri": "mongodb://file:27017"},
		"auth": {"jwtSecret": "from-file"}
	}`)
	t.Setenv("MONGO_URI", "mongodb://env:27017")
	t.Setenv("SERVER_APPPORT", "7070")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "mongodb://env:27017", cfg.Mongo.Uri)
	assert.Equal(t, 7070, cfg.Server.AppPort)
	assert.Equal(t, "from-file", cfg.Auth.JwtSecret)
}

func TestLoadConfigMissingFileUsesDefaultsAndEnv(t *testing.T) {
	t.Setenv("MONGO_URI", "mongodb://env:27017")
	t.Setenv("AUTH_JWTSECRET", "env-secret")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	assert.Equal(t, "development", cfg.App.Env)
	assert.Equal(t, 8080, cfg.Server.AppPort)
	assert.Equal(t, "env-secret", cfg.Auth.JwtSecret)
}

func TestLoadConfigRejectsMalformedFile(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, `{"mongo": `))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := Config{
		Mongo: MongoConfig{Uri: "mongodb://x"},
		Auth:  AuthConfig{JwtSecret: "s"},
	}
	require.NoError(t, valid.Validate())

	cases := map[string]func(c *Config){
		"no mongo uri":         func(c *Config) { c.Mongo.Uri = "" },
		"no jwt secret":        func(c *Config) { c.Auth.JwtSecret = "" },
		"redis without addr":   func(c *Config) { c.Redis = RedisConfig{Enabled: true} },
		"kafka without broker": func(c *Config) { c.Kafka = KafkaConfig{Enabled: true} },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := valid
			mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}

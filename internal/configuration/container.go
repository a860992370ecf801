package configuration

import (
	"context"
	"fmt"
	"time"

	"github.com/harshhpatil/recipegramapp-sub000/internal/auth"
	"github.com/harshhpatil/recipegramapp-sub000/internal/db"
	"github.com/harshhpatil/recipegramapp-sub000/internal/handler"
	"github.com/harshhpatil/recipegramapp-sub000/internal/hub"
	"github.com/harshhpatil/recipegramapp-sub000/internal/middleware"
	"github.com/harshhpatil/recipegramapp-sub000/internal/model"
	"github.com/harshhpatil/recipegramapp-sub000/internal/repo"
	"github.com/harshhpatil/recipegramapp-sub000/internal/service"
	"github.com/harshhpatil/recipegramapp-sub000/internal/stream"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// REST send budget per user, separate from the gateway's per-connection limit
const (
	restSendRate  = rate.Limit(1)
	restSendBurst = 5
)

type Container struct {
	MessageHandler handler.MessageHandler
	MonitorHandler handler.MonitorHandler
	Tokens         *auth.TokenService
	SendLimiter    *middleware.KeyedRateLimiter
	Hub            *hub.Hub
	Config         Config
	Logger         *zap.Logger

	// private - for cleanup
	mongoClient *mongo.Database
	publisher   stream.Publisher
}

// closers undoes partial construction, last opened first
type closers []func()

func (c *closers) add(fn func()) { *c = append(*c, fn) }

func (c closers) run() {
	for i := len(c) - 1; i >= 0; i-- {
		c[i]()
	}
}

func BuildContainer(configPath string) (_ *Container, err error) {
	var undo closers
	defer func() {
		if err != nil {
			undo.run()
		}
	}()

	config, err := LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := newLogger(config)
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	logger.Info("config loaded",
		zap.String("env", config.App.Env),
		zap.Int("app_port", config.Server.AppPort),
		zap.Int("socket_port", config.Server.SocketPort),
		zap.Bool("redis", config.Redis.Enabled),
		zap.Bool("kafka", config.Kafka.Enabled),
	)

	con, err := db.OpenConnection(config.Mongo.Uri, config.Mongo.Database)
	if err != nil {
		return nil, err
	}
	undo.add(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := con.Client().Disconnect(ctx); err != nil {
			logger.Warn("failed to close MongoDB connection", zap.Error(err))
		}
	})

	messageRepo := repo.NewMessageRepository(
		db.NewRepository[model.Message](con, config.Mongo.MessagesCollection), logger)
	userRepo := repo.NewUserRepository(
		db.NewRepository[model.User](con, config.Mongo.UsersCollection), logger)
	conversationRepo := repo.NewConversationRepository(
		con.Collection(config.Mongo.MessagesCollection), config.Mongo.UsersCollection, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := messageRepo.EnsureIndexes(ctx); err != nil {
		return nil, err
	}

	var publisher stream.Publisher = stream.NopPublisher{}
	if config.Kafka.Enabled {
		publisher = stream.NewKafkaPublisher(config.Kafka.Brokers, config.Kafka.TopicPrefix, logger)
		undo.add(func() { _ = publisher.Close() })
	}

	messageService := service.NewMessageService(messageRepo, userRepo, publisher, service.MessageOptions{
		MaxContentLength: config.Messages.MaxContentLength,
		DefaultPageSize:  int64(config.Messages.DefaultPageSize),
		MaxPageSize:      int64(config.Messages.MaxPageSize),
	}, logger)
	conversationService := service.NewConversationService(conversationRepo, logger)

	tokens := auth.NewTokenService(config.Auth.JwtSecret, config.Auth.Issuer)
	instanceID := uuid.New().String()

	var broker hub.Broker
	if config.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     config.Redis.Addr,
			Password: config.Redis.Password,
			DB:       config.Redis.DB,
		})
		undo.add(func() { _ = rdb.Close() })
		if err := rdb.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("failed to reach redis: %w", err)
		}
		broker = hub.NewRedisBroker(rdb, config.Redis.ChannelPrefix, instanceID, logger)
	}

	h := hub.NewHub(nil, messageService, tokens, broker, hub.Options{
		InboundQueueSize: config.Gateway.InboundQueueSize,
		SendBufferSize:   config.Gateway.SendBufferSize,
		SendTimeout:      config.Gateway.SendTimeout,
		MessageRate:      config.Gateway.MessageRate,
		MessageBurst:     config.Gateway.MessageBurst,
		AllowedOrigins:   config.Server.AllowedOrigins,
		InstanceID:       instanceID,
		PresenceTTL:      config.Redis.PresenceTTL,
	}, logger)

	messageHandler := handler.NewMessageHandler(messageService, conversationService, h, h, middleware.UserID, logger)
	monitorHandler := handler.NewMonitorHandler(hub.NewMonitorService(h))

	return &Container{
		MessageHandler: messageHandler,
		MonitorHandler: monitorHandler,
		Tokens:         tokens,
		SendLimiter:    middleware.NewKeyedRateLimiter(restSendRate, restSendBurst),
		Hub:            h,
		Config:         *config,
		Logger:         logger,
		mongoClient:    con,
		publisher:      publisher,
	}, nil
}

func newLogger(config *Config) (*zap.Logger, error) {
	if config.IsProduction() {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

// Close gracefully shuts down all connections
func (c *Container) Close() error {
	// Stop the hub first (closes all WebSocket connections and the broker)
	if c.Hub != nil {
		c.Hub.Stop()
	}

	if c.SendLimiter != nil {
		c.SendLimiter.Stop()
	}

	if c.publisher != nil {
		if err := c.publisher.Close(); err != nil {
			c.Logger.Warn("failed to close event publisher", zap.Error(err))
		}
	}

	// Sync logger
	if c.Logger != nil {
		_ = c.Logger.Sync()
	}

	// Close MongoDB connection pool
	if c.mongoClient != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := c.mongoClient.Client().Disconnect(ctx); err != nil {
			return fmt.Errorf("failed to close MongoDB connection: %w", err)
		}
	}

	return nil
}

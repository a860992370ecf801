package hub

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/harshhpatil/recipegramapp-sub000/internal/event"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Envelope carries an event between gateway instances. An empty UserID means
// every connection except those of Except.
type Envelope struct {
	Origin   string           `json:"origin"`
	UserID   string           `json:"userId,omitempty"`
	Except   string           `json:"except,omitempty"`
	Event    event.WsEvent    `json:"event"`
	Delivery *DeliveryReceipt `json:"delivery,omitempty"`
}

// DeliveryReceipt rides along with receive_message so the instance holding
// the recipient can report message_delivered back to the sender
type DeliveryReceipt struct {
	SenderID     string `json:"senderId"`
	MessageID    string `json:"messageId"`
	ClientTempID string `json:"clientTempId,omitempty"`
}

// Broker links gateway instances. It is optional: a single instance runs
// without one.
type Broker interface {
	Publish(ctx context.Context, env Envelope) error
	// Subscribe blocks until ctx is done, calling handler for every envelope
	// published by another instance
	Subscribe(ctx context.Context, handler func(Envelope)) error
	SetPresence(ctx context.Context, userID string, online bool, ttl time.Duration) error
	IsOnline(ctx context.Context, userID string) (bool, error)
	Close() error
}

func (h *Hub) publish(env Envelope) {
	env.Origin = h.opts.InstanceID

	ctx, cancel := context.WithTimeout(h.ctx, 2*time.Second)
	defer cancel()

	if err := h.broker.Publish(ctx, env); err != nil {
		h.logger.Warn("broker publish failed",
			zap.String("user_id", env.UserID),
			zap.String("event", env.Event.Event),
			zap.Error(err),
		)
	}
}

func (h *Hub) runBroker() {
	defer h.wg.Done()
	if err := h.broker.Subscribe(h.ctx, h.handleRemote); err != nil && h.ctx.Err() == nil {
		h.logger.Error("broker subscription ended", zap.Error(err))
	}
}

// handleRemote applies an envelope from another instance to local connections
func (h *Hub) handleRemote(env Envelope) {
	if env.Origin == h.opts.InstanceID {
		return
	}

	if env.UserID == "" {
		h.broadcastLocal(env.Except, env.Event)
		return
	}

	if !h.sendLocal(env.UserID, env.Event) {
		return
	}
	if env.Delivery != nil {
		h.emitDelivered(env.Delivery)
	}
}

// -----------------------------------------------------------------------------
// Redis
// -----------------------------------------------------------------------------

// releasePresence deletes the presence key only if this instance still owns it
var releasePresence = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type RedisBroker struct {
	rdb        *redis.Client
	prefix     string
	instanceID string
	logger     *zap.Logger
}

func NewRedisBroker(rdb *redis.Client, prefix, instanceID string, logger *zap.Logger) *RedisBroker {
	return &RedisBroker{
		rdb:        rdb,
		prefix:     prefix,
		instanceID: instanceID,
		logger:     logger,
	}
}

func (b *RedisBroker) channel() string {
	return b.prefix + ":events"
}

func (b *RedisBroker) presenceKey(userID string) string {
	return b.prefix + ":presence:" + userID
}

func (b *RedisBroker) Publish(ctx context.Context, env Envelope) error {
	if env.Origin == "" {
		env.Origin = b.instanceID
	}
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, b.channel(), data).Err()
}

func (b *RedisBroker) Subscribe(ctx context.Context, handler func(Envelope)) error {
	pubsub := b.rdb.Subscribe(ctx, b.channel())
	defer pubsub.Close()

	// wait for the subscription to be confirmed
	if _, err := pubsub.Receive(ctx); err != nil {
		return err
	}

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return errors.New("redis subscription closed")
			}
			env, ok := b.accept(msg.Payload)
			if !ok {
				continue
			}
			handler(env)
		}
	}
}

// accept decodes a pubsub payload, dropping garbage and our own publications
func (b *RedisBroker) accept(payload string) (Envelope, bool) {
	var env Envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		b.logger.Warn("dropping malformed broker envelope", zap.Error(err))
		return Envelope{}, false
	}
	if env.Origin == b.instanceID {
		return Envelope{}, false
	}
	return env, true
}

// SetPresence records which instance holds userID. Going offline releases the
// key only if no other instance has taken it over since.
func (b *RedisBroker) SetPresence(ctx context.Context, userID string, online bool, ttl time.Duration) error {
	key := b.presenceKey(userID)
	if online {
		return b.rdb.Set(ctx, key, b.instanceID, ttl).Err()
	}
	return releasePresence.Run(ctx, b.rdb, []string{key}, b.instanceID).Err()
}

func (b *RedisBroker) IsOnline(ctx context.Context, userID string) (bool, error) {
	n, err := b.rdb.Exists(ctx, b.presenceKey(userID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (b *RedisBroker) Close() error {
	return b.rdb.Close()
}

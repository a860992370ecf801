package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/harshhpatil/recipegramapp-sub000/internal/db"
	"github.com/harshhpatil/recipegramapp-sub000/internal/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

var (
	ErrNotFound         = errors.New("document not found")
	ErrInvalidMessage   = errors.New("invalid message: message cannot be nil")
	ErrOperationTimeout = errors.New("operation timeout exceeded")
)

const (
	// Timeouts
	defaultWriteTimeout = 5 * time.Second
	defaultReadTimeout  = 30 * time.Second

	// Retry configuration
	maxRetries     = 3
	baseRetryDelay = 100 * time.Millisecond
	maxRetryDelay  = 2 * time.Second
)

type messageRepository struct {
	mongoRepo *db.Repository[model.Message]
	logger    *zap.Logger
}

type MessageRepository interface {
	Insert(ctx context.Context, msg *model.Message) (*model.Message, error)
	FindByID(ctx context.Context, id primitive.ObjectID) (*model.Message, error)
	FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]model.Message, error)
	FindByClientTempID(ctx context.Context, senderID, clientTempID string) (*model.Message, error)
	FindConversationPage(ctx context.Context, userA, userB string, page, pageSize int64) (*db.Page[model.Message], error)
	MarkRead(ctx context.Context, id primitive.ObjectID, at time.Time) (*model.Message, bool, error)
	MarkConversationRead(ctx context.Context, readerID, partnerID string, at time.Time) ([]primitive.ObjectID, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
	CountUnread(ctx context.Context, userID string) (int64, error)
	EnsureIndexes(ctx context.Context) error
}

func NewMessageRepository(repo *db.Repository[model.Message], logger *zap.Logger) MessageRepository {
	return &messageRepository{
		mongoRepo: repo,
		logger:    logger,
	}
}

// -----------------------------------------------------------------------------
// Insert
// -----------------------------------------------------------------------------

func (m *messageRepository) Insert(ctx context.Context, msg *model.Message) (*model.Message, error) {
	if msg == nil {
		return nil, ErrInvalidMessage
	}

	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	// the id is assigned client side so a retried insert after a lost
	// acknowledgement cannot create a second document
	if msg.ID.IsZero() {
		msg.ID = primitive.NewObjectID()
	}

	err := m.withRetry(ctx, "insert message", func(ctx context.Context) error {
		_, err := m.mongoRepo.Create(ctx, *msg)
		if mongo.IsDuplicateKeyError(err) {
			return nil
		}
		return err
	})
	if err != nil {
		m.logger.Error("failed to insert message after all retries",
			zap.Error(err),
			zap.String("sender_id", msg.SenderID),
			zap.String("recipient_id", msg.RecipientID),
		)
		return nil, fmt.Errorf("insert message failed: %w", err)
	}

	m.logger.Debug("message inserted",
		zap.String("message_id", msg.ID.Hex()),
		zap.String("sender_id", msg.SenderID),
		zap.String("recipient_id", msg.RecipientID),
	)
	return msg, nil
}

// -----------------------------------------------------------------------------
// Reads
// -----------------------------------------------------------------------------

func (m *messageRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*model.Message, error) {
	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	var msg *model.Message
	err := m.withRetry(ctx, "find message", func(ctx context.Context) error {
		found, err := m.mongoRepo.FindByID(ctx, id)
		msg = found
		return err
	})
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, m.handleReadError(err, id.Hex())
	}
	return msg, nil
}

func (m *messageRepository) FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]model.Message, error) {
	if len(ids) == 0 {
		return []model.Message{}, nil
	}

	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	filter := db.NewFilter().In("_id", ids).Build()
	msgs, err := m.mongoRepo.FindAll(ctx, filter)
	if err != nil {
		return nil, m.handleReadError(err, "batch")
	}
	return msgs, nil
}

// FindConversationPage returns page of the exchange between userA and userB.
// Pages are cut newest first so page 1 is always the latest pageSize
// messages, then reversed so callers receive them oldest to newest.
func (m *messageRepository) FindConversationPage(ctx context.Context, userA, userB string, page, pageSize int64) (*db.Page[model.Message], error) {
	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	filter := PairFilter(userA, userB)

	m.logger.Debug("fetching conversation page",
		zap.String("user_a", userA),
		zap.String("user_b", userB),
		zap.Int64("page", page),
		zap.Int64("page_size", pageSize),
	)

	var result *db.Page[model.Message]
	err := m.withRetry(ctx, "conversation page", func(ctx context.Context) error {
		res, err := m.mongoRepo.FindPage(ctx, filter, db.PageParams{
			Page:     page,
			PageSize: pageSize,
			Sort:     bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}},
		})
		result = res
		return err
	})
	if err != nil {
		return nil, m.handleReadError(err, userA+":"+userB)
	}

	reverse(result.Data)
	return result, nil
}

func (m *messageRepository) CountUnread(ctx context.Context, userID string) (int64, error) {
	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	filter := db.NewFilter().Eq("recipient_id", userID).Eq("is_read", false).Build()
	count, err := m.mongoRepo.Count(ctx, filter)
	if err != nil {
		return 0, m.handleReadError(err, userID)
	}
	return count, nil
}

// -----------------------------------------------------------------------------
// Writes
// -----------------------------------------------------------------------------

// MarkRead flips is_read once; changed reports whether this call did it.
func (m *messageRepository) MarkRead(ctx context.Context, id primitive.ObjectID, at time.Time) (*model.Message, bool, error) {
	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	filter := db.NewFilter().Eq("_id", id).Eq("is_read", false).Build()

	var changed bool
	err := m.withRetry(ctx, "mark read", func(ctx context.Context) error {
		res, err := m.mongoRepo.Update(ctx, filter, bson.M{"is_read": true, "read_at": at})
		if err != nil {
			return err
		}
		changed = res.ModifiedCount > 0
		return nil
	})
	if err != nil {
		m.logger.Error("failed to mark message read", zap.Error(err), zap.String("message_id", id.Hex()))
		return nil, false, fmt.Errorf("mark read failed: %w", err)
	}

	msg, err := m.FindByID(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return msg, changed, nil
}

// MarkConversationRead marks every unread message partnerID sent to readerID
// and returns the ids it touched.
func (m *messageRepository) MarkConversationRead(ctx context.Context, readerID, partnerID string, at time.Time) ([]primitive.ObjectID, error) {
	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	unread := UnreadFromFilter(partnerID, readerID)
	docs, err := m.mongoRepo.FindAll(ctx, unread, options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, m.handleReadError(err, readerID+":"+partnerID)
	}
	if len(docs) == 0 {
		return []primitive.ObjectID{}, nil
	}

	ids := make([]primitive.ObjectID, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.ID)
	}

	filter := db.NewFilter().In("_id", ids).Eq("is_read", false).Build()
	err = m.withRetry(ctx, "mark conversation read", func(ctx context.Context) error {
		_, err := m.mongoRepo.UpdateMany(ctx, filter, bson.M{"is_read": true, "read_at": at})
		return err
	})
	if err != nil {
		m.logger.Error("failed to mark conversation read",
			zap.Error(err),
			zap.String("reader_id", readerID),
			zap.String("partner_id", partnerID),
		)
		return nil, fmt.Errorf("mark conversation read failed: %w", err)
	}

	m.logger.Debug("conversation marked read",
		zap.String("reader_id", readerID),
		zap.String("partner_id", partnerID),
		zap.Int("count", len(ids)),
	)
	return ids, nil
}

func (m *messageRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	var deleted int64
	err := m.withRetry(ctx, "delete message", func(ctx context.Context) error {
		res, err := m.mongoRepo.DeleteByID(ctx, id)
		if err != nil {
			return err
		}
		deleted = res.DeletedCount
		return nil
	})
	if err != nil {
		m.logger.Error("failed to delete message", zap.Error(err), zap.String("message_id", id.Hex()))
		return fmt.Errorf("delete message failed: %w", err)
	}
	if deleted == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *messageRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	return m.mongoRepo.EnsureIndexes(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "sender_id", Value: 1}, {Key: "recipient_id", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("pair_created_at"),
		},
		{
			Keys:    bson.D{{Key: "recipient_id", Value: 1}, {Key: "is_read", Value: 1}},
			Options: options.Index().SetName("recipient_unread"),
		},
		{
			Keys: bson.D{{Key: "sender_id", Value: 1}, {Key: "client_temp_id", Value: 1}},
			Options: options.Index().SetName("sender_client_temp_id").
				SetPartialFilterExpression(bson.M{"client_temp_id": bson.M{"$exists": true}}),
		},
	})
}

// FindByClientTempID returns the message senderID already stored under
// clientTempID, so a resent draft resolves to the original document
func (m *messageRepository) FindByClientTempID(ctx context.Context, senderID, clientTempID string) (*model.Message, error) {
	if clientTempID == "" {
		return nil, ErrNotFound
	}

	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	filter := db.NewFilter().Eq("sender_id", senderID).Eq("client_temp_id", clientTempID).Build()

	var msg *model.Message
	err := m.withRetry(ctx, "find message by client temp id", func(ctx context.Context) error {
		found, err := m.mongoRepo.FindOne(ctx, filter)
		msg = found
		return err
	})
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, m.handleReadError(err, clientTempID)
	}
	return msg, nil
}

// -----------------------------------------------------------------------------
// Filters
// -----------------------------------------------------------------------------

// PairFilter matches messages exchanged between a and b in either direction
func PairFilter(a, b string) bson.M {
	return db.NewFilter().Between("sender_id", "recipient_id", a, b).Build()
}

// UnreadFromFilter matches unread messages sent by sender to recipient
func UnreadFromFilter(senderID, recipientID string) bson.M {
	return db.NewFilter().
		Eq("sender_id", senderID).
		Eq("recipient_id", recipientID).
		Eq("is_read", false).
		Build()
}

// -----------------------------------------------------------------------------
// Private Helper Methods
// -----------------------------------------------------------------------------

func (m *messageRepository) withRetry(ctx context.Context, op string, fn func(context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			if err := waitForRetry(ctx, attempt); err != nil {
				return err
			}
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}

		// Don't retry on context cancellation or non-retryable errors
		if !isRetryableError(lastErr) {
			return lastErr
		}

		m.logger.Warn("mongo operation failed, retrying",
			zap.String("op", op),
			zap.Error(lastErr),
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", maxRetries),
		)
	}
	return lastErr
}

func (m *messageRepository) handleReadError(err error, key string) error {
	if errors.Is(err, context.DeadlineExceeded) {
		m.logger.Error("read timeout", zap.String("key", key))
		return ErrOperationTimeout
	}

	if errors.Is(err, context.Canceled) {
		m.logger.Debug("read cancelled", zap.String("key", key))
		return err
	}

	m.logger.Error("read failed", zap.Error(err), zap.String("key", key))
	return fmt.Errorf("read messages failed: %w", err)
}

func ensureTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, hadDeadline := ctx.Deadline(); hadDeadline {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, timeout)
}

func waitForRetry(ctx context.Context, attempt int) error {
	delay := time.Duration(1<<uint(attempt)) * baseRetryDelay
	if delay > maxRetryDelay {
		delay = maxRetryDelay
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return fmt.Errorf("retry wait cancelled: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}

func isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	// Context errors are not retryable
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return false
	}

	// Check for MongoDB transient errors
	return mongo.IsTimeout(err) || mongo.IsNetworkError(err)
}

func reverse[T any](items []T) {
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}
}

package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/harshhpatil/recipegramapp-sub000/internal/db"
	"github.com/harshhpatil/recipegramapp-sub000/internal/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

var ErrInvalidUserID = errors.New("invalid user id: cannot be empty")

type conversationRepository struct {
	messages        *mongo.Collection
	usersCollection string
	logger          *zap.Logger
}

type ConversationRepository interface {
	ListConversations(ctx context.Context, userID string) ([]model.ConversationSummary, error)
}

func NewConversationRepository(messages *mongo.Collection, usersCollection string, logger *zap.Logger) ConversationRepository {
	return &conversationRepository{
		messages:        messages,
		usersCollection: usersCollection,
		logger:          logger,
	}
}

// conversationRow is the raw aggregation output before the partner
// document is reduced to a summary
type conversationRow struct {
	PartnerID       string      `bson:"_id"`
	PartnerDoc      *model.User `bson:"partner_doc"`
	LastMessageID   string      `bson:"last_message_id"`
	LastMessage     string      `bson:"last_message"`
	LastMessageTime time.Time   `bson:"last_message_time"`
	LastSenderID    string      `bson:"last_sender_id"`
	UnreadCount     int64       `bson:"unread_count"`
}

// ListConversations returns one row per partner userID has exchanged
// messages with, most recent conversation first
func (r *conversationRepository) ListConversations(ctx context.Context, userID string) ([]model.ConversationSummary, error) {
	if userID == "" {
		return nil, ErrInvalidUserID
	}

	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	rows, err := db.Aggregate[conversationRow](ctx, r.messages, ConversationPipeline(userID, r.usersCollection))
	if err != nil {
		r.logger.Error("failed to aggregate conversations",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to aggregate conversations: %w", err)
	}

	result := make([]model.ConversationSummary, 0, len(rows))
	for _, row := range rows {
		result = append(result, row.summary(userID))
	}

	r.logger.Debug("conversations aggregated",
		zap.String("user_id", userID),
		zap.Int("count", len(result)),
	)
	return result, nil
}

func (row conversationRow) summary(userID string) model.ConversationSummary {
	s := model.ConversationSummary{
		PartnerID:           row.PartnerID,
		LastMessageID:       row.LastMessageID,
		LastMessage:         row.LastMessage,
		LastMessageTime:     row.LastMessageTime,
		LastSenderID:        row.LastSenderID,
		UnreadCount:         row.UnreadCount,
		IsLastMessageFromMe: row.LastSenderID == userID,
	}
	if row.PartnerDoc != nil {
		s.Partner = row.PartnerDoc.Summary()
	}
	return s
}

// ConversationPipeline groups every message involving userID by partner.
// Messages are sorted newest first before grouping so $first picks the
// latest one; unread counts only messages the partner sent to userID.
func ConversationPipeline(userID, usersCollection string) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"$or": []bson.M{
				{"sender_id": userID},
				{"recipient_id": userID},
			},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}}},
		{{Key: "$addFields", Value: bson.M{
			"partner_id": bson.M{
				"$cond": bson.A{
					bson.M{"$eq": bson.A{"$sender_id", userID}},
					"$recipient_id",
					"$sender_id",
				},
			},
		}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$partner_id"},
			{Key: "last_message_id", Value: bson.M{"$first": "$_id"}},
			{Key: "last_message", Value: bson.M{"$first": "$content"}},
			{Key: "last_message_time", Value: bson.M{"$first": "$created_at"}},
			{Key: "last_sender_id", Value: bson.M{"$first": "$sender_id"}},
			{Key: "unread_count", Value: bson.M{"$sum": bson.M{
				"$cond": bson.A{
					bson.M{"$and": bson.A{
						bson.M{"$eq": bson.A{"$recipient_id", userID}},
						bson.M{"$eq": bson.A{"$is_read", false}},
					}},
					1,
					0,
				},
			}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "last_message_time", Value: -1}}}},
		{{Key: "$lookup", Value: bson.M{
			"from": usersCollection,
			"let":  bson.M{"partner_oid": bson.M{"$convert": bson.M{"input": "$_id", "to": "objectId", "onError": nil, "onNull": nil}}},
			"pipeline": bson.A{
				bson.M{"$match": bson.M{"$expr": bson.M{"$eq": bson.A{"$_id", "$$partner_oid"}}}},
				bson.M{"$project": bson.M{"username": 1, "name": 1, "avatar": 1}},
			},
			"as": "partner_doc",
		}}},
		{{Key: "$unwind", Value: bson.M{"path": "$partner_doc", "preserveNullAndEmptyArrays": true}}},
		{{Key: "$project", Value: bson.M{
			"_id":               1,
			"partner_doc":       1,
			"last_message_id":   bson.M{"$toString": "$last_message_id"},
			"last_message":      1,
			"last_message_time": 1,
			"last_sender_id":    1,
			"unread_count":      1,
		}}},
	}
}

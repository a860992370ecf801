package repo

import (
	"context"
	"testing"
	"time"

	"github.com/harshhpatil/recipegramapp-sub000/internal/db"
	"github.com/harshhpatil/recipegramapp-sub000/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
	"go.uber.org/zap"
)

func namespace(mt *mtest.T) string {
	return mt.DB.Name() + "." + mt.Coll.Name()
}

func newTestMessageRepo(mt *mtest.T) MessageRepository {
	return NewMessageRepository(db.NewRepository[model.Message](mt.DB, mt.Coll.Name()), zap.NewNop())
}

func TestPairFilterMatchesBothDirections(t *testing.T) {
	filter := PairFilter("alice", "bob")

	or, ok := filter["$or"].([]bson.M)
	require.True(t, ok)
	require.Len(t, or, 2)
	assert.Equal(t, bson.M{"sender_id": "alice", "recipient_id": "bob"}, or[0])
	assert.Equal(t, bson.M{"sender_id": "bob", "recipient_id": "alice"}, or[1])
}

func TestUnreadFromFilter(t *testing.T) {
	assert.Equal(t, bson.M{
		"sender_id":    "bob",
		"recipient_id": "alice",
		"is_read":      false,
	}, UnreadFromFilter("bob", "alice"))
}

func TestMessageRepository(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("InsertAssignsID", func(mt *mtest.T) {
		repo := newTestMessageRepo(mt)
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		msg, err := repo.Insert(context.Background(), &model.Message{
			SenderID:    "alice",
			RecipientID: "bob",
			Content:     "hi",
			CreatedAt:   time.Now().UTC(),
		})
		require.NoError(mt, err)
		assert.False(mt, msg.ID.IsZero())
	})

	mt.Run("InsertNil", func(mt *mtest.T) {
		repo := newTestMessageRepo(mt)

		_, err := repo.Insert(context.Background(), nil)
		assert.ErrorIs(mt, err, ErrInvalidMessage)
	})

	mt.Run("FindByIDMissing", func(mt *mtest.T) {
		repo := newTestMessageRepo(mt)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, namespace(mt), mtest.FirstBatch))

		_, err := repo.FindByID(context.Background(), primitive.NewObjectID())
		assert.ErrorIs(mt, err, ErrNotFound)
	})

	mt.Run("FindByIDFound", func(mt *mtest.T) {
		repo := newTestMessageRepo(mt)
		id := primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, namespace(mt), mtest.FirstBatch, bson.D{
			{Key: "_id", Value: id},
			{Key: "sender_id", Value: "alice"},
			{Key: "recipient_id", Value: "bob"},
			{Key: "content", Value: "hello"},
			{Key: "is_read", Value: false},
		}))

		msg, err := repo.FindByID(context.Background(), id)
		require.NoError(mt, err)
		assert.Equal(mt, id, msg.ID)
		assert.Equal(mt, "hello", msg.Content)
	})

	mt.Run("FindByClientTempID", func(mt *mtest.T) {
		repo := newTestMessageRepo(mt)
		id := primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, namespace(mt), mtest.FirstBatch, bson.D{
			{Key: "_id", Value: id},
			{Key: "sender_id", Value: "alice"},
			{Key: "recipient_id", Value: "bob"},
			{Key: "content", Value: "hello"},
			{Key: "client_temp_id", Value: "tmp-1"},
		}))

		msg, err := repo.FindByClientTempID(context.Background(), "alice", "tmp-1")
		require.NoError(mt, err)
		assert.Equal(mt, id, msg.ID)
		assert.Equal(mt, "tmp-1", msg.ClientTempID)
	})

	mt.Run("FindByClientTempIDMissing", func(mt *mtest.T) {
		repo := newTestMessageRepo(mt)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, namespace(mt), mtest.FirstBatch))

		_, err := repo.FindByClientTempID(context.Background(), "alice", "tmp-1")
		assert.ErrorIs(mt, err, ErrNotFound)
	})

	mt.Run("FindByClientTempIDEmpty", func(mt *mtest.T) {
		repo := newTestMessageRepo(mt)

		_, err := repo.FindByClientTempID(context.Background(), "alice", "")
		assert.ErrorIs(mt, err, ErrNotFound)
	})

	mt.Run("CountUnread", func(mt *mtest.T) {
		repo := newTestMessageRepo(mt)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, namespace(mt), mtest.FirstBatch, bson.D{
			{Key: "n", Value: int32(3)},
		}))

		count, err := repo.CountUnread(context.Background(), "alice")
		require.NoError(mt, err)
		assert.Equal(mt, int64(3), count)
	})

	mt.Run("MarkReadReportsChange", func(mt *mtest.T) {
		repo := newTestMessageRepo(mt)
		id := primitive.NewObjectID()
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 1}),
			mtest.CreateCursorResponse(0, namespace(mt), mtest.FirstBatch, bson.D{
				{Key: "_id", Value: id},
				{Key: "sender_id", Value: "bob"},
				{Key: "recipient_id", Value: "alice"},
				{Key: "is_read", Value: true},
			}),
		)

		msg, changed, err := repo.MarkRead(context.Background(), id, time.Now())
		require.NoError(mt, err)
		assert.True(mt, changed)
		assert.True(mt, msg.IsRead)
	})

	mt.Run("MarkReadAlreadyRead", func(mt *mtest.T) {
		repo := newTestMessageRepo(mt)
		id := primitive.NewObjectID()
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}, bson.E{Key: "nModified", Value: 0}),
			mtest.CreateCursorResponse(0, namespace(mt), mtest.FirstBatch, bson.D{
				{Key: "_id", Value: id},
				{Key: "is_read", Value: true},
			}),
		)

		_, changed, err := repo.MarkRead(context.Background(), id, time.Now())
		require.NoError(mt, err)
		assert.False(mt, changed)
	})

	mt.Run("MarkConversationReadNothingUnread", func(mt *mtest.T) {
		repo := newTestMessageRepo(mt)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, namespace(mt), mtest.FirstBatch))

		ids, err := repo.MarkConversationRead(context.Background(), "alice", "bob", time.Now())
		require.NoError(mt, err)
		assert.Empty(mt, ids)
	})

	mt.Run("MarkConversationReadReturnsIDs", func(mt *mtest.T) {
		repo := newTestMessageRepo(mt)
		a, b := primitive.NewObjectID(), primitive.NewObjectID()
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, namespace(mt), mtest.FirstBatch,
				bson.D{{Key: "_id", Value: a}},
				bson.D{{Key: "_id", Value: b}},
			),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 2}, bson.E{Key: "nModified", Value: 2}),
		)

		ids, err := repo.MarkConversationRead(context.Background(), "alice", "bob", time.Now())
		require.NoError(mt, err)
		assert.Equal(mt, []primitive.ObjectID{a, b}, ids)
	})

	mt.Run("DeleteMissing", func(mt *mtest.T) {
		repo := newTestMessageRepo(mt)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}))

		err := repo.Delete(context.Background(), primitive.NewObjectID())
		assert.ErrorIs(mt, err, ErrNotFound)
	})

	mt.Run("DeleteExisting", func(mt *mtest.T) {
		repo := newTestMessageRepo(mt)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}))

		err := repo.Delete(context.Background(), primitive.NewObjectID())
		assert.NoError(mt, err)
	})

	mt.Run("ConversationPageOldestFirst", func(mt *mtest.T) {
		repo := newTestMessageRepo(mt)
		newer := time.Date(2024, 5, 1, 10, 5, 0, 0, time.UTC)
		older := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, namespace(mt), mtest.FirstBatch, bson.D{{Key: "n", Value: int32(2)}}),
			mtest.CreateCursorResponse(0, namespace(mt), mtest.FirstBatch,
				bson.D{{Key: "_id", Value: primitive.NewObjectID()}, {Key: "content", Value: "second"}, {Key: "created_at", Value: newer}},
				bson.D{{Key: "_id", Value: primitive.NewObjectID()}, {Key: "content", Value: "first"}, {Key: "created_at", Value: older}},
			),
		)

		page, err := repo.FindConversationPage(context.Background(), "alice", "bob", 1, 30)
		require.NoError(mt, err)
		require.Len(mt, page.Data, 2)
		assert.Equal(mt, "first", page.Data[0].Content)
		assert.Equal(mt, "second", page.Data[1].Content)
		assert.Equal(mt, int64(2), page.Total)
		assert.Equal(mt, int64(1), page.TotalPages)
	})
}

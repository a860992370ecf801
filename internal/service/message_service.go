package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/harshhpatil/recipegramapp-sub000/internal/apperror"
	"github.com/harshhpatil/recipegramapp-sub000/internal/model"
	"github.com/harshhpatil/recipegramapp-sub000/internal/repo"
	"github.com/harshhpatil/recipegramapp-sub000/internal/stream"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// SendInput is a send request as received from either the gateway or REST
type SendInput struct {
	SenderID        string
	RecipientID     string
	Content         string
	Image           *string
	ParentMessageID string
	ClientTempID    string
}

type MessageOptions struct {
	MaxContentLength int
	DefaultPageSize  int64
	MaxPageSize      int64
}

func DefaultMessageOptions() MessageOptions {
	return MessageOptions{
		MaxContentLength: 1000,
		DefaultPageSize:  30,
		MaxPageSize:      100,
	}
}

type MessageService interface {
	Send(ctx context.Context, in SendInput) (*model.Message, error)
	ConversationPage(ctx context.Context, requesterID, partnerID string, page, limit int64) (*model.MessagePage, error)
	MarkRead(ctx context.Context, requesterID, messageID string) (*model.Message, bool, error)
	MarkConversationRead(ctx context.Context, readerID, partnerID string) ([]string, error)
	Delete(ctx context.Context, requesterID, messageID string) (*model.Message, error)
	UnreadCount(ctx context.Context, userID string) (int64, error)
	User(ctx context.Context, userID string) (*model.User, error)
}

type messageService struct {
	messages  repo.MessageRepository
	users     repo.UserRepository
	publisher stream.Publisher
	opts      MessageOptions
	logger    *zap.Logger
	now       func() time.Time
}

func NewMessageService(
	messages repo.MessageRepository,
	users repo.UserRepository,
	publisher stream.Publisher,
	opts MessageOptions,
	logger *zap.Logger,
) MessageService {
	if publisher == nil {
		publisher = stream.NopPublisher{}
	}
	return &messageService{
		messages:  messages,
		users:     users,
		publisher: publisher,
		opts:      opts,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *messageService) Send(ctx context.Context, in SendInput) (*model.Message, error) {
	content := strings.TrimSpace(in.Content)
	image := normalizeImage(in.Image)

	if in.RecipientID == "" {
		return nil, apperror.Validation("recipientId is required")
	}
	if content == "" && image == nil {
		return nil, apperror.Validation("message content or image is required")
	}
	if utf8.RuneCountInString(content) > s.opts.MaxContentLength {
		return nil, apperror.Validation(fmt.Sprintf("message cannot exceed %d characters", s.opts.MaxContentLength))
	}
	if in.SenderID == in.RecipientID {
		return nil, apperror.InvalidOperation("cannot send message to yourself")
	}

	recipient, err := s.users.GetUser(ctx, in.RecipientID)
	if err != nil {
		return nil, s.translate(err, "recipient not found", "failed to send message")
	}

	if existing, err := s.resend(ctx, in); err != nil || existing != nil {
		return existing, err
	}

	msg := &model.Message{
		SenderID:     in.SenderID,
		RecipientID:  in.RecipientID,
		Content:      content,
		Image:        image,
		IsRead:       false,
		CreatedAt:    s.now().UTC(),
		ClientTempID: in.ClientTempID,
	}

	var parent *model.Message
	if in.ParentMessageID != "" {
		parentID, err := primitive.ObjectIDFromHex(in.ParentMessageID)
		if err != nil {
			return nil, apperror.Validation("invalid parentMessageId")
		}
		parent, err = s.messages.FindByID(ctx, parentID)
		if err != nil {
			return nil, s.translate(err, "parent message not found", "failed to send message")
		}
		if !parent.Involves(in.SenderID, in.RecipientID) {
			return nil, apperror.InvalidReference("parent message does not belong to this conversation")
		}
		msg.ParentMessageID = &parentID
	}

	saved, err := s.messages.Insert(ctx, msg)
	if err != nil {
		s.logger.Error("failed to persist message",
			zap.String("sender_id", in.SenderID),
			zap.String("recipient_id", in.RecipientID),
			zap.Error(err),
		)
		return nil, apperror.Internal("failed to send message", err)
	}

	saved.Sender = s.senderSummary(ctx, in.SenderID)
	if parent != nil {
		saved.ParentMessage = parent.Preview()
	}

	s.logger.Info("message sent",
		zap.String("message_id", saved.ID.Hex()),
		zap.String("sender_id", saved.SenderID),
		zap.String("recipient_id", recipient.ID.Hex()),
	)

	s.publisher.Publish(ctx, stream.DomainEvent{
		Type:       stream.TypeMessageCreated,
		Key:        saved.RecipientID,
		OccurredAt: saved.CreatedAt,
		Payload:    saved,
	})
	return saved, nil
}

func (s *messageService) ConversationPage(ctx context.Context, requesterID, partnerID string, page, limit int64) (*model.MessagePage, error) {
	if _, err := s.users.GetUser(ctx, partnerID); err != nil {
		return nil, s.translate(err, "user not found", "failed to fetch messages")
	}

	page, limit = s.clampPage(page, limit)

	result, err := s.messages.FindConversationPage(ctx, requesterID, partnerID, page, limit)
	if err != nil {
		return nil, apperror.Internal("failed to fetch messages", err)
	}

	s.attachParents(ctx, result.Data)

	return &model.MessagePage{
		Messages:   result.Data,
		Page:       result.Page,
		Limit:      result.PageSize,
		Total:      result.Total,
		TotalPages: result.TotalPages,
	}, nil
}

// resend returns the message a sender already stored under the same client
// temp id. A draft retried after a lost acknowledgement resolves to it
// instead of creating a second document.
func (s *messageService) resend(ctx context.Context, in SendInput) (*model.Message, error) {
	if in.ClientTempID == "" {
		return nil, nil
	}

	existing, err := s.messages.FindByClientTempID(ctx, in.SenderID, in.ClientTempID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperror.Internal("failed to send message", err)
	}
	if existing.RecipientID != in.RecipientID {
		return nil, apperror.InvalidOperation("clientTempId already used for another conversation")
	}

	one := []model.Message{*existing}
	s.attachParents(ctx, one)
	one[0].Sender = s.senderSummary(ctx, in.SenderID)

	s.logger.Info("resend resolved to stored message",
		zap.String("message_id", existing.ID.Hex()),
		zap.String("sender_id", in.SenderID),
		zap.String("client_temp_id", in.ClientTempID),
	)
	return &one[0], nil
}

// MarkRead is restricted to the recipient. changed is false when the message
// was already read; callers emit no second receipt in that case.
func (s *messageService) MarkRead(ctx context.Context, requesterID, messageID string) (*model.Message, bool, error) {
	msg, err := s.load(ctx, messageID, "failed to mark message as read")
	if err != nil {
		return nil, false, err
	}
	if msg.RecipientID != requesterID {
		return nil, false, apperror.Forbidden("only the recipient can mark this message as read")
	}
	if msg.IsRead {
		return msg, false, nil
	}

	updated, changed, err := s.messages.MarkRead(ctx, msg.ID, s.now().UTC())
	if err != nil {
		return nil, false, s.translate(err, "message not found", "failed to mark message as read")
	}

	if changed {
		s.publisher.Publish(ctx, stream.DomainEvent{
			Type: stream.TypeMessageRead,
			Key:  updated.SenderID,
			Payload: model.MessageRead{
				MessageID: updated.ID.Hex(),
				IsRead:    true,
			},
		})
	}
	return updated, changed, nil
}

func (s *messageService) MarkConversationRead(ctx context.Context, readerID, partnerID string) ([]string, error) {
	if partnerID == "" {
		return nil, apperror.Validation("partnerId is required")
	}

	ids, err := s.messages.MarkConversationRead(ctx, readerID, partnerID, s.now().UTC())
	if err != nil {
		return nil, apperror.Internal("failed to mark conversation as read", err)
	}

	hexIDs := make([]string, 0, len(ids))
	for _, id := range ids {
		hexIDs = append(hexIDs, id.Hex())
	}

	if len(hexIDs) > 0 {
		s.publisher.Publish(ctx, stream.DomainEvent{
			Type: stream.TypeMessagesRead,
			Key:  partnerID,
			Payload: model.MessagesRead{
				ReaderID:   readerID,
				MessageIDs: hexIDs,
			},
		})
	}
	return hexIDs, nil
}

func (s *messageService) Delete(ctx context.Context, requesterID, messageID string) (*model.Message, error) {
	msg, err := s.load(ctx, messageID, "failed to delete message")
	if err != nil {
		return nil, err
	}
	if msg.SenderID != requesterID {
		return nil, apperror.Forbidden("only the sender can delete this message")
	}

	if err := s.messages.Delete(ctx, msg.ID); err != nil {
		return nil, s.translate(err, "message not found", "failed to delete message")
	}

	s.logger.Info("message deleted",
		zap.String("message_id", msg.ID.Hex()),
		zap.String("sender_id", msg.SenderID),
	)

	s.publisher.Publish(ctx, stream.DomainEvent{
		Type: stream.TypeMessageDeleted,
		Key:  msg.RecipientID,
		Payload: model.MessageDeleted{
			MessageID: msg.ID.Hex(),
			SenderID:  msg.SenderID,
		},
	})
	return msg, nil
}

func (s *messageService) UnreadCount(ctx context.Context, userID string) (int64, error) {
	count, err := s.messages.CountUnread(ctx, userID)
	if err != nil {
		return 0, apperror.Internal("failed to count unread messages", err)
	}
	return count, nil
}

func (s *messageService) User(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return nil, s.translate(err, "user not found", "failed to fetch user")
	}
	return user, nil
}

// -----------------------------------------------------------------------------
// helpers
// -----------------------------------------------------------------------------

func (s *messageService) load(ctx context.Context, messageID, failure string) (*model.Message, error) {
	id, err := primitive.ObjectIDFromHex(messageID)
	if err != nil {
		return nil, apperror.Validation("invalid message id")
	}
	msg, err := s.messages.FindByID(ctx, id)
	if err != nil {
		return nil, s.translate(err, "message not found", failure)
	}
	return msg, nil
}

func (s *messageService) translate(err error, notFound, failure string) error {
	if errors.Is(err, repo.ErrNotFound) {
		return apperror.NotFound(notFound)
	}
	return apperror.Internal(failure, err)
}

// senderSummary never fails the send: the sender is already authenticated
func (s *messageService) senderSummary(ctx context.Context, senderID string) *model.UserSummary {
	sender, err := s.users.GetUser(ctx, senderID)
	if err != nil {
		s.logger.Warn("sender lookup failed", zap.String("sender_id", senderID), zap.Error(err))
		return &model.UserSummary{ID: senderID}
	}
	return sender.Summary()
}

func (s *messageService) clampPage(page, limit int64) (int64, int64) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = s.opts.DefaultPageSize
	}
	if limit > s.opts.MaxPageSize {
		limit = s.opts.MaxPageSize
	}
	return page, limit
}

// attachParents fills ParentMessage on every reply with one batch lookup
func (s *messageService) attachParents(ctx context.Context, msgs []model.Message) {
	replies := Filter(msgs, func(m model.Message) bool { return m.ParentMessageID != nil })
	if len(replies) == 0 {
		return
	}

	ids := make([]primitive.ObjectID, 0, len(replies))
	for _, m := range replies {
		ids = append(ids, *m.ParentMessageID)
	}

	parents, err := s.messages.FindByIDs(ctx, ids)
	if err != nil {
		s.logger.Warn("failed to load parent messages", zap.Error(err))
		return
	}

	previews := make(map[primitive.ObjectID]*model.MessagePreview, len(parents))
	for i := range parents {
		previews[parents[i].ID] = parents[i].Preview()
	}
	for i := range msgs {
		if msgs[i].ParentMessageID != nil {
			msgs[i].ParentMessage = previews[*msgs[i].ParentMessageID]
		}
	}
}

func normalizeImage(image *string) *string {
	if image == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*image)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

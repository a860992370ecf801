package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/harshhpatil/recipegramapp-sub000/internal/apperror"
	"github.com/harshhpatil/recipegramapp-sub000/internal/model"
	"github.com/harshhpatil/recipegramapp-sub000/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Notifier pushes REST-originated changes to connected peers
type Notifier interface {
	NotifyMessageSent(msg *model.Message, clientTempID string)
	NotifyMessageRead(msg *model.Message)
	NotifyConversationRead(readerID, partnerID string, messageIDs []string)
	NotifyMessageDeleted(msg *model.Message)
}

// Presence answers whether a user currently holds a gateway connection
type Presence interface {
	IsOnline(ctx context.Context, userID string) bool
}

type MessageHandler interface {
	SendMessage(c *gin.Context)
	GetConversations(c *gin.Context)
	GetUnreadCount(c *gin.Context)
	GetMessages(c *gin.Context)
	MarkAsRead(c *gin.Context)
	MarkConversationRead(c *gin.Context)
	DeleteMessage(c *gin.Context)
	GetPresence(c *gin.Context)
}

type messageHandler struct {
	messages      service.MessageService
	conversations service.ConversationService
	notifier      Notifier
	presence      Presence
	callerID      func(c *gin.Context) string
	logger        *zap.Logger
}

// NewMessageHandler builds the REST facade. callerID extracts the
// authenticated user set by the auth middleware.
func NewMessageHandler(
	messages service.MessageService,
	conversations service.ConversationService,
	notifier Notifier,
	presence Presence,
	callerID func(c *gin.Context) string,
	logger *zap.Logger,
) MessageHandler {
	return &messageHandler{
		messages:      messages,
		conversations: conversations,
		notifier:      notifier,
		presence:      presence,
		callerID:      callerID,
		logger:        logger,
	}
}

type sendMessageRequest struct {
	RecipientID     string  `json:"recipientId"`
	Content         string  `json:"content"`
	Image           *string `json:"image"`
	ParentMessageID string  `json:"parentMessageId"`
	ClientTempID    string  `json:"clientTempId"`
}

func (h *messageHandler) SendMessage(c *gin.Context) {
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, apperror.Validation("invalid request body"))
		return
	}

	msg, err := h.messages.Send(c.Request.Context(), service.SendInput{
		SenderID:        h.callerID(c),
		RecipientID:     req.RecipientID,
		Content:         req.Content,
		Image:           req.Image,
		ParentMessageID: req.ParentMessageID,
		ClientTempID:    req.ClientTempID,
	})
	if err != nil {
		h.logFailure(c, "send message failed", err)
		RespondError(c, err)
		return
	}

	h.notifier.NotifyMessageSent(msg, req.ClientTempID)
	Respond(c, http.StatusCreated, "Message sent successfully", msg)
}

func (h *messageHandler) GetConversations(c *gin.Context) {
	conversations, err := h.conversations.List(c.Request.Context(), h.callerID(c))
	if err != nil {
		h.logFailure(c, "list conversations failed", err)
		RespondError(c, err)
		return
	}
	ok(c, "Conversations retrieved successfully", conversations)
}

func (h *messageHandler) GetUnreadCount(c *gin.Context) {
	count, err := h.messages.UnreadCount(c.Request.Context(), h.callerID(c))
	if err != nil {
		h.logFailure(c, "unread count failed", err)
		RespondError(c, err)
		return
	}
	ok(c, "Unread count retrieved successfully", gin.H{"count": count})
}

func (h *messageHandler) GetMessages(c *gin.Context) {
	page, err := queryInt(c, "page")
	if err != nil {
		RespondError(c, apperror.Validation("invalid page number"))
		return
	}
	limit, err := queryInt(c, "limit")
	if err != nil {
		RespondError(c, apperror.Validation("invalid limit"))
		return
	}

	result, err := h.messages.ConversationPage(c.Request.Context(), h.callerID(c), c.Param("partnerId"), page, limit)
	if err != nil {
		h.logFailure(c, "fetch messages failed", err)
		RespondError(c, err)
		return
	}
	ok(c, "Messages retrieved successfully", result)
}

func (h *messageHandler) MarkAsRead(c *gin.Context) {
	msg, changed, err := h.messages.MarkRead(c.Request.Context(), h.callerID(c), c.Param("id"))
	if err != nil {
		h.logFailure(c, "mark as read failed", err)
		RespondError(c, err)
		return
	}

	if changed {
		h.notifier.NotifyMessageRead(msg)
	}
	ok(c, "Message marked as read", msg)
}

func (h *messageHandler) MarkConversationRead(c *gin.Context) {
	reader := h.callerID(c)
	partner := c.Param("partnerId")

	ids, err := h.messages.MarkConversationRead(c.Request.Context(), reader, partner)
	if err != nil {
		h.logFailure(c, "mark conversation read failed", err)
		RespondError(c, err)
		return
	}

	h.notifier.NotifyConversationRead(reader, partner, ids)
	ok(c, "Conversation marked as read", gin.H{"messageIds": ids})
}

func (h *messageHandler) DeleteMessage(c *gin.Context) {
	msg, err := h.messages.Delete(c.Request.Context(), h.callerID(c), c.Param("id"))
	if err != nil {
		h.logFailure(c, "delete message failed", err)
		RespondError(c, err)
		return
	}

	h.notifier.NotifyMessageDeleted(msg)
	ok(c, "Message deleted successfully", gin.H{"messageId": msg.ID.Hex()})
}

func (h *messageHandler) GetPresence(c *gin.Context) {
	userID := c.Param("userId")
	ok(c, "Presence retrieved successfully", gin.H{
		"userId": userID,
		"online": h.presence.IsOnline(c.Request.Context(), userID),
	})
}

// logFailure logs server-side failures; client mistakes are not logged
func (h *messageHandler) logFailure(c *gin.Context, msg string, err error) {
	if apperror.KindOf(err) != apperror.KindInternal {
		return
	}
	h.logger.Error(msg,
		zap.String("user_id", h.callerID(c)),
		zap.String("path", c.FullPath()),
		zap.Error(err),
	)
}

// queryInt reads an optional positive integer query parameter; 0 means unset
func queryInt(c *gin.Context, name string) (int64, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 1 {
		return 0, strconv.ErrSyntax
	}
	return n, nil
}

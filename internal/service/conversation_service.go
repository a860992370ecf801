package service

import (
	"context"

	"github.com/harshhpatil/recipegramapp-sub000/internal/apperror"
	"github.com/harshhpatil/recipegramapp-sub000/internal/model"
	"github.com/harshhpatil/recipegramapp-sub000/internal/repo"

	"go.uber.org/zap"
)

type ConversationService interface {
	List(ctx context.Context, userID string) ([]model.ConversationSummary, error)
}

type conversationService struct {
	repo   repo.ConversationRepository
	logger *zap.Logger
}

func NewConversationService(repo repo.ConversationRepository, logger *zap.Logger) ConversationService {
	return &conversationService{
		repo:   repo,
		logger: logger,
	}
}

// List returns userID's inbox, most recently active partner first
func (s *conversationService) List(ctx context.Context, userID string) ([]model.ConversationSummary, error) {
	rows, err := s.repo.ListConversations(ctx, userID)
	if err != nil {
		s.logger.Error("failed to list conversations", zap.String("user_id", userID), zap.Error(err))
		return nil, apperror.Internal("failed to fetch conversations", err)
	}
	return rows, nil
}

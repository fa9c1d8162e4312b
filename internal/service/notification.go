package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	apperrors "github.com/prepwise/partner-server-go/internal/errors"
	"github.com/prepwise/partner-server-go/internal/model"
	"github.com/prepwise/partner-server-go/internal/repository"
	"github.com/prepwise/partner-server-go/internal/sse"
	"github.com/prepwise/partner-server-go/internal/util"
)

const EventTypeNotification = "notification"

// Publisher pushes a live event to a user's open connections.
type Publisher interface {
	Publish(ctx context.Context, userID string, event sse.Event) error
}

type NotificationService struct {
	repo      repository.NotificationRepository
	publisher Publisher
}

func NewNotificationService(repo repository.NotificationRepository, publisher Publisher) *NotificationService {
	return &NotificationService{repo: repo, publisher: publisher}
}

// Notify stores a notification and pushes it live. Push failures are logged;
// the stored row is still returned.
func (s *NotificationService) Notify(ctx context.Context, params model.CreateNotificationParams) (*model.Notification, error) {
	n, err := s.repo.Create(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("create notification: %w", err)
	}

	if s.publisher == nil {
		return n, nil
	}

	event, err := sse.NewEvent(EventTypeNotification, n)
	if err != nil {
		log.Error().Err(err).Str("notificationId", n.ID).Msg("failed to encode notification event")
		return n, nil
	}
	if err := s.publisher.Publish(ctx, params.UserID, event); err != nil {
		log.Warn().
			Err(err).
			Str("userId", params.UserID).
			Str("notificationId", n.ID).
			Msg("failed to publish notification")
	}

	return n, nil
}

func (s *NotificationService) List(ctx context.Context, userID string, limit, offset int) ([]model.Notification, error) {
	items, err := s.repo.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	if items == nil {
		items = []model.Notification{}
	}
	return items, nil
}

func (s *NotificationService) MarkRead(ctx context.Context, userID, id string) (*model.Notification, error) {
	if !util.IsValidUUID(id) {
		return nil, apperrors.NotFound("Notification")
	}
	n, err := s.repo.MarkRead(ctx, id, userID)
	if err != nil {
		return nil, fmt.Errorf("mark notification read: %w", err)
	}
	if n == nil {
		return nil, apperrors.NotFound("Notification")
	}
	return n, nil
}

package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/solcred/prestago-backend/internal/domain"
)

// NotificationService exposes the stored notification feed.
type NotificationService struct {
	repo domain.NotificationRepository
}

// NewNotificationService creates a new NotificationService
func NewNotificationService(repo domain.NotificationRepository) *NotificationService {
	return &NotificationService{repo: repo}
}

// NotificationPage is one page of the notification feed.
type NotificationPage struct {
	Items []*domain.Notification `json:"items"`
	Total int64                  `json:"total"`
	Page  int                    `json:"page"`
	Pages int64                  `json:"pages"`
}

// ListNotifications returns a page of notifications newest first.
func (s *NotificationService) ListNotifications(ctx context.Context, params domain.ListNotificationsParams) (*NotificationPage, error) {
	if params.Page < 1 {
		params.Page = 1
	}
	if params.Limit < 1 {
		params.Limit = 20
	}

	items, total, err := s.repo.List(ctx, params)
	if err != nil {
		return nil, err
	}

	pages := total / int64(params.Limit)
	if total%int64(params.Limit) != 0 {
		pages++
	}

	return &NotificationPage{
		Items: items,
		Total: total,
		Page:  params.Page,
		Pages: pages,
	}, nil
}

// MarkRead marks a single notification as read.
func (s *NotificationService) MarkRead(ctx context.Context, id uuid.UUID) (*domain.Notification, error) {
	return s.repo.MarkRead(ctx, id)
}

// MarkAllRead marks every unread notification as read.
func (s *NotificationService) MarkAllRead(ctx context.Context) error {
	return s.repo.MarkAllRead(ctx)
}

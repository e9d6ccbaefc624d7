package service

import (
	"context"
	"fmt"
	"strings"

	"clinicdesk/internal/domain"
)

func (s *Service) EnqueueNotification(ctx context.Context, n domain.Notification) (domain.Notification, error) {
	n.Number = strings.TrimSpace(n.Number)
	if err := n.Validate(); err != nil {
		return domain.Notification{}, err
	}
	now := s.clock()
	n.ID = s.newID()
	n.Status = domain.NotificationPending
	n.Attempts = 0
	n.NextAttemptAt = now
	n.LastError = ""
	n.CreatedAt = now
	n.SentAt = nil

	queued, err := s.store.EnqueueNotification(ctx, n)
	if err != nil {
		return domain.Notification{}, fmt.Errorf("enqueue notification: %w", err)
	}
	return queued, nil
}

func (s *Service) ListNotifications(ctx context.Context, filter domain.NotificationFilter) ([]domain.Notification, error) {
	switch filter.Status {
	case "", domain.NotificationPending, domain.NotificationSent, domain.NotificationFailed:
	default:
		return nil, domain.Invalid("status", "unknown status %q", filter.Status)
	}
	return s.store.ListNotifications(ctx, filter)
}

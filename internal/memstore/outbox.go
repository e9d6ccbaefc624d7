package memstore

import (
	"context"
	"fmt"
	"sort"
	"time"

	"clinicdesk/internal/domain"
)

func (s *Store) EnqueueNotification(_ context.Context, n domain.Notification) (domain.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.outbox[n.ID]; ok {
		return domain.Notification{}, fmt.Errorf("notification %s: %w", n.ID, domain.ErrConflict)
	}
	s.outbox[n.ID] = n
	return n, nil
}

// ClaimDueNotifications leases due pending rows by pushing their next attempt
// past the lease so a concurrent claimer skips them.
func (s *Store) ClaimDueNotifications(_ context.Context, now time.Time, lease time.Duration, limit int) ([]domain.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	due := make([]domain.Notification, 0)
	for _, n := range s.outbox {
		if n.Status == domain.NotificationPending && !n.NextAttemptAt.After(now) {
			due = append(due, n)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].NextAttemptAt.Equal(due[j].NextAttemptAt) {
			return due[i].CreatedAt.Before(due[j].CreatedAt)
		}
		return due[i].NextAttemptAt.Before(due[j].NextAttemptAt)
	})
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	for i := range due {
		n := s.outbox[due[i].ID]
		n.NextAttemptAt = now.Add(lease)
		s.outbox[n.ID] = n
	}
	return due, nil
}

func (s *Store) MarkNotificationSent(_ context.Context, id string, attempts int, at time.Time) error {
	return s.updateNotification(id, func(n *domain.Notification) {
		n.Status = domain.NotificationSent
		n.Attempts = attempts
		n.LastError = ""
		sentAt := at
		n.SentAt = &sentAt
	})
}

func (s *Store) MarkNotificationRetry(_ context.Context, id string, attempts int, next time.Time, lastErr string) error {
	return s.updateNotification(id, func(n *domain.Notification) {
		n.Attempts = attempts
		n.NextAttemptAt = next
		n.LastError = lastErr
	})
}

func (s *Store) MarkNotificationFailed(_ context.Context, id string, attempts int, lastErr string) error {
	return s.updateNotification(id, func(n *domain.Notification) {
		n.Status = domain.NotificationFailed
		n.Attempts = attempts
		n.LastError = lastErr
	})
}

func (s *Store) ListNotifications(_ context.Context, filter domain.NotificationFilter) ([]domain.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Notification, 0, len(s.outbox))
	for _, n := range s.outbox {
		if filter.Status == "" || n.Status == filter.Status {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, filter.Limit, 0), nil
}

func (s *Store) updateNotification(id string, fn func(*domain.Notification)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.outbox[id]
	if !ok {
		return fmt.Errorf("notification %s: %w", id, domain.ErrNotFound)
	}
	fn(&n)
	s.outbox[id] = n
	return nil
}

package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"clinicdesk/internal/domain"
)

func (s *Store) CreateAdmin(_ context.Context, a domain.Admin) (domain.Admin, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(a.Username)
	if _, ok := s.admins[key]; ok {
		return domain.Admin{}, fmt.Errorf("admin %s: %w", a.Username, domain.ErrConflict)
	}
	s.admins[key] = a
	return a, nil
}

func (s *Store) GetAdminByUsername(_ context.Context, username string) (domain.Admin, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.admins[strings.ToLower(strings.TrimSpace(username))]
	if !ok {
		return domain.Admin{}, fmt.Errorf("admin %s: %w", username, domain.ErrNotFound)
	}
	return a, nil
}

func (s *Store) ListAdmins(_ context.Context) ([]domain.Admin, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Admin, 0, len(s.admins))
	for _, a := range s.admins {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (s *Store) LogActivity(_ context.Context, entry domain.ActivityEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry.ID = int64(len(s.activity) + 1)
	if entry.Details == "" {
		entry.Details = "-"
	}
	s.activity = append(s.activity, entry)
	return nil
}

func (s *Store) ListActivity(_ context.Context, filter domain.ActivityFilter) ([]domain.ActivityEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	search := strings.ToLower(strings.TrimSpace(filter.Search))
	out := make([]domain.ActivityEntry, 0)
	for i := len(s.activity) - 1; i >= 0; i-- {
		e := s.activity[i]
		if search != "" &&
			!strings.Contains(strings.ToLower(e.Title), search) &&
			!strings.Contains(strings.ToLower(e.Details), search) &&
			!strings.Contains(strings.ToLower(e.AdminUsername), search) {
			continue
		}
		out = append(out, e)
	}
	return page(out, domain.NormalizeLimit(filter.Limit), filter.Offset), nil
}

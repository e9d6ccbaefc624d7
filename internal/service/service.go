package service

import (
	"context"
	"strings"
	"time"

	"clinicdesk/internal/auth"
	"clinicdesk/internal/changefeed"
	"clinicdesk/internal/domain"
	"clinicdesk/internal/metrics"

	"go.uber.org/zap"
)

type Service struct {
	store    Store
	feed     changefeed.Feed
	logger   *zap.Logger
	metrics  *metrics.Metrics
	tokens   *auth.Tokens
	dictator Dictator

	now   func() time.Time
	newID func() string
}

type Option func(*Service)

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithTokens(t *auth.Tokens) Option {
	return func(s *Service) { s.tokens = t }
}

func WithDictator(d Dictator) Option {
	return func(s *Service) { s.dictator = d }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithIDs(newID func() string) Option {
	return func(s *Service) { s.newID = newID }
}

func New(store Store, feed changefeed.Feed, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{
		store:  store,
		feed:   feed,
		logger: logger,
		now:    time.Now,
		newID:  domain.NewID,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.feed == nil {
		s.feed = changefeed.NewLocal()
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.tokens == nil {
		s.tokens = auth.NewTokens(s.newID(), 24*time.Hour)
	}
	return s
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Store exposes the backing store to read-side projections.
func (s *Service) Store() Store {
	return s.store
}

func (s *Service) Feed() changefeed.Feed {
	return s.feed
}

// Tokens is the signer used by Login; request authentication must share it.
func (s *Service) Tokens() *auth.Tokens {
	return s.tokens
}

func (s *Service) clock() time.Time {
	return s.now().UTC()
}

// publish announces committed writes. Failures are logged and never undo the write.
func (s *Service) publish(ctx context.Context, kind changefeed.Kind, paths ...string) {
	at := s.clock()
	changes := make([]changefeed.Change, 0, len(paths))
	for _, p := range paths {
		changes = append(changes, changefeed.Change{Path: p, Kind: kind, At: at})
	}
	if err := s.feed.Publish(ctx, changes...); err != nil {
		s.logger.Warn("publish change failed", zap.Strings("paths", paths), zap.Error(err))
	}
}

// audit appends to the activity log on a best-effort basis.
func (s *Service) audit(ctx context.Context, action, title, details string) {
	entry := domain.ActivityEntry{
		CreatedAt:     s.clock(),
		AdminUsername: auth.Username(ctx),
		Action:        action,
		Title:         title,
		Details:       details,
	}
	if err := s.store.LogActivity(ctx, entry); err != nil {
		s.logger.Warn("log activity failed", zap.String("action", action), zap.Error(err))
	}
}

func (s *Service) ListActivity(ctx context.Context, search string, limit, offset int) ([]domain.ActivityEntry, error) {
	return s.store.ListActivity(ctx, domain.ActivityFilter{
		Search: strings.TrimSpace(search),
		Limit:  limit,
		Offset: offset,
	})
}

func productPath(key domain.ProductKey) string {
	return "vendors/" + key.VendorID + "/products/" + key.ProductID
}

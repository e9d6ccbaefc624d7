package notify

import (
	"context"
	"errors"
	"time"

	"clinicdesk/internal/domain"
	"clinicdesk/internal/metrics"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// Outbox is the queue side of the store used by the worker.
type Outbox interface {
	ClaimDueNotifications(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]domain.Notification, error)
	MarkNotificationSent(ctx context.Context, id string, attempts int, at time.Time) error
	MarkNotificationRetry(ctx context.Context, id string, attempts int, next time.Time, lastErr string) error
	MarkNotificationFailed(ctx context.Context, id string, attempts int, lastErr string) error
}

type Config struct {
	PollInterval time.Duration
	MaxAttempts  int
	BatchSize    int
	Lease        time.Duration
	// Retry delays grow from InitialBackoff by a factor of 2 up to MaxBackoff.
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Jitter         float64
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = 5 * time.Second
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 8
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 20
	}
	if c.Lease <= 0 {
		c.Lease = time.Minute
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = 30 * time.Second
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = time.Hour
	}
	if c.Jitter < 0 {
		c.Jitter = 0
	}
	return c
}

type Worker struct {
	outbox  Outbox
	sender  Sender
	cfg     Config
	logger  *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewWorker(outbox Outbox, sender Sender, cfg Config, logger *zap.Logger, m *metrics.Metrics) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		outbox:  outbox,
		sender:  sender,
		cfg:     cfg.withDefaults(),
		logger:  logger,
		metrics: m,
		now:     time.Now,
	}
}

// Run polls the outbox until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	w.logger.Info("notification worker started", zap.Duration("poll_interval", w.cfg.PollInterval))
	for {
		if _, err := w.RunOnce(ctx); err != nil && ctx.Err() == nil {
			w.logger.Warn("notification poll failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			w.logger.Info("notification worker stopped")
			return
		case <-ticker.C:
		}
	}
}

// RunOnce delivers one batch of due notifications and reports how many it handled.
func (w *Worker) RunOnce(ctx context.Context) (int, error) {
	batch, err := w.outbox.ClaimDueNotifications(ctx, w.now().UTC(), w.cfg.Lease, w.cfg.BatchSize)
	if err != nil {
		return 0, err
	}
	for _, n := range batch {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		w.deliver(ctx, n)
	}
	return len(batch), nil
}

func (w *Worker) deliver(ctx context.Context, n domain.Notification) {
	attempts := n.Attempts + 1
	log := w.logger.With(zap.String("notification_id", n.ID), zap.Int("attempt", attempts))

	sendErr := w.sender.Send(ctx, n)
	now := w.now().UTC()
	if sendErr == nil {
		if err := w.outbox.MarkNotificationSent(ctx, n.ID, attempts, now); err != nil {
			log.Error("mark notification sent failed", zap.Error(err))
			return
		}
		w.metrics.Notification("sent")
		log.Info("notification sent")
		return
	}

	var permanent *backoff.PermanentError
	if errors.As(sendErr, &permanent) || attempts >= w.cfg.MaxAttempts {
		if err := w.outbox.MarkNotificationFailed(ctx, n.ID, attempts, sendErr.Error()); err != nil {
			log.Error("mark notification failed failed", zap.Error(err))
			return
		}
		w.metrics.Notification("failed")
		log.Warn("notification gave up", zap.Error(sendErr))
		return
	}

	next := now.Add(w.delay(attempts))
	if err := w.outbox.MarkNotificationRetry(ctx, n.ID, attempts, next, sendErr.Error()); err != nil {
		log.Error("schedule notification retry failed", zap.Error(err))
		return
	}
	w.metrics.Notification("retry")
	log.Info("notification retry scheduled", zap.Time("next_attempt_at", next), zap.Error(sendErr))
}

// delay is the wait before attempt number attempts+1.
func (w *Worker) delay(attempts int) time.Duration {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = w.cfg.InitialBackoff
	b.MaxInterval = w.cfg.MaxBackoff
	b.Multiplier = 2
	b.RandomizationFactor = w.cfg.Jitter
	b.MaxElapsedTime = 0
	b.Reset()

	d := b.NextBackOff()
	for i := 1; i < attempts; i++ {
		d = b.NextBackOff()
	}
	return d
}

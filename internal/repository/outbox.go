package repository

import (
	"context"
	"fmt"
	"time"

	"clinicdesk/internal/domain"

	"github.com/jackc/pgx/v5"
)

const notificationColumns = `
	id,
	kind,
	number,
	message,
	image_url,
	caption,
	status,
	attempts,
	next_attempt_at,
	last_error,
	created_at,
	sent_at
`

func (r *Repository) EnqueueNotification(ctx context.Context, n domain.Notification) (domain.Notification, error) {
	if _, err := r.pool.Exec(ctx, `
		INSERT INTO notifications (`+notificationColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`,
		n.ID,
		string(n.Kind),
		n.Number,
		n.Message,
		n.ImageURL,
		n.Caption,
		string(n.Status),
		n.Attempts,
		n.NextAttemptAt,
		n.LastError,
		n.CreatedAt,
		n.SentAt,
	); err != nil {
		return domain.Notification{}, wrapWrite(err, "enqueue notification "+n.ID)
	}
	return n, nil
}

// ClaimDueNotifications leases due rows with SKIP LOCKED so that several
// workers never pick the same notification.
func (r *Repository) ClaimDueNotifications(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]domain.Notification, error) {
	rows, err := r.pool.Query(ctx, `
		WITH due AS (
			SELECT id
			FROM notifications
			WHERE status = 'pending' AND next_attempt_at <= $1
			ORDER BY next_attempt_at ASC, created_at ASC
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		)
		UPDATE notifications n
		SET next_attempt_at = $2
		FROM due
		WHERE n.id = due.id
		RETURNING `+prefixed("n", notificationColumns),
		now, now.Add(lease), domain.NormalizeLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("claim notifications: %w", err)
	}
	defer rows.Close()
	return collectNotifications(rows)
}

func (r *Repository) MarkNotificationSent(ctx context.Context, id string, attempts int, at time.Time) error {
	return r.execNotification(ctx, id, "mark notification sent", `
		UPDATE notifications
		SET status = 'sent', attempts = $2, sent_at = $3, last_error = ''
		WHERE id = $1
	`, id, attempts, at)
}

func (r *Repository) MarkNotificationRetry(ctx context.Context, id string, attempts int, next time.Time, lastErr string) error {
	return r.execNotification(ctx, id, "reschedule notification", `
		UPDATE notifications
		SET attempts = $2, next_attempt_at = $3, last_error = $4
		WHERE id = $1
	`, id, attempts, next, lastErr)
}

func (r *Repository) MarkNotificationFailed(ctx context.Context, id string, attempts int, lastErr string) error {
	return r.execNotification(ctx, id, "fail notification", `
		UPDATE notifications
		SET status = 'failed', attempts = $2, last_error = $3
		WHERE id = $1
	`, id, attempts, lastErr)
}

func (r *Repository) ListNotifications(ctx context.Context, filter domain.NotificationFilter) ([]domain.Notification, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+notificationColumns+`
		FROM notifications
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC
		LIMIT $2
	`, string(filter.Status), domain.NormalizeLimit(filter.Limit))
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()
	return collectNotifications(rows)
}

func (r *Repository) execNotification(ctx context.Context, id, what, query string, args ...any) error {
	cmd, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s %s: %w", what, id, err)
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("notification %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

func collectNotifications(rows pgx.Rows) ([]domain.Notification, error) {
	items := make([]domain.Notification, 0)
	for rows.Next() {
		var (
			n      domain.Notification
			kind   string
			status string
		)
		if err := rows.Scan(
			&n.ID,
			&kind,
			&n.Number,
			&n.Message,
			&n.ImageURL,
			&n.Caption,
			&status,
			&n.Attempts,
			&n.NextAttemptAt,
			&n.LastError,
			&n.CreatedAt,
			&n.SentAt,
		); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		n.Kind = domain.NotificationKind(kind)
		n.Status = domain.NotificationStatus(status)
		items = append(items, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notifications: %w", err)
	}
	return items, nil
}

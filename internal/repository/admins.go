package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"clinicdesk/internal/domain"

	"github.com/jackc/pgx/v5"
)

func (r *Repository) CreateAdmin(ctx context.Context, a domain.Admin) (domain.Admin, error) {
	if _, err := r.pool.Exec(ctx, `
		INSERT INTO admins (id, username, password_hash, role, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, a.ID, a.Username, a.PasswordHash, a.Role, a.CreatedAt); err != nil {
		return domain.Admin{}, wrapWrite(err, "create admin "+a.Username)
	}
	return a, nil
}

func (r *Repository) GetAdminByUsername(ctx context.Context, username string) (domain.Admin, error) {
	var a domain.Admin
	err := r.pool.QueryRow(ctx, `
		SELECT id, username, password_hash, role, created_at
		FROM admins
		WHERE LOWER(username) = LOWER($1)
	`, strings.TrimSpace(username)).Scan(&a.ID, &a.Username, &a.PasswordHash, &a.Role, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Admin{}, fmt.Errorf("admin %s: %w", username, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Admin{}, fmt.Errorf("get admin %s: %w", username, err)
	}
	return a, nil
}

func (r *Repository) ListAdmins(ctx context.Context) ([]domain.Admin, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, username, role, created_at
		FROM admins
		ORDER BY username ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list admins: %w", err)
	}
	defer rows.Close()
	items := make([]domain.Admin, 0)
	for rows.Next() {
		var row domain.Admin
		if err := rows.Scan(&row.ID, &row.Username, &row.Role, &row.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan admin: %w", err)
		}
		items = append(items, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate admins: %w", err)
	}
	return items, nil
}

func (r *Repository) LogActivity(ctx context.Context, entry domain.ActivityEntry) error {
	action := strings.TrimSpace(entry.Action)
	title := strings.TrimSpace(entry.Title)
	if action == "" || title == "" {
		return fmt.Errorf("action and title are required")
	}
	details := entry.Details
	if details == "" {
		details = "-"
	}
	var admin *string
	if entry.AdminUsername != "" {
		admin = &entry.AdminUsername
	}
	if _, err := r.pool.Exec(ctx, `
		INSERT INTO actions (
			created_at,
			admin_username,
			action_type,
			title,
			details
		) VALUES ($1, $2, $3, $4, $5)
	`, entry.CreatedAt, admin, action, title, details); err != nil {
		return fmt.Errorf("log activity: %w", err)
	}
	return nil
}

func (r *Repository) ListActivity(ctx context.Context, filter domain.ActivityFilter) ([]domain.ActivityEntry, error) {
	limit := domain.NormalizeLimit(filter.Limit)
	offset := domain.NormalizeOffset(filter.Offset)
	search := strings.TrimSpace(filter.Search)

	rows, err := r.pool.Query(ctx, `
		SELECT
			id,
			created_at,
			admin_username,
			action_type,
			title,
			details
		FROM actions
		WHERE ($1 = '' OR title ILIKE '%' || $1 || '%' OR details ILIKE '%' || $1 || '%' OR COALESCE(admin_username, '') ILIKE '%' || $1 || '%')
		ORDER BY id DESC
		LIMIT $2 OFFSET $3
	`, search, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	defer rows.Close()

	items := make([]domain.ActivityEntry, 0, limit)
	for rows.Next() {
		var (
			row   domain.ActivityEntry
			admin sql.NullString
		)
		if err := rows.Scan(
			&row.ID,
			&row.CreatedAt,
			&admin,
			&row.Action,
			&row.Title,
			&row.Details,
		); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		if admin.Valid {
			row.AdminUsername = admin.String
		}
		items = append(items, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate activity: %w", err)
	}
	return items, nil
}

package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"clinicdesk/internal/domain"

	"github.com/jackc/pgx/v5"
)

const appointmentColumns = `
	id,
	owner_uid,
	name,
	phone,
	treatment,
	sub_category,
	doctor,
	appointment_date,
	appointment_time,
	price,
	consultant_amount,
	payment_method,
	status,
	deleted_from,
	prescription,
	created_at,
	updated_at
`

func (r *Repository) CreateAppointment(ctx context.Context, a domain.Appointment) (domain.Appointment, error) {
	prescription, err := encodePrescription(a.Prescription)
	if err != nil {
		return domain.Appointment{}, err
	}
	if _, err := r.pool.Exec(ctx, `
		INSERT INTO appointments (`+appointmentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`,
		a.ID,
		a.OwnerUID,
		a.Name,
		a.Phone,
		a.Treatment,
		a.SubCategory,
		a.Doctor,
		a.AppointmentDate,
		a.AppointmentTime,
		a.Price,
		a.ConsultantAmount,
		string(a.PaymentMethod),
		string(a.Status),
		string(a.DeletedFrom),
		prescription,
		a.CreatedAt,
		a.UpdatedAt,
	); err != nil {
		return domain.Appointment{}, wrapWrite(err, "create appointment "+a.ID)
	}
	return a, nil
}

func (r *Repository) GetAppointment(ctx context.Context, id string) (domain.Appointment, error) {
	a, err := scanAppointmentRow(r.pool.QueryRow(ctx, `SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Appointment{}, fmt.Errorf("appointment %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Appointment{}, fmt.Errorf("get appointment %s: %w", id, err)
	}
	return a, nil
}

func (r *Repository) ListAppointments(ctx context.Context, filter domain.AppointmentFilter) ([]domain.Appointment, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+appointmentColumns+`
		FROM appointments
		WHERE ($1 = '' OR owner_uid = $1)
		AND (($2 = '' AND status <> 'deleted') OR status = $2)
		AND ($3 = '' OR LOWER(doctor) = LOWER($3))
		AND ($4 = '' OR appointment_date >= $4)
		AND ($5 = '' OR appointment_date <= $5)
		ORDER BY appointment_date ASC, appointment_time ASC, id ASC
	`, filter.OwnerUID, string(filter.Status), filter.Doctor, filter.From, filter.To)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	defer rows.Close()

	items := make([]domain.Appointment, 0)
	for rows.Next() {
		a, err := scanAppointmentRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan appointment: %w", err)
		}
		items = append(items, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate appointments: %w", err)
	}
	return items, nil
}

func (r *Repository) UpdateAppointment(ctx context.Context, id string, mutate func(*domain.Appointment) error) (domain.Appointment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return domain.Appointment{}, fmt.Errorf("begin appointment tx: %w", err)
	}
	defer tx.Rollback(ctx)

	a, err := scanAppointmentRow(tx.QueryRow(ctx, `SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
		FOR UPDATE
	`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Appointment{}, fmt.Errorf("appointment %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Appointment{}, fmt.Errorf("load appointment %s: %w", id, err)
	}

	if err := mutate(&a); err != nil {
		return domain.Appointment{}, err
	}
	prescription, err := encodePrescription(a.Prescription)
	if err != nil {
		return domain.Appointment{}, err
	}

	if _, err := tx.Exec(ctx, `
		UPDATE appointments
		SET
			name = $2,
			phone = $3,
			treatment = $4,
			sub_category = $5,
			doctor = $6,
			appointment_date = $7,
			appointment_time = $8,
			price = $9,
			consultant_amount = $10,
			payment_method = $11,
			status = $12,
			deleted_from = $13,
			prescription = $14,
			updated_at = $15
		WHERE id = $1
	`,
		a.ID,
		a.Name,
		a.Phone,
		a.Treatment,
		a.SubCategory,
		a.Doctor,
		a.AppointmentDate,
		a.AppointmentTime,
		a.Price,
		a.ConsultantAmount,
		string(a.PaymentMethod),
		string(a.Status),
		string(a.DeletedFrom),
		prescription,
		a.UpdatedAt,
	); err != nil {
		return domain.Appointment{}, fmt.Errorf("update appointment %s: %w", id, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.Appointment{}, fmt.Errorf("commit appointment tx: %w", err)
	}
	return a, nil
}

func (r *Repository) CreateDoctor(ctx context.Context, d domain.Doctor) (domain.Doctor, error) {
	if _, err := r.pool.Exec(ctx, `
		INSERT INTO doctors (id, name, phone, specialization, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, d.ID, d.Name, d.Phone, d.Specialization, d.CreatedAt); err != nil {
		return domain.Doctor{}, wrapWrite(err, "create doctor "+d.ID)
	}
	return d, nil
}

func (r *Repository) GetDoctor(ctx context.Context, id string) (domain.Doctor, error) {
	var d domain.Doctor
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, phone, specialization, created_at
		FROM doctors
		WHERE id = $1
	`, id).Scan(&d.ID, &d.Name, &d.Phone, &d.Specialization, &d.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Doctor{}, fmt.Errorf("doctor %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Doctor{}, fmt.Errorf("get doctor %s: %w", id, err)
	}
	return d, nil
}

func (r *Repository) ListDoctors(ctx context.Context) ([]domain.Doctor, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, phone, specialization, created_at
		FROM doctors
		ORDER BY LOWER(name) ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list doctors: %w", err)
	}
	defer rows.Close()

	items := make([]domain.Doctor, 0)
	for rows.Next() {
		var d domain.Doctor
		if err := rows.Scan(&d.ID, &d.Name, &d.Phone, &d.Specialization, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan doctor: %w", err)
		}
		items = append(items, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate doctors: %w", err)
	}
	return items, nil
}

func scanAppointmentRow(row pgx.Row) (domain.Appointment, error) {
	var (
		a            domain.Appointment
		method       string
		status       string
		deletedFrom  string
		prescription []byte
	)
	if err := row.Scan(
		&a.ID,
		&a.OwnerUID,
		&a.Name,
		&a.Phone,
		&a.Treatment,
		&a.SubCategory,
		&a.Doctor,
		&a.AppointmentDate,
		&a.AppointmentTime,
		&a.Price,
		&a.ConsultantAmount,
		&method,
		&status,
		&deletedFrom,
		&prescription,
		&a.CreatedAt,
		&a.UpdatedAt,
	); err != nil {
		return domain.Appointment{}, err
	}
	a.PaymentMethod = domain.PaymentMethod(method)
	a.Status = domain.Status(status)
	a.DeletedFrom = domain.Status(deletedFrom)
	if len(prescription) > 0 {
		var p domain.Prescription
		if err := json.Unmarshal(prescription, &p); err != nil {
			return domain.Appointment{}, fmt.Errorf("decode prescription: %w", err)
		}
		a.Prescription = &p
	}
	return a, nil
}

func encodePrescription(p *domain.Prescription) ([]byte, error) {
	if p == nil {
		return nil, nil
	}
	body, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode prescription: %w", err)
	}
	return body, nil
}

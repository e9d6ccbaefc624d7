package service

import (
	"context"
	"fmt"
	"strings"

	"clinicdesk/internal/changefeed"
	"clinicdesk/internal/domain"

	"go.uber.org/zap"
)

type DoctorInput struct {
	Name           string `json:"name"`
	Phone          string `json:"phone"`
	Specialization string `json:"specialization"`
}

// Book creates a pending appointment from a public booking form.
func (s *Service) Book(ctx context.Context, req domain.BookingRequest) (domain.Appointment, error) {
	if err := req.Validate(); err != nil {
		return domain.Appointment{}, err
	}
	appt, err := s.store.CreateAppointment(ctx, domain.NewAppointment(s.newID(), req, s.clock()))
	if err != nil {
		return domain.Appointment{}, fmt.Errorf("book appointment: %w", err)
	}
	s.publish(ctx, changefeed.KindCreated, "appointments/"+appt.ID)
	s.logger.Info("appointment booked",
		zap.String("appointment_id", appt.ID),
		zap.String("date", appt.AppointmentDate),
		zap.String("time", appt.AppointmentTime),
	)
	return appt, nil
}

func (s *Service) GetAppointment(ctx context.Context, id string) (domain.Appointment, error) {
	return s.store.GetAppointment(ctx, id)
}

func (s *Service) ListAppointments(ctx context.Context, filter domain.AppointmentFilter) ([]domain.Appointment, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, domain.Invalid("status", "unknown status %q", filter.Status)
	}
	return s.store.ListAppointments(ctx, filter)
}

func (s *Service) TransitionAppointment(ctx context.Context, id string, req domain.TransitionRequest) (domain.Appointment, error) {
	if err := req.Validate(); err != nil {
		return domain.Appointment{}, err
	}
	at := s.clock()
	appt, err := s.store.UpdateAppointment(ctx, id, func(a *domain.Appointment) error {
		return a.Transition(req, at)
	})
	if err != nil {
		return domain.Appointment{}, fmt.Errorf("transition appointment: %w", err)
	}

	s.metrics.AppointmentTransition(string(appt.Status))
	kind := changefeed.KindUpdated
	if appt.Status == domain.StatusDeleted {
		kind = changefeed.KindDeleted
	}
	s.publish(ctx, kind, "appointments/"+appt.ID)
	s.audit(ctx, "appointment", "Appointment "+string(appt.Status), fmt.Sprintf("%s %s %s", appt.ID, appt.Name, appt.AppointmentDate))

	if appt.Status == domain.StatusApproved {
		s.notifyApproval(ctx, appt)
	}
	return appt, nil
}

// notifyApproval never fails the approval that triggered it.
func (s *Service) notifyApproval(ctx context.Context, appt domain.Appointment) {
	if _, err := s.EnqueueNotification(ctx, domain.ApprovalMessage(appt)); err != nil {
		s.logger.Warn("enqueue approval notification failed",
			zap.String("appointment_id", appt.ID),
			zap.Error(err),
		)
	}
}

func (s *Service) RestoreAppointment(ctx context.Context, id string) (domain.Appointment, error) {
	at := s.clock()
	appt, err := s.store.UpdateAppointment(ctx, id, func(a *domain.Appointment) error {
		return a.Restore(at)
	})
	if err != nil {
		return domain.Appointment{}, fmt.Errorf("restore appointment: %w", err)
	}
	s.metrics.AppointmentTransition(string(appt.Status))
	s.publish(ctx, changefeed.KindUpdated, "appointments/"+appt.ID)
	s.audit(ctx, "appointment", "Appointment restored", fmt.Sprintf("%s -> %s", appt.ID, appt.Status))
	return appt, nil
}

func (s *Service) SetPrescription(ctx context.Context, id string, p domain.Prescription) (domain.Appointment, error) {
	if err := p.Validate(); err != nil {
		return domain.Appointment{}, err
	}
	at := s.clock()
	appt, err := s.store.UpdateAppointment(ctx, id, func(a *domain.Appointment) error {
		return a.SetPrescription(p, at)
	})
	if err != nil {
		return domain.Appointment{}, fmt.Errorf("set prescription: %w", err)
	}
	s.publish(ctx, changefeed.KindUpdated, "appointments/"+appt.ID)
	s.audit(ctx, "prescription", "Prescription saved", appt.ID)
	return appt, nil
}

func (s *Service) CreateDoctor(ctx context.Context, input DoctorInput) (domain.Doctor, error) {
	d := domain.Doctor{
		ID:             s.newID(),
		Name:           strings.TrimSpace(input.Name),
		Phone:          strings.TrimSpace(input.Phone),
		Specialization: strings.TrimSpace(input.Specialization),
		CreatedAt:      s.clock(),
	}
	if d.Name == "" {
		return domain.Doctor{}, domain.Invalid("name", "is required")
	}
	if d.Phone != "" && !domain.ValidPhone(d.Phone) {
		return domain.Doctor{}, domain.Invalid("phone", "must be exactly 10 digits")
	}
	created, err := s.store.CreateDoctor(ctx, d)
	if err != nil {
		return domain.Doctor{}, fmt.Errorf("create doctor: %w", err)
	}
	s.publish(ctx, changefeed.KindCreated, "doctors/"+created.ID)
	s.audit(ctx, "doctor", "Added doctor", created.Name)
	return created, nil
}

func (s *Service) ListDoctors(ctx context.Context) ([]domain.Doctor, error) {
	return s.store.ListDoctors(ctx)
}

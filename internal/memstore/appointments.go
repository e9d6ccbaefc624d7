package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"clinicdesk/internal/domain"
)

func (s *Store) CreateAppointment(_ context.Context, a domain.Appointment) (domain.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.appointments[a.ID]; ok {
		return domain.Appointment{}, fmt.Errorf("appointment %s: %w", a.ID, domain.ErrConflict)
	}
	s.appointments[a.ID] = a
	return a, nil
}

func (s *Store) GetAppointment(_ context.Context, id string) (domain.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.appointments[id]
	if !ok {
		return domain.Appointment{}, fmt.Errorf("appointment %s: %w", id, domain.ErrNotFound)
	}
	return a, nil
}

func (s *Store) ListAppointments(_ context.Context, filter domain.AppointmentFilter) ([]domain.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Appointment, 0, len(s.appointments))
	for _, a := range s.appointments {
		if filter.Matches(a) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AppointmentDate != out[j].AppointmentDate {
			return out[i].AppointmentDate < out[j].AppointmentDate
		}
		if out[i].AppointmentTime != out[j].AppointmentTime {
			return out[i].AppointmentTime < out[j].AppointmentTime
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) UpdateAppointment(_ context.Context, id string, mutate func(*domain.Appointment) error) (domain.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.appointments[id]
	if !ok {
		return domain.Appointment{}, fmt.Errorf("appointment %s: %w", id, domain.ErrNotFound)
	}
	next := current
	if current.Prescription != nil {
		p := *current.Prescription
		next.Prescription = &p
	}
	if err := mutate(&next); err != nil {
		return domain.Appointment{}, err
	}
	s.appointments[id] = next
	return next, nil
}

func (s *Store) CreateDoctor(_ context.Context, d domain.Doctor) (domain.Doctor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.doctors[d.ID]; ok {
		return domain.Doctor{}, fmt.Errorf("doctor %s: %w", d.ID, domain.ErrConflict)
	}
	s.doctors[d.ID] = d
	return d, nil
}

func (s *Store) GetDoctor(_ context.Context, id string) (domain.Doctor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.doctors[id]
	if !ok {
		return domain.Doctor{}, fmt.Errorf("doctor %s: %w", id, domain.ErrNotFound)
	}
	return d, nil
}

func (s *Store) ListDoctors(_ context.Context) ([]domain.Doctor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Doctor, 0, len(s.doctors))
	for _, d := range s.doctors {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out, nil
}

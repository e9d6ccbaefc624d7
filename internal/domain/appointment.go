package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

type Status string

const (
	StatusPending     Status = "pending"
	StatusApproved    Status = "approved"
	StatusAttended    Status = "attended"
	StatusNotAttended Status = "not_attended"
	StatusCancelled   Status = "cancelled"
	StatusDeleted     Status = "deleted"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusAttended, StatusNotAttended, StatusCancelled, StatusDeleted:
		return true
	}
	return false
}

var transitions = map[Status]map[Status]bool{
	StatusPending: {
		StatusApproved:  true,
		StatusCancelled: true,
		StatusDeleted:   true,
	},
	StatusApproved: {
		StatusAttended:    true,
		StatusNotAttended: true,
		StatusCancelled:   true,
		StatusDeleted:     true,
	},
	StatusAttended:    {StatusDeleted: true},
	StatusNotAttended: {StatusDeleted: true},
	StatusCancelled:   {StatusDeleted: true},
}

// CanTransition reports whether from -> to is an allowed lifecycle move.
func CanTransition(from, to Status) bool {
	return transitions[from][to]
}

type PaymentMethod string

const (
	PaymentCash   PaymentMethod = "Cash"
	PaymentOnline PaymentMethod = "Online"
)

func (m PaymentMethod) Valid() bool {
	return m == PaymentCash || m == PaymentOnline
}

type Medicine struct {
	Name            string `json:"name"`
	ConsumptionDays string `json:"consumption_days"`
	Time            string `json:"time"`
	Instruction     string `json:"instruction"`
}

type Prescription struct {
	Symptoms           string     `json:"symptoms"`
	Medicines          []Medicine `json:"medicines"`
	OverallInstruction string     `json:"overall_instruction"`
	Photos             []string   `json:"photos"`
	CreatedAt          time.Time  `json:"created_at"`
}

func (p Prescription) Validate() error {
	if strings.TrimSpace(p.Symptoms) == "" && len(p.Medicines) == 0 {
		return Invalid("prescription", "symptoms or at least one medicine is required")
	}
	for i, m := range p.Medicines {
		if strings.TrimSpace(m.Name) == "" {
			return Invalid("medicines", "medicine %d: name is required", i+1)
		}
	}
	return nil
}

type Appointment struct {
	ID               string          `json:"id"`
	OwnerUID         string          `json:"owner_uid"`
	Name             string          `json:"name"`
	Phone            string          `json:"phone"`
	Treatment        string          `json:"treatment"`
	SubCategory      string          `json:"sub_category"`
	Doctor           string          `json:"doctor"`
	AppointmentDate  string          `json:"appointment_date"`
	AppointmentTime  string          `json:"appointment_time"`
	Price            decimal.Decimal `json:"price"`
	ConsultantAmount decimal.Decimal `json:"consultant_amount"`
	PaymentMethod    PaymentMethod   `json:"payment_method,omitempty"`
	Status           Status          `json:"status"`
	DeletedFrom      Status          `json:"deleted_from,omitempty"`
	Prescription     *Prescription   `json:"prescription,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// NewAppointment builds a pending appointment from a validated booking.
func NewAppointment(id string, req BookingRequest, at time.Time) Appointment {
	return Appointment{
		ID:               id,
		OwnerUID:         strings.TrimSpace(req.OwnerUID),
		Name:             strings.TrimSpace(req.Name),
		Phone:            strings.TrimSpace(req.Phone),
		Treatment:        strings.TrimSpace(req.Treatment),
		SubCategory:      strings.TrimSpace(req.SubCategory),
		Doctor:           strings.TrimSpace(req.Doctor),
		AppointmentDate:  strings.TrimSpace(req.AppointmentDate),
		AppointmentTime:  strings.TrimSpace(req.AppointmentTime),
		ConsultantAmount: req.ConsultantAmount,
		Status:           StatusPending,
		CreatedAt:        at,
		UpdatedAt:        at,
	}
}

// TransitionRequest carries the target state and, for attended, the captured payment.
type TransitionRequest struct {
	Status        Status          `json:"status"`
	Price         decimal.Decimal `json:"price"`
	PaymentMethod PaymentMethod   `json:"payment_method"`
}

func (r TransitionRequest) Validate() error {
	if !r.Status.Valid() {
		return Invalid("status", "unknown status %q", r.Status)
	}
	if r.Status == StatusPending {
		return Invalid("status", "cannot move back to pending")
	}
	if r.Status == StatusAttended {
		if !r.Price.IsPositive() {
			return Invalid("price", "must be greater than 0")
		}
		if !r.PaymentMethod.Valid() {
			return Invalid("payment_method", "must be Cash or Online")
		}
	}
	return nil
}

// Transition applies a lifecycle move in place.
func (a *Appointment) Transition(req TransitionRequest, at time.Time) error {
	if err := req.Validate(); err != nil {
		return err
	}
	if !CanTransition(a.Status, req.Status) {
		return &TransitionError{From: a.Status, To: req.Status}
	}
	if req.Status == StatusAttended {
		a.Price = req.Price
		a.PaymentMethod = req.PaymentMethod
	}
	if req.Status == StatusDeleted {
		a.DeletedFrom = a.Status
	}
	a.Status = req.Status
	a.UpdatedAt = at
	return nil
}

// Restore brings a deleted appointment back to the state it was deleted from.
func (a *Appointment) Restore(at time.Time) error {
	if a.Status != StatusDeleted {
		return fmt.Errorf("cannot restore appointment in status %s: %w", a.Status, ErrInvalidTransition)
	}
	target := a.DeletedFrom
	if !target.Valid() || target == StatusDeleted {
		target = StatusPending
	}
	a.Status = target
	a.DeletedFrom = ""
	a.UpdatedAt = at
	return nil
}

func (a *Appointment) SetPrescription(p Prescription, at time.Time) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = at
	}
	if p.Medicines == nil {
		p.Medicines = []Medicine{}
	}
	if p.Photos == nil {
		p.Photos = []string{}
	}
	a.Prescription = &p
	a.UpdatedAt = at
	return nil
}

// Matches applies the list filter to one appointment.
func (f AppointmentFilter) Matches(a Appointment) bool {
	if f.OwnerUID != "" && a.OwnerUID != f.OwnerUID {
		return false
	}
	if f.Status != "" && a.Status != f.Status {
		return false
	}
	if f.Status == "" && a.Status == StatusDeleted {
		return false
	}
	if f.Doctor != "" && !strings.EqualFold(a.Doctor, f.Doctor) {
		return false
	}
	if f.From != "" && a.AppointmentDate < f.From {
		return false
	}
	if f.To != "" && a.AppointmentDate > f.To {
		return false
	}
	return true
}

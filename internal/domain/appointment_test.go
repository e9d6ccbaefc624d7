package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allStatuses = []Status{StatusPending, StatusApproved, StatusAttended, StatusNotAttended, StatusCancelled, StatusDeleted}

func transitionTo(s Status) TransitionRequest {
	req := TransitionRequest{Status: s}
	if s == StatusAttended {
		req.Price = decimal.NewFromInt(500)
		req.PaymentMethod = PaymentCash
	}
	return req
}

func TestTransitionTable(t *testing.T) {
	allowed := map[Status][]Status{
		StatusPending:     {StatusApproved, StatusCancelled, StatusDeleted},
		StatusApproved:    {StatusAttended, StatusNotAttended, StatusCancelled, StatusDeleted},
		StatusAttended:    {StatusDeleted},
		StatusNotAttended: {StatusDeleted},
		StatusCancelled:   {StatusDeleted},
		StatusDeleted:     {},
	}
	now := time.Now()

	for _, from := range allStatuses {
		for _, to := range allStatuses {
			if to == StatusPending {
				continue
			}
			want := false
			for _, s := range allowed[from] {
				if s == to {
					want = true
				}
			}
			a := Appointment{Status: from}
			err := a.Transition(transitionTo(to), now)
			if want {
				assert.NoError(t, err, "%s -> %s", from, to)
				assert.Equal(t, to, a.Status)
			} else {
				assert.True(t, errors.Is(err, ErrInvalidTransition), "%s -> %s: %v", from, to, err)
				assert.Equal(t, from, a.Status)
			}
		}
	}
}

func TestAttendedRequiresPayment(t *testing.T) {
	a := Appointment{Status: StatusApproved}

	err := a.Transition(TransitionRequest{Status: StatusAttended, PaymentMethod: PaymentOnline}, time.Now())
	assert.True(t, IsValidation(err))

	err = a.Transition(TransitionRequest{Status: StatusAttended, Price: decimal.NewFromInt(100), PaymentMethod: "Card"}, time.Now())
	assert.True(t, IsValidation(err))
	assert.Equal(t, StatusApproved, a.Status)

	require.NoError(t, a.Transition(TransitionRequest{Status: StatusAttended, Price: decimal.NewFromInt(100), PaymentMethod: PaymentOnline}, time.Now()))
	assert.Equal(t, StatusAttended, a.Status)
	assert.Equal(t, PaymentOnline, a.PaymentMethod)
	assert.True(t, decimal.NewFromInt(100).Equal(a.Price))
}

func TestDeleteAndRestore(t *testing.T) {
	a := Appointment{Status: StatusApproved}
	require.NoError(t, a.Transition(TransitionRequest{Status: StatusDeleted}, time.Now()))
	assert.Equal(t, StatusApproved, a.DeletedFrom)

	require.NoError(t, a.Restore(time.Now()))
	assert.Equal(t, StatusApproved, a.Status)
	assert.Empty(t, a.DeletedFrom)

	err := a.Restore(time.Now())
	assert.True(t, errors.Is(err, ErrInvalidTransition))
	assert.EqualError(t, err, "cannot restore appointment in status approved: invalid status transition")
	assert.Equal(t, StatusApproved, a.Status)
}

func TestSetPrescription(t *testing.T) {
	a := Appointment{Status: StatusAttended}
	now := time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC)

	assert.True(t, IsValidation(a.SetPrescription(Prescription{}, now)))
	assert.True(t, IsValidation(a.SetPrescription(Prescription{Medicines: []Medicine{{Time: "morning"}}}, now)))

	require.NoError(t, a.SetPrescription(Prescription{Symptoms: "cough"}, now))
	require.NotNil(t, a.Prescription)
	assert.Equal(t, now, a.Prescription.CreatedAt)
	assert.NotNil(t, a.Prescription.Medicines)

	require.NoError(t, a.SetPrescription(Prescription{Medicines: []Medicine{{Name: "Tulsi"}}}, now))
	assert.Empty(t, a.Prescription.Symptoms, "prescription is overwritten")
}

func TestBookingRequestValidate(t *testing.T) {
	req := BookingRequest{
		Name:            "Ravi",
		Phone:           "9876543210",
		Treatment:       "Panchakarma",
		AppointmentDate: "2026-05-01",
		AppointmentTime: "10:30",
	}
	require.NoError(t, req.Validate())

	bad := req
	bad.Phone = "98765432100"
	assert.True(t, IsValidation(bad.Validate()))

	bad = req
	bad.AppointmentDate = "01/05/2026"
	assert.True(t, IsValidation(bad.Validate()))

	bad = req
	bad.AppointmentTime = ""
	assert.True(t, IsValidation(bad.Validate()))

	a := NewAppointment("a1", req, time.Now())
	assert.Equal(t, StatusPending, a.Status)
}

func TestAppointmentFilterHidesDeleted(t *testing.T) {
	deleted := Appointment{Status: StatusDeleted, AppointmentDate: "2026-01-02"}
	live := Appointment{Status: StatusPending, AppointmentDate: "2026-01-02"}

	assert.False(t, AppointmentFilter{}.Matches(deleted))
	assert.True(t, AppointmentFilter{}.Matches(live))
	assert.True(t, AppointmentFilter{Status: StatusDeleted}.Matches(deleted))
	assert.False(t, AppointmentFilter{From: "2026-01-03"}.Matches(live))
	assert.True(t, AppointmentFilter{From: "2026-01-01", To: "2026-01-02"}.Matches(live))
}

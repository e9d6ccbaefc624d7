package domain

import (
	"fmt"
	"strings"
	"time"
)

type NotificationKind string

const (
	NotificationText  NotificationKind = "text"
	NotificationImage NotificationKind = "image"
)

type NotificationStatus string

const (
	NotificationPending NotificationStatus = "pending"
	NotificationSent    NotificationStatus = "sent"
	NotificationFailed  NotificationStatus = "failed"
)

// Notification is one queued outbound message for the messaging relay.
type Notification struct {
	ID            string             `json:"id"`
	Kind          NotificationKind   `json:"kind"`
	Number        string             `json:"number"`
	Message       string             `json:"message,omitempty"`
	ImageURL      string             `json:"image_url,omitempty"`
	Caption       string             `json:"caption,omitempty"`
	Status        NotificationStatus `json:"status"`
	Attempts      int                `json:"attempts"`
	NextAttemptAt time.Time          `json:"next_attempt_at"`
	LastError     string             `json:"last_error,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
	SentAt        *time.Time         `json:"sent_at,omitempty"`
}

func (n Notification) Validate() error {
	if !ValidPhone(n.Number) {
		return Invalid("number", "must be exactly 10 digits")
	}
	switch n.Kind {
	case NotificationText:
		if strings.TrimSpace(n.Message) == "" {
			return Invalid("message", "is required")
		}
	case NotificationImage:
		if strings.TrimSpace(n.ImageURL) == "" {
			return Invalid("image_url", "is required")
		}
	default:
		return Invalid("kind", "must be text or image")
	}
	return nil
}

// ApprovalMessage is the text sent to a patient when their booking is approved.
func ApprovalMessage(a Appointment) Notification {
	msg := fmt.Sprintf("Hello %s, your appointment for %s on %s at %s has been approved.",
		a.Name, a.Treatment, a.AppointmentDate, a.AppointmentTime)
	if a.Doctor != "" {
		msg += fmt.Sprintf(" Doctor: %s.", a.Doctor)
	}
	return Notification{
		Kind:    NotificationText,
		Number:  a.Phone,
		Message: msg,
	}
}

type NotificationFilter struct {
	Status NotificationStatus
	Limit  int
}

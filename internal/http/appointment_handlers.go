package http

import (
	"net/http"
	"strings"

	"clinicdesk/internal/domain"
	"clinicdesk/internal/service"

	"github.com/go-chi/chi/v5"
)

func appointmentFilterFromQuery(r *http.Request) domain.AppointmentFilter {
	query := r.URL.Query()
	return domain.AppointmentFilter{
		OwnerUID: strings.TrimSpace(query.Get("owner_uid")),
		Status:   domain.Status(strings.TrimSpace(query.Get("status"))),
		Doctor:   strings.TrimSpace(query.Get("doctor")),
		From:     strings.TrimSpace(query.Get("from")),
		To:       strings.TrimSpace(query.Get("to")),
	}
}

// BookAppointment is the public booking form endpoint.
func (h *Handler) BookAppointment(w http.ResponseWriter, r *http.Request) {
	var req domain.BookingRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, err.Error())
		return
	}
	appt, err := h.svc.Book(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, appt)
}

func (h *Handler) ListAppointments(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.ListAppointments(r.Context(), appointmentFilterFromQuery(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "count": len(items)})
}

func (h *Handler) GetAppointment(w http.ResponseWriter, r *http.Request) {
	appt, err := h.svc.GetAppointment(r.Context(), chi.URLParam(r, "appointmentID"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

func (h *Handler) TransitionAppointment(w http.ResponseWriter, r *http.Request) {
	var req domain.TransitionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, err.Error())
		return
	}
	appt, err := h.svc.TransitionAppointment(r.Context(), chi.URLParam(r, "appointmentID"), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

func (h *Handler) RestoreAppointment(w http.ResponseWriter, r *http.Request) {
	appt, err := h.svc.RestoreAppointment(r.Context(), chi.URLParam(r, "appointmentID"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

func (h *Handler) SetPrescription(w http.ResponseWriter, r *http.Request) {
	var req domain.Prescription
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, err.Error())
		return
	}
	appt, err := h.svc.SetPrescription(r.Context(), chi.URLParam(r, "appointmentID"), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

// DictatePrescription turns an uploaded voice note into a draft prescription.
// The draft is returned for review and not saved.
func (h *Handler) DictatePrescription(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(25 << 20); err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, "failed to parse multipart form")
		return
	}
	file, header, err := r.FormFile("audio")
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, "audio field is required")
		return
	}
	defer file.Close()

	draft, err := h.svc.DictatePrescription(r.Context(), header.Filename, file)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, draft)
}

func (h *Handler) ListDoctors(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.ListDoctors(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "count": len(items)})
}

func (h *Handler) CreateDoctor(w http.ResponseWriter, r *http.Request) {
	var req service.DoctorInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, err.Error())
		return
	}
	doctor, err := h.svc.CreateDoctor(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, doctor)
}

func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit, err := parseOptionalInt(query.Get("limit"), 200)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, err.Error())
		return
	}
	items, err := h.svc.ListNotifications(r.Context(), domain.NotificationFilter{
		Status: domain.NotificationStatus(strings.TrimSpace(query.Get("status"))),
		Limit:  limit,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "count": len(items)})
}

type notificationRequest struct {
	Kind     domain.NotificationKind `json:"kind"`
	Number   string                  `json:"number"`
	Message  string                  `json:"message"`
	ImageURL string                  `json:"image_url"`
	Caption  string                  `json:"caption"`
}

func (h *Handler) EnqueueNotification(w http.ResponseWriter, r *http.Request) {
	var req notificationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, err.Error())
		return
	}
	if req.Kind == "" {
		req.Kind = domain.NotificationText
	}
	queued, err := h.svc.EnqueueNotification(r.Context(), domain.Notification{
		Kind:     req.Kind,
		Number:   strings.TrimSpace(req.Number),
		Message:  req.Message,
		ImageURL: strings.TrimSpace(req.ImageURL),
		Caption:  req.Caption,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, queued)
}

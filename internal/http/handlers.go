package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"clinicdesk/internal/auth"
	"clinicdesk/internal/domain"
	"clinicdesk/internal/logging"
	"clinicdesk/internal/metrics"
	"clinicdesk/internal/reporting"
	"clinicdesk/internal/service"

	"go.uber.org/zap"
)

const (
	codeValidation        = "VALIDATION_ERROR"
	codeNotFound          = "NOT_FOUND"
	codeInsufficientStock = "INSUFFICIENT_STOCK"
	codeInvalidTransition = "INVALID_TRANSITION"
	codeConflict          = "CONFLICT"
	codeConfirmation      = "CONFIRMATION_REQUIRED"
	codeUnauthorized      = "UNAUTHORIZED"
	codeUnavailable       = "UNAVAILABLE"
	codeInternal          = "INTERNAL_ERROR"
)

type Handler struct {
	svc       *service.Service
	dashboard *reporting.Dashboard
	tokens    *auth.Tokens
	metrics   *metrics.Metrics
	logger    *zap.Logger
	origins   []string
}

type Options struct {
	Tokens       *auth.Tokens
	Metrics      *metrics.Metrics
	Logger       *zap.Logger
	AllowOrigins []string
}

func NewHandler(svc *service.Service, dashboard *reporting.Dashboard, opts Options) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	tokens := opts.Tokens
	if tokens == nil {
		tokens = svc.Tokens()
	}
	if dashboard == nil {
		dashboard = reporting.NewDashboard(svc.Store(), opts.Metrics, logger)
	}
	return &Handler{
		svc:       svc,
		dashboard: dashboard,
		tokens:    tokens,
		metrics:   opts.Metrics,
		logger:    logger,
		origins:   opts.AllowOrigins,
	}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Ping(r.Context()); err != nil {
		logging.FromContext(r.Context()).Warn("health check failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, err.Error())
		return
	}
	result, err := h.svc.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, codeUnauthorized, "not signed in")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":         claims.Subject,
		"username":   claims.Username,
		"role":       claims.Role,
		"expires_at": claims.ExpiresAt.Time,
	})
}

func (h *Handler) ListAdmins(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.ListAdmins(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "count": len(items)})
}

func (h *Handler) CreateAdmin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, err.Error())
		return
	}
	admin, err := h.svc.CreateAdmin(r.Context(), req.Username, req.Password)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, admin)
}

func (h *Handler) ListActivity(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit, err := parseOptionalInt(query.Get("limit"), 200)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, err.Error())
		return
	}
	offset, err := parseOptionalInt(query.Get("offset"), 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, err.Error())
		return
	}
	items, err := h.svc.ListActivity(r.Context(), query.Get("search"), limit, offset)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "count": len(items)})
}

func decodeJSON(r *http.Request, out any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func parseOptionalInt(raw string, defaultValue int) (int, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid integer: %s", raw)
	}
	if parsed < 0 {
		return 0, fmt.Errorf("value cannot be negative")
	}
	return parsed, nil
}

// parseOptionalTime accepts RFC3339 or a bare date. With endOfDay a bare date
// moves to the following midnight so it can serve as an exclusive bound.
func parseOptionalTime(raw string, endOfDay bool) (*time.Time, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}
	if parsed, err := time.Parse(time.RFC3339, value); err == nil {
		return &parsed, nil
	}
	parsed, err := time.Parse(domain.DateLayout, value)
	if err != nil {
		return nil, fmt.Errorf("invalid time")
	}
	parsed = parsed.UTC()
	if endOfDay {
		parsed = parsed.AddDate(0, 0, 1)
	}
	return &parsed, nil
}

func saleFilterFromQuery(r *http.Request) (domain.SaleFilter, error) {
	query := r.URL.Query()
	from, err := parseOptionalTime(query.Get("from"), false)
	if err != nil {
		return domain.SaleFilter{}, domain.Invalid("from", "invalid from date")
	}
	to, err := parseOptionalTime(query.Get("to"), true)
	if err != nil {
		return domain.SaleFilter{}, domain.Invalid("to", "invalid to date")
	}
	if from != nil && to != nil && !from.Before(*to) {
		return domain.SaleFilter{}, domain.Invalid("to", "must be after from")
	}
	limit, err := parseOptionalInt(query.Get("limit"), 200)
	if err != nil {
		return domain.SaleFilter{}, domain.Invalid("limit", "%v", err)
	}
	offset, err := parseOptionalInt(query.Get("offset"), 0)
	if err != nil {
		return domain.SaleFilter{}, domain.Invalid("offset", "%v", err)
	}
	return domain.SaleFilter{From: from, To: to, Search: query.Get("search"), Limit: limit, Offset: offset}, nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{"error": message, "code": code})
}

// writeServiceError maps domain errors onto statuses. Unclassified errors are
// logged and reported without detail.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		validation *domain.ValidationError
		stock      *domain.InsufficientStockError
	)
	switch {
	case errors.As(err, &validation):
		writeError(w, http.StatusBadRequest, codeValidation, validation.Error())
	case errors.As(err, &stock):
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":     stock.Error(),
			"code":      codeInsufficientStock,
			"shortages": stock.Shortages,
		})
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, codeNotFound, err.Error())
	case errors.Is(err, domain.ErrInvalidTransition):
		writeError(w, http.StatusConflict, codeInvalidTransition, err.Error())
	case errors.Is(err, domain.ErrConflict):
		writeError(w, http.StatusConflict, codeConflict, err.Error())
	case errors.Is(err, domain.ErrConfirmationRequired):
		writeError(w, http.StatusPreconditionRequired, codeConfirmation, "confirm=true is required for this action")
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, codeUnauthorized, "invalid username or password")
	case errors.Is(err, domain.ErrUnavailable):
		writeError(w, http.StatusServiceUnavailable, codeUnavailable, "feature is not configured")
	default:
		logging.FromContext(r.Context()).Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, codeInternal, "internal server error")
	}
}

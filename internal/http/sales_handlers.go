package http

import (
	"net/http"
	"strconv"
	"strings"

	"clinicdesk/internal/domain"
	"clinicdesk/internal/reporting"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) RecordSale(w http.ResponseWriter, r *http.Request) {
	var req domain.SaleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, err.Error())
		return
	}
	sale, err := h.svc.RecordSale(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sale)
}

func (h *Handler) ListSales(w http.ResponseWriter, r *http.Request) {
	filter, err := saleFilterFromQuery(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	items, err := h.svc.ListSales(r.Context(), filter)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "count": len(items)})
}

func (h *Handler) GetSale(w http.ResponseWriter, r *http.Request) {
	sale, err := h.svc.GetSale(r.Context(), chi.URLParam(r, "saleID"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sale)
}

// ReverseSale deletes a sale and restores its stock. It needs ?confirm=true.
func (h *Handler) ReverseSale(w http.ResponseWriter, r *http.Request) {
	confirmed := false
	if raw := strings.TrimSpace(r.URL.Query().Get("confirm")); raw != "" {
		value, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, codeValidation, "confirm must be true or false")
			return
		}
		confirmed = value
	}
	result, err := h.svc.ReverseSale(r.Context(), chi.URLParam(r, "saleID"), confirmed)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) SalesSummary(w http.ResponseWriter, r *http.Request) {
	filter, err := saleFilterFromQuery(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	sales, err := reporting.AllSales(r.Context(), h.svc.Store(), domain.SaleFilter{From: filter.From, To: filter.To, Search: filter.Search})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	granularity, err := reporting.ParseGranularity(r.URL.Query().Get("group_by"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	all := domain.SaleFilter{}
	writeJSON(w, http.StatusOK, map[string]any{
		"summary":      reporting.SummarizeSales(sales, all),
		"series":       reporting.SalesSeries(sales, all, granularity),
		"top_products": reporting.TopProducts(sales, all, 10),
	})
}

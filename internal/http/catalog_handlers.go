package http

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"clinicdesk/internal/domain"
	"clinicdesk/internal/excel"
	"clinicdesk/internal/service"

	"github.com/go-chi/chi/v5"
)

func productKey(r *http.Request) domain.ProductKey {
	return domain.ProductKey{
		VendorID:  strings.TrimSpace(chi.URLParam(r, "vendorID")),
		ProductID: strings.TrimSpace(chi.URLParam(r, "productID")),
	}
}

func (h *Handler) ListVendors(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.ListVendors(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "count": len(items)})
}

func (h *Handler) GetVendor(w http.ResponseWriter, r *http.Request) {
	vendor, err := h.svc.GetVendor(r.Context(), chi.URLParam(r, "vendorID"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, vendor)
}

func (h *Handler) CreateVendor(w http.ResponseWriter, r *http.Request) {
	var req service.VendorInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, err.Error())
		return
	}
	created, err := h.svc.CreateVendor(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := domain.ProductFilter{
		VendorID: strings.TrimSpace(chi.URLParam(r, "vendorID")),
		Search:   query.Get("search"),
	}
	if filter.VendorID == "" {
		filter.VendorID = strings.TrimSpace(query.Get("vendor_id"))
	}
	if raw := strings.TrimSpace(query.Get("low_stock")); raw != "" {
		lowStock, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, codeValidation, "low_stock must be true or false")
			return
		}
		filter.LowStock = lowStock
	}
	items, err := h.svc.ListProducts(r.Context(), filter)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "count": len(items)})
}

func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	product, err := h.svc.GetProduct(r.Context(), productKey(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, product)
}

func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req service.ProductInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, err.Error())
		return
	}
	created, err := h.svc.CreateProduct(r.Context(), chi.URLParam(r, "vendorID"), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) PatchProduct(w http.ResponseWriter, r *http.Request) {
	var req domain.ProductPatch
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, err.Error())
		return
	}
	updated, err := h.svc.PatchProduct(r.Context(), productKey(r), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteProduct(r.Context(), productKey(r)); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": true})
}

func (h *Handler) Restock(w http.ResponseWriter, r *http.Request) {
	var req service.RestockInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, err.Error())
		return
	}
	event, err := h.svc.Restock(r.Context(), productKey(r), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, event)
}

func (h *Handler) MarkRestockPaid(w http.ResponseWriter, r *http.Request) {
	event, err := h.svc.MarkRestockPaid(r.Context(), productKey(r), chi.URLParam(r, "eventID"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

func (h *Handler) ProductLedger(w http.ResponseWriter, r *http.Request) {
	ledger, err := h.svc.ProductLedger(r.Context(), productKey(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ledger)
}

func (h *Handler) ReconcileProduct(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.ReconcileProduct(r.Context(), productKey(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) DuePayables(w http.ResponseWriter, r *http.Request) {
	day := time.Now().UTC()
	if raw := strings.TrimSpace(r.URL.Query().Get("on")); raw != "" {
		parsed, err := time.Parse(domain.DateLayout, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, codeValidation, "on must be YYYY-MM-DD")
			return
		}
		day = parsed
	}
	items, err := h.svc.DuePayables(r.Context(), day)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "count": len(items)})
}

func (h *Handler) ImportProducts(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, "failed to parse multipart form")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, "file field is required")
		return
	}
	defer file.Close()

	rows, err := excel.ParseProductRows(header.Filename, file)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	result, err := h.svc.ImportProducts(r.Context(), chi.URLParam(r, "vendorID"), rows)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"file_name":  header.Filename,
		"total_rows": len(rows),
		"result":     result,
	})
}

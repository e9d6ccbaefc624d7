package http

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"clinicdesk/internal/domain"
	"clinicdesk/internal/excel"
	"clinicdesk/internal/reporting"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	snap, err := h.dashboard.Snapshot(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *Handler) LowStock(w http.ResponseWriter, r *http.Request) {
	products, err := h.svc.ListProducts(r.Context(), domain.ProductFilter{VendorID: r.URL.Query().Get("vendor_id")})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	items := reporting.LowStock(products)
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "count": len(items)})
}

func (h *Handler) AppointmentReport(w http.ResponseWriter, r *http.Request) {
	filter := appointmentFilterFromQuery(r)
	granularity, err := reporting.ParseGranularity(r.URL.Query().Get("group_by"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	appts, err := h.svc.ListAppointments(r.Context(), filter)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"group_by": granularity,
		"items":    reporting.AppointmentSeries(appts, filter, granularity),
	})
}

func (h *Handler) ExportSales(w http.ResponseWriter, r *http.Request) {
	filter, err := saleFilterFromQuery(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	sales, err := reporting.AllSales(r.Context(), h.svc.Store(), filter)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := excel.WriteSales(&buf, sales); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeWorkbook(w, "sales.xlsx", buf.Bytes())
}

func (h *Handler) ExportProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.svc.ListProducts(r.Context(), domain.ProductFilter{VendorID: r.URL.Query().Get("vendor_id")})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	vendors, err := h.svc.ListVendors(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	names := make(map[string]string, len(vendors))
	for _, v := range vendors {
		names[v.ID] = v.Name
	}
	var buf bytes.Buffer
	if err := excel.WriteProducts(&buf, products, names); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeWorkbook(w, "products.xlsx", buf.Bytes())
}

func (h *Handler) ExportAppointments(w http.ResponseWriter, r *http.Request) {
	appts, err := h.svc.ListAppointments(r.Context(), appointmentFilterFromQuery(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := excel.WriteAppointments(&buf, appts); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeWorkbook(w, "appointments.xlsx", buf.Bytes())
}

func writeWorkbook(w http.ResponseWriter, name string, body []byte) {
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

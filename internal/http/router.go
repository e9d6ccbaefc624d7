package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(handler *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(RequestID(handler.logger))
	r.Use(Logger(handler.metrics))
	r.Use(Recoverer)
	r.Use(Timeout)
	r.Use(CORS(handler.origins))

	r.Get("/healthz", handler.Health)
	r.Method(http.MethodGet, "/metrics", handler.metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/login", handler.Login)

		r.Route("/public", func(r chi.Router) {
			r.Post("/appointments", handler.BookAppointment)
			r.Get("/doctors", handler.ListDoctors)
		})

		r.Group(func(r chi.Router) {
			r.Use(RequireAdmin(handler.tokens))

			r.Get("/auth/me", handler.Me)
			r.Get("/admins", handler.ListAdmins)
			r.Post("/admins", handler.CreateAdmin)
			r.Get("/activity", handler.ListActivity)

			r.Get("/vendors", handler.ListVendors)
			r.Post("/vendors", handler.CreateVendor)
			r.Get("/vendors/{vendorID}", handler.GetVendor)
			r.Get("/vendors/{vendorID}/products", handler.ListProducts)
			r.Post("/vendors/{vendorID}/products", handler.CreateProduct)
			r.Post("/vendors/{vendorID}/products/import", handler.ImportProducts)
			r.Get("/vendors/{vendorID}/products/{productID}", handler.GetProduct)
			r.Patch("/vendors/{vendorID}/products/{productID}", handler.PatchProduct)
			r.Delete("/vendors/{vendorID}/products/{productID}", handler.DeleteProduct)
			r.Post("/vendors/{vendorID}/products/{productID}/restock", handler.Restock)
			r.Post("/vendors/{vendorID}/products/{productID}/restock/{eventID}/paid", handler.MarkRestockPaid)
			r.Get("/vendors/{vendorID}/products/{productID}/ledger", handler.ProductLedger)
			r.Get("/vendors/{vendorID}/products/{productID}/reconcile", handler.ReconcileProduct)
			r.Get("/products", handler.ListProducts)
			r.Get("/payables", handler.DuePayables)

			r.Get("/sales", handler.ListSales)
			r.Post("/sales", handler.RecordSale)
			r.Get("/sales/{saleID}", handler.GetSale)
			r.Delete("/sales/{saleID}", handler.ReverseSale)

			r.Get("/appointments", handler.ListAppointments)
			r.Get("/appointments/{appointmentID}", handler.GetAppointment)
			r.Post("/appointments/{appointmentID}/status", handler.TransitionAppointment)
			r.Post("/appointments/{appointmentID}/restore", handler.RestoreAppointment)
			r.Put("/appointments/{appointmentID}/prescription", handler.SetPrescription)
			r.Post("/appointments/{appointmentID}/prescription/dictate", handler.DictatePrescription)
			r.Post("/doctors", handler.CreateDoctor)

			r.Get("/notifications", handler.ListNotifications)
			r.Post("/notifications", handler.EnqueueNotification)

			r.Get("/reports/dashboard", handler.Dashboard)
			r.Get("/reports/sales", handler.SalesSummary)
			r.Get("/reports/appointments", handler.AppointmentReport)
			r.Get("/reports/low-stock", handler.LowStock)

			r.Get("/exports/sales.xlsx", handler.ExportSales)
			r.Get("/exports/products.xlsx", handler.ExportProducts)
			r.Get("/exports/appointments.xlsx", handler.ExportAppointments)
		})
	})

	return r
}

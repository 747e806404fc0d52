/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the frontend

ROUTE GROUPS:
  /api/customers/*   Calendar, changes, undo, invoices, payments
  /api/admin/*       Master data and its per-entity undo
  /api/scenarios/*   Demo fixtures (dev only)
  /api/health        Liveness check

SECURITY NOTE:
  No authentication middleware. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)

		r.Route("/customers", func(r chi.Router) {
			r.Get("/", h.ListCustomers)
			r.Get("/{id}", h.GetCustomer)
			r.Get("/{id}/calendar", h.GetCalendar)
			r.Get("/{id}/ar-summary", h.GetARSummary)

			r.Route("/{id}/temporary-changes", func(r chi.Router) {
				r.Get("/", h.ListChanges)
				r.Post("/", h.CreateChange)
				r.Put("/{changeID}", h.UpdateChange)
				r.Delete("/{changeID}", h.DeleteChange)
			})

			r.Post("/{id}/undo", h.UndoCustomer)
			r.Post("/{id}/invoices/confirm", h.ConfirmInvoice)
			r.Post("/{id}/invoices/unconfirm", h.UnconfirmInvoice)
			r.Post("/{id}/payments", h.RecordPayment)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Route("/courses", func(r chi.Router) {
				r.Get("/", h.ListCourses)
				r.Post("/", h.CreateCourse)
				r.Put("/{id}", h.UpdateCourse)
				r.Delete("/{id}", h.DeleteCourse)
			})

			r.Route("/staff", func(r chi.Router) {
				r.Get("/", h.ListStaff)
				r.Post("/", h.CreateStaff)
				r.Put("/{id}", h.UpdateStaff)
				r.Delete("/{id}", h.DeleteStaff)
			})

			r.Route("/manufacturers", func(r chi.Router) {
				r.Get("/", h.ListManufacturers)
				r.Post("/", h.CreateManufacturer)
				r.Put("/{id}", h.UpdateManufacturer)
				r.Delete("/{id}", h.DeleteManufacturer)
			})

			r.Get("/company", h.GetCompany)
			r.Put("/company", h.UpdateCompany)
			r.Get("/institution", h.GetInstitution)
			r.Put("/institution", h.UpdateInstitution)

			r.Post("/undo/{entity}", h.UndoMaster)
		})

		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Post("/load", h.LoadScenario)
			r.Post("/reset", h.ResetDatabase)
		})
	})

	return r
}

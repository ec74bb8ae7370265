/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS (tenant id is always in the path):
  /api/schools/{school}/classes/*       Class config sync, roster views
  /api/schools/{school}/enrollments/*   Enrollments, payments, attendance
  /api/schools/{school}/students/*      Student financials
  /api/schools/{school}/finance/*       Monthly views, freeze, money records
  /api/scenarios/*                      Demo data loaders
  /api/health                           Liveness probe

SECURITY NOTE:
  No authentication middleware. The school path segment is tenancy, not
  authorization; put an auth proxy in front for production.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
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
		r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		r.Route("/schools/{school}", func(r chi.Router) {
			// Class routes
			r.Route("/classes/{id}", func(r chi.Router) {
				r.Put("/", h.SyncClass)
				r.Get("/roster", h.GetRoster)
			})

			// Enrollment routes
			r.Route("/enrollments", func(r chi.Router) {
				r.Post("/", h.CreateEnrollment)
				r.Route("/{id}", func(r chi.Router) {
					r.Delete("/", h.DeleteEnrollment)
					r.Put("/status", h.SetEnrollmentStatus)
					r.Get("/summary", h.GetSummary)
					r.Post("/payments", h.RecordPayment)
					r.Put("/attendance/{date}", h.MarkAttendance)
					r.Delete("/attendance/{date}", h.UndoAttendance)
				})
			})

			// Student routes
			r.Get("/students/{id}/financial", h.GetStudentFinancial)

			// Finance routes
			r.Route("/finance", func(r chi.Router) {
				r.Get("/months/{year}/{month}", h.GetMonth)
				r.Post("/months/{year}/{month}/freeze", h.FreezeMonth)
				r.Post("/entries", h.RecordEntry)
				r.Post("/earnings", h.CreditEarning)
				r.Post("/payouts", h.RecordPayout)
				r.Post("/salaries", h.RecordSalary)
			})
		})

		// Demo scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Post("/load", h.LoadScenario)
		})
	})

	return r
}

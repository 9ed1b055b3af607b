/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     Request logging through the handler's logrus logger
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for the frontend

ROUTE GROUPS:
  /api/health           Liveness
  /api/org-units/*      Org units, monthly financials, health, summary
  /api/job-catalog/*    Reference role costs
  /api/requisitions/*   Open headcount
  /api/offers/*         Offers and what-if previews
  /api/export/*         CSV export
  /api/import/*         CSV import
  /api/scenarios/*      Demo scenarios
  /api/admin/*          Audit log, alerts

SECURITY NOTE:
  No authentication middleware. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/hrbudget/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, corsOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{Logger: h.Log, NoColor: true}))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", ActorHeader},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)

		// Org unit routes
		r.Route("/org-units", func(r chi.Router) {
			r.Get("/", h.ListOrgUnits)
			r.Post("/", h.CreateOrgUnit)
			r.Get("/{id}", h.GetOrgUnit)
			r.Patch("/{id}", h.UpdateOrgUnit)
			r.Delete("/{id}", h.DeleteOrgUnit)
			r.Get("/{id}/budgets", h.ListBudgets)
			r.Post("/{id}/budgets", h.UpsertBudget)
			r.Post("/{id}/lock-month", h.LockMonth)
			r.Get("/{id}/forecasts", h.ListForecasts)
			r.Post("/{id}/forecasts", h.UpsertForecast)
			r.Get("/{id}/actuals", h.ListActuals)
			r.Post("/{id}/actuals", h.UpsertActual)
			r.Get("/{id}/month-health", h.GetMonthHealth)
			r.Get("/{id}/summary", h.GetSummary)
		})

		// Job catalog routes
		r.Route("/job-catalog", func(r chi.Router) {
			r.Get("/", h.ListJobs)
			r.Post("/", h.CreateJob)
			r.Get("/{id}", h.GetJob)
			r.Patch("/{id}", h.UpdateJob)
			r.Delete("/{id}", h.DeleteJob)
		})

		// Requisition routes
		r.Route("/requisitions", func(r chi.Router) {
			r.Get("/", h.ListRequisitions)
			r.Post("/", h.CreateRequisition)
			r.Get("/{id}", h.GetRequisition)
			r.Patch("/{id}", h.UpdateRequisition)
			r.Post("/{id}/transition", h.TransitionRequisition)
		})

		// Offer routes
		r.Route("/offers", func(r chi.Router) {
			r.Get("/", h.ListOffers)
			r.Post("/", h.CreateOffer)
			r.Post("/preview-impact", h.PreviewOfferImpact)
			r.Post("/preview-new-positions", h.PreviewNewPositions)
			r.Get("/{id}", h.GetOffer)
			r.Patch("/{id}", h.UpdateOffer)
			r.Delete("/{id}", h.DeleteOffer)
			r.Post("/{id}/propose", h.ProposeOffer)
			r.Post("/{id}/approve", h.ApproveOffer)
			r.Post("/{id}/send", h.SendOffer)
			r.Post("/{id}/hold", h.HoldOffer)
			r.Post("/{id}/accept", h.AcceptOffer)
			r.Post("/{id}/reject", h.RejectOffer)
			r.Post("/{id}/cancel", h.CancelOffer)
			r.Post("/{id}/change-start-date", h.ChangeStartDate)
		})

		// Data exchange routes
		r.Get("/export/org-units", h.ExportOrgUnits)
		r.Get("/export/job-catalog", h.ExportJobs)
		r.Get("/export/budgets/{id}", h.ExportBudgets)
		r.Get("/export/actuals/{id}", h.ExportActuals)
		r.Post("/import/budgets/{id}", h.ImportBudgets)
		r.Post("/import/actuals/{id}", h.ImportActuals)

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
			r.Post("/reset", h.ResetDatabase)
		})

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Get("/audit-logs", h.ListAuditLogs)
			r.Get("/alerts", h.ListAlerts)
		})
	})

	return r
}

package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/fluentive/campaigns/internal/dispatch"
	"github.com/fluentive/campaigns/internal/service/audience"
	"github.com/fluentive/campaigns/internal/service/campaign"
	"github.com/fluentive/campaigns/internal/service/contact"
	"github.com/fluentive/campaigns/internal/service/suppression"
	"github.com/fluentive/campaigns/internal/tracking"
)

// Deps holds everything the HTTP surface needs.
type Deps struct {
	Campaigns    *campaign.Service
	Contacts     *contact.Service
	Suppressions *suppression.Service
	Audience     *audience.Resolver
	Dispatcher   *dispatch.Dispatcher
	Ledger       dispatch.Ledger
	Tracking     *tracking.Handler

	AllowedOrigins []string
}

// NewRouter assembles the full route tree: public tracking routes at the
// root, admin routes under /api.
func NewRouter(deps Deps) *chi.Mux {
	h := &Handlers{deps: deps}

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	origins := deps.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173", "http://localhost:8080"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", h.HealthCheck)

	// Public recipient-facing routes. No auth, ever: these are hit from
	// email clients.
	r.Get("/track/open/{sendID}", deps.Tracking.HandleOpen)
	r.Get("/track/click/{sendID}", deps.Tracking.HandleClick)
	r.Get("/unsubscribe/{token}", deps.Tracking.HandleUnsubscribe)

	r.Route("/api", func(r chi.Router) {
		r.Route("/campaigns", func(r chi.Router) {
			r.Get("/", h.ListCampaigns)
			r.Post("/", h.CreateCampaign)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetCampaign)
				r.Put("/", h.UpdateCampaign)
				r.Delete("/", h.DeleteCampaign)
				r.Get("/audience", h.PreviewAudience)
				r.Get("/sends", h.ListCampaignSends)
				r.Post("/schedule", h.ScheduleCampaign)
				r.Post("/unschedule", h.UnscheduleCampaign)
				r.Post("/cancel", h.CancelCampaign)
				r.Post("/send", h.SendCampaign)
				r.Post("/test", h.SendTestEmail)
			})
		})

		r.Route("/contacts", func(r chi.Router) {
			r.Get("/", h.ListContacts)
			r.Post("/", h.CreateContact)
			r.Post("/import", h.ImportContacts)
			r.Get("/{id}", h.GetContact)
			r.Delete("/{id}", h.DeleteContact)
		})

		r.Route("/suppressions", func(r chi.Router) {
			r.Get("/", h.ListSuppressions)
			r.Post("/", h.AddSuppression)
			r.Get("/stats", h.SuppressionStats)
			r.Delete("/{email}", h.RemoveSuppression)
		})
	})

	return r
}

package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates the HTTP router with all routes configured.
func (s *Server) NewRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.observe)
	r.Use(middleware.Recoverer)

	origins := s.allowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000", "http://127.0.0.1:3000"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", s.Healthz)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}
	r.Post("/users", s.RegisterUser)

	r.Group(func(r chi.Router) {
		r.Use(s.authenticate)

		r.Get("/users/me", s.CurrentUser)

		r.Route("/vault/docs", func(r chi.Router) {
			r.Get("/", s.ListDocuments)
			r.Post("/", s.UploadDocument)
			r.Get("/{id}", s.ReadDocument)
			r.Delete("/{id}", s.DeleteDocument)
			r.Get("/{id}/audit", s.DocumentAudit)
			r.Post("/{id}/access", s.ShareDocument)
		})

		r.Route("/medications", func(r chi.Router) {
			r.Get("/", s.ListMedications)
			r.Post("/", s.CreateMedication)
			r.Delete("/{id}", s.DeleteMedication)

			r.Get("/reminders", s.ListReminders)
			r.Patch("/reminders", s.UpdateReminder)
			r.Post("/notify/run", s.RunNotifier)

			r.Route("/schedules", func(r chi.Router) {
				r.Get("/", s.ListSchedules)
				r.Post("/", s.CreateSchedule)
				r.Get("/{id}", s.GetSchedule)
				r.Delete("/{id}", s.DeleteSchedule)
				r.Post("/{id}/reminders/generate", s.GenerateReminders)
			})
		})

		r.Route("/health", func(r chi.Router) {
			r.Get("/readings", s.ListReadings)
			r.Post("/readings", s.AddReading)
			r.Post("/analyze", s.Analyze)
		})

		r.Route("/shopping", func(r chi.Router) {
			r.Get("/", s.ListShopping)
			r.Post("/", s.AddShoppingItem)
			r.Patch("/{id}", s.UpdateShoppingItem)
			r.Delete("/{id}", s.DeleteShoppingItem)
		})

		r.Route("/contacts", func(r chi.Router) {
			r.Get("/", s.ListContacts)
			r.Post("/", s.AddContact)
			r.Delete("/{id}", s.DeleteContact)
		})

		r.Post("/chat", s.SendChat)
	})

	return r
}

// Healthz handles GET /healthz
func (s *Server) Healthz(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

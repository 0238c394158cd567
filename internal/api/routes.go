package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"procurement-workflow/internal/domain"
	"procurement-workflow/internal/sanitize"
)

func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.Healthz)
	r.Get("/readyz", h.Readyz)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/processes", h.ListProcesses)
		r.Get("/processes/stream", h.StreamProcesses)
		r.Route("/processes/{processId}", func(r chi.Router) {
			r.Get("/", func(w http.ResponseWriter, r *http.Request) {
				h.GetProcess(w, r, chi.URLParam(r, "processId"))
			})
			r.Post("/stages/{stage}/documents", func(w http.ResponseWriter, r *http.Request) {
				h.SubmitDocument(w, r, chi.URLParam(r, "processId"), stageParam(r))
			})
			r.Post("/stages/{stage}/result", func(w http.ResponseWriter, r *http.Request) {
				h.SubmitResult(w, r, chi.URLParam(r, "processId"), stageParam(r))
			})
		})

		r.Get("/settings/endpoints", h.GetEndpoints)
		r.Put("/settings/endpoints/{stage}", func(w http.ResponseWriter, r *http.Request) {
			h.PutEndpoint(w, r, stageParam(r))
		})
	})

	return r
}

func stageParam(r *http.Request) domain.Stage {
	return domain.Stage(sanitize.String(chi.URLParam(r, "stage")))
}

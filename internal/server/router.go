package server

import (
	"net/http"
	"time"

	"github.com/PaulBabatuyi/WeShare/internal/middleware"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

type RouterConfig struct {
	Logger         *zap.Logger
	Metrics        middleware.HTTPObserver
	AllowedOrigins []string
}

// NewRouter mounts the API both at the root and under /api.
func NewRouter(h *Handlers, rc RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(rc.Logger))
	if rc.Metrics != nil {
		r.Use(middleware.RequestMetrics(rc.Metrics))
	}
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: rc.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		MaxAge:         int((10 * time.Minute).Seconds()),
	}))

	routes := func(r chi.Router) {
		r.Post("/upload", h.Upload)
		r.Post("/send-email", h.SendEmail)
		r.Route("/files/{id}", func(r chi.Router) {
			r.Get("/", h.ListFiles)
			r.Get("/{index}", h.DownloadFile)
			r.Get("/{index}/thumbnail", h.Thumbnail)
		})
	}

	r.Group(routes)
	r.Route("/api", routes)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Not found")
	})

	return r
}

package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mwanachuomind/backend/internal/api"
	"github.com/mwanachuomind/backend/internal/api/handlers"
	"github.com/mwanachuomind/backend/internal/api/middleware"
)

type RouterConfig struct {
	DocumentHandler *handlers.DocumentHandler
	ChatHandler     *handlers.ChatHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	const maxBodyBytes int64 = 5 * 1024 * 1024

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/documents", func(r chi.Router) {
		r.Get("/{id}", cfg.DocumentHandler.Get)
		r.Get("/{id}/analysis", cfg.DocumentHandler.GetAnalysis)
		r.Post("/{id}/process", cfg.DocumentHandler.Process)
	})

	r.Post("/webhooks/storage", cfg.DocumentHandler.StorageWebhook)

	r.Post("/chat", cfg.ChatHandler.Chat)

	return r
}

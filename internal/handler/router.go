package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/zhouzirui/chatpanel/internal/handler/chat"
	"github.com/zhouzirui/chatpanel/internal/handler/panel"
	"github.com/zhouzirui/chatpanel/internal/metrics"
	"github.com/zhouzirui/chatpanel/pkg/utils"
)

func baseRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	return r
}

// NewPanelRouter serves the web chat panel, its WebSocket and metrics.
func NewPanelRouter(panelHandler *panel.Handler) http.Handler {
	r := baseRouter()

	panelHandler.RegisterRoutes(r)
	r.Handle("/metrics", metrics.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return r
}

// NewBackendRouter wires the development chat backend. Any origin may call it,
// so a panel page served from elsewhere can post to /chat.
func NewBackendRouter(chatHandler *chat.Handler) http.Handler {
	r := baseRouter()

	r.Use(cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: false,
	}).Handler)

	chatHandler.RegisterRoutes(r)
	return r
}

package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	sessionHandler "github.com/zhouzirui/agent-relay/backend/internal/handler/session"
	wsHandler "github.com/zhouzirui/agent-relay/backend/internal/handler/ws"
	middlewarePkg "github.com/zhouzirui/agent-relay/backend/internal/middleware"
	brokerService "github.com/zhouzirui/agent-relay/backend/internal/service/broker"
	"github.com/zhouzirui/agent-relay/backend/pkg/utils"
)

const version = "1.0.0"

// NewRouter wires HTTP and WebSocket routes to the broker.
func NewRouter(broker *brokerService.Broker) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	r.Get("/health", handleHealth)

	r.Route("/api", func(api chi.Router) {
		sessionHandler.New(broker).RegisterRoutes(api)
	})

	wsHandler.New(broker).RegisterRoutes(r)

	return r
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   version,
		"services": map[string]string{
			"enhanced_api": "configured",
		},
	})
}

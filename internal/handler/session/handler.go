package session

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/agent-relay/backend/internal/model/session"
	brokerService "github.com/zhouzirui/agent-relay/backend/internal/service/broker"
	"github.com/zhouzirui/agent-relay/backend/internal/service/upstream"
	"github.com/zhouzirui/agent-relay/backend/pkg/utils"
)

// Handler exposes the session API over HTTP.
type Handler struct {
	broker *brokerService.Broker
}

// New creates the session handler.
func New(b *brokerService.Broker) *Handler {
	return &Handler{broker: b}
}

// RegisterRoutes mounts the chat session routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/chat/sessions", func(r chi.Router) {
		r.Post("/", h.handleCreate)
		r.Get("/", h.handleList)
		r.Get("/{sessionID}", h.handleGet)
		r.Post("/{sessionID}/messages", h.handleSendMessage)
		r.Post("/{sessionID}/mode", h.handleSwitchMode)
	})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Mode         string `json:"mode"`
		QualityLevel string `json:"qualityLevel"`
		Description  string `json:"description"`
	}

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.Mode == "" {
		payload.Mode = session.ModeAct
	}
	if payload.QualityLevel == "" {
		payload.QualityLevel = "advanced"
	}

	s, err := h.broker.CreateSession(r.Context(), payload.Mode, payload.QualityLevel, payload.Description)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	utils.RespondJSON(w, http.StatusCreated, map[string]any{
		"success":      true,
		"sessionId":    s.ID,
		"mode":         s.Mode,
		"qualityLevel": s.QualityLevel,
		"tier":         s.Tier,
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	sessions := h.broker.ListSessions(r.Context())
	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"sessions": sessions,
		"count":    len(sessions),
	})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	s, err := h.broker.GetSession(r.Context(), sessionID)
	if err != nil {
		respondBrokerError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, struct {
		Success bool `json:"success"`
		session.Session
	}{Success: true, Session: s})
}

func (h *Handler) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var payload struct {
		Message string `json:"message"`
		Mode    string `json:"mode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.Message == "" {
		utils.RespondError(w, http.StatusBadRequest, "message is required")
		return
	}
	if payload.Mode == "" {
		payload.Mode = session.ModeAct
	}

	reply, err := h.broker.SendMessage(r.Context(), sessionID, payload.Message, payload.Mode)
	if err != nil {
		respondBrokerError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"sessionId": sessionID,
		"response":  reply,
	})
}

func (h *Handler) handleSwitchMode(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var payload struct {
		Mode string `json:"mode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.Mode == "" {
		utils.RespondError(w, http.StatusBadRequest, "mode is required")
		return
	}

	sw, err := h.broker.SwitchMode(r.Context(), sessionID, payload.Mode)
	if err != nil {
		respondBrokerError(w, err)
		return
	}

	resp := map[string]any{
		"success":      true,
		"sessionId":    sessionID,
		"previousMode": sw.PreviousMode,
		"currentMode":  sw.CurrentMode,
	}
	if sw.Result != nil {
		resp["result"] = sw.Result
	}
	utils.RespondJSON(w, http.StatusOK, resp)
}

// respondBrokerError maps broker failures onto HTTP statuses: unknown
// sessions are the client's fault, upstream rejections are a bad
// gateway, everything else is internal.
func respondBrokerError(w http.ResponseWriter, err error) {
	var apiErr *upstream.APIError
	switch {
	case errors.Is(err, brokerService.ErrSessionNotFound):
		utils.RespondError(w, http.StatusNotFound, "session not found")
	case errors.As(err, &apiErr):
		utils.RespondError(w, http.StatusBadGateway, apiErr.Error())
	default:
		utils.RespondError(w, http.StatusInternalServerError, "internal error")
	}
}

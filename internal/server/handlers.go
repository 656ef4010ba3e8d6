package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tjfontaine/agent-pipeline/internal/core/domain"
	"github.com/tjfontaine/agent-pipeline/internal/core/ports"
)

// Invoker is the slice of the orchestrator the HTTP handlers need.
type Invoker interface {
	Invoke(ctx context.Context, text, sessionID, userID string) (string, error)
	WarmSession(ctx context.Context, sessionID, userID string) (*domain.Session, error)
	Session(ctx context.Context, sessionID, userID string) (*domain.Session, error)
}

type Handler struct {
	inv    Invoker
	logger *slog.Logger
}

func NewHandler(inv Invoker, logger *slog.Logger) *Handler {
	return &Handler{inv: inv, logger: logger}
}

type invokeRequest struct {
	Text      string `json:"text"`
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
}

type invokeResponse struct {
	Output    string `json:"output"`
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Kind    string `json:"kind"`
	Stage   string `json:"stage,omitempty"`
	Message string `json:"message"`
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) Invoke(w http.ResponseWriter, r *http.Request) {
	var req invokeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "", "invalid JSON body")
		return
	}
	if req.Text == "" || req.SessionID == "" || req.UserID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "", "text, session_id and user_id are required")
		return
	}

	AddLogField(r.Context(), "session_id", req.SessionID)
	AddLogField(r.Context(), "user_id", req.UserID)

	out, err := h.inv.Invoke(r.Context(), req.Text, req.SessionID, req.UserID)
	if err != nil {
		AddError(r.Context(), err)
		writePipelineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, invokeResponse{
		Output:    out,
		SessionID: req.SessionID,
		UserID:    req.UserID,
	})
}

func (h *Handler) WarmSession(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	sessionID := chi.URLParam(r, "sessionID")

	sess, err := h.inv.WarmSession(r.Context(), sessionID, userID)
	if err != nil {
		AddError(r.Context(), err)
		writeError(w, http.StatusInternalServerError, "internal", "", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, sess)
}

func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	sessionID := chi.URLParam(r, "sessionID")

	sess, err := h.inv.Session(r.Context(), sessionID, userID)
	if err != nil {
		if errors.Is(err, ports.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "", "session not found")
			return
		}
		AddError(r.Context(), err)
		writeError(w, http.StatusInternalServerError, "internal", "", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, sess)
}

// writePipelineError maps pipeline error kinds onto HTTP statuses.
func writePipelineError(w http.ResponseWriter, err error) {
	var perr *domain.Error
	if !errors.As(err, &perr) {
		writeError(w, http.StatusInternalServerError, "internal", "", err.Error())
		return
	}

	status := http.StatusBadGateway
	switch perr.Kind {
	case domain.ErrorKindUnresolvedKey:
		status = http.StatusUnprocessableEntity
	case domain.ErrorKindCanceled:
		status = http.StatusGatewayTimeout
	}

	writeError(w, status, string(perr.Kind), perr.Stage, perr.Message)
}

func writeError(w http.ResponseWriter, status int, kind, stage, message string) {
	writeJSON(w, status, errorResponse{Error: errorBody{
		Kind:    kind,
		Stage:   stage,
		Message: message,
	}})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/rulesmith/rulesmith/internal/chat"
	"github.com/rulesmith/rulesmith/internal/session"
)

// sessionHandler serves session state and the decision-support flows
// that operate on a session's last parsed rule.
type sessionHandler struct {
	svc      *chat.Service
	sessions *session.Store
	logger   *slog.Logger
}

// decisionRequest carries the user's go/no-go phrase. An absent body
// reads as an empty decision, which the orchestration gate treats as
// a cancellation.
type decisionRequest struct {
	Decision string `json:"decision"`
}

// get returns the session's full state: industry, exchange history,
// and the last parsed rule.
func (h *sessionHandler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	sn, ok := h.sessions.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "session_not_found", "session not found", h.logger)
		return
	}
	writeData(w, http.StatusOK, sn)
}

// analyze runs conflict detection and impact assessment on the
// session's last rule without generating anything.
func (h *sessionHandler) analyze(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	result, err := h.svc.AnalyzeImpact(r.Context(), id)
	if err != nil {
		if errors.Is(err, chat.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, "session_not_found", "session not found", h.logger)
			return
		}
		h.logger.Error("impact analysis failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "analysis_failed", "failed to analyze rule", h.logger)
		return
	}
	writeData(w, http.StatusOK, result)
}

// generate applies the caller's decision phrase to the session's last
// rule and, on approval of a clean rule, produces the artifact pair.
func (h *sessionHandler) generate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	req, ok := decodeDecision(w, r, h.logger)
	if !ok {
		return
	}

	outcome, err := h.svc.GenerateFiles(r.Context(), id, req.Decision)
	if err != nil {
		switch {
		case errors.Is(err, chat.ErrSessionNotFound):
			writeError(w, http.StatusNotFound, "session_not_found", "session not found", h.logger)
		case errors.Is(err, chat.ErrNoRule):
			writeError(w, http.StatusConflict, "no_rule", "no rule parsed in this session yet", h.logger)
		default:
			h.logger.Error("generation failed", slog.String("error", err.Error()))
			writeError(w, http.StatusInternalServerError, "generation_failed", "failed to generate rule files", h.logger)
		}
		return
	}
	writeData(w, http.StatusOK, outcome)
}

func (h *sessionHandler) pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_session_id", "session id must be a UUID", h.logger)
		return uuid.Nil, false
	}
	return id, true
}

// decodeDecision reads an optional decision body. Only malformed JSON
// is an error; an empty body is a valid empty decision.
func decodeDecision(w http.ResponseWriter, r *http.Request, logger *slog.Logger) (decisionRequest, bool) {
	var req decisionRequest
	body := http.MaxBytesReader(w, r.Body, maxChatBody)
	if err := json.NewDecoder(body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON", logger)
		return decisionRequest{}, false
	}
	return req, true
}

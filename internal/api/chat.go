package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/rulesmith/rulesmith/internal/chat"
	"github.com/rulesmith/rulesmith/internal/rules"
	"github.com/rulesmith/rulesmith/internal/security"
	"github.com/rulesmith/rulesmith/internal/workflow"
)

// maxChatBody caps conversational request bodies. Rule text is short;
// anything larger is not a rule request.
const maxChatBody = 64 << 10

// chatHandler serves the conversational endpoints: the full workflow
// run and the parse-only preview.
type chatHandler struct {
	svc    *chat.Service
	screen *security.PromptValidator
	logger *slog.Logger
}

// chatRequest is the wire shape shared by chat and parse. A missing
// session_id starts a new session.
type chatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
	Industry  string `json:"industry"`
}

// chatResponse carries the formatted reply plus the structured outcome
// for clients that want more than prose. Workflow is set only by the
// full chat endpoint.
type chatResponse struct {
	SessionID string           `json:"session_id"`
	Reply     string           `json:"reply"`
	Rule      *rules.Rule      `json:"rule,omitempty"`
	Workflow  *workflow.Result `json:"workflow,omitempty"`
}

// send runs one message through the full workflow: parse, conflict and
// impact analysis, orchestration, and generation when the rule is clean.
func (h *chatHandler) send(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeRequest(w, r)
	if !ok {
		return
	}

	reply, err := h.svc.Chat(r.Context(), req)
	if err != nil {
		h.respondError(w, err, "chat_failed", "failed to process message")
		return
	}

	result := reply.Result
	writeData(w, http.StatusOK, chatResponse{
		SessionID: reply.SessionID.String(),
		Reply:     reply.Text,
		Rule:      reply.Rule,
		Workflow:  &result,
	})
}

// parse runs the parser agent alone: retrieval-grounded structuring
// with no conflict analysis and no generation.
func (h *chatHandler) parse(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeRequest(w, r)
	if !ok {
		return
	}

	reply, err := h.svc.ParseOnly(r.Context(), req)
	if err != nil {
		h.respondError(w, err, "parse_failed", "failed to parse rule")
		return
	}

	writeData(w, http.StatusOK, chatResponse{
		SessionID: reply.SessionID.String(),
		Reply:     reply.Text,
		Rule:      reply.Rule,
	})
}

// decodeRequest parses the shared request shape and screens the
// message for prompt injection. A hit is logged, not rejected; rule
// text is legitimately imperative.
func (h *chatHandler) decodeRequest(w http.ResponseWriter, r *http.Request) (chat.Request, bool) {
	var req chatRequest
	body := http.MaxBytesReader(w, r.Body, maxChatBody)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON", h.logger)
		return chat.Request{}, false
	}

	id := uuid.Nil
	if req.SessionID != "" {
		parsed, err := uuid.Parse(req.SessionID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_session_id", "session_id must be a UUID", h.logger)
			return chat.Request{}, false
		}
		id = parsed
	}

	if res := h.screen.Validate(req.Message); !res.Safe {
		h.logger.Warn("possible prompt injection in message",
			slog.Int("patterns", len(res.Patterns)),
			slog.String("request_id", requestIDFromContext(r.Context())),
		)
	}

	return chat.Request{SessionID: id, Message: req.Message, Industry: req.Industry}, true
}

func (h *chatHandler) respondError(w http.ResponseWriter, err error, code, message string) {
	if errors.Is(err, chat.ErrSessionNotFound) {
		writeError(w, http.StatusNotFound, "session_not_found", "session not found", h.logger)
		return
	}
	h.logger.Error("chat request failed", slog.String("error", err.Error()))
	writeError(w, http.StatusInternalServerError, code, message, h.logger)
}

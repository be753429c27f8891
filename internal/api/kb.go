package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/rulesmith/rulesmith/internal/chat"
	"github.com/rulesmith/rulesmith/internal/security"
)

// kbHandler serves knowledge-base builds and stats. A nil roots
// validator means document ingestion is unrestricted; the server
// installs one whenever document roots are configured.
type kbHandler struct {
	svc    *chat.Service
	roots  *security.Path
	logger *slog.Logger
}

type buildRequest struct {
	Paths []string `json:"paths"`
}

// build chunks and embeds the named documents into the knowledge base.
// Paths are validated against the configured document roots first so a
// request cannot index arbitrary server files.
func (h *kbHandler) build(w http.ResponseWriter, r *http.Request) {
	var req buildRequest
	body := http.MaxBytesReader(w, r.Body, maxImportBody)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON", h.logger)
		return
	}
	if len(req.Paths) == 0 {
		writeError(w, http.StatusBadRequest, "paths_required", "at least one document path is required", h.logger)
		return
	}

	paths := req.Paths
	if h.roots != nil {
		paths = make([]string, 0, len(req.Paths))
		for _, p := range req.Paths {
			validated, err := h.roots.Validate(p)
			if err != nil {
				h.logger.Warn("rejected document path", slog.String("error", err.Error()))
				writeError(w, http.StatusBadRequest, "invalid_path", "document path is outside allowed directories", h.logger)
				return
			}
			paths = append(paths, validated)
		}
	}

	result := h.svc.BuildKnowledgeBase(r.Context(), paths)
	writeData(w, http.StatusOK, map[string]any{
		"status": result.Status,
		"chunks": result.Chunks,
		"ok":     result.OK,
	})
}

func (h *kbHandler) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.KnowledgeStats(r.Context())
	if err != nil {
		writeError(w, http.StatusNotFound, "kb_not_configured", "knowledge base is not configured", h.logger)
		return
	}
	writeData(w, http.StatusOK, stats)
}

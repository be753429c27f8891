package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/rulesmith/rulesmith/internal/persist"
)

const defaultChangelogLimit = 100

// changelogHandler serves the persistence audit trail.
type changelogHandler struct {
	persist *persist.Manager
	logger  *slog.Logger
}

// list returns audit entries newest first, optionally filtered by
// component (knowledge_base, rules, workflow) and capped by limit.
func (h *changelogHandler) list(w http.ResponseWriter, r *http.Request) {
	entries, err := h.persist.ChangeLog()
	if err != nil {
		h.logger.Error("reading changelog failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "changelog_failed", "failed to read changelog", h.logger)
		return
	}

	if component := r.URL.Query().Get("component"); component != "" {
		filtered := entries[:0]
		for _, e := range entries {
			if e.Component == component {
				filtered = append(filtered, e)
			}
		}
		entries = filtered
	}

	// The log is stored in append order; readers want recent first.
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}

	limit := defaultChangelogLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer", h.logger)
			return
		}
		limit = parsed
	}
	if len(entries) > limit {
		entries = entries[:limit]
	}

	writeData(w, http.StatusOK, map[string]any{
		"entries": entries,
		"count":   len(entries),
	})
}

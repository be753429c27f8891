package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/rulesmith/rulesmith/internal/chat"
	"github.com/rulesmith/rulesmith/internal/rules"
	"github.com/rulesmith/rulesmith/internal/versioning"
)

// maxImportBody caps tabular import bodies. Spreadsheets of business
// rules run to hundreds of rows, not megabytes.
const maxImportBody = 4 << 20

// rulesHandler serves the rule store read endpoints, version history,
// store-backed generation, and tabular import.
type rulesHandler struct {
	svc      *chat.Service
	store    *rules.Store
	versions *versioning.Manager
	logger   *slog.Logger
}

func (h *rulesHandler) list(w http.ResponseWriter, r *http.Request) {
	all := h.store.List()
	writeData(w, http.StatusOK, map[string]any{
		"rules": all,
		"count": len(all),
	})
}

func (h *rulesHandler) get(w http.ResponseWriter, r *http.Request) {
	rule, ok := h.store.FindByID(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "rule_not_found", "rule not found", h.logger)
		return
	}
	writeData(w, http.StatusOK, rule)
}

// schema returns the JSON schema of the rule wire format so clients
// can validate rule payloads before sending or after receiving them.
func (h *rulesHandler) schema(w http.ResponseWriter, r *http.Request) {
	s, err := rules.Schema()
	if err != nil {
		h.logger.Error("deriving rule schema", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "schema_failed", "could not derive rule schema", h.logger)
		return
	}
	writeData(w, http.StatusOK, s)
}

// history returns full past snapshots of the rule, newest first. A
// rule with no recorded versions yields an empty list, not an error;
// the store may hold rules imported before versioning was enabled.
func (h *rulesHandler) history(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	versions := h.versions.History(id)
	if versions == nil {
		versions = []rules.Rule{}
	}
	writeData(w, http.StatusOK, map[string]any{
		"rule_id":  id,
		"versions": versions,
		"count":    len(versions),
	})
}

func (h *rulesHandler) versionSummary(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, h.versions.GetSummary(r.PathValue("id")))
}

// generate produces the artifact pair for a stored rule. Calling the
// endpoint is the approval, so an absent decision defaults to proceed;
// an explicit phrase still goes through the orchestration gate.
func (h *rulesHandler) generate(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeDecision(w, r, h.logger)
	if !ok {
		return
	}
	decision := req.Decision
	if strings.TrimSpace(decision) == "" {
		decision = "proceed"
	}

	outcome, err := h.svc.GenerateForRule(r.Context(), r.PathValue("id"), decision)
	if err != nil {
		if errors.Is(err, rules.ErrRuleNotFound) {
			writeError(w, http.StatusNotFound, "rule_not_found", "rule not found", h.logger)
			return
		}
		h.logger.Error("generation failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "generation_failed", "failed to generate rule files", h.logger)
		return
	}
	writeData(w, http.StatusOK, outcome)
}

// importRequest is a parsed table: a header row plus data rows, as
// produced by any client-side CSV or spreadsheet reader.
type importRequest struct {
	Source string     `json:"source"`
	Header []string   `json:"header"`
	Rows   [][]string `json:"rows"`
}

// importTable extracts rules from the submitted table, stores them
// with import provenance, and indexes them for retrieval.
func (h *rulesHandler) importTable(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	body := http.MaxBytesReader(w, r.Body, maxImportBody)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON", h.logger)
		return
	}
	if len(req.Header) == 0 {
		writeError(w, http.StatusBadRequest, "header_required", "header row is required", h.logger)
		return
	}
	if req.Source == "" {
		req.Source = "upload.csv"
	}

	outcome, err := h.svc.ImportRules(r.Context(), req.Source, req.Header, req.Rows)
	if err != nil {
		h.logger.Error("rule import failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "import_failed", "failed to import rules", h.logger)
		return
	}
	writeData(w, http.StatusOK, outcome)
}

package api

import (
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/rulesmith/rulesmith/internal/security"
)

// artifactHandler serves generated rule files for download. Names are
// restricted to plain file names and re-checked against the artifacts
// directory, so the handler cannot be steered outside it.
type artifactHandler struct {
	dir    string
	root   *security.Path
	logger *slog.Logger
}

func (h *artifactHandler) download(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		writeError(w, http.StatusBadRequest, "invalid_name", "artifact name must be a plain file name", h.logger)
		return
	}

	path, err := h.root.Validate(filepath.Join(h.dir, name))
	if err != nil {
		writeError(w, http.StatusNotFound, "artifact_not_found", "artifact not found", h.logger)
		return
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		writeError(w, http.StatusNotFound, "artifact_not_found", "artifact not found", h.logger)
		return
	}

	// Set the type before ServeFile so sniffing does not override it.
	switch filepath.Ext(name) {
	case ".drl":
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	case ".gdst":
		w.Header().Set("Content-Type", "application/xml")
	}
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	http.ServeFile(w, r, path)
}

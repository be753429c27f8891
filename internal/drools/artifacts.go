package drools

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rulesmith/rulesmith/internal/rules"
)

// Fallback filenames for rules that carry no ID yet.
const (
	defaultDRLName  = "generated_rule.drl"
	defaultGDSTName = "generated_table.gdst"
)

// Artifacts holds the on-disk paths of a generated rule pair. The
// paths are what the download endpoints serve.
type Artifacts struct {
	DRLPath  string `json:"drl_path"`
	GDSTPath string `json:"gdst_path"`
}

// SaveArtifacts writes the DRL and GDST sources under dir, naming
// both files after the rule ID when one is present. Files for the
// same rule are overwritten on regeneration.
func SaveArtifacts(dir string, rule rules.Rule, drl, gdst string) (Artifacts, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Artifacts{}, fmt.Errorf("creating artifacts directory: %w", err)
	}

	drlName, gdstName := defaultDRLName, defaultGDSTName
	if id := sanitizeName(rule.RuleID); id != "" {
		drlName = id + ".drl"
		gdstName = id + ".gdst"
	}

	a := Artifacts{
		DRLPath:  filepath.Join(dir, drlName),
		GDSTPath: filepath.Join(dir, gdstName),
	}
	if err := os.WriteFile(a.DRLPath, []byte(drl), 0o644); err != nil {
		return Artifacts{}, fmt.Errorf("writing DRL file: %w", err)
	}
	if err := os.WriteFile(a.GDSTPath, []byte(gdst), 0o644); err != nil {
		return Artifacts{}, fmt.Errorf("writing GDST file: %w", err)
	}
	return a, nil
}

// sanitizeName keeps artifact filenames free of path separators and
// shell-hostile characters regardless of what ended up in a rule ID.
func sanitizeName(id string) string {
	var b strings.Builder
	b.Grow(len(id))
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '.', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

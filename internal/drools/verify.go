package drools

import "strings"

// Result is the outcome of artifact verification.
type Result struct {
	Valid  bool   `json:"valid"`
	Detail string `json:"detail"`
}

// Verify runs surface checks over a generated artifact pair: both
// must be non-empty, the DRL must carry rule and when keywords, and
// the GDST must look like markup.
//
// TODO: replace the keyword heuristics with a real compilation check
// once a Drools engine is reachable from this service.
func Verify(drl, gdst string) Result {
	if strings.TrimSpace(drl) == "" || strings.TrimSpace(gdst) == "" {
		return Result{Detail: "generated content is empty"}
	}
	lower := strings.ToLower(drl)
	if !strings.Contains(lower, "rule") || !strings.Contains(lower, "when") {
		return Result{Detail: "DRL content is missing rule or when structure"}
	}
	if !strings.Contains(gdst, "<") || !strings.Contains(gdst, ">") {
		return Result{Detail: "GDST content does not look like XML"}
	}
	return Result{Valid: true, Detail: "structure checks passed"}
}

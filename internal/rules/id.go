package rules

import (
	"fmt"
	"strconv"
	"strings"
)

// AssignID returns rule with a RuleID filled in when it is missing.
// Assignment is deterministic: when existing rules share the proposed
// rule's name (case-insensitive), the new ID continues that series at
// the highest numeric suffix plus one, keeping the stem and zero
// padding of the series. Otherwise the ID comes from the running
// counter over the collection size, BR001 onward. Candidates already
// taken by other rules are skipped.
func AssignID(rule Rule, existing []Rule) Rule {
	if rule.RuleID != "" {
		return rule
	}

	taken := make(map[string]struct{}, len(existing))
	for _, ex := range existing {
		if ex.RuleID != "" {
			taken[ex.RuleID] = struct{}{}
		}
	}

	stem, next, width := "BR", len(existing)+1, 3
	found := false
	for _, ex := range existing {
		if ex.RuleID == "" || !strings.EqualFold(ex.Name, rule.Name) {
			continue
		}
		s, n, w := splitNumericSuffix(ex.RuleID)
		if !found || n >= next {
			stem, next, width, found = s, n+1, w, true
		}
	}

	id := fmt.Sprintf("%s%0*d", stem, width, next)
	for {
		if _, clash := taken[id]; !clash {
			break
		}
		next++
		id = fmt.Sprintf("%s%0*d", stem, width, next)
	}

	rule.RuleID = id
	return rule
}

// splitNumericSuffix splits an ID into its stem and trailing number,
// reporting the digit width so the series keeps its zero padding. IDs
// without a numeric suffix count as the first of their series.
func splitNumericSuffix(id string) (string, int, int) {
	i := len(id)
	for i > 0 && id[i-1] >= '0' && id[i-1] <= '9' {
		i--
	}
	if i == len(id) {
		return id, 1, 1
	}
	n, err := strconv.Atoi(id[i:])
	if err != nil {
		// Digit run too long for an int; treat the whole ID as a stem.
		return id, 1, 1
	}
	return id[:i], n, len(id) - i
}

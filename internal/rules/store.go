package rules

import (
	"errors"
	"fmt"
	"sync"
)

// Store errors.
var (
	// ErrDuplicateID is returned by Add when the collection already
	// holds a rule with the same ID.
	ErrDuplicateID = errors.New("duplicate rule id")

	// ErrRuleNotFound is returned by Replace when no rule with the
	// given ID exists.
	ErrRuleNotFound = errors.New("rule not found")
)

// Store is an ordered, in-memory rule collection safe for concurrent
// use. It enforces the unique-ID invariant at its boundary; file
// persistence of the collection belongs to the session persistence
// layer, which hydrates and saves the store's contents.
type Store struct {
	mu    sync.RWMutex
	rules []Rule
}

// NewStore creates an empty rule collection.
func NewStore() *Store {
	return &Store{}
}

// Add appends rule to the collection, assigning an ID when one is
// missing, and returns the stored rule. Rules whose ID is already
// taken are rejected with ErrDuplicateID.
func (s *Store) Add(rule Rule) (Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rule = AssignID(rule, s.rules)
	for _, ex := range s.rules {
		if ex.RuleID == rule.RuleID {
			return Rule{}, fmt.Errorf("%w: %s", ErrDuplicateID, rule.RuleID)
		}
	}

	s.rules = append(s.rules, rule)
	return rule, nil
}

// Replace swaps the stored rule carrying updated's ID for updated,
// keeping its position in the collection.
func (s *Store) Replace(updated Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, ex := range s.rules {
		if ex.RuleID == updated.RuleID {
			s.rules[i] = updated
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrRuleNotFound, updated.RuleID)
}

// List returns a copy of the collection in insertion order.
func (s *Store) List() []Rule {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Rule, len(s.rules))
	copy(out, s.rules)
	return out
}

// FindByID returns the rule with the given ID.
func (s *Store) FindByID(id string) (Rule, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, ex := range s.rules {
		if ex.RuleID == id {
			return ex, true
		}
	}
	return Rule{}, false
}

// Len returns the number of rules in the collection.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rules)
}

// SetAll replaces the whole collection, used when hydrating a saved
// session. The slice is copied; later mutations of the argument do not
// reach the store.
func (s *Store) SetAll(rules []Rule) {
	cp := make([]Rule, len(rules))
	copy(cp, rules)

	s.mu.Lock()
	s.rules = cp
	s.mu.Unlock()
}

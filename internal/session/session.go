// Package session holds per-conversation state so concurrent
// conversations stay isolated. The store replaces the original
// process-wide last-response variable with per-session records keyed
// by UUID.
package session

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rulesmith/rulesmith/internal/llm"
	"github.com/rulesmith/rulesmith/internal/rules"
)

// ErrNotFound indicates the requested session does not exist.
var ErrNotFound = errors.New("session not found")

// Session is one conversation's state: the industry setting, the
// exchange history the workflow folds into prompts, and the last
// parsed rule that the generate-files surface consumes.
type Session struct {
	ID        uuid.UUID      `json:"id"`
	Industry  string         `json:"industry"`
	History   []llm.Exchange `json:"history"`
	LastRule  *rules.Rule    `json:"last_rule,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Store is an in-memory session collection safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]Session
}

// NewStore creates an empty session store.
func NewStore() *Store {
	return &Store{sessions: make(map[uuid.UUID]Session)}
}

// Create starts a new session with a fresh UUID.
func (s *Store) Create(industry string) Session {
	now := time.Now()
	sn := Session{
		ID:        uuid.New(),
		Industry:  industry,
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	s.sessions[sn.ID] = sn
	s.mu.Unlock()
	return sn
}

// Get returns a copy of the session with the given ID.
func (s *Store) Get(id uuid.UUID) (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sn, ok := s.sessions[id]
	if !ok {
		return Session{}, false
	}
	return cloneSession(sn), true
}

// Update applies fn to the session under the write lock and bumps
// UpdatedAt. Returns ErrNotFound when no session carries the ID.
func (s *Store) Update(id uuid.UUID, fn func(*Session)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sn, ok := s.sessions[id]
	if !ok {
		return ErrNotFound
	}

	fn(&sn)
	sn.ID = id // the ID is the map key and must not drift
	sn.UpdatedAt = time.Now()
	s.sessions[id] = sn
	return nil
}

// AppendExchange records one completed user/assistant round.
func (s *Store) AppendExchange(id uuid.UUID, ex llm.Exchange) error {
	return s.Update(id, func(sn *Session) {
		sn.History = append(sn.History, ex)
	})
}

// Delete removes the session with the given ID.
func (s *Store) Delete(id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return ErrNotFound
	}
	delete(s.sessions, id)
	return nil
}

// List returns copies of all sessions ordered by creation time.
func (s *Store) List() []Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Session, 0, len(s.sessions))
	for _, sn := range s.sessions {
		out = append(out, cloneSession(sn))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// cloneSession copies the mutable parts of a session so callers never
// share slice backing with the store. Rule payloads are replaced
// wholesale on update, never edited in place, so a shallow rule copy
// is enough.
func cloneSession(sn Session) Session {
	out := sn
	out.History = append([]llm.Exchange(nil), sn.History...)
	if sn.LastRule != nil {
		r := *sn.LastRule
		out.LastRule = &r
	}
	return out
}

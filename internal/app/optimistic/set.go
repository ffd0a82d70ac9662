// Package optimistic implements an identifier set that is mutated ahead of
// remote confirmation and reconciled when the remote call settles.
//
// A Set is owned by one identity at a time. Binding a different owner clears
// it and starts a new epoch; completions and refreshes that began in an
// older epoch are discarded in every mode.
//
// Callers run the remote write for each Token through a Chain keyed by id,
// in both modes, so the writes for one id reach the remote in toggle order
// and complete in that order. The Mode decides what a completion may do to
// the local state:
//
//   - LastCompleted applies every completion as it settles. A failed
//     toggle reverts the id to its state before that toggle even when a
//     newer toggle has since been flipped locally.
//   - Versioned stamps each flip with a per-id version. Only the newest
//     toggle for an id may revert it; older completions are discarded.
//     Refreshes keep the local state of ids flipped after the refresh began.
package optimistic

import (
	"slices"
	"sync"
)

// Mode selects how concurrent completions for one id are reconciled.
type Mode string

const (
	// LastCompleted applies every completion in the order it settles.
	LastCompleted Mode = "last_completed"

	// Versioned discards completions superseded by a newer flip.
	Versioned Mode = "versioned"
)

// ParseMode maps a configuration value onto a Mode, defaulting to LastCompleted.
func ParseMode(s string) Mode {
	if Mode(s) == Versioned {
		return Versioned
	}

	return LastCompleted
}

// Outcome describes what settling a flip did to the set.
type Outcome string

const (
	// Confirmed means the remote write succeeded; the flip stands.
	Confirmed Outcome = "confirmed"

	// RolledBack means the remote write failed and the flip was undone.
	RolledBack Outcome = "rolled_back"

	// Discarded means the completion was stale and left the set untouched.
	Discarded Outcome = "discarded"
)

// Token identifies one optimistic flip.
type Token struct {
	ID      string
	Was     bool
	Version uint64
	epoch   uint64
}

// RefreshToken marks the start of a remote read that will replace the set.
type RefreshToken struct {
	epoch uint64
	seq   uint64
}

// Set is a concurrency-safe optimistic membership set.
type Set struct {
	mu       sync.RWMutex
	mode     Mode
	owner    string
	epoch    uint64
	seq      uint64
	members  map[string]struct{}
	versions map[string]uint64
	touched  map[string]uint64
}

// New returns an empty set reconciling in mode.
func New(mode Mode) *Set {
	return &Set{
		mode:     mode,
		members:  make(map[string]struct{}),
		versions: make(map[string]uint64),
		touched:  make(map[string]uint64),
	}
}

// Mode reports the reconciliation mode.
func (s *Set) Mode() Mode {
	return s.mode
}

// Bind makes owner the set's owner. When the owner changes the set is
// cleared and a new epoch begins. It reports whether that happened.
func (s *Set) Bind(owner string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if owner == s.owner {
		return false
	}

	s.owner = owner
	s.resetLocked()

	return true
}

// Owner returns the current owner, empty when unbound.
func (s *Set) Owner() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.owner
}

func (s *Set) resetLocked() {
	s.epoch++
	clear(s.members)
	clear(s.versions)
	clear(s.touched)
}

// Contains reports membership. It never blocks on remote work.
func (s *Set) Contains(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.members[id]

	return ok
}

// Len returns the number of members.
func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.members)
}

// Snapshot returns the members in sorted order.
func (s *Set) Snapshot() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.members))
	for id := range s.members {
		ids = append(ids, id)
	}

	slices.Sort(ids)

	return ids
}

// Flip toggles id immediately and returns the token to settle it with.
func (s *Set) Flip(id string) Token {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, was := s.members[id]
	s.setLocked(id, !was)

	s.seq++
	s.versions[id]++
	s.touched[id] = s.seq

	return Token{ID: id, Was: was, Version: s.versions[id], epoch: s.epoch}
}

// Settle reconciles a flip with the result of its remote write.
func (s *Set) Settle(tok Token, err error) Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	if tok.epoch != s.epoch {
		return Discarded
	}

	if s.mode == Versioned && s.versions[tok.ID] != tok.Version {
		return Discarded
	}

	if err == nil {
		return Confirmed
	}

	s.setLocked(tok.ID, tok.Was)

	return RolledBack
}

// BeginRefresh marks the start of a remote read.
func (s *Set) BeginRefresh() RefreshToken {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return RefreshToken{epoch: s.epoch, seq: s.seq}
}

// ApplyRefresh replaces the members with ids. It reports false when the
// owner changed since BeginRefresh, in which case nothing is applied.
func (s *Set) ApplyRefresh(tok RefreshToken, ids []string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if tok.epoch != s.epoch {
		return false
	}

	next := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		next[id] = struct{}{}
	}

	if s.mode == Versioned {
		for id, at := range s.touched {
			if at <= tok.seq {
				continue
			}

			if _, ok := s.members[id]; ok {
				next[id] = struct{}{}
			} else {
				delete(next, id)
			}
		}
	}

	s.members = next

	return true
}

func (s *Set) setLocked(id string, member bool) {
	if member {
		s.members[id] = struct{}{}
		return
	}

	delete(s.members, id)
}

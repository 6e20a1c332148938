// Package session holds conversational state scoped to a single call. It
// is created when the call starts and discarded when the call ends;
// nothing in it outlives the session.
package session

import "sync"

// State tracks who the caller is and what has happened so far in the call.
// Tool handlers run one at a time, but the mutex keeps the state safe
// against observers reading it from other goroutines.
type State struct {
	mu sync.Mutex

	phone    string
	userID   *int64
	userName string
	actions  []string
}

func New() *State {
	return &State{}
}

// SetPhone records the caller's normalized phone number.
func (s *State) SetPhone(phone string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phone = phone
}

func (s *State) Phone() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phone
}

// Identify records the resolved user once a lookup succeeds.
func (s *State) Identify(userID int64, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := userID
	s.userID = &id
	s.userName = name
}

func (s *State) UserID() *int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.userID == nil {
		return nil
	}
	id := *s.userID
	return &id
}

func (s *State) UserName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userName
}

// RecordAction appends a human-readable description of a completed action,
// used for the end-of-call recap.
func (s *State) RecordAction(action string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actions = append(s.actions, action)
}

// Actions returns a copy of the recorded actions in order.
func (s *State) Actions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.actions))
	copy(out, s.actions)
	return out
}

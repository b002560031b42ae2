package project

import "sync"

// Sessions keeps one State per signed-in user.
type Sessions struct {
	mu     sync.Mutex
	states map[string]*State
	opts   []Option
}

func NewSessions(opts ...Option) *Sessions {
	return &Sessions{states: make(map[string]*State), opts: opts}
}

// For returns the user's state, creating it on first use.
func (s *Sessions) For(userID string) *State {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.states[userID]
	if !ok {
		st = NewState(s.opts...)
		s.states[userID] = st
	}
	return st
}

// SignOut drops the user's live project. Reports whether one existed.
func (s *Sessions) SignOut(userID string) bool {
	s.mu.Lock()
	st, ok := s.states[userID]
	delete(s.states, userID)
	s.mu.Unlock()

	if !ok {
		return false
	}
	_, had := st.Snapshot()
	st.Clear()
	return had
}

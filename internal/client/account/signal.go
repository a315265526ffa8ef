// Package account tracks which account the client is signed in as. The sync
// orchestrator only needs the account id, its access token and the
// entitlement flag; session mechanics live elsewhere and reach the client
// through a session file.
package account

import "sync"

// Session is the current sign-in. A nil *Session means signed out.
type Session struct {
	AccountID   string `json:"account_id"`
	AccessToken string `json:"access_token"`
	Entitled    bool   `json:"entitled"`
}

// ID returns the account id of s, or "" when s is nil.
func (s *Session) ID() string {
	if s == nil {
		return ""
	}
	return s.AccountID
}

func (s *Session) clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

func (s *Session) equal(o *Session) bool {
	if s == nil || o == nil {
		return s == o
	}
	return *s == *o
}

// Signal holds the current session and notifies observers when it changes.
type Signal struct {
	mu      sync.Mutex
	cur     *Session
	subs    map[int]func(*Session)
	nextSub int
}

func NewSignal(initial *Session) *Signal {
	return &Signal{cur: initial.clone(), subs: map[int]func(*Session){}}
}

func (s *Signal) Get() *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cur.clone()
}

// Set replaces the session. Observers run synchronously, and only when the
// value actually changed.
func (s *Signal) Set(next *Session) {
	s.mu.Lock()
	if s.cur.equal(next) {
		s.mu.Unlock()
		return
	}
	s.cur = next.clone()
	fns := make([]func(*Session), 0, len(s.subs))
	for i := 1; i <= s.nextSub; i++ {
		if fn, ok := s.subs[i]; ok {
			fns = append(fns, fn)
		}
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(next.clone())
	}
}

func (s *Signal) Subscribe(fn func(*Session)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSub++
	id := s.nextSub
	s.subs[id] = fn
	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

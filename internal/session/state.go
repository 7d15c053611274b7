// Package session holds the process-wide view of the signed-in user: whether
// a session exists, the access token in use and the claims decoded from it.
package session

import (
	"sync"

	"github.com/raine/authclient/internal/claims"
)

// Snapshot is an immutable copy of the session state.
type Snapshot struct {
	LoggedIn    bool
	AccessToken string
	Claims      claims.Claims
}

// State is safe for concurrent use. Subscribers are called synchronously
// after every change, outside the internal lock.
type State struct {
	mu     sync.RWMutex
	snap   Snapshot
	subs   map[int]func(Snapshot)
	nextID int
}

func New() *State {
	return &State{subs: make(map[int]func(Snapshot))}
}

// SetToken marks the session as logged in with accessToken and recomputes
// the claims. An undecodable token still logs the user in; the decode error
// is returned and Claims is left nil.
func (s *State) SetToken(accessToken string) error {
	c, err := claims.Decode(accessToken)

	s.mu.Lock()
	s.snap = Snapshot{
		LoggedIn:    true,
		AccessToken: accessToken,
		Claims:      c,
	}
	snap := s.snapshotLocked()
	subs := s.subscribersLocked()
	s.mu.Unlock()

	notify(subs, snap)
	return err
}

// Clear drops the session.
func (s *State) Clear() {
	s.mu.Lock()
	s.snap = Snapshot{}
	subs := s.subscribersLocked()
	s.mu.Unlock()

	notify(subs, Snapshot{})
}

func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *State) LoggedIn() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.LoggedIn
}

// Subscribe registers fn for change notifications and returns a function
// that removes it.
func (s *State) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

func (s *State) snapshotLocked() Snapshot {
	snap := s.snap
	snap.Claims = claims.Clone(s.snap.Claims)
	return snap
}

func (s *State) subscribersLocked() []func(Snapshot) {
	subs := make([]func(Snapshot), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	return subs
}

func notify(subs []func(Snapshot), snap Snapshot) {
	for _, fn := range subs {
		// Each subscriber gets its own claims copy
		s := snap
		s.Claims = claims.Clone(snap.Claims)
		fn(s)
	}
}

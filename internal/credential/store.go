// Package credential holds the access/refresh token pair used by the
// authenticated client. Reads are always served from a local cache so they
// never block on disk or network; writes go through to an optional durable
// backend.
package credential

import (
	"errors"
	"fmt"
	"sync"
)

// Kind names a persisted token. The values double as storage keys.
type Kind string

const (
	AccessToken  Kind = "access_token"
	RefreshToken Kind = "refresh_token"
)

var ErrIncompleteCredential = errors.New("credential requires both access and refresh token")

// Credential is an access/refresh token pair.
type Credential struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Complete reports whether both tokens are present.
func (c Credential) Complete() bool {
	return c.AccessToken != "" && c.RefreshToken != ""
}

// Store is the synchronous token holder consumed by the client.
// A missing token is reported through the boolean, never as an error.
type Store interface {
	SetToken(kind Kind, value string) error
	SetCredential(c Credential) error
	AccessToken() (string, bool)
	RefreshToken() (string, bool)
	Clear() error
}

// Backend persists token values. Implementations must write all values of a
// single Save call atomically.
type Backend interface {
	Load() (map[Kind]string, error)
	Save(values map[Kind]string) error
	Delete(kinds ...Kind) error
	Close() error
}

// CachedStore implements Store on top of an in-memory cache and an optional
// Backend.
type CachedStore struct {
	mu      sync.RWMutex
	values  map[Kind]string
	backend Backend
}

var _ Store = (*CachedStore)(nil)

// NewMemoryStore creates a store that keeps tokens for the life of the
// process only.
func NewMemoryStore() *CachedStore {
	return &CachedStore{values: make(map[Kind]string)}
}

// Open creates a store backed by b and hydrates the cache from it.
func Open(b Backend) (*CachedStore, error) {
	values, err := b.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load tokens: %w", err)
	}

	s := &CachedStore{values: make(map[Kind]string), backend: b}
	for kind, v := range values {
		if v != "" {
			s.values[kind] = v
		}
	}

	// A lone token left over from an interrupted write is unusable
	if s.has(AccessToken) != s.has(RefreshToken) {
		if err := s.Clear(); err != nil {
			return nil, err
		}
	}

	return s, nil
}

func (s *CachedStore) has(kind Kind) bool {
	_, ok := s.values[kind]
	return ok
}

// SetToken stores a single token. An empty value removes it.
func (s *CachedStore) SetToken(kind Kind, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if value == "" {
		delete(s.values, kind)
		if s.backend != nil {
			if err := s.backend.Delete(kind); err != nil {
				return fmt.Errorf("failed to delete %s: %w", kind, err)
			}
		}
		return nil
	}

	s.values[kind] = value
	if s.backend != nil {
		if err := s.backend.Save(map[Kind]string{kind: value}); err != nil {
			return fmt.Errorf("failed to save %s: %w", kind, err)
		}
	}
	return nil
}

// SetCredential replaces both tokens in one write. An incomplete credential
// is rejected so that a partial pair is never persisted.
func (s *CachedStore) SetCredential(c Credential) error {
	if !c.Complete() {
		return ErrIncompleteCredential
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.values[AccessToken] = c.AccessToken
	s.values[RefreshToken] = c.RefreshToken
	if s.backend != nil {
		err := s.backend.Save(map[Kind]string{
			AccessToken:  c.AccessToken,
			RefreshToken: c.RefreshToken,
		})
		if err != nil {
			return fmt.Errorf("failed to save credential: %w", err)
		}
	}
	return nil
}

func (s *CachedStore) AccessToken() (string, bool) {
	return s.get(AccessToken)
}

func (s *CachedStore) RefreshToken() (string, bool) {
	return s.get(RefreshToken)
}

// Credential returns the cached pair, which may be empty.
func (s *CachedStore) Credential() Credential {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Credential{
		AccessToken:  s.values[AccessToken],
		RefreshToken: s.values[RefreshToken],
	}
}

func (s *CachedStore) get(kind Kind) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[kind]
	return v, ok
}

// Clear removes both tokens. The cache is emptied even if the backend fails.
func (s *CachedStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values = make(map[Kind]string)
	if s.backend != nil {
		if err := s.backend.Delete(AccessToken, RefreshToken); err != nil {
			return fmt.Errorf("failed to clear tokens: %w", err)
		}
	}
	return nil
}

// Close releases the backend, if any.
func (s *CachedStore) Close() error {
	if s.backend == nil {
		return nil
	}
	return s.backend.Close()
}

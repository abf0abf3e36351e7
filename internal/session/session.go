// Package session holds the signed-in identity, its bearer credential and the
// aggregate counters derived for it. Values are passed explicitly to services
// through a Scope; nothing here is a package-level singleton.
package session

import (
	"sync"
	"time"

	"github.com/noah-isme/clinic-dashboard/internal/models"
)

// Session is the authenticated identity and credential of one browser session.
type Session struct {
	mu         sync.RWMutex
	id         string
	identity   *models.User
	credential string
	expiresAt  time.Time
}

// Snapshot is the persisted form of a Session.
type Snapshot struct {
	ID         string       `json:"id"`
	Identity   *models.User `json:"identity,omitempty"`
	Credential string       `json:"credential,omitempty"`
	ExpiresAt  time.Time    `json:"expires_at,omitempty"`
}

// New returns an empty session with the given id.
func New(id string) *Session {
	return &Session{id: id}
}

// Restore rebuilds a session from its snapshot. Expired credentials are dropped.
func Restore(s Snapshot, now time.Time) *Session {
	sess := &Session{id: s.ID}
	if s.Credential == "" || (!s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)) {
		return sess
	}
	sess.credential = s.Credential
	sess.identity = cloneUser(s.Identity)
	sess.expiresAt = s.ExpiresAt
	return sess
}

// ID returns the session id.
func (s *Session) ID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.id
}

// Rotate moves the session to a new id and returns the previous one. Callers
// rotate on every sign-in so an id known before authentication is never
// promoted to an authenticated session.
func (s *Session) Rotate(id string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	previous := s.id
	s.id = id
	return previous
}

// Login stores the identity and credential returned by a successful sign-in.
func (s *Session) Login(identity models.User, credential string) {
	expiresAt, _ := TokenExpiry(credential)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identity = cloneUser(&identity)
	s.credential = credential
	s.expiresAt = expiresAt
}

// RefreshIdentity replaces the identity after a profile fetch. It is a no-op
// once the session has been logged out.
func (s *Session) RefreshIdentity(identity models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.credential == "" {
		return
	}
	s.identity = cloneUser(&identity)
}

// Logout destroys the identity and credential.
func (s *Session) Logout() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identity = nil
	s.credential = ""
	s.expiresAt = time.Time{}
}

// Identity returns a copy of the signed-in user, or nil.
func (s *Session) Identity() *models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneUser(s.identity)
}

// Credential returns the bearer token, or "".
func (s *Session) Credential() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.credential
}

// Authenticated reports whether a credential is present.
func (s *Session) Authenticated() bool {
	return s.Credential() != ""
}

// Snapshot returns the persisted form of the session.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		ID:         s.id,
		Identity:   cloneUser(s.identity),
		Credential: s.credential,
		ExpiresAt:  s.expiresAt,
	}
}

func cloneUser(u *models.User) *models.User {
	if u == nil {
		return nil
	}
	copy := *u
	if u.Clinic != nil {
		clinic := *u.Clinic
		copy.Clinic = &clinic
	}
	return &copy
}

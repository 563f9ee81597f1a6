package session

import (
	"sync"
	"time"

	"github.com/discotek/discotek-go/internal/users"
	pkgerrors "github.com/discotek/discotek-go/pkg/errors"
	"github.com/golang-jwt/jwt/v5"
)

// Session binds one authenticated user to the cart and checkout flows.
// Callers create one at login and drop it at logout; there is no global
// singleton. The bearer token is parsed without signature verification;
// verifying it is the backend's job.
type Session struct {
	token   string
	userID  string
	expires *time.Time

	mu   sync.RWMutex
	user *users.User
}

// New parses the bearer token and builds a session for its subject.
func New(token string) (*Session, error) {
	if token == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "Usuario no autenticado")
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "parse bearer token")
	}

	subject, err := claims.GetSubject()
	if err != nil || subject == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "token has no subject")
	}

	session := &Session{token: token, userID: subject}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		expiry := exp.Time
		session.expires = &expiry
	}
	return session, nil
}

// NewStatic builds a session from an explicit user id and an opaque
// credential, for deployments whose tokens are not JWTs.
func NewStatic(token, userID string) (*Session, error) {
	if token == "" || userID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "Usuario no autenticado")
	}
	return &Session{token: token, userID: userID}, nil
}

// Anonymous returns the unauthenticated session: a cart can exist for
// it locally, but nothing may be persisted or purchased.
func Anonymous() *Session {
	return &Session{}
}

// UserID returns the authenticated user id from the token claims.
func (s *Session) UserID() string {
	if s == nil {
		return ""
	}
	return s.userID
}

// Token returns the raw bearer credential.
func (s *Session) Token() string {
	if s == nil {
		return ""
	}
	return s.token
}

// Expired reports whether the token's exp claim has passed.
func (s *Session) Expired(now time.Time) bool {
	if s == nil {
		return true
	}
	return s.expires != nil && now.After(*s.expires)
}

// Snapshot returns a copy of the cached user record, or nil when none
// has been loaded yet.
func (s *Session) Snapshot() *users.User {
	if s == nil {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	copied := *s.user
	return &copied
}

// SetSnapshot replaces the cached user record. Checkout refreshes it
// after every wallet or points mutation.
func (s *Session) SetSnapshot(user *users.User) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if user == nil {
		s.user = nil
		return
	}
	copied := *user
	s.user = &copied
}

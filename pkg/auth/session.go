package auth

import (
	"crypto/sha256"
	"net/http"
	"time"

	"github.com/gorilla/sessions"
)

// Session value keys.
const (
	sessionKeyToken = "token"
)

// SessionStore keeps the session token in a signed cookie for browser clients.
type SessionStore struct {
	store *sessions.CookieStore
	name  string
}

// NewSessionStore creates a cookie-backed session store.
//
// The secret is SHA-256 hashed to derive a 32-byte signing key, so it must be
// identical on every instance behind a load balancer. Cookies live as long as
// the tokens they carry.
func NewSessionStore(secret, cookieName string, ttl time.Duration, secure bool) *SessionStore {
	key := sha256.Sum256([]byte(secret))

	store := sessions.NewCookieStore(key[:])
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(ttl / time.Second),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return &SessionStore{store: store, name: cookieName}
}

// Token returns the session token from the request cookie, if any.
func (s *SessionStore) Token(r *http.Request) (string, bool) {
	if _, err := r.Cookie(s.name); err != nil {
		return "", false
	}
	session, err := s.store.Get(r, s.name)
	if err != nil {
		return "", false
	}
	token, ok := session.Values[sessionKeyToken].(string)
	return token, ok && token != ""
}

// Save writes token into the session cookie.
func (s *SessionStore) Save(w http.ResponseWriter, r *http.Request, token string) error {
	session, _ := s.store.Get(r, s.name)
	session.Values[sessionKeyToken] = token
	return session.Save(r, w)
}

// Clear expires the session cookie.
func (s *SessionStore) Clear(w http.ResponseWriter, r *http.Request) error {
	session, _ := s.store.Get(r, s.name)
	delete(session.Values, sessionKeyToken)
	session.Options.MaxAge = -1
	return session.Save(r, w)
}

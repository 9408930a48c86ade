// Package session implements the cookie-backed session lifecycle:
// issuing a sealed session at login, validating it on every request,
// refreshing expired access credentials transparently, and invalidating
// sessions that cannot be recovered.
package session

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/securecookie"

	"github.com/dmorales/aulalink/internal/classroom"
)

// CookieName is the session cookie. The payload is JSON, sealed
// (authenticated and encrypted) by securecookie because it carries OAuth
// credentials.
const CookieName = "auth-session"

// TTL bounds the session regardless of access-credential rotation.
// Refreshing credentials never extends it.
const TTL = 7 * 24 * time.Hour

// Session is the cookie payload: the credential bundle, the identity
// snapshot taken at login, and the creation timestamp that anchors the
// outer TTL.
type Session struct {
	Credentials classroom.Credentials `json:"credentials"`
	Identity    classroom.Identity    `json:"identity"`
	CreatedAt   time.Time             `json:"created_at"`
}

// Codec seals and opens session cookies.
type Codec struct {
	sc     *securecookie.SecureCookie
	secure bool
}

// NewCodec creates a cookie codec. hashKey authenticates, blockKey
// encrypts; secure controls the cookie's Secure flag (true in
// production).
func NewCodec(hashKey, blockKey []byte, secure bool) *Codec {
	sc := securecookie.New(hashKey, blockKey)
	sc.SetSerializer(securecookie.JSONEncoder{})
	sc.MaxAge(int(TTL.Seconds()))

	return &Codec{sc: sc, secure: secure}
}

// Write seals sess and sets the cookie with the given max age.
func (c *Codec) Write(w http.ResponseWriter, sess *Session, maxAge time.Duration) error {
	encoded, err := c.sc.Encode(CookieName, sess)
	if err != nil {
		return fmt.Errorf("session: sealing cookie: %w", err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    encoded,
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})

	return nil
}

// Read opens the session cookie from the request. The error is the raw
// decode failure; the Manager maps it to the auth taxonomy.
func (c *Codec) Read(r *http.Request) (*Session, error) {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return nil, err
	}

	var sess Session
	if err := c.sc.Decode(CookieName, cookie.Value, &sess); err != nil {
		return nil, fmt.Errorf("session: opening cookie: %w", err)
	}

	return &sess, nil
}

// Clear expires the session cookie. Always paired with a 401 response so
// the client re-authenticates instead of retrying a stale cookie.
func (c *Codec) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

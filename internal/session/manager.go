package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/dmorales/aulalink/internal/classroom"
)

// Authentication errors. The HTTP layer maps all three to 401; they are
// distinct so logs and clients can tell a missing session from a dead one.
var (
	ErrUnauthenticated = errors.New("session: no session")
	ErrExpired         = errors.New("session: expired")
	ErrInvalid         = errors.New("session: invalid")
)

// probeTimeout bounds the identity-provider validity check. A probe that
// cannot complete fails closed (ErrUnauthenticated) without touching the
// cookie, since the session may still be good.
const probeTimeout = 10 * time.Second

// IdentityClient is the slice of the identity provider the manager
// needs. Satisfied by *classroom.OAuthClient.
type IdentityClient interface {
	UserInfo(ctx context.Context, accessToken string) (classroom.Identity, error)
	Refresh(ctx context.Context, refreshToken string) (classroom.Credentials, error)
}

// TokenRecorder persists refresh credentials for recovery. Calls are
// fire-and-forget side channels: they never block or fail authentication.
type TokenRecorder interface {
	SaveRefreshToken(ctx context.Context, userID, refreshToken string, expiry time.Time) error
}

// Manager validates, refreshes, and rotates sessions. Side effects are
// confined to cookie reads and writes; the store is only touched via the
// optional TokenRecorder, off the authentication path.
type Manager struct {
	codec    *Codec
	identity IdentityClient
	recorder TokenRecorder // optional
	logger   *slog.Logger

	// now is stubbed in tests to control TTL arithmetic.
	now func() time.Time
}

// NewManager creates a session manager. recorder may be nil.
func NewManager(codec *Codec, identity IdentityClient, recorder TokenRecorder, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}

	return &Manager{
		codec:    codec,
		identity: identity,
		recorder: recorder,
		logger:   logger,
		now:      time.Now,
	}
}

// Issue creates a fresh session after a successful code exchange and
// sets the cookie with the full TTL.
func (m *Manager) Issue(w http.ResponseWriter, creds classroom.Credentials, identity classroom.Identity) (*Session, error) {
	sess := &Session{
		Credentials: creds,
		Identity:    identity,
		CreatedAt:   m.now(),
	}

	if err := m.codec.Write(w, sess, TTL); err != nil {
		return nil, err
	}

	m.recordToken(sess)

	m.logger.Info("session issued",
		slog.String("user_id", identity.ID),
		slog.Time("created_at", sess.CreatedAt),
	)

	return sess, nil
}

// Clear invalidates the session cookie.
func (m *Manager) Clear(w http.ResponseWriter) {
	m.codec.Clear(w)
}

// Authenticate runs the session state machine for one request:
//
//	no cookie                  -> ErrUnauthenticated
//	malformed cookie           -> cookie cleared, ErrInvalid
//	session older than TTL     -> cookie cleared, ErrExpired
//	credential valid (probe)   -> identity returned, no mutation
//	credential dead + refresh  -> rotate, rewrite cookie (CreatedAt kept)
//	credential dead, no refresh or refresh failed
//	                           -> cookie cleared, ErrExpired
//	probe unreachable          -> ErrUnauthenticated (fail closed, no mutation)
func (m *Manager) Authenticate(w http.ResponseWriter, r *http.Request) (*Session, error) {
	sess, err := m.codec.Read(r)
	if errors.Is(err, http.ErrNoCookie) {
		return nil, ErrUnauthenticated
	}

	if err != nil {
		m.logger.Warn("rejecting malformed session cookie", slog.String("error", err.Error()))
		m.codec.Clear(w)

		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	if sess.Credentials.AccessToken == "" || sess.Identity.ID == "" {
		m.codec.Clear(w)

		return nil, fmt.Errorf("%w: incomplete payload", ErrInvalid)
	}

	age := m.now().Sub(sess.CreatedAt)
	if age >= TTL {
		m.logger.Info("session past its TTL",
			slog.String("user_id", sess.Identity.ID),
			slog.Duration("age", age),
		)
		m.codec.Clear(w)

		return nil, ErrExpired
	}

	probeCtx, cancel := context.WithTimeout(r.Context(), probeTimeout)
	defer cancel()

	if _, err := m.identity.UserInfo(probeCtx, sess.Credentials.AccessToken); err == nil {
		return sess, nil
	} else if !errors.Is(err, classroom.ErrUnauthorized) {
		// Provider unreachable or misbehaving: fail closed without
		// invalidating a possibly-good session.
		m.logger.Warn("identity probe failed",
			slog.String("user_id", sess.Identity.ID),
			slog.String("error", err.Error()),
		)

		return nil, fmt.Errorf("%w: identity probe failed", ErrUnauthenticated)
	}

	return m.refresh(w, r, sess, age)
}

// refresh rotates an expired access credential. The rewritten cookie
// keeps the original CreatedAt and only the remaining TTL, so rotation
// never extends the session's outer lifetime.
func (m *Manager) refresh(w http.ResponseWriter, r *http.Request, sess *Session, age time.Duration) (*Session, error) {
	if sess.Credentials.RefreshToken == "" {
		m.logger.Info("access credential expired, no refresh credential",
			slog.String("user_id", sess.Identity.ID),
		)
		m.codec.Clear(w)

		return nil, ErrExpired
	}

	creds, err := m.identity.Refresh(r.Context(), sess.Credentials.RefreshToken)
	if err != nil {
		m.logger.Warn("credential refresh failed",
			slog.String("user_id", sess.Identity.ID),
			slog.String("error", err.Error()),
		)
		m.codec.Clear(w)

		return nil, fmt.Errorf("%w: refresh failed", ErrExpired)
	}

	sess.Credentials = creds

	if err := m.codec.Write(w, sess, TTL-age); err != nil {
		return nil, err
	}

	m.recordToken(sess)

	m.logger.Info("session rotated",
		slog.String("user_id", sess.Identity.ID),
		slog.Time("created_at", sess.CreatedAt),
		slog.Time("new_expiry", creds.Expiry),
	)

	return sess, nil
}

// recordTokenTimeout bounds the background token persistence write.
const recordTokenTimeout = 5 * time.Second

// recordToken persists the refresh credential in the background. Failures
// are logged and dropped: this is a recovery side channel, never a read
// path for authentication.
func (m *Manager) recordToken(sess *Session) {
	if m.recorder == nil || sess.Credentials.RefreshToken == "" {
		return
	}

	userID := sess.Identity.ID
	creds := sess.Credentials

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), recordTokenTimeout)
		defer cancel()

		if err := m.recorder.SaveRefreshToken(ctx, userID, creds.RefreshToken, creds.Expiry); err != nil {
			m.logger.Warn("failed to persist refresh token",
				slog.String("user_id", userID),
				slog.String("error", err.Error()),
			)
		}
	}()
}

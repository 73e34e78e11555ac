// Package auth holds the session lifecycle: login, logout, hydration from
// the encrypted keystore and profile refresh.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/crewmark/attendance-client/internal/api"
	"github.com/crewmark/attendance-client/internal/app/domain/session"
	authsvc "github.com/crewmark/attendance-client/internal/app/services/auth"
	"github.com/crewmark/attendance-client/internal/keystore"
	"github.com/crewmark/attendance-client/pkg/logger"
)

// Service is the slice of the auth service the store depends on.
type Service interface {
	Login(ctx context.Context, crewID, pin string) (session.Session, error)
	Me(ctx context.Context) (session.Profile, error)
	VerifyToken(ctx context.Context, token string) (bool, error)
	Logout(ctx context.Context) error
}

var _ Service = (*authsvc.Service)(nil)

// Store owns the session. It persists the token and a cleaned profile to the
// keystore and exposes the authenticated state to the presentation layer.
type Store struct {
	svc  Service
	keys *keystore.Store
	log  *logger.Logger

	mu            sync.Mutex
	authenticated bool
	session       session.Session
	lastError     string
}

// New constructs an auth store.
func New(svc Service, keys *keystore.Store, log *logger.Logger) *Store {
	if log == nil {
		log = logger.NewDefault("auth-store")
	}
	return &Store{svc: svc, keys: keys, log: log}
}

// Login exchanges credentials for a session and persists it. On failure the
// store is left logged out with a user-facing error and nothing persisted.
func (s *Store) Login(ctx context.Context, crewID, pin string) error {
	sess, err := s.svc.Login(ctx, crewID, pin)
	if err != nil {
		s.mu.Lock()
		s.authenticated = false
		s.lastError = loginErrorMessage(err)
		s.mu.Unlock()
		return err
	}

	cleaned := session.CleanProfile(sess.User)
	if err := s.persist(sess.Token, cleaned); err != nil {
		s.log.WithError(err).Warn("persist session failed")
	}

	s.mu.Lock()
	s.authenticated = true
	s.session = session.Session{Token: sess.Token, User: cleaned}
	s.lastError = ""
	s.mu.Unlock()

	s.log.WithField("crew_id", crewID).Info("session established")
	return nil
}

// Logout clears the session. The server-side call is best-effort; the local
// session is always cleared, even when the backend is unreachable.
func (s *Store) Logout(ctx context.Context) {
	if err := s.svc.Logout(ctx); err != nil {
		s.log.WithError(err).Warn("server-side logout failed")
	}
	s.clearLocal()
	s.log.Info("session cleared")
}

// InitAuth hydrates the session from the keystore. A token that is locally
// expired or rejected by the backend demotes the store to logged out.
func (s *Store) InitAuth(ctx context.Context) error {
	token := s.keys.Token()
	if token == "" {
		return nil
	}

	if expired, ok := tokenExpired(token); ok && expired {
		s.log.Info("persisted token expired, clearing session")
		s.clearLocal()
		return nil
	} else if !ok {
		// Opaque token with no readable expiry: ask the backend instead.
		if valid, err := s.svc.VerifyToken(ctx, token); err == nil && !valid {
			s.log.Info("persisted token rejected by verify-token, clearing session")
			s.clearLocal()
			return nil
		}
	}

	profile, err := s.svc.Me(ctx)
	if err != nil {
		if api.IsAuthExpired(err) {
			s.log.Info("persisted token rejected, clearing session")
			s.clearLocal()
			return nil
		}
		// Keep the token: the backend may just be unreachable.
		s.mu.Lock()
		s.authenticated = false
		s.lastError = err.Error()
		s.mu.Unlock()
		return err
	}

	cleaned := session.CleanProfile(profile)
	if err := s.persist(token, cleaned); err != nil {
		s.log.WithError(err).Warn("persist refreshed profile failed")
	}

	s.mu.Lock()
	s.authenticated = true
	s.session = session.Session{Token: token, User: cleaned}
	s.lastError = ""
	s.mu.Unlock()
	return nil
}

// RefreshUser re-fetches the profile for the current session. A 401 during a
// foreground refresh forces a local logout; a background refresh only records
// the error so it cannot log the user out mid-flow.
func (s *Store) RefreshUser(ctx context.Context, background bool) error {
	profile, err := s.svc.Me(ctx)
	if err != nil {
		if api.IsAuthExpired(err) && !background {
			s.log.Info("session expired during refresh, logging out")
			s.clearLocal()
			return err
		}
		s.mu.Lock()
		s.lastError = err.Error()
		s.mu.Unlock()
		return err
	}

	cleaned := session.CleanProfile(profile)

	s.mu.Lock()
	token := s.session.Token
	s.session.User = cleaned
	s.lastError = ""
	s.mu.Unlock()

	if err := s.persist(token, cleaned); err != nil {
		s.log.WithError(err).Warn("persist refreshed profile failed")
	}
	return nil
}

// IsAuthenticated reports whether a validated session exists.
func (s *Store) IsAuthenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authenticated
}

// User returns the current profile, or nil when logged out.
func (s *Store) User() session.Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session.User
}

// Token returns the current access token, or "".
func (s *Store) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session.Token
}

// Error returns the user-facing message of the last failed operation, or "".
func (s *Store) Error() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastError
}

func (s *Store) persist(token string, profile session.Profile) error {
	if err := s.keys.Set(keystore.KeyAccessToken, token); err != nil {
		return err
	}
	raw, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}
	return s.keys.Set(keystore.KeyUserInfo, string(raw))
}

func (s *Store) clearLocal() {
	if err := s.keys.Delete(keystore.KeyAccessToken); err != nil {
		s.log.WithError(err).Warn("clear token failed")
	}
	if err := s.keys.Delete(keystore.KeyUserInfo); err != nil {
		s.log.WithError(err).Warn("clear profile failed")
	}
	s.mu.Lock()
	s.authenticated = false
	s.session = session.Session{}
	s.mu.Unlock()
}

// tokenExpired inspects the token's exp claim without verifying the
// signature; verification is the backend's job. ok is false when the token is
// not a JWT or carries no expiry.
func tokenExpired(token string) (expired, ok bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false, false
	}
	return exp.Before(time.Now()), true
}

func loginErrorMessage(err error) string {
	switch {
	case api.IsTimeout(err):
		return "La conexión tardó demasiado. Intente nuevamente."
	case api.IsUnreachable(err):
		return "No se pudo conectar con el servidor."
	case api.StatusOf(err) == 401 || api.StatusOf(err) == 422:
		return "Credenciales inválidas."
	default:
		return "No se pudo iniciar sesión."
	}
}

package auth

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/crewmark/attendance-client/internal/api"
	"github.com/crewmark/attendance-client/internal/app/domain/session"
	"github.com/crewmark/attendance-client/internal/keystore"
)

type fakeAuthService struct {
	login   func(ctx context.Context, crewID, pin string) (session.Session, error)
	me      func(ctx context.Context) (session.Profile, error)
	verify  func(ctx context.Context, token string) (bool, error)
	meCalls int
	logouts int
}

func (f *fakeAuthService) Login(ctx context.Context, crewID, pin string) (session.Session, error) {
	if f.login == nil {
		return session.Session{}, errors.New("unexpected Login")
	}
	return f.login(ctx, crewID, pin)
}

func (f *fakeAuthService) Me(ctx context.Context) (session.Profile, error) {
	f.meCalls++
	if f.me == nil {
		return nil, errors.New("unexpected Me")
	}
	return f.me(ctx)
}

func (f *fakeAuthService) VerifyToken(ctx context.Context, token string) (bool, error) {
	if f.verify == nil {
		return true, nil
	}
	return f.verify(ctx, token)
}

func (f *fakeAuthService) Logout(context.Context) error {
	f.logouts++
	return nil
}

func newTestKeystore(t *testing.T) *keystore.Store {
	t.Helper()
	keys, err := keystore.Open(filepath.Join(t.TempDir(), "keystore.bin"), "test-secret")
	if err != nil {
		t.Fatalf("open keystore: %v", err)
	}
	return keys
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "C-100",
		"exp": exp.Unix(),
	})
	raw, err := tok.SignedString([]byte("unit-test-key"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return raw
}

func TestLoginPersistsCleanedProfile(t *testing.T) {
	keys := newTestKeystore(t)
	svc := &fakeAuthService{
		login: func(_ context.Context, crewID, pin string) (session.Session, error) {
			if crewID != "C-100" || pin != "1234" {
				t.Errorf("credentials = %s/%s", crewID, pin)
			}
			return session.Session{
				Token: "tok-1",
				User: session.Profile{
					"nombre": "Ana",
					"cedula": "C-100",
					"foto":   "base64-blob",
				},
			}, nil
		},
	}
	store := New(svc, keys, nil)

	if err := store.Login(context.Background(), "C-100", "1234"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if !store.IsAuthenticated() {
		t.Fatal("expected authenticated state")
	}
	if store.Token() != "tok-1" {
		t.Fatalf("Token() = %q", store.Token())
	}
	if _, ok := store.User()["foto"]; ok {
		t.Fatal("binary photo key survived profile cleaning")
	}
	if got := keys.Token(); got != "tok-1" {
		t.Fatalf("keystore token = %q, want tok-1", got)
	}
}

func TestLoginFailureLeavesLoggedOut(t *testing.T) {
	keys := newTestKeystore(t)
	svc := &fakeAuthService{
		login: func(context.Context, string, string) (session.Session, error) {
			return session.Session{}, &api.APIError{Status: 401, Message: "bad credentials"}
		},
	}
	store := New(svc, keys, nil)

	if err := store.Login(context.Background(), "C-100", "wrong"); err == nil {
		t.Fatal("expected login error")
	}
	if store.IsAuthenticated() {
		t.Fatal("failed login must not authenticate")
	}
	if store.Error() != "Credenciales inválidas." {
		t.Fatalf("Error() = %q", store.Error())
	}
	if keys.Token() != "" {
		t.Fatal("failed login must not persist a token")
	}
}

func TestLoginTimeoutMessage(t *testing.T) {
	store := New(&fakeAuthService{
		login: func(context.Context, string, string) (session.Session, error) {
			return session.Session{}, api.ErrTimeout
		},
	}, newTestKeystore(t), nil)

	_ = store.Login(context.Background(), "C-100", "1234")
	if store.Error() != "La conexión tardó demasiado. Intente nuevamente." {
		t.Fatalf("Error() = %q", store.Error())
	}
}

func TestInitAuthExpiredTokenClearsWithoutNetwork(t *testing.T) {
	keys := newTestKeystore(t)
	if err := keys.Set(keystore.KeyAccessToken, signedToken(t, time.Now().Add(-time.Hour))); err != nil {
		t.Fatalf("seed token: %v", err)
	}
	svc := &fakeAuthService{}
	store := New(svc, keys, nil)

	if err := store.InitAuth(context.Background()); err != nil {
		t.Fatalf("InitAuth: %v", err)
	}
	if store.IsAuthenticated() {
		t.Fatal("expired token must not authenticate")
	}
	if svc.meCalls != 0 {
		t.Fatalf("expired token hit the backend %d times", svc.meCalls)
	}
	if keys.Token() != "" {
		t.Fatal("expired token not cleared from keystore")
	}
}

func TestInitAuthValidTokenHydrates(t *testing.T) {
	keys := newTestKeystore(t)
	token := signedToken(t, time.Now().Add(time.Hour))
	if err := keys.Set(keystore.KeyAccessToken, token); err != nil {
		t.Fatalf("seed token: %v", err)
	}
	store := New(&fakeAuthService{
		me: func(context.Context) (session.Profile, error) {
			return session.Profile{"nombre": "Ana", "apellido": "Mora"}, nil
		},
	}, keys, nil)

	if err := store.InitAuth(context.Background()); err != nil {
		t.Fatalf("InitAuth: %v", err)
	}
	if !store.IsAuthenticated() {
		t.Fatal("expected authenticated state")
	}
	if got := store.User().DisplayName(); got != "Ana Mora" {
		t.Fatalf("DisplayName() = %q", got)
	}
	if store.Token() != token {
		t.Fatal("hydrated token mismatch")
	}
}

func TestInitAuthOpaqueTokenVerifiedRemotely(t *testing.T) {
	keys := newTestKeystore(t)
	if err := keys.Set(keystore.KeyAccessToken, "opaque-session-token"); err != nil {
		t.Fatalf("seed token: %v", err)
	}
	svc := &fakeAuthService{
		verify: func(_ context.Context, token string) (bool, error) {
			if token != "opaque-session-token" {
				t.Errorf("verify got %q", token)
			}
			return false, nil
		},
	}
	store := New(svc, keys, nil)

	if err := store.InitAuth(context.Background()); err != nil {
		t.Fatalf("InitAuth: %v", err)
	}
	if store.IsAuthenticated() {
		t.Fatal("rejected opaque token must not authenticate")
	}
	if svc.meCalls != 0 {
		t.Fatal("profile fetched after definitive verify rejection")
	}
	if keys.Token() != "" {
		t.Fatal("rejected opaque token not cleared")
	}
}

func TestInitAuthRejectedTokenClears(t *testing.T) {
	keys := newTestKeystore(t)
	if err := keys.Set(keystore.KeyAccessToken, signedToken(t, time.Now().Add(time.Hour))); err != nil {
		t.Fatalf("seed token: %v", err)
	}
	store := New(&fakeAuthService{
		me: func(context.Context) (session.Profile, error) {
			return nil, &api.APIError{Status: 401, Message: "token revoked"}
		},
	}, keys, nil)

	if err := store.InitAuth(context.Background()); err != nil {
		t.Fatalf("InitAuth: %v", err)
	}
	if store.IsAuthenticated() {
		t.Fatal("rejected token must not authenticate")
	}
	if keys.Token() != "" {
		t.Fatal("rejected token not cleared")
	}
}

func TestInitAuthUnreachableKeepsToken(t *testing.T) {
	keys := newTestKeystore(t)
	token := signedToken(t, time.Now().Add(time.Hour))
	if err := keys.Set(keystore.KeyAccessToken, token); err != nil {
		t.Fatalf("seed token: %v", err)
	}
	store := New(&fakeAuthService{
		me: func(context.Context) (session.Profile, error) {
			return nil, api.ErrUnreachable
		},
	}, keys, nil)

	if err := store.InitAuth(context.Background()); err == nil {
		t.Fatal("expected error when backend unreachable")
	}
	if keys.Token() != token {
		t.Fatal("unreachable backend must not discard the token")
	}
}

func TestRefreshUserForegroundExpiryLogsOut(t *testing.T) {
	keys := newTestKeystore(t)
	svc := &fakeAuthService{
		login: func(context.Context, string, string) (session.Session, error) {
			return session.Session{Token: "tok-1", User: session.Profile{"nombre": "Ana"}}, nil
		},
		me: func(context.Context) (session.Profile, error) {
			return nil, &api.APIError{Status: 401, Message: "expired"}
		},
	}
	store := New(svc, keys, nil)
	if err := store.Login(context.Background(), "C-100", "1234"); err != nil {
		t.Fatalf("Login: %v", err)
	}

	if err := store.RefreshUser(context.Background(), false); err == nil {
		t.Fatal("expected refresh error")
	}
	if store.IsAuthenticated() {
		t.Fatal("foreground 401 must log out")
	}
	if keys.Token() != "" {
		t.Fatal("foreground 401 must clear the keystore")
	}
}

func TestRefreshUserBackgroundExpiryKeepsSession(t *testing.T) {
	keys := newTestKeystore(t)
	svc := &fakeAuthService{
		login: func(context.Context, string, string) (session.Session, error) {
			return session.Session{Token: "tok-1", User: session.Profile{"nombre": "Ana"}}, nil
		},
		me: func(context.Context) (session.Profile, error) {
			return nil, &api.APIError{Status: 401, Message: "expired"}
		},
	}
	store := New(svc, keys, nil)
	if err := store.Login(context.Background(), "C-100", "1234"); err != nil {
		t.Fatalf("Login: %v", err)
	}

	if err := store.RefreshUser(context.Background(), true); err == nil {
		t.Fatal("expected refresh error")
	}
	if !store.IsAuthenticated() {
		t.Fatal("background 401 must not log the user out")
	}
	if keys.Token() != "tok-1" {
		t.Fatal("background 401 must keep the persisted token")
	}
}

func TestLogoutAlwaysClearsLocally(t *testing.T) {
	keys := newTestKeystore(t)
	svc := &fakeAuthService{
		login: func(context.Context, string, string) (session.Session, error) {
			return session.Session{Token: "tok-1", User: session.Profile{"nombre": "Ana"}}, nil
		},
	}
	store := New(svc, keys, nil)
	if err := store.Login(context.Background(), "C-100", "1234"); err != nil {
		t.Fatalf("Login: %v", err)
	}

	store.Logout(context.Background())
	if store.IsAuthenticated() {
		t.Fatal("logout left authenticated state")
	}
	if keys.Token() != "" {
		t.Fatal("logout left the persisted token")
	}
	if svc.logouts != 1 {
		t.Fatalf("server logout calls = %d, want 1", svc.logouts)
	}
}

// Package auth wraps the backend authentication endpoints. Unlike the other
// resource groups, login returns a flat token+profile payload instead of the
// uniform envelope.
package auth

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/crewmark/attendance-client/internal/api"
	"github.com/crewmark/attendance-client/internal/app/domain/session"
)

// Service is a stateless facade over the /auth endpoints.
type Service struct {
	client *api.Client
}

// New constructs an auth service.
func New(client *api.Client) *Service {
	return &Service{client: client}
}

type loginResponse struct {
	AccessToken string          `json:"access_token"`
	TokenType   string          `json:"token_type"`
	User        session.Profile `json:"user"`
}

// Login exchanges crew id and pin for a session.
func (s *Service) Login(ctx context.Context, crewID, pin string) (session.Session, error) {
	resp, err := s.client.Post(ctx, "/auth/login", map[string]string{
		"id_tripulante": crewID,
		"pin":           pin,
	})
	if err != nil {
		return session.Session{}, err
	}

	var payload loginResponse
	if err := resp.JSON(&payload); err != nil {
		return session.Session{}, fmt.Errorf("decode login response: %w", err)
	}
	if payload.AccessToken == "" {
		return session.Session{}, fmt.Errorf("login response missing access token")
	}
	return session.Session{Token: payload.AccessToken, User: payload.User}, nil
}

// Me returns the profile bound to the current token.
func (s *Service) Me(ctx context.Context) (session.Profile, error) {
	resp, err := s.client.Get(ctx, "/auth/me", nil)
	if err != nil {
		return nil, err
	}
	env, err := resp.Envelope()
	if err != nil {
		return nil, err
	}
	var profile session.Profile
	if len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, &profile); err != nil {
			return nil, fmt.Errorf("decode profile: %w", err)
		}
	}
	return profile, nil
}

// VerifyToken asks the backend whether a token is still valid.
func (s *Service) VerifyToken(ctx context.Context, token string) (bool, error) {
	resp, err := s.client.Post(ctx, "/auth/verify-token", map[string]string{"token": token})
	if err != nil {
		if api.IsAuthExpired(err) {
			return false, nil
		}
		return false, err
	}
	env, err := resp.Envelope()
	if err != nil {
		return false, err
	}
	return env.Success, nil
}

// Logout invalidates the session server-side. Callers treat failures as
// best-effort; the local session is cleared regardless.
func (s *Service) Logout(ctx context.Context) error {
	_, err := s.client.Post(ctx, "/auth/logout", nil)
	return err
}

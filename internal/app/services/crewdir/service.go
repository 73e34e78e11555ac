// Package crewdir wraps the backend's crew directory (tripulantes) endpoints.
package crewdir

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/crewmark/attendance-client/internal/api"
	"github.com/crewmark/attendance-client/internal/app/domain/crew"
)

// Service is a stateless facade over the /tripulantes endpoints.
type Service struct {
	client *api.Client
}

// New constructs a crew directory service.
func New(client *api.Client) *Service {
	return &Service{client: client}
}

// Search finds crew members matching the query string.
func (s *Service) Search(ctx context.Context, q string) ([]crew.Member, error) {
	query := url.Values{}
	query.Set("q", q)
	resp, err := s.client.Get(ctx, "/tripulantes/search", query)
	if err != nil {
		return nil, err
	}
	env, err := resp.Envelope()
	if err != nil {
		return nil, err
	}

	var dtos []memberDTO
	if len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, &dtos); err != nil {
			return nil, fmt.Errorf("decode crew search: %w", err)
		}
	}
	out := make([]crew.Member, 0, len(dtos))
	for _, dto := range dtos {
		out = append(out, dto.toDomain())
	}
	return out, nil
}

// Get fetches a single crew member by crew id.
func (s *Service) Get(ctx context.Context, crewID string) (crew.Member, error) {
	resp, err := s.client.Get(ctx, "/tripulantes/"+crewID, nil)
	if err != nil {
		return crew.Member{}, err
	}
	env, err := resp.Envelope()
	if err != nil {
		return crew.Member{}, err
	}
	var dto memberDTO
	if err := json.Unmarshal(env.Data, &dto); err != nil {
		return crew.Member{}, fmt.Errorf("decode crew member %s: %w", crewID, err)
	}
	return dto.toDomain(), nil
}

type memberDTO struct {
	CrewID     string `json:"id_tripulante"`
	FirstName  string `json:"nombres"`
	LastName   string `json:"apellidos"`
	NationalID string `json:"cedula"`
	Email      string `json:"correo"`
	Phone      string `json:"telefono"`
	Department string `json:"departamento"`
	Role       string `json:"cargo"`
	Active     bool   `json:"activo"`
	Processed  bool   `json:"procesado"`
}

func (d memberDTO) toDomain() crew.Member {
	return crew.Member{
		CrewID:     d.CrewID,
		FirstName:  d.FirstName,
		LastName:   d.LastName,
		NationalID: d.NationalID,
		Email:      d.Email,
		Phone:      d.Phone,
		Department: d.Department,
		Role:       d.Role,
		Active:     d.Active,
		Processed:  d.Processed,
	}
}

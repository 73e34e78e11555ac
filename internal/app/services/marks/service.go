// Package marks wraps the backend's attendance-log (marcaciones) endpoints.
// All views are read-only; the recognition backend is the only writer.
package marks

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/crewmark/attendance-client/internal/api"
	"github.com/crewmark/attendance-client/internal/app/domain/attendance"
)

// Service is a stateless facade over the /marcaciones endpoints.
type Service struct {
	client *api.Client
}

// New constructs a marks service.
func New(client *api.Client) *Service {
	return &Service{client: client}
}

// Recent returns the most recent marks across all events.
func (s *Service) Recent(ctx context.Context, limit int) ([]attendance.Mark, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	return s.fetch(ctx, "/marcaciones/recent", query)
}

// Today returns today's marks.
func (s *Service) Today(ctx context.Context) ([]attendance.Mark, error) {
	return s.fetch(ctx, "/marcaciones/today", nil)
}

// ByEvent returns all marks recorded for one event.
func (s *Service) ByEvent(ctx context.Context, eventID int) ([]attendance.Mark, error) {
	return s.fetch(ctx, "/marcaciones/event/"+strconv.Itoa(eventID), nil)
}

// ByCrew returns a crew member's marks, newest first.
func (s *Service) ByCrew(ctx context.Context, crewID string, limit int) ([]attendance.Mark, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	return s.fetch(ctx, "/marcaciones/tripulante/"+crewID, query)
}

func (s *Service) fetch(ctx context.Context, path string, query url.Values) ([]attendance.Mark, error) {
	resp, err := s.client.Get(ctx, path, query)
	if err != nil {
		return nil, err
	}
	env, err := resp.Envelope()
	if err != nil {
		return nil, err
	}

	var dtos []markDTO
	if len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, &dtos); err != nil {
			return nil, fmt.Errorf("decode marks: %w", err)
		}
	}

	out := make([]attendance.Mark, 0, len(dtos))
	for _, dto := range dtos {
		out = append(out, dto.toDomain())
	}
	return out, nil
}

type markDTO struct {
	ID        int    `json:"id_marcacion"`
	CrewID    string `json:"id_tripulante"`
	Date      string `json:"fecha"`
	Time      string `json:"hora"`
	Kind      string `json:"tipo"`
	EventName string `json:"evento"`
	Location  string `json:"lugar"`
}

func (d markDTO) toDomain() attendance.Mark {
	return attendance.Mark{
		ID:        d.ID,
		CrewID:    d.CrewID,
		Date:      d.Date,
		Time:      d.Time,
		Kind:      attendance.KindFromString(d.Kind),
		EventName: d.EventName,
		Location:  d.Location,
	}
}

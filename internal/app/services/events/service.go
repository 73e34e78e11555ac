// Package events wraps the backend's event resource group.
package events

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/crewmark/attendance-client/internal/api"
	"github.com/crewmark/attendance-client/internal/app/domain/event"
)

// Filter narrows the event list. The zero value requests everything.
type Filter struct {
	ActiveOnly bool
	Keyword    string
}

// Service is a stateless facade over the /eventos endpoints. Raw client
// errors propagate to the caller.
type Service struct {
	client *api.Client
}

// New constructs an events service.
func New(client *api.Client) *Service {
	return &Service{client: client}
}

// List fetches a page of events with optional filtering.
func (s *Service) List(ctx context.Context, filter Filter, offset, limit int) ([]event.Event, error) {
	query := url.Values{}
	if filter.ActiveOnly {
		query.Set("activos_solo", "true")
	}
	if filter.Keyword != "" {
		query.Set("filtro", filter.Keyword)
	}
	query.Set("offset", strconv.Itoa(offset))
	query.Set("limit", strconv.Itoa(limit))

	resp, err := s.client.Get(ctx, "/eventos/", query)
	if err != nil {
		return nil, err
	}
	env, err := resp.Envelope()
	if err != nil {
		return nil, err
	}

	var dtos []eventDTO
	if err := unmarshalData(env.Data, &dtos); err != nil {
		return nil, fmt.Errorf("decode events: %w", err)
	}

	out := make([]event.Event, 0, len(dtos))
	for _, dto := range dtos {
		out = append(out, dto.toDomain())
	}
	return out, nil
}

// Get fetches the detail view of a single event.
func (s *Service) Get(ctx context.Context, id int) (event.Detail, error) {
	resp, err := s.client.Get(ctx, "/eventos/"+strconv.Itoa(id), nil)
	if err != nil {
		return event.Detail{}, err
	}
	env, err := resp.Envelope()
	if err != nil {
		return event.Detail{}, err
	}

	var dto detailDTO
	if err := unmarshalData(env.Data, &dto); err != nil {
		return event.Detail{}, fmt.Errorf("decode event %d: %w", id, err)
	}
	return dto.toDomain(), nil
}

// Planification fetches the roster assigned to an event.
func (s *Service) Planification(ctx context.Context, id int) (event.Planification, error) {
	resp, err := s.client.Get(ctx, "/eventos/"+strconv.Itoa(id)+"/planificacion", nil)
	if err != nil {
		return event.Planification{}, err
	}
	env, err := resp.Envelope()
	if err != nil {
		return event.Planification{}, err
	}

	var dto planificationDTO
	if err := unmarshalData(env.Data, &dto); err != nil {
		return event.Planification{}, fmt.Errorf("decode planification %d: %w", id, err)
	}
	return dto.toDomain(id), nil
}

// parseEventTime accepts the date formats the backend is known to emit.
func parseEventTime(raw string) time.Time {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t
		}
	}
	return time.Time{}
}

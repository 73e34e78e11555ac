// Package reports wraps the dashboard and reporting endpoints.
package reports

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/crewmark/attendance-client/internal/api"
)

// DashboardStats is the aggregate snapshot shown on the dashboard.
type DashboardStats struct {
	TotalEvents     int `json:"total_eventos"`
	ActiveEvents    int `json:"eventos_activos"`
	TotalCrew       int `json:"total_tripulantes"`
	MarksToday      int `json:"marcaciones_hoy"`
	PendingEntries  int `json:"entradas_pendientes"`
	ProcessedMarks  int `json:"marcaciones_procesadas"`
	RegisteredFaces int `json:"rostros_registrados"`
}

// ReportStats is the aggregate view served by the reporting module.
type ReportStats struct {
	MarksByDay     map[string]int `json:"marcaciones_por_dia"`
	MarksByEvent   map[string]int `json:"marcaciones_por_evento"`
	AttendanceRate float64        `json:"tasa_asistencia"`
}

// Service is a stateless facade over the dashboard/reporting endpoints.
type Service struct {
	client *api.Client
}

// New constructs a reports service.
func New(client *api.Client) *Service {
	return &Service{client: client}
}

// Dashboard fetches the dashboard aggregate statistics.
func (s *Service) Dashboard(ctx context.Context) (DashboardStats, error) {
	var stats DashboardStats
	if err := s.fetch(ctx, "/dashboard/stats", &stats); err != nil {
		return DashboardStats{}, err
	}
	return stats, nil
}

// Report fetches the reporting aggregate statistics.
func (s *Service) Report(ctx context.Context) (ReportStats, error) {
	var stats ReportStats
	if err := s.fetch(ctx, "/reportes/stats", &stats); err != nil {
		return ReportStats{}, err
	}
	return stats, nil
}

// Health probes the backend health endpoint.
func (s *Service) Health(ctx context.Context) error {
	_, err := s.client.Get(ctx, "/health", nil)
	return err
}

func (s *Service) fetch(ctx context.Context, path string, out any) error {
	resp, err := s.client.Get(ctx, path, nil)
	if err != nil {
		return err
	}
	env, err := resp.Envelope()
	if err != nil {
		return err
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode stats: %w", err)
	}
	return nil
}

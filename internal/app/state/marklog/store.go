// Package marklog holds the attendance-log views: recent, today, per-event
// and per-crew mark lists.
package marklog

import (
	"context"
	"sync"

	"github.com/crewmark/attendance-client/internal/app/domain/attendance"
	"github.com/crewmark/attendance-client/pkg/logger"
)

// DefaultRecentLimit bounds the recent-marks view.
const DefaultRecentLimit = 50

// Service is the slice of the marks service the store depends on.
type Service interface {
	Recent(ctx context.Context, limit int) ([]attendance.Mark, error)
	Today(ctx context.Context) ([]attendance.Mark, error)
	ByEvent(ctx context.Context, eventID int) ([]attendance.Mark, error)
	ByCrew(ctx context.Context, crewID string, limit int) ([]attendance.Mark, error)
}

// Store is the attendance-log store.
type Store struct {
	svc Service
	log *logger.Logger

	mu        sync.Mutex
	marks     []attendance.Mark
	loading   bool
	lastError string
}

// New constructs a mark-log store.
func New(svc Service, log *logger.Logger) *Store {
	if log == nil {
		log = logger.NewDefault("marklog-store")
	}
	return &Store{svc: svc, log: log}
}

// LoadRecent replaces the view with the most recent marks.
func (s *Store) LoadRecent(ctx context.Context, limit int) error {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	return s.load(func() ([]attendance.Mark, error) {
		return s.svc.Recent(ctx, limit)
	})
}

// LoadToday replaces the view with today's marks.
func (s *Store) LoadToday(ctx context.Context) error {
	return s.load(func() ([]attendance.Mark, error) {
		return s.svc.Today(ctx)
	})
}

// LoadByEvent replaces the view with the marks of one event.
func (s *Store) LoadByEvent(ctx context.Context, eventID int) error {
	return s.load(func() ([]attendance.Mark, error) {
		return s.svc.ByEvent(ctx, eventID)
	})
}

// LoadByCrew replaces the view with one crew member's marks.
func (s *Store) LoadByCrew(ctx context.Context, crewID string, limit int) error {
	return s.load(func() ([]attendance.Mark, error) {
		return s.svc.ByCrew(ctx, crewID, limit)
	})
}

func (s *Store) load(fetch func() ([]attendance.Mark, error)) error {
	s.mu.Lock()
	s.loading = true
	s.lastError = ""
	s.mu.Unlock()

	marks, err := fetch()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	if err != nil {
		s.lastError = err.Error()
		return err
	}
	s.marks = marks
	return nil
}

// Marks returns a copy of the current view.
func (s *Store) Marks() []attendance.Mark {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]attendance.Mark, len(s.marks))
	copy(out, s.marks)
	return out
}

// Loading reports whether a load is in flight.
func (s *Store) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Error returns the user-facing message of the last failed load, or "".
func (s *Store) Error() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastError
}

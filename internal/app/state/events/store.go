// Package events holds the client-side event list state: pagination,
// filtering and the currently opened event. It mediates between the event
// service and the presentation layer.
package events

import (
	"context"
	"errors"
	"sync"

	"github.com/crewmark/attendance-client/internal/app/domain/attendance"
	"github.com/crewmark/attendance-client/internal/app/domain/event"
	"github.com/crewmark/attendance-client/internal/app/metrics"
	eventsvc "github.com/crewmark/attendance-client/internal/app/services/events"
	"github.com/crewmark/attendance-client/pkg/logger"
)

// PageSize is the fixed page size used for event pagination.
const PageSize = 20

// ErrSuperseded is returned when a load's response arrived after a newer
// load had already been issued; the stale response is discarded.
var ErrSuperseded = errors.New("load superseded by a newer request")

// Service is the slice of the events service the store depends on.
type Service interface {
	List(ctx context.Context, filter eventsvc.Filter, offset, limit int) ([]event.Event, error)
	Get(ctx context.Context, id int) (event.Detail, error)
	Planification(ctx context.Context, id int) (event.Planification, error)
}

// Recognizer submits a captured photo for an event.
type Recognizer interface {
	Recognize(ctx context.Context, eventID int, photo []byte, filename string) (attendance.RecognitionResult, error)
}

// Store is the event list store. All methods are safe for concurrent use;
// when loads overlap, only the most recent one wins: earlier in-flight
// requests are cancelled and their responses discarded.
type Store struct {
	svc        Service
	recognizer Recognizer
	log        *logger.Logger

	mu             sync.Mutex
	events         []event.Event
	current        *event.Detail
	planification  *event.Planification
	loading        bool
	lastError      string
	hasMore        bool
	filter         eventsvc.Filter
	generation     uint64
	cancelInFlight context.CancelFunc
}

// New constructs an event store.
func New(svc Service, recognizer Recognizer, log *logger.Logger) *Store {
	if log == nil {
		log = logger.NewDefault("events-store")
	}
	return &Store{
		svc:        svc,
		recognizer: recognizer,
		log:        log,
		hasMore:    true,
	}
}

// Load fetches a page of events. With refresh=true the list is replaced from
// offset 0; otherwise the next page is appended starting at the current list
// length.
func (s *Store) Load(ctx context.Context, refresh bool) error {
	s.mu.Lock()
	offset := len(s.events)
	if refresh {
		offset = 0
	}
	filter := s.filter
	gen, loadCtx, cancel := s.beginLoadLocked(ctx)
	s.mu.Unlock()
	defer cancel()

	page, err := s.svc.List(loadCtx, filter, offset, PageSize)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		metrics.RecordStaleResponse()
		return ErrSuperseded
	}
	s.loading = false
	s.cancelInFlight = nil

	if err != nil {
		s.lastError = err.Error()
		if refresh {
			// A failed full refresh leaves no trustworthy data to show.
			s.events = nil
			s.hasMore = true
		}
		return err
	}

	s.lastError = ""
	if refresh {
		s.events = page
	} else {
		s.events = append(s.events, page...)
	}
	// Heuristic end-of-data signal: a short page means the backend ran out.
	// A final page of exactly PageSize events is misreported as having more.
	s.hasMore = len(page) == PageSize
	return nil
}

// LoadMore fetches the next page under the current filter. It is a no-op
// while a load is already in flight or when the end of data was reached.
func (s *Store) LoadMore(ctx context.Context) error {
	s.mu.Lock()
	if s.loading || !s.hasMore {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()
	return s.Load(ctx, false)
}

// SetFilter switches the active filter and reloads from the first page.
// Setting the unchanged filter is a no-op.
func (s *Store) SetFilter(ctx context.Context, filter eventsvc.Filter) error {
	s.mu.Lock()
	if filter == s.filter {
		s.mu.Unlock()
		return nil
	}
	s.filter = filter
	s.mu.Unlock()
	return s.Load(ctx, true)
}

// LoadEvent fetches the detail view for one event.
func (s *Store) LoadEvent(ctx context.Context, id int) error {
	detail, err := s.svc.Get(ctx, id)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.lastError = err.Error()
		return err
	}
	s.lastError = ""
	s.current = &detail
	return nil
}

// LoadPlanification fetches the roster for one event.
func (s *Store) LoadPlanification(ctx context.Context, id int) error {
	plan, err := s.svc.Planification(ctx, id)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.lastError = err.Error()
		return err
	}
	s.lastError = ""
	s.planification = &plan
	return nil
}

// MarkAttendance forwards a captured photo to the recognition backend. The
// store's own state is not mutated; callers re-trigger Load afterwards to
// pick up server-side changes.
func (s *Store) MarkAttendance(ctx context.Context, eventID int, photo []byte, filename string) (attendance.RecognitionResult, error) {
	if s.recognizer == nil {
		return attendance.RecognitionResult{}, errors.New("no recognizer configured")
	}
	return s.recognizer.Recognize(ctx, eventID, photo, filename)
}

// beginLoadLocked bumps the generation, cancels any in-flight load and marks
// the store loading. Callers hold the lock.
func (s *Store) beginLoadLocked(ctx context.Context) (uint64, context.Context, context.CancelFunc) {
	if s.cancelInFlight != nil {
		s.cancelInFlight()
	}
	s.generation++
	s.loading = true
	s.lastError = ""
	loadCtx, cancel := context.WithCancel(ctx)
	s.cancelInFlight = cancel
	return s.generation, loadCtx, cancel
}

// Events returns a copy of the loaded event list.
func (s *Store) Events() []event.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]event.Event, len(s.events))
	copy(out, s.events)
	return out
}

// Current returns the currently opened event detail, if any.
func (s *Store) Current() *event.Detail {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Planification returns the currently loaded roster, if any.
func (s *Store) Planification() *event.Planification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.planification
}

// Loading reports whether a list load is in flight.
func (s *Store) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// HasMore reports whether another page is believed to exist.
func (s *Store) HasMore() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasMore
}

// Error returns the user-facing message of the last failed operation, or "".
func (s *Store) Error() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastError
}

// Filter returns the active filter.
func (s *Store) Filter() eventsvc.Filter {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filter
}

// Package refresh keeps the event list and dashboard snapshot current in
// the background, on a cron schedule.
package refresh

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/crewmark/attendance-client/internal/app/services/reports"
	"github.com/crewmark/attendance-client/pkg/logger"
)

// EventLoader reloads the event list from the first page.
type EventLoader interface {
	Load(ctx context.Context, refresh bool) error
}

// StatsFetcher fetches the dashboard snapshot.
type StatsFetcher interface {
	Dashboard(ctx context.Context) (reports.DashboardStats, error)
}

const tickTimeout = 15 * time.Second

// Refresher reloads client state on a cron spec (e.g. "@every 1m"). It only
// runs while a session is authenticated.
type Refresher struct {
	events        EventLoader
	stats         StatsFetcher
	authenticated func() bool
	log           *logger.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	entry   cron.EntryID
	latest  *reports.DashboardStats
	running bool
}

// New creates a refresher. authenticated gates the ticks; a nil gate means
// always run.
func New(events EventLoader, stats StatsFetcher, authenticated func() bool, log *logger.Logger) *Refresher {
	if log == nil {
		log = logger.NewDefault("refresher")
	}
	return &Refresher{
		events:        events,
		stats:         stats,
		authenticated: authenticated,
		log:           log,
	}
}

// Start schedules the refresh under the given cron spec.
func (r *Refresher) Start(spec string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return nil
	}

	c := cron.New()
	id, err := c.AddFunc(spec, r.tick)
	if err != nil {
		return fmt.Errorf("invalid refresh spec %q: %w", spec, err)
	}
	c.Start()

	r.cron = c
	r.entry = id
	r.running = true
	r.log.WithField("spec", spec).Info("background refresh started")
	return nil
}

// Stop halts the schedule and waits for a running tick to finish.
func (r *Refresher) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	c := r.cron
	r.cron = nil
	r.running = false
	r.mu.Unlock()

	stopCtx := c.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	r.log.Info("background refresh stopped")
	return nil
}

// Stats returns the most recent dashboard snapshot, if one was fetched.
func (r *Refresher) Stats() *reports.DashboardStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.latest
}

func (r *Refresher) tick() {
	if r.authenticated != nil && !r.authenticated() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), tickTimeout)
	defer cancel()

	if r.events != nil {
		if err := r.events.Load(ctx, true); err != nil {
			r.log.WithError(err).Warn("background event refresh failed")
		}
	}
	if r.stats != nil {
		stats, err := r.stats.Dashboard(ctx)
		if err != nil {
			r.log.WithError(err).Warn("background stats refresh failed")
			return
		}
		r.mu.Lock()
		r.latest = &stats
		r.mu.Unlock()
	}
}

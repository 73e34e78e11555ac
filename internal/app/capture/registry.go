// Package capture decouples the photo capture screen from the flow that
// requested the photo. A one-shot completion handle is parked in a registry
// under an opaque id, because a function reference cannot travel across the
// navigation boundary.
package capture

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/crewmark/attendance-client/pkg/logger"
)

// Result is the outcome of a capture: the URI of the produced photo file,
// or a cancellation when the screen was dismissed without one.
type Result struct {
	PhotoURI  string
	Cancelled bool
}

// Callback consumes a capture result exactly once.
type Callback func(Result)

// ErrRegistryFull is returned when the registry's capacity is exhausted.
var ErrRegistryFull = errors.New("capture registry full")

const (
	// DefaultCapacity bounds simultaneous pending captures.
	DefaultCapacity = 16
	// DefaultTTL is how long an unclaimed entry survives before the sweep
	// removes it (covers exit paths that never fire complete or cancel).
	DefaultTTL = 5 * time.Minute

	sweepInterval = 30 * time.Second
)

type entry struct {
	callback  Callback
	expiresAt time.Time
}

// Registry maps opaque request ids to single-use completion handles. Entries
// are removed on completion, on cancellation and by TTL expiry, so abandoned
// captures cannot accumulate.
type Registry struct {
	capacity int
	ttl      time.Duration
	log      *logger.Logger

	mu      sync.Mutex
	entries map[string]entry
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewRegistry creates a registry with the given bounds; zero values pick the
// defaults.
func NewRegistry(capacity int, ttl time.Duration, log *logger.Logger) *Registry {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if log == nil {
		log = logger.NewDefault("capture-registry")
	}
	return &Registry{
		capacity: capacity,
		ttl:      ttl,
		log:      log,
		entries:  make(map[string]entry),
	}
}

// Register parks a callback and returns its opaque id for the capture screen
// to complete against.
func (r *Registry) Register(cb Callback) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.expireLocked(time.Now())
	if len(r.entries) >= r.capacity {
		return "", ErrRegistryFull
	}

	id := uuid.NewString()
	r.entries[id] = entry{
		callback:  cb,
		expiresAt: time.Now().Add(r.ttl),
	}
	return id, nil
}

// Complete fires the callback registered under id and removes the entry.
// It reports false when the id is unknown, already used or expired.
func (r *Registry) Complete(id string, res Result) bool {
	r.mu.Lock()
	e, ok := r.takeLocked(id)
	r.mu.Unlock()
	if !ok {
		return false
	}
	if e.callback != nil {
		e.callback(res)
	}
	return true
}

// Cancel resolves the entry with a cancelled Result, firing its callback so
// a waiter is released. Cancelling an unknown id is a no-op.
func (r *Registry) Cancel(id string) bool {
	r.mu.Lock()
	e, ok := r.takeLocked(id)
	r.mu.Unlock()
	if !ok {
		return false
	}
	if e.callback != nil {
		e.callback(Result{Cancelled: true})
	}
	return true
}

// Pending returns the number of live entries.
func (r *Registry) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.expireLocked(time.Now())
	return len(r.entries)
}

// Start launches the background TTL sweep.
func (r *Registry) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.running = true
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case now := <-ticker.C:
				r.mu.Lock()
				r.expireLocked(now)
				r.mu.Unlock()
			}
		}
	}()
	return nil
}

// Stop halts the background sweep.
func (r *Registry) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	cancel := r.cancel
	r.running = false
	r.cancel = nil
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		r.wg.Wait()
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// takeLocked removes and returns a live entry. Callers hold the lock.
func (r *Registry) takeLocked(id string) (entry, bool) {
	e, ok := r.entries[id]
	if !ok {
		return entry{}, false
	}
	delete(r.entries, id)
	if time.Now().After(e.expiresAt) {
		return entry{}, false
	}
	return e, true
}

func (r *Registry) expireLocked(now time.Time) {
	for id, e := range r.entries {
		if now.After(e.expiresAt) {
			delete(r.entries, id)
			r.log.WithField("request_id", id).Warn("capture request expired unclaimed")
		}
	}
}

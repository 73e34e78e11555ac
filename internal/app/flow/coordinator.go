// Package flow orchestrates the attendance submission: permission check,
// photo capture handoff, recognition upload and result classification.
package flow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/crewmark/attendance-client/internal/app/capture"
	"github.com/crewmark/attendance-client/internal/app/domain/attendance"
	"github.com/crewmark/attendance-client/pkg/logger"
)

// State is the coordinator's position in the submission lifecycle.
type State string

const (
	StateIdle            State = "idle"
	StatePermissionCheck State = "permission_check"
	StateAwaitingCapture State = "awaiting_capture"
	StateProcessing      State = "processing"
)

// PermissionChecker answers whether the camera may be used. The device
// permission system is a collaborator; denial is terminal for the attempt.
type PermissionChecker interface {
	CameraAllowed(ctx context.Context) bool
}

// PermissionCheckerFunc adapts a function to the PermissionChecker interface.
type PermissionCheckerFunc func(ctx context.Context) bool

func (f PermissionCheckerFunc) CameraAllowed(ctx context.Context) bool {
	if f == nil {
		return false
	}
	return f(ctx)
}

// CaptureLauncher transfers control to the capture screen. Launch may return
// before the capture finishes; the produced photo, or a cancellation when the
// user backs out, arrives through the registry callback.
type CaptureLauncher interface {
	Launch(ctx context.Context, requestID string) error
}

// PhotoLoader reads the captured photo file behind a URI.
type PhotoLoader interface {
	Load(uri string) (content []byte, filename string, err error)
}

// Recognizer submits the photo for server-side recognition.
type Recognizer interface {
	Recognize(ctx context.Context, eventID int, photo []byte, filename string) (attendance.RecognitionResult, error)
}

// Refresher re-fetches the event list after a successful mark.
type Refresher interface {
	Load(ctx context.Context, refresh bool) error
}

// Outcome is the terminal result of one submission attempt.
type Outcome struct {
	Success   bool
	Cancelled bool
	Message   string
	Result    *attendance.RecognitionResult
}

const defaultRefreshDelay = time.Second

// Coordinator drives the submission state machine. One attempt at a time;
// a second MarkAttendance while one is in flight is rejected.
type Coordinator struct {
	registry    *capture.Registry
	permissions PermissionChecker
	launcher    CaptureLauncher
	photos      PhotoLoader
	recognizer  Recognizer
	events      Refresher
	log         *logger.Logger

	refreshDelay time.Duration

	mu    sync.Mutex
	state State
}

// New constructs an attendance submission coordinator.
func New(registry *capture.Registry, permissions PermissionChecker, launcher CaptureLauncher,
	photos PhotoLoader, recognizer Recognizer, events Refresher, log *logger.Logger) *Coordinator {
	if log == nil {
		log = logger.NewDefault("attendance-flow")
	}
	return &Coordinator{
		registry:     registry,
		permissions:  permissions,
		launcher:     launcher,
		photos:       photos,
		recognizer:   recognizer,
		events:       events,
		log:          log,
		refreshDelay: defaultRefreshDelay,
		state:        StateIdle,
	}
}

// State returns the coordinator's current state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// MarkAttendance runs one submission attempt for the event. Every return
// path resets the coordinator to idle.
func (c *Coordinator) MarkAttendance(ctx context.Context, eventID int) (Outcome, error) {
	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return Outcome{}, fmt.Errorf("attendance submission already in progress")
	}
	c.state = StatePermissionCheck
	c.mu.Unlock()
	defer c.setState(StateIdle)

	if !c.permissions.CameraAllowed(ctx) {
		c.log.WithField("event_id", eventID).Info("camera permission denied")
		return Outcome{Message: MsgPermissionDenied}, nil
	}

	resultCh := make(chan capture.Result, 1)
	requestID, err := c.registry.Register(func(res capture.Result) {
		resultCh <- res
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("register capture callback: %w", err)
	}

	c.setState(StateAwaitingCapture)
	if err := c.launcher.Launch(ctx, requestID); err != nil {
		c.registry.Cancel(requestID)
		return Outcome{}, fmt.Errorf("launch capture: %w", err)
	}

	var captured capture.Result
	select {
	case captured = <-resultCh:
	case <-ctx.Done():
		c.registry.Cancel(requestID)
		return Outcome{}, ctx.Err()
	}
	if captured.Cancelled {
		return Outcome{Cancelled: true, Message: MsgCaptureCancelled}, nil
	}

	c.setState(StateProcessing)
	return c.process(ctx, eventID, captured)
}

func (c *Coordinator) process(ctx context.Context, eventID int, captured capture.Result) (Outcome, error) {
	photo, filename, err := c.photos.Load(captured.PhotoURI)
	if err != nil {
		return Outcome{Message: MsgInvalidPayload}, fmt.Errorf("load photo: %w", err)
	}

	result, err := c.recognizer.Recognize(ctx, eventID, photo, filename)
	if err != nil {
		msg := classifyError(err)
		c.log.WithField("event_id", eventID).WithError(err).Warn("recognition submission failed")
		return Outcome{Message: msg}, err
	}

	if !result.Success {
		return Outcome{Message: classifyRejection(result), Result: &result}, nil
	}

	c.scheduleRefresh(eventID)
	return Outcome{
		Success: true,
		Message: successMessage(result),
		Result:  &result,
	}, nil
}

// scheduleRefresh reloads the event list shortly after a successful mark so
// roster views pick up the server-side change.
func (c *Coordinator) scheduleRefresh(eventID int) {
	if c.events == nil {
		return
	}
	time.AfterFunc(c.refreshDelay, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := c.events.Load(ctx, true); err != nil {
			c.log.WithField("event_id", eventID).WithError(err).Warn("post-mark refresh failed")
		}
	})
}

func (c *Coordinator) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

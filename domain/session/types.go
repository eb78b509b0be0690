package session

import (
	"errors"
	"image"

	"github.com/soocke/scroll-capture-go/domain/capture"
)

// State enumerates finite states of the capture session lifecycle.
// Transitions only move forward: Idle -> Monitoring -> {Stitching ->
// Completed} | Cancelled, with Completed and Cancelled decaying back to
// Idle as their implicit end of life.
type State int32

const (
	StateIdle State = iota
	StateMonitoring
	StateStitching
	StateCompleted
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateMonitoring:
		return "monitoring"
	case StateStitching:
		return "stitching"
	case StateCompleted:
		return "completed"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

var (
	// ErrAlreadyActive rejects a start request while a session is running.
	ErrAlreadyActive = errors.New("session already active")
	// ErrCancelled is surfaced through OnComplete when the user aborts.
	ErrCancelled = errors.New("session cancelled")
	// ErrNoFramesCaptured is surfaced when finish arrives with an empty store.
	ErrNoFramesCaptured = errors.New("no frames captured")
	// ErrNoRegion rejects a start request with an empty capture region.
	ErrNoRegion = errors.New("no capture region selected")
)

// Callbacks externalize session outcomes to the caller. OnProgress fires
// once per accepted frame in capture order; OnComplete fires exactly once
// per session run; OnEndOfContent fires when consecutive blank samples
// suggest the user scrolled past the end of content (whether to finish at
// that point is the caller's policy). All callbacks run on the session
// loop goroutine.
type Callbacks struct {
	OnProgress     func(frameCount int)
	OnComplete     func(img *image.RGBA, err error)
	OnEndOfContent func()
}

// Stitcher composites an ordered frame sequence into one image.
type Stitcher interface {
	Stitch(frames []*capture.CapturedFrame) (*image.RGBA, error)
}

// StateListener is called on each successful state transition.
type StateListener func(prev, next State)

// Interface slices for consumers.
type SessionStateSource interface{ Current() State }
type SessionLifecycle interface {
	Start(region image.Rectangle, cb Callbacks) error
	Finish()
	Cancel()
	Close()
}

// SessionContract aggregate for DI.
type SessionContract interface {
	SessionLifecycle
	SessionStateSource
	AddListener(StateListener)
	Stats() capture.SessionStats
}

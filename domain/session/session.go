package session

import (
	"fmt"
	"image"
	"log/slog"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/soocke/scroll-capture-go/config"
	"github.com/soocke/scroll-capture-go/domain/capture"
	"github.com/soocke/scroll-capture-go/domain/fingerprint"
)

// ScrollSession drives periodic sampling of a fixed screen region, applies
// the stability/debounce policy, and hands accepted frames to the stitcher
// on finish. All lifecycle work runs on a single event-loop goroutine, so
// ticks never overlap and callbacks fire in order. Stitching runs on a
// background goroutine so Cancel stays responsive while it is in flight
// (though a stitch, once started, is not interrupted).
type ScrollSession struct {
	cfg      *config.Config
	logger   *slog.Logger
	sampler  capture.Sampler
	stitcher Stitcher

	state  atomic.Int32
	events chan interface{}
	closed bool

	// Loop-owned per-run state.
	region    image.Rectangle
	cb        Callbacks
	store     *capture.FrameStore
	tracker   *StabilityTracker
	stopTick  chan struct{}
	completed bool
	listeners []StateListener

	ticks        atomic.Uint64
	sampleFails  atomic.Uint64
	frames       atomic.Uint64
	sampleNanos  atomic.Uint64
	lastSampleNs atomic.Int64
}

// NewSession constructs a session and starts its event loop. If cfg is nil
// the default configuration is used.
func NewSession(logger *slog.Logger, cfg *config.Config, sampler capture.Sampler, stitcher Stitcher) *ScrollSession {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	s := &ScrollSession{
		cfg:      cfg,
		logger:   logger,
		sampler:  sampler,
		stitcher: stitcher,
		events:   make(chan interface{}, 64),
		store:    capture.NewFrameStore(),
		tracker:  NewStabilityTracker(cfg, logger),
	}
	go func() {
		defer func() {
			if r := recover(); r != nil {
				stack := string(debug.Stack())
				if logger != nil {
					logger.Error("session panic", "error", r, "stack", stack)
				}
			}
		}()
		s.loop()
	}()
	return s
}

// events
type (
	evtStart struct {
		region image.Rectangle
		cb     Callbacks
	}
	evtTick   struct{ now time.Time }
	evtFinish struct{}
	evtCancel struct{}
	evtStitchDone struct {
		img *image.RGBA
		err error
	}
	evtAddListener struct{ l StateListener }
)

func (s *ScrollSession) loop() {
	for ev := range s.events {
		switch e := ev.(type) {
		case evtAddListener:
			s.listeners = append(s.listeners, e.l)
		case evtStart:
			s.handleStart(e)
		case evtTick:
			s.handleTick(e.now)
		case evtFinish:
			s.handleFinish()
		case evtCancel:
			s.handleCancel()
		case evtStitchDone:
			s.handleStitchDone(e)
		}
	}
	s.closed = true
}

// Start binds the session to a region and begins monitoring. It rejects
// synchronously with ErrNoRegion for an empty rect and ErrAlreadyActive
// unless the session is idle.
func (s *ScrollSession) Start(region image.Rectangle, cb Callbacks) error {
	if region.Empty() {
		return ErrNoRegion
	}
	if !s.state.CompareAndSwap(int32(StateIdle), int32(StateMonitoring)) {
		return ErrAlreadyActive
	}
	s.events <- evtStart{region: region, cb: cb}
	return nil
}

// Finish stops monitoring and stitches the captured frames. No-op unless
// monitoring.
func (s *ScrollSession) Finish() { s.events <- evtFinish{} }

// Cancel aborts monitoring and discards all frames. No-op unless
// monitoring; in particular it cannot interrupt an in-flight stitch.
func (s *ScrollSession) Cancel() { s.events <- evtCancel{} }

// Current returns the lifecycle state.
func (s *ScrollSession) Current() State { return State(s.state.Load()) }

// AddListener registers a transition listener.
func (s *ScrollSession) AddListener(l StateListener) { s.events <- evtAddListener{l: l} }

// Close shuts down the event loop. The session must not be used afterwards.
func (s *ScrollSession) Close() {
	if s.closed {
		return
	}
	close(s.events)
}

// Stats returns sampling counters for the current or most recent run.
func (s *ScrollSession) Stats() capture.SessionStats {
	ticks := s.ticks.Load()
	fails := s.sampleFails.Load()
	total := s.sampleNanos.Load()
	samples := ticks - fails
	var avg time.Duration
	avgMicros := 0.0
	if samples > 0 && total > 0 {
		avg = time.Duration(total / samples)
		avgMicros = float64(avg) / float64(time.Microsecond)
	}
	var last time.Time
	if ns := s.lastSampleNs.Load(); ns != 0 {
		last = time.Unix(0, ns)
	}
	return capture.SessionStats{
		Ticks:           ticks,
		SampleFailures:  fails,
		FramesCaptured:  s.frames.Load(),
		AvgSample:       avg,
		AvgSampleMicros: avgMicros,
		LastSampleAt:    last,
	}
}

func (s *ScrollSession) handleStart(e evtStart) {
	s.region = e.region
	s.cb = e.cb
	s.completed = false
	s.store.Release()
	s.tracker.Reset()
	s.ticks.Store(0)
	s.sampleFails.Store(0)
	s.frames.Store(0)
	s.sampleNanos.Store(0)
	s.lastSampleNs.Store(0)
	s.stopTick = make(chan struct{})
	go s.runTicker(s.stopTick)
	s.notify(StateIdle, StateMonitoring)
}

// runTicker posts tick events at the configured poll interval until stop
// closes. The loop processes ticks serially, so sampling for one tick
// always completes before the next tick's work begins.
func (s *ScrollSession) runTicker(stop chan struct{}) {
	t := time.NewTicker(s.cfg.PollInterval())
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case now := <-t.C:
			select {
			case s.events <- evtTick{now: now}:
			case <-stop:
				return
			}
		}
	}
}

func (s *ScrollSession) handleTick(now time.Time) {
	if s.Current() != StateMonitoring {
		return
	}
	s.ticks.Add(1)
	start := time.Now()
	img, err := s.sampler.Sample(s.region)
	if err != nil {
		// Transient sampling failures are swallowed and retried next tick.
		s.sampleFails.Add(1)
		if s.logger != nil {
			s.logger.Debug("sample failed", "error", err)
		}
		return
	}
	s.sampleNanos.Add(uint64(time.Since(start).Nanoseconds()))
	s.lastSampleNs.Store(now.UnixNano())

	switch s.tracker.Feed(img, now) {
	case VerdictBlank:
		capture.RecycleFrame(img)
		if s.tracker.BlankStreak() == s.cfg.BlankStreakLimit {
			if s.logger != nil {
				s.logger.Info("blank streak reached; likely scrolled past end of content",
					"streak", s.cfg.BlankStreakLimit)
			}
			if s.cb.OnEndOfContent != nil {
				s.cb.OnEndOfContent()
			}
		}
	case VerdictSettled:
		s.captureFrame(img, now)
	default:
		capture.RecycleFrame(img)
	}
}

func (s *ScrollSession) captureFrame(img *image.RGBA, now time.Time) {
	fp, err := fingerprint.Perceptual(img)
	if err != nil {
		capture.RecycleFrame(img)
		if s.logger != nil {
			s.logger.Warn("fingerprint failed", "error", err)
		}
		return
	}
	if last, ok := s.store.Last(); ok {
		if d := fingerprint.Distance(fp, last.Fingerprint); d <= s.cfg.DuplicateDistance {
			// Same settled frame already captured, e.g. the user paused
			// without scrolling.
			capture.RecycleFrame(img)
			if s.logger != nil {
				s.logger.Debug("settled frame is a duplicate; skipping", "distance", d)
			}
			return
		}
	}
	s.store.Append(&capture.CapturedFrame{Image: img, CapturedAt: now, Fingerprint: fp})
	s.frames.Add(1)
	n := s.store.Len()
	if s.logger != nil {
		s.logger.Debug("frame captured", "frames", n)
	}
	if s.cb.OnProgress != nil {
		s.cb.OnProgress(n)
	}
}

func (s *ScrollSession) handleFinish() {
	if s.Current() != StateMonitoring {
		return
	}
	s.stopTicker()
	if s.store.Len() == 0 {
		s.complete(nil, ErrNoFramesCaptured)
		s.transition(StateIdle)
		return
	}
	if s.store.TrimTrailingDuplicate(s.cfg.DuplicateDistance) && s.logger != nil {
		s.logger.Debug("dropped trailing duplicate frame")
	}
	s.transition(StateStitching)
	frames := s.store.Frames()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				s.events <- evtStitchDone{err: fmt.Errorf("stitch panic: %v", r)}
			}
		}()
		img, err := s.stitcher.Stitch(frames)
		s.events <- evtStitchDone{img: img, err: err}
	}()
}

func (s *ScrollSession) handleCancel() {
	if s.Current() != StateMonitoring {
		return
	}
	s.stopTicker()
	s.store.Release()
	s.transition(StateCancelled)
	s.complete(nil, ErrCancelled)
	s.transition(StateIdle)
}

func (s *ScrollSession) handleStitchDone(e evtStitchDone) {
	if s.Current() != StateStitching {
		return
	}
	if e.err != nil {
		if s.logger != nil {
			s.logger.Error("stitch failed", "error", e.err)
		}
		s.complete(nil, e.err)
		s.store.Release()
		s.transition(StateIdle)
		return
	}
	s.transition(StateCompleted)
	s.complete(e.img, nil)
	s.store.Release()
	s.transition(StateIdle)
}

func (s *ScrollSession) stopTicker() {
	if s.stopTick != nil {
		close(s.stopTick)
		s.stopTick = nil
	}
}

// complete invokes OnComplete at most once per session run.
func (s *ScrollSession) complete(img *image.RGBA, err error) {
	if s.completed {
		return
	}
	s.completed = true
	if s.cb.OnComplete != nil {
		s.cb.OnComplete(img, err)
	}
}

// transition swaps the state and notifies listeners.
func (s *ScrollSession) transition(next State) {
	prev := State(s.state.Swap(int32(next)))
	if prev == next {
		return
	}
	s.notify(prev, next)
}

func (s *ScrollSession) notify(prev, next State) {
	if s.logger != nil {
		s.logger.Debug("session state transition", "from", prev.String(), "to", next.String())
	}
	for _, l := range s.listeners {
		l(prev, next)
	}
}

// Ensure contract satisfaction
var _ SessionContract = (*ScrollSession)(nil)

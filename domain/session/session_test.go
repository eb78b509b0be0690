package session

import (
	"errors"
	"image"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/soocke/scroll-capture-go/config"
	"github.com/soocke/scroll-capture-go/domain/capture"
)

// fakeSampler serves a configurable frame, returning a fresh copy per call
// so the session may recycle samples without aliasing the source.
type fakeSampler struct {
	mu  sync.Mutex
	img *image.RGBA
	err error
}

func (f *fakeSampler) Sample(rect image.Rectangle) (*image.RGBA, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := image.NewRGBA(f.img.Rect)
	copy(out.Pix, f.img.Pix)
	return out, nil
}

func (f *fakeSampler) Set(img *image.RGBA) {
	f.mu.Lock()
	f.img, f.err = img, nil
	f.mu.Unlock()
}

func (f *fakeSampler) SetErr(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

// fakeStitcher records how many frames it was handed.
type fakeStitcher struct {
	frames atomic.Int32
	err    error
}

func (f *fakeStitcher) Stitch(frames []*capture.CapturedFrame) (*image.RGBA, error) {
	f.frames.Store(int32(len(frames)))
	if f.err != nil {
		return nil, f.err
	}
	return image.NewRGBA(image.Rect(0, 0, 300, 500)), nil
}

type completion struct {
	img *image.RGBA
	err error
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.PollIntervalMs = 5
	cfg.StabilizeDelayMs = 30
	return cfg
}

var testRegion = image.Rect(0, 0, 300, 300)

func waitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timeout waiting for %s", msg)
}

func TestSession_CapturesSettledFrameExactlyOnce(t *testing.T) {
	sampler := &fakeSampler{}
	sampler.Set(contentFrame(200))
	stitcher := &fakeStitcher{}
	s := NewSession(discardLogger(), testConfig(), sampler, stitcher)
	defer s.Close()

	var progress atomic.Int32
	done := make(chan completion, 2)
	cb := Callbacks{
		OnProgress: func(n int) { progress.Store(int32(n)) },
		OnComplete: func(img *image.RGBA, err error) { done <- completion{img, err} },
	}
	if err := s.Start(testRegion, cb); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitFor(t, 2*time.Second, func() bool { return progress.Load() == 1 }, "first frame")

	// The settled frame must not be captured again while nothing changes.
	time.Sleep(150 * time.Millisecond)
	if got := progress.Load(); got != 1 {
		t.Fatalf("frames after idle wait = %d, want 1", got)
	}

	s.Finish()
	res := <-done
	if res.err != nil {
		t.Fatalf("complete error = %v", res.err)
	}
	if res.img == nil {
		t.Fatalf("complete returned nil composite")
	}
	if got := stitcher.frames.Load(); got != 1 {
		t.Fatalf("stitcher saw %d frames, want 1", got)
	}
	waitFor(t, 2*time.Second, func() bool { return s.Current() == StateIdle }, "return to idle")
}

func TestSession_CapturesEachScrollStep(t *testing.T) {
	sampler := &fakeSampler{}
	sampler.Set(contentFrame(200))
	stitcher := &fakeStitcher{}
	s := NewSession(discardLogger(), testConfig(), sampler, stitcher)
	defer s.Close()

	var progress atomic.Int32
	done := make(chan completion, 2)
	cb := Callbacks{
		OnProgress: func(n int) { progress.Store(int32(n)) },
		OnComplete: func(img *image.RGBA, err error) { done <- completion{img, err} },
	}
	if err := s.Start(testRegion, cb); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitFor(t, 2*time.Second, func() bool { return progress.Load() == 1 }, "first frame")

	sampler.Set(contentFrame(30))
	waitFor(t, 2*time.Second, func() bool { return progress.Load() == 2 }, "second frame")

	s.Finish()
	res := <-done
	if res.err != nil {
		t.Fatalf("complete error = %v", res.err)
	}
	if got := stitcher.frames.Load(); got != 2 {
		t.Fatalf("stitcher saw %d frames, want 2", got)
	}
	if got := s.Stats().FramesCaptured; got != 2 {
		t.Fatalf("stats frames = %d, want 2", got)
	}
	waitFor(t, 2*time.Second, func() bool { return s.Current() == StateIdle }, "return to idle")
}

func TestSession_SettledDuplicateSkipped(t *testing.T) {
	sampler := &fakeSampler{}
	sampler.Set(contentFrame(200))
	stitcher := &fakeStitcher{}
	s := NewSession(discardLogger(), testConfig(), sampler, stitcher)
	defer s.Close()

	var progress atomic.Int32
	done := make(chan completion, 2)
	cb := Callbacks{
		OnProgress: func(n int) { progress.Store(int32(n)) },
		OnComplete: func(img *image.RGBA, err error) { done <- completion{img, err} },
	}
	if err := s.Start(testRegion, cb); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitFor(t, 2*time.Second, func() bool { return progress.Load() == 1 }, "first frame")

	// A small patch changes the content strip hash, so the frame settles
	// again, but leaves the coarse perceptual hash untouched. The look-back
	// against the previous capture must reject it as a duplicate.
	tweaked := contentFrame(200)
	fill(tweaked, 150, 150, 158, 158, 120)
	sampler.Set(tweaked)

	time.Sleep(200 * time.Millisecond)
	if got := progress.Load(); got != 1 {
		t.Fatalf("frames after near-duplicate = %d, want 1", got)
	}

	s.Finish()
	if res := <-done; res.err != nil {
		t.Fatalf("complete error = %v", res.err)
	}
	waitFor(t, 2*time.Second, func() bool { return s.Current() == StateIdle }, "return to idle")
}

func TestSession_StartWhileActiveRejected(t *testing.T) {
	sampler := &fakeSampler{}
	sampler.Set(contentFrame(200))
	s := NewSession(discardLogger(), testConfig(), sampler, &fakeStitcher{})
	defer s.Close()

	if err := s.Start(testRegion, Callbacks{}); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := s.Start(testRegion, Callbacks{}); !errors.Is(err, ErrAlreadyActive) {
		t.Fatalf("second start error = %v, want ErrAlreadyActive", err)
	}
	s.Cancel()
	waitFor(t, 2*time.Second, func() bool { return s.Current() == StateIdle }, "return to idle")
}

func TestSession_EmptyRegionRejected(t *testing.T) {
	s := NewSession(discardLogger(), testConfig(), &fakeSampler{}, &fakeStitcher{})
	defer s.Close()

	if err := s.Start(image.Rectangle{}, Callbacks{}); !errors.Is(err, ErrNoRegion) {
		t.Fatalf("start error = %v, want ErrNoRegion", err)
	}
	if got := s.Current(); got != StateIdle {
		t.Fatalf("state after rejected start = %v, want idle", got)
	}
}

func TestSession_CancelDiscardsFramesAndAllowsRestart(t *testing.T) {
	sampler := &fakeSampler{}
	sampler.Set(contentFrame(200))
	s := NewSession(discardLogger(), testConfig(), sampler, &fakeStitcher{})
	defer s.Close()

	var progress atomic.Int32
	done := make(chan completion, 2)
	cb := Callbacks{
		OnProgress: func(n int) { progress.Store(int32(n)) },
		OnComplete: func(img *image.RGBA, err error) { done <- completion{img, err} },
	}
	if err := s.Start(testRegion, cb); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitFor(t, 2*time.Second, func() bool { return progress.Load() == 1 }, "first frame")

	s.Cancel()
	res := <-done
	if !errors.Is(res.err, ErrCancelled) {
		t.Fatalf("complete error = %v, want ErrCancelled", res.err)
	}
	if res.img != nil {
		t.Fatalf("cancelled session returned a composite")
	}
	waitFor(t, 2*time.Second, func() bool { return s.Current() == StateIdle }, "return to idle")
	if s.store.Len() != 0 {
		t.Fatalf("store holds %d frames after cancel, want 0", s.store.Len())
	}
	select {
	case extra := <-done:
		t.Fatalf("OnComplete fired twice, second: %v", extra.err)
	default:
	}

	// A cancelled session must accept a new run.
	if err := s.Start(testRegion, Callbacks{}); err != nil {
		t.Fatalf("restart after cancel: %v", err)
	}
	s.Cancel()
	waitFor(t, 2*time.Second, func() bool { return s.Current() == StateIdle }, "return to idle")
}

func TestSession_FinishWithoutFrames(t *testing.T) {
	sampler := &fakeSampler{}
	sampler.SetErr(errors.New("screen busy"))
	s := NewSession(discardLogger(), testConfig(), sampler, &fakeStitcher{})
	defer s.Close()

	done := make(chan completion, 2)
	cb := Callbacks{OnComplete: func(img *image.RGBA, err error) { done <- completion{img, err} }}
	if err := s.Start(testRegion, cb); err != nil {
		t.Fatalf("start: %v", err)
	}
	s.Finish()
	res := <-done
	if !errors.Is(res.err, ErrNoFramesCaptured) {
		t.Fatalf("complete error = %v, want ErrNoFramesCaptured", res.err)
	}
	waitFor(t, 2*time.Second, func() bool { return s.Current() == StateIdle }, "return to idle")
}

func TestSession_BlankStreakSignalsEndOfContent(t *testing.T) {
	sampler := &fakeSampler{}
	sampler.Set(blankFrame())
	s := NewSession(discardLogger(), testConfig(), sampler, &fakeStitcher{})
	defer s.Close()

	var progress atomic.Int32
	endOfContent := make(chan struct{}, 4)
	cb := Callbacks{
		OnProgress:     func(n int) { progress.Store(int32(n)) },
		OnEndOfContent: func() { endOfContent <- struct{}{} },
	}
	if err := s.Start(testRegion, cb); err != nil {
		t.Fatalf("start: %v", err)
	}
	select {
	case <-endOfContent:
	case <-time.After(2 * time.Second):
		t.Fatalf("timeout waiting for end-of-content signal")
	}
	if got := progress.Load(); got != 0 {
		t.Fatalf("blank frames were captured: %d", got)
	}
	// The signal fires once at the streak limit, not on every later blank.
	time.Sleep(100 * time.Millisecond)
	select {
	case <-endOfContent:
		t.Fatalf("end-of-content signalled more than once")
	default:
	}
	s.Cancel()
	waitFor(t, 2*time.Second, func() bool { return s.Current() == StateIdle }, "return to idle")
}

func TestSession_SampleFailuresAreRetried(t *testing.T) {
	sampler := &fakeSampler{}
	sampler.SetErr(errors.New("screen busy"))
	s := NewSession(discardLogger(), testConfig(), sampler, &fakeStitcher{})
	defer s.Close()

	var progress atomic.Int32
	cb := Callbacks{OnProgress: func(n int) { progress.Store(int32(n)) }}
	if err := s.Start(testRegion, cb); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitFor(t, 2*time.Second, func() bool { return s.Stats().SampleFailures >= 3 }, "sample failures")
	if got := s.Current(); got != StateMonitoring {
		t.Fatalf("state during failures = %v, want monitoring", got)
	}

	// Sampling recovers and the session captures normally.
	sampler.Set(contentFrame(200))
	waitFor(t, 2*time.Second, func() bool { return progress.Load() == 1 }, "frame after recovery")
	s.Cancel()
	waitFor(t, 2*time.Second, func() bool { return s.Current() == StateIdle }, "return to idle")
}

func TestSession_StitchErrorSurfaced(t *testing.T) {
	stitchErr := errors.New("seam not found")
	sampler := &fakeSampler{}
	sampler.Set(contentFrame(200))
	s := NewSession(discardLogger(), testConfig(), sampler, &fakeStitcher{err: stitchErr})
	defer s.Close()

	var progress atomic.Int32
	done := make(chan completion, 2)
	cb := Callbacks{
		OnProgress: func(n int) { progress.Store(int32(n)) },
		OnComplete: func(img *image.RGBA, err error) { done <- completion{img, err} },
	}
	if err := s.Start(testRegion, cb); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitFor(t, 2*time.Second, func() bool { return progress.Load() == 1 }, "first frame")
	s.Finish()
	res := <-done
	if !errors.Is(res.err, stitchErr) {
		t.Fatalf("complete error = %v, want stitch error", res.err)
	}
	waitFor(t, 2*time.Second, func() bool { return s.Current() == StateIdle }, "return to idle")
}

func TestSession_ListenerObservesLifecycle(t *testing.T) {
	sampler := &fakeSampler{}
	sampler.Set(contentFrame(200))
	s := NewSession(discardLogger(), testConfig(), sampler, &fakeStitcher{})
	defer s.Close()

	var mu sync.Mutex
	var seen []State
	s.AddListener(func(prev, next State) {
		mu.Lock()
		seen = append(seen, next)
		mu.Unlock()
	})

	done := make(chan completion, 2)
	cb := Callbacks{OnComplete: func(img *image.RGBA, err error) { done <- completion{img, err} }}
	if err := s.Start(testRegion, cb); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitFor(t, 2*time.Second, func() bool { return s.Stats().FramesCaptured >= 1 }, "first frame")
	s.Finish()
	<-done
	waitFor(t, 2*time.Second, func() bool { return s.Current() == StateIdle }, "return to idle")

	want := []State{StateMonitoring, StateStitching, StateCompleted, StateIdle}
	mu.Lock()
	defer mu.Unlock()
	if len(seen) != len(want) {
		t.Fatalf("transitions = %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("transition %d = %v, want %v", i, seen[i], want[i])
		}
	}
}

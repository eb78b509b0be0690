package capture

import (
	"image"
	"time"

	"github.com/soocke/scroll-capture-go/domain/fingerprint"
)

// CapturedFrame is one accepted sample of the capture region. Immutable
// once appended to a FrameStore; the store owns the bitmap until Release.
type CapturedFrame struct {
	Image       *image.RGBA
	CapturedAt  time.Time
	Fingerprint uint64
}

// FrameStore is the ordered, append-only sequence of accepted frames for
// the active session. Not safe for concurrent use; it is owned by the
// session loop goroutine.
type FrameStore struct {
	frames []*CapturedFrame
}

// NewFrameStore returns an empty store.
func NewFrameStore() *FrameStore {
	return &FrameStore{}
}

// Append adds a frame at the end of the sequence. Duplicate suppression is
// the caller's responsibility (look-back against Last before appending).
func (s *FrameStore) Append(f *CapturedFrame) {
	if f == nil {
		return
	}
	s.frames = append(s.frames, f)
}

// Len returns the number of stored frames.
func (s *FrameStore) Len() int { return len(s.frames) }

// Last returns the most recently appended frame, if any.
func (s *FrameStore) Last() (*CapturedFrame, bool) {
	if len(s.frames) == 0 {
		return nil, false
	}
	return s.frames[len(s.frames)-1], true
}

// Frames returns a copy of the ordered frame slice. The frames themselves
// are shared; callers must not mutate them.
func (s *FrameStore) Frames() []*CapturedFrame {
	out := make([]*CapturedFrame, len(s.frames))
	copy(out, s.frames)
	return out
}

// TrimTrailingDuplicate drops the last frame when it is a near-duplicate
// of its predecessor and reports whether a frame was dropped. Guards
// against a final frame captured a moment before finish, when no new
// content actually rendered.
func (s *FrameStore) TrimTrailingDuplicate(maxDistance int) bool {
	n := len(s.frames)
	if n < 2 {
		return false
	}
	last, prev := s.frames[n-1], s.frames[n-2]
	if fingerprint.Distance(last.Fingerprint, prev.Fingerprint) > maxDistance {
		return false
	}
	RecycleFrame(last.Image)
	s.frames[n-1] = nil
	s.frames = s.frames[:n-1]
	return true
}

// Release recycles all frame bitmaps into the frame pool and empties the
// store. Called when a session completes, fails, or is cancelled to bound
// memory growth for long scroll sessions.
func (s *FrameStore) Release() {
	for i, f := range s.frames {
		if f != nil {
			RecycleFrame(f.Image)
			f.Image = nil
		}
		s.frames[i] = nil
	}
	s.frames = s.frames[:0]
}

package session

import (
	"image"
	"log/slog"
	"time"

	"github.com/soocke/scroll-capture-go/config"
	"github.com/soocke/scroll-capture-go/domain/fingerprint"
)

// Verdict classifies one sampled frame against the tracker's recent history.
type Verdict int

const (
	VerdictWaiting  Verdict = iota // unchanged, but not settled long enough (or nothing pending)
	VerdictChanging                // content moved since the last sample
	VerdictSettled                 // unchanged for the stabilization delay; eligible for capture
	VerdictBlank                   // featureless frame, likely past the end of content
)

func (v Verdict) String() string {
	switch v {
	case VerdictWaiting:
		return "waiting"
	case VerdictChanging:
		return "changing"
	case VerdictSettled:
		return "settled"
	case VerdictBlank:
		return "blank"
	default:
		return "unknown"
	}
}

// StabilityTracker implements the debounce policy over sampled frames: a
// frame is eligible for capture only after its content strip has stayed
// unchanged for the stabilization delay. Blank frames are counted in a
// streak instead of feeding the debounce.
// Not safe for concurrent use; call Feed from a single goroutine.
type StabilityTracker struct {
	logger         *slog.Logger
	changeDistance int
	settleDelay    time.Duration

	lastStrip     uint64
	lastChange    time.Time
	changePending bool
	blankStreak   int
}

// NewStabilityTracker returns a tracker configured from cfg. If cfg is nil
// the default configuration is used.
func NewStabilityTracker(cfg *config.Config, logger *slog.Logger) *StabilityTracker {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &StabilityTracker{
		logger:         logger,
		changeDistance: cfg.ChangeDistance,
		settleDelay:    cfg.StabilizeDelay(),
	}
}

// Reset clears all per-session state.
func (t *StabilityTracker) Reset() {
	t.lastStrip = 0
	t.lastChange = time.Time{}
	t.changePending = false
	t.blankStreak = 0
}

// BlankStreak returns the number of consecutive blank samples seen.
func (t *StabilityTracker) BlankStreak() int { return t.blankStreak }

// Feed classifies one sample taken at time now. A VerdictSettled clears
// the pending change, so each settle is reported exactly once.
func (t *StabilityTracker) Feed(img *image.RGBA, now time.Time) Verdict {
	if img == nil {
		return VerdictWaiting
	}
	strip := fingerprint.ContentStrip(img)
	if fingerprint.IsBlank(img) {
		t.blankStreak++
		return VerdictBlank
	}
	t.blankStreak = 0

	if fingerprint.Distance(strip, t.lastStrip) >= t.changeDistance {
		// Content still moving: restart the stabilization clock.
		t.lastStrip = strip
		t.lastChange = now
		t.changePending = true
		return VerdictChanging
	}
	if t.changePending && now.Sub(t.lastChange) >= t.settleDelay {
		t.changePending = false
		if t.logger != nil {
			t.logger.Debug("content settled", "since_change", now.Sub(t.lastChange))
		}
		return VerdictSettled
	}
	return VerdictWaiting
}

package stitch

import (
	"errors"
	"fmt"
	"image"
	"image/draw"
	"log/slog"

	"github.com/soocke/scroll-capture-go/domain/capture"
)

// ErrStitchFailed wraps unrecoverable compositing conditions.
var ErrStitchFailed = errors.New("stitching failed")

// maxOutputHeight bounds the composite allocation for runaway sessions.
const maxOutputHeight = 200_000

// Stitcher composites an ordered frame sequence into one tall image by
// detecting the vertical overlap between consecutive frames.
type Stitcher struct {
	logger *slog.Logger
	opts   SearchOptions
}

// New returns a Stitcher using the given overlap search options (zero
// values take defaults).
func New(logger *slog.Logger, opts SearchOptions) *Stitcher {
	opts.normalize()
	return &Stitcher{logger: logger, opts: opts}
}

// Stitch composites frames in capture order. A single frame is returned as
// a pixel-identical copy. All frames are assumed to share the first
// frame's width, since the capture region is fixed for a whole session.
func (s *Stitcher) Stitch(frames []*capture.CapturedFrame) (*image.RGBA, error) {
	if len(frames) == 0 {
		return nil, fmt.Errorf("%w: empty frame sequence", ErrStitchFailed)
	}
	if frames[0].Image == nil {
		return nil, fmt.Errorf("%w: nil frame bitmap", ErrStitchFailed)
	}
	if len(frames) == 1 {
		return cloneRGBA(frames[0].Image), nil
	}

	positions := make([]int, len(frames))
	for i := 1; i < len(frames); i++ {
		prev, cur := frames[i-1].Image, frames[i].Image
		if cur == nil {
			return nil, fmt.Errorf("%w: nil frame bitmap", ErrStitchFailed)
		}
		res := FindOverlap(prev, cur, s.opts)
		if s.logger != nil {
			s.logger.Debug("overlap detected",
				"pair", i,
				"offset", res.OffsetPixels,
				"confidence", res.Confidence)
		}
		positions[i] = positions[i-1] + prev.Bounds().Dy() - res.OffsetPixels
	}

	width := frames[0].Image.Bounds().Dx()
	height := positions[len(frames)-1] + frames[len(frames)-1].Image.Bounds().Dy()
	if width <= 0 || height <= 0 || height > maxOutputHeight {
		return nil, fmt.Errorf("%w: invalid composite size %dx%d", ErrStitchFailed, width, height)
	}

	out := image.NewRGBA(image.Rect(0, 0, width, height))
	// Later frames are drawn after earlier ones, so a residual seam favors
	// the newer, more complete content.
	for i, f := range frames {
		b := f.Image.Bounds()
		dst := image.Rect(0, positions[i], b.Dx(), positions[i]+b.Dy())
		draw.Draw(out, dst, f.Image, b.Min, draw.Src)
	}
	return out, nil
}

func cloneRGBA(src *image.RGBA) *image.RGBA {
	b := src.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), src, b.Min, draw.Src)
	return out
}

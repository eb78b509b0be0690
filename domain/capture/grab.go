//go:build !windows

package capture

import (
	"errors"
	"fmt"
	"image"
	"image/draw"

	"github.com/vova616/screenshot"
)

// GrabRegion captures rect from the screen and returns it as a pooled RGBA
// frame with bounds (0,0)-(w,h).
//
// The screenshot library allocates a fresh frame per call; copying it into
// a pooled buffer keeps long sessions from retaining many distinct backing
// slices (see frame_pool.go).
func GrabRegion(rect image.Rectangle) (*image.RGBA, error) {
	if rect.Empty() {
		return nil, errors.New("capture: empty region")
	}
	src, err := screenshot.CaptureRect(rect)
	if err != nil {
		return nil, fmt.Errorf("capture: %w", err)
	}
	if src == nil {
		return nil, errors.New("capture: nil frame")
	}
	out := AcquireFrame(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	draw.Draw(out, out.Bounds(), src, src.Bounds().Min, draw.Src)
	return out, nil
}

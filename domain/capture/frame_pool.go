package capture

import (
	"image"
	"sync"
)

// Lightweight reusable frame pool to reduce long-lived heap churn caused by
// repeated allocation of large RGBA backing slices. Every sampling tick
// needs a region-sized buffer and most ticks are discarded (blank, still
// changing, or duplicate), so recycling keeps a long session from retaining
// many distinct backing slices. On Windows the grab path captures straight
// into a pooled buffer; elsewhere the screenshot library's freshly
// allocated frame is copied into one.
//
// Usage: AcquireFrame(rect) returns a *image.RGBA whose Pix capacity is at
// least rect area * 4. Consumers call RecycleFrame once a frame is no
// longer referenced. If consumers never recycle, behavior degrades
// gracefully to plain allocation.

var framePool sync.Pool // stores *image.RGBA

// AcquireFrame returns a reusable RGBA image sized to rect. The returned
// Pix length exactly matches rect area * 4, and Stride is width*4.
func AcquireFrame(rect image.Rectangle) *image.RGBA {
	w, h := rect.Dx(), rect.Dy()
	if w <= 0 || h <= 0 {
		return &image.RGBA{Rect: rect}
	}
	needed := w * h * 4
	var img *image.RGBA
	if v := framePool.Get(); v != nil {
		img = v.(*image.RGBA)
	}
	if img == nil || cap(img.Pix) < needed {
		img = &image.RGBA{Pix: make([]byte, needed), Stride: w * 4, Rect: rect}
	} else {
		img.Stride = w * 4
		img.Rect = rect
		img.Pix = img.Pix[:needed]
	}
	return img
}

// RecycleFrame returns the frame to the pool for potential reuse. The frame
// must no longer be accessed by the caller after invoking RecycleFrame.
func RecycleFrame(img *image.RGBA) {
	if img == nil || img.Pix == nil {
		return
	}
	framePool.Put(img)
}

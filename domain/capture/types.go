package capture

import "image"

// Sampler produces one bitmap of a fixed screen region per call. It must
// be safe to call at the session's poll rate (up to 20 Hz) and is expected
// to return the region at its native resolution.
type Sampler interface {
	Sample(rect image.Rectangle) (*image.RGBA, error)
}

// SamplerFunc adapts a plain function to the Sampler interface.
type SamplerFunc func(rect image.Rectangle) (*image.RGBA, error)

func (f SamplerFunc) Sample(rect image.Rectangle) (*image.RGBA, error) { return f(rect) }

// ScreenSampler captures the live screen through the platform grab path.
type ScreenSampler struct{}

func (ScreenSampler) Sample(rect image.Rectangle) (*image.RGBA, error) {
	return GrabRegion(rect)
}

var _ Sampler = ScreenSampler{}
var _ Sampler = SamplerFunc(nil)

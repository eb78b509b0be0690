package fingerprint

import (
	"hash/fnv"
	"image"
	"math/bits"

	"github.com/corona10/goimagehash"
	"github.com/disintegration/imaging"
)

// Content-strip geometry: the middle third vertically and the middle 60%
// horizontally, so scrollbars and sidebars never feed the hash.
const (
	stripGridSize         = 24
	stripHorizontalMargin = 0.20
)

// Perceptual returns a 64-bit average hash of the whole frame: an 8x8
// grayscale grid thresholded against its mean brightness. It is stable
// under compression and anti-aliasing noise but shifts when large visual
// regions change.
func Perceptual(img image.Image) (uint64, error) {
	h, err := goimagehash.AverageHash(img)
	if err != nil {
		return 0, err
	}
	return h.GetHash(), nil
}

// ContentStrip returns a 64-bit FNV-1a hash over a 24x24 grayscale
// downsample of the frame's central content band. It is deliberately more
// sensitive to small scroll deltas than Perceptual, since it targets the
// region where scrolling content lives.
func ContentStrip(img image.Image) uint64 {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	x0 := b.Min.X + int(float64(w)*stripHorizontalMargin)
	x1 := b.Max.X - int(float64(w)*stripHorizontalMargin)
	y0 := b.Min.Y + h/3
	y1 := y0 + h/3
	strip := imaging.Crop(img, image.Rect(x0, y0, x1, y1))
	small := imaging.Grayscale(imaging.Resize(strip, stripGridSize, stripGridSize, imaging.Box))

	// Grayscale NRGBA stores the sample in every channel; the R byte is enough.
	samples := make([]byte, 0, stripGridSize*stripGridSize)
	for i := 0; i+3 < len(small.Pix); i += 4 {
		samples = append(samples, small.Pix[i])
	}
	digest := fnv.New64a()
	digest.Write(samples)
	return digest.Sum64()
}

// Distance returns the hamming distance between two 64-bit fingerprints,
// in the range 0..64.
func Distance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}

package fingerprint

import (
	"image"

	"github.com/disintegration/imaging"
)

const (
	blankGridSize    = 16
	blankMeanMin     = 240.0
	blankVarianceMax = 50.0
)

// IsBlank reports whether a frame is featureless: near-white mean
// brightness AND low variance over a 16x16 grayscale grid. Both conditions
// must hold, so a uniformly dark frame is not misclassified as blank.
// Blank frames typically mean the user scrolled past the end of content.
func IsBlank(img image.Image) bool {
	small := imaging.Grayscale(imaging.Resize(img, blankGridSize, blankGridSize, imaging.Box))
	n := blankGridSize * blankGridSize
	if len(small.Pix) < n*4 {
		return false
	}
	var sum, sumSq float64
	for i := 0; i < n; i++ {
		v := float64(small.Pix[i*4])
		sum += v
		sumSq += v * v
	}
	mean := sum / float64(n)
	variance := sumSq/float64(n) - mean*mean
	return mean > blankMeanMin && variance < blankVarianceMax
}

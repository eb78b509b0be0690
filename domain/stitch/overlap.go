package stitch

import "image"

// SearchOptions configures the vertical overlap scan between two frames.
// Zero values fall back to the defaults noted per field.
type SearchOptions struct {
	MinOverlap      int     // smallest candidate overlap in pixels (default 20); also the fallback offset
	Step            int     // candidate step in pixels (default 2)
	MaxCompareRows  int     // rows compared per candidate (default 200)
	SearchHeightCap int     // cap on the scanned band height (default 1200)
	Tolerance       int     // per-channel difference tolerated per pixel (default 20)
	RowMatchRatio   float64 // fraction of band pixels within tolerance for a row to match (default 0.80)
	EdgeMargin      float64 // horizontal fraction excluded on each side, skips scrollbars (default 0.20)
	MinConfidence   int     // best match percentage below which no overlap is trusted (default 50)
	TieMargin       int     // percentage-point window for preferring smaller offsets (default 5)
}

func (o *SearchOptions) normalize() {
	if o.MinOverlap <= 0 {
		o.MinOverlap = 20
	}
	if o.Step <= 0 {
		o.Step = 2
	}
	if o.MaxCompareRows <= 0 {
		o.MaxCompareRows = 200
	}
	if o.SearchHeightCap <= 0 {
		o.SearchHeightCap = 1200
	}
	if o.Tolerance <= 0 {
		o.Tolerance = 20
	}
	if o.RowMatchRatio <= 0 || o.RowMatchRatio > 1 {
		o.RowMatchRatio = 0.80
	}
	if o.EdgeMargin < 0 || o.EdgeMargin >= 0.5 {
		o.EdgeMargin = 0.20
	}
	if o.MinConfidence <= 0 || o.MinConfidence > 100 {
		o.MinConfidence = 50
	}
	if o.TieMargin < 0 || o.TieMargin > 100 {
		o.TieMargin = 5
	}
}

// OverlapResult reports the chosen overlap offset and its row-match
// percentage. Produced per adjacent frame pair; not persisted.
type OverlapResult struct {
	OffsetPixels int
	Confidence   int
}

// FindOverlap returns the number of pixels k such that the bottom k rows of
// top best match the top k rows of bottom.
//
// This is a linear scan over candidate offsets with row sampling, not a
// dense cross-correlation: human-scroll-speed frames overlap substantially,
// so a coarse step with a capped search height keeps the cost bounded at
// any resolution. When the best candidate's match percentage stays below
// MinConfidence the pair is treated as having no reliable overlap and the
// frames are stacked with only the minimal conservative overlap. Among
// near-equal candidates the smallest offset wins, so an ambiguous match
// never over-trims content.
func FindOverlap(top, bottom *image.RGBA, opts SearchOptions) OverlapResult {
	opts.normalize()
	fallback := OverlapResult{OffsetPixels: opts.MinOverlap}
	if top == nil || bottom == nil {
		return fallback
	}
	width := min(top.Bounds().Dx(), bottom.Bounds().Dx())
	searchH := min(top.Bounds().Dy(), bottom.Bounds().Dy(), opts.SearchHeightCap)
	maxK := int(0.7 * float64(searchH))
	if width <= 0 || maxK < opts.MinOverlap {
		return fallback
	}

	// Horizontal band excluding the outer margins on both sides.
	x0 := int(float64(width) * opts.EdgeMargin)
	x1 := width - x0
	if x1 <= x0 {
		x0, x1 = 0, width
	}

	type candidate struct{ k, pct int }
	best := candidate{k: opts.MinOverlap, pct: -1}
	candidates := make([]candidate, 0, (maxK-opts.MinOverlap)/opts.Step+1)
	topBounds := top.Bounds()
	bottomBounds := bottom.Bounds()
	for k := opts.MinOverlap; k <= maxK; k += opts.Step {
		rows := min(k, opts.MaxCompareRows)
		matched := 0
		for r := 0; r < rows; r++ {
			ty := topBounds.Max.Y - k + r
			by := bottomBounds.Min.Y + r
			if rowsMatch(top, bottom, ty, by, x0, x1, opts.Tolerance, opts.RowMatchRatio) {
				matched++
			}
		}
		pct := matched * 100 / rows
		candidates = append(candidates, candidate{k: k, pct: pct})
		if pct > best.pct {
			best = candidate{k: k, pct: pct}
		}
	}

	if best.pct < opts.MinConfidence {
		fallback.Confidence = max(best.pct, 0)
		return fallback
	}
	// Prefer the smallest offset among near-equally good candidates.
	chosen := best
	for _, c := range candidates {
		if c.pct >= best.pct-opts.TieMargin && c.k < chosen.k {
			chosen = c
		}
	}
	return OverlapResult{OffsetPixels: chosen.k, Confidence: chosen.pct}
}

// rowsMatch compares one row pair inside the horizontal band [x0,x1). The
// rows match when at least ratio of the pixels keep every RGB channel
// difference within tolerance.
func rowsMatch(top, bottom *image.RGBA, ty, by, x0, x1, tolerance int, ratio float64) bool {
	total := x1 - x0
	if total <= 0 {
		return false
	}
	allowedBad := int(float64(total) * (1 - ratio))
	bad := 0
	ti := top.PixOffset(top.Bounds().Min.X+x0, ty)
	bi := bottom.PixOffset(bottom.Bounds().Min.X+x0, by)
	tp, bp := top.Pix, bottom.Pix
	for x := 0; x < total; x++ {
		if absDiff(tp[ti], bp[bi]) > tolerance ||
			absDiff(tp[ti+1], bp[bi+1]) > tolerance ||
			absDiff(tp[ti+2], bp[bi+2]) > tolerance {
			bad++
			if bad > allowedBad {
				return false
			}
		}
		ti += 4
		bi += 4
	}
	return true
}

func absDiff(a, b byte) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}

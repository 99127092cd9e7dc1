package retrieval

import (
	"slices"

	"github.com/koopa0/briefing/internal/chain"
)

// FilterByElbow trims a score-ordered document list at the knee of its
// descending score curve. Scores are multiplied by scale before knee
// detection because cosine-like scores cluster too tightly near 1.0 for the
// algorithm to see a bend. Returns the input unchanged when disabled, when
// the list is too short, or when no knee exists (e.g. all scores equal).
func FilterByElbow(docs []*chain.Document, enabled bool, sensitivity, scale float64) []*chain.Document {
	if !enabled || len(docs) == 0 {
		return docs
	}

	scores := make([]float64, len(docs))
	for i, d := range docs {
		scores[i] = d.Metadata.Score * scale
	}

	knee, ok := kneeIndex(scores, sensitivity)
	if !ok {
		return docs
	}
	return docs[:knee]
}

// kneeIndex locates the knee of a convex, decreasing curve using the
// Kneedle method (Satopaa et al., 2011): normalise, invert to a concave
// increasing curve, and find the local maximum of the difference curve whose
// following values drop below a sensitivity-scaled threshold. Returns the
// number of points before the knee and whether a knee was found.
func kneeIndex(ys []float64, sensitivity float64) (int, bool) {
	n := len(ys)
	if n < 3 {
		return 0, false
	}

	ymin := slices.Min(ys)
	ymax := slices.Max(ys)
	if ymax == ymin {
		return 0, false
	}

	// Difference curve of the concave-increasing transform.
	dx := 1.0 / float64(n-1)
	diff := make([]float64, n)
	for i, y := range ys {
		normalised := (y - ymin) / (ymax - ymin)
		diff[i] = (1 - normalised) - float64(i)*dx
	}

	var (
		candidate     int
		threshold     float64
		haveCandidate bool
	)
	for i := 1; i < n; i++ {
		interior := i+1 < n
		if interior && diff[i] >= diff[i-1] && diff[i] >= diff[i+1] {
			candidate = i
			threshold = diff[i] - sensitivity*dx
			haveCandidate = true
			continue
		}
		if interior && diff[i] <= diff[i-1] && diff[i] <= diff[i+1] {
			haveCandidate = false
			continue
		}
		if haveCandidate && diff[i] < threshold {
			return candidate, true
		}
	}
	return 0, false
}

package analysis

import (
	"math"

	"github.com/rewired-gh/seismoalert/internal/models"
)

// binsPerUnit is 1/BinWidth. Bin edges are computed by dividing by it so that
// bin 23 maps to exactly 2.3 rather than 23*0.1.
const binsPerUnit = 10

// magnitudeBin maps a magnitude to its 0.1-wide bin index (nearest tenth).
func magnitudeBin(m float64) int {
	return int(math.Round(m * binsPerUnit))
}

// MagnitudeOfCompleteness estimates Mc with the maximum-curvature method:
// magnitudes are rounded into 0.1 bins and the most populated bin is returned.
// When several bins share the peak count the lowest magnitude wins, which keeps
// more events in a subsequent fit.
func MagnitudeOfCompleteness(c *models.Catalog) (float64, error) {
	if c.Len() == 0 {
		return 0, insufficient("cannot compute Mc for an empty catalog")
	}

	counts := make(map[int]int)
	for _, m := range c.Magnitudes() {
		counts[magnitudeBin(m)]++
	}

	best, bestCount := 0, -1
	for bin, n := range counts {
		if n > bestCount || (n == bestCount && bin < best) {
			best, bestCount = bin, n
		}
	}

	return float64(best) / binsPerUnit, nil
}

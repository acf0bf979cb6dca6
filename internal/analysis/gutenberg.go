package analysis

import (
	"math"

	"github.com/rewired-gh/seismoalert/internal/models"
)

// magTolerance absorbs float noise when comparing magnitudes against Mc.
const magTolerance = 1e-9

// GutenbergRichterResult holds a fit of log10(N) = a - b·M.
type GutenbergRichterResult struct {
	BValue  float64 `json:"b_value"`
	AValue  float64 `json:"a_value"`
	Mc      float64 `json:"magnitude_of_completeness"`
	NEvents int     `json:"n_events_used"`
}

type fitConfig struct {
	mc    float64
	hasMc bool
}

// FitOption configures GutenbergRichter.
type FitOption func(*fitConfig)

// WithCompleteness fixes the magnitude of completeness instead of estimating it.
func WithCompleteness(mc float64) FitOption {
	return func(fc *fitConfig) {
		fc.mc = mc
		fc.hasMc = true
	}
}

// GutenbergRichter fits the frequency-magnitude relation to events at or above
// Mc using the Aki (1965) maximum likelihood estimator with bin correction:
//
//	b = log10(e) / (mean(M) - (Mc - ΔM/2))
//	a = log10(N) + b·Mc
func GutenbergRichter(c *models.Catalog, opts ...FitOption) (GutenbergRichterResult, error) {
	var fc fitConfig
	for _, opt := range opts {
		opt(&fc)
	}

	if c.Len() == 0 {
		return GutenbergRichterResult{}, insufficient("cannot fit Gutenberg-Richter law to an empty catalog")
	}

	mc := fc.mc
	if !fc.hasMc {
		var err error
		mc, err = MagnitudeOfCompleteness(c)
		if err != nil {
			return GutenbergRichterResult{}, err
		}
	}

	var sum float64
	n := 0
	for _, m := range c.Magnitudes() {
		if m >= mc-magTolerance {
			sum += m
			n++
		}
	}
	if n < 2 {
		return GutenbergRichterResult{}, insufficient("%d events at or above Mc=%.1f, need at least 2", n, mc)
	}

	mean := sum / float64(n)
	denom := mean - (mc - BinWidth/2)
	if denom <= 0 {
		return GutenbergRichterResult{}, ErrDegenerateFit
	}

	b := math.Log10(math.E) / denom
	a := math.Log10(float64(n)) + b*mc
	if math.IsNaN(b) || math.IsInf(b, 0) || math.IsNaN(a) || math.IsInf(a, 0) {
		return GutenbergRichterResult{}, ErrDegenerateFit
	}

	return GutenbergRichterResult{
		BValue:  b,
		AValue:  a,
		Mc:      mc,
		NEvents: n,
	}, nil
}

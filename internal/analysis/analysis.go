// Package analysis provides the statistical engine for earthquake catalogs.
//
// Four independent analyses are offered:
//
//	MagnitudeOfCompleteness  maximum-curvature Mc estimate (0.1 magnitude bins)
//	GutenbergRichter         Aki (1965) maximum likelihood b-value and a-value
//	InterEventTimes          gaps in seconds between consecutive events
//	DetectAnomalies          per-event sliding windows flagged at mean + k·σ
//	ClusteringCoefficient    fraction of event pairs close in space and time
//
// Every function is pure: catalogs are read, never modified, and results are
// freshly allocated on each call, so concurrent calls need no locking.
//
// Failures caused by too few events are reported as ErrInsufficientData.
// A fit whose estimator degenerates (zero or negative denominator, non-finite
// result) is reported as ErrDegenerateFit, which also matches ErrInsufficientData
// under errors.Is. DetectAnomalies never fails: "nothing to report" is an
// empty slice.
package analysis

import (
	"errors"
	"fmt"
)

// ErrInsufficientData is returned when a catalog has fewer events than an
// analysis requires.
var ErrInsufficientData = errors.New("insufficient data")

// ErrDegenerateFit is returned when the Gutenberg-Richter estimator cannot
// produce a finite b-value for the qualifying events.
var ErrDegenerateFit = fmt.Errorf("degenerate fit: %w", ErrInsufficientData)

// BinWidth is the magnitude bin width used for completeness estimation and
// for the Aki bin correction.
const BinWidth = 0.1

func insufficient(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInsufficientData, fmt.Sprintf(format, args...))
}

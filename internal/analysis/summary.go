package analysis

import (
	"fmt"
	"time"

	"github.com/rewired-gh/seismoalert/internal/models"
)

// Options bundles the tunables of every analysis for Summarize.
// Zero values fall back to the package defaults.
type Options struct {
	Mc               *float64
	AnomalyWindow    time.Duration
	AnomalyThreshold float64
	ClusterRadiusKm  float64
	ClusterWindow    time.Duration
}

// Summary is the combined result of running every analysis on one catalog.
// Analyses that could not run leave their field nil and add an entry to Issues.
type Summary struct {
	GeneratedAt           time.Time               `json:"generated_at"`
	EventCount            int                     `json:"event_count"`
	MaxMagnitude          *float64                `json:"max_magnitude,omitempty"`
	Completeness          *float64                `json:"magnitude_of_completeness,omitempty"`
	GutenbergRichter      *GutenbergRichterResult `json:"gutenberg_richter,omitempty"`
	MeanInterEventSeconds *float64                `json:"mean_interevent_seconds,omitempty"`
	Anomalies             []AnomalyPeriod         `json:"anomalies"`
	Clustering            *float64                `json:"clustering_coefficient,omitempty"`
	Issues                []string                `json:"issues,omitempty"`
}

// Summarize runs all analyses on c. Per-analysis failures are recorded in
// Summary.Issues instead of aborting the others.
func Summarize(c *models.Catalog, opts Options) Summary {
	s := Summary{
		GeneratedAt: time.Now().UTC(),
		EventCount:  c.Len(),
	}
	if max, ok := c.MaxMagnitude(); ok {
		s.MaxMagnitude = &max
	}

	if mc, err := MagnitudeOfCompleteness(c); err != nil {
		s.addIssue("completeness", err)
	} else {
		s.Completeness = &mc
	}

	var fitOpts []FitOption
	if opts.Mc != nil {
		fitOpts = append(fitOpts, WithCompleteness(*opts.Mc))
	}
	if gr, err := GutenbergRichter(c, fitOpts...); err != nil {
		s.addIssue("gutenberg_richter", err)
	} else {
		s.GutenbergRichter = &gr
	}

	if gaps, err := InterEventTimes(c); err != nil {
		s.addIssue("interevent_times", err)
	} else {
		var sum float64
		for _, g := range gaps {
			sum += g
		}
		mean := sum / float64(len(gaps))
		s.MeanInterEventSeconds = &mean
	}

	s.Anomalies = DetectAnomalies(c, WithWindow(opts.AnomalyWindow), WithThreshold(opts.AnomalyThreshold))

	if cc, err := ClusteringCoefficient(c, WithRadiusKm(opts.ClusterRadiusKm), WithTimeWindow(opts.ClusterWindow)); err != nil {
		s.addIssue("clustering", err)
	} else {
		s.Clustering = &cc
	}

	return s
}

func (s *Summary) addIssue(name string, err error) {
	s.Issues = append(s.Issues, fmt.Sprintf("%s: %v", name, err))
}

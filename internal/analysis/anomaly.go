package analysis

import (
	"math"
	"time"

	"github.com/rewired-gh/seismoalert/internal/models"
)

// Defaults for DetectAnomalies.
const (
	DefaultAnomalyWindow    = 7 * 24 * time.Hour
	DefaultAnomalyThreshold = 2.0
)

// AnomalyPeriod is a window whose event count is unusually high relative to
// the catalog's other windows. Start is the anchoring event's time and End is
// Start plus the window width; StartIndex and EndIndex refer to the
// chronologically sorted catalog.
type AnomalyPeriod struct {
	Start          time.Time `json:"start_time"`
	End            time.Time `json:"end_time"`
	StartIndex     int       `json:"start_index"`
	EndIndex       int       `json:"end_index"`
	EventCount     int       `json:"event_count"`
	ExpectedCount  float64   `json:"expected_count"`
	SigmaDeviation float64   `json:"sigma_deviation"`
}

type anomalyConfig struct {
	window    time.Duration
	threshold float64
}

// AnomalyOption configures DetectAnomalies.
type AnomalyOption func(*anomalyConfig)

// WithWindow sets the sliding window width. Non-positive values are ignored.
func WithWindow(d time.Duration) AnomalyOption {
	return func(ac *anomalyConfig) {
		if d > 0 {
			ac.window = d
		}
	}
}

// WithThreshold sets k, the number of standard deviations above the mean
// count a window needs to be flagged. Non-positive values are ignored.
func WithThreshold(k float64) AnomalyOption {
	return func(ac *anomalyConfig) {
		if k > 0 {
			ac.threshold = k
		}
	}
}

// DetectAnomalies slides a window anchored at every event (in time order),
// counts the events in [t_i, t_i+window] and flags windows whose count is at
// least mean + k·σ of all window counts (population σ).
//
// Catalogs with fewer than two events, or whose window counts do not vary,
// yield an empty slice. Overlapping flagged windows are reported one by one.
func DetectAnomalies(c *models.Catalog, opts ...AnomalyOption) []AnomalyPeriod {
	ac := anomalyConfig{
		window:    DefaultAnomalyWindow,
		threshold: DefaultAnomalyThreshold,
	}
	for _, opt := range opts {
		opt(&ac)
	}

	if c.Len() < 2 {
		return []AnomalyPeriod{}
	}

	sorted := c.SortByTime(false)
	n := sorted.Len()
	counts := make([]int, n)
	ends := make([]int, n)

	// Times are sorted, so the window end index never moves backwards.
	end := 0
	for i := 0; i < n; i++ {
		if end < i {
			end = i
		}
		limit := sorted.At(i).Time.Add(ac.window)
		for end+1 < n && !sorted.At(end + 1).Time.After(limit) {
			end++
		}
		ends[i] = end
		counts[i] = end - i + 1
	}

	mean, std := meanStdDev(counts)
	if std == 0 {
		return []AnomalyPeriod{}
	}

	anomalies := []AnomalyPeriod{}
	for i, count := range counts {
		sigma := (float64(count) - mean) / std
		if sigma < ac.threshold {
			continue
		}
		start := sorted.At(i).Time
		anomalies = append(anomalies, AnomalyPeriod{
			Start:          start,
			End:            start.Add(ac.window),
			StartIndex:     i,
			EndIndex:       ends[i],
			EventCount:     count,
			ExpectedCount:  mean,
			SigmaDeviation: sigma,
		})
	}
	return anomalies
}

// meanStdDev returns the mean and population standard deviation of counts.
func meanStdDev(counts []int) (float64, float64) {
	var sum float64
	for _, c := range counts {
		sum += float64(c)
	}
	mean := sum / float64(len(counts))

	var variance float64
	for _, c := range counts {
		d := float64(c) - mean
		variance += d * d
	}
	variance /= float64(len(counts))
	return mean, math.Sqrt(variance)
}

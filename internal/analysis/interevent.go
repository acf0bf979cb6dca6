package analysis

import (
	"github.com/rewired-gh/seismoalert/internal/models"
)

// InterEventTimes returns the N-1 gaps, in seconds, between consecutive events
// in chronological order. The input catalog order does not matter.
func InterEventTimes(c *models.Catalog) ([]float64, error) {
	if c.Len() < 2 {
		return nil, insufficient("need at least 2 events to compute inter-event times, got %d", c.Len())
	}

	sorted := c.SortByTime(false)
	gaps := make([]float64, sorted.Len()-1)
	for i := 1; i < sorted.Len(); i++ {
		gaps[i-1] = sorted.At(i).Time.Sub(sorted.At(i - 1).Time).Seconds()
	}
	return gaps, nil
}

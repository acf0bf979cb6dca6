package analysis

import (
	"math"
	"time"

	"github.com/rewired-gh/seismoalert/internal/models"
)

// EarthRadiusKm is the mean Earth radius used by HaversineKm.
const EarthRadiusKm = 6371.0

// Defaults for ClusteringCoefficient.
const (
	DefaultClusterRadiusKm = 50.0
	DefaultClusterWindow   = 24 * time.Hour
)

type clusterConfig struct {
	radiusKm float64
	window   time.Duration
}

// ClusterOption configures ClusteringCoefficient.
type ClusterOption func(*clusterConfig)

// WithRadiusKm sets the spatial threshold. Non-positive values are ignored.
func WithRadiusKm(km float64) ClusterOption {
	return func(cc *clusterConfig) {
		if km > 0 {
			cc.radiusKm = km
		}
	}
}

// WithTimeWindow sets the temporal threshold. Non-positive values are ignored.
func WithTimeWindow(d time.Duration) ClusterOption {
	return func(cc *clusterConfig) {
		if d > 0 {
			cc.window = d
		}
	}
}

// HaversineKm returns the great-circle distance in km between two points given
// in decimal degrees.
func HaversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	toRad := math.Pi / 180
	dLat := (lat2 - lat1) * toRad
	dLon := (lon2 - lon1) * toRad

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*toRad)*math.Cos(lat2*toRad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return EarthRadiusKm * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// ClusteringCoefficient returns the fraction of unique event pairs that lie
// within both the distance and the time threshold (bounds inclusive). The
// result is in [0, 1]. Cost is quadratic in catalog size.
func ClusteringCoefficient(c *models.Catalog, opts ...ClusterOption) (float64, error) {
	cc := clusterConfig{
		radiusKm: DefaultClusterRadiusKm,
		window:   DefaultClusterWindow,
	}
	for _, opt := range opts {
		opt(&cc)
	}

	n := c.Len()
	if n < 2 {
		return 0, insufficient("need at least 2 events for clustering, got %d", n)
	}

	clustered := 0
	for i := 0; i < n; i++ {
		a := c.At(i)
		for j := i + 1; j < n; j++ {
			b := c.At(j)
			dt := a.Time.Sub(b.Time)
			if dt < 0 {
				dt = -dt
			}
			if dt > cc.window {
				continue
			}
			if HaversineKm(a.Latitude, a.Longitude, b.Latitude, b.Longitude) <= cc.radiusKm {
				clustered++
			}
		}
	}

	pairs := n * (n - 1) / 2
	return float64(clustered) / float64(pairs), nil
}

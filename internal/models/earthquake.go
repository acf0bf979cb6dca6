// Package models defines the core domain entities for the seismoalert application.
// These models represent individual earthquakes, immutable catalogs of them, and
// the alerts raised when a catalog matches a rule.
//
// Catalogs are never mutated in place: every filter or sort returns a new catalog,
// so callers may share a catalog between goroutines without locking.
package models

import (
	"errors"
	"math"
	"time"
)

// Earthquake represents a single seismic event as reported by the USGS catalog.
type Earthquake struct {
	ID        string    `json:"id"`
	Time      time.Time `json:"time"`      // Origin time (UTC)
	Latitude  float64   `json:"latitude"`  // Epicenter latitude in degrees
	Longitude float64   `json:"longitude"` // Epicenter longitude in degrees
	Depth     float64   `json:"depth"`     // Hypocentral depth in km
	Magnitude float64   `json:"magnitude"`
	Place     string    `json:"place"`
	URL       string    `json:"url,omitempty"`
}

// Validate checks that all earthquake fields are valid.
func (e *Earthquake) Validate() error {
	if e.ID == "" {
		return errors.New("earthquake ID must not be empty")
	}
	if e.Time.IsZero() {
		return errors.New("earthquake time must be set")
	}
	if e.Latitude < -90 || e.Latitude > 90 {
		return errors.New("latitude must be between -90 and 90")
	}
	if e.Longitude < -180 || e.Longitude > 180 {
		return errors.New("longitude must be between -180 and 180")
	}
	if math.IsNaN(e.Magnitude) || math.IsInf(e.Magnitude, 0) {
		return errors.New("magnitude must be a finite number")
	}
	return nil
}

package models

import (
	"errors"
	"time"
)

// Severity levels attached to alert rules.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Alert represents a triggered alert rule for a catalog.
type Alert struct {
	ID          string    `json:"id"`
	RuleName    string    `json:"rule_name"`
	Message     string    `json:"message"`
	Severity    string    `json:"severity"`
	EventCount  int       `json:"event_count"`
	MaxMag      float64   `json:"max_magnitude"`
	TriggeredAt time.Time `json:"triggered_at"`
}

// Validate checks that all alert fields are valid
func (a *Alert) Validate() error {
	if a.ID == "" {
		return errors.New("alert ID must not be empty")
	}
	if a.RuleName == "" {
		return errors.New("rule name must not be empty")
	}
	if a.Message == "" {
		return errors.New("alert message must not be empty")
	}
	switch a.Severity {
	case SeverityInfo, SeverityWarning, SeverityCritical:
	default:
		return errors.New("severity must be 'info', 'warning' or 'critical'")
	}
	if a.EventCount < 0 {
		return errors.New("event count must not be negative")
	}
	if a.TriggeredAt.IsZero() {
		return errors.New("triggered at must be set")
	}
	if a.TriggeredAt.After(time.Now().Add(time.Minute)) {
		return errors.New("triggered at must not be in the future")
	}
	return nil
}

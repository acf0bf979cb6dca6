// Package alerts evaluates threshold rules against earthquake catalogs and
// dispatches the resulting alerts to notifiers.
//
// A Rule pairs a Condition with a message template. Templates may reference
// {count} (number of events) and {max_mag} (largest magnitude, one decimal).
package alerts

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/rewired-gh/seismoalert/internal/models"
)

// Condition decides whether a catalog should raise an alert.
type Condition interface {
	Evaluate(c *models.Catalog) bool
	String() string
}

// MagnitudeExceeds triggers when any event has magnitude >= Threshold.
type MagnitudeExceeds struct {
	Threshold float64
}

// Evaluate implements Condition.
func (m MagnitudeExceeds) Evaluate(c *models.Catalog) bool {
	max, ok := c.MaxMagnitude()
	return ok && max >= m.Threshold
}

func (m MagnitudeExceeds) String() string {
	return fmt.Sprintf("magnitude >= %.1f", m.Threshold)
}

// CountExceeds triggers when the catalog holds more than Threshold events.
// A positive MinMagnitude only counts events at or above it.
type CountExceeds struct {
	Threshold    int
	MinMagnitude float64
}

// Evaluate implements Condition.
func (n CountExceeds) Evaluate(c *models.Catalog) bool {
	if n.MinMagnitude > 0 {
		min := n.MinMagnitude
		c = c.FilterByMagnitude(&min, nil)
	}
	return c.Len() > n.Threshold
}

func (n CountExceeds) String() string {
	if n.MinMagnitude > 0 {
		return fmt.Sprintf("count(M>=%.1f) > %d", n.MinMagnitude, n.Threshold)
	}
	return fmt.Sprintf("count > %d", n.Threshold)
}

// Rule is a named condition with a message template.
type Rule struct {
	Name            string
	Condition       Condition
	MessageTemplate string
	Severity        string
}

// Evaluate returns an alert when the rule's condition holds for c.
func (r Rule) Evaluate(c *models.Catalog, now time.Time) (*models.Alert, bool) {
	if r.Condition == nil || !r.Condition.Evaluate(c) {
		return nil, false
	}

	max, _ := c.MaxMagnitude()
	severity := r.Severity
	if severity == "" {
		severity = models.SeverityWarning
	}

	return &models.Alert{
		ID:          uuid.New().String(),
		RuleName:    r.Name,
		Message:     renderTemplate(r.MessageTemplate, c.Len(), max),
		Severity:    severity,
		EventCount:  c.Len(),
		MaxMag:      max,
		TriggeredAt: now,
	}, true
}

func renderTemplate(tmpl string, count int, maxMag float64) string {
	return strings.NewReplacer(
		"{count}", fmt.Sprintf("%d", count),
		"{max_mag}", fmt.Sprintf("%.1f", maxMag),
	).Replace(tmpl)
}

// DefaultRules returns the large-earthquake and high-rate rules.
func DefaultRules(magnitude float64, count int) []Rule {
	return []Rule{
		{
			Name:            "Large Earthquake",
			Condition:       MagnitudeExceeds{Threshold: magnitude},
			MessageTemplate: "Large earthquake detected! Max magnitude: M{max_mag}",
			Severity:        models.SeverityCritical,
		},
		{
			Name:            "High Seismicity Rate",
			Condition:       CountExceeds{Threshold: count},
			MessageTemplate: "High seismicity rate: {count} events detected",
			Severity:        models.SeverityWarning,
		},
	}
}

// ruleSpec is the YAML form of a rule.
type ruleSpec struct {
	Name         string  `yaml:"name"`
	Type         string  `yaml:"type"`
	Threshold    float64 `yaml:"threshold"`
	MinMagnitude float64 `yaml:"min_magnitude"`
	Message      string  `yaml:"message"`
	Severity     string  `yaml:"severity"`
}

type ruleFile struct {
	Rules []ruleSpec `yaml:"rules"`
}

// ParseRules decodes a YAML rule document:
//
//	rules:
//	  - name: Large Earthquake
//	    type: magnitude
//	    threshold: 6.0
//	    message: "Max magnitude: M{max_mag}"
//	    severity: critical
//	  - name: Moderate Swarm
//	    type: count
//	    threshold: 10
//	    min_magnitude: 4.5
func ParseRules(data []byte) ([]Rule, error) {
	var rf ruleFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("failed to parse rules: %w", err)
	}

	rules := make([]Rule, 0, len(rf.Rules))
	for i, rs := range rf.Rules {
		if rs.Name == "" {
			return nil, fmt.Errorf("rule %d: name is required", i)
		}
		var cond Condition
		switch strings.ToLower(rs.Type) {
		case "magnitude":
			cond = MagnitudeExceeds{Threshold: rs.Threshold}
		case "count":
			if rs.Threshold < 0 {
				return nil, fmt.Errorf("rule %q: count threshold must not be negative", rs.Name)
			}
			cond = CountExceeds{Threshold: int(rs.Threshold), MinMagnitude: rs.MinMagnitude}
		default:
			return nil, fmt.Errorf("rule %q: unknown type %q (want magnitude or count)", rs.Name, rs.Type)
		}

		switch rs.Severity {
		case "", models.SeverityInfo, models.SeverityWarning, models.SeverityCritical:
		default:
			return nil, fmt.Errorf("rule %q: unknown severity %q", rs.Name, rs.Severity)
		}

		msg := rs.Message
		if msg == "" {
			msg = rs.Name + ": {count} events, max M{max_mag}"
		}
		rules = append(rules, Rule{
			Name:            rs.Name,
			Condition:       cond,
			MessageTemplate: msg,
			Severity:        rs.Severity,
		})
	}
	return rules, nil
}

// LoadRules reads and parses a YAML rule file.
func LoadRules(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}
	return ParseRules(data)
}

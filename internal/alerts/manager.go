package alerts

import (
	"sync"
	"time"

	"github.com/rewired-gh/seismoalert/internal/logger"
	"github.com/rewired-gh/seismoalert/internal/models"
)

// Manager holds a set of rules and evaluates them together. It is safe for
// concurrent use; rules may be replaced while a monitor is running.
type Manager struct {
	mu    sync.RWMutex
	rules []Rule
}

// NewManager creates a manager with the given rules.
func NewManager(rules ...Rule) *Manager {
	m := &Manager{}
	m.SetRules(rules)
	return m
}

// SetRules replaces all rules.
func (m *Manager) SetRules(rules []Rule) {
	cp := make([]Rule, len(rules))
	copy(cp, rules)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = cp
}

// Rules returns a copy of the registered rules.
func (m *Manager) Rules() []Rule {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cp := make([]Rule, len(m.rules))
	copy(cp, m.rules)
	return cp
}

// Evaluate runs every rule against c and returns the triggered alerts in rule
// order, stamped with now. The result is never nil.
func (m *Manager) Evaluate(c *models.Catalog, now time.Time) []models.Alert {
	triggered := []models.Alert{}
	for _, r := range m.Rules() {
		alert, ok := r.Evaluate(c, now)
		if !ok {
			logger.Debug("Rule %q (%v) not triggered", r.Name, r.Condition)
			continue
		}
		triggered = append(triggered, *alert)
	}
	return triggered
}

// Package monitor runs the periodic seismic monitoring cycle.
//
// Each cycle fetches the lookback window from USGS, summarizes it with the
// analysis package, evaluates alert rules and sends whatever is not within
// the per-rule cooldown. Sent alerts are recorded in the alert history, which
// is also what makes the cooldown survive restarts.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/rewired-gh/seismoalert/internal/alerts"
	"github.com/rewired-gh/seismoalert/internal/analysis"
	"github.com/rewired-gh/seismoalert/internal/logger"
	"github.com/rewired-gh/seismoalert/internal/metrics"
	"github.com/rewired-gh/seismoalert/internal/models"
	"github.com/rewired-gh/seismoalert/internal/usgs"
)

// Fetcher retrieves a catalog. *usgs.Client implements it.
type Fetcher interface {
	FetchEarthquakes(ctx context.Context, q usgs.Query) (*models.Catalog, error)
}

// History stores sent alerts. *storage.Storage implements it.
type History interface {
	LastSent(ctx context.Context, rule string) (time.Time, bool, error)
	RecordAlert(ctx context.Context, a models.Alert) error
	Rotate(ctx context.Context, maxAlerts int) (int, error)
}

// StatusNotifier is told about failing and recovering cycles.
// *telegram.Client implements it.
type StatusNotifier interface {
	SendError(ctx context.Context, err error) error
	SendRecovery(ctx context.Context, failures int) error
}

// Options configures a Monitor.
type Options struct {
	PollInterval time.Duration
	Lookback     time.Duration
	MinMagnitude float64
	Limit        int
	Cooldown     time.Duration
	MaxAlerts    int
	Analysis     analysis.Options
}

// CycleResult describes one completed monitoring cycle.
type CycleResult struct {
	At         time.Time        `json:"at"`
	Summary    analysis.Summary `json:"summary"`
	Triggered  []models.Alert   `json:"triggered"`
	Sent       []models.Alert   `json:"sent"`
	Suppressed []models.Alert   `json:"suppressed"`
}

// Monitor ties together fetching, analysis, alerting and history.
type Monitor struct {
	fetcher  Fetcher
	rules    *alerts.Manager
	notifier alerts.Notifier
	history  History
	status   StatusNotifier
	metrics  *metrics.Collector
	opts     Options

	mu     sync.RWMutex
	latest *CycleResult
}

// New creates a Monitor. history may be nil, in which case no cooldown is
// applied and nothing is recorded.
func New(f Fetcher, rules *alerts.Manager, n alerts.Notifier, history History, opts Options) *Monitor {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 5 * time.Minute
	}
	if opts.Lookback <= 0 {
		opts.Lookback = 24 * time.Hour
	}
	if n == nil {
		n = alerts.LogNotifier{}
	}
	return &Monitor{
		fetcher:  f,
		rules:    rules,
		notifier: n,
		history:  history,
		opts:     opts,
	}
}

// SetStatusNotifier enables failure and recovery notices.
func (m *Monitor) SetStatusNotifier(s StatusNotifier) { m.status = s }

// SetMetrics enables Prometheus instrumentation.
func (m *Monitor) SetMetrics(c *metrics.Collector) { m.metrics = c }

// Latest returns the most recent successful cycle.
func (m *Monitor) Latest() (*CycleResult, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.latest, m.latest != nil
}

// RunCycle performs one monitoring cycle for the window ending at now.
// When only some notification channels fail, the alerts are still recorded
// and the result is returned together with the delivery error.
func (m *Monitor) RunCycle(ctx context.Context, now time.Time) (*CycleResult, error) {
	started := time.Now()
	if m.metrics != nil {
		defer func() { m.metrics.ObserveCycle(time.Since(started)) }()
	}

	q := usgs.Query{
		StartTime: now.Add(-m.opts.Lookback),
		EndTime:   now,
		Limit:     m.opts.Limit,
	}
	if m.opts.MinMagnitude > 0 {
		minMag := m.opts.MinMagnitude
		q.MinMagnitude = &minMag
	}

	catalog, err := m.fetcher.FetchEarthquakes(ctx, q)
	if m.metrics != nil {
		m.metrics.ObserveFetch(catalog.Len(), err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch earthquakes: %w", err)
	}
	logger.Info("Fetched %d earthquakes (M%.1f+, last %v)", catalog.Len(), m.opts.MinMagnitude, m.opts.Lookback)

	summary := analysis.Summarize(catalog, m.opts.Analysis)
	for _, issue := range summary.Issues {
		logger.Debug("Analysis skipped: %s", issue)
	}
	if m.metrics != nil {
		b := math.NaN()
		if summary.GutenbergRichter != nil {
			b = summary.GutenbergRichter.BValue
		}
		m.metrics.SetAnalysis(b, len(summary.Anomalies))
	}

	result := &CycleResult{
		At:         now,
		Summary:    summary,
		Triggered:  m.rules.Evaluate(catalog, now),
		Sent:       []models.Alert{},
		Suppressed: []models.Alert{},
	}

	for _, a := range result.Triggered {
		recent, err := m.sentWithinCooldown(ctx, a.RuleName, now)
		if err != nil {
			return nil, err
		}
		if recent {
			logger.Debug("Suppressing alert %q: within cooldown %v", a.RuleName, m.opts.Cooldown)
			result.Suppressed = append(result.Suppressed, a)
			continue
		}
		result.Sent = append(result.Sent, a)
	}

	var notifyErr error
	if len(result.Sent) > 0 {
		if err := m.notifier.Notify(ctx, result.Sent); err != nil {
			var de *alerts.DeliveryError
			if !errors.As(err, &de) || !de.Partial() {
				return nil, fmt.Errorf("failed to send alerts via %s: %w", m.notifier.Name(), err)
			}
			// Delivered somewhere, so the cooldown must start.
			notifyErr = fmt.Errorf("alerts delivered only via %s: %w", strings.Join(de.Delivered, ", "), err)
		}
		for _, a := range result.Sent {
			if m.metrics != nil {
				m.metrics.ObserveAlert(a.RuleName)
			}
			if m.history == nil {
				continue
			}
			if err := m.history.RecordAlert(ctx, a); err != nil {
				logger.Warn("Failed to record alert %q: %v", a.RuleName, err)
			}
		}
	}

	logger.Info("Cycle complete: %d triggered, %d sent, %d suppressed",
		len(result.Triggered), len(result.Sent), len(result.Suppressed))

	m.mu.Lock()
	m.latest = result
	m.mu.Unlock()

	return result, notifyErr
}

func (m *Monitor) sentWithinCooldown(ctx context.Context, rule string, now time.Time) (bool, error) {
	if m.history == nil || m.opts.Cooldown <= 0 {
		return false, nil
	}
	last, ok, err := m.history.LastSent(ctx, rule)
	if err != nil {
		return false, fmt.Errorf("failed to read alert history: %w", err)
	}
	return ok && now.Sub(last) < m.opts.Cooldown, nil
}

// Run executes a cycle immediately and then every PollInterval until ctx is
// cancelled. Cycle errors are logged; the first failure of a streak and the
// following recovery are reported to the status notifier.
func (m *Monitor) Run(ctx context.Context) {
	logger.Info("Starting monitoring service (interval: %v, lookback: %v, cooldown: %v)",
		m.opts.PollInterval, m.opts.Lookback, m.opts.Cooldown)

	ticker := time.NewTicker(m.opts.PollInterval)
	defer ticker.Stop()

	consecutiveFailures := 0

	handleCycleResult := func(err error) {
		if err != nil {
			consecutiveFailures++
			logger.Error("Monitoring cycle failed: %v", err)
			if consecutiveFailures == 1 && m.status != nil {
				if sendErr := m.status.SendError(ctx, err); sendErr != nil {
					logger.Warn("Failed to send error notification: %v", sendErr)
				}
			}
			return
		}
		if consecutiveFailures > 0 && m.status != nil {
			if sendErr := m.status.SendRecovery(ctx, consecutiveFailures); sendErr != nil {
				logger.Warn("Failed to send recovery notification: %v", sendErr)
			}
		}
		consecutiveFailures = 0
	}

	_, err := m.RunCycle(ctx, time.Now())
	handleCycleResult(err)

	for {
		select {
		case <-ctx.Done():
			logger.Info("Service stopped")
			return

		case tickTime := <-ticker.C:
			logger.Debug("Starting scheduled monitoring cycle")
			_, err := m.RunCycle(ctx, tickTime)
			handleCycleResult(err)

			if m.history != nil && m.opts.MaxAlerts > 0 {
				if n, err := m.history.Rotate(ctx, m.opts.MaxAlerts); err != nil {
					logger.Warn("Failed to rotate alert history: %v", err)
				} else if n > 0 {
					logger.Debug("Rotated %d old alerts", n)
				}
			}
		}
	}
}

package alerts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rewired-gh/seismoalert/internal/models"
)

func catalogWith(mags ...float64) *models.Catalog {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	events := make([]models.Earthquake, len(mags))
	for i, m := range mags {
		events[i] = models.Earthquake{ID: fmt.Sprintf("e%d", i), Time: base.Add(time.Duration(i) * time.Minute), Magnitude: m}
	}
	return models.NewCatalog(events)
}

func TestConditions(t *testing.T) {
	tests := []struct {
		name string
		cond Condition
		cat  *models.Catalog
		want bool
	}{
		{"magnitude reached", MagnitudeExceeds{Threshold: 6.0}, catalogWith(4.0, 6.0), true},
		{"magnitude below", MagnitudeExceeds{Threshold: 6.0}, catalogWith(4.0, 5.9), false},
		{"magnitude on empty catalog", MagnitudeExceeds{Threshold: 0}, catalogWith(), false},
		{"count above", CountExceeds{Threshold: 2}, catalogWith(1, 1, 1), true},
		{"count equal is not above", CountExceeds{Threshold: 3}, catalogWith(1, 1, 1), false},
		{"count above magnitude floor", CountExceeds{Threshold: 1, MinMagnitude: 5}, catalogWith(5.0, 5.5, 2.0), true},
		{"small events not counted", CountExceeds{Threshold: 1, MinMagnitude: 5}, catalogWith(5.0, 2.0, 4.9), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cond.Evaluate(tt.cat); got != tt.want {
				t.Errorf("%v.Evaluate() = %v, expected %v", tt.cond, got, tt.want)
			}
		})
	}
}

func TestRuleEvaluate_RendersTemplate(t *testing.T) {
	rule := Rule{
		Name:            "Large Earthquake",
		Condition:       MagnitudeExceeds{Threshold: 6.0},
		MessageTemplate: "Max magnitude: M{max_mag} across {count} events",
		Severity:        models.SeverityCritical,
	}

	alert, ok := rule.Evaluate(catalogWith(3.2, 7.15, 4.0), time.Now())
	if !ok {
		t.Fatal("Expected rule to trigger")
	}
	if alert.Message != "Max magnitude: M7.2 across 3 events" {
		t.Errorf("Unexpected message %q", alert.Message)
	}
	if err := alert.Validate(); err != nil {
		t.Errorf("Produced alert is invalid: %v", err)
	}
}

func TestManagerEvaluate(t *testing.T) {
	m := NewManager(DefaultRules(6.0, 2)...)

	alerts := m.Evaluate(catalogWith(6.5, 2.0, 3.0), time.Now())
	if len(alerts) != 2 {
		t.Fatalf("Expected both default rules to trigger, got %d", len(alerts))
	}
	if alerts[0].RuleName != "Large Earthquake" || alerts[1].RuleName != "High Seismicity Rate" {
		t.Errorf("Alerts not in rule order: %s, %s", alerts[0].RuleName, alerts[1].RuleName)
	}

	quiet := m.Evaluate(catalogWith(2.0), time.Now())
	if quiet == nil || len(quiet) != 0 {
		t.Errorf("Expected empty non-nil slice, got %#v", quiet)
	}
}

func TestManagerSetRules(t *testing.T) {
	m := NewManager(Rule{Name: "any", Condition: CountExceeds{Threshold: 0}, MessageTemplate: "{count}"})
	if len(m.Rules()) != 1 {
		t.Fatalf("Expected 1 rule, got %d", len(m.Rules()))
	}

	m.SetRules(DefaultRules(5.0, 10))
	if len(m.Rules()) != 2 {
		t.Errorf("SetRules should replace rules, got %d", len(m.Rules()))
	}
}

func TestParseRules(t *testing.T) {
	doc := `
rules:
  - name: Big One
    type: magnitude
    threshold: 7.0
    severity: critical
  - name: Swarm
    type: count
    threshold: 25
    min_magnitude: 3.5
    message: "Swarm: {count} events"
`
	rules, err := ParseRules([]byte(doc))
	if err != nil {
		t.Fatalf("ParseRules failed: %v", err)
	}
	if len(rules) != 2 {
		t.Fatalf("Expected 2 rules, got %d", len(rules))
	}
	if c, ok := rules[0].Condition.(MagnitudeExceeds); !ok || c.Threshold != 7.0 {
		t.Errorf("Unexpected first condition %#v", rules[0].Condition)
	}
	if c, ok := rules[1].Condition.(CountExceeds); !ok || c.Threshold != 25 || c.MinMagnitude != 3.5 {
		t.Errorf("Unexpected second condition %#v", rules[1].Condition)
	}
	if !strings.Contains(rules[0].MessageTemplate, "{max_mag}") {
		t.Errorf("Missing default message template, got %q", rules[0].MessageTemplate)
	}
}

func TestParseRules_Invalid(t *testing.T) {
	tests := map[string]string{
		"unknown type":   "rules:\n  - name: x\n    type: depth\n",
		"missing name":   "rules:\n  - type: count\n    threshold: 1\n",
		"bad severity":   "rules:\n  - name: x\n    type: count\n    severity: loud\n",
		"negative count": "rules:\n  - name: x\n    type: count\n    threshold: -1\n",
		"malformed yaml": "rules: [",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseRules([]byte(doc)); err == nil {
				t.Error("Expected error, got nil")
			}
		})
	}
}

func TestLoadRules(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	if err := os.WriteFile(path, []byte("rules:\n  - name: x\n    type: count\n    threshold: 3\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	rules, err := LoadRules(path)
	if err != nil || len(rules) != 1 {
		t.Fatalf("LoadRules = %v, %v", rules, err)
	}

	if _, err := LoadRules(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Expected error for missing file")
	}
}

func sampleAlerts() []models.Alert {
	return []models.Alert{{
		ID:          "a-1",
		RuleName:    "Large Earthquake",
		Message:     "M7.0",
		Severity:    models.SeverityCritical,
		EventCount:  3,
		MaxMag:      7.0,
		TriggeredAt: time.Now(),
	}}
}

func TestWebhookNotifier(t *testing.T) {
	var got WebhookPayload
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Expected JSON content type, got %s", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("Failed to decode payload: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer mockServer.Close()

	n := NewWebhookNotifier(mockServer.URL, time.Second)
	if err := n.Notify(context.Background(), sampleAlerts()); err != nil {
		t.Fatalf("Notify failed: %v", err)
	}
	if len(got.Alerts) != 1 || got.Alerts[0].RuleName != "Large Earthquake" {
		t.Errorf("Unexpected payload %+v", got)
	}
	if got.Source != "seismoalert" {
		t.Errorf("Unexpected source %q", got.Source)
	}
}

func TestWebhookNotifier_ErrorStatus(t *testing.T) {
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer mockServer.Close()

	err := NewWebhookNotifier(mockServer.URL, time.Second).Notify(context.Background(), sampleAlerts())
	if err == nil {
		t.Error("Expected error for 502 response")
	}
}

type failingNotifier struct{ err error }

func (f failingNotifier) Name() string { return "failing" }
func (f failingNotifier) Notify(context.Context, []models.Alert) error {
	return f.err
}

type countingNotifier struct{ calls int }

func (c *countingNotifier) Name() string { return "counting" }
func (c *countingNotifier) Notify(context.Context, []models.Alert) error {
	c.calls++
	return nil
}

func TestMultiNotifier(t *testing.T) {
	boom := errors.New("boom")
	counter := &countingNotifier{}
	multi := MultiNotifier{failingNotifier{err: boom}, LogNotifier{}, counter}

	err := multi.Notify(context.Background(), sampleAlerts())
	if !errors.Is(err, boom) {
		t.Errorf("Expected joined error to wrap boom, got %v", err)
	}
	if counter.calls != 1 {
		t.Errorf("Later notifiers must still run after a failure, calls=%d", counter.calls)
	}

	var de *DeliveryError
	if !errors.As(err, &de) {
		t.Fatalf("Expected *DeliveryError, got %T", err)
	}
	if !de.Partial() || len(de.Delivered) != 2 || de.Delivered[0] != "log" || de.Delivered[1] != "counting" {
		t.Errorf("Unexpected delivered channels %v", de.Delivered)
	}

	err = (MultiNotifier{failingNotifier{err: boom}}).Notify(context.Background(), sampleAlerts())
	if !errors.As(err, &de) || de.Partial() {
		t.Errorf("Expected a total delivery failure, got %v", err)
	}

	if err := (MultiNotifier{LogNotifier{}}).Notify(context.Background(), sampleAlerts()); err != nil {
		t.Errorf("Expected nil error, got %v", err)
	}
}

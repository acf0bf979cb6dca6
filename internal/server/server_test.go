package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rewired-gh/seismoalert/internal/analysis"
	"github.com/rewired-gh/seismoalert/internal/metrics"
	"github.com/rewired-gh/seismoalert/internal/models"
	"github.com/rewired-gh/seismoalert/internal/monitor"
)

type staticReporter struct {
	result *monitor.CycleResult
}

func (s staticReporter) Latest() (*monitor.CycleResult, bool) {
	return s.result, s.result != nil
}

type fakeHistory struct {
	alerts []models.Alert
	err    error
	limit  int
}

func (f *fakeHistory) RecentAlerts(_ context.Context, limit int) ([]models.Alert, error) {
	f.limit = limit
	return f.alerts, f.err
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthz(t *testing.T) {
	s := New(":0", staticReporter{}, nil)
	rec := get(t, s.Handler(), "/healthz")

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "ok" {
		t.Errorf("Unexpected body %v", body)
	}
}

func TestReport(t *testing.T) {
	s := New(":0", staticReporter{}, nil)
	if rec := get(t, s.Handler(), "/report"); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503 before first cycle, got %d", rec.Code)
	}

	result := &monitor.CycleResult{
		At:      time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		Summary: analysis.Summary{EventCount: 12},
	}
	s = New(":0", staticReporter{result: result}, nil)
	rec := get(t, s.Handler(), "/report")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var got monitor.CycleResult
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got.Summary.EventCount != 12 || !got.At.Equal(result.At) {
		t.Errorf("Unexpected report %+v", got)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	c := metrics.New()
	c.ObserveAlert("Large Earthquake")

	rec := get(t, New(":0", nil, c).Handler(), "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `seismoalert_alerts_total{rule="Large Earthquake"} 1`) {
		t.Error("Metrics output missing alerts_total")
	}

	if rec := get(t, New(":0", nil, nil).Handler(), "/metrics"); rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 without collector, got %d", rec.Code)
	}
}

func TestAlerts(t *testing.T) {
	tests := []struct {
		name      string
		path      string
		history   *fakeHistory
		wantCode  int
		wantLimit int
	}{
		{"disabled", "/alerts", nil, http.StatusNotFound, 0},
		{"default limit", "/alerts", &fakeHistory{}, http.StatusOK, defaultAlertLimit},
		{"custom limit", "/alerts?limit=5", &fakeHistory{}, http.StatusOK, 5},
		{"bad limit", "/alerts?limit=zero", &fakeHistory{}, http.StatusBadRequest, 0},
		{"storage error", "/alerts", &fakeHistory{err: errors.New("locked")}, http.StatusInternalServerError, defaultAlertLimit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(":0", nil, nil)
			if tt.history != nil {
				s.SetHistory(tt.history)
			}
			rec := get(t, s.Handler(), tt.path)
			if rec.Code != tt.wantCode {
				t.Errorf("Expected %d, got %d", tt.wantCode, rec.Code)
			}
			if tt.history != nil && tt.history.limit != tt.wantLimit {
				t.Errorf("Expected limit %d, got %d", tt.wantLimit, tt.history.limit)
			}
		})
	}
}

func TestMethodNotAllowed(t *testing.T) {
	rec := httptest.NewRecorder()
	New(":0", nil, nil).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/healthz", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected 405, got %d", rec.Code)
	}
}

package cli

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rewired-gh/seismoalert/internal/alerts"
	"github.com/rewired-gh/seismoalert/internal/config"
)

const feedGeoJSON = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "id": "us1", "properties": {"mag": 6.5, "place": "Offshore Somewhere", "time": 1709294400000, "url": "https://example.org/us1"}, "geometry": {"type": "Point", "coordinates": [142.1, 38.3, 20.0]}},
    {"type": "Feature", "id": "us2", "properties": {"mag": 4.2, "place": "Inland", "time": 1709298000000, "url": "https://example.org/us2"}, "geometry": {"type": "Point", "coordinates": [142.4, 38.1, 15.0]}},
    {"type": "Feature", "id": "us3", "properties": {"mag": 4.8, "place": "Coast", "time": 1709301600000, "url": "https://example.org/us3"}, "geometry": {"type": "Point", "coordinates": [141.9, 38.6, 30.0]}}
  ]
}`

// setup starts a fake USGS endpoint and writes a config pointing at it.
func setup(t *testing.T, body string, extra string) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)

	cfg := fmt.Sprintf("usgs:\n  base_url: %s\n  max_retries: 1\nlogging:\n  level: error\n%s", srv.URL, extra)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o600))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := NewRootCommand()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestFetch(t *testing.T) {
	cfg := setup(t, feedGeoJSON, "")
	csvPath := filepath.Join(t.TempDir(), "out", "quakes.csv")

	out, err := run(t, "--config", cfg, "fetch", "--output-csv", csvPath)
	require.NoError(t, err)

	assert.Contains(t, out, "Fetched 3 earthquakes (M>=2.5, last 1 day(s))")
	assert.Contains(t, out, "Largest event: M6.5")
	assert.Less(t, strings.Index(out, "M6.5  Offshore"), strings.Index(out, "M4.8  Coast"))

	data, err := os.ReadFile(csvPath)
	require.NoError(t, err)
	assert.Equal(t, 4, strings.Count(string(data), "\n"))
}

func TestAnalyze(t *testing.T) {
	cfg := setup(t, feedGeoJSON, "")
	plots := filepath.Join(t.TempDir(), "plots")

	out, err := run(t, "--config", cfg, "analyze", "--plots", plots)
	require.NoError(t, err)

	assert.Contains(t, out, "Analyzing 3 earthquakes over 30 days")
	assert.Contains(t, out, "Gutenberg-Richter fit:")
	assert.Contains(t, out, "Clustering coefficient: 0.667")
	assert.FileExists(t, filepath.Join(plots, "magnitude_time.png"))
	assert.FileExists(t, filepath.Join(plots, "gutenberg_richter.png"))
}

func TestAnalyze_AnomalyWindow(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"configured window", nil, "Detected 2 anomalous period(s)"},
		{"flag overrides config", []string{"--window-days", "7"}, "Detected 1 anomalous period(s)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := setup(t, feedGeoJSON, "analysis:\n  anomaly_window: 1h\n  anomaly_threshold: 0.5\n")
			out, err := run(t, append([]string{"--config", cfg, "analyze"}, tt.args...)...)
			require.NoError(t, err)
			assert.Contains(t, out, tt.want)
		})
	}
}

func TestAnalyze_MaxDepth(t *testing.T) {
	cfg := setup(t, feedGeoJSON, "")

	out, err := run(t, "--config", cfg, "analyze", "--max-depth", "25")
	require.NoError(t, err)
	assert.Contains(t, out, "Kept 2 of 3 earthquakes at depth <= 25.0 km")
	assert.Contains(t, out, "Analyzing 2 earthquakes over 30 days")
}

func TestAnalyze_Insufficient(t *testing.T) {
	cfg := setup(t, `{"type": "FeatureCollection", "features": []}`, "")

	out, err := run(t, "--config", cfg, "analyze")
	require.NoError(t, err)
	assert.Contains(t, out, "Insufficient data for analysis.")
}

func TestMap(t *testing.T) {
	cfg := setup(t, feedGeoJSON, "")
	output := filepath.Join(t.TempDir(), "map.html")

	out, err := run(t, "--config", cfg, "map", "--output", output)
	require.NoError(t, err)
	assert.Contains(t, out, "Generating map with 3 earthquakes")

	html, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Equal(t, 3, strings.Count(string(html), "L.circleMarker("))
}

func TestMonitor(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want []string
	}{
		{
			name: "defaults",
			args: []string{"monitor"},
			want: []string{"Monitoring: 3 events", "1 alert(s) triggered", "[Large Earthquake] Large earthquake detected! Max magnitude: M6.5"},
		},
		{
			name: "count threshold",
			args: []string{"monitor", "--alert-magnitude", "7", "--alert-count", "2"},
			want: []string{"[High Seismicity Rate] High seismicity rate: 3 events detected"},
		},
		{
			name: "all clear",
			args: []string{"monitor", "--alert-magnitude", "7"},
			want: []string{"No alerts triggered. All clear."},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := setup(t, feedGeoJSON, "")
			out, err := run(t, append([]string{"--config", cfg}, tt.args...)...)
			require.NoError(t, err)
			for _, w := range tt.want {
				assert.Contains(t, out, w)
			}
		})
	}
}

func TestMonitor_RulesFile(t *testing.T) {
	rules := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(rules, []byte("rules:\n  - name: Moderate\n    type: magnitude\n    threshold: 4.5\n    message: \"M{max_mag} seen\"\n"), 0o600))
	cfg := setup(t, feedGeoJSON, "")

	out, err := run(t, "--config", cfg, "monitor", "--rules", rules)
	require.NoError(t, err)
	assert.Contains(t, out, "[Moderate] M6.5 seen")
}

func TestFetchError(t *testing.T) {
	cfg := setup(t, "not json", "")
	_, err := run(t, "--config", cfg, "fetch", "--output-csv", filepath.Join(t.TempDir(), "x.csv"))
	assert.Error(t, err)
}

func TestInvalidConfig(t *testing.T) {
	cfg := setup(t, feedGeoJSON, "monitor:\n  poll_interval: 1s\n")
	_, err := run(t, "--config", cfg, "monitor")
	assert.ErrorContains(t, err, "poll_interval")
}

func TestBuildNotifiers(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Webhook.Enabled = true
	cfg.Webhook.URL = "http://127.0.0.1:1/hook"
	cfg.Email.Enabled = true
	cfg.Email.To = []string{"ops@example.com"}

	notifier, status, err := buildNotifiers(cfg)
	require.NoError(t, err)
	assert.Nil(t, status)

	multi, ok := notifier.(alerts.MultiNotifier)
	require.True(t, ok)
	var names []string
	for _, n := range multi {
		names = append(names, n.Name())
	}
	assert.Equal(t, []string{"log", "webhook", "email"}, names)
}

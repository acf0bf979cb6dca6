// Package usgs fetches earthquake catalogs from the USGS FDSN event web service.
// Responses are requested as GeoJSON and converted into models.Catalog values;
// features without a magnitude are dropped before they reach the analysis layer.
package usgs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rewired-gh/seismoalert/internal/logger"
	"github.com/rewired-gh/seismoalert/internal/models"
)

// DefaultBaseURL is the USGS FDSN event query endpoint.
const DefaultBaseURL = "https://earthquake.usgs.gov/fdsnws/event/1/query"

// DefaultLimit is the number of events requested when Query.Limit is unset.
const DefaultLimit = 1000

// timeLayout is the ISO-8601 form accepted by the starttime/endtime parameters.
const timeLayout = "2006-01-02T15:04:05"

// ClientConfig holds HTTP client tuning parameters
type ClientConfig struct {
	MaxRetries          int
	RetryDelayBase      time.Duration
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	IdleConnTimeout     time.Duration
}

// Client provides access to the USGS earthquake API
type Client struct {
	baseURL        string
	httpClient     *http.Client
	maxRetries     int
	retryDelayBase time.Duration
}

// APIError is returned when the service answers with a non-success status.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("usgs api returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("usgs api returned status %d: %s", e.StatusCode, e.Body)
}

// Query describes a catalog request. Nil pointers leave the filter unset.
type Query struct {
	StartTime    time.Time
	EndTime      time.Time
	MinMagnitude *float64
	MaxMagnitude *float64
	MinDepth     *float64
	MaxDepth     *float64
	Limit        int
}

// NewClient creates a new USGS client
func NewClient(baseURL string, timeout time.Duration, cfg ClientConfig) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelayBase <= 0 {
		cfg.RetryDelayBase = time.Second
	}
	if cfg.MaxIdleConns <= 0 {
		cfg.MaxIdleConns = 10
	}
	if cfg.MaxIdleConnsPerHost <= 0 {
		cfg.MaxIdleConnsPerHost = 2
	}
	if cfg.IdleConnTimeout <= 0 {
		cfg.IdleConnTimeout = 90 * time.Second
	}

	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        cfg.MaxIdleConns,
				MaxIdleConnsPerHost: cfg.MaxIdleConnsPerHost,
				IdleConnTimeout:     cfg.IdleConnTimeout,
			},
		},
		maxRetries:     cfg.MaxRetries,
		retryDelayBase: cfg.RetryDelayBase,
	}
}

// FetchEarthquakes retrieves the events matching q. A zero EndTime means now
// and a zero StartTime means 24 hours before EndTime.
func (c *Client) FetchEarthquakes(ctx context.Context, q Query) (*models.Catalog, error) {
	reqURL, err := c.buildURL(q)
	if err != nil {
		return nil, err
	}
	logger.Debug("Fetching earthquakes: %s", reqURL)

	body, err := c.doRequest(ctx, reqURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch earthquake data: %w", err)
	}

	catalog, err := ParseGeoJSON(body)
	if err != nil {
		return nil, err
	}
	logger.Debug("Parsed %d earthquakes from USGS response", catalog.Len())
	return catalog, nil
}

func (c *Client) buildURL(q Query) (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL %q: %w", c.baseURL, err)
	}

	end := q.EndTime
	if end.IsZero() {
		end = time.Now().UTC()
	}
	start := q.StartTime
	if start.IsZero() {
		start = end.Add(-24 * time.Hour)
	}
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	params := u.Query()
	params.Set("format", "geojson")
	params.Set("orderby", "time")
	params.Set("starttime", start.UTC().Format(timeLayout))
	params.Set("endtime", end.UTC().Format(timeLayout))
	params.Set("limit", strconv.Itoa(limit))
	setFloat(params, "minmagnitude", q.MinMagnitude)
	setFloat(params, "maxmagnitude", q.MaxMagnitude)
	setFloat(params, "mindepth", q.MinDepth)
	setFloat(params, "maxdepth", q.MaxDepth)
	u.RawQuery = params.Encode()

	return u.String(), nil
}

func setFloat(params url.Values, key string, v *float64) {
	if v != nil {
		params.Set(key, strconv.FormatFloat(*v, 'f', -1, 64))
	}
}

// doRequest performs HTTP request with retry logic. Transport errors and 5xx
// responses are retried with a linearly growing delay; 4xx responses are not.
func (c *Client) doRequest(ctx context.Context, reqURL string) ([]byte, error) {
	var lastErr error

	for i := 0; i < c.maxRetries; i++ {
		if i > 0 {
			delay := c.retryDelayBase * time.Duration(i)
			logger.Debug("Retrying USGS request in %v (attempt %d/%d): %v", delay, i+1, c.maxRetries, lastErr)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode >= 500 {
			lastErr = &APIError{StatusCode: resp.StatusCode}
			continue
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, &APIError{StatusCode: resp.StatusCode, Body: truncate(string(body), 200)}
		}
		if readErr != nil {
			lastErr = fmt.Errorf("failed to read response body: %w", readErr)
			continue
		}

		return body, nil
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// featureCollection mirrors the subset of the USGS GeoJSON schema we read.
type featureCollection struct {
	Type     string    `json:"type"`
	Features []feature `json:"features"`
}

type feature struct {
	ID         string `json:"id"`
	Properties struct {
		Mag   *float64 `json:"mag"`
		Place *string  `json:"place"`
		Time  int64    `json:"time"` // epoch milliseconds
		URL   string   `json:"url"`
	} `json:"properties"`
	Geometry struct {
		Coordinates []float64 `json:"coordinates"` // [lon, lat, depth]
	} `json:"geometry"`
}

// ParseGeoJSON converts a USGS GeoJSON FeatureCollection into a catalog.
// Features with a null magnitude are skipped, and so are features that fail
// models.Earthquake validation (out-of-range coordinates, missing ID).
func ParseGeoJSON(data []byte) (*models.Catalog, error) {
	var fc featureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("failed to decode GeoJSON: %w", err)
	}

	events := make([]models.Earthquake, 0, len(fc.Features))
	skipped, invalid := 0, 0
	for _, f := range fc.Features {
		if f.Properties.Mag == nil {
			skipped++
			continue
		}
		if len(f.Geometry.Coordinates) < 2 {
			return nil, fmt.Errorf("feature %s has %d coordinates, need at least 2", f.ID, len(f.Geometry.Coordinates))
		}

		place := "Unknown"
		if f.Properties.Place != nil {
			place = *f.Properties.Place
		}
		var depth float64
		if len(f.Geometry.Coordinates) > 2 {
			depth = f.Geometry.Coordinates[2]
		}

		e := models.Earthquake{
			ID:        f.ID,
			Time:      time.UnixMilli(f.Properties.Time).UTC(),
			Latitude:  f.Geometry.Coordinates[1],
			Longitude: f.Geometry.Coordinates[0],
			Depth:     depth,
			Magnitude: *f.Properties.Mag,
			Place:     place,
			URL:       f.Properties.URL,
		}
		if err := e.Validate(); err != nil {
			logger.Warn("Skipping invalid feature %q: %v", f.ID, err)
			invalid++
			continue
		}
		events = append(events, e)
	}
	if skipped > 0 {
		logger.Debug("Skipped %d features without magnitude", skipped)
	}
	if invalid > 0 {
		logger.Warn("Dropped %d of %d features that failed validation", invalid, len(fc.Features))
	}

	return models.NewCatalog(events), nil
}

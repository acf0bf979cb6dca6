package render

import (
	"fmt"
	"html/template"
	"io"
	"math"
	"time"

	"github.com/rewired-gh/seismoalert/internal/models"
)

type marker struct {
	Lat    float64
	Lon    float64
	Radius float64
	Color  string
	Popup  string
}

type mapPage struct {
	Title     string
	CenterLat float64
	CenterLon float64
	Zoom      int
	Markers   []marker
}

var mapTemplate = template.Must(template.New("map").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<link rel="stylesheet" href="https://unpkg.com/leaflet@1.9.4/dist/leaflet.css">
<script src="https://unpkg.com/leaflet@1.9.4/dist/leaflet.js"></script>
<style>html, body, #map { height: 100%; margin: 0; }</style>
</head>
<body>
<div id="map"></div>
<script>
var map = L.map('map').setView([{{.CenterLat}}, {{.CenterLon}}], {{.Zoom}});
L.tileLayer('https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png', {
  attribution: '&copy; OpenStreetMap contributors'
}).addTo(map);
{{range .Markers}}L.circleMarker([{{.Lat}}, {{.Lon}}], {radius: {{.Radius}}, color: {{.Color}}, fillColor: {{.Color}}, fillOpacity: 0.6}).bindPopup({{.Popup}}).addTo(map);
{{end}}</script>
</body>
</html>
`))

// MagnitudeColor is the marker colour for a magnitude.
func MagnitudeColor(m float64) string {
	switch {
	case m < 3:
		return "green"
	case m < 5:
		return "yellow"
	case m < 7:
		return "orange"
	default:
		return "red"
	}
}

// MarkerRadius is max(3, m²).
func MarkerRadius(m float64) float64 {
	return math.Max(3, m*m)
}

// WriteMap writes a standalone HTML page with one circle marker per event,
// centred on the mean event location.
func WriteMap(w io.Writer, c *models.Catalog) error {
	page := mapPage{
		Title:   fmt.Sprintf("Earthquakes (%d events)", c.Len()),
		Zoom:    2,
		Markers: make([]marker, 0, c.Len()),
	}

	events := c.Events()
	if len(events) > 0 {
		var sumLat, sumLon float64
		for _, e := range events {
			sumLat += e.Latitude
			sumLon += e.Longitude
			page.Markers = append(page.Markers, marker{
				Lat:    e.Latitude,
				Lon:    e.Longitude,
				Radius: MarkerRadius(e.Magnitude),
				Color:  MagnitudeColor(e.Magnitude),
				Popup: fmt.Sprintf("M%.1f %s, %s, depth %.1f km",
					e.Magnitude, e.Place, e.Time.UTC().Format(time.RFC3339), e.Depth),
			})
		}
		page.CenterLat = sumLat / float64(len(events))
		page.CenterLon = sumLon / float64(len(events))
		page.Zoom = 3
	}

	if err := mapTemplate.Execute(w, page); err != nil {
		return fmt.Errorf("render map: %w", err)
	}
	return nil
}

// Package render turns catalogs and analysis results into files: CSV exports,
// a standalone Leaflet map and PNG plots.
package render

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/rewired-gh/seismoalert/internal/models"
)

// csvTimeLayout is the time_utc column format.
const csvTimeLayout = "2006-01-02 15:04:05 UTC"

var csvHeader = []string{"id", "time_utc", "latitude", "longitude", "depth_km", "magnitude", "place", "url"}

// WriteCSV writes one row per event in catalog order.
func WriteCSV(w io.Writer, c *models.Catalog) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for _, e := range c.Events() {
		row := []string{
			e.ID,
			e.Time.UTC().Format(csvTimeLayout),
			formatFloat(e.Latitude),
			formatFloat(e.Longitude),
			formatFloat(e.Depth),
			formatFloat(e.Magnitude),
			e.Place,
			e.URL,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row %s: %w", e.ID, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/rewired-gh/seismoalert/internal/models"
	"github.com/rewired-gh/seismoalert/internal/render"
)

const topEvents = 5

func newFetchCmd(a *app) *cobra.Command {
	var (
		days      int
		minMag    float64
		limit     int
		outputCSV string
	)

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch recent earthquakes from the USGS API",
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := a.fetch(cmd.Context(), days, minMag, limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Fetched %d earthquakes (M>=%.1f, last %d day(s))\n", catalog.Len(), minMag, days)

			path, err := writeCSVFile(outputCSV, catalog)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Saved %d events to %s\n", catalog.Len(), path)

			printTopEvents(cmd, catalog)
			return nil
		},
	}

	cmd.Flags().IntVar(&days, "days", 1, "days to look back")
	cmd.Flags().Float64Var(&minMag, "min-magnitude", 2.5, "minimum magnitude")
	cmd.Flags().IntVar(&limit, "limit", 100, "max number of events")
	cmd.Flags().StringVar(&outputCSV, "output-csv", "earthquakes.csv", "output CSV file for fetched events")
	return cmd
}

func writeCSVFile(path string, c *models.Catalog) (string, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create CSV file: %w", err)
	}
	defer f.Close()

	if err := render.WriteCSV(f, c); err != nil {
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to write CSV file: %w", err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return path, nil
	}
	return abs, nil
}

func printTopEvents(cmd *cobra.Command, c *models.Catalog) {
	max, ok := c.MaxMagnitude()
	if !ok {
		return
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Largest event: M%.1f\n\nTop events:\n", max)

	sorted := c.SortByMagnitude(true)
	for i := 0; i < sorted.Len() && i < topEvents; i++ {
		e := sorted.At(i)
		fmt.Fprintf(out, "  M%.1f  %s  (%s)\n", e.Magnitude, e.Place, e.Time.UTC().Format("2006-01-02 15:04 UTC"))
	}
}

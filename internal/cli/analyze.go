package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/rewired-gh/seismoalert/internal/analysis"
	"github.com/rewired-gh/seismoalert/internal/models"
	"github.com/rewired-gh/seismoalert/internal/render"
)

func (a *app) analysisOptions() analysis.Options {
	return analysis.Options{
		AnomalyWindow:    a.cfg.Analysis.AnomalyWindow,
		AnomalyThreshold: a.cfg.Analysis.AnomalyThreshold,
		ClusterRadiusKm:  a.cfg.Analysis.ClusterRadiusKm,
		ClusterWindow:    a.cfg.Analysis.ClusterWindow,
	}
}

func newAnalyzeCmd(a *app) *cobra.Command {
	var (
		days       int
		minMag     float64
		windowDays int
		maxDepth   float64
		plotsDir   string
		asJSON     bool
	)

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Run statistical analysis on earthquake data",
		RunE: func(cmd *cobra.Command, args []string) error {
			if windowDays < 1 {
				return fmt.Errorf("--window-days must be at least 1")
			}
			catalog, err := a.fetch(cmd.Context(), days, minMag, 0)
			if err != nil {
				return err
			}
			fetched := catalog.Len()
			if cmd.Flags().Changed("max-depth") {
				catalog = catalog.FilterByDepth(nil, &maxDepth)
			}

			opts := a.analysisOptions()
			opts.AnomalyWindow = flagOr(cmd, "window-days", time.Duration(windowDays)*24*time.Hour, opts.AnomalyWindow)
			summary := analysis.Summarize(catalog, opts)

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(summary)
			}

			if catalog.Len() != fetched {
				fmt.Fprintf(out, "Kept %d of %d earthquakes at depth <= %.1f km\n", catalog.Len(), fetched, maxDepth)
			}
			fmt.Fprintf(out, "Analyzing %d earthquakes over %d days...\n", catalog.Len(), days)
			if catalog.Len() < 2 {
				fmt.Fprintln(out, "Insufficient data for analysis.")
				return nil
			}
			printSummary(cmd, summary)

			if plotsDir != "" {
				return writePlots(cmd, plotsDir, catalog, summary)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&days, "days", 30, "days to analyze")
	cmd.Flags().Float64Var(&minMag, "min-magnitude", 1.0, "minimum magnitude")
	cmd.Flags().IntVar(&windowDays, "window-days", 7, "anomaly window in days, overrides analysis.anomaly_window")
	cmd.Flags().Float64Var(&maxDepth, "max-depth", 0, "only analyze events no deeper than this many km")
	cmd.Flags().StringVar(&plotsDir, "plots", "", "directory to write magnitude-time and Gutenberg-Richter plots to")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full summary as JSON")
	return cmd
}

func printSummary(cmd *cobra.Command, s analysis.Summary) {
	out := cmd.OutOrStdout()

	if gr := s.GutenbergRichter; gr != nil {
		fmt.Fprintln(out, "\nGutenberg-Richter fit:")
		fmt.Fprintf(out, "  Magnitude of completeness (Mc): %.1f\n", gr.Mc)
		fmt.Fprintf(out, "  a-value: %.3f\n", gr.AValue)
		fmt.Fprintf(out, "  b-value: %.3f\n", gr.BValue)
		fmt.Fprintf(out, "  events used: %d\n", gr.NEvents)
	}
	if s.MeanInterEventSeconds != nil {
		fmt.Fprintf(out, "\nMean inter-event time: %s\n", time.Duration(*s.MeanInterEventSeconds*float64(time.Second)).Round(time.Second))
	}
	if s.Clustering != nil {
		fmt.Fprintf(out, "Clustering coefficient: %.3f\n", *s.Clustering)
	}

	if len(s.Anomalies) > 0 {
		fmt.Fprintf(out, "\nDetected %d anomalous period(s):\n", len(s.Anomalies))
		for i, p := range s.Anomalies {
			if i == topEvents {
				break
			}
			fmt.Fprintf(out, "  Events %d-%d: %d events (%.1f sigma above mean, starting %s)\n",
				p.StartIndex, p.EndIndex, p.EventCount, p.SigmaDeviation, p.Start.UTC().Format("2006-01-02 15:04 UTC"))
		}
	} else {
		fmt.Fprintln(out, "\nNo anomalous periods detected.")
	}

	for _, issue := range s.Issues {
		fmt.Fprintf(out, "Skipped %s\n", issue)
	}
}

func writePlots(cmd *cobra.Command, dir string, c *models.Catalog, s analysis.Summary) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create plots directory: %w", err)
	}
	out := cmd.OutOrStdout()

	mtPath := filepath.Join(dir, "magnitude_time.png")
	if err := render.MagnitudeTimePlot(c, mtPath); err != nil {
		return err
	}
	fmt.Fprintf(out, "Plot saved to %s\n", mtPath)

	if s.GutenbergRichter != nil {
		grPath := filepath.Join(dir, "gutenberg_richter.png")
		if err := render.GutenbergRichterPlot(c, *s.GutenbergRichter, grPath); err != nil {
			return err
		}
		fmt.Fprintf(out, "Plot saved to %s\n", grPath)
	}
	return nil
}

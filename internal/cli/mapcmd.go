package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/rewired-gh/seismoalert/internal/render"
)

func newMapCmd(a *app) *cobra.Command {
	var (
		days   int
		minMag float64
		output string
	)

	cmd := &cobra.Command{
		Use:   "map",
		Short: "Generate an interactive earthquake map",
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := a.fetch(cmd.Context(), days, minMag, 0)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Generating map with %d earthquakes...\n", catalog.Len())

			if dir := filepath.Dir(output); dir != "." {
				if err := os.MkdirAll(dir, 0755); err != nil {
					return fmt.Errorf("failed to create output directory: %w", err)
				}
			}
			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("failed to create map file: %w", err)
			}
			defer f.Close()

			if err := render.WriteMap(f, catalog); err != nil {
				return err
			}
			if err := f.Close(); err != nil {
				return fmt.Errorf("failed to write map file: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Map saved to %s\n", output)
			return nil
		},
	}

	cmd.Flags().IntVar(&days, "days", 7, "days to look back")
	cmd.Flags().Float64Var(&minMag, "min-magnitude", 2.5, "minimum magnitude")
	cmd.Flags().StringVar(&output, "output", "earthquakes.html", "output HTML file")
	return cmd
}

// Package cli implements the seismoalert command line: fetch, analyze, map
// and monitor.
package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rewired-gh/seismoalert/internal/config"
	"github.com/rewired-gh/seismoalert/internal/logger"
	"github.com/rewired-gh/seismoalert/internal/models"
	"github.com/rewired-gh/seismoalert/internal/usgs"
)

// Version is set at build time.
var Version = "dev"

type app struct {
	configPath string
	logLevel   string
	cfg        *config.Config
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "seismoalert",
		Short:         "Earthquake monitor and anomaly detector",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.loadConfig()
		},
	}

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "path to configuration file")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "override logging.level (debug, info, warn, error)")

	root.AddCommand(
		newFetchCmd(a),
		newAnalyzeCmd(a),
		newMapCmd(a),
		newMonitorCmd(a),
	)
	return root
}

func (a *app) loadConfig() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	a.cfg = cfg
	return nil
}

func (a *app) client() *usgs.Client {
	return usgs.NewClient(a.cfg.USGS.BaseURL, a.cfg.USGS.Timeout, usgs.ClientConfig{
		MaxRetries:          a.cfg.USGS.MaxRetries,
		RetryDelayBase:      a.cfg.USGS.RetryDelayBase,
		MaxIdleConns:        a.cfg.USGS.MaxIdleConns,
		MaxIdleConnsPerHost: a.cfg.USGS.MaxIdleConnsPerHost,
		IdleConnTimeout:     a.cfg.USGS.IdleConnTimeout,
	})
}

// fetch retrieves the last days of events at or above minMag. A non-positive
// limit uses usgs.limit from the configuration.
func (a *app) fetch(ctx context.Context, days int, minMag float64, limit int) (*models.Catalog, error) {
	if days < 1 {
		return nil, fmt.Errorf("--days must be at least 1")
	}
	if limit <= 0 {
		limit = a.cfg.USGS.Limit
	}
	end := time.Now().UTC()
	catalog, err := a.client().FetchEarthquakes(ctx, usgs.Query{
		StartTime:    end.Add(-time.Duration(days) * 24 * time.Hour),
		EndTime:      end,
		MinMagnitude: &minMag,
		Limit:        limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch earthquakes: %w", err)
	}
	return catalog, nil
}

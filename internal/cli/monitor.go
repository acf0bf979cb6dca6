package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rewired-gh/seismoalert/internal/alerts"
	"github.com/rewired-gh/seismoalert/internal/config"
	"github.com/rewired-gh/seismoalert/internal/logger"
	"github.com/rewired-gh/seismoalert/internal/metrics"
	"github.com/rewired-gh/seismoalert/internal/monitor"
	"github.com/rewired-gh/seismoalert/internal/server"
	"github.com/rewired-gh/seismoalert/internal/storage"
	"github.com/rewired-gh/seismoalert/internal/telegram"
)

type monitorFlags struct {
	days       int
	minMag     float64
	alertMag   float64
	alertCount int
	rulesFile  string
	watch      bool
}

func newMonitorCmd(a *app) *cobra.Command {
	f := &monitorFlags{}

	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Fetch, analyze and check alert rules",
		Long: "Runs one monitoring cycle and prints the triggered alerts. With --watch it keeps\n" +
			"polling at monitor.poll_interval, applies alerts.cooldown using the alert history\n" +
			"and serves /healthz, /metrics and /report on monitor.metrics_addr when set.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if f.days < 1 {
				return fmt.Errorf("--days must be at least 1")
			}
			rules, err := f.rules(cmd, a.cfg)
			if err != nil {
				return err
			}
			manager := alerts.NewManager(rules...)

			notifier, status, err := buildNotifiers(a.cfg)
			if err != nil {
				return err
			}

			opts := f.options(cmd, a)
			if f.watch {
				return a.watch(cmd.Context(), cmd, f, manager, notifier, status, opts)
			}

			m := monitor.New(a.client(), manager, notifier, nil, opts)
			res, err := m.RunCycle(cmd.Context(), time.Now().UTC())
			if res != nil {
				printCycle(cmd, res, opts)
			}
			return err
		},
	}

	cmd.Flags().IntVar(&f.days, "days", 1, "days to look back")
	cmd.Flags().Float64Var(&f.minMag, "min-magnitude", 4.0, "minimum magnitude")
	cmd.Flags().Float64Var(&f.alertMag, "alert-magnitude", 6.0, "magnitude threshold for alerts")
	cmd.Flags().IntVar(&f.alertCount, "alert-count", 50, "event count threshold for alerts")
	cmd.Flags().StringVar(&f.rulesFile, "rules", "", "YAML rule file replacing the built-in rules")
	cmd.Flags().BoolVar(&f.watch, "watch", false, "keep monitoring until interrupted")
	return cmd
}

// flagOr returns the flag value if it was set on the command line and the
// configured value otherwise.
func flagOr[T any](cmd *cobra.Command, name string, flagVal, cfgVal T) T {
	if cmd.Flags().Changed(name) {
		return flagVal
	}
	return cfgVal
}

func (f *monitorFlags) rules(cmd *cobra.Command, cfg *config.Config) ([]alerts.Rule, error) {
	if path := flagOr(cmd, "rules", f.rulesFile, cfg.Alerts.RulesFile); path != "" {
		return alerts.LoadRules(path)
	}
	return alerts.DefaultRules(
		flagOr(cmd, "alert-magnitude", f.alertMag, cfg.Alerts.MagnitudeThreshold),
		flagOr(cmd, "alert-count", f.alertCount, cfg.Alerts.CountThreshold),
	), nil
}

func (f *monitorFlags) options(cmd *cobra.Command, a *app) monitor.Options {
	return monitor.Options{
		PollInterval: a.cfg.Monitor.PollInterval,
		Lookback:     flagOr(cmd, "days", time.Duration(f.days)*24*time.Hour, a.cfg.Monitor.Lookback),
		MinMagnitude: flagOr(cmd, "min-magnitude", f.minMag, a.cfg.Monitor.MinMagnitude),
		Limit:        a.cfg.USGS.Limit,
		Cooldown:     a.cfg.Alerts.Cooldown,
		MaxAlerts:    a.cfg.Storage.MaxAlerts,
		Analysis:     a.analysisOptions(),
	}
}

// buildNotifiers assembles the configured channels. The log notifier is
// always present; status is non-nil only when Telegram is enabled.
func buildNotifiers(cfg *config.Config) (alerts.Notifier, monitor.StatusNotifier, error) {
	multi := alerts.MultiNotifier{alerts.LogNotifier{}}
	var status monitor.StatusNotifier

	if cfg.Telegram.Enabled {
		tg, err := telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.MaxRetries, cfg.Telegram.RetryDelayBase)
		if err != nil {
			return nil, nil, err
		}
		multi = append(multi, tg)
		status = tg
		logger.Info("Telegram notifications enabled")
	}
	if cfg.Webhook.Enabled {
		multi = append(multi, alerts.NewWebhookNotifier(cfg.Webhook.URL, cfg.Webhook.Timeout))
		logger.Info("Webhook notifications enabled")
	}
	if cfg.Email.Enabled {
		e := cfg.Email
		multi = append(multi, alerts.NewEmailNotifier(e.SMTPAddr, e.From, e.To, e.Username, e.Password))
		logger.Info("Email notifications enabled for %d recipient(s)", len(e.To))
	}
	return multi, status, nil
}

func printCycle(cmd *cobra.Command, res *monitor.CycleResult, opts monitor.Options) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Monitoring: %d events (M>=%.1f, last %v)\n", res.Summary.EventCount, opts.MinMagnitude, opts.Lookback)

	if len(res.Triggered) == 0 {
		fmt.Fprintln(out, "\nNo alerts triggered. All clear.")
		return
	}
	fmt.Fprintf(out, "\n%d alert(s) triggered:\n", len(res.Triggered))
	for _, alert := range res.Triggered {
		fmt.Fprintf(out, "  [%s] %s\n", alert.RuleName, alert.Message)
	}
}

func (a *app) watch(ctx context.Context, cmd *cobra.Command, f *monitorFlags, manager *alerts.Manager,
	notifier alerts.Notifier, status monitor.StatusNotifier, opts monitor.Options) error {
	store, err := storage.New(a.cfg.Storage.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open alert history: %w", err)
	}
	defer store.Close()
	logger.Info("Alert history: %s", a.cfg.Storage.DBPath)

	collector := metrics.New()
	m := monitor.New(a.client(), manager, notifier, store, opts)
	m.SetMetrics(collector)
	if status != nil {
		m.SetStatusNotifier(status)
	}

	if a.cfg.Monitor.MetricsAddr != "" {
		srv := server.New(a.cfg.Monitor.MetricsAddr, m, collector)
		srv.SetHistory(store)
		go func() {
			if err := srv.Run(ctx); err != nil {
				logger.Error("HTTP server failed: %v", err)
			}
		}()
	}

	if a.configPath != "" {
		_, err := config.Watch(a.configPath, func(next *config.Config) {
			rules, err := f.rules(cmd, next)
			if err != nil {
				logger.Warn("Keeping previous alert rules: %v", err)
				return
			}
			manager.SetRules(rules)
			logger.Info("Alert rules reloaded (%d rules)", len(rules))
		})
		if err != nil {
			logger.Warn("Config hot reload disabled: %v", err)
		}
	}

	m.Run(ctx)
	return nil
}

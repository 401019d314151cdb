// Command hmemctl is an operator CLI for inspecting and manually driving
// the memory engine outside of the normal per-request hook path: dumping
// observability stats, listing themes, and triggering the weekly
// maintenance pass on demand.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hmemcore/hmem/internal/config"
	"github.com/hmemcore/hmem/internal/engine"
	"github.com/hmemcore/hmem/internal/tuning"
)

var configFile string

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to initialize logger:", err)
		os.Exit(1)
	}
	defer logger.Sync()

	root := &cobra.Command{
		Use:   "hmemctl",
		Short: "Inspect and drive the hierarchical memory engine out of band",
	}
	root.PersistentFlags().StringVar(&configFile, "config", "", "path to YAML config overlay")

	root.AddCommand(
		newThemesCmd(logger),
		newCronCmd(logger),
		newStatsCmd(logger),
	)

	if err := root.Execute(); err != nil {
		logger.Error("command failed", zap.Error(err))
		os.Exit(1)
	}
}

// openEngine constructs an Engine for a one-shot CLI invocation. The
// engine's own component logging goes through slog, matching the server
// process; zap is this command's own operator-facing logger, kept
// separate rather than bridged since the two have no shared audience.
func openEngine(logger *zap.Logger) (*engine.Engine, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	engineLogger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	return engine.New(cfg, engineLogger, engine.Deps{})
}

func newThemesCmd(logger *zap.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "themes",
		Short: "Report the current theme count",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := openEngine(logger)
			if err != nil {
				return err
			}
			defer eng.Close()

			count, err := eng.ThemeCount()
			if err != nil {
				return fmt.Errorf("theme count: %w", err)
			}
			fmt.Printf("themes: %d\n", count)
			return nil
		},
	}
}

func newCronCmd(logger *zap.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "cron",
		Short: "Run the weekly maintenance pass (decay, dedup, merges, k-NN rebuild, dormancy, durative rebuild, profile, tuning) immediately",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := openEngine(logger)
			if err != nil {
				return err
			}
			defer eng.Close()

			if err := eng.CronWeekly(cmd.Context()); err != nil {
				return fmt.Errorf("cron_weekly: %w", err)
			}
			logger.Info("cron_weekly complete")
			return nil
		},
	}
}

func newStatsCmd(logger *zap.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print a blank observability summary for a fresh engine (no in-process history to report from the CLI)",
		RunE: func(cmd *cobra.Command, args []string) error {
			recorder := tuning.NewRecorder()
			stats := tuning.Summarize(recorder.Traces())
			fmt.Printf("totalTraces=%d hitRate=%.2f avgTokensInjected=%.1f satisfactionRate=%.2f\n",
				stats.TotalTraces, stats.HitRate, stats.AvgTokensInjected, stats.SatisfactionRate)
			fmt.Println("note: this CLI runs out-of-process, so it never observes the server's live observability ring buffer; use GET /observability/stats on the running server for real numbers.")
			return nil
		},
	}
}

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kirillkom/tariff-engine/internal/bootstrap"
	"github.com/kirillkom/tariff-engine/internal/config"
	"github.com/kirillkom/tariff-engine/internal/observability/logging"
)

var (
	cfg           config.Config
	scheduleFlags []string
)

var rootCmd = &cobra.Command{
	Use:   "tariffctl",
	Short: "Customs duty quotes and schedule management",
	Long: "Quotes duties, looks up and searches duty schedules, and uploads schedule workbooks.\n" +
		"With --schedule the query commands run offline against .xlsx files held in memory.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		cfg = config.Load()
		slog.SetDefault(logging.New(cmd.ErrOrStderr(), "tariffctl", cfg.LogLevel, cfg.LogFormat))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringArrayVar(&scheduleFlags, "schedule", nil,
		"JURISDICTION=path.xlsx to load into memory instead of using the database (repeatable)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// openApp returns the offline app when --schedule was given, the full
// service wiring otherwise.
func openApp(ctx context.Context) (*bootstrap.App, error) {
	if len(scheduleFlags) > 0 {
		schedules, err := parseScheduleFlags(scheduleFlags)
		if err != nil {
			return nil, err
		}
		return bootstrap.NewOffline(ctx, cfg, schedules)
	}
	return bootstrap.New(ctx, cfg, bootstrap.Observers{})
}

func parseScheduleFlags(values []string) (map[string]string, error) {
	out := make(map[string]string, len(values))
	for _, v := range values {
		jurisdiction, path, ok := strings.Cut(v, "=")
		jurisdiction = strings.TrimSpace(jurisdiction)
		path = strings.TrimSpace(path)
		if !ok || jurisdiction == "" || path == "" {
			return nil, fmt.Errorf("invalid --schedule %q: want JURISDICTION=path.xlsx", v)
		}
		out[jurisdiction] = path
	}
	return out, nil
}

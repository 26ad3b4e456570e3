package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kirillkom/tariff-engine/internal/core/tariff"
)

var importCmd = &cobra.Command{
	Use:   "import JURISDICTION FILE.xlsx",
	Short: "Upload a schedule workbook for asynchronous loading",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(scheduleFlags) > 0 {
			return fmt.Errorf("import needs the database; drop --schedule")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		f, err := os.Open(args[1])
		if err != nil {
			return fmt.Errorf("open schedule: %w", err)
		}
		defer f.Close()

		app, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer app.Close()

		job, err := app.ImportUC.Upload(ctx, args[0], filepath.Base(args[1]), f)
		if err != nil {
			return fmt.Errorf("import: %w", err)
		}
		return printJSON(cmd.OutOrStdout(), job)
	},
}

var jurisdictionsCmd = &cobra.Command{
	Use:   "jurisdictions",
	Short: "List supported jurisdictions and preferential programs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		rules, err := tariff.LoadRules(cfg.TariffRulesPath)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "CODE\tNAME\tALIASES")
		for _, j := range rules.Jurisdictions() {
			marker := ""
			if j.Code == rules.Baseline().Code {
				marker = " (baseline)"
			}
			fmt.Fprintf(tw, "%s\t%s%s\t%s\n", j.Code, j.Name, marker, strings.Join(j.Aliases, ", "))
		}
		if err := tw.Flush(); err != nil {
			return err
		}

		fmt.Fprintln(out)
		tw = tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "PROGRAM\tNAME\tORIGINS")
		for _, p := range rules.Programs() {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", p.Key, p.Name, strings.Join(p.Origins, ", "))
		}
		return tw.Flush()
	},
}

func init() {
	rootCmd.AddCommand(importCmd, jurisdictionsCmd)
}

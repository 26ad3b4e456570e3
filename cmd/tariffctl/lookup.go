package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var (
	infoCountry string
	searchLimit int
)

var infoCmd = &cobra.Command{
	Use:   "info HTS8",
	Short: "Show the raw schedule fields for a code",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		app, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer app.Close()

		meta, err := app.QueryUC.GetTariffInfo(ctx, args[0], infoCountry)
		if err != nil {
			return fmt.Errorf("info: %w", err)
		}
		if meta == nil {
			return fmt.Errorf("info: %s not found", args[0])
		}
		return printJSON(cmd.OutOrStdout(), meta)
	},
}

var searchCmd = &cobra.Command{
	Use:   "search TERM",
	Short: "Search the baseline schedule by code prefix or description",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		app, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer app.Close()

		matches, err := app.QueryUC.SearchTariffs(ctx, args[0])
		if err != nil {
			return fmt.Errorf("search: %w", err)
		}
		if searchLimit > 0 && len(matches) > searchLimit {
			matches = matches[:searchLimit]
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "HTS8\tMFN\tDESCRIPTION")
		for _, m := range matches {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", m.HTS8, m.MFNTextRate, m.Description)
		}
		return tw.Flush()
	},
}

func init() {
	infoCmd.Flags().StringVar(&infoCountry, "country", "", "country of arrival (code or name)")
	searchCmd.Flags().IntVar(&searchLimit, "limit", 50, "maximum rows to print")
	rootCmd.AddCommand(infoCmd, searchCmd)
}

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kirillkom/tariff-engine/internal/core/domain"
)

var quoteReq domain.DutyQuoteRequest

var quoteCmd = &cobra.Command{
	Use:   "quote",
	Short: "Calculate the duty for one shipment line",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if quoteReq.HTS8 == "" {
			return fmt.Errorf("--hts8 is required")
		}
		if quoteReq.ItemValue < 0 {
			return fmt.Errorf("--value must not be negative")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		app, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer app.Close()

		result, err := app.QueryUC.CalculateTariff(ctx, quoteReq)
		if err != nil {
			return fmt.Errorf("quote: %w", err)
		}
		return printJSON(cmd.OutOrStdout(), result)
	},
}

func init() {
	quoteCmd.Flags().StringVar(&quoteReq.HTS8, "hts8", "", "8-digit classification code (required)")
	quoteCmd.Flags().Float64Var(&quoteReq.ItemValue, "value", 0, "declared customs value")
	quoteCmd.Flags().Float64Var(&quoteReq.ItemQuantity, "quantity", 1, "item quantity")
	quoteCmd.Flags().StringVar(&quoteReq.OriginCountry, "origin", "", "origin country code")
	quoteCmd.Flags().StringVar(&quoteReq.ArrivalCountry, "arrival", "", "country of arrival (code or name)")
	rootCmd.AddCommand(quoteCmd)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

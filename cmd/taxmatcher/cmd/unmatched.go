package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"taxfiler-matching-service/cmd/taxmatcher/config"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	unmatchedFrom         string
	unmatchedTo           string
	unmatchedOutputFormat string
)

// unmatchedCmd lists transactions without any attachment
var unmatchedCmd = &cobra.Command{
	Use:   "unmatched",
	Short: "List transactions without any attached document",
	Long: `Unmatched lists stored transactions that have no attachment yet,
optionally restricted to a value-date period. Both bounds are
inclusive.

Examples:
  taxmatcher unmatched
  taxmatcher unmatched --from 2024-01-01 --to 2024-03-31
  taxmatcher unmatched --output-format json`,

	PreRunE: validateUnmatchedFlags,
	RunE:    runUnmatched,
}

func init() {
	rootCmd.AddCommand(unmatchedCmd)

	unmatchedCmd.Flags().StringVar(&unmatchedFrom, "from", "", "period start (YYYY-MM-DD)")
	unmatchedCmd.Flags().StringVar(&unmatchedTo, "to", "", "period end (YYYY-MM-DD)")
	unmatchedCmd.Flags().StringVarP(&unmatchedOutputFormat, "output-format", "f", "console", "output format: console, json")
}

func validateUnmatchedFlags(cmd *cobra.Command, args []string) error {
	for _, value := range []string{unmatchedFrom, unmatchedTo} {
		if value == "" {
			continue
		}
		if _, err := time.Parse("2006-01-02", value); err != nil {
			return fmt.Errorf("invalid date '%s'. Use YYYY-MM-DD", value)
		}
	}
	if unmatchedFrom != "" && unmatchedTo != "" {
		from, _ := time.Parse("2006-01-02", unmatchedFrom)
		to, _ := time.Parse("2006-01-02", unmatchedTo)
		if from.After(to) {
			return fmt.Errorf("from date cannot be after to date")
		}
	}
	if unmatchedOutputFormat != "console" && unmatchedOutputFormat != "json" {
		return fmt.Errorf("invalid output format '%s'. Valid formats: console, json", unmatchedOutputFormat)
	}
	return nil
}

func runUnmatched(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	errorHandler := NewCLIErrorHandler()

	db, err := config.OpenDatabase(viper.GetString("db"), viper.GetBool("verbose"))
	if err != nil {
		os.Exit(errorHandler.HandleError(err))
	}
	defer db.Close()

	var from, to time.Time
	if unmatchedFrom != "" {
		from, _ = time.Parse("2006-01-02", unmatchedFrom)
	}
	if unmatchedTo != "" {
		to, _ = time.Parse("2006-01-02", unmatchedTo)
	}

	transactions, err := db.Transactions().ListUnmatched(ctx, from, to)
	if err != nil {
		os.Exit(errorHandler.HandleError(err))
	}

	if unmatchedOutputFormat == "json" {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(transactions)
	}

	if len(transactions) == 0 {
		fmt.Println("All transactions in the period have attachments.")
		return nil
	}

	fmt.Printf("%-20s %-12s %12s  %s\n", "Transaction", "Date", "Amount", "Counterparty")
	for _, transaction := range transactions {
		fmt.Printf("%-20s %-12s %12s  %s\n",
			transaction.ID,
			transaction.ValueDate.Format("2006-01-02"),
			transaction.GrossAmount.StringFixed(2),
			transaction.CounterpartyName)
	}
	fmt.Printf("\n%d unmatched transaction(s)\n", len(transactions))
	return nil
}

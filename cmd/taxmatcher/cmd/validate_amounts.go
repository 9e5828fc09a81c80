package cmd

import (
	"context"
	"fmt"
	"os"

	"taxfiler-matching-service/cmd/taxmatcher/config"
	"taxfiler-matching-service/internal/matcher"
	"taxfiler-matching-service/internal/models"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	validateAmountsTransaction string
	validateAmountsDocuments   []string
)

// validateAmountsCmd checks a document set against a transaction
// amount without creating attachments
var validateAmountsCmd = &cobra.Command{
	Use:   "validate-amounts",
	Short: "Check whether a document set covers a transaction amount",
	Long: `Validate-amounts sums the Skonto-adjusted document amounts and
compares them against the transaction amount, without creating any
attachments. Differences up to 5% pass silently; between 5% and 10%
the set is accepted with a warning; beyond 10% it is rejected with an
explanation.

Examples:
  taxmatcher validate-amounts --transaction TX001 --documents DOC-1
  taxmatcher validate-amounts --transaction TX001 --documents DOC-1,DOC-2`,

	RunE: runValidateAmounts,
}

func init() {
	rootCmd.AddCommand(validateAmountsCmd)

	validateAmountsCmd.Flags().StringVar(&validateAmountsTransaction, "transaction", "", "transaction ID (required)")
	validateAmountsCmd.Flags().StringSliceVar(&validateAmountsDocuments, "documents", nil, "document IDs (required)")
	validateAmountsCmd.MarkFlagRequired("transaction")
	validateAmountsCmd.MarkFlagRequired("documents")
}

func runValidateAmounts(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	errorHandler := NewCLIErrorHandler()

	db, err := config.OpenDatabase(viper.GetString("db"), viper.GetBool("verbose"))
	if err != nil {
		os.Exit(errorHandler.HandleError(err))
	}
	defer db.Close()

	transaction, err := db.Transactions().GetByID(ctx, validateAmountsTransaction)
	if err != nil {
		os.Exit(errorHandler.HandleError(err))
	}

	documents := make([]*models.TaxDocument, 0, len(validateAmountsDocuments))
	for _, id := range validateAmountsDocuments {
		doc, err := db.Documents().GetByID(ctx, id)
		if err != nil {
			os.Exit(errorHandler.HandleError(err))
		}
		documents = append(documents, doc)
	}

	result := matcher.ValidateMultipleAmounts(transaction.AbsoluteAmount(), documents)
	printValidationResult(transaction, result)

	if !result.IsValid {
		os.Exit(4)
	}
	return nil
}

func printValidationResult(transaction *models.FinancialTransaction, result *matcher.MultipleAmountValidationResult) {
	fmt.Printf("\n=== Amount Validation ===\n")
	fmt.Printf("Transaction:      %s  %s\n", transaction.ID, transaction.GrossAmount.StringFixed(2))
	fmt.Printf("Documents total:  %s", result.TotalDocumentAmount.StringFixed(2))
	if result.SkontoAppliedCount > 0 {
		fmt.Printf("  (Skonto applied to %d)", result.SkontoAppliedCount)
	}
	fmt.Println()
	fmt.Printf("Difference:       %s (%.1f%%)\n", result.Difference.StringFixed(2), result.DifferencePercent)

	if result.IsValid {
		fmt.Println("Result:           valid")
	} else {
		fmt.Println("Result:           invalid")
	}

	for _, warning := range result.Warnings {
		fmt.Printf("Warning:          %s\n", warning)
	}
	for _, recommendation := range result.Recommendations {
		fmt.Printf("Recommendation:   %s\n", recommendation)
	}
}

package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"taxfiler-matching-service/cmd/taxmatcher/config"
	"taxfiler-matching-service/internal/assigner"
	"taxfiler-matching-service/internal/reporter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flags for the assign command
var (
	assignAuto          bool
	assignMulti         bool
	assignDryRun        bool
	assignTransactionID string
	assignDocumentIDs   []string
	assignOutputFormat  string
	assignOutputFile    string
	assignConcurrency   int
	assignPreset        string
	assignMinimumScore  float64

	// Weight override flags
	assignAmountWeight    float64
	assignDateWeight      float64
	assignVendorWeight    float64
	assignReferenceWeight float64
)

// assignCmd represents the assign command
var assignCmd = &cobra.Command{
	Use:   "assign",
	Short: "Attach documents to transactions",
	Long: `Assign works in two modes.

Automatic mode (--auto) scores every tax or VAT relevant transaction
against the unconnected documents and attaches the single best
candidate per transaction. With --multi it additionally tries document
combinations for split payments. Documents assigned earlier in the run
are not offered to later transactions.

Manual mode (--transaction with --documents) attaches an explicit
document selection to one transaction after validating that the
Skonto-adjusted document total plausibly covers the transaction amount.

Examples:
  # Preview an automatic run without writing anything
  taxmatcher assign --auto --dry-run

  # Automatic run including split-payment combinations
  taxmatcher assign --auto --multi

  # Stricter thresholds and custom weights
  taxmatcher assign --auto --preset strict --amount-weight 0.5 --date-weight 0.1

  # Manual multi-document assignment
  taxmatcher assign --transaction TX-2024-0042 --documents DOC-17,DOC-18`,

	PreRunE: validateAssignFlags,
	RunE:    runAssign,
}

func init() {
	rootCmd.AddCommand(assignCmd)

	// Mode flags
	assignCmd.Flags().BoolVar(&assignAuto, "auto", false, "automatic batch assignment")
	assignCmd.Flags().BoolVar(&assignMulti, "multi", false, "also try document combinations (requires --auto)")
	assignCmd.Flags().BoolVar(&assignDryRun, "dry-run", false, "score and report without writing attachments")
	assignCmd.Flags().StringVarP(&assignTransactionID, "transaction", "t", "", "transaction ID for manual assignment")
	assignCmd.Flags().StringSliceVarP(&assignDocumentIDs, "documents", "d", []string{}, "comma-separated document IDs for manual assignment")

	// Output flags
	assignCmd.Flags().StringVarP(&assignOutputFormat, "output-format", "f", "console", "output format: console, json, csv")
	assignCmd.Flags().StringVarP(&assignOutputFile, "output-file", "o", "", "output file path (default: stdout)")

	// Matching configuration flags
	assignCmd.Flags().IntVar(&assignConcurrency, "concurrency", 4, "number of scoring workers")
	assignCmd.Flags().StringVar(&assignPreset, "preset", "default", "matching preset: default, strict, relaxed")
	assignCmd.Flags().Float64Var(&assignMinimumScore, "min-score", 0, "override the minimum match score")
	assignCmd.Flags().Float64Var(&assignAmountWeight, "amount-weight", 0, "override the amount factor weight")
	assignCmd.Flags().Float64Var(&assignDateWeight, "date-weight", 0, "override the date factor weight")
	assignCmd.Flags().Float64Var(&assignVendorWeight, "vendor-weight", 0, "override the vendor factor weight")
	assignCmd.Flags().Float64Var(&assignReferenceWeight, "reference-weight", 0, "override the reference factor weight")

	// Bind flags to viper
	viper.BindPFlag("concurrency", assignCmd.Flags().Lookup("concurrency"))
	viper.BindPFlag("dry-run", assignCmd.Flags().Lookup("dry-run"))
}

func validateAssignFlags(cmd *cobra.Command, args []string) error {
	manual := assignTransactionID != "" || len(assignDocumentIDs) > 0

	if assignAuto && manual {
		return fmt.Errorf("--auto cannot be combined with --transaction/--documents")
	}
	if !assignAuto && !manual {
		return fmt.Errorf("either --auto or --transaction with --documents is required")
	}
	if manual {
		if assignTransactionID == "" {
			return fmt.Errorf("transaction is required for manual assignment")
		}
		if len(assignDocumentIDs) == 0 {
			return fmt.Errorf("at least one document is required for manual assignment")
		}
	}
	if assignMulti && !assignAuto {
		return fmt.Errorf("--multi requires --auto")
	}
	if assignConcurrency <= 0 {
		return fmt.Errorf("concurrency must be positive")
	}
	return nil
}

func runAssign(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	errorHandler := NewCLIErrorHandler()

	matchingConfig, err := config.CreateMatchingConfig(config.MatchingOverrides{
		Preset:          assignPreset,
		MinimumScore:    assignMinimumScore,
		AmountWeight:    assignAmountWeight,
		DateWeight:      assignDateWeight,
		VendorWeight:    assignVendorWeight,
		ReferenceWeight: assignReferenceWeight,
	})
	if err != nil {
		os.Exit(errorHandler.HandleError(err))
	}

	db, err := config.OpenDatabase(viper.GetString("db"), viper.GetBool("verbose"))
	if err != nil {
		os.Exit(errorHandler.HandleError(err))
	}
	defer db.Close()

	service, err := assigner.NewService(db.Transactions(), db.Documents(), db.Attachments(),
		config.CreateServiceConfig(matchingConfig, assignConcurrency, assignDryRun))
	if err != nil {
		os.Exit(errorHandler.HandleError(err))
	}

	if assignAuto {
		return runAutoAssign(ctx, service, errorHandler)
	}
	return runManualAssign(ctx, service, errorHandler)
}

func runAutoAssign(ctx context.Context, service *assigner.Service, errorHandler *CLIErrorHandler) error {
	var summary *assigner.BatchSummary
	var err error
	if assignMulti {
		summary, err = service.AutoAssignMultiple(ctx)
	} else {
		summary, err = service.AutoAssign(ctx)
	}
	if err != nil {
		os.Exit(errorHandler.HandleError(err))
	}

	reportConfig, err := config.CreateReportConfig(assignOutputFormat, 0)
	if err != nil {
		os.Exit(errorHandler.HandleError(err))
	}

	generator, err := reporter.NewReportGenerator(reportConfig)
	if err != nil {
		os.Exit(errorHandler.HandleError(err))
	}

	writer, closeWriter, err := openOutput(assignOutputFile)
	if err != nil {
		os.Exit(errorHandler.HandleError(err))
	}
	defer closeWriter()

	if err := generator.WriteSummary(summary, writer); err != nil {
		os.Exit(errorHandler.HandleError(err))
	}

	if assignDryRun {
		fmt.Fprintln(os.Stderr, "\nDry run: no attachments were written.")
	}
	return nil
}

func runManualAssign(ctx context.Context, service *assigner.Service, errorHandler *CLIErrorHandler) error {
	validation, err := service.AssignDocuments(ctx, assignTransactionID, assignDocumentIDs)
	if err != nil {
		if validation != nil {
			for _, warning := range validation.Warnings {
				fmt.Fprintf(os.Stderr, "Warning: %s\n", warning)
			}
			for _, recommendation := range validation.Recommendations {
				fmt.Fprintf(os.Stderr, "Recommendation: %s\n", recommendation)
			}
		}
		os.Exit(errorHandler.HandleError(err))
	}

	for _, warning := range validation.Warnings {
		fmt.Fprintf(os.Stderr, "Warning: %s\n", warning)
	}

	action := "Attached"
	if assignDryRun {
		action = "Validated (dry run)"
	}
	fmt.Fprintf(os.Stderr, "%s %d document(s) to transaction %s (document total %s, difference %.1f%%)\n",
		action, len(assignDocumentIDs), assignTransactionID,
		validation.TotalDocumentAmount.StringFixed(2), validation.DifferencePercent)
	if len(assignDocumentIDs) > 1 {
		fmt.Fprintf(os.Stderr, "Documents: %s\n", strings.Join(assignDocumentIDs, ", "))
	}
	return nil
}

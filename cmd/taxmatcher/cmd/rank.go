package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"taxfiler-matching-service/cmd/taxmatcher/config"
	"taxfiler-matching-service/internal/assigner"
	"taxfiler-matching-service/internal/reporter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flags for the rank command
var (
	rankTransactionID string
	rankOutputFormat  string
	rankOutputFile    string
	rankMaxShown      int
	rankPreset        string
	rankMinimumScore  float64
	rankIncludeConn   bool
)

// rankCmd represents the rank command
var rankCmd = &cobra.Command{
	Use:   "rank",
	Short: "Rank candidate documents for a transaction",
	Long: `Rank scores every unconnected document against one transaction and
prints the candidates best-first with their per-factor score breakdown.
Nothing is attached; use 'assign' for that.

Examples:
  # Default console output
  taxmatcher rank --transaction TX-2024-0042

  # JSON output into a file, relaxed thresholds
  taxmatcher rank --transaction TX-2024-0042 \
    --output-format json --output-file candidates.json --preset relaxed

  # Also score documents that are already attached elsewhere
  taxmatcher rank --transaction TX-2024-0042 --include-connected`,

	PreRunE: validateRankFlags,
	RunE:    runRank,
}

func init() {
	rootCmd.AddCommand(rankCmd)

	rankCmd.Flags().StringVarP(&rankTransactionID, "transaction", "t", "", "transaction ID to rank candidates for (required)")
	rankCmd.Flags().StringVarP(&rankOutputFormat, "output-format", "f", "console", "output format: console, json, csv")
	rankCmd.Flags().StringVarP(&rankOutputFile, "output-file", "o", "", "output file path (default: stdout)")
	rankCmd.Flags().IntVar(&rankMaxShown, "max-shown", 10, "maximum candidates to display")
	rankCmd.Flags().StringVar(&rankPreset, "preset", "default", "matching preset: default, strict, relaxed")
	rankCmd.Flags().Float64Var(&rankMinimumScore, "min-score", 0, "override the minimum match score")
	rankCmd.Flags().BoolVar(&rankIncludeConn, "include-connected", false, "also score already-connected documents")

	rankCmd.MarkFlagRequired("transaction")
}

func validateRankFlags(cmd *cobra.Command, args []string) error {
	if rankTransactionID == "" {
		return fmt.Errorf("transaction is required")
	}
	if rankMinimumScore < 0 || rankMinimumScore > 1 {
		return fmt.Errorf("min-score must be between 0.0 and 1.0")
	}
	return nil
}

func runRank(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	errorHandler := NewCLIErrorHandler()

	matchingConfig, err := config.CreateMatchingConfig(config.MatchingOverrides{
		Preset:           rankPreset,
		MinimumScore:     rankMinimumScore,
		IncludeConnected: rankIncludeConn,
	})
	if err != nil {
		os.Exit(errorHandler.HandleError(err))
	}

	reportConfig, err := config.CreateReportConfig(rankOutputFormat, rankMaxShown)
	if err != nil {
		os.Exit(errorHandler.HandleError(err))
	}

	db, err := config.OpenDatabase(viper.GetString("db"), viper.GetBool("verbose"))
	if err != nil {
		os.Exit(errorHandler.HandleError(err))
	}
	defer db.Close()

	service, err := assigner.NewService(db.Transactions(), db.Documents(), db.Attachments(),
		config.CreateServiceConfig(matchingConfig, 0, false))
	if err != nil {
		os.Exit(errorHandler.HandleError(err))
	}

	transaction, err := db.Transactions().GetByID(ctx, rankTransactionID)
	if err != nil {
		os.Exit(errorHandler.HandleError(err))
	}

	candidates, err := service.FindMatches(ctx, rankTransactionID)
	if err != nil {
		os.Exit(errorHandler.HandleError(err))
	}

	writer, closeWriter, err := openOutput(rankOutputFile)
	if err != nil {
		os.Exit(errorHandler.HandleError(err))
	}
	defer closeWriter()

	generator, err := reporter.NewReportGenerator(reportConfig)
	if err != nil {
		os.Exit(errorHandler.HandleError(err))
	}

	if err := generator.WriteRanking(transaction, candidates, writer); err != nil {
		os.Exit(errorHandler.HandleError(err))
	}

	return nil
}

// openOutput returns stdout or the requested file together with a
// cleanup function.
func openOutput(path string) (io.Writer, func(), error) {
	if path == "" {
		return os.Stdout, func() {}, nil
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file %s: %w", path, err)
	}
	return file, func() { file.Close() }, nil
}

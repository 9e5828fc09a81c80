package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"taxfiler-matching-service/cmd/taxmatcher/config"
	"taxfiler-matching-service/internal/ingest"
	"taxfiler-matching-service/internal/models"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	ingestTransactionsFile string
	ingestDocumentsFile    string
	ingestStatementFile    string
	ingestBankLayout       string
)

// ingestCmd loads transactions and documents into the database
var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Load transactions and documents into the database",
	Long: `Ingest reads bank transactions and tax documents and stores them
for matching. Transactions and documents come in as JSON arrays;
bank statement exports can additionally be loaded from CSV, with the
column layout detected from the header row or selected via --layout.
Re-ingesting an ID overwrites the stored record.

Examples:
  taxmatcher ingest --transactions tx.json
  taxmatcher ingest --documents docs.json
  taxmatcher ingest --statement export.csv --layout german
  taxmatcher ingest --transactions tx.json --documents docs.json`,

	PreRunE: validateIngestFlags,
	RunE:    runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)

	ingestCmd.Flags().StringVarP(&ingestTransactionsFile, "transactions", "t", "", "path to transactions JSON file")
	ingestCmd.Flags().StringVarP(&ingestDocumentsFile, "documents", "d", "", "path to documents JSON file")
	ingestCmd.Flags().StringVarP(&ingestStatementFile, "statement", "s", "", "path to bank statement CSV export")
	ingestCmd.Flags().StringVar(&ingestBankLayout, "layout", "", "bank statement layout (generic, german); auto-detected when empty")
}

func validateIngestFlags(cmd *cobra.Command, args []string) error {
	if ingestTransactionsFile == "" && ingestDocumentsFile == "" && ingestStatementFile == "" {
		return fmt.Errorf("at least one of --transactions, --documents, or --statement is required")
	}
	if ingestBankLayout != "" {
		if ingestStatementFile == "" {
			return fmt.Errorf("--layout requires --statement")
		}
		if ingest.GetBankLayout(ingestBankLayout) == nil {
			return fmt.Errorf("unknown bank layout: %s", ingestBankLayout)
		}
	}

	for _, path := range []string{ingestTransactionsFile, ingestDocumentsFile, ingestStatementFile} {
		if path == "" {
			continue
		}
		info, err := os.Stat(path)
		if os.IsNotExist(err) {
			return fmt.Errorf("file does not exist: %s", path)
		}
		if err != nil {
			return fmt.Errorf("error accessing %s: %w", path, err)
		}
		if info.IsDir() {
			return fmt.Errorf("expected a file, got a directory: %s", path)
		}
	}

	return nil
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	errorHandler := NewCLIErrorHandler()

	db, err := config.OpenDatabase(viper.GetString("db"), viper.GetBool("verbose"))
	if err != nil {
		os.Exit(errorHandler.HandleError(err))
	}
	defer db.Close()

	if ingestTransactionsFile != "" {
		transactions, err := ingest.LoadTransactionsFile(ingestTransactionsFile)
		if err != nil {
			os.Exit(errorHandler.HandleError(err))
		}
		if err := db.Transactions().SaveAll(ctx, transactions); err != nil {
			os.Exit(errorHandler.HandleError(err))
		}
		fmt.Fprintf(os.Stderr, "Ingested %d transactions from %s\n", len(transactions), ingestTransactionsFile)
	}

	if ingestStatementFile != "" {
		transactions, stats, err := parseStatement(ingestStatementFile)
		if err != nil {
			os.Exit(errorHandler.HandleError(err))
		}
		if err := db.Transactions().SaveAll(ctx, transactions); err != nil {
			os.Exit(errorHandler.HandleError(err))
		}
		fmt.Fprintf(os.Stderr, "Ingested %d transactions from %s", stats.Parsed, ingestStatementFile)
		if stats.Skipped > 0 {
			fmt.Fprintf(os.Stderr, " (%d lines skipped)\n%s\n", stats.Skipped, stats.ErrorSummary())
		} else {
			fmt.Fprintln(os.Stderr)
		}
	}

	if ingestDocumentsFile != "" {
		documents, err := ingest.LoadDocumentsFile(ingestDocumentsFile)
		if err != nil {
			os.Exit(errorHandler.HandleError(err))
		}
		if err := db.Documents().SaveAll(ctx, documents); err != nil {
			os.Exit(errorHandler.HandleError(err))
		}
		fmt.Fprintf(os.Stderr, "Ingested %d documents from %s\n", len(documents), ingestDocumentsFile)
	}

	return nil
}

func parseStatement(path string) ([]*models.FinancialTransaction, *ingest.ParseStats, error) {
	var layout *ingest.BankLayout
	if ingestBankLayout != "" {
		layout = ingest.GetBankLayout(strings.ToLower(ingestBankLayout))
	}
	parser, err := ingest.NewTransactionCSVParser(layout)
	if err != nil {
		return nil, nil, err
	}
	return parser.ParseFile(path)
}

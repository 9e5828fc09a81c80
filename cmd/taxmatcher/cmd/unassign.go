package cmd

import (
	"context"
	"fmt"
	"os"

	"taxfiler-matching-service/cmd/taxmatcher/config"
	"taxfiler-matching-service/internal/assigner"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	unassignTransactionID string
	unassignDocumentID    string
)

// unassignCmd removes an attachment
var unassignCmd = &cobra.Command{
	Use:   "unassign",
	Short: "Remove an attachment between a transaction and a document",
	Long: `Unassign deletes the link between a transaction and a document. The
document stays stored and becomes available for matching again.

Example:
  taxmatcher unassign --transaction TX-2024-0042 --document DOC-17`,

	PreRunE: validateUnassignFlags,
	RunE:    runUnassign,
}

func init() {
	rootCmd.AddCommand(unassignCmd)

	unassignCmd.Flags().StringVarP(&unassignTransactionID, "transaction", "t", "", "transaction ID (required)")
	unassignCmd.Flags().StringVarP(&unassignDocumentID, "document", "d", "", "document ID (required)")

	unassignCmd.MarkFlagRequired("transaction")
	unassignCmd.MarkFlagRequired("document")
}

func validateUnassignFlags(cmd *cobra.Command, args []string) error {
	if unassignTransactionID == "" || unassignDocumentID == "" {
		return fmt.Errorf("both transaction and document are required")
	}
	return nil
}

func runUnassign(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	errorHandler := NewCLIErrorHandler()

	db, err := config.OpenDatabase(viper.GetString("db"), viper.GetBool("verbose"))
	if err != nil {
		os.Exit(errorHandler.HandleError(err))
	}
	defer db.Close()

	service, err := assigner.NewService(db.Transactions(), db.Documents(), db.Attachments(), nil)
	if err != nil {
		os.Exit(errorHandler.HandleError(err))
	}

	if err := service.Unassign(ctx, unassignTransactionID, unassignDocumentID); err != nil {
		os.Exit(errorHandler.HandleError(err))
	}

	fmt.Fprintf(os.Stderr, "Removed attachment of document %s from transaction %s\n",
		unassignDocumentID, unassignTransactionID)
	return nil
}

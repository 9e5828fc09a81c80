package cmd

import (
	"fmt"
	"os"

	"taxfiler-matching-service/pkg/errors"
	"taxfiler-matching-service/pkg/logger"

	"github.com/spf13/viper"
)

// CLIErrorHandler provides user-friendly error handling for CLI operations
type CLIErrorHandler struct {
	logger  logger.Logger
	verbose bool
}

// NewCLIErrorHandler creates a new CLI error handler
func NewCLIErrorHandler() *CLIErrorHandler {
	return &CLIErrorHandler{
		logger:  logger.GetGlobalLogger().WithComponent("cli"),
		verbose: viper.GetBool("verbose"),
	}
}

// HandleError handles errors and provides user-friendly messages
func (h *CLIErrorHandler) HandleError(err error) int {
	if err == nil {
		return 0
	}

	// Log the error
	h.logger.WithError(err).Error("Command failed")

	// Handle MatcherError with detailed information
	if matcherErr, ok := errors.AsMatcherError(err); ok {
		return h.handleMatcherError(matcherErr)
	}

	// Handle other error types
	return h.handleGenericError(err)
}

// handleMatcherError handles MatcherError with detailed context
func (h *CLIErrorHandler) handleMatcherError(err *errors.MatcherError) int {
	// Print the main error message
	fmt.Fprintf(os.Stderr, "Error: %s\n", err.Message)

	// Add context information if available
	if len(err.Context) > 0 {
		fmt.Fprintf(os.Stderr, "\nContext:\n")
		for key, value := range err.Context {
			fmt.Fprintf(os.Stderr, "  %s: %v\n", key, value)
		}
	}

	// Add suggestion if available
	if err.Suggestion != "" {
		fmt.Fprintf(os.Stderr, "\nSuggestion: %s\n", err.Suggestion)
	}

	// Add category-specific help
	if help := h.getCategoryHelp(err.Category); help != "" {
		fmt.Fprintf(os.Stderr, "\n%s\n", help)
	}

	// Show underlying error in verbose mode
	if h.verbose && err.Cause != nil {
		fmt.Fprintf(os.Stderr, "\nUnderlying error: %v\n", err.Cause)
	}

	return err.GetExitCode()
}

// handleGenericError handles non-MatcherError types
func (h *CLIErrorHandler) handleGenericError(err error) int {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)

	if !h.verbose {
		fmt.Fprintf(os.Stderr, "\nFor more details, run with --verbose\n")
	}

	return 1
}

// getCategoryHelp returns category-specific help text
func (h *CLIErrorHandler) getCategoryHelp(category errors.ErrorCategory) string {
	switch category {
	case errors.CategoryValidation:
		return `Validation error help:
• Check that IDs refer to ingested transactions and documents
• Verify amounts are valid decimal numbers
• Run 'taxmatcher ingest' first if the database is empty`

	case errors.CategoryConfiguration:
		return `Configuration error help:
• Weights must be non-negative and sum to a value near 1.0
• Tolerances must increase from exact to medium
• Omit the flag to fall back to the default value`

	case errors.CategoryAttachment:
		return `Attachment error help:
• A document can be attached to a transaction only once
• Use 'taxmatcher unassign' to remove an existing attachment first`

	case errors.CategoryStorage:
		return `Storage error help:
• Check the --db path and its file permissions
• Ensure no other process holds the database open for writing`

	default:
		return ""
	}
}

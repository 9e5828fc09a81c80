// Package reporter renders match rankings and batch assignment results
// for terminal display and programmatic consumption.
//
// Supported output formats:
//   - Console: human-readable tabular output
//   - JSON: structured data for downstream tooling
//   - CSV: flat rows for spreadsheet review
package reporter

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"taxfiler-matching-service/internal/assigner"
	"taxfiler-matching-service/internal/matcher"
	"taxfiler-matching-service/internal/models"
	"taxfiler-matching-service/pkg/errors"
)

// OutputFormat represents the supported report output formats.
type OutputFormat string

const (
	FormatConsole OutputFormat = "console"
	FormatJSON    OutputFormat = "json"
	FormatCSV     OutputFormat = "csv"
)

// IsValid checks if the output format is supported
func (f OutputFormat) IsValid() bool {
	switch f {
	case FormatConsole, FormatJSON, FormatCSV:
		return true
	default:
		return false
	}
}

// ReportConfig holds configuration options for report generation
type ReportConfig struct {
	Format OutputFormat `json:"format"`

	// Detail level options
	IncludeBreakdown   bool `json:"include_breakdown"`
	IncludePerOutcome  bool `json:"include_per_outcome"`
	IncludeIssues      bool `json:"include_issues"`
	MaxCandidatesShown int  `json:"max_candidates_shown"`

	// CSV options
	CSVDelimiter rune `json:"csv_delimiter"`
	CSVHeaders   bool `json:"csv_headers"`
}

// DefaultReportConfig returns a default report configuration
func DefaultReportConfig() *ReportConfig {
	return &ReportConfig{
		Format:             FormatConsole,
		IncludeBreakdown:   true,
		IncludePerOutcome:  true,
		IncludeIssues:      true,
		MaxCandidatesShown: 10,
		CSVDelimiter:       ',',
		CSVHeaders:         true,
	}
}

// Validate validates the report configuration
func (c *ReportConfig) Validate() error {
	if !c.Format.IsValid() {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "report.format",
			[]string{fmt.Sprintf("unsupported output format: %s", c.Format)})
	}
	if c.MaxCandidatesShown < 0 {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "report.max_candidates_shown",
			[]string{"max candidates shown must not be negative"})
	}
	return nil
}

// ReportGenerator renders rankings and batch summaries
type ReportGenerator struct {
	config *ReportConfig
}

// NewReportGenerator creates a report generator with the given
// configuration. A nil configuration falls back to the defaults.
func NewReportGenerator(config *ReportConfig) (*ReportGenerator, error) {
	if config == nil {
		config = DefaultReportConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &ReportGenerator{config: config}, nil
}

// RankingReport is the serializable form of one transaction's ranked
// candidates.
type RankingReport struct {
	Transaction *models.FinancialTransaction `json:"transaction"`
	Candidates  []*matcher.MatchCandidate    `json:"candidates"`
	GeneratedAt time.Time                    `json:"generated_at"`
}

// WriteRanking renders the ranked candidates for one transaction.
func (rg *ReportGenerator) WriteRanking(transaction *models.FinancialTransaction, candidates []*matcher.MatchCandidate, writer io.Writer) error {
	if transaction == nil {
		return errors.ValidationError(errors.CodeMissingField, "transaction", nil, nil)
	}
	if writer == nil {
		return errors.ValidationError(errors.CodeMissingField, "writer", nil, nil)
	}

	shown := candidates
	if limit := rg.config.MaxCandidatesShown; limit > 0 && len(shown) > limit {
		shown = shown[:limit]
	}

	switch rg.config.Format {
	case FormatJSON:
		return rg.writeJSON(writer, &RankingReport{
			Transaction: transaction,
			Candidates:  shown,
			GeneratedAt: time.Now().UTC(),
		})
	case FormatCSV:
		return rg.writeRankingCSV(writer, shown)
	default:
		return rg.writeRankingConsole(writer, transaction, shown, len(candidates))
	}
}

// WriteSummary renders a batch assignment summary.
func (rg *ReportGenerator) WriteSummary(summary *assigner.BatchSummary, writer io.Writer) error {
	if summary == nil {
		return errors.ValidationError(errors.CodeMissingField, "summary", nil, nil)
	}
	if writer == nil {
		return errors.ValidationError(errors.CodeMissingField, "writer", nil, nil)
	}

	switch rg.config.Format {
	case FormatJSON:
		return rg.writeJSON(writer, summary)
	case FormatCSV:
		return rg.writeSummaryCSV(writer, summary)
	default:
		return rg.writeSummaryConsole(writer, summary)
	}
}

func (rg *ReportGenerator) writeJSON(writer io.Writer, payload interface{}) error {
	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(payload); err != nil {
		return errors.InternalError("JSON report generation", err)
	}
	return nil
}

func (rg *ReportGenerator) writeRankingConsole(writer io.Writer, transaction *models.FinancialTransaction, candidates []*matcher.MatchCandidate, total int) error {
	fmt.Fprintf(writer, "\n=== Match Candidates ===\n")
	fmt.Fprintf(writer, "Transaction: %s  %s  %s\n",
		transaction.ID,
		transaction.GrossAmount.StringFixed(2),
		transaction.ValueDate.Format("2006-01-02"))
	if transaction.CounterpartyName != "" {
		fmt.Fprintf(writer, "Counterparty: %s\n", transaction.CounterpartyName)
	}
	fmt.Fprintln(writer)

	if len(candidates) == 0 {
		fmt.Fprintln(writer, "No documents reached the minimum match score.")
		return nil
	}

	if rg.config.IncludeBreakdown {
		fmt.Fprintf(writer, "%-4s %-20s %-16s %-12s %8s %8s %8s %8s %9s\n",
			"#", "Document", "Invoice", "Vendor", "Amount", "Date", "Vendor", "Ref", "Composite")
		fmt.Fprintln(writer, strings.Repeat("-", 100))
		for i, candidate := range candidates {
			b := candidate.Breakdown
			fmt.Fprintf(writer, "%-4d %-20s %-16s %-12s %8.3f %8.3f %8.3f %8.3f %9.3f\n",
				i+1,
				truncate(candidate.Document.ID, 20),
				truncate(candidate.Document.InvoiceNumber, 16),
				truncate(candidate.Document.VendorName, 12),
				b.AmountScore, b.DateScore, b.VendorScore, b.ReferenceScore, b.Composite)
		}
	} else {
		for i, candidate := range candidates {
			fmt.Fprintf(writer, "%-4d %-20s %9.3f\n",
				i+1, truncate(candidate.Document.ID, 20), candidate.Breakdown.Composite)
		}
	}

	if total > len(candidates) {
		fmt.Fprintf(writer, "\n... and %d more candidates\n", total-len(candidates))
	}
	return nil
}

func (rg *ReportGenerator) writeRankingCSV(writer io.Writer, candidates []*matcher.MatchCandidate) error {
	csvWriter := csv.NewWriter(writer)
	csvWriter.Comma = rg.config.CSVDelimiter
	defer csvWriter.Flush()

	if rg.config.CSVHeaders {
		header := []string{"rank", "document_id", "invoice_number", "vendor_name",
			"amount_score", "date_score", "vendor_score", "reference_score", "composite"}
		if err := csvWriter.Write(header); err != nil {
			return errors.InternalError("CSV report generation", err)
		}
	}

	for i, candidate := range candidates {
		b := candidate.Breakdown
		record := []string{
			strconv.Itoa(i + 1),
			candidate.Document.ID,
			candidate.Document.InvoiceNumber,
			candidate.Document.VendorName,
			formatScore(b.AmountScore),
			formatScore(b.DateScore),
			formatScore(b.VendorScore),
			formatScore(b.ReferenceScore),
			formatScore(b.Composite),
		}
		if err := csvWriter.Write(record); err != nil {
			return errors.InternalError("CSV report generation", err)
		}
	}

	csvWriter.Flush()
	if err := csvWriter.Error(); err != nil {
		return errors.InternalError("CSV report generation", err)
	}
	return nil
}

func (rg *ReportGenerator) writeSummaryConsole(writer io.Writer, summary *assigner.BatchSummary) error {
	fmt.Fprintf(writer, "\n=== Automatic Assignment Summary ===\n")
	fmt.Fprintf(writer, "Processed:     %d\n", summary.Processed)
	fmt.Fprintf(writer, "Assigned:      %d (%.1f%%)\n", summary.Assigned, percentage(summary.Assigned, summary.Processed))
	if summary.Combinations > 0 {
		fmt.Fprintf(writer, "Combinations:  %d\n", summary.Combinations)
	}
	fmt.Fprintf(writer, "No match:      %d\n", summary.NoMatch)
	fmt.Fprintf(writer, "Skipped:       %d\n", summary.Skipped)
	fmt.Fprintf(writer, "Failed:        %d\n", summary.Failed)
	fmt.Fprintf(writer, "Duration:      %s\n", summary.Duration.Round(time.Millisecond))

	if rg.config.IncludePerOutcome && len(summary.Results) > 0 {
		fmt.Fprintf(writer, "\n%-20s %-22s %9s  %s\n", "Transaction", "Outcome", "Score", "Documents")
		fmt.Fprintln(writer, strings.Repeat("-", 90))
		for _, result := range summary.Results {
			fmt.Fprintf(writer, "%-20s %-22s %9.3f  %s\n",
				truncate(result.TransactionID, 20),
				string(result.Outcome),
				result.Score,
				strings.Join(result.DocumentIDs, ", "))
		}
	}

	if rg.config.IncludeIssues && len(summary.Issues) > 0 {
		fmt.Fprintf(writer, "\nIssues:\n")
		for _, issue := range summary.Issues {
			fmt.Fprintf(writer, "  - %s\n", issue)
		}
	}

	return nil
}

func (rg *ReportGenerator) writeSummaryCSV(writer io.Writer, summary *assigner.BatchSummary) error {
	csvWriter := csv.NewWriter(writer)
	csvWriter.Comma = rg.config.CSVDelimiter
	defer csvWriter.Flush()

	if rg.config.CSVHeaders {
		if err := csvWriter.Write([]string{"transaction_id", "outcome", "score", "document_ids", "reason"}); err != nil {
			return errors.InternalError("CSV report generation", err)
		}
	}

	for _, result := range summary.Results {
		record := []string{
			result.TransactionID,
			string(result.Outcome),
			formatScore(result.Score),
			strings.Join(result.DocumentIDs, ";"),
			result.Reason,
		}
		if err := csvWriter.Write(record); err != nil {
			return errors.InternalError("CSV report generation", err)
		}
	}

	csvWriter.Flush()
	if err := csvWriter.Error(); err != nil {
		return errors.InternalError("CSV report generation", err)
	}
	return nil
}

// GetConfiguration returns a copy of the current configuration.
func (rg *ReportGenerator) GetConfiguration() *ReportConfig {
	config := *rg.config
	return &config
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}

func formatScore(score float64) string {
	return strconv.FormatFloat(score, 'f', 3, 64)
}

func percentage(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) * 100 / float64(total)
}

package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"taxfiler-matching-service/internal/models"
	"taxfiler-matching-service/pkg/errors"
	"taxfiler-matching-service/pkg/logger"
)

// Standard column names the transaction parser understands. A bank
// layout maps each one to the header used in that bank's export.
const (
	ColumnID             = "id"
	ColumnAmount         = "amount"
	ColumnValueDate      = "value_date"
	ColumnCounterparty   = "counterparty"
	ColumnSenderReceiver = "sender_receiver"
	ColumnNote           = "note"
)

// BankLayout describes how one bank's CSV export maps onto the
// standard transaction columns.
type BankLayout struct {
	Name      string
	Delimiter rune

	// Columns maps standard column names to the header names in the
	// export. ID, amount, and value date are required.
	Columns map[string]string
}

// Validate checks that the layout covers the required columns.
func (bl *BankLayout) Validate() error {
	var violations []string
	if bl.Name == "" {
		violations = append(violations, "layout name must not be empty")
	}
	for _, required := range []string{ColumnID, ColumnAmount, ColumnValueDate} {
		if bl.Columns[required] == "" {
			violations = append(violations, fmt.Sprintf("column mapping for '%s' is required", required))
		}
	}
	if len(violations) > 0 {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "csv layout", violations)
	}
	return nil
}

// DefaultBankLayout matches the generic comma-separated export used in
// the JSON exchange format.
func DefaultBankLayout() *BankLayout {
	return &BankLayout{
		Name:      "generic",
		Delimiter: ',',
		Columns: map[string]string{
			ColumnID:             "id",
			ColumnAmount:         "amount",
			ColumnValueDate:      "value_date",
			ColumnCounterparty:   "counterparty",
			ColumnSenderReceiver: "sender_receiver",
			ColumnNote:           "note",
		},
	}
}

// GermanBankLayout matches the semicolon-delimited exports common for
// German bank statements, with comma decimal separators.
func GermanBankLayout() *BankLayout {
	return &BankLayout{
		Name:      "german",
		Delimiter: ';',
		Columns: map[string]string{
			ColumnID:             "Referenz",
			ColumnAmount:         "Betrag",
			ColumnValueDate:      "Wertstellung",
			ColumnCounterparty:   "Beguenstigter/Zahlungspflichtiger",
			ColumnSenderReceiver: "Auftraggeber/Empfaenger",
			ColumnNote:           "Verwendungszweck",
		},
	}
}

// knownLayouts are tried in order during auto-detection.
var knownLayouts = []*BankLayout{
	DefaultBankLayout(),
	GermanBankLayout(),
}

// GetBankLayout returns the named layout, or nil if unknown.
func GetBankLayout(name string) *BankLayout {
	for _, layout := range knownLayouts {
		if strings.EqualFold(layout.Name, name) {
			return layout
		}
	}
	return nil
}

// DetectBankLayout picks the known layout whose required headers all
// appear in the given header row.
func DetectBankLayout(headers []string) *BankLayout {
	present := make(map[string]bool, len(headers))
	for _, h := range headers {
		present[strings.ToLower(strings.TrimSpace(h))] = true
	}

	for _, layout := range knownLayouts {
		matched := true
		for _, required := range []string{ColumnID, ColumnAmount, ColumnValueDate} {
			if !present[strings.ToLower(layout.Columns[required])] {
				matched = false
				break
			}
		}
		if matched {
			return layout
		}
	}
	return nil
}

// TransactionCSVParser reads bank statement exports into transactions.
type TransactionCSVParser struct {
	layout *BankLayout
	logger logger.Logger
}

// NewTransactionCSVParser creates a parser for the given layout. A nil
// layout enables auto-detection from the header row.
func NewTransactionCSVParser(layout *BankLayout) (*TransactionCSVParser, error) {
	if layout != nil {
		if err := layout.Validate(); err != nil {
			return nil, err
		}
	}
	return &TransactionCSVParser{
		layout: layout,
		logger: logger.GetGlobalLogger().WithComponent("ingest"),
	}, nil
}

// ParseFile reads transactions from a CSV file.
func (p *TransactionCSVParser) ParseFile(path string) ([]*models.FinancialTransaction, *ParseStats, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.StorageError(errors.CodeStorageUnavailable, "open statement file", err).
			WithContext("path", path)
	}
	defer file.Close()

	return p.Parse(file)
}

// Parse reads transactions from CSV content. The first row must be a
// header row; lines that fail to parse are recorded on the stats and
// skipped.
func (p *TransactionCSVParser) Parse(r io.Reader) ([]*models.FinancialTransaction, *ParseStats, error) {
	layout := p.layout

	// Delimiter sniffing needs the header line before the csv reader is
	// configured, so read everything up front. Statement exports are
	// small files.
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, errors.StorageError(errors.CodeStorageUnavailable, "read statement", err)
	}

	if layout == nil {
		layout = p.detect(string(data))
		if layout == nil {
			return nil, nil, errors.ValidationError(errors.CodeInvalidData, "csv header", firstLine(string(data)), nil).
				WithSuggestion("specify the bank layout explicitly if the export headers are custom")
		}
		p.logger.WithField("layout", layout.Name).Debug("Detected bank layout")
	}

	reader := csv.NewReader(strings.NewReader(string(data)))
	reader.Comma = layout.Delimiter
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, nil, errors.ValidationError(errors.CodeInvalidData, "csv header", nil, err)
	}

	index, err := resolveColumns(layout, header)
	if err != nil {
		return nil, nil, err
	}

	stats := &ParseStats{}
	var transactions []*models.FinancialTransaction

	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			stats.TotalLines++
			stats.recordError(&ParseError{Line: line, Message: "malformed CSV row", Err: err})
			continue
		}
		if isEmptyRow(record) {
			continue
		}
		stats.TotalLines++

		transaction, perr := p.parseRecord(record, index, line)
		if perr != nil {
			stats.recordError(perr)
			continue
		}
		transactions = append(transactions, transaction)
		stats.Parsed++
	}

	p.logger.WithFields(logger.Fields{
		"layout":  layout.Name,
		"parsed":  stats.Parsed,
		"skipped": stats.Skipped,
	}).Info("Statement parsed")

	return transactions, stats, nil
}

func (p *TransactionCSVParser) detect(data string) *BankLayout {
	header := firstLine(data)
	for _, delimiter := range []rune{',', ';', '\t'} {
		fields := strings.Split(header, string(delimiter))
		if layout := DetectBankLayout(fields); layout != nil && layout.Delimiter == delimiter {
			return layout
		}
	}
	return nil
}

// columnIndex maps standard column names to positions in the header.
type columnIndex map[string]int

func resolveColumns(layout *BankLayout, header []string) (columnIndex, error) {
	position := make(map[string]int, len(header))
	for i, h := range header {
		position[strings.ToLower(strings.TrimSpace(h))] = i
	}

	index := make(columnIndex)
	var missing []string
	for standard, name := range layout.Columns {
		i, ok := position[strings.ToLower(name)]
		if !ok {
			if standard == ColumnID || standard == ColumnAmount || standard == ColumnValueDate {
				missing = append(missing, name)
			}
			continue
		}
		index[standard] = i
	}
	if len(missing) > 0 {
		return nil, errors.ValidationError(errors.CodeInvalidData, "csv header", strings.Join(missing, ", "), nil).
			WithSuggestion("check that the file matches the selected bank layout")
	}
	return index, nil
}

func (p *TransactionCSVParser) parseRecord(record []string, index columnIndex, line int) (*models.FinancialTransaction, *ParseError) {
	get := func(standard string) string {
		i, ok := index[standard]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	id := get(ColumnID)
	if id == "" {
		return nil, &ParseError{Line: line, Field: ColumnID, Message: "transaction ID is empty"}
	}

	rawAmount := get(ColumnAmount)
	amount, err := models.ParseDecimalFromString(rawAmount)
	if err != nil {
		return nil, &ParseError{Line: line, Field: ColumnAmount, Value: rawAmount, Message: "invalid amount", Err: err}
	}

	rawDate := get(ColumnValueDate)
	valueDate, err := models.ParseTimeWithFormats(rawDate)
	if err != nil {
		return nil, &ParseError{Line: line, Field: ColumnValueDate, Value: rawDate, Message: "invalid value date", Err: err}
	}

	transaction := &models.FinancialTransaction{
		ID:               id,
		GrossAmount:      amount,
		ValueDate:        valueDate,
		CounterpartyName: get(ColumnCounterparty),
		SenderReceiver:   get(ColumnSenderReceiver),
		Note:             get(ColumnNote),
		// Statement imports start unclassified; relevance flags are
		// set by the bookkeeping workflow, not the bank export.
	}

	if err := transaction.Validate(); err != nil {
		return nil, &ParseError{Line: line, Field: ColumnID, Value: id, Message: "invalid transaction", Err: err}
	}
	return transaction, nil
}

func firstLine(data string) string {
	if i := strings.IndexAny(data, "\r\n"); i >= 0 {
		return data[:i]
	}
	return data
}

func isEmptyRow(record []string) bool {
	for _, field := range record {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}

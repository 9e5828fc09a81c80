package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ActorAutomatic is recorded as the attaching actor when the matching
// engine creates an attachment without human involvement.
const ActorAutomatic = "automatic"

// FinancialTransaction represents a single bank account transaction as
// imported from a bank statement. The matching engine treats it as
// read-only; only attachment links are created or removed for it.
type FinancialTransaction struct {
	ID               string          `json:"id"`
	GrossAmount      decimal.Decimal `json:"grossAmount"`
	ValueDate        time.Time       `json:"valueDate"`
	CounterpartyName string          `json:"counterpartyName"`
	SenderReceiver   string          `json:"senderReceiver"`
	Note             string          `json:"note"`
	TaxRelevant      bool            `json:"taxRelevant"`
	VatRelevant      bool            `json:"vatRelevant"`
}

// NewFinancialTransaction creates a new FinancialTransaction instance
func NewFinancialTransaction(id string, amount decimal.Decimal, valueDate time.Time, counterparty string) *FinancialTransaction {
	return &FinancialTransaction{
		ID:               id,
		GrossAmount:      amount,
		ValueDate:        valueDate,
		CounterpartyName: counterparty,
	}
}

// Validate performs basic validation on the FinancialTransaction
func (t *FinancialTransaction) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return fmt.Errorf("transaction ID cannot be empty")
	}

	if t.ValueDate.IsZero() {
		return fmt.Errorf("transaction value date cannot be zero")
	}

	return nil
}

// AbsoluteAmount returns the magnitude of the gross amount. Matching is
// direction-independent, so scoring always works on magnitudes.
func (t *FinancialTransaction) AbsoluteAmount() decimal.Decimal {
	return t.GrossAmount.Abs()
}

// NameFields returns all non-empty counterparty name fields, in the
// order they should be tried by vendor matching.
func (t *FinancialTransaction) NameFields() []string {
	var fields []string
	if strings.TrimSpace(t.CounterpartyName) != "" {
		fields = append(fields, t.CounterpartyName)
	}
	if strings.TrimSpace(t.SenderReceiver) != "" {
		fields = append(fields, t.SenderReceiver)
	}
	return fields
}

// String returns a string representation of the FinancialTransaction
func (t *FinancialTransaction) String() string {
	return fmt.Sprintf("FinancialTransaction{ID: %s, Amount: %s, Date: %s, Counterparty: %s}",
		t.ID, t.GrossAmount.String(), t.ValueDate.Format("2006-01-02"), t.CounterpartyName)
}

// MarshalJSON implements custom JSON marshaling for FinancialTransaction
func (t *FinancialTransaction) MarshalJSON() ([]byte, error) {
	type Alias FinancialTransaction
	return json.Marshal(&struct {
		GrossAmount string `json:"grossAmount"`
		ValueDate   string `json:"valueDate"`
		*Alias
	}{
		GrossAmount: t.GrossAmount.String(),
		ValueDate:   t.ValueDate.Format(time.RFC3339),
		Alias:       (*Alias)(t),
	})
}

// UnmarshalJSON implements custom JSON unmarshaling for FinancialTransaction
func (t *FinancialTransaction) UnmarshalJSON(data []byte) error {
	type Alias FinancialTransaction
	aux := &struct {
		GrossAmount string `json:"grossAmount"`
		ValueDate   string `json:"valueDate"`
		*Alias
	}{
		Alias: (*Alias)(t),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	var err error
	t.GrossAmount, err = decimal.NewFromString(aux.GrossAmount)
	if err != nil {
		return fmt.Errorf("invalid gross amount format: %w", err)
	}

	t.ValueDate, err = ParseTimeWithFormats(aux.ValueDate)
	if err != nil {
		return fmt.Errorf("invalid value date format: %w", err)
	}

	return nil
}

// TaxDocument represents an invoice or receipt with fields already
// extracted by the ingestion pipeline. Monetary fields equal to zero are
// treated as absent throughout matching, since zero is not a meaningful
// invoice amount.
type TaxDocument struct {
	ID            string          `json:"id"`
	Total         decimal.Decimal `json:"total"`
	SubTotal      decimal.Decimal `json:"subTotal"`
	TaxAmount     decimal.Decimal `json:"taxAmount"`
	TaxRate       decimal.Decimal `json:"taxRate"`
	InvoiceDate   time.Time       `json:"invoiceDate"`
	FolderDate    time.Time       `json:"folderDate"`
	InvoiceNumber string          `json:"invoiceNumber"`
	VendorName    string          `json:"vendorName"`
	SkontoPercent decimal.Decimal `json:"skontoPercent"`
	Unconnected   bool            `json:"unconnected"`
}

// NewTaxDocument creates a new TaxDocument instance
func NewTaxDocument(id string, total decimal.Decimal, invoiceNumber, vendorName string) *TaxDocument {
	return &TaxDocument{
		ID:            id,
		Total:         total,
		InvoiceNumber: invoiceNumber,
		VendorName:    vendorName,
		Unconnected:   true,
	}
}

// Validate performs basic validation on the TaxDocument
func (d *TaxDocument) Validate() error {
	if strings.TrimSpace(d.ID) == "" {
		return fmt.Errorf("document ID cannot be empty")
	}

	return nil
}

// HasInvoiceDate reports whether a usable invoice date was extracted.
func (d *TaxDocument) HasInvoiceDate() bool {
	return !d.InvoiceDate.IsZero()
}

// HasFolderDate reports whether a folder-derived fallback date is available.
func (d *TaxDocument) HasFolderDate() bool {
	return !d.FolderDate.IsZero()
}

// String returns a string representation of the TaxDocument
func (d *TaxDocument) String() string {
	return fmt.Sprintf("TaxDocument{ID: %s, Total: %s, Invoice: %s, Vendor: %s}",
		d.ID, d.Total.String(), d.InvoiceNumber, d.VendorName)
}

// MarshalJSON implements custom JSON marshaling for TaxDocument
func (d *TaxDocument) MarshalJSON() ([]byte, error) {
	type Alias TaxDocument
	aux := &struct {
		Total         string `json:"total"`
		SubTotal      string `json:"subTotal"`
		TaxAmount     string `json:"taxAmount"`
		TaxRate       string `json:"taxRate"`
		SkontoPercent string `json:"skontoPercent"`
		InvoiceDate   string `json:"invoiceDate,omitempty"`
		FolderDate    string `json:"folderDate,omitempty"`
		*Alias
	}{
		Total:         d.Total.String(),
		SubTotal:      d.SubTotal.String(),
		TaxAmount:     d.TaxAmount.String(),
		TaxRate:       d.TaxRate.String(),
		SkontoPercent: d.SkontoPercent.String(),
		Alias:         (*Alias)(d),
	}

	if d.HasInvoiceDate() {
		aux.InvoiceDate = d.InvoiceDate.Format("2006-01-02")
	}
	if d.HasFolderDate() {
		aux.FolderDate = d.FolderDate.Format("2006-01-02")
	}

	return json.Marshal(aux)
}

// UnmarshalJSON implements custom JSON unmarshaling for TaxDocument
func (d *TaxDocument) UnmarshalJSON(data []byte) error {
	type Alias TaxDocument
	aux := &struct {
		Total         string `json:"total"`
		SubTotal      string `json:"subTotal"`
		TaxAmount     string `json:"taxAmount"`
		TaxRate       string `json:"taxRate"`
		SkontoPercent string `json:"skontoPercent"`
		InvoiceDate   string `json:"invoiceDate"`
		FolderDate    string `json:"folderDate"`
		*Alias
	}{
		Alias: (*Alias)(d),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	fields := []struct {
		name   string
		raw    string
		target *decimal.Decimal
	}{
		{"total", aux.Total, &d.Total},
		{"subTotal", aux.SubTotal, &d.SubTotal},
		{"taxAmount", aux.TaxAmount, &d.TaxAmount},
		{"taxRate", aux.TaxRate, &d.TaxRate},
		{"skontoPercent", aux.SkontoPercent, &d.SkontoPercent},
	}

	for _, f := range fields {
		if strings.TrimSpace(f.raw) == "" {
			*f.target = decimal.Zero
			continue
		}
		v, err := decimal.NewFromString(f.raw)
		if err != nil {
			return fmt.Errorf("invalid %s format: %w", f.name, err)
		}
		*f.target = v
	}

	if aux.InvoiceDate != "" {
		t, err := ParseTimeWithFormats(aux.InvoiceDate)
		if err != nil {
			return fmt.Errorf("invalid invoice date format: %w", err)
		}
		d.InvoiceDate = t
	}

	if aux.FolderDate != "" {
		t, err := ParseTimeWithFormats(aux.FolderDate)
		if err != nil {
			return fmt.Errorf("invalid folder date format: %w", err)
		}
		d.FolderDate = t
	}

	return nil
}

// Attachment links one transaction to one document. A given
// (transaction, document) pair is attached at most once; the store
// enforces the invariant and reports violations as duplicates.
type Attachment struct {
	ID            string    `json:"id"`
	TransactionID string    `json:"transactionId"`
	DocumentID    string    `json:"documentId"`
	AttachedAt    time.Time `json:"attachedAt"`
	AttachedBy    string    `json:"attachedBy"`
	Automatic     bool      `json:"automatic"`
}

// Validate performs basic validation on the Attachment
func (a *Attachment) Validate() error {
	if strings.TrimSpace(a.TransactionID) == "" {
		return fmt.Errorf("attachment transaction ID cannot be empty")
	}

	if strings.TrimSpace(a.DocumentID) == "" {
		return fmt.Errorf("attachment document ID cannot be empty")
	}

	if strings.TrimSpace(a.AttachedBy) == "" {
		return fmt.Errorf("attachment actor cannot be empty")
	}

	return nil
}

// String returns a string representation of the Attachment
func (a *Attachment) String() string {
	return fmt.Sprintf("Attachment{Transaction: %s, Document: %s, By: %s, Automatic: %t}",
		a.TransactionID, a.DocumentID, a.AttachedBy, a.Automatic)
}

// Utility functions for type conversion and validation

// ParseDecimalFromString parses a decimal value from string with
// validation. It strips currency markers and handles both the
// international ("1,234.56") and German ("1.234,56") number formats.
func ParseDecimalFromString(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("amount string cannot be empty")
	}

	s = strings.ReplaceAll(s, "€", "")
	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, "EUR", "")
	s = strings.TrimSpace(s)

	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")
	if lastComma > lastDot {
		// German format: dots are thousand separators, the comma is
		// the decimal mark.
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	} else {
		s = strings.ReplaceAll(s, ",", "")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid decimal format '%s': %w", s, err)
	}

	return d, nil
}

// ParseTimeWithFormats attempts to parse time from string using multiple common formats
func ParseTimeWithFormats(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("time string cannot be empty")
	}

	formats := []string{
		time.RFC3339,
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"2006-01-02",
		"02.01.2006", // German statement exports
		"01/02/2006",
		"2006/01/02",
	}

	var lastErr error
	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		} else {
			lastErr = err
		}
	}

	return time.Time{}, fmt.Errorf("unable to parse time '%s': %w", s, lastErr)
}

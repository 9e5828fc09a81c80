package matcher

import (
	"time"

	"taxfiler-matching-service/internal/models"
)

// ResolveDocumentDate picks the date used for matching: the extracted
// invoice date when present, otherwise the folder-derived fallback
// date. The second return value reports whether any date is available.
func ResolveDocumentDate(document *models.TaxDocument) (time.Time, bool) {
	if document == nil {
		return time.Time{}, false
	}

	if document.HasInvoiceDate() {
		return document.InvoiceDate, true
	}

	if document.HasFolderDate() {
		return document.FolderDate, true
	}

	return time.Time{}, false
}

// CalculateDateScore scores the proximity of a document's date to the
// transaction's value date, in [0.0, 1.0]. Distance is measured in
// whole days and is direction-independent; the thresholds follow the
// same ladder as amount scoring. A document without any usable date
// scores 0.0.
func CalculateDateScore(transaction *models.FinancialTransaction, document *models.TaxDocument, config *MatchingConfig) float64 {
	if transaction == nil || document == nil || config == nil {
		return 0.0
	}

	documentDate, ok := ResolveDocumentDate(document)
	if !ok {
		return 0.0
	}

	days := dayDistance(transaction.ValueDate, documentDate)

	return ladderScore(float64(days),
		float64(config.DateExactDays),
		float64(config.DateHighDays),
		float64(config.DateMediumDays))
}

// dayDistance returns the absolute distance between two timestamps in
// whole calendar days, ignoring the time of day.
func dayDistance(a, b time.Time) int {
	ad := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	bd := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)

	diff := ad.Sub(bd)
	if diff < 0 {
		diff = -diff
	}

	return int(diff / (24 * time.Hour))
}

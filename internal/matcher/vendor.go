package matcher

import (
	"strings"

	"taxfiler-matching-service/internal/models"
)

// Containment scores are asymmetric: a transaction field that contains
// the full vendor name is stronger evidence than a long vendor name
// that merely contains the transaction field.
const (
	vendorExactScore          = 1.0
	vendorFieldContainsVendor = 0.8
	vendorContainsField       = 0.7
)

// CalculateVendorScore scores how well the document's vendor name
// matches the transaction's counterparty, in [0.0, 1.0]. Every
// non-empty transaction name field (counterparty, alternate
// sender/receiver) is compared against the vendor name and the maximum
// score wins. Comparison is case- and diacritic-insensitive; below the
// containment rules, normalized edit-distance similarity applies when
// it reaches the configured fuzzy threshold.
func CalculateVendorScore(transaction *models.FinancialTransaction, document *models.TaxDocument, config *MatchingConfig) float64 {
	if transaction == nil || document == nil || config == nil {
		return 0.0
	}

	vendor := NormalizeString(document.VendorName)
	if vendor == "" {
		return 0.0
	}

	best := 0.0
	for _, field := range transaction.NameFields() {
		score := scoreVendorField(NormalizeString(field), vendor, config.VendorFuzzyThreshold)
		if score > best {
			best = score
		}
	}

	return best
}

func scoreVendorField(field, vendor string, fuzzyThreshold float64) float64 {
	if field == "" {
		return 0.0
	}

	if field == vendor {
		return vendorExactScore
	}

	if strings.Contains(field, vendor) {
		return vendorFieldContainsVendor
	}

	if strings.Contains(vendor, field) {
		return vendorContainsField
	}

	similarity := StringSimilarity(field, vendor)
	if similarity >= fuzzyThreshold {
		return similarity
	}

	return 0.0
}

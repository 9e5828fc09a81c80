package matcher

import (
	"fmt"

	"taxfiler-matching-service/internal/models"

	"github.com/shopspring/decimal"
)

// Multi-document amount validation policy: differences up to the
// warning threshold are silent, up to the invalid threshold they warn,
// beyond that the document set is rejected.
const (
	amountWarningThresholdPercent = 5.0
	amountInvalidThresholdPercent = 10.0
)

// BestDocumentAmount selects the canonical amount of a document, trying
// fields in priority order: Total, then SubTotal plus TaxAmount when
// both are present, then SubTotal, then TaxAmount. Fields equal to zero
// are treated as absent. The second return value reports whether any
// usable amount was found.
func BestDocumentAmount(document *models.TaxDocument) (decimal.Decimal, bool) {
	if document == nil {
		return decimal.Zero, false
	}

	if !document.Total.IsZero() {
		return document.Total, true
	}

	if !document.SubTotal.IsZero() && !document.TaxAmount.IsZero() {
		return document.SubTotal.Add(document.TaxAmount), true
	}

	if !document.SubTotal.IsZero() {
		return document.SubTotal, true
	}

	if !document.TaxAmount.IsZero() {
		return document.TaxAmount, true
	}

	return decimal.Zero, false
}

// EffectiveDocumentAmount resolves the document amount and applies its
// Skonto discount when one is present. A discount that would produce a
// negative or larger-than-original amount is discarded and the
// undiscounted amount kept; malformed percentages must not distort
// scoring.
func EffectiveDocumentAmount(document *models.TaxDocument) (decimal.Decimal, bool) {
	amount, ok := BestDocumentAmount(document)
	if !ok {
		return decimal.Zero, false
	}

	if !HasValidSkonto(document.SkontoPercent) {
		return amount, true
	}

	discounted := DiscountedAmount(amount, document.SkontoPercent)
	if discounted.IsNegative() || discounted.Abs().GreaterThan(amount.Abs()) {
		return amount, true
	}

	return discounted, true
}

// CalculateAmountScore scores how well a document's amount matches a
// transaction's gross amount, in [0.0, 1.0]. Both amounts are treated
// as magnitudes; payment direction is irrelevant to matching. The
// score is derived from the relative difference
// |txn − doc| / max(|txn|, |doc|) against the configured tolerance
// ladder. A document without a usable amount scores 0.0; two exactly
// zero amounts score 1.0.
func CalculateAmountScore(transaction *models.FinancialTransaction, document *models.TaxDocument, config *MatchingConfig) float64 {
	if transaction == nil || document == nil || config == nil {
		return 0.0
	}

	documentAmount, ok := EffectiveDocumentAmount(document)
	if !ok {
		return 0.0
	}

	return scoreAmounts(transaction.AbsoluteAmount(), documentAmount.Abs(), config)
}

// CalculateMultipleAmountScore scores a set of documents against one
// transaction by summing their Skonto-adjusted amounts and applying the
// identical tolerance ladder to the sum. Documents without a usable
// amount are skipped; an empty or nil set scores 0.0.
func CalculateMultipleAmountScore(transaction *models.FinancialTransaction, documents []*models.TaxDocument, config *MatchingConfig) float64 {
	if transaction == nil || len(documents) == 0 || config == nil {
		return 0.0
	}

	total := decimal.Zero
	usable := 0
	for _, doc := range documents {
		amount, ok := EffectiveDocumentAmount(doc)
		if !ok {
			continue
		}
		total = total.Add(amount.Abs())
		usable++
	}

	if usable == 0 {
		return 0.0
	}

	return scoreAmounts(transaction.AbsoluteAmount(), total, config)
}

// scoreAmounts applies the relative-difference tolerance ladder to two
// non-negative amounts.
func scoreAmounts(txnAmount, docAmount decimal.Decimal, config *MatchingConfig) float64 {
	if txnAmount.IsZero() && docAmount.IsZero() {
		return 1.0
	}

	maxAmount := txnAmount
	if docAmount.GreaterThan(maxAmount) {
		maxAmount = docAmount
	}

	relativeDiff, _ := txnAmount.Sub(docAmount).Abs().Div(maxAmount).Float64()

	return ladderScore(relativeDiff, config.AmountExactTolerance, config.AmountHighTolerance, config.AmountMediumTolerance)
}

// ladderScore maps a difference onto the shared threshold ladder used
// by amount and date scoring: exact 1.0, high 0.8, medium 0.5, then a
// linear decay from 0.2 to 0.0 across a window of three times the
// medium threshold.
func ladderScore(diff, exact, high, medium float64) float64 {
	switch {
	case diff <= exact:
		return 1.0
	case diff <= high:
		return 0.8
	case diff <= medium:
		return 0.5
	case diff <= 3*medium:
		return 0.2 * (3*medium - diff) / (2 * medium)
	default:
		return 0.0
	}
}

// MultipleAmountValidationResult is the diagnostic outcome of checking
// whether a document set plausibly covers a transaction amount. It is
// independent of the weighted score and meant for user feedback.
type MultipleAmountValidationResult struct {
	TotalDocumentAmount    decimal.Decimal `json:"total_document_amount"`
	ValidDocumentCount     int             `json:"valid_document_count"`
	SkontoAppliedCount     int             `json:"skonto_applied_count"`
	Difference             decimal.Decimal `json:"difference"`
	DifferencePercent      float64         `json:"difference_percent"`
	IsValid                bool            `json:"is_valid"`
	HasSignificantOverage  bool            `json:"has_significant_overage"`
	HasSignificantUnderage bool            `json:"has_significant_underage"`
	Warnings               []string        `json:"warnings,omitempty"`
	Recommendations        []string        `json:"recommendations,omitempty"`
}

// ValidateMultipleAmounts checks a set of documents against a
// transaction amount and produces warnings and recommendations for the
// caller. Differences of at most 5% pass silently; between 5% and 10%
// the result stays valid but carries a warning; beyond 10% the set is
// invalid and flagged as overage or underage. A set without any usable
// document amount is always invalid.
func ValidateMultipleAmounts(transactionAmount decimal.Decimal, documents []*models.TaxDocument) *MultipleAmountValidationResult {
	result := &MultipleAmountValidationResult{
		TotalDocumentAmount: decimal.Zero,
	}

	for _, doc := range documents {
		amount, ok := EffectiveDocumentAmount(doc)
		if !ok {
			continue
		}

		result.TotalDocumentAmount = result.TotalDocumentAmount.Add(amount.Abs())
		result.ValidDocumentCount++
		if HasValidSkonto(doc.SkontoPercent) {
			result.SkontoAppliedCount++
		}
	}

	if result.ValidDocumentCount == 0 || result.TotalDocumentAmount.IsZero() {
		result.IsValid = false
		result.Warnings = append(result.Warnings, "no documents with a usable amount")
		result.Recommendations = append(result.Recommendations, "verify that the selected documents contain extracted amounts")
		return result
	}

	txnAmount := transactionAmount.Abs()
	result.Difference = txnAmount.Sub(result.TotalDocumentAmount).Abs()

	if txnAmount.IsZero() {
		result.IsValid = false
		result.DifferencePercent = 100.0
		result.Warnings = append(result.Warnings, "transaction amount is zero but documents carry amounts")
		result.Recommendations = append(result.Recommendations, "check whether these documents belong to a different transaction")
		return result
	}

	result.DifferencePercent, _ = result.Difference.Div(txnAmount).Mul(hundred).Float64()

	overage := result.TotalDocumentAmount.GreaterThan(txnAmount)

	switch {
	case result.DifferencePercent <= amountWarningThresholdPercent:
		result.IsValid = true
	case result.DifferencePercent <= amountInvalidThresholdPercent:
		result.IsValid = true
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("document total %s differs from transaction amount %s by %.1f%%",
				result.TotalDocumentAmount.StringFixed(2), txnAmount.StringFixed(2), result.DifferencePercent))
	case overage:
		result.IsValid = false
		result.HasSignificantOverage = true
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("document total %s exceeds transaction amount %s by %.1f%%",
				result.TotalDocumentAmount.StringFixed(2), txnAmount.StringFixed(2), result.DifferencePercent))
		result.Recommendations = append(result.Recommendations, "check for documents belonging to other transactions")
	default:
		result.IsValid = false
		result.HasSignificantUnderage = true
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("document total %s falls short of transaction amount %s by %.1f%%",
				result.TotalDocumentAmount.StringFixed(2), txnAmount.StringFixed(2), result.DifferencePercent))
		result.Recommendations = append(result.Recommendations, "additional documents may be missing for this transaction")
	}

	return result
}

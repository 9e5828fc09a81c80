package matcher

import (
	"sort"

	"taxfiler-matching-service/internal/models"
)

// ScoreBreakdown carries the four per-factor scores and the weighted
// composite for one (transaction, document) comparison. Each component
// is in [0.0, 1.0]. Breakdowns are value types produced fresh per
// comparison and never mutated.
type ScoreBreakdown struct {
	AmountScore    float64 `json:"amount_score"`
	DateScore      float64 `json:"date_score"`
	VendorScore    float64 `json:"vendor_score"`
	ReferenceScore float64 `json:"reference_score"`
	Composite      float64 `json:"composite"`
}

// MatchCandidate pairs a document with its score breakdown for ranking.
type MatchCandidate struct {
	Document  *models.TaxDocument `json:"document"`
	Breakdown ScoreBreakdown      `json:"breakdown"`
}

// CombinationScore is the scored result of matching a set of documents
// against one transaction (split payments, partial invoices). Amount is
// scored on the Skonto-adjusted sum, references against all extracted
// vouchers; the vendor score is the best across the set and the date
// score the average, since a coherent combination shares a vendor but
// spreads across dates.
type CombinationScore struct {
	Documents      []*models.TaxDocument `json:"documents"`
	AmountScore    float64               `json:"amount_score"`
	DateScore      float64               `json:"date_score"`
	VendorScore    float64               `json:"vendor_score"`
	ReferenceScore float64               `json:"reference_score"`
	Composite      float64               `json:"composite"`
}

// Engine computes score breakdowns and rankings. It holds only the
// immutable configuration; all scoring is pure and safe for concurrent
// use from multiple goroutines.
type Engine struct {
	Config *MatchingConfig
}

// NewEngine creates a matching engine with the given configuration. A
// nil configuration falls back to the defaults.
func NewEngine(config *MatchingConfig) *Engine {
	if config == nil {
		config = DefaultMatchingConfig()
	}

	return &Engine{Config: config}
}

// ScoreDocument computes the full score breakdown for one candidate
// document against one transaction.
func (e *Engine) ScoreDocument(transaction *models.FinancialTransaction, document *models.TaxDocument) ScoreBreakdown {
	breakdown := ScoreBreakdown{
		AmountScore:    CalculateAmountScore(transaction, document, e.Config),
		DateScore:      CalculateDateScore(transaction, document, e.Config),
		VendorScore:    CalculateVendorScore(transaction, document, e.Config),
		ReferenceScore: CalculateReferenceScore(transaction, document, e.Config),
	}

	breakdown.Composite = e.composite(breakdown.AmountScore, breakdown.DateScore, breakdown.VendorScore, breakdown.ReferenceScore)

	return breakdown
}

// RankMatches scores every candidate document against the transaction
// and returns the candidates at or above the minimum match score,
// ordered best-first. The order is deterministic: composite descending,
// ties broken by amount score, then date score. Already-connected
// documents are skipped unless the configuration includes them.
func (e *Engine) RankMatches(transaction *models.FinancialTransaction, documents []*models.TaxDocument) []*MatchCandidate {
	if transaction == nil {
		return nil
	}

	var candidates []*MatchCandidate
	for _, doc := range documents {
		if doc == nil {
			continue
		}

		if !doc.Unconnected && !e.Config.IncludeConnectedDocuments {
			continue
		}

		breakdown := e.ScoreDocument(transaction, doc)
		if breakdown.Composite < e.Config.MinimumMatchScore {
			continue
		}

		candidates = append(candidates, &MatchCandidate{
			Document:  doc,
			Breakdown: breakdown,
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		bi, bj := candidates[i].Breakdown, candidates[j].Breakdown
		if bi.Composite != bj.Composite {
			return bi.Composite > bj.Composite
		}
		if bi.AmountScore != bj.AmountScore {
			return bi.AmountScore > bj.AmountScore
		}
		return bi.DateScore > bj.DateScore
	})

	return candidates
}

// ScoreCombination computes the composite score for a set of documents
// considered together as the counterpart of one transaction.
func (e *Engine) ScoreCombination(transaction *models.FinancialTransaction, documents []*models.TaxDocument) CombinationScore {
	score := CombinationScore{Documents: documents}

	if transaction == nil || len(documents) == 0 {
		return score
	}

	score.AmountScore = CalculateMultipleAmountScore(transaction, documents, e.Config)
	score.ReferenceScore = CalculateMultiReferenceScore(transaction, documents, e.Config)

	dateSum := 0.0
	scored := 0
	for _, doc := range documents {
		if doc == nil {
			continue
		}

		if vendor := CalculateVendorScore(transaction, doc, e.Config); vendor > score.VendorScore {
			score.VendorScore = vendor
		}

		dateSum += CalculateDateScore(transaction, doc, e.Config)
		scored++
	}

	if scored > 0 {
		score.DateScore = dateSum / float64(scored)
	}

	score.Composite = e.composite(score.AmountScore, score.DateScore, score.VendorScore, score.ReferenceScore)

	return score
}

// composite combines factor scores with the configured weights and
// applies the strong-agreement bonus, capped at 1.0.
func (e *Engine) composite(amount, date, vendor, reference float64) float64 {
	w := e.Config.Weights

	composite := amount*w.AmountWeight +
		date*w.DateWeight +
		vendor*w.VendorWeight +
		reference*w.ReferenceWeight

	if composite > e.Config.BonusThreshold && e.Config.BonusMultiplier > 1.0 {
		composite *= e.Config.BonusMultiplier
	}

	if composite > 1.0 {
		composite = 1.0
	}

	return composite
}

// ValidateConfiguration validates the engine configuration.
func (e *Engine) ValidateConfiguration() error {
	return e.Config.Validate()
}

// GetConfiguration returns a copy of the current configuration.
func (e *Engine) GetConfiguration() *MatchingConfig {
	return e.Config.Clone()
}

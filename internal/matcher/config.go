// Package matcher implements the document-transaction matching engine.
//
// The engine scores candidate tax documents against bank transactions
// using four independent factors (amount, date, vendor name, and
// reference number) and combines them into a weighted composite score
// used for ranking and auto-assignment. Real-world messiness is handled
// inside the factor scorers:
//   - Early-payment discounts (Skonto) adjusting invoice amounts
//   - Invoice dates missing and replaced by folder-derived dates
//   - Vendor names differing in legal form, casing, and diacritics
//   - Multiple voucher numbers embedded in free-text transaction notes
//   - Split payments covered by several partial invoices
//
// Scoring a (transaction, document) pair is a pure computation with no
// shared mutable state; it is safe to run in parallel across pairs.
//
// Example usage:
//
//	config := matcher.DefaultMatchingConfig()
//	config.MinimumMatchScore = 0.6
//
//	engine := matcher.NewEngine(config)
//	candidates := engine.RankMatches(transaction, documents)
package matcher

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// MatchingWeights defines the relative importance of the four matching
// factors in the composite score.
type MatchingWeights struct {
	AmountWeight    float64 `json:"amount_weight"`
	DateWeight      float64 `json:"date_weight"`
	VendorWeight    float64 `json:"vendor_weight"`
	ReferenceWeight float64 `json:"reference_weight"`
}

// Sum returns the total of all factor weights.
func (mw MatchingWeights) Sum() float64 {
	return mw.AmountWeight + mw.DateWeight + mw.VendorWeight + mw.ReferenceWeight
}

// MatchingConfig holds all tunable parameters of the matching engine.
// A configuration is constructed once, validated, and then treated as
// immutable for the duration of a matching run; every matcher call
// receives it explicitly.
//
// Use the provided factory functions for common scenarios:
//   - DefaultMatchingConfig(): balanced approach for most use cases
//   - StrictMatchingConfig(): tight tolerances, auto-assign only near-certain matches
//   - RelaxedMatchingConfig(): loose tolerances for exploratory ranking
type MatchingConfig struct {
	// Weights for combining the four factor scores
	Weights MatchingWeights `json:"weights"`

	// WeightSumMin/WeightSumMax bound the acceptable total of all
	// weights (weights need not sum to exactly 1.0)
	WeightSumMin float64 `json:"weight_sum_min"`
	WeightSumMax float64 `json:"weight_sum_max"`

	// Relative amount difference thresholds, in increasing tolerance.
	// A difference at or below the exact tolerance scores 1.0, the high
	// tolerance 0.8, the medium tolerance 0.5; beyond that the score
	// decays linearly from 0.2 to 0.0 across a window of three times
	// the medium tolerance.
	AmountExactTolerance  float64 `json:"amount_exact_tolerance"`
	AmountHighTolerance   float64 `json:"amount_high_tolerance"`
	AmountMediumTolerance float64 `json:"amount_medium_tolerance"`

	// Whole-day distance thresholds, same ladder as amounts
	DateExactDays  int `json:"date_exact_days"`
	DateHighDays   int `json:"date_high_days"`
	DateMediumDays int `json:"date_medium_days"`

	// VendorFuzzyThreshold is the minimum edit-distance similarity for
	// a fuzzy vendor name match to count at all
	VendorFuzzyThreshold float64 `json:"vendor_fuzzy_threshold"`

	// MinimumMatchScore is the composite score a candidate must reach
	// to be ranked and auto-assigned
	MinimumMatchScore float64 `json:"minimum_match_score"`

	// BonusThreshold/BonusMultiplier reward very strong multi-factor
	// agreement: composites above the threshold are multiplied and
	// capped at 1.0. A multiplier of 1.0 disables the bonus.
	BonusThreshold  float64 `json:"bonus_threshold"`
	BonusMultiplier float64 `json:"bonus_multiplier"`

	// ReferenceMatchBonus is the maximum bonus added to a multi-document
	// reference score when every voucher number extracted from the
	// transaction note found a matching document
	ReferenceMatchBonus float64 `json:"reference_match_bonus"`

	// MaxCandidateDocuments caps the candidate set per transaction
	// before combination generation, bounding the search space
	MaxCandidateDocuments int `json:"max_candidate_documents"`

	// MaxCombinationDocuments caps the number of documents in one
	// generated combination
	MaxCombinationDocuments int `json:"max_combination_documents"`

	// IncludeConnectedDocuments also scores documents that already have
	// an attachment elsewhere (the engine warns instead of forbidding)
	IncludeConnectedDocuments bool `json:"include_connected_documents"`
}

// DefaultMatchingConfig returns a configuration with sensible defaults
func DefaultMatchingConfig() *MatchingConfig {
	return &MatchingConfig{
		Weights: MatchingWeights{
			AmountWeight:    0.4,
			DateWeight:      0.2,
			VendorWeight:    0.2,
			ReferenceWeight: 0.2,
		},
		WeightSumMin:            0.8,
		WeightSumMax:            1.2,
		AmountExactTolerance:    0.001,
		AmountHighTolerance:     0.01,
		AmountMediumTolerance:   0.05,
		DateExactDays:           2,
		DateHighDays:            7,
		DateMediumDays:          14,
		VendorFuzzyThreshold:    0.65,
		MinimumMatchScore:       0.5,
		BonusThreshold:          0.85,
		BonusMultiplier:         1.1,
		ReferenceMatchBonus:     0.2,
		MaxCandidateDocuments:   20,
		MaxCombinationDocuments: 4,
	}
}

// StrictMatchingConfig returns a configuration for strict matching
func StrictMatchingConfig() *MatchingConfig {
	config := DefaultMatchingConfig()
	config.AmountExactTolerance = 0.0005
	config.AmountHighTolerance = 0.005
	config.AmountMediumTolerance = 0.02
	config.DateExactDays = 1
	config.DateHighDays = 3
	config.DateMediumDays = 7
	config.VendorFuzzyThreshold = 0.8
	config.MinimumMatchScore = 0.75
	config.MaxCandidateDocuments = 10
	return config
}

// RelaxedMatchingConfig returns a configuration for relaxed matching
func RelaxedMatchingConfig() *MatchingConfig {
	config := DefaultMatchingConfig()
	config.AmountExactTolerance = 0.005
	config.AmountHighTolerance = 0.02
	config.AmountMediumTolerance = 0.1
	config.DateExactDays = 3
	config.DateHighDays = 14
	config.DateMediumDays = 30
	config.VendorFuzzyThreshold = 0.5
	config.MinimumMatchScore = 0.35
	config.MaxCandidateDocuments = 40
	config.IncludeConnectedDocuments = true
	return config
}

// Violations checks the configuration and returns every violation found
// as a human-readable message. An empty slice means the configuration
// is valid. Callers decide whether to reject or proceed.
func (mc *MatchingConfig) Violations() []string {
	var violations []string

	for _, w := range []struct {
		name  string
		value float64
	}{
		{"amount", mc.Weights.AmountWeight},
		{"date", mc.Weights.DateWeight},
		{"vendor", mc.Weights.VendorWeight},
		{"reference", mc.Weights.ReferenceWeight},
	} {
		if w.value < 0.0 {
			violations = append(violations, fmt.Sprintf("%s weight cannot be negative: %f", w.name, w.value))
		}
	}

	if mc.WeightSumMin <= 0.0 || mc.WeightSumMax < mc.WeightSumMin {
		violations = append(violations, fmt.Sprintf("weight sum range is invalid: [%f, %f]", mc.WeightSumMin, mc.WeightSumMax))
	} else if total := mc.Weights.Sum(); total < mc.WeightSumMin || total > mc.WeightSumMax {
		violations = append(violations, fmt.Sprintf("weights should sum to a value in [%f, %f], got %f", mc.WeightSumMin, mc.WeightSumMax, total))
	}

	if mc.AmountExactTolerance < 0.0 {
		violations = append(violations, fmt.Sprintf("amount exact tolerance cannot be negative: %f", mc.AmountExactTolerance))
	}
	if mc.AmountHighTolerance < mc.AmountExactTolerance {
		violations = append(violations, fmt.Sprintf("amount high tolerance (%f) must not be below the exact tolerance (%f)", mc.AmountHighTolerance, mc.AmountExactTolerance))
	}
	if mc.AmountMediumTolerance <= 0.0 {
		violations = append(violations, fmt.Sprintf("amount medium tolerance must be positive: %f", mc.AmountMediumTolerance))
	} else if mc.AmountMediumTolerance < mc.AmountHighTolerance {
		violations = append(violations, fmt.Sprintf("amount medium tolerance (%f) must not be below the high tolerance (%f)", mc.AmountMediumTolerance, mc.AmountHighTolerance))
	}

	if mc.DateExactDays < 0 {
		violations = append(violations, fmt.Sprintf("date exact days cannot be negative: %d", mc.DateExactDays))
	}
	if mc.DateHighDays < mc.DateExactDays {
		violations = append(violations, fmt.Sprintf("date high days (%d) must not be below exact days (%d)", mc.DateHighDays, mc.DateExactDays))
	}
	if mc.DateMediumDays <= 0 {
		violations = append(violations, fmt.Sprintf("date medium days must be positive: %d", mc.DateMediumDays))
	} else if mc.DateMediumDays < mc.DateHighDays {
		violations = append(violations, fmt.Sprintf("date medium days (%d) must not be below high days (%d)", mc.DateMediumDays, mc.DateHighDays))
	}

	if mc.VendorFuzzyThreshold < 0.0 || mc.VendorFuzzyThreshold > 1.0 {
		violations = append(violations, fmt.Sprintf("vendor fuzzy threshold must be between 0.0 and 1.0: %f", mc.VendorFuzzyThreshold))
	}

	if mc.MinimumMatchScore < 0.0 || mc.MinimumMatchScore > 1.0 {
		violations = append(violations, fmt.Sprintf("minimum match score must be between 0.0 and 1.0: %f", mc.MinimumMatchScore))
	}

	if mc.BonusThreshold < 0.0 || mc.BonusThreshold > 1.0 {
		violations = append(violations, fmt.Sprintf("bonus threshold must be between 0.0 and 1.0: %f", mc.BonusThreshold))
	}
	if mc.BonusMultiplier < 1.0 {
		violations = append(violations, fmt.Sprintf("bonus multiplier must be at least 1.0: %f", mc.BonusMultiplier))
	}

	if mc.ReferenceMatchBonus < 0.0 || mc.ReferenceMatchBonus > 1.0 {
		violations = append(violations, fmt.Sprintf("reference match bonus must be between 0.0 and 1.0: %f", mc.ReferenceMatchBonus))
	}

	if mc.MaxCandidateDocuments <= 0 {
		violations = append(violations, fmt.Sprintf("max candidate documents must be positive: %d", mc.MaxCandidateDocuments))
	}
	if mc.MaxCombinationDocuments <= 0 {
		violations = append(violations, fmt.Sprintf("max combination documents must be positive: %d", mc.MaxCombinationDocuments))
	}

	return violations
}

// Validate checks if the matching configuration is valid, aggregating
// all violations into a single error.
func (mc *MatchingConfig) Validate() error {
	violations := mc.Violations()
	if len(violations) == 0 {
		return nil
	}

	return errors.Errorf("invalid matching configuration: %s", strings.Join(violations, "; "))
}

// Clone creates a deep copy of the matching configuration
func (mc *MatchingConfig) Clone() *MatchingConfig {
	if mc == nil {
		return nil
	}

	clone := *mc
	return &clone
}

// String returns a human-readable description of the configuration
func (mc *MatchingConfig) String() string {
	return fmt.Sprintf("MatchingConfig{Weights: %.2f/%.2f/%.2f/%.2f, MinScore: %.2f, AmountTolerances: %.4f/%.4f/%.4f, DateDays: %d/%d/%d}",
		mc.Weights.AmountWeight, mc.Weights.DateWeight, mc.Weights.VendorWeight, mc.Weights.ReferenceWeight,
		mc.MinimumMatchScore,
		mc.AmountExactTolerance, mc.AmountHighTolerance, mc.AmountMediumTolerance,
		mc.DateExactDays, mc.DateHighDays, mc.DateMediumDays)
}

package cmd

import (
	"fmt"
	"os"

	"taxfiler-matching-service/internal/matcher"

	"github.com/spf13/cobra"
)

var (
	validatePreset          string
	validateAmountWeight    float64
	validateDateWeight      float64
	validateVendorWeight    float64
	validateReferenceWeight float64
	validateMinimumScore    float64
	validateFuzzyThreshold  float64
)

// validateCmd checks a matching configuration without touching data
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a matching configuration",
	Long: `Validate builds the matching configuration from a preset and the
given overrides and reports every violation instead of stopping at the
first. Exit code 0 means the configuration is usable.

Examples:
  taxmatcher validate --preset strict
  taxmatcher validate --amount-weight 0.7 --date-weight 0.4`,

	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringVar(&validatePreset, "preset", "default", "matching preset: default, strict, relaxed")
	validateCmd.Flags().Float64Var(&validateAmountWeight, "amount-weight", 0, "override the amount factor weight")
	validateCmd.Flags().Float64Var(&validateDateWeight, "date-weight", 0, "override the date factor weight")
	validateCmd.Flags().Float64Var(&validateVendorWeight, "vendor-weight", 0, "override the vendor factor weight")
	validateCmd.Flags().Float64Var(&validateReferenceWeight, "reference-weight", 0, "override the reference factor weight")
	validateCmd.Flags().Float64Var(&validateMinimumScore, "min-score", 0, "override the minimum match score")
	validateCmd.Flags().Float64Var(&validateFuzzyThreshold, "fuzzy-threshold", 0, "override the vendor fuzzy threshold")
}

func runValidate(cmd *cobra.Command, args []string) error {
	var base *matcher.MatchingConfig
	switch validatePreset {
	case "strict":
		base = matcher.StrictMatchingConfig()
	case "relaxed":
		base = matcher.RelaxedMatchingConfig()
	case "default", "":
		base = matcher.DefaultMatchingConfig()
	default:
		return fmt.Errorf("unknown preset '%s'. Valid presets: default, strict, relaxed", validatePreset)
	}

	if validateAmountWeight > 0 {
		base.Weights.AmountWeight = validateAmountWeight
	}
	if validateDateWeight > 0 {
		base.Weights.DateWeight = validateDateWeight
	}
	if validateVendorWeight > 0 {
		base.Weights.VendorWeight = validateVendorWeight
	}
	if validateReferenceWeight > 0 {
		base.Weights.ReferenceWeight = validateReferenceWeight
	}
	if validateMinimumScore > 0 {
		base.MinimumMatchScore = validateMinimumScore
	}
	if validateFuzzyThreshold > 0 {
		base.VendorFuzzyThreshold = validateFuzzyThreshold
	}

	violations := base.Violations()
	if len(violations) == 0 {
		fmt.Println("Configuration is valid.")
		fmt.Printf("\n%s\n", base)
		return nil
	}

	fmt.Fprintf(os.Stderr, "Configuration has %d violation(s):\n", len(violations))
	for _, violation := range violations {
		fmt.Fprintf(os.Stderr, "  - %s\n", violation)
	}
	os.Exit(3)
	return nil
}

// Package config assembles runtime configurations for the CLI from
// flag and viper values.
package config

import (
	"taxfiler-matching-service/internal/assigner"
	"taxfiler-matching-service/internal/matcher"
	"taxfiler-matching-service/internal/reporter"
	"taxfiler-matching-service/internal/storage"
)

// MatchingOverrides carries the CLI flag values that adjust the
// matching configuration. Zero values leave the defaults untouched.
type MatchingOverrides struct {
	Preset                string
	MinimumScore          float64
	AmountMediumTolerance float64
	DateMediumDays        int
	VendorFuzzyThreshold  float64
	AmountWeight          float64
	DateWeight            float64
	VendorWeight          float64
	ReferenceWeight       float64
	IncludeConnected      bool
}

// CreateMatchingConfig builds a matching configuration from a preset
// name and CLI overrides.
func CreateMatchingConfig(overrides MatchingOverrides) (*matcher.MatchingConfig, error) {
	var config *matcher.MatchingConfig
	switch overrides.Preset {
	case "strict":
		config = matcher.StrictMatchingConfig()
	case "relaxed":
		config = matcher.RelaxedMatchingConfig()
	default:
		config = matcher.DefaultMatchingConfig()
	}

	if overrides.MinimumScore > 0 {
		config.MinimumMatchScore = overrides.MinimumScore
	}
	if overrides.AmountMediumTolerance > 0 {
		config.AmountMediumTolerance = overrides.AmountMediumTolerance
	}
	if overrides.DateMediumDays > 0 {
		config.DateMediumDays = overrides.DateMediumDays
	}
	if overrides.VendorFuzzyThreshold > 0 {
		config.VendorFuzzyThreshold = overrides.VendorFuzzyThreshold
	}
	if overrides.AmountWeight > 0 {
		config.Weights.AmountWeight = overrides.AmountWeight
	}
	if overrides.DateWeight > 0 {
		config.Weights.DateWeight = overrides.DateWeight
	}
	if overrides.VendorWeight > 0 {
		config.Weights.VendorWeight = overrides.VendorWeight
	}
	if overrides.ReferenceWeight > 0 {
		config.Weights.ReferenceWeight = overrides.ReferenceWeight
	}
	config.IncludeConnectedDocuments = overrides.IncludeConnected

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// CreateServiceConfig builds the assignment service configuration.
func CreateServiceConfig(matching *matcher.MatchingConfig, concurrency int, dryRun bool) *assigner.Config {
	config := assigner.DefaultConfig()
	config.Matching = matching
	config.DryRun = dryRun
	if concurrency > 0 {
		config.Concurrency = concurrency
	}
	return config
}

// CreateReportConfig builds a report configuration for the requested
// output format.
func CreateReportConfig(format string, maxShown int) (*reporter.ReportConfig, error) {
	config := reporter.DefaultReportConfig()
	config.Format = reporter.OutputFormat(format)
	if maxShown > 0 {
		config.MaxCandidatesShown = maxShown
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// OpenDatabase opens the SQLite database used by all commands.
func OpenDatabase(path string, logQueries bool) (*storage.Database, error) {
	cfg := storage.DefaultConfig(path)
	cfg.LogQueries = logQueries
	return storage.Open(cfg)
}

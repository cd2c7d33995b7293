// Package config builds runtime configuration for the CLI from viper
// settings: tolerance profiles with per-field overrides, and logger setup.
package config

import (
	"fmt"

	"recurring-reconciliation-service/internal/matcher"
	corerrors "recurring-reconciliation-service/pkg/errors"
	"recurring-reconciliation-service/pkg/logger"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Tolerance profile names accepted by --profile and RECONCILER_PROFILE.
const (
	ProfileDefault = "default"
	ProfileStrict  = "strict"
	ProfileRelaxed = "relaxed"
)

// LoadTolerances resolves the effective matching tolerances: the named
// profile as a base, with any explicitly set viper keys layered on top.
func LoadTolerances(v *viper.Viper) (matcher.MatchingTolerances, error) {
	profile := v.GetString("profile")
	if profile == "" {
		profile = ProfileDefault
	}

	var tol matcher.MatchingTolerances
	switch profile {
	case ProfileDefault:
		tol = matcher.DefaultTolerances()
	case ProfileStrict:
		tol = matcher.StrictTolerances()
	case ProfileRelaxed:
		tol = matcher.RelaxedTolerances()
	default:
		return tol, corerrors.ConfigurationError(corerrors.CodeInvalidTolerances, "profile",
			fmt.Errorf("unknown profile %q (want default, strict or relaxed)", profile))
	}

	if v.IsSet("date_tolerance_days") {
		tol.DateToleranceDays = v.GetInt("date_tolerance_days")
	}
	if v.IsSet("amount_tolerance_percent") {
		tol.AmountTolerancePercent = v.GetFloat64("amount_tolerance_percent")
	}
	if v.IsSet("amount_tolerance_absolute") {
		tol.AmountToleranceAbsolute = decimal.NewFromFloat(v.GetFloat64("amount_tolerance_absolute"))
	}
	if v.IsSet("similarity_threshold") {
		tol.SimilarityThreshold = v.GetFloat64("similarity_threshold")
	}
	if v.IsSet("auto_match_threshold") {
		tol.AutoMatchThreshold = v.GetFloat64("auto_match_threshold")
	}

	if err := tol.Validate(); err != nil {
		return tol, err
	}
	return tol, nil
}

// LoadLogger builds the CLI logger from viper settings. Verbose forces
// debug level regardless of the configured level.
func LoadLogger(v *viper.Viper) (logger.Logger, error) {
	cfg := logger.DefaultConfig()
	if level := v.GetString("log_level"); level != "" {
		cfg.Level = logger.Level(level)
	}
	if format := v.GetString("log_format"); format != "" {
		cfg.Format = logger.Format(format)
	}
	if v.GetBool("verbose") {
		cfg.Level = logger.DebugLevel
	}

	log, err := logger.New(cfg)
	if err != nil {
		return nil, corerrors.ConfigurationError(corerrors.CodeInvalidLogging, "logging", err)
	}
	return log, nil
}

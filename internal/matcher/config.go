// Package matcher implements the reconciliation matching engine: scoring
// imported transactions against projected instances, resolving the 1:1
// pairing, managing match lifecycle, and detecting duplicate imports.
//
// Scoring blends three normalized sub-scores:
//  1. date proximity: 1 - |offsetDays| / dateToleranceDays, clamped to [0,1]
//  2. amount proximity: 1 - min(1, |variance| / toleranceCeiling)
//  3. description similarity: edit distance over normalized descriptions
//
// The blend weights live on MatchingTolerances so they are explicit,
// documented and overridable per call; nothing in the engine reads global
// state.
//
// Example usage:
//
//	tol := matcher.DefaultTolerances()
//	engine := matcher.NewEngine(log)
//	result, err := engine.Scan(ctx, transactions, instancesByAccount, tol)
package matcher

import (
	"fmt"
	"math"
	"time"

	"recurring-reconciliation-service/internal/models"

	"github.com/shopspring/decimal"
)

// ScoreWeights defines the relative importance of the three matching
// criteria. Weights must sum to 1.0 (±0.01).
type ScoreWeights struct {
	Date        float64 `json:"date" mapstructure:"date"`
	Amount      float64 `json:"amount" mapstructure:"amount"`
	Description float64 `json:"description" mapstructure:"description"`
}

// Validate checks the weights are in range and sum to 1.0.
func (w ScoreWeights) Validate() error {
	for name, v := range map[string]float64{"date": w.Date, "amount": w.Amount, "description": w.Description} {
		if v < 0.0 || v > 1.0 {
			return fmt.Errorf("%s weight must be between 0.0 and 1.0: %f", name, v)
		}
	}
	if total := w.Date + w.Amount + w.Description; math.Abs(total-1.0) > 0.01 {
		return fmt.Errorf("weights must sum to 1.0, got %f", total)
	}
	return nil
}

// MatchingTolerances is the configuration value object for one matching
// call. It is passed explicitly to every engine operation, never held as
// process state, so concurrent scans with different tolerances cannot
// interfere.
type MatchingTolerances struct {
	// DateToleranceDays bounds |transaction date - scheduled date| for a
	// candidate to be considered at all.
	DateToleranceDays int `json:"date_tolerance_days" mapstructure:"date_tolerance_days"`

	// AmountTolerancePercent is the relative amount tolerance, expressed as
	// a percentage of the expected amount (10.0 means 10%).
	AmountTolerancePercent float64 `json:"amount_tolerance_percent" mapstructure:"amount_tolerance_percent"`

	// AmountToleranceAbsolute is the absolute amount ceiling. The amount
	// check passes when the variance is within the larger of the two
	// tolerances.
	AmountToleranceAbsolute decimal.Decimal `json:"amount_tolerance_absolute" mapstructure:"amount_tolerance_absolute"`

	// SimilarityThreshold is the minimum description similarity for a
	// candidate to qualify, unless amount and date match exactly.
	SimilarityThreshold float64 `json:"similarity_threshold" mapstructure:"similarity_threshold"`

	// AutoMatchThreshold is the minimum blended score for a match to be
	// created as AutoMatched instead of Suggested. Independent of the
	// High/Medium/Low confidence bucketing.
	AutoMatchThreshold float64 `json:"auto_match_threshold" mapstructure:"auto_match_threshold"`

	// Weights blends the three sub-scores into the confidence score.
	Weights ScoreWeights `json:"weights" mapstructure:"weights"`
}

// DefaultTolerances returns the balanced defaults: 7 days, 10% / 10.00
// absolute, similarity 0.6, auto-match 0.85.
//
// The weights favor description and amount over date (0.40 / 0.35 / 0.25):
// a bill posting a couple of days late is routine, a different payee name
// is not.
func DefaultTolerances() MatchingTolerances {
	return MatchingTolerances{
		DateToleranceDays:       7,
		AmountTolerancePercent:  10.0,
		AmountToleranceAbsolute: decimal.NewFromInt(10),
		SimilarityThreshold:     0.6,
		AutoMatchThreshold:      0.85,
		Weights: ScoreWeights{
			Date:        0.25,
			Amount:      0.35,
			Description: 0.40,
		},
	}
}

// StrictTolerances returns tight tolerances for critical reconciliation:
// small date window, near-exact amounts, and no automatic acceptance below
// very high confidence.
func StrictTolerances() MatchingTolerances {
	return MatchingTolerances{
		DateToleranceDays:       2,
		AmountTolerancePercent:  1.0,
		AmountToleranceAbsolute: decimal.NewFromInt(1),
		SimilarityThreshold:     0.8,
		AutoMatchThreshold:      0.95,
		Weights: ScoreWeights{
			Date:        0.25,
			Amount:      0.40,
			Description: 0.35,
		},
	}
}

// RelaxedTolerances returns loose tolerances for exploratory matching:
// wide date window, generous amount variance, low similarity bar, and no
// automatic acceptance (every match is Suggested for review).
func RelaxedTolerances() MatchingTolerances {
	return MatchingTolerances{
		DateToleranceDays:       14,
		AmountTolerancePercent:  25.0,
		AmountToleranceAbsolute: decimal.NewFromInt(25),
		SimilarityThreshold:     0.4,
		AutoMatchThreshold:      1.01, // unreachable: nothing auto-matches
		Weights: ScoreWeights{
			Date:        0.25,
			Amount:      0.35,
			Description: 0.40,
		},
	}
}

// Validate checks the tolerance configuration.
func (t MatchingTolerances) Validate() error {
	if t.DateToleranceDays < 0 {
		return fmt.Errorf("date tolerance days cannot be negative: %d", t.DateToleranceDays)
	}
	if t.AmountTolerancePercent < 0.0 || t.AmountTolerancePercent > 100.0 {
		return fmt.Errorf("amount tolerance percent must be between 0.0 and 100.0: %f", t.AmountTolerancePercent)
	}
	if t.AmountToleranceAbsolute.IsNegative() {
		return fmt.Errorf("amount tolerance absolute cannot be negative: %s", t.AmountToleranceAbsolute.String())
	}
	if t.SimilarityThreshold < 0.0 || t.SimilarityThreshold > 1.0 {
		return fmt.Errorf("similarity threshold must be between 0.0 and 1.0: %f", t.SimilarityThreshold)
	}
	if t.AutoMatchThreshold < 0.0 {
		return fmt.Errorf("auto-match threshold cannot be negative: %f", t.AutoMatchThreshold)
	}
	if err := t.Weights.Validate(); err != nil {
		return fmt.Errorf("invalid weights: %w", err)
	}
	return nil
}

// Clone returns a deep copy of the tolerances.
func (t MatchingTolerances) Clone() MatchingTolerances {
	clone := t
	clone.AmountToleranceAbsolute = t.AmountToleranceAbsolute.Copy()
	return clone
}

// AmountCeiling returns the effective amount tolerance for an expected
// amount: the larger of the absolute ceiling and the percentage of the
// expected magnitude.
func (t MatchingTolerances) AmountCeiling(expected decimal.Decimal) decimal.Decimal {
	pct := expected.Abs().Mul(decimal.NewFromFloat(t.AmountTolerancePercent / 100.0))
	if pct.GreaterThan(t.AmountToleranceAbsolute) {
		return pct
	}
	return t.AmountToleranceAbsolute
}

// WithinAmountTolerance reports whether |actual - expected| is inside the
// effective ceiling.
func (t MatchingTolerances) WithinAmountTolerance(expected, actual decimal.Decimal) bool {
	return actual.Sub(expected).Abs().LessThanOrEqual(t.AmountCeiling(expected))
}

// WithinDateTolerance reports whether two dates are at most
// DateToleranceDays calendar days apart.
func (t MatchingTolerances) WithinDateTolerance(a, b time.Time) bool {
	offset := models.DaysBetween(a, b)
	if offset < 0 {
		offset = -offset
	}
	return offset <= t.DateToleranceDays
}

// String returns a human-readable description of the tolerances.
func (t MatchingTolerances) String() string {
	return fmt.Sprintf("MatchingTolerances{Date: %d days, Amount: %.1f%% / %s, Similarity: %.2f, AutoMatch: %.2f}",
		t.DateToleranceDays, t.AmountTolerancePercent, t.AmountToleranceAbsolute.String(),
		t.SimilarityThreshold, t.AutoMatchThreshold)
}

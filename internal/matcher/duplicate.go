package matcher

import (
	"time"

	"recurring-reconciliation-service/internal/models"
	"recurring-reconciliation-service/internal/similarity"
)

// DuplicateCheck configures the ad hoc duplicate-import detection that
// shares the similarity primitive with reconciliation scoring: an incoming
// transaction that repeats an existing same-account transaction with the
// same absolute amount, a nearby date and a similar description is a
// re-import to skip, not a new row to insert.
type DuplicateCheck struct {
	// DayWindow bounds |posted date - posted date| for two transactions to
	// be duplicate candidates.
	DayWindow int `json:"day_window" mapstructure:"day_window"`

	// SimilarityThreshold is the minimum description similarity for a
	// duplicate verdict.
	SimilarityThreshold float64 `json:"similarity_threshold" mapstructure:"similarity_threshold"`
}

// DefaultDuplicateCheck returns the tuned defaults: 3-day posting window,
// similarity 0.85.
func DefaultDuplicateCheck() DuplicateCheck {
	return DuplicateCheck{
		DayWindow:           3,
		SimilarityThreshold: 0.85,
	}
}

// IsDuplicate reports whether the incoming transaction duplicates one of
// the existing transactions, returning the first duplicate found.
//
// The date check accepts either the posted dates being within DayWindow or
// the incoming description's embedded initiated-date token landing within
// DayWindow of the existing posted date: banks post a purchase days after
// it was initiated, and on re-import only the inline token still agrees.
func (d DuplicateCheck) IsDuplicate(incoming models.Transaction, existing []models.Transaction) (bool, *models.Transaction) {
	for i := range existing {
		prior := existing[i]
		if prior.ID == incoming.ID || prior.AccountID != incoming.AccountID {
			continue
		}
		if !prior.Amount.Abs().Equal(incoming.Amount.Abs()) {
			continue
		}
		if !d.datesAgree(incoming, prior) {
			continue
		}
		if similarity.Similarity(incoming.Description, prior.Description) >= d.SimilarityThreshold {
			return true, &prior
		}
	}
	return false, nil
}

func (d DuplicateCheck) datesAgree(incoming, prior models.Transaction) bool {
	if withinDays(incoming.Date, prior.Date, d.DayWindow) {
		return true
	}
	if initiated, ok := similarity.InitiatedDate(incoming.Description, incoming.Date); ok {
		if withinDays(initiated, prior.Date, d.DayWindow) {
			return true
		}
	}
	if initiated, ok := similarity.InitiatedDate(prior.Description, prior.Date); ok {
		if withinDays(initiated, incoming.Date, d.DayWindow) {
			return true
		}
	}
	return false
}

func withinDays(a, b time.Time, window int) bool {
	days := models.DaysBetween(a, b)
	if days < 0 {
		days = -days
	}
	return days <= window
}

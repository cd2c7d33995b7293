// Package models defines the domain types shared by the projection and
// matching engines: recurring series, per-instance exceptions, projected
// instances, imported transactions and reconciliation matches.
//
// Monetary amounts are decimal.Decimal throughout; float arithmetic is never
// used for money. All dates handled by the engines are calendar dates, so
// every time.Time entering the package is normalized to midnight UTC with
// DateOnly before comparison or keying.
package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Frequency is the closed set of recurrence frequencies a series can have.
// Invalid frequency/pattern-field combinations are rejected once by
// RecurringSeries.Validate at construction; the projection engine assumes a
// validated series.
type Frequency int

const (
	FrequencyDaily Frequency = iota
	FrequencyWeekly
	FrequencyBiWeekly
	FrequencyMonthly
	FrequencyQuarterly
	FrequencyYearly
)

// String returns the canonical name of the frequency.
func (f Frequency) String() string {
	switch f {
	case FrequencyDaily:
		return "Daily"
	case FrequencyWeekly:
		return "Weekly"
	case FrequencyBiWeekly:
		return "BiWeekly"
	case FrequencyMonthly:
		return "Monthly"
	case FrequencyQuarterly:
		return "Quarterly"
	case FrequencyYearly:
		return "Yearly"
	default:
		return "Unknown"
	}
}

// IsValid reports whether the frequency is one of the defined variants.
func (f Frequency) IsValid() bool {
	return f >= FrequencyDaily && f <= FrequencyYearly
}

// UsesDayOfMonth reports whether the day-of-month pattern field is meaningful
// for this frequency.
func (f Frequency) UsesDayOfMonth() bool {
	return f == FrequencyMonthly || f == FrequencyQuarterly || f == FrequencyYearly
}

// UsesDayOfWeek reports whether the day-of-week pattern field is meaningful
// for this frequency.
func (f Frequency) UsesDayOfWeek() bool {
	return f == FrequencyWeekly || f == FrequencyBiWeekly
}

// MonthsPerStep returns how many calendar months one interval step covers,
// or 0 for day-based frequencies.
func (f Frequency) MonthsPerStep() int {
	switch f {
	case FrequencyMonthly:
		return 1
	case FrequencyQuarterly:
		return 3
	case FrequencyYearly:
		return 12
	default:
		return 0
	}
}

// DaysPerStep returns how many days one interval step covers, or 0 for
// month-based frequencies.
func (f Frequency) DaysPerStep() int {
	switch f {
	case FrequencyDaily:
		return 1
	case FrequencyWeekly:
		return 7
	case FrequencyBiWeekly:
		return 14
	default:
		return 0
	}
}

// ParseFrequency parses a frequency name, case-insensitively.
func ParseFrequency(s string) (Frequency, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "daily":
		return FrequencyDaily, nil
	case "weekly":
		return FrequencyWeekly, nil
	case "biweekly", "bi-weekly":
		return FrequencyBiWeekly, nil
	case "monthly":
		return FrequencyMonthly, nil
	case "quarterly":
		return FrequencyQuarterly, nil
	case "yearly", "annual", "annually":
		return FrequencyYearly, nil
	default:
		return 0, fmt.Errorf("invalid frequency '%s': must be one of Daily, Weekly, BiWeekly, Monthly, Quarterly, Yearly", s)
	}
}

// MarshalJSON renders the frequency by name.
func (f Frequency) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.String())
}

// UnmarshalJSON parses a frequency name.
func (f *Frequency) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	parsed, err := ParseFrequency(name)
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// RecurringSeries defines a recurring transaction: a bill, paycheck or other
// repeating cash flow that generates dated instances over time.
//
// Amount carries the series' canonical sign (negative for expenses). Exactly
// the pattern fields relevant to the frequency are meaningful; the rest are
// ignored by the projection engine, not validated away.
type RecurringSeries struct {
	ID          uuid.UUID       `json:"id"`
	AccountID   uuid.UUID       `json:"accountId"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	CategoryID  *uuid.UUID      `json:"categoryId,omitempty"`

	Frequency   Frequency    `json:"frequency"`
	Interval    int          `json:"interval"`
	DayOfMonth  int          `json:"dayOfMonth,omitempty"`  // Monthly, Quarterly, Yearly
	DayOfWeek   time.Weekday `json:"dayOfWeek,omitempty"`   // Weekly, BiWeekly
	MonthOfYear time.Month   `json:"monthOfYear,omitempty"` // Yearly

	StartDate time.Time  `json:"startDate"`
	EndDate   *time.Time `json:"endDate,omitempty"` // inclusive
	Active    bool       `json:"active"`
	CreatedAt time.Time  `json:"createdAt"`
}

// Validate checks the pattern configuration once, at series creation.
// The projection engine does not re-validate.
func (s *RecurringSeries) Validate() error {
	if strings.TrimSpace(s.Description) == "" {
		return fmt.Errorf("series description cannot be empty")
	}
	if !s.Frequency.IsValid() {
		return fmt.Errorf("invalid frequency: %d", int(s.Frequency))
	}
	if s.Interval < 1 {
		return fmt.Errorf("interval must be at least 1, got %d", s.Interval)
	}
	if s.StartDate.IsZero() {
		return fmt.Errorf("series start date cannot be zero")
	}
	if s.EndDate != nil && s.EndDate.Before(s.StartDate) {
		return fmt.Errorf("series end date %s is before start date %s",
			s.EndDate.Format("2006-01-02"), s.StartDate.Format("2006-01-02"))
	}
	if s.Frequency.UsesDayOfMonth() {
		if s.DayOfMonth < 1 || s.DayOfMonth > 31 {
			return fmt.Errorf("day of month must be between 1 and 31 for %s series, got %d",
				s.Frequency, s.DayOfMonth)
		}
	}
	if s.Frequency.UsesDayOfWeek() {
		if s.DayOfWeek < time.Sunday || s.DayOfWeek > time.Saturday {
			return fmt.Errorf("invalid day of week for %s series: %d", s.Frequency, s.DayOfWeek)
		}
	}
	if s.Frequency == FrequencyYearly {
		if s.MonthOfYear < time.January || s.MonthOfYear > time.December {
			return fmt.Errorf("month of year must be between 1 and 12 for Yearly series, got %d",
				int(s.MonthOfYear))
		}
	}
	return nil
}

// AnchorDay returns the day-of-month the series is anchored to: the explicit
// pattern field when the frequency uses one, otherwise the start date's day.
func (s *RecurringSeries) AnchorDay() int {
	if s.Frequency.UsesDayOfMonth() && s.DayOfMonth >= 1 {
		return s.DayOfMonth
	}
	return s.StartDate.Day()
}

// String returns a short description for logging.
func (s *RecurringSeries) String() string {
	return fmt.Sprintf("RecurringSeries{ID: %s, %q, %s every %d, amount %s}",
		s.ID, s.Description, s.Frequency, s.Interval, s.Amount.String())
}

// RecurringTransferSeries is a recurring transfer between two accounts.
// One instance yields two linked legs: a debit from the source account and a
// credit to the destination. Amount is the positive transfer magnitude.
type RecurringTransferSeries struct {
	ID            uuid.UUID       `json:"id"`
	FromAccountID uuid.UUID       `json:"fromAccountId"`
	ToAccountID   uuid.UUID       `json:"toAccountId"`
	Description   string          `json:"description"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`

	Frequency   Frequency    `json:"frequency"`
	Interval    int          `json:"interval"`
	DayOfMonth  int          `json:"dayOfMonth,omitempty"`
	DayOfWeek   time.Weekday `json:"dayOfWeek,omitempty"`
	MonthOfYear time.Month   `json:"monthOfYear,omitempty"`

	StartDate time.Time  `json:"startDate"`
	EndDate   *time.Time `json:"endDate,omitempty"`
	Active    bool       `json:"active"`
	CreatedAt time.Time  `json:"createdAt"`
}

// Validate checks the transfer pattern configuration. The schedule rules are
// those of RecurringSeries plus the two-account requirement.
func (t *RecurringTransferSeries) Validate() error {
	if t.FromAccountID == t.ToAccountID {
		return fmt.Errorf("transfer source and destination accounts must differ")
	}
	if !t.Amount.IsPositive() {
		return fmt.Errorf("transfer amount must be positive, got %s", t.Amount.String())
	}
	return t.ScheduleSeries().Validate()
}

// ScheduleSeries adapts the transfer to the series shape the projection
// primitives operate on. It carries the schedule and the debit-side sign;
// the projector substitutes account and sign per leg.
func (t *RecurringTransferSeries) ScheduleSeries() *RecurringSeries {
	return &RecurringSeries{
		ID:          t.ID,
		AccountID:   t.FromAccountID,
		Description: t.Description,
		Amount:      t.Amount.Neg(),
		Currency:    t.Currency,
		Frequency:   t.Frequency,
		Interval:    t.Interval,
		DayOfMonth:  t.DayOfMonth,
		DayOfWeek:   t.DayOfWeek,
		MonthOfYear: t.MonthOfYear,
		StartDate:   t.StartDate,
		EndDate:     t.EndDate,
		Active:      t.Active,
		CreatedAt:   t.CreatedAt,
	}
}

// InstanceException overrides a single occurrence of a series without
// altering the series definition. It is keyed by the original scheduled
// date; a rescheduled instance keeps its original key.
//
// Skipped is mutually exclusive with the override fields.
type InstanceException struct {
	SeriesID       uuid.UUID        `json:"seriesId"`
	ScheduledDate  time.Time        `json:"scheduledDate"`
	NewDate        *time.Time       `json:"newDate,omitempty"`
	NewAmount      *decimal.Decimal `json:"newAmount,omitempty"`
	NewDescription *string          `json:"newDescription,omitempty"`
	Skipped        bool             `json:"skipped"`
}

// Validate enforces the skip/override mutual exclusion.
func (e *InstanceException) Validate() error {
	if e.ScheduledDate.IsZero() {
		return fmt.Errorf("exception scheduled date cannot be zero")
	}
	if e.Skipped && e.HasOverrides() {
		return fmt.Errorf("a skipped exception cannot also carry overrides")
	}
	return nil
}

// HasOverrides reports whether the exception modifies the instance rather
// than skipping it.
func (e *InstanceException) HasOverrides() bool {
	return e.NewDate != nil || e.NewAmount != nil || e.NewDescription != nil
}

// Key returns the (series, scheduled date) key the exception is indexed by.
func (e *InstanceException) Key() InstanceKey {
	return NewInstanceKey(e.SeriesID, e.ScheduledDate)
}

// InstanceKey identifies one occurrence of a series by its original
// scheduled date. Exceptions and generated-transaction lookups are both
// indexed by this key, never by the effective date.
type InstanceKey struct {
	SeriesID uuid.UUID
	Date     string // YYYY-MM-DD
}

// NewInstanceKey builds a key from a series id and any time on the
// scheduled day.
func NewInstanceKey(seriesID uuid.UUID, scheduled time.Time) InstanceKey {
	return InstanceKey{SeriesID: seriesID, Date: DateKey(scheduled)}
}

// ProjectedInstance is one concrete occurrence of a series inside a
// projection window. It is engine output, never persisted.
type ProjectedInstance struct {
	SeriesID        uuid.UUID       `json:"seriesId"`
	AccountID       uuid.UUID       `json:"accountId"`
	ScheduledDate   time.Time       `json:"scheduledDate"`
	EffectiveDate   time.Time       `json:"effectiveDate"`
	Amount          decimal.Decimal `json:"amount"`
	Description     string          `json:"description"`
	IsModified      bool            `json:"isModified"`
	IsSkipped       bool            `json:"isSkipped"`
	IsGenerated     bool            `json:"isGenerated"`
	TransactionID   *uuid.UUID      `json:"transactionId,omitempty"`
	SeriesCreatedAt time.Time       `json:"-"` // tie-break input for matching
}

// Key returns the instance's (series, scheduled date) key.
func (pi *ProjectedInstance) Key() InstanceKey {
	return NewInstanceKey(pi.SeriesID, pi.ScheduledDate)
}

// ProjectedTransfer is one occurrence of a transfer series: two linked legs
// sharing a scheduled date.
type ProjectedTransfer struct {
	SeriesID      uuid.UUID         `json:"seriesId"`
	ScheduledDate time.Time         `json:"scheduledDate"`
	Debit         ProjectedInstance `json:"debit"`
	Credit        ProjectedInstance `json:"credit"`
}

// Transaction is an imported bank transaction offered to the matching
// engine. Amount is signed the way the bank reported it.
type Transaction struct {
	ID          uuid.UUID       `json:"id"`
	AccountID   uuid.UUID       `json:"accountId"`
	Date        time.Time       `json:"date"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
}

// String returns a short description for logging.
func (t *Transaction) String() string {
	return fmt.Sprintf("Transaction{ID: %s, %s, %s, %q}",
		t.ID, t.Date.Format("2006-01-02"), t.Amount.String(), t.Description)
}

// MatchStatus is the closed set of reconciliation match lifecycle states.
//
// Suggested transitions to Accepted or Rejected; AutoMatched is terminal and
// reached only at creation when the score clears the auto-match threshold.
type MatchStatus int

const (
	MatchSuggested MatchStatus = iota
	MatchAccepted
	MatchRejected
	MatchAutoMatched
)

// String returns the canonical status name.
func (ms MatchStatus) String() string {
	switch ms {
	case MatchSuggested:
		return "Suggested"
	case MatchAccepted:
		return "Accepted"
	case MatchRejected:
		return "Rejected"
	case MatchAutoMatched:
		return "AutoMatched"
	default:
		return "Unknown"
	}
}

// MarshalJSON renders the status by name.
func (ms MatchStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(ms.String())
}

// IsResolvedPositive reports whether the status pairs the transaction and
// instance for good (subject to an explicit unlink).
func (ms MatchStatus) IsResolvedPositive() bool {
	return ms == MatchAccepted || ms == MatchAutoMatched
}

// IsTerminal reports whether the status admits no further transition.
func (ms MatchStatus) IsTerminal() bool {
	return ms != MatchSuggested
}

// MatchSource records whether a match was produced by a scan or created by
// an explicit user link.
type MatchSource int

const (
	SourceAuto MatchSource = iota
	SourceManual
)

// String returns the canonical source name.
func (s MatchSource) String() string {
	switch s {
	case SourceAuto:
		return "Auto"
	case SourceManual:
		return "Manual"
	default:
		return "Unknown"
	}
}

// MarshalJSON renders the source by name.
func (s MatchSource) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// ConfidenceLevel buckets a confidence score for display and triage. The
// bucketing is independent of the auto-match threshold used for the status
// decision.
type ConfidenceLevel int

const (
	ConfidenceLow ConfidenceLevel = iota
	ConfidenceMedium
	ConfidenceHigh
)

// String returns the canonical level name.
func (cl ConfidenceLevel) String() string {
	switch cl {
	case ConfidenceHigh:
		return "High"
	case ConfidenceMedium:
		return "Medium"
	case ConfidenceLow:
		return "Low"
	default:
		return "Unknown"
	}
}

// MarshalJSON renders the level by name.
func (cl ConfidenceLevel) MarshalJSON() ([]byte, error) {
	return json.Marshal(cl.String())
}

// LevelForScore buckets a [0,1] confidence score.
func LevelForScore(score float64) ConfidenceLevel {
	switch {
	case score >= 0.85:
		return ConfidenceHigh
	case score >= 0.6:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// ReconciliationMatch links an imported transaction to a specific series
// instance. Records are append-only: rejected matches are retained for
// audit, and an unlink creates a superseding record rather than rewriting
// history.
type ReconciliationMatch struct {
	ID             uuid.UUID       `json:"id"`
	TransactionID  uuid.UUID       `json:"transactionId"`
	SeriesID       uuid.UUID       `json:"seriesId"`
	InstanceDate   time.Time       `json:"instanceDate"` // scheduled date of the target instance
	Confidence     float64         `json:"confidence"`
	Level          ConfidenceLevel `json:"level"`
	Status         MatchStatus     `json:"status"`
	Source         MatchSource     `json:"source"`
	AmountVariance decimal.Decimal `json:"amountVariance"` // actual - expected
	DateOffsetDays int             `json:"dateOffsetDays"` // actual date - scheduled date
	CreatedAt      time.Time       `json:"createdAt"`
	ResolvedAt     *time.Time      `json:"resolvedAt,omitempty"`
}

// InstanceKey returns the (series, instance date) key the match targets.
func (m *ReconciliationMatch) InstanceKey() InstanceKey {
	return NewInstanceKey(m.SeriesID, m.InstanceDate)
}

// String returns a short description for logging.
func (m *ReconciliationMatch) String() string {
	return fmt.Sprintf("ReconciliationMatch{ID: %s, tx: %s, series: %s@%s, %.3f %s/%s}",
		m.ID, m.TransactionID, m.SeriesID, m.InstanceDate.Format("2006-01-02"),
		m.Confidence, m.Status, m.Source)
}

// DateOnly truncates a time to midnight UTC. All calendar comparisons in the
// engines go through this.
func DateOnly(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// DateKey formats a time as its YYYY-MM-DD calendar day.
func DateKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// DaysBetween returns the number of calendar days from a to b (negative when
// b is earlier).
func DaysBetween(a, b time.Time) int {
	return int(DateOnly(b).Sub(DateOnly(a)).Hours() / 24)
}

package matcher

import (
	"context"
	"testing"
	"time"

	"recurring-reconciliation-service/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func makeInstance(accountID uuid.UUID, scheduled time.Time, amount float64, description string) models.ProjectedInstance {
	return models.ProjectedInstance{
		SeriesID:      uuid.New(),
		AccountID:     accountID,
		ScheduledDate: scheduled,
		EffectiveDate: scheduled,
		Amount:        decimal.NewFromFloat(amount),
		Description:   description,
	}
}

func makeTransaction(accountID uuid.UUID, date time.Time, amount float64, description string) models.Transaction {
	return models.Transaction{
		ID:          uuid.New(),
		AccountID:   accountID,
		Date:        date,
		Amount:      decimal.NewFromFloat(amount),
		Description: description,
	}
}

func TestEngine_FindCandidates_WorkedExample(t *testing.T) {
	// A utilities bill expected at -120.00 on May 13, imported at -122.00
	// on May 15 under a decorated bank description. The blended score must
	// clear the default auto-match threshold.
	engine := NewEngine(nil)
	tol := DefaultTolerances()
	accountID := uuid.New()

	inst := makeInstance(accountID, day(2026, time.May, 13), -120.00, "Acme Utilities")
	tx := makeTransaction(accountID, day(2026, time.May, 15), -122.00, "ACME UTILITIES 05/15 BILL PMT REF#9X7Q2")

	candidates := engine.FindCandidates(tx, []models.ProjectedInstance{inst}, tol)
	require.Len(t, candidates, 1)

	cand := candidates[0]
	assert.Equal(t, 2, cand.DateOffsetDays)
	assert.True(t, cand.AmountVariance.Equal(decimal.NewFromInt(-2)))
	assert.InDelta(t, 1.0-2.0/7.0, cand.DateScore, 1e-9)
	assert.InDelta(t, 1.0-2.0/12.0, cand.AmountScore, 1e-9)
	assert.InDelta(t, 1.0, cand.DescriptionScore, 1e-9)
	assert.GreaterOrEqual(t, cand.Score, tol.AutoMatchThreshold)
	assert.Equal(t, models.ConfidenceHigh, cand.Level)
}

func TestEngine_FindCandidates_DateGate(t *testing.T) {
	engine := NewEngine(nil)
	tol := DefaultTolerances()
	accountID := uuid.New()

	inst := makeInstance(accountID, day(2026, time.May, 13), -120.00, "Acme Utilities")
	tx := makeTransaction(accountID, day(2026, time.May, 21), -120.00, "Acme Utilities")

	assert.Empty(t, engine.FindCandidates(tx, []models.ProjectedInstance{inst}, tol))
}

func TestEngine_FindCandidates_AmountGate(t *testing.T) {
	engine := NewEngine(nil)
	tol := DefaultTolerances()
	accountID := uuid.New()

	// Ceiling for -100 is max(10%, 10.00) = 10.00.
	inst := makeInstance(accountID, day(2026, time.May, 13), -100.00, "Acme Utilities")
	tx := makeTransaction(accountID, day(2026, time.May, 13), -111.00, "Acme Utilities")

	assert.Empty(t, engine.FindCandidates(tx, []models.ProjectedInstance{inst}, tol))
}

func TestEngine_FindCandidates_SimilarityGateWithExactBypass(t *testing.T) {
	engine := NewEngine(nil)
	tol := DefaultTolerances()
	accountID := uuid.New()

	inst := makeInstance(accountID, day(2026, time.May, 13), -120.00, "Acme Utilities")

	// Dissimilar description on a near date fails the similarity gate.
	offDate := makeTransaction(accountID, day(2026, time.May, 14), -120.00, "Paycheck Deposit")
	assert.Empty(t, engine.FindCandidates(offDate, []models.ProjectedInstance{inst}, tol))

	// The same dissimilar description with exact amount and date bypasses
	// the gate.
	exact := makeTransaction(accountID, day(2026, time.May, 13), -120.00, "Paycheck Deposit")
	candidates := engine.FindCandidates(exact, []models.ProjectedInstance{inst}, tol)
	require.Len(t, candidates, 1)
	assert.Equal(t, 1.0, candidates[0].DateScore)
	assert.Equal(t, 1.0, candidates[0].AmountScore)
}

func TestEngine_FindCandidates_SkipsWrongAccountSkippedGenerated(t *testing.T) {
	engine := NewEngine(nil)
	tol := DefaultTolerances()
	accountID := uuid.New()

	normal := makeInstance(accountID, day(2026, time.May, 13), -120.00, "Acme Utilities")
	otherAccount := makeInstance(uuid.New(), day(2026, time.May, 13), -120.00, "Acme Utilities")
	skipped := makeInstance(accountID, day(2026, time.May, 13), -120.00, "Acme Utilities")
	skipped.IsSkipped = true
	generated := makeInstance(accountID, day(2026, time.May, 13), -120.00, "Acme Utilities")
	generated.IsGenerated = true

	tx := makeTransaction(accountID, day(2026, time.May, 13), -120.00, "Acme Utilities")
	candidates := engine.FindCandidates(tx, []models.ProjectedInstance{normal, otherAccount, skipped, generated}, tol)

	require.Len(t, candidates, 1)
	assert.Equal(t, normal.SeriesID, candidates[0].Instance.SeriesID)
}

func TestEngine_Scan_GreedyOneToOne(t *testing.T) {
	// A large rent transfer lands on the exact rent date and amount, next
	// to the genuine rent payment. Greedy best-first assignment must give
	// the instance to the genuine transaction and leave the transfer
	// unmatched.
	engine := NewEngine(nil)
	tol := DefaultTolerances()
	accountID := uuid.New()

	rent := makeInstance(accountID, day(2026, time.June, 1), -2000.00, "Rent")
	genuine := makeTransaction(accountID, day(2026, time.June, 1), -2000.00, "RENT")
	transfer := makeTransaction(accountID, day(2026, time.June, 1), -2000.00, "TRANSFER TO SAVINGS")

	result, err := engine.Scan(context.Background(),
		[]models.Transaction{transfer, genuine},
		map[uuid.UUID][]models.ProjectedInstance{accountID: {rent}},
		tol)
	require.NoError(t, err)

	require.Len(t, result.Matches, 1)
	assert.Equal(t, genuine.ID, result.Matches[0].TransactionID)
	require.Len(t, result.Unmatched, 1)
	assert.Equal(t, transfer.ID, result.Unmatched[0].ID)
}

func TestEngine_Scan_AutoMatchVersusSuggested(t *testing.T) {
	engine := NewEngine(nil)
	tol := DefaultTolerances()
	accountID := uuid.New()

	exact := makeInstance(accountID, day(2026, time.May, 13), -120.00, "Acme Utilities")
	fuzzy := makeInstance(accountID, day(2026, time.June, 10), -75.00, "Gym Membership")

	txExact := makeTransaction(accountID, day(2026, time.May, 13), -120.00, "Acme Utilities")
	// Offset date and amount drag the score below the auto threshold but
	// above qualification.
	txFuzzy := makeTransaction(accountID, day(2026, time.June, 15), -80.00, "GYM MEMBERSHIP")

	result, err := engine.Scan(context.Background(),
		[]models.Transaction{txExact, txFuzzy},
		map[uuid.UUID][]models.ProjectedInstance{accountID: {exact, fuzzy}},
		tol)
	require.NoError(t, err)

	require.Len(t, result.Matches, 2)
	byTx := map[uuid.UUID]*models.ReconciliationMatch{}
	for _, m := range result.Matches {
		byTx[m.TransactionID] = m
	}

	require.Contains(t, byTx, txExact.ID)
	assert.Equal(t, models.MatchAutoMatched, byTx[txExact.ID].Status)
	require.NotNil(t, byTx[txExact.ID].ResolvedAt)

	require.Contains(t, byTx, txFuzzy.ID)
	assert.Equal(t, models.MatchSuggested, byTx[txFuzzy.ID].Status)
	assert.Nil(t, byTx[txFuzzy.ID].ResolvedAt)

	assert.Equal(t, 1, result.Summary.AutoMatched)
	assert.Equal(t, 1, result.Summary.Suggested)
	assert.Equal(t, 0, result.Summary.Unmatched)
	assert.True(t, result.Summary.TotalAmountMatched.Equal(decimal.NewFromInt(120)))
}

func TestEngine_Scan_Deterministic(t *testing.T) {
	engine := NewEngine(nil)
	tol := DefaultTolerances()
	accountID := uuid.New()

	instances := []models.ProjectedInstance{
		makeInstance(accountID, day(2026, time.May, 13), -120.00, "Acme Utilities"),
		makeInstance(accountID, day(2026, time.May, 14), -120.00, "Acme Utilities"),
	}
	transactions := []models.Transaction{
		makeTransaction(accountID, day(2026, time.May, 13), -120.00, "Acme Utilities"),
		makeTransaction(accountID, day(2026, time.May, 14), -120.00, "Acme Utilities"),
	}
	byAccount := map[uuid.UUID][]models.ProjectedInstance{accountID: instances}

	first, err := engine.Scan(context.Background(), transactions, byAccount, tol)
	require.NoError(t, err)
	second, err := engine.Scan(context.Background(), transactions, byAccount, tol)
	require.NoError(t, err)

	require.Equal(t, len(first.Matches), len(second.Matches))
	for i := range first.Matches {
		assert.Equal(t, first.Matches[i].TransactionID, second.Matches[i].TransactionID)
		assert.Equal(t, first.Matches[i].SeriesID, second.Matches[i].SeriesID)
		assert.Equal(t, first.Matches[i].Confidence, second.Matches[i].Confidence)
	}

	// Each transaction pairs with the instance on its own date.
	for _, m := range first.Matches {
		var tx models.Transaction
		for _, cand := range transactions {
			if cand.ID == m.TransactionID {
				tx = cand
			}
		}
		assert.Equal(t, models.DateOnly(tx.Date), m.InstanceDate)
	}
}

func TestEngine_Scan_InvalidTolerances(t *testing.T) {
	engine := NewEngine(nil)
	tol := DefaultTolerances()
	tol.DateToleranceDays = -1

	_, err := engine.Scan(context.Background(), nil, nil, tol)
	assert.Error(t, err)
}

func TestEngine_Scan_Canceled(t *testing.T) {
	engine := NewEngine(nil)
	accountID := uuid.New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := engine.Scan(ctx,
		[]models.Transaction{makeTransaction(accountID, day(2026, time.May, 13), -120.00, "Acme Utilities")},
		nil, DefaultTolerances())
	assert.Error(t, err)
}

func TestEngine_Scan_RelaxedNeverAutoMatches(t *testing.T) {
	engine := NewEngine(nil)
	accountID := uuid.New()

	inst := makeInstance(accountID, day(2026, time.May, 13), -120.00, "Acme Utilities")
	tx := makeTransaction(accountID, day(2026, time.May, 13), -120.00, "Acme Utilities")

	result, err := engine.Scan(context.Background(),
		[]models.Transaction{tx},
		map[uuid.UUID][]models.ProjectedInstance{accountID: {inst}},
		RelaxedTolerances())
	require.NoError(t, err)

	require.Len(t, result.Matches, 1)
	assert.Equal(t, models.MatchSuggested, result.Matches[0].Status)
	assert.InDelta(t, 1.0, result.Matches[0].Confidence, 1e-9)
}

func TestSortCandidates_TieBreaks(t *testing.T) {
	accountID := uuid.New()
	tx := makeTransaction(accountID, day(2026, time.May, 13), -120.00, "Acme Utilities")

	older := makeInstance(accountID, day(2026, time.May, 13), -120.00, "Acme Utilities")
	older.SeriesCreatedAt = day(2025, time.January, 1)
	newer := makeInstance(accountID, day(2026, time.May, 13), -120.00, "Acme Utilities")
	newer.SeriesCreatedAt = day(2025, time.June, 1)

	candidates := []Candidate{
		{Transaction: tx, Instance: newer, Score: 0.9},
		{Transaction: tx, Instance: older, Score: 0.9},
	}
	sortCandidates(candidates)
	assert.Equal(t, older.SeriesID, candidates[0].Instance.SeriesID)

	// Smaller absolute offset wins before creation time.
	far := Candidate{Transaction: tx, Instance: older, Score: 0.9, DateOffsetDays: 3}
	near := Candidate{Transaction: tx, Instance: newer, Score: 0.9, DateOffsetDays: -1}
	candidates = []Candidate{far, near}
	sortCandidates(candidates)
	assert.Equal(t, -1, candidates[0].DateOffsetDays)

	// Higher score wins regardless of everything else.
	low := Candidate{Transaction: tx, Instance: older, Score: 0.5}
	high := Candidate{Transaction: tx, Instance: newer, Score: 0.95, DateOffsetDays: 5}
	candidates = []Candidate{low, high}
	sortCandidates(candidates)
	assert.Equal(t, 0.95, candidates[0].Score)
}

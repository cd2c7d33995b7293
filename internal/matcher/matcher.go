package matcher

import (
	"context"
	"math"
	"sort"
	"time"

	"recurring-reconciliation-service/internal/models"
	"recurring-reconciliation-service/internal/similarity"
	corerrors "recurring-reconciliation-service/pkg/errors"
	"recurring-reconciliation-service/pkg/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Engine scores imported transactions against projected instances. It holds
// no matching state: tolerances arrive as an explicit parameter on every
// call, and two concurrent scans never share anything but the inputs the
// caller hands them.
type Engine struct {
	log   logger.Logger
	newID func() uuid.UUID
	now   func() time.Time
}

// NewEngine creates a matching engine. A nil logger discards output.
func NewEngine(log logger.Logger) *Engine {
	if log == nil {
		log = logger.Discard()
	}
	return &Engine{
		log:   log.WithComponent("matcher"),
		newID: uuid.New,
		now:   time.Now,
	}
}

// Candidate is one scored pairing of a transaction with a projected
// instance. Sub-scores are retained for transparency.
type Candidate struct {
	Transaction models.Transaction
	Instance    models.ProjectedInstance

	Score            float64
	Level            models.ConfidenceLevel
	DateScore        float64
	AmountScore      float64
	DescriptionScore float64

	DateOffsetDays int             // transaction date - scheduled date
	AmountVariance decimal.Decimal // actual - expected
}

// ScanSummary aggregates one reconciliation pass.
type ScanSummary struct {
	Transactions       int             `json:"transactions"`
	Instances          int             `json:"instances"`
	AutoMatched        int             `json:"autoMatched"`
	Suggested          int             `json:"suggested"`
	Unmatched          int             `json:"unmatched"`
	TotalAmountMatched decimal.Decimal `json:"totalAmountMatched"`
}

// ScanResult is the output of one reconciliation pass: the created match
// records (AutoMatched or Suggested) plus the transactions nothing
// qualified for.
type ScanResult struct {
	Matches   []*models.ReconciliationMatch `json:"matches"`
	Unmatched []models.Transaction          `json:"unmatched"`
	Summary   ScanSummary                   `json:"summary"`
}

// FindCandidates returns the qualifying instances for one transaction,
// ordered best-first. A candidate qualifies when the scheduled date is
// within the date tolerance, the amount is within the effective ceiling,
// and either the description similarity clears the threshold or amount and
// date match exactly. Skipped and already-generated instances are never
// candidates, and only instances from the transaction's account are
// considered.
func (e *Engine) FindCandidates(tx models.Transaction, instances []models.ProjectedInstance, tol MatchingTolerances) []Candidate {
	var candidates []Candidate
	for _, inst := range instances {
		if inst.AccountID != tx.AccountID || inst.IsSkipped || inst.IsGenerated {
			continue
		}
		cand, ok := e.score(tx, inst, tol)
		if !ok {
			continue
		}
		candidates = append(candidates, cand)
	}
	sortCandidates(candidates)
	return candidates
}

// score computes the blended confidence for one pairing and reports whether
// it qualifies as a candidate under the tolerances.
func (e *Engine) score(tx models.Transaction, inst models.ProjectedInstance, tol MatchingTolerances) (Candidate, bool) {
	cand := Candidate{
		Transaction:    tx,
		Instance:       inst,
		DateOffsetDays: models.DaysBetween(inst.ScheduledDate, tx.Date),
		AmountVariance: tx.Amount.Sub(inst.Amount),
	}

	offset := cand.DateOffsetDays
	if offset < 0 {
		offset = -offset
	}
	if offset > tol.DateToleranceDays {
		return cand, false
	}
	if !tol.WithinAmountTolerance(inst.Amount, tx.Amount) {
		return cand, false
	}

	if tol.DateToleranceDays > 0 {
		cand.DateScore = clamp01(1.0 - float64(offset)/float64(tol.DateToleranceDays))
	} else {
		cand.DateScore = 1.0
	}

	ceiling := tol.AmountCeiling(inst.Amount)
	if ceiling.IsZero() {
		cand.AmountScore = 1.0 // variance already proven zero by the tolerance check
	} else {
		ratio, _ := cand.AmountVariance.Abs().Div(ceiling).Float64()
		cand.AmountScore = clamp01(1.0 - math.Min(1.0, ratio))
	}

	cand.DescriptionScore = similarity.Similarity(tx.Description, inst.Description)

	exact := cand.DateOffsetDays == 0 && cand.AmountVariance.IsZero()
	if cand.DescriptionScore < tol.SimilarityThreshold && !exact {
		return cand, false
	}

	w := tol.Weights
	cand.Score = clamp01(w.Date*cand.DateScore + w.Amount*cand.AmountScore + w.Description*cand.DescriptionScore)
	cand.Level = models.LevelForScore(cand.Score)
	return cand, true
}

// Scan runs one reconciliation pass: it scores every transaction against
// the instances of its account, resolves the 1:1 pairing greedily by
// descending score, and materializes match records. Matches at or above the
// auto-match threshold are created AutoMatched; the rest are Suggested for
// review.
//
// The pass checks ctx between per-transaction iterations so large imports
// stay cancelable; the scoring itself never blocks.
func (e *Engine) Scan(
	ctx context.Context,
	transactions []models.Transaction,
	instancesByAccount map[uuid.UUID][]models.ProjectedInstance,
	tol MatchingTolerances,
) (*ScanResult, error) {
	if err := tol.Validate(); err != nil {
		return nil, corerrors.ConfigurationError(corerrors.CodeInvalidTolerances, "tolerances", err)
	}

	instanceCount := 0
	for _, insts := range instancesByAccount {
		instanceCount += len(insts)
	}

	var pool []Candidate
	for _, tx := range transactions {
		if err := ctx.Err(); err != nil {
			return nil, corerrors.MatchingError(corerrors.CodeScanCanceled, "candidate search", err)
		}
		pool = append(pool, e.FindCandidates(tx, instancesByAccount[tx.AccountID], tol)...)
	}
	sortCandidates(pool)

	// Greedy best-first assignment keeps the pairing 1:1: once a
	// transaction or instance is claimed by a higher-scoring candidate it
	// is unavailable to the rest of the pool.
	claimedTx := make(map[uuid.UUID]bool)
	claimedInstance := make(map[models.InstanceKey]bool)

	result := &ScanResult{
		Summary: ScanSummary{
			Transactions:       len(transactions),
			Instances:          instanceCount,
			TotalAmountMatched: decimal.Zero,
		},
	}

	for _, cand := range pool {
		if claimedTx[cand.Transaction.ID] || claimedInstance[cand.Instance.Key()] {
			continue
		}
		claimedTx[cand.Transaction.ID] = true
		claimedInstance[cand.Instance.Key()] = true

		match := e.materialize(cand, tol)
		result.Matches = append(result.Matches, match)
		if match.Status == models.MatchAutoMatched {
			result.Summary.AutoMatched++
			result.Summary.TotalAmountMatched = result.Summary.TotalAmountMatched.Add(cand.Transaction.Amount.Abs())
		} else {
			result.Summary.Suggested++
		}
	}

	for _, tx := range transactions {
		if !claimedTx[tx.ID] {
			result.Unmatched = append(result.Unmatched, tx)
		}
	}
	result.Summary.Unmatched = len(result.Unmatched)

	e.log.WithFields(logger.Fields{
		"transactions": result.Summary.Transactions,
		"auto_matched": result.Summary.AutoMatched,
		"suggested":    result.Summary.Suggested,
		"unmatched":    result.Summary.Unmatched,
	}).Info("reconciliation scan complete")

	return result, nil
}

// materialize turns a winning candidate into a match record.
func (e *Engine) materialize(cand Candidate, tol MatchingTolerances) *models.ReconciliationMatch {
	match := &models.ReconciliationMatch{
		ID:             e.newID(),
		TransactionID:  cand.Transaction.ID,
		SeriesID:       cand.Instance.SeriesID,
		InstanceDate:   models.DateOnly(cand.Instance.ScheduledDate),
		Confidence:     cand.Score,
		Level:          cand.Level,
		Status:         models.MatchSuggested,
		Source:         models.SourceAuto,
		AmountVariance: cand.AmountVariance,
		DateOffsetDays: cand.DateOffsetDays,
		CreatedAt:      e.now().UTC(),
	}
	if cand.Score >= tol.AutoMatchThreshold {
		match.Status = models.MatchAutoMatched
		resolved := match.CreatedAt
		match.ResolvedAt = &resolved
	}
	return match
}

// sortCandidates orders candidates deterministically: score descending,
// then smaller absolute date offset, then older series, then series id,
// then transaction id as the final total-order guarantee.
func sortCandidates(candidates []Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		ao, bo := absInt(a.DateOffsetDays), absInt(b.DateOffsetDays)
		if ao != bo {
			return ao < bo
		}
		if !a.Instance.SeriesCreatedAt.Equal(b.Instance.SeriesCreatedAt) {
			return a.Instance.SeriesCreatedAt.Before(b.Instance.SeriesCreatedAt)
		}
		if a.Instance.SeriesID != b.Instance.SeriesID {
			return a.Instance.SeriesID.String() < b.Instance.SeriesID.String()
		}
		return a.Transaction.ID.String() < b.Transaction.ID.String()
	})
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

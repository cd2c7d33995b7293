package matcher

import (
	"context"
	"time"

	"recurring-reconciliation-service/internal/models"
	corerrors "recurring-reconciliation-service/pkg/errors"
	"recurring-reconciliation-service/pkg/logger"

	"github.com/google/uuid"
)

// MatchStore is the persistence contract the lifecycle manager operates
// against. The engines never touch storage directly; the store owner is
// responsible for making Create/Update transitions transactional so the
// 1:1 resolved-positive invariant survives concurrent callers
// (check-and-set, surfaced as a conflict).
type MatchStore interface {
	// Get returns the match by id, or a not-found error.
	Get(ctx context.Context, id uuid.UUID) (*models.ReconciliationMatch, error)

	// Create persists a new match record. It must fail with a conflict
	// when the record is resolved-positive and the transaction or instance
	// already has a resolved-positive match.
	Create(ctx context.Context, match *models.ReconciliationMatch) error

	// Update persists a lifecycle transition. It must fail with a conflict
	// when the transition would violate the 1:1 invariant.
	Update(ctx context.Context, match *models.ReconciliationMatch) error

	// ResolvedForTransaction returns the current resolved-positive match
	// for a transaction, or nil when there is none.
	ResolvedForTransaction(ctx context.Context, transactionID uuid.UUID) (*models.ReconciliationMatch, error)

	// ResolvedForInstance returns the current resolved-positive match for
	// a (series, instance date) pair, or nil when there is none.
	ResolvedForInstance(ctx context.Context, key models.InstanceKey) (*models.ReconciliationMatch, error)
}

// Lifecycle applies match state transitions: accept, reject, manual link,
// unlink, and their bulk forms. All writes go through the injected store.
type Lifecycle struct {
	store MatchStore
	log   logger.Logger
	newID func() uuid.UUID
	now   func() time.Time
}

// NewLifecycle creates a lifecycle manager over a match store.
func NewLifecycle(store MatchStore, log logger.Logger) *Lifecycle {
	if log == nil {
		log = logger.Discard()
	}
	return &Lifecycle{
		store: store,
		log:   log.WithComponent("match_lifecycle"),
		newID: uuid.New,
		now:   time.Now,
	}
}

// Accept transitions a Suggested match to Accepted. It fails with a
// conflict when the match is not Suggested, or when the transaction or
// instance has meanwhile been claimed by another resolved-positive match.
// Generating the concrete transaction for the accepted instance is the
// caller's side effect, not the engine's.
func (l *Lifecycle) Accept(ctx context.Context, matchID uuid.UUID) (*models.ReconciliationMatch, error) {
	match, err := l.store.Get(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if match.Status != models.MatchSuggested {
		return nil, corerrors.ConflictError(corerrors.CodeInvalidTransition, "accept",
			"match is already "+match.Status.String())
	}
	if err := l.checkUnclaimed(ctx, match.TransactionID, match.InstanceKey()); err != nil {
		return nil, err
	}

	match.Status = models.MatchAccepted
	resolved := l.now().UTC()
	match.ResolvedAt = &resolved
	if err := l.store.Update(ctx, match); err != nil {
		return nil, err
	}

	l.log.WithField("match_id", matchID.String()).Info("match accepted")
	return match, nil
}

// Reject transitions a Suggested match to Rejected. The record is retained
// for audit, and the transaction remains available for other candidates.
func (l *Lifecycle) Reject(ctx context.Context, matchID uuid.UUID) (*models.ReconciliationMatch, error) {
	match, err := l.store.Get(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if match.Status != models.MatchSuggested {
		return nil, corerrors.ConflictError(corerrors.CodeInvalidTransition, "reject",
			"match is already "+match.Status.String())
	}

	match.Status = models.MatchRejected
	resolved := l.now().UTC()
	match.ResolvedAt = &resolved
	if err := l.store.Update(ctx, match); err != nil {
		return nil, err
	}

	l.log.WithField("match_id", matchID.String()).Info("match rejected")
	return match, nil
}

// ManualMatch links a transaction to an exact instance, bypassing scoring.
// The created record is Accepted with source Manual and full confidence.
// Re-linking the same pair succeeds and supersedes the earlier record; it
// fails with a conflict only when the instance or the transaction is held
// by a resolved-positive match for a different pair, in which case the
// caller must reject or unlink first.
func (l *Lifecycle) ManualMatch(ctx context.Context, transactionID, seriesID uuid.UUID, instanceDate time.Time) (*models.ReconciliationMatch, error) {
	instanceDate = models.DateOnly(instanceDate)
	key := models.NewInstanceKey(seriesID, instanceDate)
	if err := l.checkUnclaimed(ctx, transactionID, key); err != nil {
		return nil, err
	}

	created := l.now().UTC()
	match := &models.ReconciliationMatch{
		ID:            l.newID(),
		TransactionID: transactionID,
		SeriesID:      seriesID,
		InstanceDate:  instanceDate,
		Confidence:    1.0,
		Level:         models.ConfidenceHigh,
		Status:        models.MatchAccepted,
		Source:        models.SourceManual,
		CreatedAt:     created,
		ResolvedAt:    &created,
	}
	if err := l.store.Create(ctx, match); err != nil {
		return nil, err
	}

	l.log.WithFields(logger.Fields{
		"transaction_id": transactionID.String(),
		"series_id":      seriesID.String(),
		"instance_date":  models.DateKey(instanceDate),
	}).Info("manual match created")
	return match, nil
}

// Unlink releases a resolved-positive match by appending a superseding
// Rejected record for the same pair. History is never mutated: the
// original record keeps its status, and resolved-positive lookups follow
// the latest record for the pair.
func (l *Lifecycle) Unlink(ctx context.Context, matchID uuid.UUID) (*models.ReconciliationMatch, error) {
	match, err := l.store.Get(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if !match.Status.IsResolvedPositive() {
		return nil, corerrors.ConflictError(corerrors.CodeInvalidTransition, "unlink",
			"match is "+match.Status.String()+", not resolved-positive")
	}

	created := l.now().UTC()
	release := &models.ReconciliationMatch{
		ID:             l.newID(),
		TransactionID:  match.TransactionID,
		SeriesID:       match.SeriesID,
		InstanceDate:   match.InstanceDate,
		Confidence:     match.Confidence,
		Level:          match.Level,
		Status:         models.MatchRejected,
		Source:         models.SourceManual,
		AmountVariance: match.AmountVariance,
		DateOffsetDays: match.DateOffsetDays,
		CreatedAt:      created,
		ResolvedAt:     &created,
	}
	if err := l.store.Create(ctx, release); err != nil {
		return nil, err
	}

	l.log.WithField("match_id", matchID.String()).Info("match unlinked")
	return release, nil
}

// Outcome is the per-item result of a bulk operation.
type Outcome struct {
	MatchID uuid.UUID                   `json:"matchId"`
	Match   *models.ReconciliationMatch `json:"match,omitempty"`
	Err     error                       `json:"-"`
}

// BatchResult collects per-item outcomes plus aggregate counts. One failed
// item never aborts the rest of the batch.
type BatchResult struct {
	Outcomes  []Outcome `json:"outcomes"`
	Succeeded int       `json:"succeeded"`
	Failed    int       `json:"failed"`
}

// AcceptAll accepts each match independently, collecting per-item
// outcomes.
func (l *Lifecycle) AcceptAll(ctx context.Context, matchIDs []uuid.UUID) *BatchResult {
	return l.bulk(ctx, matchIDs, l.Accept)
}

// RejectAll rejects each match independently, collecting per-item
// outcomes.
func (l *Lifecycle) RejectAll(ctx context.Context, matchIDs []uuid.UUID) *BatchResult {
	return l.bulk(ctx, matchIDs, l.Reject)
}

func (l *Lifecycle) bulk(
	ctx context.Context,
	matchIDs []uuid.UUID,
	op func(context.Context, uuid.UUID) (*models.ReconciliationMatch, error),
) *BatchResult {
	result := &BatchResult{Outcomes: make([]Outcome, 0, len(matchIDs))}
	for _, id := range matchIDs {
		match, err := op(ctx, id)
		outcome := Outcome{MatchID: id, Match: match, Err: err}
		if err != nil {
			result.Failed++
			l.log.WithError(err).WithField("match_id", id.String()).Warn("bulk operation item failed")
		} else {
			result.Succeeded++
		}
		result.Outcomes = append(result.Outcomes, outcome)
	}
	return result
}

// checkUnclaimed enforces the 1:1 invariant before a positive resolution:
// neither the transaction nor the instance may be held by a
// resolved-positive match for a different pair. A resolved match for the
// exact same (transaction, instance) pair does not block; the new record
// supersedes it.
func (l *Lifecycle) checkUnclaimed(ctx context.Context, transactionID uuid.UUID, key models.InstanceKey) error {
	if existing, err := l.store.ResolvedForTransaction(ctx, transactionID); err != nil {
		return err
	} else if existing != nil && !samePair(existing, transactionID, key) {
		return corerrors.ConflictError(corerrors.CodeTransactionClaimed, "link",
			"transaction "+transactionID.String()+" already has a resolved match").
			WithContext("existing_match_id", existing.ID.String())
	}
	if existing, err := l.store.ResolvedForInstance(ctx, key); err != nil {
		return err
	} else if existing != nil && !samePair(existing, transactionID, key) {
		return corerrors.ConflictError(corerrors.CodeInstanceClaimed, "link",
			"instance "+key.Date+" of series "+key.SeriesID.String()+" already has a resolved match").
			WithContext("existing_match_id", existing.ID.String())
	}
	return nil
}

func samePair(match *models.ReconciliationMatch, transactionID uuid.UUID, key models.InstanceKey) bool {
	return match.TransactionID == transactionID && match.InstanceKey() == key
}

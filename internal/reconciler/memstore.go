package reconciler

import (
	"context"
	"sort"
	"sync"
	"time"

	"recurring-reconciliation-service/internal/matcher"
	"recurring-reconciliation-service/internal/models"
	corerrors "recurring-reconciliation-service/pkg/errors"

	"github.com/google/uuid"
)

// MemoryMatchStore is a concurrency-safe in-memory matcher.MatchStore.
// Records are append-ordered and copied on every read and write, so callers
// can mutate what they hold without racing the store.
type MemoryMatchStore struct {
	mu      sync.RWMutex
	byID    map[uuid.UUID]*models.ReconciliationMatch
	ordered []uuid.UUID
}

var _ matcher.MatchStore = (*MemoryMatchStore)(nil)

// NewMemoryMatchStore creates an empty store.
func NewMemoryMatchStore() *MemoryMatchStore {
	return &MemoryMatchStore{
		byID: make(map[uuid.UUID]*models.ReconciliationMatch),
	}
}

// Get returns a copy of the match by id.
func (s *MemoryMatchStore) Get(ctx context.Context, id uuid.UUID) (*models.ReconciliationMatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	match, ok := s.byID[id]
	if !ok {
		return nil, corerrors.NotFoundError(corerrors.CodeMatchNotFound, "match", id.String())
	}
	return copyMatch(match), nil
}

// Create persists a new match record, rejecting resolved-positive records
// whose transaction or instance is already claimed.
func (s *MemoryMatchStore) Create(ctx context.Context, match *models.ReconciliationMatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[match.ID]; exists {
		return corerrors.ConflictError(corerrors.CodeInvalidTransition, "create",
			"match id already exists")
	}
	if match.Status.IsResolvedPositive() {
		if err := s.checkClaimedLocked(match); err != nil {
			return err
		}
	}

	s.byID[match.ID] = copyMatch(match)
	s.ordered = append(s.ordered, match.ID)
	return nil
}

// Update replaces an existing record with a new state, checking the 1:1
// invariant when the transition resolves the match positively.
func (s *MemoryMatchStore) Update(ctx context.Context, match *models.ReconciliationMatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[match.ID]; !ok {
		return corerrors.NotFoundError(corerrors.CodeMatchNotFound, "match", match.ID.String())
	}
	if match.Status.IsResolvedPositive() {
		if err := s.checkClaimedLocked(match); err != nil {
			return err
		}
	}

	s.byID[match.ID] = copyMatch(match)
	return nil
}

// ResolvedForTransaction returns the transaction's current resolved-positive
// match, if any. Later records supersede earlier ones for the same pair, so
// only the newest record per (transaction, instance) pair counts.
func (s *MemoryMatchStore) ResolvedForTransaction(ctx context.Context, transactionID uuid.UUID) (*models.ReconciliationMatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, match := range s.currentLocked() {
		if match.TransactionID == transactionID && match.Status.IsResolvedPositive() {
			return copyMatch(match), nil
		}
	}
	return nil, nil
}

// ResolvedForInstance returns the instance's current resolved-positive
// match, if any.
func (s *MemoryMatchStore) ResolvedForInstance(ctx context.Context, key models.InstanceKey) (*models.ReconciliationMatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, match := range s.currentLocked() {
		if match.InstanceKey() == key && match.Status.IsResolvedPositive() {
			return copyMatch(match), nil
		}
	}
	return nil, nil
}

// MatchFilter narrows List results. Nil fields do not filter. The date
// bounds apply to the instance date, both inclusive.
type MatchFilter struct {
	Status       *models.MatchStatus
	SeriesID     *uuid.UUID
	InstanceFrom *time.Time
	InstanceTo   *time.Time
}

// List returns copies of the current record per (transaction, instance)
// pair, in creation order, optionally filtered.
func (s *MemoryMatchStore) List(ctx context.Context, filter MatchFilter) ([]*models.ReconciliationMatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.ReconciliationMatch
	for _, match := range s.currentLocked() {
		if filter.Status != nil && match.Status != *filter.Status {
			continue
		}
		if filter.SeriesID != nil && match.SeriesID != *filter.SeriesID {
			continue
		}
		if filter.InstanceFrom != nil && match.InstanceDate.Before(models.DateOnly(*filter.InstanceFrom)) {
			continue
		}
		if filter.InstanceTo != nil && match.InstanceDate.After(models.DateOnly(*filter.InstanceTo)) {
			continue
		}
		out = append(out, copyMatch(match))
	}
	return out, nil
}

// History returns every record ever written for a (transaction, instance)
// pair, oldest first. Superseded records stay visible here.
func (s *MemoryMatchStore) History(ctx context.Context, transactionID uuid.UUID, key models.InstanceKey) ([]*models.ReconciliationMatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.ReconciliationMatch
	for _, id := range s.ordered {
		match := s.byID[id]
		if match.TransactionID == transactionID && match.InstanceKey() == key {
			out = append(out, copyMatch(match))
		}
	}
	return out, nil
}

// checkClaimedLocked rejects a would-be resolved-positive record whose
// transaction or instance is already claimed by a different record.
func (s *MemoryMatchStore) checkClaimedLocked(match *models.ReconciliationMatch) error {
	for _, existing := range s.currentLocked() {
		if existing.ID == match.ID || !existing.Status.IsResolvedPositive() {
			continue
		}
		// A newer record for the same pair supersedes, never conflicts.
		if existing.TransactionID == match.TransactionID && existing.InstanceKey() == match.InstanceKey() {
			continue
		}
		if existing.TransactionID == match.TransactionID {
			return corerrors.ConflictError(corerrors.CodeTransactionClaimed, "persist",
				"transaction already has a resolved match").
				WithContext("existing_match_id", existing.ID.String())
		}
		if existing.InstanceKey() == match.InstanceKey() {
			return corerrors.ConflictError(corerrors.CodeInstanceClaimed, "persist",
				"instance already has a resolved match").
				WithContext("existing_match_id", existing.ID.String())
		}
	}
	return nil
}

// currentLocked returns the newest record per (transaction, instance) pair
// in creation order. Callers hold at least the read lock.
func (s *MemoryMatchStore) currentLocked() []*models.ReconciliationMatch {
	type pair struct {
		tx  uuid.UUID
		key models.InstanceKey
	}
	latest := make(map[pair]int, len(s.ordered))
	for i, id := range s.ordered {
		match := s.byID[id]
		latest[pair{match.TransactionID, match.InstanceKey()}] = i
	}

	indexes := make([]int, 0, len(latest))
	for _, i := range latest {
		indexes = append(indexes, i)
	}
	sort.Ints(indexes)

	out := make([]*models.ReconciliationMatch, 0, len(indexes))
	for _, i := range indexes {
		out = append(out, s.byID[s.ordered[i]])
	}
	return out
}

func copyMatch(match *models.ReconciliationMatch) *models.ReconciliationMatch {
	clone := *match
	if match.ResolvedAt != nil {
		resolved := *match.ResolvedAt
		clone.ResolvedAt = &resolved
	}
	return &clone
}

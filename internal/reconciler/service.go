// Package reconciler orchestrates the projection and matching engines over
// the external collaborator contracts: it pulls series, exceptions and
// candidate transactions from the stores, runs window projections and
// reconciliation scans, and persists the resulting matches.
//
// The engines themselves stay pure; everything stateful lives behind the
// store interfaces, so one Service can fan reconciliation passes out across
// independent accounts with no shared-memory coordination.
package reconciler

import (
	"context"
	"time"

	"recurring-reconciliation-service/internal/matcher"
	"recurring-reconciliation-service/internal/models"
	"recurring-reconciliation-service/internal/recurrence"
	corerrors "recurring-reconciliation-service/pkg/errors"
	"recurring-reconciliation-service/pkg/logger"

	"github.com/google/uuid"
)

// SeriesStore supplies recurring series and their exception overrides.
type SeriesStore interface {
	// ActiveSeries returns active series, optionally scoped to one
	// account.
	ActiveSeries(ctx context.Context, accountID *uuid.UUID) ([]*models.RecurringSeries, error)

	// Exceptions returns the per-instance overrides for a series.
	Exceptions(ctx context.Context, seriesID uuid.UUID) ([]models.InstanceException, error)

	// GeneratedKeys returns the instance keys already materialized as
	// transactions inside the window, with the transaction that realized
	// each.
	GeneratedKeys(ctx context.Context, seriesID uuid.UUID, windowStart, windowEnd time.Time) (recurrence.GeneratedKeys, error)
}

// TransactionSource supplies imported transactions for a reconciliation
// pass.
type TransactionSource interface {
	// Candidates returns the account's imported transactions dated inside
	// the window.
	Candidates(ctx context.Context, accountID uuid.UUID, windowStart, windowEnd time.Time) ([]models.Transaction, error)
}

// Service wires the engines to the stores.
type Service struct {
	series  SeriesStore
	source  TransactionSource
	matches matcher.MatchStore

	engine    *matcher.Engine
	lifecycle *matcher.Lifecycle
	log       logger.Logger
}

// NewService creates the orchestration service.
func NewService(series SeriesStore, source TransactionSource, matches matcher.MatchStore, log logger.Logger) *Service {
	if log == nil {
		log = logger.Discard()
	}
	return &Service{
		series:    series,
		source:    source,
		matches:   matches,
		engine:    matcher.NewEngine(log),
		lifecycle: matcher.NewLifecycle(matches, log),
		log:       log.WithComponent("reconciler"),
	}
}

// Lifecycle exposes the match lifecycle manager for accept/reject/manual
// operations.
func (s *Service) Lifecycle() *matcher.Lifecycle {
	return s.lifecycle
}

// ProjectWindow expands every active series (optionally one account's) over
// the window, instances ordered per series by scheduled date.
func (s *Service) ProjectWindow(ctx context.Context, accountID *uuid.UUID, windowStart, windowEnd time.Time) ([]models.ProjectedInstance, error) {
	seriesList, err := s.series.ActiveSeries(ctx, accountID)
	if err != nil {
		return nil, err
	}

	var instances []models.ProjectedInstance
	for _, series := range seriesList {
		if err := ctx.Err(); err != nil {
			return nil, corerrors.MatchingError(corerrors.CodeScanCanceled, "window projection", err)
		}
		projected, err := s.projectSeries(ctx, series, windowStart, windowEnd)
		if err != nil {
			return nil, err
		}
		instances = append(instances, projected...)
	}
	return instances, nil
}

// PastDue returns not-yet-generated, not-skipped instances scheduled in
// [asOf - lookbackDays, asOf) across every active series in scope.
func (s *Service) PastDue(ctx context.Context, accountID *uuid.UUID, asOf time.Time, lookbackDays int) ([]models.ProjectedInstance, error) {
	seriesList, err := s.series.ActiveSeries(ctx, accountID)
	if err != nil {
		return nil, err
	}

	windowStart := models.DateOnly(asOf).AddDate(0, 0, -lookbackDays)
	windowEnd := models.DateOnly(asOf)

	var pastDue []models.ProjectedInstance
	for _, series := range seriesList {
		if err := ctx.Err(); err != nil {
			return nil, corerrors.MatchingError(corerrors.CodeScanCanceled, "past-due search", err)
		}
		exceptions, err := s.series.Exceptions(ctx, series.ID)
		if err != nil {
			return nil, err
		}
		generated, err := s.series.GeneratedKeys(ctx, series.ID, windowStart, windowEnd)
		if err != nil {
			return nil, err
		}
		pastDue = append(pastDue, recurrence.FindPastDue(series, exceptions, asOf, lookbackDays, generated)...)
	}
	return pastDue, nil
}

// Reconcile runs one reconciliation pass for an account: it projects the
// account's instances over the window, pulls the imported transactions,
// scans, and persists the resulting matches. Persistence failures on
// individual matches (conflicts against already-claimed pairs) are
// collected per item, not fatal to the pass.
func (s *Service) Reconcile(
	ctx context.Context,
	accountID uuid.UUID,
	windowStart, windowEnd time.Time,
	tol matcher.MatchingTolerances,
) (*matcher.ScanResult, *matcher.BatchResult, error) {
	instances, err := s.ProjectWindow(ctx, &accountID, windowStart, windowEnd)
	if err != nil {
		return nil, nil, err
	}

	transactions, err := s.source.Candidates(ctx, accountID, windowStart, windowEnd)
	if err != nil {
		return nil, nil, err
	}

	instancesByAccount := map[uuid.UUID][]models.ProjectedInstance{accountID: instances}
	result, err := s.engine.Scan(ctx, transactions, instancesByAccount, tol)
	if err != nil {
		return nil, nil, err
	}

	persisted := &matcher.BatchResult{}
	for _, match := range result.Matches {
		outcome := matcher.Outcome{MatchID: match.ID, Match: match}
		if err := s.matches.Create(ctx, match); err != nil {
			outcome.Err = err
			persisted.Failed++
			s.log.WithError(err).WithField("match_id", match.ID.String()).Warn("match persistence failed")
		} else {
			persisted.Succeeded++
		}
		persisted.Outcomes = append(persisted.Outcomes, outcome)
	}

	return result, persisted, nil
}

// ReconcileAll runs independent passes for the given accounts, isolating
// per-account failures.
func (s *Service) ReconcileAll(
	ctx context.Context,
	accountIDs []uuid.UUID,
	windowStart, windowEnd time.Time,
	tol matcher.MatchingTolerances,
) (map[uuid.UUID]*matcher.ScanResult, error) {
	results := make(map[uuid.UUID]*matcher.ScanResult, len(accountIDs))
	var failures []*corerrors.Error
	for _, accountID := range accountIDs {
		if err := ctx.Err(); err != nil {
			return results, corerrors.MatchingError(corerrors.CodeScanCanceled, "multi-account reconciliation", err)
		}
		result, _, err := s.Reconcile(ctx, accountID, windowStart, windowEnd, tol)
		if err != nil {
			typed, ok := corerrors.As(err)
			if !ok {
				typed = corerrors.InternalError("account reconciliation", err)
			}
			failures = append(failures, typed.WithContext("account_id", accountID.String()))
			continue
		}
		results[accountID] = result
	}
	if len(failures) > 0 {
		return results, corerrors.NewSummary(failures)
	}
	return results, nil
}

func (s *Service) projectSeries(ctx context.Context, series *models.RecurringSeries, windowStart, windowEnd time.Time) ([]models.ProjectedInstance, error) {
	exceptions, err := s.series.Exceptions(ctx, series.ID)
	if err != nil {
		return nil, err
	}
	generated, err := s.series.GeneratedKeys(ctx, series.ID, windowStart, windowEnd)
	if err != nil {
		return nil, err
	}
	return recurrence.ProjectInstances(series, exceptions, windowStart, windowEnd, generated), nil
}

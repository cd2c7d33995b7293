package recurrence

import (
	"time"

	"recurring-reconciliation-service/internal/models"

	"github.com/google/uuid"
)

// GeneratedKeys maps instance keys to the transaction that already
// materialized the instance. Callers obtain it from their series store for
// the projection window.
type GeneratedKeys map[models.InstanceKey]uuid.UUID

// ProjectInstances expands a series over [windowStart, windowEnd], overlaying
// any matching exceptions and marking instances that already have a concrete
// transaction. The result is ordered by scheduled date and is a pure
// function of its inputs: projecting the same window twice yields identical
// output.
//
// An inactive series or an inverted window yields an empty projection, not
// an error. The series is assumed pattern-valid (validated at creation).
func ProjectInstances(
	series *models.RecurringSeries,
	exceptions []models.InstanceException,
	windowStart, windowEnd time.Time,
	generated GeneratedKeys,
) []models.ProjectedInstance {
	if series == nil || !series.Active {
		return nil
	}

	windowStart = models.DateOnly(windowStart)
	windowEnd = models.DateOnly(windowEnd)
	if windowEnd.Before(windowStart) {
		return nil
	}

	limit := windowEnd
	if series.EndDate != nil {
		if end := models.DateOnly(*series.EndDate); end.Before(limit) {
			limit = end
		}
	}

	overrides := indexExceptions(exceptions)

	var instances []models.ProjectedInstance
	scheduled, ok := FirstOnOrAfter(series, windowStart)
	for ok && !scheduled.After(limit) {
		instances = append(instances, buildInstance(series, scheduled, overrides, generated))
		scheduled = StepForward(scheduled, series.Frequency, series.Interval, series.AnchorDay())
	}
	return instances
}

// FindPastDue returns instances scheduled in [asOf-lookbackDays, asOf) that
// are neither skipped nor already materialized as transactions, ordered by
// scheduled date.
func FindPastDue(
	series *models.RecurringSeries,
	exceptions []models.InstanceException,
	asOf time.Time,
	lookbackDays int,
	generated GeneratedKeys,
) []models.ProjectedInstance {
	if lookbackDays <= 0 {
		return nil
	}
	asOf = models.DateOnly(asOf)
	// The window is half-open: asOf itself is not yet past due.
	windowEnd := asOf.AddDate(0, 0, -1)
	windowStart := asOf.AddDate(0, 0, -lookbackDays)

	all := ProjectInstances(series, exceptions, windowStart, windowEnd, generated)
	pastDue := make([]models.ProjectedInstance, 0, len(all))
	for _, inst := range all {
		if inst.IsSkipped || inst.IsGenerated {
			continue
		}
		pastDue = append(pastDue, inst)
	}
	return pastDue
}

// ProjectTransfers expands a transfer series the same way ProjectInstances
// expands a plain series, yielding a debit and a credit leg per occurrence.
// Exceptions apply to the occurrence as a whole: a skip removes both legs,
// an amount override changes both magnitudes.
func ProjectTransfers(
	transfer *models.RecurringTransferSeries,
	exceptions []models.InstanceException,
	windowStart, windowEnd time.Time,
	generated GeneratedKeys,
) []models.ProjectedTransfer {
	if transfer == nil || !transfer.Active {
		return nil
	}

	debits := ProjectInstances(transfer.ScheduleSeries(), exceptions, windowStart, windowEnd, generated)
	transfers := make([]models.ProjectedTransfer, 0, len(debits))
	for _, debit := range debits {
		credit := debit
		credit.AccountID = transfer.ToAccountID
		credit.Amount = debit.Amount.Neg()
		transfers = append(transfers, models.ProjectedTransfer{
			SeriesID:      transfer.ID,
			ScheduledDate: debit.ScheduledDate,
			Debit:         debit,
			Credit:        credit,
		})
	}
	return transfers
}

func indexExceptions(exceptions []models.InstanceException) map[models.InstanceKey]*models.InstanceException {
	if len(exceptions) == 0 {
		return nil
	}
	index := make(map[models.InstanceKey]*models.InstanceException, len(exceptions))
	for i := range exceptions {
		index[exceptions[i].Key()] = &exceptions[i]
	}
	return index
}

// buildInstance materializes one scheduled date, overlaying its exception if
// present. The instance stays keyed by the original scheduled date even when
// rescheduled.
func buildInstance(
	series *models.RecurringSeries,
	scheduled time.Time,
	overrides map[models.InstanceKey]*models.InstanceException,
	generated GeneratedKeys,
) models.ProjectedInstance {
	inst := models.ProjectedInstance{
		SeriesID:        series.ID,
		AccountID:       series.AccountID,
		ScheduledDate:   scheduled,
		EffectiveDate:   scheduled,
		Amount:          series.Amount,
		Description:     series.Description,
		SeriesCreatedAt: series.CreatedAt,
	}

	if exc := overrides[inst.Key()]; exc != nil {
		if exc.Skipped {
			inst.IsSkipped = true
		} else if exc.HasOverrides() {
			inst.IsModified = true
			if exc.NewDate != nil {
				inst.EffectiveDate = models.DateOnly(*exc.NewDate)
			}
			if exc.NewAmount != nil {
				inst.Amount = *exc.NewAmount
			}
			if exc.NewDescription != nil {
				inst.Description = *exc.NewDescription
			}
		}
	}

	if txID, exists := generated[inst.Key()]; exists {
		inst.IsGenerated = true
		id := txID
		inst.TransactionID = &id
	}
	return inst
}

package frequency

import "github.com/canvasync/canvasync/internal/model"

// RecentStats summarizes the record tail a Policy decides over.
type RecentStats struct {
	// Records is the number of records in the window.
	Records int

	// SuccessRate is successes / records, in [0, 1].
	SuccessRate float64

	// OverdueRatio is the fraction of inter-sync gaps that ran past 1.5x
	// the configured interval, in [0, 1].
	OverdueRatio float64
}

// Policy proposes a sync interval from recent outcomes. Implementations
// are tunable heuristics, not contracts; the Manager only promises to
// clamp whatever they return to the enumerated interval set.
type Policy interface {
	Recommend(current model.SyncInterval, stats RecentStats) model.SyncInterval
}

// ThresholdPolicy is the default Policy: it proposes a change only when
// the recent success rate or the overdue ratio crosses its thresholds.
type ThresholdPolicy struct {
	// MinRecords is the number of records required before any
	// recommendation is made. Below it, current is always returned.
	MinRecords int

	// MinSuccessRate widens the interval when recent syncs fail more
	// often than this rate allows.
	MinSuccessRate float64

	// MaxOverdueRatio widens the interval when syncs chronically start
	// later than scheduled; a trigger that cannot keep a 15-minute
	// cadence should not promise one.
	MaxOverdueRatio float64
}

// DefaultPolicy returns the thresholds used when no policy is injected.
func DefaultPolicy() ThresholdPolicy {
	return ThresholdPolicy{
		MinRecords:      5,
		MinSuccessRate:  0.8,
		MaxOverdueRatio: 0.5,
	}
}

// Recommend implements Policy.
//
// Failing or chronically overdue windows widen the interval one step.
// A fully clean window (every sync succeeded, none overdue) narrows it one
// step. Everything in between leaves the interval alone.
func (p ThresholdPolicy) Recommend(current model.SyncInterval, stats RecentStats) model.SyncInterval {
	if stats.Records < p.MinRecords {
		return current
	}
	if stats.SuccessRate < p.MinSuccessRate {
		return current.Widen()
	}
	if stats.OverdueRatio > p.MaxOverdueRatio {
		return current.Widen()
	}
	if stats.SuccessRate == 1 && stats.OverdueRatio == 0 {
		return current.Narrow()
	}
	return current
}

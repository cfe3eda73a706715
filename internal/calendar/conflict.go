package calendar

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/canvasync/canvasync/internal/gateway"
	"github.com/canvasync/canvasync/internal/model"
	"github.com/canvasync/canvasync/internal/syncerr"
)

// Two tracked events collide when their start times fall within this
// window of each other.
const CollisionWindow = 30 * time.Minute

// Probe schedule for finding a free slot: the original time, then
// alternating offsets in 15-minute increments.
const (
	probeStep        = 15 * time.Minute
	maxProbeAttempts = 10
)

// FindNonConflictingTime probes candidate start times in the order
// original, -15m, +15m, -30m, +30m, ... for up to 10 attempts, accepting
// the first candidate no existing start time collides with.
//
// When every attempt collides the ORIGINAL time is returned: the collision
// is accepted, not eliminated. This degradation is deliberate; callers
// count an exhausted search as an unresolved conflict, not an error.
func FindNonConflictingTime(original time.Time, existing []time.Time) time.Time {
	for attempt := 0; attempt < maxProbeAttempts; attempt++ {
		candidate := probeCandidate(original, attempt)
		if !collides(candidate, existing) {
			return candidate
		}
	}
	return original
}

// probeCandidate returns the nth candidate: 0 is the original, odd
// attempts step backward, even attempts step forward.
func probeCandidate(original time.Time, attempt int) time.Time {
	if attempt == 0 {
		return original
	}
	step := time.Duration((attempt+1)/2) * probeStep
	if attempt%2 == 1 {
		return original.Add(-step)
	}
	return original.Add(step)
}

// collides reports whether any existing start time is within the collision
// window of the candidate.
func collides(candidate time.Time, existing []time.Time) bool {
	for _, t := range existing {
		d := candidate.Sub(t)
		if d < 0 {
			d = -d
		}
		if d < CollisionWindow {
			return true
		}
	}
	return false
}

// Resolver spreads out tracked events whose start times collide. It runs
// as a follow-up pass after reconciliation; every shift it performs is an
// event update and is counted as such in the pass result.
type Resolver struct {
	gw     gateway.CalendarGateway
	logger *slog.Logger
}

// NewResolver creates a Resolver over the given calendar gateway.
func NewResolver(gw gateway.CalendarGateway, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{gw: gw, logger: logger}
}

// ResolvePass examines all tracked events in the calendar in start-time
// order and shifts each one that collides with an earlier, already-placed
// event. offset is the event span, so a shifted event keeps its length.
//
// Per-item update failures are recorded and do not abort the pass.
func (rv *Resolver) ResolvePass(ctx context.Context, calendarID string, offset time.Duration) (model.SyncResult, error) {
	var result model.SyncResult

	tagged, err := rv.gw.FindEventsByMetadata(ctx, calendarID, map[string]string{
		model.MetaSource: model.SourceTag,
	})
	if err != nil {
		return result, syncerr.Wrap(err, syncerr.CodeUnknown, "tagged event listing failed")
	}

	sort.Slice(tagged, func(i, j int) bool {
		return tagged[i].StartTime.Before(tagged[j].StartTime)
	})

	// placed holds the start times already accepted this pass. Events are
	// processed earliest-first, so the later of two colliding events is
	// the one that moves.
	placed := make([]time.Time, 0, len(tagged))
	for _, ev := range tagged {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		if !collides(ev.StartTime, placed) {
			placed = append(placed, ev.StartTime)
			continue
		}

		adjusted := FindNonConflictingTime(ev.StartTime, placed)
		if adjusted.Equal(ev.StartTime) {
			// Probe exhausted; the collision stands.
			rv.logger.Warn("conflict unresolved after probe exhaustion",
				"assignment", ev.AssignmentID(), "event", ev.ID)
			placed = append(placed, ev.StartTime)
			continue
		}

		ev.StartTime = adjusted
		ev.EndTime = adjusted.Add(offset)
		if err := rv.gw.UpdateEvent(ctx, ev); err != nil {
			result.ErrorsEncountered++
			result.ErrorMessages = append(result.ErrorMessages,
				fmt.Sprintf("resolve %s: %v", ev.AssignmentID(), syncerr.CodeOf(err)))
			placed = append(placed, ev.StartTime)
			continue
		}
		result.EventsUpdated++
		placed = append(placed, adjusted)
		rv.logger.Debug("conflict resolved",
			"assignment", ev.AssignmentID(), "event", ev.ID)
	}

	return result, nil
}

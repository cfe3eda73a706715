// Package calendar owns the assignment-to-calendar-event side of the sync
// engine: the Reconciler maintains the at-most-one tracked event per
// assignment invariant through idempotent create/update/delete and a full
// reconciliation pass, and the conflict resolver spreads out tracked events
// whose start times collide.
//
// The Reconciler exclusively owns the assignment-to-event mapping cache.
// No other component reads or writes it.
package calendar

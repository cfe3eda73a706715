// Package engine contains the Sync Orchestrator: the state machine that
// drives full and incremental reconciliation passes across the calendar
// reconciler and the reminder coordinator, merges their results, and
// reports every outcome to the adaptive frequency manager.
//
// One pass runs at a time. A sync request while a pass is in flight fails
// fast with SyncInProgress; nothing is queued. Cancellation is cooperative
// and coarse: it is observed at safe points between per-assignment
// operations, and already-dispatched gateway calls run to completion.
package engine

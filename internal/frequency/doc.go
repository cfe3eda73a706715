// Package frequency decides when the next sync pass should run. The
// Manager keeps a bounded tail of recent sync records, adapts the
// configured interval to battery and connectivity conditions, and answers
// the two questions the external trigger asks: should a sync run now, and
// how long until the next one.
//
// The engine never owns a timer. The OS-level periodic wake (or the watch
// command in this repo) consults ShouldSyncNow and AdaptedInterval and
// does its own scheduling.
package frequency

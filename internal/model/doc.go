// Package model defines the core value types shared across the sync engine:
// assignments fetched from the remote source, calendar value types as seen
// through the device calendar gateway, the immutable per-pass settings
// snapshot, and the result/record types every pass produces.
//
// Types here are plain data. Behavior that mutates external state lives in
// the component packages (calendar, reminder, engine, frequency).
package model

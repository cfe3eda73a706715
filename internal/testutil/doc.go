// Package testutil provides deterministic test doubles for the sync
// engine: a manual wall clock and fixed-data fakes for the remote
// assignment source and the settings store. The in-memory device gateways
// (calendar, notifier) live in internal/gateway so the CLI harness can
// use them too.
package testutil

// Package gateway declares the interface contracts between the sync engine
// and its external collaborators: the remote assignment source, the device
// calendar, the local notification scheduler, and the settings store.
//
// The engine only ever depends on these interfaces. Concrete
// implementations (platform calendar bindings, the HTTP client for the
// remote API) live outside this module; in-memory fakes for tests live in
// internal/testutil.
//
// This package also owns the metadata text codec: on devices whose
// calendar API has no native extended-properties field, structured event
// metadata is encoded as a text block at the tail of the free-text
// description. The reconciler never sees that encoding -- it works with
// map[string]string and the codec is applied at the gateway boundary.
package gateway

// Package syncerr defines the structured error taxonomy shared by every
// sync component.
//
// Errors carry a machine-readable code, the affected assignment id when one
// exists, and free-form detail fields. Messages reference identifiers and
// codes only -- assignment descriptions may contain sensitive submission
// content and must never appear in an error string or a log line.
package syncerr

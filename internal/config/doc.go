// Package config loads the YAML configuration consumed by the canvasync
// command: where the history database lives, the sync settings snapshot
// defaults, and the recommendation policy thresholds. Decoding is strict;
// unknown keys are an error.
package config

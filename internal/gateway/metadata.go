package gateway

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Text-block metadata encoding.
//
// Devices whose calendar API exposes no extended-properties field store the
// engine's key/value metadata as a fenced block appended to the event
// description:
//
//	<user-visible description>
//
//	---canvasync---
//	canvas_assignment_id=42
//	canvas_course_id=7
//	source=app_canvas
//
// Keys and values are NFC-normalized on both encode and decode so that a
// description round-tripped through a platform that re-normalizes Unicode
// still matches metadata lookups byte for byte.

const metadataFence = "---canvasync---"

// EncodeMetadata appends the metadata block to description. Keys are
// emitted in sorted order so encoding is deterministic. Empty metadata
// returns the description unchanged.
func EncodeMetadata(description string, meta map[string]string) string {
	if len(meta) == 0 {
		return description
	}

	keys := make([]string, 0, len(meta))
	for k := range meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(description)
	b.WriteString("\n\n")
	b.WriteString(metadataFence)
	for _, k := range keys {
		b.WriteString("\n")
		b.WriteString(norm.NFC.String(k))
		b.WriteString("=")
		b.WriteString(norm.NFC.String(meta[k]))
	}
	return b.String()
}

// DecodeMetadata splits a stored description into the user-visible text and
// the metadata map. A description without a fence decodes to (description,
// nil). Malformed lines after the fence are skipped rather than failing the
// whole event.
func DecodeMetadata(stored string) (description string, meta map[string]string) {
	idx := strings.LastIndex(stored, metadataFence)
	if idx < 0 {
		return stored, nil
	}

	description = strings.TrimRight(stored[:idx], "\n")
	meta = make(map[string]string)
	for _, line := range strings.Split(stored[idx+len(metadataFence):], "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		k, v, ok := strings.Cut(line, "=")
		if !ok || k == "" {
			continue
		}
		meta[norm.NFC.String(k)] = norm.NFC.String(v)
	}
	if len(meta) == 0 {
		meta = nil
	}
	return description, meta
}

// MetadataMatches reports whether the event metadata contains every
// key/value pair in match, after NFC normalization.
func MetadataMatches(meta, match map[string]string) bool {
	for k, v := range match {
		got, ok := meta[norm.NFC.String(k)]
		if !ok || got != norm.NFC.String(v) {
			return false
		}
	}
	return true
}

// ReminderNotificationID returns the deterministic notification id for an
// assignment's single reminder.
func ReminderNotificationID(assignmentID string) string {
	return "assignment_reminder_" + assignmentID
}

// ReminderNotificationIDN returns the deterministic id for the nth reminder
// of an assignment, for multi-reminder variants.
func ReminderNotificationIDN(assignmentID string, n int) string {
	return fmt.Sprintf("assignment_reminder_%s_%d", assignmentID, n)
}

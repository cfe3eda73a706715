package model

import "time"

// Assignment is a remote academic task as fetched from the assignment source.
//
// Identity is ID. An Assignment value is immutable once fetched; a re-fetch
// supersedes the previous snapshot wholesale rather than patching fields.
//
// DueAt and UpdatedAt are pointers because the remote API omits them for
// undated or never-modified assignments, and "absent" is semantically
// different from the zero time (an assignment without a due date is never
// synced to the calendar).
type Assignment struct {
	ID              string
	CourseID        string
	Name            string
	Description     string
	DueAt           *time.Time
	UpdatedAt       *time.Time
	PointsPossible  *float64
	SubmissionTypes []string
}

// HasDueDate reports whether the assignment carries a due date.
func (a Assignment) HasDueDate() bool {
	return a.DueAt != nil
}

// ChangedSignificantly reports whether the new snapshot differs from the old
// one in a way worth surfacing to the user (name, description, due date, or
// points). The comparison is exact inequality on those four fields; there is
// deliberately no fuzzy or semantic diffing.
func ChangedSignificantly(old, updated Assignment) bool {
	if old.Name != updated.Name {
		return true
	}
	if old.Description != updated.Description {
		return true
	}
	if !timePtrEqual(old.DueAt, updated.DueAt) {
		return true
	}
	if !floatPtrEqual(old.PointsPossible, updated.PointsPossible) {
		return true
	}
	return false
}

func timePtrEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func floatPtrEqual(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

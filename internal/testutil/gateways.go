package testutil

import (
	"context"

	"github.com/canvasync/canvasync/internal/model"
)

// FakeAssignmentSource serves a fixed assignment slice and counts fetches.
type FakeAssignmentSource struct {
	Assignments []model.Assignment
	Err         error // returned by every call when set
	Calls       int
}

// ListAssignments implements gateway.AssignmentSource.
func (f *FakeAssignmentSource) ListAssignments(ctx context.Context, courseIDs []string) ([]model.Assignment, error) {
	f.Calls++
	if f.Err != nil {
		return nil, f.Err
	}
	out := make([]model.Assignment, len(f.Assignments))
	copy(out, f.Assignments)
	return out, nil
}

// FakeSettingsStore serves a fixed settings snapshot.
type FakeSettingsStore struct {
	Settings model.SyncSettings
	Err      error
}

// Snapshot implements gateway.SettingsStore.
func (f *FakeSettingsStore) Snapshot(ctx context.Context) (model.SyncSettings, error) {
	if f.Err != nil {
		return model.SyncSettings{}, f.Err
	}
	return f.Settings, nil
}

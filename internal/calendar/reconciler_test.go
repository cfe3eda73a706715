package calendar

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canvasync/canvasync/internal/gateway"
	"github.com/canvasync/canvasync/internal/model"
	"github.com/canvasync/canvasync/internal/syncerr"
)

const testOffset = time.Hour

func timePtr(t time.Time) *time.Time { return &t }

func assignment(id string, due *time.Time) model.Assignment {
	return model.Assignment{
		ID:          id,
		CourseID:    "c1",
		Name:        "Assignment " + id,
		Description: "desc " + id,
		DueAt:       due,
	}
}

func dueAt(day int) *time.Time {
	return timePtr(time.Date(2024, 1, day, 10, 0, 0, 0, time.UTC))
}

func TestCreate_NoDueDate(t *testing.T) {
	r := NewReconciler(gateway.NewMemoryCalendar())
	_, err := r.Create(context.Background(), assignment("a1", nil), "", testOffset)
	assert.True(t, syncerr.Is(err, syncerr.CodeNoDueDate))
}

func TestCreate_TagsAndSpansEvent(t *testing.T) {
	cal := gateway.NewMemoryCalendar()
	r := NewReconciler(cal)

	eventID, err := r.Create(context.Background(), assignment("a1", dueAt(10)), "", testOffset)
	require.NoError(t, err)

	ev, ok := cal.EventForAssignment("a1")
	require.True(t, ok)
	assert.Equal(t, eventID, ev.ID)
	assert.Equal(t, *dueAt(10), ev.EndTime)
	assert.Equal(t, dueAt(10).Add(-testOffset), ev.StartTime)
	assert.False(t, ev.IsAllDay)
	assert.Equal(t, "a1", ev.Metadata[model.MetaAssignmentID])
	assert.Equal(t, "c1", ev.Metadata[model.MetaCourseID])
	assert.Equal(t, model.SourceTag, ev.Metadata[model.MetaSource])
}

func TestCreate_DuplicateFails(t *testing.T) {
	cal := gateway.NewMemoryCalendar()
	r := NewReconciler(cal)
	ctx := context.Background()

	_, err := r.Create(ctx, assignment("a1", dueAt(10)), "", testOffset)
	require.NoError(t, err)

	_, err = r.Create(ctx, assignment("a1", dueAt(10)), "", testOffset)
	assert.True(t, syncerr.Is(err, syncerr.CodeDuplicateEvent))

	creates, _, _ := cal.CallCounts()
	assert.Equal(t, 1, creates, "at most one tracked event per assignment")
}

func TestCreate_DuplicateDetectedWithoutCache(t *testing.T) {
	// A fresh Reconciler (cold cache) must still find the existing
	// tagged event through the gateway metadata query.
	cal := gateway.NewMemoryCalendar()
	ctx := context.Background()

	_, err := NewReconciler(cal).Create(ctx, assignment("a1", dueAt(10)), "", testOffset)
	require.NoError(t, err)

	_, err = NewReconciler(cal).Create(ctx, assignment("a1", dueAt(10)), "", testOffset)
	assert.True(t, syncerr.Is(err, syncerr.CodeDuplicateEvent))
}

func TestCreate_PermissionDenied(t *testing.T) {
	cal := gateway.NewMemoryCalendar()
	cal.Permission = model.PermissionDenied
	r := NewReconciler(cal)

	_, err := r.Create(context.Background(), assignment("a1", dueAt(10)), "", testOffset)
	assert.True(t, syncerr.Is(err, syncerr.CodePermissionDenied))
}

func TestCreate_NoWritableCalendar(t *testing.T) {
	cal := gateway.NewMemoryCalendar()
	cal.Default = nil
	cal.All = []model.Calendar{{ID: "ro", Name: "Holidays", IsReadOnly: true}}
	r := NewReconciler(cal)

	_, err := r.Create(context.Background(), assignment("a1", dueAt(10)), "", testOffset)
	assert.True(t, syncerr.Is(err, syncerr.CodeCalendarNotFound))
}

func TestCreate_FallsBackToFirstWritable(t *testing.T) {
	cal := gateway.NewMemoryCalendar()
	cal.Default = nil
	cal.All = []model.Calendar{
		{ID: "ro", IsReadOnly: true},
		{ID: "rw", IsReadOnly: false},
	}
	r := NewReconciler(cal)

	_, err := r.Create(context.Background(), assignment("a1", dueAt(10)), "", testOffset)
	require.NoError(t, err)

	ev, ok := cal.EventForAssignment("a1")
	require.True(t, ok)
	assert.Equal(t, "rw", ev.CalendarID)
}

func TestUpdate_NotFound(t *testing.T) {
	r := NewReconciler(gateway.NewMemoryCalendar())
	err := r.Update(context.Background(), assignment("a1", dueAt(10)), "", testOffset)
	assert.True(t, syncerr.Is(err, syncerr.CodeEventNotFound))
}

func TestUpdate_PushesNewPayload(t *testing.T) {
	cal := gateway.NewMemoryCalendar()
	r := NewReconciler(cal)
	ctx := context.Background()

	_, err := r.Create(ctx, assignment("a1", dueAt(10)), "", testOffset)
	require.NoError(t, err)

	moved := assignment("a1", dueAt(12))
	require.NoError(t, r.Update(ctx, moved, "", testOffset))

	ev, ok := cal.EventForAssignment("a1")
	require.True(t, ok)
	assert.Equal(t, *dueAt(12), ev.EndTime)
}

func TestDelete_Idempotent(t *testing.T) {
	cal := gateway.NewMemoryCalendar()
	r := NewReconciler(cal)
	ctx := context.Background()

	_, err := r.Create(ctx, assignment("a1", dueAt(10)), "", testOffset)
	require.NoError(t, err)

	deleted, err := r.Delete(ctx, "a1", "")
	require.NoError(t, err)
	assert.True(t, deleted)

	// Second delete: mapping is gone, still success.
	deleted, err = r.Delete(ctx, "a1", "")
	require.NoError(t, err)
	assert.False(t, deleted)

	_, _, deletes := cal.CallCounts()
	assert.Equal(t, 1, deletes)
}

func TestSyncAll_OrphanCleanup(t *testing.T) {
	// Tracked events for {1,2,3}; current due-dated set {2,3,4}:
	// 1 is deleted, 4 created, 2 and 3 left or updated.
	cal := gateway.NewMemoryCalendar()
	r := NewReconciler(cal)
	ctx := context.Background()

	for _, id := range []string{"1", "2", "3"} {
		_, err := r.Create(ctx, assignment(id, dueAt(10)), "", testOffset)
		require.NoError(t, err)
	}

	current := []model.Assignment{
		assignment("2", dueAt(10)),
		assignment("3", dueAt(11)), // moved
		assignment("4", dueAt(12)),
	}
	result, err := r.SyncAll(ctx, current, "", testOffset, true)
	require.NoError(t, err)

	assert.Equal(t, 1, result.EventsCreated)
	assert.Equal(t, 1, result.EventsUpdated, "only the moved assignment is updated")
	assert.Equal(t, 1, result.EventsDeleted)
	assert.Equal(t, 0, result.ErrorsEncountered)

	_, ok := cal.EventForAssignment("1")
	assert.False(t, ok, "orphan removed")
	for _, id := range []string{"2", "3", "4"} {
		_, ok := cal.EventForAssignment(id)
		assert.True(t, ok, "assignment %s tracked", id)
	}
}

func TestSyncAll_SecondRunIsNoOp(t *testing.T) {
	cal := gateway.NewMemoryCalendar()
	r := NewReconciler(cal)
	ctx := context.Background()

	assignments := []model.Assignment{
		assignment("1", dueAt(10)),
		assignment("2", dueAt(11)),
		assignment("undated", nil),
	}

	first, err := r.SyncAll(ctx, assignments, "", testOffset, true)
	require.NoError(t, err)
	assert.Equal(t, 2, first.EventsCreated)

	callsAfterFirst := len(cal.Calls)

	second, err := r.SyncAll(ctx, assignments, "", testOffset, true)
	require.NoError(t, err)
	assert.Equal(t, 0, second.EventsCreated)
	assert.Equal(t, 0, second.EventsUpdated)
	assert.Equal(t, 0, second.EventsDeleted)
	assert.Equal(t, callsAfterFirst, len(cal.Calls), "no additional gateway mutations")
}

func TestSyncAll_PerItemFailureDoesNotAbort(t *testing.T) {
	cal := gateway.NewMemoryCalendar()
	r := NewReconciler(cal)
	ctx := context.Background()

	// First pass creates a1 so the second pass has something to update.
	_, err := r.SyncAll(ctx, []model.Assignment{assignment("a1", dueAt(10))}, "", testOffset, false)
	require.NoError(t, err)

	// Updates fail, creates succeed: the pass must still create a2.
	cal.UpdateErr = errors.New("backend unavailable")
	result, err := r.SyncAll(ctx, []model.Assignment{
		assignment("a1", dueAt(12)),
		assignment("a2", dueAt(13)),
	}, "", testOffset, false)
	require.NoError(t, err, "per-item failures never abort the batch")

	assert.Equal(t, 1, result.EventsCreated)
	assert.Equal(t, 1, result.ErrorsEncountered)
	require.Len(t, result.ErrorMessages, 1)
	assert.Contains(t, result.ErrorMessages[0], "a1")
}

func TestSyncAll_NoOrphanDeletionWhenDisabled(t *testing.T) {
	cal := gateway.NewMemoryCalendar()
	r := NewReconciler(cal)
	ctx := context.Background()

	_, err := r.Create(ctx, assignment("old", dueAt(10)), "", testOffset)
	require.NoError(t, err)

	result, err := r.SyncAll(ctx, nil, "", testOffset, false)
	require.NoError(t, err)
	assert.Equal(t, 0, result.EventsDeleted)

	_, ok := cal.EventForAssignment("old")
	assert.True(t, ok)
}

package syncerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncError_ErrorFormat(t *testing.T) {
	err := NoDueDate("a1")
	assert.Equal(t, "NO_DUE_DATE: assignment has no due date (assignment=a1)", err.Error())

	plain := SyncInProgress()
	assert.Equal(t, "SYNC_IN_PROGRESS: a sync pass is already running", plain.Error())
}

func TestIs_MatchesWrappedErrors(t *testing.T) {
	err := fmt.Errorf("pass failed: %w", DuplicateEvent("a1", "evt-1"))
	assert.True(t, Is(err, CodeDuplicateEvent))
	assert.False(t, Is(err, CodeEventNotFound))
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, CodeNetworkFailure, CodeOf(NetworkFailure(errors.New("dial tcp: timeout"))))
	assert.Equal(t, CodeUnknown, CodeOf(errors.New("plain")))
	assert.Equal(t, CodeCalendarNotFound, CodeOf(fmt.Errorf("outer: %w", CalendarNotFound())))
}

func TestWrap_PreservesExistingCode(t *testing.T) {
	inner := EventNotFound("a2")
	wrapped := Wrap(inner, CodeUnknown, "should not replace")
	assert.Equal(t, CodeEventNotFound, CodeOf(wrapped))
}

func TestWrap_AttachesCodeAndCause(t *testing.T) {
	cause := errors.New("disk full")
	wrapped := Wrap(cause, CodeUnknown, "event create failed")
	require.Error(t, wrapped)
	assert.Equal(t, CodeUnknown, CodeOf(wrapped))
	assert.True(t, errors.Is(wrapped, cause))
}

func TestWrap_NilIsNil(t *testing.T) {
	assert.NoError(t, Wrap(nil, CodeUnknown, "x"))
}

func TestNetworkFailure_UnwrapsToCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := NetworkFailure(cause)
	assert.True(t, errors.Is(err, cause))
}

func TestPermissionDenied_CarriesState(t *testing.T) {
	err := PermissionDenied("restricted")
	assert.Equal(t, "restricted", err.Details["state"])
}

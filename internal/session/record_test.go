package session

import (
	"testing"

	"github.com/blaugold/explo/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRecord(id, label string) *Record {
	return NewRecord(&domain.DebugSession{ID: id, Type: "dart"}, label)
}

func TestRecordStartsUnready(t *testing.T) {
	rec := newTestRecord("s1", "app")

	assert.Equal(t, "s1", rec.ID())
	assert.Equal(t, "app", rec.Label())
	assert.Equal(t, PhaseStarted, rec.Phase())
	assert.False(t, rec.IsReady())
	assert.False(t, rec.IsViewer())
	assert.Empty(t, rec.VMServiceURI())
	assert.Empty(t, rec.IsolateID())
}

func TestRecordTargetAppRequiresEndpoint(t *testing.T) {
	rec := newTestRecord("s1", "app")

	_, err := rec.TargetApp()
	require.ErrorIs(t, err, ErrNotReady)

	require.NoError(t, rec.MarkReady("ws://127.0.0.1:8181/abc=/ws"))
	app, err := rec.TargetApp()
	require.NoError(t, err)
	assert.Equal(t, domain.TargetApp{ID: "s1", Label: "app", VMServiceURI: "ws://127.0.0.1:8181/abc=/ws"}, app)
	assert.Equal(t, PhaseReady, rec.Phase())
}

func TestRecordEndpointIsSetOnce(t *testing.T) {
	rec := newTestRecord("s1", "app")

	require.ErrorIs(t, rec.MarkReady(""), ErrEmptyEndpoint)
	require.False(t, rec.IsReady())

	require.NoError(t, rec.MarkReady("ws://first"))
	require.ErrorIs(t, rec.MarkReady("ws://second"), ErrAlreadyReady)
	assert.Equal(t, "ws://first", rec.VMServiceURI())
}

func TestRecordPromotionIsMonotonic(t *testing.T) {
	rec := newTestRecord("v1", "viewer")

	require.ErrorIs(t, rec.Promote(""), ErrEmptyIsolate)
	require.False(t, rec.IsViewer())

	require.NoError(t, rec.Promote("isolates/1"))
	assert.True(t, rec.IsViewer())
	assert.Equal(t, "isolates/1", rec.IsolateID())
	assert.Equal(t, PhaseViewer, rec.Phase())

	require.ErrorIs(t, rec.Promote("isolates/2"), ErrAlreadyViewer)
	assert.True(t, rec.IsViewer())
	assert.Equal(t, "isolates/1", rec.IsolateID())

	// A later endpoint does not demote the viewer.
	require.NoError(t, rec.MarkReady("ws://viewer"))
	assert.True(t, rec.IsViewer())
	assert.Equal(t, PhaseViewer, rec.Phase())
}

func TestPhaseString(t *testing.T) {
	assert.Equal(t, "started", PhaseStarted.String())
	assert.Equal(t, "ready", PhaseReady.String())
	assert.Equal(t, "viewer", PhaseViewer.String())
	assert.Equal(t, "unknown", Phase(42).String())
}

func TestRecordEvent(t *testing.T) {
	rec := newTestRecord("s1", "app")
	require.NoError(t, rec.MarkReady("ws://app"))

	ev := rec.Event(domain.TypeSessionReady)
	assert.Equal(t, domain.TypeSessionReady, ev.Type)
	assert.Equal(t, domain.SchemaVersion, ev.SchemaVersion)
	assert.Equal(t, "s1", ev.Session)
	assert.Equal(t, "app", ev.Label)
	assert.Equal(t, "ready", ev.Phase)
	assert.Equal(t, "ws://app", ev.VMServiceURI)
	assert.Empty(t, ev.IsolateID)
	assert.NotEmpty(t, ev.Timestamp)
}

package service

import (
	"bytes"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/blaugold/explo/internal/domain"
	"github.com/blaugold/explo/internal/output"
	"github.com/blaugold/explo/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type recordingTransport struct {
	mu   sync.Mutex
	reqs []Request
	err  error
}

func (r *recordingTransport) Dispatch(req Request) *Pending {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reqs = append(r.reqs, req)
	return Resolved(r.err)
}

func viewerRecord(t *testing.T, id, isolate string) *session.Record {
	t.Helper()
	rec := session.NewRecord(&domain.DebugSession{ID: id}, id)
	require.NoError(t, rec.MarkReady("ws://127.0.0.1/"+id+"/ws"))
	if isolate != "" {
		require.NoError(t, rec.Promote(isolate))
	}
	return rec
}

func TestClientCallAddsIsolateID(t *testing.T) {
	tr := &recordingTransport{}
	c := NewClient(tr)
	viewer := viewerRecord(t, "v1", "isolates/42")

	params := map[string]any{"id": "t1"}
	require.NoError(t, c.Call(viewer, "ext.test", params).Wait(testContext(t)))

	require.Len(t, tr.reqs, 1)
	req := tr.reqs[0]
	assert.Equal(t, "v1", req.SessionID)
	assert.Equal(t, "ws://127.0.0.1/v1/ws", req.Endpoint)
	assert.Equal(t, "ext.test", req.Method)
	assert.Equal(t, map[string]any{"id": "t1", "isolateId": "isolates/42"}, req.Params)

	// Caller's map is left alone.
	assert.Equal(t, map[string]any{"id": "t1"}, params)
}

func TestClientCallWithoutIsolate(t *testing.T) {
	tr := &recordingTransport{}
	c := NewClient(tr)
	rec := viewerRecord(t, "s1", "")

	c.Call(rec, "ext.test", nil)

	require.Len(t, tr.reqs, 1)
	assert.NotContains(t, tr.reqs[0].Params, "isolateId")
}

func TestClientAddTargetAppEncodesDescriptor(t *testing.T) {
	tr := &recordingTransport{}
	c := NewClient(tr)
	viewer := viewerRecord(t, "v1", "iso")

	app := domain.TargetApp{ID: "t1", Label: "app", VMServiceURI: "ws://t1"}
	c.AddTargetApp(viewer, app)

	require.Len(t, tr.reqs, 1)
	req := tr.reqs[0]
	assert.Equal(t, domain.MethodAddTargetApp, req.Method)
	assert.Equal(t, "iso", req.Params["isolateId"])

	encoded, ok := req.Params["app"].(string)
	require.True(t, ok, "app is sent as a JSON string")
	var decoded map[string]string
	require.NoError(t, json.Unmarshal([]byte(encoded), &decoded))
	assert.Equal(t, map[string]string{"id": "t1", "label": "app", "vmServiceUri": "ws://t1"}, decoded)
}

func TestClientRemoveTargetApp(t *testing.T) {
	tr := &recordingTransport{}
	c := NewClient(tr)
	viewer := viewerRecord(t, "v1", "iso")

	c.RemoveTargetApp(viewer, "t1")

	require.Len(t, tr.reqs, 1)
	assert.Equal(t, domain.MethodRemoveTargetApp, tr.reqs[0].Method)
	assert.Equal(t, map[string]any{"id": "t1", "isolateId": "iso"}, tr.reqs[0].Params)
}

func TestClientLogsFailuresAtDebug(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	tr := &recordingTransport{err: errors.New("channel closed")}
	c := NewClient(tr, WithLogger(zap.New(core)))
	viewer := viewerRecord(t, "v1", "iso")

	err := c.RemoveTargetApp(viewer, "t1").Wait(testContext(t))
	require.EqualError(t, err, "channel closed")

	require.Eventually(t, func() bool {
		return logs.FilterMessage("service call failed").Len() == 1
	}, time.Second, 10*time.Millisecond)
	entry := logs.FilterMessage("service call failed").All()[0]
	assert.Equal(t, zapcore.DebugLevel, entry.Level)
	assert.Equal(t, "v1", entry.ContextMap()["session"])
	assert.Equal(t, domain.MethodRemoveTargetApp, entry.ContextMap()["method"])
}

func TestPending(t *testing.T) {
	p := NewPending()
	assert.NoError(t, p.Err())

	p.Resolve(errors.New("first"))
	p.Resolve(errors.New("second"))
	<-p.Done()
	assert.EqualError(t, p.Err(), "first")
}

func TestHostTransportWritesCallService(t *testing.T) {
	buf := &bytes.Buffer{}
	c := NewClient(NewHost(output.NewNDJSONWriter(buf)))
	viewer := viewerRecord(t, "v1", "iso")

	require.NoError(t, c.RemoveTargetApp(viewer, "t1").Wait(testContext(t)))

	var m map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &m))
	assert.Equal(t, "call_service", m["type"])
	assert.EqualValues(t, 1, m["schemaVersion"])
	assert.Equal(t, "v1", m["session"])
	assert.Equal(t, "callService", m["command"])
	assert.Equal(t, domain.MethodRemoveTargetApp, m["method"])
	assert.Equal(t, map[string]any{"id": "t1", "isolateId": "iso"}, m["params"])
}

type failingWriter struct{}

func (failingWriter) Write(any) error { return errors.New("broken pipe") }

func TestHostTransportReportsWriteErrors(t *testing.T) {
	h := NewHost(failingWriter{})
	err := h.Dispatch(Request{SessionID: "v1", Method: "m"}).Err()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken pipe")
}

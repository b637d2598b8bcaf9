package coordinator

import (
	"fmt"
	"testing"

	"github.com/blaugold/explo/internal/domain"
	"github.com/blaugold/explo/internal/events"
	"github.com/blaugold/explo/internal/service"
	"github.com/blaugold/explo/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type fakeHost struct {
	start     *events.Bus[*domain.DebugSession]
	terminate *events.Bus[*domain.DebugSession]
	custom    *events.Bus[domain.CustomEvent]
}

func newFakeHost() *fakeHost {
	return &fakeHost{
		start:     events.NewBus[*domain.DebugSession](),
		terminate: events.NewBus[*domain.DebugSession](),
		custom:    events.NewBus[domain.CustomEvent](),
	}
}

func (h *fakeHost) OnDidStartSession(fn func(*domain.DebugSession)) events.Subscription {
	return h.start.Subscribe(fn)
}

func (h *fakeHost) OnDidTerminateSession(fn func(*domain.DebugSession)) events.Subscription {
	return h.terminate.Subscribe(fn)
}

func (h *fakeHost) OnDidReceiveCustomEvent(fn func(domain.CustomEvent)) events.Subscription {
	return h.custom.Subscribe(fn)
}

type sentCall struct {
	Viewer string
	Method string
	Target string
	App    domain.TargetApp
}

type recordingCaller struct {
	calls []sentCall
}

func (r *recordingCaller) AddTargetApp(viewer *session.Record, app domain.TargetApp) *service.Pending {
	r.calls = append(r.calls, sentCall{Viewer: viewer.ID(), Method: domain.MethodAddTargetApp, Target: app.ID, App: app})
	return service.Resolved(nil)
}

func (r *recordingCaller) RemoveTargetApp(viewer *session.Record, id string) *service.Pending {
	r.calls = append(r.calls, sentCall{Viewer: viewer.ID(), Method: domain.MethodRemoveTargetApp, Target: id})
	return service.Resolved(nil)
}

func (r *recordingCaller) to(viewer string) []sentCall {
	var out []sentCall
	for _, c := range r.calls {
		if c.Viewer == viewer {
			out = append(out, c)
		}
	}
	return out
}

func (r *recordingCaller) reset() { r.calls = nil }

type harness struct {
	t      *testing.T
	host   *fakeHost
	caller *recordingCaller
	coord  *Coordinator
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	h := &harness{t: t, host: newFakeHost(), caller: &recordingCaller{}}
	opts = append([]Option{WithWorkspaceRoot("/ws")}, opts...)
	h.coord = New(h.host, h.caller, opts...)
	t.Cleanup(func() { h.coord.Close() })
	return h
}

func flutterSession(id string) *domain.DebugSession {
	return &domain.DebugSession{
		ID:   id,
		Type: "dart",
		Configuration: domain.LaunchConfiguration{
			DebuggerType: domain.DebuggerTypeFlutter,
			Program:      "/ws/" + id + "/lib/main.dart",
		},
	}
}

func (h *harness) start(id string) *domain.DebugSession {
	s := flutterSession(id)
	h.host.start.Fire(s)
	return s
}

func (h *harness) ready(s *domain.DebugSession) {
	h.host.custom.Fire(domain.CustomEvent{
		Session: s,
		Event:   "dart.debuggerUris",
		Body:    []byte(fmt.Sprintf(`{"vmServiceUri":"ws://127.0.0.1/%s/ws"}`, s.ID)),
	})
}

func (h *harness) promote(s *domain.DebugSession) {
	h.host.custom.Fire(domain.CustomEvent{
		Session: s,
		Event:   "dart.serviceExtensionAdded",
		Body:    []byte(fmt.Sprintf(`{"extensionRPC":"ext.explo.removeTargetApp","isolateId":"isolates/%s"}`, s.ID)),
	})
}

func (h *harness) terminate(s *domain.DebugSession) {
	h.host.terminate.Fire(s)
}

func recordIDs(recs []*session.Record) []string {
	out := []string{}
	for _, r := range recs {
		out = append(out, r.ID())
	}
	return out
}

func TestStartTracksOnlyFlutterSessions(t *testing.T) {
	h := newHarness(t)

	h.start("app")
	h.host.start.Fire(&domain.DebugSession{ID: "node", Type: "node"})
	h.host.start.Fire(&domain.DebugSession{ID: "dart-cli", Type: "dart", Configuration: domain.LaunchConfiguration{DebuggerType: domain.DebuggerTypeDart}})
	h.host.start.Fire(&domain.DebugSession{ID: "flutter-test", Type: "dart", Configuration: domain.LaunchConfiguration{DebuggerType: domain.DebuggerTypeFlutterTest}})

	require.Equal(t, 1, h.coord.Registry().Len())
	rec, ok := h.coord.Registry().FindByID("app")
	require.True(t, ok)
	assert.Equal(t, "app", rec.Label())
	assert.Empty(t, h.caller.calls, "start alone never fans out")
}

func TestRegistrySizeFollowsStartsMinusTerminates(t *testing.T) {
	h := newHarness(t)

	a := h.start("a")
	assert.Equal(t, 1, h.coord.Registry().Len())
	b := h.start("b")
	h.ready(b)
	assert.Equal(t, 2, h.coord.Registry().Len())
	h.terminate(a)
	assert.Equal(t, 1, h.coord.Registry().Len())
	h.terminate(a)
	assert.Equal(t, 1, h.coord.Registry().Len(), "second terminate is ignored")
	c := h.start("c")
	h.terminate(b)
	h.terminate(c)
	assert.Equal(t, 0, h.coord.Registry().Len())
}

func TestEventsForUntrackedSessionsAreIgnored(t *testing.T) {
	h := newHarness(t)
	v := h.start("v1")
	h.promote(v)

	stranger := flutterSession("stranger")
	h.ready(stranger)
	h.promote(stranger)
	h.terminate(stranger)

	assert.Empty(t, h.caller.calls)
	assert.Equal(t, 1, h.coord.Registry().Len())
}

func TestMalformedEventsAreIgnored(t *testing.T) {
	h := newHarness(t)
	v := h.start("v1")
	h.promote(v)
	tgt := h.start("t1")

	for _, body := range []string{`not json`, `{}`, `{"vmServiceUri":42}`, `{"vmServiceUri":""}`} {
		h.host.custom.Fire(domain.CustomEvent{Session: tgt, Event: "dart.debuggerUris", Body: []byte(body)})
	}
	rec, _ := h.coord.Registry().Find(tgt)
	assert.False(t, rec.IsReady())

	for _, body := range []string{`{"extensionRPC":"ext.explo.removeTargetApp"}`, `{"isolateId":"x"}`, `[]`, `{"extensionRPC":"ext.explo.removeTargetApp","isolateId":""}`} {
		h.host.custom.Fire(domain.CustomEvent{Session: tgt, Event: "dart.serviceExtensionAdded", Body: []byte(body)})
	}
	assert.False(t, rec.IsViewer())
	assert.Empty(t, h.caller.calls)
}

func TestOtherServiceExtensionsDoNotPromote(t *testing.T) {
	h := newHarness(t)
	s := h.start("s1")

	h.host.custom.Fire(domain.CustomEvent{
		Session: s,
		Event:   "dart.serviceExtensionAdded",
		Body:    []byte(`{"extensionRPC":"ext.flutter.debugPaint","isolateId":"isolates/1"}`),
	})

	rec, _ := h.coord.Registry().Find(s)
	assert.False(t, rec.IsViewer())
	assert.Equal(t, []string{"s1"}, recordIDs(h.coord.Targets()))
}

func TestReadyFansOutToOtherViewersOnce(t *testing.T) {
	h := newHarness(t)
	v1 := h.start("v1")
	h.ready(v1)
	h.promote(v1)
	v2 := h.start("v2")
	h.ready(v2)
	h.promote(v2)
	h.caller.reset()

	tgt := h.start("t1")
	h.ready(tgt)

	require.Len(t, h.caller.calls, 2)
	for _, viewer := range []string{"v1", "v2"} {
		calls := h.caller.to(viewer)
		require.Len(t, calls, 1)
		assert.Equal(t, domain.MethodAddTargetApp, calls[0].Method)
		assert.Equal(t, domain.TargetApp{ID: "t1", Label: "t1", VMServiceURI: "ws://127.0.0.1/t1/ws"}, calls[0].App)
	}

	// A repeated announcement does not fan out again.
	h.ready(tgt)
	assert.Len(t, h.caller.calls, 2)
}

func TestReadyOfViewerIsNotAdvertised(t *testing.T) {
	h := newHarness(t)
	v1 := h.start("v1")
	h.ready(v1)
	h.promote(v1)
	v2 := h.start("v2")
	h.promote(v2)
	h.caller.reset()

	h.ready(v2)
	assert.Empty(t, h.caller.calls)
}

func TestPromotionScrubsAndSeeds(t *testing.T) {
	h := newHarness(t)
	t1 := h.start("t1")
	h.ready(t1)
	v1 := h.start("v1")
	h.ready(v1)
	h.promote(v1)
	t2 := h.start("t2")
	h.ready(t2)
	v2 := h.start("v2")
	h.ready(v2)
	h.caller.reset()

	h.promote(v2)

	// v1 advertised v2 as a target when it became ready; now it is scrubbed.
	toV1 := h.caller.to("v1")
	require.Len(t, toV1, 1)
	assert.Equal(t, sentCall{Viewer: "v1", Method: domain.MethodRemoveTargetApp, Target: "v2"}, toV1[0])

	toV2 := h.caller.to("v2")
	require.Len(t, toV2, 2)
	assert.Equal(t, "t1", toV2[0].Target)
	assert.Equal(t, "t2", toV2[1].Target)
	for _, c := range toV2 {
		assert.Equal(t, domain.MethodAddTargetApp, c.Method)
	}

	// Removal from other viewers comes before the seed list.
	assert.Equal(t, domain.MethodRemoveTargetApp, h.caller.calls[0].Method)

	// No viewer ever hears about itself or another viewer being added.
	for _, c := range h.caller.calls {
		if c.Method == domain.MethodAddTargetApp {
			assert.NotEqual(t, c.Viewer, c.Target)
			assert.NotContains(t, []string{"v1", "v2"}, c.Target)
		}
	}
}

func TestPromotionIsAppendOnly(t *testing.T) {
	h := newHarness(t)
	t1 := h.start("t1")
	h.ready(t1)
	v := h.start("v1")
	h.promote(v)
	h.caller.reset()

	h.promote(v)
	assert.Empty(t, h.caller.calls, "repeated promotion is ignored")

	rec, _ := h.coord.Registry().Find(v)
	assert.True(t, rec.IsViewer())
	assert.Equal(t, "isolates/v1", rec.IsolateID())
}

func TestTerminationRemovesFromEveryViewer(t *testing.T) {
	h := newHarness(t)
	v1 := h.start("v1")
	h.promote(v1)
	v2 := h.start("v2")
	h.promote(v2)
	neverReady := h.start("t1")
	h.caller.reset()

	h.terminate(neverReady)

	require.Len(t, h.caller.calls, 2)
	for _, viewer := range []string{"v1", "v2"} {
		calls := h.caller.to(viewer)
		require.Len(t, calls, 1)
		assert.Equal(t, sentCall{Viewer: viewer, Method: domain.MethodRemoveTargetApp, Target: "t1"}, calls[0])
	}
}

func TestViewerTerminationNotifiesRemainingViewers(t *testing.T) {
	h := newHarness(t)
	v1 := h.start("v1")
	h.promote(v1)
	v2 := h.start("v2")
	h.promote(v2)
	h.caller.reset()

	h.terminate(v2)

	assert.Equal(t, []sentCall{{Viewer: "v1", Method: domain.MethodRemoveTargetApp, Target: "v2"}}, h.caller.calls)
	assert.Equal(t, []string{"v1"}, recordIDs(h.coord.Viewers()))
}

func TestScenarioTargetReadyAfterViewer(t *testing.T) {
	h := newHarness(t)

	t1 := h.start("t1")
	v1 := h.start("v1")
	h.promote(v1)
	assert.Empty(t, h.caller.to("v1"), "t1 is not ready yet")

	h.ready(t1)
	toV1 := h.caller.to("v1")
	require.Len(t, toV1, 1)
	assert.Equal(t, domain.MethodAddTargetApp, toV1[0].Method)
	assert.Equal(t, "t1", toV1[0].Target)

	h.terminate(t1)
	toV1 = h.caller.to("v1")
	require.Len(t, toV1, 2)
	assert.Equal(t, sentCall{Viewer: "v1", Method: domain.MethodRemoveTargetApp, Target: "t1"}, toV1[1])
}

func TestScenarioSeedInRegistryOrder(t *testing.T) {
	h := newHarness(t)

	t1 := h.start("t1")
	h.ready(t1)
	t2 := h.start("t2")
	h.ready(t2)
	v1 := h.start("v1")
	h.ready(v1)
	assert.Empty(t, h.caller.calls, "no viewers yet")

	h.promote(v1)
	toV1 := h.caller.to("v1")
	require.Len(t, toV1, 2)
	assert.Equal(t, "t1", toV1[0].Target)
	assert.Equal(t, "t2", toV1[1].Target)
}

func TestScenarioSecondViewerPromotion(t *testing.T) {
	h := newHarness(t)

	t1 := h.start("t1")
	h.ready(t1)
	v1 := h.start("v1")
	h.promote(v1)
	v2 := h.start("v2")
	h.caller.reset()

	h.promote(v2)

	toV1 := h.caller.to("v1")
	require.Len(t, toV1, 1)
	assert.Equal(t, sentCall{Viewer: "v1", Method: domain.MethodRemoveTargetApp, Target: "v2"}, toV1[0])

	toV2 := h.caller.to("v2")
	require.Len(t, toV2, 1)
	assert.Equal(t, domain.MethodAddTargetApp, toV2[0].Method)
	assert.Equal(t, "t1", toV2[0].Target)
}

func TestReemittedEvents(t *testing.T) {
	h := newHarness(t)
	var got []string
	h.coord.SessionStarted().Subscribe(func(r *session.Record) { got = append(got, "started:"+r.ID()) })
	h.coord.SessionReady().Subscribe(func(r *session.Record) { got = append(got, "ready:"+r.ID()) })
	h.coord.ViewerReady().Subscribe(func(r *session.Record) { got = append(got, "viewer:"+r.ID()) })
	h.coord.SessionTerminated().Subscribe(func(r *session.Record) {
		got = append(got, "terminated:"+r.ID())
		// Fan-out already happened and the record is gone.
		_, ok := h.coord.Registry().Find(r.Session())
		assert.False(t, ok)
		assert.Len(t, h.caller.to("v1"), 1)
	})

	v := h.start("v1")
	h.promote(v)
	s := h.start("t1")
	h.ready(s)
	h.caller.reset()
	h.terminate(s)

	assert.Equal(t, []string{"started:v1", "viewer:v1", "started:t1", "ready:t1", "terminated:t1"}, got)
}

func TestCloseReleasesAllSubscriptions(t *testing.T) {
	host := newFakeHost()
	c := New(host, &recordingCaller{})
	require.Equal(t, 1, host.start.Len())
	require.Equal(t, 1, host.terminate.Len())
	require.Equal(t, 1, host.custom.Len())

	fired := false
	c.SessionStarted().Subscribe(func(*session.Record) { fired = true })

	require.NoError(t, c.Close())
	assert.Equal(t, 0, host.start.Len())
	assert.Equal(t, 0, host.terminate.Len())
	assert.Equal(t, 0, host.custom.Len())

	host.start.Fire(flutterSession("late"))
	assert.False(t, fired)
	assert.Equal(t, 0, c.Registry().Len())
}

func TestCustomFilterAndPrefix(t *testing.T) {
	h := newHarness(t,
		WithFilter(func(s *domain.DebugSession) bool { return s.Type == "custom" }),
		WithEventPrefix("custom"),
	)
	s := &domain.DebugSession{ID: "s1", Type: "custom", Configuration: domain.LaunchConfiguration{Program: "/ws/x/lib/main.dart"}}
	h.host.start.Fire(s)
	h.host.custom.Fire(domain.CustomEvent{Session: s, Event: "dart.debuggerUris", Body: []byte(`{"vmServiceUri":"ws://x"}`)})

	rec, ok := h.coord.Registry().Find(s)
	require.True(t, ok)
	assert.False(t, rec.IsReady(), "dart-prefixed events are not recognized")

	h.host.custom.Fire(domain.CustomEvent{Session: s, Event: "custom.debuggerUris", Body: []byte(`{"vmServiceUri":"ws://x"}`)})
	assert.True(t, rec.IsReady())
}

func TestLifecycleLogging(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	h := newHarness(t, WithLogger(zap.New(core)))

	s := h.start("app")
	h.ready(s)
	h.promote(s)
	h.terminate(s)

	var messages []string
	for _, e := range logs.All() {
		messages = append(messages, e.Message)
	}
	assert.Equal(t, []string{
		"Debug session started: app",
		"Debug session ready: app",
		"Viewer debug session ready: app",
		"Debug session ended: app",
	}, messages)
}

// Package coordinator tracks Flutter debug sessions and keeps every viewer
// session informed about the target sessions it can attach to.
//
// Viewers learn about targets only through fire-and-forget service calls: the
// registry is the source of truth and a failed call is never rolled back.
package coordinator

import (
	"encoding/json"

	"github.com/blaugold/explo/internal/domain"
	"github.com/blaugold/explo/internal/events"
	"github.com/blaugold/explo/internal/service"
	"github.com/blaugold/explo/internal/session"
	"go.uber.org/zap"
)

// Host delivers debug session lifecycle and protocol events. Events must be
// delivered one at a time.
type Host interface {
	OnDidStartSession(handler func(*domain.DebugSession)) events.Subscription
	OnDidTerminateSession(handler func(*domain.DebugSession)) events.Subscription
	OnDidReceiveCustomEvent(handler func(domain.CustomEvent)) events.Subscription
}

// Caller issues the explo extension calls
type Caller interface {
	AddTargetApp(viewer *session.Record, app domain.TargetApp) *service.Pending
	RemoveTargetApp(viewer *session.Record, id string) *service.Pending
}

// Filter decides whether a started session is tracked
type Filter func(*domain.DebugSession) bool

// FlutterFilter tracks sessions of the given debug type running a Flutter app
func FlutterFilter(debugType string) Filter {
	return func(s *domain.DebugSession) bool {
		return s != nil && s.Type == debugType && s.Configuration.DebuggerType == domain.DebuggerTypeFlutter
	}
}

// Coordinator is the session state machine.
type Coordinator struct {
	logger        *zap.Logger
	registry      *session.Registry
	caller        Caller
	filter        Filter
	workspaceRoot string
	prefix        string

	urisEvent      string
	extensionEvent string

	subs       events.Group
	started    *events.Bus[*session.Record]
	ready      *events.Bus[*session.Record]
	viewer     *events.Bus[*session.Record]
	terminated *events.Bus[*session.Record]
}

// Option configures a Coordinator
type Option func(*Coordinator)

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithFilter replaces the default Flutter session filter
func WithFilter(f Filter) Option {
	return func(c *Coordinator) {
		if f != nil {
			c.filter = f
		}
	}
}

// WithWorkspaceRoot sets the directory labels are made relative to
func WithWorkspaceRoot(root string) Option {
	return func(c *Coordinator) { c.workspaceRoot = root }
}

// WithEventPrefix sets the debug adapter prefix of custom event names
func WithEventPrefix(prefix string) Option {
	return func(c *Coordinator) { c.prefix = prefix }
}

// WithRegistry uses reg instead of a fresh registry
func WithRegistry(reg *session.Registry) Option {
	return func(c *Coordinator) {
		if reg != nil {
			c.registry = reg
		}
	}
}

// New subscribes to host and starts tracking sessions. Close releases the
// subscriptions.
func New(host Host, caller Caller, opts ...Option) *Coordinator {
	c := &Coordinator{
		logger:     zap.NewNop(),
		registry:   session.NewRegistry(),
		caller:     caller,
		filter:     FlutterFilter(domain.DefaultDebugType),
		prefix:     domain.DefaultAdapterPrefix,
		started:    events.NewBus[*session.Record](),
		ready:      events.NewBus[*session.Record](),
		viewer:     events.NewBus[*session.Record](),
		terminated: events.NewBus[*session.Record](),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.urisEvent = domain.EventName(c.prefix, domain.DebuggerUrisEvent)
	c.extensionEvent = domain.EventName(c.prefix, domain.ServiceExtensionAddedEvent)

	c.subs.Add(
		host.OnDidStartSession(c.handleSessionStart),
		host.OnDidTerminateSession(c.handleSessionEnd),
		host.OnDidReceiveCustomEvent(c.handleCustomEvent),
		c.started,
		c.ready,
		c.viewer,
		c.terminated,
	)
	return c
}

// Close releases every subscription at once
func (c *Coordinator) Close() error {
	c.subs.Unsubscribe()
	return nil
}

// Registry returns the tracked sessions
func (c *Coordinator) Registry() *session.Registry { return c.registry }

// Viewers returns the sessions hosting the viewer extension
func (c *Coordinator) Viewers() []*session.Record { return c.registry.Viewers() }

// Targets returns the non-viewer sessions, ready or not
func (c *Coordinator) Targets() []*session.Record { return c.registry.Targets() }

// SessionStarted fires after a tracked session was added
func (c *Coordinator) SessionStarted() events.Source[*session.Record] { return c.started }

// SessionReady fires after a session announced its VM service
func (c *Coordinator) SessionReady() events.Source[*session.Record] { return c.ready }

// ViewerReady fires after a session was promoted to viewer
func (c *Coordinator) ViewerReady() events.Source[*session.Record] { return c.viewer }

// SessionTerminated fires after a session was removed and viewers were told
func (c *Coordinator) SessionTerminated() events.Source[*session.Record] { return c.terminated }

func (c *Coordinator) handleSessionStart(s *domain.DebugSession) {
	if !c.filter(s) {
		return
	}

	rec := session.NewRecord(s, session.DeriveLabel(c.workspaceRoot, s.Configuration.Program))
	if err := c.registry.Add(rec); err != nil {
		c.logger.Debug("Ignoring duplicate session start", zap.String("session", s.ID), zap.Error(err))
		return
	}

	c.logger.Info("Debug session started: "+rec.Label(), zap.String("session", rec.ID()))
	c.started.Fire(rec)
}

func (c *Coordinator) handleSessionEnd(s *domain.DebugSession) {
	rec, ok := c.registry.Remove(s)
	if !ok {
		return
	}

	c.logger.Info("Debug session ended: "+rec.Label(), zap.String("session", rec.ID()))

	c.announceTargetRemoved(rec)
	c.terminated.Fire(rec)
}

func (c *Coordinator) handleCustomEvent(ev domain.CustomEvent) {
	rec, ok := c.registry.Find(ev.Session)
	if !ok {
		return
	}

	switch ev.Event {
	case c.urisEvent:
		var body domain.DebuggerUrisBody
		if err := json.Unmarshal(ev.Body, &body); err != nil || body.VMServiceURI == nil {
			c.logger.Debug("Ignoring malformed event", zap.String("event", ev.Event), zap.String("session", rec.ID()))
			return
		}
		if err := rec.MarkReady(*body.VMServiceURI); err != nil {
			c.logger.Debug("Ignoring endpoint announcement", zap.String("session", rec.ID()), zap.Error(err))
			return
		}

		c.logger.Info("Debug session ready: "+rec.Label(), zap.String("session", rec.ID()))

		c.announceTargetAdded(rec)
		c.ready.Fire(rec)

	case c.extensionEvent:
		var body domain.ServiceExtensionAddedBody
		if err := json.Unmarshal(ev.Body, &body); err != nil || body.ExtensionRPC == nil || body.IsolateID == nil {
			c.logger.Debug("Ignoring malformed event", zap.String("event", ev.Event), zap.String("session", rec.ID()))
			return
		}
		if *body.ExtensionRPC != domain.MethodRemoveTargetApp {
			return
		}
		if err := rec.Promote(*body.IsolateID); err != nil {
			c.logger.Debug("Ignoring viewer announcement", zap.String("session", rec.ID()), zap.Error(err))
			return
		}

		c.logger.Info("Viewer debug session ready: "+rec.Label(), zap.String("session", rec.ID()))

		c.announceViewer(rec)
		c.viewer.Fire(rec)
	}
}

// announceTargetAdded tells every other viewer about a target that became ready
func (c *Coordinator) announceTargetAdded(rec *session.Record) {
	// A viewer that reports its endpoint late is still not a target.
	if rec.IsViewer() {
		return
	}
	app, err := rec.TargetApp()
	if err != nil {
		return
	}
	for _, viewer := range c.registry.Viewers() {
		if viewer == rec {
			continue
		}
		c.logger.Debug("Adding target "+app.Label+" to "+viewer.Label(), zap.String("target", app.ID), zap.String("viewer", viewer.ID()))
		c.caller.AddTargetApp(viewer, app)
	}
}

// announceTargetRemoved tells every viewer that rec is gone, whatever role it had
func (c *Coordinator) announceTargetRemoved(rec *session.Record) {
	for _, viewer := range c.registry.Viewers() {
		c.logger.Debug("Removing target "+rec.Label()+" from "+viewer.Label(), zap.String("target", rec.ID()), zap.String("viewer", viewer.ID()))
		c.caller.RemoveTargetApp(viewer, rec.ID())
	}
}

// announceViewer scrubs rec from the other viewers before seeding it with the
// current targets, so no viewer ever lists itself.
func (c *Coordinator) announceViewer(rec *session.Record) {
	for _, viewer := range c.registry.Viewers() {
		if viewer == rec {
			continue
		}
		c.logger.Debug("Removing target "+rec.Label()+" from "+viewer.Label(), zap.String("target", rec.ID()), zap.String("viewer", viewer.ID()))
		c.caller.RemoveTargetApp(viewer, rec.ID())
	}

	for _, target := range c.registry.Targets() {
		app, err := target.TargetApp()
		if err != nil {
			// Not ready yet; it is announced when its endpoint arrives.
			continue
		}
		c.logger.Debug("Adding target "+app.Label+" to "+rec.Label(), zap.String("target", app.ID), zap.String("viewer", rec.ID()))
		c.caller.AddTargetApp(rec, app)
	}
}

// Package view implements the open view command: pick a target, wait for it
// to become ready, show it in a panel and close the panel when it ends.
package view

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/blaugold/explo/internal/events"
	"github.com/blaugold/explo/internal/session"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

var (
	// ErrNoSelection is returned when no target was chosen
	ErrNoSelection = errors.New("no debug session selected")
	// ErrReadyTimeout is returned when the target did not become ready in time
	ErrReadyTimeout = errors.New("timed out waiting for debug session to become ready")
	// ErrSessionEnded is returned when the target terminated before its view opened
	ErrSessionEnded = errors.New("debug session ended")
)

// Sessions is the coordinator surface the open flow depends on
type Sessions interface {
	Targets() []*session.Record
	SessionStarted() events.Source[*session.Record]
	SessionReady() events.Source[*session.Record]
	SessionTerminated() events.Source[*session.Record]
}

// Selector picks a target
type Selector interface {
	Select(ctx context.Context, targets []*session.Record) (*session.Record, bool, error)
}

// ProgressFunc is called periodically while waiting for a target
type ProgressFunc func(rec *session.Record, elapsed time.Duration)

// Options tune the open flow. Zero durations disable the respective wait.
type Options struct {
	// DiscoverTimeout is how long to wait for a first session when none is
	// tracked yet
	DiscoverTimeout time.Duration
	// ReadyTimeout bounds the wait for the target's VM service
	ReadyTimeout time.Duration
	// ProgressInterval is the period of Progress calls
	ProgressInterval time.Duration
	Progress         ProgressFunc

	Theme   ThemeMode
	BaseURI string
}

// Opener runs the open view command
type Opener struct {
	sessions Sessions
	selector Selector
	panels   *Manager
	opts     Options
	clock    clock.Clock
	logger   *zap.Logger
}

// NewOpener creates an opener. clk and logger may be nil.
func NewOpener(sessions Sessions, selector Selector, panels *Manager, opts Options, clk clock.Clock, logger *zap.Logger) *Opener {
	if clk == nil {
		clk = clock.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Opener{sessions: sessions, selector: selector, panels: panels, opts: opts, clock: clk, logger: logger}
}

// OpenView selects a target and opens its view. The returned panel closes by
// itself when the target terminates. Canceling ctx while waiting returns
// ctx's error and opens nothing.
func (o *Opener) OpenView(ctx context.Context) (*Panel, error) {
	o.logger.Debug("command:explo.openView")

	if err := o.discover(ctx); err != nil {
		return nil, err
	}

	rec, ok, err := o.selector.Select(ctx, o.sessions.Targets())
	if err != nil {
		return nil, fmt.Errorf("select debug session: %w", err)
	}
	if !ok {
		return nil, ErrNoSelection
	}

	// Subscribe before looking at the record so a termination in between is
	// still observed.
	terminated := events.Watch(o.sessions.SessionTerminated(), func(r *session.Record) bool { return r == rec })
	if !lo.Contains(o.sessions.Targets(), rec) {
		terminated.Cancel()
		return nil, fmt.Errorf("%w: %s", ErrSessionEnded, rec.Label())
	}

	if err := o.awaitReady(ctx, rec, terminated); err != nil {
		terminated.Cancel()
		return nil, err
	}

	content, err := Render(Content{BaseURI: o.opts.BaseURI, VMServiceURI: rec.VMServiceURI(), ThemeMode: o.opts.Theme})
	if err != nil {
		terminated.Cancel()
		return nil, err
	}
	panel, created, err := o.panels.Open(rec, o.opts.Theme, content, o.clock.Now())
	if err != nil {
		terminated.Cancel()
		return nil, err
	}
	if !created {
		// the existing panel already has a close watcher
		terminated.Cancel()
		return panel, nil
	}

	go func() {
		select {
		case <-terminated.Done():
			o.panels.Close(rec, ReasonSessionTerminated)
		case <-panel.Closed():
			terminated.Cancel()
		}
	}()
	return panel, nil
}

// discover waits for a first session to start when none is tracked yet
func (o *Opener) discover(ctx context.Context) error {
	if o.opts.DiscoverTimeout <= 0 || len(o.sessions.Targets()) > 0 {
		return nil
	}

	started := events.Watch(o.sessions.SessionStarted(), func(*session.Record) bool { return true })
	defer started.Cancel()
	if len(o.sessions.Targets()) > 0 {
		return nil
	}

	waitCtx, cancel := o.clock.WithTimeout(ctx, o.opts.DiscoverTimeout)
	defer cancel()
	// A timeout is not an error: the selection reports that nothing is there.
	if _, err := started.Wait(waitCtx); err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return nil
}

// awaitReady blocks until rec announced its VM service, reporting progress
func (o *Opener) awaitReady(ctx context.Context, rec *session.Record, terminated *events.Waiter[*session.Record]) error {
	ready := events.Watch(o.sessions.SessionReady(), func(r *session.Record) bool { return r == rec })
	defer ready.Cancel()
	if rec.IsReady() {
		return nil
	}

	o.logger.Info("Waiting for debug session to become ready: "+rec.Label(), zap.String("session", rec.ID()))

	waitCtx, cancel := ctx, context.CancelFunc(func() {})
	if o.opts.ReadyTimeout > 0 {
		waitCtx, cancel = o.clock.WithTimeout(ctx, o.opts.ReadyTimeout)
	}
	defer cancel()

	var ticks <-chan time.Time
	if o.opts.ProgressInterval > 0 && o.opts.Progress != nil {
		ticker := o.clock.Ticker(o.opts.ProgressInterval)
		defer ticker.Stop()
		ticks = ticker.C
	}
	start := o.clock.Now()

	for {
		select {
		case <-ready.Done():
			return nil
		case <-terminated.Done():
			return fmt.Errorf("%w: %s", ErrSessionEnded, rec.Label())
		case <-ticks:
			o.opts.Progress(rec, o.clock.Since(start))
		case <-waitCtx.Done():
			if err := ctx.Err(); err != nil {
				return err
			}
			return fmt.Errorf("%w: %s", ErrReadyTimeout, rec.Label())
		}
	}
}

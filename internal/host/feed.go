// Package host decodes the debug host's session notifications from an NDJSON
// stream and delivers them as serialized events.
package host

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/blaugold/explo/internal/domain"
	"github.com/blaugold/explo/internal/events"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// Notification types of the host feed
const (
	TypeSessionStart     = "session_start"
	TypeSessionTerminate = "session_terminate"
	TypeCustomEvent      = "custom_event"
)

// maxLineSize bounds one feed line
const maxLineSize = 1 << 20

// Notification is one line of the host feed
type Notification struct {
	Type          string                     `json:"type"`
	Session       string                     `json:"session"`
	DebugType     string                     `json:"debugType,omitempty"`
	Name          string                     `json:"name,omitempty"`
	Configuration domain.LaunchConfiguration `json:"configuration"`
	Event         string                     `json:"event,omitempty"`
	Body          json.RawMessage            `json:"body,omitempty"`
}

// Feed turns notification lines into session events. All events are fired on
// the goroutine running Run, one at a time.
type Feed struct {
	logger         *zap.Logger
	terminateOnEOF bool

	start     *events.Bus[*domain.DebugSession]
	terminate *events.Bus[*domain.DebugSession]
	custom    *events.Bus[domain.CustomEvent]

	// live sessions by id, in start order
	live  map[string]*domain.DebugSession
	order []string
}

// Option configures a Feed
type Option func(*Feed)

// WithLogger sets the logger malformed lines are reported to
func WithLogger(l *zap.Logger) Option {
	return func(f *Feed) {
		if l != nil {
			f.logger = l
		}
	}
}

// WithTerminateOnEOF controls whether sessions still live at the end of the
// stream are terminated. Enabled by default.
func WithTerminateOnEOF(enabled bool) Option {
	return func(f *Feed) { f.terminateOnEOF = enabled }
}

// NewFeed creates a feed
func NewFeed(opts ...Option) *Feed {
	f := &Feed{
		logger:         zap.NewNop(),
		terminateOnEOF: true,
		start:          events.NewBus[*domain.DebugSession](),
		terminate:      events.NewBus[*domain.DebugSession](),
		custom:         events.NewBus[domain.CustomEvent](),
		live:           make(map[string]*domain.DebugSession),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// OnDidStartSession subscribes to session starts
func (f *Feed) OnDidStartSession(handler func(*domain.DebugSession)) events.Subscription {
	return f.start.Subscribe(handler)
}

// OnDidTerminateSession subscribes to session terminations
func (f *Feed) OnDidTerminateSession(handler func(*domain.DebugSession)) events.Subscription {
	return f.terminate.Subscribe(handler)
}

// OnDidReceiveCustomEvent subscribes to custom protocol events
func (f *Feed) OnDidReceiveCustomEvent(handler func(domain.CustomEvent)) events.Subscription {
	return f.custom.Subscribe(handler)
}

// Run reads r until EOF or ctx is done. Malformed lines are logged and skipped.
func (f *Feed) Run(ctx context.Context, r io.Reader) error {
	lines := make(chan string)
	scanErr := make(chan error, 1)

	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 64*1024), maxLineSize)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				err := <-scanErr
				if f.terminateOnEOF {
					f.TerminateAll()
				}
				if err != nil {
					return fmt.Errorf("read host feed: %w", err)
				}
				return nil
			}
			if err := f.HandleLine(line); err != nil {
				f.logger.Warn("Skipping host notification", zap.Error(err))
			}
		}
	}
}

// HandleLine decodes and delivers one notification line. Blank lines are
// ignored.
func (f *Feed) HandleLine(line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	var n Notification
	if err := json.Unmarshal([]byte(line), &n); err != nil {
		return fmt.Errorf("decode notification: %w", err)
	}
	return f.Handle(n)
}

// Handle delivers one decoded notification
func (f *Feed) Handle(n Notification) error {
	if n.Session == "" {
		return errors.New("notification has no session id")
	}

	switch n.Type {
	case TypeSessionStart:
		if _, ok := f.live[n.Session]; ok {
			return fmt.Errorf("session %s started twice", n.Session)
		}
		s := &domain.DebugSession{
			ID:            n.Session,
			Type:          n.DebugType,
			Name:          n.Name,
			Configuration: n.Configuration,
		}
		f.live[n.Session] = s
		f.order = append(f.order, n.Session)
		f.start.Fire(s)

	case TypeSessionTerminate:
		s, ok := f.live[n.Session]
		if !ok {
			return fmt.Errorf("unknown session %s terminated", n.Session)
		}
		f.forget(n.Session)
		f.terminate.Fire(s)

	case TypeCustomEvent:
		s, ok := f.live[n.Session]
		if !ok {
			return fmt.Errorf("custom event %q for unknown session %s", n.Event, n.Session)
		}
		if n.Event == "" {
			return errors.New("custom event has no name")
		}
		f.custom.Fire(domain.CustomEvent{Session: s, Event: n.Event, Body: n.Body})

	default:
		return fmt.Errorf("unknown notification type %q", n.Type)
	}
	return nil
}

// TerminateAll terminates every live session in start order
func (f *Feed) TerminateAll() {
	ids := append([]string(nil), f.order...)
	for _, id := range ids {
		s := f.live[id]
		f.forget(id)
		f.logger.Debug("Terminating session at end of feed", zap.String("session", id))
		f.terminate.Fire(s)
	}
}

// Live returns the ids of sessions the host reported as running
func (f *Feed) Live() []string {
	return append([]string(nil), f.order...)
}

func (f *Feed) forget(id string) {
	delete(f.live, id)
	f.order = lo.Without(f.order, id)
}

// Close drops every subscriber
func (f *Feed) Close() error {
	f.start.Unsubscribe()
	f.terminate.Unsubscribe()
	f.custom.Unsubscribe()
	return nil
}

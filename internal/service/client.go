// Package service dispatches VM service extension calls into debug sessions.
//
// Calls are fire-and-forget: the client hands a request to a Transport and
// returns a Pending result that callers may ignore. Failures are logged, never
// retried.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"sync"

	"github.com/blaugold/explo/internal/domain"
	"github.com/blaugold/explo/internal/session"
	"go.uber.org/zap"
)

// Request is one service call addressed to a session's running process.
type Request struct {
	SessionID string
	Endpoint  string // VM service URI of the addressed session, if known
	Method    string
	Params    map[string]any
}

// Transport delivers requests. Dispatch must not block on the network.
type Transport interface {
	Dispatch(req Request) *Pending
}

// Pending is the eventual outcome of a dispatched call.
type Pending struct {
	once sync.Once
	done chan struct{}
	err  error
}

// NewPending creates an unresolved result
func NewPending() *Pending {
	return &Pending{done: make(chan struct{})}
}

// Resolved creates a result that is already resolved with err
func Resolved(err error) *Pending {
	p := NewPending()
	p.Resolve(err)
	return p
}

// Resolve settles the result. Only the first call has an effect.
func (p *Pending) Resolve(err error) {
	p.once.Do(func() {
		p.err = err
		close(p.done)
	})
}

// Done is closed once the call was acknowledged or failed
func (p *Pending) Done() <-chan struct{} { return p.done }

// Err returns the outcome; nil until resolved
func (p *Pending) Err() error {
	select {
	case <-p.done:
		return p.err
	default:
		return nil
	}
}

// Wait blocks until the call settles or ctx is done
func (p *Pending) Wait(ctx context.Context) error {
	select {
	case <-p.done:
		return p.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Client builds explo extension calls for session records.
type Client struct {
	transport Transport
	logger    *zap.Logger
}

// Option configures a Client
type Option func(*Client)

// WithLogger sets the logger dispatch failures are reported to
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient creates a client on top of transport
func NewClient(transport Transport, opts ...Option) *Client {
	c := &Client{transport: transport, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Call dispatches method to the process behind rec. params is copied and
// augmented with rec's isolate id when it has one.
func (c *Client) Call(rec *session.Record, method string, params map[string]any) *Pending {
	p := make(map[string]any, len(params)+1)
	maps.Copy(p, params)
	if iso := rec.IsolateID(); iso != "" {
		p["isolateId"] = iso
	}

	req := Request{
		SessionID: rec.ID(),
		Endpoint:  rec.VMServiceURI(),
		Method:    method,
		Params:    p,
	}

	pending := c.transport.Dispatch(req)
	if pending == nil {
		pending = Resolved(nil)
	}
	go c.observe(rec, method, pending)
	return pending
}

func (c *Client) observe(rec *session.Record, method string, p *Pending) {
	<-p.Done()
	if err := p.Err(); err != nil {
		c.logger.Debug("service call failed",
			zap.String("session", rec.ID()),
			zap.String("label", rec.Label()),
			zap.String("method", method),
			zap.Error(err),
		)
	}
}

// AddTargetApp tells viewer about app
func (c *Client) AddTargetApp(viewer *session.Record, app domain.TargetApp) *Pending {
	encoded, err := json.Marshal(app)
	if err != nil {
		return Resolved(fmt.Errorf("encode target app: %w", err))
	}
	return c.Call(viewer, domain.MethodAddTargetApp, map[string]any{
		"app": string(encoded),
	})
}

// RemoveTargetApp tells viewer the target with id is gone
func (c *Client) RemoveTargetApp(viewer *session.Record, id string) *Pending {
	return c.Call(viewer, domain.MethodRemoveTargetApp, map[string]any{
		"id": id,
	})
}

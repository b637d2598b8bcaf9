package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var (
	// ErrNoEndpoint is returned for a session that never announced its VM service
	ErrNoEndpoint = errors.New("session has no vm service endpoint")
	// ErrClosed is returned once the transport or the session's peer is closed
	ErrClosed = errors.New("vm service transport closed")
	// ErrQueueFull is returned when a peer has too many calls waiting to be sent
	ErrQueueFull = errors.New("vm service send queue is full")
	// ErrCallTimeout is returned when a call is not acknowledged in time
	ErrCallTimeout = errors.New("vm service call timed out")
)

// RPCError is a JSON-RPC error returned by the VM service
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("vm service error %d: %s", e.Code, e.Message)
}

type rpcRequest struct {
	JSONRPC string         `json:"jsonrpc"`
	ID      string         `json:"id"`
	Method  string         `json:"method"`
	Params  map[string]any `json:"params,omitempty"`
}

type rpcResponse struct {
	ID     json.RawMessage `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
}

// VMServiceConfig configures the websocket transport
type VMServiceConfig struct {
	DialTimeout time.Duration
	CallTimeout time.Duration
	QueueSize   int
	Clock       clock.Clock
	Logger      *zap.Logger
	Dialer      *websocket.Dialer
}

// DefaultVMServiceConfig returns the defaults used by the CLI
func DefaultVMServiceConfig() VMServiceConfig {
	return VMServiceConfig{
		DialTimeout: 5 * time.Second,
		CallTimeout: 10 * time.Second,
		QueueSize:   64,
	}
}

// VMService calls service extensions directly over each session's VM service
// websocket. Calls to one session are written in dispatch order.
type VMService struct {
	cfg VMServiceConfig

	mu     sync.Mutex
	peers  map[string]*peer
	closed bool
}

// NewVMService creates a transport; zero config fields take defaults
func NewVMService(cfg VMServiceConfig) *VMService {
	def := DefaultVMServiceConfig()
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = def.DialTimeout
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = def.CallTimeout
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Dialer == nil {
		cfg.Dialer = websocket.DefaultDialer
	}
	return &VMService{cfg: cfg, peers: make(map[string]*peer)}
}

// Dispatch queues req for the session's connection
func (v *VMService) Dispatch(req Request) *Pending {
	if req.Endpoint == "" {
		return Resolved(fmt.Errorf("%s: %w", req.SessionID, ErrNoEndpoint))
	}
	wsURL, err := WebSocketURL(req.Endpoint)
	if err != nil {
		return Resolved(err)
	}

	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return Resolved(ErrClosed)
	}
	p := v.peers[req.SessionID]
	if p != nil && p.url != wsURL {
		delete(v.peers, req.SessionID)
		go p.shutdown(ErrClosed)
		p = nil
	}
	if p == nil {
		p = newPeer(v, req.SessionID, wsURL)
		v.peers[req.SessionID] = p
		go p.run()
	}
	v.mu.Unlock()

	out := outbound{id: uuid.NewString(), req: req, pending: NewPending()}
	p.enqueue(out)
	return out.pending
}

// Forget closes the connection to a session that went away
func (v *VMService) Forget(sessionID string) {
	v.mu.Lock()
	p := v.peers[sessionID]
	delete(v.peers, sessionID)
	v.mu.Unlock()

	if p != nil {
		p.shutdown(ErrClosed)
	}
}

// Peers returns the number of sessions with an open peer
func (v *VMService) Peers() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.peers)
}

// Close tears down every connection and fails calls still in flight
func (v *VMService) Close() error {
	v.mu.Lock()
	v.closed = true
	peers := v.peers
	v.peers = make(map[string]*peer)
	v.mu.Unlock()

	for _, p := range peers {
		p.shutdown(ErrClosed)
	}
	return nil
}

// WebSocketURL maps a VM service URI to its websocket endpoint
func WebSocketURL(uri string) (string, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("invalid vm service uri %q: %w", uri, err)
	}
	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported vm service uri scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("vm service uri %q has no host", uri)
	}
	if !strings.HasSuffix(u.Path, "/ws") {
		u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	}
	return u.String(), nil
}

type outbound struct {
	id      string
	req     Request
	pending *Pending
}

type call struct {
	pending *Pending
	timer   *clock.Timer
}

// link is one websocket connection and the calls waiting on it
type link struct {
	conn     *websocket.Conn
	inflight map[string]*call
}

// peer owns the connection to one session
type peer struct {
	v         *VMService
	sessionID string
	url       string
	queue     chan outbound
	quit      chan struct{}
	closeOnce sync.Once

	mu      sync.Mutex
	closed  bool
	current *link
}

func newPeer(v *VMService, sessionID, url string) *peer {
	return &peer{
		v:         v,
		sessionID: sessionID,
		url:       url,
		queue:     make(chan outbound, v.cfg.QueueSize),
		quit:      make(chan struct{}),
	}
}

func (p *peer) enqueue(out outbound) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		out.pending.Resolve(ErrClosed)
		return
	}
	select {
	case p.queue <- out:
	default:
		out.pending.Resolve(fmt.Errorf("%s: %w", p.sessionID, ErrQueueFull))
	}
}

func (p *peer) run() {
	for {
		select {
		case <-p.quit:
			return
		case out := <-p.queue:
			p.send(out)
		}
	}
}

func (p *peer) send(out outbound) {
	l, err := p.connect()
	if err != nil {
		out.pending.Resolve(err)
		return
	}

	p.mu.Lock()
	if p.closed || p.current != l {
		p.mu.Unlock()
		out.pending.Resolve(ErrClosed)
		return
	}
	c := &call{pending: out.pending}
	c.timer = p.v.cfg.Clock.AfterFunc(p.v.cfg.CallTimeout, func() {
		p.settle(l, out.id, fmt.Errorf("%s %s: %w", p.sessionID, out.req.Method, ErrCallTimeout))
	})
	l.inflight[out.id] = c
	p.mu.Unlock()

	msg := rpcRequest{JSONRPC: "2.0", ID: out.id, Method: out.req.Method, Params: out.req.Params}
	_ = l.conn.SetWriteDeadline(time.Now().Add(p.v.cfg.DialTimeout))
	if err := l.conn.WriteJSON(msg); err != nil {
		p.drop(l, fmt.Errorf("write %s: %w", out.req.Method, err))
		return
	}
	p.v.cfg.Logger.Debug("vm service call sent",
		zap.String("session", p.sessionID),
		zap.String("method", out.req.Method),
		zap.String("id", out.id),
	)
}

func (p *peer) connect() (*link, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrClosed
	}
	if p.current != nil {
		l := p.current
		p.mu.Unlock()
		return l, nil
	}
	p.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), p.v.cfg.DialTimeout)
	defer cancel()
	conn, _, err := p.v.cfg.Dialer.DialContext(ctx, p.url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial vm service for %s: %w", p.sessionID, err)
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		conn.Close()
		return nil, ErrClosed
	}
	l := &link{conn: conn, inflight: make(map[string]*call)}
	p.current = l
	p.mu.Unlock()

	go p.read(l)
	return l, nil
}

func (p *peer) read(l *link) {
	for {
		_, data, err := l.conn.ReadMessage()
		if err != nil {
			p.drop(l, fmt.Errorf("vm service connection lost: %w", err))
			return
		}
		var resp rpcResponse
		if err := json.Unmarshal(data, &resp); err != nil {
			p.v.cfg.Logger.Debug("ignoring malformed vm service message",
				zap.String("session", p.sessionID), zap.Error(err))
			continue
		}
		id := strings.Trim(string(resp.ID), `"`)
		if id == "" || id == "null" {
			// Stream notifications carry no id.
			continue
		}
		if resp.Error != nil {
			p.settle(l, id, resp.Error)
			continue
		}
		p.settle(l, id, nil)
	}
}

func (p *peer) settle(l *link, id string, err error) {
	p.mu.Lock()
	c, ok := l.inflight[id]
	delete(l.inflight, id)
	p.mu.Unlock()

	if !ok {
		return
	}
	c.timer.Stop()
	c.pending.Resolve(err)
}

// drop fails every call on l and forgets the connection so the next call
// redials.
func (p *peer) drop(l *link, err error) {
	p.mu.Lock()
	if p.current == l {
		p.current = nil
	}
	calls := l.inflight
	l.inflight = make(map[string]*call)
	p.mu.Unlock()

	l.conn.Close()
	for _, c := range calls {
		c.timer.Stop()
		c.pending.Resolve(err)
	}
}

func (p *peer) shutdown(err error) {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		l := p.current
		p.current = nil
		p.mu.Unlock()

		close(p.quit)
		if l != nil {
			p.drop(l, err)
		}
		for {
			select {
			case out := <-p.queue:
				out.pending.Resolve(err)
			default:
				return
			}
		}
	})
}

package session

import (
	"errors"
	"sync"

	"github.com/blaugold/explo/internal/domain"
)

var (
	// ErrNotReady is returned when a target descriptor is requested before the
	// session announced its VM service endpoint
	ErrNotReady = errors.New("session is not ready")
	// ErrAlreadyReady is returned when an endpoint is announced twice
	ErrAlreadyReady = errors.New("session is already ready")
	// ErrAlreadyViewer is returned when a session is promoted twice
	ErrAlreadyViewer = errors.New("session is already a viewer")
	// ErrEmptyEndpoint is returned for an empty VM service URI
	ErrEmptyEndpoint = errors.New("vm service uri is empty")
	// ErrEmptyIsolate is returned for an empty isolate id
	ErrEmptyIsolate = errors.New("isolate id is empty")
)

// Phase is the coarse progression of a tracked session. It never goes back.
type Phase int

const (
	PhaseStarted Phase = iota
	PhaseReady
	PhaseViewer
)

// String returns the phase name used in NDJSON output
func (p Phase) String() string {
	switch p {
	case PhaseStarted:
		return "started"
	case PhaseReady:
		return "ready"
	case PhaseViewer:
		return "viewer"
	default:
		return "unknown"
	}
}

// viewerRole exists only once a session hosts the viewer extension; the
// isolate id cannot be missing for a viewer.
type viewerRole struct {
	isolateID string
}

// Record is the coordinator's view of one debug session.
type Record struct {
	session *domain.DebugSession
	label   string

	mu       sync.RWMutex
	endpoint string
	viewer   *viewerRole
}

// NewRecord creates a record in the started phase
func NewRecord(s *domain.DebugSession, label string) *Record {
	return &Record{session: s, label: label}
}

// Session returns the underlying debug session handle
func (r *Record) Session() *domain.DebugSession { return r.session }

// ID returns the debug session id
func (r *Record) ID() string {
	if r.session == nil {
		return ""
	}
	return r.session.ID
}

// Label returns the label derived when the record was created
func (r *Record) Label() string { return r.label }

// VMServiceURI returns the announced endpoint, or "" when not ready
func (r *Record) VMServiceURI() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.endpoint
}

// IsolateID returns the viewer isolate id, or "" when not a viewer
func (r *Record) IsolateID() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.viewer == nil {
		return ""
	}
	return r.viewer.isolateID
}

// IsReady reports whether the VM service endpoint is known
func (r *Record) IsReady() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.endpoint != ""
}

// IsViewer reports whether the session hosts the viewer extension
func (r *Record) IsViewer() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.viewer != nil
}

// Phase returns the current phase
func (r *Record) Phase() Phase {
	r.mu.RLock()
	defer r.mu.RUnlock()
	switch {
	case r.viewer != nil:
		return PhaseViewer
	case r.endpoint != "":
		return PhaseReady
	default:
		return PhaseStarted
	}
}

// MarkReady sets the VM service endpoint. It can only be set once.
func (r *Record) MarkReady(uri string) error {
	if uri == "" {
		return ErrEmptyEndpoint
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.endpoint != "" {
		return ErrAlreadyReady
	}
	r.endpoint = uri
	return nil
}

// Promote marks the session as a viewer hosted by isolateID. It can only be
// done once.
func (r *Record) Promote(isolateID string) error {
	if isolateID == "" {
		return ErrEmptyIsolate
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.viewer != nil {
		return ErrAlreadyViewer
	}
	r.viewer = &viewerRole{isolateID: isolateID}
	return nil
}

// TargetApp returns the descriptor viewers use to attach to this session
func (r *Record) TargetApp() (domain.TargetApp, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.endpoint == "" {
		return domain.TargetApp{}, ErrNotReady
	}
	return domain.TargetApp{
		ID:           r.ID(),
		Label:        r.label,
		VMServiceURI: r.endpoint,
	}, nil
}

// Event renders the record as an NDJSON session event of type typ
func (r *Record) Event(typ string) *domain.SessionEvent {
	return domain.NewSessionEvent(typ, r.ID(), r.label, r.Phase().String(), r.VMServiceURI(), r.IsolateID())
}

package domain

import "time"

// SchemaVersion is the version of every NDJSON record explo emits
const SchemaVersion = 1

// Output record types
const (
	TypeSessionStarted    = "session_started"
	TypeSessionReady      = "session_ready"
	TypeViewerReady       = "viewer_ready"
	TypeSessionTerminated = "session_terminated"
	TypeCallService       = "call_service"
	TypeViewOpen          = "view_open"
	TypeViewClose         = "view_close"
)

// SessionEvent is emitted for every tracked session transition
type SessionEvent struct {
	Type          string `json:"type"`                     // session_started, session_ready, ...
	SchemaVersion int    `json:"schemaVersion"`            // 1
	Session       string `json:"session"`                  // Debug session id
	Label         string `json:"label"`                    // Derived label
	Phase         string `json:"phase"`                    // started, ready, viewer
	VMServiceURI  string `json:"vm_service_uri,omitempty"` // Set once ready
	IsolateID     string `json:"isolate_id,omitempty"`     // Set once a viewer
	Timestamp     string `json:"timestamp"`                // ISO8601 timestamp
}

// NewSessionEvent creates a SessionEvent stamped with the current time
func NewSessionEvent(typ, session, label, phase, vmServiceURI, isolateID string) *SessionEvent {
	return &SessionEvent{
		Type:          typ,
		SchemaVersion: SchemaVersion,
		Session:       session,
		Label:         label,
		Phase:         phase,
		VMServiceURI:  vmServiceURI,
		IsolateID:     isolateID,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
	}
}

// CallService asks the host to forward a VM service call into a session.
type CallService struct {
	Type          string         `json:"type"` // "call_service"
	SchemaVersion int            `json:"schemaVersion"`
	Session       string         `json:"session"`
	Command       string         `json:"command"` // "callService"
	Method        string         `json:"method"`
	Params        map[string]any `json:"params"`
}

// NewCallService creates a CallService request
func NewCallService(session, method string, params map[string]any) *CallService {
	return &CallService{
		Type:          TypeCallService,
		SchemaVersion: SchemaVersion,
		Session:       session,
		Command:       CallServiceCommand,
		Method:        method,
		Params:        params,
	}
}

// ViewOpen is emitted when a view panel is opened for a target
type ViewOpen struct {
	Type          string `json:"type"` // "view_open"
	SchemaVersion int    `json:"schemaVersion"`
	Session       string `json:"session"`
	Label         string `json:"label"`
	VMServiceURI  string `json:"vm_service_uri"`
	ThemeMode     string `json:"theme_mode"`
	ContentPath   string `json:"content_path,omitempty"` // Written webview document, if any
}

// ViewClose is emitted when a view panel is closed
type ViewClose struct {
	Type          string `json:"type"` // "view_close"
	SchemaVersion int    `json:"schemaVersion"`
	Session       string `json:"session"`
	Label         string `json:"label"`
	Reason        string `json:"reason"` // session_terminated, canceled
}

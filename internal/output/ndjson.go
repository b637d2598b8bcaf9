package output

import (
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/blaugold/explo/internal/domain"
)

// SchemaVersion is re-exported for command output structs
const SchemaVersion = domain.SchemaVersion

// ErrorOutput is the NDJSON form of a command failure
type ErrorOutput struct {
	Type          string `json:"type"` // "error"
	SchemaVersion int    `json:"schemaVersion"`
	Code          string `json:"code"`
	Message       string `json:"message"`
	Hint          string `json:"hint,omitempty"`
}

// InfoOutput is an informational message for the operator
type InfoOutput struct {
	Type          string `json:"type"` // "info"
	SchemaVersion int    `json:"schemaVersion"`
	Message       string `json:"message"`
	Timestamp     string `json:"timestamp"`
}

// WaitingOutput reports progress while waiting for a session
type WaitingOutput struct {
	Type           string `json:"type"` // "waiting"
	SchemaVersion  int    `json:"schemaVersion"`
	Session        string `json:"session"`
	Label          string `json:"label"`
	Reason         string `json:"reason"` // e.g., session_ready
	ElapsedSeconds int    `json:"elapsed_seconds"`
}

// NDJSONWriter writes one JSON object per line. It is safe for concurrent use;
// lines from different goroutines never interleave.
type NDJSONWriter struct {
	mu      sync.Mutex
	encoder *json.Encoder
}

// NewNDJSONWriter creates a writer on w
func NewNDJSONWriter(w io.Writer) *NDJSONWriter {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &NDJSONWriter{encoder: enc}
}

// Write encodes v as one line
func (w *NDJSONWriter) Write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.encoder.Encode(v)
}

// WriteError writes an error record; only the first hint is used
func (w *NDJSONWriter) WriteError(code, message string, hint ...string) error {
	out := ErrorOutput{
		Type:          "error",
		SchemaVersion: SchemaVersion,
		Code:          code,
		Message:       message,
	}
	if len(hint) > 0 {
		out.Hint = hint[0]
	}
	return w.Write(out)
}

// WriteInfo writes an informational message
func (w *NDJSONWriter) WriteInfo(message string) error {
	return w.Write(InfoOutput{
		Type:          "info",
		SchemaVersion: SchemaVersion,
		Message:       message,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
	})
}

// WriteWaiting writes a progress record
func (w *NDJSONWriter) WriteWaiting(session, label, reason string, elapsed time.Duration) error {
	return w.Write(WaitingOutput{
		Type:           "waiting",
		SchemaVersion:  SchemaVersion,
		Session:        session,
		Label:          label,
		Reason:         reason,
		ElapsedSeconds: int(elapsed.Seconds()),
	})
}

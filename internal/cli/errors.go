package cli

import (
	"errors"
	"fmt"

	"github.com/blaugold/explo/internal/output"
)

// Error codes of NDJSON error records
const (
	CodeInvalidFlags  = "INVALID_FLAGS"
	CodeInvalidConfig = "INVALID_CONFIG"
	CodeFeed          = "FEED_ERROR"
	CodeNoSelection   = "NO_SELECTION"
	CodeReadyTimeout  = "READY_TIMEOUT"
	CodeSessionEnded  = "SESSION_ENDED"
	CodeView          = "VIEW_ERROR"
	CodeCanceled      = "CANCELED"
)

// CommandError is returned by commands after the failure was reported, so
// main only has to pick the exit code.
type CommandError struct {
	Code    string
	Message string
	Err     error
}

func (e *CommandError) Error() string {
	return e.Message
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// outputErrorCommon normalizes error emission across commands, respecting
// ndjson vs text formats so scripted hosts always get machine-readable failures.
func outputErrorCommon(globals *Globals, code, message string, hint ...string) error {
	return reportError(globals, nil, code, errors.New(message), hint...)
}

// reportError reports err through out when given, so error records share the
// writer of the command's other records and lines never interleave.
func reportError(globals *Globals, out *output.NDJSONWriter, code string, err error, hint ...string) error {
	message := err.Error()
	if globals != nil && globals.Format == "ndjson" {
		if out == nil {
			out = output.NewNDJSONWriter(globals.Stdout)
		}
		_ = out.WriteError(code, message, hint...)
	} else if globals != nil {
		fmt.Fprintf(globals.Stderr, "Error [%s]: %s", code, message)
		if len(hint) > 0 && hint[0] != "" {
			fmt.Fprintf(globals.Stderr, " (hint: %s)", hint[0])
		}
		fmt.Fprintln(globals.Stderr)
	}
	return &CommandError{Code: code, Message: message, Err: err}
}

package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/blaugold/explo/internal/domain"
)

// schemaTypes lists the record schemas in output order
var schemaTypes = []string{"session_event", "call_service", "view_open", "view_close", "info", "waiting", "error", "sessions", "label", "version"}

// SchemaCmd outputs JSON Schema for explo output records
type SchemaCmd struct {
	Type []string `short:"t" help:"Record types to include (session_event,call_service,view_open,view_close,info,waiting,error,sessions,label,version). Default: all"`
}

// Run executes the schema command
func (c *SchemaCmd) Run(globals *Globals) error {
	if globals.Format == "text" {
		c.outputTextHelp(globals)
		return nil
	}

	schemas := map[string]map[string]any{
		"session_event": sessionEventSchema(),
		"call_service":  callServiceSchema(),
		"view_open":     viewOpenSchema(),
		"view_close":    viewCloseSchema(),
		"info":          infoSchema(),
		"waiting":       waitingSchema(),
		"error":         errorSchema(),
		"sessions":      sessionsSchema(),
		"label":         labelSchema(),
		"version":       versionSchema(),
	}

	typesToOutput := c.Type
	if len(typesToOutput) == 0 {
		typesToOutput = schemaTypes
	}

	defs := map[string]any{}
	for _, t := range typesToOutput {
		t = strings.ToLower(strings.TrimSpace(t))
		if schema, ok := schemas[t]; ok {
			defs[t] = schema
		}
	}

	encoder := json.NewEncoder(globals.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(map[string]any{
		"$schema":     "http://json-schema.org/draft-07/schema#",
		"title":       "Explo Output Schemas",
		"description": "JSON Schema definitions for all explo NDJSON records",
		"definitions": defs,
	})
}

func prop(typ, description string) map[string]any {
	return map[string]any{"type": typ, "description": description}
}

func constProp(value string) map[string]any {
	return map[string]any{"type": "string", "const": value}
}

func sessionEventSchema() map[string]any {
	return map[string]any{
		"type":        "object",
		"title":       "Session Event",
		"description": "A lifecycle transition of a tracked debug session",
		"properties": map[string]any{
			"type": map[string]any{
				"type": "string",
				"enum": []string{domain.TypeSessionStarted, domain.TypeSessionReady, domain.TypeViewerReady, domain.TypeSessionTerminated},
			},
			"schemaVersion":  prop("integer", "Record schema version"),
			"session":        prop("string", "Debug session id"),
			"label":          prop("string", "Label derived from the launch program"),
			"phase":          map[string]any{"type": "string", "enum": []string{"started", "ready", "viewer"}},
			"vm_service_uri": prop("string", "VM service endpoint, once ready"),
			"isolate_id":     prop("string", "Isolate hosting the viewer extension, once a viewer"),
			"timestamp":      map[string]any{"type": "string", "format": "date-time"},
		},
		"required": []string{"type", "schemaVersion", "session", "label", "phase", "timestamp"},
	}
}

func callServiceSchema() map[string]any {
	return map[string]any{
		"type":        "object",
		"title":       "Call Service",
		"description": "Request for the host to forward a VM service call into a session",
		"properties": map[string]any{
			"type":          constProp(domain.TypeCallService),
			"schemaVersion": prop("integer", "Record schema version"),
			"session":       prop("string", "Debug session id of the viewer"),
			"command":       constProp(domain.CallServiceCommand),
			"method": map[string]any{
				"type": "string",
				"enum": []string{domain.MethodAddTargetApp, domain.MethodRemoveTargetApp},
			},
			"params": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"isolateId": prop("string", "Isolate of the viewer"),
					"app":       prop("string", "JSON encoded {id, label, vmServiceUri} of the target (addTargetApp)"),
					"id":        prop("string", "Target session id (removeTargetApp)"),
				},
				"required": []string{"isolateId"},
			},
		},
		"required": []string{"type", "schemaVersion", "session", "command", "method", "params"},
	}
}

func viewOpenSchema() map[string]any {
	return map[string]any{
		"type":        "object",
		"title":       "View Open",
		"description": "A view panel was opened for a target",
		"properties": map[string]any{
			"type":           constProp(domain.TypeViewOpen),
			"schemaVersion":  prop("integer", "Record schema version"),
			"session":        prop("string", "Target session id"),
			"label":          prop("string", "Target label"),
			"vm_service_uri": prop("string", "Endpoint the view connects to"),
			"theme_mode":     map[string]any{"type": "string", "enum": []string{"dark", "light"}},
			"content_path":   prop("string", "Rendered view document, when written"),
		},
		"required": []string{"type", "schemaVersion", "session", "label", "vm_service_uri", "theme_mode"},
	}
}

func viewCloseSchema() map[string]any {
	return map[string]any{
		"type":        "object",
		"title":       "View Close",
		"description": "A view panel was closed",
		"properties": map[string]any{
			"type":          constProp(domain.TypeViewClose),
			"schemaVersion": prop("integer", "Record schema version"),
			"session":       prop("string", "Target session id"),
			"label":         prop("string", "Target label"),
			"reason":        map[string]any{"type": "string", "enum": []string{"session_terminated", "shutdown"}},
		},
		"required": []string{"type", "schemaVersion", "session", "label", "reason"},
	}
}

func infoSchema() map[string]any {
	return map[string]any{
		"type":        "object",
		"title":       "Info",
		"description": "Informational message for the operator",
		"properties": map[string]any{
			"type":          constProp("info"),
			"schemaVersion": prop("integer", "Record schema version"),
			"message":       prop("string", "Message text"),
			"timestamp":     map[string]any{"type": "string", "format": "date-time"},
		},
		"required": []string{"type", "schemaVersion", "message", "timestamp"},
	}
}

func waitingSchema() map[string]any {
	return map[string]any{
		"type":        "object",
		"title":       "Waiting",
		"description": "Progress while waiting for a target to become ready",
		"properties": map[string]any{
			"type":            constProp("waiting"),
			"schemaVersion":   prop("integer", "Record schema version"),
			"session":         prop("string", "Target session id"),
			"label":           prop("string", "Target label"),
			"reason":          constProp("session_ready"),
			"elapsed_seconds": prop("integer", "Seconds waited so far"),
		},
		"required": []string{"type", "schemaVersion", "session", "label", "reason", "elapsed_seconds"},
	}
}

func errorSchema() map[string]any {
	return map[string]any{
		"type":        "object",
		"title":       "Error",
		"description": "Error message from explo",
		"properties": map[string]any{
			"type":          constProp("error"),
			"schemaVersion": prop("integer", "Record schema version"),
			"code": map[string]any{
				"type":        "string",
				"description": "Error code",
				"enum": []string{
					CodeInvalidFlags,
					CodeInvalidConfig,
					CodeFeed,
					CodeNoSelection,
					CodeReadyTimeout,
					CodeSessionEnded,
					CodeView,
					CodeCanceled,
				},
			},
			"message": prop("string", "Human-readable error description"),
			"hint":    prop("string", "Suggested fix"),
		},
		"required": []string{"type", "schemaVersion", "code", "message"},
	}
}

func sessionsSchema() map[string]any {
	return map[string]any{
		"type":        "object",
		"title":       "Sessions",
		"description": "Sessions tracked at the end of a host feed",
		"properties": map[string]any{
			"type":          constProp("sessions"),
			"schemaVersion": prop("integer", "Record schema version"),
			"sessions": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"session":        prop("string", "Debug session id"),
						"label":          prop("string", "Derived label"),
						"phase":          map[string]any{"type": "string", "enum": []string{"started", "ready", "viewer"}},
						"vm_service_uri": prop("string", "VM service endpoint"),
						"isolate_id":     prop("string", "Viewer isolate"),
					},
					"required": []string{"session", "label", "phase"},
				},
			},
		},
		"required": []string{"type", "schemaVersion", "sessions"},
	}
}

func labelSchema() map[string]any {
	return map[string]any{
		"type":        "object",
		"title":       "Label",
		"description": "Label derived for a program path",
		"properties": map[string]any{
			"type":          constProp("label"),
			"schemaVersion": prop("integer", "Record schema version"),
			"program":       prop("string", "Program path"),
			"workspace":     prop("string", "Workspace root the path was made relative to"),
			"label":         prop("string", "Derived label"),
		},
		"required": []string{"type", "schemaVersion", "program", "workspace", "label"},
	}
}

func versionSchema() map[string]any {
	return map[string]any{
		"type":        "object",
		"title":       "Version",
		"description": "Build information",
		"properties": map[string]any{
			"type":          constProp("version"),
			"schemaVersion": prop("integer", "Record schema version"),
			"version":       prop("string", "Release version"),
			"commit":        prop("string", "Source commit"),
			"go_version":    prop("string", "Go toolchain version"),
			"go_install":    prop("string", "Command to install the latest release"),
		},
		"required": []string{"type", "schemaVersion", "version", "commit", "go_install"},
	}
}

// outputTextHelp prints a quick reference of the record types
func (c *SchemaCmd) outputTextHelp(globals *Globals) {
	fmt.Fprintln(globals.Stdout, "Explo Output Types:")
	fmt.Fprintln(globals.Stdout, "")
	fmt.Fprintln(globals.Stdout, "  session_event - session_started, session_ready, viewer_ready, session_terminated")
	fmt.Fprintln(globals.Stdout, "  call_service  - Service call the host forwards to a viewer")
	fmt.Fprintln(globals.Stdout, "  view_open     - View opened for a target")
	fmt.Fprintln(globals.Stdout, "  view_close    - View closed")
	fmt.Fprintln(globals.Stdout, "  info          - Informational message")
	fmt.Fprintln(globals.Stdout, "  waiting       - Waiting for a target to become ready")
	fmt.Fprintln(globals.Stdout, "  error         - Error from explo")
	fmt.Fprintln(globals.Stdout, "  sessions      - Tracked session list")
	fmt.Fprintln(globals.Stdout, "  label         - Derived session label")
	fmt.Fprintln(globals.Stdout, "  version       - Build information")
	fmt.Fprintln(globals.Stdout, "")
	fmt.Fprintln(globals.Stdout, "Use --type to filter: explo schema --type session_event,error")
}

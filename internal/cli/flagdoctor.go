package cli

import "github.com/blaugold/explo/internal/config"

// validateFlags centralizes common flag combinations to keep behavior consistent.
func validateFlags(globals *Globals, dispatch string, session string, interactive bool) error {
	switch dispatch {
	case "", config.DispatchVMService, config.DispatchHost:
	default:
		return outputErrorCommon(globals, CodeInvalidFlags, "unknown dispatch mode "+dispatch, "use --dispatch vmservice or --dispatch host")
	}
	// host dispatch writes call_service records to stdout; text would mix with them
	if dispatch == config.DispatchHost && globals != nil && globals.Format != "ndjson" {
		return outputErrorCommon(globals, CodeInvalidFlags, "--dispatch host requires ndjson output", "add --format ndjson or use --dispatch vmservice")
	}
	if session != "" && interactive {
		return outputErrorCommon(globals, CodeInvalidFlags, "--session cannot be combined with --interactive", "drop one of them")
	}
	// quiet + text is confusing for scripts; steer to ndjson
	if globals != nil && globals.Format == "text" && globals.Quiet {
		return outputErrorCommon(globals, CodeInvalidFlags, "--quiet is only supported with ndjson output", "switch to --format ndjson or drop --quiet")
	}
	return nil
}

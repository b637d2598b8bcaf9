package cli

import (
	"fmt"

	"github.com/blaugold/explo/internal/config"
	"github.com/blaugold/explo/internal/output"
)

// ConfigCmd groups the configuration subcommands
type ConfigCmd struct {
	Show     ConfigShowCmd     `cmd:"" default:"1" help:"Show the effective configuration"`
	Path     ConfigPathCmd     `cmd:"" help:"Show which configuration file is used"`
	Generate ConfigGenerateCmd `cmd:"" help:"Print a sample configuration file"`
}

// ConfigShowCmd shows the effective configuration
type ConfigShowCmd struct{}

// ConfigOutput is the NDJSON form of the effective configuration
type ConfigOutput struct {
	Type          string         `json:"type"` // "config"
	SchemaVersion int            `json:"schemaVersion"`
	ConfigFile    string         `json:"config_file,omitempty"`
	Format        string         `json:"format"`
	Level         string         `json:"level"`
	LogFormat     string         `json:"log_format"`
	Quiet         bool           `json:"quiet"`
	Verbose       bool           `json:"verbose"`
	Workspace     string         `json:"workspace"`
	Dispatch      string         `json:"dispatch"`
	Adapter       map[string]any `json:"adapter"`
	VMService     map[string]any `json:"vm_service"`
	Open          map[string]any `json:"open"`
	View          map[string]any `json:"view"`
}

// Run executes the config show command
func (c *ConfigShowCmd) Run(globals *Globals) error {
	cfg := globals.config()
	path := config.ConfigFile()

	if globals.Format == "ndjson" {
		return output.NewNDJSONWriter(globals.Stdout).Write(ConfigOutput{
			Type:          "config",
			SchemaVersion: output.SchemaVersion,
			ConfigFile:    path,
			Format:        cfg.Format,
			Level:         cfg.Level,
			LogFormat:     cfg.LogFormat,
			Quiet:         cfg.Quiet,
			Verbose:       cfg.Verbose,
			Workspace:     cfg.Workspace,
			Dispatch:      cfg.Dispatch,
			Adapter: map[string]any{
				"event_prefix":  cfg.Adapter.EventPrefix,
				"debug_type":    cfg.Adapter.DebugType,
				"debugger_type": cfg.Adapter.DebuggerType,
			},
			VMService: map[string]any{
				"call_timeout": cfg.VMService.CallTimeout.String(),
				"dial_timeout": cfg.VMService.DialTimeout.String(),
				"queue_size":   cfg.VMService.QueueSize,
			},
			Open: map[string]any{
				"ready_timeout":     cfg.Open.ReadyTimeout.String(),
				"discover_timeout":  cfg.Open.DiscoverTimeout.String(),
				"progress_interval": cfg.Open.ProgressInterval.String(),
			},
			View: map[string]any{
				"theme":    cfg.View.Theme,
				"base_uri": cfg.View.BaseURI,
				"html_dir": cfg.View.HTMLDir,
			},
		})
	}

	w := globals.Stdout
	fmt.Fprintln(w, "Current Configuration:")
	if path != "" {
		fmt.Fprintf(w, "  (from %s)\n", path)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "format: %s\n", cfg.Format)
	fmt.Fprintf(w, "level: %s\n", cfg.Level)
	fmt.Fprintf(w, "log_format: %s\n", cfg.LogFormat)
	fmt.Fprintf(w, "quiet: %v\n", cfg.Quiet)
	fmt.Fprintf(w, "verbose: %v\n", cfg.Verbose)
	fmt.Fprintf(w, "workspace: %q\n", cfg.Workspace)
	fmt.Fprintf(w, "dispatch: %s\n", cfg.Dispatch)
	fmt.Fprintln(w, "adapter:")
	fmt.Fprintf(w, "  event_prefix: %s\n", cfg.Adapter.EventPrefix)
	fmt.Fprintf(w, "  debug_type: %s\n", cfg.Adapter.DebugType)
	fmt.Fprintf(w, "  debugger_type: %d\n", cfg.Adapter.DebuggerType)
	fmt.Fprintln(w, "vm_service:")
	fmt.Fprintf(w, "  call_timeout: %s\n", cfg.VMService.CallTimeout)
	fmt.Fprintf(w, "  dial_timeout: %s\n", cfg.VMService.DialTimeout)
	fmt.Fprintf(w, "  queue_size: %d\n", cfg.VMService.QueueSize)
	fmt.Fprintln(w, "open:")
	fmt.Fprintf(w, "  ready_timeout: %s\n", cfg.Open.ReadyTimeout)
	fmt.Fprintf(w, "  discover_timeout: %s\n", cfg.Open.DiscoverTimeout)
	fmt.Fprintf(w, "  progress_interval: %s\n", cfg.Open.ProgressInterval)
	fmt.Fprintln(w, "view:")
	fmt.Fprintf(w, "  theme: %s\n", cfg.View.Theme)
	fmt.Fprintf(w, "  base_uri: %s\n", cfg.View.BaseURI)
	fmt.Fprintf(w, "  html_dir: %q\n", cfg.View.HTMLDir)
	return nil
}

// ConfigPathCmd shows which configuration file is used
type ConfigPathCmd struct{}

// ConfigPathOutput is the NDJSON form of the config file location
type ConfigPathOutput struct {
	Type          string `json:"type"` // "config_path"
	SchemaVersion int    `json:"schemaVersion"`
	Path          string `json:"path"`
	Found         bool   `json:"found"`
}

// Run executes the config path command
func (c *ConfigPathCmd) Run(globals *Globals) error {
	path := config.ConfigFile()

	if globals.Format == "ndjson" {
		return output.NewNDJSONWriter(globals.Stdout).Write(ConfigPathOutput{
			Type:          "config_path",
			SchemaVersion: output.SchemaVersion,
			Path:          path,
			Found:         path != "",
		})
	}

	if path == "" {
		fmt.Fprintln(globals.Stdout, "No configuration file found")
		fmt.Fprintln(globals.Stdout, "Searched: ./explo.yaml, ./.explo.yaml, ./.explo.yml, ./.explorc, <user config>/explo/explo.yaml, ~/.explo.yaml, ~/.explorc, /etc/explo/explo.yaml")
		return nil
	}
	fmt.Fprintf(globals.Stdout, "Config file: %s\n", path)
	return nil
}

// ConfigGenerateCmd prints a sample configuration
type ConfigGenerateCmd struct{}

// Run executes the config generate command
func (c *ConfigGenerateCmd) Run(globals *Globals) error {
	_, err := fmt.Fprint(globals.Stdout, sampleConfig)
	return err
}

const sampleConfig = `# explo configuration file
# Place at ./explo.yaml, ~/.explo.yaml or /etc/explo/explo.yaml.
# Every key can be overridden with an EXPLO_ environment variable,
# e.g. EXPLO_OPEN_READY_TIMEOUT=30s.

# Output format: ndjson or text
format: ndjson

# Log level on stderr: error, warn, info, debug
level: info

# Log encoding on stderr: console or json
log_format: console

quiet: false
verbose: false

# Directory session labels are made relative to (default: current directory)
workspace: ""

# How service calls reach sessions: vmservice or host
dispatch: vmservice

adapter:
  event_prefix: dart
  debug_type: dart
  # Dart-Code debugger type; 2 is Flutter
  debugger_type: 2

vm_service:
  call_timeout: 10s
  dial_timeout: 5s
  queue_size: 64

open:
  ready_timeout: 2m
  discover_timeout: 0s
  progress_interval: 5s

view:
  theme: dark
  base_uri: dist/explo_ide_view/
  html_dir: ""
`

// Package cli implements the explo command tree.
package cli

import (
	"io"
	"os"

	"github.com/blaugold/explo/internal/config"
	"go.uber.org/zap"
)

// Build information, set via -ldflags
var (
	Version = "dev"
	Commit  = "none"
)

// CLI is the root command
type CLI struct {
	Format    string `short:"f" default:"${config_format}" enum:"ndjson,text" help:"Output format (ndjson or text)"`
	Level     string `short:"l" default:"${config_level}" enum:"error,warn,info,debug" help:"Minimum log level written to stderr"`
	LogFormat string `default:"${config_log_format}" enum:"console,json" help:"Log encoding on stderr"`
	Quiet     bool   `short:"q" help:"Only log warnings and errors"`
	Verbose   bool   `short:"v" help:"Log debug details, including every fan-out call"`
	Workspace string `short:"w" default:"${config_workspace}" help:"Directory session labels are made relative to"`

	Watch    WatchCmd    `cmd:"" help:"Coordinate debug sessions read from the host feed"`
	Open     OpenCmd     `cmd:"" help:"Open the view for a target debug session"`
	Sessions SessionsCmd `cmd:"" help:"List the sessions a host feed describes"`
	Label    LabelCmd    `cmd:"" help:"Show the label derived for a program path"`
	Schema   SchemaCmd   `cmd:"" help:"Output JSON Schema for explo NDJSON records"`
	Config   ConfigCmd   `cmd:"" help:"Show or generate configuration"`
	Version  VersionCmd  `cmd:"" help:"Show version information"`
}

// Globals holds values shared by every command
type Globals struct {
	Format    string
	Level     string
	LogFormat string
	Quiet     bool
	Verbose   bool
	Workspace string
	Stdout    io.Writer
	Stderr    io.Writer
	Stdin     io.Reader
	Config    *config.Config

	logger *zap.Logger
}

// NewGlobalsWithConfig creates Globals from parsed flags. Flags already carry
// config values as their defaults.
func NewGlobalsWithConfig(c *CLI, cfg *config.Config) *Globals {
	if cfg == nil {
		cfg = config.Default()
	}
	g := &Globals{
		Format:    c.Format,
		Level:     c.Level,
		LogFormat: c.LogFormat,
		Quiet:     c.Quiet || cfg.Quiet,
		Verbose:   c.Verbose || cfg.Verbose,
		Workspace: c.Workspace,
		Stdout:    os.Stdout,
		Stderr:    os.Stderr,
		Stdin:     os.Stdin,
		Config:    cfg,
	}
	if g.Format == "" {
		g.Format = cfg.Format
	}
	if g.Level == "" {
		g.Level = cfg.Level
	}
	if g.LogFormat == "" {
		g.LogFormat = cfg.LogFormat
	}
	if g.Workspace == "" {
		g.Workspace = cfg.Workspace
	}
	return g
}

// Logger returns the stderr logger, building it on first use
func (g *Globals) Logger() *zap.Logger {
	if g.logger == nil {
		g.logger = newLogger(g)
	}
	return g.logger
}

// Debug logs a formatted debug message
func (g *Globals) Debug(format string, args ...interface{}) {
	g.Logger().Sugar().Debugf(format, args...)
}

// config returns the loaded configuration or the defaults
func (g *Globals) config() *config.Config {
	if g.Config == nil {
		return config.Default()
	}
	return g.Config
}

// workspaceRoot resolves the label root: flag or config, else the current
// directory.
func (g *Globals) workspaceRoot() string {
	if g.Workspace != "" {
		return g.Workspace
	}
	if ws := g.config().Workspace; ws != "" {
		return ws
	}
	if cwd, err := os.Getwd(); err == nil {
		return cwd
	}
	return ""
}

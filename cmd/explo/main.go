package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"
	"github.com/blaugold/explo/internal/cli"
	"github.com/blaugold/explo/internal/config"
)

const quickStart = `explo - coordinate Flutter debug sessions with the Explo viewer

Quick start:
  host-feed | explo watch               Track sessions, tell viewers about targets
  host-feed | explo open -s app         Open the view for the "app" target
  explo sessions -i feed.ndjson         List sessions described by a recorded feed

For help:
  explo --help                          All commands and flags
  explo schema                          JSON Schema of every NDJSON record
`

func main() {
	// Show quick start if no args provided
	if len(os.Args) == 1 {
		fmt.Print(quickStart)
		return
	}

	// Load configuration from files/environment
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to load config: %v\n", err)
		cfg = config.Default()
	}

	var c cli.CLI

	// Config values become flag defaults; flags given on the command line win
	vars := kong.Vars{
		"config_format":            cfg.Format,
		"config_level":             cfg.Level,
		"config_log_format":        cfg.LogFormat,
		"config_workspace":         cfg.Workspace,
		"config_dispatch":          cfg.Dispatch,
		"config_theme":             cfg.View.Theme,
		"config_base_uri":          cfg.View.BaseURI,
		"config_html_dir":          cfg.View.HTMLDir,
		"config_ready_timeout":     cfg.Open.ReadyTimeout.String(),
		"config_discover_timeout":  cfg.Open.DiscoverTimeout.String(),
		"config_progress_interval": cfg.Open.ProgressInterval.String(),
	}

	ctx := kong.Parse(&c,
		kong.Name("explo"),
		kong.Description("Explo: connect viewer debug sessions to the Flutter apps they inspect"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
			Summary: true,
		}),
		vars,
	)

	globals := cli.NewGlobalsWithConfig(&c, cfg)
	if err := ctx.Run(globals); err != nil {
		os.Exit(1)
	}
}

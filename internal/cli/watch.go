package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
)

// WatchCmd coordinates the sessions of a host feed until it ends
type WatchCmd struct {
	Input     string `short:"i" default:"-" help:"Host feed to read (file path, or - for stdin)"`
	Dispatch  string `short:"d" default:"${config_dispatch}" help:"How service calls reach sessions: vmservice (websocket) or host (call_service records on stdout)"`
	KeepOnEOF bool   `help:"Do not terminate sessions that are still live when the feed ends"`
}

// Run executes the watch command
func (c *WatchCmd) Run(globals *Globals) error {
	if err := validateFlags(globals, c.Dispatch, "", false); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return c.run(ctx, globals)
}

func (c *WatchCmd) run(ctx context.Context, globals *Globals) error {
	rt, err := newRuntime(globals, runtimeOptions{
		dispatch:       c.Dispatch,
		terminateOnEOF: !c.KeepOnEOF,
		emitSessions:   true,
	})
	if err != nil {
		return reportError(globals, nil, CodeInvalidFlags, err)
	}
	defer rt.close()

	in, err := openInput(globals, c.Input)
	if err != nil {
		return reportError(globals, rt.out, CodeFeed, err, "pass an existing file or pipe the feed to stdin")
	}
	defer in.Close()

	globals.Debug("Reading host feed from %s", c.Input)
	if err := rt.run(ctx, in); err != nil && !errors.Is(err, context.Canceled) {
		return reportError(globals, rt.out, CodeFeed, err)
	}

	rt.logger.Debug("Host feed ended",
		zap.Int("live", len(rt.feed.Live())),
		zap.Int("tracked", rt.coord.Registry().Len()),
	)
	return nil
}

package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/blaugold/explo/internal/events"
	"github.com/blaugold/explo/internal/output"
	"github.com/blaugold/explo/internal/prompt"
	"github.com/blaugold/explo/internal/session"
	"github.com/blaugold/explo/internal/view"
	"github.com/mattn/go-isatty"
	"github.com/samber/lo"
)

// errFeedEnded is reported when the feed ends before a view could open
var errFeedEnded = errors.New("host feed ended before a view was opened")

// OpenCmd opens the view for a target session and keeps it until the session
// terminates
type OpenCmd struct {
	Input       string `short:"i" default:"-" help:"Host feed to read (file path, or - for stdin)"`
	Dispatch    string `short:"d" default:"${config_dispatch}" help:"How service calls reach sessions: vmservice or host"`
	Session     string `short:"s" help:"Target session id or label; skips the pick list"`
	Interactive bool   `help:"Always show the interactive pick list (reads the controlling terminal)"`

	Theme            string        `default:"${config_theme}" help:"Editor theme kind: dark, light or high-contrast"`
	BaseURI          string        `default:"${config_base_uri}" help:"Base URI of the view assets"`
	HTMLDir          string        `default:"${config_html_dir}" help:"Directory to write the rendered view document to"`
	ReadyTimeout     time.Duration `default:"${config_ready_timeout}" help:"How long to wait for the target to become ready (0 waits forever)"`
	DiscoverTimeout  time.Duration `default:"${config_discover_timeout}" help:"How long to wait for a first session to start"`
	ProgressInterval time.Duration `default:"${config_progress_interval}" help:"Period of waiting progress records"`
}

// Run executes the open command
func (c *OpenCmd) Run(globals *Globals) error {
	if err := validateFlags(globals, c.Dispatch, c.Session, c.Interactive); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return c.run(ctx, globals, c.chooser(globals))
}

// chooser picks how the target is selected: by --session, with the pick list
// on a terminal, or not at all when nobody can answer.
func (c *OpenCmd) chooser(globals *Globals) prompt.Chooser {
	if c.Session != "" {
		return prompt.LabelChooser{Query: c.Session}
	}
	if c.Interactive || isTerminal(os.Stderr) {
		return prompt.TeaChooser{Output: globals.Stderr}
	}
	return prompt.LabelChooser{}
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (c *OpenCmd) run(ctx context.Context, globals *Globals, chooser prompt.Chooser) error {
	rt, err := newRuntime(globals, runtimeOptions{dispatch: c.Dispatch, terminateOnEOF: true})
	if err != nil {
		return reportError(globals, nil, CodeInvalidFlags, err)
	}
	defer rt.close()

	in, err := openInput(globals, c.Input)
	if err != nil {
		return reportError(globals, rt.out, CodeFeed, err, "pass an existing file or pipe the feed to stdin")
	}
	defer in.Close()

	var panelHost view.PanelHost = view.TextPanelHost{Out: globals.Stdout, HTMLDir: c.HTMLDir}
	var notifier prompt.Notifier = prompt.TextNotifier{Out: globals.Stderr}
	if globals.Format == "ndjson" {
		panelHost = view.NDJSONPanelHost{Writer: rt.out, HTMLDir: c.HTMLDir}
		notifier = prompt.NDJSONNotifier{Writer: rt.out}
	}
	panels := view.NewManager(panelHost, rt.logger)
	defer panels.CloseAll(view.ReasonShutdown)

	opener := view.NewOpener(rt.coord, &prompt.Selector{Chooser: chooser, Notifier: notifier, AskAlways: c.Session != ""}, panels, view.Options{
		DiscoverTimeout:  c.DiscoverTimeout,
		ReadyTimeout:     c.ReadyTimeout,
		ProgressInterval: c.ProgressInterval,
		Progress:         c.progress(globals, rt.out),
		Theme:            view.ThemeModeFor(c.Theme),
		BaseURI:          c.BaseURI,
	}, nil, rt.logger)

	// Watch for the named session before the feed starts delivering events.
	var named *events.Waiter[*session.Record]
	if c.Session != "" {
		named = events.Watch(rt.coord.SessionStarted(), func(rec *session.Record) bool { return matches(rec, c.Session) })
		defer named.Cancel()
	}

	openCtx, cancelOpen := context.WithCancel(ctx)
	defer cancelOpen()
	feedDone := make(chan error, 1)
	go func() {
		feedDone <- rt.run(ctx, in)
		cancelOpen()
	}()

	if named != nil {
		if err := c.awaitNamed(openCtx, rt, named); err != nil {
			return c.openFailed(ctx, globals, rt.out, err)
		}
	}

	panel, err := opener.OpenView(openCtx)
	if err != nil {
		return c.openFailed(ctx, globals, rt.out, err)
	}

	select {
	case <-panel.Closed():
	case err := <-feedDone:
		if err != nil && !errors.Is(err, context.Canceled) {
			return reportError(globals, rt.out, CodeFeed, err)
		}
	case <-ctx.Done():
	}
	return nil
}

// awaitNamed waits until the session passed with --session is tracked, so the
// selection does not run against an incomplete list
func (c *OpenCmd) awaitNamed(ctx context.Context, rt *runtime, named *events.Waiter[*session.Record]) error {
	if lo.ContainsBy(rt.coord.Targets(), func(rec *session.Record) bool { return matches(rec, c.Session) }) {
		return nil
	}
	if c.DiscoverTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.DiscoverTimeout)
		defer cancel()
	}
	if _, err := named.Wait(ctx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}

func matches(rec *session.Record, query string) bool {
	return rec.ID() == query || rec.Label() == query
}

func (c *OpenCmd) progress(globals *Globals, out *output.NDJSONWriter) view.ProgressFunc {
	return func(rec *session.Record, elapsed time.Duration) {
		if globals.Format == "ndjson" {
			_ = out.WriteWaiting(rec.ID(), rec.Label(), "session_ready", elapsed)
			return
		}
		fmt.Fprintf(globals.Stderr, "Waiting for debug session to become ready: %s (%s)\n", rec.Label(), elapsed.Truncate(time.Second))
	}
}

// openFailed maps open flow errors to error records
func (c *OpenCmd) openFailed(ctx context.Context, globals *Globals, out *output.NDJSONWriter, err error) error {
	switch {
	case errors.Is(err, view.ErrNoSelection):
		return reportError(globals, out, CodeNoSelection, err, "start a Flutter debug session or pass --session")
	case errors.Is(err, view.ErrReadyTimeout):
		return reportError(globals, out, CodeReadyTimeout, err, "raise --ready-timeout")
	case errors.Is(err, view.ErrSessionEnded):
		return reportError(globals, out, CodeSessionEnded, err)
	case errors.Is(err, prompt.ErrNoMatch), errors.Is(err, prompt.ErrAmbiguous):
		return reportError(globals, out, CodeNoSelection, err, "run 'explo sessions' to list ids and labels")
	case errors.Is(err, context.Canceled) && ctx.Err() == nil:
		// only the feed ending cancels the open flow on its own
		return reportError(globals, out, CodeFeed, errFeedEnded)
	case errors.Is(err, context.Canceled):
		return reportError(globals, out, CodeCanceled, err)
	default:
		return reportError(globals, out, CodeView, err)
	}
}

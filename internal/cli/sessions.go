package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/blaugold/explo/internal/output"
	"github.com/blaugold/explo/internal/session"
	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"
)

// SessionsCmd replays a host feed and lists the sessions still tracked at its end
type SessionsCmd struct {
	Input   string `short:"i" default:"-" help:"Host feed to read (file path, or - for stdin)"`
	Targets bool   `help:"Only list target sessions"`
	Viewers bool   `help:"Only list viewer sessions"`
}

// SessionInfo describes one tracked session
type SessionInfo struct {
	Session      string `json:"session"`
	Label        string `json:"label"`
	Phase        string `json:"phase"`
	VMServiceURI string `json:"vm_service_uri,omitempty"`
	IsolateID    string `json:"isolate_id,omitempty"`
}

// SessionsOutput is the NDJSON form of the session list
type SessionsOutput struct {
	Type          string        `json:"type"` // "sessions"
	SchemaVersion int           `json:"schemaVersion"`
	Sessions      []SessionInfo `json:"sessions"`
}

// Run executes the sessions command
func (c *SessionsCmd) Run(globals *Globals) error {
	if c.Targets && c.Viewers {
		return outputErrorCommon(globals, CodeInvalidFlags, "--targets cannot be combined with --viewers", "drop one of them")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return c.run(ctx, globals)
}

func (c *SessionsCmd) run(ctx context.Context, globals *Globals) error {
	rt, err := newRuntime(globals, runtimeOptions{dispatch: dispatchNone})
	if err != nil {
		return reportError(globals, nil, CodeInvalidFlags, err)
	}
	defer rt.close()

	in, err := openInput(globals, c.Input)
	if err != nil {
		return reportError(globals, rt.out, CodeFeed, err, "pass an existing file or pipe the feed to stdin")
	}
	defer in.Close()

	if err := rt.run(ctx, in); err != nil && !errors.Is(err, context.Canceled) {
		return reportError(globals, rt.out, CodeFeed, err)
	}

	var recs []*session.Record
	switch {
	case c.Targets:
		recs = rt.coord.Targets()
	case c.Viewers:
		recs = rt.coord.Viewers()
	default:
		recs = rt.coord.Registry().All()
	}
	infos := lo.Map(recs, func(rec *session.Record, _ int) SessionInfo {
		return SessionInfo{
			Session:      rec.ID(),
			Label:        rec.Label(),
			Phase:        rec.Phase().String(),
			VMServiceURI: rec.VMServiceURI(),
			IsolateID:    rec.IsolateID(),
		}
	})

	if globals.Format == "ndjson" {
		return rt.out.Write(SessionsOutput{
			Type:          "sessions",
			SchemaVersion: output.SchemaVersion,
			Sessions:      infos,
		})
	}
	return c.outputText(globals, infos)
}

func (c *SessionsCmd) outputText(globals *Globals, infos []SessionInfo) error {
	table := tablewriter.NewWriter(globals.Stdout)
	table.Header("SESSION", "LABEL", "PHASE", "VM SERVICE")
	rows := lo.Map(infos, func(s SessionInfo, _ int) []string {
		return []string{s.Session, s.Label, s.Phase, lo.Ternary(s.VMServiceURI == "", "-", s.VMServiceURI)}
	})
	if err := table.Bulk(rows); err != nil {
		return err
	}
	return table.Render()
}

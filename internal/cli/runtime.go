package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/blaugold/explo/internal/config"
	"github.com/blaugold/explo/internal/coordinator"
	"github.com/blaugold/explo/internal/domain"
	"github.com/blaugold/explo/internal/host"
	"github.com/blaugold/explo/internal/output"
	"github.com/blaugold/explo/internal/service"
	"github.com/blaugold/explo/internal/session"
	"go.uber.org/zap"
)

// dispatchNone drops service calls; used when the feed is only inspected
const dispatchNone = "none"

// runtimeOptions selects how a command plays the host role
type runtimeOptions struct {
	dispatch       string
	terminateOnEOF bool
	// emitSessions writes a record for every lifecycle transition
	emitSessions bool
}

// runtime wires the host feed, coordinator and service client together.
type runtime struct {
	globals *Globals
	logger  *zap.Logger
	out     *output.NDJSONWriter
	feed    *host.Feed
	coord   *coordinator.Coordinator
	client  *service.Client
	vm      *service.VMService
}

func newRuntime(globals *Globals, opts runtimeOptions) (*runtime, error) {
	cfg := globals.config()
	logger := globals.Logger()
	rt := &runtime{
		globals: globals,
		logger:  logger,
		out:     output.NewNDJSONWriter(globals.Stdout),
	}

	var transport service.Transport
	switch opts.dispatch {
	case "", config.DispatchVMService:
		rt.vm = service.NewVMService(service.VMServiceConfig{
			DialTimeout: cfg.VMService.DialTimeout,
			CallTimeout: cfg.VMService.CallTimeout,
			QueueSize:   cfg.VMService.QueueSize,
			Logger:      logger,
		})
		transport = rt.vm
	case config.DispatchHost:
		transport = service.NewHost(rt.out)
	case dispatchNone:
		transport = service.NewHost(output.NewNDJSONWriter(io.Discard))
	default:
		return nil, fmt.Errorf("unknown dispatch mode %q", opts.dispatch)
	}
	rt.client = service.NewClient(transport, service.WithLogger(logger))

	rt.feed = host.NewFeed(host.WithLogger(logger), host.WithTerminateOnEOF(opts.terminateOnEOF))
	rt.coord = coordinator.New(rt.feed, rt.client,
		coordinator.WithLogger(logger),
		coordinator.WithWorkspaceRoot(globals.workspaceRoot()),
		coordinator.WithEventPrefix(cfg.Adapter.EventPrefix),
		coordinator.WithFilter(adapterFilter(cfg.Adapter)),
	)

	if rt.vm != nil {
		rt.coord.SessionTerminated().Subscribe(func(rec *session.Record) {
			rt.vm.Forget(rec.ID())
		})
	}
	if opts.emitSessions {
		rt.emitLifecycle()
	}
	return rt, nil
}

// adapterFilter tracks sessions of the configured debug adapter and debugger type
func adapterFilter(a config.AdapterConfig) coordinator.Filter {
	debugType := a.DebugType
	if debugType == "" {
		debugType = domain.DefaultDebugType
	}
	want := domain.DebuggerType(a.DebuggerType)
	return func(s *domain.DebugSession) bool {
		return s != nil && s.Type == debugType && s.Configuration.DebuggerType == want
	}
}

// emitLifecycle reports every transition on stdout
func (rt *runtime) emitLifecycle() {
	emit := func(typ string) func(*session.Record) {
		return func(rec *session.Record) {
			if rt.globals.Format == "ndjson" {
				if err := rt.out.Write(rec.Event(typ)); err != nil {
					rt.logger.Warn("Failed to write session event", zap.Error(err))
				}
				return
			}
			fmt.Fprintf(rt.globals.Stdout, "%-20s %-12s %s\n", typ, rec.ID(), rec.Label())
		}
	}
	rt.coord.SessionStarted().Subscribe(emit(domain.TypeSessionStarted))
	rt.coord.SessionReady().Subscribe(emit(domain.TypeSessionReady))
	rt.coord.ViewerReady().Subscribe(emit(domain.TypeViewerReady))
	rt.coord.SessionTerminated().Subscribe(emit(domain.TypeSessionTerminated))
}

// run consumes the feed until it ends or ctx is canceled
func (rt *runtime) run(ctx context.Context, r io.Reader) error {
	return rt.feed.Run(ctx, r)
}

func (rt *runtime) close() {
	_ = rt.coord.Close()
	_ = rt.feed.Close()
	if rt.vm != nil {
		_ = rt.vm.Close()
	}
}

// openInput returns the feed source: stdin, or the named file
func openInput(globals *Globals, path string) (io.ReadCloser, error) {
	if path == "" || path == "-" {
		if globals.Stdin != nil {
			return io.NopCloser(globals.Stdin), nil
		}
		return io.NopCloser(os.Stdin), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open host feed: %w", err)
	}
	return f, nil
}

package view

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/blaugold/explo/internal/domain"
	"github.com/blaugold/explo/internal/output"
	"github.com/blaugold/explo/internal/session"
	"go.uber.org/zap"
)

// Close reasons
const (
	ReasonSessionTerminated = "session_terminated"
	ReasonShutdown          = "shutdown"
)

// Panel is one open view, bound to the target it shows
type Panel struct {
	Session     *session.Record
	ThemeMode   ThemeMode
	ContentPath string
	OpenedAt    time.Time

	closed chan struct{}
}

// Closed is closed once the panel was disposed
func (p *Panel) Closed() <-chan struct{} {
	return p.closed
}

// PanelHost displays and disposes panels
type PanelHost interface {
	OpenPanel(p *Panel, content []byte) error
	ClosePanel(p *Panel, reason string) error
}

// Manager keeps track of the open panels, one per target.
type Manager struct {
	host   PanelHost
	logger *zap.Logger

	mu     sync.Mutex
	panels map[*session.Record]*Panel
}

// NewManager creates a manager displaying panels through host
func NewManager(host PanelHost, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{host: host, logger: logger, panels: make(map[*session.Record]*Panel)}
}

// Open shows content for rec. A target that already has a panel keeps it.
func (m *Manager) Open(rec *session.Record, theme ThemeMode, content []byte, now time.Time) (*Panel, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if p, ok := m.panels[rec]; ok {
		return p, false, nil
	}

	m.logger.Debug("openExploView: "+rec.Label(), zap.String("session", rec.ID()))
	p := &Panel{Session: rec, ThemeMode: theme, OpenedAt: now, closed: make(chan struct{})}
	if err := m.host.OpenPanel(p, content); err != nil {
		return nil, false, fmt.Errorf("open panel: %w", err)
	}
	m.panels[rec] = p
	return p, true, nil
}

// Close disposes the panel of rec, if any
func (m *Manager) Close(rec *session.Record, reason string) bool {
	m.mu.Lock()
	p, ok := m.panels[rec]
	if ok {
		delete(m.panels, rec)
	}
	m.mu.Unlock()
	if !ok {
		return false
	}

	m.logger.Debug("closeExploView: "+rec.Label(), zap.String("session", rec.ID()), zap.String("reason", reason))
	close(p.closed)
	if err := m.host.ClosePanel(p, reason); err != nil {
		m.logger.Warn("Failed to close view", zap.String("session", rec.ID()), zap.Error(err))
	}
	return true
}

// Get returns the open panel of rec
func (m *Manager) Get(rec *session.Record) (*Panel, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.panels[rec]
	return p, ok
}

// Len returns the number of open panels
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.panels)
}

// CloseAll disposes every open panel
func (m *Manager) CloseAll(reason string) {
	m.mu.Lock()
	recs := make([]*session.Record, 0, len(m.panels))
	for rec := range m.panels {
		recs = append(recs, rec)
	}
	m.mu.Unlock()

	for _, rec := range recs {
		m.Close(rec, reason)
	}
}

// NDJSONPanelHost reports panels as view_open/view_close records. With a
// directory set the rendered document is written there, one file per session.
type NDJSONPanelHost struct {
	Writer  *output.NDJSONWriter
	HTMLDir string
}

func (h NDJSONPanelHost) OpenPanel(p *Panel, content []byte) error {
	if err := writeDocument(h.HTMLDir, p, content); err != nil {
		return err
	}
	return h.Writer.Write(domain.ViewOpen{
		Type:          domain.TypeViewOpen,
		SchemaVersion: domain.SchemaVersion,
		Session:       p.Session.ID(),
		Label:         p.Session.Label(),
		VMServiceURI:  p.Session.VMServiceURI(),
		ThemeMode:     string(p.ThemeMode),
		ContentPath:   p.ContentPath,
	})
}

func (h NDJSONPanelHost) ClosePanel(p *Panel, reason string) error {
	if err := removeDocument(p); err != nil {
		return err
	}
	return h.Writer.Write(domain.ViewClose{
		Type:          domain.TypeViewClose,
		SchemaVersion: domain.SchemaVersion,
		Session:       p.Session.ID(),
		Label:         p.Session.Label(),
		Reason:        reason,
	})
}

// TextPanelHost reports panels as plain lines
type TextPanelHost struct {
	Out     io.Writer
	HTMLDir string
}

func (h TextPanelHost) OpenPanel(p *Panel, content []byte) error {
	if err := writeDocument(h.HTMLDir, p, content); err != nil {
		return err
	}
	_, err := fmt.Fprintf(h.Out, "Opened view for %s (%s, %s theme)\n", p.Session.Label(), p.Session.VMServiceURI(), p.ThemeMode)
	if err == nil && p.ContentPath != "" {
		_, err = fmt.Fprintf(h.Out, "  document: %s\n", p.ContentPath)
	}
	return err
}

func (h TextPanelHost) ClosePanel(p *Panel, reason string) error {
	if err := removeDocument(p); err != nil {
		return err
	}
	_, err := fmt.Fprintf(h.Out, "Closed view for %s (%s)\n", p.Session.Label(), reason)
	return err
}

// writeDocument stores the rendered view in dir, if set
func writeDocument(dir string, p *Panel, content []byte) error {
	if dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create view directory: %w", err)
	}
	path := filepath.Join(dir, contentFileName(p.Session.ID()))
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return fmt.Errorf("write view document: %w", err)
	}
	p.ContentPath = path
	return nil
}

func removeDocument(p *Panel) error {
	if p.ContentPath == "" {
		return nil
	}
	if err := os.Remove(p.ContentPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove view document: %w", err)
	}
	return nil
}

// contentFileName keeps session ids usable as file names
func contentFileName(id string) string {
	safe := []rune(id)
	for i, r := range safe {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
		default:
			safe[i] = '_'
		}
	}
	return "explo-" + string(safe) + ".html"
}

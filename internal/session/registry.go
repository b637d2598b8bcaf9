// Package session holds the per-session records the coordinator tracks and the
// registry of currently active ones.
package session

import (
	"errors"
	"sync"

	"github.com/blaugold/explo/internal/domain"
	"github.com/samber/lo"
)

// ErrDuplicateSession is returned when a session handle is added twice
var ErrDuplicateSession = errors.New("session is already tracked")

// Registry is the ordered set of active session records.
//
// Only the coordinator mutates it; the lock lets other goroutines read the
// views while events are being processed.
type Registry struct {
	mu      sync.RWMutex
	records []*Record
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{}
}

// Add appends rec. At most one record per session handle is kept.
func (r *Registry) Add(rec *Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.indexLocked(rec.Session()); ok {
		return ErrDuplicateSession
	}
	r.records = append(r.records, rec)
	return nil
}

// Remove deletes the record for s. Removing an unknown session is a no-op.
func (r *Registry) Remove(s *domain.DebugSession) (*Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i, ok := r.indexLocked(s)
	if !ok {
		return nil, false
	}
	rec := r.records[i]
	r.records = append(r.records[:i:i], r.records[i+1:]...)
	return rec, true
}

// Find returns the record for s
func (r *Registry) Find(s *domain.DebugSession) (*Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i, ok := r.indexLocked(s)
	if !ok {
		return nil, false
	}
	return r.records[i], true
}

// FindByID returns the first record whose session id is id
func (r *Registry) FindByID(id string) (*Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return lo.Find(r.records, func(rec *Record) bool { return rec.ID() == id })
}

func (r *Registry) indexLocked(s *domain.DebugSession) (int, bool) {
	if s == nil {
		return -1, false
	}
	_, i, ok := lo.FindIndexOf(r.records, func(rec *Record) bool { return rec.Session() == s })
	return i, ok
}

// All returns every record in insertion order
func (r *Registry) All() []*Record {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Record, len(r.records))
	copy(out, r.records)
	return out
}

// Viewers returns the records hosting the viewer extension, in insertion order
func (r *Registry) Viewers() []*Record {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return lo.Filter(r.records, func(rec *Record, _ int) bool { return rec.IsViewer() })
}

// Targets returns every non-viewer record in insertion order, ready or not
func (r *Registry) Targets() []*Record {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return lo.Reject(r.records, func(rec *Record, _ int) bool { return rec.IsViewer() })
}

// Len returns the number of tracked sessions
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

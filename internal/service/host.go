package service

import (
	"fmt"

	"github.com/blaugold/explo/internal/domain"
)

// LineWriter writes one NDJSON record
type LineWriter interface {
	Write(v any) error
}

// Host forwards calls to the host as call_service records; the host glue turns
// each into the debug adapter's callService request. A call counts as
// acknowledged once its record is written.
type Host struct {
	out LineWriter
}

// NewHost creates a host transport writing to out
func NewHost(out LineWriter) *Host {
	return &Host{out: out}
}

// Dispatch writes req as a call_service record
func (h *Host) Dispatch(req Request) *Pending {
	if err := h.out.Write(domain.NewCallService(req.SessionID, req.Method, req.Params)); err != nil {
		return Resolved(fmt.Errorf("write call_service for %s: %w", req.SessionID, err))
	}
	return Resolved(nil)
}

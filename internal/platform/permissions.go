package platform

import (
	"errors"
	"os"
	"sync"
)

// ErrPermissionDenied indicates the host denied radio scan/connect
// permissions. Not retried automatically; callers re-invoke the gate after
// the user changes system settings.
var ErrPermissionDenied = errors.New("radio permissions denied")

// PermissionGate checks platform radio permissions before any scan attempt.
type PermissionGate interface {
	// EnsureRadioPermissions returns nil when scanning and connecting are
	// permitted, ErrPermissionDenied otherwise. The result is cached.
	EnsureRadioPermissions() error

	// Invalidate clears the cached result so the next call re-probes,
	// e.g. after the user visited system settings.
	Invalidate()
}

// HostGate probes the local host for radio access. Raw HCI access on Linux
// requires elevated privileges, so the default probe checks the effective
// uid.
type HostGate struct {
	mu      sync.Mutex
	probe   func() bool
	checked bool
	granted bool
}

// NewHostGate creates a HostGate. A nil probe uses the host default.
func NewHostGate(probe func() bool) *HostGate {
	if probe == nil {
		probe = func() bool { return os.Geteuid() == 0 }
	}
	return &HostGate{probe: probe}
}

func (g *HostGate) EnsureRadioPermissions() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.checked {
		g.granted = g.probe()
		g.checked = true
	}
	if !g.granted {
		return ErrPermissionDenied
	}
	return nil
}

func (g *HostGate) Invalidate() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.checked = false
}

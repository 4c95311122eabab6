package registry

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/patchbay/patchbay/internal/shmregion"
)

// Session is the owner of exactly one Device and its backing shared
// region, scoped to one worker websocket connection's lifetime
// (§4.E "State machine (per session)": Opening → Connected → Closing →
// Closed). Session.Close tears the region down and decays the weak cell
// every WeakRef handed out for this device observes; it is the only
// strong reference to the Device, matching §4.D's "no strong reference
// cycles" invariant — the Matrix and every input's outputs list only
// ever hold the WeakRef.
type Session struct {
	ID     string
	device *Device
	cell   *cell[Device]
	closed atomic.Bool
}

// NewSession creates a shared-memory region, constructs the Device
// record around it, and returns the owning Session. For an Output
// device, the first frame is cleared explicitly (§4.D register(Output)
// effect: "initialises the output's first frame to cleared"), even
// though a freshly created region's memory already reads as zero — the
// explicit clear keeps that invariant from depending on an incidental
// property of Create.
func NewSession(kind Kind, port int) (*Session, error) {
	region, err := shmregion.Create()
	if err != nil {
		return nil, fmt.Errorf("registry: create session region: %w", err)
	}

	device := &Device{
		Kind:   kind,
		Name:   region.Name(),
		Port:   port,
		Region: region,
	}

	if kind == Output {
		w := device.Region.Buffer().Write()
		w.Clear()
		device.Region.Buffer().DoneWriting()
	}

	c, weak := newStrongCell(device)
	device.selfRef = weak

	return &Session{
		ID:     uuid.NewString(),
		device: device,
		cell:   c,
	}, nil
}

// Device returns the session's owned device.
func (s *Session) Device() *Device {
	return s.device
}

// WeakRef returns a new weak reference to the session's device, for
// insertion into the Matrix or an input's outputs list.
func (s *Session) WeakRef() WeakRef[Device] {
	return WeakRef[Device]{c: s.cell}
}

// Close decays every WeakRef to this session's device and destroys its
// shared region. Idempotent: a Session may be closed both by its own
// websocket handler (on disconnect) and by a process-shutdown sweep that
// closes any sessions the handler hasn't gotten to yet; only the first
// call has effect.
func (s *Session) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	s.cell.decay()
	return s.device.Region.Close()
}

// Closed reports whether Close has already run.
func (s *Session) Closed() bool {
	return s.closed.Load()
}

// Registry tracks every live Session in registration order, so process
// shutdown can release shared regions in reverse registration order
// (§4.E "Cancellation": "shared regions released in reverse registration
// order").
type Registry struct {
	mu       sync.Mutex
	sessions []*Session
}

// NewRegistry creates an empty session registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Add records a newly-opened session.
func (r *Registry) Add(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions = append(r.sessions, s)
}

// Remove drops a session from the registry once it has closed itself,
// so CloseAll doesn't redundantly Close an already-closed session (a
// no-op given Close's idempotence, but Remove also keeps the registry
// from growing unboundedly across a long-running router's lifetime).
func (r *Registry) Remove(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, existing := range r.sessions {
		if existing == s {
			r.sessions = append(r.sessions[:i], r.sessions[i+1:]...)
			return
		}
	}
}

// CloseAll closes every remaining session in reverse registration order.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	sessions := append([]*Session(nil), r.sessions...)
	r.sessions = nil
	r.mu.Unlock()

	for i := len(sessions) - 1; i >= 0; i-- {
		_ = sessions[i].Close()
	}
}

package registry

import (
	"sync"

	"github.com/patchbay/patchbay/internal/shmregion"
)

// Kind distinguishes an input (a video+audio producer) from an output
// (a consumer), per §3 "Device (D)".
type Kind int

const (
	// Input is a frame producer: the router reads from its buffer.
	Input Kind = iota
	// Output is a frame consumer: the router writes composited frames
	// into its buffer.
	Output
)

// String renders the kind the way it appears in the worker→router
// websocket target (§6): "input" or "output".
func (k Kind) String() string {
	if k == Output {
		return "output"
	}
	return "input"
}

// Device is the record a registered worker occupies in the matrix: a
// kind, a display name equal to its shared-region name, the worker's own
// control port, the shared-memory region it owns, and — for inputs only
// — the ordered list of outputs it is connected to.
//
// A Device is created and owned by exactly one Session; the Matrix and
// every input's outputs list hold only WeakRef[Device] values, never a
// Device directly, so device lifetime is governed entirely by its
// Session (§4.D "Ownership").
type Device struct {
	Kind   Kind
	Name   string
	Port   int
	Region *shmregion.Region

	mu      sync.Mutex
	outputs []WeakRef[Device]

	// selfRef is a weak reference to this device's own owning cell, set
	// once by the Session that creates it. It lets Matrix.Connect hand
	// an output a WeakRef without itself holding any strong reference
	// or constructing a second cell for the same device.
	selfRef WeakRef[Device]
}

// SelfWeakRef returns a weak reference to this device, as handed out by
// its owning Session.
func (d *Device) SelfWeakRef() WeakRef[Device] {
	return d.selfRef
}

// connectOutput appends a weak reference to out if not already present.
// Idempotent, per §4.D "connect is idempotent". Only meaningful for
// input devices; calling it on an Output is a caller error this package
// does not itself guard against, since only Matrix.Connect calls it and
// Matrix.Connect already resolves the input side by Kind.
func (d *Device) connectOutput(out WeakRef[Device]) {
	outDev, ok := out.Upgrade()
	if !ok {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	for _, existing := range d.outputs {
		if existingDev, ok := existing.Upgrade(); ok && existingDev == outDev {
			return
		}
	}
	d.outputs = append(d.outputs, out)
}

// disconnectOutput removes the weak reference to out, if present.
func (d *Device) disconnectOutput(out *Device) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, existing := range d.outputs {
		if existingDev, ok := existing.Upgrade(); ok && existingDev == out {
			d.outputs = append(d.outputs[:i], d.outputs[i+1:]...)
			return
		}
	}
}

// isConnectedTo reports whether out is currently in this device's
// outputs list.
func (d *Device) isConnectedTo(out *Device) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, existing := range d.outputs {
		if existingDev, ok := existing.Upgrade(); ok && existingDev == out {
			return true
		}
	}
	return false
}

// ConnectedOutputs returns the live outputs connected to this input, in
// list order. Dead weak references are skipped, not pruned — pruning
// happens on the tick's explicit Reap pass (§4.D "Reaping"), never as a
// side effect of a read.
func (d *Device) ConnectedOutputs() []*Device {
	d.mu.Lock()
	defer d.mu.Unlock()
	live := make([]*Device, 0, len(d.outputs))
	for _, ref := range d.outputs {
		if out, ok := ref.Upgrade(); ok {
			live = append(live, out)
		}
	}
	return live
}

// reapOutputs drops dead weak references from this device's outputs
// list in place.
func (d *Device) reapOutputs() {
	d.mu.Lock()
	defer d.mu.Unlock()
	live := d.outputs[:0]
	for _, ref := range d.outputs {
		if ref.Alive() {
			live = append(live, ref)
		}
	}
	d.outputs = live
}

// Package registry holds the device registry and connection graph
// (§4.D): the weak-owned Matrix of inputs and outputs, the Device record
// each worker occupies, and the Session type that owns a Device's
// shared-memory region for the lifetime of its websocket connection.
package registry

import (
	"errors"
	"sync"
)

// ErrNotFound is returned when a named input or output has no live
// device in the matrix.
var ErrNotFound = errors.New("registry: device not found")

// Matrix holds the two ordered, weakly-referenced device sequences the
// router tick reads every frame: inputs in display order (back-to-front
// compositing order) and outputs (unordered). It never extends the
// lifetime of anything it references — ownership lives entirely in the
// Session that created each Device (§4.D "Ownership").
type Matrix struct {
	mu      sync.Mutex
	inputs  []WeakRef[Device]
	outputs []WeakRef[Device]
}

// NewMatrix creates an empty connection matrix.
func NewMatrix() *Matrix {
	return &Matrix{}
}

// RegisterInput appends a weak reference to the end of the input display
// order — new inputs paint over existing ones, per §3 "later inputs
// composite over earlier ones".
func (m *Matrix) RegisterInput(ref WeakRef[Device]) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inputs = append(m.inputs, ref)
}

// RegisterOutput appends a weak reference to the (unordered) output set.
func (m *Matrix) RegisterOutput(ref WeakRef[Device]) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outputs = append(m.outputs, ref)
}

// Inputs returns the live input devices in display order. Dead weak
// refs are skipped, not pruned: pruning is Reap's job alone, so a
// snapshot taken mid-tick never mutates matrix state out from under a
// concurrent reader.
func (m *Matrix) Inputs() []*Device {
	m.mu.Lock()
	defer m.mu.Unlock()
	return liveDevices(m.inputs)
}

// Outputs returns the live output devices. Order carries no meaning
// (§3 "Outputs have no ordering semantics").
func (m *Matrix) Outputs() []*Device {
	m.mu.Lock()
	defer m.mu.Unlock()
	return liveDevices(m.outputs)
}

func liveDevices(refs []WeakRef[Device]) []*Device {
	out := make([]*Device, 0, len(refs))
	for _, ref := range refs {
		if d, ok := ref.Upgrade(); ok {
			out = append(out, d)
		}
	}
	return out
}

// findLive returns the live device named name within kind's sequence,
// and its index into that sequence (for reordering), or ErrNotFound.
func (m *Matrix) findLive(kind Kind, name string) (*Device, int, error) {
	seq := m.inputs
	if kind == Output {
		seq = m.outputs
	}
	for i, ref := range seq {
		d, ok := ref.Upgrade()
		if !ok || d.Name != name {
			continue
		}
		return d, i, nil
	}
	return nil, -1, ErrNotFound
}

// Connect sets or clears the edge between an input and an output. If
// connect is true, out is appended to in's outputs list unless already
// present (idempotent, §4.D). If false, the edge is removed if present.
// Either endpoint not resolving to a live device is ErrNotFound.
func (m *Matrix) Connect(inputName, outputName string, connect bool) error {
	m.mu.Lock()
	in, _, err := m.findLive(Input, inputName)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	out, _, err := m.findLive(Output, outputName)
	m.mu.Unlock()
	if err != nil {
		return err
	}

	if connect {
		in.connectOutput(out.SelfWeakRef())
	} else {
		in.disconnectOutput(out)
	}
	return nil
}

// IsConnected reports whether outputName is in inputName's outputs
// list. Used by the UI render path (§4.D).
func (m *Matrix) IsConnected(inputName, outputName string) (bool, error) {
	m.mu.Lock()
	in, _, err := m.findLive(Input, inputName)
	if err != nil {
		m.mu.Unlock()
		return false, err
	}
	out, _, err := m.findLive(Output, outputName)
	m.mu.Unlock()
	if err != nil {
		return false, err
	}
	return in.isConnectedTo(out), nil
}

// BringForward swaps the named input with the next live input in
// display order (it composites later, i.e. on top), per §4.D
// "bring_forward(name)".
func (m *Matrix) BringForward(name string) error {
	return m.swapWithNeighbor(name, 1)
}

// BringBackward swaps the named input with the previous live input in
// display order.
func (m *Matrix) BringBackward(name string) error {
	return m.swapWithNeighbor(name, -1)
}

func (m *Matrix) swapWithNeighbor(name string, direction int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, idx, err := m.findLive(Input, name)
	if err != nil {
		return err
	}

	neighbor := idx + direction
	if neighbor < 0 || neighbor >= len(m.inputs) {
		// Already at the edge of display order; nothing to do.
		return nil
	}

	// Skip over dead refs to find the next *live* neighbor, per the
	// op's contract ("the next/previous live input").
	for neighbor >= 0 && neighbor < len(m.inputs) {
		if m.inputs[neighbor].Alive() {
			m.inputs[idx], m.inputs[neighbor] = m.inputs[neighbor], m.inputs[idx]
			return nil
		}
		neighbor += direction
	}
	return nil
}

// Reap prunes dead weak references from inputs, outputs, and every
// remaining input's outputs list (§4.D "Reaping"). A prune does not
// itself publish a UI-facing event; callers that care about that
// distinction publish on mutation, not on reap.
func (m *Matrix) Reap() {
	m.mu.Lock()
	m.inputs = pruneDead(m.inputs)
	m.outputs = pruneDead(m.outputs)
	inputs := liveDevices(m.inputs)
	m.mu.Unlock()

	for _, in := range inputs {
		in.reapOutputs()
	}
}

func pruneDead(refs []WeakRef[Device]) []WeakRef[Device] {
	live := refs[:0]
	for _, ref := range refs {
		if ref.Alive() {
			live = append(live, ref)
		}
	}
	return live
}

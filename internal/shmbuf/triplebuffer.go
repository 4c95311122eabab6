// Package shmbuf implements the wait-free single-producer/single-consumer
// triple buffer that hands video+audio frames across a shared-memory
// region between a worker process and the router.
//
// Markers are stored as small slot indices (0, 1, 2), never as pointers,
// so the same bytes are valid no matter which process's address space the
// region is mapped into. Rotation is guarded by a hand-rolled spinlock:
// there is no pthread-style robust mutex available without cgo, so a lock
// held for longer than staleLockTimeout is presumed abandoned by a dead
// holder and is taken over rather than letting the tick loop block on it.
// The heartbeat timestamp is recorded on each acquire but not consulted.
package shmbuf

import (
	"runtime"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/patchbay/patchbay/internal/frame"
)

// staleLockTimeout bounds how long a rotation will spin waiting for the
// mutex before assuming the prior holder died mid-critical-section and
// stealing the lock. It is a few tick periods, not a single one, so a
// merely slow peer isn't mistaken for a dead one.
const staleLockTimeout = 150 * time.Millisecond

// spinMutex is a process-shared mutex substitute: a CAS-guarded flag plus
// a heartbeat timestamp. It lives inline in the shared region, so both the
// writer and the reader process operate on the same bytes.
type spinMutex struct {
	state     atomic.Uint32
	heartbeat atomic.Int64 // unix nanos of the last successful acquire
}

func (m *spinMutex) lock() {
	deadline := time.Now().Add(staleLockTimeout)
	for {
		if m.state.CompareAndSwap(0, 1) {
			m.heartbeat.Store(time.Now().UnixNano())
			return
		}
		if time.Now().After(deadline) {
			// Prior holder is presumed dead; steal rather than block.
			m.state.Store(1)
			m.heartbeat.Store(time.Now().UnixNano())
			return
		}
		runtime.Gosched()
	}
}

func (m *spinMutex) unlock() {
	m.state.Store(0)
}

// TripleBuffer is the in-shared-memory record: a mutex, four slot-index
// markers, and three frame slots. It must remain trivially copyable and
// must never contain pointers — only the fixed layout below, so a byte
// range mapped by any process can be reinterpreted as a *TripleBuffer.
type TripleBuffer struct {
	mu spinMutex

	readCurrent  atomic.Int32
	readNext     atomic.Int32
	writeCurrent atomic.Int32
	writeNext    atomic.Int32

	slots [3]frame.Frame
}

// Size is the byte size of TripleBuffer, used to size the backing region.
var Size = int(unsafe.Sizeof(TripleBuffer{}))

// Init sets the markers to their starting configuration: the writer owns
// slot 0, slot 1 is the spare, and slot 2 is doubly referenced by the
// reader's two markers (it hasn't consumed anything yet). This satisfies
// the three-distinct-slots invariant before a single write happens.
func (t *TripleBuffer) Init() {
	t.writeCurrent.Store(0)
	t.writeNext.Store(1)
	t.readCurrent.Store(2)
	t.readNext.Store(2)
}

// Write returns a mutable reference to the slot the writer should fill.
// Non-blocking, never fails: the writer always owns write_current alone.
func (t *TripleBuffer) Write() *frame.Frame {
	idx := t.writeCurrent.Load()
	return &t.slots[idx]
}

// DoneWriting publishes the slot just filled: read_next takes over the
// slot the writer just finished, and write_current/write_next swap so the
// writer gets a fresh slot to fill next. Holds the mutex only across the
// four marker updates, never across frame bytes.
func (t *TripleBuffer) DoneWriting() {
	t.mu.lock()
	oldCurrent := t.writeCurrent.Load()
	next := t.writeNext.Load()
	t.readNext.Store(oldCurrent)
	t.writeCurrent.Store(next)
	t.writeNext.Store(oldCurrent)
	t.mu.unlock()
}

// HasNew reports whether a frame has been published since the last
// AboutToRead, via a sequence-consistent load of both read markers.
func (t *TripleBuffer) HasNew() bool {
	return t.readCurrent.Load() != t.readNext.Load()
}

// AboutToRead advances the reader to the latest published frame, if any.
// If nothing new was published, read_current is left unchanged and the
// caller re-reads the same slot.
func (t *TripleBuffer) AboutToRead() {
	t.mu.lock()
	defer t.mu.unlock()
	current := t.readCurrent.Load()
	next := t.readNext.Load()
	if current != next {
		t.writeNext.Store(current)
		t.readCurrent.Store(next)
	}
}

// Read returns a shared reference to the slot at read_current.
func (t *TripleBuffer) Read() *frame.Frame {
	idx := t.readCurrent.Load()
	return &t.slots[idx]
}

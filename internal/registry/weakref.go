package registry

import "sync/atomic"

// cell is the shared storage a WeakRef observes: a pointer the owner can
// nil out on teardown without coordinating with any holder of a WeakRef
// pointing at it. It is the same atomic-pointer idiom the triple buffer
// (internal/shmbuf) uses for its slot markers, applied to object identity
// instead of slot indices: a single word that either names a live object
// or doesn't.
type cell[T any] struct {
	ptr atomic.Pointer[T]
}

// WeakRef is a non-owning handle to a T. It never extends the referent's
// lifetime; Upgrade reports whether the referent is still alive.
//
// Go's runtime/weak ties invalidation to the garbage collector's own
// schedule, which is wrong here: a device must stop being routable the
// instant its session closes, not whenever the GC next runs. WeakRef is
// therefore a plain cell-based handle with deterministic, caller-driven
// decay.
type WeakRef[T any] struct {
	c *cell[T]
}

// newStrongCell allocates a cell pointing at v and returns both the cell
// (for the owner to hold and later decay) and a WeakRef observing it.
func newStrongCell[T any](v *T) (*cell[T], WeakRef[T]) {
	c := &cell[T]{}
	c.ptr.Store(v)
	return c, WeakRef[T]{c: c}
}

// Upgrade returns the referent and true if it is still alive, or
// (nil, false) if the owner has decayed the cell.
func (w WeakRef[T]) Upgrade() (*T, bool) {
	if w.c == nil {
		return nil, false
	}
	v := w.c.ptr.Load()
	return v, v != nil
}

// Alive reports whether the referent is still reachable.
func (w WeakRef[T]) Alive() bool {
	_, ok := w.Upgrade()
	return ok
}

func (c *cell[T]) decay() {
	c.ptr.Store(nil)
}

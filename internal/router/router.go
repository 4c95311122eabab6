// Package router implements the tick loop that drives frame compositing:
// once per period it reaps dead devices, zeroes every output's writable
// frame, composites each live input in display order onto every output
// it is connected to, and publishes the result.
package router

import (
	"time"

	"github.com/patchbay/patchbay/internal/compositor"
	"github.com/patchbay/patchbay/internal/events"
	"github.com/patchbay/patchbay/internal/frame"
	"github.com/patchbay/patchbay/internal/metrics"
	"github.com/patchbay/patchbay/internal/registry"
)

// Period is the fixed frame cadence (25 fps).
const Period = 40 * time.Millisecond

// Router owns the matrix and drives its tick loop on a dedicated
// goroutine. It never itself creates or destroys devices; that is the
// registry's job, via sessions opened and closed by the control plane.
type Router struct {
	matrix  *registry.Matrix
	bus     *events.Bus
	opts    compositor.Options
	tickSeq uint64

	stop chan struct{}
	done chan struct{}
}

// New creates a Router over matrix, publishing tick-loop events on bus.
// opts carries the two operator-selectable blend deviations (§9's open
// questions); the zero value matches the specification's defaults.
func New(matrix *registry.Matrix, bus *events.Bus, opts compositor.Options) *Router {
	return &Router{
		matrix: matrix,
		bus:    bus,
		opts:   opts,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Run drives the tick loop until Stop is called. It is meant to run on
// its own goroutine for the lifetime of the process; it returns only
// after a pending tick (if any) has finished, never mid-composite.
func (r *Router) Run() {
	defer close(r.done)

	deadline := time.Now().Add(Period)
	for {
		select {
		case <-r.stop:
			return
		default:
		}

		r.tick()
		r.tickSeq++

		now := time.Now()
		if now.Before(deadline) {
			select {
			case <-time.After(deadline.Sub(now)):
			case <-r.stop:
				return
			}
		} else {
			overrun := now.Sub(deadline)
			metrics.IncTickOverrun()
			r.bus.Publish(events.TickOverrunEvent{
				TickSeq:   r.tickSeq,
				OverrunMS: float64(overrun) / float64(time.Millisecond),
			})
			// Past deadline already: proceed immediately, per §4.E step
			// 6 ("if already past, proceed immediately"). Re-base the
			// next deadline off now rather than letting every
			// subsequent tick inherit the same slip.
		}
		deadline = deadline.Add(Period)
		if deadline.Before(time.Now()) {
			deadline = time.Now().Add(Period)
		}
	}
}

// Stop signals the tick loop to exit and blocks until it has.
func (r *Router) Stop() {
	close(r.stop)
	<-r.done
}

// tick performs exactly one frame period's worth of work.
func (r *Router) tick() {
	start := time.Now()
	defer func() { metrics.ObserveTick(time.Since(start).Seconds()) }()

	r.matrix.Reap()

	inputs := r.matrix.Inputs()
	outputs := r.matrix.Outputs()
	metrics.SetLiveSessions("input", len(inputs))
	metrics.SetLiveSessions("output", len(outputs))

	writable := make(map[*registry.Device]*frame.Frame, len(outputs))
	for _, out := range outputs {
		w := out.Region.Buffer().Write()
		w.Clear()
		writable[out] = w
	}

	for _, in := range inputs {
		outs := in.ConnectedOutputs()
		if len(outs) == 0 {
			continue
		}

		in.Region.Buffer().AboutToRead()
		src := in.Region.Buffer().Read()

		for _, out := range outs {
			dst, ok := writable[out]
			if !ok {
				continue
			}
			compositor.Over(dst, src, r.opts)
			metrics.IncFramesComposited()
		}
	}

	for _, out := range outputs {
		out.Region.Buffer().DoneWriting()
	}
}

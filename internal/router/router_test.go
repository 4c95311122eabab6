package router

import (
	"testing"
	"time"

	"github.com/patchbay/patchbay/internal/compositor"
	"github.com/patchbay/patchbay/internal/events"
	"github.com/patchbay/patchbay/internal/registry"
)

func newTestRouter(t *testing.T) (*Router, *registry.Matrix) {
	t.Helper()
	m := registry.NewMatrix()
	r := New(m, events.New(), compositor.Options{})
	return r, m
}

func openInput(t *testing.T, m *registry.Matrix, port int) *registry.Session {
	t.Helper()
	s, err := registry.NewSession(registry.Input, port)
	if err != nil {
		t.Fatalf("NewSession input: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	m.RegisterInput(s.WeakRef())
	return s
}

func openOutput(t *testing.T, m *registry.Matrix, port int) *registry.Session {
	t.Helper()
	s, err := registry.NewSession(registry.Output, port)
	if err != nil {
		t.Fatalf("NewSession output: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	m.RegisterOutput(s.WeakRef())
	return s
}

func writePixel(s *registry.Session, b, g, r, a byte) {
	w := s.Device().Region.Buffer().Write()
	w.Video[0], w.Video[1], w.Video[2], w.Video[3] = b, g, r, a
	s.Device().Region.Buffer().DoneWriting()
}

func readPixel(s *registry.Session) (b, g, r, a byte) {
	buf := s.Device().Region.Buffer()
	buf.AboutToRead()
	f := buf.Read()
	return f.Video[0], f.Video[1], f.Video[2], f.Video[3]
}

// S1: single input, single output, connected: dst equals src exactly
// since a fully-opaque source's factor is 1 and dst started at zero.
func TestSingleInputSingleOutput(t *testing.T) {
	router, m := newTestRouter(t)
	in := openInput(t, m, 9100)
	out := openOutput(t, m, 9101)

	if err := m.Connect(in.Device().Name, out.Device().Name, true); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	writePixel(in, 0, 0, 255, 255)

	router.tick()

	b, g, r, a := readPixel(out)
	if b != 0 || g != 0 || r != 255 || a != 255 {
		t.Fatalf("got (%d,%d,%d,%d), want (0,0,255,255)", b, g, r, a)
	}
}

// S2: disconnected output stays black.
func TestDisconnectedOutputIsBlack(t *testing.T) {
	router, m := newTestRouter(t)
	in := openInput(t, m, 9102)
	out := openOutput(t, m, 9103)
	_ = in
	writePixel(in, 10, 20, 30, 200)

	router.tick()

	b, g, r, a := readPixel(out)
	if b != 0 || g != 0 || r != 0 || a != 0 {
		t.Fatalf("got (%d,%d,%d,%d), want all zero", b, g, r, a)
	}
}

// S3: layering order — an opaque second input overwrites (up to the
// off-by-one) a first input sharing the same output.
func TestLayeringOrder(t *testing.T) {
	router, m := newTestRouter(t)
	i1 := openInput(t, m, 9104)
	i2 := openInput(t, m, 9105)
	out := openOutput(t, m, 9106)

	if err := m.Connect(i1.Device().Name, out.Device().Name, true); err != nil {
		t.Fatalf("connect i1: %v", err)
	}
	if err := m.Connect(i2.Device().Name, out.Device().Name, true); err != nil {
		t.Fatalf("connect i2: %v", err)
	}

	writePixel(i1, 100, 100, 100, 255)
	writePixel(i2, 200, 200, 200, 255)

	router.tick()

	b, g, r, _ := readPixel(out)
	if b != 200 || g != 200 || r != 200 {
		t.Fatalf("got (%d,%d,%d), want (200,200,200): i2 should overwrite i1", b, g, r)
	}
}

// S4: producer faster than consumer — the reader sees only the latest
// of several writes completed between reads.
func TestProducerFasterThanConsumerSeesLatest(t *testing.T) {
	m := registry.NewMatrix()
	in := openInput(t, m, 9107)
	buf := in.Device().Region.Buffer()

	for _, v := range []byte{0xAA, 0xBB, 0xCC} {
		w := buf.Write()
		w.Video[0] = v
		buf.DoneWriting()
	}

	buf.AboutToRead()
	f := buf.Read()
	if f.Video[0] != 0xCC {
		t.Fatalf("got %#x, want 0xCC (latest of three writes)", f.Video[0])
	}
}

// S5: reaping on close — a closed input vanishes from the matrix and its
// former output goes back to black on the next publish.
func TestReapingOnClose(t *testing.T) {
	router, m := newTestRouter(t)
	in, err := registry.NewSession(registry.Input, 9108)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	out := openOutput(t, m, 9109)
	m.RegisterInput(in.WeakRef())

	if err := m.Connect(in.Device().Name, out.Device().Name, true); err != nil {
		t.Fatalf("connect: %v", err)
	}
	writePixel(in, 10, 20, 30, 255)
	router.tick()

	if b, _, _, _ := readPixel(out); b != 10 {
		t.Fatalf("sanity check before close failed: got b=%d", b)
	}

	if err := in.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	router.tick()

	if len(m.Inputs()) != 0 {
		t.Fatal("expected input to be gone from matrix after close")
	}
	b, g, r, a := readPixel(out)
	if b != 0 || g != 0 || r != 0 || a != 0 {
		t.Fatalf("got (%d,%d,%d,%d), want all zero after reap", b, g, r, a)
	}
}

// S6: audio summation across two inputs connected to one output.
func TestAudioSummation(t *testing.T) {
	router, m := newTestRouter(t)
	i1 := openInput(t, m, 9110)
	i2 := openInput(t, m, 9111)
	out := openOutput(t, m, 9112)

	if err := m.Connect(i1.Device().Name, out.Device().Name, true); err != nil {
		t.Fatalf("connect i1: %v", err)
	}
	if err := m.Connect(i2.Device().Name, out.Device().Name, true); err != nil {
		t.Fatalf("connect i2: %v", err)
	}

	const sample int32 = 0x10000000
	for _, s := range []*registry.Session{i1, i2} {
		buf := s.Device().Region.Buffer()
		w := buf.Write()
		w.Audio[0] = sample
		buf.DoneWriting()
	}

	router.tick()

	buf := out.Device().Region.Buffer()
	buf.AboutToRead()
	f := buf.Read()
	if f.Audio[0] != 0x20000000 {
		t.Fatalf("got %#x, want %#x", f.Audio[0], int32(0x20000000))
	}
}

// A skipped input (no connected outputs) never rotates its buffer, so a
// slow writer feeding an unconnected input doesn't tie up a tick.
func TestUnconnectedInputIsNotRead(t *testing.T) {
	router, m := newTestRouter(t)
	in := openInput(t, m, 9113)

	buf := in.Device().Region.Buffer()
	w := buf.Write()
	w.Video[0] = 0x42
	buf.DoneWriting()

	router.tick()

	if !buf.HasNew() {
		t.Fatal("expected skipped input's pending frame to remain unread")
	}
}

func TestRunHonorsStop(t *testing.T) {
	router, _ := newTestRouter(t)
	go router.Run()

	done := make(chan struct{})
	go func() {
		router.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return in time")
	}
}

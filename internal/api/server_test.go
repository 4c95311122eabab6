package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/patchbay/patchbay/internal/events"
	"github.com/patchbay/patchbay/internal/registry"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	matrix := registry.NewMatrix()
	sessions := registry.NewRegistry()
	bus := events.New()
	s := NewServer(matrix, sessions, bus)
	t.Cleanup(func() { sessions.CloseAll() })
	return s
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}

func TestVersionEndpoint(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/version", nil)
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200", rec.Code)
	}
}

func TestUnknownTargetIs404(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/nonexistent", nil)
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("got status %d, want 404", rec.Code)
	}
}

func TestMatrixPageIsServed(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "patchbay") {
		t.Fatalf("expected matrix page body, got: %s", rec.Body.String())
	}
}

func TestConnectRejectsMalformedBody(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/connect", strings.NewReader("not-enough-parts"))
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("got status %d, want 400", rec.Code)
	}
}

func TestConnectUnknownDeviceIs404(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/connect", strings.NewReader("missing-in&missing-out&true"))
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("got status %d, want 404", rec.Code)
	}
}

func TestConnectAndBringForwardSucceed(t *testing.T) {
	s := newTestServer(t)

	in, err := registry.NewSession(registry.Input, 9201)
	if err != nil {
		t.Fatalf("NewSession input: %v", err)
	}
	t.Cleanup(func() { _ = in.Close() })
	out, err := registry.NewSession(registry.Output, 9202)
	if err != nil {
		t.Fatalf("NewSession output: %v", err)
	}
	t.Cleanup(func() { _ = out.Close() })

	s.matrix.RegisterInput(in.WeakRef())
	s.matrix.RegisterOutput(out.WeakRef())

	body := in.Device().Name + "&" + out.Device().Name + "&true"
	req := httptest.NewRequest(http.MethodPost, "/connect", strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("got status %d, want 204: %s", rec.Code, rec.Body.String())
	}

	connected, err := s.matrix.IsConnected(in.Device().Name, out.Device().Name)
	if err != nil {
		t.Fatalf("IsConnected: %v", err)
	}
	if !connected {
		t.Fatal("expected edge to be connected after /connect")
	}

	req = httptest.NewRequest(http.MethodPost, "/bring_input_forward", strings.NewReader(in.Device().Name))
	rec = httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("bring_input_forward: got status %d, want 204", rec.Code)
	}
}

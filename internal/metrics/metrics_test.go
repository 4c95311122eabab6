package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHandlerExposesRouterMetrics(t *testing.T) {
	IncFramesComposited()
	IncTickOverrun()
	SetLiveSessions("input", 2)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("got status %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		"patchbay_router_frames_composited_total",
		"patchbay_router_tick_overrun_total",
		"patchbay_registry_live_sessions",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected metrics output to contain %q", want)
		}
	}
}

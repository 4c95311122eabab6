package workerclient

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/patchbay/patchbay/internal/api"
	"github.com/patchbay/patchbay/internal/events"
	"github.com/patchbay/patchbay/internal/registry"
)

func TestDialCompletesHandshakeAndAttachesRegion(t *testing.T) {
	matrix := registry.NewMatrix()
	sessions := registry.NewRegistry()
	bus := events.New()
	server := api.NewServer(matrix, sessions, bus)
	t.Cleanup(sessions.CloseAll)

	ts := httptest.NewServer(server.Mux())
	t.Cleanup(ts.Close)

	u, err := url.Parse(ts.URL)
	if err != nil {
		t.Fatalf("parse test server URL: %v", err)
	}

	client, err := Dial(u.Host, RoleInput, 9301)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	if client.RegionName() == "" {
		t.Fatal("expected a non-empty region name from the handshake")
	}

	inputs := matrix.Inputs()
	if len(inputs) != 1 {
		t.Fatalf("expected one registered input, got %d", len(inputs))
	}
	if inputs[0].Name != client.RegionName() {
		t.Fatalf("registered device name %q does not match handshake region %q", inputs[0].Name, client.RegionName())
	}

	w := client.Buffer().Write()
	w.Video[0] = 0x42
	client.Buffer().DoneWriting()
}

func TestDialTargetEncodesRoleAndPort(t *testing.T) {
	matrix := registry.NewMatrix()
	sessions := registry.NewRegistry()
	bus := events.New()
	server := api.NewServer(matrix, sessions, bus)
	t.Cleanup(sessions.CloseAll)

	ts := httptest.NewServer(server.Mux())
	t.Cleanup(ts.Close)
	u, _ := url.Parse(ts.URL)

	port := 9302
	client, err := Dial(u.Host, RoleOutput, port)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	outputs := matrix.Outputs()
	if len(outputs) != 1 {
		t.Fatalf("expected one registered output, got %d", len(outputs))
	}
	if outputs[0].Port != port {
		t.Fatalf("got port %d, want %d", outputs[0].Port, port)
	}
	if outputs[0].Kind != registry.Output {
		t.Fatal("expected device kind Output")
	}
}

func TestOnReloadFiresOnBroadcast(t *testing.T) {
	matrix := registry.NewMatrix()
	sessions := registry.NewRegistry()
	bus := events.New()
	server := api.NewServer(matrix, sessions, bus)
	t.Cleanup(sessions.CloseAll)

	ts := httptest.NewServer(server.Mux())
	t.Cleanup(ts.Close)
	u, _ := url.Parse(ts.URL)

	in, err := Dial(u.Host, RoleInput, 9303)
	if err != nil {
		t.Fatalf("Dial input: %v", err)
	}
	t.Cleanup(func() { _ = in.Close() })

	reloaded := make(chan struct{}, 1)
	in.OnReload(func() {
		select {
		case reloaded <- struct{}{}:
		default:
		}
	})

	out, err := Dial(u.Host, RoleOutput, 9304)
	if err != nil {
		t.Fatalf("Dial output: %v", err)
	}
	t.Cleanup(func() { _ = out.Close() })

	body := in.RegionName() + "&" + out.RegionName() + "&true"
	resp, err := http.Post(ts.URL+"/connect", "text/plain", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST /connect: %v", err)
	}
	defer resp.Body.Close()

	select {
	case <-reloaded:
	case <-time.After(2 * time.Second):
		t.Fatal("expected OnReload to fire after /connect broadcasts a reload")
	}
}

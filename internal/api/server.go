// Package api implements the control-plane surface (§6): a worker
// registration websocket, a small HTTP surface for the browser matrix
// UI, and the two read-only Huma endpoints used for health checks and
// version reporting.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"regexp"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/gorilla/websocket"
	"github.com/patchbay/patchbay/internal/events"
	"github.com/patchbay/patchbay/internal/logging"
	"github.com/patchbay/patchbay/internal/metrics"
	"github.com/patchbay/patchbay/internal/registry"
	"github.com/patchbay/patchbay/internal/version"
	"github.com/patchbay/patchbay/ui"
)

// Server serves the control plane: the worker websocket, the browser
// HTTP surface, and the Huma health/version endpoints.
type Server struct {
	api        huma.API
	mux        *http.ServeMux
	httpServer *http.Server
	logger     *slog.Logger

	matrix   *registry.Matrix
	sessions *registry.Registry
	bus      *events.Bus

	broadcaster *broadcaster
}

// workerTargetPattern matches a worker's registration target, e.g.
// "/input_8081" or "/output_9100" (§6 "input_<decimal-port>").
var workerTargetPattern = regexp.MustCompile(`^/(input|output)_([0-9]+)$`)

// NewServer wires the control plane around an existing matrix, session
// registry, and event bus (all owned by the caller, typically main).
func NewServer(matrix *registry.Matrix, sessions *registry.Registry, bus *events.Bus) *Server {
	mux := http.NewServeMux()

	corsConfig := DefaultCORSConfig()
	AddCORSHandler(mux, corsConfig)

	config := huma.DefaultConfig("patchbay", version.String())
	config.Info.Description = "Live video routing matrix control plane"
	config.Servers = []*huma.Server{}

	humaAPI := humago.New(mux, config)
	humaAPI.UseMiddleware(NewCORSMiddleware(corsConfig))
	humaAPI.UseMiddleware(HTTPLoggingMiddleware)

	s := &Server{
		api:         humaAPI,
		mux:         mux,
		logger:      logging.GetLogger("api"),
		matrix:      matrix,
		sessions:    sessions,
		bus:         bus,
		broadcaster: newBroadcaster(),
	}

	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "health-check",
		Method:      http.MethodGet,
		Path:        "/api/health",
		Summary:     "Health",
		Description: "Reports whether the router is accepting connections",
		Tags:        []string{"health"},
		Security:    []map[string][]string{},
	}, func(ctx context.Context, input *struct{}) (*HealthResponse, error) {
		return &HealthResponse{Body: HealthData{Status: "ok", Message: "router is healthy"}}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-version",
		Method:      http.MethodGet,
		Path:        "/api/version",
		Summary:     "Version",
		Description: "Reports build and version information",
		Tags:        []string{"system"},
		Security:    []map[string][]string{},
	}, func(ctx context.Context, input *struct{}) (*VersionResponse, error) {
		v := version.Get()
		return &VersionResponse{Body: VersionData{
			Version:   v.Version,
			GitCommit: v.GitCommit,
			BuildDate: v.BuildDate,
			BuildID:   v.BuildID,
			GoVersion: v.GoVersion,
			Compiler:  v.Compiler,
			Platform:  v.Platform,
		}}, nil
	})

	// Not part of §6's browser-facing table, but ambient operational
	// infrastructure the same way the teacher exposes its own metrics
	// endpoint alongside its core API surface.
	s.mux.Handle("GET /metrics", metrics.Handler())

	s.mux.HandleFunc("POST /bring_input_forward", s.handleBringForward)
	s.mux.HandleFunc("POST /bring_input_backward", s.handleBringBackward)
	s.mux.HandleFunc("POST /connect", s.handleConnect)

	frontendHandler, err := ui.Handler(s.matrixSnapshot)
	if err != nil {
		s.logger.Warn("failed to build matrix UI handler", "error", err)
	}

	// A single catch-all handles the worker registration sockets (dynamic
	// port-bearing paths a static pattern can't express), the matrix
	// page's own untargeted live-reload socket, and the browser's GET /;
	// everything else is 404, per §6.
	s.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if m := workerTargetPattern.FindStringSubmatch(r.URL.Path); m != nil {
			s.handleWorkerSocket(w, r, m[1], m[2])
			return
		}
		if r.URL.Path == "/" && websocket.IsWebSocketUpgrade(r) {
			s.handleBrowserSocket(w, r)
			return
		}
		if r.URL.Path == "/" && r.Method == http.MethodGet && frontendHandler != nil {
			frontendHandler.ServeHTTP(w, r)
			return
		}
		http.NotFound(w, r)
	})
}

// Mux returns the underlying ServeMux, for tests and for embedding the
// control plane behind an httptest.Server.
func (s *Server) Mux() *http.ServeMux {
	return s.mux
}

// BroadcastReload tells every connected worker socket to reload, the same
// notice a /connect or /bring_input_forward mutation triggers. Used by
// main when the seed connection graph is edited on disk.
func (s *Server) BroadcastReload() {
	s.broadcaster.broadcastReload()
}

// Start runs the HTTP server on addr until it is stopped or fails.
func (s *Server) Start(addr string) error {
	s.logger.Info("starting control plane", "addr", addr)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 30 * time.Second,
	}
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop closes every worker socket and shuts the HTTP server down.
func (s *Server) Stop() error {
	s.logger.Info("stopping control plane")
	s.broadcaster.closeAll()
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Close()
}

func (s *Server) matrixSnapshot() ui.MatrixView {
	inputs := s.matrix.Inputs()
	outputs := s.matrix.Outputs()

	view := ui.MatrixView{
		Inputs:  make([]string, 0, len(inputs)),
		Outputs: make([]string, 0, len(outputs)),
	}
	for _, in := range inputs {
		view.Inputs = append(view.Inputs, in.Name)
	}
	for _, out := range outputs {
		view.Outputs = append(view.Outputs, out.Name)
	}
	for _, in := range inputs {
		connected := make(map[string]bool)
		for _, out := range in.ConnectedOutputs() {
			connected[out.Name] = true
		}
		for _, out := range outputs {
			view.Edges = append(view.Edges, ui.Edge{
				Input:     in.Name,
				Output:    out.Name,
				Connected: connected[out.Name],
			})
		}
	}
	return view
}

package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/patchbay/patchbay/internal/events"
	"github.com/patchbay/patchbay/internal/registry"
)

const maxBodySize = 4096

func readBody(r *http.Request) (string, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize+1))
	if err != nil {
		return "", err
	}
	if len(body) > maxBodySize {
		return "", errors.New("body too large")
	}
	return strings.TrimSpace(string(body)), nil
}

// handleBringForward implements POST /bring_input_forward: body is the
// input's name (§6).
func (s *Server) handleBringForward(w http.ResponseWriter, r *http.Request) {
	name, err := readBody(r)
	if err != nil || name == "" {
		http.Error(w, "malformed body: expected an input name", http.StatusBadRequest)
		return
	}
	if err := s.matrix.BringForward(name); err != nil {
		s.respondMatrixError(w, err)
		return
	}
	s.bus.Publish(events.OrderChangedEvent{InputID: name, Direction: "forward"})
	s.broadcaster.broadcastReload()
	w.WriteHeader(http.StatusNoContent)
}

// handleBringBackward implements POST /bring_input_backward.
func (s *Server) handleBringBackward(w http.ResponseWriter, r *http.Request) {
	name, err := readBody(r)
	if err != nil || name == "" {
		http.Error(w, "malformed body: expected an input name", http.StatusBadRequest)
		return
	}
	if err := s.matrix.BringBackward(name); err != nil {
		s.respondMatrixError(w, err)
		return
	}
	s.bus.Publish(events.OrderChangedEvent{InputID: name, Direction: "backward"})
	s.broadcaster.broadcastReload()
	w.WriteHeader(http.StatusNoContent)
}

// handleConnect implements POST /connect: body is
// "<input>&<output>&<true|false>" (§6), e.g. "input_abc&output_xyz&true".
func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		http.Error(w, "malformed body", http.StatusBadRequest)
		return
	}

	parts := strings.Split(body, "&")
	if len(parts) != 3 {
		http.Error(w, `malformed body: expected "<input>&<output>&<true|false>"`, http.StatusBadRequest)
		return
	}
	inputName, outputName := parts[0], parts[1]
	connect, err := strconv.ParseBool(parts[2])
	if err != nil || inputName == "" || outputName == "" {
		http.Error(w, `malformed body: expected "<input>&<output>&<true|false>"`, http.StatusBadRequest)
		return
	}

	if err := s.matrix.Connect(inputName, outputName, connect); err != nil {
		s.respondMatrixError(w, err)
		return
	}

	s.bus.Publish(events.ConnectionChangedEvent{
		InputID:   inputName,
		OutputID:  outputName,
		Connected: connect,
	})
	s.broadcaster.broadcastReload()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) respondMatrixError(w http.ResponseWriter, err error) {
	if errors.Is(err, registry.ErrNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

package api

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/patchbay/patchbay/internal/events"
	"github.com/patchbay/patchbay/internal/registry"
)

var upgrader = websocket.Upgrader{
	// No authentication and no cross-origin concern: the control plane
	// is a LAN-local tool (§1 non-goals exclude authentication).
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsClient is one worker's control socket. Writes go through writeMu so
// a broadcast from the tick/event side and any handshake write from the
// accept goroutine never interleave on the wire — the same "each client
// has its own serialized write strand" shape §5 calls for.
type wsClient struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (c *wsClient) write(messageType int, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(messageType, data)
}

// broadcaster tracks every connected worker socket so a registry
// mutation can fan a reload notice out to all of them.
type broadcaster struct {
	mu      sync.Mutex
	clients map[*wsClient]struct{}
}

func newBroadcaster() *broadcaster {
	return &broadcaster{clients: make(map[*wsClient]struct{})}
}

func (b *broadcaster) add(c *wsClient) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.clients[c] = struct{}{}
}

func (b *broadcaster) remove(c *wsClient) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.clients, c)
}

// broadcastReload sends the one further message type the protocol
// defines beyond the initial handshake: an empty-body reload notice
// telling every worker's UI iframe to refresh (§6).
func (b *broadcaster) broadcastReload() {
	b.mu.Lock()
	clients := make([]*wsClient, 0, len(b.clients))
	for c := range b.clients {
		clients = append(clients, c)
	}
	b.mu.Unlock()

	for _, c := range clients {
		_ = c.write(websocket.TextMessage, nil)
	}
}

func (b *broadcaster) closeAll() {
	b.mu.Lock()
	clients := make([]*wsClient, 0, len(b.clients))
	for c := range b.clients {
		clients = append(clients, c)
	}
	b.clients = make(map[*wsClient]struct{})
	b.mu.Unlock()

	for _, c := range clients {
		_ = c.conn.Close()
	}
}

// handleWorkerSocket completes a worker's registration handshake
// (§4.E "Opening -> Connected"): upgrade, create the owning session and
// its shared region, insert a weak reference into the matrix, and reply
// with a single binary message carrying the region name. The socket is
// then held open only to detect disconnect (§4.E "Connected -> Closing");
// subsequent worker-originated messages are ignored, per §6.
func (s *Server) handleWorkerSocket(w http.ResponseWriter, r *http.Request, role, portStr string) {
	port, err := strconv.Atoi(portStr)
	if err != nil {
		http.Error(w, "malformed port", http.StatusBadRequest)
		return
	}

	kind := registry.Input
	if role == "output" {
		kind = registry.Output
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err, "role", role, "port", port)
		return
	}

	session, err := registry.NewSession(kind, port)
	if err != nil {
		s.logger.Error("failed to create session region", "error", err)
		_ = conn.Close()
		return
	}

	client := &wsClient{conn: conn}

	if kind == registry.Input {
		s.matrix.RegisterInput(session.WeakRef())
	} else {
		s.matrix.RegisterOutput(session.WeakRef())
	}
	s.sessions.Add(session)
	s.broadcaster.add(client)

	s.bus.Publish(events.DeviceRegisteredEvent{
		DeviceID:  session.Device().Name,
		Kind:      kind.String(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	s.bus.Publish(events.SessionOpenedEvent{
		SessionID:  session.ID,
		DeviceID:   session.Device().Name,
		RemoteAddr: r.RemoteAddr,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	})

	if err := client.write(websocket.BinaryMessage, []byte(session.Device().Name)); err != nil {
		s.logger.Warn("failed to send handshake reply", "error", err)
		s.closeSession(client, session, "handshake_failed")
		return
	}

	s.readLoop(client, session)
}

// handleBrowserSocket upgrades the matrix page's own plain, untargeted
// websocket connection: the page opens `ws://<host>/` with no
// registration target and treats any inbound message as "reload"
// (ui/matrix.go's client script), the same live-push refresh the
// original router gives every tracked client, worker or browser alike.
// The socket carries no handshake reply and registers no device; it is
// tracked in the same broadcaster a mutation's reload notice fans out
// to.
func (s *Server) handleBrowserSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("browser websocket upgrade failed", "error", err)
		return
	}

	client := &wsClient{conn: conn}
	s.broadcaster.add(client)
	defer func() {
		s.broadcaster.remove(client)
		_ = conn.Close()
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// readLoop blocks until the worker disconnects or the socket errors;
// every message it sends is ignored, per §6 ("subsequent worker-
// originated messages are ignored by the core").
func (s *Server) readLoop(client *wsClient, session *registry.Session) {
	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			s.closeSession(client, session, "remote_close")
			return
		}
	}
}

func (s *Server) closeSession(client *wsClient, session *registry.Session, reason string) {
	s.broadcaster.remove(client)
	s.sessions.Remove(session)
	_ = session.Close()
	_ = client.conn.Close()

	s.bus.Publish(events.DeviceRemovedEvent{
		DeviceID:  session.Device().Name,
		Kind:      session.Device().Kind.String(),
		Reason:    reason,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	s.bus.Publish(events.SessionClosedEvent{
		SessionID: session.ID,
		DeviceID:  session.Device().Name,
		Reason:    reason,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

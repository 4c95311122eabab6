// Package workerclient implements the worker side of the control-plane
// handshake (§6): dial the router, announce a role and control port,
// receive the shared-region name to attach, and be notified when the
// router asks the worker's own UI iframe to reload.
package workerclient

import (
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/patchbay/patchbay/internal/shmbuf"
	"github.com/patchbay/patchbay/internal/shmregion"
)

// Role is the worker's kind, as encoded in the registration target.
type Role string

const (
	RoleInput  Role = "input"
	RoleOutput Role = "output"
)

// Client is a live connection to the router: a websocket carrying the
// handshake and reload notices, and the shared region it attached to
// once the handshake completes.
type Client struct {
	conn    *websocket.Conn
	writeMu sync.Mutex

	region *shmregion.Region

	onReload func()
	closeMu  sync.Mutex
	closed   bool
}

// Dial opens a control-plane websocket to addr (host:port, no scheme),
// announces role and port, and blocks for the router's handshake reply.
// On success the returned Client has already attached the named shared
// region; call Buffer to get at it.
func Dial(addr string, role Role, port int) (*Client, error) {
	u := url.URL{Scheme: "ws", Host: addr, Path: fmt.Sprintf("/%s_%s", role, strconv.Itoa(port))}

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("workerclient: dial %s: %w", u.String(), err)
	}

	msgType, payload, err := conn.ReadMessage()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("workerclient: read handshake: %w", err)
	}
	if msgType != websocket.BinaryMessage {
		_ = conn.Close()
		return nil, fmt.Errorf("workerclient: expected binary handshake reply, got message type %d", msgType)
	}

	regionName := string(payload)
	region, err := shmregion.Attach(regionName)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("workerclient: attach region %q: %w", regionName, err)
	}

	c := &Client{conn: conn, region: region}
	go c.readLoop()
	return c, nil
}

// RegionName returns the name of the shared region this client attached.
func (c *Client) RegionName() string {
	return c.region.Name()
}

// Buffer returns the attached triple buffer: writers call Write and
// DoneWriting on it, readers call AboutToRead, HasNew and Read.
func (c *Client) Buffer() *shmbuf.TripleBuffer {
	return c.region.Buffer()
}

// OnReload registers fn to run whenever the router broadcasts a reload
// notice. Only one callback may be registered; a later call replaces
// the previous one.
func (c *Client) OnReload(fn func()) {
	c.onReload = fn
}

// readLoop discards every inbound frame except as a reload trigger: per
// §6, the router sends only one further message type after the
// handshake, an empty-body reload broadcast.
func (c *Client) readLoop() {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
		if c.onReload != nil {
			c.onReload()
		}
	}
}

// Close tears down the websocket and releases the attached region. It
// does not unlink the underlying shared-memory object: the router, as
// creator, owns that (§4.C "the attach-er never destroys").
func (c *Client) Close() error {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true

	_ = c.conn.SetWriteDeadline(time.Now().Add(time.Second))
	c.writeMu.Lock()
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()

	if err := c.conn.Close(); err != nil {
		return err
	}
	return c.region.Close()
}

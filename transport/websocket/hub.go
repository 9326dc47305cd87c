package websocket

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/vizsync/vizsync/protocol"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer. Asset messages carry
	// option blobs, so this is roomier than a chat protocol would need.
	maxMessageSize = 65536
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins in development
		// TODO: Configure this for production
		return true
	},
}

var (
	errSendBufferFull = errors.New("send buffer full")
	errClientClosed   = errors.New("client closed")
)

// Client represents one WebSocket connection and implements
// protocol.Sender for the dispatcher's replies.
type Client struct {
	hub   *Hub
	conn  *websocket.Conn
	state *protocol.Conn

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

// Send marshals v and queues it for this connection without blocking.
func (c *Client) Send(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.enqueue(data)
}

func (c *Client) enqueue(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return errClientClosed
	}
	select {
	case c.send <- data:
		return nil
	default:
		return errSendBufferFull
	}
}

// close shuts the send queue exactly once. Only the hub loop calls this.
func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// outbound is one fan-out: a pre-marshaled payload for a session scope,
// excluding the sender.
type outbound struct {
	token   string
	exclude *Client
	data    []byte
}

// Hub maintains the set of live connections and relays session-scoped
// broadcasts between them.
type Hub struct {
	// Live connections grouped by session token.
	sessions map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan *outbound

	dispatch *protocol.Dispatcher
	log      *zap.Logger
}

// NewHub creates a hub. Attach a dispatcher before serving connections.
func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		sessions:   make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *outbound),
		log:        log,
	}
}

// AttachDispatcher wires the protocol dispatcher that interprets inbound
// frames. Must be called before ServeWS.
func (h *Hub) AttachDispatcher(d *protocol.Dispatcher) {
	h.dispatch = d
}

// Run starts the hub's event loop. All live-set mutation happens here.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case msg := <-h.broadcast:
			h.deliver(msg)
		}
	}
}

// BroadcastToSession implements protocol.Relay. The payload is serialized
// once here; delivery happens on the hub loop and never blocks the caller
// beyond the channel hand-off.
func (h *Hub) BroadcastToSession(token string, exclude protocol.Sender, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		h.log.Error("failed to marshal broadcast", zap.Error(err))
		return
	}

	ex, _ := exclude.(*Client)
	h.broadcast <- &outbound{token: token, exclude: ex, data: data}
}

// ServeWS handles WebSocket requests from clients. The session token is
// taken from the connect URL's query string; an empty token is allowed at
// this layer (the dispatcher rejects any bind attempt without one).
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	token := r.URL.Query().Get("session")
	client := &Client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, 256),
	}
	client.state = protocol.NewConn(token, r.Host, client)

	h.register <- client

	go client.writePump()
	go client.readPump()
}

func (h *Hub) registerClient(client *Client) {
	token := client.state.Token()
	if h.sessions[token] == nil {
		h.sessions[token] = make(map[*Client]bool)
	}
	h.sessions[token][client] = true

	h.log.Debug("client connected",
		zap.String("session", token),
		zap.Int("session_clients", len(h.sessions[token])))
}

func (h *Hub) unregisterClient(client *Client) {
	token := client.state.Token()
	clients, ok := h.sessions[token]
	if !ok {
		return
	}
	if _, ok := clients[client]; !ok {
		return
	}
	delete(clients, client)
	client.close()

	// Clean up empty sessions' client sets.
	if len(clients) == 0 {
		delete(h.sessions, token)
	}

	h.log.Debug("client disconnected",
		zap.String("session", token),
		zap.Int("session_clients", len(clients)))
}

func (h *Hub) deliver(msg *outbound) {
	clients, ok := h.sessions[msg.token]
	if !ok {
		return
	}
	for client := range clients {
		if client == msg.exclude {
			continue
		}
		if err := client.enqueue(msg.data); err != nil {
			// Dead or drowning receiver: drop it, never fail the
			// triggering request.
			h.unregisterClient(client)
		}
	}
}

// readPump pumps frames from the connection into the dispatcher.
func (c *Client) readPump() {
	defer func() {
		c.hub.dispatch.Disconnect(c.state)
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Debug("websocket read error", zap.Error(err))
			}
			break
		}
		c.hub.dispatch.Handle(c.state, message)
	}
}

// writePump pumps queued messages out to the connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the queue.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

package collab

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"inkwell/api/internal/util"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 50 * time.Second
	maxMessageSize = 1 << 20
	sendQueueSize  = 64
)

// Identity is the authenticated (or capability-granted) peer identity.
type Identity struct {
	UserID      string
	DisplayName string
}

// IdentityResolver turns the connection credentials into an Identity.
// accessToken is the bearer token, shareToken a share-link capability;
// either may be empty.
type IdentityResolver func(ctx context.Context, accessToken, shareToken string) (Identity, error)

var errSendQueueFull = errors.New("send queue full")

// WSHandler upgrades HTTP connections and runs the read/write pumps for
// each peer.
type WSHandler struct {
	hub      *Hub
	resolve  IdentityResolver
	upgrader websocket.Upgrader
}

func NewWSHandler(hub *Hub, resolve IdentityResolver) *WSHandler {
	return &WSHandler{
		hub:     hub,
		resolve: resolve,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// CORS is enforced at the API layer; the socket accepts any
			// origin and relies on the token for access control.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	identity, err := h.resolve(r.Context(), r.URL.Query().Get("token"), r.URL.Query().Get("shareToken"))
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("collab: upgrade: %v", err)
		return
	}

	client := &client{
		hub:      h.hub,
		conn:     conn,
		send:     make(chan Event, sendQueueSize),
		connID:   util.NewID("conn"),
		userID:   identity.UserID,
		userName: identity.DisplayName,
		joined:   make(map[string]struct{}),
	}

	go client.writePump()
	client.readPump()
}

// client is one WebSocket peer. Its participant ID is per-connection so the
// same user in two tabs counts as two participants.
type client struct {
	hub      *Hub
	conn     *websocket.Conn
	send     chan Event
	connID   string
	userID   string
	userName string
	joined   map[string]struct{}
}

func (c *client) ID() string { return c.connID }

// Send queues an event without blocking. A full queue means the peer is too
// slow; the event is dropped for this peer only.
func (c *client) Send(ev Event) error {
	select {
	case c.send <- ev:
		return nil
	default:
		return errSendQueueFull
	}
}

func (c *client) readPump() {
	defer func() {
		c.hub.Disconnect(c.connID)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var ev Event
		if err := c.conn.ReadJSON(&ev); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("collab: read from %s: %v", c.connID, err)
			}
			return
		}
		c.dispatch(ev)
	}
}

func (c *client) dispatch(ev Event) {
	switch ev.Type {
	case EventJoinDocument:
		if ev.ArticleID == "" {
			return
		}
		c.joined[ev.ArticleID] = struct{}{}
		c.hub.Join(ev.ArticleID, c)
	case EventEditContent:
		if _, ok := c.joined[ev.ArticleID]; !ok {
			return
		}
		c.hub.Edit(ev.ArticleID, c.connID, ev.Content)
	case EventMoveCursor:
		if _, ok := c.joined[ev.ArticleID]; !ok {
			return
		}
		c.hub.MoveCursor(ev.ArticleID, c.connID, ev.Cursor)
	case EventSendMessage:
		if _, ok := c.joined[ev.ArticleID]; !ok {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		c.hub.SendMessage(ctx, ev.ArticleID, c.connID, c.userID, ev.Message)
		cancel()
	case EventLeaveRoom:
		delete(c.joined, ev.ArticleID)
		c.hub.Leave(ev.ArticleID, c.connID)
	default:
		_ = c.Send(Event{Type: EventError, Error: "unknown event type"})
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case ev := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

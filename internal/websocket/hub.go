// Package websocket pushes booking and invoice events to the dashboards of
// the company they belong to.
package websocket

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Event is the envelope every pushed message uses
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
	At   time.Time   `json:"at"`
}

type message struct {
	companyID uuid.UUID
	body      []byte
}

// Client represents a single connected WebSocket client
type Client struct {
	Hub       *Hub
	CompanyID uuid.UUID
	Conn      *websocket.Conn
	Send      chan []byte
}

// Hub maintains the set of active clients, grouped per company
type Hub struct {
	rooms      map[uuid.UUID]map[*Client]bool
	broadcast  chan message
	register   chan *Client
	unregister chan *Client
	done       chan struct{} // closed when Run returns
	origins    map[string]bool
	upgrader   websocket.Upgrader
}

// NewHub initializes a new WS Hub instance. Upgrades are accepted from the
// given browser origins; "*" accepts any origin.
func NewHub(allowedOrigins ...string) *Hub {
	h := &Hub{
		rooms:      make(map[uuid.UUID]map[*Client]bool),
		broadcast:  make(chan message, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		origins:    make(map[string]bool, len(allowedOrigins)),
	}
	for _, o := range allowedOrigins {
		h.origins[strings.TrimRight(o, "/")] = true
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// checkOrigin admits requests without an Origin header (non-browser
// clients), same-host pages and the configured origins. CORS does not apply
// to websocket upgrades.
func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || h.origins["*"] || h.origins[origin] {
		return true
	}
	u, err := url.Parse(origin)
	return err == nil && strings.EqualFold(u.Host, r.Host)
}

// Run starts the core dispatch loop for WebSocket events. It owns the rooms
// map, so no lock is needed.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return
		case client := <-h.register:
			room, ok := h.rooms[client.CompanyID]
			if !ok {
				room = make(map[*Client]bool)
				h.rooms[client.CompanyID] = room
			}
			room[client] = true
			log.Println("New WebSocket client connected")
		case client := <-h.unregister:
			h.remove(client)
		case msg := <-h.broadcast:
			for client := range h.rooms[msg.companyID] {
				select {
				case client.Send <- msg.body:
				default:
					h.remove(client)
				}
			}
		}
	}
}

// shutdown releases every client once the loop stops. Pending and later
// register/unregister calls return through done instead of blocking.
func (h *Hub) shutdown() {
	close(h.done)
	for _, room := range h.rooms {
		for client := range room {
			close(client.Send)
		}
	}
	h.rooms = make(map[uuid.UUID]map[*Client]bool)
	log.Println("WebSocket hub stopped")
}

// join hands a client to the loop. It reports false once the hub has stopped.
func (h *Hub) join(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func (h *Hub) remove(client *Client) {
	room := h.rooms[client.CompanyID]
	if _, ok := room[client]; !ok {
		return
	}
	delete(room, client)
	close(client.Send)
	if len(room) == 0 {
		delete(h.rooms, client.CompanyID)
	}
	log.Println("WebSocket client disconnected")
}

// Publish queues an event for every client of a company. It never blocks
// the caller; events are dropped when the hub is saturated.
func (h *Hub) Publish(companyID uuid.UUID, eventType string, data interface{}) {
	body, err := json.Marshal(Event{Type: eventType, Data: data, At: time.Now().UTC()})
	if err != nil {
		log.Printf("websocket: marshal %s failed: %v", eventType, err)
		return
	}
	select {
	case h.broadcast <- message{companyID: companyID, body: body}:
	default:
		log.Printf("websocket: hub busy, dropped %s", eventType)
	}
}

// writePump handles writing messages from the Hub to the WebSocket connection
func (c *Client) writePump() {
	defer func() {
		_ = c.Conn.Close()
	}()
	for message := range c.Send {
		if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
	_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// readPump pumps messages from the WebSocket connection to the hub
func (c *Client) readPump() {
	defer func() {
		c.Hub.leave(c)
		_ = c.Conn.Close()
	}()
	for {
		// Reading only keeps the connection alive; clients never send commands
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("error: %v", err)
			}
			break
		}
	}
}

// TokenParser resolves a bearer token to the company it belongs to
type TokenParser func(token string) (companyID uuid.UUID, err error)

// ServeWs handles websocket requests from the peer. Browsers cannot set
// headers on the upgrade request, so the token comes as a query parameter.
func ServeWs(hub *Hub, c *gin.Context, parse TokenParser) {
	tokenString := c.Query("token")
	if tokenString == "" {
		log.Println("WebSocket connection rejected: missing token")
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	companyID, err := parse(tokenString)
	if err != nil {
		log.Println("WebSocket connection rejected: invalid token:", err)
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	conn, err := hub.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Println("WebSocket upgrade failed:", err)
		return
	}
	client := &Client{Hub: hub, CompanyID: companyID, Conn: conn, Send: make(chan []byte, 256)}
	if !hub.join(client) {
		_ = conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

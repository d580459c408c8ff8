package notify

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/xelth-com/bizsync/internal/remote/rest"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Clients only send small control messages
	maxMessageSize = 4 * 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Devices connect from native apps without an Origin
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Client is one connected device
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	Org      string
	DeviceID string
}

// controlMessage is what a device may send
type controlMessage struct {
	Type     string `json:"type"`
	DeviceID string `json:"deviceId,omitempty"`
	MsgID    string `json:"msgId,omitempty"`
}

// readPump answers DEVICE_IDENTIFY with the identity the hub registered
// and keeps the read deadline alive
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Debug().Err(err).Str("device", c.DeviceID).Msg("ws read error")
			}
			break
		}

		var msg controlMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}
		if msg.Type == "DEVICE_IDENTIFY" {
			c.sendJSON(map[string]string{
				"type":     "ACK",
				"msgId":    msg.MsgID,
				"status":   "connected",
				"deviceId": c.DeviceID,
				"org":      c.Org,
			})
		}
	}
}

// writePump pumps messages from the hub to the websocket connection.
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
				// The hub closed the channel.
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

// sendJSON queues v without blocking the read loop
func (c *Client) sendJSON(v interface{}) {
	msg, err := json.Marshal(v)
	if err != nil {
		return
	}
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if _, ok := c.hub.clients[c.Org][c]; !ok {
		// dropped by the hub, send is closed
		return
	}
	select {
	case c.send <- msg:
	default:
	}
}

// Routes registers the websocket endpoint on r
func (h *Hub) Routes(r *mux.Router) {
	r.HandleFunc("/ws", h.ServeWs).Methods(http.MethodGet)
}

// ServeWs upgrades a device connection. The organization comes from the
// device token, or from ?org= when the hub runs without a secret.
func (h *Hub) ServeWs(w http.ResponseWriter, r *http.Request) {
	org := r.URL.Query().Get("org")
	deviceID := ""

	if h.secret != "" {
		token := r.URL.Query().Get("token")
		if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
			token = strings.TrimPrefix(auth, "Bearer ")
		}
		claims, err := rest.ValidateDeviceToken(token, h.secret)
		if err != nil {
			http.Error(w, "invalid device token", http.StatusUnauthorized)
			return
		}
		org, deviceID = claims.Org, claims.Device
	}
	if org == "" {
		http.Error(w, "organization is required", http.StatusBadRequest)
		return
	}
	if deviceID == "" {
		deviceID = "anon_" + uuid.NewString()
	}

	select {
	case <-h.done:
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	default:
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := &Client{hub: h, conn: conn, send: make(chan []byte, 64), Org: org, DeviceID: deviceID}
	if !h.add(client) {
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

package notify

import (
	"context"
	"encoding/json"
	"fmt"
	gosync "sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/xelth-com/bizsync/internal/sync"
)

// MsgPushCompleted is broadcast after every completed push cycle
const MsgPushCompleted = "SYNC_PUSH_COMPLETED"

// Message is the envelope of everything the hub sends
type Message struct {
	Type           string           `json:"type"`
	MsgID          string           `json:"msgId"`
	OrganizationID string           `json:"organizationId"`
	SentAt         time.Time        `json:"sentAt"`
	Report         *sync.PushReport `json:"report,omitempty"`
}

// Hub keeps the connected clients per organization. Devices of one
// organization listen for each other's push cycles so they can pull
// without waiting for their own timer.
type Hub struct {
	// org -> clients; a client's send channel is open exactly while it is listed here
	clients map[string]map[*Client]struct{}
	closed  bool

	unregister chan *Client
	done       chan struct{}

	secret string
	log    zerolog.Logger
	mu     gosync.RWMutex
}

var _ sync.Notifier = (*Hub)(nil)

// NewHub creates a hub. With a non-empty secret every connection must
// present a device token; the organization is taken from its claims.
func NewHub(secret string, log zerolog.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]struct{}),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		secret:     secret,
		log:        log,
	}
}

// add registers client before its pumps start. It fails once the hub stopped.
func (h *Hub) add(client *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	set, ok := h.clients[client.Org]
	if !ok {
		set = make(map[*Client]struct{})
		h.clients[client.Org] = set
	}
	set[client] = struct{}{}
	h.log.Info().Str("org", client.Org).Str("device", client.DeviceID).Msg("📱 device connected")
	return true
}

// Run processes disconnects until ctx is done, then drops every client
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case client := <-h.unregister:
			h.mu.Lock()
			if set, ok := h.clients[client.Org]; ok {
				if _, ok := set[client]; ok {
					delete(set, client)
					close(client.send)
					if len(set) == 0 {
						delete(h.clients, client.Org)
					}
					h.log.Info().Str("org", client.Org).Str("device", client.DeviceID).Msg("📴 device disconnected")
				}
			}
			h.mu.Unlock()

		case <-ctx.Done():
			h.mu.Lock()
			h.closed = true
			for org, set := range h.clients {
				for client := range set {
					close(client.send)
				}
				delete(h.clients, org)
			}
			h.mu.Unlock()
			return
		}
	}
}

// ClientCount returns the number of connected clients of org
func (h *Hub) ClientCount(org string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[org])
}

// Broadcast sends message to every client of org and returns how many
// accepted it. Clients with a full buffer miss the message.
func (h *Hub) Broadcast(org string, message interface{}) (int, error) {
	data, err := json.Marshal(message)
	if err != nil {
		return 0, fmt.Errorf("marshal message: %w", err)
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	sent := 0
	for client := range h.clients[org] {
		select {
		case client.send <- data:
			sent++
		default:
			h.log.Warn().Str("org", org).Str("device", client.DeviceID).Msg("client buffer full, message dropped")
		}
	}
	return sent, nil
}

// PushCompleted tells the other devices of org that a push cycle finished
func (h *Hub) PushCompleted(ctx context.Context, org string, report *sync.PushReport) error {
	sent, err := h.Broadcast(org, Message{
		Type:           MsgPushCompleted,
		MsgID:          uuid.NewString(),
		OrganizationID: org,
		SentAt:         time.Now().UTC(),
		Report:         report,
	})
	if err != nil {
		return err
	}
	h.log.Debug().Str("org", org).Str("cycle", report.CycleID).Int("clients", sent).Msg("push notification sent")
	return nil
}

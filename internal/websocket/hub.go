// Package websocket pushes live tier updates to connected browsers.
// Clients subscribe to channels named "<pool>:<mode>" and receive an
// event whenever an admin changes a player's tier in that mode.
package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/crtiers/crtiers/internal/domain"
)

// Message types
const (
	MessageTypeTierUpdate  = "tier_update"
	MessageTypeSubscribe   = "subscribe"
	MessageTypeUnsubscribe = "unsubscribe"
	MessageTypePing        = "ping"
	MessageTypePong        = "pong"
	MessageTypeError       = "error"
)

// Message is the wire envelope for all hub traffic.
type Message struct {
	Type      string    `json:"type"`
	Channel   string    `json:"channel,omitempty"`
	Data      any       `json:"data,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// TierUpdate is the payload broadcast when a player's tier changes.
type TierUpdate struct {
	PlayerID      string `json:"playerId"`
	MinecraftName string `json:"minecraftName"`
	GameMode      string `json:"gameMode"`
	PreviousScore int    `json:"previousScore"`
	NewScore      int    `json:"newScore"`
	Tier          string `json:"tier"`
}

// Channel builds the subscription key for a pool and game mode.
func Channel(pool, mode string) string {
	return fmt.Sprintf("%s:%s", pool, mode)
}

// Hub maintains the set of active clients and routes broadcasts to the
// channels they subscribed to.
type Hub struct {
	clients    map[string]map[*Client]bool
	allClients map[*Client]bool

	register    chan *Client
	unregister  chan *Client
	broadcast   chan *Message
	subscribe   chan *subscriptionRequest
	unsubscribe chan *subscriptionRequest

	mu     sync.RWMutex
	logger *slog.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

type subscriptionRequest struct {
	client  *Client
	channel string
}

// NewHub creates a hub. Call Run in a goroutine to start it.
func NewHub(logger *slog.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:     make(map[string]map[*Client]bool),
		allClients:  make(map[*Client]bool),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		broadcast:   make(chan *Message, 256),
		subscribe:   make(chan *subscriptionRequest, 64),
		unsubscribe: make(chan *subscriptionRequest, 64),
		logger:      logger,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Run is the hub's main loop.
func (h *Hub) Run() {
	h.logger.Info("websocket hub started")
	for {
		select {
		case <-h.ctx.Done():
			h.logger.Info("websocket hub stopping")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.allClients[client] = true
			h.mu.Unlock()
			h.logger.Debug("client registered", "client_id", client.id)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.allClients[client]; ok {
				delete(h.allClients, client)
				for channel, clients := range h.clients {
					if _, ok := clients[client]; ok {
						delete(clients, client)
						if len(clients) == 0 {
							delete(h.clients, channel)
						}
					}
				}
				close(client.send)
			}
			h.mu.Unlock()
			h.logger.Debug("client unregistered", "client_id", client.id)

		case req := <-h.subscribe:
			h.mu.Lock()
			if _, ok := h.clients[req.channel]; !ok {
				h.clients[req.channel] = make(map[*Client]bool)
			}
			h.clients[req.channel][req.client] = true
			h.mu.Unlock()
			h.logger.Debug("client subscribed", "client_id", req.client.id, "channel", req.channel)

		case req := <-h.unsubscribe:
			h.mu.Lock()
			if clients, ok := h.clients[req.channel]; ok {
				delete(clients, req.client)
				if len(clients) == 0 {
					delete(h.clients, req.channel)
				}
			}
			h.mu.Unlock()
			h.logger.Debug("client unsubscribed", "client_id", req.client.id, "channel", req.channel)

		case message := <-h.broadcast:
			h.broadcastMessage(message)
		}
	}
}

// Stop stops the hub.
func (h *Hub) Stop() {
	h.cancel()
}

func (h *Hub) broadcastMessage(message *Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	data, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("failed to marshal message", "error", err)
		return
	}

	// Channel-scoped messages go to subscribers only; others go to everyone.
	if message.Channel != "" {
		if clients, ok := h.clients[message.Channel]; ok {
			for client := range clients {
				select {
				case client.send <- data:
				default:
					h.logger.Warn("client buffer full, skipping", "client_id", client.id)
				}
			}
		}
	} else {
		for client := range h.allClients {
			select {
			case client.send <- data:
			default:
				h.logger.Warn("client buffer full, skipping", "client_id", client.id)
			}
		}
	}
}

// BroadcastTierChanges fans one changelog entry out to every affected
// mode channel of the player's pool.
func (h *Hub) BroadcastTierChanges(pool domain.Pool, entry domain.ChangelogEntry, tierName func(mode string, score int) string) {
	for _, change := range entry.Changes {
		message := &Message{
			Type:    MessageTypeTierUpdate,
			Channel: Channel(pool.Name, change.GameMode),
			Data: TierUpdate{
				PlayerID:      entry.PlayerID,
				MinecraftName: entry.MinecraftName,
				GameMode:      change.GameMode,
				PreviousScore: change.PreviousScore,
				NewScore:      change.NewScore,
				Tier:          tierName(change.GameMode, change.NewScore),
			},
			Timestamp: time.Now(),
		}

		select {
		case h.broadcast <- message:
		default:
			h.logger.Warn("broadcast channel full, dropping message")
		}
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister removes a client from the hub.
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// Subscribe adds a client to a channel.
func (h *Hub) Subscribe(client *Client, channel string) {
	h.subscribe <- &subscriptionRequest{client: client, channel: channel}
}

// Unsubscribe removes a client from a channel.
func (h *Hub) Unsubscribe(client *Client, channel string) {
	h.unsubscribe <- &subscriptionRequest{client: client, channel: channel}
}

// SubscriberCount returns the number of subscribers on a channel.
func (h *Hub) SubscriberCount(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if clients, ok := h.clients[channel]; ok {
		return len(clients)
	}
	return 0
}

// TotalConnections returns the number of connected clients.
func (h *Hub) TotalConnections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.allClients)
}

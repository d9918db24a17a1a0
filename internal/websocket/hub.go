package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"fusionbi/internal/infrastructure"
	"fusionbi/pkg/contracts"
	"fusionbi/pkg/contracts/events"
)

const broadcastQueue = 64

// outbound is one queued broadcast.
type outbound struct {
	messageType string
	payload     []byte
}

// HubStats is a point-in-time view of the hub.
type HubStats struct {
	ActiveClients    int   `json:"active_clients"`
	TotalConnections int64 `json:"total_connections"`
	MessagesSent     int64 `json:"messages_sent"`
	MessagesDropped  int64 `json:"messages_dropped"`
}

// Hub maintains the set of active clients and broadcasts messages to them.
// The Run loop owns the client set; other goroutines only talk to it
// through channels.
type Hub struct {
	clients    map[*Client]struct{}
	broadcast  chan outbound
	register   chan *Client
	unregister chan *Client

	// count mirrors len(clients) for readers outside Run.
	count atomic.Int64

	totalConnections atomic.Int64
	messagesSent     atomic.Int64
	messagesDropped  atomic.Int64

	logger  *slog.Logger
	metrics *Metrics

	mu      sync.Mutex
	running bool
	quit    chan struct{}
	done    chan struct{}
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithMetrics records hub activity on m.
func WithMetrics(m *Metrics) HubOption {
	return func(h *Hub) { h.metrics = m }
}

// NewHub creates a new Hub instance
func NewHub(logger *slog.Logger, opts ...HubOption) *Hub {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	h := &Hub{
		clients:    make(map[*Client]struct{}),
		broadcast:  make(chan outbound, broadcastQueue),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		logger:     logger.With(slog.String("component", "websocket.hub")),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Start runs the hub loop in its own goroutine. Calling it twice is a no-op.
func (h *Hub) Start() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.running {
		return
	}
	h.running = true
	go h.Run()
}

// Run is the hub's main loop.
func (h *Hub) Run() {
	defer close(h.done)
	for {
		select {
		case <-h.quit:
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.count.Store(0)
			h.logger.Info("Hub shutting down")
			return

		case client := <-h.register:
			h.clients[client] = struct{}{}
			h.count.Store(int64(len(h.clients)))
			h.totalConnections.Add(1)

			ctx := client.context()
			h.metrics.connected(ctx)
			h.logger.InfoContext(ctx, "Client registered",
				slog.Int("total_clients", len(h.clients)),
				slog.String("client_id", client.id),
				slog.String("remote_addr", client.remoteAddr))

			if msg, err := h.encode(string(events.MessageTypeConnect), events.ConnectedMessage{
				ClientID: client.id,
				Version:  contracts.Version,
			}, client.traceID); err == nil {
				h.deliver(client, msg)
			}

		case client := <-h.unregister:
			h.remove(client, "closed")

		case msg := <-h.broadcast:
			sent := 0
			for client := range h.clients {
				if h.deliver(client, msg.payload) {
					sent++
				}
			}
			h.messagesSent.Add(int64(sent))
			h.metrics.sent(context.Background(), msg.messageType, sent)
			h.logger.Debug("Broadcast delivered",
				slog.String("type", msg.messageType),
				slog.Int("clients", sent),
				slog.Int("payload_size", len(msg.payload)))
		}
	}
}

// deliver queues payload for one client. A client whose queue is full is
// too slow to keep and gets disconnected.
func (h *Hub) deliver(client *Client, payload []byte) bool {
	select {
	case client.send <- payload:
		return true
	default:
		h.messagesDropped.Add(1)
		h.metrics.dropped(client.context(), "client")
		h.logger.WarnContext(client.context(), "Client send buffer full, disconnecting",
			slog.String("client_id", client.id))
		h.remove(client, "slow")
		return false
	}
}

func (h *Hub) remove(client *Client, reason string) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.send)
	h.count.Store(int64(len(h.clients)))

	ctx := client.context()
	h.metrics.disconnected(ctx, time.Since(client.connectedAt), reason)
	h.logger.InfoContext(ctx, "Client unregistered",
		slog.Int("total_clients", len(h.clients)),
		slog.String("client_id", client.id),
		slog.String("reason", reason),
		slog.Duration("connection_duration", time.Since(client.connectedAt)))
}

func (h *Hub) encode(messageType string, data interface{}, traceID string) ([]byte, error) {
	msg := events.WebSocketMessage{
		BaseMessage: events.BaseMessage{
			ID:        uuid.NewString(),
			Type:      events.MessageType(messageType),
			Timestamp: time.Now().UTC(),
			TraceID:   traceID,
		},
		Data: data,
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("Error marshaling message",
			slog.String("message_type", messageType),
			slog.String("error", err.Error()))
		return nil, err
	}
	return payload, nil
}

// Broadcast sends a typed message to every connected client. It never
// blocks: when the hub is stopped or its queue is full the message is
// dropped.
func (h *Hub) Broadcast(messageType string, data interface{}) {
	payload, err := h.encode(messageType, data, "")
	if err != nil {
		return
	}
	select {
	case <-h.quit:
		return
	default:
	}
	select {
	case h.broadcast <- outbound{messageType: messageType, payload: payload}:
	default:
		h.messagesDropped.Add(1)
		h.metrics.dropped(context.Background(), "hub")
		h.logger.Warn("Broadcast queue full, message dropped",
			slog.String("message_type", messageType))
	}
}

// Register adds a client to the hub. On a stopped hub the client is shut
// down instead.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.quit:
		close(client.send)
		client.conn.Close()
	}
}

func (h *Hub) leave(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.quit:
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	return int(h.count.Load())
}

// Stats returns the hub counters.
func (h *Hub) Stats() HubStats {
	return HubStats{
		ActiveClients:    h.ClientCount(),
		TotalConnections: h.totalConnections.Load(),
		MessagesSent:     h.messagesSent.Load(),
		MessagesDropped:  h.messagesDropped.Load(),
	}
}

// Stop closes every client and ends the loop. It waits for the loop to
// finish when the hub was started.
func (h *Hub) Stop() {
	h.mu.Lock()
	select {
	case <-h.quit:
		h.mu.Unlock()
		return
	default:
	}
	close(h.quit)
	running := h.running
	h.running = false
	h.mu.Unlock()

	if running {
		<-h.done
	}
}

package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/quizbid/go/internal/auction"
)

// ConnectionManager maintains the set of connected observers and fans auction
// snapshots out to them. Commits reach it through BroadcastSnapshot, which
// only enqueues, so slow observers never stall the serialized mutation path.
type ConnectionManager struct {
	connections map[*Connection]bool
	mu          sync.RWMutex

	// Upgrader for WebSocket connections
	upgrader websocket.Upgrader

	config ConnectionConfig

	// Snapshot source for replaying state to a freshly joined observer
	snapshot func() auction.Snapshot

	broadcastCh chan auction.Snapshot

	// Floor tracking for minimum events; only touched by the Start loop
	lastFloor int
	hasFloor  bool
}

// Connection represents a WebSocket connection to a client
type Connection struct {
	ID       string
	BidderID string
	Conn     *websocket.Conn
	Send     chan []byte
	Manager  *ConnectionManager

	bids BidSink

	// Sequence of the last snapshot delivered to this connection; used to
	// drop broadcasts that the join-time replay already covered.
	lastSeq atomic.Uint64

	ConnectedAt time.Time
	LastPing    time.Time
}

// ConnectionConfig holds configuration for WebSocket connections
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool
}

// DefaultConnectionConfig returns default WebSocket configuration
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  1024, // 1KB max message size
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			// Allow all origins in development - restrict in production
			return true
		},
	}
}

// NewConnectionManager creates a new WebSocket connection manager. snapshot
// supplies the freshest auction state for join-time replays.
func NewConnectionManager(config ConnectionConfig, snapshot func() auction.Snapshot) *ConnectionManager {
	return &ConnectionManager{
		connections: make(map[*Connection]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		snapshot:    snapshot,
		broadcastCh: make(chan auction.Snapshot, 1000), // Buffer for bursts of accepted bids
	}
}

// Start drains the broadcast channel until the context is cancelled.
// Snapshots are handled strictly in the order they were committed.
func (cm *ConnectionManager) Start(ctx context.Context) {
	log.Info().Msg("connection manager started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("connection manager shutting down")
			return
		case snap := <-cm.broadcastCh:
			cm.handleBroadcast(snap)
		}
	}
}

// BroadcastSnapshot enqueues a committed snapshot for fan-out. It is called
// under the store lock and must never block.
func (cm *ConnectionManager) BroadcastSnapshot(snap auction.Snapshot) {
	select {
	case cm.broadcastCh <- snap:
	default:
		log.Warn().Uint64("seq", snap.Seq).Msg("broadcast channel full, dropping snapshot")
	}
}

// UpgradeConnection upgrades an HTTP connection to WebSocket, replays the
// current auction state to it, and starts its pumps.
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request, bidderID string, bids BidSink) error {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("failed to upgrade WebSocket connection")
		return fmt.Errorf("failed to upgrade connection: %w", err)
	}

	connection := &Connection{
		ID:          uuid.New().String(),
		BidderID:    bidderID,
		Conn:        conn,
		Send:        make(chan []byte, 256),
		Manager:     cm,
		bids:        bids,
		ConnectedAt: time.Now(),
		LastPing:    time.Now(),
	}

	cm.registerConnection(connection)

	go connection.writePump()
	go connection.readPump()

	log.Info().
		Str("connection_id", connection.ID).
		Str("bidder_id", bidderID).
		Msg("WebSocket connection established")

	return nil
}

// registerConnection adds a connection and replays the current state to it.
// Registration and replay happen under the manager lock, so the replay
// happens-before any broadcast the connection subsequently receives.
func (cm *ConnectionManager) registerConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	cm.connections[conn] = true
	cm.replay(conn)

	log.Debug().
		Str("connection_id", conn.ID).
		Int("total_connections", len(cm.connections)).
		Msg("connection registered")
}

// replay sends welcome, minimum, and history for the freshest snapshot to a
// single connection. Broadcasts at or below the replayed sequence are dropped
// for this connection afterwards, so it never sees a duplicate or an older
// state than the replay.
func (cm *ConnectionManager) replay(conn *Connection) {
	snap := cm.snapshot()
	conn.lastSeq.Store(snap.Seq)

	conn.enqueue(EventTypeWelcome, WelcomePayload{Name: snap.RoundName})
	conn.enqueue(EventTypeMinimum, MinimumPayload{FloorBid: snap.FloorBid})
	conn.enqueue(EventTypeHistory, HistoryPayload{CurrentBid: snap.CurrentBid, Entries: snap.History})
}

// unregisterConnection removes a connection from the manager
func (cm *ConnectionManager) unregisterConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if _, exists := cm.connections[conn]; exists {
		// Send is deliberately left open: the broadcast loop may still
		// hold a reference to this connection, and a send on a closed
		// channel would panic. The write pump exits on its next write
		// against the closed socket.
		delete(cm.connections, conn)

		log.Info().
			Str("connection_id", conn.ID).
			Str("bidder_id", conn.BidderID).
			Msg("connection unregistered")
	}
}

// handleBroadcast fans a committed snapshot out to every connection. Only the
// Start loop calls this, so fan-out order matches commit order.
func (cm *ConnectionManager) handleBroadcast(snap auction.Snapshot) {
	var events []*Event

	if !cm.hasFloor || cm.lastFloor != snap.FloorBid {
		cm.lastFloor = snap.FloorBid
		cm.hasFloor = true
		minimum, err := NewEvent(EventTypeMinimum, MinimumPayload{FloorBid: snap.FloorBid})
		if err != nil {
			log.Error().Err(err).Msg("failed to marshal minimum event")
			return
		}
		events = append(events, minimum)
	}

	history, err := NewEvent(EventTypeHistory, HistoryPayload{CurrentBid: snap.CurrentBid, Entries: snap.History})
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal history event")
		return
	}
	events = append(events, history)

	// Marshal every event once
	payloads := make([][]byte, 0, len(events))
	for _, event := range events {
		data, err := json.Marshal(event)
		if err != nil {
			log.Error().Err(err).Msg("failed to marshal event for broadcast")
			return
		}
		payloads = append(payloads, data)
	}

	// Create a snapshot of connections to avoid holding lock during broadcast
	cm.mu.RLock()
	targets := make([]*Connection, 0, len(cm.connections))
	for conn := range cm.connections {
		targets = append(targets, conn)
	}
	cm.mu.RUnlock()

	sent := 0
	for _, conn := range targets {
		// Already covered by this connection's join-time replay
		if snap.Seq <= conn.lastSeq.Load() {
			continue
		}
		conn.lastSeq.Store(snap.Seq)

		if cm.deliver(conn, payloads) {
			sent++
		}
	}

	log.Debug().
		Uint64("seq", snap.Seq).
		Int("current_bid", snap.CurrentBid).
		Int("connections", sent).
		Msg("snapshot broadcasted")
}

// deliver hands the marshalled payloads to one connection. A connection that
// cannot keep up is dropped rather than allowed to stall the broadcast loop.
func (cm *ConnectionManager) deliver(conn *Connection, payloads [][]byte) bool {
	for _, data := range payloads {
		select {
		case conn.Send <- data:
		default:
			// Connection is slow/dead, close it
			log.Warn().
				Str("connection_id", conn.ID).
				Str("bidder_id", conn.BidderID).
				Msg("connection send buffer full, closing connection")
			cm.unregisterConnection(conn)
			conn.Conn.Close()
			return false
		}
	}
	return true
}

// ConnectionCount returns the number of active connections.
func (cm *ConnectionManager) ConnectionCount() int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return len(cm.connections)
}

// enqueue wraps a payload and queues it on the connection's send channel
// without blocking.
func (c *Connection) enqueue(eventType EventType, payload interface{}) {
	event, err := NewEvent(eventType, payload)
	if err != nil {
		log.Error().Err(err).Str("connection_id", c.ID).Msg("failed to build event")
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("connection_id", c.ID).Msg("failed to marshal event")
		return
	}
	select {
	case c.Send <- data:
	default:
		log.Warn().
			Str("connection_id", c.ID).
			Str("event_type", string(eventType)).
			Msg("send buffer full, dropping event")
	}
}

// writePump handles sending messages to the WebSocket connection
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.Manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
		c.Manager.unregisterConnection(c)
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if !ok {
				// Channel was closed
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to write message to WebSocket")
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to send ping")
				return
			}
			c.LastPing = time.Now()
		}
	}
}

// readPump handles reading messages from the WebSocket connection
func (c *Connection) readPump() {
	defer func() {
		c.Manager.unregisterConnection(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.Manager.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
		c.LastPing = time.Now()
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("unexpected WebSocket close error")
			}
			break
		}

		c.handleClientMessage(message)
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	}
}

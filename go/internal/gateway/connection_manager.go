package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/focuspact/focuspact/go/internal/focus"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// SessionHooks receives presence transitions from the gateway. The
// coordinator implements both.
type SessionHooks interface {
	HandlePresenceJoin(groupID, memberID uuid.UUID) bool
	HandleDeparture(ctx context.Context, groupID, memberID uuid.UUID)
}

// ConnectionManager owns the live WebSocket connections, grouped into
// per-group rooms. All broadcasts funnel through a single consumer
// goroutine, so events for one group reach its room in publish order.
type ConnectionManager struct {
	groupConnections map[uuid.UUID]map[*Connection]bool
	mu               sync.RWMutex

	upgrader websocket.Upgrader
	config   ConnectionConfig
	hooks    SessionHooks

	broadcastCh chan broadcastMessage
}

// Connection is one client's WebSocket link. A connection is joined to at
// most one group room at a time; switching rooms leaves the previous one
// first.
type Connection struct {
	ID       string
	MemberID uuid.UUID
	Conn     *websocket.Conn
	Send     chan []byte
	Manager  *ConnectionManager

	groupMu sync.Mutex
	groupID uuid.UUID // uuid.Nil when not in a room

	ConnectedAt time.Time
	LastPing    time.Time
}

// ConnectionConfig holds configuration for WebSocket connections.
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool
}

type broadcastMessage struct {
	GroupID uuid.UUID
	Data    []byte
	Event   focus.EventType
}

// eventEnvelope is the wire shape of every broadcast frame.
type eventEnvelope struct {
	Event   focus.EventType `json:"event"`
	Payload any             `json:"payload"`
}

// clientCommand is the wire shape of frames sent by clients.
type clientCommand struct {
	Action  string    `json:"action"`
	GroupID uuid.UUID `json:"group_id"`
}

const (
	actionJoinGroup  = "join-group"
	actionLeaveGroup = "leave-group"
)

// DefaultConnectionConfig returns default WebSocket configuration.
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  1024,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			// Allow all origins in development - restrict in production
			return true
		},
	}
}

// NewConnectionManager creates a new WebSocket connection manager.
func NewConnectionManager(config ConnectionConfig) *ConnectionManager {
	return &ConnectionManager{
		groupConnections: make(map[uuid.UUID]map[*Connection]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		broadcastCh: make(chan broadcastMessage, 1000),
	}
}

// SetHooks wires the coordinator in after construction. The manager is
// created first because the coordinator needs it as its broadcaster.
func (cm *ConnectionManager) SetHooks(hooks SessionHooks) {
	cm.hooks = hooks
}

// Start consumes broadcast messages until the context is canceled.
func (cm *ConnectionManager) Start(ctx context.Context) {
	log.Info().Msg("connection manager started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("connection manager shutting down")
			return
		case message := <-cm.broadcastCh:
			cm.handleBroadcast(message)
		}
	}
}

// Publish queues an event for every connection in the group's room.
// Delivery is best-effort: a full queue drops the message rather than
// blocking the caller.
func (cm *ConnectionManager) Publish(groupID uuid.UUID, event focus.EventType, payload any) {
	data, err := json.Marshal(eventEnvelope{Event: event, Payload: payload})
	if err != nil {
		log.Error().Err(err).Str("event", string(event)).Msg("failed to marshal event")
		return
	}

	select {
	case cm.broadcastCh <- broadcastMessage{GroupID: groupID, Data: data, Event: event}:
	default:
		log.Warn().
			Str("group_id", groupID.String()).
			Str("event", string(event)).
			Msg("broadcast channel full, dropping message")
	}
}

// UpgradeConnection upgrades an HTTP request to a WebSocket connection for
// the authenticated member.
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request, memberID uuid.UUID) error {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("failed to upgrade connection: %w", err)
	}

	connection := &Connection{
		ID:          uuid.New().String(),
		MemberID:    memberID,
		Conn:        conn,
		Send:        make(chan []byte, 256),
		Manager:     cm,
		ConnectedAt: time.Now(),
		LastPing:    time.Now(),
	}

	go connection.writePump()
	go connection.readPump()

	log.Info().
		Str("connection_id", connection.ID).
		Str("member_id", memberID.String()).
		Msg("WebSocket connection established")

	return nil
}

// joinRoom moves the connection into the group's room, leaving its previous
// room first. Rejoining the current room is a no-op.
func (cm *ConnectionManager) joinRoom(conn *Connection, groupID uuid.UUID) {
	conn.groupMu.Lock()
	previous := conn.groupID
	if previous == groupID {
		conn.groupMu.Unlock()
		return
	}
	conn.groupID = groupID
	conn.groupMu.Unlock()

	if previous != uuid.Nil {
		cm.removeFromRoom(conn, previous)
		cm.departed(previous, conn.MemberID)
	}

	cm.mu.Lock()
	if cm.groupConnections[groupID] == nil {
		cm.groupConnections[groupID] = make(map[*Connection]bool)
	}
	cm.groupConnections[groupID][conn] = true
	cm.mu.Unlock()

	if cm.hooks != nil {
		cm.hooks.HandlePresenceJoin(groupID, conn.MemberID)
	}

	log.Debug().
		Str("connection_id", conn.ID).
		Str("group_id", groupID.String()).
		Msg("connection joined room")
}

// leaveRoom detaches the connection from its room, if any, and reports the
// departure.
func (cm *ConnectionManager) leaveRoom(conn *Connection) {
	conn.groupMu.Lock()
	groupID := conn.groupID
	conn.groupID = uuid.Nil
	conn.groupMu.Unlock()

	if groupID == uuid.Nil {
		return
	}

	cm.removeFromRoom(conn, groupID)
	cm.departed(groupID, conn.MemberID)
}

func (cm *ConnectionManager) removeFromRoom(conn *Connection, groupID uuid.UUID) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if connections, exists := cm.groupConnections[groupID]; exists {
		delete(connections, conn)
		if len(connections) == 0 {
			delete(cm.groupConnections, groupID)
		}
	}
}

func (cm *ConnectionManager) departed(groupID, memberID uuid.UUID) {
	if cm.hooks == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	cm.hooks.HandleDeparture(ctx, groupID, memberID)
}

// disconnect tears the connection down: leave the room, stop the pumps and
// close the socket. Safe to call from both pumps; the registration check
// makes the second call a no-op.
func (cm *ConnectionManager) disconnect(conn *Connection) {
	conn.groupMu.Lock()
	groupID := conn.groupID
	conn.groupID = uuid.Nil
	closed := conn.Send == nil
	if !closed {
		close(conn.Send)
		conn.Send = nil
	}
	conn.groupMu.Unlock()

	if closed {
		return
	}

	if groupID != uuid.Nil {
		cm.removeFromRoom(conn, groupID)
		cm.departed(groupID, conn.MemberID)
	}

	log.Info().
		Str("connection_id", conn.ID).
		Str("member_id", conn.MemberID.String()).
		Msg("connection closed")
}

// handleBroadcast fans one message out to the group's room.
func (cm *ConnectionManager) handleBroadcast(message broadcastMessage) {
	cm.mu.RLock()
	connections, exists := cm.groupConnections[message.GroupID]
	if !exists {
		cm.mu.RUnlock()
		return
	}
	targets := make([]*Connection, 0, len(connections))
	for conn := range connections {
		targets = append(targets, conn)
	}
	cm.mu.RUnlock()

	for _, conn := range targets {
		conn.groupMu.Lock()
		send := conn.Send
		conn.groupMu.Unlock()
		if send == nil {
			continue
		}
		select {
		case send <- message.Data:
		default:
			// Slow consumer: evict rather than stall the whole room
			log.Warn().
				Str("connection_id", conn.ID).
				Str("member_id", conn.MemberID.String()).
				Msg("connection send buffer full, closing connection")
			cm.disconnect(conn)
			conn.Conn.Close()
		}
	}

	log.Debug().
		Str("event", string(message.Event)).
		Str("group_id", message.GroupID.String()).
		Int("connections", len(targets)).
		Msg("event broadcasted")
}

// Stats returns counters about active connections per room.
func (cm *ConnectionManager) Stats() map[string]any {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	total := 0
	rooms := make(map[string]int)
	for groupID, connections := range cm.groupConnections {
		total += len(connections)
		rooms[groupID.String()] = len(connections)
	}

	return map[string]any{
		"total_connections": total,
		"active_groups":     len(cm.groupConnections),
		"group_connections": rooms,
	}
}

// writePump drains the send queue onto the socket and keeps the connection
// alive with pings.
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.Manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
		c.Manager.disconnect(c)
	}()

	for {
		c.groupMu.Lock()
		send := c.Send
		c.groupMu.Unlock()
		if send == nil {
			return
		}

		select {
		case message, ok := <-send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if !ok {
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
				return
			}
			c.LastPing = time.Now()
		}
	}
}

// readPump consumes client frames until the socket drops.
func (c *Connection) readPump() {
	defer func() {
		c.Manager.disconnect(c)
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

// handleClientMessage dispatches a room command from the client.
func (c *Connection) handleClientMessage(message []byte) {
	var cmd clientCommand
	if err := json.Unmarshal(message, &cmd); err != nil {
		log.Debug().
			Str("connection_id", c.ID).
			Msg("ignoring malformed client message")
		return
	}

	switch cmd.Action {
	case actionJoinGroup:
		if cmd.GroupID == uuid.Nil {
			return
		}
		c.Manager.joinRoom(c, cmd.GroupID)
	case actionLeaveGroup:
		c.Manager.leaveRoom(c)
	default:
		log.Debug().
			Str("connection_id", c.ID).
			Str("action", cmd.Action).
			Msg("unknown client action")
	}
}

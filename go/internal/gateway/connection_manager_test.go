package gateway

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/focuspact/focuspact/go/internal/focus"
	"github.com/google/uuid"
)

type presenceCall struct {
	GroupID  uuid.UUID
	MemberID uuid.UUID
}

type hookRecorder struct {
	mu         sync.Mutex
	joins      []presenceCall
	departures []presenceCall
}

func (h *hookRecorder) HandlePresenceJoin(groupID, memberID uuid.UUID) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.joins = append(h.joins, presenceCall{GroupID: groupID, MemberID: memberID})
	return true
}

func (h *hookRecorder) HandleDeparture(ctx context.Context, groupID, memberID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.departures = append(h.departures, presenceCall{GroupID: groupID, MemberID: memberID})
}

func (h *hookRecorder) joinCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.joins)
}

func (h *hookRecorder) departureCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.departures)
}

func newTestManager() (*ConnectionManager, *hookRecorder) {
	cm := NewConnectionManager(DefaultConnectionConfig())
	hooks := &hookRecorder{}
	cm.SetHooks(hooks)
	return cm, hooks
}

func newTestConnection(cm *ConnectionManager) *Connection {
	return &Connection{
		ID:          uuid.New().String(),
		MemberID:    uuid.New(),
		Send:        make(chan []byte, 8),
		Manager:     cm,
		ConnectedAt: time.Now(),
	}
}

func TestJoinRoomRegistersPresence(t *testing.T) {
	cm, hooks := newTestManager()
	conn := newTestConnection(cm)
	group := uuid.New()

	cm.joinRoom(conn, group)

	if got := hooks.joinCount(); got != 1 {
		t.Fatalf("presence joins = %d, want 1", got)
	}
	stats := cm.Stats()
	if stats["total_connections"].(int) != 1 {
		t.Fatalf("stats = %v, want one connection", stats)
	}
}

func TestRejoinSameRoomIsNoop(t *testing.T) {
	cm, hooks := newTestManager()
	conn := newTestConnection(cm)
	group := uuid.New()

	cm.joinRoom(conn, group)
	cm.joinRoom(conn, group)

	if got := hooks.joinCount(); got != 1 {
		t.Fatalf("presence joins = %d, want 1", got)
	}
	if got := hooks.departureCount(); got != 0 {
		t.Fatalf("departures = %d, want 0", got)
	}
}

func TestSwitchingRoomsLeavesPreviousFirst(t *testing.T) {
	cm, hooks := newTestManager()
	conn := newTestConnection(cm)
	g1, g2 := uuid.New(), uuid.New()

	cm.joinRoom(conn, g1)
	cm.joinRoom(conn, g2)

	if got := hooks.departureCount(); got != 1 {
		t.Fatalf("departures = %d, want 1", got)
	}
	hooks.mu.Lock()
	departed := hooks.departures[0].GroupID
	hooks.mu.Unlock()
	if departed != g1 {
		t.Fatalf("departed group = %s, want %s", departed, g1)
	}

	stats := cm.Stats()
	rooms := stats["group_connections"].(map[string]int)
	if rooms[g1.String()] != 0 || rooms[g2.String()] != 1 {
		t.Fatalf("rooms = %v, want only %s occupied", rooms, g2)
	}
}

func TestLeaveRoomReportsDeparture(t *testing.T) {
	cm, hooks := newTestManager()
	conn := newTestConnection(cm)
	group := uuid.New()

	cm.joinRoom(conn, group)
	cm.leaveRoom(conn)

	if got := hooks.departureCount(); got != 1 {
		t.Fatalf("departures = %d, want 1", got)
	}
	if got := cm.Stats()["total_connections"].(int); got != 0 {
		t.Fatalf("connections = %d, want 0", got)
	}
}

func TestLeaveRoomWithoutRoomIsNoop(t *testing.T) {
	cm, hooks := newTestManager()
	conn := newTestConnection(cm)

	cm.leaveRoom(conn)

	if got := hooks.departureCount(); got != 0 {
		t.Fatalf("departures = %d, want 0", got)
	}
}

func TestDisconnectReportsDepartureOnce(t *testing.T) {
	cm, hooks := newTestManager()
	conn := newTestConnection(cm)
	group := uuid.New()

	cm.joinRoom(conn, group)
	cm.disconnect(conn)
	cm.disconnect(conn)

	if got := hooks.departureCount(); got != 1 {
		t.Fatalf("departures = %d, want 1", got)
	}
}

func TestBroadcastReachesOnlyTheRoom(t *testing.T) {
	cm, _ := newTestManager()
	inRoom := newTestConnection(cm)
	elsewhere := newTestConnection(cm)
	g1, g2 := uuid.New(), uuid.New()

	cm.joinRoom(inRoom, g1)
	cm.joinRoom(elsewhere, g2)

	data, err := json.Marshal(eventEnvelope{Event: focus.EventTick, Payload: focus.TickPayload{Remaining: 42}})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	cm.handleBroadcast(broadcastMessage{GroupID: g1, Data: data, Event: focus.EventTick})

	select {
	case frame := <-inRoom.Send:
		var envelope struct {
			Event   focus.EventType `json:"event"`
			Payload struct {
				Remaining int `json:"remaining"`
			} `json:"payload"`
		}
		if err := json.Unmarshal(frame, &envelope); err != nil {
			t.Fatalf("unmarshal frame: %v", err)
		}
		if envelope.Event != focus.EventTick || envelope.Payload.Remaining != 42 {
			t.Fatalf("frame = %+v, want tick with remaining 42", envelope)
		}
	default:
		t.Fatal("room member received nothing")
	}

	select {
	case <-elsewhere.Send:
		t.Fatal("connection in another room received the event")
	default:
	}
}

func TestBroadcastOrderIsPreserved(t *testing.T) {
	cm, _ := newTestManager()
	conn := newTestConnection(cm)
	group := uuid.New()
	cm.joinRoom(conn, group)

	for i := 1; i <= 3; i++ {
		data, _ := json.Marshal(eventEnvelope{Event: focus.EventTick, Payload: focus.TickPayload{Remaining: i}})
		cm.handleBroadcast(broadcastMessage{GroupID: group, Data: data, Event: focus.EventTick})
	}

	for want := 1; want <= 3; want++ {
		frame := <-conn.Send
		var envelope struct {
			Payload struct {
				Remaining int `json:"remaining"`
			} `json:"payload"`
		}
		if err := json.Unmarshal(frame, &envelope); err != nil {
			t.Fatalf("unmarshal frame: %v", err)
		}
		if envelope.Payload.Remaining != want {
			t.Fatalf("frame order broken: got %d, want %d", envelope.Payload.Remaining, want)
		}
	}
}

func TestPublishEnqueuesEnvelope(t *testing.T) {
	cm, _ := newTestManager()
	group := uuid.New()

	cm.Publish(group, focus.EventTimeUp, focus.TimeUpPayload{At: time.Unix(0, 0)})

	select {
	case msg := <-cm.broadcastCh:
		if msg.GroupID != group || msg.Event != focus.EventTimeUp {
			t.Fatalf("message = %+v, want time-up for %s", msg, group)
		}
	default:
		t.Fatal("nothing enqueued")
	}
}

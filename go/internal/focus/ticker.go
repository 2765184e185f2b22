package focus

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

const tickInterval = time.Second

// TickerSet runs at most one countdown loop per group. Each loop recomputes
// the remaining time from the session's end timestamp every second and
// broadcasts it, so all connected clients stay in lock-step with the
// server's authoritative clock rather than counting down on their own.
type TickerSet struct {
	clock       clockwork.Clock
	broadcaster Broadcaster

	// onExpire is invoked exactly once, from the loop goroutine, after the
	// countdown reaches zero and the loop has unregistered itself.
	onExpire func(groupID uuid.UUID)

	mu      sync.Mutex
	running map[uuid.UUID]*groupTicker
}

type groupTicker struct {
	cancel chan struct{}
	done   chan struct{}
}

// NewTickerSet creates a ticker set. onExpire may be nil.
func NewTickerSet(clock clockwork.Clock, b Broadcaster, onExpire func(uuid.UUID)) *TickerSet {
	return &TickerSet{
		clock:       clock,
		broadcaster: b,
		onExpire:    onExpire,
		running:     make(map[uuid.UUID]*groupTicker),
	}
}

// Start begins (or restarts) the countdown loop for a group. Any existing
// loop for the group is stopped first, so restart is idempotent and at most
// one loop runs per group.
func (ts *TickerSet) Start(groupID uuid.UUID, endsAt time.Time) {
	ts.Stop(groupID)

	gt := &groupTicker{
		cancel: make(chan struct{}),
		done:   make(chan struct{}),
	}

	ts.mu.Lock()
	ts.running[groupID] = gt
	ts.mu.Unlock()

	go ts.run(groupID, endsAt, gt)

	log.Debug().
		Str("group_id", groupID.String()).
		Time("ends_at", endsAt).
		Msg("focus ticker started")
}

// Stop halts the group's countdown loop and blocks until it has exited, so
// no tick can be observed after Stop returns. No-op when no loop is
// running (including a loop that already expired and unregistered itself).
func (ts *TickerSet) Stop(groupID uuid.UUID) {
	ts.mu.Lock()
	gt, ok := ts.running[groupID]
	if ok {
		delete(ts.running, groupID)
	}
	ts.mu.Unlock()
	if !ok {
		return
	}

	close(gt.cancel)
	<-gt.done

	log.Debug().Str("group_id", groupID.String()).Msg("focus ticker stopped")
}

// StopAll halts every running loop. Used on shutdown.
func (ts *TickerSet) StopAll() {
	ts.mu.Lock()
	stopped := make(map[uuid.UUID]*groupTicker, len(ts.running))
	for id, gt := range ts.running {
		stopped[id] = gt
	}
	ts.running = make(map[uuid.UUID]*groupTicker)
	ts.mu.Unlock()

	for _, gt := range stopped {
		close(gt.cancel)
		<-gt.done
	}
}

// Running reports whether a loop is active for the group.
func (ts *TickerSet) Running(groupID uuid.UUID) bool {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	_, ok := ts.running[groupID]
	return ok
}

func (ts *TickerSet) run(groupID uuid.UUID, endsAt time.Time, gt *groupTicker) {
	defer close(gt.done)

	ticker := ts.clock.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-gt.cancel:
			return
		case <-ticker.Chan():
			remaining := int(endsAt.Sub(ts.clock.Now()) / time.Second)
			if remaining < 0 {
				remaining = 0
			}

			ts.broadcaster.Publish(groupID, EventTick, TickPayload{Remaining: remaining})

			if remaining == 0 {
				// Unregister before firing the expiry callback so a
				// concurrent Stop from the finish path returns immediately
				// instead of waiting on this goroutine.
				ts.unregister(groupID, gt)
				ts.broadcaster.Publish(groupID, EventTimeUp, TimeUpPayload{At: ts.clock.Now()})
				if ts.onExpire != nil {
					ts.onExpire(groupID)
				}
				return
			}
		}
	}
}

// unregister removes the entry only if gt is still the current loop for the
// group; a restarted loop must not be evicted by its predecessor.
func (ts *TickerSet) unregister(groupID uuid.UUID, gt *groupTicker) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if current, ok := ts.running[groupID]; ok && current == gt {
		delete(ts.running, groupID)
	}
}

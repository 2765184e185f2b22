package focus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/focuspact/focuspact/go/internal/models"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// expireTimeout bounds the store work done when a countdown reaches zero.
const expireTimeout = 10 * time.Second

// SessionStore persists focus sessions and their participant lists.
type SessionStore interface {
	CreateSession(ctx context.Context, req CreateSessionRequest) (*models.FocusSession, error)
	// ActiveSession returns (nil, nil) when the group has no active session.
	ActiveSession(ctx context.Context, groupID uuid.UUID) (*models.FocusSession, error)
	AddParticipant(ctx context.Context, sessionID, memberID uuid.UUID, joinedAt time.Time) error
	// FinishSession transitions ACTIVE -> FINISHED as a compare-and-set and
	// reports whether this call performed the transition.
	FinishSession(ctx context.Context, sessionID uuid.UUID, endedAt time.Time) (bool, error)
}

// MembershipDirectory answers group membership and identity questions.
type MembershipDirectory interface {
	IsMember(ctx context.Context, memberID, groupID uuid.UUID) (bool, error)
	MemberName(ctx context.Context, memberID uuid.UUID) (string, error)
}

// ScoreLedger issues point deltas against the external per-group score
// ledger. Call sites guarantee a single invocation per logical event.
type ScoreLedger interface {
	Increment(ctx context.Context, memberID, groupID uuid.UUID, delta int, reason string) error
}

// RuleSource resolves the active pact's point rules, with defaults when the
// group has none configured.
type RuleSource interface {
	PointRules(ctx context.Context, groupID uuid.UUID) (models.PointRules, error)
}

// ViolationRecorder persists abandonment violations.
type ViolationRecorder interface {
	RecordAbandonment(ctx context.Context, memberID, groupID uuid.UUID, detail string, points int) (*models.Violation, error)
}

// CreateSessionRequest carries everything needed to persist a new session.
type CreateSessionRequest struct {
	GroupID       uuid.UUID
	TargetMinutes int
	Agreements    models.Agreements
	StartedAt     time.Time
	Participants  []uuid.UUID
}

// StartRequest is the start-session command payload.
type StartRequest struct {
	TargetMinutes int
	Reward        string
	Penalty       string
}

// Coordinator owns the per-group focus session state machine
// (NONE -> ACTIVE -> FINISHED), the presence registry and the countdown
// tickers. Mutations for one group are serialized through a per-group
// mutex; different groups progress in parallel.
type Coordinator struct {
	sessions   SessionStore
	members    MembershipDirectory
	ledger     ScoreLedger
	rules      RuleSource
	violations ViolationRecorder

	presence    *Registry
	broadcaster Broadcaster
	tickers     *TickerSet
	clock       clockwork.Clock

	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex

	// penalized guards at-most-once abandonment scoring per
	// (session, member), keyed by session ID.
	penalizedMu sync.Mutex
	penalized   map[uuid.UUID]map[uuid.UUID]struct{}
}

// Deps bundles the coordinator's collaborators.
type Deps struct {
	Sessions    SessionStore
	Members     MembershipDirectory
	Ledger      ScoreLedger
	Rules       RuleSource
	Violations  ViolationRecorder
	Presence    *Registry
	Broadcaster Broadcaster
	Clock       clockwork.Clock
}

// NewCoordinator creates a coordinator. A nil Clock falls back to the real
// clock; tests inject a fake.
func NewCoordinator(deps Deps) *Coordinator {
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	c := &Coordinator{
		sessions:    deps.Sessions,
		members:     deps.Members,
		ledger:      deps.Ledger,
		rules:       deps.Rules,
		violations:  deps.Violations,
		presence:    deps.Presence,
		broadcaster: deps.Broadcaster,
		clock:       deps.Clock,
		locks:       make(map[uuid.UUID]*sync.Mutex),
		penalized:   make(map[uuid.UUID]map[uuid.UUID]struct{}),
	}
	c.tickers = NewTickerSet(deps.Clock, deps.Broadcaster, c.expireSession)
	return c
}

// Presence exposes the registry for read-side consumers.
func (c *Coordinator) Presence() *Registry {
	return c.presence
}

// Shutdown halts all countdown loops.
func (c *Coordinator) Shutdown() {
	c.tickers.StopAll()
}

// Start begins a new focus session for the group. Fails with
// ErrSessionActive if one is already active, ErrForbidden if the requester
// is not a group member and ErrInvalidInput on a non-positive duration.
// Everyone currently present in the group is auto-enrolled as a
// participant.
func (c *Coordinator) Start(ctx context.Context, groupID, requester uuid.UUID, req StartRequest) (*models.FocusSession, error) {
	if req.TargetMinutes <= 0 {
		return nil, fmt.Errorf("%w: target minutes must be positive", ErrInvalidInput)
	}

	ok, err := c.members.IsMember(ctx, requester, groupID)
	if err != nil {
		return nil, fmt.Errorf("check membership: %w", err)
	}
	if !ok {
		return nil, ErrForbidden
	}

	lock := c.groupLock(groupID)
	lock.Lock()
	defer lock.Unlock()

	existing, err := c.sessions.ActiveSession(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("look up active session: %w", err)
	}
	if existing != nil {
		return nil, ErrSessionActive
	}

	now := c.clock.Now()
	session, err := c.sessions.CreateSession(ctx, CreateSessionRequest{
		GroupID:       groupID,
		TargetMinutes: req.TargetMinutes,
		Agreements:    models.Agreements{Reward: req.Reward, Penalty: req.Penalty},
		StartedAt:     now,
		Participants:  c.presence.MembersOf(groupID),
	})
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	startedAt := session.StartedAt
	agreements := session.Agreements
	c.broadcaster.Publish(groupID, EventState, StatePayload{
		Status:        models.SessionStatusActive,
		TargetMinutes: session.TargetMinutes,
		StartedAt:     &startedAt,
		Agreements:    &agreements,
		Remaining:     session.TargetMinutes * 60,
	})
	c.tickers.Start(groupID, session.EndsAt())

	log.Info().
		Str("group_id", groupID.String()).
		Str("session_id", session.ID.String()).
		Int("target_minutes", session.TargetMinutes).
		Int("participants", len(session.Participants)).
		Msg("focus session started")

	return session, nil
}

// Join enrolls a late arrival into the group's active session. Idempotent
// for existing participants. Returns the remaining seconds so the joiner
// can synchronize its display.
func (c *Coordinator) Join(ctx context.Context, groupID, requester uuid.UUID) (int, error) {
	ok, err := c.members.IsMember(ctx, requester, groupID)
	if err != nil {
		return 0, fmt.Errorf("check membership: %w", err)
	}
	if !ok {
		return 0, ErrForbidden
	}

	lock := c.groupLock(groupID)
	lock.Lock()
	defer lock.Unlock()

	session, err := c.sessions.ActiveSession(ctx, groupID)
	if err != nil {
		return 0, fmt.Errorf("look up active session: %w", err)
	}
	if session == nil {
		return 0, ErrNoActiveSession
	}

	remaining := session.RemainingAt(c.clock.Now())
	if session.HasParticipant(requester) {
		return remaining, nil
	}

	if err := c.sessions.AddParticipant(ctx, session.ID, requester, c.clock.Now()); err != nil {
		return 0, fmt.Errorf("add participant: %w", err)
	}

	c.broadcaster.Publish(groupID, EventParticipantCount, ParticipantCountPayload{
		Count: len(session.Participants) + 1,
	})

	log.Info().
		Str("group_id", groupID.String()).
		Str("session_id", session.ID.String()).
		Str("member_id", requester.String()).
		Msg("member joined focus session")

	return remaining, nil
}

// End finishes the group's active session, stops the ticker and awards
// completion points to every participant. Safe to race with the ticker's
// own timeout: the compare-and-set in the store lets exactly one path
// perform the transition and its scoring side effects.
func (c *Coordinator) End(ctx context.Context, groupID, requester uuid.UUID) (*models.FocusSession, int, error) {
	lock := c.groupLock(groupID)
	lock.Lock()
	defer lock.Unlock()

	session, err := c.sessions.ActiveSession(ctx, groupID)
	if err != nil {
		return nil, 0, fmt.Errorf("look up active session: %w", err)
	}
	if session == nil {
		return nil, 0, ErrNoActiveSession
	}

	points, err := c.finish(ctx, session)
	if err != nil {
		return nil, 0, err
	}
	return session, points, nil
}

// Current returns the group's active session with its remaining seconds, or
// (nil, 0, nil) when none is active.
func (c *Coordinator) Current(ctx context.Context, groupID uuid.UUID) (*models.FocusSession, int, error) {
	session, err := c.sessions.ActiveSession(ctx, groupID)
	if err != nil {
		return nil, 0, fmt.Errorf("look up active session: %w", err)
	}
	if session == nil {
		return nil, 0, nil
	}
	return session, session.RemainingAt(c.clock.Now()), nil
}

// finish performs the ACTIVE -> FINISHED transition. Caller must hold the
// group lock. The ticker is halted before the transition is announced so no
// tick can follow the finished state event.
func (c *Coordinator) finish(ctx context.Context, session *models.FocusSession) (int, error) {
	c.tickers.Stop(session.GroupID)

	rules, err := c.rules.PointRules(ctx, session.GroupID)
	if err != nil {
		return 0, fmt.Errorf("look up point rules: %w", err)
	}

	endedAt := c.clock.Now()
	won, err := c.sessions.FinishSession(ctx, session.ID, endedAt)
	if err != nil {
		return 0, fmt.Errorf("finish session: %w", err)
	}
	if !won {
		// The other path (explicit end or ticker timeout) already finished
		// it and performed the scoring.
		return 0, ErrNoActiveSession
	}

	for _, p := range session.Participants {
		if err := c.ledger.Increment(ctx, p.MemberID, session.GroupID, rules.Completion, "focus session completed"); err != nil {
			log.Error().Err(err).
				Str("session_id", session.ID.String()).
				Str("member_id", p.MemberID.String()).
				Msg("failed to award completion points")
		}
	}

	c.penalizedMu.Lock()
	delete(c.penalized, session.ID)
	c.penalizedMu.Unlock()

	c.broadcaster.Publish(session.GroupID, EventState, StatePayload{
		Status:        models.SessionStatusFinished,
		EndedAt:       &endedAt,
		PointsAwarded: rules.Completion,
	})
	c.broadcaster.Publish(session.GroupID, EventLeaderboard, LeaderboardPayload{GroupID: session.GroupID})

	log.Info().
		Str("group_id", session.GroupID.String()).
		Str("session_id", session.ID.String()).
		Int("points_awarded", rules.Completion).
		Int("participants", len(session.Participants)).
		Msg("focus session finished")

	return rules.Completion, nil
}

// expireSession is invoked by the ticker loop when a countdown reaches
// zero. It drives the same finish path as an explicit end; whichever loses
// the compare-and-set no-ops.
func (c *Coordinator) expireSession(groupID uuid.UUID) {
	ctx, cancel := context.WithTimeout(context.Background(), expireTimeout)
	defer cancel()

	lock := c.groupLock(groupID)
	lock.Lock()
	defer lock.Unlock()

	session, err := c.sessions.ActiveSession(ctx, groupID)
	if err != nil {
		log.Error().Err(err).Str("group_id", groupID.String()).Msg("expire: active session lookup failed")
		return
	}
	if session == nil {
		return
	}

	if _, err := c.finish(ctx, session); err != nil && err != ErrNoActiveSession {
		log.Error().Err(err).Str("group_id", groupID.String()).Msg("expire: finish failed")
	}
}

// groupLock returns the mutex serializing mutations for one group.
func (c *Coordinator) groupLock(groupID uuid.UUID) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	lock, ok := c.locks[groupID]
	if !ok {
		lock = &sync.Mutex{}
		c.locks[groupID] = lock
	}
	return lock
}

// publishPresence broadcasts the group's current presence snapshot.
func (c *Coordinator) publishPresence(groupID uuid.UUID) {
	members := c.presence.MembersOf(groupID)
	c.broadcaster.Publish(groupID, EventPresence, PresencePayload{
		Members: members,
		Count:   len(members),
	})
}

// HandlePresenceJoin registers a member's live connection with the group
// and broadcasts the updated presence snapshot when membership changed.
// Precondition (enforced by the gateway): a member is present in at most
// one group at a time; switching groups leaves the previous one first.
func (c *Coordinator) HandlePresenceJoin(groupID, memberID uuid.UUID) bool {
	changed := c.presence.Join(groupID, memberID)
	if changed {
		c.publishPresence(groupID)
	}
	return changed
}

package focus

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/focuspact/focuspact/go/internal/models"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// fakeSessionStore is an in-memory SessionStore with the same CAS semantics
// as the Postgres repository.
type fakeSessionStore struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*models.FocusSession
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{sessions: make(map[uuid.UUID]*models.FocusSession)}
}

func (s *fakeSessionStore) CreateSession(ctx context.Context, req CreateSessionRequest) (*models.FocusSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session := &models.FocusSession{
		ID:            uuid.New(),
		GroupID:       req.GroupID,
		Status:        models.SessionStatusActive,
		TargetMinutes: req.TargetMinutes,
		Agreements:    req.Agreements,
		StartedAt:     req.StartedAt,
	}
	for _, memberID := range req.Participants {
		session.Participants = append(session.Participants, models.Participant{
			MemberID: memberID,
			JoinedAt: req.StartedAt,
		})
	}
	s.sessions[session.ID] = session
	return copySession(session), nil
}

func (s *fakeSessionStore) ActiveSession(ctx context.Context, groupID uuid.UUID) (*models.FocusSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, session := range s.sessions {
		if session.GroupID == groupID && session.Status == models.SessionStatusActive {
			return copySession(session), nil
		}
	}
	return nil, nil
}

func (s *fakeSessionStore) AddParticipant(ctx context.Context, sessionID, memberID uuid.UUID, joinedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return errors.New("session not found")
	}
	for _, p := range session.Participants {
		if p.MemberID == memberID {
			return nil
		}
	}
	session.Participants = append(session.Participants, models.Participant{MemberID: memberID, JoinedAt: joinedAt})
	return nil
}

func (s *fakeSessionStore) FinishSession(ctx context.Context, sessionID uuid.UUID, endedAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[sessionID]
	if !ok || session.Status != models.SessionStatusActive {
		return false, nil
	}
	session.Status = models.SessionStatusFinished
	session.EndedAt = &endedAt
	return true, nil
}

func copySession(s *models.FocusSession) *models.FocusSession {
	out := *s
	out.Participants = append([]models.Participant(nil), s.Participants...)
	return &out
}

type fakeDirectory struct {
	mu      sync.Mutex
	members map[uuid.UUID]bool
	names   map[uuid.UUID]string
}

func (d *fakeDirectory) IsMember(ctx context.Context, memberID, groupID uuid.UUID) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.members[memberID], nil
}

func (d *fakeDirectory) MemberName(ctx context.Context, memberID uuid.UUID) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.names[memberID], nil
}

type ledgerEntry struct {
	MemberID uuid.UUID
	GroupID  uuid.UUID
	Delta    int
	Reason   string
}

type fakeLedger struct {
	mu      sync.Mutex
	entries []ledgerEntry
}

func (l *fakeLedger) Increment(ctx context.Context, memberID, groupID uuid.UUID, delta int, reason string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, ledgerEntry{MemberID: memberID, GroupID: groupID, Delta: delta, Reason: reason})
	return nil
}

func (l *fakeLedger) deltasFor(memberID uuid.UUID) []int {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []int
	for _, e := range l.entries {
		if e.MemberID == memberID {
			out = append(out, e.Delta)
		}
	}
	return out
}

func (l *fakeLedger) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

type fakeRules struct {
	rules models.PointRules
}

func (r *fakeRules) PointRules(ctx context.Context, groupID uuid.UUID) (models.PointRules, error) {
	return r.rules, nil
}

type fakeViolations struct {
	mu      sync.Mutex
	records []models.Violation
}

func (v *fakeViolations) RecordAbandonment(ctx context.Context, memberID, groupID uuid.UUID, detail string, points int) (*models.Violation, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	record := models.Violation{
		ID:            uuid.New(),
		MemberID:      memberID,
		GroupID:       groupID,
		Category:      models.ViolationAbandonment,
		Origin:        models.OriginRealtime,
		Detail:        detail,
		PointsApplied: points,
	}
	v.records = append(v.records, record)
	return &record, nil
}

func (v *fakeViolations) count() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.records)
}

type coordinatorFixture struct {
	coordinator *Coordinator
	store       *fakeSessionStore
	directory   *fakeDirectory
	ledger      *fakeLedger
	violations  *fakeViolations
	broadcaster *recordingBroadcaster
	clock       *clockwork.FakeClock
	group       uuid.UUID
}

func newCoordinatorFixture(t *testing.T, memberIDs ...uuid.UUID) *coordinatorFixture {
	t.Helper()

	directory := &fakeDirectory{members: make(map[uuid.UUID]bool), names: make(map[uuid.UUID]string)}
	for _, id := range memberIDs {
		directory.members[id] = true
		directory.names[id] = "member " + id.String()[:8]
	}

	f := &coordinatorFixture{
		store:       newFakeSessionStore(),
		directory:   directory,
		ledger:      &fakeLedger{},
		violations:  &fakeViolations{},
		broadcaster: &recordingBroadcaster{},
		clock:       clockwork.NewFakeClock(),
		group:       uuid.New(),
	}
	f.coordinator = NewCoordinator(Deps{
		Sessions:    f.store,
		Members:     f.directory,
		Ledger:      f.ledger,
		Rules:       &fakeRules{rules: models.DefaultPointRules()},
		Violations:  f.violations,
		Presence:    NewRegistry(),
		Broadcaster: f.broadcaster,
		Clock:       f.clock,
	})
	t.Cleanup(f.coordinator.Shutdown)
	return f
}

func TestStartRejectsNonPositiveDuration(t *testing.T) {
	member := uuid.New()
	f := newCoordinatorFixture(t, member)

	_, err := f.coordinator.Start(context.Background(), f.group, member, StartRequest{TargetMinutes: 0})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
}

func TestStartRejectsNonMember(t *testing.T) {
	f := newCoordinatorFixture(t)
	outsider := uuid.New()

	_, err := f.coordinator.Start(context.Background(), f.group, outsider, StartRequest{TargetMinutes: 25})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("err = %v, want ErrForbidden", err)
	}
}

func TestStartAutoEnrollsPresentMembers(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	f := newCoordinatorFixture(t, a, b)

	f.coordinator.HandlePresenceJoin(f.group, a)
	f.coordinator.HandlePresenceJoin(f.group, b)

	session, err := f.coordinator.Start(context.Background(), f.group, a, StartRequest{TargetMinutes: 25})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	if len(session.Participants) != 2 {
		t.Fatalf("participants = %d, want 2", len(session.Participants))
	}
	if !session.HasParticipant(a) || !session.HasParticipant(b) {
		t.Fatal("both present members should be enrolled")
	}
	if !f.coordinator.tickers.Running(f.group) {
		t.Fatal("countdown should be running after start")
	}
}

func TestStartConflictsWithActiveSession(t *testing.T) {
	member := uuid.New()
	f := newCoordinatorFixture(t, member)

	if _, err := f.coordinator.Start(context.Background(), f.group, member, StartRequest{TargetMinutes: 25}); err != nil {
		t.Fatalf("first start: %v", err)
	}

	_, err := f.coordinator.Start(context.Background(), f.group, member, StartRequest{TargetMinutes: 25})
	if !errors.Is(err, ErrSessionActive) {
		t.Fatalf("err = %v, want ErrSessionActive", err)
	}
}

func TestConcurrentStartsExactlyOneWins(t *testing.T) {
	member := uuid.New()
	f := newCoordinatorFixture(t, member)

	const starters = 8
	errs := make(chan error, starters)
	var wg sync.WaitGroup
	for i := 0; i < starters; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.coordinator.Start(context.Background(), f.group, member, StartRequest{TargetMinutes: 25})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	started, conflicts := 0, 0
	for err := range errs {
		switch {
		case err == nil:
			started++
		case errors.Is(err, ErrSessionActive):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if started != 1 || conflicts != starters-1 {
		t.Fatalf("started = %d, conflicts = %d; want 1 and %d", started, conflicts, starters-1)
	}
}

func TestJoinWithoutActiveSession(t *testing.T) {
	member := uuid.New()
	f := newCoordinatorFixture(t, member)

	_, err := f.coordinator.Join(context.Background(), f.group, member)
	if !errors.Is(err, ErrNoActiveSession) {
		t.Fatalf("err = %v, want ErrNoActiveSession", err)
	}
}

func TestJoinIsIdempotentAndReturnsRemaining(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	f := newCoordinatorFixture(t, a, b)

	if _, err := f.coordinator.Start(context.Background(), f.group, a, StartRequest{TargetMinutes: 25}); err != nil {
		t.Fatalf("start: %v", err)
	}
	f.clock.Advance(5 * time.Minute)

	remaining, err := f.coordinator.Join(context.Background(), f.group, b)
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if remaining != 20*60 {
		t.Fatalf("remaining = %d, want %d", remaining, 20*60)
	}

	again, err := f.coordinator.Join(context.Background(), f.group, b)
	if err != nil {
		t.Fatalf("repeat join: %v", err)
	}
	if again != remaining {
		t.Fatalf("repeat join remaining = %d, want %d", again, remaining)
	}

	session, err := f.store.ActiveSession(context.Background(), f.group)
	if err != nil {
		t.Fatalf("active session: %v", err)
	}
	count := 0
	for _, p := range session.Participants {
		if p.MemberID == b {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("member enrolled %d times, want 1", count)
	}
}

func TestEndAwardsCompletionOncePerParticipant(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	f := newCoordinatorFixture(t, a, b)

	f.coordinator.HandlePresenceJoin(f.group, a)
	f.coordinator.HandlePresenceJoin(f.group, b)
	if _, err := f.coordinator.Start(context.Background(), f.group, a, StartRequest{TargetMinutes: 25}); err != nil {
		t.Fatalf("start: %v", err)
	}

	_, points, err := f.coordinator.End(context.Background(), f.group, a)
	if err != nil {
		t.Fatalf("end: %v", err)
	}
	if points != 20 {
		t.Fatalf("points = %d, want 20", points)
	}

	if got := f.ledger.count(); got != 2 {
		t.Fatalf("ledger entries = %d, want 2", got)
	}
	for _, member := range []uuid.UUID{a, b} {
		deltas := f.ledger.deltasFor(member)
		if len(deltas) != 1 || deltas[0] != 20 {
			t.Fatalf("member %s deltas = %v, want [20]", member, deltas)
		}
	}

	_, _, err = f.coordinator.End(context.Background(), f.group, a)
	if !errors.Is(err, ErrNoActiveSession) {
		t.Fatalf("second end err = %v, want ErrNoActiveSession", err)
	}
	if f.coordinator.tickers.Running(f.group) {
		t.Fatal("countdown should be stopped after end")
	}
}

func TestEndRacesExpiryWithSingleAward(t *testing.T) {
	member := uuid.New()
	f := newCoordinatorFixture(t, member)

	f.coordinator.HandlePresenceJoin(f.group, member)
	if _, err := f.coordinator.Start(context.Background(), f.group, member, StartRequest{TargetMinutes: 25}); err != nil {
		t.Fatalf("start: %v", err)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		f.coordinator.End(context.Background(), f.group, member)
	}()
	go func() {
		defer wg.Done()
		f.coordinator.expireSession(f.group)
	}()
	wg.Wait()

	if got := f.ledger.count(); got != 1 {
		t.Fatalf("ledger entries = %d, want exactly 1", got)
	}
}

func TestCountdownExpiryFinishesSession(t *testing.T) {
	member := uuid.New()
	f := newCoordinatorFixture(t, member)

	f.coordinator.HandlePresenceJoin(f.group, member)
	if _, err := f.coordinator.Start(context.Background(), f.group, member, StartRequest{TargetMinutes: 1}); err != nil {
		t.Fatalf("start: %v", err)
	}
	f.clock.BlockUntil(1)

	f.clock.Advance(61 * time.Second)

	waitFor(t, func() bool {
		session, err := f.store.ActiveSession(context.Background(), f.group)
		return err == nil && session == nil
	})
	waitFor(t, func() bool { return f.ledger.count() == 1 })

	if got := f.broadcaster.count(EventTimeUp); got != 1 {
		t.Fatalf("time-up events = %d, want 1", got)
	}

	// No tick may follow the finished state broadcast
	events := f.broadcaster.snapshot()
	finishedAt := -1
	for i, e := range events {
		if e.Event == EventState {
			if p, ok := e.Payload.(StatePayload); ok && p.Status == models.SessionStatusFinished {
				finishedAt = i
			}
		}
	}
	if finishedAt == -1 {
		t.Fatal("finished state event not broadcast")
	}
	for _, e := range events[finishedAt:] {
		if e.Event == EventTick {
			t.Fatal("tick broadcast after finished state")
		}
	}
}

func TestCurrentReturnsNilWhenIdle(t *testing.T) {
	member := uuid.New()
	f := newCoordinatorFixture(t, member)

	session, remaining, err := f.coordinator.Current(context.Background(), f.group)
	if err != nil {
		t.Fatalf("current: %v", err)
	}
	if session != nil || remaining != 0 {
		t.Fatalf("got session=%v remaining=%d, want idle", session, remaining)
	}
}

package focus

import (
	"time"

	"github.com/focuspact/focuspact/go/internal/models"
	"github.com/google/uuid"
)

// EventType names an event on a group's realtime stream. The names and
// payload shapes are a stable contract with clients and collaborators.
type EventType string

const (
	EventState            EventType = "state"
	EventTick             EventType = "tick"
	EventTimeUp           EventType = "time-up"
	EventViolation        EventType = "violation"
	EventLeaderboard      EventType = "leaderboard-changed"
	EventPresence         EventType = "presence"
	EventParticipantCount EventType = "participant-count"
)

// Broadcaster pushes a named event to every live connection currently
// joined to the group's room. Delivery is best-effort with no confirmation
// or retry; ordering is preserved within a single group's stream but not
// across groups.
type Broadcaster interface {
	Publish(groupID uuid.UUID, event EventType, payload any)
}

// StatePayload announces a session state transition.
type StatePayload struct {
	Status        models.SessionStatus `json:"status"`
	TargetMinutes int                  `json:"target_minutes,omitempty"`
	StartedAt     *time.Time           `json:"started_at,omitempty"`
	EndedAt       *time.Time           `json:"ended_at,omitempty"`
	Agreements    *models.Agreements   `json:"agreements,omitempty"`
	Remaining     int                  `json:"remaining,omitempty"`
	PointsAwarded int                  `json:"points_awarded,omitempty"`
}

// TickPayload carries the authoritative remaining seconds.
type TickPayload struct {
	Remaining int `json:"remaining"`
}

// TimeUpPayload marks the countdown reaching zero.
type TimeUpPayload struct {
	At time.Time `json:"at"`
}

// MemberRef is the public identity attached to broadcast events.
type MemberRef struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name,omitempty"`
}

// ViolationPayload announces a scored penalty to the group.
type ViolationPayload struct {
	Member        MemberRef                `json:"member"`
	Detail        string                   `json:"detail"`
	PointsApplied int                      `json:"points_applied"`
	Category      models.ViolationCategory `json:"category"`
}

// LeaderboardPayload signals collaborators to refetch the group ranking.
type LeaderboardPayload struct {
	GroupID uuid.UUID `json:"group_id"`
}

// PresencePayload is the current presence snapshot for a group.
type PresencePayload struct {
	Members []uuid.UUID `json:"members"`
	Count   int         `json:"count"`
}

// ParticipantCountPayload reports the session's enrollment size.
type ParticipantCountPayload struct {
	Count int `json:"count"`
}

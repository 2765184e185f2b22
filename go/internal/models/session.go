package models

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus defines the state of a focus session.
type SessionStatus string

const (
	SessionStatusActive   SessionStatus = "ACTIVE"
	SessionStatusFinished SessionStatus = "FINISHED"
)

// Agreements holds the reward/penalty pair the group agreed on for a session.
type Agreements struct {
	Reward  string `json:"reward"`
	Penalty string `json:"penalty"`
}

// Participant records that a member was enrolled in a session.
type Participant struct {
	MemberID uuid.UUID `json:"member_id"`
	JoinedAt time.Time `json:"joined_at"`
}

// FocusSession represents one timed pact instance for a group.
// At most one session per group may be ACTIVE at any time.
type FocusSession struct {
	ID            uuid.UUID     `json:"id"`
	GroupID       uuid.UUID     `json:"group_id"`
	Status        SessionStatus `json:"status"`
	TargetMinutes int           `json:"target_minutes"`
	Agreements    Agreements    `json:"agreements"`
	Participants  []Participant `json:"participants"`
	StartedAt     time.Time     `json:"started_at"`
	EndedAt       *time.Time    `json:"ended_at,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// EndsAt returns the scheduled end of the countdown.
func (s *FocusSession) EndsAt() time.Time {
	return s.StartedAt.Add(time.Duration(s.TargetMinutes) * time.Minute)
}

// RemainingAt returns whole seconds left on the countdown at the given
// instant, clamped at zero.
func (s *FocusSession) RemainingAt(now time.Time) int {
	left := s.EndsAt().Sub(now)
	if left <= 0 {
		return 0
	}
	return int(left / time.Second)
}

// HasParticipant reports whether the member is enrolled in the session.
func (s *FocusSession) HasParticipant(memberID uuid.UUID) bool {
	for _, p := range s.Participants {
		if p.MemberID == memberID {
			return true
		}
	}
	return false
}

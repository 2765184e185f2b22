package scoring

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ScoreEvent is one outbox row: a point delta applied to a membership,
// staged for delivery to the event stream in the same transaction that
// changed the score.
type ScoreEvent struct {
	ID        uuid.UUID       `json:"id"`
	GroupID   uuid.UUID       `json:"group_id"`
	MemberID  uuid.UUID       `json:"member_id"`
	EventType string          `json:"event_type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
	SentAt    *time.Time      `json:"sent_at,omitempty"`
}

// scoreDelta is the payload shape staged into the outbox.
type scoreDelta struct {
	MemberID    uuid.UUID `json:"member_id"`
	GroupID     uuid.UUID `json:"group_id"`
	Delta       int       `json:"delta"`
	PointsAfter int       `json:"points_after"`
	Reason      string    `json:"reason"`
}

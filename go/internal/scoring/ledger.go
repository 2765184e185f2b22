package scoring

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/focuspact/focuspact/go/internal/sqlutil"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const eventTypeScoreChanged = "score-changed"

// Ledger applies point deltas to memberships. Each delta and its outbox
// event commit in one transaction; the notify wakes the relay immediately
// and the fallback poll covers dropped notifications.
type Ledger struct {
	db *sql.DB
}

// NewLedger creates a new score ledger.
func NewLedger(db *sql.DB) *Ledger {
	return &Ledger{db: db}
}

// Increment adds delta (negative for penalties) to the member's points in
// the group and stages a score-changed event.
func (l *Ledger) Increment(ctx context.Context, memberID, groupID uuid.UUID, delta int, reason string) error {
	err := sqlutil.Run(ctx, l.db, func(tx *sql.Tx) error {
		var pointsAfter int
		err := tx.QueryRowContext(ctx, `
			UPDATE memberships
			SET points = points + $3, updated_at = now()
			WHERE member_id = $1 AND group_id = $2
			RETURNING points`,
			memberID, groupID, delta,
		).Scan(&pointsAfter)
		if err != nil {
			return fmt.Errorf("apply score delta: %w", err)
		}

		payload, err := json.Marshal(scoreDelta{
			MemberID:    memberID,
			GroupID:     groupID,
			Delta:       delta,
			PointsAfter: pointsAfter,
			Reason:      reason,
		})
		if err != nil {
			return fmt.Errorf("marshal score event: %w", err)
		}

		eventID := uuid.New()
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO score_events (id, group_id, member_id, event_type, payload)
			VALUES ($1, $2, $3, $4, $5)`,
			eventID, groupID, memberID, eventTypeScoreChanged, payload,
		); err != nil {
			return fmt.Errorf("stage score event: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `SELECT pg_notify($1, $2)`,
			notifyChannel, eventID.String(),
		); err != nil {
			return fmt.Errorf("notify score event: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to increment score: %w", err)
	}

	log.Debug().
		Str("member_id", memberID.String()).
		Str("group_id", groupID.String()).
		Int("delta", delta).
		Str("reason", reason).
		Msg("score delta applied")

	return nil
}

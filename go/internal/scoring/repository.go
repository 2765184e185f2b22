package scoring

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// Repository reads and settles staged score events.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new score event repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// EventByID fetches one staged event.
func (r *Repository) EventByID(ctx context.Context, id uuid.UUID) (*ScoreEvent, error) {
	var e ScoreEvent
	err := r.db.QueryRowContext(ctx, `
		SELECT id, group_id, member_id, event_type, payload, created_at, sent_at
		FROM score_events WHERE id = $1`, id,
	).Scan(&e.ID, &e.GroupID, &e.MemberID, &e.EventType, &e.Payload, &e.CreatedAt, &e.SentAt)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch score event: %w", err)
	}
	return &e, nil
}

// UnsentEvents fetches up to limit staged events not yet delivered, oldest
// first.
func (r *Repository) UnsentEvents(ctx context.Context, limit int) ([]ScoreEvent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, group_id, member_id, event_type, payload, created_at, sent_at
		FROM score_events
		WHERE sent_at IS NULL
		ORDER BY created_at
		LIMIT $1`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch unsent score events: %w", err)
	}
	defer rows.Close()

	var result []ScoreEvent
	for rows.Next() {
		var e ScoreEvent
		if err := rows.Scan(&e.ID, &e.GroupID, &e.MemberID, &e.EventType, &e.Payload, &e.CreatedAt, &e.SentAt); err != nil {
			return nil, fmt.Errorf("failed to scan score event: %w", err)
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

// MarkSent records the event as delivered.
func (r *Repository) MarkSent(ctx context.Context, id uuid.UUID) error {
	if _, err := r.db.ExecContext(ctx, `
		UPDATE score_events SET sent_at = now() WHERE id = $1 AND sent_at IS NULL`, id,
	); err != nil {
		return fmt.Errorf("failed to mark score event sent: %w", err)
	}
	return nil
}

package focus

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/focuspact/focuspact/go/internal/models"
	"github.com/focuspact/focuspact/go/internal/sqlutil"
	"github.com/google/uuid"
)

// Repository implements SessionStore on Postgres. A partial unique index on
// (group_id) WHERE status = 'ACTIVE' backs the one-active-session invariant
// at the storage boundary as well.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a focus session repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) CreateSession(ctx context.Context, req CreateSessionRequest) (*models.FocusSession, error) {
	session := &models.FocusSession{
		ID:            uuid.New(),
		GroupID:       req.GroupID,
		Status:        models.SessionStatusActive,
		TargetMinutes: req.TargetMinutes,
		Agreements:    req.Agreements,
		StartedAt:     req.StartedAt,
	}

	err := sqlutil.Run(ctx, r.db, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `
			INSERT INTO focus_sessions (id, group_id, status, target_minutes, reward, penalty, started_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING created_at, updated_at`,
			session.ID, session.GroupID, session.Status, session.TargetMinutes,
			session.Agreements.Reward, session.Agreements.Penalty, session.StartedAt,
		)
		if err := row.Scan(&session.CreatedAt, &session.UpdatedAt); err != nil {
			return fmt.Errorf("insert session: %w", err)
		}

		for _, memberID := range req.Participants {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO focus_participants (session_id, member_id, joined_at)
				VALUES ($1, $2, $3)
				ON CONFLICT DO NOTHING`,
				session.ID, memberID, req.StartedAt,
			); err != nil {
				return fmt.Errorf("insert participant: %w", err)
			}
			session.Participants = append(session.Participants, models.Participant{
				MemberID: memberID,
				JoinedAt: req.StartedAt,
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create focus session: %w", err)
	}

	return session, nil
}

func (r *Repository) ActiveSession(ctx context.Context, groupID uuid.UUID) (*models.FocusSession, error) {
	var (
		session models.FocusSession
		endedAt sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, group_id, status, target_minutes, reward, penalty, started_at, ended_at, created_at, updated_at
		FROM focus_sessions
		WHERE group_id = $1 AND status = $2`,
		groupID, models.SessionStatusActive,
	).Scan(
		&session.ID, &session.GroupID, &session.Status, &session.TargetMinutes,
		&session.Agreements.Reward, &session.Agreements.Penalty,
		&session.StartedAt, &endedAt, &session.CreatedAt, &session.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active session: %w", err)
	}
	if endedAt.Valid {
		session.EndedAt = &endedAt.Time
	}

	participants, err := r.participantsOf(ctx, session.ID)
	if err != nil {
		return nil, err
	}
	session.Participants = participants

	return &session, nil
}

func (r *Repository) AddParticipant(ctx context.Context, sessionID, memberID uuid.UUID, joinedAt time.Time) error {
	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO focus_participants (session_id, member_id, joined_at)
		VALUES ($1, $2, $3)
		ON CONFLICT DO NOTHING`,
		sessionID, memberID, joinedAt,
	); err != nil {
		return fmt.Errorf("failed to add participant: %w", err)
	}
	return nil
}

func (r *Repository) FinishSession(ctx context.Context, sessionID uuid.UUID, endedAt time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE focus_sessions
		SET status = $2, ended_at = $3, updated_at = now()
		WHERE id = $1 AND status = $4`,
		sessionID, models.SessionStatusFinished, endedAt, models.SessionStatusActive,
	)
	if err != nil {
		return false, fmt.Errorf("failed to finish session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return affected == 1, nil
}

func (r *Repository) participantsOf(ctx context.Context, sessionID uuid.UUID) ([]models.Participant, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT member_id, joined_at
		FROM focus_participants
		WHERE session_id = $1
		ORDER BY joined_at, member_id`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}
	defer rows.Close()

	var participants []models.Participant
	for rows.Next() {
		var p models.Participant
		if err := rows.Scan(&p.MemberID, &p.JoinedAt); err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		participants = append(participants, p)
	}
	return participants, rows.Err()
}

package pacts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/focuspact/focuspact/go/internal/models"
	"github.com/focuspact/focuspact/go/internal/sqlutil"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Repository implements pact data access operations.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new pacts repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// CreatePact deactivates any active pact for the group and inserts the new
// one as active, in one transaction.
func (r *Repository) CreatePact(ctx context.Context, pact *models.Pact) (*models.Pact, error) {
	pact.ID = uuid.New()
	pact.Active = true

	err := sqlutil.Run(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			UPDATE pacts SET active = false, updated_at = now()
			WHERE group_id = $1 AND active`,
			pact.GroupID,
		); err != nil {
			return fmt.Errorf("deactivate previous pacts: %w", err)
		}

		return tx.QueryRowContext(ctx, `
			INSERT INTO pacts (id, group_id, daily_social_limit_min, duration_days,
			                   penalties, rewards, violation_points, completion_points,
			                   active, starts_at, ends_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, true, $9, $10)
			RETURNING created_at, updated_at`,
			pact.ID, pact.GroupID, pact.DailySocialLimitMin, pact.DurationDays,
			pq.Array(pact.Penalties), pq.Array(pact.Rewards),
			pact.PointRules.Violation, pact.PointRules.Completion,
			pact.StartsAt, sqlutil.ToSqlTime(pact.EndsAt),
		).Scan(&pact.CreatedAt, &pact.UpdatedAt)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create pact: %w", err)
	}

	return pact, nil
}

// ActivePact returns the group's active pact, (nil, nil) when none exists.
func (r *Repository) ActivePact(ctx context.Context, groupID uuid.UUID) (*models.Pact, error) {
	pact, err := r.scanPact(r.db.QueryRowContext(ctx, `
		SELECT id, group_id, daily_social_limit_min, duration_days,
		       penalties, rewards, violation_points, completion_points,
		       active, starts_at, ends_at, created_at, updated_at
		FROM pacts
		WHERE group_id = $1 AND active`,
		groupID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active pact: %w", err)
	}
	return pact, nil
}

// PactByID returns (nil, nil) when no pact matches.
func (r *Repository) PactByID(ctx context.Context, id uuid.UUID) (*models.Pact, error) {
	pact, err := r.scanPact(r.db.QueryRowContext(ctx, `
		SELECT id, group_id, daily_social_limit_min, duration_days,
		       penalties, rewards, violation_points, completion_points,
		       active, starts_at, ends_at, created_at, updated_at
		FROM pacts
		WHERE id = $1`,
		id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pact: %w", err)
	}
	return pact, nil
}

// UpdatePact overwrites the pact's rule fields.
func (r *Repository) UpdatePact(ctx context.Context, pact *models.Pact) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE pacts
		SET daily_social_limit_min = $2, duration_days = $3,
		    penalties = $4, rewards = $5,
		    violation_points = $6, completion_points = $7,
		    ends_at = $8, updated_at = now()
		WHERE id = $1`,
		pact.ID, pact.DailySocialLimitMin, pact.DurationDays,
		pq.Array(pact.Penalties), pq.Array(pact.Rewards),
		pact.PointRules.Violation, pact.PointRules.Completion,
		sqlutil.ToSqlTime(pact.EndsAt),
	)
	if err != nil {
		return fmt.Errorf("failed to update pact: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return ErrPactNotFound
	}
	return nil
}

func (r *Repository) scanPact(row *sql.Row) (*models.Pact, error) {
	var (
		p      models.Pact
		endsAt sql.NullTime
	)
	if err := row.Scan(
		&p.ID, &p.GroupID, &p.DailySocialLimitMin, &p.DurationDays,
		pq.Array(&p.Penalties), pq.Array(&p.Rewards),
		&p.PointRules.Violation, &p.PointRules.Completion,
		&p.Active, &p.StartsAt, &endsAt, &p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	p.EndsAt = sqlutil.FromSqlTime(endsAt)
	return &p, nil
}

package violations

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/focuspact/focuspact/go/internal/models"
	"github.com/focuspact/focuspact/go/internal/sqlutil"
	"github.com/google/uuid"
)

// Repository implements violation data access operations. Violations are
// append-only; there are no update or delete paths.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new violations repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// CreateViolation inserts the record and fills in its ID and timestamp.
func (r *Repository) CreateViolation(ctx context.Context, v *models.Violation) (*models.Violation, error) {
	v.ID = uuid.New()
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO violations (id, member_id, group_id, category, origin, detail, points_applied, evidence_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''))
		RETURNING created_at`,
		v.ID, v.MemberID, v.GroupID, v.Category, v.Origin, v.Detail, v.PointsApplied, v.EvidenceURL,
	).Scan(&v.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create violation: %w", err)
	}
	return v, nil
}

// ViolationsOfMember lists a member's violations newest first. A non-nil
// groupID narrows the history to one group.
func (r *Repository) ViolationsOfMember(ctx context.Context, memberID uuid.UUID, groupID uuid.UUID) ([]models.Violation, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, member_id, group_id, category, origin, detail, points_applied,
		       evidence_url, created_at
		FROM violations
		WHERE member_id = $1 AND ($2::uuid IS NULL OR group_id = $2)
		ORDER BY created_at DESC`,
		memberID, nullableUUID(groupID),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list violations: %w", err)
	}
	defer rows.Close()

	var result []models.Violation
	for rows.Next() {
		var (
			v        models.Violation
			evidence sql.NullString
		)
		if err := rows.Scan(
			&v.ID, &v.MemberID, &v.GroupID, &v.Category, &v.Origin,
			&v.Detail, &v.PointsApplied, &evidence, &v.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan violation: %w", err)
		}
		v.EvidenceURL = sqlutil.FromSqlString(evidence, "")
		result = append(result, v)
	}
	return result, rows.Err()
}

func nullableUUID(id uuid.UUID) any {
	if id == uuid.Nil {
		return nil
	}
	return id
}

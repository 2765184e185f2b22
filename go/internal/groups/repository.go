package groups

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/focuspact/focuspact/go/internal/models"
	"github.com/focuspact/focuspact/go/internal/sqlutil"
	"github.com/google/uuid"
)

// Repository implements group and membership data access operations.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new groups repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// CreateGroup inserts a group and its creator's admin membership in one
// transaction.
func (r *Repository) CreateGroup(ctx context.Context, name, inviteCode string, createdBy uuid.UUID) (*models.Group, *models.Membership, error) {
	group := &models.Group{
		ID:         uuid.New(),
		Name:       name,
		InviteCode: inviteCode,
		CreatedBy:  createdBy,
	}
	var membership *models.Membership

	err := sqlutil.Run(ctx, r.db, func(tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx, `
			INSERT INTO groups (id, name, invite_code, created_by)
			VALUES ($1, $2, $3, $4)
			RETURNING created_at`,
			group.ID, group.Name, group.InviteCode, group.CreatedBy,
		).Scan(&group.CreatedAt); err != nil {
			return fmt.Errorf("insert group: %w", err)
		}

		m, err := upsertMembership(ctx, tx, createdBy, group.ID, models.RoleAdmin)
		if err != nil {
			return err
		}
		membership = m
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create group: %w", err)
	}

	return group, membership, nil
}

// GroupByID returns (nil, nil) when no group matches.
func (r *Repository) GroupByID(ctx context.Context, id uuid.UUID) (*models.Group, error) {
	group, err := scanGroup(r.db.QueryRowContext(ctx, `
		SELECT id, name, invite_code, created_by, created_at
		FROM groups WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get group: %w", err)
	}
	return group, nil
}

// GroupByInviteCode returns (nil, nil) when no group matches.
func (r *Repository) GroupByInviteCode(ctx context.Context, code string) (*models.Group, error) {
	group, err := scanGroup(r.db.QueryRowContext(ctx, `
		SELECT id, name, invite_code, created_by, created_at
		FROM groups WHERE invite_code = $1`, code))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get group by invite code: %w", err)
	}
	return group, nil
}

// EnsureMembership creates the membership if absent and refreshes
// last_active_at either way.
func (r *Repository) EnsureMembership(ctx context.Context, memberID, groupID uuid.UUID, role models.MembershipRole) (*models.Membership, error) {
	var membership *models.Membership
	err := sqlutil.Run(ctx, r.db, func(tx *sql.Tx) error {
		m, err := upsertMembership(ctx, tx, memberID, groupID, role)
		if err != nil {
			return err
		}
		membership = m
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to ensure membership: %w", err)
	}
	return membership, nil
}

func upsertMembership(ctx context.Context, tx *sql.Tx, memberID, groupID uuid.UUID, role models.MembershipRole) (*models.Membership, error) {
	m := &models.Membership{MemberID: memberID, GroupID: groupID}
	var lastActive sql.NullTime
	err := tx.QueryRowContext(ctx, `
		INSERT INTO memberships (member_id, group_id, role, points, last_active_at)
		VALUES ($1, $2, $3, 0, now())
		ON CONFLICT (member_id, group_id)
		DO UPDATE SET last_active_at = now(), updated_at = now()
		RETURNING role, points, last_active_at, created_at, updated_at`,
		memberID, groupID, role,
	).Scan(&m.Role, &m.Points, &lastActive, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("upsert membership: %w", err)
	}
	m.LastActiveAt = sqlutil.FromSqlTime(lastActive)
	return m, nil
}

// IsMember reports whether the member belongs to the group.
func (r *Repository) IsMember(ctx context.Context, memberID, groupID uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM memberships WHERE member_id = $1 AND group_id = $2
		)`, memberID, groupID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check membership: %w", err)
	}
	return exists, nil
}

// TouchMembership refreshes last_active_at; reports whether a membership
// existed.
func (r *Repository) TouchMembership(ctx context.Context, memberID, groupID uuid.UUID) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE memberships
		SET last_active_at = now(), updated_at = now()
		WHERE member_id = $1 AND group_id = $2`,
		memberID, groupID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to touch membership: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return affected == 1, nil
}

// MembershipsOfMember lists the member's groups, most recently active
// first.
func (r *Repository) MembershipsOfMember(ctx context.Context, memberID uuid.UUID) ([]GroupMembership, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT g.id, g.name, g.invite_code, g.created_by, g.created_at,
		       m.role, m.points, m.last_active_at, m.created_at, m.updated_at
		FROM memberships m
		JOIN groups g ON g.id = m.group_id
		WHERE m.member_id = $1
		ORDER BY m.last_active_at DESC NULLS LAST, m.updated_at DESC`,
		memberID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}
	defer rows.Close()

	var result []GroupMembership
	for rows.Next() {
		var (
			gm         GroupMembership
			lastActive sql.NullTime
		)
		if err := rows.Scan(
			&gm.Group.ID, &gm.Group.Name, &gm.Group.InviteCode, &gm.Group.CreatedBy, &gm.Group.CreatedAt,
			&gm.Membership.Role, &gm.Membership.Points, &lastActive,
			&gm.Membership.CreatedAt, &gm.Membership.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan membership: %w", err)
		}
		gm.Membership.MemberID = memberID
		gm.Membership.GroupID = gm.Group.ID
		gm.Membership.LastActiveAt = sqlutil.FromSqlTime(lastActive)
		result = append(result, gm)
	}
	return result, rows.Err()
}

// MembersOfGroup lists the group's members with their scores.
func (r *Repository) MembersOfGroup(ctx context.Context, groupID uuid.UUID) ([]GroupMember, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT mb.id, mb.name, mb.email, m.role, m.points, m.last_active_at
		FROM memberships m
		JOIN members mb ON mb.id = m.member_id
		WHERE m.group_id = $1
		ORDER BY m.points DESC, m.updated_at DESC`,
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list group members: %w", err)
	}
	defer rows.Close()

	var result []GroupMember
	for rows.Next() {
		var (
			gm         GroupMember
			lastActive sql.NullTime
		)
		if err := rows.Scan(&gm.MemberID, &gm.Name, &gm.Email, &gm.Role, &gm.Points, &lastActive); err != nil {
			return nil, fmt.Errorf("failed to scan group member: %w", err)
		}
		gm.LastActiveAt = sqlutil.FromSqlTime(lastActive)
		result = append(result, gm)
	}
	return result, rows.Err()
}

// PreferredGroup returns the member's most recently active group, or
// (uuid.Nil, false) when the member belongs to none.
func (r *Repository) PreferredGroup(ctx context.Context, memberID uuid.UUID) (uuid.UUID, bool, error) {
	var groupID uuid.UUID
	err := r.db.QueryRowContext(ctx, `
		SELECT group_id FROM memberships
		WHERE member_id = $1
		ORDER BY last_active_at DESC NULLS LAST, updated_at DESC
		LIMIT 1`,
		memberID,
	).Scan(&groupID)
	if errors.Is(err, sql.ErrNoRows) {
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("failed to get preferred group: %w", err)
	}
	return groupID, true, nil
}

func scanGroup(row *sql.Row) (*models.Group, error) {
	var g models.Group
	if err := row.Scan(&g.ID, &g.Name, &g.InviteCode, &g.CreatedBy, &g.CreatedAt); err != nil {
		return nil, err
	}
	return &g, nil
}

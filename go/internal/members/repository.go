package members

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/focuspact/focuspact/go/internal/models"
	"github.com/google/uuid"
)

// Repository implements member data access operations.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new members repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// CreateMember creates a new member account.
func (r *Repository) CreateMember(ctx context.Context, name, email, passwordHash string) (*models.Member, error) {
	member := &models.Member{
		ID:           uuid.New(),
		Name:         name,
		Email:        email,
		PasswordHash: passwordHash,
	}

	err := r.db.QueryRowContext(ctx, `
		INSERT INTO members (id, name, email, password_hash)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`,
		member.ID, member.Name, member.Email, member.PasswordHash,
	).Scan(&member.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create member: %w", err)
	}

	return member, nil
}

// MemberByEmail retrieves a member by email, (nil, nil) when absent.
func (r *Repository) MemberByEmail(ctx context.Context, email string) (*models.Member, error) {
	member, err := r.scanMember(r.db.QueryRowContext(ctx, `
		SELECT id, name, email, password_hash, COALESCE(avatar_url, ''), created_at
		FROM members
		WHERE email = $1`,
		email,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get member by email: %w", err)
	}
	return member, nil
}

// MemberByID retrieves a member by ID.
func (r *Repository) MemberByID(ctx context.Context, id uuid.UUID) (*models.Member, error) {
	member, err := r.scanMember(r.db.QueryRowContext(ctx, `
		SELECT id, name, email, password_hash, COALESCE(avatar_url, ''), created_at
		FROM members
		WHERE id = $1`,
		id,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to get member: %w", err)
	}
	return member, nil
}

// MemberName returns the display name for a member ID.
func (r *Repository) MemberName(ctx context.Context, id uuid.UUID) (string, error) {
	var name string
	err := r.db.QueryRowContext(ctx, `SELECT name FROM members WHERE id = $1`, id).Scan(&name)
	if err != nil {
		return "", fmt.Errorf("failed to get member name: %w", err)
	}
	return name, nil
}

func (r *Repository) scanMember(row *sql.Row) (*models.Member, error) {
	var m models.Member
	if err := row.Scan(&m.ID, &m.Name, &m.Email, &m.PasswordHash, &m.AvatarURL, &m.CreatedAt); err != nil {
		return nil, err
	}
	return &m, nil
}

package models

import (
	"time"

	"github.com/google/uuid"
)

// MembershipRole defines a member's role within a group.
type MembershipRole string

const (
	RoleAdmin  MembershipRole = "ADMIN"
	RoleMember MembershipRole = "MEMBER"
)

// Membership ties a member to a group and carries the per-group score ledger.
type Membership struct {
	MemberID     uuid.UUID      `json:"member_id"`
	GroupID      uuid.UUID      `json:"group_id"`
	Role         MembershipRole `json:"role"`
	Points       int            `json:"points"`
	LastActiveAt *time.Time     `json:"last_active_at,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

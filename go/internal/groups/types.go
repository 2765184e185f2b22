package groups

import (
	"errors"
	"time"

	"github.com/focuspact/focuspact/go/internal/models"
	"github.com/google/uuid"
)

var (
	// ErrGroupNotFound means no group matches the given ID.
	ErrGroupNotFound = errors.New("group does not exist")

	// ErrInvalidInviteCode means no group matches the invite code.
	ErrInvalidInviteCode = errors.New("invalid invite code")

	// ErrNotMember means the requester does not belong to the group.
	ErrNotMember = errors.New("not a member of this group")
)

// GroupMembership pairs a membership with its group for listing views.
type GroupMembership struct {
	Group      models.Group      `json:"group"`
	Membership models.Membership `json:"membership"`
}

// GroupMember is one row of a group's member listing.
type GroupMember struct {
	MemberID     uuid.UUID             `json:"member_id"`
	Name         string                `json:"name"`
	Email        string                `json:"email"`
	Role         models.MembershipRole `json:"role"`
	Points       int                   `json:"points"`
	LastActiveAt *time.Time            `json:"last_active_at,omitempty"`
}

// LeaderboardRow is one ranked entry of a group's leaderboard. Ties share a
// rank (dense ranking).
type LeaderboardRow struct {
	Rank     int                   `json:"rank"`
	MemberID uuid.UUID             `json:"member_id"`
	Name     string                `json:"name"`
	Role     models.MembershipRole `json:"role"`
	Points   int                   `json:"points"`
}

// GroupDetail is a group with its member listing.
type GroupDetail struct {
	Group   models.Group  `json:"group"`
	Members []GroupMember `json:"members"`
}

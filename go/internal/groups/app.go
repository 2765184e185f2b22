package groups

import (
	"context"
	"crypto/rand"
	"fmt"

	"github.com/focuspact/focuspact/go/internal/models"
	"github.com/google/uuid"
)

const inviteCodeLength = 6

// no 0/O or 1/I, codes get read aloud
const inviteCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// App implements group business logic on top of the repository.
type App struct {
	repo *Repository
}

// NewApp creates a new groups app.
func NewApp(repo *Repository) *App {
	return &App{repo: repo}
}

// CreateGroup creates a group with a fresh invite code; the creator becomes
// its admin.
func (a *App) CreateGroup(ctx context.Context, name string, createdBy uuid.UUID) (*models.Group, *models.Membership, error) {
	code, err := newInviteCode()
	if err != nil {
		return nil, nil, err
	}
	return a.repo.CreateGroup(ctx, name, code, createdBy)
}

// JoinByInviteCode adds the member to the group behind the code. Idempotent
// for existing members (refreshes their last-active timestamp).
func (a *App) JoinByInviteCode(ctx context.Context, code string, memberID uuid.UUID) (*models.Group, *models.Membership, error) {
	group, err := a.repo.GroupByInviteCode(ctx, code)
	if err != nil {
		return nil, nil, err
	}
	if group == nil {
		return nil, nil, ErrInvalidInviteCode
	}

	membership, err := a.repo.EnsureMembership(ctx, memberID, group.ID, models.RoleMember)
	if err != nil {
		return nil, nil, err
	}
	return group, membership, nil
}

// MyGroups lists the member's groups, most recently active first.
func (a *App) MyGroups(ctx context.Context, memberID uuid.UUID) ([]GroupMembership, error) {
	return a.repo.MembershipsOfMember(ctx, memberID)
}

// GroupDetail returns the group and its member listing.
func (a *App) GroupDetail(ctx context.Context, groupID uuid.UUID) (*GroupDetail, error) {
	group, err := a.repo.GroupByID(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if group == nil {
		return nil, ErrGroupNotFound
	}

	members, err := a.repo.MembersOfGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}

	return &GroupDetail{Group: *group, Members: members}, nil
}

// SetActiveGroup marks the group as the member's current one.
func (a *App) SetActiveGroup(ctx context.Context, memberID, groupID uuid.UUID) error {
	touched, err := a.repo.TouchMembership(ctx, memberID, groupID)
	if err != nil {
		return err
	}
	if !touched {
		return ErrNotMember
	}
	return nil
}

// PreferredGroup returns the member's most recently active group ID, or
// (uuid.Nil, false) when the member belongs to none.
func (a *App) PreferredGroup(ctx context.Context, memberID uuid.UUID) (uuid.UUID, bool, error) {
	return a.repo.PreferredGroup(ctx, memberID)
}

// IsMember reports whether the member belongs to the group.
func (a *App) IsMember(ctx context.Context, memberID, groupID uuid.UUID) (bool, error) {
	return a.repo.IsMember(ctx, memberID, groupID)
}

// Leaderboard returns the group's ranking ordered by points, with ties
// sharing a rank.
func (a *App) Leaderboard(ctx context.Context, groupID uuid.UUID) ([]LeaderboardRow, error) {
	members, err := a.repo.MembersOfGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	return rankMembers(members), nil
}

// rankMembers assigns dense ranks to members already sorted by points
// descending: ties share a rank and the next distinct score takes the next
// rank.
func rankMembers(members []GroupMember) []LeaderboardRow {
	rows := make([]LeaderboardRow, 0, len(members))
	rank := 0
	lastPoints := 0
	for i, m := range members {
		if i == 0 || m.Points != lastPoints {
			rank++
			lastPoints = m.Points
		}
		rows = append(rows, LeaderboardRow{
			Rank:     rank,
			MemberID: m.MemberID,
			Name:     m.Name,
			Role:     m.Role,
			Points:   m.Points,
		})
	}
	return rows
}

func newInviteCode() (string, error) {
	buf := make([]byte, inviteCodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate invite code: %w", err)
	}
	for i, b := range buf {
		buf[i] = inviteCodeAlphabet[int(b)%len(inviteCodeAlphabet)]
	}
	return string(buf), nil
}

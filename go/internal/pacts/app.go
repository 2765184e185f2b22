package pacts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/focuspact/focuspact/go/internal/models"
	"github.com/google/uuid"
)

var (
	// ErrPactNotFound means no pact matches the given ID.
	ErrPactNotFound = errors.New("pact does not exist")

	// ErrNotMember means the requester does not belong to the pact's group.
	ErrNotMember = errors.New("not a member of this group")

	// ErrInvalidPact means the pact input failed validation.
	ErrInvalidPact = errors.New("invalid pact")
)

// MembershipChecker answers whether a member belongs to a group.
type MembershipChecker interface {
	IsMember(ctx context.Context, memberID, groupID uuid.UUID) (bool, error)
}

// PactInput carries the caller-supplied pact fields.
type PactInput struct {
	GroupID             uuid.UUID `json:"group_id"`
	DailySocialLimitMin int       `json:"daily_social_limit_min"`
	DurationDays        int       `json:"duration_days"`
	Penalties           []string  `json:"penalties"`
	Rewards             []string  `json:"rewards"`
	ViolationPoints     *int      `json:"violation_points,omitempty"`
	CompletionPoints    *int      `json:"completion_points,omitempty"`
}

// App implements pact business logic on top of the repository.
type App struct {
	repo    *Repository
	members MembershipChecker
}

// NewApp creates a new pacts app.
func NewApp(repo *Repository, members MembershipChecker) *App {
	return &App{repo: repo, members: members}
}

// CreatePact activates a new pact for the group, replacing any previous
// active one. Point rules default when the caller omits them.
func (a *App) CreatePact(ctx context.Context, requester uuid.UUID, input PactInput) (*models.Pact, error) {
	if input.GroupID == uuid.Nil {
		return nil, fmt.Errorf("%w: group_id is required", ErrInvalidPact)
	}
	if input.DurationDays <= 0 {
		return nil, fmt.Errorf("%w: duration must be positive", ErrInvalidPact)
	}

	ok, err := a.members.IsMember(ctx, requester, input.GroupID)
	if err != nil {
		return nil, fmt.Errorf("check membership: %w", err)
	}
	if !ok {
		return nil, ErrNotMember
	}

	now := time.Now()
	endsAt := now.AddDate(0, 0, input.DurationDays)
	pact := &models.Pact{
		GroupID:             input.GroupID,
		DailySocialLimitMin: input.DailySocialLimitMin,
		DurationDays:        input.DurationDays,
		Penalties:           input.Penalties,
		Rewards:             input.Rewards,
		PointRules:          resolveRules(input, models.DefaultPointRules()),
		StartsAt:            now,
		EndsAt:              &endsAt,
	}
	return a.repo.CreatePact(ctx, pact)
}

// ActivePact returns the group's active pact. When none is configured it
// returns a synthetic inactive pact carrying the default point rules, so
// clients always see the rules in force.
func (a *App) ActivePact(ctx context.Context, requester, groupID uuid.UUID) (*models.Pact, error) {
	ok, err := a.members.IsMember(ctx, requester, groupID)
	if err != nil {
		return nil, fmt.Errorf("check membership: %w", err)
	}
	if !ok {
		return nil, ErrNotMember
	}

	pact, err := a.repo.ActivePact(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if pact == nil {
		return &models.Pact{
			GroupID:    groupID,
			PointRules: models.DefaultPointRules(),
		}, nil
	}
	return pact, nil
}

// UpdatePact overwrites an existing pact's rule fields.
func (a *App) UpdatePact(ctx context.Context, requester, pactID uuid.UUID, input PactInput) (*models.Pact, error) {
	pact, err := a.repo.PactByID(ctx, pactID)
	if err != nil {
		return nil, err
	}
	if pact == nil {
		return nil, ErrPactNotFound
	}

	ok, err := a.members.IsMember(ctx, requester, pact.GroupID)
	if err != nil {
		return nil, fmt.Errorf("check membership: %w", err)
	}
	if !ok {
		return nil, ErrNotMember
	}

	if input.DailySocialLimitMin > 0 {
		pact.DailySocialLimitMin = input.DailySocialLimitMin
	}
	if input.DurationDays > 0 {
		pact.DurationDays = input.DurationDays
		endsAt := pact.StartsAt.AddDate(0, 0, input.DurationDays)
		pact.EndsAt = &endsAt
	}
	if input.Penalties != nil {
		pact.Penalties = input.Penalties
	}
	if input.Rewards != nil {
		pact.Rewards = input.Rewards
	}
	pact.PointRules = resolveRules(input, pact.PointRules)

	if err := a.repo.UpdatePact(ctx, pact); err != nil {
		return nil, err
	}
	return pact, nil
}

// PointRules resolves the score deltas in force for the group: the active
// pact's rules, or the defaults when none is configured.
func (a *App) PointRules(ctx context.Context, groupID uuid.UUID) (models.PointRules, error) {
	pact, err := a.repo.ActivePact(ctx, groupID)
	if err != nil {
		return models.PointRules{}, err
	}
	if pact == nil {
		return models.DefaultPointRules(), nil
	}
	return pact.PointRules, nil
}

func resolveRules(input PactInput, base models.PointRules) models.PointRules {
	rules := base
	if input.ViolationPoints != nil {
		rules.Violation = *input.ViolationPoints
	}
	if input.CompletionPoints != nil {
		rules.Completion = *input.CompletionPoints
	}
	return rules
}

package violations

import (
	"context"
	"errors"
	"fmt"

	"github.com/focuspact/focuspact/go/internal/focus"
	"github.com/focuspact/focuspact/go/internal/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var (
	// ErrNotMember means the reported member does not belong to the group.
	ErrNotMember = errors.New("member does not belong to this group")

	// ErrInvalidReport means the report input failed validation.
	ErrInvalidReport = errors.New("invalid violation report")
)

// MembershipDirectory answers group membership and identity questions.
type MembershipDirectory interface {
	IsMember(ctx context.Context, memberID, groupID uuid.UUID) (bool, error)
	MemberName(ctx context.Context, memberID uuid.UUID) (string, error)
}

// ScoreLedger applies point deltas to the group ledger.
type ScoreLedger interface {
	Increment(ctx context.Context, memberID, groupID uuid.UUID, delta int, reason string) error
}

// RuleSource resolves the point rules in force for a group.
type RuleSource interface {
	PointRules(ctx context.Context, groupID uuid.UUID) (models.PointRules, error)
}

// ViolationStore persists violation records.
type ViolationStore interface {
	CreateViolation(ctx context.Context, v *models.Violation) (*models.Violation, error)
	ViolationsOfMember(ctx context.Context, memberID uuid.UUID, groupID uuid.UUID) ([]models.Violation, error)
}

// ReportInput is a manual violation report, typically filed from the
// extension or the mobile companion when a member breaks the pact outside a
// live session.
type ReportInput struct {
	MemberID    uuid.UUID              `json:"member_id"`
	GroupID     uuid.UUID              `json:"group_id"`
	Detail      string                 `json:"detail"`
	Origin      models.ViolationOrigin `json:"origin"`
	EvidenceURL string                 `json:"evidence_url,omitempty"`
}

// App implements violation business logic on top of the store.
type App struct {
	repo        ViolationStore
	members     MembershipDirectory
	ledger      ScoreLedger
	rules       RuleSource
	broadcaster focus.Broadcaster
}

// NewApp creates a new violations app.
func NewApp(repo ViolationStore, members MembershipDirectory, ledger ScoreLedger, rules RuleSource, broadcaster focus.Broadcaster) *App {
	return &App{repo: repo, members: members, ledger: ledger, rules: rules, broadcaster: broadcaster}
}

// Report records a manual violation, applies the pact's violation points and
// announces the event to the group.
func (a *App) Report(ctx context.Context, input ReportInput) (*models.Violation, error) {
	if input.MemberID == uuid.Nil || input.GroupID == uuid.Nil || input.Detail == "" {
		return nil, fmt.Errorf("%w: member_id, group_id and detail are required", ErrInvalidReport)
	}

	ok, err := a.members.IsMember(ctx, input.MemberID, input.GroupID)
	if err != nil {
		return nil, fmt.Errorf("check membership: %w", err)
	}
	if !ok {
		return nil, ErrNotMember
	}

	rules, err := a.rules.PointRules(ctx, input.GroupID)
	if err != nil {
		return nil, fmt.Errorf("look up point rules: %w", err)
	}

	origin := input.Origin
	if origin == "" {
		origin = models.OriginManual
	}

	violation, err := a.repo.CreateViolation(ctx, &models.Violation{
		MemberID:      input.MemberID,
		GroupID:       input.GroupID,
		Category:      models.ViolationGeneral,
		Origin:        origin,
		Detail:        input.Detail,
		PointsApplied: rules.Violation,
		EvidenceURL:   input.EvidenceURL,
	})
	if err != nil {
		return nil, err
	}

	if err := a.ledger.Increment(ctx, input.MemberID, input.GroupID, rules.Violation, input.Detail); err != nil {
		log.Error().Err(err).
			Str("member_id", input.MemberID.String()).
			Str("group_id", input.GroupID.String()).
			Msg("failed to apply violation score delta")
	}

	name, err := a.members.MemberName(ctx, input.MemberID)
	if err != nil {
		name = ""
	}

	a.broadcaster.Publish(input.GroupID, focus.EventViolation, focus.ViolationPayload{
		Member:        focus.MemberRef{ID: input.MemberID, Name: name},
		Detail:        violation.Detail,
		PointsApplied: violation.PointsApplied,
		Category:      violation.Category,
	})
	a.broadcaster.Publish(input.GroupID, focus.EventLeaderboard, focus.LeaderboardPayload{GroupID: input.GroupID})

	log.Info().
		Str("member_id", input.MemberID.String()).
		Str("group_id", input.GroupID.String()).
		Str("origin", string(origin)).
		Int("points_applied", violation.PointsApplied).
		Msg("violation reported")

	return violation, nil
}

// RecordAbandonment persists a mid-session departure penalty. Scoring and
// broadcasting are owned by the caller.
func (a *App) RecordAbandonment(ctx context.Context, memberID, groupID uuid.UUID, detail string, points int) (*models.Violation, error) {
	return a.repo.CreateViolation(ctx, &models.Violation{
		MemberID:      memberID,
		GroupID:       groupID,
		Category:      models.ViolationAbandonment,
		Origin:        models.OriginRealtime,
		Detail:        detail,
		PointsApplied: points,
	})
}

// History lists a member's violations, optionally narrowed to a group.
func (a *App) History(ctx context.Context, memberID, groupID uuid.UUID) ([]models.Violation, error) {
	return a.repo.ViolationsOfMember(ctx, memberID, groupID)
}

package focus

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// detailAbandonment is the violation detail recorded for a mid-session
// departure. Explicit leave and network disconnect are deliberately not
// distinguished; both converge here.
const detailAbandonment = "disconnected during active session"

// HandleDeparture processes a member's connection loss or explicit leave
// for a group: presence is pruned and, if the member was a participant in
// an active session, an abandonment violation is scored. The penalty is
// applied at most once per (session, member), even when multiple disconnect
// signals fire for the same connection.
func (c *Coordinator) HandleDeparture(ctx context.Context, groupID, memberID uuid.UUID) {
	changed := c.presence.Leave(groupID, memberID)
	if changed {
		c.publishPresence(groupID)
	}
	if !changed {
		// The member was not present: either never joined or a duplicate
		// signal for a departure already handled.
		return
	}

	if err := c.penalizeAbandonment(ctx, groupID, memberID); err != nil {
		log.Error().Err(err).
			Str("group_id", groupID.String()).
			Str("member_id", memberID.String()).
			Msg("abandonment not recorded")
	}
}

func (c *Coordinator) penalizeAbandonment(ctx context.Context, groupID, memberID uuid.UUID) error {
	lock := c.groupLock(groupID)
	lock.Lock()
	defer lock.Unlock()

	session, err := c.sessions.ActiveSession(ctx, groupID)
	if err != nil {
		return fmt.Errorf("look up active session: %w", err)
	}
	if session == nil || !session.HasParticipant(memberID) {
		return nil
	}

	c.penalizedMu.Lock()
	seen := c.penalized[session.ID]
	if seen == nil {
		seen = make(map[uuid.UUID]struct{})
		c.penalized[session.ID] = seen
	}
	if _, done := seen[memberID]; done {
		c.penalizedMu.Unlock()
		return nil
	}
	c.penalizedMu.Unlock()

	rules, err := c.rules.PointRules(ctx, groupID)
	if err != nil {
		return fmt.Errorf("look up point rules: %w", err)
	}

	violation, err := c.violations.RecordAbandonment(ctx, memberID, groupID, detailAbandonment, rules.Violation)
	if err != nil {
		return fmt.Errorf("record violation: %w", err)
	}

	// Mark only after the write succeeded, so a transient store failure
	// does not permanently swallow the penalty.
	c.penalizedMu.Lock()
	seen[memberID] = struct{}{}
	c.penalizedMu.Unlock()

	if err := c.ledger.Increment(ctx, memberID, groupID, rules.Violation, detailAbandonment); err != nil {
		log.Error().Err(err).
			Str("member_id", memberID.String()).
			Str("group_id", groupID.String()).
			Msg("failed to apply abandonment score delta")
	}

	name, err := c.members.MemberName(ctx, memberID)
	if err != nil {
		name = ""
	}

	c.broadcaster.Publish(groupID, EventViolation, ViolationPayload{
		Member:        MemberRef{ID: memberID, Name: name},
		Detail:        violation.Detail,
		PointsApplied: violation.PointsApplied,
		Category:      violation.Category,
	})
	c.broadcaster.Publish(groupID, EventLeaderboard, LeaderboardPayload{GroupID: groupID})

	log.Info().
		Str("group_id", groupID.String()).
		Str("member_id", memberID.String()).
		Str("session_id", session.ID.String()).
		Int("points_applied", violation.PointsApplied).
		Msg("abandonment penalty applied")

	return nil
}

package models

import (
	"time"

	"github.com/google/uuid"
)

// PointRules holds the score deltas a pact applies.
type PointRules struct {
	Violation  int `json:"violation"`
	Completion int `json:"completion"`
}

// DefaultPointRules are used when a group has no active pact configured.
func DefaultPointRules() PointRules {
	return PointRules{Violation: -100, Completion: 20}
}

// Pact represents a group's agreed rule set for a period of time. Only one
// pact per group is active; creating a new one deactivates the previous.
type Pact struct {
	ID                  uuid.UUID  `json:"id"`
	GroupID             uuid.UUID  `json:"group_id"`
	DailySocialLimitMin int        `json:"daily_social_limit_min"`
	DurationDays        int        `json:"duration_days"`
	Penalties           []string   `json:"penalties"`
	Rewards             []string   `json:"rewards"`
	PointRules          PointRules `json:"point_rules"`
	Active              bool       `json:"active"`
	StartsAt            time.Time  `json:"starts_at"`
	EndsAt              *time.Time `json:"ends_at,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

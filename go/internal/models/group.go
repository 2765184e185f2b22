package models

import (
	"time"

	"github.com/google/uuid"
)

// Group represents a set of members sharing focus sessions and a score ledger.
type Group struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	InviteCode string    `json:"invite_code"`
	CreatedBy  uuid.UUID `json:"created_by"`
	CreatedAt  time.Time `json:"created_at"`
}

package models

import (
	"time"

	"github.com/google/uuid"
)

// ViolationCategory classifies a scoring event.
type ViolationCategory string

const (
	ViolationGeneral     ViolationCategory = "GENERAL"
	ViolationAbandonment ViolationCategory = "ABANDONMENT"
)

// ViolationOrigin records which path produced the violation.
type ViolationOrigin string

const (
	OriginManual    ViolationOrigin = "MANUAL"
	OriginRealtime  ViolationOrigin = "REALTIME"
	OriginExtension ViolationOrigin = "EXTENSION"
	OriginMobile    ViolationOrigin = "MOBILE"
)

// Violation is an immutable record of a scoring penalty. Never mutated
// after creation.
type Violation struct {
	ID            uuid.UUID         `json:"id"`
	MemberID      uuid.UUID         `json:"member_id"`
	GroupID       uuid.UUID         `json:"group_id"`
	Category      ViolationCategory `json:"category"`
	Origin        ViolationOrigin   `json:"origin"`
	Detail        string            `json:"detail"`
	PointsApplied int               `json:"points_applied"`
	EvidenceURL   string            `json:"evidence_url,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}

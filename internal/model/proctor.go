package model

import (
	"time"

	"github.com/google/uuid"
)

// ProctorAssignment binds a proctor to a session. At most one proctor per
// session; reassignment replaces, it does not accumulate history.
type ProctorAssignment struct {
	SessionID  uuid.UUID `json:"session_id"`
	ProctorID  int       `json:"proctor_id"`
	AssignedAt time.Time `json:"assigned_at"`
}

// ViolationType classifies a violation log entry.
type ViolationType string

const (
	ViolationTabOut          ViolationType = "tab_out"
	ViolationMultiDevice     ViolationType = "multi_device"
	ViolationSuspicious      ViolationType = "suspicious"
	ViolationCheating        ViolationType = "cheating"
	ViolationLockedByProctor ViolationType = "locked_by_proctor"
)

// Severity buckets violation types for the proctor dashboard.
func (t ViolationType) Severity() string {
	switch t {
	case ViolationMultiDevice, ViolationCheating, ViolationLockedByProctor:
		return "high"
	case ViolationTabOut, ViolationSuspicious:
		return "medium"
	default:
		return "low"
	}
}

// ViolationLog is an append-only record attached to an attempt.
// Immutable once written. ProctorID is nil for client-reported events.
type ViolationLog struct {
	ID          uuid.UUID     `json:"id"`
	AttemptID   uuid.UUID     `json:"attempt_id"`
	ProctorID   *int          `json:"proctor_id,omitempty"`
	Type        ViolationType `json:"type"`
	Description string        `json:"description"`
	CreatedAt   time.Time     `json:"created_at"`
}

// RecordViolationRequest is the payload for a proctor logging a violation.
type RecordViolationRequest struct {
	AttemptID   uuid.UUID `json:"attempt_id" binding:"required"`
	Type        string    `json:"type" binding:"required,oneof=tab_out multi_device suspicious cheating"`
	Description string    `json:"description" binding:"omitempty,max=2000"`
}

// ReportViolationRequest is the payload for a student client self-reporting
// an event on its own attempt. Cheating is a proctor-only verdict.
type ReportViolationRequest struct {
	Type string `json:"type" binding:"required,oneof=tab_out multi_device suspicious"`
}

// LockAttemptRequest is the payload for locking a student's attempt.
type LockAttemptRequest struct {
	AttemptID uuid.UUID `json:"attempt_id" binding:"required"`
	Reason    string    `json:"reason" binding:"required,min=3,max=2000"`
}

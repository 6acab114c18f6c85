package model

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus enumerates exam session lifecycle states.
type SessionStatus string

const (
	SessionStatusScheduled SessionStatus = "scheduled"
	SessionStatusOngoing   SessionStatus = "ongoing"
	SessionStatusCompleted SessionStatus = "completed"
	SessionStatusCancelled SessionStatus = "cancelled"
)

// ExamSession is a scheduled time window during which an exam can be taken,
// bound to one access code. Status transitions are system-driven by the
// reconciliation tick; only cancellation is teacher-initiated.
type ExamSession struct {
	ID         uuid.UUID     `json:"id"`
	ExamID     uuid.UUID     `json:"exam_id"`
	StartAt    time.Time     `json:"start_at"`
	EndAt      time.Time     `json:"end_at"`
	AccessCode string        `json:"access_code"`
	Status     SessionStatus `json:"status"`
	ProctorID  *int          `json:"proctor_id,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
}

// WindowContains reports whether now falls inside [StartAt, EndAt].
func (s *ExamSession) WindowContains(now time.Time) bool {
	return !now.Before(s.StartAt) && !now.After(s.EndAt)
}

// Overlaps reports whether two sessions' [StartAt, EndAt) windows intersect.
// Half-open on the right: back-to-back sessions do not overlap.
func (s *ExamSession) Overlaps(other *ExamSession) bool {
	return s.StartAt.Before(other.EndAt) && other.StartAt.Before(s.EndAt)
}

// CreateSessionRequest is the payload for scheduling a session.
// AccessCode is system-generated when omitted.
type CreateSessionRequest struct {
	ExamID     uuid.UUID `json:"exam_id" binding:"required"`
	StartAt    time.Time `json:"start_at" binding:"required"`
	EndAt      time.Time `json:"end_at" binding:"required,gtfield=StartAt"`
	AccessCode string    `json:"access_code" binding:"omitempty,min=4,max=20,access_code"`
}

// UpdateSessionRequest is the payload for rescheduling a session.
type UpdateSessionRequest struct {
	StartAt time.Time `json:"start_at" binding:"required"`
	EndAt   time.Time `json:"end_at" binding:"required,gtfield=StartAt"`
}

// AssignProctorRequest is the payload for assigning a proctor to a session.
type AssignProctorRequest struct {
	ProctorID int `json:"proctor_id" binding:"required"`
}

package model

import (
	"time"

	"github.com/google/uuid"
)

// AttemptStatus enumerates attempt lifecycle states. There is no stored
// pre-start state: an attempt row only exists once the student has been
// admitted, so rows are created in_progress.
type AttemptStatus string

const (
	AttemptStatusInProgress AttemptStatus = "in_progress"
	AttemptStatusSubmitted  AttemptStatus = "submitted"
	AttemptStatusLocked     AttemptStatus = "locked"
)

// IsFinal reports whether the status is terminal (submitted or locked).
func (s AttemptStatus) IsFinal() bool {
	return s == AttemptStatusSubmitted || s == AttemptStatusLocked
}

// Attempt is one student's single sitting of a session. At most one
// non-final attempt exists per (session, student) pair at any time.
// Attempts are never physically deleted.
type Attempt struct {
	ID          uuid.UUID     `json:"id"`
	SessionID   uuid.UUID     `json:"session_id"`
	StudentID   int           `json:"student_id"`
	ExamSetID   *uuid.UUID    `json:"exam_set_id,omitempty"`
	Status      AttemptStatus `json:"status"`
	StartedAt   time.Time     `json:"started_at"`
	SubmittedAt *time.Time    `json:"submitted_at,omitempty"`
	Score       *float64      `json:"score,omitempty"`
}

// AttemptAnswer is one stored choice of an attempt. A single-select question
// holds at most one row; multi-select questions hold one row per picked
// choice.
type AttemptAnswer struct {
	AttemptID  uuid.UUID `json:"attempt_id"`
	QuestionID uuid.UUID `json:"question_id"`
	AnswerID   uuid.UUID `json:"answer_id"`
}

// StartAttemptRequest is the payload for a student entering a session.
type StartAttemptRequest struct {
	AccessCode string `json:"access_code" binding:"required,min=4,max=20"`
}

// SaveAnswerRequest is the payload for capturing a choice.
type SaveAnswerRequest struct {
	QuestionID uuid.UUID `json:"question_id" binding:"required"`
	AnswerID   uuid.UUID `json:"answer_id" binding:"required"`
}

// RemoveAnswerRequest is the payload for retracting the stored choice(s)
// of a question.
type RemoveAnswerRequest struct {
	QuestionID uuid.UUID `json:"question_id" binding:"required"`
}

package model

import (
	"time"

	"github.com/google/uuid"
)

// Exam represents a reusable exam definition, independent of any scheduled
// sitting. Owned by a teacher through its subject.
type Exam struct {
	ID              uuid.UUID `json:"id"`
	SubjectID       uuid.UUID `json:"subject_id"`
	Title           string    `json:"title"`
	DurationMinutes int       `json:"duration_minutes"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// ChapterQuota is one entry of a chapter distribution: draw QuestionCount
// distinct questions from the chapter's pool.
type ChapterQuota struct {
	ChapterID     uuid.UUID `json:"chapter_id" binding:"required"`
	QuestionCount int       `json:"question_count" binding:"required,min=1"`
}

// CreateExamRequest is the payload for creating an exam together with its
// canonical question set, sampled from a chapter distribution.
type CreateExamRequest struct {
	SubjectID       uuid.UUID      `json:"subject_id" binding:"required"`
	Title           string         `json:"title" binding:"required,min=3,max=255"`
	DurationMinutes int            `json:"duration_minutes" binding:"required,min=1,max=480"`
	TotalQuestions  int            `json:"total_questions" binding:"required,min=1"`
	Distribution    []ChapterQuota `json:"chapter_distribution" binding:"required,min=1,dive"`
}

// UpdateExamRequest is the payload for editing an exam's title/duration.
// Question membership is immutable once sessions reference the exam.
type UpdateExamRequest struct {
	Title           string `json:"title" binding:"omitempty,min=3,max=255"`
	DurationMinutes int    `json:"duration_minutes" binding:"omitempty,min=1,max=480"`
}

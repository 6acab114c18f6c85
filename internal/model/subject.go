package model

import "github.com/google/uuid"

// Subject represents a course subject owned by a teacher.
type Subject struct {
	ID        uuid.UUID `json:"id"`
	TeacherID int       `json:"teacher_id"`
	Name      string    `json:"name"`
	Code      string    `json:"code,omitempty"`
}

// Chapter is a labeled subgroup of a subject's question pool.
type Chapter struct {
	ID            uuid.UUID `json:"id"`
	SubjectID     uuid.UUID `json:"subject_id"`
	Name          string    `json:"name"`
	ChapterNumber int       `json:"chapter_number"`
}

// CreateSubjectRequest is the payload for creating a subject.
type CreateSubjectRequest struct {
	Name string `json:"name" binding:"required,min=2,max=255"`
	Code string `json:"code" binding:"omitempty,max=20"`
}

// CreateChapterRequest is the payload for adding a chapter to a subject.
type CreateChapterRequest struct {
	Name          string `json:"name" binding:"required,min=1,max=255"`
	ChapterNumber int    `json:"chapter_number" binding:"required,min=1"`
}

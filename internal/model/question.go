package model

import "github.com/google/uuid"

// Question represents a multiple-choice question in a subject's pool.
// A question may carry more than one correct choice.
type Question struct {
	ID        uuid.UUID      `json:"id"`
	SubjectID uuid.UUID      `json:"subject_id"`
	ChapterID uuid.UUID      `json:"chapter_id"`
	Content   string         `json:"content"`
	Choices   []AnswerChoice `json:"choices,omitempty"`
}

// AnswerChoice is one selectable option of a question.
type AnswerChoice struct {
	ID         uuid.UUID `json:"id"`
	QuestionID uuid.UUID `json:"question_id"`
	Label      string    `json:"label"`
	Content    string    `json:"content"`
	IsCorrect  bool      `json:"is_correct,omitempty"`
}

// CorrectChoiceIDs returns the ids of all correct choices.
func (q *Question) CorrectChoiceIDs() []uuid.UUID {
	var out []uuid.UUID
	for _, c := range q.Choices {
		if c.IsCorrect {
			out = append(out, c.ID)
		}
	}
	return out
}

// CreateQuestionRequest is the payload for adding a question to a chapter.
type CreateQuestionRequest struct {
	ChapterID uuid.UUID             `json:"chapter_id" binding:"required"`
	Content   string                `json:"content" binding:"required,min=1,max=4000"`
	Choices   []CreateChoiceRequest `json:"choices" binding:"required,min=2,dive"`
}

// CreateChoiceRequest is one option of a new question.
type CreateChoiceRequest struct {
	Label     string `json:"label" binding:"required,max=10"`
	Content   string `json:"content" binding:"required,min=1,max=2000"`
	IsCorrect bool   `json:"is_correct"`
}

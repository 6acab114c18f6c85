package model

import (
	"time"

	"github.com/google/uuid"
)

// CanonicalSetCode is the reserved code of an exam's original question set.
// Shuffled variants get codes > 1, monotonically increasing, never reused.
const CanonicalSetCode = 1

// ExamSet is one concrete ordered list of questions belonging to an exam.
type ExamSet struct {
	ID        uuid.UUID `json:"id"`
	ExamID    uuid.UUID `json:"exam_id"`
	Code      int       `json:"code"`
	CreatedAt time.Time `json:"created_at"`
}

// IsCanonical reports whether this is the exam's original set.
func (s *ExamSet) IsCanonical() bool {
	return s.Code == CanonicalSetCode
}

// ExamSetQuestion is the ordered membership of a question in a set.
// OrderIndex is 1-based and dense within a set.
type ExamSetQuestion struct {
	ExamSetID  uuid.UUID `json:"exam_set_id"`
	QuestionID uuid.UUID `json:"question_id"`
	OrderIndex int       `json:"order_index"`
}

// GenerateShuffledSetsRequest asks for extra shuffled variants of the
// canonical set. Same membership, different presentation order.
type GenerateShuffledSetsRequest struct {
	Count int `json:"count" binding:"required,min=1,max=50"`
}

package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/examgate/examgate-backend/internal/apperr"
	"github.com/examgate/examgate-backend/internal/model"
	"github.com/examgate/examgate-backend/internal/repository"
)

// QuestionService handles question pool management.
type QuestionService struct {
	questionRepo *repository.QuestionRepository
	subjectSvc   *SubjectService
}

// NewQuestionService creates a new QuestionService.
func NewQuestionService(questionRepo *repository.QuestionRepository, subjectSvc *SubjectService) *QuestionService {
	return &QuestionService{questionRepo: questionRepo, subjectSvc: subjectSvc}
}

// Create adds a question with its choices to an owned subject's chapter.
// At least one choice must be marked correct, otherwise the question could
// never be scored above zero.
func (s *QuestionService) Create(ctx context.Context, teacherID int, subjectID uuid.UUID, req *model.CreateQuestionRequest) (*model.Question, error) {
	if _, err := s.subjectSvc.GetOwned(ctx, subjectID, teacherID); err != nil {
		return nil, err
	}

	hasCorrect := false
	for _, c := range req.Choices {
		if c.IsCorrect {
			hasCorrect = true
			break
		}
	}
	if !hasCorrect {
		return nil, apperr.Validation("question needs at least one correct choice")
	}

	q := &model.Question{
		ID:        uuid.New(),
		SubjectID: subjectID,
		ChapterID: req.ChapterID,
		Content:   req.Content,
	}
	for _, c := range req.Choices {
		q.Choices = append(q.Choices, model.AnswerChoice{
			ID:         uuid.New(),
			QuestionID: q.ID,
			Label:      c.Label,
			Content:    c.Content,
			IsCorrect:  c.IsCorrect,
		})
	}

	if err := s.questionRepo.Create(ctx, q); err != nil {
		return nil, fmt.Errorf("create question: %w", err)
	}
	return q, nil
}

// GetOwned retrieves a question with choices and checks subject ownership.
func (s *QuestionService) GetOwned(ctx context.Context, teacherID int, id uuid.UUID) (*model.Question, error) {
	q, err := s.questionRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("question not found")
		}
		return nil, err
	}
	if _, err := s.subjectSvc.GetOwned(ctx, q.SubjectID, teacherID); err != nil {
		return nil, err
	}

	choices, err := s.questionRepo.ListChoices(ctx, id)
	if err != nil {
		return nil, err
	}
	q.Choices = choices
	return q, nil
}

// ListByChapter lists a chapter's questions for an owned subject.
func (s *QuestionService) ListByChapter(ctx context.Context, teacherID int, subjectID, chapterID uuid.UUID) ([]model.Question, error) {
	if _, err := s.subjectSvc.GetOwned(ctx, subjectID, teacherID); err != nil {
		return nil, err
	}
	questions, err := s.questionRepo.ListByChapter(ctx, chapterID)
	if err != nil {
		return nil, err
	}
	if questions == nil {
		questions = []model.Question{}
	}
	return questions, nil
}

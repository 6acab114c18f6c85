package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/examgate/examgate-backend/internal/apperr"
	"github.com/examgate/examgate-backend/internal/examset"
	"github.com/examgate/examgate-backend/internal/model"
)

type examStore interface {
	Create(ctx context.Context, e *model.Exam) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error)
	GetOwner(ctx context.Context, examID uuid.UUID) (int, error)
	Update(ctx context.Context, e *model.Exam) error
	ListBySubject(ctx context.Context, subjectID uuid.UUID) ([]model.Exam, error)
}

type examSetStore interface {
	CreateWithQuestions(ctx context.Context, set *model.ExamSet, questionIDs []uuid.UUID) error
	CreateShuffledVariants(ctx context.Context, examID uuid.UUID, orders [][]uuid.UUID) ([]model.ExamSet, error)
	ListByExam(ctx context.Context, examID uuid.UUID) ([]model.ExamSet, error)
	CanonicalQuestionIDs(ctx context.Context, examID uuid.UUID) ([]uuid.UUID, error)
	ListQuestions(ctx context.Context, examSetID uuid.UUID) ([]model.ExamSetQuestion, error)
}

type subjectOwnership interface {
	GetOwned(ctx context.Context, id uuid.UUID, teacherID int) (*model.Subject, error)
}

// ExamService handles exam definitions and their question sets.
type ExamService struct {
	exams    examStore
	sets     examSetStore
	subjects subjectOwnership
	builder  *examset.Builder
	log      zerolog.Logger
	now      func() time.Time
}

// NewExamService creates a new ExamService.
func NewExamService(
	exams examStore,
	sets examSetStore,
	subjects subjectOwnership,
	builder *examset.Builder,
	log zerolog.Logger,
) *ExamService {
	return &ExamService{
		exams:    exams,
		sets:     sets,
		subjects: subjects,
		builder:  builder,
		log:      log.With().Str("component", "exam_service").Logger(),
		now:      time.Now,
	}
}

// Create creates an exam and its canonical question set in one step. The
// set is sampled from the chapter distribution; a pool shortfall aborts the
// whole operation so no half-built exam is left behind.
func (s *ExamService) Create(ctx context.Context, teacherID int, req *model.CreateExamRequest) (*model.Exam, *model.ExamSet, error) {
	if _, err := s.subjects.GetOwned(ctx, req.SubjectID, teacherID); err != nil {
		return nil, nil, err
	}

	questionIDs, err := s.builder.BuildSet(ctx, req.SubjectID, req.Distribution, req.TotalQuestions)
	if err != nil {
		return nil, nil, err
	}

	now := s.now()
	exam := &model.Exam{
		ID:              uuid.New(),
		SubjectID:       req.SubjectID,
		Title:           req.Title,
		DurationMinutes: req.DurationMinutes,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.exams.Create(ctx, exam); err != nil {
		return nil, nil, fmt.Errorf("create exam: %w", err)
	}

	set := &model.ExamSet{
		ID:     uuid.New(),
		ExamID: exam.ID,
		Code:   model.CanonicalSetCode,
	}
	if err := s.sets.CreateWithQuestions(ctx, set, questionIDs); err != nil {
		return nil, nil, fmt.Errorf("create canonical set: %w", err)
	}

	s.log.Info().
		Str("exam_id", exam.ID.String()).
		Int("questions", len(questionIDs)).
		Msg("exam created with canonical set")

	return exam, set, nil
}

// GetOwned retrieves an exam and verifies ownership through its subject.
func (s *ExamService) GetOwned(ctx context.Context, teacherID int, id uuid.UUID) (*model.Exam, error) {
	exam, err := s.exams.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("exam not found")
		}
		return nil, err
	}
	owner, err := s.exams.GetOwner(ctx, id)
	if err != nil {
		return nil, err
	}
	if owner != teacherID {
		return nil, apperr.Forbidden("exam belongs to another teacher")
	}
	return exam, nil
}

// Update edits an exam's title and duration. Question membership stays
// untouched; sessions already pointing at the exam keep a stable set.
func (s *ExamService) Update(ctx context.Context, teacherID int, id uuid.UUID, req *model.UpdateExamRequest) (*model.Exam, error) {
	exam, err := s.GetOwned(ctx, teacherID, id)
	if err != nil {
		return nil, err
	}

	if req.Title != "" {
		exam.Title = req.Title
	}
	if req.DurationMinutes > 0 {
		exam.DurationMinutes = req.DurationMinutes
	}
	exam.UpdatedAt = s.now()

	if err := s.exams.Update(ctx, exam); err != nil {
		return nil, fmt.Errorf("update exam: %w", err)
	}
	return exam, nil
}

// ListBySubject lists an owned subject's exams.
func (s *ExamService) ListBySubject(ctx context.Context, teacherID int, subjectID uuid.UUID) ([]model.Exam, error) {
	if _, err := s.subjects.GetOwned(ctx, subjectID, teacherID); err != nil {
		return nil, err
	}
	exams, err := s.exams.ListBySubject(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	if exams == nil {
		exams = []model.Exam{}
	}
	return exams, nil
}

// GenerateShuffledSets derives count shuffled variants of the canonical
// set. Variants keep the exact question membership and only permute
// presentation order; codes continue from the current maximum.
func (s *ExamService) GenerateShuffledSets(ctx context.Context, teacherID int, examID uuid.UUID, count int) ([]model.ExamSet, error) {
	if _, err := s.GetOwned(ctx, teacherID, examID); err != nil {
		return nil, err
	}

	canonical, err := s.sets.CanonicalQuestionIDs(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("load canonical set: %w", err)
	}
	if len(canonical) == 0 {
		return nil, apperr.NotFound("exam has no canonical set")
	}

	orders := make([][]uuid.UUID, count)
	for i := range orders {
		orders[i] = s.builder.ShuffledCopy(canonical)
	}

	sets, err := s.sets.CreateShuffledVariants(ctx, examID, orders)
	if err != nil {
		return nil, fmt.Errorf("persist shuffled sets: %w", err)
	}

	s.log.Info().
		Str("exam_id", examID.String()).
		Int("count", len(sets)).
		Msg("shuffled variants generated")

	return sets, nil
}

// ListSets lists an owned exam's sets, canonical first.
func (s *ExamService) ListSets(ctx context.Context, teacherID int, examID uuid.UUID) ([]model.ExamSet, error) {
	if _, err := s.GetOwned(ctx, teacherID, examID); err != nil {
		return nil, err
	}
	sets, err := s.sets.ListByExam(ctx, examID)
	if err != nil {
		return nil, err
	}
	if sets == nil {
		sets = []model.ExamSet{}
	}
	return sets, nil
}

// ListSetQuestions returns a set's ordered question membership.
func (s *ExamService) ListSetQuestions(ctx context.Context, teacherID int, examID, setID uuid.UUID) ([]model.ExamSetQuestion, error) {
	if _, err := s.GetOwned(ctx, teacherID, examID); err != nil {
		return nil, err
	}
	return s.sets.ListQuestions(ctx, setID)
}

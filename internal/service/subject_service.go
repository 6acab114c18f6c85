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

// SubjectService handles subject and chapter management.
type SubjectService struct {
	subjectRepo *repository.SubjectRepository
}

// NewSubjectService creates a new SubjectService.
func NewSubjectService(subjectRepo *repository.SubjectRepository) *SubjectService {
	return &SubjectService{subjectRepo: subjectRepo}
}

// Create creates a subject owned by the teacher.
func (s *SubjectService) Create(ctx context.Context, teacherID int, req *model.CreateSubjectRequest) (*model.Subject, error) {
	subject := &model.Subject{
		ID:        uuid.New(),
		TeacherID: teacherID,
		Name:      req.Name,
		Code:      req.Code,
	}
	if err := s.subjectRepo.Create(ctx, subject); err != nil {
		return nil, fmt.Errorf("create subject: %w", err)
	}
	return subject, nil
}

// GetOwned retrieves a subject and verifies the teacher owns it.
func (s *SubjectService) GetOwned(ctx context.Context, id uuid.UUID, teacherID int) (*model.Subject, error) {
	subject, err := s.subjectRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("subject not found")
		}
		return nil, err
	}
	if subject.TeacherID != teacherID {
		return nil, apperr.Forbidden("subject belongs to another teacher")
	}
	return subject, nil
}

// ListByTeacher lists the teacher's subjects.
func (s *SubjectService) ListByTeacher(ctx context.Context, teacherID int) ([]model.Subject, error) {
	subjects, err := s.subjectRepo.ListByTeacher(ctx, teacherID)
	if err != nil {
		return nil, err
	}
	if subjects == nil {
		subjects = []model.Subject{}
	}
	return subjects, nil
}

// CreateChapter adds a chapter to an owned subject.
func (s *SubjectService) CreateChapter(ctx context.Context, teacherID int, subjectID uuid.UUID, req *model.CreateChapterRequest) (*model.Chapter, error) {
	if _, err := s.GetOwned(ctx, subjectID, teacherID); err != nil {
		return nil, err
	}

	chapter := &model.Chapter{
		ID:            uuid.New(),
		SubjectID:     subjectID,
		ChapterNumber: req.ChapterNumber,
		Name:          req.Name,
	}
	if err := s.subjectRepo.CreateChapter(ctx, chapter); err != nil {
		return nil, fmt.Errorf("create chapter: %w", err)
	}
	return chapter, nil
}

// ListChapters lists an owned subject's chapters.
func (s *SubjectService) ListChapters(ctx context.Context, teacherID int, subjectID uuid.UUID) ([]model.Chapter, error) {
	if _, err := s.GetOwned(ctx, subjectID, teacherID); err != nil {
		return nil, err
	}
	chapters, err := s.subjectRepo.ListChapters(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	if chapters == nil {
		chapters = []model.Chapter{}
	}
	return chapters, nil
}

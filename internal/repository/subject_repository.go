package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/examgate/examgate-backend/internal/model"
)

// SubjectRepository handles subject and chapter data access.
type SubjectRepository struct {
	pool *pgxpool.Pool
}

// NewSubjectRepository creates a new SubjectRepository.
func NewSubjectRepository(pool *pgxpool.Pool) *SubjectRepository {
	return &SubjectRepository{pool: pool}
}

// Create inserts a new subject owned by a teacher.
func (r *SubjectRepository) Create(ctx context.Context, s *model.Subject) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO subjects (teacher_id, name, code)
		 VALUES ($1, $2, $3)
		 RETURNING id`,
		s.TeacherID, s.Name, s.Code,
	).Scan(&s.ID)
}

// GetByID retrieves a subject.
func (r *SubjectRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Subject, error) {
	s := &model.Subject{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, teacher_id, name, code FROM subjects WHERE id = $1`, id,
	).Scan(&s.ID, &s.TeacherID, &s.Name, &s.Code)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// ListByTeacher lists subjects owned by the given teacher.
func (r *SubjectRepository) ListByTeacher(ctx context.Context, teacherID int) ([]model.Subject, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, teacher_id, name, code
		 FROM subjects
		 WHERE teacher_id = $1
		 ORDER BY name`, teacherID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subjects []model.Subject
	for rows.Next() {
		var s model.Subject
		if err := rows.Scan(&s.ID, &s.TeacherID, &s.Name, &s.Code); err != nil {
			return nil, err
		}
		subjects = append(subjects, s)
	}
	return subjects, rows.Err()
}

// CreateChapter inserts a chapter under a subject.
func (r *SubjectRepository) CreateChapter(ctx context.Context, ch *model.Chapter) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO chapters (subject_id, name, chapter_number)
		 VALUES ($1, $2, $3)
		 RETURNING id`,
		ch.SubjectID, ch.Name, ch.ChapterNumber,
	).Scan(&ch.ID)
}

// ListChapters lists chapters of a subject, ordered by chapter number.
func (r *SubjectRepository) ListChapters(ctx context.Context, subjectID uuid.UUID) ([]model.Chapter, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, subject_id, name, chapter_number
		 FROM chapters
		 WHERE subject_id = $1
		 ORDER BY chapter_number`, subjectID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chapters []model.Chapter
	for rows.Next() {
		var ch model.Chapter
		if err := rows.Scan(&ch.ID, &ch.SubjectID, &ch.Name, &ch.ChapterNumber); err != nil {
			return nil, err
		}
		chapters = append(chapters, ch)
	}
	return chapters, rows.Err()
}

package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/examgate/examgate-backend/internal/model"
)

// ExamRepository handles exam data access.
type ExamRepository struct {
	pool *pgxpool.Pool
}

// NewExamRepository creates a new ExamRepository.
func NewExamRepository(pool *pgxpool.Pool) *ExamRepository {
	return &ExamRepository{pool: pool}
}

// Create inserts a new exam.
func (r *ExamRepository) Create(ctx context.Context, e *model.Exam) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO exams (subject_id, title, duration_minutes)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at, updated_at`,
		e.SubjectID, e.Title, e.DurationMinutes,
	).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
}

// GetByID retrieves an exam.
func (r *ExamRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	e := &model.Exam{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, subject_id, title, duration_minutes, created_at, updated_at
		 FROM exams
		 WHERE id = $1`, id,
	).Scan(&e.ID, &e.SubjectID, &e.Title, &e.DurationMinutes, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// GetOwner returns the teacher id owning the exam, through its subject.
func (r *ExamRepository) GetOwner(ctx context.Context, examID uuid.UUID) (int, error) {
	var teacherID int
	err := r.pool.QueryRow(ctx,
		`SELECT s.teacher_id
		 FROM exams e
		 JOIN subjects s ON e.subject_id = s.id
		 WHERE e.id = $1`, examID,
	).Scan(&teacherID)
	return teacherID, err
}

// Update edits an exam's title/duration. Question membership never changes
// through this path.
func (r *ExamRepository) Update(ctx context.Context, e *model.Exam) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE exams
		 SET title = $1, duration_minutes = $2, updated_at = NOW()
		 WHERE id = $3`,
		e.Title, e.DurationMinutes, e.ID)
	return err
}

// ListBySubject lists exams of one subject.
func (r *ExamRepository) ListBySubject(ctx context.Context, subjectID uuid.UUID) ([]model.Exam, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, subject_id, title, duration_minutes, created_at, updated_at
		 FROM exams
		 WHERE subject_id = $1
		 ORDER BY created_at DESC`, subjectID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var exams []model.Exam
	for rows.Next() {
		var e model.Exam
		if err := rows.Scan(&e.ID, &e.SubjectID, &e.Title, &e.DurationMinutes, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		exams = append(exams, e)
	}
	return exams, rows.Err()
}

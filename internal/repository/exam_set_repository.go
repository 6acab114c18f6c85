package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/examgate/examgate-backend/internal/model"
)

// ExamSetRepository handles exam set and set membership data access.
type ExamSetRepository struct {
	pool *pgxpool.Pool
}

// NewExamSetRepository creates a new ExamSetRepository.
func NewExamSetRepository(pool *pgxpool.Pool) *ExamSetRepository {
	return &ExamSetRepository{pool: pool}
}

// CreateWithQuestions inserts a set and its ordered membership in one
// transaction. Order indexes are assigned 1-based from the slice order.
func (r *ExamSetRepository) CreateWithQuestions(ctx context.Context, set *model.ExamSet, questionIDs []uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := insertSet(ctx, tx, set, questionIDs); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// CreateShuffledVariants inserts count new sets for the exam in one
// transaction, one per ordering in orders, with codes continuing after the
// exam's current maximum. Codes are never reused even after deletion
// because the max is taken over a monotonically increasing sequence.
func (r *ExamSetRepository) CreateShuffledVariants(ctx context.Context, examID uuid.UUID, orders [][]uuid.UUID) ([]model.ExamSet, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	// Lock the exam row so two concurrent generations cannot pick the same
	// starting code.
	var maxCode int
	err = tx.QueryRow(ctx,
		`SELECT COALESCE(MAX(code), 0)
		 FROM exam_sets
		 WHERE exam_id = (SELECT id FROM exams WHERE id = $1 FOR UPDATE)`,
		examID,
	).Scan(&maxCode)
	if err != nil {
		return nil, fmt.Errorf("max code: %w", err)
	}

	sets := make([]model.ExamSet, 0, len(orders))
	for i, order := range orders {
		set := model.ExamSet{ExamID: examID, Code: maxCode + i + 1}
		if err := insertSet(ctx, tx, &set, order); err != nil {
			return nil, err
		}
		sets = append(sets, set)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return sets, nil
}

func insertSet(ctx context.Context, tx pgx.Tx, set *model.ExamSet, questionIDs []uuid.UUID) error {
	err := tx.QueryRow(ctx,
		`INSERT INTO exam_sets (exam_id, code)
		 VALUES ($1, $2)
		 RETURNING id, created_at`,
		set.ExamID, set.Code,
	).Scan(&set.ID, &set.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert set code %d: %w", set.Code, err)
	}

	for i, qID := range questionIDs {
		_, err := tx.Exec(ctx,
			`INSERT INTO exam_set_questions (exam_set_id, question_id, order_index)
			 VALUES ($1, $2, $3)`,
			set.ID, qID, i+1)
		if err != nil {
			return fmt.Errorf("insert set question %d: %w", i+1, err)
		}
	}
	return nil
}

// GetByID retrieves a set.
func (r *ExamSetRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.ExamSet, error) {
	set := &model.ExamSet{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, exam_id, code, created_at FROM exam_sets WHERE id = $1`, id,
	).Scan(&set.ID, &set.ExamID, &set.Code, &set.CreatedAt)
	if err != nil {
		return nil, err
	}
	return set, nil
}

// ListByExam lists an exam's sets ordered by code.
func (r *ExamSetRepository) ListByExam(ctx context.Context, examID uuid.UUID) ([]model.ExamSet, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, exam_id, code, created_at
		 FROM exam_sets
		 WHERE exam_id = $1
		 ORDER BY code`, examID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sets []model.ExamSet
	for rows.Next() {
		var s model.ExamSet
		if err := rows.Scan(&s.ID, &s.ExamID, &s.Code, &s.CreatedAt); err != nil {
			return nil, err
		}
		sets = append(sets, s)
	}
	return sets, rows.Err()
}

// CanonicalQuestionIDs returns the canonical set's question ids in order.
func (r *ExamSetRepository) CanonicalQuestionIDs(ctx context.Context, examID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT esq.question_id
		 FROM exam_set_questions esq
		 JOIN exam_sets es ON esq.exam_set_id = es.id
		 WHERE es.exam_id = $1 AND es.code = $2
		 ORDER BY esq.order_index`,
		examID, model.CanonicalSetCode,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListQuestions returns a set's ordered membership.
func (r *ExamSetRepository) ListQuestions(ctx context.Context, examSetID uuid.UUID) ([]model.ExamSetQuestion, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT exam_set_id, question_id, order_index
		 FROM exam_set_questions
		 WHERE exam_set_id = $1
		 ORDER BY order_index`, examSetID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []model.ExamSetQuestion
	for rows.Next() {
		var m model.ExamSetQuestion
		if err := rows.Scan(&m.ExamSetID, &m.QuestionID, &m.OrderIndex); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// ContainsQuestion reports whether the question belongs to the set.
func (r *ExamSetRepository) ContainsQuestion(ctx context.Context, examSetID, questionID uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (
		   SELECT 1 FROM exam_set_questions
		   WHERE exam_set_id = $1 AND question_id = $2
		 )`, examSetID, questionID,
	).Scan(&exists)
	return exists, err
}

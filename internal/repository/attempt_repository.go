package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/examgate/examgate-backend/internal/model"
)

// AttemptMonitorRow combines an attempt with student identity and violation
// count for the proctor's live session view.
type AttemptMonitorRow struct {
	AttemptID      uuid.UUID           `json:"attempt_id"`
	StudentID      int                 `json:"student_id"`
	StudentName    string              `json:"student_name"`
	Status         model.AttemptStatus `json:"status"`
	StartedAt      time.Time           `json:"started_at"`
	SubmittedAt    *time.Time          `json:"submitted_at,omitempty"`
	Score          *float64            `json:"score,omitempty"`
	ViolationCount int                 `json:"violation_count"`
}

// AttemptRepository handles attempt and answer data access. The partial
// unique index attempts_one_active_key backs the single-active-attempt
// invariant; Create leans on it instead of read-then-write.
type AttemptRepository struct {
	pool *pgxpool.Pool
}

// NewAttemptRepository creates a new AttemptRepository.
func NewAttemptRepository(pool *pgxpool.Pool) *AttemptRepository {
	return &AttemptRepository{pool: pool}
}

const attemptColumns = `id, session_id, student_id, exam_set_id, status, started_at, submitted_at, score`

func scanAttempt(row pgx.Row) (*model.Attempt, error) {
	a := &model.Attempt{}
	err := row.Scan(&a.ID, &a.SessionID, &a.StudentID, &a.ExamSetID, &a.Status, &a.StartedAt, &a.SubmittedAt, &a.Score)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// Create inserts a fresh in-progress attempt. When a non-final attempt for
// the pair already exists the partial unique index rejects the insert, no
// row is returned, and the caller gets pgx.ErrNoRows to trigger a refetch.
func (r *AttemptRepository) Create(ctx context.Context, a *model.Attempt) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO attempts (session_id, student_id, exam_set_id, status, started_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (session_id, student_id) WHERE status NOT IN ('submitted', 'locked')
		 DO NOTHING
		 RETURNING id`,
		a.SessionID, a.StudentID, a.ExamSetID, model.AttemptStatusInProgress, a.StartedAt,
	).Scan(&a.ID)
}

// GetActive retrieves the pair's non-final attempt, if any.
func (r *AttemptRepository) GetActive(ctx context.Context, sessionID uuid.UUID, studentID int) (*model.Attempt, error) {
	return scanAttempt(r.pool.QueryRow(ctx,
		`SELECT `+attemptColumns+`
		 FROM attempts
		 WHERE session_id = $1 AND student_id = $2
		   AND status NOT IN ('submitted', 'locked')`,
		sessionID, studentID))
}

// GetLatest retrieves the pair's most recent attempt regardless of status.
func (r *AttemptRepository) GetLatest(ctx context.Context, sessionID uuid.UUID, studentID int) (*model.Attempt, error) {
	return scanAttempt(r.pool.QueryRow(ctx,
		`SELECT `+attemptColumns+`
		 FROM attempts
		 WHERE session_id = $1 AND student_id = $2
		 ORDER BY started_at DESC
		 LIMIT 1`,
		sessionID, studentID))
}

// GetByID retrieves an attempt.
func (r *AttemptRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Attempt, error) {
	return scanAttempt(r.pool.QueryRow(ctx,
		`SELECT `+attemptColumns+` FROM attempts WHERE id = $1`, id))
}

// GetByIDForStudent retrieves an attempt scoped to its owner. Absent and
// not-yours both come back as pgx.ErrNoRows.
func (r *AttemptRepository) GetByIDForStudent(ctx context.Context, id uuid.UUID, studentID int) (*model.Attempt, error) {
	return scanAttempt(r.pool.QueryRow(ctx,
		`SELECT `+attemptColumns+`
		 FROM attempts
		 WHERE id = $1 AND student_id = $2`, id, studentID))
}

// MarkSubmitted finalizes an in-progress attempt with its score. The status
// predicate is the compare-and-swap that serializes Submit against Lock:
// exactly one wins, the loser sees zero rows.
func (r *AttemptRepository) MarkSubmitted(ctx context.Context, id uuid.UUID, score float64, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE attempts
		 SET status = $1, score = $2, submitted_at = $3
		 WHERE id = $4 AND status = $5`,
		model.AttemptStatusSubmitted, score, now,
		id, model.AttemptStatusInProgress)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// MarkLocked freezes a non-final attempt. Same CAS discipline as
// MarkSubmitted.
func (r *AttemptRepository) MarkLocked(ctx context.Context, id uuid.UUID) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE attempts
		 SET status = $1
		 WHERE id = $2 AND status NOT IN ($3, $4)`,
		model.AttemptStatusLocked, id,
		model.AttemptStatusSubmitted, model.AttemptStatusLocked)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// SetLockedScore stores an "as-is" score on a locked attempt.
func (r *AttemptRepository) SetLockedScore(ctx context.Context, id uuid.UUID, score float64) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE attempts
		 SET score = $1
		 WHERE id = $2 AND status = $3`,
		score, id, model.AttemptStatusLocked)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ReplaceAnswer stores a single-select choice: any previous choice for the
// question is dropped, the new one wins.
func (r *AttemptRepository) ReplaceAnswer(ctx context.Context, ans *model.AttemptAnswer) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`DELETE FROM attempt_answers WHERE attempt_id = $1 AND question_id = $2`,
		ans.AttemptID, ans.QuestionID)
	if err != nil {
		return fmt.Errorf("clear previous choice: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO attempt_answers (attempt_id, question_id, answer_id)
		 VALUES ($1, $2, $3)`,
		ans.AttemptID, ans.QuestionID, ans.AnswerID)
	if err != nil {
		return fmt.Errorf("insert choice: %w", err)
	}

	return tx.Commit(ctx)
}

// AddAnswer stores one additional choice for a multi-select question.
// Re-adding the same choice is a no-op.
func (r *AttemptRepository) AddAnswer(ctx context.Context, ans *model.AttemptAnswer) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO attempt_answers (attempt_id, question_id, answer_id)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (attempt_id, question_id, answer_id) DO NOTHING`,
		ans.AttemptID, ans.QuestionID, ans.AnswerID)
	return err
}

// DeleteAnswers removes every stored choice for the question and returns
// how many rows went away.
func (r *AttemptRepository) DeleteAnswers(ctx context.Context, attemptID, questionID uuid.UUID) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM attempt_answers WHERE attempt_id = $1 AND question_id = $2`,
		attemptID, questionID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// AnswersByQuestion returns the attempt's stored choices grouped by
// question, the shape the scoring engine consumes.
func (r *AttemptRepository) AnswersByQuestion(ctx context.Context, attemptID uuid.UUID) (map[uuid.UUID][]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT question_id, answer_id
		 FROM attempt_answers
		 WHERE attempt_id = $1`, attemptID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	chosen := make(map[uuid.UUID][]uuid.UUID)
	for rows.Next() {
		var qID, aID uuid.UUID
		if err := rows.Scan(&qID, &aID); err != nil {
			return nil, err
		}
		chosen[qID] = append(chosen[qID], aID)
	}
	return chosen, rows.Err()
}

// ListByStudent lists the student's attempt history, newest first.
func (r *AttemptRepository) ListByStudent(ctx context.Context, studentID int) ([]model.Attempt, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+attemptColumns+`
		 FROM attempts
		 WHERE student_id = $1
		 ORDER BY started_at DESC`, studentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []model.Attempt
	for rows.Next() {
		var a model.Attempt
		if err := rows.Scan(&a.ID, &a.SessionID, &a.StudentID, &a.ExamSetID, &a.Status, &a.StartedAt, &a.SubmittedAt, &a.Score); err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

// ListMonitorRows lists a session's attempts with student names and
// violation counts for the proctor view.
func (r *AttemptRepository) ListMonitorRows(ctx context.Context, sessionID uuid.UUID) ([]AttemptMonitorRow, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT a.id, a.student_id, u.full_name, a.status, a.started_at, a.submitted_at, a.score,
		        COUNT(v.id) AS violation_count
		 FROM attempts a
		 JOIN users u ON a.student_id = u.id
		 LEFT JOIN violation_logs v ON v.attempt_id = a.id
		 WHERE a.session_id = $1
		 GROUP BY a.id, a.student_id, u.full_name, a.status, a.started_at, a.submitted_at, a.score
		 ORDER BY u.full_name`, sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []AttemptMonitorRow
	for rows.Next() {
		var row AttemptMonitorRow
		if err := rows.Scan(&row.AttemptID, &row.StudentID, &row.StudentName, &row.Status,
			&row.StartedAt, &row.SubmittedAt, &row.Score, &row.ViolationCount); err != nil {
			return nil, err
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/examgate/examgate-backend/internal/model"
)

// SessionRepository handles exam session data access, including the bulk
// reconciliation primitive the status tick relies on.
type SessionRepository struct {
	pool *pgxpool.Pool
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

const sessionColumns = `id, exam_id, start_at, end_at, access_code, status, proctor_id, created_at`

func scanSession(row pgx.Row) (*model.ExamSession, error) {
	s := &model.ExamSession{}
	err := row.Scan(&s.ID, &s.ExamID, &s.StartAt, &s.EndAt, &s.AccessCode, &s.Status, &s.ProctorID, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Create inserts a new scheduled session.
func (r *SessionRepository) Create(ctx context.Context, s *model.ExamSession) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO exam_sessions (exam_id, start_at, end_at, access_code, status)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at`,
		s.ExamID, s.StartAt, s.EndAt, s.AccessCode, model.SessionStatusScheduled,
	).Scan(&s.ID, &s.CreatedAt)
}

// GetByID retrieves a session.
func (r *SessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.ExamSession, error) {
	return scanSession(r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM exam_sessions WHERE id = $1`, id))
}

// GetByAccessCode retrieves a session by its access code.
func (r *SessionRepository) GetByAccessCode(ctx context.Context, accessCode string) (*model.ExamSession, error) {
	return scanSession(r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM exam_sessions WHERE access_code = $1`, accessCode))
}

// ListByTeacher lists sessions for exams owned by the teacher.
func (r *SessionRepository) ListByTeacher(ctx context.Context, teacherID int) ([]model.ExamSession, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT se.id, se.exam_id, se.start_at, se.end_at, se.access_code, se.status, se.proctor_id, se.created_at
		 FROM exam_sessions se
		 JOIN exams e ON se.exam_id = e.id
		 JOIN subjects s ON e.subject_id = s.id
		 WHERE s.teacher_id = $1
		 ORDER BY se.start_at DESC`, teacherID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectSessions(rows)
}

// ListByProctor lists sessions currently assigned to the proctor.
func (r *SessionRepository) ListByProctor(ctx context.Context, proctorID int) ([]model.ExamSession, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT se.id, se.exam_id, se.start_at, se.end_at, se.access_code, se.status, se.proctor_id, se.created_at
		 FROM exam_sessions se
		 JOIN proctor_assignments pa ON pa.session_id = se.id
		 WHERE pa.proctor_id = $1
		 ORDER BY se.start_at DESC`, proctorID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectSessions(rows)
}

func collectSessions(rows pgx.Rows) ([]model.ExamSession, error) {
	var sessions []model.ExamSession
	for rows.Next() {
		var s model.ExamSession
		if err := rows.Scan(&s.ID, &s.ExamID, &s.StartAt, &s.EndAt, &s.AccessCode, &s.Status, &s.ProctorID, &s.CreatedAt); err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// UpdateWindow reschedules a session.
func (r *SessionRepository) UpdateWindow(ctx context.Context, id uuid.UUID, startAt, endAt time.Time) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE exam_sessions SET start_at = $1, end_at = $2 WHERE id = $3`,
		startAt, endAt, id)
	return err
}

// Cancel marks the session cancelled unless its window contains now.
// Returns the number of rows changed; 0 means the guard rejected it.
func (r *SessionRepository) Cancel(ctx context.Context, id uuid.UUID, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE exam_sessions
		 SET status = $1
		 WHERE id = $2
		   AND status IN ($3, $4)
		   AND NOT (start_at <= $5 AND $5 <= end_at)`,
		model.SessionStatusCancelled, id,
		model.SessionStatusScheduled, model.SessionStatusOngoing, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// Delete removes a session only when it has no attempts and now is outside
// its window. Returns the number of rows deleted.
func (r *SessionRepository) Delete(ctx context.Context, id uuid.UUID, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM exam_sessions
		 WHERE id = $1
		   AND NOT (start_at <= $2 AND $2 <= end_at)
		   AND NOT EXISTS (SELECT 1 FROM attempts a WHERE a.session_id = $1)`,
		id, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// HasAttempts reports whether any attempt references the session.
func (r *SessionRepository) HasAttempts(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM attempts WHERE session_id = $1)`, id,
	).Scan(&exists)
	return exists, err
}

// ReconcileWindows advances session statuses against the wall clock as two
// bulk conditional updates. It is idempotent: re-running with the same now
// changes nothing, and racing a concurrent run is safe because each UPDATE
// re-checks its predicate row by row.
func (r *SessionRepository) ReconcileWindows(ctx context.Context, now time.Time) (int64, error) {
	var changed int64

	tag, err := r.pool.Exec(ctx,
		`UPDATE exam_sessions
		 SET status = $1
		 WHERE status = $2 AND start_at <= $3 AND end_at >= $3`,
		model.SessionStatusOngoing, model.SessionStatusScheduled, now)
	if err != nil {
		return changed, err
	}
	changed += tag.RowsAffected()

	tag, err = r.pool.Exec(ctx,
		`UPDATE exam_sessions
		 SET status = $1
		 WHERE status IN ($2, $3) AND end_at < $4`,
		model.SessionStatusCompleted,
		model.SessionStatusScheduled, model.SessionStatusOngoing, now)
	if err != nil {
		return changed, err
	}
	changed += tag.RowsAffected()

	return changed, nil
}

package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/examgate/examgate-backend/internal/apperr"
	"github.com/examgate/examgate-backend/internal/model"
)

// ProctorRepository handles proctor assignments and violation logs.
type ProctorRepository struct {
	pool *pgxpool.Pool
}

// NewProctorRepository creates a new ProctorRepository.
func NewProctorRepository(pool *pgxpool.Pool) *ProctorRepository {
	return &ProctorRepository{pool: pool}
}

// GetAssignment retrieves the session's current assignment, if any.
func (r *ProctorRepository) GetAssignment(ctx context.Context, sessionID uuid.UUID) (*model.ProctorAssignment, error) {
	pa := &model.ProctorAssignment{}
	err := r.pool.QueryRow(ctx,
		`SELECT session_id, proctor_id, assigned_at
		 FROM proctor_assignments
		 WHERE session_id = $1`, sessionID,
	).Scan(&pa.SessionID, &pa.ProctorID, &pa.AssignedAt)
	if err != nil {
		return nil, err
	}
	return pa, nil
}

// Replace upserts the session's assignment after re-checking, inside the
// same transaction, that the proctor is not already booked on a session
// whose window overlaps this one. The service does a first check outside
// the transaction; this second one closes the race between two concurrent
// assigns. Overlap is half-open so back-to-back sessions do not collide.
func (r *ProctorRepository) Replace(ctx context.Context, pa *model.ProctorAssignment) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	// Serialize concurrent assigns for the same proctor. Row locks cannot
	// do this when the proctor has no assignment rows yet: two transactions
	// would each see an empty overlap result, lock nothing, and insert
	// assignments for different sessions. The advisory lock is released at
	// commit or rollback.
	_, err = tx.Exec(ctx,
		`SELECT pg_advisory_xact_lock(hashtext('proctor_assignment'), $1)`,
		pa.ProctorID)
	if err != nil {
		return fmt.Errorf("lock proctor: %w", err)
	}

	var conflicting uuid.UUID
	err = tx.QueryRow(ctx,
		`SELECT s.id
		 FROM proctor_assignments pa
		 JOIN exam_sessions s ON pa.session_id = s.id
		 JOIN exam_sessions target ON target.id = $1
		 WHERE pa.proctor_id = $2
		   AND pa.session_id <> $1
		   AND s.status <> 'cancelled'
		   AND s.start_at < target.end_at
		   AND target.start_at < s.end_at
		 LIMIT 1`,
		pa.SessionID, pa.ProctorID,
	).Scan(&conflicting)
	if err == nil {
		return &apperr.AssignmentConflictError{ConflictingSessionID: conflicting}
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("overlap check: %w", err)
	}

	err = tx.QueryRow(ctx,
		`INSERT INTO proctor_assignments (session_id, proctor_id, assigned_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (session_id)
		 DO UPDATE SET proctor_id = EXCLUDED.proctor_id, assigned_at = EXCLUDED.assigned_at
		 RETURNING assigned_at`,
		pa.SessionID, pa.ProctorID, pa.AssignedAt,
	).Scan(&pa.AssignedAt)
	if err != nil {
		return fmt.Errorf("upsert assignment: %w", err)
	}

	_, err = tx.Exec(ctx,
		`UPDATE exam_sessions SET proctor_id = $1 WHERE id = $2`,
		pa.ProctorID, pa.SessionID)
	if err != nil {
		return fmt.Errorf("sync session proctor: %w", err)
	}

	return tx.Commit(ctx)
}

// Unassign removes the session's assignment and returns whether one
// existed.
func (r *ProctorRepository) Unassign(ctx context.Context, sessionID uuid.UUID) (int64, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`DELETE FROM proctor_assignments WHERE session_id = $1`, sessionID)
	if err != nil {
		return 0, err
	}

	_, err = tx.Exec(ctx,
		`UPDATE exam_sessions SET proctor_id = NULL WHERE id = $1`, sessionID)
	if err != nil {
		return 0, fmt.Errorf("sync session proctor: %w", err)
	}

	return tag.RowsAffected(), tx.Commit(ctx)
}

// InsertViolation records a single violation.
func (r *ProctorRepository) InsertViolation(ctx context.Context, v *model.ViolationLog) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO violation_logs (attempt_id, proctor_id, violation_type, description, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id`,
		v.AttemptID, v.ProctorID, v.Type, v.Description, v.CreatedAt,
	).Scan(&v.ID)
}

// BulkInsertViolations persists a drained batch from the violation queue in
// one round trip.
func (r *ProctorRepository) BulkInsertViolations(ctx context.Context, logs []model.ViolationLog) error {
	if len(logs) == 0 {
		return nil
	}

	attemptIDs := make([]uuid.UUID, len(logs))
	proctorIDs := make([]*int, len(logs))
	types := make([]string, len(logs))
	descriptions := make([]string, len(logs))
	createdAts := make([]time.Time, len(logs))
	for i, v := range logs {
		attemptIDs[i] = v.AttemptID
		proctorIDs[i] = v.ProctorID
		types[i] = string(v.Type)
		descriptions[i] = v.Description
		createdAts[i] = v.CreatedAt
	}

	_, err := r.pool.Exec(ctx,
		`INSERT INTO violation_logs (attempt_id, proctor_id, violation_type, description, created_at)
		 SELECT * FROM UNNEST($1::uuid[], $2::int[], $3::text[], $4::text[], $5::timestamptz[])`,
		attemptIDs, proctorIDs, types, descriptions, createdAts)
	return err
}

// ListViolationsByAttempt lists an attempt's violations, oldest first.
func (r *ProctorRepository) ListViolationsByAttempt(ctx context.Context, attemptID uuid.UUID) ([]model.ViolationLog, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, attempt_id, proctor_id, violation_type, description, created_at
		 FROM violation_logs
		 WHERE attempt_id = $1
		 ORDER BY created_at`, attemptID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectViolations(rows)
}

// ListViolationsBySession lists every violation across the session's
// attempts, newest first.
func (r *ProctorRepository) ListViolationsBySession(ctx context.Context, sessionID uuid.UUID) ([]model.ViolationLog, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT v.id, v.attempt_id, v.proctor_id, v.violation_type, v.description, v.created_at
		 FROM violation_logs v
		 JOIN attempts a ON v.attempt_id = a.id
		 WHERE a.session_id = $1
		 ORDER BY v.created_at DESC`, sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectViolations(rows)
}

func collectViolations(rows pgx.Rows) ([]model.ViolationLog, error) {
	var logs []model.ViolationLog
	for rows.Next() {
		var v model.ViolationLog
		if err := rows.Scan(&v.ID, &v.AttemptID, &v.ProctorID, &v.Type, &v.Description, &v.CreatedAt); err != nil {
			return nil, err
		}
		logs = append(logs, v)
	}
	return logs, rows.Err()
}

package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/examgate/examgate-backend/internal/apperr"
	"github.com/examgate/examgate-backend/internal/config"
	"github.com/examgate/examgate-backend/internal/model"
	"github.com/examgate/examgate-backend/internal/repository"
	"github.com/examgate/examgate-backend/internal/scoring"
)

type assignmentStore interface {
	GetAssignment(ctx context.Context, sessionID uuid.UUID) (*model.ProctorAssignment, error)
	Replace(ctx context.Context, pa *model.ProctorAssignment) error
	Unassign(ctx context.Context, sessionID uuid.UUID) (int64, error)
	InsertViolation(ctx context.Context, v *model.ViolationLog) error
	ListViolationsByAttempt(ctx context.Context, attemptID uuid.UUID) ([]model.ViolationLog, error)
	ListViolationsBySession(ctx context.Context, sessionID uuid.UUID) ([]model.ViolationLog, error)
}

type proctorAttemptStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Attempt, error)
	MarkLocked(ctx context.Context, id uuid.UUID) (int64, error)
	SetLockedScore(ctx context.Context, id uuid.UUID, score float64) (int64, error)
	AnswersByQuestion(ctx context.Context, attemptID uuid.UUID) (map[uuid.UUID][]uuid.UUID, error)
	ListMonitorRows(ctx context.Context, sessionID uuid.UUID) ([]repository.AttemptMonitorRow, error)
}

type proctorDirectory interface {
	GetByID(ctx context.Context, id int) (*model.User, error)
	ListProctorEligible(ctx context.Context) ([]model.User, error)
}

type sessionTeacherView interface {
	GetForTeacher(ctx context.Context, teacherID int, id uuid.UUID) (*model.ExamSession, error)
}

type keySource interface {
	SetQuestionKeys(ctx context.Context, examSetID uuid.UUID) ([]scoring.QuestionKey, error)
}

// ProctorService handles proctor assignment, the live violation trail and
// attempt locking.
type ProctorService struct {
	assignments assignmentStore
	attempts    proctorAttemptStore
	users       proctorDirectory
	sessions    sessionTeacherView
	keys        keySource
	events      eventPublisher
	rdb         *redis.Client
	log         zerolog.Logger
	now         func() time.Time
}

// NewProctorService creates a new ProctorService.
func NewProctorService(
	assignments assignmentStore,
	attempts proctorAttemptStore,
	users proctorDirectory,
	sessions sessionTeacherView,
	keys keySource,
	events eventPublisher,
	rdb *redis.Client,
	log zerolog.Logger,
) *ProctorService {
	return &ProctorService{
		assignments: assignments,
		attempts:    attempts,
		users:       users,
		sessions:    sessions,
		keys:        keys,
		events:      events,
		rdb:         rdb,
		log:         log.With().Str("component", "proctor_service").Logger(),
		now:         time.Now,
	}
}

// Assign binds a proctor to a teacher's session, replacing any previous
// assignment. Rejected when the user cannot proctor, when the session is
// already final, or when the proctor is double-booked on an overlapping
// window; the overlap re-check runs inside the store transaction so two
// concurrent assigns cannot both slip through.
func (s *ProctorService) Assign(ctx context.Context, teacherID int, sessionID uuid.UUID, proctorID int) (*model.ProctorAssignment, error) {
	session, err := s.sessions.GetForTeacher(ctx, teacherID, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status == model.SessionStatusCompleted || session.Status == model.SessionStatusCancelled {
		return nil, apperr.Conflict("session is already %s", session.Status)
	}

	proctor, err := s.users.GetByID(ctx, proctorID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("proctor not found")
		}
		return nil, err
	}
	if !proctor.Active || !proctor.RoleSet().ProctorEligible() {
		return nil, apperr.Validation("user %d cannot proctor sessions", proctorID)
	}

	pa := &model.ProctorAssignment{
		SessionID:  sessionID,
		ProctorID:  proctorID,
		AssignedAt: s.now(),
	}
	if err := s.assignments.Replace(ctx, pa); err != nil {
		var conflict *apperr.AssignmentConflictError
		if errors.As(err, &conflict) {
			return nil, conflict
		}
		return nil, fmt.Errorf("assign proctor: %w", err)
	}

	s.log.Info().
		Str("session_id", sessionID.String()).
		Int("proctor_id", proctorID).
		Msg("proctor assigned")

	return pa, nil
}

// Unassign removes the session's proctor.
func (s *ProctorService) Unassign(ctx context.Context, teacherID int, sessionID uuid.UUID) error {
	if _, err := s.sessions.GetForTeacher(ctx, teacherID, sessionID); err != nil {
		return err
	}
	affected, err := s.assignments.Unassign(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("unassign proctor: %w", err)
	}
	if affected == 0 {
		return apperr.NotFound("session has no proctor assigned")
	}
	return nil
}

// ListEligible lists active users who may proctor sessions.
func (s *ProctorService) ListEligible(ctx context.Context) ([]model.User, error) {
	users, err := s.users.ListProctorEligible(ctx)
	if err != nil {
		return nil, err
	}
	if users == nil {
		users = []model.User{}
	}
	return users, nil
}

// requireAssigned verifies the proctor holds the session's assignment.
func (s *ProctorService) requireAssigned(ctx context.Context, proctorID int, sessionID uuid.UUID) error {
	pa, err := s.assignments.GetAssignment(ctx, sessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperr.Forbidden("you are not assigned to this session")
		}
		return err
	}
	if pa.ProctorID != proctorID {
		return apperr.Forbidden("you are not assigned to this session")
	}
	return nil
}

// Monitor returns the session's attempts with student names and violation
// counts, the snapshot behind the live dashboard.
func (s *ProctorService) Monitor(ctx context.Context, proctorID int, sessionID uuid.UUID) ([]repository.AttemptMonitorRow, error) {
	if err := s.requireAssigned(ctx, proctorID, sessionID); err != nil {
		return nil, err
	}
	rows, err := s.attempts.ListMonitorRows(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []repository.AttemptMonitorRow{}
	}
	return rows, nil
}

// RecordViolation writes a proctor-observed violation straight to the log
// and pushes it to the live channel.
func (s *ProctorService) RecordViolation(ctx context.Context, proctorID int, req *model.RecordViolationRequest) (*model.ViolationLog, error) {
	attempt, err := s.attempts.GetByID(ctx, req.AttemptID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("attempt not found")
		}
		return nil, err
	}
	if err := s.requireAssigned(ctx, proctorID, attempt.SessionID); err != nil {
		return nil, err
	}

	v := &model.ViolationLog{
		AttemptID:   req.AttemptID,
		ProctorID:   &proctorID,
		Type:        model.ViolationType(req.Type),
		Description: req.Description,
		CreatedAt:   s.now(),
	}
	if err := s.assignments.InsertViolation(ctx, v); err != nil {
		return nil, fmt.Errorf("record violation: %w", err)
	}

	s.events.Publish(ctx, MonitorEvent{
		Type:      MonitorEventViolation,
		SessionID: attempt.SessionID,
		AttemptID: attempt.ID,
		StudentID: attempt.StudentID,
		Detail:    req.Type,
		At:        v.CreatedAt,
	})

	return v, nil
}

// ReportViolation ingests a client-reported event (tab switch, focus loss)
// from the student's own device. The write is queued in Redis and persisted
// in batches by the violation worker, keeping the hot path off Postgres.
func (s *ProctorService) ReportViolation(ctx context.Context, studentID int, attemptID uuid.UUID, vtype model.ViolationType) error {
	attempt, err := s.attempts.GetByID(ctx, attemptID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperr.NotFound("attempt not found")
		}
		return err
	}
	if attempt.StudentID != studentID {
		return apperr.Forbidden("attempt belongs to another student")
	}
	if attempt.Status.IsFinal() {
		return apperr.Conflict("attempt is already final")
	}

	v := model.ViolationLog{
		AttemptID:   attemptID,
		Type:        vtype,
		Description: "client reported",
		CreatedAt:   s.now(),
	}
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal violation: %w", err)
	}
	if err := s.rdb.LPush(ctx, config.WorkerKey.PersistViolationsQueue, payload).Err(); err != nil {
		return fmt.Errorf("enqueue violation: %w", err)
	}

	s.events.Publish(ctx, MonitorEvent{
		Type:      MonitorEventViolation,
		SessionID: attempt.SessionID,
		AttemptID: attemptID,
		StudentID: studentID,
		Detail:    string(vtype),
		At:        v.CreatedAt,
	})

	return nil
}

// LockAttempt freezes a student's non-final attempt and records why. The
// flip is a compare-and-swap, so a lock racing a submit has exactly one
// winner.
func (s *ProctorService) LockAttempt(ctx context.Context, proctorID int, req *model.LockAttemptRequest) error {
	attempt, err := s.attempts.GetByID(ctx, req.AttemptID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperr.NotFound("attempt not found")
		}
		return err
	}
	if err := s.requireAssigned(ctx, proctorID, attempt.SessionID); err != nil {
		return err
	}
	if attempt.Status.IsFinal() {
		return apperr.Conflict("attempt is already %s", attempt.Status)
	}

	affected, err := s.attempts.MarkLocked(ctx, req.AttemptID)
	if err != nil {
		return fmt.Errorf("lock attempt: %w", err)
	}
	if affected == 0 {
		return apperr.Conflict("attempt was finalized before the lock landed")
	}

	now := s.now()
	v := &model.ViolationLog{
		AttemptID:   req.AttemptID,
		ProctorID:   &proctorID,
		Type:        model.ViolationLockedByProctor,
		Description: req.Reason,
		CreatedAt:   now,
	}
	if err := s.assignments.InsertViolation(ctx, v); err != nil {
		s.log.Error().Err(err).Str("attempt_id", req.AttemptID.String()).Msg("lock reason not recorded")
	}

	s.log.Warn().
		Str("attempt_id", req.AttemptID.String()).
		Int("proctor_id", proctorID).
		Str("reason", req.Reason).
		Msg("attempt locked")

	s.events.Publish(ctx, MonitorEvent{
		Type:      MonitorEventAttemptLocked,
		SessionID: attempt.SessionID,
		AttemptID: attempt.ID,
		StudentID: attempt.StudentID,
		Detail:    req.Reason,
		At:        now,
	})

	return nil
}

// ScoreLocked grades a locked attempt from whatever answers it held when
// frozen and stores the result. Locked attempts never auto-score; this is
// the explicit follow-up a proctor or teacher triggers after review.
func (s *ProctorService) ScoreLocked(ctx context.Context, proctorID int, attemptID uuid.UUID) (*model.Attempt, error) {
	attempt, err := s.attempts.GetByID(ctx, attemptID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("attempt not found")
		}
		return nil, err
	}
	if err := s.requireAssigned(ctx, proctorID, attempt.SessionID); err != nil {
		return nil, err
	}
	if attempt.Status != model.AttemptStatusLocked {
		return nil, apperr.Conflict("attempt is not locked")
	}
	if attempt.ExamSetID == nil {
		return nil, apperr.Conflict("attempt has no question set")
	}

	keys, err := s.keys.SetQuestionKeys(ctx, *attempt.ExamSetID)
	if err != nil {
		return nil, fmt.Errorf("load answer keys: %w", err)
	}
	chosen, err := s.attempts.AnswersByQuestion(ctx, attemptID)
	if err != nil {
		return nil, fmt.Errorf("load answers: %w", err)
	}
	result := scoring.Score(keys, chosen)

	affected, err := s.attempts.SetLockedScore(ctx, attemptID, result.Score)
	if err != nil {
		return nil, fmt.Errorf("store score: %w", err)
	}
	if affected == 0 {
		return nil, apperr.Conflict("attempt is not locked")
	}

	attempt.Score = &result.Score
	return attempt, nil
}

// ViolationsByAttempt lists an attempt's violation trail for its session's
// proctor.
func (s *ProctorService) ViolationsByAttempt(ctx context.Context, proctorID int, attemptID uuid.UUID) ([]model.ViolationLog, error) {
	attempt, err := s.attempts.GetByID(ctx, attemptID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("attempt not found")
		}
		return nil, err
	}
	if err := s.requireAssigned(ctx, proctorID, attempt.SessionID); err != nil {
		return nil, err
	}
	logs, err := s.assignments.ListViolationsByAttempt(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if logs == nil {
		logs = []model.ViolationLog{}
	}
	return logs, nil
}

// ViolationsBySession lists the whole session's violation trail.
func (s *ProctorService) ViolationsBySession(ctx context.Context, proctorID int, sessionID uuid.UUID) ([]model.ViolationLog, error) {
	if err := s.requireAssigned(ctx, proctorID, sessionID); err != nil {
		return nil, err
	}
	logs, err := s.assignments.ListViolationsBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if logs == nil {
		logs = []model.ViolationLog{}
	}
	return logs, nil
}

package service

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/examgate/examgate-backend/internal/apperr"
	"github.com/examgate/examgate-backend/internal/config"
	"github.com/examgate/examgate-backend/internal/model"
)

// Access codes avoid 0/O and 1/I so students can read them off a
// projector.
const accessCodeAlphabet = "23456789ABCDEFGHJKLMNPQRSTUVWXYZ"

const accessCodeLength = 8

const uniqueViolationCode = "23505"

type sessionStore interface {
	Create(ctx context.Context, s *model.ExamSession) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.ExamSession, error)
	GetByAccessCode(ctx context.Context, accessCode string) (*model.ExamSession, error)
	ListByTeacher(ctx context.Context, teacherID int) ([]model.ExamSession, error)
	ListByProctor(ctx context.Context, proctorID int) ([]model.ExamSession, error)
	UpdateWindow(ctx context.Context, id uuid.UUID, startAt, endAt time.Time) error
	Cancel(ctx context.Context, id uuid.UUID, now time.Time) (int64, error)
	Delete(ctx context.Context, id uuid.UUID, now time.Time) (int64, error)
	HasAttempts(ctx context.Context, id uuid.UUID) (bool, error)
	ReconcileWindows(ctx context.Context, now time.Time) (int64, error)
}

type examOwnership interface {
	GetOwner(ctx context.Context, examID uuid.UUID) (int, error)
}

// SessionService handles exam session scheduling and the status
// reconciliation tick. Session status is derived purely from the window
// and cancellation; the tick is what moves rows, so a missed tick heals on
// the next one.
type SessionService struct {
	sessions sessionStore
	exams    examOwnership
	rdb      *redis.Client
	log      zerolog.Logger
	now      func() time.Time
}

// NewSessionService creates a new SessionService.
func NewSessionService(sessions sessionStore, exams examOwnership, rdb *redis.Client, log zerolog.Logger) *SessionService {
	return &SessionService{
		sessions: sessions,
		exams:    exams,
		rdb:      rdb,
		log:      log.With().Str("component", "session_service").Logger(),
		now:      time.Now,
	}
}

// Create schedules a session for an owned exam. The access code is
// generated when the request leaves it blank; a collision with an existing
// code is retried a few times before giving up.
func (s *SessionService) Create(ctx context.Context, teacherID int, req *model.CreateSessionRequest) (*model.ExamSession, error) {
	owner, err := s.exams.GetOwner(ctx, req.ExamID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("exam not found")
		}
		return nil, err
	}
	if owner != teacherID {
		return nil, apperr.Forbidden("exam belongs to another teacher")
	}
	if !req.EndAt.After(req.StartAt) {
		return nil, apperr.Validation("end_at must be after start_at")
	}

	session := &model.ExamSession{
		ExamID:     req.ExamID,
		StartAt:    req.StartAt,
		EndAt:      req.EndAt,
		AccessCode: req.AccessCode,
		Status:     model.SessionStatusScheduled,
	}

	for attempt := 0; ; attempt++ {
		session.ID = uuid.New()
		if session.AccessCode == "" {
			session.AccessCode = generateAccessCode()
		}

		err = s.sessions.Create(ctx, session)
		if err == nil {
			return session, nil
		}

		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			if req.AccessCode != "" {
				return nil, apperr.Conflict("access code %q is already in use", req.AccessCode)
			}
			if attempt < 3 {
				session.AccessCode = ""
				continue
			}
		}
		return nil, fmt.Errorf("create session: %w", err)
	}
}

func generateAccessCode() string {
	buf := make([]byte, accessCodeLength)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failing means the process is in deep trouble;
		// fall back to a uuid-derived code rather than panic.
		return uuid.New().String()[:accessCodeLength]
	}
	for i, b := range buf {
		buf[i] = accessCodeAlphabet[int(b)%len(accessCodeAlphabet)]
	}
	return string(buf)
}

// GetForTeacher retrieves a session and verifies the teacher owns the exam
// behind it.
func (s *SessionService) GetForTeacher(ctx context.Context, teacherID int, id uuid.UUID) (*model.ExamSession, error) {
	session, err := s.sessions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("session not found")
		}
		return nil, err
	}
	owner, err := s.exams.GetOwner(ctx, session.ExamID)
	if err != nil {
		return nil, err
	}
	if owner != teacherID {
		return nil, apperr.Forbidden("session belongs to another teacher")
	}
	return session, nil
}

// ListByTeacher lists sessions of the teacher's exams.
func (s *SessionService) ListByTeacher(ctx context.Context, teacherID int) ([]model.ExamSession, error) {
	sessions, err := s.sessions.ListByTeacher(ctx, teacherID)
	if err != nil {
		return nil, err
	}
	if sessions == nil {
		sessions = []model.ExamSession{}
	}
	return sessions, nil
}

// ListByProctor lists sessions assigned to the proctor.
func (s *SessionService) ListByProctor(ctx context.Context, proctorID int) ([]model.ExamSession, error) {
	sessions, err := s.sessions.ListByProctor(ctx, proctorID)
	if err != nil {
		return nil, err
	}
	if sessions == nil {
		sessions = []model.ExamSession{}
	}
	return sessions, nil
}

// Reschedule moves a session's window. Only scheduled sessions move; once
// the window has opened the timeline is history, not a plan.
func (s *SessionService) Reschedule(ctx context.Context, teacherID int, id uuid.UUID, req *model.UpdateSessionRequest) (*model.ExamSession, error) {
	session, err := s.GetForTeacher(ctx, teacherID, id)
	if err != nil {
		return nil, err
	}
	if session.Status != model.SessionStatusScheduled {
		return nil, apperr.Conflict("only scheduled sessions can be rescheduled")
	}
	if !req.EndAt.After(req.StartAt) {
		return nil, apperr.Validation("end_at must be after start_at")
	}

	if err := s.sessions.UpdateWindow(ctx, id, req.StartAt, req.EndAt); err != nil {
		return nil, fmt.Errorf("update window: %w", err)
	}
	s.invalidateAccessCodeCache(ctx, session.AccessCode)

	session.StartAt = req.StartAt
	session.EndAt = req.EndAt
	return session, nil
}

// Cancel cancels a session. The store refuses while the clock is inside
// the window or once the session is final; this method translates a
// refusal into the concrete reason.
func (s *SessionService) Cancel(ctx context.Context, teacherID int, id uuid.UUID) error {
	session, err := s.GetForTeacher(ctx, teacherID, id)
	if err != nil {
		return err
	}

	affected, err := s.sessions.Cancel(ctx, id, s.now())
	if err != nil {
		return fmt.Errorf("cancel session: %w", err)
	}
	if affected == 0 {
		if session.Status == model.SessionStatusCompleted || session.Status == model.SessionStatusCancelled {
			return apperr.Conflict("session is already %s", session.Status)
		}
		return apperr.Conflict("session cannot be cancelled while its window is open")
	}

	s.invalidateAccessCodeCache(ctx, session.AccessCode)
	s.log.Info().Str("session_id", id.String()).Msg("session cancelled")
	return nil
}

// Delete removes a session outright. Only allowed when the window is not
// open and no attempt ever referenced it; attempted sessions are audit
// history and can only be cancelled.
func (s *SessionService) Delete(ctx context.Context, teacherID int, id uuid.UUID) error {
	session, err := s.GetForTeacher(ctx, teacherID, id)
	if err != nil {
		return err
	}

	affected, err := s.sessions.Delete(ctx, id, s.now())
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if affected == 0 {
		hasAttempts, herr := s.sessions.HasAttempts(ctx, id)
		if herr == nil && hasAttempts {
			return apperr.Conflict("session has attempts and can only be cancelled")
		}
		return apperr.Conflict("session cannot be deleted while its window is open")
	}

	s.invalidateAccessCodeCache(ctx, session.AccessCode)
	s.log.Info().Str("session_id", id.String()).Msg("session deleted")
	return nil
}

// ResolveAccessCode finds the session behind a student-entered code,
// consulting the Redis cache first. Cached entries expire with the window
// so a stale hit cannot outlive the session it points at.
func (s *SessionService) ResolveAccessCode(ctx context.Context, accessCode string) (*model.ExamSession, error) {
	key := config.CacheKey.SessionByAccessCodeKey(accessCode)

	cached, err := s.rdb.Get(ctx, key).Result()
	if err == nil && cached != "" {
		var session model.ExamSession
		if jerr := json.Unmarshal([]byte(cached), &session); jerr == nil {
			return &session, nil
		}
	} else if err != nil && !errors.Is(err, redis.Nil) {
		s.log.Warn().Err(err).Msg("access code cache read failed")
	}

	session, err := s.sessions.GetByAccessCode(ctx, accessCode)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("no session matches this access code")
		}
		return nil, err
	}

	if ttl := time.Until(session.EndAt); ttl > 0 {
		if payload, jerr := json.Marshal(session); jerr == nil {
			if cerr := s.rdb.Set(ctx, key, payload, ttl).Err(); cerr != nil {
				s.log.Warn().Err(cerr).Msg("access code cache write failed")
			}
		}
	}

	return session, nil
}

func (s *SessionService) invalidateAccessCodeCache(ctx context.Context, accessCode string) {
	if accessCode == "" {
		return
	}
	if err := s.rdb.Del(ctx, config.CacheKey.SessionByAccessCodeKey(accessCode)).Err(); err != nil {
		s.log.Warn().Err(err).Msg("access code cache invalidation failed")
	}
}

// Tick runs one reconciliation pass: scheduled sessions whose window has
// opened become ongoing, and any non-final session whose window has closed
// becomes completed. Both moves are single conditional bulk updates, so
// running the tick twice is harmless.
func (s *SessionService) Tick(ctx context.Context) (int64, error) {
	changed, err := s.sessions.ReconcileWindows(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("reconcile windows: %w", err)
	}
	if changed > 0 {
		s.log.Debug().Int64("changed", changed).Msg("session statuses reconciled")
	}
	return changed, nil
}

package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/examgate/examgate-backend/internal/apperr"
	"github.com/examgate/examgate-backend/internal/model"
	"github.com/examgate/examgate-backend/internal/scoring"
)

type attemptStore interface {
	Create(ctx context.Context, a *model.Attempt) error
	GetActive(ctx context.Context, sessionID uuid.UUID, studentID int) (*model.Attempt, error)
	GetLatest(ctx context.Context, sessionID uuid.UUID, studentID int) (*model.Attempt, error)
	GetByIDForStudent(ctx context.Context, id uuid.UUID, studentID int) (*model.Attempt, error)
	MarkSubmitted(ctx context.Context, id uuid.UUID, score float64, now time.Time) (int64, error)
	ReplaceAnswer(ctx context.Context, ans *model.AttemptAnswer) error
	AddAnswer(ctx context.Context, ans *model.AttemptAnswer) error
	DeleteAnswers(ctx context.Context, attemptID, questionID uuid.UUID) (int64, error)
	AnswersByQuestion(ctx context.Context, attemptID uuid.UUID) (map[uuid.UUID][]uuid.UUID, error)
	ListByStudent(ctx context.Context, studentID int) ([]model.Attempt, error)
}

type accessCodeResolver interface {
	ResolveAccessCode(ctx context.Context, accessCode string) (*model.ExamSession, error)
}

type sessionGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.ExamSession, error)
}

type setSource interface {
	ListByExam(ctx context.Context, examID uuid.UUID) ([]model.ExamSet, error)
	ContainsQuestion(ctx context.Context, examSetID, questionID uuid.UUID) (bool, error)
}

type paperSource interface {
	ListBySetOrdered(ctx context.Context, examSetID uuid.UUID) ([]model.Question, error)
	SetQuestionKeys(ctx context.Context, examSetID uuid.UUID) ([]scoring.QuestionKey, error)
}

type eventPublisher interface {
	Publish(ctx context.Context, event MonitorEvent)
}

// AttemptPaper is a student's working view of an attempt: the set's
// questions in presentation order (correctness stripped) plus the choices
// stored so far.
type AttemptPaper struct {
	Attempt   *model.Attempt            `json:"attempt"`
	Questions []model.Question          `json:"questions"`
	Answers   map[uuid.UUID][]uuid.UUID `json:"answers"`
}

// AttemptService drives the attempt lifecycle. One non-final attempt per
// (session, student) pair; submissions are idempotent; locked attempts are
// frozen for everyone but a proctor.
type AttemptService struct {
	attempts attemptStore
	resolver accessCodeResolver
	sessions sessionGetter
	sets     setSource
	papers   paperSource
	events   eventPublisher
	log      zerolog.Logger
	now      func() time.Time

	mu  sync.Mutex
	rng *rand.Rand
}

// NewAttemptService creates a new AttemptService. A nil rng gets seeded
// from the clock; tests inject a fixed seed.
func NewAttemptService(
	attempts attemptStore,
	resolver accessCodeResolver,
	sessions sessionGetter,
	sets setSource,
	papers paperSource,
	events eventPublisher,
	log zerolog.Logger,
	rng *rand.Rand,
) *AttemptService {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &AttemptService{
		attempts: attempts,
		resolver: resolver,
		sessions: sessions,
		sets:     sets,
		papers:   papers,
		events:   events,
		log:      log.With().Str("component", "attempt_service").Logger(),
		now:      time.Now,
		rng:      rng,
	}
}

// Start admits a student into a session by access code. An existing
// non-final attempt is resumed as-is; a submitted one blocks re-entry; a
// locked one stays frozen. Admission requires the clock inside the window
// regardless of what the last reconciliation tick recorded.
func (s *AttemptService) Start(ctx context.Context, studentID int, accessCode string) (*model.Attempt, error) {
	session, err := s.resolver.ResolveAccessCode(ctx, accessCode)
	if err != nil {
		return nil, err
	}
	if err := s.checkAdmission(session); err != nil {
		return nil, err
	}

	latest, err := s.attempts.GetLatest(ctx, session.ID, studentID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("load latest attempt: %w", err)
	}
	if latest != nil {
		switch latest.Status {
		case model.AttemptStatusSubmitted:
			return nil, apperr.ForbiddenCode(apperr.CodeAlreadySubmitted, "attempt already submitted for this session")
		case model.AttemptStatusLocked:
			return nil, apperr.ForbiddenCode(apperr.CodeAttemptLocked, "attempt is locked by a proctor")
		default:
			return latest, nil
		}
	}

	setID, err := s.pickSet(ctx, session.ExamID)
	if err != nil {
		return nil, err
	}

	attempt := &model.Attempt{
		SessionID: session.ID,
		StudentID: studentID,
		ExamSetID: &setID,
		Status:    model.AttemptStatusInProgress,
		StartedAt: s.now(),
	}
	err = s.attempts.Create(ctx, attempt)
	if errors.Is(err, pgx.ErrNoRows) {
		// Lost a concurrent start; the winner's row is the attempt.
		return s.attempts.GetActive(ctx, session.ID, studentID)
	}
	if err != nil {
		return nil, fmt.Errorf("create attempt: %w", err)
	}

	s.events.Publish(ctx, MonitorEvent{
		Type:      MonitorEventAttemptStarted,
		SessionID: session.ID,
		AttemptID: attempt.ID,
		StudentID: studentID,
		At:        attempt.StartedAt,
	})

	return attempt, nil
}

// checkAdmission rejects with Forbidden: the session exists, only the
// timing disallows entry.
func (s *AttemptService) checkAdmission(session *model.ExamSession) error {
	switch session.Status {
	case model.SessionStatusCancelled:
		return apperr.ForbiddenCode(apperr.CodeWindowClosed, "session is cancelled")
	case model.SessionStatusCompleted:
		return apperr.ForbiddenCode(apperr.CodeWindowClosed, "session is closed")
	}
	now := s.now()
	if now.Before(session.StartAt) {
		return apperr.ForbiddenCode(apperr.CodeWindowNotOpen, "session has not opened yet")
	}
	if now.After(session.EndAt) {
		return apperr.ForbiddenCode(apperr.CodeWindowClosed, "session is closed")
	}
	return nil
}

// pickSet assigns one of the exam's sets uniformly at random.
func (s *AttemptService) pickSet(ctx context.Context, examID uuid.UUID) (uuid.UUID, error) {
	sets, err := s.sets.ListByExam(ctx, examID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("list exam sets: %w", err)
	}
	if len(sets) == 0 {
		return uuid.Nil, apperr.Conflict("exam has no question set")
	}
	s.mu.Lock()
	idx := s.rng.Intn(len(sets))
	s.mu.Unlock()
	return sets[idx].ID, nil
}

// GetPaper returns the student's attempt with its set's questions and any
// stored answers, for resuming after a disconnect.
func (s *AttemptService) GetPaper(ctx context.Context, studentID int, attemptID uuid.UUID) (*AttemptPaper, error) {
	attempt, err := s.getOwned(ctx, studentID, attemptID)
	if err != nil {
		return nil, err
	}
	if attempt.ExamSetID == nil {
		return nil, apperr.Conflict("attempt has no question set")
	}

	questions, err := s.papers.ListBySetOrdered(ctx, *attempt.ExamSetID)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	answers, err := s.attempts.AnswersByQuestion(ctx, attemptID)
	if err != nil {
		return nil, fmt.Errorf("load answers: %w", err)
	}

	return &AttemptPaper{Attempt: attempt, Questions: questions, Answers: answers}, nil
}

func (s *AttemptService) getOwned(ctx context.Context, studentID int, attemptID uuid.UUID) (*model.Attempt, error) {
	attempt, err := s.attempts.GetByIDForStudent(ctx, attemptID, studentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("attempt not found")
		}
		return nil, err
	}
	return attempt, nil
}

// writable rejects any answer mutation on an attempt that is not
// in progress or whose session window has closed. All rejections are
// Forbidden: the attempt is real, the action is disallowed.
func (s *AttemptService) writable(ctx context.Context, attempt *model.Attempt) error {
	switch attempt.Status {
	case model.AttemptStatusSubmitted:
		return apperr.ForbiddenCode(apperr.CodeAlreadySubmitted, "attempt already submitted")
	case model.AttemptStatusLocked:
		return apperr.ForbiddenCode(apperr.CodeAttemptLocked, "attempt is locked by a proctor")
	}
	return s.windowOpen(ctx, attempt.SessionID)
}

// windowOpen rejects once the session's window has passed or the session
// was cancelled, regardless of what the last reconciliation tick recorded.
func (s *AttemptService) windowOpen(ctx context.Context, sessionID uuid.UUID) error {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	if s.now().After(session.EndAt) || session.Status == model.SessionStatusCancelled {
		return apperr.ForbiddenCode(apperr.CodeWindowClosed, "session window has closed")
	}
	return nil
}

// SetAnswer stores the single choice of a single-select question,
// replacing any previous one.
func (s *AttemptService) SetAnswer(ctx context.Context, studentID int, attemptID uuid.UUID, req *model.SaveAnswerRequest) error {
	return s.saveAnswer(ctx, studentID, attemptID, req, false)
}

// AddAnswer stores one more choice of a multi-select question.
func (s *AttemptService) AddAnswer(ctx context.Context, studentID int, attemptID uuid.UUID, req *model.SaveAnswerRequest) error {
	return s.saveAnswer(ctx, studentID, attemptID, req, true)
}

func (s *AttemptService) saveAnswer(ctx context.Context, studentID int, attemptID uuid.UUID, req *model.SaveAnswerRequest, additive bool) error {
	attempt, err := s.getOwned(ctx, studentID, attemptID)
	if err != nil {
		return err
	}
	if err := s.writable(ctx, attempt); err != nil {
		return err
	}
	if attempt.ExamSetID == nil {
		return apperr.Conflict("attempt has no question set")
	}

	ok, err := s.sets.ContainsQuestion(ctx, *attempt.ExamSetID, req.QuestionID)
	if err != nil {
		return fmt.Errorf("check set membership: %w", err)
	}
	if !ok {
		return apperr.Validation("question is not part of this attempt")
	}

	ans := &model.AttemptAnswer{
		AttemptID:  attemptID,
		QuestionID: req.QuestionID,
		AnswerID:   req.AnswerID,
	}
	if additive {
		err = s.attempts.AddAnswer(ctx, ans)
	} else {
		err = s.attempts.ReplaceAnswer(ctx, ans)
	}
	if err != nil {
		return fmt.Errorf("save answer: %w", err)
	}
	return nil
}

// RemoveAnswer retracts every stored choice for the question. Retracting a
// question that holds no answer is reported, not silently ignored.
func (s *AttemptService) RemoveAnswer(ctx context.Context, studentID int, attemptID, questionID uuid.UUID) error {
	attempt, err := s.getOwned(ctx, studentID, attemptID)
	if err != nil {
		return err
	}
	if err := s.writable(ctx, attempt); err != nil {
		return err
	}

	deleted, err := s.attempts.DeleteAnswers(ctx, attemptID, questionID)
	if err != nil {
		return fmt.Errorf("remove answer: %w", err)
	}
	if deleted == 0 {
		return apperr.NotFound("no stored answer for this question")
	}
	return nil
}

// Submit finalizes the attempt and computes its score. An in-progress
// attempt can only be submitted while the session window is open. Submitting
// an already-submitted attempt returns the stored result unchanged. The status
// flip is a compare-and-swap against in_progress, so a concurrent proctor
// lock and a submit cannot both win.
func (s *AttemptService) Submit(ctx context.Context, studentID int, attemptID uuid.UUID) (*model.Attempt, error) {
	attempt, err := s.getOwned(ctx, studentID, attemptID)
	if err != nil {
		return nil, err
	}

	switch attempt.Status {
	case model.AttemptStatusSubmitted:
		return attempt, nil
	case model.AttemptStatusLocked:
		return nil, apperr.ForbiddenCode(apperr.CodeAttemptLocked, "attempt is locked by a proctor")
	}
	if err := s.windowOpen(ctx, attempt.SessionID); err != nil {
		return nil, err
	}
	if attempt.ExamSetID == nil {
		return nil, apperr.Conflict("attempt has no question set")
	}

	result, err := s.score(ctx, attempt)
	if err != nil {
		return nil, err
	}

	now := s.now()
	affected, err := s.attempts.MarkSubmitted(ctx, attemptID, result.Score, now)
	if err != nil {
		return nil, fmt.Errorf("mark submitted: %w", err)
	}
	if affected == 0 {
		// Lost the CAS: a concurrent submit or proctor lock got there
		// first. Re-read and report what actually happened.
		current, rerr := s.getOwned(ctx, studentID, attemptID)
		if rerr != nil {
			return nil, rerr
		}
		if current.Status == model.AttemptStatusSubmitted {
			return current, nil
		}
		return nil, apperr.ForbiddenCode(apperr.CodeAttemptLocked, "attempt is locked by a proctor")
	}

	attempt.Status = model.AttemptStatusSubmitted
	attempt.SubmittedAt = &now
	attempt.Score = &result.Score

	s.log.Info().
		Str("attempt_id", attemptID.String()).
		Float64("score", result.Score).
		Int("correct", result.CorrectCount).
		Int("total", result.TotalCount).
		Msg("attempt submitted")

	s.events.Publish(ctx, MonitorEvent{
		Type:      MonitorEventAttemptSubmitted,
		SessionID: attempt.SessionID,
		AttemptID: attempt.ID,
		StudentID: studentID,
		At:        now,
	})

	return attempt, nil
}

func (s *AttemptService) score(ctx context.Context, attempt *model.Attempt) (scoring.Result, error) {
	keys, err := s.papers.SetQuestionKeys(ctx, *attempt.ExamSetID)
	if err != nil {
		return scoring.Result{}, fmt.Errorf("load answer keys: %w", err)
	}
	chosen, err := s.attempts.AnswersByQuestion(ctx, attempt.ID)
	if err != nil {
		return scoring.Result{}, fmt.Errorf("load answers: %w", err)
	}
	return scoring.Score(keys, chosen), nil
}

// ListMine lists the student's attempt history, newest first.
func (s *AttemptService) ListMine(ctx context.Context, studentID int) ([]model.Attempt, error) {
	attempts, err := s.attempts.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if attempts == nil {
		attempts = []model.Attempt{}
	}
	return attempts, nil
}

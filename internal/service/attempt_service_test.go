package service

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/examgate/examgate-backend/internal/apperr"
	"github.com/examgate/examgate-backend/internal/model"
	"github.com/examgate/examgate-backend/internal/scoring"
)

type fakeAttemptStore struct {
	attempts     map[uuid.UUID]*model.Attempt
	answers      map[uuid.UUID]map[uuid.UUID][]uuid.UUID
	forceRace    bool
	raceWinner   *model.Attempt
	// lockOnSubmit makes MarkSubmitted lose its CAS as if a proctor lock
	// landed between the service's read and the update.
	lockOnSubmit bool
}

func newFakeAttemptStore() *fakeAttemptStore {
	return &fakeAttemptStore{
		attempts: make(map[uuid.UUID]*model.Attempt),
		answers:  make(map[uuid.UUID]map[uuid.UUID][]uuid.UUID),
	}
}

func (f *fakeAttemptStore) Create(_ context.Context, a *model.Attempt) error {
	if f.forceRace {
		return pgx.ErrNoRows
	}
	for _, ex := range f.attempts {
		if ex.SessionID == a.SessionID && ex.StudentID == a.StudentID && !ex.Status.IsFinal() {
			return pgx.ErrNoRows
		}
	}
	a.ID = uuid.New()
	cp := *a
	f.attempts[a.ID] = &cp
	return nil
}

func (f *fakeAttemptStore) GetActive(_ context.Context, sessionID uuid.UUID, studentID int) (*model.Attempt, error) {
	if f.forceRace && f.raceWinner != nil {
		return f.raceWinner, nil
	}
	for _, a := range f.attempts {
		if a.SessionID == sessionID && a.StudentID == studentID && !a.Status.IsFinal() {
			cp := *a
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeAttemptStore) GetLatest(_ context.Context, sessionID uuid.UUID, studentID int) (*model.Attempt, error) {
	var latest *model.Attempt
	for _, a := range f.attempts {
		if a.SessionID != sessionID || a.StudentID != studentID {
			continue
		}
		if latest == nil || a.StartedAt.After(latest.StartedAt) {
			latest = a
		}
	}
	if latest == nil {
		return nil, pgx.ErrNoRows
	}
	cp := *latest
	return &cp, nil
}

func (f *fakeAttemptStore) GetByIDForStudent(_ context.Context, id uuid.UUID, studentID int) (*model.Attempt, error) {
	a, ok := f.attempts[id]
	if !ok || a.StudentID != studentID {
		return nil, pgx.ErrNoRows
	}
	cp := *a
	return &cp, nil
}

func (f *fakeAttemptStore) MarkSubmitted(_ context.Context, id uuid.UUID, score float64, now time.Time) (int64, error) {
	a, ok := f.attempts[id]
	if !ok {
		return 0, nil
	}
	if f.lockOnSubmit {
		a.Status = model.AttemptStatusLocked
		return 0, nil
	}
	if a.Status != model.AttemptStatusInProgress {
		return 0, nil
	}
	a.Status = model.AttemptStatusSubmitted
	a.Score = &score
	a.SubmittedAt = &now
	return 1, nil
}

func (f *fakeAttemptStore) ReplaceAnswer(_ context.Context, ans *model.AttemptAnswer) error {
	if f.answers[ans.AttemptID] == nil {
		f.answers[ans.AttemptID] = make(map[uuid.UUID][]uuid.UUID)
	}
	f.answers[ans.AttemptID][ans.QuestionID] = []uuid.UUID{ans.AnswerID}
	return nil
}

func (f *fakeAttemptStore) AddAnswer(_ context.Context, ans *model.AttemptAnswer) error {
	if f.answers[ans.AttemptID] == nil {
		f.answers[ans.AttemptID] = make(map[uuid.UUID][]uuid.UUID)
	}
	for _, id := range f.answers[ans.AttemptID][ans.QuestionID] {
		if id == ans.AnswerID {
			return nil
		}
	}
	f.answers[ans.AttemptID][ans.QuestionID] = append(f.answers[ans.AttemptID][ans.QuestionID], ans.AnswerID)
	return nil
}

func (f *fakeAttemptStore) DeleteAnswers(_ context.Context, attemptID, questionID uuid.UUID) (int64, error) {
	stored, ok := f.answers[attemptID][questionID]
	if !ok {
		return 0, nil
	}
	delete(f.answers[attemptID], questionID)
	return int64(len(stored)), nil
}

func (f *fakeAttemptStore) AnswersByQuestion(_ context.Context, attemptID uuid.UUID) (map[uuid.UUID][]uuid.UUID, error) {
	out := make(map[uuid.UUID][]uuid.UUID)
	for q, ids := range f.answers[attemptID] {
		out[q] = append([]uuid.UUID(nil), ids...)
	}
	return out, nil
}

func (f *fakeAttemptStore) ListByStudent(_ context.Context, studentID int) ([]model.Attempt, error) {
	var out []model.Attempt
	for _, a := range f.attempts {
		if a.StudentID == studentID {
			out = append(out, *a)
		}
	}
	return out, nil
}

type fakeResolver struct {
	sessions map[string]*model.ExamSession
}

func (f *fakeResolver) ResolveAccessCode(_ context.Context, code string) (*model.ExamSession, error) {
	s, ok := f.sessions[code]
	if !ok {
		return nil, apperr.NotFound("no session matches this access code")
	}
	return s, nil
}

type fakeSessionGetter struct {
	sessions map[uuid.UUID]*model.ExamSession
}

func (f *fakeSessionGetter) GetByID(_ context.Context, id uuid.UUID) (*model.ExamSession, error) {
	s, ok := f.sessions[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return s, nil
}

type fakeSetSource struct {
	sets    map[uuid.UUID][]model.ExamSet
	members map[uuid.UUID]map[uuid.UUID]bool
}

func (f *fakeSetSource) ListByExam(_ context.Context, examID uuid.UUID) ([]model.ExamSet, error) {
	return f.sets[examID], nil
}

func (f *fakeSetSource) ContainsQuestion(_ context.Context, setID, questionID uuid.UUID) (bool, error) {
	return f.members[setID][questionID], nil
}

type fakePaperSource struct {
	keys map[uuid.UUID][]scoring.QuestionKey
}

func (f *fakePaperSource) ListBySetOrdered(_ context.Context, setID uuid.UUID) ([]model.Question, error) {
	var out []model.Question
	for _, k := range f.keys[setID] {
		out = append(out, model.Question{ID: k.QuestionID})
	}
	return out, nil
}

func (f *fakePaperSource) SetQuestionKeys(_ context.Context, setID uuid.UUID) ([]scoring.QuestionKey, error) {
	return f.keys[setID], nil
}

type capturedEvents struct {
	events []MonitorEvent
}

func (c *capturedEvents) Publish(_ context.Context, e MonitorEvent) {
	c.events = append(c.events, e)
}

type attemptFixture struct {
	svc      *AttemptService
	store    *fakeAttemptStore
	events   *capturedEvents
	session  *model.ExamSession
	setID    uuid.UUID
	question uuid.UUID
	correct  uuid.UUID
	wrong    uuid.UUID
}

func newAttemptFixture(t *testing.T) *attemptFixture {
	t.Helper()

	examID := uuid.New()
	setID := uuid.New()
	questionID := uuid.New()
	correctID := uuid.New()
	wrongID := uuid.New()

	session := &model.ExamSession{
		ID:         uuid.New(),
		ExamID:     examID,
		StartAt:    time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC),
		EndAt:      time.Date(2026, 3, 10, 11, 0, 0, 0, time.UTC),
		AccessCode: "EXAM2026",
		Status:     model.SessionStatusOngoing,
	}

	store := newFakeAttemptStore()
	events := &capturedEvents{}
	svc := NewAttemptService(
		store,
		&fakeResolver{sessions: map[string]*model.ExamSession{session.AccessCode: session}},
		&fakeSessionGetter{sessions: map[uuid.UUID]*model.ExamSession{session.ID: session}},
		&fakeSetSource{
			sets:    map[uuid.UUID][]model.ExamSet{examID: {{ID: setID, ExamID: examID, Code: model.CanonicalSetCode}}},
			members: map[uuid.UUID]map[uuid.UUID]bool{setID: {questionID: true}},
		},
		&fakePaperSource{keys: map[uuid.UUID][]scoring.QuestionKey{
			setID: {{QuestionID: questionID, CorrectIDs: []uuid.UUID{correctID}}},
		}},
		events,
		zerolog.Nop(),
		rand.New(rand.NewSource(1)),
	)
	svc.now = func() time.Time { return time.Date(2026, 3, 10, 10, 30, 0, 0, time.UTC) }

	return &attemptFixture{
		svc:      svc,
		store:    store,
		events:   events,
		session:  session,
		setID:    setID,
		question: questionID,
		correct:  correctID,
		wrong:    wrongID,
	}
}

func TestStartAdmissionWindow(t *testing.T) {
	cases := []struct {
		name     string
		now      time.Time
		status   model.SessionStatus
		wantCode string
		admitted bool
	}{
		{"one minute before start", time.Date(2026, 3, 10, 9, 59, 0, 0, time.UTC), model.SessionStatusScheduled, apperr.CodeWindowNotOpen, false},
		{"just after start", time.Date(2026, 3, 10, 10, 0, 1, 0, time.UTC), model.SessionStatusOngoing, "", true},
		{"scheduled but window open", time.Date(2026, 3, 10, 10, 0, 1, 0, time.UTC), model.SessionStatusScheduled, "", true},
		{"just after end", time.Date(2026, 3, 10, 11, 0, 1, 0, time.UTC), model.SessionStatusOngoing, apperr.CodeWindowClosed, false},
		{"cancelled inside window", time.Date(2026, 3, 10, 10, 30, 0, 0, time.UTC), model.SessionStatusCancelled, apperr.CodeWindowClosed, false},
		{"completed", time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC), model.SessionStatusCompleted, apperr.CodeWindowClosed, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fx := newAttemptFixture(t)
			fx.session.Status = tc.status
			fx.svc.now = func() time.Time { return tc.now }

			attempt, err := fx.svc.Start(context.Background(), 7, fx.session.AccessCode)
			if tc.admitted {
				if err != nil {
					t.Fatalf("expected admission, got %v", err)
				}
				if attempt.Status != model.AttemptStatusInProgress {
					t.Errorf("status = %s, want in_progress", attempt.Status)
				}
				if attempt.ExamSetID == nil || *attempt.ExamSetID != fx.setID {
					t.Error("attempt not assigned the exam set")
				}
				return
			}
			if err == nil {
				t.Fatal("expected rejection")
			}
			// Timing rejections are forbidden, not conflict: the session
			// exists, entering it now is what is disallowed.
			if kind := apperr.KindOf(err); kind != apperr.KindForbidden {
				t.Errorf("kind = %v, want forbidden", kind)
			}
			if code := apperr.CodeOf(err); code != tc.wantCode {
				t.Errorf("code = %q, want %q", code, tc.wantCode)
			}
		})
	}
}

func TestStartResumesActiveAttempt(t *testing.T) {
	fx := newAttemptFixture(t)

	first, err := fx.svc.Start(context.Background(), 7, fx.session.AccessCode)
	if err != nil {
		t.Fatalf("first start: %v", err)
	}
	second, err := fx.svc.Start(context.Background(), 7, fx.session.AccessCode)
	if err != nil {
		t.Fatalf("second start: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("resume created a new attempt: %s vs %s", second.ID, first.ID)
	}
	if len(fx.store.attempts) != 1 {
		t.Errorf("store holds %d attempts, want 1", len(fx.store.attempts))
	}
}

func TestStartRejectsSubmittedAndLocked(t *testing.T) {
	fx := newAttemptFixture(t)

	attempt, err := fx.svc.Start(context.Background(), 7, fx.session.AccessCode)
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	fx.store.attempts[attempt.ID].Status = model.AttemptStatusSubmitted
	_, err = fx.svc.Start(context.Background(), 7, fx.session.AccessCode)
	if apperr.KindOf(err) != apperr.KindForbidden || apperr.CodeOf(err) != apperr.CodeAlreadySubmitted {
		t.Errorf("re-entry after submit: got %v, want forbidden already_submitted", err)
	}

	fx.store.attempts[attempt.ID].Status = model.AttemptStatusLocked
	if _, err := fx.svc.Start(context.Background(), 7, fx.session.AccessCode); apperr.KindOf(err) != apperr.KindForbidden {
		t.Errorf("re-entry after lock: kind = %v, want forbidden", apperr.KindOf(err))
	}
}

func TestStartLosesCreationRace(t *testing.T) {
	fx := newAttemptFixture(t)

	winner := &model.Attempt{
		ID:        uuid.New(),
		SessionID: fx.session.ID,
		StudentID: 7,
		Status:    model.AttemptStatusInProgress,
	}
	fx.store.forceRace = true
	fx.store.raceWinner = winner

	got, err := fx.svc.Start(context.Background(), 7, fx.session.AccessCode)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if got.ID != winner.ID {
		t.Errorf("returned attempt %s, want the race winner %s", got.ID, winner.ID)
	}
}

func TestSubmitScoresAndIsIdempotent(t *testing.T) {
	fx := newAttemptFixture(t)

	attempt, err := fx.svc.Start(context.Background(), 7, fx.session.AccessCode)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	req := &model.SaveAnswerRequest{QuestionID: fx.question, AnswerID: fx.correct}
	if err := fx.svc.SetAnswer(context.Background(), 7, attempt.ID, req); err != nil {
		t.Fatalf("set answer: %v", err)
	}

	submitted, err := fx.svc.Submit(context.Background(), 7, attempt.ID)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if submitted.Score == nil || *submitted.Score != 10 {
		t.Fatalf("score = %v, want 10", submitted.Score)
	}
	if submitted.SubmittedAt == nil {
		t.Error("submitted_at not set")
	}

	again, err := fx.svc.Submit(context.Background(), 7, attempt.ID)
	if err != nil {
		t.Fatalf("second submit: %v", err)
	}
	if again.Score == nil || *again.Score != *submitted.Score {
		t.Error("second submit changed the stored score")
	}
}

func TestSubmitLosesRaceToLock(t *testing.T) {
	fx := newAttemptFixture(t)

	attempt, err := fx.svc.Start(context.Background(), 7, fx.session.AccessCode)
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	fx.store.lockOnSubmit = true

	if _, err := fx.svc.Submit(context.Background(), 7, attempt.ID); apperr.KindOf(err) != apperr.KindForbidden {
		t.Errorf("kind = %v, want forbidden", apperr.KindOf(err))
	}
}

func TestSubmitAfterWindowClosesRejected(t *testing.T) {
	fx := newAttemptFixture(t)

	attempt, err := fx.svc.Start(context.Background(), 7, fx.session.AccessCode)
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	// An in-flight submission arriving after endAt must be refused even
	// though the attempt was in progress when the request left the client.
	fx.svc.now = func() time.Time { return fx.session.EndAt.Add(30 * time.Minute) }
	_, err = fx.svc.Submit(context.Background(), 7, attempt.ID)
	if apperr.KindOf(err) != apperr.KindForbidden || apperr.CodeOf(err) != apperr.CodeWindowClosed {
		t.Fatalf("late submit: got %v, want forbidden window_closed", err)
	}
	if got := fx.store.attempts[attempt.ID].Status; got != model.AttemptStatusInProgress {
		t.Errorf("late submit mutated status to %s", got)
	}

	fx.svc.now = func() time.Time { return fx.session.StartAt.Add(30 * time.Minute) }
	fx.session.Status = model.SessionStatusCancelled
	if _, err := fx.svc.Submit(context.Background(), 7, attempt.ID); apperr.KindOf(err) != apperr.KindForbidden {
		t.Errorf("submit on cancelled session: kind = %v, want forbidden", apperr.KindOf(err))
	}
}

func TestSaveAnswerGuards(t *testing.T) {
	fx := newAttemptFixture(t)

	attempt, err := fx.svc.Start(context.Background(), 7, fx.session.AccessCode)
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	foreign := &model.SaveAnswerRequest{QuestionID: uuid.New(), AnswerID: fx.correct}
	if err := fx.svc.SetAnswer(context.Background(), 7, attempt.ID, foreign); apperr.KindOf(err) != apperr.KindValidation {
		t.Errorf("foreign question: kind = %v, want validation", apperr.KindOf(err))
	}

	req := &model.SaveAnswerRequest{QuestionID: fx.question, AnswerID: fx.correct}
	if err := fx.svc.SetAnswer(context.Background(), 99, attempt.ID, req); apperr.KindOf(err) != apperr.KindNotFound {
		t.Errorf("other student's attempt: kind = %v, want not found", apperr.KindOf(err))
	}

	fx.store.attempts[attempt.ID].Status = model.AttemptStatusSubmitted
	if err := fx.svc.SetAnswer(context.Background(), 7, attempt.ID, req); apperr.KindOf(err) != apperr.KindForbidden {
		t.Errorf("submitted attempt: kind = %v, want forbidden", apperr.KindOf(err))
	}

	fx.store.attempts[attempt.ID].Status = model.AttemptStatusLocked
	if err := fx.svc.SetAnswer(context.Background(), 7, attempt.ID, req); apperr.KindOf(err) != apperr.KindForbidden {
		t.Errorf("locked attempt: kind = %v, want forbidden", apperr.KindOf(err))
	}

	fx.store.attempts[attempt.ID].Status = model.AttemptStatusInProgress
	fx.svc.now = func() time.Time { return fx.session.EndAt.Add(time.Minute) }
	err = fx.svc.SetAnswer(context.Background(), 7, attempt.ID, req)
	if apperr.KindOf(err) != apperr.KindForbidden || apperr.CodeOf(err) != apperr.CodeWindowClosed {
		t.Errorf("closed window: got %v, want forbidden window_closed", err)
	}
}

func TestRemoveAnswer(t *testing.T) {
	fx := newAttemptFixture(t)

	attempt, err := fx.svc.Start(context.Background(), 7, fx.session.AccessCode)
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	err = fx.svc.RemoveAnswer(context.Background(), 7, attempt.ID, fx.question)
	if apperr.KindOf(err) != apperr.KindNotFound {
		t.Errorf("empty retraction: kind = %v, want not found", apperr.KindOf(err))
	}

	req := &model.SaveAnswerRequest{QuestionID: fx.question, AnswerID: fx.correct}
	if err := fx.svc.SetAnswer(context.Background(), 7, attempt.ID, req); err != nil {
		t.Fatalf("set answer: %v", err)
	}
	if err := fx.svc.RemoveAnswer(context.Background(), 7, attempt.ID, fx.question); err != nil {
		t.Fatalf("remove: %v", err)
	}

	answers, _ := fx.store.AnswersByQuestion(context.Background(), attempt.ID)
	if len(answers) != 0 {
		t.Errorf("answers remain after retraction: %v", answers)
	}
}

func TestMultiSelectAccumulatesAndScoresPartial(t *testing.T) {
	fx := newAttemptFixture(t)

	// Rebuild the paper with a two-correct question.
	secondCorrect := uuid.New()
	fx.svc.papers = &fakePaperSource{keys: map[uuid.UUID][]scoring.QuestionKey{
		fx.setID: {{QuestionID: fx.question, CorrectIDs: []uuid.UUID{fx.correct, secondCorrect}}},
	}}

	attempt, err := fx.svc.Start(context.Background(), 7, fx.session.AccessCode)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := fx.svc.AddAnswer(context.Background(), 7, attempt.ID, &model.SaveAnswerRequest{QuestionID: fx.question, AnswerID: fx.correct}); err != nil {
		t.Fatalf("add answer: %v", err)
	}

	submitted, err := fx.svc.Submit(context.Background(), 7, attempt.ID)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if submitted.Score == nil || *submitted.Score != 5 {
		t.Errorf("score = %v, want 5 for one of two correct choices", submitted.Score)
	}
}

func TestStartPublishesMonitorEvent(t *testing.T) {
	fx := newAttemptFixture(t)

	attempt, err := fx.svc.Start(context.Background(), 7, fx.session.AccessCode)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if len(fx.events.events) != 1 {
		t.Fatalf("published %d events, want 1", len(fx.events.events))
	}
	e := fx.events.events[0]
	if e.Type != MonitorEventAttemptStarted || e.AttemptID != attempt.ID || e.SessionID != fx.session.ID {
		t.Errorf("unexpected event %+v", e)
	}
}

package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/examgate/examgate-backend/internal/apperr"
	"github.com/examgate/examgate-backend/internal/model"
	"github.com/examgate/examgate-backend/internal/repository"
	"github.com/examgate/examgate-backend/internal/scoring"
)

type fakeAssignmentStore struct {
	assignments map[uuid.UUID]*model.ProctorAssignment
	sessions    map[uuid.UUID]*model.ExamSession
	violations  []model.ViolationLog
}

func newFakeAssignmentStore(sessions map[uuid.UUID]*model.ExamSession) *fakeAssignmentStore {
	return &fakeAssignmentStore{
		assignments: make(map[uuid.UUID]*model.ProctorAssignment),
		sessions:    sessions,
	}
}

func (f *fakeAssignmentStore) GetAssignment(_ context.Context, sessionID uuid.UUID) (*model.ProctorAssignment, error) {
	pa, ok := f.assignments[sessionID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return pa, nil
}

func (f *fakeAssignmentStore) Replace(_ context.Context, pa *model.ProctorAssignment) error {
	target := f.sessions[pa.SessionID]
	for sid, existing := range f.assignments {
		if sid == pa.SessionID || existing.ProctorID != pa.ProctorID {
			continue
		}
		other := f.sessions[sid]
		if other.Status != model.SessionStatusCancelled && target.Overlaps(other) {
			return &apperr.AssignmentConflictError{ConflictingSessionID: sid}
		}
	}
	f.assignments[pa.SessionID] = pa
	return nil
}

func (f *fakeAssignmentStore) Unassign(_ context.Context, sessionID uuid.UUID) (int64, error) {
	if _, ok := f.assignments[sessionID]; !ok {
		return 0, nil
	}
	delete(f.assignments, sessionID)
	return 1, nil
}

func (f *fakeAssignmentStore) InsertViolation(_ context.Context, v *model.ViolationLog) error {
	v.ID = uuid.New()
	f.violations = append(f.violations, *v)
	return nil
}

func (f *fakeAssignmentStore) ListViolationsByAttempt(_ context.Context, attemptID uuid.UUID) ([]model.ViolationLog, error) {
	var out []model.ViolationLog
	for _, v := range f.violations {
		if v.AttemptID == attemptID {
			out = append(out, v)
		}
	}
	return out, nil
}

func (f *fakeAssignmentStore) ListViolationsBySession(_ context.Context, _ uuid.UUID) ([]model.ViolationLog, error) {
	return f.violations, nil
}

func (f *fakeAttemptStore) GetByID(_ context.Context, id uuid.UUID) (*model.Attempt, error) {
	a, ok := f.attempts[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *a
	return &cp, nil
}

func (f *fakeAttemptStore) MarkLocked(_ context.Context, id uuid.UUID) (int64, error) {
	a, ok := f.attempts[id]
	if !ok || a.Status.IsFinal() {
		return 0, nil
	}
	a.Status = model.AttemptStatusLocked
	return 1, nil
}

func (f *fakeAttemptStore) SetLockedScore(_ context.Context, id uuid.UUID, score float64) (int64, error) {
	a, ok := f.attempts[id]
	if !ok || a.Status != model.AttemptStatusLocked {
		return 0, nil
	}
	a.Score = &score
	return 1, nil
}

func (f *fakeAttemptStore) ListMonitorRows(_ context.Context, sessionID uuid.UUID) ([]repository.AttemptMonitorRow, error) {
	var rows []repository.AttemptMonitorRow
	for _, a := range f.attempts {
		if a.SessionID == sessionID {
			rows = append(rows, repository.AttemptMonitorRow{AttemptID: a.ID, StudentID: a.StudentID, Status: a.Status})
		}
	}
	return rows, nil
}

type fakeDirectory struct {
	users map[int]*model.User
}

func (f *fakeDirectory) GetByID(_ context.Context, id int) (*model.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return u, nil
}

func (f *fakeDirectory) ListProctorEligible(_ context.Context) ([]model.User, error) {
	var out []model.User
	for _, u := range f.users {
		if u.Active && u.RoleSet().ProctorEligible() {
			out = append(out, *u)
		}
	}
	return out, nil
}

type fakeTeacherView struct {
	sessions map[uuid.UUID]*model.ExamSession
	owners   map[uuid.UUID]int
}

func (f *fakeTeacherView) GetForTeacher(_ context.Context, teacherID int, id uuid.UUID) (*model.ExamSession, error) {
	s, ok := f.sessions[id]
	if !ok {
		return nil, apperr.NotFound("session not found")
	}
	if f.owners[id] != teacherID {
		return nil, apperr.Forbidden("session belongs to another teacher")
	}
	return s, nil
}

type proctorFixture struct {
	svc      *ProctorService
	store    *fakeAssignmentStore
	attempts *fakeAttemptStore
	events   *capturedEvents
	sessions map[uuid.UUID]*model.ExamSession
	keys     *fakePaperSource
	teacher  int
	proctor  int
}

func newProctorFixture(t *testing.T) *proctorFixture {
	t.Helper()

	sessions := make(map[uuid.UUID]*model.ExamSession)
	store := newFakeAssignmentStore(sessions)
	attempts := newFakeAttemptStore()
	events := &capturedEvents{}
	keys := &fakePaperSource{keys: make(map[uuid.UUID][]scoring.QuestionKey)}
	users := &fakeDirectory{users: map[int]*model.User{
		10: {ID: 10, Role: model.RoleProctor, Active: true},
		11: {ID: 11, Role: model.RoleTeacher, Active: true},
		12: {ID: 12, Role: model.RoleStudent, Active: true},
		13: {ID: 13, Role: model.RoleProctor, Active: false},
	}}
	view := &fakeTeacherView{sessions: sessions, owners: make(map[uuid.UUID]int)}

	svc := NewProctorService(store, attempts, users, view, keys, events, deadRedis(), zerolog.Nop())

	fx := &proctorFixture{
		svc:      svc,
		store:    store,
		attempts: attempts,
		events:   events,
		sessions: sessions,
		keys:     keys,
		teacher:  1,
		proctor:  10,
	}
	return fx
}

func (fx *proctorFixture) addSession(start, end time.Time) *model.ExamSession {
	s := &model.ExamSession{
		ID:      uuid.New(),
		ExamID:  uuid.New(),
		StartAt: start,
		EndAt:   end,
		Status:  model.SessionStatusScheduled,
	}
	fx.sessions[s.ID] = s
	fx.svc.sessions.(*fakeTeacherView).owners[s.ID] = fx.teacher
	return s
}

func TestAssignProctor(t *testing.T) {
	fx := newProctorFixture(t)
	base := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	s := fx.addSession(base, base.Add(time.Hour))

	pa, err := fx.svc.Assign(context.Background(), fx.teacher, s.ID, fx.proctor)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if pa.ProctorID != fx.proctor {
		t.Errorf("proctor = %d, want %d", pa.ProctorID, fx.proctor)
	}

	// Reassignment replaces, it does not stack.
	if _, err := fx.svc.Assign(context.Background(), fx.teacher, s.ID, 11); err != nil {
		t.Fatalf("reassign: %v", err)
	}
	if got := fx.store.assignments[s.ID].ProctorID; got != 11 {
		t.Errorf("after reassign proctor = %d, want 11", got)
	}
	if len(fx.store.assignments) != 1 {
		t.Errorf("assignments = %d, want 1", len(fx.store.assignments))
	}
}

func TestAssignRejectsDoubleBooking(t *testing.T) {
	fx := newProctorFixture(t)
	base := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)

	first := fx.addSession(base, base.Add(time.Hour))
	if _, err := fx.svc.Assign(context.Background(), fx.teacher, first.ID, fx.proctor); err != nil {
		t.Fatalf("first assign: %v", err)
	}

	overlapping := fx.addSession(base.Add(30*time.Minute), base.Add(90*time.Minute))
	_, err := fx.svc.Assign(context.Background(), fx.teacher, overlapping.ID, fx.proctor)
	var conflict *apperr.AssignmentConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected assignment conflict, got %v", err)
	}
	if conflict.ConflictingSessionID != first.ID {
		t.Errorf("conflicting session = %s, want %s", conflict.ConflictingSessionID, first.ID)
	}
	if apperr.KindOf(err) != apperr.KindConflict {
		t.Errorf("kind = %v, want conflict", apperr.KindOf(err))
	}
}

func TestAssignAllowsBackToBackWindows(t *testing.T) {
	fx := newProctorFixture(t)
	base := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)

	first := fx.addSession(base, base.Add(time.Hour))
	if _, err := fx.svc.Assign(context.Background(), fx.teacher, first.ID, fx.proctor); err != nil {
		t.Fatalf("first assign: %v", err)
	}

	// Second window starts the instant the first ends.
	adjacent := fx.addSession(base.Add(time.Hour), base.Add(2*time.Hour))
	if _, err := fx.svc.Assign(context.Background(), fx.teacher, adjacent.ID, fx.proctor); err != nil {
		t.Errorf("back-to-back assign rejected: %v", err)
	}
}

func TestAssignRejectsIneligibleUsers(t *testing.T) {
	fx := newProctorFixture(t)
	base := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	s := fx.addSession(base, base.Add(time.Hour))

	if _, err := fx.svc.Assign(context.Background(), fx.teacher, s.ID, 12); apperr.KindOf(err) != apperr.KindValidation {
		t.Errorf("student as proctor: kind = %v, want validation", apperr.KindOf(err))
	}
	if _, err := fx.svc.Assign(context.Background(), fx.teacher, s.ID, 13); apperr.KindOf(err) != apperr.KindValidation {
		t.Errorf("inactive proctor: kind = %v, want validation", apperr.KindOf(err))
	}
	if _, err := fx.svc.Assign(context.Background(), fx.teacher, s.ID, 99); apperr.KindOf(err) != apperr.KindNotFound {
		t.Errorf("unknown proctor: kind = %v, want not found", apperr.KindOf(err))
	}
}

func TestAssignRejectsFinalSessions(t *testing.T) {
	fx := newProctorFixture(t)
	base := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	s := fx.addSession(base, base.Add(time.Hour))
	s.Status = model.SessionStatusCompleted

	if _, err := fx.svc.Assign(context.Background(), fx.teacher, s.ID, fx.proctor); apperr.KindOf(err) != apperr.KindConflict {
		t.Errorf("kind = %v, want conflict", apperr.KindOf(err))
	}
}

func (fx *proctorFixture) addAttempt(sessionID uuid.UUID, studentID int, status model.AttemptStatus) *model.Attempt {
	a := &model.Attempt{
		ID:        uuid.New(),
		SessionID: sessionID,
		StudentID: studentID,
		Status:    status,
		StartedAt: time.Date(2026, 3, 10, 10, 5, 0, 0, time.UTC),
	}
	fx.attempts.attempts[a.ID] = a
	return a
}

func TestLockAttempt(t *testing.T) {
	fx := newProctorFixture(t)
	base := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	s := fx.addSession(base, base.Add(time.Hour))
	if _, err := fx.svc.Assign(context.Background(), fx.teacher, s.ID, fx.proctor); err != nil {
		t.Fatalf("assign: %v", err)
	}

	attempt := fx.addAttempt(s.ID, 7, model.AttemptStatusInProgress)
	req := &model.LockAttemptRequest{AttemptID: attempt.ID, Reason: "multiple faces on camera"}

	if err := fx.svc.LockAttempt(context.Background(), fx.proctor, req); err != nil {
		t.Fatalf("lock: %v", err)
	}
	if got := fx.attempts.attempts[attempt.ID].Status; got != model.AttemptStatusLocked {
		t.Errorf("status = %s, want locked", got)
	}

	// The lock reason lands in the violation trail.
	logs, _ := fx.store.ListViolationsByAttempt(context.Background(), attempt.ID)
	if len(logs) != 1 || logs[0].Type != model.ViolationLockedByProctor || logs[0].Description != req.Reason {
		t.Errorf("violation trail = %+v", logs)
	}

	if err := fx.svc.LockAttempt(context.Background(), fx.proctor, req); apperr.KindOf(err) != apperr.KindConflict {
		t.Errorf("double lock: kind = %v, want conflict", apperr.KindOf(err))
	}
}

func TestLockRequiresAssignment(t *testing.T) {
	fx := newProctorFixture(t)
	base := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	s := fx.addSession(base, base.Add(time.Hour))
	attempt := fx.addAttempt(s.ID, 7, model.AttemptStatusInProgress)

	req := &model.LockAttemptRequest{AttemptID: attempt.ID, Reason: "suspicious"}
	if err := fx.svc.LockAttempt(context.Background(), fx.proctor, req); apperr.KindOf(err) != apperr.KindForbidden {
		t.Errorf("kind = %v, want forbidden", apperr.KindOf(err))
	}
}

func TestScoreLocked(t *testing.T) {
	fx := newProctorFixture(t)
	base := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	s := fx.addSession(base, base.Add(time.Hour))
	if _, err := fx.svc.Assign(context.Background(), fx.teacher, s.ID, fx.proctor); err != nil {
		t.Fatalf("assign: %v", err)
	}

	setID := uuid.New()
	questionID := uuid.New()
	correctID := uuid.New()
	fx.keys.keys[setID] = []scoring.QuestionKey{{QuestionID: questionID, CorrectIDs: []uuid.UUID{correctID}}}

	attempt := fx.addAttempt(s.ID, 7, model.AttemptStatusLocked)
	fx.attempts.attempts[attempt.ID].ExamSetID = &setID
	fx.attempts.answers[attempt.ID] = map[uuid.UUID][]uuid.UUID{questionID: {correctID}}

	scored, err := fx.svc.ScoreLocked(context.Background(), fx.proctor, attempt.ID)
	if err != nil {
		t.Fatalf("score locked: %v", err)
	}
	if scored.Score == nil || *scored.Score != 10 {
		t.Errorf("score = %v, want 10", scored.Score)
	}
	// The attempt stays locked; scoring is not a release.
	if got := fx.attempts.attempts[attempt.ID].Status; got != model.AttemptStatusLocked {
		t.Errorf("status = %s, want locked", got)
	}

	inProgress := fx.addAttempt(s.ID, 8, model.AttemptStatusInProgress)
	fx.attempts.attempts[inProgress.ID].ExamSetID = &setID
	if _, err := fx.svc.ScoreLocked(context.Background(), fx.proctor, inProgress.ID); apperr.KindOf(err) != apperr.KindConflict {
		t.Errorf("score non-locked: kind = %v, want conflict", apperr.KindOf(err))
	}
}

func TestMonitorRequiresAssignment(t *testing.T) {
	fx := newProctorFixture(t)
	base := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	s := fx.addSession(base, base.Add(time.Hour))
	fx.addAttempt(s.ID, 7, model.AttemptStatusInProgress)

	if _, err := fx.svc.Monitor(context.Background(), fx.proctor, s.ID); apperr.KindOf(err) != apperr.KindForbidden {
		t.Errorf("kind = %v, want forbidden", apperr.KindOf(err))
	}

	if _, err := fx.svc.Assign(context.Background(), fx.teacher, s.ID, fx.proctor); err != nil {
		t.Fatalf("assign: %v", err)
	}
	rows, err := fx.svc.Monitor(context.Background(), fx.proctor, s.ID)
	if err != nil {
		t.Fatalf("monitor: %v", err)
	}
	if len(rows) != 1 {
		t.Errorf("rows = %d, want 1", len(rows))
	}
}

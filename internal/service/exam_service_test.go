package service

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/examgate/examgate-backend/internal/apperr"
	"github.com/examgate/examgate-backend/internal/examset"
	"github.com/examgate/examgate-backend/internal/model"
)

type fakeExamStore struct {
	exams  map[uuid.UUID]*model.Exam
	owners map[uuid.UUID]int
}

func newFakeExamStore() *fakeExamStore {
	return &fakeExamStore{exams: make(map[uuid.UUID]*model.Exam), owners: make(map[uuid.UUID]int)}
}

func (f *fakeExamStore) Create(_ context.Context, e *model.Exam) error {
	cp := *e
	f.exams[e.ID] = &cp
	return nil
}

func (f *fakeExamStore) GetByID(_ context.Context, id uuid.UUID) (*model.Exam, error) {
	e, ok := f.exams[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *e
	return &cp, nil
}

func (f *fakeExamStore) GetOwner(_ context.Context, examID uuid.UUID) (int, error) {
	owner, ok := f.owners[examID]
	if !ok {
		return 0, pgx.ErrNoRows
	}
	return owner, nil
}

func (f *fakeExamStore) Update(_ context.Context, e *model.Exam) error {
	cp := *e
	f.exams[e.ID] = &cp
	return nil
}

func (f *fakeExamStore) ListBySubject(_ context.Context, subjectID uuid.UUID) ([]model.Exam, error) {
	var out []model.Exam
	for _, e := range f.exams {
		if e.SubjectID == subjectID {
			out = append(out, *e)
		}
	}
	return out, nil
}

type fakeExamSetStore struct {
	sets     map[uuid.UUID]*model.ExamSet
	orders   map[uuid.UUID][]uuid.UUID
	nextCode map[uuid.UUID]int
}

func newFakeExamSetStore() *fakeExamSetStore {
	return &fakeExamSetStore{
		sets:     make(map[uuid.UUID]*model.ExamSet),
		orders:   make(map[uuid.UUID][]uuid.UUID),
		nextCode: make(map[uuid.UUID]int),
	}
}

func (f *fakeExamSetStore) CreateWithQuestions(_ context.Context, set *model.ExamSet, questionIDs []uuid.UUID) error {
	cp := *set
	f.sets[set.ID] = &cp
	f.orders[set.ID] = append([]uuid.UUID(nil), questionIDs...)
	if set.Code >= f.nextCode[set.ExamID] {
		f.nextCode[set.ExamID] = set.Code + 1
	}
	return nil
}

func (f *fakeExamSetStore) CreateShuffledVariants(_ context.Context, examID uuid.UUID, orders [][]uuid.UUID) ([]model.ExamSet, error) {
	var out []model.ExamSet
	for _, order := range orders {
		code := f.nextCode[examID]
		if code <= model.CanonicalSetCode {
			code = model.CanonicalSetCode + 1
		}
		f.nextCode[examID] = code + 1

		set := model.ExamSet{ID: uuid.New(), ExamID: examID, Code: code}
		f.sets[set.ID] = &set
		f.orders[set.ID] = append([]uuid.UUID(nil), order...)
		out = append(out, set)
	}
	return out, nil
}

func (f *fakeExamSetStore) ListByExam(_ context.Context, examID uuid.UUID) ([]model.ExamSet, error) {
	var out []model.ExamSet
	for _, s := range f.sets {
		if s.ExamID == examID {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (f *fakeExamSetStore) CanonicalQuestionIDs(_ context.Context, examID uuid.UUID) ([]uuid.UUID, error) {
	for _, s := range f.sets {
		if s.ExamID == examID && s.Code == model.CanonicalSetCode {
			return f.orders[s.ID], nil
		}
	}
	return nil, nil
}

func (f *fakeExamSetStore) ListQuestions(_ context.Context, setID uuid.UUID) ([]model.ExamSetQuestion, error) {
	var out []model.ExamSetQuestion
	for i, qID := range f.orders[setID] {
		out = append(out, model.ExamSetQuestion{ExamSetID: setID, QuestionID: qID, OrderIndex: i + 1})
	}
	return out, nil
}

type fakeSubjects struct {
	owned map[uuid.UUID]int
}

func (f *fakeSubjects) GetOwned(_ context.Context, id uuid.UUID, teacherID int) (*model.Subject, error) {
	owner, ok := f.owned[id]
	if !ok {
		return nil, apperr.NotFound("subject not found")
	}
	if owner != teacherID {
		return nil, apperr.Forbidden("subject belongs to another teacher")
	}
	return &model.Subject{ID: id, TeacherID: owner}, nil
}

type staticPool struct {
	chapters map[uuid.UUID][]uuid.UUID
	subject  []uuid.UUID
}

func (p *staticPool) ChapterQuestionIDs(_ context.Context, chapterID uuid.UUID) ([]uuid.UUID, error) {
	return p.chapters[chapterID], nil
}

func (p *staticPool) SubjectQuestionIDs(_ context.Context, _ uuid.UUID) ([]uuid.UUID, error) {
	return p.subject, nil
}

type examFixture struct {
	svc       *ExamService
	exams     *fakeExamStore
	sets      *fakeExamSetStore
	subjectID uuid.UUID
	chapterID uuid.UUID
	pool      *staticPool
}

func newExamFixture(t *testing.T, poolSize int) *examFixture {
	t.Helper()

	subjectID := uuid.New()
	chapterID := uuid.New()
	pool := &staticPool{chapters: map[uuid.UUID][]uuid.UUID{chapterID: {}}}
	for i := 0; i < poolSize; i++ {
		id := uuid.New()
		pool.chapters[chapterID] = append(pool.chapters[chapterID], id)
		pool.subject = append(pool.subject, id)
	}

	exams := newFakeExamStore()
	sets := newFakeExamSetStore()
	svc := NewExamService(
		exams,
		sets,
		&fakeSubjects{owned: map[uuid.UUID]int{subjectID: 1}},
		examset.NewBuilder(pool, rand.New(rand.NewSource(42))),
		zerolog.Nop(),
	)

	return &examFixture{svc: svc, exams: exams, sets: sets, subjectID: subjectID, chapterID: chapterID, pool: pool}
}

func (fx *examFixture) createExam(t *testing.T, total int) (*model.Exam, *model.ExamSet) {
	t.Helper()
	exam, set, err := fx.svc.Create(context.Background(), 1, &model.CreateExamRequest{
		SubjectID:       fx.subjectID,
		Title:           "Midterm",
		DurationMinutes: 60,
		TotalQuestions:  total,
		Distribution:    []model.ChapterQuota{{ChapterID: fx.chapterID, QuestionCount: total}},
	})
	if err != nil {
		t.Fatalf("create exam: %v", err)
	}
	fx.exams.owners[exam.ID] = 1
	return exam, set
}

func TestCreateExamBuildsCanonicalSet(t *testing.T) {
	fx := newExamFixture(t, 10)

	exam, set, err := fx.svc.Create(context.Background(), 1, &model.CreateExamRequest{
		SubjectID:       fx.subjectID,
		Title:           "Midterm",
		DurationMinutes: 60,
		TotalQuestions:  5,
		Distribution:    []model.ChapterQuota{{ChapterID: fx.chapterID, QuestionCount: 5}},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !set.IsCanonical() {
		t.Errorf("set code = %d, want canonical", set.Code)
	}

	order := fx.sets.orders[set.ID]
	if len(order) != 5 {
		t.Fatalf("set holds %d questions, want 5", len(order))
	}
	seen := make(map[uuid.UUID]bool)
	for _, id := range order {
		if seen[id] {
			t.Errorf("question %s sampled twice", id)
		}
		seen[id] = true
	}
	if _, ok := fx.exams.exams[exam.ID]; !ok {
		t.Error("exam not persisted")
	}
}

func TestCreateExamPropagatesShortfall(t *testing.T) {
	fx := newExamFixture(t, 3)

	_, _, err := fx.svc.Create(context.Background(), 1, &model.CreateExamRequest{
		SubjectID:       fx.subjectID,
		Title:           "Midterm",
		DurationMinutes: 60,
		TotalQuestions:  10,
		Distribution:    []model.ChapterQuota{{ChapterID: fx.chapterID, QuestionCount: 10}},
	})
	var shortfall *apperr.ShortfallError
	if !errors.As(err, &shortfall) {
		t.Fatalf("expected shortfall error, got %v", err)
	}
	if shortfall.Requested != 10 || shortfall.Obtained != 3 {
		t.Errorf("shortfall = %d/%d, want 3/10 obtained/requested", shortfall.Obtained, shortfall.Requested)
	}
	if len(fx.exams.exams) != 0 {
		t.Error("exam persisted despite shortfall")
	}
}

func TestGenerateShuffledSets(t *testing.T) {
	fx := newExamFixture(t, 12)
	exam, set := fx.createExam(t, 12)

	variants, err := fx.svc.GenerateShuffledSets(context.Background(), 1, exam.ID, 3)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(variants) != 3 {
		t.Fatalf("generated %d variants, want 3", len(variants))
	}

	canonical := fx.sets.orders[set.ID]
	membership := make(map[uuid.UUID]bool, len(canonical))
	for _, id := range canonical {
		membership[id] = true
	}

	usedCodes := map[int]bool{model.CanonicalSetCode: true}
	for _, v := range variants {
		if v.Code <= model.CanonicalSetCode {
			t.Errorf("variant code %d not above canonical", v.Code)
		}
		if usedCodes[v.Code] {
			t.Errorf("code %d reused", v.Code)
		}
		usedCodes[v.Code] = true

		order := fx.sets.orders[v.ID]
		if len(order) != len(canonical) {
			t.Fatalf("variant holds %d questions, want %d", len(order), len(canonical))
		}
		for _, id := range order {
			if !membership[id] {
				t.Errorf("variant contains %s outside canonical membership", id)
			}
		}
	}
}

func TestGenerateShuffledSetsRequiresCanonical(t *testing.T) {
	fx := newExamFixture(t, 5)

	examID := uuid.New()
	fx.exams.exams[examID] = &model.Exam{ID: examID, SubjectID: fx.subjectID}
	fx.exams.owners[examID] = 1

	if _, err := fx.svc.GenerateShuffledSets(context.Background(), 1, examID, 2); apperr.KindOf(err) != apperr.KindNotFound {
		t.Errorf("kind = %v, want not found", apperr.KindOf(err))
	}
}

func TestExamOwnershipGuards(t *testing.T) {
	fx := newExamFixture(t, 5)
	exam, _ := fx.createExam(t, 5)

	if _, err := fx.svc.GetOwned(context.Background(), 2, exam.ID); apperr.KindOf(err) != apperr.KindForbidden {
		t.Errorf("foreign teacher: kind = %v, want forbidden", apperr.KindOf(err))
	}
	if _, err := fx.svc.GetOwned(context.Background(), 1, uuid.New()); apperr.KindOf(err) != apperr.KindNotFound {
		t.Errorf("unknown exam: kind = %v, want not found", apperr.KindOf(err))
	}
}

package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/examgate/examgate-backend/internal/model"
	"github.com/examgate/examgate-backend/internal/scoring"
)

// QuestionRepository handles question pool data access. It also implements
// examset.Pool for the stratified set builder.
type QuestionRepository struct {
	pool *pgxpool.Pool
}

// NewQuestionRepository creates a new QuestionRepository.
func NewQuestionRepository(pool *pgxpool.Pool) *QuestionRepository {
	return &QuestionRepository{pool: pool}
}

// Create inserts a question together with its answer choices in one
// transaction.
func (r *QuestionRepository) Create(ctx context.Context, q *model.Question) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx,
		`INSERT INTO questions (subject_id, chapter_id, content)
		 VALUES ($1, $2, $3)
		 RETURNING id`,
		q.SubjectID, q.ChapterID, q.Content,
	).Scan(&q.ID)
	if err != nil {
		return fmt.Errorf("insert question: %w", err)
	}

	for i := range q.Choices {
		c := &q.Choices[i]
		c.QuestionID = q.ID
		err = tx.QueryRow(ctx,
			`INSERT INTO answer_choices (question_id, label, content, is_correct)
			 VALUES ($1, $2, $3, $4)
			 RETURNING id`,
			c.QuestionID, c.Label, c.Content, c.IsCorrect,
		).Scan(&c.ID)
		if err != nil {
			return fmt.Errorf("insert choice %q: %w", c.Label, err)
		}
	}

	return tx.Commit(ctx)
}

// GetByID retrieves a question with its choices.
func (r *QuestionRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Question, error) {
	q := &model.Question{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, subject_id, chapter_id, content FROM questions WHERE id = $1`, id,
	).Scan(&q.ID, &q.SubjectID, &q.ChapterID, &q.Content)
	if err != nil {
		return nil, err
	}

	choices, err := r.ListChoices(ctx, id)
	if err != nil {
		return nil, err
	}
	q.Choices = choices
	return q, nil
}

// ListChoices lists a question's answer choices including correctness flags.
func (r *QuestionRepository) ListChoices(ctx context.Context, questionID uuid.UUID) ([]model.AnswerChoice, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, question_id, label, content, is_correct
		 FROM answer_choices
		 WHERE question_id = $1
		 ORDER BY label`, questionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var choices []model.AnswerChoice
	for rows.Next() {
		var c model.AnswerChoice
		if err := rows.Scan(&c.ID, &c.QuestionID, &c.Label, &c.Content, &c.IsCorrect); err != nil {
			return nil, err
		}
		choices = append(choices, c)
	}
	return choices, rows.Err()
}

// ListByChapter lists questions of one chapter, without choices.
func (r *QuestionRepository) ListByChapter(ctx context.Context, chapterID uuid.UUID) ([]model.Question, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, subject_id, chapter_id, content
		 FROM questions
		 WHERE chapter_id = $1
		 ORDER BY id`, chapterID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var questions []model.Question
	for rows.Next() {
		var q model.Question
		if err := rows.Scan(&q.ID, &q.SubjectID, &q.ChapterID, &q.Content); err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// ChapterQuestionIDs lists the ids of a chapter's question pool.
func (r *QuestionRepository) ChapterQuestionIDs(ctx context.Context, chapterID uuid.UUID) ([]uuid.UUID, error) {
	return r.scanIDs(r.pool.Query(ctx,
		`SELECT id FROM questions WHERE chapter_id = $1`, chapterID))
}

// SubjectQuestionIDs lists the ids of a subject's entire question pool.
func (r *QuestionRepository) SubjectQuestionIDs(ctx context.Context, subjectID uuid.UUID) ([]uuid.UUID, error) {
	return r.scanIDs(r.pool.Query(ctx,
		`SELECT id FROM questions WHERE subject_id = $1`, subjectID))
}

// SetQuestionKeys returns the answer keys for every question of an exam set,
// ordered by the set's order index, ready for the scoring engine.
func (r *QuestionRepository) SetQuestionKeys(ctx context.Context, examSetID uuid.UUID) ([]scoring.QuestionKey, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT esq.question_id, ac.id
		 FROM exam_set_questions esq
		 LEFT JOIN answer_choices ac
		   ON ac.question_id = esq.question_id AND ac.is_correct
		 WHERE esq.exam_set_id = $1
		 ORDER BY esq.order_index`, examSetID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []scoring.QuestionKey
	index := make(map[uuid.UUID]int)
	for rows.Next() {
		var qID uuid.UUID
		var choiceID *uuid.UUID
		if err := rows.Scan(&qID, &choiceID); err != nil {
			return nil, err
		}
		i, ok := index[qID]
		if !ok {
			i = len(keys)
			index[qID] = i
			keys = append(keys, scoring.QuestionKey{QuestionID: qID})
		}
		if choiceID != nil {
			keys[i].CorrectIDs = append(keys[i].CorrectIDs, *choiceID)
		}
	}
	return keys, rows.Err()
}

// ListBySetOrdered lists an exam set's questions in presentation order,
// with choices attached but correctness flags zeroed. This is the shape
// handed to a student mid-attempt.
func (r *QuestionRepository) ListBySetOrdered(ctx context.Context, examSetID uuid.UUID) ([]model.Question, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT q.id, q.subject_id, q.chapter_id, q.content
		 FROM exam_set_questions esq
		 JOIN questions q ON q.id = esq.question_id
		 WHERE esq.exam_set_id = $1
		 ORDER BY esq.order_index`, examSetID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var questions []model.Question
	index := make(map[uuid.UUID]int)
	for rows.Next() {
		var q model.Question
		if err := rows.Scan(&q.ID, &q.SubjectID, &q.ChapterID, &q.Content); err != nil {
			return nil, err
		}
		index[q.ID] = len(questions)
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(questions) == 0 {
		return questions, nil
	}

	choiceRows, err := r.pool.Query(ctx,
		`SELECT ac.id, ac.question_id, ac.label, ac.content
		 FROM answer_choices ac
		 JOIN exam_set_questions esq ON esq.question_id = ac.question_id
		 WHERE esq.exam_set_id = $1
		 ORDER BY ac.question_id, ac.label`, examSetID,
	)
	if err != nil {
		return nil, err
	}
	defer choiceRows.Close()

	for choiceRows.Next() {
		var c model.AnswerChoice
		if err := choiceRows.Scan(&c.ID, &c.QuestionID, &c.Label, &c.Content); err != nil {
			return nil, err
		}
		if i, ok := index[c.QuestionID]; ok {
			questions[i].Choices = append(questions[i].Choices, c)
		}
	}
	return questions, choiceRows.Err()
}

func (r *QuestionRepository) scanIDs(rows pgx.Rows, err error) ([]uuid.UUID, error) {
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

// Package examset builds exam question sets: stratified sampling from a
// chapter distribution and unbiased shuffling of existing sets.
package examset

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	"github.com/google/uuid"

	"github.com/examgate/examgate-backend/internal/apperr"
	"github.com/examgate/examgate-backend/internal/model"
)

// Pool lists question ids available for sampling. Implemented by the
// question repository; tests supply in-memory pools.
type Pool interface {
	ChapterQuestionIDs(ctx context.Context, chapterID uuid.UUID) ([]uuid.UUID, error)
	SubjectQuestionIDs(ctx context.Context, subjectID uuid.UUID) ([]uuid.UUID, error)
}

// Builder samples and shuffles question sets. The random source is
// injectable so tests run with a fixed seed.
type Builder struct {
	pool Pool

	mu  sync.Mutex
	rng *rand.Rand
}

// NewBuilder creates a Builder over the given pool. A nil rng falls back to
// a time-seeded source.
func NewBuilder(pool Pool, rng *rand.Rand) *Builder {
	if rng == nil {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}
	return &Builder{pool: pool, rng: rng}
}

// BuildSet draws exactly total distinct question ids honoring the chapter
// distribution, backfilling from the subject at large when chapters run out
// of unique questions, and shuffles the result before order assignment.
//
// Returns *apperr.ShortfallError when even the backfill cannot reach total;
// the partial draw is returned alongside so the caller can decide whether to
// proceed with fewer questions.
func (b *Builder) BuildSet(ctx context.Context, subjectID uuid.UUID, distribution []model.ChapterQuota, total int) ([]uuid.UUID, error) {
	if total <= 0 {
		return nil, apperr.Validation("total question count must be positive, got %d", total)
	}
	for _, quota := range distribution {
		if quota.QuestionCount <= 0 {
			return nil, apperr.Validation("chapter %s: question count must be positive, got %d", quota.ChapterID, quota.QuestionCount)
		}
	}

	drawn := make([]uuid.UUID, 0, total)
	taken := make(map[uuid.UUID]struct{}, total)

	for _, quota := range distribution {
		if len(drawn) >= total {
			break
		}
		pool, err := b.pool.ChapterQuestionIDs(ctx, quota.ChapterID)
		if err != nil {
			return nil, fmt.Errorf("list chapter %s questions: %w", quota.ChapterID, err)
		}

		want := quota.QuestionCount
		if remaining := total - len(drawn); want > remaining {
			want = remaining
		}
		picked := b.sample(pool, want, taken)
		for _, id := range picked {
			taken[id] = struct{}{}
			drawn = append(drawn, id)
		}
	}

	// Chapters exhausted before reaching the target: backfill from the
	// whole subject, still excluding already-drawn ids.
	if len(drawn) < total {
		pool, err := b.pool.SubjectQuestionIDs(ctx, subjectID)
		if err != nil {
			return nil, fmt.Errorf("list subject %s questions: %w", subjectID, err)
		}
		picked := b.sample(pool, total-len(drawn), taken)
		for _, id := range picked {
			taken[id] = struct{}{}
			drawn = append(drawn, id)
		}
	}

	b.Shuffle(drawn)

	if len(drawn) < total {
		return drawn, &apperr.ShortfallError{Requested: total, Obtained: len(drawn)}
	}
	return drawn, nil
}

// Shuffle permutes ids in place with a Fisher–Yates shuffle.
func (b *Builder) Shuffle(ids []uuid.UUID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rng.Shuffle(len(ids), func(i, j int) {
		ids[i], ids[j] = ids[j], ids[i]
	})
}

// ShuffledCopy returns a new shuffled ordering of ids, leaving the input
// untouched. Used when generating variant sets from the canonical list.
func (b *Builder) ShuffledCopy(ids []uuid.UUID) []uuid.UUID {
	out := make([]uuid.UUID, len(ids))
	copy(out, ids)
	b.Shuffle(out)
	return out
}

// sample draws up to want distinct ids uniformly at random from pool,
// skipping anything already in taken.
func (b *Builder) sample(pool []uuid.UUID, want int, taken map[uuid.UUID]struct{}) []uuid.UUID {
	candidates := make([]uuid.UUID, 0, len(pool))
	for _, id := range pool {
		if _, ok := taken[id]; !ok {
			candidates = append(candidates, id)
		}
	}

	if want >= len(candidates) {
		return candidates
	}

	// Partial Fisher–Yates: after k swaps the first k slots are a uniform
	// k-subset in uniform order.
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := 0; i < want; i++ {
		j := i + b.rng.Intn(len(candidates)-i)
		candidates[i], candidates[j] = candidates[j], candidates[i]
	}
	return candidates[:want]
}

// Package scoring computes attempt scores. Pure and deterministic so it can
// be tested independently of storage; Submit calls it synchronously instead
// of relying on database triggers.
package scoring

import "github.com/google/uuid"

// QuestionKey is one question of an exam set with its correct choice ids.
// Multi-correct questions carry more than one id.
type QuestionKey struct {
	QuestionID uuid.UUID
	CorrectIDs []uuid.UUID
}

// Result is the outcome of scoring one attempt.
type Result struct {
	// Score is the final grade on a 0–10 scale.
	Score float64
	// CorrectCount is the number of questions answered with at least one
	// correct pick and zero wrong picks.
	CorrectCount int
	// TotalCount is the number of questions in the set.
	TotalCount int
}

// Score grades a full exam set against the chosen answers. Every question in
// the set counts, not merely the answered ones: unanswered questions earn
// zero credit.
//
// Per question with correct set C and chosen set S:
//
//	qScore = max(0, (|S∩C| - |S\C|) / max(1, |C|))
//
// The final score is 10 * Σ qScore / len(questions), or 0 for an empty set
// (an upstream configuration error, not a scoring concern).
//
// A question counts toward CorrectCount iff the student picked a non-empty
// subset of the correct choices with zero wrong picks. Partial correct-only
// selection on a multi-correct question still counts as "correct"; this is
// an explicit policy, independent of the fractional qScore.
func Score(questions []QuestionKey, chosen map[uuid.UUID][]uuid.UUID) Result {
	res := Result{TotalCount: len(questions)}
	if len(questions) == 0 {
		return res
	}

	var total float64
	for _, q := range questions {
		correct := make(map[uuid.UUID]struct{}, len(q.CorrectIDs))
		for _, id := range q.CorrectIDs {
			correct[id] = struct{}{}
		}

		var correctPicked, wrongPicked int
		seen := make(map[uuid.UUID]struct{})
		for _, pick := range chosen[q.QuestionID] {
			if _, dup := seen[pick]; dup {
				continue
			}
			seen[pick] = struct{}{}
			if _, ok := correct[pick]; ok {
				correctPicked++
			} else {
				wrongPicked++
			}
		}

		denom := len(correct)
		if denom < 1 {
			denom = 1
		}
		qScore := float64(correctPicked-wrongPicked) / float64(denom)
		if qScore < 0 {
			qScore = 0
		}
		total += qScore

		if correctPicked > 0 && wrongPicked == 0 {
			res.CorrectCount++
		}
	}

	res.Score = 10 * total / float64(len(questions))
	return res
}

// Package grading computes the authoritative score of an attempt from the
// stored question set. Matching is exact and case-sensitive.
package grading

import (
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stemsi/examsecure/internal/model"
)

var hundred = decimal.NewFromInt(100)

// Result of scoring one attempt.
type Result struct {
	Score       int
	TotalPoints int
	Percentage  decimal.Decimal
	Correct     map[uuid.UUID]bool
}

// PercentageFloat returns the rounded percentage as a float64 for storage.
func (r Result) PercentageFloat() float64 {
	return r.Percentage.InexactFloat64()
}

// PointsOf returns the point value a question is worth. Unset values count as 1.
func PointsOf(q model.Question) int {
	if q.Points <= 0 {
		return 1
	}
	return q.Points
}

// Resolve drops blank answers, which count as unanswered.
func Resolve(answers map[string]string) map[string]string {
	resolved := make(map[string]string, len(answers))
	for qid, v := range answers {
		if strings.TrimSpace(v) == "" {
			continue
		}
		resolved[qid] = v
	}
	return resolved
}

// Score grades answers against questions. Answers for unknown question ids
// are ignored.
func Score(questions []model.Question, answers map[string]string) Result {
	resolved := Resolve(answers)
	res := Result{Correct: make(map[uuid.UUID]bool, len(questions))}

	for _, q := range questions {
		pts := PointsOf(q)
		res.TotalPoints += pts

		ans, ok := resolved[q.ID.String()]
		correct := ok && ans == q.CorrectAnswer
		res.Correct[q.ID] = correct
		if correct {
			res.Score += pts
		}
	}

	res.Percentage = Percentage(res.Score, res.TotalPoints)
	return res
}

// Percentage returns round2(score / total * 100), or 0 when total is 0.
func Percentage(score, total int) decimal.Decimal {
	if total <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(score)).
		Mul(hundred).
		Div(decimal.NewFromInt(int64(total))).
		Round(2)
}

// Detail builds the per-question breakdown of a stored attempt.
func Detail(questions []model.Question, answers map[string]string) []model.QuestionResult {
	resolved := Resolve(answers)
	out := make([]model.QuestionResult, 0, len(questions))
	for _, q := range questions {
		ans := resolved[q.ID.String()]
		out = append(out, model.QuestionResult{
			QuestionID:    q.ID,
			QuestionText:  q.QuestionText,
			QuestionType:  q.QuestionType,
			Options:       q.Options,
			StudentAnswer: ans,
			CorrectAnswer: q.CorrectAnswer,
			Points:        PointsOf(q),
			IsCorrect:     ans != "" && ans == q.CorrectAnswer,
		})
	}
	return out
}

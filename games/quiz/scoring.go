package quiz

import (
	"slices"
	"strings"
)

// Answer is what a player submitted for the current question. Index is used
// by choice questions, Text by open ones.
type Answer struct {
	Index int
	Text  string
}

// NormalizeOpenAnswer prepares free text for case-insensitive comparison.
func NormalizeOpenAnswer(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Correct reports whether an answer matches the question's key.
func Correct(q Question, a Answer) bool {
	switch q := q.(type) {
	case *ChoiceQuestion:
		return a.Index == q.CorrectIndex
	case *OpenQuestion:
		want := NormalizeOpenAnswer(q.CorrectAnswer)
		got := NormalizeOpenAnswer(a.Text)
		return want != "" && got == want
	default:
		return false
	}
}

// Tally is the outcome of scoring one question.
type Tally struct {
	Delta   map[string]int
	Correct map[string]bool
}

// ScoreQuestion scores every listed player against the question. Players
// without an answer score zero.
func ScoreQuestion(q Question, players []string, answers map[string]Answer) Tally {
	t := Tally{
		Delta:   make(map[string]int, len(players)),
		Correct: make(map[string]bool, len(players)),
	}

	for _, id := range players {
		a, ok := answers[id]
		hit := ok && Correct(q, a)

		t.Correct[id] = hit
		t.Delta[id] = 0
		if hit {
			t.Delta[id] = 1
		}
	}

	return t
}

type Standing struct {
	Nickname string `json:"nickname"`
	Score    int    `json:"score"`
}

// Rank orders standings by score, highest first. Equal scores keep their
// input order.
func Rank(standings []Standing) []Standing {
	ranked := slices.Clone(standings)
	slices.SortStableFunc(ranked, func(a, b Standing) int {
		return b.Score - a.Score
	})

	return ranked
}

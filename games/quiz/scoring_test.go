package quiz

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCorrect(t *testing.T) {
	choice := &ChoiceQuestion{Options: []string{"a", "b", "c"}, CorrectIndex: 1}
	open := &OpenQuestion{CorrectAnswer: "  Mount Everest "}

	assert.True(t, Correct(choice, Answer{Index: 1}))
	assert.False(t, Correct(choice, Answer{Index: 0}))

	assert.True(t, Correct(open, Answer{Text: "mount everest"}))
	assert.True(t, Correct(open, Answer{Text: " MOUNT EVEREST  "}))
	assert.False(t, Correct(open, Answer{Text: "everest"}))
	assert.False(t, Correct(open, Answer{}))

	assert.False(t, Correct(&OpenQuestion{}, Answer{}), "an empty key matches nothing")
	assert.False(t, Correct(nil, Answer{}))
}

func TestScoreQuestion(t *testing.T) {
	q := &ChoiceQuestion{Options: []string{"a", "b"}, CorrectIndex: 0}
	answers := map[string]Answer{
		"p1":   {Index: 0},
		"p2":   {Index: 1},
		"gone": {Index: 0},
	}

	tally := ScoreQuestion(q, []string{"p1", "p2", "p3"}, answers)

	assert.Equal(t, map[string]int{"p1": 1, "p2": 0, "p3": 0}, tally.Delta)
	assert.Equal(t, map[string]bool{"p1": true, "p2": false, "p3": false}, tally.Correct)
}

func TestRank(t *testing.T) {
	in := []Standing{
		{Nickname: "ann", Score: 1},
		{Nickname: "bob", Score: 3},
		{Nickname: "cat", Score: 1},
		{Nickname: "dan", Score: 0},
	}

	got := Rank(in)

	assert.Equal(t, []Standing{
		{Nickname: "bob", Score: 3},
		{Nickname: "ann", Score: 1},
		{Nickname: "cat", Score: 1},
		{Nickname: "dan", Score: 0},
	}, got)
	assert.Equal(t, "ann", in[0].Nickname, "input is left untouched")
}

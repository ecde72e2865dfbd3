/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package quiz

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

const (
	maxOptions = 10
	minOptions = 2
)

var defaultOptions = []string{"A", "B", "C", "D"}

type Kind string

const (
	KindChoice Kind = "choice"
	KindOpen   Kind = "open"
)

// Media holds optional resource references attached to a question.
type Media struct {
	Image string `json:"image,omitempty"`
	Video string `json:"video,omitempty"`
	Audio string `json:"audio,omitempty"`
}

// Question is either a *ChoiceQuestion or an *OpenQuestion.
type Question interface {
	Kind() Kind
	Prompt() string
	Attachments() Media

	question()
}

type ChoiceQuestion struct {
	Text         string
	Options      []string
	CorrectIndex int
	Media        Media
}

func (q *ChoiceQuestion) Kind() Kind         { return KindChoice }
func (q *ChoiceQuestion) Prompt() string     { return q.Text }
func (q *ChoiceQuestion) Attachments() Media { return q.Media }
func (q *ChoiceQuestion) question()          {}

type OpenQuestion struct {
	Text          string
	CorrectAnswer string
	Media         Media
}

func (q *OpenQuestion) Kind() Kind         { return KindOpen }
func (q *OpenQuestion) Prompt() string     { return q.Text }
func (q *OpenQuestion) Attachments() Media { return q.Media }
func (q *OpenQuestion) question()          {}

// Text is a JSON string that also accepts numbers, booleans and null,
// since hand-edited packs are not strict about types.
type Text string

func (t *Text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*t = ""
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = Text(s)
		return nil
	}

	*t = Text(data)
	return nil
}

// Number is a JSON number that also accepts numeric strings. Anything
// unparseable decodes to zero.
type Number float64

func (n *Number) UnmarshalJSON(data []byte) error {
	var t Text
	if err := t.UnmarshalJSON(data); err != nil {
		return err
	}

	f, err := strconv.ParseFloat(strings.TrimSpace(string(t)), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		*n = 0
		return nil
	}

	*n = Number(f)
	return nil
}

// RawQuestion is a question as stored in a pack file.
type RawQuestion struct {
	Type          string `json:"type,omitempty"`
	Question      Text   `json:"question"`
	Options       []Text `json:"options,omitempty"`
	CorrectIndex  Number `json:"correctIndex,omitempty"`
	CorrectAnswer Text   `json:"correctAnswer,omitempty"`
	Image         Text   `json:"image,omitempty"`
	Video         Text   `json:"video,omitempty"`
	Audio         Text   `json:"audio,omitempty"`
}

func trimmed(t Text) string {
	return strings.TrimSpace(string(t))
}

// NormalizeQuestion classifies a raw question and clamps it into a playable shape.
func NormalizeQuestion(raw RawQuestion) Question {
	media := Media{
		Image: trimmed(raw.Image),
		Video: trimmed(raw.Video),
		Audio: trimmed(raw.Audio),
	}

	if strings.TrimSpace(raw.Type) == string(KindOpen) {
		return &OpenQuestion{
			Text:          trimmed(raw.Question),
			CorrectAnswer: trimmed(raw.CorrectAnswer),
			Media:         media,
		}
	}

	options := make([]string, 0, min(len(raw.Options), maxOptions))
	for _, o := range raw.Options[:min(len(raw.Options), maxOptions)] {
		options = append(options, trimmed(o))
	}

	switch {
	case len(options) == 0:
		options = append(options, defaultOptions...)
	case len(options) < minOptions:
		options = append(options, defaultOptions[len(options):minOptions]...)
	}

	return &ChoiceQuestion{
		Text:         trimmed(raw.Question),
		Options:      options,
		CorrectIndex: clampIndex(raw.CorrectIndex, len(options)),
		Media:        media,
	}
}

func clampIndex(n Number, count int) int {
	i := math.Max(0, math.Min(math.Trunc(float64(n)), float64(count-1)))

	return int(i)
}

// Raw converts a normalized question back to its stored form.
func Raw(q Question) RawQuestion {
	m := q.Attachments()
	raw := RawQuestion{
		Type:     string(q.Kind()),
		Question: Text(q.Prompt()),
		Image:    Text(m.Image),
		Video:    Text(m.Video),
		Audio:    Text(m.Audio),
	}

	switch q := q.(type) {
	case *ChoiceQuestion:
		raw.Options = make([]Text, len(q.Options))
		for i, o := range q.Options {
			raw.Options[i] = Text(o)
		}
		raw.CorrectIndex = Number(q.CorrectIndex)
	case *OpenQuestion:
		raw.CorrectAnswer = Text(q.CorrectAnswer)
	}

	return raw
}

// MediaURL resolves a stored media reference into something a browser can load.
// Absolute http(s) references pass through; everything else is served from prefix/media.
func MediaURL(prefix, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}

	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref
	}

	return prefix + "/media/" + strings.TrimPrefix(ref, "/")
}

func placeholderQuestion() Question {
	return &ChoiceQuestion{
		Text:         "Example question?",
		Options:      []string{"Option A", "Option B", "Option C", "Option D"},
		CorrectIndex: 0,
	}
}

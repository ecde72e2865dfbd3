package quiz

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"
)

const (
	MaxRounds            = 10
	MaxQuestionsPerRound = 10

	DefaultAnswerSeconds = 15
	MinAnswerSeconds     = 10
	MaxAnswerSeconds     = 60
)

type TimerMode string

const (
	TimerAuto   TimerMode = "auto"
	TimerManual TimerMode = "manual"
)

func ParseTimerMode(s string) TimerMode {
	if strings.TrimSpace(s) == string(TimerManual) {
		return TimerManual
	}

	return TimerAuto
}

type Round struct {
	Questions []RawQuestion `json:"questions"`
}

// PackContent is a quiz pack as stored on disk. Packs either carry rounds
// of questions or, in the legacy shape, a flat question list.
type PackContent struct {
	Title         string        `json:"title"`
	AnswerTimeSec Number        `json:"answerTimeSec,omitempty"`
	TimerMode     string        `json:"timerMode,omitempty"`
	Rounds        []Round       `json:"rounds,omitempty"`
	Questions     []RawQuestion `json:"questions,omitempty"`
}

// ParsePack decodes pack JSON.
func ParsePack(data []byte) (PackContent, error) {
	var p PackContent
	if err := json.Unmarshal(data, &p); err != nil {
		return PackContent{}, fmt.Errorf("parse pack: %w", err)
	}

	return p, nil
}

// Game is a pack flattened for play.
type Game struct {
	Questions []Question
	// RoundEnds lists, in order, the index of the last question of each round.
	RoundEnds     []int
	AnswerSeconds int
	TimerMode     TimerMode
}

// AnswerDuration is the time allotted per question.
func (g Game) AnswerDuration() time.Duration {
	return time.Duration(g.AnswerSeconds) * time.Second
}

// RoundEnd reports whether question i closes a round, and which (1-based).
func (g Game) RoundEnd(i int) (int, bool) {
	n := slices.Index(g.RoundEnds, i)
	if n < 0 {
		return 0, false
	}

	return n + 1, true
}

// ClampAnswerSeconds clamps a pack's per-question time into the allowed range.
// Zero or missing values fall back to the default.
func ClampAnswerSeconds(n Number) int {
	secs := math.Round(float64(n))
	if secs == 0 {
		return DefaultAnswerSeconds
	}

	return int(math.Max(MinAnswerSeconds, math.Min(secs, MaxAnswerSeconds)))
}

// LoadPackForGame flattens pack content into an ordered question list with
// round boundaries. Rounds take precedence over the legacy flat list.
func LoadPackForGame(p PackContent) Game {
	g := Game{
		AnswerSeconds: ClampAnswerSeconds(p.AnswerTimeSec),
		TimerMode:     ParseTimerMode(p.TimerMode),
	}

	if len(p.Rounds) > 0 {
		for _, round := range p.Rounds[:min(len(p.Rounds), MaxRounds)] {
			qs := round.Questions[:min(len(round.Questions), MaxQuestionsPerRound)]
			for _, raw := range qs {
				g.Questions = append(g.Questions, NormalizeQuestion(raw))
			}
			if len(qs) > 0 {
				g.RoundEnds = append(g.RoundEnds, len(g.Questions)-1)
			}
		}

		return g
	}

	if len(p.Questions) > 0 {
		for _, raw := range p.Questions {
			g.Questions = append(g.Questions, NormalizeQuestion(raw))
		}
		g.RoundEnds = []int{len(g.Questions) - 1}

		return g
	}

	return Game{
		AnswerSeconds: DefaultAnswerSeconds,
		TimerMode:     g.TimerMode,
	}
}

// withPlaceholder substitutes the built-in question when a pack resolved empty.
func (g Game) withPlaceholder() Game {
	if len(g.Questions) > 0 {
		return g
	}

	g.Questions = []Question{placeholderQuestion()}
	g.RoundEnds = []int{0}
	if g.AnswerSeconds == 0 {
		g.AnswerSeconds = DefaultAnswerSeconds
	}
	if g.TimerMode == "" {
		g.TimerMode = TimerAuto
	}

	return g
}

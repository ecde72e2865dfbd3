package quiz

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2026, 3, 14, 20, 0, 0, 0, time.UTC)

func twoQuestionGame() Game {
	return Game{
		Questions: []Question{
			&ChoiceQuestion{Text: "2+2?", Options: []string{"3", "4", "5"}, CorrectIndex: 1},
			&OpenQuestion{Text: "Capital of Italy?", CorrectAnswer: "Rome"},
		},
		RoundEnds:     []int{0, 1},
		AnswerSeconds: 20,
		TimerMode:     TimerAuto,
	}
}

func lobby(t *testing.T, players ...string) *Room {
	t.Helper()

	r := NewRoom("ABCD", "host", epoch)
	for _, p := range players {
		_, err := r.Join(p, strings.ToUpper(p[:1])+p[1:])
		require.NoError(t, err)
	}

	return r
}

func eventNames(s Step) []string {
	var out []string
	for _, e := range s.Events {
		out = append(out, e.Name)
	}

	return out
}

func TestRoomJoin(t *testing.T) {
	r := NewRoom("ABCD", "host", epoch)

	step, err := r.Join("p1", "  Alice ")
	require.NoError(t, err)
	assert.Equal(t, []string{EventJoinSuccess, EventPlayerJoined}, eventNames(step))
	assert.Equal(t, JoinSuccessMessage{Code: "ABCD", Nickname: "Alice"}, step.Events[0].Payload)
	assert.Equal(t, ToConn, step.Events[0].Audience)
	assert.Equal(t, "p1", step.Events[0].Conn)
	assert.Equal(t, ToRoom, step.Events[1].Audience)

	_, err = r.Join("p2", "ALICE")
	assert.ErrorIs(t, err, ErrNicknameTaken)

	_, err = r.Join("p2", "   ")
	assert.ErrorIs(t, err, ErrNicknameRequired)

	_, err = r.Join("p2", strings.Repeat("é", 40))
	require.NoError(t, err)
	assert.Equal(t, []Player{{ID: "p1", Nickname: "Alice"}, {ID: "p2", Nickname: strings.Repeat("é", MaxNicknameLength)}}, r.Players())

	r.Start("host", twoQuestionGame(), epoch)
	_, err = r.Join("p3", "Late")
	assert.ErrorIs(t, err, ErrGameStarted)
}

func TestRoomLeaveKeepsScore(t *testing.T) {
	r := lobby(t, "ann", "bob")
	r.Start("host", twoQuestionGame(), epoch)
	r.SubmitAnswer("ann", intp(1), nil)
	r.Reveal("host", nil, nil)

	step := r.Leave("ann")
	require.Equal(t, []string{EventPlayerLeft}, eventNames(step))
	assert.Equal(t, RosterMessage{Players: []Player{{ID: "bob", Nickname: "Bob"}}}, step.Events[0].Payload)

	assert.Equal(t, 1, r.Score("ann"))
	assert.True(t, r.Leave("ann").Ignored())
}

func TestRoomStart(t *testing.T) {
	r := lobby(t, "ann")

	assert.True(t, r.Start("ann", twoQuestionGame(), epoch).Ignored(), "only the host starts")
	assert.Equal(t, PhaseLobby, r.Phase())

	step := r.Start("host", twoQuestionGame(), epoch)
	assert.Equal(t, []string{EventGameStarted, EventQuestionStart, EventQuestionHost}, eventNames(step))
	assert.True(t, step.Cancel)
	require.NotNil(t, step.Schedule)
	assert.Equal(t, TimerRequest{QuestionIndex: 0, After: 20 * time.Second}, *step.Schedule)

	assert.Equal(t, PhaseQuestion, r.Phase())
	assert.Equal(t, epoch, r.QuestionStartedAt())
	assert.Equal(t, 0, r.Score("ann"))

	start := step.Events[1].Payload.(QuestionStartMessage)
	assert.Equal(t, QuestionStartMessage{
		QuestionIndex: 0,
		Total:         2,
		Type:          KindChoice,
		Question:      "2+2?",
		Options:       []string{"3", "4", "5"},
		TimeSec:       20,
		TimerMode:     TimerAuto,
	}, start)

	key := step.Events[2]
	assert.Equal(t, ToConn, key.Audience)
	assert.Equal(t, "host", key.Conn)
	assert.Equal(t, AnswerKeyMessage{CorrectIndex: intp(1)}, key.Payload)

	assert.True(t, r.Start("host", twoQuestionGame(), epoch).Ignored(), "a game starts once")
}

func TestRoomStartEmptyGameUsesPlaceholder(t *testing.T) {
	r := lobby(t)

	step := r.Start("host", Game{}, epoch)

	start := step.Events[1].Payload.(QuestionStartMessage)
	assert.Equal(t, "Example question?", start.Question)
	assert.Equal(t, 1, start.Total)
	assert.Equal(t, DefaultAnswerSeconds, start.TimeSec)
}

func TestRoomQuestionMedia(t *testing.T) {
	r := lobby(t)
	r.mediaPrefix = "/quiz"

	step := r.Start("host", Game{Questions: []Question{
		&OpenQuestion{Text: "Who?", CorrectAnswer: "me", Media: Media{Image: "pack/who.png", Audio: "https://example.com/a.mp3"}},
	}, AnswerSeconds: 15, TimerMode: TimerAuto}, epoch)

	start := step.Events[1].Payload.(QuestionStartMessage)
	assert.Equal(t, "/quiz/media/pack/who.png", start.Image)
	assert.Equal(t, "https://example.com/a.mp3", start.Audio)
	assert.Empty(t, start.Video)
	assert.Nil(t, start.Options)
}

func TestRoomSubmitAnswer(t *testing.T) {
	r := lobby(t, "ann", "bob")

	assert.True(t, r.SubmitAnswer("ann", intp(1), nil).Ignored(), "no answers in the lobby")

	r.Start("host", twoQuestionGame(), epoch)

	assert.True(t, r.SubmitAnswer("host", intp(1), nil).Ignored(), "the host does not play")
	assert.True(t, r.SubmitAnswer("stranger", intp(1), nil).Ignored())
	assert.True(t, r.SubmitAnswer("ann", intp(3), nil).Ignored(), "index out of range")
	assert.True(t, r.SubmitAnswer("ann", intp(-1), nil).Ignored(), "negative index")
	assert.True(t, r.SubmitAnswer("ann", nil, strp("4")).Ignored(), "text for a choice question")

	step := r.SubmitAnswer("ann", intp(1), nil)
	require.Equal(t, []string{EventPlayerAnswered}, eventNames(step))
	assert.Equal(t, PlayerAnsweredMessage{PlayerID: "ann", Nickname: "Ann"}, step.Events[0].Payload)

	assert.True(t, r.SubmitAnswer("ann", intp(0), nil).Ignored(), "first answer stands")
	a, ok := r.Answer("ann")
	assert.True(t, ok)
	assert.Equal(t, 1, a.Index)
}

func TestRoomSubmitOpenAnswer(t *testing.T) {
	r := lobby(t, "ann", "bob")
	r.Start("host", Game{Questions: []Question{&OpenQuestion{Text: "?", CorrectAnswer: "Rome"}}, AnswerSeconds: 15}, epoch)

	step := r.SubmitAnswer("ann", nil, strp("  rome "))
	assert.Equal(t, PlayerAnsweredMessage{PlayerID: "ann", Nickname: "Ann", AnswerText: strp("rome")}, step.Events[0].Payload)

	step = r.SubmitAnswer("bob", nil, nil)
	assert.Equal(t, PlayerAnsweredMessage{PlayerID: "bob", Nickname: "Bob", AnswerText: strp("")}, step.Events[0].Payload)
}

func TestRoomReveal(t *testing.T) {
	r := lobby(t, "ann", "bob", "cat")
	r.Start("host", twoQuestionGame(), epoch)
	r.SubmitAnswer("ann", intp(0), nil)
	r.SubmitAnswer("bob", intp(1), nil)

	assert.True(t, r.Reveal("ann", nil, nil).Ignored(), "players cannot reveal")
	assert.True(t, r.Reveal("host", intp(1), nil).Ignored(), "index must name the current question")

	step := r.Reveal("host", intp(0), nil)
	require.Equal(t, []string{EventResults}, eventNames(step))
	assert.True(t, step.Cancel)
	assert.Nil(t, step.Schedule)
	assert.Equal(t, PhaseResults, r.Phase())

	res := step.Events[0].Payload.(ResultsMessage)
	assert.Equal(t, ResultsMessage{
		QuestionIndex:    0,
		Type:             KindChoice,
		CorrectIndex:     intp(1),
		Scores:           map[string]int{"ann": 0, "bob": 1, "cat": 0},
		PlayerScores:     []Standing{{"Bob", 1}, {"Ann", 0}, {"Cat", 0}},
		RoundOver:        true,
		RoundNumber:      1,
		RoundLeaderboard: []Standing{{"Bob", 1}, {"Ann", 0}, {"Cat", 0}},
	}, res)

	assert.True(t, r.Reveal("host", nil, nil).Ignored(), "a question is scored once")
	assert.True(t, r.Expire(0).Ignored(), "the timer cannot score it again")
	assert.Equal(t, 1, r.Score("bob"))
}

func TestRoomRevealOpenOverride(t *testing.T) {
	r := lobby(t, "ann", "bob")
	r.Start("host", Game{Questions: []Question{&OpenQuestion{Text: "?", CorrectAnswer: "Colour"}}, AnswerSeconds: 15}, epoch)
	r.SubmitAnswer("ann", nil, strp("color"))
	r.SubmitAnswer("bob", nil, strp("colour"))

	res := r.Reveal("host", nil, strp(" Color ")).Events[0].Payload.(ResultsMessage)

	assert.Equal(t, strp("Color"), res.CorrectAnswer)
	assert.Nil(t, res.CorrectIndex)
	assert.Equal(t, map[string]int{"ann": 1, "bob": 0}, res.Scores)
}

func TestRoomRevealBlankOverrideKeepsKey(t *testing.T) {
	r := lobby(t, "ann")
	r.Start("host", Game{Questions: []Question{&OpenQuestion{Text: "?", CorrectAnswer: "Colour"}}, AnswerSeconds: 15}, epoch)
	r.SubmitAnswer("ann", nil, strp("colour"))

	res := r.Reveal("host", nil, strp("  ")).Events[0].Payload.(ResultsMessage)

	assert.Equal(t, strp("Colour"), res.CorrectAnswer)
	assert.Equal(t, 1, res.Scores["ann"])
}

func TestRoomExpire(t *testing.T) {
	r := lobby(t, "ann")

	assert.True(t, r.Expire(0).Ignored(), "nothing to expire in the lobby")

	r.Start("host", twoQuestionGame(), epoch)
	r.SubmitAnswer("ann", intp(1), nil)

	assert.True(t, r.Expire(1).Ignored(), "stale index")

	step := r.Expire(0)
	require.Equal(t, []string{EventResults}, eventNames(step))
	assert.Equal(t, 1, r.Score("ann"))
}

func TestRoomNext(t *testing.T) {
	r := lobby(t, "ann")
	r.Start("host", twoQuestionGame(), epoch)

	assert.True(t, r.Next("host", epoch).Ignored(), "no skipping an open question")

	r.SubmitAnswer("ann", intp(1), nil)
	r.Reveal("host", nil, nil)
	assert.True(t, r.Next("ann", epoch).Ignored(), "players cannot advance")

	later := epoch.Add(time.Minute)
	step := r.Next("host", later)
	assert.Equal(t, []string{EventQuestionStart, EventQuestionHost}, eventNames(step))
	assert.Equal(t, 1, r.CurrentQuestionIndex())
	assert.Equal(t, later, r.QuestionShownAt())
	assert.Equal(t, AnswerKeyMessage{CorrectAnswer: strp("Rome")}, step.Events[1].Payload)
	_, answered := r.Answer("ann")
	assert.False(t, answered, "answers reset per question")

	r.SubmitAnswer("ann", nil, strp("rome"))
	r.Reveal("host", nil, nil)

	step = r.Next("host", later)
	require.Equal(t, []string{EventGameOver}, eventNames(step))
	assert.True(t, step.Cancel)
	assert.Equal(t, GameOverMessage{Leaderboard: []Standing{{"Ann", 2}}}, step.Events[0].Payload)
	assert.Equal(t, PhaseGameOver, r.Phase())

	assert.True(t, r.Next("host", later).Ignored(), "game over is final")
	assert.True(t, r.Start("host", twoQuestionGame(), later).Ignored())
}

func TestRoomManualTimer(t *testing.T) {
	r := lobby(t, "ann")
	g := twoQuestionGame()
	g.TimerMode = TimerManual

	step := r.Start("host", g, epoch)
	assert.Nil(t, step.Schedule)
	assert.True(t, r.QuestionStartedAt().IsZero())
	assert.Equal(t, TimerManual, step.Events[1].Payload.(QuestionStartMessage).TimerMode)

	assert.True(t, r.StartTimer("ann", epoch).Ignored(), "players cannot start the timer")

	at := epoch.Add(5 * time.Second)
	step = r.StartTimer("host", at)
	require.Equal(t, []string{EventQuestionTimerStarted}, eventNames(step))
	assert.Equal(t, TimerStartedMessage{TimeSec: 20}, step.Events[0].Payload)
	assert.Equal(t, &TimerRequest{QuestionIndex: 0, After: 20 * time.Second}, step.Schedule)
	assert.Equal(t, at, r.QuestionStartedAt())

	assert.True(t, r.StartTimer("host", at).Ignored(), "the countdown starts once")
}

func TestRoomStartTimerAutoIgnored(t *testing.T) {
	r := lobby(t)
	r.Start("host", twoQuestionGame(), epoch)

	assert.True(t, r.StartTimer("host", epoch).Ignored())
}

func TestRoomShowRoundLeaderboard(t *testing.T) {
	r := lobby(t, "ann", "bob")
	g := twoQuestionGame()
	g.RoundEnds = []int{1}
	r.Start("host", g, epoch)

	r.Reveal("host", nil, nil)
	assert.True(t, r.ShowRoundLeaderboard("host").Ignored(), "question 0 does not end a round")

	r.Next("host", epoch)
	r.SubmitAnswer("bob", nil, strp("Rome"))
	res := r.Reveal("host", nil, nil).Events[0].Payload.(ResultsMessage)
	assert.True(t, res.RoundOver)
	assert.Equal(t, 1, res.RoundNumber)

	assert.True(t, r.ShowRoundLeaderboard("ann").Ignored())

	step := r.ShowRoundLeaderboard("host")
	require.Equal(t, []string{EventRoundLeadersShown}, eventNames(step))
	assert.Equal(t, RoundLeadersMessage{RoundNumber: 1, Leaderboard: []Standing{{"Bob", 1}, {"Ann", 0}}}, step.Events[0].Payload)
}

func TestRoomClose(t *testing.T) {
	r := lobby(t, "ann")

	step := r.Close(false)
	assert.True(t, step.Cancel)
	assert.Equal(t, []Event{{Name: EventHostDisconnect, Audience: ToPlayers, Payload: Empty{}}}, step.Events)

	step = r.Close(true)
	assert.Equal(t, ToRoom, step.Events[0].Audience)
}

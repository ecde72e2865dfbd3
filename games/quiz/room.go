package quiz

import (
	"maps"
	"slices"
	"strings"
	"time"
)

type Phase string

const (
	PhaseLobby    Phase = "LOBBY"
	PhaseQuestion Phase = "QUESTION"
	PhaseResults  Phase = "RESULTS"
	PhaseGameOver Phase = "GAME_OVER"
)

const MaxNicknameLength = 30

type Player struct {
	ID       string `json:"id"`
	Nickname string `json:"nickname"`
}

type TimerRequest struct {
	QuestionIndex int
	After         time.Duration
}

// Step is the outcome of one room transition: the events to deliver and
// what to do with the room's question timer. Scheduling always cancels first.
type Step struct {
	Events   []Event
	Cancel   bool
	Schedule *TimerRequest
}

// Ignored reports whether the transition was rejected without effect.
func (s Step) Ignored() bool {
	return len(s.Events) == 0 && !s.Cancel && s.Schedule == nil
}

// Room is one game session. It is not safe for concurrent use; the Engine
// owns every room and mutates it from a single goroutine.
type Room struct {
	Code     string
	HostConn string
	JoinURL  string

	mediaPrefix string

	phase   Phase
	players map[string]*Player
	order   []string // player ids in join order

	game    Game
	current int
	answers map[string]Answer
	scores  map[string]int

	pending   Stopper
	shownAt   time.Time
	startedAt time.Time

	createdAt  time.Time
	lastActive time.Time
}

func NewRoom(code, host string, now time.Time) *Room {
	return &Room{
		Code:       code,
		HostConn:   host,
		phase:      PhaseLobby,
		players:    make(map[string]*Player),
		answers:    make(map[string]Answer),
		scores:     make(map[string]int),
		createdAt:  now,
		lastActive: now,
	}
}

func (r *Room) Phase() Phase               { return r.phase }
func (r *Room) CurrentQuestionIndex() int  { return r.current }
func (r *Room) IsHost(conn string) bool    { return conn != "" && conn == r.HostConn }
func (r *Room) HasPendingTimer() bool      { return r.pending != nil }
func (r *Room) LastActive() time.Time      { return r.lastActive }
func (r *Room) QuestionShownAt() time.Time { return r.shownAt }

// QuestionStartedAt is when the current countdown began. It is zero while a
// manual-mode question waits for the host to start the timer.
func (r *Room) QuestionStartedAt() time.Time { return r.startedAt }

func (r *Room) Score(id string) int { return r.scores[id] }

func (r *Room) Scores() map[string]int { return maps.Clone(r.scores) }

func (r *Room) Answer(id string) (Answer, bool) {
	a, ok := r.answers[id]
	return a, ok
}

// Players returns the roster in join order.
func (r *Room) Players() []Player {
	out := make([]Player, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *r.players[id])
	}

	return out
}

// OnQuestion reports whether question index is open for answers. A
// question-end timer for index may only act while this holds.
func (r *Room) OnQuestion(index int) bool {
	return r.phase == PhaseQuestion && r.current == index
}

func (r *Room) touch(now time.Time) {
	r.lastActive = now
}

func (r *Room) cancelTimer() {
	if r.pending == nil {
		return
	}

	r.pending.Stop()
	r.pending = nil
}

func normalizeNickname(s string) string {
	s = strings.TrimSpace(s)
	if runes := []rune(s); len(runes) > MaxNicknameLength {
		s = strings.TrimSpace(string(runes[:MaxNicknameLength]))
	}

	return s
}

// Join registers a player while the room is in its lobby.
func (r *Room) Join(conn, nickname string) (Step, error) {
	if r.phase != PhaseLobby {
		return Step{}, ErrGameStarted
	}

	name := normalizeNickname(nickname)
	if name == "" {
		return Step{}, ErrNicknameRequired
	}

	for _, p := range r.players {
		if strings.EqualFold(p.Nickname, name) {
			return Step{}, ErrNicknameTaken
		}
	}

	r.players[conn] = &Player{ID: conn, Nickname: name}
	r.order = append(r.order, conn)

	return Step{Events: []Event{
		toConn(conn, EventJoinSuccess, JoinSuccessMessage{Code: r.Code, Nickname: name}),
		toRoom(EventPlayerJoined, RosterMessage{Players: r.Players()}),
	}}, nil
}

// Leave removes a player from the roster. Their score stays on the books.
func (r *Room) Leave(conn string) Step {
	if _, ok := r.players[conn]; !ok {
		return Step{}
	}

	delete(r.players, conn)
	r.order = slices.DeleteFunc(r.order, func(id string) bool { return id == conn })

	return Step{Events: []Event{
		toRoom(EventPlayerLeft, RosterMessage{Players: r.Players()}),
	}}
}

func (r *Room) CanStart(conn string) bool {
	return r.IsHost(conn) && r.phase == PhaseLobby
}

// Start begins the game with g, substituting the placeholder question if g is empty.
func (r *Room) Start(conn string, g Game, now time.Time) Step {
	if !r.CanStart(conn) {
		return Step{}
	}

	r.game = g.withPlaceholder()
	r.current = 0
	r.answers = make(map[string]Answer)
	for _, id := range r.order {
		if _, ok := r.scores[id]; !ok {
			r.scores[id] = 0
		}
	}
	r.phase = PhaseQuestion

	step := r.showQuestion(now)
	step.Events = append([]Event{toRoom(EventGameStarted, Empty{})}, step.Events...)

	return step
}

func (r *Room) showQuestion(now time.Time) Step {
	q := r.game.Questions[r.current]
	m := q.Attachments()

	msg := QuestionStartMessage{
		QuestionIndex: r.current,
		Total:         len(r.game.Questions),
		Type:          q.Kind(),
		Question:      q.Prompt(),
		TimeSec:       r.game.AnswerSeconds,
		TimerMode:     r.game.TimerMode,
		Image:         MediaURL(r.mediaPrefix, m.Image),
		Video:         MediaURL(r.mediaPrefix, m.Video),
		Audio:         MediaURL(r.mediaPrefix, m.Audio),
	}

	var key AnswerKeyMessage
	switch q := q.(type) {
	case *ChoiceQuestion:
		msg.Options = slices.Clone(q.Options)
		idx := q.CorrectIndex
		key.CorrectIndex = &idx
	case *OpenQuestion:
		answer := q.CorrectAnswer
		key.CorrectAnswer = &answer
	}

	r.shownAt = now
	r.startedAt = time.Time{}

	step := Step{
		Cancel: true,
		Events: []Event{
			toRoom(EventQuestionStart, msg),
			toConn(r.HostConn, EventQuestionHost, key),
		},
	}

	if r.game.TimerMode == TimerAuto {
		r.startedAt = now
		step.Schedule = &TimerRequest{QuestionIndex: r.current, After: r.game.AnswerDuration()}
	}

	return step
}

// StartTimer begins the countdown of a manual-mode question.
func (r *Room) StartTimer(conn string, now time.Time) Step {
	if !r.IsHost(conn) || r.phase != PhaseQuestion {
		return Step{}
	}
	if r.game.TimerMode != TimerManual || !r.startedAt.IsZero() {
		return Step{}
	}

	r.startedAt = now

	return Step{
		Schedule: &TimerRequest{QuestionIndex: r.current, After: r.game.AnswerDuration()},
		Events: []Event{
			toRoom(EventQuestionTimerStarted, TimerStartedMessage{TimeSec: r.game.AnswerSeconds}),
		},
	}
}

// SubmitAnswer records a player's first answer to the current question.
func (r *Room) SubmitAnswer(conn string, index *int, text *string) Step {
	if r.phase != PhaseQuestion {
		return Step{}
	}

	p, ok := r.players[conn]
	if !ok {
		return Step{}
	}
	if _, answered := r.answers[conn]; answered {
		return Step{}
	}

	notice := PlayerAnsweredMessage{PlayerID: conn, Nickname: p.Nickname}

	switch q := r.game.Questions[r.current].(type) {
	case *ChoiceQuestion:
		if index == nil || *index < 0 || *index >= len(q.Options) {
			return Step{}
		}
		r.answers[conn] = Answer{Index: *index}
	case *OpenQuestion:
		var answer string
		if text != nil {
			answer = strings.TrimSpace(*text)
		}
		r.answers[conn] = Answer{Text: answer}
		notice.AnswerText = &answer
	default:
		return Step{}
	}

	return Step{Events: []Event{toRoom(EventPlayerAnswered, notice)}}
}

// Reveal finalizes the current question on the host's request. index, when
// given, must name the question on screen. A non-empty correctAnswer replaces
// an open question's key for this reveal.
func (r *Room) Reveal(conn string, index *int, correctAnswer *string) Step {
	if !r.IsHost(conn) {
		return Step{}
	}

	i := r.current
	if index != nil {
		i = *index
	}

	return r.finalize(i, correctAnswer)
}

// Expire finalizes question index when its time is up.
func (r *Room) Expire(index int) Step {
	return r.finalize(index, nil)
}

func (r *Room) finalize(index int, override *string) Step {
	if !r.OnQuestion(index) {
		return Step{}
	}

	q := r.game.Questions[index]
	if open, ok := q.(*OpenQuestion); ok && override != nil && strings.TrimSpace(*override) != "" {
		replaced := *open
		replaced.CorrectAnswer = strings.TrimSpace(*override)
		q = &replaced
	}

	tally := ScoreQuestion(q, r.order, r.answers)
	for id, delta := range tally.Delta {
		r.scores[id] += delta
	}
	r.phase = PhaseResults

	msg := ResultsMessage{
		QuestionIndex: index,
		Type:          q.Kind(),
		Scores:        r.Scores(),
		PlayerScores:  r.standings(),
	}

	switch q := q.(type) {
	case *ChoiceQuestion:
		idx := q.CorrectIndex
		msg.CorrectIndex = &idx
	case *OpenQuestion:
		answer := q.CorrectAnswer
		msg.CorrectAnswer = &answer
	}

	if n, ok := r.game.RoundEnd(index); ok {
		msg.RoundOver = true
		msg.RoundNumber = n
		msg.RoundLeaderboard = msg.PlayerScores
	}

	return Step{
		Cancel: true,
		Events: []Event{toRoom(EventResults, msg)},
	}
}

// Next moves from results to the following question, or ends the game.
func (r *Room) Next(conn string, now time.Time) Step {
	if !r.IsHost(conn) || r.phase != PhaseResults {
		return Step{}
	}

	if r.current+1 >= len(r.game.Questions) {
		r.phase = PhaseGameOver

		return Step{
			Cancel: true,
			Events: []Event{toRoom(EventGameOver, GameOverMessage{Leaderboard: r.standings()})},
		}
	}

	r.current++
	r.answers = make(map[string]Answer)
	r.phase = PhaseQuestion

	return r.showQuestion(now)
}

// ShowRoundLeaderboard tells every screen to show the standings of the round
// that just ended.
func (r *Room) ShowRoundLeaderboard(conn string) Step {
	if !r.IsHost(conn) || r.phase != PhaseResults {
		return Step{}
	}

	n, ok := r.game.RoundEnd(r.current)
	if !ok {
		return Step{}
	}

	return Step{Events: []Event{
		toRoom(EventRoundLeadersShown, RoundLeadersMessage{RoundNumber: n, Leaderboard: r.standings()}),
	}}
}

// Close produces the teardown notice. The host is only told when it is still
// connected, as when an idle room is reaped.
func (r *Room) Close(notifyHost bool) Step {
	audience := ToPlayers
	if notifyHost {
		audience = ToRoom
	}

	return Step{
		Cancel: true,
		Events: []Event{{Name: EventHostDisconnect, Audience: audience, Payload: Empty{}}},
	}
}

func (r *Room) standings() []Standing {
	out := make([]Standing, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, Standing{Nickname: r.players[id].Nickname, Score: r.scores[id]})
	}

	return Rank(out)
}

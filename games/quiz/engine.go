package quiz

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

var ErrStopped = errors.New("engine stopped")

// Transport delivers one named event to one connection.
type Transport interface {
	Send(conn, event string, payload any)
}

// PackLoader resolves a pack identifier to its content.
type PackLoader interface {
	LoadPack(id string) (PackContent, error)
}

// Action is an input to the engine: a client request, a disconnect, or an
// internal timer or housekeeping signal.
type Action interface {
	action()
}

type CreateRoom struct {
	Conn        string
	JoinBaseURL string
}

type JoinRoom struct {
	Conn     string
	Code     string
	Nickname string
}

type StartGame struct {
	Conn   string
	PackID string
}

type SubmitAnswer struct {
	Conn        string
	AnswerIndex *int
	AnswerText  *string
}

// ShowResults reveals the current question. CorrectAnswer, when non-empty,
// replaces an open question's key; a choice question's key is fixed by its pack.
type ShowResults struct {
	Conn          string
	QuestionIndex *int
	CorrectAnswer *string
}

type NextQuestion struct{ Conn string }

type StartTimer struct{ Conn string }

type ShowRoundLeaderboard struct{ Conn string }

// Disconnect reports that a connection closed. The engine remembers each
// connection's role, so the id is all it needs.
type Disconnect struct{ Conn string }

type questionExpired struct {
	room  *Room
	index int
}

type reapIdle struct{}

type joinURLQuery struct {
	code  string
	reply chan string
}

func (CreateRoom) action()           {}
func (JoinRoom) action()             {}
func (StartGame) action()            {}
func (SubmitAnswer) action()         {}
func (ShowResults) action()          {}
func (NextQuestion) action()         {}
func (StartTimer) action()           {}
func (ShowRoundLeaderboard) action() {}
func (Disconnect) action()           {}
func (questionExpired) action()      {}
func (reapIdle) action()             {}
func (joinURLQuery) action()         {}

type role int

const (
	roleHost role = iota + 1
	rolePlayer
)

type session struct {
	code string
	role role
}

type Option func(*Engine)

func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

func WithScheduler(s Scheduler) Option {
	return func(e *Engine) { e.timers = NewTimers(s) }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithRandom sets the source room codes are drawn from.
func WithRandom(r io.Reader) Option {
	return func(e *Engine) { e.rooms = NewRegistry(r) }
}

// WithBaseURL sets the join link base used when the host does not send one.
func WithBaseURL(u string) Option {
	return func(e *Engine) { e.baseURL = strings.TrimSuffix(u, "/") }
}

// WithMediaPrefix sets the path prefix of relative media references.
func WithMediaPrefix(p string) Option {
	return func(e *Engine) { e.mediaPrefix = strings.TrimSuffix(p, "/") }
}

// WithIdleTimeout makes Run reap rooms idle longer than d. Zero disables it.
func WithIdleTimeout(d time.Duration) Option {
	return func(e *Engine) { e.idleTimeout = d }
}

// Engine owns every room. All state changes happen on the goroutine running
// Run, one action at a time, so no action sees a half-updated room.
type Engine struct {
	rooms  *Registry
	timers Timers
	packs  PackLoader
	out    Transport
	log    zerolog.Logger
	now    func() time.Time

	baseURL     string
	mediaPrefix string
	idleTimeout time.Duration

	sessions map[string]session

	inbox chan Action
	done  chan struct{}
}

func NewEngine(out Transport, packs PackLoader, opts ...Option) *Engine {
	e := &Engine{
		rooms:    NewRegistry(nil),
		timers:   NewTimers(nil),
		packs:    packs,
		out:      out,
		log:      zerolog.Nop(),
		now:      time.Now,
		sessions: make(map[string]session),
		inbox:    make(chan Action, 1024),
		done:     make(chan struct{}),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Run processes actions until ctx is done, then tears down every room.
func (e *Engine) Run(ctx context.Context) error {
	defer close(e.done)

	var reap <-chan time.Time
	if e.idleTimeout > 0 {
		ticker := time.NewTicker(e.idleTimeout / 2)
		defer ticker.Stop()
		reap = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			for _, r := range e.rooms.Rooms() {
				e.rooms.Remove(r.Code)
			}
			return nil
		case a := <-e.inbox:
			e.Handle(a)
		case <-reap:
			e.Handle(reapIdle{})
		}
	}
}

// Dispatch queues an action for Run.
func (e *Engine) Dispatch(ctx context.Context, a Action) error {
	select {
	case <-e.done:
		return ErrStopped
	default:
	}

	select {
	case e.inbox <- a:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-e.done:
		return ErrStopped
	}
}

// RoomJoinURL returns the join link handed to the host of room code, or
// ErrRoomNotFound.
func (e *Engine) RoomJoinURL(ctx context.Context, code string) (string, error) {
	q := joinURLQuery{code: code, reply: make(chan string, 1)}
	if err := e.Dispatch(ctx, q); err != nil {
		return "", err
	}

	select {
	case u := <-q.reply:
		if u == "" {
			return "", ErrRoomNotFound
		}
		return u, nil
	case <-ctx.Done():
		return "", ctx.Err()
	case <-e.done:
		return "", ErrStopped
	}
}

func (e *Engine) post(a Action) {
	select {
	case e.inbox <- a:
	case <-e.done:
	}
}

// Handle processes one action to completion. It must only be called from
// the goroutine running Run, or in tests that never start Run.
func (e *Engine) Handle(a Action) {
	switch a := a.(type) {
	case CreateRoom:
		e.createRoom(a)
	case JoinRoom:
		e.joinRoom(a)
	case StartGame:
		e.startGame(a)
	case SubmitAnswer:
		e.withRoom(a.Conn, func(r *Room) Step {
			return r.SubmitAnswer(a.Conn, a.AnswerIndex, a.AnswerText)
		})
	case ShowResults:
		e.withRoom(a.Conn, func(r *Room) Step {
			step := r.Reveal(a.Conn, a.QuestionIndex, a.CorrectAnswer)
			if !step.Ignored() {
				e.log.Info().Str("room", r.Code).Int("question", r.CurrentQuestionIndex()).Msg("question revealed by host")
			}
			return step
		})
	case NextQuestion:
		e.withRoom(a.Conn, func(r *Room) Step {
			step := r.Next(a.Conn, e.now())
			if r.Phase() == PhaseGameOver && !step.Ignored() {
				e.log.Info().Str("room", r.Code).Msg("game over")
			}
			return step
		})
	case StartTimer:
		e.withRoom(a.Conn, func(r *Room) Step {
			return r.StartTimer(a.Conn, e.now())
		})
	case ShowRoundLeaderboard:
		e.withRoom(a.Conn, func(r *Room) Step {
			return r.ShowRoundLeaderboard(a.Conn)
		})
	case Disconnect:
		e.disconnect(a.Conn)
	case questionExpired:
		e.expire(a)
	case reapIdle:
		e.reap()
	case joinURLQuery:
		var u string
		if room, ok := e.rooms.Get(a.code); ok {
			u = room.JoinURL
		}
		a.reply <- u
	}
}

func (e *Engine) joinURL(base, code string) string {
	base = strings.TrimSuffix(strings.TrimSpace(base), "/")
	if base == "" {
		base = e.baseURL
	}

	return base + "/client?room=" + code
}

func (e *Engine) createRoom(a CreateRoom) {
	if s, ok := e.sessions[a.Conn]; ok && s.role == rolePlayer {
		e.leave(a.Conn, s)
	}

	room, replaced := e.rooms.Create(a.Conn, e.now())
	if replaced != nil {
		e.log.Info().Str("room", replaced.Code).Str("conn", a.Conn).Msg("replaced by a new room from the same host")
		e.forget(replaced)
		e.deliver(replaced, replaced.Close(false).Events)
	}

	room.JoinURL = e.joinURL(a.JoinBaseURL, room.Code)
	room.mediaPrefix = e.mediaPrefix
	e.sessions[a.Conn] = session{code: room.Code, role: roleHost}

	e.log.Info().Str("room", room.Code).Str("conn", a.Conn).Msg("room created")

	e.out.Send(a.Conn, EventRoomCreated, RoomCreatedMessage{Code: room.Code, JoinURL: room.JoinURL})
}

func (e *Engine) joinRoom(a JoinRoom) {
	room, ok := e.rooms.Get(a.Code)
	if !ok {
		e.reject(a.Conn, ErrRoomNotFound)
		return
	}

	prev, had := e.sessions[a.Conn]
	if had && prev.role == roleHost {
		e.reject(a.Conn, ErrHostCannotJoin)
		return
	}
	if had && prev.code == room.Code {
		e.reject(a.Conn, ErrAlreadyJoined)
		return
	}

	step, err := room.Join(a.Conn, a.Nickname)
	if err != nil {
		e.reject(a.Conn, err)
		return
	}

	if had {
		e.leave(a.Conn, prev)
	}
	e.sessions[a.Conn] = session{code: room.Code, role: rolePlayer}
	room.touch(e.now())

	e.apply(room, step)
}

func (e *Engine) reject(conn string, err error) {
	e.out.Send(conn, EventJoinError, ErrorMessage{Message: err.Error()})
}

func (e *Engine) startGame(a StartGame) {
	s, ok := e.sessions[a.Conn]
	if !ok || s.role != roleHost {
		return
	}

	room, ok := e.rooms.Get(s.code)
	if !ok || !room.CanStart(a.Conn) {
		return
	}

	game := e.loadGame(room, a.PackID)
	now := e.now()
	room.touch(now)

	step := room.Start(a.Conn, game, now)
	e.log.Info().Str("room", room.Code).Str("pack", a.PackID).Int("questions", len(room.game.Questions)).Msg("game started")

	e.apply(room, step)
}

// loadGame never fails: a missing or broken pack is reported to the host and
// replaced by an empty game, which Start fills with the placeholder question.
func (e *Engine) loadGame(room *Room, id string) Game {
	id = strings.TrimSpace(id)
	if id == "" || e.packs == nil {
		return Game{}
	}

	content, err := e.packs.LoadPack(id)
	if err != nil {
		e.log.Warn().Err(err).Str("room", room.Code).Str("pack", id).Msg("pack load failed, using placeholder")
		e.out.Send(room.HostConn, EventPackLoadError, ErrorMessage{Message: "Pack could not be loaded: " + err.Error()})
		return Game{}
	}

	return LoadPackForGame(content)
}

func (e *Engine) withRoom(conn string, transition func(*Room) Step) {
	s, ok := e.sessions[conn]
	if !ok {
		return
	}

	room, ok := e.rooms.Get(s.code)
	if !ok {
		return
	}

	step := transition(room)
	if step.Ignored() {
		return
	}

	room.touch(e.now())
	e.apply(room, step)
}

func (e *Engine) onExpire(r *Room, index int) {
	e.post(questionExpired{room: r, index: index})
}

func (e *Engine) expire(a questionExpired) {
	room, ok := e.rooms.Get(a.room.Code)
	if !ok || room != a.room || !room.OnQuestion(a.index) {
		e.log.Debug().Str("room", a.room.Code).Int("question", a.index).Msg("stale question timer ignored")
		return
	}

	e.log.Info().Str("room", room.Code).Int("question", a.index).Msg("time is up")

	e.apply(room, room.Expire(a.index))
}

func (e *Engine) disconnect(conn string) {
	s, ok := e.sessions[conn]
	if !ok {
		return
	}
	delete(e.sessions, conn)

	room, ok := e.rooms.Get(s.code)
	if !ok {
		return
	}

	if s.role == roleHost && room.IsHost(conn) {
		e.log.Info().Str("room", room.Code).Str("conn", conn).Msg("host left, closing room")
		e.teardown(room, false)
		return
	}

	e.apply(room, room.Leave(conn))
}

func (e *Engine) leave(conn string, s session) {
	delete(e.sessions, conn)

	if room, ok := e.rooms.Get(s.code); ok {
		e.apply(room, room.Leave(conn))
	}
}

func (e *Engine) teardown(room *Room, notifyHost bool) {
	step := room.Close(notifyHost)
	e.rooms.Remove(room.Code)
	e.forget(room)
	e.deliver(room, step.Events)
}

// forget drops the sessions bound to a room that no longer exists.
func (e *Engine) forget(room *Room) {
	for conn, s := range e.sessions {
		if s.code == room.Code && (room.IsHost(conn) || room.players[conn] != nil) {
			delete(e.sessions, conn)
		}
	}
}

func (e *Engine) reap() {
	if e.idleTimeout <= 0 {
		return
	}

	for _, room := range e.rooms.Idle(e.now().Add(-e.idleTimeout)) {
		e.log.Info().Str("room", room.Code).Time("last_active", room.LastActive()).Msg("reaping idle room")
		e.teardown(room, true)
	}
}

// apply settles the timer directive before any event goes out, so a room
// never has two live timers and never announces results with one pending.
func (e *Engine) apply(room *Room, step Step) {
	if step.Cancel || step.Schedule != nil {
		e.timers.Cancel(room)
	}
	if req := step.Schedule; req != nil {
		e.timers.ScheduleQuestionEnd(room, req.QuestionIndex, req.After, e.onExpire)
	}

	e.deliver(room, step.Events)
}

func (e *Engine) deliver(room *Room, events []Event) {
	for _, ev := range events {
		switch ev.Audience {
		case ToConn:
			e.out.Send(ev.Conn, ev.Name, ev.Payload)
		case ToRoom:
			e.out.Send(room.HostConn, ev.Name, ev.Payload)
			fallthrough
		case ToPlayers:
			for _, id := range room.order {
				e.out.Send(id, ev.Name, ev.Payload)
			}
		}
	}
}

package quiz

// Inbound event names.
const (
	EventCreateRoom           = "create_room"
	EventJoinRoom             = "join_room"
	EventStartGame            = "start_game"
	EventSubmitAnswer         = "submit_answer"
	EventShowResults          = "show_results"
	EventNextQuestion         = "next_question"
	EventHostStartTimer       = "host_start_timer"
	EventHostShowRoundLeaders = "host_show_round_leaderboard"
)

// Outbound event names.
const (
	EventRoomCreated          = "room_created"
	EventJoinSuccess          = "join_success"
	EventJoinError            = "join_error"
	EventPlayerJoined         = "player_joined"
	EventPlayerLeft           = "player_left"
	EventGameStarted          = "game_started"
	EventQuestionStart        = "question_start"
	EventQuestionHost         = "question_host"
	EventQuestionTimerStarted = "question_timer_started"
	EventPlayerAnswered       = "player_answered"
	EventResults              = "results"
	EventRoundLeadersShown    = "round_leaderboard_shown"
	EventGameOver             = "game_over"
	EventHostDisconnect       = "host_disconnect"
	EventPackLoadError        = "pack_load_error"
)

type Audience int

const (
	// ToConn targets Event.Conn only.
	ToConn Audience = iota
	// ToRoom targets the host and every player.
	ToRoom
	// ToPlayers targets every player but not the host.
	ToPlayers
)

// Event is one outbound message produced by a room transition.
type Event struct {
	Name     string
	Audience Audience
	Conn     string
	Payload  any
}

func toConn(conn, name string, payload any) Event {
	return Event{Name: name, Audience: ToConn, Conn: conn, Payload: payload}
}

func toRoom(name string, payload any) Event {
	return Event{Name: name, Audience: ToRoom, Payload: payload}
}

type RoomCreatedMessage struct {
	Code    string `json:"code"`
	JoinURL string `json:"joinUrl"`
}

type RosterMessage struct {
	Players []Player `json:"players"`
}

type JoinSuccessMessage struct {
	Code     string `json:"code"`
	Nickname string `json:"nickname"`
}

type ErrorMessage struct {
	Message string `json:"message"`
}

type Empty struct{}

type QuestionStartMessage struct {
	QuestionIndex int       `json:"questionIndex"`
	Total         int       `json:"total"`
	Type          Kind      `json:"type"`
	Question      string    `json:"question"`
	Options       []string  `json:"options,omitempty"`
	TimeSec       int       `json:"timeSec"`
	TimerMode     TimerMode `json:"timerMode"`
	Image         string    `json:"image,omitempty"`
	Video         string    `json:"video,omitempty"`
	Audio         string    `json:"audio,omitempty"`
}

// AnswerKeyMessage goes to the host only.
type AnswerKeyMessage struct {
	CorrectIndex  *int    `json:"correctIndex,omitempty"`
	CorrectAnswer *string `json:"correctAnswer,omitempty"`
}

type TimerStartedMessage struct {
	TimeSec int `json:"timeSec"`
}

type PlayerAnsweredMessage struct {
	PlayerID   string  `json:"playerId"`
	Nickname   string  `json:"nickname"`
	AnswerText *string `json:"answerText,omitempty"`
}

type ResultsMessage struct {
	QuestionIndex    int            `json:"questionIndex"`
	Type             Kind           `json:"type"`
	CorrectIndex     *int           `json:"correctIndex,omitempty"`
	CorrectAnswer    *string        `json:"correctAnswer,omitempty"`
	Scores           map[string]int `json:"scores"`
	PlayerScores     []Standing     `json:"playerScores"`
	RoundOver        bool           `json:"roundOver"`
	RoundNumber      int            `json:"roundNumber,omitempty"`
	RoundLeaderboard []Standing     `json:"roundLeaderboard,omitempty"`
}

type RoundLeadersMessage struct {
	RoundNumber int        `json:"roundNumber"`
	Leaderboard []Standing `json:"leaderboard"`
}

type GameOverMessage struct {
	Leaderboard []Standing `json:"leaderboard"`
}

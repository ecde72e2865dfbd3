// Partyquiz transport
//
// Hosts and players talk to the quiz engine over one websocket each:
// - Inbound messages are flat JSON objects with a "type" naming the action
// - Outbound messages are {"type": event, "data": payload}
// - Every connection gets a random id; the engine maps ids to rooms and roles
// - Each connection is rate limited, and excess messages are dropped
// - Slow clients whose send buffer fills up are disconnected
// - The host screen shows a QR code for the join link, backed by go-qrcode

package main

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Seednode/partyquiz/games/quiz"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog"
	"github.com/skip2/go-qrcode"
	"golang.org/x/time/rate"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBuffer     = 64
)

// ClientMessage is any message coming from a host or player screen.
type ClientMessage struct {
	Type          string  `json:"type"`
	Code          string  `json:"code,omitempty"`
	Nickname      string  `json:"nickname,omitempty"`
	PackID        string  `json:"packId,omitempty"`
	JoinBaseURL   string  `json:"joinBaseUrl,omitempty"`
	AnswerIndex   *int    `json:"answerIndex,omitempty"`
	AnswerText    *string `json:"answerText,omitempty"`
	QuestionIndex *int    `json:"questionIndex,omitempty"`
	CorrectAnswer *string `json:"correctAnswer,omitempty"`
}

// action translates a message from conn into an engine action. Unknown
// types are reported as not ok.
func (m ClientMessage) action(conn string) (quiz.Action, bool) {
	switch m.Type {
	case quiz.EventCreateRoom:
		return quiz.CreateRoom{Conn: conn, JoinBaseURL: m.JoinBaseURL}, true
	case quiz.EventJoinRoom:
		return quiz.JoinRoom{Conn: conn, Code: m.Code, Nickname: m.Nickname}, true
	case quiz.EventStartGame:
		return quiz.StartGame{Conn: conn, PackID: m.PackID}, true
	case quiz.EventSubmitAnswer:
		return quiz.SubmitAnswer{Conn: conn, AnswerIndex: m.AnswerIndex, AnswerText: m.AnswerText}, true
	case quiz.EventShowResults:
		return quiz.ShowResults{
			Conn:          conn,
			QuestionIndex: m.QuestionIndex,
			CorrectAnswer: m.CorrectAnswer,
		}, true
	case quiz.EventNextQuestion:
		return quiz.NextQuestion{Conn: conn}, true
	case quiz.EventHostStartTimer:
		return quiz.StartTimer{Conn: conn}, true
	case quiz.EventHostShowRoundLeaders:
		return quiz.ShowRoundLeaderboard{Conn: conn}, true
	default:
		return nil, false
	}
}

// ServerMessage is the envelope of every event sent to a screen.
type ServerMessage struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type Client struct {
	id      string
	conn    *websocket.Conn
	send    chan ServerMessage
	limiter *rate.Limiter
}

// Hub tracks open connections by id and implements quiz.Transport.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	log     zerolog.Logger
}

func newHub(log zerolog.Logger) *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		log:     log,
	}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[c.id] = c
}

// remove closes c's send channel, which ends its write pump.
func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.clients[c.id] == c {
		delete(h.clients, c.id)
		close(c.send)
	}
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.clients)
}

// Send queues an event for conn without blocking. Unknown connections are
// ignored; a client that cannot keep up is dropped.
func (h *Hub) Send(conn, event string, payload any) {
	h.mu.RLock()
	c, ok := h.clients[conn]
	if !ok {
		h.mu.RUnlock()
		return
	}

	var queued bool
	select {
	case c.send <- ServerMessage{Type: event, Data: payload}:
		queued = true
	default:
	}
	h.mu.RUnlock()

	if !queued {
		h.log.Warn().Str("conn", conn).Str("event", event).Msg("send buffer full, dropping client")
		h.remove(c)
	}
}

// closeAll ends every write pump, used on shutdown.
func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, c := range h.clients {
		close(c.send)
		delete(h.clients, id)
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func serveWS(cfg *Config, hub *Hub, engine *quiz.Engine) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			cfg.logger.Debug().Err(err).Str("remote", realIP(r)).Msg("websocket upgrade failed")
			return
		}

		client := &Client{
			id:      uuid.NewString(),
			conn:    conn,
			send:    make(chan ServerMessage, sendBuffer),
			limiter: rate.NewLimiter(rate.Limit(cfg.rateLimit), cfg.rateBurst),
		}

		hub.register(client)

		logf(cfg, "SOCKET: %s connected from %s", client.id, realIP(r))

		go client.writePump()
		client.readPump(context.WithoutCancel(r.Context()), cfg, hub, engine)

		logf(cfg, "SOCKET: %s disconnected", client.id)
	}
}

func (c *Client) readPump(ctx context.Context, cfg *Config, h *Hub, engine *quiz.Engine) {
	defer func() {
		h.remove(c)
		if err := engine.Dispatch(ctx, quiz.Disconnect{Conn: c.id}); err != nil && !errors.Is(err, quiz.ErrStopped) {
			cfg.logger.Warn().Err(err).Str("conn", c.id).Msg("disconnect not delivered")
		}
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				cfg.logger.Debug().Err(err).Str("conn", c.id).Msg("websocket read failed")
			}
			return
		}

		if !c.limiter.Allow() {
			cfg.logger.Debug().Str("conn", c.id).Str("type", msg.Type).Msg("rate limited, message dropped")
			continue
		}

		a, ok := msg.action(c.id)
		if !ok {
			continue
		}

		if err := engine.Dispatch(ctx, a); err != nil {
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}

			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// qrHandler renders the join link of room ?room=CODE as a PNG. The link is
// the one the room was created with, so it matches room_created.joinUrl.
func qrHandler(cfg *Config, engine *quiz.Engine, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		code := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("room")))
		if len(code) != quiz.CodeLength || strings.Trim(code, quiz.CodeAlphabet) != "" {
			http.Error(w, "missing or invalid room code", http.StatusBadRequest)
			return
		}

		link, err := engine.RoomJoinURL(r.Context(), code)
		switch {
		case errors.Is(err, quiz.ErrRoomNotFound):
			http.Error(w, "room not found", http.StatusNotFound)
			return
		case err != nil:
			http.Error(w, "room lookup failed", http.StatusServiceUnavailable)
			return
		}

		const qrSize = 320
		png, err := qrcode.Encode(link, qrcode.Medium, qrSize)
		if err != nil {
			http.Error(w, "qr generation failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		securityHeaders(cfg, w)

		if _, err := w.Write(png); err != nil {
			errs <- err
		}
	}
}

func registerQuiz(cfg *Config, hub *Hub, engine *quiz.Engine, mux *httprouter.Router, errs chan<- error) {
	mux.GET(cfg.prefix+"/ws", serveWS(cfg, hub, engine))

	mux.GET(cfg.prefix+"/qr", qrHandler(cfg, engine, errs))
}

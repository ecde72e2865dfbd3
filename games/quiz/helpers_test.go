package quiz

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
)

// drain handles queued actions without blocking, standing in for Run.
func (e *Engine) drain() {
	for {
		select {
		case a := <-e.inbox:
			e.Handle(a)
		default:
			return
		}
	}
}

type fakeTimer struct {
	after   time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	if t.stopped || t.fired {
		return false
	}

	t.stopped = true
	return true
}

// fire runs the callback even if the timer was stopped, as happens when
// Stop loses the race against an expiring timer.
func (t *fakeTimer) fire() {
	t.fired = true
	t.f()
}

type fakeScheduler struct {
	timers []*fakeTimer
}

func (s *fakeScheduler) AfterFunc(d time.Duration, f func()) Stopper {
	t := &fakeTimer{after: d, f: f}
	s.timers = append(s.timers, t)

	return t
}

func (s *fakeScheduler) live() []*fakeTimer {
	var out []*fakeTimer
	for _, t := range s.timers {
		if !t.stopped && !t.fired {
			out = append(out, t)
		}
	}

	return out
}

func (s *fakeScheduler) last() *fakeTimer {
	if len(s.timers) == 0 {
		return nil
	}

	return s.timers[len(s.timers)-1]
}

type sent struct {
	Conn    string
	Event   string
	Payload any
}

// recorder is a Transport that remembers everything sent through it.
type recorder struct {
	mu   sync.Mutex
	sent []sent
}

func (r *recorder) Send(conn, event string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sent = append(r.sent, sent{Conn: conn, Event: event, Payload: payload})
}

func (r *recorder) to(conn string) []sent {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []sent
	for _, s := range r.sent {
		if s.Conn == conn {
			out = append(out, s)
		}
	}

	return out
}

func (r *recorder) events(conn string) []string {
	var out []string
	for _, s := range r.to(conn) {
		out = append(out, s.Event)
	}

	return out
}

func (r *recorder) count(conn, event string) int {
	n := 0
	for _, s := range r.to(conn) {
		if s.Event == event {
			n++
		}
	}

	return n
}

// last returns the payload of the most recent event of that name sent to conn.
func (r *recorder) last(t *testing.T, conn, event string) any {
	t.Helper()

	msgs := r.to(conn)
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Event == event {
			return msgs[i].Payload
		}
	}

	t.Fatalf("no %s sent to %s", event, conn)
	return nil
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sent = nil
}

type clock struct {
	now time.Time
}

func (c *clock) Now() time.Time { return c.now }

func (c *clock) Advance(d time.Duration) { c.now = c.now.Add(d) }

// fixedCodes returns a random source that makes the registry hand out the
// given room codes in order.
func fixedCodes(codes ...string) *bytes.Reader {
	var buf []byte
	for _, code := range codes {
		for _, ch := range code {
			buf = append(buf, byte(strings.IndexRune(CodeAlphabet, ch)))
		}
		// randomCode reads twice the code length per draw.
		buf = append(buf, make([]byte, len(code))...)
	}

	return bytes.NewReader(buf)
}

type packLoader struct {
	mock.Mock
}

func (m *packLoader) LoadPack(id string) (PackContent, error) {
	args := m.Called(id)
	return args.Get(0).(PackContent), args.Error(1)
}

func intp(i int) *int { return &i }

func strp(s string) *string { return &s }

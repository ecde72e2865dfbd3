package quiz

import (
	"crypto/rand"
	"io"
	"slices"
	"strings"
	"time"
)

const (
	CodeLength = 4
	// CodeAlphabet leaves out I and O, which read as 1 and 0 on a TV screen.
	CodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ"
)

// Registry maps room codes to rooms. Like Room, it belongs to the Engine's
// goroutine and does no locking of its own.
type Registry struct {
	rooms  map[string]*Room
	byHost map[string]string
	random io.Reader
}

// NewRegistry returns an empty registry drawing room codes from random,
// or from crypto/rand when random is nil.
func NewRegistry(random io.Reader) *Registry {
	if random == nil {
		random = rand.Reader
	}

	return &Registry{
		rooms:  make(map[string]*Room),
		byHost: make(map[string]string),
		random: random,
	}
}

// Create registers a new lobby for host. A room this host already owns is
// torn down first and returned as replaced so its players can be told.
func (g *Registry) Create(host string, now time.Time) (room, replaced *Room) {
	if code, ok := g.byHost[host]; ok {
		replaced = g.Remove(code)
	}

	code := g.newCode()
	room = NewRoom(code, host, now)

	g.rooms[code] = room
	g.byHost[host] = code

	return room, replaced
}

// Get looks a room up by code, ignoring case and surrounding space.
func (g *Registry) Get(code string) (*Room, bool) {
	r, ok := g.rooms[strings.ToUpper(strings.TrimSpace(code))]
	return r, ok
}

// Remove unregisters a room and cancels its pending timer.
func (g *Registry) Remove(code string) *Room {
	code = strings.ToUpper(strings.TrimSpace(code))

	r, ok := g.rooms[code]
	if !ok {
		return nil
	}

	r.cancelTimer()
	delete(g.rooms, code)
	if g.byHost[r.HostConn] == code {
		delete(g.byHost, r.HostConn)
	}

	return r
}

func (g *Registry) Len() int {
	return len(g.rooms)
}

// Rooms lists every registered room ordered by code.
func (g *Registry) Rooms() []*Room {
	out := make([]*Room, 0, len(g.rooms))
	for _, r := range g.rooms {
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b *Room) int {
		return strings.Compare(a.Code, b.Code)
	})

	return out
}

// Idle lists rooms with no activity since cutoff.
func (g *Registry) Idle(cutoff time.Time) []*Room {
	return slices.DeleteFunc(g.Rooms(), func(r *Room) bool {
		return !r.LastActive().Before(cutoff)
	})
}

// newCode draws codes by rejection sampling until one is free.
func (g *Registry) newCode() string {
	for {
		code := randomCode(g.random, CodeLength)
		if _, taken := g.rooms[code]; !taken {
			return code
		}
	}
}

func randomCode(random io.Reader, n int) string {
	const limit = byte(255 - (256 % len(CodeAlphabet)))

	out := make([]byte, 0, n)
	buf := make([]byte, n*2)

	for {
		if _, err := io.ReadFull(random, buf); err != nil {
			panic("room code: random source failed: " + err.Error())
		}

		for _, b := range buf {
			if b > limit {
				continue
			}

			out = append(out, CodeAlphabet[int(b)%len(CodeAlphabet)])
			if len(out) == n {
				return string(out)
			}
		}
	}
}

package bot

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/EgorLis/selfbot/internal/discord"
)

// Session holds the counters of one gateway session. A new one is built on
// every READY, so reconnects start from zero.
type Session struct {
	ID           uuid.UUID
	User         discord.User
	Start        time.Time
	RefreshTime  time.Time
	MessageCount int
	Mentions     int
	NameMentions int
	Commands     map[string]int
	SocketStats  map[string]int
	// Game is the desired presence; the refresher broadcasts it on change.
	Game string
}

func NewSession(now time.Time, user discord.User, game string) *Session {
	return &Session{
		ID:          uuid.New(),
		User:        user,
		Start:       now,
		RefreshTime: now,
		Commands:    make(map[string]int),
		SocketStats: make(map[string]int),
		Game:        game,
	}
}

func (s *Session) Uptime(now time.Time) time.Duration { return now.Sub(s.Start) }

// Count is one entry of a counter map.
type Count struct {
	Name string
	N    int
}

// Top returns the n largest entries of m, ties broken by name.
func Top(m map[string]int, n int) []Count {
	out := make([]Count, 0, len(m))
	for k, v := range m {
		out = append(out, Count{Name: k, N: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].N != out[j].N {
			return out[i].N > out[j].N
		}
		return out[i].Name < out[j].Name
	})
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

package discord

import (
	"context"
	"sync"
)

type fetcher interface {
	Channel(ctx context.Context, channelID string) (Channel, error)
	Guild(ctx context.Context, guildID string) (Guild, error)
}

// State caches channels and guilds seen on the gateway so labelling a
// message does not cost a REST call. Misses fall back to the API.
type State struct {
	api fetcher

	mu       sync.RWMutex
	channels map[string]Channel
	guilds   map[string]Guild
}

func NewState(api fetcher) *State {
	return &State{
		api:      api,
		channels: make(map[string]Channel),
		guilds:   make(map[string]Guild),
	}
}

// Load replaces the cache with the READY snapshot.
func (s *State) Load(r Ready) {
	s.mu.Lock()
	s.channels = make(map[string]Channel)
	s.guilds = make(map[string]Guild)
	s.mu.Unlock()

	for _, g := range r.Guilds {
		s.AddGuild(g)
	}
	for _, ch := range r.PrivateChannels {
		s.AddChannel(ch)
	}
}

func (s *State) AddGuild(g Guild) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.guilds[g.ID] = Guild{ID: g.ID, Name: g.Name}
	for _, ch := range g.Channels {
		if ch.GuildID == "" {
			ch.GuildID = g.ID
		}
		s.channels[ch.ID] = ch
	}
}

func (s *State) AddChannel(ch Channel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channels[ch.ID] = ch
}

func (s *State) Channel(ctx context.Context, channelID string) (Channel, error) {
	s.mu.RLock()
	ch, ok := s.channels[channelID]
	s.mu.RUnlock()
	if ok {
		return ch, nil
	}

	ch, err := s.api.Channel(ctx, channelID)
	if err != nil {
		return Channel{}, err
	}
	s.AddChannel(ch)
	return ch, nil
}

func (s *State) Guild(ctx context.Context, guildID string) (Guild, error) {
	s.mu.RLock()
	g, ok := s.guilds[guildID]
	s.mu.RUnlock()
	if ok {
		return g, nil
	}

	g, err := s.api.Guild(ctx, guildID)
	if err != nil {
		return Guild{}, err
	}
	s.mu.Lock()
	s.guilds[g.ID] = Guild{ID: g.ID, Name: g.Name}
	s.mu.Unlock()
	return g, nil
}

// Counts returns the number of cached guilds and channels.
func (s *State) Counts() (guilds, channels int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.guilds), len(s.channels)
}

package bot

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/EgorLis/selfbot/internal/config"
	"github.com/EgorLis/selfbot/internal/discord"
	"github.com/EgorLis/selfbot/internal/gateway"
)

var errUnavailable = errors.New("unavailable")

type sent struct {
	ChannelID string
	Content   string
	TTL       time.Duration
}

type fakeSender struct {
	mu        sync.Mutex
	sent      []sent
	deleted   []string
	sendErr   error
	deleteErr error
}

func (f *fakeSender) SendMessage(_ context.Context, channelID, content string) (discord.Message, error) {
	return f.record(channelID, content, 0)
}

func (f *fakeSender) SendTransient(_ context.Context, channelID, content string, ttl time.Duration) (discord.Message, error) {
	return f.record(channelID, content, ttl)
}

func (f *fakeSender) record(channelID, content string, ttl time.Duration) (discord.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return discord.Message{}, f.sendErr
	}
	f.sent = append(f.sent, sent{ChannelID: channelID, Content: content, TTL: ttl})
	return discord.Message{ID: "reply", ChannelID: channelID, Content: content}, nil
}

func (f *fakeSender) DeleteMessage(_ context.Context, _, messageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, messageID)
	return f.deleteErr
}

func (f *fakeSender) Sent() []sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sent(nil), f.sent...)
}

// fakeDirectory serves channels and guilds the REST API would return.
type fakeDirectory struct {
	channels map[string]discord.Channel
	guilds   map[string]discord.Guild
}

func (f *fakeDirectory) Channel(_ context.Context, id string) (discord.Channel, error) {
	if ch, ok := f.channels[id]; ok {
		return ch, nil
	}
	return discord.Channel{}, &discord.APIError{Status: 404, Message: "Unknown Channel"}
}

func (f *fakeDirectory) Guild(_ context.Context, id string) (discord.Guild, error) {
	if g, ok := f.guilds[id]; ok {
		return g, nil
	}
	return discord.Guild{}, &discord.APIError{Status: 404, Message: "Unknown Guild"}
}

type fakePresence struct {
	mu    sync.Mutex
	calls []gateway.Presence
	err   error
}

func (f *fakePresence) UpdatePresence(_ context.Context, p gateway.Presence) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.calls = append(f.calls, p)
	return nil
}

func (f *fakePresence) Calls() []gateway.Presence {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]gateway.Presence(nil), f.calls...)
}

// fakeConn is a gateway fed by the test.
type fakeConn struct {
	fakePresence
	events    chan gateway.Event
	state     atomic.Int32
	closeOnce sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{events: make(chan gateway.Event, 64)}
}

func (c *fakeConn) Events() <-chan gateway.Event { return c.events }

func (c *fakeConn) State() gateway.State { return gateway.State(c.state.Load()) }

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.events) })
	return nil
}

func (c *fakeConn) setState(s gateway.State) {
	c.state.Store(int32(s))
	c.events <- gateway.StateEvent{State: s}
}

func (c *fakeConn) dispatch(t *testing.T, typ string, d map[string]any) {
	t.Helper()
	c.events <- dispatchEvent(t, typ, d)
}

func dispatchEvent(t *testing.T, typ string, d map[string]any) gateway.DispatchEvent {
	t.Helper()
	v, err := structpb.NewValue(d)
	require.NoError(t, err)
	return gateway.DispatchEvent{Frame: &gateway.Frame{Op: gateway.OpDispatch, Type: typ, Data: v}}
}

// syncBuffer is a bytes.Buffer safe to read while the loop logs.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *syncBuffer) Lines(level string) []string {
	var out []string
	for _, l := range strings.Split(b.String(), "\n") {
		if strings.Contains(l, "level="+level) {
			out = append(out, l)
		}
	}
	return out
}

func testLogger() (*slog.Logger, *syncBuffer) {
	buf := &syncBuffer{}
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})), buf
}

func testStore(t *testing.T, doc string) *config.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))
	store, err := config.Open(path)
	require.NoError(t, err)
	return store
}

var (
	me       = discord.User{ID: "100", Username: "selfie", Discriminator: "0"}
	friend   = discord.User{ID: "200", Username: "buddy", Discriminator: "0"}
	dmChan   = discord.Channel{ID: "dm1", Type: discord.ChannelDM, Recipients: []discord.User{friend}}
	textChan = discord.Channel{ID: "c1", Type: discord.ChannelGuildText, Name: "general", GuildID: "g1"}
	guild    = discord.Guild{ID: "g1", Name: "Gophers"}
)

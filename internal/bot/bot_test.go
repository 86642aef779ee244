package bot

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EgorLis/selfbot/internal/commands"
	"github.com/EgorLis/selfbot/internal/config"
	"github.com/EgorLis/selfbot/internal/discord"
	"github.com/EgorLis/selfbot/internal/eventlog"
	"github.com/EgorLis/selfbot/internal/gateway"
	"github.com/EgorLis/selfbot/internal/metric"
)

type loopFixture struct {
	bot    *SelfBot
	conn   *fakeConn
	sender *fakeSender
	store  *config.Store
	logs   *syncBuffer
	done   chan error
}

func startLoop(t *testing.T, doc string) *loopFixture {
	t.Helper()
	log, buf := testLogger()
	f := &loopFixture{
		conn:   newFakeConn(),
		sender: &fakeSender{},
		store:  testStore(t, doc),
		logs:   buf,
		done:   make(chan error, 1),
	}
	dir := &fakeDirectory{
		channels: map[string]discord.Channel{dmChan.ID: dmChan},
		guilds:   map[string]discord.Guild{},
	}
	f.bot = New(Options{
		Conn:     f.conn,
		API:      f.sender,
		State:    discord.NewState(dir),
		Store:    f.store,
		Registry: commands.NewRegistry(),
		Prefixes: []string{">"},
		Log:      log,
		Metrics:  metric.NewRegistry().Metrics,
		Interval: 10 * time.Millisecond,
	})
	loaded := f.bot.LoadExtensions(config.DefaultExtensions)
	assert.Equal(t, []string{"debug", "info", "misc"}, loaded)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { f.done <- f.bot.Run(ctx) }()
	return f
}

func (f *loopFixture) connect(t *testing.T) {
	t.Helper()
	f.conn.setState(gateway.StateConnecting)
	f.conn.events <- gateway.DispatchEvent{Frame: &gateway.Frame{Op: gateway.OpHello}}
	f.conn.state.Store(int32(gateway.StateReady))
	f.conn.dispatch(t, "READY", map[string]any{
		"user": map[string]any{"id": me.ID, "username": me.Username},
		"guilds": []any{map[string]any{
			"id": guild.ID, "name": guild.Name,
			"channels": []any{map[string]any{"id": textChan.ID, "type": 0, "name": textChan.Name}},
		}},
	})
	f.conn.events <- gateway.StateEvent{State: gateway.StateReady}
}

func (f *loopFixture) say(t *testing.T, author discord.User, channelID, content string) {
	t.Helper()
	d := map[string]any{
		"id": "m-" + content, "channel_id": channelID, "content": content,
		"author": map[string]any{"id": author.ID, "username": author.Username},
	}
	if channelID == textChan.ID {
		d["guild_id"] = guild.ID
	}
	f.conn.dispatch(t, "MESSAGE_CREATE", d)
}

func (f *loopFixture) wait(t *testing.T) error {
	t.Helper()
	select {
	case err := <-f.done:
		return err
	case <-time.After(3 * time.Second):
		t.Fatal("loop did not stop")
		return nil
	}
}

func TestLoaderReportsMissingExtensions(t *testing.T) {
	f := startLoop(t, `{"token":"t"}`)
	warns := f.logs.Lines("WARN")
	require.Len(t, warns, 7)
	assert.Contains(t, warns[0], `Failed to load extension cmds\nExtensionNotFound`)
	require.NoError(t, f.conn.Close())
	require.NoError(t, f.wait(t))
}

func TestLoopRoutesSelfCommandsAndRefreshesPresence(t *testing.T) {
	f := startLoop(t, `{"token":"t","prefix":">"}`)
	f.connect(t)

	f.say(t, friend, textChan.ID, ">game hijacked")
	f.say(t, me, textChan.ID, `>game "Rocket League"`)

	require.Eventually(t, func() bool {
		calls := f.conn.Calls()
		return len(calls) > 0 && calls[len(calls)-1].Game == "Rocket League"
	}, 3*time.Second, 10*time.Millisecond)

	require.NoError(t, f.conn.Close())
	require.NoError(t, f.wait(t))

	assert.Equal(t, "Rocket League", f.store.GameStatus())
	s := f.bot.Dispatcher().Session()
	assert.Equal(t, map[string]int{"game": 1}, s.Commands)
	assert.Equal(t, 2, s.MessageCount)
	assert.Equal(t, 2, s.SocketStats["MESSAGE_CREATE"])
	assert.NotContains(t, s.SocketStats, "READY")
	for _, c := range f.conn.Calls() {
		assert.NotEqual(t, "hijacked", c.Game)
	}
	assert.Contains(t, f.logs.String(), `msg="In #general,(Gophers):>game \"Rocket League\""`)
}

func TestGuildOnlyCommandInDM(t *testing.T) {
	f := startLoop(t, `{"token":"t"}`)
	f.connect(t)

	f.say(t, me, dmChan.ID, ">debug serverinfo")
	require.Eventually(t, func() bool { return len(f.sender.Sent()) == 1 }, 3*time.Second, 10*time.Millisecond)

	require.NoError(t, f.conn.Close())
	require.NoError(t, f.wait(t))

	assert.Equal(t, sent{ChannelID: dmChan.ID, Content: guildOnlyWarning, TTL: guildOnlyWarningTTL}, f.sender.Sent()[0])
	assert.Equal(t, []string{"m->debug serverinfo"}, f.sender.deleted)
}

func TestRestartCommandRecordsSignalAndStopsLoop(t *testing.T) {
	f := startLoop(t, `{"token":"t"}`)
	f.connect(t)

	f.say(t, me, textChan.ID, ">debug restart")
	require.ErrorIs(t, f.wait(t), ErrRestart)

	sig := f.store.RestartSignal()
	assert.True(t, sig.Pending)
	assert.Equal(t, textChan.ID, sig.ChannelID)
}

func TestGameRebroadcastAfterReconnect(t *testing.T) {
	f := startLoop(t, `{"token":"t","gamestatus":"A"}`)
	f.connect(t)
	require.Eventually(t, func() bool { return len(f.conn.Calls()) == 1 }, 3*time.Second, 10*time.Millisecond)

	f.conn.setState(gateway.StateReconnecting)
	f.connect(t)
	require.Eventually(t, func() bool { return len(f.conn.Calls()) == 2 }, 3*time.Second, 10*time.Millisecond)

	require.NoError(t, f.conn.Close())
	require.NoError(t, f.wait(t))
	for _, c := range f.conn.Calls() {
		assert.Equal(t, gateway.Presence{Status: gateway.StatusInvisible, AFK: true, Game: "A"}, c)
	}
}

func TestHelpListsLoadedCommands(t *testing.T) {
	f := startLoop(t, `{"token":"t"}`)
	f.connect(t)

	f.say(t, me, textChan.ID, ">help")
	require.Eventually(t, func() bool { return len(f.sender.Sent()) == 1 }, 3*time.Second, 10*time.Millisecond)
	require.NoError(t, f.conn.Close())
	require.NoError(t, f.wait(t))

	help := f.sender.Sent()[0].Content
	assert.Equal(t, textChan.ID, f.sender.Sent()[0].ChannelID)
	assert.Equal(t, ">debug - debug <restart|socketstats|serverinfo>", strings.Split(help, "\n")[0])
	for _, name := range []string{">game (status)", ">help", ">ping", ">stats", ">uptime"} {
		assert.Contains(t, help, name)
	}
}

func TestLoopStopsOnContextCancel(t *testing.T) {
	conn := newFakeConn()
	b := New(Options{
		Conn: conn, API: &fakeSender{}, State: discord.NewState(&fakeDirectory{}),
		Store: testStore(t, `{"token":"t"}`), Registry: commands.NewRegistry(), Log: eventlog.Discard().App,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("loop did not stop")
	}
}

func TestReconnectPausesCountingUntilReady(t *testing.T) {
	f := startLoop(t, `{"token":"t"}`)
	f.connect(t)
	f.say(t, friend, textChan.ID, "hello")

	f.conn.setState(gateway.StateReconnecting)
	f.say(t, friend, textChan.ID, "lost")
	f.connect(t)
	f.say(t, friend, textChan.ID, "again")

	require.NoError(t, f.conn.Close())
	require.NoError(t, f.wait(t))

	s := f.bot.Dispatcher().Session()
	assert.Equal(t, 1, s.MessageCount)
	assert.Equal(t, map[string]int{"MESSAGE_CREATE": 1}, s.SocketStats)
}

func TestFormatUptime(t *testing.T) {
	assert.Equal(t, "0h 1m 5s", formatUptime(65*time.Second))
	assert.Equal(t, "2d 3h 0m 0s", formatUptime(51*time.Hour))
}

func TestTop(t *testing.T) {
	got := Top(map[string]int{"a": 1, "b": 3, "c": 3, "d": 2}, 3)
	assert.Equal(t, []Count{{"b", 3}, {"c", 3}, {"d", 2}}, got)
}

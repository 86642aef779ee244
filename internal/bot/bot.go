package bot

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/EgorLis/selfbot/internal/commands"
	"github.com/EgorLis/selfbot/internal/config"
	"github.com/EgorLis/selfbot/internal/discord"
	"github.com/EgorLis/selfbot/internal/gateway"
	"github.com/EgorLis/selfbot/internal/metric"
)

// ErrRestart is returned by Run after a restart was requested.
var ErrRestart = errors.New("bot: restart requested")

// Connection is the gateway as seen by the bot loop.
type Connection interface {
	Events() <-chan gateway.Event
	State() gateway.State
	UpdatePresence(ctx context.Context, p gateway.Presence) error
	Close() error
}

type Options struct {
	Conn     Connection
	API      commands.Sender
	State    *discord.State
	Store    *config.Store
	Registry *commands.Registry
	Prefixes []string
	Log      *slog.Logger
	Metrics  *metric.Metrics
	// Interval overrides RefreshInterval.
	Interval time.Duration
}

type SelfBot struct {
	conn       Connection
	api        commands.Sender
	state      *discord.State
	store      *config.Store
	registry   *commands.Registry
	prefixes   []string
	log        *slog.Logger
	dispatcher *Dispatcher
	refresher  *Refresher
	interval   time.Duration
	now        func() time.Time

	restart bool
}

// New wires the dispatcher and refresher and registers the built-in
// extensions with the registry. Nothing is loaded until LoadExtensions.
func New(opts Options) *SelfBot {
	if opts.Log == nil {
		opts.Log = slog.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = metric.NewRegistry().Metrics
	}
	if opts.Interval <= 0 {
		opts.Interval = RefreshInterval
	}
	bot := &SelfBot{
		conn:       opts.Conn,
		api:        opts.API,
		state:      opts.State,
		store:      opts.Store,
		registry:   opts.Registry,
		prefixes:   opts.Prefixes,
		log:        opts.Log,
		dispatcher: NewDispatcher(opts.Log, opts.Store, opts.State, opts.API, opts.Metrics),
		refresher:  NewRefresher(opts.Conn, opts.Log, opts.Metrics),
		interval:   opts.Interval,
		now:        time.Now,
	}
	bot.registerExtensions()
	return bot
}

func (bot *SelfBot) Dispatcher() *Dispatcher { return bot.dispatcher }

// LoadExtensions loads each named extension; failures are logged and skipped.
func (bot *SelfBot) LoadExtensions(names []string) []string {
	return bot.registry.Load(names, bot.log)
}

// Restart closes the gateway; Run then returns ErrRestart.
func (bot *SelfBot) Restart() {
	bot.restart = true
	_ = bot.conn.Close()
}

// Run is the event loop. Gateway events and refresher ticks are handled on
// this goroutine only, one at a time. It returns when the gateway closes or
// ctx is cancelled.
func (bot *SelfBot) Run(ctx context.Context) error {
	ticker := time.NewTicker(bot.interval)
	defer ticker.Stop()

	events := bot.conn.Events()
	for {
		select {
		case <-ctx.Done():
			_ = bot.conn.Close()
			for range events {
			}
			return nil
		case ev, ok := <-events:
			if !ok {
				if bot.restart {
					return ErrRestart
				}
				return nil
			}
			bot.handle(ctx, ev)
		case <-ticker.C:
			bot.refresh(ctx)
		}
	}
}

func (bot *SelfBot) refresh(ctx context.Context) {
	s := bot.dispatcher.Session()
	if s == nil || !bot.dispatcher.Ready() || bot.conn.State() != gateway.StateReady {
		return
	}
	s.RefreshTime = bot.now()
	if err := bot.refresher.Tick(ctx, s.Game); err != nil {
		bot.log.Error("presence refresh failed", "err", err)
	}
}

func (bot *SelfBot) handle(ctx context.Context, ev gateway.Event) {
	switch ev := ev.(type) {
	case gateway.StateEvent:
		if ev.State != gateway.StateReady {
			bot.dispatcher.OnDisconnect()
		}
	case gateway.DispatchEvent:
		bot.dispatcher.OnSocketResponse(ev.Frame)
		if ev.Frame.Op == gateway.OpDispatch {
			bot.dispatch(ctx, ev.Frame)
		}
	}
}

func (bot *SelfBot) dispatch(ctx context.Context, f *gateway.Frame) {
	switch f.Type {
	case "READY":
		var r discord.Ready
		if !bot.decode(f, &r) {
			return
		}
		bot.state.Load(r)
		bot.refresher.Reset()
		if err := bot.dispatcher.OnReady(ctx, r); err != nil {
			bot.log.Error("ready handler failed", "err", err)
		}
	case "GUILD_CREATE":
		var g discord.Guild
		if bot.decode(f, &g) {
			bot.state.AddGuild(g)
		}
	case "CHANNEL_CREATE":
		var ch discord.Channel
		if bot.decode(f, &ch) {
			bot.state.AddChannel(ch)
		}
	case "MESSAGE_CREATE":
		var m discord.Message
		if !bot.decode(f, &m) {
			return
		}
		bot.dispatcher.OnMessage(m)
		if s := bot.dispatcher.Session(); s != nil && m.Author.ID == s.User.ID {
			bot.route(ctx, m)
		}
	}
}

func (bot *SelfBot) decode(f *gateway.Frame, out any) bool {
	if err := f.Decode(out); err != nil {
		bot.log.Warn("undecodable dispatch", "type", f.Type, "err", err)
		return false
	}
	return true
}

// route runs the command in a message authored by the logged-in account.
func (bot *SelfBot) route(ctx context.Context, m discord.Message) {
	inv, ok, err := bot.registry.Match(bot.prefixes, m.Content)
	if !ok {
		return
	}
	if inv == nil {
		inv = &commands.Invocation{}
	}
	inv.Message = m
	inv.Sender = bot.api
	inv.Channel = bot.channelOf(ctx, m)
	if gid := inv.Channel.GuildID; gid != "" {
		if g, err := bot.state.Guild(ctx, gid); err == nil {
			inv.Guild = &g
		}
	}

	if err != nil {
		bot.dispatcher.OnCommandError(ctx, err, inv)
		return
	}
	bot.dispatcher.OnCommand(inv)
	if err := commands.Invoke(ctx, inv); err != nil {
		bot.dispatcher.OnCommandError(ctx, err, inv)
	}
}

func (bot *SelfBot) channelOf(ctx context.Context, m discord.Message) discord.Channel {
	ch, err := bot.state.Channel(ctx, m.ChannelID)
	if err == nil {
		if ch.GuildID == "" {
			ch.GuildID = m.GuildID
		}
		return ch
	}
	bot.log.Warn("channel lookup failed", "channel", m.ChannelID, "err", err)
	ch = discord.Channel{ID: m.ChannelID, GuildID: m.GuildID, Type: discord.ChannelGuildText}
	if m.GuildID == "" {
		ch.Type = discord.ChannelDM
	}
	return ch
}

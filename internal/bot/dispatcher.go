package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/EgorLis/selfbot/internal/commands"
	"github.com/EgorLis/selfbot/internal/config"
	"github.com/EgorLis/selfbot/internal/discord"
	"github.com/EgorLis/selfbot/internal/gateway"
	"github.com/EgorLis/selfbot/internal/metric"
)

const (
	backRunning    = ":wave: Back Running!"
	backRunningTTL = 2 * time.Second

	guildOnlyWarning    = "\u2757 Only usable on Servers"
	guildOnlyWarningTTL = 3 * time.Second
)

// Channels is the channel and guild lookup the dispatcher needs.
type Channels interface {
	Channel(ctx context.Context, channelID string) (discord.Channel, error)
	Guild(ctx context.Context, guildID string) (discord.Guild, error)
}

// Dispatcher turns gateway lifecycle events into session counters, log
// lines, config writes and replies. It is not safe for concurrent use; the
// bot loop is its only caller.
type Dispatcher struct {
	log      *slog.Logger
	store    *config.Store
	channels Channels
	sender   commands.Sender
	metrics  *metric.Metrics
	now      func() time.Time

	session *Session
	ready   bool
}

func NewDispatcher(log *slog.Logger, store *config.Store, channels Channels, sender commands.Sender, m *metric.Metrics) *Dispatcher {
	return &Dispatcher{
		log:      log,
		store:    store,
		channels: channels,
		sender:   sender,
		metrics:  m,
		now:      time.Now,
	}
}

// Session is nil until the first READY.
func (d *Dispatcher) Session() *Session { return d.session }

func (d *Dispatcher) Ready() bool { return d.ready }

// OnReady starts a new session and consumes a pending restart signal. Only
// persisting the cleared signal can fail it; a missing restart channel or a
// failed announcement is logged and the signal is cleared anyway.
func (d *Dispatcher) OnReady(ctx context.Context, r discord.Ready) error {
	d.log.Info("------")
	d.log.Info("Logged in as")
	d.log.Info(fmt.Sprintf("%s(%s)", r.User, r.User.ID))
	d.log.Info("------")

	d.session = NewSession(d.now(), r.User, d.store.GameStatus())
	d.ready = true
	d.metrics.Ready.Inc()

	sig := d.store.RestartSignal()
	if !sig.Pending {
		return nil
	}
	if ch, err := d.channels.Channel(ctx, sig.ChannelID); err != nil {
		d.log.Error("restart channel unavailable", "channel", sig.ChannelID, "err", err)
	} else if _, err := d.sender.SendTransient(ctx, ch.ID, backRunning, backRunningTTL); err != nil {
		d.log.Error("restart announcement failed", "channel", ch.ID, "err", err)
	}
	if err := d.store.ClearRestart(ctx); err != nil {
		return fmt.Errorf("clear restart signal: %w", err)
	}
	return nil
}

// OnDisconnect marks the session as not ready until the next READY.
func (d *Dispatcher) OnDisconnect() { d.ready = false }

// OnCommand counts and logs a matched command that is about to run.
func (d *Dispatcher) OnCommand(inv *commands.Invocation) {
	name := inv.Command.QualifiedName()
	if d.session != nil {
		d.session.Commands[name]++
	}
	d.metrics.Commands.WithLabelValues(name).Inc()
	d.log.Info(fmt.Sprintf("In %s:%s", destination(inv), inv.Message.Content))
}

func destination(inv *commands.Invocation) string {
	ch := inv.Channel
	switch {
	case ch.IsDM():
		return "DM with " + ch.Recipient().String()
	case ch.IsPrivate():
		return "Group " + ch.Name
	}
	guild := ""
	if inv.Guild != nil {
		guild = inv.Guild.Name
	}
	return fmt.Sprintf("#%s,(%s)", ch.Name, guild)
}

// OnCommandError handles NoPrivateMessage with a transient warning and
// CommandInvokeError with an error log. Every other kind is dropped.
func (d *Dispatcher) OnCommandError(ctx context.Context, err error, inv *commands.Invocation) {
	d.metrics.CommandErrors.WithLabelValues(commands.TypeName(err)).Inc()

	var npm *commands.NoPrivateMessage
	var cie *commands.CommandInvokeError
	switch {
	case errors.As(err, &npm):
		// already gone or not ours to delete
		_ = inv.DeleteTrigger(ctx)
		if err := inv.SendTransient(ctx, guildOnlyWarning, guildOnlyWarningTTL); err != nil {
			d.log.Warn("guild-only warning not sent", "err", err)
		}
	case errors.As(err, &cie):
		d.log.Error(fmt.Sprintf("In %s:\n%s", cie.Command, cie.Stack))
		d.log.Error(commands.Summary(cie.Original))
	}
}

// OnSocketResponse counts every received frame by its event type once the
// session is ready. Non-dispatch frames count under "".
func (d *Dispatcher) OnSocketResponse(f *gateway.Frame) {
	if !d.ready || d.session == nil {
		return
	}
	d.session.SocketStats[f.Type]++
	d.metrics.SocketEvents.WithLabelValues(f.Type).Inc()
}

// OnMessage counts messages and mentions of the logged-in account.
func (d *Dispatcher) OnMessage(m discord.Message) {
	if !d.ready || d.session == nil {
		return
	}
	d.session.MessageCount++
	d.metrics.Messages.Inc()

	self := d.session.User
	if m.Author.ID == self.ID {
		return
	}
	switch {
	case m.MentionsUser(self.ID):
		d.session.Mentions++
	case m.ContainsName(self.Username):
		d.session.NameMentions++
	}
}

package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/EgorLis/selfbot/internal/commands"
)

func (bot *SelfBot) registerExtensions() {
	bot.registry.Register("info", bot.infoExtension)
	bot.registry.Register("misc", bot.miscExtension)
	bot.registry.Register("debug", bot.debugExtension)
}

func (bot *SelfBot) infoExtension() (*commands.Extension, error) {
	return &commands.Extension{Name: "info", Commands: []*commands.Command{
		{Name: "stats", Help: "session counters", Run: bot.cmdStats},
		{Name: "uptime", Help: "time since the session started", Run: bot.cmdUptime},
		{Name: "help", Help: "list loaded commands", Run: bot.cmdHelp},
	}}, nil
}

func (bot *SelfBot) miscExtension() (*commands.Extension, error) {
	return &commands.Extension{Name: "misc", Commands: []*commands.Command{
		{Name: "ping", Help: "REST round trip", Run: bot.cmdPing},
		{Name: "game", Aliases: []string{"status"}, Help: "game [text] - set or clear the game status", Run: bot.cmdGame},
	}}, nil
}

func (bot *SelfBot) debugExtension() (*commands.Extension, error) {
	debug := &commands.Command{Name: "debug", Help: "debug <restart|socketstats|serverinfo>"}
	debug.Add(&commands.Command{Name: "restart", Help: "restart the bot", Run: bot.cmdRestart})
	debug.Add(&commands.Command{Name: "socketstats", Help: "gateway events by type", Run: bot.cmdSocketStats})
	debug.Add(&commands.Command{Name: "serverinfo", GuildOnly: true, Help: "current server", Run: bot.cmdServerInfo})
	return &commands.Extension{Name: "debug", Commands: []*commands.Command{debug}}, nil
}

func (bot *SelfBot) session() (*Session, error) {
	s := bot.dispatcher.Session()
	if s == nil {
		return nil, fmt.Errorf("no active session")
	}
	return s, nil
}

func (bot *SelfBot) cmdStats(ctx context.Context, inv *commands.Invocation) error {
	s, err := bot.session()
	if err != nil {
		return err
	}
	guilds, channels := bot.state.Counts()

	var b strings.Builder
	fmt.Fprintf(&b, "**Uptime:** %s\n", formatUptime(s.Uptime(bot.now())))
	fmt.Fprintf(&b, "**Messages:** %d\n", s.MessageCount)
	fmt.Fprintf(&b, "**Mentions:** %d (+%d by name)\n", s.Mentions, s.NameMentions)
	fmt.Fprintf(&b, "**Servers:** %d, **Channels:** %d\n", guilds, channels)
	fmt.Fprintf(&b, "**Commands:** %s\n", formatCounts(Top(s.Commands, 5)))
	fmt.Fprintf(&b, "**Socket events:** %s", formatCounts(Top(s.SocketStats, 5)))
	return inv.Send(ctx, b.String())
}

func (bot *SelfBot) cmdUptime(ctx context.Context, inv *commands.Invocation) error {
	s, err := bot.session()
	if err != nil {
		return err
	}
	return inv.Send(ctx, "Uptime: "+formatUptime(s.Uptime(bot.now())))
}

func (bot *SelfBot) cmdHelp(ctx context.Context, inv *commands.Invocation) error {
	var b strings.Builder
	for _, c := range bot.registry.Commands() {
		fmt.Fprintf(&b, "%s%s", inv.Prefix, c.Name)
		if len(c.Aliases) > 0 {
			fmt.Fprintf(&b, " (%s)", strings.Join(c.Aliases, ", "))
		}
		if c.Help != "" {
			b.WriteString(" - " + c.Help)
		}
		b.WriteString("\n")
	}
	return inv.Send(ctx, strings.TrimSuffix(b.String(), "\n"))
}

func (bot *SelfBot) cmdPing(ctx context.Context, inv *commands.Invocation) error {
	start := bot.now()
	if err := inv.Send(ctx, "Pong!"); err != nil {
		return err
	}
	rtt := bot.now().Sub(start)
	return inv.SendTransient(ctx, fmt.Sprintf("took %dms", rtt.Milliseconds()), 5*time.Second)
}

func (bot *SelfBot) cmdGame(ctx context.Context, inv *commands.Invocation) error {
	s, err := bot.session()
	if err != nil {
		return err
	}
	game := strings.TrimSpace(inv.Rest(0))
	if err := bot.store.SetGameStatus(ctx, game); err != nil {
		return err
	}
	s.Game = game

	msg := "Game status cleared"
	if game != "" {
		msg = "Game set to playing " + game
	}
	return inv.SendTransient(ctx, msg, 3*time.Second)
}

func (bot *SelfBot) cmdRestart(ctx context.Context, inv *commands.Invocation) error {
	if err := bot.store.SetRestart(ctx, inv.Message.ChannelID); err != nil {
		return err
	}
	if err := inv.Send(ctx, ":wave: Restarting..."); err != nil {
		bot.log.Warn("restart notice not sent", "err", err)
	}
	bot.Restart()
	return nil
}

func (bot *SelfBot) cmdSocketStats(ctx context.Context, inv *commands.Invocation) error {
	s, err := bot.session()
	if err != nil {
		return err
	}
	total := 0
	for _, n := range s.SocketStats {
		total += n
	}
	minutes := s.Uptime(bot.now()).Minutes()
	rate := 0.0
	if minutes > 0 {
		rate = float64(total) / minutes
	}
	return inv.Send(ctx, fmt.Sprintf("%d socket events observed (%.2f/minute):\n%s",
		total, rate, formatCounts(Top(s.SocketStats, -1))))
}

func (bot *SelfBot) cmdServerInfo(ctx context.Context, inv *commands.Invocation) error {
	if inv.Guild == nil {
		return fmt.Errorf("guild %s is not cached", inv.Channel.GuildID)
	}
	return inv.Send(ctx, fmt.Sprintf("**%s** (%s)\nchannel: #%s", inv.Guild.Name, inv.Guild.ID, inv.Channel.Name))
}

func formatCounts(cs []Count) string {
	if len(cs) == 0 {
		return "none"
	}
	parts := make([]string, len(cs))
	for i, c := range cs {
		name := c.Name
		if name == "" {
			name = "<none>"
		}
		parts[i] = fmt.Sprintf("%s: %d", name, c.N)
	}
	return strings.Join(parts, ", ")
}

func formatUptime(d time.Duration) string {
	d = d.Truncate(time.Second)
	days := d / (24 * time.Hour)
	d -= days * 24 * time.Hour
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second
	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
	}
	return fmt.Sprintf("%dh %dm %ds", h, m, s)
}

package commands

import (
	"context"
	"strings"
	"time"

	"github.com/EgorLis/selfbot/internal/discord"
)

// Handler runs a command. Returned errors reach the command-error hook
// wrapped in CommandInvokeError.
type Handler func(ctx context.Context, inv *Invocation) error

type Command struct {
	Name      string
	Aliases   []string
	Help      string
	GuildOnly bool
	Run       Handler

	parent *Command
	subs   map[string]*Command
}

// Add attaches sub as a subcommand of c and returns sub.
func (c *Command) Add(sub *Command) *Command {
	if c.subs == nil {
		c.subs = make(map[string]*Command)
	}
	sub.parent = c
	c.subs[strings.ToLower(sub.Name)] = sub
	for _, a := range sub.Aliases {
		c.subs[strings.ToLower(a)] = sub
	}
	return sub
}

// Parent is nil for top-level commands.
func (c *Command) Parent() *Command { return c.parent }

// QualifiedName is the full invocation path, e.g. "debug socketstats".
func (c *Command) QualifiedName() string {
	if c.parent == nil {
		return c.Name
	}
	return c.parent.QualifiedName() + " " + c.Name
}

func (c *Command) guildOnly() bool {
	for cur := c; cur != nil; cur = cur.parent {
		if cur.GuildOnly {
			return true
		}
	}
	return false
}

// Sender is what handlers use to talk back.
type Sender interface {
	SendMessage(ctx context.Context, channelID, content string) (discord.Message, error)
	SendTransient(ctx context.Context, channelID, content string, ttl time.Duration) (discord.Message, error)
	DeleteMessage(ctx context.Context, channelID, messageID string) error
}

// Invocation is one matched command call.
type Invocation struct {
	Message discord.Message
	Channel discord.Channel
	Guild   *discord.Guild
	Command *Command
	Prefix  string
	Args    []string

	Sender Sender
}

// Send replies in the invoking channel.
func (inv *Invocation) Send(ctx context.Context, content string) error {
	_, err := inv.Sender.SendMessage(ctx, inv.Message.ChannelID, content)
	return err
}

// SendTransient replies and removes the reply after ttl.
func (inv *Invocation) SendTransient(ctx context.Context, content string, ttl time.Duration) error {
	_, err := inv.Sender.SendTransient(ctx, inv.Message.ChannelID, content, ttl)
	return err
}

// DeleteTrigger removes the message that invoked the command.
func (inv *Invocation) DeleteTrigger(ctx context.Context) error {
	return inv.Sender.DeleteMessage(ctx, inv.Message.ChannelID, inv.Message.ID)
}

// Arg returns the i-th argument or "".
func (inv *Invocation) Arg(i int) string {
	if i < 0 || i >= len(inv.Args) {
		return ""
	}
	return inv.Args[i]
}

// Rest joins the arguments from i on.
func (inv *Invocation) Rest(i int) string {
	if i >= len(inv.Args) {
		return ""
	}
	return strings.Join(inv.Args[i:], " ")
}

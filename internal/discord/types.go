package discord

import "strings"

type User struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	Discriminator string `json:"discriminator"`
	GlobalName    string `json:"global_name,omitempty"`
}

// String renders the user the way the client shows it: name#1234 for legacy
// accounts, bare name once the discriminator is gone.
func (u User) String() string {
	if u.Discriminator == "" || u.Discriminator == "0" {
		return u.Username
	}
	return u.Username + "#" + u.Discriminator
}

type ChannelType int

const (
	ChannelGuildText  ChannelType = 0
	ChannelDM         ChannelType = 1
	ChannelGuildVoice ChannelType = 2
	ChannelGroupDM    ChannelType = 3
)

type Channel struct {
	ID         string      `json:"id"`
	Type       ChannelType `json:"type"`
	Name       string      `json:"name,omitempty"`
	GuildID    string      `json:"guild_id,omitempty"`
	Recipients []User      `json:"recipients,omitempty"`
}

// IsDM reports a one-to-one direct message channel.
func (c Channel) IsDM() bool { return c.Type == ChannelDM }

// IsPrivate reports any channel outside a guild.
func (c Channel) IsPrivate() bool { return c.Type == ChannelDM || c.Type == ChannelGroupDM }

// Recipient is the peer of a DM channel.
func (c Channel) Recipient() User {
	if len(c.Recipients) == 0 {
		return User{}
	}
	return c.Recipients[0]
}

type Guild struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Channels []Channel `json:"channels,omitempty"`
}

type Message struct {
	ID        string `json:"id"`
	ChannelID string `json:"channel_id"`
	GuildID   string `json:"guild_id,omitempty"`
	Content   string `json:"content"`
	Author    User   `json:"author"`
	Mentions  []User `json:"mentions,omitempty"`
}

// MentionsUser reports whether id is among the explicit mentions.
func (m Message) MentionsUser(id string) bool {
	for _, u := range m.Mentions {
		if u.ID == id {
			return true
		}
	}
	return false
}

// ContainsName reports a case-insensitive mention of name in the text.
func (m Message) ContainsName(name string) bool {
	if name == "" {
		return false
	}
	return strings.Contains(strings.ToLower(m.Content), strings.ToLower(name))
}

// Ready is the READY dispatch payload, trimmed to what the bot reads.
type Ready struct {
	User            User      `json:"user"`
	SessionID       string    `json:"session_id"`
	Guilds          []Guild   `json:"guilds"`
	PrivateChannels []Channel `json:"private_channels"`
}

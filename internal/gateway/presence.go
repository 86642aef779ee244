package gateway

import (
	"context"
	"runtime"
)

const userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

const (
	StatusOnline    = "online"
	StatusIdle      = "idle"
	StatusInvisible = "invisible"
)

const activityPlaying = 0

// Presence is the status broadcast to other users. An empty Game clears the
// activity.
type Presence struct {
	Status string
	AFK    bool
	Game   string
}

func (p Presence) payload() map[string]any {
	activities := []any{}
	if p.Game != "" {
		activities = append(activities, map[string]any{"name": p.Game, "type": activityPlaying})
	}
	status := p.Status
	if status == "" {
		status = StatusOnline
	}
	return map[string]any{
		"since":      0,
		"activities": activities,
		"status":     status,
		"afk":        p.AFK,
	}
}

func (c *Client) identifyPayload() map[string]any {
	return map[string]any{
		"token": c.token,
		"properties": map[string]any{
			"os":      runtime.GOOS,
			"browser": "Chrome",
			"device":  "",
		},
		"presence": Presence{Status: StatusInvisible, AFK: true}.payload(),
		"compress": false,
	}
}

// UpdatePresence broadcasts p on the current session.
func (c *Client) UpdatePresence(ctx context.Context, p Presence) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	conn := c.currentConn()
	if conn == nil || c.State() != StateReady {
		return ErrNotConnected
	}
	return c.send(conn, OpPresenceUpdate, p.payload())
}

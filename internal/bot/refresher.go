package bot

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/EgorLis/selfbot/internal/gateway"
	"github.com/EgorLis/selfbot/internal/metric"
)

// RefreshInterval is the cadence of presence reconciliation.
const RefreshInterval = 20 * time.Second

// Presencer broadcasts presence.
type Presencer interface {
	UpdatePresence(ctx context.Context, p gateway.Presence) error
}

// Refresher keeps the broadcast presence equal to the desired game. The
// last broadcast value lives only in memory and starts empty.
type Refresher struct {
	presence Presencer
	log      *slog.Logger
	metrics  *metric.Metrics

	last string
}

func NewRefresher(p Presencer, log *slog.Logger, m *metric.Metrics) *Refresher {
	return &Refresher{presence: p, log: log, metrics: m}
}

// Last is the most recently broadcast game, "" when none.
func (r *Refresher) Last() string { return r.last }

// Reset forgets the last broadcast. IDENTIFY starts every session without a
// game, so after READY the desired game has to be sent again.
func (r *Refresher) Reset() { r.last = "" }

// Tick broadcasts desired when it differs from the last broadcast. The
// last value is only advanced after a successful broadcast, so a failed
// one is retried on the next tick.
func (r *Refresher) Tick(ctx context.Context, desired string) error {
	if desired == r.last {
		return nil
	}
	if desired != "" {
		r.log.Info(fmt.Sprintf("Game changed to playing %s", desired))
	} else {
		r.log.Info("Removed Game Status")
	}

	p := gateway.Presence{Status: gateway.StatusInvisible, AFK: true, Game: desired}
	if err := r.presence.UpdatePresence(ctx, p); err != nil {
		return fmt.Errorf("update presence: %w", err)
	}
	r.metrics.PresenceUpdates.Inc()
	r.last = desired
	return nil
}

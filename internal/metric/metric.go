package metric

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "selfbot"

// Metrics are process-lifetime counters. Unlike session counters they are
// not reset when the gateway becomes ready again.
type Metrics struct {
	Commands        *prometheus.CounterVec
	CommandErrors   *prometheus.CounterVec
	SocketEvents    *prometheus.CounterVec
	Messages        prometheus.Counter
	PresenceUpdates prometheus.Counter
	Ready           prometheus.Counter
}

// Registry owns a private prometheus registry with the bot metrics and the
// Go runtime/process collectors.
type Registry struct {
	prom    *prometheus.Registry
	Metrics *Metrics
}

func NewRegistry() *Registry {
	m := &Metrics{
		Commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Commands invoked, by qualified name.",
		}, []string{"command"}),
		CommandErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "command_errors_total",
			Help:      "Command errors, by error kind.",
		}, []string{"kind"}),
		SocketEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "socket_events_total",
			Help:      "Gateway frames received after ready, by event type.",
		}, []string{"type"}),
		Messages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_total",
			Help:      "Messages seen on the gateway.",
		}),
		PresenceUpdates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "presence_updates_total",
			Help:      "Presence broadcasts sent.",
		}),
		Ready: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ready_total",
			Help:      "READY events handled.",
		}),
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		m.Commands, m.CommandErrors, m.SocketEvents,
		m.Messages, m.PresenceUpdates, m.Ready,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &Registry{prom: reg, Metrics: m}
}

func (r *Registry) Prometheus() *prometheus.Registry { return r.prom }

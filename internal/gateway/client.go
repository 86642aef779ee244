package gateway

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

var (
	ErrNotConnected = errors.New("gateway: not connected")
	ErrClosed       = errors.New("gateway: closed")
)

// State is the connection lifecycle as seen by consumers:
// Disconnected → Connecting → Ready → (Reconnecting → Ready)* → Closed.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateReady
	StateReconnecting
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateReady:
		return "ready"
	case StateReconnecting:
		return "reconnecting"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Event is what the client delivers on Events().
type Event interface{ isEvent() }

// StateEvent reports a lifecycle transition.
type StateEvent struct {
	State State
	Err   error
}

// DispatchEvent carries every frame received, whatever its opcode.
type DispatchEvent struct {
	Frame *Frame
}

func (StateEvent) isEvent()    {}
func (DispatchEvent) isEvent() {}

const eventBuffer = 256

// Client is a gateway connection for a user account. All received frames
// and state transitions are delivered, in order, on a single channel.
type Client struct {
	url    string
	token  string
	log    *slog.Logger
	dialer *websocket.Dialer

	minBackoff time.Duration
	maxBackoff time.Duration

	mu   sync.Mutex
	conn *websocket.Conn
	wmu  sync.Mutex // serializes websocket writes

	state  atomic.Int32
	seq    atomic.Int64
	acked  atomic.Bool
	hbStop chan struct{} // owned by the run goroutine

	events    chan Event
	done      chan struct{}
	closeOnce sync.Once
	closed    atomic.Bool
	started   atomic.Bool
}

func New(url, token string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		url:        url,
		token:      token,
		log:        logger,
		dialer:     &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		minBackoff: time.Second,
		maxBackoff: 30 * time.Second,
		events:     make(chan Event, eventBuffer),
		done:       make(chan struct{}),
	}
}

// Events is closed after the client reaches StateClosed.
func (c *Client) Events() <-chan Event { return c.events }

func (c *Client) State() State { return State(c.state.Load()) }

// Open dials the gateway and starts the read loop. Cancelling ctx closes
// the client.
func (c *Client) Open(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClosed
	}
	if !c.started.CompareAndSwap(false, true) {
		return errors.New("gateway: already open")
	}

	c.setState(StateConnecting, nil)
	conn, err := c.dial(ctx)
	if err != nil {
		c.setState(StateDisconnected, err)
		c.started.Store(false)
		return err
	}
	c.setConn(conn)

	go func() {
		select {
		case <-ctx.Done():
			_ = c.Close()
		case <-c.done:
		}
	}()
	go c.run(ctx, conn)
	return nil
}

// Close is idempotent. The read loop notices, emits StateClosed and closes
// the event channel.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		close(c.done)
		c.closeConn()
		if !c.started.Load() {
			c.state.Store(int32(StateClosed))
			close(c.events)
		}
	})
	return nil
}

func (c *Client) setState(s State, err error) {
	if State(c.state.Swap(int32(s))) == s {
		return
	}
	c.emit(StateEvent{State: s, Err: err})
}

func (c *Client) emit(ev Event) {
	select {
	case c.events <- ev:
	case <-c.done:
	}
}

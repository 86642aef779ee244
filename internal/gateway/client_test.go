package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type received struct {
	Op int             `json:"op"`
	D  json.RawMessage `json:"d"`
}

// fakeGateway plays the server side of one or more sessions.
type fakeGateway struct {
	t        *testing.T
	upgrader websocket.Upgrader
	session  func(conn *websocket.Conn, n int)

	mu       sync.Mutex
	sessions int
	frames   chan received
}

func newFakeGateway(t *testing.T, session func(conn *websocket.Conn, n int)) (*fakeGateway, string) {
	t.Helper()
	fg := &fakeGateway{t: t, session: session, frames: make(chan received, 64)}
	srv := httptest.NewServer(http.HandlerFunc(fg.serve))
	t.Cleanup(srv.Close)
	return fg, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func (fg *fakeGateway) serve(w http.ResponseWriter, r *http.Request) {
	conn, err := fg.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	fg.mu.Lock()
	fg.sessions++
	n := fg.sessions
	fg.mu.Unlock()

	fg.session(conn, n)
}

func (fg *fakeGateway) readFrame(conn *websocket.Conn) (received, bool) {
	var f received
	if err := conn.ReadJSON(&f); err != nil {
		return f, false
	}
	fg.frames <- f
	return f, true
}

func (fg *fakeGateway) expectOp(op int) received {
	fg.t.Helper()
	for {
		select {
		case f := <-fg.frames:
			if f.Op == op {
				return f
			}
		case <-time.After(3 * time.Second):
			fg.t.Fatalf("no frame with op %d", op)
			return received{}
		}
	}
}

func hello(conn *websocket.Conn, intervalMS int) {
	_ = conn.WriteJSON(map[string]any{"op": OpHello, "d": map[string]any{"heartbeat_interval": intervalMS}})
}

func ready(conn *websocket.Conn, seq int) {
	_ = conn.WriteJSON(map[string]any{"op": OpDispatch, "s": seq, "t": "READY", "d": map[string]any{
		"user": map[string]any{"id": "1", "username": "me"},
	}})
}

func drain(fg *fakeGateway, conn *websocket.Conn) {
	for {
		if _, ok := fg.readFrame(conn); !ok {
			return
		}
	}
}

func waitState(t *testing.T, events <-chan Event, want State) []Event {
	t.Helper()
	var seen []Event
	timeout := time.After(3 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				t.Fatalf("events closed before state %s", want)
			}
			seen = append(seen, ev)
			if se, ok := ev.(StateEvent); ok && se.State == want {
				return seen
			}
		case <-timeout:
			t.Fatalf("timed out waiting for state %s", want)
		}
	}
}

func TestSessionLifecycle(t *testing.T) {
	t.Parallel()

	var fg *fakeGateway
	fg, url := newFakeGateway(t, func(conn *websocket.Conn, _ int) {
		hello(conn, 45000)
		if _, ok := fg.readFrame(conn); !ok { // identify
			return
		}
		ready(conn, 1)
		drain(fg, conn)
	})

	c := New(url, "user-token", nil)
	require.NoError(t, c.Open(context.Background()))

	seen := waitState(t, c.Events(), StateReady)
	identify := fg.expectOp(OpIdentify)
	var payload struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(identify.D, &payload))
	assert.Equal(t, "user-token", payload.Token)

	var types []string
	for _, ev := range seen {
		if de, ok := ev.(DispatchEvent); ok {
			types = append(types, de.Frame.Type)
		}
	}
	assert.Equal(t, []string{"", "READY"}, types)
	assert.Equal(t, StateReady, c.State())

	require.NoError(t, c.UpdatePresence(context.Background(), Presence{Status: StatusInvisible, AFK: true, Game: "chess"}))
	presence := fg.expectOp(OpPresenceUpdate)
	assert.Contains(t, string(presence.D), "chess")

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	for range c.Events() {
	}
	assert.Equal(t, StateClosed, c.State())
	assert.ErrorIs(t, c.UpdatePresence(context.Background(), Presence{}), ErrNotConnected)
}

func TestReconnectRequestStartsNewSession(t *testing.T) {
	t.Parallel()

	var fg *fakeGateway
	fg, url := newFakeGateway(t, func(conn *websocket.Conn, n int) {
		hello(conn, 45000)
		if _, ok := fg.readFrame(conn); !ok {
			return
		}
		ready(conn, 1)
		if n == 1 {
			_ = conn.WriteJSON(map[string]any{"op": OpReconnect, "d": nil})
		}
		drain(fg, conn)
	})

	c := New(url, "user-token", nil)
	c.minBackoff = 10 * time.Millisecond
	require.NoError(t, c.Open(context.Background()))
	t.Cleanup(func() { _ = c.Close() })

	waitState(t, c.Events(), StateReady)
	waitState(t, c.Events(), StateReconnecting)
	waitState(t, c.Events(), StateReady)

	fg.expectOp(OpIdentify)
	fg.expectOp(OpIdentify)
}

func TestHeartbeatCarriesLastSequence(t *testing.T) {
	t.Parallel()

	var fg *fakeGateway
	fg, url := newFakeGateway(t, func(conn *websocket.Conn, _ int) {
		hello(conn, 30)
		if _, ok := fg.readFrame(conn); !ok {
			return
		}
		ready(conn, 5)
		for {
			f, ok := fg.readFrame(conn)
			if !ok {
				return
			}
			if f.Op == OpHeartbeat {
				_ = conn.WriteJSON(map[string]any{"op": OpHeartbeatAck})
			}
		}
	})

	c := New(url, "user-token", nil)
	require.NoError(t, c.Open(context.Background()))
	t.Cleanup(func() { _ = c.Close() })
	waitState(t, c.Events(), StateReady)

	beat := fg.expectOp(OpHeartbeat)
	assert.JSONEq(t, `5`, string(beat.D))
}

func TestMissingAckDropsConnection(t *testing.T) {
	t.Parallel()

	var fg *fakeGateway
	fg, url := newFakeGateway(t, func(conn *websocket.Conn, _ int) {
		hello(conn, 20)
		if _, ok := fg.readFrame(conn); !ok {
			return
		}
		ready(conn, 1)
		drain(fg, conn) // never acks
	})

	c := New(url, "user-token", nil)
	c.minBackoff = 10 * time.Millisecond
	require.NoError(t, c.Open(context.Background()))
	t.Cleanup(func() { _ = c.Close() })

	waitState(t, c.Events(), StateReady)
	waitState(t, c.Events(), StateReconnecting)
}

func TestContextCancelCloses(t *testing.T) {
	t.Parallel()

	var fg *fakeGateway
	fg, url := newFakeGateway(t, func(conn *websocket.Conn, _ int) {
		hello(conn, 45000)
		drain(fg, conn)
	})

	ctx, cancel := context.WithCancel(context.Background())
	c := New(url, "user-token", nil)
	require.NoError(t, c.Open(ctx))
	cancel()

	done := make(chan struct{})
	go func() {
		for range c.Events() {
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("events channel not closed after cancel")
	}
	assert.ErrorIs(t, c.Open(context.Background()), ErrClosed)
}

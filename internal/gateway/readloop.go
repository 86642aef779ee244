package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
)

var (
	errReconnectRequested = errors.New("server requested reconnect")
	errInvalidSession     = errors.New("session invalidated")
)

// run owns the connection: it serves one session at a time and redials with
// exponential backoff until Close.
func (c *Client) run(ctx context.Context, conn *websocket.Conn) {
	defer func() {
		c.stopHeartbeat()
		c.closeConn()
		c.state.Store(int32(StateClosed))
		select {
		case c.events <- StateEvent{State: StateClosed}:
		default:
		}
		close(c.events)
	}()

	backoff := c.minBackoff
	for {
		err := c.serve(conn)
		c.stopHeartbeat()
		c.closeConn()
		if c.closed.Load() {
			return
		}

		c.log.Warn("gateway connection lost", "err", err)
		c.setState(StateReconnecting, err)

		for {
			select {
			case <-c.done:
				return
			case <-time.After(backoff):
			}
			next, derr := c.dial(ctx)
			if derr == nil {
				conn = next
				c.setConn(conn)
				backoff = c.minBackoff
				break
			}
			c.log.Error("gateway reconnect failed", "wait", backoff, "err", derr)
			if backoff < c.maxBackoff {
				backoff *= 2
				if backoff > c.maxBackoff {
					backoff = c.maxBackoff
				}
			}
		}
	}
}

// serve runs one gateway session: HELLO, IDENTIFY, then frames until the
// connection drops or the server asks for a new session.
func (c *Client) serve(conn *websocket.Conn) error {
	hello, err := c.readFrame(conn)
	if err != nil {
		return err
	}
	c.emit(DispatchEvent{Frame: hello})
	if hello.Op != OpHello {
		return fmt.Errorf("expected hello, got op %d", hello.Op)
	}
	interval := time.Duration(hello.Field("heartbeat_interval").GetNumberValue()) * time.Millisecond
	if interval <= 0 {
		return errors.New("hello without heartbeat interval")
	}

	c.seq.Store(0)
	c.startHeartbeat(conn, interval)
	if err := c.send(conn, OpIdentify, c.identifyPayload()); err != nil {
		return fmt.Errorf("identify: %w", err)
	}

	for {
		f, err := c.readFrame(conn)
		if err != nil {
			return err
		}
		if f.Seq > 0 {
			c.seq.Store(f.Seq)
		}
		c.emit(DispatchEvent{Frame: f})

		switch f.Op {
		case OpDispatch:
			if f.Type == "READY" {
				c.setState(StateReady, nil)
			}
		case OpHeartbeat:
			if err := c.sendHeartbeat(conn); err != nil {
				return fmt.Errorf("heartbeat: %w", err)
			}
		case OpHeartbeatAck:
			c.acked.Store(true)
		case OpReconnect:
			return errReconnectRequested
		case OpInvalidSession:
			return errInvalidSession
		}
	}
}

// readFrame skips payloads that fail to decode.
func (c *Client) readFrame(conn *websocket.Conn) (*Frame, error) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		f, err := decodeFrame(data)
		if err != nil {
			c.log.Warn("dropping undecodable frame", "err", err)
			continue
		}
		return f, nil
	}
}

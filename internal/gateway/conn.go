package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait = 5 * time.Second
	readLimit = 16 << 20
)

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	header := make(http.Header)
	header.Set("User-Agent", userAgent)
	conn, _, err := c.dialer.DialContext(ctx, c.url, header)
	if err != nil {
		return nil, err
	}
	conn.SetReadLimit(readLimit)
	return conn, nil
}

func (c *Client) setConn(conn *websocket.Conn) {
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
}

func (c *Client) currentConn() *websocket.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}

// closeConn sends a normal close frame and drops the current connection.
func (c *Client) closeConn() {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()
	if conn == nil {
		return
	}

	c.wmu.Lock()
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "closing"),
		time.Now().Add(500*time.Millisecond))
	c.wmu.Unlock()
	_ = conn.Close()
}

func (c *Client) send(conn *websocket.Conn, op int, d any) error {
	data, err := encodeFrame(op, d)
	if err != nil {
		return err
	}
	c.wmu.Lock()
	defer c.wmu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, data)
}

func (c *Client) sendHeartbeat(conn *websocket.Conn) error {
	var d any
	if seq := c.seq.Load(); seq > 0 {
		d = seq
	}
	return c.send(conn, OpHeartbeat, d)
}

// startHeartbeat beats every interval. A beat that finds the previous one
// unacknowledged closes the connection so the read loop reconnects.
func (c *Client) startHeartbeat(conn *websocket.Conn, interval time.Duration) {
	c.stopHeartbeat()
	stop := make(chan struct{})
	c.hbStop = stop
	c.acked.Store(true)

	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-stop:
				return
			case <-t.C:
				if !c.acked.Swap(false) {
					c.log.Warn("heartbeat not acknowledged, dropping connection")
					_ = conn.Close()
					return
				}
				if err := c.sendHeartbeat(conn); err != nil {
					c.log.Warn("heartbeat failed", "err", err)
					return
				}
			}
		}
	}()
}

func (c *Client) stopHeartbeat() {
	if c.hbStop != nil {
		close(c.hbStop)
		c.hbStop = nil
	}
}

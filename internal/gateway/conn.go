package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

func (c *Client) readWait() time.Duration {
	return 3 * c.conf.PingInterval
}

// dial с pong-handler'ом, дедлайном чтения и запуском пингов
func (c *Client) dialAndSetup(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: 10 * time.Second,
	}
	conn, _, err := dialer.DialContext(ctx, c.conf.URL, c.header())
	if err != nil {
		return nil, err
	}
	conn.SetReadLimit(16 << 20)

	c.touchActivity()
	_ = conn.SetReadDeadline(time.Now().Add(c.readWait()))
	conn.SetPongHandler(func(string) error {
		c.touchActivity()
		return conn.SetReadDeadline(time.Now().Add(c.readWait()))
	})
	c.startPing(conn)
	return conn, nil
}

// безопасно закрыть текущее соединение
func (c *Client) closeConn() {
	c.stopPing()
	c.cmu.Lock()
	conn := c.conn
	c.conn = nil
	c.cmu.Unlock()
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

func (c *Client) touchActivity() {
	c.lastActivity.Store(time.Now().UnixNano())
}

// SinceLastActivity: сколько прошло с последнего входящего кадра или pong.
func (c *Client) SinceLastActivity() time.Duration {
	n := c.lastActivity.Load()
	if n == 0 {
		return time.Hour
	}
	return time.Since(time.Unix(0, n))
}

// startPing шлёт ping раз в PingInterval и заодно снимает просроченные ожидания ack.
func (c *Client) startPing(conn *websocket.Conn) {
	c.stopPing()
	stop := make(chan struct{})
	c.pmu.Lock()
	c.pingStop = stop
	c.pmu.Unlock()

	go func() {
		t := time.NewTicker(c.conf.PingInterval)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				c.wmu.Lock()
				_ = conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(5*time.Second))
				c.wmu.Unlock()
				c.expirePending(time.Now())
			case <-stop:
				return
			}
		}
	}()
}

func (c *Client) stopPing() {
	c.pmu.Lock()
	defer c.pmu.Unlock()
	if c.pingStop != nil {
		close(c.pingStop)
		c.pingStop = nil
	}
}

package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"
)

func (c *Client) readLoop(ctx context.Context) {
	defer func() {
		c.closed.Store(true)
		c.closeConn()
		c.failPending(errors.New("client stopped"))
		if c.OnDisconnected != nil {
			c.OnDisconnected()
		}
	}()

	// закрыть по отмене контекста
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			c.closeConn()
		case <-stop:
		}
	}()

	backoff := c.conf.MinBackoff
	for {
		if conn := c.getConn(); conn != nil {
			_, data, err := conn.ReadMessage()
			if err == nil {
				c.touchActivity()
				_ = conn.SetReadDeadline(time.Now().Add(c.readWait()))
				c.dispatch(data)
				backoff = c.conf.MinBackoff
				continue
			}
			if c.closed.Load() || ctx.Err() != nil {
				return
			}
			if c.OnError != nil {
				c.OnError(err)
			}
		}

		// закрываем и фейлим ожидающие
		c.closeConn()
		c.failPending(errors.New("connection lost"))

		if !c.reconnect(ctx, &backoff) {
			return
		}
	}
}

// reconnect с экспоненциальным backoff; false: клиент закрыт или ctx отменён.
func (c *Client) reconnect(ctx context.Context, backoff *time.Duration) bool {
	for !c.closed.Load() {
		select {
		case <-ctx.Done():
			return false
		case <-time.After(*backoff):
		}
		if c.OnConnecting != nil {
			c.OnConnecting()
		}
		conn, err := c.dialAndSetup(ctx)
		if err != nil {
			if c.OnError != nil {
				c.OnError(fmt.Errorf("reconnect failed (wait %v): %w", *backoff, err))
			}
			*backoff *= 2
			if *backoff > c.conf.MaxBackoff {
				*backoff = c.conf.MaxBackoff
			}
			continue
		}
		c.setConn(conn)
		if c.closed.Load() {
			c.closeConn()
			return false
		}
		if c.OnConnected != nil {
			c.OnConnected()
		}
		*backoff = c.conf.MinBackoff
		return true
	}
	return false
}

func (c *Client) dispatch(data []byte) {
	f, err := decodeFrame(data)
	if err != nil {
		if c.OnError != nil {
			c.OnError(err)
		}
		return
	}
	switch {
	case f.ack != nil:
		c.mu.Lock()
		p, ok := c.pending[f.ack.ID]
		delete(c.pending, f.ack.ID)
		c.mu.Unlock()
		if ok {
			p.cb(*f.ack)
		}
	case f.message != nil:
		if c.OnMessage != nil {
			c.OnMessage(f.message)
		}
	}
}

// failPending завершает все ожидающие запросы ошибкой (реконнект/закрытие).
func (c *Client) failPending(err error) {
	c.mu.Lock()
	cbs := make(map[string]pending, len(c.pending))
	for id, p := range c.pending {
		cbs[id] = p
		delete(c.pending, id)
	}
	c.mu.Unlock()
	for id, p := range cbs {
		p.cb(Ack{ID: id, Error: err.Error()})
	}
}

func (c *Client) expirePending(now time.Time) {
	c.mu.Lock()
	var expired []string
	var cbs []func(Ack)
	for id, p := range c.pending {
		if now.After(p.deadline) {
			expired = append(expired, id)
			cbs = append(cbs, p.cb)
			delete(c.pending, id)
		}
	}
	c.mu.Unlock()
	for i, id := range expired {
		cbs[i](Ack{ID: id, Error: ErrAckTimeout.Error()})
	}
}

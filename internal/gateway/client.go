package gateway

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"
	"golang.org/x/time/rate"
)

var (
	ErrNotConnected = errors.New("not connected")
	ErrAckTimeout   = errors.New("timeout waiting for ack")
)

type Conf struct {
	URL          string
	Token        string
	PingInterval time.Duration
	MinBackoff   time.Duration
	MaxBackoff   time.Duration
	AckTimeout   time.Duration
	SendRPS      float64 // 0: без ограничения
	SendBurst    int
}

type pending struct {
	cb       func(Ack)
	deadline time.Time
}

type Client struct {
	conf Conf

	cmu  sync.Mutex // защищает conn
	conn *websocket.Conn

	mu      sync.Mutex
	pending map[string]pending
	closed  atomic.Bool

	wmu          sync.Mutex // сериализует запись в websocket
	pmu          sync.Mutex // защищает pingStop
	pingStop     chan struct{}
	lastActivity atomic.Int64
	limiter      *rate.Limiter

	OnConnecting   func()
	OnConnected    func()
	OnMessage      func(*Message)
	OnDisconnected func()
	OnError        func(error)
}

func New(conf Conf) *Client {
	if conf.PingInterval <= 0 {
		conf.PingInterval = 15 * time.Second
	}
	if conf.MinBackoff <= 0 {
		conf.MinBackoff = time.Second
	}
	if conf.MaxBackoff < conf.MinBackoff {
		conf.MaxBackoff = 30 * time.Second
	}
	if conf.AckTimeout <= 0 {
		conf.AckTimeout = 10 * time.Second
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if conf.SendRPS > 0 {
		burst := conf.SendBurst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(conf.SendRPS), burst)
	}
	return &Client{
		conf:    conf,
		pending: make(map[string]pending),
		limiter: limiter,
	}
}

// Connect устанавливает соединение и запускает readLoop.
// Отмена ctx закрывает соединение и останавливает реконнекты.
func (c *Client) Connect(ctx context.Context) error {
	if c.OnConnecting != nil {
		c.OnConnecting()
	}
	conn, err := c.dialAndSetup(ctx)
	if err != nil {
		return err
	}
	c.setConn(conn)
	c.closed.Store(false)

	if c.OnConnected != nil {
		c.OnConnected()
	}

	go c.readLoop(ctx)
	return nil
}

func (c *Client) Disconnect() {
	c.closed.Store(true)
	c.closeConn()
}

func (c *Client) IsConnected() bool {
	return c.getConn() != nil && !c.closed.Load()
}

// Send отправляет запрос, не дожидаясь ответа. cb (если не nil) вызывается
// с ack из readLoop, либо с ошибкой при таймауте или обрыве соединения.
// Возвращает id запроса.
func (c *Client) Send(ctx context.Context, req Request, cb func(Ack)) (string, error) {
	conn := c.getConn()
	if conn == nil {
		return "", ErrNotConnected
	}
	req.ID = ulid.Make().String()

	data, err := encodeRequest(req)
	if err != nil {
		return "", err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	if cb != nil {
		c.mu.Lock()
		c.pending[req.ID] = pending{cb: cb, deadline: time.Now().Add(c.conf.AckTimeout)}
		c.mu.Unlock()
	}

	c.wmu.Lock()
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	werr := conn.WriteMessage(websocket.BinaryMessage, data)
	c.wmu.Unlock()

	if werr != nil {
		c.mu.Lock()
		delete(c.pending, req.ID)
		c.mu.Unlock()
		return "", werr
	}
	return req.ID, nil
}

// SendAndWait ждёт ack. Нельзя вызывать из OnMessage: ack читает тот же readLoop.
func (c *Client) SendAndWait(ctx context.Context, req Request) error {
	done := make(chan Ack, 1)
	if _, err := c.Send(ctx, req, func(a Ack) { done <- a }); err != nil {
		return err
	}
	select {
	case a := <-done:
		return a.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// logAck: колбэк для запросов, ответ на которые нужен только для лога.
func (c *Client) logAck(a Ack) {
	if err := a.Err(); err != nil && c.OnError != nil {
		c.OnError(err)
	}
}

func (c *Client) Reply(ctx context.Context, channelID, messageID, content string, files []File) error {
	_, err := c.Send(ctx, Request{
		Type:      TypeReply,
		ChannelID: channelID,
		MessageID: messageID,
		Content:   content,
		Files:     files,
	}, c.logAck)
	return err
}

func (c *Client) React(ctx context.Context, channelID, messageID, emoji string) error {
	_, err := c.Send(ctx, Request{
		Type:      TypeReact,
		ChannelID: channelID,
		MessageID: messageID,
		Emoji:     emoji,
	}, c.logAck)
	return err
}

func (c *Client) SendMessage(ctx context.Context, channelID, content string) error {
	_, err := c.Send(ctx, Request{
		Type:      TypeSend,
		ChannelID: channelID,
		Content:   content,
	}, c.logAck)
	return err
}

func (c *Client) header() http.Header {
	h := http.Header{}
	if c.conf.Token != "" {
		h.Set("Authorization", "Bearer "+c.conf.Token)
	}
	return h
}

func (c *Client) getConn() *websocket.Conn {
	c.cmu.Lock()
	defer c.cmu.Unlock()
	return c.conn
}

func (c *Client) setConn(conn *websocket.Conn) {
	c.cmu.Lock()
	c.conn = conn
	c.cmu.Unlock()
}

func (c *Client) pendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

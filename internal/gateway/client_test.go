package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// bridge: тестовый мост: принимает запросы, отвечает ack, умеет слать сообщения.
type bridge struct {
	t   *testing.T
	srv *httptest.Server

	mu       sync.Mutex
	conns    []*websocket.Conn
	requests []Request
	reject   bool
	silent   bool
	auth     string
	accepted atomic.Int32
}

func newBridge(t *testing.T) *bridge {
	b := &bridge{t: t}
	upgrader := websocket.Upgrader{}
	b.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		b.accepted.Add(1)
		b.mu.Lock()
		b.auth = r.Header.Get("Authorization")
		b.conns = append(b.conns, conn)
		b.mu.Unlock()
		go b.serve(conn)
	}))
	t.Cleanup(b.srv.Close)
	return b
}

func (b *bridge) url() string {
	return "ws" + strings.TrimPrefix(b.srv.URL, "http")
}

func (b *bridge) serve(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		req, err := DecodeRequest(data)
		if err != nil {
			continue
		}
		b.mu.Lock()
		b.requests = append(b.requests, req)
		reject, silent := b.reject, b.silent
		b.mu.Unlock()
		if silent {
			continue
		}
		ack := Ack{ID: req.ID, OK: !reject}
		if reject {
			ack.Error = "no permission"
		}
		out, _ := EncodeAck(ack)
		b.write(conn, out)
	}
}

func (b *bridge) write(conn *websocket.Conn, data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	_ = conn.WriteMessage(websocket.BinaryMessage, data)
}

func (b *bridge) last() *websocket.Conn {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conns[len(b.conns)-1]
}

func (b *bridge) push(m Message) {
	data, err := EncodeMessage(m)
	require.NoError(b.t, err)
	b.write(b.last(), data)
}

func (b *bridge) received() []Request {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Request(nil), b.requests...)
}

func connect(t *testing.T, b *bridge, conf Conf) *Client {
	t.Helper()
	conf.URL = b.url()
	c := New(conf)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		c.Disconnect()
	})
	require.NoError(t, c.Connect(ctx))
	return c
}

func TestSendAndAck(t *testing.T) {
	b := newBridge(t)
	c := connect(t, b, Conf{Token: "tok"})

	err := c.SendAndWait(context.Background(), Request{
		Type:      TypeReply,
		ChannelID: "c1",
		MessageID: "m1",
		Content:   "hello",
		Files:     []File{{URL: "https://cdn/a.png", Name: "a.png"}},
	})
	require.NoError(t, err)

	reqs := b.received()
	require.Len(t, reqs, 1)
	assert.Equal(t, TypeReply, reqs[0].Type)
	assert.Equal(t, "c1", reqs[0].ChannelID)
	assert.Equal(t, "m1", reqs[0].MessageID)
	assert.Equal(t, "hello", reqs[0].Content)
	assert.Equal(t, []File{{URL: "https://cdn/a.png", Name: "a.png"}}, reqs[0].Files)
	assert.Len(t, reqs[0].ID, 26, "ulid")
	b.mu.Lock()
	assert.Equal(t, "Bearer tok", b.auth)
	b.mu.Unlock()
	assert.Zero(t, c.pendingCount())
}

func TestRejectedAck(t *testing.T) {
	b := newBridge(t)
	b.reject = true
	c := connect(t, b, Conf{})

	err := c.SendAndWait(context.Background(), Request{Type: TypeReact, ChannelID: "c", MessageID: "m", Emoji: "✅"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no permission")
}

func TestFireAndForgetReportsRejection(t *testing.T) {
	b := newBridge(t)
	b.reject = true
	c := New(Conf{URL: b.url()})
	errs := make(chan error, 1)
	c.OnError = func(err error) { errs <- err }
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, c.Connect(ctx))
	defer c.Disconnect()

	require.NoError(t, c.React(ctx, "c", "m", "x"))
	select {
	case err := <-errs:
		assert.Contains(t, err.Error(), "no permission")
	case <-time.After(2 * time.Second):
		t.Fatal("no error reported")
	}
}

func TestOnMessage(t *testing.T) {
	b := newBridge(t)
	got := make(chan *Message, 1)
	c := New(Conf{URL: b.url()})
	c.OnMessage = func(m *Message) { got <- m }
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, c.Connect(ctx))
	defer c.Disconnect()

	want := Message{
		ID:          "m1",
		ChannelID:   "c1",
		AuthorID:    "u1",
		AuthorOwner: true,
		AuthorRoles: []string{"r1", "r2"},
		Content:     ".list",
		Attachments: []Attachment{{URL: "https://cdn/x.png", Name: "x.png", ContentType: "image/png"}},
	}
	b.push(want)

	select {
	case m := <-got:
		assert.Equal(t, want, *m)
	case <-time.After(2 * time.Second):
		t.Fatal("message not delivered")
	}
}

func TestReconnectFailsPending(t *testing.T) {
	b := newBridge(t)
	b.silent = true
	c := connect(t, b, Conf{MinBackoff: 10 * time.Millisecond, MaxBackoff: 50 * time.Millisecond})

	acks := make(chan Ack, 1)
	_, err := c.Send(context.Background(), Request{Type: TypeSend, ChannelID: "c", Content: "x"}, func(a Ack) { acks <- a })
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(b.received()) == 1 }, 2*time.Second, 5*time.Millisecond)

	// мост рвёт соединение
	_ = b.last().Close()

	select {
	case a := <-acks:
		assert.False(t, a.OK)
		assert.Contains(t, a.Error, "connection lost")
	case <-time.After(2 * time.Second):
		t.Fatal("pending request not failed")
	}

	require.Eventually(t, func() bool { return b.accepted.Load() == 2 && c.IsConnected() }, 2*time.Second, 5*time.Millisecond)
}

func TestExpirePending(t *testing.T) {
	c := New(Conf{AckTimeout: time.Second})
	var got []Ack
	c.pending["a"] = pending{cb: func(a Ack) { got = append(got, a) }, deadline: time.Unix(10, 0)}
	c.pending["b"] = pending{cb: func(a Ack) { got = append(got, a) }, deadline: time.Unix(30, 0)}

	c.expirePending(time.Unix(20, 0))
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, ErrAckTimeout.Error(), got[0].Error)
	assert.Equal(t, 1, c.pendingCount())
}

func TestSendNotConnected(t *testing.T) {
	c := New(Conf{URL: "ws://127.0.0.1:1"})
	_, err := c.Send(context.Background(), Request{Type: TypeSend}, nil)
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestDecodeFrame(t *testing.T) {
	data, err := EncodeMessage(Message{})
	require.NoError(t, err)
	f, err := decodeFrame(data)
	require.NoError(t, err)
	require.NotNil(t, f.message)

	ack, err := EncodeAck(Ack{ID: "x", OK: true})
	require.NoError(t, err)
	f, err = decodeFrame(ack)
	require.NoError(t, err)
	require.NotNil(t, f.ack)
	assert.NoError(t, f.ack.Err())

	_, err = decodeFrame([]byte{0xff, 0xff})
	assert.Error(t, err)
}

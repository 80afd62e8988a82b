package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/needle-drop/lobby-service/internal/domain"
	"github.com/needle-drop/lobby-service/internal/lobby"
	"github.com/needle-drop/lobby-service/internal/playback"
	"github.com/needle-drop/lobby-service/internal/protocol"
	"github.com/needle-drop/lobby-service/internal/queue"
	"github.com/needle-drop/lobby-service/internal/store/memory"
)

func startServer(t *testing.T, cfg Config) *httptest.Server {
	t.Helper()
	st := memory.New()
	engine := queue.NewEngine(st, playback.NewClock(st), queue.Options{})
	hub := lobby.NewHub(lobby.Config{Spawn: domain.Position{X: 100, Y: 100}}, engine, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = hub.Run(ctx)
	}()

	srv := httptest.NewServer(http.HandlerFunc(NewServer(hub, cfg, nil).HandleWS))
	t.Cleanup(func() {
		srv.Close()
		cancel()
		<-done
		_ = st.Close()
	})
	return srv
}

type client struct {
	t    *testing.T
	conn *websocket.Conn
	id   string
}

func dial(t *testing.T, srv *httptest.Server) *client {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	c := &client{t: t, conn: conn}
	var w protocol.WelcomePayload
	c.expect(protocol.TypeWelcome, &w)
	require.NotEmpty(t, w.ID)
	c.id = w.ID
	return c
}

func (c *client) send(typ string, payload any) {
	c.t.Helper()
	require.NoError(c.t, c.conn.WriteJSON(protocol.Message{Type: typ, Payload: payload}))
}

func (c *client) sendRaw(data string) {
	c.t.Helper()
	require.NoError(c.t, c.conn.WriteMessage(websocket.TextMessage, []byte(data)))
}

// expect reads frames until one of typ arrives and decodes its payload into dst.
func (c *client) expect(typ string, dst any) {
	c.t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		var f protocol.Frame
		require.NoError(c.t, c.conn.ReadJSON(&f), "waiting for %s", typ)
		if f.Type != typ {
			continue
		}
		if dst != nil {
			require.NoError(c.t, json.Unmarshal(f.Payload, dst))
		}
		return
	}
}

func TestPresenceOverWebSocket(t *testing.T) {
	srv := startServer(t, Config{})
	a := dial(t, srv)
	b := dial(t, srv)
	assert.NotEqual(t, a.id, b.id)

	a.send(protocol.TypeJoinLobby, map[string]any{"roomId": "42", "name": "ann"})
	var users protocol.InitUsersPayload
	a.expect(protocol.TypeInitUsers, &users)
	assert.Equal(t, protocol.UserState{X: 100, Y: 100, Name: "ann"}, users[a.id])

	b.send(protocol.TypeJoinLobby, map[string]any{"roomId": "42"})
	b.expect(protocol.TypeInitUsers, &users)
	assert.Len(t, users, 2)

	var joined protocol.UserJoinedPayload
	a.expect(protocol.TypeUserJoined, &joined)
	assert.Equal(t, b.id, joined.ID)

	b.send(protocol.TypeMove, map[string]any{"x": 140.4, "y": 90})
	var moved protocol.UserMovedPayload
	a.expect(protocol.TypeUserMoved, &moved)
	assert.Equal(t, protocol.UserMovedPayload{ID: b.id, X: 140, Y: 90}, moved)

	_ = b.conn.Close()
	var left protocol.UserLeftPayload
	a.expect(protocol.TypeUserLeft, &left)
	assert.Equal(t, b.id, left.ID)
}

func TestMalformedFrameGetsError(t *testing.T) {
	srv := startServer(t, Config{})
	c := dial(t, srv)

	c.sendRaw(`{"type":"move","payload":{"x":"left"}}`)
	var e protocol.ErrorPayload
	c.expect(protocol.TypeError, &e)
	assert.Equal(t, "malformed", e.Code)
	assert.Equal(t, protocol.TypeMove, e.Type)

	c.sendRaw(`{"type":"dance"}`)
	c.expect(protocol.TypeError, &e)
	assert.Equal(t, "unknown-type", e.Code)

	// соединение живо
	c.send(protocol.TypeJoinLobby, map[string]any{"roomId": "1"})
	c.expect(protocol.TypeInitUsers, nil)
}

func TestChatOverWebSocket(t *testing.T) {
	srv := startServer(t, Config{})
	a := dial(t, srv)
	b := dial(t, srv)
	for _, c := range []*client{a, b} {
		c.send(protocol.TypeJoinLobby, map[string]any{"roomId": "7"})
		c.expect(protocol.TypeInitUsers, nil)
		c.send(protocol.TypeJoinChat, map[string]any{"roomKey": "7"})
		c.expect(protocol.TypeInitChat, nil)
	}

	a.send(protocol.TypeSendMessage, map[string]any{"roomKey": "7", "name": "ann", "message": "hi"})
	var item protocol.ChatItem
	b.expect(protocol.TypeNewMessage, &item)
	assert.Equal(t, "hi", item.Message)
	assert.Equal(t, "ann", item.Name)
}

func TestRateLimitDropsFrames(t *testing.T) {
	srv := startServer(t, Config{RateLimit: 0.001, RateBurst: 1})
	c := dial(t, srv)

	c.send(protocol.TypeJoinLobby, map[string]any{"roomId": "1"})
	c.expect(protocol.TypeInitUsers, nil)

	// бакет пуст: кадр молча выброшен
	c.sendRaw(`{"type":"dance"}`)
	_ = c.conn.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
	_, _, err := c.conn.ReadMessage()
	require.Error(t, err)
}

func TestCheckOrigin(t *testing.T) {
	s := NewServer(nil, Config{AllowedOrigins: []string{"https://needle.example"}}, nil)

	r := httptest.NewRequest(http.MethodGet, "/ws", nil)
	assert.True(t, s.checkOrigin(r))
	r.Header.Set("Origin", "https://needle.example")
	assert.True(t, s.checkOrigin(r))
	r.Header.Set("Origin", "https://evil.example")
	assert.False(t, s.checkOrigin(r))

	open := NewServer(nil, Config{}, nil)
	assert.True(t, open.checkOrigin(r))
}

func TestSessionSendWhenFull(t *testing.T) {
	s := &session{id: "s", out: make(chan protocol.Message, 1), closed: make(chan struct{})}
	require.NoError(t, s.Send(protocol.Message{Type: "a"}))
	assert.ErrorIs(t, s.Send(protocol.Message{Type: "b"}), errSlowConsumer)

	close(s.closed)
	assert.ErrorIs(t, s.Send(protocol.Message{Type: "c"}), errClosed)
}

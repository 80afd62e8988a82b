package ws

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/needle-drop/lobby-service/internal/protocol"
)

var (
	errSlowConsumer = errors.New("outbound buffer full")
	errClosed       = errors.New("session closed")
)

// session is one WebSocket connection. Send only enqueues; writeLoop owns
// every write to the socket.
type session struct {
	id      string
	conn    *websocket.Conn
	out     chan protocol.Message
	closed  chan struct{}
	limiter *rate.Limiter

	closeOnce sync.Once
}

func newSession(id string, conn *websocket.Conn, cfg Config) *session {
	return &session{
		id:      id,
		conn:    conn,
		out:     make(chan protocol.Message, cfg.OutboundBuffer),
		closed:  make(chan struct{}),
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst),
	}
}

func (s *session) ID() string { return s.id }

func (s *session) Send(msg protocol.Message) error {
	select {
	case <-s.closed:
		return errClosed
	default:
	}
	select {
	case s.out <- msg:
		return nil
	default:
		return errSlowConsumer
	}
}

func (s *session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.closed)
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		err = s.conn.Close()
	})
	return err
}

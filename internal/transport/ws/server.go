package ws

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/gorilla/websocket"

	"github.com/needle-drop/lobby-service/internal/idgen"
	"github.com/needle-drop/lobby-service/internal/lobby"
	"github.com/needle-drop/lobby-service/internal/protocol"
)

type Hub interface {
	Attach(ctx context.Context, c lobby.Conn) error
	Detach(id string)
	Submit(ctx context.Context, id string, cmd protocol.Command) error
}

type Config struct {
	PingInterval   time.Duration
	WriteTimeout   time.Duration
	ReadLimit      int64
	OutboundBuffer int
	// RateLimit is inbound frames per second, RateBurst the bucket size.
	RateLimit float64
	RateBurst int
	// Пустой AllowedOrigins: пускаем всех.
	AllowedOrigins []string
}

func (c *Config) defaults() {
	if c.PingInterval <= 0 {
		c.PingInterval = 15 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 5 * time.Second
	}
	if c.ReadLimit <= 0 {
		c.ReadLimit = 64 << 10
	}
	if c.OutboundBuffer <= 0 {
		c.OutboundBuffer = 256
	}
	if c.RateLimit <= 0 {
		c.RateLimit = 20
	}
	if c.RateBurst <= 0 {
		c.RateBurst = 40
	}
}

type Server struct {
	cfg      Config
	upgrader websocket.Upgrader
	hub      Hub
	log      *slog.Logger
}

func NewServer(hub Hub, cfg Config, log *slog.Logger) *Server {
	cfg.defaults()
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		cfg: cfg,
		hub: hub,
		log: log.With(slog.String("component", "ws")),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

// WS endpoint: GET /ws
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade уже ответил клиенту
		s.log.Warn("ws upgrade failed", slog.String("err", err.Error()))
		return
	}

	sess := newSession(idgen.NewSessionID(), conn, s.cfg)
	log := s.log.With(slog.String("session", sess.id), slog.String("remote", r.RemoteAddr))

	// контекст запроса отменяется при Hijack, живём на своём
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := s.hub.Attach(ctx, sess); err != nil {
		log.Warn("ws attach failed", slog.String("err", err.Error()))
		_ = sess.Close()
		return
	}
	log.Info("ws connected")

	go s.writeLoop(sess, log)
	err = s.readLoop(ctx, sess, log)

	s.hub.Detach(sess.id)
	_ = sess.Close()
	log.Info("ws disconnected", slog.Any("reason", err))
}

func (s *Server) readLoop(ctx context.Context, c *session, log *slog.Logger) (err error) {
	defer func() {
		if p := recover(); p != nil {
			log.Error("ws read loop panic", slog.Any("panic", p))
			err = fmt.Errorf("panic: %v", p)
		}
	}()

	c.conn.SetReadLimit(s.cfg.ReadLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(2 * s.cfg.PingInterval))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(2 * s.cfg.PingInterval))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(2 * s.cfg.PingInterval))

		if !c.limiter.Allow() {
			log.Debug("ws frame dropped by rate limit")
			continue
		}

		cmd, err := protocol.Decode(data)
		if err != nil {
			log.Debug("ws frame rejected", slog.String("err", err.Error()))
			if sendErr := c.Send(protocol.ErrorFor(data, err)); sendErr != nil {
				return sendErr
			}
			continue
		}
		if err := s.hub.Submit(ctx, c.id, cmd); err != nil {
			if errors.Is(err, lobby.ErrHubClosed) {
				return nil
			}
			return err
		}
	}
}

func (s *Server) writeLoop(c *session, log *slog.Logger) {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg := <-c.out:
			_ = c.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if err := c.conn.WriteJSON(msg); err != nil {
				log.Debug("ws write failed", slog.String("err", err.Error()))
				_ = c.Close()
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.cfg.WriteTimeout)); err != nil {
				_ = c.Close()
				return
			}
		case <-c.closed:
			return
		}
	}
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.cfg.AllowedOrigins) == 0 || slices.Contains(s.cfg.AllowedOrigins, "*") {
		return true
	}
	origin := r.Header.Get("Origin")
	return origin == "" || slices.Contains(s.cfg.AllowedOrigins, origin)
}

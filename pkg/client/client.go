// Package client is a Go client for the lobby WebSocket protocol.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/needle-drop/lobby-service/internal/protocol"
)

type outbound struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// Client is one lobby session.
type Client struct {
	cfg        Config
	ws         *websocket.Conn
	id         string
	writeCh    chan outbound
	dispatcher Dispatcher
	mirror     *Mirror

	cancel context.CancelFunc
	done   chan struct{}

	mu     sync.Mutex
	closed bool
	err    error
}

// Dial connects, waits for the server's welcome and starts the read and
// write loops.
func Dial(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("client: empty URL")
	}

	dialCtx := ctx
	if cfg.HandshakeTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, cfg.HandshakeTimeout)
		defer cancel()
	}

	ws, _, err := websocket.Dial(dialCtx, cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("client: dial: %w", err)
	}
	if cfg.ReadLimit > 0 {
		ws.SetReadLimit(cfg.ReadLimit)
	}

	var f protocol.Frame
	if err := wsjson.Read(dialCtx, ws, &f); err != nil {
		_ = ws.Close(websocket.StatusInternalError, "handshake error")
		return nil, fmt.Errorf("client: read welcome: %w", err)
	}
	var w protocol.WelcomePayload
	if f.Type != protocol.TypeWelcome || json.Unmarshal(f.Payload, &w) != nil || w.ID == "" {
		_ = ws.Close(websocket.StatusProtocolError, "expected welcome")
		return nil, ErrNoWelcome
	}

	runCtx, cancel := context.WithCancel(context.Background())
	c := &Client{
		cfg:     cfg,
		ws:      ws,
		id:      w.ID,
		writeCh: make(chan outbound, 64),
		mirror:  NewMirror(),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go c.readLoop(runCtx)
	go c.writeLoop(runCtx)
	return c, nil
}

// ID is the session id the server assigned.
func (c *Client) ID() string { return c.id }

// Mirror is the locally observed registry of the joined room.
func (c *Client) Mirror() *Mirror { return c.mirror }

// Done is closed when the connection ends; Err then tells why.
func (c *Client) Done() <-chan struct{} { return c.done }

func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *Client) OnInitUsers(fn func(InitUsersPayload)) {
	set(&c.dispatcher, &c.dispatcher.onInitUsers, fn)
}

func (c *Client) OnUserJoined(fn func(UserJoinedPayload)) {
	set(&c.dispatcher, &c.dispatcher.onUserJoined, fn)
}

func (c *Client) OnUserMoved(fn func(UserMovedPayload)) {
	set(&c.dispatcher, &c.dispatcher.onUserMoved, fn)
}

func (c *Client) OnNameUpdated(fn func(NameUpdatedPayload)) {
	set(&c.dispatcher, &c.dispatcher.onNameUpdated, fn)
}

func (c *Client) OnUserLeft(fn func(UserLeftPayload)) {
	set(&c.dispatcher, &c.dispatcher.onUserLeft, fn)
}

func (c *Client) OnInitChat(fn func(InitChatPayload)) {
	set(&c.dispatcher, &c.dispatcher.onInitChat, fn)
}

func (c *Client) OnNewMessage(fn func(ChatItem)) {
	set(&c.dispatcher, &c.dispatcher.onNewMessage, fn)
}

func (c *Client) OnClearChat(fn func(ClearChatPayload)) {
	set(&c.dispatcher, &c.dispatcher.onClearChat, fn)
}

func (c *Client) OnQueueState(fn func(QueueStatePayload)) {
	set(&c.dispatcher, &c.dispatcher.onQueueState, fn)
}

func (c *Client) OnVotedTracks(fn func(VotedTracksPayload)) {
	set(&c.dispatcher, &c.dispatcher.onVotedTracks, fn)
}

// OnError receives *ServerError for rejected frames and transport errors.
func (c *Client) OnError(fn func(error)) {
	set(&c.dispatcher, &c.dispatcher.onError, fn)
}

// JoinLobby enters room. clientID, if set, keeps vote records across
// reconnects.
func (c *Client) JoinLobby(ctx context.Context, room, clientID, name string) error {
	return c.send(ctx, protocol.TypeJoinLobby, joinLobbyPayload{RoomID: room, ClientID: clientID, Name: name})
}

func (c *Client) Move(ctx context.Context, x, y int) error {
	return c.send(ctx, protocol.TypeMove, movePayload{X: x, Y: y})
}

func (c *Client) Rename(ctx context.Context, name string) error {
	return c.send(ctx, protocol.TypeUpdateName, renamePayload{Name: name})
}

// JoinChat subscribes to a chat scope: the room id, or a zone id.
func (c *Client) JoinChat(ctx context.Context, roomKey string) error {
	return c.send(ctx, protocol.TypeJoinChat, chatScopePayload{RoomKey: roomKey})
}

// Send posts text to a chat scope. An empty name uses the display name.
func (c *Client) Send(ctx context.Context, roomKey, name, text string) error {
	return c.send(ctx, protocol.TypeSendMessage, sendMessagePayload{RoomKey: roomKey, Name: name, Message: text})
}

func (c *Client) ClearChat(ctx context.Context, roomKey string) error {
	return c.send(ctx, protocol.TypeClearChat, chatScopePayload{RoomKey: roomKey})
}

func (c *Client) JoinZone(ctx context.Context, zone string) error {
	return c.send(ctx, protocol.TypeJoinZone, zonePayload{Zone: zone})
}

func (c *Client) LeaveZone(ctx context.Context, zone string) error {
	return c.send(ctx, protocol.TypeLeaveZone, zonePayload{Zone: zone})
}

func (c *Client) AddTrack(ctx context.Context, zone, title, url string) error {
	return c.send(ctx, protocol.TypeAddTrack, addTrackPayload{Zone: zone, Title: title, URL: url})
}

// Vote sends +1 or -1 for a pending track.
func (c *Client) Vote(ctx context.Context, zone string, trackID int64, delta int) error {
	return c.send(ctx, protocol.TypeVote, votePayload{Zone: zone, TrackID: trackID, Delta: delta})
}

// TrackEnded reports that trackID finished playing here.
func (c *Client) TrackEnded(ctx context.Context, zone string, trackID int64) error {
	return c.send(ctx, protocol.TypeTrackEnded, trackEndedPayload{Zone: zone, TrackID: trackID})
}

// Close shuts down the client and closes the WebSocket.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	err := c.ws.Close(websocket.StatusNormalClosure, "client close")
	c.cancel()
	<-c.done
	return err
}

func (c *Client) send(ctx context.Context, typ string, payload any) error {
	select {
	case <-c.done:
		return ErrNotConnected
	default:
	}
	select {
	case c.writeCh <- outbound{Type: typ, Payload: payload}:
		return nil
	case <-c.done:
		return ErrNotConnected
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) readLoop(ctx context.Context) {
	defer close(c.done)
	defer c.cancel()
	for {
		readCtx, cancel := ctx, context.CancelFunc(func() {})
		if c.cfg.ReadTimeout > 0 {
			readCtx, cancel = context.WithTimeout(ctx, c.cfg.ReadTimeout)
		}
		var f protocol.Frame
		err := wsjson.Read(readCtx, c.ws, &f)
		cancel()
		if err != nil {
			if !isExpectedDisconnect(ctx, err) {
				c.setErr(err)
				c.dispatcher.fireError(err)
			}
			return
		}
		if err := c.mirror.Apply(f); err != nil {
			c.dispatcher.fireError(fmt.Errorf("client: mirror %s: %w", f.Type, err))
		}
		c.dispatcher.Dispatch(f)
	}
}

func (c *Client) writeLoop(ctx context.Context) {
	for {
		select {
		case out := <-c.writeCh:
			writeCtx, cancel := ctx, context.CancelFunc(func() {})
			if c.cfg.WriteTimeout > 0 {
				writeCtx, cancel = context.WithTimeout(ctx, c.cfg.WriteTimeout)
			}
			err := wsjson.Write(writeCtx, c.ws, out)
			cancel()
			if err != nil {
				if !isExpectedDisconnect(ctx, err) {
					c.setErr(err)
					c.dispatcher.fireError(err)
				}
				_ = c.ws.Close(websocket.StatusInternalError, "write error")
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (c *Client) setErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err == nil {
		c.err = err
	}
}

func isExpectedDisconnect(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return true
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
		return true
	}
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		return true
	default:
		return false
	}
}

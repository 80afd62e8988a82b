package client

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/needle-drop/lobby-service/internal/protocol"
)

// Dispatcher routes server events to registered callbacks.
type Dispatcher struct {
	mu sync.RWMutex

	onInitUsers   func(InitUsersPayload)
	onUserJoined  func(UserJoinedPayload)
	onUserMoved   func(UserMovedPayload)
	onNameUpdated func(NameUpdatedPayload)
	onUserLeft    func(UserLeftPayload)
	onInitChat    func(InitChatPayload)
	onNewMessage  func(ChatItem)
	onClearChat   func(ClearChatPayload)
	onQueueState  func(QueueStatePayload)
	onVotedTracks func(VotedTracksPayload)
	onError       func(error)
}

func set[T any](d *Dispatcher, dst *func(T), fn func(T)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	*dst = fn
}

func fire[T any](d *Dispatcher, fn *func(T), raw json.RawMessage, typ string) {
	d.mu.RLock()
	cb := *fn
	d.mu.RUnlock()
	if cb == nil {
		return
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		d.fireError(fmt.Errorf("client: decode %s: %w", typ, err))
		return
	}
	cb(v)
}

func (d *Dispatcher) Dispatch(f Frame) {
	switch f.Type {
	case protocol.TypeInitUsers:
		fire(d, &d.onInitUsers, f.Payload, f.Type)
	case protocol.TypeUserJoined:
		fire(d, &d.onUserJoined, f.Payload, f.Type)
	case protocol.TypeUserMoved:
		fire(d, &d.onUserMoved, f.Payload, f.Type)
	case protocol.TypeNameUpdated:
		fire(d, &d.onNameUpdated, f.Payload, f.Type)
	case protocol.TypeUserLeft:
		fire(d, &d.onUserLeft, f.Payload, f.Type)
	case protocol.TypeInitChat:
		fire(d, &d.onInitChat, f.Payload, f.Type)
	case protocol.TypeNewMessage:
		fire(d, &d.onNewMessage, f.Payload, f.Type)
	case protocol.TypeClearChat:
		fire(d, &d.onClearChat, f.Payload, f.Type)
	case protocol.TypeQueueState:
		fire(d, &d.onQueueState, f.Payload, f.Type)
	case protocol.TypeVotedTracks:
		fire(d, &d.onVotedTracks, f.Payload, f.Type)
	case protocol.TypeError:
		var p protocol.ErrorPayload
		if err := json.Unmarshal(f.Payload, &p); err != nil {
			d.fireError(fmt.Errorf("client: decode error frame: %w", err))
			return
		}
		d.fireError(fromPayload(p))
	}
}

func (d *Dispatcher) fireError(err error) {
	d.mu.RLock()
	cb := d.onError
	d.mu.RUnlock()
	if cb != nil && err != nil {
		cb(err)
	}
}

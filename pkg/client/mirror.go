package client

import (
	"encoding/json"
	"maps"
	"sync"

	"github.com/needle-drop/lobby-service/internal/protocol"
)

// Mirror is the client's view of its room, kept current from presence
// events.
type Mirror struct {
	mu    sync.RWMutex
	users map[string]protocol.UserState
}

func NewMirror() *Mirror {
	return &Mirror{users: make(map[string]protocol.UserState)}
}

// Apply folds one server frame into the mirror. Frames that are not
// presence events are ignored.
func (m *Mirror) Apply(f Frame) error {
	switch f.Type {
	case protocol.TypeInitUsers:
		var p protocol.InitUsersPayload
		if err := json.Unmarshal(f.Payload, &p); err != nil {
			return err
		}
		m.mu.Lock()
		m.users = make(map[string]protocol.UserState, len(p))
		maps.Copy(m.users, p)
		m.mu.Unlock()

	case protocol.TypeUserJoined:
		var p protocol.UserJoinedPayload
		if err := json.Unmarshal(f.Payload, &p); err != nil {
			return err
		}
		m.mu.Lock()
		m.users[p.ID] = protocol.UserState{X: p.Position.X, Y: p.Position.Y, Name: p.Name}
		m.mu.Unlock()

	case protocol.TypeUserMoved:
		var p protocol.UserMovedPayload
		if err := json.Unmarshal(f.Payload, &p); err != nil {
			return err
		}
		m.mu.Lock()
		if u, ok := m.users[p.ID]; ok {
			u.X, u.Y = p.X, p.Y
			m.users[p.ID] = u
		}
		m.mu.Unlock()

	case protocol.TypeNameUpdated:
		var p protocol.NameUpdatedPayload
		if err := json.Unmarshal(f.Payload, &p); err != nil {
			return err
		}
		m.mu.Lock()
		if u, ok := m.users[p.ID]; ok {
			u.Name = p.Name
			m.users[p.ID] = u
		}
		m.mu.Unlock()

	case protocol.TypeUserLeft:
		var p protocol.UserLeftPayload
		if err := json.Unmarshal(f.Payload, &p); err != nil {
			return err
		}
		m.mu.Lock()
		delete(m.users, p.ID)
		m.mu.Unlock()
	}
	return nil
}

// Snapshot returns a copy of the mirrored room.
func (m *Mirror) Snapshot() map[string]UserState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return maps.Clone(m.users)
}

func (m *Mirror) Get(id string) (UserState, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	return u, ok
}

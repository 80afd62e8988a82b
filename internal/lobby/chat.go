package lobby

import (
	"time"

	"github.com/needle-drop/lobby-service/internal/domain"
	"github.com/needle-drop/lobby-service/internal/idgen"
)

// Chat keeps a bounded, append-only history per scope.
type Chat struct {
	size   int
	scopes map[domain.Scope]*ring[domain.ChatMessage]
	now    func() time.Time
}

func NewChat(historySize int) *Chat {
	return &Chat{
		size:   historySize,
		scopes: make(map[domain.Scope]*ring[domain.ChatMessage]),
		now:    time.Now,
	}
}

// Append stamps and stores a message.
func (c *Chat) Append(scope domain.Scope, author, text string) domain.ChatMessage {
	now := c.now().UTC().Truncate(time.Millisecond)
	m := domain.ChatMessage{
		ID:     idgen.NewMessageID(now),
		Scope:  scope,
		Author: author,
		Text:   text,
		Time:   now,
	}
	r, ok := c.scopes[scope]
	if !ok {
		r = newRing[domain.ChatMessage](c.size)
		c.scopes[scope] = r
	}
	r.Push(m)
	return m
}

// History returns the scope's messages, oldest first.
func (c *Chat) History(scope domain.Scope) []domain.ChatMessage {
	r, ok := c.scopes[scope]
	if !ok {
		return []domain.ChatMessage{}
	}
	return r.Snapshot()
}

func (c *Chat) Clear(scope domain.Scope) {
	if r, ok := c.scopes[scope]; ok {
		r.Reset()
	}
}

// DropRoom forgets every scope of room.
func (c *Chat) DropRoom(roomID string) {
	for s := range c.scopes {
		if s.Room == roomID {
			delete(c.scopes, s)
		}
	}
}

// Scopes lists the room's scopes that hold history.
func (c *Chat) Scopes(roomID string) []domain.Scope {
	var out []domain.Scope
	for s, r := range c.scopes {
		if s.Room == roomID && r.Len() > 0 {
			out = append(out, s)
		}
	}
	return out
}

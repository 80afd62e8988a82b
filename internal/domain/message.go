package domain

import (
	"strings"
	"time"
)

type ChatMessage struct {
	ID     string
	Scope  Scope
	Author string
	Text   string
	Time   time.Time
}

// Scope addresses one chat thread: a whole room, or one zone of it.
type Scope struct {
	Room string
	Zone string
}

func (s Scope) String() string {
	if s.Zone == "" {
		return s.Room
	}
	return s.Room + "/" + s.Zone
}

// ScopeFor resolves the roomKey a client sent while standing in room.
// An empty key or the room id itself addresses the room-wide thread.
func ScopeFor(room, roomKey string) Scope {
	key := strings.TrimSpace(roomKey)
	if key == "" || key == room {
		return Scope{Room: room}
	}
	return Scope{Room: room, Zone: key}
}

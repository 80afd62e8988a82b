// Package protocol describes the lobby WebSocket protocol: event names, the
// payload of every event, and decoding of inbound frames into commands.
package protocol

import (
	"encoding/json"
	"time"

	"github.com/needle-drop/lobby-service/internal/domain"
)

// Входящие события (client → server)
const (
	TypeJoinLobby   = "join-lobby"
	TypeMove        = "move"
	TypeUpdateName  = "update-name"
	TypeJoinChat    = "join-chat"
	TypeSendMessage = "send-message"
	TypeClearChat   = "clear-chat" // в обе стороны
	TypeJoinZone    = "join-zone"
	TypeLeaveZone   = "leave-zone"
	TypeAddTrack    = "add-track"
	TypeVote        = "vote"
	TypeTrackEnded  = "track-ended"
)

// Исходящие события (server → client)
const (
	TypeWelcome     = "welcome"      // id сессии, первым кадром
	TypeInitUsers   = "init-users"   // снапшот комнаты, включая себя
	TypeUserJoined  = "user-joined"  // всем, кроме вошедшего
	TypeUserMoved   = "user-moved"   // всем, кроме двигавшегося
	TypeNameUpdated = "name-updated" // всем, включая автора
	TypeUserLeft    = "user-left"
	TypeInitChat    = "init-chat"   // история скоупа на join-chat
	TypeNewMessage  = "new-message" // всем подписчикам скоупа
	TypeQueueState  = "queue-state"
	TypeVotedTracks = "voted-tracks"
	TypeError       = "error" // только на кадры, которые не удалось разобрать
)

// Frame is the envelope of every message in both directions.
type Frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Message is an outbound event before encoding.
type Message struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

func Encode(m Message) ([]byte, error) {
	return json.Marshal(m)
}

type WelcomePayload struct {
	ID string `json:"id"`
}

// UserState is one entry of the init-users map, keyed by session id.
type UserState struct {
	X    int    `json:"x"`
	Y    int    `json:"y"`
	Name string `json:"name,omitempty"`
}

type InitUsersPayload map[string]UserState

type UserJoinedPayload struct {
	ID       string          `json:"id"`
	Position domain.Position `json:"position"`
	Name     string          `json:"name,omitempty"`
}

type UserMovedPayload struct {
	ID string `json:"id"`
	X  int    `json:"x"`
	Y  int    `json:"y"`
}

type NameUpdatedPayload struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type UserLeftPayload struct {
	ID string `json:"id"`
}

type ChatItem struct {
	ID      string `json:"id"`
	RoomKey string `json:"roomKey"`
	Name    string `json:"name"`
	Message string `json:"message"`
	Time    string `json:"time"` // RFC 3339, мс
}

type InitChatPayload struct {
	RoomKey  string     `json:"roomKey"`
	Messages []ChatItem `json:"messages"`
}

type ClearChatPayload struct {
	RoomKey string `json:"roomKey"`
}

type QueueStatePayload struct {
	Zone         string         `json:"zone"`
	Revision     uint64         `json:"revision"`
	Current      *domain.Track  `json:"current"`
	MainQueue    []domain.Track `json:"mainQueue"`
	PendingQueue []domain.Track `json:"pendingQueue"`
	// StartedAt — unix мс старта текущего трека, 0 если ничего не играет.
	StartedAt int64   `json:"startedAt"`
	Elapsed   float64 `json:"elapsed"` // секунды
}

type VotedTracksPayload struct {
	Zone     string  `json:"zone"`
	TrackIDs []int64 `json:"trackIds"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Type    string `json:"type,omitempty"`
}

// -------- helpers --------

// TimeFormat is how chat timestamps travel.
const TimeFormat = "2006-01-02T15:04:05.000Z07:00"

func ChatItemOf(m domain.ChatMessage) ChatItem {
	return ChatItem{
		ID:      m.ID,
		RoomKey: RoomKeyOf(m.Scope),
		Name:    m.Author,
		Message: m.Text,
		Time:    m.Time.UTC().Format(TimeFormat),
	}
}

// RoomKeyOf is the roomKey clients use for scope: the room id for the
// room-wide thread, the zone id otherwise.
func RoomKeyOf(s domain.Scope) string {
	if s.Zone == "" {
		return s.Room
	}
	return s.Zone
}

func QueueStateOf(zone string, rev uint64, q domain.ZoneQueue, startedAt time.Time, elapsed time.Duration) QueueStatePayload {
	p := QueueStatePayload{
		Zone:         zone,
		Revision:     rev,
		Current:      q.Current,
		MainQueue:    q.Main,
		PendingQueue: q.Pending,
		Elapsed:      elapsed.Seconds(),
	}
	if p.MainQueue == nil {
		p.MainQueue = []domain.Track{}
	}
	if p.PendingQueue == nil {
		p.PendingQueue = []domain.Track{}
	}
	if !startedAt.IsZero() {
		p.StartedAt = startedAt.UnixMilli()
	}
	return p
}

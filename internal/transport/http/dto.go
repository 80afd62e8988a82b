package http

import (
	"time"

	"github.com/needle-drop/lobby-service/internal/domain"
	"github.com/needle-drop/lobby-service/internal/protocol"
)

type RoomItem struct {
	ID           string    `json:"id"`
	Participants int       `json:"participants"`
	CreatedAt    time.Time `json:"created_at"`
}

type RoomsListResponse struct {
	Items []RoomItem `json:"items"`
}

type ParticipantItem struct {
	ID       string          `json:"id"`
	Name     string          `json:"name,omitempty"`
	Position domain.Position `json:"position"`
	JoinedAt time.Time       `json:"joined_at"`
}

type ParticipantsResponse struct {
	RoomID string            `json:"room_id"`
	Zones  []string          `json:"zones"`
	Items  []ParticipantItem `json:"items"`
}

type ChatHistoryResponse struct {
	RoomKey    string              `json:"room_key"`
	Items      []protocol.ChatItem `json:"items"`
	NextCursor string              `json:"next_cursor,omitempty"`
}

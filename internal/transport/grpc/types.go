package grpcx

import (
	"time"

	"github.com/needle-drop/lobby-service/internal/domain"
	"github.com/needle-drop/lobby-service/internal/protocol"
)

type Room struct {
	ID           string    `json:"id"`
	Participants int       `json:"participants"`
	CreatedAt    time.Time `json:"created_at"`
}

type Participant struct {
	ID       string          `json:"id"`
	Name     string          `json:"name,omitempty"`
	Position domain.Position `json:"position"`
	JoinedAt time.Time       `json:"joined_at"`
}

type ListRoomsRequest struct{}

type ListRoomsResponse struct {
	Items []Room `json:"items"`
}

type GetRoomRequest struct {
	ID string `json:"id"`
}

type GetRoomResponse struct {
	Room         Room          `json:"room"`
	Zones        []string      `json:"zones"`
	Participants []Participant `json:"participants"`
}

type ZoneRequest struct {
	RoomID string `json:"room_id"`
	Zone   string `json:"zone"`
}

type QueueResponse struct {
	State protocol.QueueStatePayload `json:"state"`
}

type ClearChatRequest struct {
	RoomID string `json:"room_id"`
	// Zone empty clears the room-wide thread.
	Zone string `json:"zone,omitempty"`
}

type ClearChatResponse struct{}

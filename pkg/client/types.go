package client

import (
	"github.com/needle-drop/lobby-service/internal/domain"
	"github.com/needle-drop/lobby-service/internal/protocol"
)

// Inbound frames and payloads, re-exported so callers outside this module
// can name them in callbacks.
type (
	Frame              = protocol.Frame
	UserState          = protocol.UserState
	Position           = domain.Position
	Track              = domain.Track
	InitUsersPayload   = protocol.InitUsersPayload
	UserJoinedPayload  = protocol.UserJoinedPayload
	UserMovedPayload   = protocol.UserMovedPayload
	NameUpdatedPayload = protocol.NameUpdatedPayload
	UserLeftPayload    = protocol.UserLeftPayload
	ChatItem           = protocol.ChatItem
	InitChatPayload    = protocol.InitChatPayload
	ClearChatPayload   = protocol.ClearChatPayload
	QueueStatePayload  = protocol.QueueStatePayload
	VotedTracksPayload = protocol.VotedTracksPayload
)

// Outbound payloads, as the server's decoder expects them.
type (
	joinLobbyPayload struct {
		RoomID   string `json:"roomId"`
		ClientID string `json:"clientId,omitempty"`
		Name     string `json:"name,omitempty"`
	}
	movePayload struct {
		X int `json:"x"`
		Y int `json:"y"`
	}
	renamePayload struct {
		Name string `json:"name"`
	}
	chatScopePayload struct {
		RoomKey string `json:"roomKey"`
	}
	sendMessagePayload struct {
		RoomKey string `json:"roomKey"`
		Name    string `json:"name,omitempty"`
		Message string `json:"message"`
	}
	zonePayload struct {
		Zone string `json:"zone"`
	}
	addTrackPayload struct {
		Zone  string `json:"zone"`
		Title string `json:"title"`
		URL   string `json:"url"`
	}
	votePayload struct {
		Zone    string `json:"zone"`
		TrackID int64  `json:"trackId"`
		Delta   int    `json:"delta"`
	}
	trackEndedPayload struct {
		Zone    string `json:"zone"`
		TrackID int64  `json:"trackId"`
	}
)

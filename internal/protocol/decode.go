package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
)

var (
	ErrMalformed   = errors.New("malformed frame")
	ErrUnknownType = errors.New("unknown event type")
)

// coordLimit bounds raw coordinates before they are rounded to int.
const coordLimit = 1 << 30

// Входные схемы. Указатели отличают отсутствующее поле от нулевого.
type (
	joinLobbyIn struct {
		RoomID   *string `json:"roomId"`
		LobbyID  *string `json:"lobbyId"` // старое имя поля
		ClientID string  `json:"clientId"`
		Name     string  `json:"name"`
	}
	moveIn struct {
		X *float64 `json:"x"`
		Y *float64 `json:"y"`
	}
	renameIn struct {
		Name *string `json:"name"`
	}
	chatScopeIn struct {
		RoomKey string `json:"roomKey"`
	}
	sendMessageIn struct {
		RoomKey string  `json:"roomKey"`
		Name    string  `json:"name"`
		Message *string `json:"message"`
	}
	zoneIn struct {
		Zone *string `json:"zone"`
	}
	addTrackIn struct {
		Zone  *string `json:"zone"`
		Title string  `json:"title"`
		URL   string  `json:"url"`
	}
	voteIn struct {
		Zone    *string `json:"zone"`
		TrackID *int64  `json:"trackId"`
		Delta   *int    `json:"delta"`
	}
	trackEndedIn struct {
		Zone    *string `json:"zone"`
		TrackID int64   `json:"trackId"`
	}
)

// Decode parses one inbound frame. Structural problems (bad JSON, missing
// required fields, wrong types) yield ErrMalformed; semantic checks such as
// empty chat text are left to the lobby.
func Decode(data []byte) (Command, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if f.Type == "" {
		return nil, fmt.Errorf("%w: missing type", ErrMalformed)
	}

	switch f.Type {
	case TypeJoinLobby:
		var in joinLobbyIn
		if err := payload(f, &in); err != nil {
			return nil, err
		}
		room := in.RoomID
		if room == nil {
			room = in.LobbyID
		}
		if room == nil || strings.TrimSpace(*room) == "" {
			return nil, missing(f.Type, "roomId")
		}
		return JoinLobby{
			RoomID:   strings.TrimSpace(*room),
			ClientID: strings.TrimSpace(in.ClientID),
			Name:     in.Name,
		}, nil

	case TypeMove:
		var in moveIn
		if err := payload(f, &in); err != nil {
			return nil, err
		}
		if in.X == nil || in.Y == nil {
			return nil, missing(f.Type, "x/y")
		}
		x, okX := coord(*in.X)
		y, okY := coord(*in.Y)
		if !okX || !okY {
			return nil, fmt.Errorf("%w: %s: coordinates out of range", ErrMalformed, f.Type)
		}
		return Move{X: x, Y: y}, nil

	case TypeUpdateName:
		var in renameIn
		if err := payload(f, &in); err != nil {
			return nil, err
		}
		if in.Name == nil {
			return nil, missing(f.Type, "name")
		}
		return Rename{Name: *in.Name}, nil

	case TypeJoinChat, TypeClearChat:
		var in chatScopeIn
		if err := optionalPayload(f, &in); err != nil {
			return nil, err
		}
		if f.Type == TypeJoinChat {
			return JoinChat{RoomKey: in.RoomKey}, nil
		}
		return ClearChat{RoomKey: in.RoomKey}, nil

	case TypeSendMessage:
		var in sendMessageIn
		if err := payload(f, &in); err != nil {
			return nil, err
		}
		if in.Message == nil {
			return nil, missing(f.Type, "message")
		}
		return SendMessage{RoomKey: in.RoomKey, Name: in.Name, Text: *in.Message}, nil

	case TypeJoinZone, TypeLeaveZone:
		var in zoneIn
		if err := payload(f, &in); err != nil {
			return nil, err
		}
		zone, err := requireZone(f.Type, in.Zone)
		if err != nil {
			return nil, err
		}
		if f.Type == TypeJoinZone {
			return JoinZone{Zone: zone}, nil
		}
		return LeaveZone{Zone: zone}, nil

	case TypeAddTrack:
		var in addTrackIn
		if err := payload(f, &in); err != nil {
			return nil, err
		}
		zone, err := requireZone(f.Type, in.Zone)
		if err != nil {
			return nil, err
		}
		return AddTrack{Zone: zone, Title: in.Title, URL: in.URL}, nil

	case TypeVote:
		var in voteIn
		if err := payload(f, &in); err != nil {
			return nil, err
		}
		zone, err := requireZone(f.Type, in.Zone)
		if err != nil {
			return nil, err
		}
		if in.TrackID == nil || in.Delta == nil {
			return nil, missing(f.Type, "trackId/delta")
		}
		return Vote{Zone: zone, TrackID: *in.TrackID, Delta: *in.Delta}, nil

	case TypeTrackEnded:
		var in trackEndedIn
		if err := payload(f, &in); err != nil {
			return nil, err
		}
		zone, err := requireZone(f.Type, in.Zone)
		if err != nil {
			return nil, err
		}
		return TrackEnded{Zone: zone, TrackID: in.TrackID}, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownType, f.Type)
}

// ErrorFor builds the error event sent back for a frame Decode rejected.
func ErrorFor(data []byte, err error) Message {
	code := "malformed"
	if errors.Is(err, ErrUnknownType) {
		code = "unknown-type"
	}
	var f struct {
		Type string `json:"type"`
	}
	_ = json.Unmarshal(data, &f)
	return Message{Type: TypeError, Payload: ErrorPayload{Code: code, Message: err.Error(), Type: f.Type}}
}

// -------- helpers --------

func payload(f Frame, dst any) error {
	if len(bytes.TrimSpace(f.Payload)) == 0 || string(f.Payload) == "null" {
		return fmt.Errorf("%w: %s: missing payload", ErrMalformed, f.Type)
	}
	return unmarshal(f, dst)
}

func optionalPayload(f Frame, dst any) error {
	if len(bytes.TrimSpace(f.Payload)) == 0 || string(f.Payload) == "null" {
		return nil
	}
	return unmarshal(f, dst)
}

func unmarshal(f Frame, dst any) error {
	if err := json.Unmarshal(f.Payload, dst); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformed, f.Type, err)
	}
	return nil
}

func missing(typ, field string) error {
	return fmt.Errorf("%w: %s: missing %s", ErrMalformed, typ, field)
}

func requireZone(typ string, zone *string) (string, error) {
	if zone == nil || strings.TrimSpace(*zone) == "" {
		return "", missing(typ, "zone")
	}
	return strings.TrimSpace(*zone), nil
}

func coord(v float64) (int, bool) {
	if math.IsNaN(v) || math.IsInf(v, 0) || math.Abs(v) > coordLimit {
		return 0, false
	}
	return int(math.Round(v)), true
}

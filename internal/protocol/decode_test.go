package protocol

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/needle-drop/lobby-service/internal/domain"
)

func TestDecodeCommands(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Command
	}{
		{"join", `{"type":"join-lobby","payload":{"roomId":" 42 ","clientId":"c1","name":"Ann"}}`, JoinLobby{RoomID: "42", ClientID: "c1", Name: "Ann"}},
		{"join legacy lobbyId", `{"type":"join-lobby","payload":{"lobbyId":"42"}}`, JoinLobby{RoomID: "42"}},
		{"move rounds", `{"type":"move","payload":{"x":120.4,"y":99.6}}`, Move{X: 120, Y: 100}},
		{"move zero", `{"type":"move","payload":{"x":0,"y":0}}`, Move{}},
		{"rename", `{"type":"update-name","payload":{"name":"Bob"}}`, Rename{Name: "Bob"}},
		{"join chat room", `{"type":"join-chat"}`, JoinChat{}},
		{"join chat zone", `{"type":"join-chat","payload":{"roomKey":"room1"}}`, JoinChat{RoomKey: "room1"}},
		{"send", `{"type":"send-message","payload":{"message":"hi","name":"Ann","roomKey":"room1"}}`, SendMessage{RoomKey: "room1", Name: "Ann", Text: "hi"}},
		{"send empty text is not malformed", `{"type":"send-message","payload":{"message":""}}`, SendMessage{}},
		{"clear", `{"type":"clear-chat","payload":{"roomKey":"42"}}`, ClearChat{RoomKey: "42"}},
		{"join zone", `{"type":"join-zone","payload":{"zone":"room1"}}`, JoinZone{Zone: "room1"}},
		{"leave zone", `{"type":"leave-zone","payload":{"zone":"room1"}}`, LeaveZone{Zone: "room1"}},
		{"add track", `{"type":"add-track","payload":{"zone":"room1","title":"Song","url":"https://x"}}`, AddTrack{Zone: "room1", Title: "Song", URL: "https://x"}},
		{"vote", `{"type":"vote","payload":{"zone":"room1","trackId":1700000000000,"delta":-1}}`, Vote{Zone: "room1", TrackID: 1700000000000, Delta: -1}},
		{"track ended", `{"type":"track-ended","payload":{"zone":"room1","trackId":5}}`, TrackEnded{Zone: "room1", TrackID: 5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode([]byte(tt.in))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want.Type(), got.Type())
		})
	}
}

func TestDecodeMalformed(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"not json", `hello`},
		{"no type", `{"payload":{}}`},
		{"join without room", `{"type":"join-lobby","payload":{"clientId":"c"}}`},
		{"join blank room", `{"type":"join-lobby","payload":{"roomId":"  "}}`},
		{"join without payload", `{"type":"join-lobby"}`},
		{"move missing y", `{"type":"move","payload":{"x":1}}`},
		{"move string coords", `{"type":"move","payload":{"x":"1","y":2}}`},
		{"move huge", `{"type":"move","payload":{"x":1e300,"y":2}}`},
		{"rename missing", `{"type":"update-name","payload":{}}`},
		{"send missing message", `{"type":"send-message","payload":{"name":"Ann"}}`},
		{"vote missing delta", `{"type":"vote","payload":{"zone":"z","trackId":1}}`},
		{"vote fractional id", `{"type":"vote","payload":{"zone":"z","trackId":1.5,"delta":1}}`},
		{"add without zone", `{"type":"add-track","payload":{"title":"a","url":"b"}}`},
		{"join zone null payload", `{"type":"join-zone","payload":null}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.in))
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestDecodeUnknownType(t *testing.T) {
	_, err := Decode([]byte(`{"type":"teleport","payload":{}}`))
	assert.ErrorIs(t, err, ErrUnknownType)

	msg := ErrorFor([]byte(`{"type":"teleport"}`), err)
	assert.Equal(t, TypeError, msg.Type)
	p := msg.Payload.(ErrorPayload)
	assert.Equal(t, "unknown-type", p.Code)
	assert.Equal(t, "teleport", p.Type)
}

func TestEncodeEnvelope(t *testing.T) {
	data, err := Encode(Message{Type: TypeUserMoved, Payload: UserMovedPayload{ID: "b", X: 120, Y: 100}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"user-moved","payload":{"id":"b","x":120,"y":100}}`, string(data))
}

func TestQueueStateOfEmpty(t *testing.T) {
	p := QueueStateOf("room1", 0, domain.ZoneQueue{}, time.Time{}, 0)
	data, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, `{"zone":"room1","revision":0,"current":null,"mainQueue":[],"pendingQueue":[],"startedAt":0,"elapsed":0}`, string(data))
}

func TestChatItemOf(t *testing.T) {
	m := domain.ChatMessage{
		ID:     "01HZ",
		Scope:  domain.Scope{Room: "42", Zone: "room1"},
		Author: "Ann",
		Text:   "hi",
		Time:   time.Date(2024, 5, 1, 12, 0, 0, 123_000_000, time.UTC),
	}
	item := ChatItemOf(m)
	assert.Equal(t, "room1", item.RoomKey)
	assert.Equal(t, "2024-05-01T12:00:00.123Z", item.Time)

	m.Scope = domain.Scope{Room: "42"}
	assert.Equal(t, "42", ChatItemOf(m).RoomKey)
}

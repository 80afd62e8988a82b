package client

import (
	"errors"
	"fmt"

	"github.com/needle-drop/lobby-service/internal/protocol"
)

var (
	ErrNotConnected = errors.New("client: not connected")
	ErrNoWelcome    = errors.New("client: server did not send welcome")
)

// ServerError is an error frame the server sent back for a frame it could
// not decode.
type ServerError struct {
	Code    string
	Message string
	// Type is the event type of the rejected frame, if it had one.
	Type string
}

func (e *ServerError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("server rejected %s: %s: %s", e.Type, e.Code, e.Message)
	}
	return fmt.Sprintf("server rejected frame: %s: %s", e.Code, e.Message)
}

func fromPayload(p protocol.ErrorPayload) *ServerError {
	return &ServerError{Code: p.Code, Message: p.Message, Type: p.Type}
}

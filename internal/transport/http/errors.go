package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/needle-drop/lobby-service/internal/domain"
	"github.com/needle-drop/lobby-service/internal/lobby"
	"github.com/needle-drop/lobby-service/internal/queue"
)

// toHTTP maps an error to a status and a stable machine-readable code.
func toHTTP(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrRoomNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, ErrInvalidCursor):
		return http.StatusBadRequest, "invalid_cursor"
	case errors.Is(err, lobby.ErrHubClosed), errors.Is(err, queue.ErrContention):
		return http.StatusServiceUnavailable, "unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

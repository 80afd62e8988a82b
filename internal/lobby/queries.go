package lobby

import (
	"context"
	"slices"
	"time"

	"github.com/needle-drop/lobby-service/internal/domain"
	"github.com/needle-drop/lobby-service/internal/queue"
)

type RoomInfo struct {
	ID           string
	CreatedAt    time.Time
	Participants []domain.Participant
	// Zones are the zones somebody in this process listens to.
	Zones []string
}

type RoomSummary struct {
	ID           string
	Participants int
	CreatedAt    time.Time
}

func (h *Hub) Rooms(ctx context.Context) ([]RoomSummary, error) {
	var out []RoomSummary
	err := h.call(ctx, func() {
		for _, id := range h.state.reg.RoomIDs() {
			out = append(out, RoomSummary{
				ID:           id,
				Participants: len(h.state.reg.Members(id)),
				CreatedAt:    h.state.reg.CreatedAt(id),
			})
		}
	})
	return out, err
}

func (h *Hub) Room(ctx context.Context, id string) (RoomInfo, error) {
	var (
		info  RoomInfo
		found bool
	)
	err := h.call(ctx, func() {
		if !h.state.reg.HasRoom(id) {
			return
		}
		found = true
		info = RoomInfo{
			ID:           id,
			CreatedAt:    h.state.reg.CreatedAt(id),
			Participants: h.state.reg.Members(id),
		}
		for key := range h.state.zones {
			if key.Room == id {
				info.Zones = append(info.Zones, key.Zone)
			}
		}
		slices.Sort(info.Zones)
	})
	if err != nil {
		return RoomInfo{}, err
	}
	if !found {
		return RoomInfo{}, domain.ErrRoomNotFound
	}
	return info, nil
}

// ChatHistory returns the scope's messages, oldest first.
func (h *Hub) ChatHistory(ctx context.Context, scope domain.Scope) ([]domain.ChatMessage, error) {
	var out []domain.ChatMessage
	err := h.call(ctx, func() { out = h.state.chat.History(scope) })
	return out, err
}

// ClearChat wipes a scope and tells its subscribers.
func (h *Hub) ClearChat(ctx context.Context, scope domain.Scope) error {
	var found bool
	err := h.call(ctx, func() {
		var res Result
		res, found = h.state.ClearScope(scope)
		h.apply(res)
	})
	if err != nil {
		return err
	}
	if !found {
		return domain.ErrRoomNotFound
	}
	return nil
}

func (h *Hub) Queue(ctx context.Context, key domain.ZoneKey) (queue.State, error) {
	return h.queue.State(ctx, key)
}

// Skip ends whatever plays in key and starts the next track.
func (h *Hub) Skip(ctx context.Context, key domain.ZoneKey) (queue.State, error) {
	st, err := h.queue.Advance(ctx, key, 0)
	if err != nil {
		return queue.State{}, err
	}
	h.post(func() { h.publishState(st) })
	return st, nil
}

// Elapsed is how far into its current track st is.
func (h *Hub) Elapsed(st queue.State) time.Duration {
	return h.queue.Elapsed(st)
}

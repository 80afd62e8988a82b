package http

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/needle-drop/lobby-service/internal/domain"
	"github.com/needle-drop/lobby-service/internal/lobby"
	"github.com/needle-drop/lobby-service/internal/protocol"
	"github.com/needle-drop/lobby-service/internal/queue"
	"github.com/needle-drop/lobby-service/pkg/httputil"
)

const (
	defaultChatLimit = 50
	maxChatLimit     = 200
)

// Lobby is the read side of the hub the REST API exposes.
type Lobby interface {
	Rooms(ctx context.Context) ([]lobby.RoomSummary, error)
	Room(ctx context.Context, id string) (lobby.RoomInfo, error)
	ChatHistory(ctx context.Context, scope domain.Scope) ([]domain.ChatMessage, error)
	Queue(ctx context.Context, key domain.ZoneKey) (queue.State, error)
	Elapsed(st queue.State) time.Duration
}

type Handler struct {
	lobby Lobby
	log   *slog.Logger
}

func NewHandler(l Lobby, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{lobby: l, log: log.With(slog.String("component", "http"))}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, code := toHTTP(err)
	if status >= http.StatusInternalServerError {
		reqID, _ := httputil.FromContext(r.Context())
		h.log.Error("handler."+op, slog.String("req_id", reqID), slog.Any("err", err))
	}
	httputil.Error(w, status, code, err.Error())
}

// GET /rooms
func (h *Handler) ListRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := h.lobby.Rooms(r.Context())
	if err != nil {
		h.fail(w, r, "ListRooms", err)
		return
	}
	resp := RoomsListResponse{Items: make([]RoomItem, 0, len(rooms))}
	for _, rm := range rooms {
		resp.Items = append(resp.Items, RoomItem{
			ID:           rm.ID,
			Participants: rm.Participants,
			CreatedAt:    rm.CreatedAt,
		})
	}
	httputil.JSON(w, http.StatusOK, resp)
}

// GET /rooms/{id}/participants
func (h *Handler) GetParticipants(w http.ResponseWriter, r *http.Request) {
	info, err := h.lobby.Room(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "GetParticipants", err)
		return
	}
	resp := ParticipantsResponse{
		RoomID: info.ID,
		Zones:  append(make([]string, 0, len(info.Zones)), info.Zones...),
		Items:  make([]ParticipantItem, 0, len(info.Participants)),
	}
	for _, p := range info.Participants {
		resp.Items = append(resp.Items, ParticipantItem{
			ID:       p.SessionID,
			Name:     p.Name,
			Position: p.Position,
			JoinedAt: p.JoinedAt,
		})
	}
	httputil.JSON(w, http.StatusOK, resp)
}

// GET /rooms/{id}/chat?zone=&after=&limit=
func (h *Handler) GetChatHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	scope := domain.ScopeFor(chi.URLParam(r, "id"), q.Get("zone"))

	after, err := DecodeCursor(q.Get("after"))
	if err != nil {
		h.fail(w, r, "GetChatHistory", err)
		return
	}
	limit := defaultChatLimit
	if s := q.Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			limit = min(n, maxChatLimit)
		}
	}

	msgs, err := h.lobby.ChatHistory(r.Context(), scope)
	if err != nil {
		h.fail(w, r, "GetChatHistory", err)
		return
	}
	if after != nil {
		i := 0
		for i < len(msgs) && strings.Compare(msgs[i].ID, after.ID) <= 0 {
			i++
		}
		msgs = msgs[i:]
	}

	resp := ChatHistoryResponse{RoomKey: protocol.RoomKeyOf(scope), Items: make([]protocol.ChatItem, 0, min(len(msgs), limit))}
	for _, m := range msgs[:min(len(msgs), limit)] {
		resp.Items = append(resp.Items, protocol.ChatItemOf(m))
	}
	if len(msgs) > limit {
		last := msgs[limit-1]
		resp.NextCursor, _ = EncodeCursor(Cursor{CreatedAt: last.Time, ID: last.ID})
	}
	httputil.JSON(w, http.StatusOK, resp)
}

// GET /rooms/{id}/zones/{zone}/queue
func (h *Handler) GetQueue(w http.ResponseWriter, r *http.Request) {
	key := domain.ZoneKey{Room: chi.URLParam(r, "id"), Zone: chi.URLParam(r, "zone")}
	st, err := h.lobby.Queue(r.Context(), key)
	if err != nil {
		h.fail(w, r, "GetQueue", err)
		return
	}
	httputil.JSON(w, http.StatusOK, protocol.QueueStateOf(key.Zone, st.Revision, st.Queue, st.StartedAt, h.lobby.Elapsed(st)))
}

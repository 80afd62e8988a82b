package grpcx

import (
	"context"
	"errors"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/needle-drop/lobby-service/internal/domain"
	"github.com/needle-drop/lobby-service/internal/lobby"
	"github.com/needle-drop/lobby-service/internal/protocol"
	"github.com/needle-drop/lobby-service/internal/queue"
)

// Lobby is what the admin service needs from the hub.
type Lobby interface {
	Rooms(ctx context.Context) ([]lobby.RoomSummary, error)
	Room(ctx context.Context, id string) (lobby.RoomInfo, error)
	Queue(ctx context.Context, key domain.ZoneKey) (queue.State, error)
	Skip(ctx context.Context, key domain.ZoneKey) (queue.State, error)
	ClearChat(ctx context.Context, scope domain.Scope) error
	Elapsed(st queue.State) time.Duration
}

type Server struct {
	lobby Lobby
}

func NewServer(l Lobby) *Server {
	return &Server{lobby: l}
}

// -------- helpers --------

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, domain.ErrRoomNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, queue.ErrContention):
		return status.Error(codes.Aborted, err.Error())
	case errors.Is(err, lobby.ErrHubClosed):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

func zoneKey(in *ZoneRequest) (domain.ZoneKey, error) {
	key := domain.ZoneKey{Room: in.RoomID, Zone: in.Zone}
	if !key.Valid() {
		return key, status.Error(codes.InvalidArgument, "room_id and zone are required")
	}
	return key, nil
}

func (s *Server) queueResponse(key domain.ZoneKey, st queue.State) *QueueResponse {
	return &QueueResponse{
		State: protocol.QueueStateOf(key.Zone, st.Revision, st.Queue, st.StartedAt, s.lobby.Elapsed(st)),
	}
}

// -------- methods --------

func (s *Server) ListRooms(ctx context.Context, _ *ListRoomsRequest) (*ListRoomsResponse, error) {
	rooms, err := s.lobby.Rooms(ctx)
	if err != nil {
		return nil, mapErr(err)
	}
	out := &ListRoomsResponse{Items: make([]Room, 0, len(rooms))}
	for _, r := range rooms {
		out.Items = append(out.Items, Room{ID: r.ID, Participants: r.Participants, CreatedAt: r.CreatedAt})
	}
	return out, nil
}

func (s *Server) GetRoom(ctx context.Context, in *GetRoomRequest) (*GetRoomResponse, error) {
	if in.ID == "" {
		return nil, status.Error(codes.InvalidArgument, "id is required")
	}
	info, err := s.lobby.Room(ctx, in.ID)
	if err != nil {
		return nil, mapErr(err)
	}
	out := &GetRoomResponse{
		Room:         Room{ID: info.ID, Participants: len(info.Participants), CreatedAt: info.CreatedAt},
		Zones:        append(make([]string, 0, len(info.Zones)), info.Zones...),
		Participants: make([]Participant, 0, len(info.Participants)),
	}
	for _, p := range info.Participants {
		out.Participants = append(out.Participants, Participant{
			ID:       p.SessionID,
			Name:     p.Name,
			Position: p.Position,
			JoinedAt: p.JoinedAt,
		})
	}
	return out, nil
}

func (s *Server) GetQueue(ctx context.Context, in *ZoneRequest) (*QueueResponse, error) {
	key, err := zoneKey(in)
	if err != nil {
		return nil, err
	}
	st, err := s.lobby.Queue(ctx, key)
	if err != nil {
		return nil, mapErr(err)
	}
	return s.queueResponse(key, st), nil
}

func (s *Server) SkipTrack(ctx context.Context, in *ZoneRequest) (*QueueResponse, error) {
	key, err := zoneKey(in)
	if err != nil {
		return nil, err
	}
	st, err := s.lobby.Skip(ctx, key)
	if err != nil {
		return nil, mapErr(err)
	}
	return s.queueResponse(key, st), nil
}

func (s *Server) ClearChat(ctx context.Context, in *ClearChatRequest) (*ClearChatResponse, error) {
	if in.RoomID == "" {
		return nil, status.Error(codes.InvalidArgument, "room_id is required")
	}
	if err := s.lobby.ClearChat(ctx, domain.ScopeFor(in.RoomID, in.Zone)); err != nil {
		return nil, mapErr(err)
	}
	return &ClearChatResponse{}, nil
}

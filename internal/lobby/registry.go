package lobby

import (
	"slices"
	"strings"
	"time"

	"github.com/needle-drop/lobby-service/internal/domain"
)

type room struct {
	id           string
	participants map[string]*domain.Participant
	createdAt    time.Time
}

// Registry tracks which session stands where. A session belongs to at most
// one room; a room exists while it has participants.
type Registry struct {
	rooms    map[string]*room
	sessions map[string]string // sessionID -> roomID
	spawn    domain.Position
	bounds   domain.Bounds
	now      func() time.Time
}

func NewRegistry(spawn domain.Position, bounds domain.Bounds) *Registry {
	return &Registry{
		rooms:    make(map[string]*room),
		sessions: make(map[string]string),
		spawn:    spawn,
		bounds:   bounds,
		now:      time.Now,
	}
}

// Join places p into roomID at the spawn point. The caller must have
// removed any previous membership with Leave.
func (r *Registry) Join(roomID string, p domain.Participant) domain.Participant {
	rm, ok := r.rooms[roomID]
	if !ok {
		rm = &room{id: roomID, participants: make(map[string]*domain.Participant), createdAt: r.now()}
		r.rooms[roomID] = rm
	}
	p.RoomID = roomID
	p.Position = r.bounds.Clamp(r.spawn)
	p.JoinedAt = r.now()
	rm.participants[p.SessionID] = &p
	r.sessions[p.SessionID] = roomID
	return p
}

func (r *Registry) Move(sessionID string, pos domain.Position) (domain.Participant, error) {
	p, ok := r.lookup(sessionID)
	if !ok {
		return domain.Participant{}, domain.ErrNotInRoom
	}
	p.Position = r.bounds.Clamp(pos)
	return *p, nil
}

func (r *Registry) Rename(sessionID, name string) (domain.Participant, error) {
	p, ok := r.lookup(sessionID)
	if !ok {
		return domain.Participant{}, domain.ErrNotInRoom
	}
	p.Name = name
	return *p, nil
}

// Leave removes the session. evicted reports that the room became empty
// and was dropped.
func (r *Registry) Leave(sessionID string) (p domain.Participant, evicted bool, err error) {
	roomID, ok := r.sessions[sessionID]
	if !ok {
		return domain.Participant{}, false, domain.ErrNotInRoom
	}
	delete(r.sessions, sessionID)
	rm := r.rooms[roomID]
	p = *rm.participants[sessionID]
	delete(rm.participants, sessionID)
	if len(rm.participants) == 0 {
		delete(r.rooms, roomID)
		evicted = true
	}
	return p, evicted, nil
}

func (r *Registry) Participant(sessionID string) (domain.Participant, bool) {
	p, ok := r.lookup(sessionID)
	if !ok {
		return domain.Participant{}, false
	}
	return *p, true
}

// Members lists a room's participants in join order.
func (r *Registry) Members(roomID string) []domain.Participant {
	rm, ok := r.rooms[roomID]
	if !ok {
		return nil
	}
	out := make([]domain.Participant, 0, len(rm.participants))
	for _, p := range rm.participants {
		out = append(out, *p)
	}
	slices.SortFunc(out, func(a, b domain.Participant) int {
		if c := a.JoinedAt.Compare(b.JoinedAt); c != 0 {
			return c
		}
		return strings.Compare(a.SessionID, b.SessionID)
	})
	return out
}

// RoomIDs lists rooms that currently have participants, sorted.
func (r *Registry) RoomIDs() []string {
	out := make([]string, 0, len(r.rooms))
	for id := range r.rooms {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

func (r *Registry) HasRoom(roomID string) bool {
	_, ok := r.rooms[roomID]
	return ok
}

func (r *Registry) CreatedAt(roomID string) time.Time {
	if rm, ok := r.rooms[roomID]; ok {
		return rm.createdAt
	}
	return time.Time{}
}

func (r *Registry) lookup(sessionID string) (*domain.Participant, bool) {
	roomID, ok := r.sessions[sessionID]
	if !ok {
		return nil, false
	}
	p, ok := r.rooms[roomID].participants[sessionID]
	return p, ok
}

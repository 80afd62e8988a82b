package domain

import "time"

type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Participant is one connected session's presence inside a room.
type Participant struct {
	SessionID string
	RoomID    string
	Name      string
	Position  Position
	// VoterID survives reconnects when the client supplies a stable id.
	VoterID  string
	JoinedAt time.Time
}

// Bounds is the rectangle positions are clamped into.
type Bounds struct {
	MinX int `yaml:"minX"`
	MinY int `yaml:"minY"`
	MaxX int `yaml:"maxX"`
	MaxY int `yaml:"maxY"`
}

func (b Bounds) Clamp(p Position) Position {
	if b.MaxX <= b.MinX || b.MaxY <= b.MinY {
		return p
	}
	p.X = min(max(p.X, b.MinX), b.MaxX)
	p.Y = min(max(p.Y, b.MinY), b.MaxY)
	return p
}

package domain

import "errors"

var (
	ErrRoomNotFound  = errors.New("room not found")
	ErrNotInRoom     = errors.New("session not in a room")
	ErrEmptyName     = errors.New("display name is empty")
	ErrEmptyMessage  = errors.New("chat message is empty")
	ErrNoAuthor      = errors.New("chat message has no author")
	ErrInvalidTrack  = errors.New("track needs a title and a url")
	ErrInvalidVote   = errors.New("vote delta must be +1 or -1")
	ErrTrackNotFound = errors.New("track not pending")
	ErrAlreadyVoted  = errors.New("voter already voted on track")
	ErrStaleAdvance  = errors.New("track is no longer current")
)

package queue

import (
	"slices"

	"github.com/needle-drop/lobby-service/internal/domain"
)

// Thresholds are the tallies at which a pending track is promoted into the
// main queue or discarded.
type Thresholds struct {
	PromoteAt int `yaml:"promoteAt"`
	DemoteAt  int `yaml:"demoteAt"`
}

func DefaultThresholds() Thresholds {
	return Thresholds{PromoteAt: 2, DemoteAt: -2}
}

// Record is what one zone stores: its queue plus who voted on which pending
// track, so a single compare-and-set covers both.
type Record struct {
	Queue domain.ZoneQueue   `json:"queue"`
	Votes map[string][]int64 `json:"votes,omitempty"`
	// LastID is the highest track id ever handed out in this zone.
	LastID int64 `json:"lastId,omitempty"`
}

func (r Record) Clone() Record {
	out := Record{Queue: r.Queue.Clone(), LastID: r.LastID}
	if len(r.Votes) > 0 {
		out.Votes = make(map[string][]int64, len(r.Votes))
		for voter, ids := range r.Votes {
			out.Votes[voter] = slices.Clone(ids)
		}
	}
	return out
}

// VotedBy lists the pending tracks voter already voted on.
func (r Record) VotedBy(voter string) domain.VoteRecord {
	return domain.VoteRecord{Voter: voter, Tracks: append([]int64{}, r.Votes[voter]...)}
}

// NextTrackID reserves the next track id of the zone: the creation time in
// milliseconds, bumped past every id the zone already used.
func (r *Record) NextTrackID(nowMs int64) int64 {
	id := max(nowMs, r.LastID+1)
	r.LastID = id
	return id
}

// Add appends t to the pending queue with a zero tally.
func (r *Record) Add(t domain.Track) {
	t.Votes = 0
	r.Queue.Pending = append(r.Queue.Pending, t)
	r.normalize()
}

// Vote applies one vote of voter to a pending track.
func (r *Record) Vote(voter string, trackID int64, delta int, th Thresholds) error {
	if delta != 1 && delta != -1 {
		return domain.ErrInvalidVote
	}
	i := slices.IndexFunc(r.Queue.Pending, func(t domain.Track) bool { return t.ID == trackID })
	if i < 0 {
		return domain.ErrTrackNotFound
	}
	if r.VotedBy(voter).Has(trackID) {
		return domain.ErrAlreadyVoted
	}
	if r.Votes == nil {
		r.Votes = make(map[string][]int64)
	}
	r.Votes[voter] = append(r.Votes[voter], trackID)

	t := &r.Queue.Pending[i]
	t.Votes += delta
	switch {
	case t.Votes >= th.PromoteAt:
		promoted := *t
		r.Queue.Pending = slices.Delete(r.Queue.Pending, i, i+1)
		r.Queue.Main = append(r.Queue.Main, promoted)
		r.forget(trackID)
	case t.Votes <= th.DemoteAt:
		r.Queue.Pending = slices.Delete(r.Queue.Pending, i, i+1)
		r.forget(trackID)
	}
	r.normalize()
	return nil
}

// Advance moves the head of the main queue into the current slot. A
// non-zero expected id must match the current track; this lets every
// listener report the same track end while only one advance happens.
func (r *Record) Advance(expected int64) error {
	if expected != 0 && (r.Queue.Current == nil || r.Queue.Current.ID != expected) {
		return domain.ErrStaleAdvance
	}
	r.Queue.Current = nil
	r.normalize()
	return nil
}

// normalize performs the automatic advance: nothing may sit in the main
// queue while nothing plays.
func (r *Record) normalize() {
	if r.Queue.Current == nil && len(r.Queue.Main) > 0 {
		head := r.Queue.Main[0]
		r.Queue.Main = slices.Delete(r.Queue.Main, 0, 1)
		r.Queue.Current = &head
	}
}

// forget drops trackID from every vote record once it left the pending queue.
func (r *Record) forget(trackID int64) {
	for voter, ids := range r.Votes {
		ids = slices.DeleteFunc(ids, func(id int64) bool { return id == trackID })
		if len(ids) == 0 {
			delete(r.Votes, voter)
			continue
		}
		r.Votes[voter] = ids
	}
}

package domain

import (
	"encoding/base64"
	"slices"
	"strconv"
)

type Track struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url"`
	Votes int    `json:"votes"`
}

// ZoneQueue is the replicated playback state of one zone.
type ZoneQueue struct {
	Current *Track  `json:"current"`
	Main    []Track `json:"mainQueue"`
	Pending []Track `json:"pendingQueue"`
}

func (q ZoneQueue) Playing() bool { return q.Current != nil }

func (q ZoneQueue) Clone() ZoneQueue {
	out := ZoneQueue{
		Main:    slices.Clone(q.Main),
		Pending: slices.Clone(q.Pending),
	}
	if q.Current != nil {
		cur := *q.Current
		out.Current = &cur
	}
	return out
}

// VoteRecord lists the tracks one voter already voted on in one zone.
type VoteRecord struct {
	Voter  string  `json:"voter"`
	Tracks []int64 `json:"tracks"`
}

func (v VoteRecord) Has(trackID int64) bool {
	return slices.Contains(v.Tracks, trackID)
}

// ZoneKey identifies a ZoneQueue: exactly one per (room, zone).
type ZoneKey struct {
	Room string
	Zone string
}

func (k ZoneKey) String() string { return k.Room + "/" + k.Zone }

func (k ZoneKey) Valid() bool { return k.Room != "" && k.Zone != "" }

// StoreKey is the store key of the zone's queue record. Segments are
// base64url encoded so arbitrary room names stay inside the key charset
// every backend accepts.
func (k ZoneKey) StoreKey() string {
	return "queue." + seg(k.Room) + "." + seg(k.Zone)
}

// ClockKey is the store key holding the start time of one track instance.
func (k ZoneKey) ClockKey(trackID int64) string {
	return "clock." + seg(k.Room) + "." + seg(k.Zone) + "." + strconv.FormatInt(trackID, 10)
}

func seg(s string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(s))
}

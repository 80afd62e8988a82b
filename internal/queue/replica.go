package queue

import "sync"

// Replica holds the newest state applied for one zone. A state is adopted
// iff its revision is greater than the last applied one, so out of order
// deliveries never roll the view back.
type Replica struct {
	mu   sync.Mutex
	cur  State
	have bool
}

func (r *Replica) Apply(s State) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.have && s.Revision <= r.cur.Revision {
		return false
	}
	r.cur, r.have = s, true
	return true
}

func (r *Replica) Current() (State, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cur, r.have
}

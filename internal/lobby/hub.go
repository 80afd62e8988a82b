// Package lobby is the room registry, presence broadcaster and chat channel
// of one process. All of it is owned by a single Hub goroutine: commands,
// connects, disconnects and read queries are processed one at a time, so
// nothing in here is locked. Queue commands leave the loop to talk to the
// store and come back as results.
package lobby

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/needle-drop/lobby-service/internal/domain"
	"github.com/needle-drop/lobby-service/internal/protocol"
	"github.com/needle-drop/lobby-service/internal/queue"
)

var ErrHubClosed = errors.New("lobby: hub stopped")

// Conn is one connected session as the hub sees it.
type Conn interface {
	ID() string
	// Send must not block. An error means the peer cannot keep up and is
	// dropped.
	Send(msg protocol.Message) error
	Close() error
}

// QueueEngine is the part of queue.Engine the hub uses.
type QueueEngine interface {
	State(ctx context.Context, key domain.ZoneKey) (queue.State, error)
	Votes(ctx context.Context, key domain.ZoneKey, voter string) (domain.VoteRecord, error)
	Add(ctx context.Context, key domain.ZoneKey, title, url string) (queue.State, domain.Track, error)
	Vote(ctx context.Context, key domain.ZoneKey, voter string, trackID int64, delta int) (queue.State, error)
	Advance(ctx context.Context, key domain.ZoneKey, expected int64) (queue.State, error)
	Watch(ctx context.Context, key domain.ZoneKey) (<-chan queue.State, error)
	Elapsed(s queue.State) time.Duration
}

type eventKind uint8

const (
	evAttach eventKind = iota
	evDetach
	evCommand
)

// event is one connect, disconnect or command. All three share one channel
// so a session's events are handled in the order they were sent.
type event struct {
	kind    eventKind
	conn    Conn
	session string
	cmd     protocol.Command
}

type zoneWatch struct {
	cancel  context.CancelFunc
	replica *queue.Replica
}

type Hub struct {
	cfg   Config
	queue QueueEngine
	log   *slog.Logger

	state    *State
	conns    map[string]Conn
	dropping map[string]struct{}
	watches  map[domain.ZoneKey]*zoneWatch

	events chan event
	calls  chan func()

	ctx     context.Context
	started chan struct{}
	done    chan struct{}
	wg      sync.WaitGroup
}

func NewHub(cfg Config, engine QueueEngine, log *slog.Logger) *Hub {
	cfg.defaults()
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		cfg:      cfg,
		queue:    engine,
		log:      log.With(slog.String("component", "lobby")),
		state:    NewState(cfg),
		conns:    make(map[string]Conn),
		dropping: make(map[string]struct{}),
		watches:  make(map[domain.ZoneKey]*zoneWatch),
		events:   make(chan event, cfg.InboxSize),
		calls:    make(chan func(), cfg.InboxSize),
		started:  make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Run processes events until ctx is done, then closes every connection.
func (h *Hub) Run(ctx context.Context) error {
	h.ctx = ctx
	close(h.started)
	defer func() {
		close(h.done)
		for _, w := range h.watches {
			w.cancel()
		}
		for _, c := range h.conns {
			_ = c.Close()
		}
		h.wg.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-h.events:
			h.handleEvent(ev)
		case fn := <-h.calls:
			fn()
		}
		h.flushDrops()
	}
}

// Attach hands a new connection to the hub; it is greeted with its id.
func (h *Hub) Attach(ctx context.Context, c Conn) error {
	return h.enqueue(ctx, event{kind: evAttach, conn: c, session: c.ID()})
}

// Detach is idempotent.
func (h *Hub) Detach(id string) {
	_ = h.enqueue(context.Background(), event{kind: evDetach, session: id})
}

// Submit queues one decoded command of session id. It blocks while the
// hub is saturated, which pushes back on the reading connection.
func (h *Hub) Submit(ctx context.Context, id string, cmd protocol.Command) error {
	return h.enqueue(ctx, event{kind: evCommand, session: id, cmd: cmd})
}

func (h *Hub) enqueue(ctx context.Context, ev event) error {
	if h.stopped() {
		return ErrHubClosed
	}
	select {
	case h.events <- ev:
		return nil
	case <-h.done:
		return ErrHubClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// -------- loop handlers --------

func (h *Hub) handleEvent(ev event) {
	switch ev.kind {
	case evAttach:
		h.handleAttach(ev.conn)
	case evDetach:
		h.handleDetach(ev.session)
	case evCommand:
		h.apply(h.state.Dispatch(ev.session, ev.cmd))
	}
}

func (h *Hub) handleAttach(c Conn) {
	id := c.ID()
	if !h.state.Attach(id) {
		h.log.Warn("duplicate session id", slog.String("session", id))
		_ = c.Close()
		return
	}
	h.conns[id] = c
	h.log.Debug("session attached", slog.String("session", id))
	h.sendTo(id, protocol.Message{Type: protocol.TypeWelcome, Payload: protocol.WelcomePayload{ID: id}})
}

func (h *Hub) handleDetach(id string) {
	c, ok := h.conns[id]
	if !ok {
		return
	}
	delete(h.conns, id)
	delete(h.dropping, id)
	_ = c.Close()
	h.apply(h.state.Detach(id))
	h.log.Debug("session detached", slog.String("session", id))
}

func (h *Hub) apply(res Result) {
	if res.Err != nil {
		h.log.Debug("command ignored", slog.String("reason", res.Err.Error()))
	}
	for _, d := range res.Deliveries {
		for _, id := range d.To {
			h.sendTo(id, d.Msg)
		}
	}
	for _, key := range res.Unwatch {
		if w, ok := h.watches[key]; ok {
			w.cancel()
			delete(h.watches, key)
		}
	}
	for _, key := range res.Watch {
		h.startWatch(key)
	}
	for _, op := range res.Ops {
		h.runOp(op)
	}
}

// sendTo marks a session whose buffer is full for dropping. The drop runs
// after the current event so the session's leave is announced after
// everything the event produced.
func (h *Hub) sendTo(id string, msg protocol.Message) {
	c, ok := h.conns[id]
	if !ok {
		return
	}
	if _, ok := h.dropping[id]; ok {
		return
	}
	if err := c.Send(msg); err != nil {
		h.log.Info("dropping slow session", slog.String("session", id), slog.String("err", err.Error()))
		h.dropping[id] = struct{}{}
	}
}

func (h *Hub) flushDrops() {
	for len(h.dropping) > 0 {
		for id := range h.dropping {
			delete(h.dropping, id)
			h.handleDetach(id)
		}
	}
}

func (h *Hub) startWatch(key domain.ZoneKey) {
	if _, ok := h.watches[key]; ok {
		return
	}
	ctx, cancel := context.WithCancel(h.ctx)
	updates, err := h.queue.Watch(ctx, key)
	if err != nil {
		cancel()
		h.log.Warn("zone watch failed, retry on next join", slog.String("zone", key.String()), slog.String("err", err.Error()))
		return
	}
	w := &zoneWatch{cancel: cancel, replica: &queue.Replica{}}
	h.watches[key] = w

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		for s := range updates {
			h.post(func() { h.publishState(s) })
		}
		if ctx.Err() == nil {
			h.post(func() { h.watchEnded(key, w) })
		}
	}()
}

// watchEnded forgets a watch whose stream closed under it, so the next
// join-zone opens a fresh one.
func (h *Hub) watchEnded(key domain.ZoneKey, w *zoneWatch) {
	if h.watches[key] != w {
		return
	}
	w.cancel()
	delete(h.watches, key)
	h.log.Warn("zone watch ended", slog.String("zone", key.String()))
}

// publishState fans a zone revision out to its subscribers if it is newer
// than what they were sent.
func (h *Hub) publishState(s queue.State) {
	w, ok := h.watches[s.Key]
	if !ok || !w.replica.Apply(s) {
		return
	}
	msg := h.queueState(s)
	for _, id := range h.state.ZoneSubscribers(s.Key) {
		h.sendTo(id, msg)
	}
}

func (h *Hub) runOp(op Op) {
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		ctx, cancel := context.WithTimeout(h.ctx, h.cfg.OpTimeout)
		defer cancel()

		var (
			st    queue.State
			votes domain.VoteRecord
			err   error
		)
		switch op.Kind {
		case OpPrime:
			st, err = h.queue.State(ctx, op.Key)
			if err == nil {
				votes, err = h.queue.Votes(ctx, op.Key, op.Voter)
			}
		case OpAdd:
			st, _, err = h.queue.Add(ctx, op.Key, op.Title, op.URL)
		case OpVote:
			st, err = h.queue.Vote(ctx, op.Key, op.Voter, op.TrackID, op.Delta)
			votes = st.VotedBy(op.Voter)
		case OpAdvance:
			st, err = h.queue.Advance(ctx, op.Key, op.TrackID)
		}
		h.post(func() { h.opDone(op, st, votes, err) })
	}()
}

func (h *Hub) opDone(op Op, st queue.State, votes domain.VoteRecord, err error) {
	log := h.log.With(slog.String("zone", op.Key.String()), slog.String("session", op.Session))
	switch {
	case err == nil:
	case errors.Is(err, queue.ErrContention):
		log.Warn("queue write gave up", slog.String("err", err.Error()))
		return
	case isDomainNoop(err):
		log.Debug("queue command ignored", slog.String("reason", err.Error()))
		if op.Kind == OpVote && errors.Is(err, domain.ErrAlreadyVoted) {
			h.sendVotes(op, votes)
		}
		return
	default:
		log.Error("queue command failed", slog.String("err", err.Error()))
		return
	}

	switch op.Kind {
	case OpPrime:
		if !h.state.Subscribed(op.Session, op.Key) {
			return
		}
		if w, ok := h.watches[op.Key]; ok {
			w.replica.Apply(st)
			if cur, ok := w.replica.Current(); ok {
				st = cur
			}
		}
		h.sendTo(op.Session, h.queueState(st))
		h.sendVotes(op, votes)
	case OpVote:
		h.publishState(st)
		h.sendVotes(op, votes)
	default:
		h.publishState(st)
	}
}

func (h *Hub) sendVotes(op Op, v domain.VoteRecord) {
	ids := v.Tracks
	if ids == nil {
		ids = []int64{}
	}
	h.sendTo(op.Session, protocol.Message{
		Type:    protocol.TypeVotedTracks,
		Payload: protocol.VotedTracksPayload{Zone: op.Key.Zone, TrackIDs: ids},
	})
}

func (h *Hub) queueState(s queue.State) protocol.Message {
	return protocol.Message{
		Type:    protocol.TypeQueueState,
		Payload: protocol.QueueStateOf(s.Key.Zone, s.Revision, s.Queue, s.StartedAt, h.queue.Elapsed(s)),
	}
}

// post runs fn on the loop. Dropped once the hub stopped.
func (h *Hub) post(fn func()) {
	select {
	case h.calls <- fn:
	case <-h.done:
	}
}

// call runs fn on the loop and waits for it.
func (h *Hub) call(ctx context.Context, fn func()) error {
	select {
	case <-h.started:
	case <-ctx.Done():
		return ctx.Err()
	}
	finished := make(chan struct{})
	select {
	case h.calls <- func() { fn(); close(finished) }:
	case <-h.done:
		return ErrHubClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-finished:
		return nil
	case <-h.done:
		return ErrHubClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Hub) stopped() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

func isDomainNoop(err error) bool {
	for _, target := range []error{
		domain.ErrRoomNotFound, domain.ErrNotInRoom, domain.ErrInvalidTrack, domain.ErrInvalidVote,
		domain.ErrTrackNotFound, domain.ErrAlreadyVoted, domain.ErrStaleAdvance,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

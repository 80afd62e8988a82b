package lobby

import (
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/needle-drop/lobby-service/internal/domain"
	"github.com/needle-drop/lobby-service/internal/protocol"
)

type Config struct {
	Spawn            domain.Position
	Bounds           domain.Bounds
	MaxNameLength    int
	MaxMessageLength int
	HistorySize      int
	// RetainEmptyChat keeps chat history of rooms evicted on empty.
	RetainEmptyChat bool
	InboxSize       int
	// OpTimeout bounds one queue store round trip.
	OpTimeout time.Duration
}

func (c *Config) defaults() {
	if c.MaxNameLength <= 0 {
		c.MaxNameLength = 32
	}
	if c.MaxMessageLength <= 0 {
		c.MaxMessageLength = 500
	}
	if c.HistorySize <= 0 {
		c.HistorySize = 200
	}
	if c.InboxSize <= 0 {
		c.InboxSize = 1024
	}
	if c.OpTimeout <= 0 {
		c.OpTimeout = 5 * time.Second
	}
}

// Delivery is one outbound message and the sessions it goes to.
type Delivery struct {
	To  []string
	Msg protocol.Message
}

type OpKind int

const (
	OpPrime OpKind = iota + 1
	OpAdd
	OpVote
	OpAdvance
)

// Op is queue work the hub runs off its loop because it talks to the store.
type Op struct {
	Kind    OpKind
	Session string
	Voter   string
	Key     domain.ZoneKey
	Title   string
	URL     string
	TrackID int64
	Delta   int
}

// Result is everything a command caused. Watch lists zones that must have a
// live store watch; the hub skips zones it already watches, so a failed
// watch is retried on the next join.
type Result struct {
	Deliveries []Delivery
	Ops        []Op
	Watch      []domain.ZoneKey
	Unwatch    []domain.ZoneKey
	// Err says why the command changed nothing. It is never sent to peers.
	Err error
}

func (r *Result) send(to []string, typ string, payload any) {
	if len(to) == 0 {
		return
	}
	r.Deliveries = append(r.Deliveries, Delivery{To: to, Msg: protocol.Message{Type: typ, Payload: payload}})
}

type member struct {
	id     string
	scopes map[domain.Scope]struct{}
	zones  map[string]struct{}
}

// State is everything the hub owns. Dispatch mutates it and reports what
// must be sent, without doing any I/O itself.
type State struct {
	cfg     Config
	reg     *Registry
	chat    *Chat
	members map[string]*member
	zones   map[domain.ZoneKey]map[string]struct{}
}

func NewState(cfg Config) *State {
	cfg.defaults()
	return &State{
		cfg:     cfg,
		reg:     NewRegistry(cfg.Spawn, cfg.Bounds),
		chat:    NewChat(cfg.HistorySize),
		members: make(map[string]*member),
		zones:   make(map[domain.ZoneKey]map[string]struct{}),
	}
}

// Attach registers a connected session that has not joined a room yet.
func (s *State) Attach(id string) bool {
	if _, ok := s.members[id]; ok {
		return false
	}
	s.members[id] = &member{id: id}
	return true
}

// Detach is the terminal leave of a session. Unknown ids are ignored.
func (s *State) Detach(id string) Result {
	var res Result
	m, ok := s.members[id]
	if !ok {
		res.Err = domain.ErrNotInRoom
		return res
	}
	s.leaveRoom(m, &res)
	delete(s.members, id)
	return res
}

func (s *State) Dispatch(id string, cmd protocol.Command) Result {
	var res Result
	m, ok := s.members[id]
	if !ok {
		res.Err = domain.ErrNotInRoom
		return res
	}

	if c, ok := cmd.(protocol.JoinLobby); ok {
		s.join(m, c, &res)
		return res
	}

	p, ok := s.reg.Participant(id)
	if !ok {
		res.Err = domain.ErrNotInRoom
		return res
	}

	switch c := cmd.(type) {
	case protocol.Move:
		moved, err := s.reg.Move(id, domain.Position{X: c.X, Y: c.Y})
		if err != nil {
			res.Err = err
			break
		}
		res.send(s.roomIDs(p.RoomID, id), protocol.TypeUserMoved, protocol.UserMovedPayload{
			ID: id, X: moved.Position.X, Y: moved.Position.Y,
		})

	case protocol.Rename:
		name := s.cleanName(c.Name)
		if name == "" {
			res.Err = domain.ErrEmptyName
			break
		}
		if _, err := s.reg.Rename(id, name); err != nil {
			res.Err = err
			break
		}
		res.send(s.roomIDs(p.RoomID, ""), protocol.TypeNameUpdated, protocol.NameUpdatedPayload{ID: id, Name: name})

	case protocol.JoinChat:
		scope := domain.ScopeFor(p.RoomID, c.RoomKey)
		if m.scopes == nil {
			m.scopes = make(map[domain.Scope]struct{})
		}
		m.scopes[scope] = struct{}{}
		items := make([]protocol.ChatItem, 0)
		for _, msg := range s.chat.History(scope) {
			items = append(items, protocol.ChatItemOf(msg))
		}
		res.send([]string{id}, protocol.TypeInitChat, protocol.InitChatPayload{
			RoomKey:  protocol.RoomKeyOf(scope),
			Messages: items,
		})

	case protocol.SendMessage:
		text := truncate(strings.TrimSpace(c.Text), s.cfg.MaxMessageLength)
		if text == "" {
			res.Err = domain.ErrEmptyMessage
			break
		}
		author := s.cleanName(c.Name)
		if author == "" {
			author = p.Name
		}
		if author == "" {
			res.Err = domain.ErrNoAuthor
			break
		}
		scope := domain.ScopeFor(p.RoomID, c.RoomKey)
		msg := s.chat.Append(scope, author, text)
		res.send(s.scopeIDs(scope), protocol.TypeNewMessage, protocol.ChatItemOf(msg))

	case protocol.ClearChat:
		scope := domain.ScopeFor(p.RoomID, c.RoomKey)
		s.chat.Clear(scope)
		to := s.scopeIDs(scope)
		if !slices.Contains(to, id) {
			to = append(to, id)
		}
		res.send(to, protocol.TypeClearChat, protocol.ClearChatPayload{RoomKey: protocol.RoomKeyOf(scope)})

	case protocol.JoinZone:
		key := domain.ZoneKey{Room: p.RoomID, Zone: c.Zone}
		if m.zones == nil {
			m.zones = make(map[string]struct{})
		}
		m.zones[c.Zone] = struct{}{}
		subs, ok := s.zones[key]
		if !ok {
			subs = make(map[string]struct{})
			s.zones[key] = subs
		}
		subs[id] = struct{}{}
		res.Watch = append(res.Watch, key)
		res.Ops = append(res.Ops, Op{Kind: OpPrime, Session: id, Voter: p.VoterID, Key: key})

	case protocol.LeaveZone:
		if _, ok := m.zones[c.Zone]; !ok {
			res.Err = domain.ErrNotInRoom
			break
		}
		delete(m.zones, c.Zone)
		s.unsubscribe(domain.ZoneKey{Room: p.RoomID, Zone: c.Zone}, id, &res)

	case protocol.AddTrack:
		if strings.TrimSpace(c.Title) == "" || strings.TrimSpace(c.URL) == "" {
			res.Err = domain.ErrInvalidTrack
			break
		}
		res.Ops = append(res.Ops, Op{
			Kind: OpAdd, Session: id, Voter: p.VoterID,
			Key:   domain.ZoneKey{Room: p.RoomID, Zone: c.Zone},
			Title: c.Title, URL: c.URL,
		})

	case protocol.Vote:
		if c.Delta != 1 && c.Delta != -1 {
			res.Err = domain.ErrInvalidVote
			break
		}
		res.Ops = append(res.Ops, Op{
			Kind: OpVote, Session: id, Voter: p.VoterID,
			Key:     domain.ZoneKey{Room: p.RoomID, Zone: c.Zone},
			TrackID: c.TrackID, Delta: c.Delta,
		})

	case protocol.TrackEnded:
		res.Ops = append(res.Ops, Op{
			Kind: OpAdvance, Session: id, Voter: p.VoterID,
			Key:     domain.ZoneKey{Room: p.RoomID, Zone: c.Zone},
			TrackID: c.TrackID,
		})
	}
	return res
}

// ClearScope wipes a scope on behalf of an operator.
func (s *State) ClearScope(scope domain.Scope) (Result, bool) {
	var res Result
	if !s.reg.HasRoom(scope.Room) {
		return res, false
	}
	s.chat.Clear(scope)
	res.send(s.scopeIDs(scope), protocol.TypeClearChat, protocol.ClearChatPayload{RoomKey: protocol.RoomKeyOf(scope)})
	return res, true
}

// ZoneSubscribers lists sessions subscribed to key, sorted.
func (s *State) ZoneSubscribers(key domain.ZoneKey) []string {
	subs := s.zones[key]
	out := make([]string, 0, len(subs))
	for id := range subs {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

func (s *State) Subscribed(id string, key domain.ZoneKey) bool {
	_, ok := s.zones[key][id]
	return ok
}

func (s *State) join(m *member, c protocol.JoinLobby, res *Result) {
	s.leaveRoom(m, res)

	voter := c.ClientID
	if voter == "" {
		voter = m.id
	}
	p := s.reg.Join(c.RoomID, domain.Participant{
		SessionID: m.id,
		Name:      s.cleanName(c.Name),
		VoterID:   voter,
	})

	snapshot := protocol.InitUsersPayload{}
	for _, other := range s.reg.Members(c.RoomID) {
		snapshot[other.SessionID] = protocol.UserState{X: other.Position.X, Y: other.Position.Y, Name: other.Name}
	}
	res.send([]string{m.id}, protocol.TypeInitUsers, snapshot)
	res.send(s.roomIDs(c.RoomID, m.id), protocol.TypeUserJoined, protocol.UserJoinedPayload{
		ID: m.id, Position: p.Position, Name: p.Name,
	})
}

// leaveRoom removes every trace of m from its current room.
func (s *State) leaveRoom(m *member, res *Result) {
	p, evicted, err := s.reg.Leave(m.id)
	if err != nil {
		return
	}
	res.send(s.roomIDs(p.RoomID, ""), protocol.TypeUserLeft, protocol.UserLeftPayload{ID: m.id})

	for zone := range m.zones {
		s.unsubscribe(domain.ZoneKey{Room: p.RoomID, Zone: zone}, m.id, res)
	}
	m.zones = nil
	m.scopes = nil

	if evicted && !s.cfg.RetainEmptyChat {
		s.chat.DropRoom(p.RoomID)
	}
}

func (s *State) unsubscribe(key domain.ZoneKey, id string, res *Result) {
	subs, ok := s.zones[key]
	if !ok {
		return
	}
	delete(subs, id)
	if len(subs) == 0 {
		delete(s.zones, key)
		res.Unwatch = append(res.Unwatch, key)
	}
}

// roomIDs lists the sessions in room, except one.
func (s *State) roomIDs(roomID, except string) []string {
	members := s.reg.Members(roomID)
	out := make([]string, 0, len(members))
	for _, p := range members {
		if p.SessionID != except {
			out = append(out, p.SessionID)
		}
	}
	return out
}

// scopeIDs lists the sessions of scope's room that joined scope.
func (s *State) scopeIDs(scope domain.Scope) []string {
	var out []string
	for _, p := range s.reg.Members(scope.Room) {
		if m, ok := s.members[p.SessionID]; ok {
			if _, ok := m.scopes[scope]; ok {
				out = append(out, p.SessionID)
			}
		}
	}
	return out
}

func (s *State) cleanName(name string) string {
	return truncate(strings.TrimSpace(name), s.cfg.MaxNameLength)
}

func truncate(s string, maxRunes int) string {
	if maxRunes <= 0 || utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	return strings.TrimSpace(string([]rune(s)[:maxRunes]))
}

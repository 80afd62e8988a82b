package protocol

// Command is one decoded inbound frame.
type Command interface {
	Type() string
}

type JoinLobby struct {
	RoomID string
	// ClientID is an optional stable client identity used for votes.
	ClientID string
	Name     string
}

type Move struct {
	X, Y int
}

type Rename struct {
	Name string
}

type JoinChat struct {
	RoomKey string
}

type SendMessage struct {
	RoomKey string
	Name    string
	Text    string
}

type ClearChat struct {
	RoomKey string
}

type JoinZone struct {
	Zone string
}

type LeaveZone struct {
	Zone string
}

type AddTrack struct {
	Zone  string
	Title string
	URL   string
}

type Vote struct {
	Zone    string
	TrackID int64
	Delta   int
}

type TrackEnded struct {
	Zone    string
	TrackID int64
}

func (JoinLobby) Type() string   { return TypeJoinLobby }
func (Move) Type() string        { return TypeMove }
func (Rename) Type() string      { return TypeUpdateName }
func (JoinChat) Type() string    { return TypeJoinChat }
func (SendMessage) Type() string { return TypeSendMessage }
func (ClearChat) Type() string   { return TypeClearChat }
func (JoinZone) Type() string    { return TypeJoinZone }
func (LeaveZone) Type() string   { return TypeLeaveZone }
func (AddTrack) Type() string    { return TypeAddTrack }
func (Vote) Type() string        { return TypeVote }
func (TrackEnded) Type() string  { return TypeTrackEnded }

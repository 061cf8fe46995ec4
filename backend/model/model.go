package model

import (
	"errors"
	"sync"
	"time"
)

const (
	// DefaultMaxPlayers applies to freshly created rooms until the host
	// pushes its own settings.
	DefaultMaxPlayers = 8
)

var (
	ErrRoomClosed      = errors.New("room is closed")
	ErrRoomFull        = errors.New("room is full")
	ErrGameStarted     = errors.New("game already started")
	ErrNotHost         = errors.New("requester is not the host")
	ErrInvalidSettings = errors.New("invalid room settings")
)

// Conn is the capability a room member's transport must provide.
// Send is best-effort: false means the message was dropped because the
// connection is gone or stuck.
type Conn interface {
	Send(v any) bool
	Open() bool
}

type RoleCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

type Player struct {
	ID       string
	Conn     Conn
	JoinedAt time.Time

	seq uint64 // per-room join order, used for host succession
}

// Room is a single lobby. All mutation goes through its methods; the lock
// is per-room so unrelated rooms never serialize on each other.
type Room struct {
	mx sync.Mutex

	code       string
	host       string
	maxPlayers int
	roles      []RoleCount
	players    map[string]*Player
	started    bool
	closed     bool
	joinSeq    uint64
}

func NewRoom(code, hostID string, conn Conn) *Room {
	r := &Room{
		code:       code,
		host:       hostID,
		maxPlayers: DefaultMaxPlayers,
		players:    make(map[string]*Player),
		joinSeq:    1,
	}
	r.players[hostID] = &Player{
		ID:       hostID,
		Conn:     conn,
		JoinedAt: time.Now(),
		seq:      1,
	}
	return r
}

// Code never changes after creation.
func (r *Room) Code() string {
	return r.code
}

func (r *Room) Join(playerID string, conn Conn) error {
	r.mx.Lock()
	defer r.mx.Unlock()

	if r.closed {
		return ErrRoomClosed
	}
	if r.started {
		return ErrGameStarted
	}
	if len(r.players) >= r.maxPlayers {
		return ErrRoomFull
	}

	r.joinSeq++
	r.players[playerID] = &Player{
		ID:       playerID,
		Conn:     conn,
		JoinedAt: time.Now(),
		seq:      r.joinSeq,
	}
	return nil
}

// Leave removes the player if present. It reports whether anything changed
// (false makes double-invocation from explicit leave plus connection close
// harmless) and whether the room emptied out. An emptied room is closed
// immediately so late joiners racing the registry removal see it as gone.
func (r *Room) Leave(playerID string) (removed, empty bool) {
	r.mx.Lock()
	defer r.mx.Unlock()

	if _, ok := r.players[playerID]; !ok {
		return false, false
	}
	delete(r.players, playerID)

	if len(r.players) == 0 {
		r.closed = true
		return true, true
	}
	if r.host == playerID {
		var next *Player
		for _, p := range r.players {
			if next == nil || p.seq < next.seq {
				next = p
			}
		}
		r.host = next.ID
	}
	return true, false
}

// UpdateSettings replaces capacity and role pool wholesale. Host-only,
// pre-start only.
func (r *Room) UpdateSettings(requesterID string, maxPlayers int, roles []RoleCount) error {
	r.mx.Lock()
	defer r.mx.Unlock()

	if requesterID != r.host {
		return ErrNotHost
	}
	if r.started {
		return ErrGameStarted
	}
	if maxPlayers < 1 {
		return ErrInvalidSettings
	}
	for _, rc := range roles {
		if rc.Name == "" || rc.Count < 0 {
			return ErrInvalidSettings
		}
	}

	r.maxPlayers = maxPlayers
	r.roles = append([]RoleCount(nil), roles...)
	return nil
}

// StartGame flips the started flag and deals roles to the current members
// in one indivisible step. The deal func runs under the room lock; on deal
// failure the room stays startable.
func (r *Room) StartGame(
	requesterID string,
	deal func(playerIDs []string, pool []RoleCount) (map[string]string, error),
) (map[string]string, error) {
	r.mx.Lock()
	defer r.mx.Unlock()

	if requesterID != r.host {
		return nil, ErrNotHost
	}
	if r.started {
		return nil, ErrGameStarted
	}

	ids := make([]string, 0, len(r.players))
	for id := range r.players {
		ids = append(ids, id)
	}
	results, err := deal(ids, r.roles)
	if err != nil {
		return nil, err
	}
	r.started = true
	return results, nil
}

type Member struct {
	ID   string
	Conn Conn
}

// RoomView is a point-in-time copy of broadcastable room state.
type RoomView struct {
	Code       string
	Host       string
	MaxPlayers int
	Roles      []RoleCount
	Players    int
	Started    bool
	Members    []Member
}

func (r *Room) View() RoomView {
	r.mx.Lock()
	defer r.mx.Unlock()

	v := RoomView{
		Code:       r.code,
		Host:       r.host,
		MaxPlayers: r.maxPlayers,
		Roles:      append([]RoleCount(nil), r.roles...),
		Players:    len(r.players),
		Started:    r.started,
		Members:    make([]Member, 0, len(r.players)),
	}
	for _, p := range r.players {
		v.Members = append(v.Members, Member{ID: p.ID, Conn: p.Conn})
	}
	return v
}

package memory

import (
	"errors"
	"math/rand/v2"
	"strconv"
	"sync"

	"github.com/kim-jong-seong/smartto/backend/model"
)

const (
	codeMin  = 1000
	codeSpan = 9000 // codes are 4-digit numeric, [1000, 9999]

	maxCodeAttempts = 32
)

var (
	ErrRoomNotFound      = errors.New("room is not found")
	ErrCapacityExhausted = errors.New("room code space is exhausted")
)

// MemStore is the in-memory room registry. Its lock guards only the
// code-to-room map; room state has its own per-room lock.
type MemStore struct {
	mx    *sync.Mutex
	rooms map[string]*model.Room
}

func NewMemStore() *MemStore {
	return &MemStore{
		mx:    &sync.Mutex{},
		rooms: make(map[string]*model.Room),
	}
}

// Create registers a new room under a freshly generated code with the
// given player as host and sole member.
func (ms *MemStore) Create(hostID string, conn model.Conn) (*model.Room, error) {
	ms.mx.Lock()
	defer ms.mx.Unlock()

	code, err := ms.generateCode()
	if err != nil {
		return nil, err
	}
	room := model.NewRoom(code, hostID, conn)
	ms.rooms[code] = room
	return room, nil
}

func (ms *MemStore) Get(code string) (*model.Room, error) {
	ms.mx.Lock()
	defer ms.mx.Unlock()

	room, ok := ms.rooms[code]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return room, nil
}

// Remove is idempotent.
func (ms *MemStore) Remove(code string) {
	ms.mx.Lock()
	defer ms.mx.Unlock()

	delete(ms.rooms, code)
}

// generateCode resamples until the code is unused. Attempts are bounded;
// collisions are near-impossible at realistic room counts, so hitting the
// bound means the code space is effectively saturated. Caller must hold
// the lock.
func (ms *MemStore) generateCode() (string, error) {
	if len(ms.rooms) >= codeSpan {
		return "", ErrCapacityExhausted
	}
	for i := 0; i < maxCodeAttempts; i++ {
		code := strconv.Itoa(codeMin + rand.IntN(codeSpan))
		if _, taken := ms.rooms[code]; !taken {
			return code, nil
		}
	}
	return "", ErrCapacityExhausted
}

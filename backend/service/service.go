package service

import (
	"errors"

	"github.com/rs/zerolog"

	"github.com/kim-jong-seong/smartto/backend/model"
	"github.com/kim-jong-seong/smartto/backend/roles"
	"github.com/kim-jong-seong/smartto/backend/storage/memory"
)

var (
	ErrCreate = errors.New("unable to create room")
	ErrJoin   = errors.New("unable to join room")
	ErrStart  = errors.New("unable to start game")
	ErrUpdate = errors.New("unable to update settings")
)

type (
	// Registry is the room directory the service mutates. Injected so
	// tests run against their own instance.
	Registry interface {
		Create(hostID string, conn model.Conn) (*model.Room, error)
		Get(code string) (*model.Room, error)
		Remove(code string)
	}

	Service struct {
		store  Registry
		logger zerolog.Logger
	}

	Config struct {
		Registry Registry
		Logger   *zerolog.Logger
	}
)

func NewService(cfg Config) *Service {
	return &Service{
		store:  cfg.Registry,
		logger: cfg.Logger.With().Str("component", "rooms").Logger(),
	}
}

func (svc *Service) CreateRoom(playerID string, conn model.Conn) (*model.Room, error) {
	room, err := svc.store.Create(playerID, conn)
	if err != nil {
		return nil, errors.Join(ErrCreate, err)
	}
	svc.logger.Debug().
		Str("playerID", playerID).
		Str("roomCode", room.Code()).
		Msg("room created")
	return room, nil
}

func (svc *Service) JoinRoom(code, playerID string, conn model.Conn) (*model.Room, error) {
	room, err := svc.store.Get(code)
	if err != nil {
		return nil, errors.Join(ErrJoin, err)
	}
	if err = room.Join(playerID, conn); err != nil {
		if errors.Is(err, model.ErrRoomClosed) {
			// closed but not yet unregistered, same as absent
			err = memory.ErrRoomNotFound
		}
		return nil, errors.Join(ErrJoin, err)
	}
	svc.logger.Debug().
		Str("playerID", playerID).
		Str("roomCode", code).
		Msg("player joined room")
	return room, nil
}

// LeaveRoom handles both explicit leaves and connection loss. The last
// member out tears the room down.
func (svc *Service) LeaveRoom(room *model.Room, playerID string) {
	removed, empty := room.Leave(playerID)
	if !removed {
		return
	}
	svc.logger.Debug().
		Str("playerID", playerID).
		Str("roomCode", room.Code()).
		Msg("player left room")

	if empty {
		svc.store.Remove(room.Code())
		svc.logger.Debug().
			Str("roomCode", room.Code()).
			Msg("room emptied, removed")
		return
	}
	svc.Broadcast(room)
}

func (svc *Service) UpdateSettings(room *model.Room, playerID string, maxPlayers int, pool []model.RoleCount) error {
	if err := room.UpdateSettings(playerID, maxPlayers, pool); err != nil {
		return errors.Join(ErrUpdate, err)
	}
	svc.logger.Debug().
		Str("playerID", playerID).
		Str("roomCode", room.Code()).
		Int("maxPlayers", maxPlayers).
		Msg("room settings updated")

	svc.Broadcast(room)
	return nil
}

// StartGame deals roles atomically, reveals each member's role privately,
// then broadcasts the started state to everyone.
func (svc *Service) StartGame(room *model.Room, playerID string) error {
	results, err := room.StartGame(playerID, roles.Assign)
	if err != nil {
		return errors.Join(ErrStart, err)
	}
	svc.logger.Debug().
		Str("playerID", playerID).
		Str("roomCode", room.Code()).
		Int("players", len(results)).
		Msg("game started")

	view := room.View()
	for _, m := range view.Members {
		role, ok := results[m.ID]
		if !ok {
			// joined-after-deal cannot happen once started, but a
			// member may have left between deal and reveal
			continue
		}
		if !m.Conn.Open() {
			continue
		}
		m.Conn.Send(model.GameResult{
			Type: model.TypeGameResult,
			Role: role,
		})
	}
	svc.Broadcast(room)
	return nil
}

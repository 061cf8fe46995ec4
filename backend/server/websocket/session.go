package websocket

import (
	"errors"

	"github.com/rs/zerolog"

	"github.com/kim-jong-seong/smartto/backend/model"
	"github.com/kim-jong-seong/smartto/backend/roles"
	"github.com/kim-jong-seong/smartto/backend/storage/memory"
)

// session is the per-connection controller: it interprets inbound events
// and mutates at most one room at a time through the room service.
type session struct {
	id     string
	conn   model.Conn
	room   *model.Room
	svc    RoomService
	logger zerolog.Logger
}

func (s *session) handle(msg model.Inbound) {
	switch msg.Type {
	case model.TypeCreateRoom:
		s.createRoom()
	case model.TypeJoinRoom:
		s.joinRoom(msg.RoomCode)
	case model.TypeLeaveRoom:
		s.leaveRoom()
	case model.TypeUpdateSettings:
		s.updateSettings(msg.MaxPlayers, msg.Roles)
	case model.TypeStartGame:
		s.startGame()
	default:
		s.logger.Debug().Str("type", msg.Type).Msg("unknown message type")
		s.replyError("unknown message type")
	}
}

func (s *session) createRoom() {
	// creating while attached implies leaving the current room first
	s.leaveRoom()

	room, err := s.svc.CreateRoom(s.id, s.conn)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to create room")
		s.replyError(errorText(err))
		return
	}
	s.room = room
	s.conn.Send(model.RoomCreated{
		Type:     model.TypeRoomCreated,
		RoomCode: room.Code(),
		PlayerID: s.id,
		IsHost:   true,
	})
	s.svc.Broadcast(room)
}

func (s *session) joinRoom(code string) {
	s.leaveRoom()

	room, err := s.svc.JoinRoom(code, s.id, s.conn)
	if err != nil {
		s.logger.Debug().Err(err).Str("roomCode", code).Msg("join rejected")
		s.replyError(errorText(err))
		return
	}
	s.room = room
	s.conn.Send(model.RoomJoined{
		Type:     model.TypeRoomJoined,
		RoomCode: room.Code(),
		PlayerID: s.id,
		IsHost:   false,
	})
	s.svc.Broadcast(room)
}

func (s *session) leaveRoom() {
	if s.room == nil {
		return
	}
	s.svc.LeaveRoom(s.room, s.id)
	s.room = nil
}

func (s *session) updateSettings(maxPlayers int, pool []model.RoleCount) {
	if s.room == nil {
		s.replyError("not in a room")
		return
	}
	if err := s.svc.UpdateSettings(s.room, s.id, maxPlayers, pool); err != nil {
		s.logger.Debug().Err(err).Msg("settings update rejected")
		s.replyError(errorText(err))
	}
}

func (s *session) startGame() {
	if s.room == nil {
		s.replyError("not in a room")
		return
	}
	if err := s.svc.StartGame(s.room, s.id); err != nil {
		s.logger.Debug().Err(err).Msg("game start rejected")
		s.replyError(errorText(err))
	}
}

func (s *session) replyError(text string) {
	s.conn.Send(model.ErrorReply{
		Type:    model.TypeError,
		Message: text,
	})
}

func errorText(err error) string {
	switch {
	case errors.Is(err, memory.ErrRoomNotFound):
		return "room not found"
	case errors.Is(err, model.ErrRoomFull):
		return "room is full"
	case errors.Is(err, model.ErrGameStarted):
		return "game already started"
	case errors.Is(err, model.ErrNotHost):
		return "you are not the host"
	case errors.Is(err, model.ErrInvalidSettings):
		return "invalid settings"
	case errors.Is(err, roles.ErrInsufficientRoles):
		return "not enough roles for all players"
	case errors.Is(err, memory.ErrCapacityExhausted):
		return "no room codes available"
	default:
		return "internal error"
	}
}

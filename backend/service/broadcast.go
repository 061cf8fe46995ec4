package service

import "github.com/kim-jong-seong/smartto/backend/model"

// Broadcast pushes one personalized snapshot to every live member.
// Mutations without a direct reply (leave, settings, start) trigger it
// internally; for create and join the session calls it after its ack so
// the ack always precedes the snapshot. Delivery is best-effort: members
// whose connection is not open are skipped, their cleanup happens on the
// close/leave path.
func (svc *Service) Broadcast(room *model.Room) {
	view := room.View()
	for _, m := range view.Members {
		if !m.Conn.Open() {
			continue
		}
		sent := m.Conn.Send(model.GameState{
			Type:           model.TypeGameState,
			RoomCode:       view.Code,
			MaxPlayers:     view.MaxPlayers,
			Roles:          view.Roles,
			CurrentPlayers: view.Players,
			GameStarted:    view.Started,
			HostID:         view.Host,
			IsHost:         m.ID == view.Host,
		})
		if !sent {
			svc.logger.Debug().
				Str("roomCode", view.Code).
				Str("playerID", m.ID).
				Msg("broadcast did not reach member")
		}
	}
}

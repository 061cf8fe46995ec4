package websocket

import (
	"sync"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/rs/zerolog"

	"github.com/kim-jong-seong/smartto/backend/model"
	"github.com/kim-jong-seong/smartto/backend/service"
	"github.com/kim-jong-seong/smartto/backend/storage/memory"
)

type recConn struct {
	mx   sync.Mutex
	sent []any
}

func (c *recConn) Send(v any) bool {
	c.mx.Lock()
	defer c.mx.Unlock()
	c.sent = append(c.sent, v)
	return true
}

func (c *recConn) Open() bool { return true }

func (c *recConn) last() any {
	c.mx.Lock()
	defer c.mx.Unlock()
	if len(c.sent) == 0 {
		return nil
	}
	return c.sent[len(c.sent)-1]
}

func newTestSession(id string) (*session, *recConn) {
	logger := zerolog.Nop()
	registry := memory.NewMemStore()
	svc := service.NewService(service.Config{
		Registry: registry,
		Logger:   &logger,
	})
	c := &recConn{}
	return &session{
		id:     id,
		conn:   c,
		svc:    svc,
		logger: logger,
	}, c
}

func sharedSession(t *testing.T, base *session, id string) (*session, *recConn) {
	t.Helper()
	c := &recConn{}
	return &session{
		id:     id,
		conn:   c,
		svc:    base.svc,
		logger: zerolog.Nop(),
	}, c
}

func createdCode(t *testing.T, c *recConn) string {
	t.Helper()
	c.mx.Lock()
	defer c.mx.Unlock()
	for _, v := range c.sent {
		if rc, ok := v.(model.RoomCreated); ok {
			return rc.RoomCode
		}
	}
	t.Fatalf("no roomCreated reply: %s", spew.Sdump(c.sent))
	return ""
}

func TestSessionCreateAndJoinFlow(t *testing.T) {
	host, hostConn := newTestSession("host")
	host.handle(model.Inbound{Type: model.TypeCreateRoom})

	code := createdCode(t, hostConn)
	if host.room == nil || host.room.Code() != code {
		t.Fatal("host session not attached to created room")
	}

	joiner, joinerConn := sharedSession(t, host, "p2")
	joiner.handle(model.Inbound{Type: model.TypeJoinRoom, RoomCode: code})

	rj, ok := joinerConn.sent[0].(model.RoomJoined)
	if !ok {
		t.Fatalf("expected roomJoined first, got %s", spew.Sdump(joinerConn.sent))
	}
	if rj.RoomCode != code || rj.IsHost || rj.PlayerID != "p2" {
		t.Fatalf("unexpected roomJoined: %s", spew.Sdump(rj))
	}

	for _, c := range []*recConn{hostConn, joinerConn} {
		gs, ok := c.last().(model.GameState)
		if !ok || gs.CurrentPlayers != 2 {
			t.Fatalf("expected gameState with 2 players, got %s", spew.Sdump(c.last()))
		}
	}
}

func TestSessionJoinUnknownRoom(t *testing.T) {
	s, c := newTestSession("p1")
	s.handle(model.Inbound{Type: model.TypeJoinRoom, RoomCode: "0000"})

	er, ok := c.last().(model.ErrorReply)
	if !ok || er.Message != "room not found" {
		t.Fatalf("expected room-not-found error reply, got %s", spew.Sdump(c.last()))
	}
	if s.room != nil {
		t.Fatal("failed join left session attached")
	}
}

func TestSessionImplicitLeaveOnCreate(t *testing.T) {
	host, hostConn := newTestSession("host")
	host.handle(model.Inbound{Type: model.TypeCreateRoom})
	first := createdCode(t, hostConn)

	joiner, _ := sharedSession(t, host, "p2")
	joiner.handle(model.Inbound{Type: model.TypeJoinRoom, RoomCode: first})

	// creating a second room implicitly leaves the first; p2 inherits it
	firstRoom := host.room
	host.handle(model.Inbound{Type: model.TypeCreateRoom})
	if host.room == firstRoom {
		t.Fatal("session still attached to the old room")
	}
	if view := firstRoom.View(); view.Players != 1 || view.Host != "p2" {
		t.Fatalf("old membership not cleaned up: %s", spew.Sdump(view))
	}
}

func TestSessionHostOnlyGuards(t *testing.T) {
	host, hostConn := newTestSession("host")
	host.handle(model.Inbound{Type: model.TypeCreateRoom})
	code := createdCode(t, hostConn)

	joiner, joinerConn := sharedSession(t, host, "p2")
	joiner.handle(model.Inbound{Type: model.TypeJoinRoom, RoomCode: code})

	joiner.handle(model.Inbound{Type: model.TypeStartGame})
	er, ok := joinerConn.last().(model.ErrorReply)
	if !ok || er.Message != "you are not the host" {
		t.Fatalf("expected not-the-host reply, got %s", spew.Sdump(joinerConn.last()))
	}

	joiner.handle(model.Inbound{
		Type:       model.TypeUpdateSettings,
		MaxPlayers: 4,
		Roles:      []model.RoleCount{{Name: "A", Count: 4}},
	})
	er, ok = joinerConn.last().(model.ErrorReply)
	if !ok || er.Message != "you are not the host" {
		t.Fatalf("expected not-the-host reply, got %s", spew.Sdump(joinerConn.last()))
	}
}

func TestSessionStartGameFlow(t *testing.T) {
	host, hostConn := newTestSession("host")
	host.handle(model.Inbound{Type: model.TypeCreateRoom})
	code := createdCode(t, hostConn)

	joiner, joinerConn := sharedSession(t, host, "p2")
	joiner.handle(model.Inbound{Type: model.TypeJoinRoom, RoomCode: code})

	host.handle(model.Inbound{
		Type:       model.TypeUpdateSettings,
		MaxPlayers: 2,
		Roles:      []model.RoleCount{{Name: "A", Count: 1}, {Name: "B", Count: 1}},
	})
	host.handle(model.Inbound{Type: model.TypeStartGame})

	var hostRole, joinerRole string
	for _, v := range hostConn.sent {
		if gr, ok := v.(model.GameResult); ok {
			hostRole = gr.Role
		}
	}
	for _, v := range joinerConn.sent {
		if gr, ok := v.(model.GameResult); ok {
			joinerRole = gr.Role
		}
	}
	if hostRole == joinerRole || hostRole == "" || joinerRole == "" {
		t.Fatalf("expected distinct roles, got %q and %q", hostRole, joinerRole)
	}

	gs, ok := hostConn.last().(model.GameState)
	if !ok || !gs.GameStarted {
		t.Fatalf("expected final started broadcast, got %s", spew.Sdump(hostConn.last()))
	}
}

func TestSessionOperationsWhileUnattached(t *testing.T) {
	s, c := newTestSession("p1")

	s.handle(model.Inbound{Type: model.TypeStartGame})
	if er, ok := c.last().(model.ErrorReply); !ok || er.Message != "not in a room" {
		t.Fatalf("expected not-in-a-room reply, got %s", spew.Sdump(c.last()))
	}

	s.handle(model.Inbound{Type: model.TypeUpdateSettings, MaxPlayers: 4})
	if er, ok := c.last().(model.ErrorReply); !ok || er.Message != "not in a room" {
		t.Fatalf("expected not-in-a-room reply, got %s", spew.Sdump(c.last()))
	}

	// leave without a room is a silent no-op
	before := len(c.sent)
	s.handle(model.Inbound{Type: model.TypeLeaveRoom})
	if len(c.sent) != before {
		t.Fatal("unattached leave produced output")
	}
}

func TestSessionUnknownType(t *testing.T) {
	s, c := newTestSession("p1")
	s.handle(model.Inbound{Type: "teleport"})

	if er, ok := c.last().(model.ErrorReply); !ok || er.Message != "unknown message type" {
		t.Fatalf("expected unknown-type reply, got %s", spew.Sdump(c.last()))
	}
}

func TestParseInbound(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		wantErr bool
	}{
		{"valid", `{"type":"joinRoom","roomCode":"4821"}`, false},
		{"missing type", `{"roomCode":"4821"}`, true},
		{"not json", `join please`, true},
		{"wrong shape", `[1,2,3]`, true},
		{"empty", ``, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := parseInbound([]byte(tt.payload))
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %s", spew.Sdump(msg))
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if msg.RoomCode != "4821" {
				t.Fatalf("lost payload field: %s", spew.Sdump(msg))
			}
		})
	}
}

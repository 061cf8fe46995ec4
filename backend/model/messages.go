package model

// Client-to-server message types.
const (
	TypeCreateRoom     = "createRoom"
	TypeJoinRoom       = "joinRoom"
	TypeLeaveRoom      = "leaveRoom"
	TypeUpdateSettings = "updateSettings"
	TypeStartGame      = "startGame"
)

// Server-to-client message types.
const (
	TypeRoomCreated = "roomCreated"
	TypeRoomJoined  = "roomJoined"
	TypeError       = "error"
	TypeGameResult  = "gameResult"
	TypeGameState   = "gameState"
)

// Inbound is the envelope for every client message. Only the fields the
// discriminated type defines are read; a playerId sent by the client is
// ignored, identity comes from the session.
type Inbound struct {
	Type       string      `json:"type"`
	RoomCode   string      `json:"roomCode"`
	PlayerID   string      `json:"playerId"`
	MaxPlayers int         `json:"maxPlayers"`
	Roles      []RoleCount `json:"roles"`
}

type RoomCreated struct {
	Type     string `json:"type"`
	RoomCode string `json:"roomCode"`
	PlayerID string `json:"playerId"`
	IsHost   bool   `json:"isHost"`
}

type RoomJoined struct {
	Type     string `json:"type"`
	RoomCode string `json:"roomCode"`
	PlayerID string `json:"playerId"`
	IsHost   bool   `json:"isHost"`
}

type ErrorReply struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// GameResult is the private role reveal, one per player at game start.
type GameResult struct {
	Type string `json:"type"`
	Role string `json:"role"`
}

// GameState is the broadcast snapshot, personalized per recipient via
// IsHost.
type GameState struct {
	Type           string      `json:"type"`
	RoomCode       string      `json:"roomCode"`
	MaxPlayers     int         `json:"maxPlayers"`
	Roles          []RoleCount `json:"roles"`
	CurrentPlayers int         `json:"currentPlayers"`
	GameStarted    bool        `json:"gameStarted"`
	HostID         string      `json:"hostId"`
	IsHost         bool        `json:"isHost"`
}

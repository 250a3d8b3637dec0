package app

// MinPlayersToStartGame defines the number of occupied seats that starts a session.
const MinPlayersToStartGame = 2

const (
	// RoomCodeAlphabet omits characters that are easy to misread (0/O, 1/I).
	RoomCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	RoomCodeLength   = 6
	maxRoomCodeLen   = 16
)

package api

import (
	"fmt"
	"math/rand/v2"
)

const (
	roomCodeAlphabet    = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	roomCodeLength      = 6
	maxRoomCodeAttempts = 10
)

func randomRoomCode() string {
	code := make([]byte, roomCodeLength)
	for i := range code {
		code[i] = roomCodeAlphabet[rand.IntN(len(roomCodeAlphabet))]
	}
	return string(code)
}

// newRoomCode allocates a room code not yet present in the registry. The
// collision probability is negligible at expected scale, but the retry loop
// is capped rather than unbounded.
func (s *SpatialMeetApp) newRoomCode() (string, error) {
	for range maxRoomCodeAttempts {
		code := randomRoomCode()
		if !s.db.RoomCodeExists(code) {
			return code, nil
		}
	}

	return "", fmt.Errorf("could not allocate a unique room code after %d attempts", maxRoomCodeAttempts)
}

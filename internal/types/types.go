package types

import (
	"time"
)

type User struct {
	Id           int       `json:"id"`
	Username     string    `json:"username"`
	EmailAddress string    `json:"email_address,omitempty"`
	Guest        bool      `json:"guest,omitempty"`
	Password     string    `json:"-"`
	CreatedAt    time.Time `json:"created_at,omitempty"`
	UpdatedAt    time.Time `json:"updated_at,omitempty"`
}

type Room struct {
	Id              int       `json:"id"`
	RoomCode        string    `json:"room_code"`
	Name            string    `json:"name"`
	Description     string    `json:"description"`
	IsPrivate       bool      `json:"is_private"`
	MaxParticipants int       `json:"max_participants"`
	OwnerId         int       `json:"owner_id"`
	CreatedAt       time.Time `json:"created_at,omitempty"`
	UpdatedAt       time.Time `json:"updated_at,omitempty"`
}

// Position is a point in a room's shared 3D space.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Participant is the wire form of a user's presence in a room: spatial
// position, audio settings and connection state.
type Participant struct {
	Username          string    `json:"username"`
	Position          Position  `json:"position"`
	MicrophoneEnabled bool      `json:"microphoneEnabled"`
	SpeakerEnabled    bool      `json:"speakerEnabled"`
	Volume            float64   `json:"volume"`
	Connected         bool      `json:"connected"`
	JoinedAt          time.Time `json:"joined_at,omitempty"`
}

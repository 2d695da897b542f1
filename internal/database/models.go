package database

import "time"

type Room struct {
	Id              int
	RoomCode        string
	Name            string
	Description     string
	IsPrivate       bool
	MaxParticipants int
	OwnerId         int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type User struct {
	Id           int
	Username     string
	EmailAddress string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Participant is a (account, room) presence record. A user has at most one
// record per room; rejoining reactivates the existing record.
type Participant struct {
	Id                 int
	AccountId          int
	RoomId             int
	Username           string
	PositionX          float64
	PositionY          float64
	PositionZ          float64
	MicrophoneEnabled  bool
	SpeakerEnabled     bool
	Volume             float64
	Connected          bool
	JoinedAt           time.Time
	LastPositionUpdate time.Time
}

type CreateAccountParams struct {
	Username     string
	EmailAddress string
	PasswordHash string
}

type CreateRoomParams struct {
	Name            string
	Description     string
	IsPrivate       bool
	MaxParticipants int
	OwnerId         int
	RoomCode        string
}

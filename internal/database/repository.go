package database

type SpatialMeetRepository interface {
	CreateAccount(params CreateAccountParams) (User, error)
	GetAccountById(accountId int) (User, error)
	GetAccountByEmail(email string) (User, error)
	CreateRoom(params CreateRoomParams) (Room, error)
	GetRoomByCode(roomCode string) (Room, error)
	RoomCodeExists(roomCode string) bool
	ListPublicRooms() ([]Room, error)
	ListRoomsByOwner(ownerId int) ([]Room, error)
	GetParticipant(accountId, roomId int) (Participant, error)
	CreateParticipant(accountId, roomId int) (Participant, error)
	SetParticipantConnected(accountId, roomId int, connected bool) error
	UpdateParticipantPosition(accountId, roomId int, x, y, z float64) error
	UpdateParticipantAudio(accountId, roomId int, micEnabled, speakerEnabled bool, volume float64) error
	ListParticipants(roomId int) ([]Participant, error)
	ListConnectedParticipants(roomId int) ([]Participant, error)
	CountConnectedParticipants(roomId int) (int, error)
}

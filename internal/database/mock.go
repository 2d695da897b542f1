package database

import (
	"github.com/stretchr/testify/mock"
)

type MockSpatialMeetRepository struct {
	mock.Mock
}

func (m *MockSpatialMeetRepository) CreateAccount(accountParams CreateAccountParams) (User, error) {
	args := m.Called(accountParams)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockSpatialMeetRepository) GetAccountById(accountId int) (User, error) {
	args := m.Called(accountId)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockSpatialMeetRepository) GetAccountByEmail(email string) (User, error) {
	args := m.Called(email)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockSpatialMeetRepository) CreateRoom(params CreateRoomParams) (Room, error) {
	args := m.Called(params)
	return args.Get(0).(Room), args.Error(1)
}
func (m *MockSpatialMeetRepository) GetRoomByCode(roomCode string) (Room, error) {
	args := m.Called(roomCode)
	return args.Get(0).(Room), args.Error(1)
}
func (m *MockSpatialMeetRepository) RoomCodeExists(roomCode string) bool {
	args := m.Called(roomCode)
	return args.Bool(0)
}
func (m *MockSpatialMeetRepository) ListPublicRooms() ([]Room, error) {
	args := m.Called()
	return args.Get(0).([]Room), args.Error(1)
}
func (m *MockSpatialMeetRepository) ListRoomsByOwner(ownerId int) ([]Room, error) {
	args := m.Called(ownerId)
	return args.Get(0).([]Room), args.Error(1)
}
func (m *MockSpatialMeetRepository) GetParticipant(accountId, roomId int) (Participant, error) {
	args := m.Called(accountId, roomId)
	return args.Get(0).(Participant), args.Error(1)
}
func (m *MockSpatialMeetRepository) CreateParticipant(accountId, roomId int) (Participant, error) {
	args := m.Called(accountId, roomId)
	return args.Get(0).(Participant), args.Error(1)
}
func (m *MockSpatialMeetRepository) SetParticipantConnected(accountId, roomId int, connected bool) error {
	args := m.Called(accountId, roomId, connected)
	return args.Error(0)
}
func (m *MockSpatialMeetRepository) UpdateParticipantPosition(accountId, roomId int, x, y, z float64) error {
	args := m.Called(accountId, roomId, x, y, z)
	return args.Error(0)
}
func (m *MockSpatialMeetRepository) UpdateParticipantAudio(accountId, roomId int, micEnabled, speakerEnabled bool, volume float64) error {
	args := m.Called(accountId, roomId, micEnabled, speakerEnabled, volume)
	return args.Error(0)
}
func (m *MockSpatialMeetRepository) ListParticipants(roomId int) ([]Participant, error) {
	args := m.Called(roomId)
	return args.Get(0).([]Participant), args.Error(1)
}
func (m *MockSpatialMeetRepository) ListConnectedParticipants(roomId int) ([]Participant, error) {
	args := m.Called(roomId)
	return args.Get(0).([]Participant), args.Error(1)
}
func (m *MockSpatialMeetRepository) CountConnectedParticipants(roomId int) (int, error) {
	args := m.Called(roomId)
	return args.Int(0), args.Error(1)
}

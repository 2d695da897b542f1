package api

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/spatialmeet/server/internal/config"
	"github.com/spatialmeet/server/internal/database"
	"github.com/spatialmeet/server/internal/testutil"
	"github.com/spatialmeet/server/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func newTestApp(t *testing.T, db database.SpatialMeetRepository) *SpatialMeetApp {
	t.Helper()

	return NewSpatialMeetApp(http.NewServeMux(), testutil.TestLogger(t), nil, db, &config.Config{
		SigningKey: []byte("secret"),
	})
}

func Test_validateCreateRoomRequest(t *testing.T) {
	tcases := []struct {
		name        string
		req         CreateRoomRequest
		expectedErr string
	}{
		{
			name: "valid request",
			req:  CreateRoomRequest{Name: "standup", MaxParticipants: 10},
		},
		{
			name:        "missing name",
			req:         CreateRoomRequest{MaxParticipants: 10},
			expectedErr: "name is required",
		},
		{
			name:        "name too long",
			req:         CreateRoomRequest{Name: strings.Repeat("a", maxRoomNameLen+1)},
			expectedErr: "name must be at most 100 characters",
		},
		{
			name:        "description too long",
			req:         CreateRoomRequest{Name: "standup", Description: strings.Repeat("a", maxRoomDescriptionLen+1)},
			expectedErr: "description must be at most 500 characters",
		},
		{
			name:        "too few participants",
			req:         CreateRoomRequest{Name: "standup", MaxParticipants: 1},
			expectedErr: "max_participants must be between 2 and 50",
		},
		{
			name:        "too many participants",
			req:         CreateRoomRequest{Name: "standup", MaxParticipants: 51},
			expectedErr: "max_participants must be between 2 and 50",
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			err := validateCreateRoomRequest(&tc.req)
			if tc.expectedErr == "" {
				assert.Nil(t, err, "expected request to be valid")
			} else {
				assert.NotNil(t, err, "expected validation error")
				assert.Equal(t, http.StatusBadRequest, err.StatusCode, "expected status code 400")
				assert.Equal(t, tc.expectedErr, err.Message, "expected validation message to match")
			}
		})
	}

	t.Run("defaults max participants", func(t *testing.T) {
		req := CreateRoomRequest{Name: "standup"}
		assert.Nil(t, validateCreateRoomRequest(&req), "expected request to be valid")
		assert.Equal(t, defaultParticipants, req.MaxParticipants, "expected max participants to default to %d", defaultParticipants)
	})
}

func TestCreateRoomHandler(t *testing.T) {
	owner := types.User{Id: 1, Username: "alice"}

	t.Run("successfully creates a room", func(t *testing.T) {
		db := &database.MockSpatialMeetRepository{}
		defer db.AssertExpectations(t)

		now := time.Now().UTC()
		params := database.CreateRoomParams{
			Name:            "standup",
			Description:     "daily sync",
			MaxParticipants: 10,
			OwnerId:         owner.Id,
			RoomCode:        "ABC123",
		}
		db.On("CreateRoom", params).Return(database.Room{
			Id:              1,
			RoomCode:        "ABC123",
			Name:            "standup",
			Description:     "daily sync",
			MaxParticipants: 10,
			OwnerId:         owner.Id,
			CreatedAt:       now,
			UpdatedAt:       now,
		}, nil).Once()

		app := newTestApp(t, db)
		app.generateRoomCode = func() (string, error) {
			return "ABC123", nil
		}

		body, err := json.Marshal(CreateRoomRequest{
			Name:            "standup",
			Description:     "daily sync",
			MaxParticipants: 10,
		})
		assert.NoError(t, err, "failed to marshal request body")

		req := httptest.NewRequest(http.MethodPost, "/api/rooms", bytes.NewBuffer(body))
		req = req.WithContext(WithIdentity(req.Context(), owner))
		rr := httptest.NewRecorder()
		app.createRoom(rr, req)

		assert.Equal(t, http.StatusCreated, rr.Code, "expected status code 201")

		var room types.Room
		assert.NoError(t, json.NewDecoder(rr.Body).Decode(&room), "failed to decode response")
		assert.Equal(t, "ABC123", room.RoomCode, "expected generated room code in response")
		assert.Equal(t, "standup", room.Name, "expected room name in response")
		assert.Equal(t, owner.Id, room.OwnerId, "expected owner id in response")
	})

	t.Run("fails with invalid json body", func(t *testing.T) {
		db := &database.MockSpatialMeetRepository{}
		defer db.AssertExpectations(t)

		app := newTestApp(t, db)
		req := httptest.NewRequest(http.MethodPost, "/api/rooms", strings.NewReader("invalid json"))
		req = req.WithContext(WithIdentity(req.Context(), owner))
		rr := httptest.NewRecorder()
		app.createRoom(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code, "expected status code 400")
	})

	t.Run("fails validation with field detail", func(t *testing.T) {
		db := &database.MockSpatialMeetRepository{}
		defer db.AssertExpectations(t)

		app := newTestApp(t, db)
		body, err := json.Marshal(CreateRoomRequest{Name: "", MaxParticipants: 10})
		assert.NoError(t, err, "failed to marshal request body")

		req := httptest.NewRequest(http.MethodPost, "/api/rooms", bytes.NewBuffer(body))
		req = req.WithContext(WithIdentity(req.Context(), owner))
		rr := httptest.NewRecorder()
		app.createRoom(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code, "expected status code 400")

		var apiErr ApiError
		assert.NoError(t, json.NewDecoder(rr.Body).Decode(&apiErr), "failed to decode error response")
		assert.Equal(t, "name is required", apiErr.Message, "expected field-level validation message")
	})

	t.Run("fails when room code allocation fails", func(t *testing.T) {
		db := &database.MockSpatialMeetRepository{}
		defer db.AssertExpectations(t)

		app := newTestApp(t, db)
		app.generateRoomCode = func() (string, error) {
			return "", errors.New("allocation failed")
		}

		body, err := json.Marshal(CreateRoomRequest{Name: "standup"})
		assert.NoError(t, err, "failed to marshal request body")

		req := httptest.NewRequest(http.MethodPost, "/api/rooms", bytes.NewBuffer(body))
		req = req.WithContext(WithIdentity(req.Context(), owner))
		rr := httptest.NewRecorder()
		app.createRoom(rr, req)

		assert.Equal(t, http.StatusInternalServerError, rr.Code, "expected status code 500")
	})

	t.Run("fails with db error", func(t *testing.T) {
		db := &database.MockSpatialMeetRepository{}
		defer db.AssertExpectations(t)

		db.On("CreateRoom", mock.AnythingOfType("database.CreateRoomParams")).Return(database.Room{}, errors.New("db error")).Once()

		app := newTestApp(t, db)
		app.generateRoomCode = func() (string, error) {
			return "ABC123", nil
		}

		body, err := json.Marshal(CreateRoomRequest{Name: "standup"})
		assert.NoError(t, err, "failed to marshal request body")

		req := httptest.NewRequest(http.MethodPost, "/api/rooms", bytes.NewBuffer(body))
		req = req.WithContext(WithIdentity(req.Context(), owner))
		rr := httptest.NewRecorder()
		app.createRoom(rr, req)

		assert.Equal(t, http.StatusInternalServerError, rr.Code, "expected status code 500")
	})
}

func TestGetRoomHandler(t *testing.T) {
	t.Run("returns the room", func(t *testing.T) {
		db := &database.MockSpatialMeetRepository{}
		defer db.AssertExpectations(t)

		db.On("GetRoomByCode", "ABC123").Return(database.Room{
			Id:       1,
			RoomCode: "ABC123",
			Name:     "standup",
		}, nil).Once()

		app := newTestApp(t, db)
		req := httptest.NewRequest(http.MethodGet, "/api/rooms/ABC123", nil)
		req.SetPathValue("roomCode", "ABC123")
		rr := httptest.NewRecorder()
		app.getRoom(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code, "expected status code 200")

		var room types.Room
		assert.NoError(t, json.NewDecoder(rr.Body).Decode(&room), "failed to decode response")
		assert.Equal(t, "ABC123", room.RoomCode, "expected room code in response")
		assert.Equal(t, "standup", room.Name, "expected room name in response")
	})

	t.Run("unknown code returns 404", func(t *testing.T) {
		db := &database.MockSpatialMeetRepository{}
		defer db.AssertExpectations(t)

		db.On("GetRoomByCode", "NOROOM").Return(database.Room{}, sql.ErrNoRows).Once()

		app := newTestApp(t, db)
		req := httptest.NewRequest(http.MethodGet, "/api/rooms/NOROOM", nil)
		req.SetPathValue("roomCode", "NOROOM")
		rr := httptest.NewRecorder()
		app.getRoom(rr, req)

		assert.Equal(t, http.StatusNotFound, rr.Code, "expected status code 404")
	})
}

func TestGetRoomParticipantsHandler(t *testing.T) {
	db := &database.MockSpatialMeetRepository{}
	defer db.AssertExpectations(t)

	joinedAt := time.Now().UTC().Round(time.Millisecond)
	db.On("GetRoomByCode", "ABC123").Return(database.Room{Id: 1, RoomCode: "ABC123"}, nil).Once()
	db.On("ListConnectedParticipants", 1).Return([]database.Participant{
		{
			AccountId:         1,
			RoomId:            1,
			Username:          "alice",
			PositionX:         1.5,
			PositionY:         0,
			PositionZ:         -2.0,
			MicrophoneEnabled: false,
			SpeakerEnabled:    true,
			Volume:            0.5,
			Connected:         true,
			JoinedAt:          joinedAt,
		},
	}, nil).Once()

	app := newTestApp(t, db)
	req := httptest.NewRequest(http.MethodGet, "/api/rooms/ABC123/participants", nil)
	req.SetPathValue("roomCode", "ABC123")
	rr := httptest.NewRecorder()
	app.getRoomParticipants(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code, "expected status code 200")

	var participants []types.Participant
	assert.NoError(t, json.NewDecoder(rr.Body).Decode(&participants), "failed to decode response")
	assert.Len(t, participants, 1, "expected one connected participant")
	assert.Equal(t, "alice", participants[0].Username, "expected username in response")
	assert.Equal(t, 1.5, participants[0].Position.X, "expected x coordinate in response")
	assert.False(t, participants[0].MicrophoneEnabled, "expected microphone state in response")
	assert.Equal(t, 0.5, participants[0].Volume, "expected volume in response")
	assert.True(t, participants[0].Connected, "expected connected flag in response")
}

func TestListPublicRoomsHandler(t *testing.T) {
	t.Run("lists public rooms", func(t *testing.T) {
		db := &database.MockSpatialMeetRepository{}
		defer db.AssertExpectations(t)

		db.On("ListPublicRooms").Return([]database.Room{
			{Id: 1, RoomCode: "ABC123", Name: "standup"},
			{Id: 2, RoomCode: "XYZ789", Name: "retro"},
		}, nil).Once()

		app := newTestApp(t, db)
		req := httptest.NewRequest(http.MethodGet, "/api/rooms", nil)
		rr := httptest.NewRecorder()
		app.listPublicRooms(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code, "expected status code 200")

		var rooms []types.Room
		assert.NoError(t, json.NewDecoder(rr.Body).Decode(&rooms), "failed to decode response")
		assert.Len(t, rooms, 2, "expected two rooms in response")
	})

	t.Run("fails with db error", func(t *testing.T) {
		db := &database.MockSpatialMeetRepository{}
		defer db.AssertExpectations(t)

		db.On("ListPublicRooms").Return([]database.Room{}, errors.New("db error")).Once()

		app := newTestApp(t, db)
		req := httptest.NewRequest(http.MethodGet, "/api/rooms", nil)
		rr := httptest.NewRecorder()
		app.listPublicRooms(rr, req)

		assert.Equal(t, http.StatusInternalServerError, rr.Code, "expected status code 500")
	})
}

func TestListMyRoomsHandler(t *testing.T) {
	db := &database.MockSpatialMeetRepository{}
	defer db.AssertExpectations(t)

	db.On("ListRoomsByOwner", 1).Return([]database.Room{
		{Id: 1, RoomCode: "ABC123", Name: "standup", OwnerId: 1},
	}, nil).Once()

	app := newTestApp(t, db)
	req := httptest.NewRequest(http.MethodGet, "/api/rooms/my", nil)
	req = req.WithContext(WithIdentity(req.Context(), types.User{Id: 1, Username: "alice"}))
	rr := httptest.NewRecorder()
	app.listMyRooms(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code, "expected status code 200")

	var rooms []types.Room
	assert.NoError(t, json.NewDecoder(rr.Body).Decode(&rooms), "failed to decode response")
	assert.Len(t, rooms, 1, "expected one room in response")
	assert.Equal(t, 1, rooms[0].OwnerId, "expected owner id in response")
}

package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"slices"

	"github.com/gorilla/websocket"
	"github.com/spatialmeet/server/internal/database"
	"github.com/spatialmeet/server/internal/server"
	"github.com/spatialmeet/server/internal/types"
)

const (
	maxRoomNameLen        = 100
	maxRoomDescriptionLen = 500
	minRoomParticipants   = 2
	maxRoomParticipants   = 50
	defaultParticipants   = 20
)

type CreateRoomRequest struct {
	Name            string `json:"name"`
	Description     string `json:"description"`
	IsPrivate       bool   `json:"is_private"`
	MaxParticipants int    `json:"max_participants"`
}

func (s *SpatialMeetApp) writeJson(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if v == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Printf("json encode: %v", err)
	}
}

func validateCreateRoomRequest(req *CreateRoomRequest) *ApiError {
	if req.Name == "" {
		return NewValidationError("name is required")
	}
	if len(req.Name) > maxRoomNameLen {
		return NewValidationError("name must be at most 100 characters")
	}
	if len(req.Description) > maxRoomDescriptionLen {
		return NewValidationError("description must be at most 500 characters")
	}
	if req.MaxParticipants == 0 {
		req.MaxParticipants = defaultParticipants
	}
	if req.MaxParticipants < minRoomParticipants || req.MaxParticipants > maxRoomParticipants {
		return NewValidationError("max_participants must be between 2 and 50")
	}
	return nil
}

func (s *SpatialMeetApp) createRoom(w http.ResponseWriter, r *http.Request) {
	var createRoomReq CreateRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&createRoomReq); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	identity, ok := Identity(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if errResp := validateCreateRoomRequest(&createRoomReq); errResp != nil {
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	code, err := s.generateRoomCode()
	if err != nil {
		s.log.Print("generateRoomCode:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	params := database.CreateRoomParams{
		Name:            createRoomReq.Name,
		Description:     createRoomReq.Description,
		IsPrivate:       createRoomReq.IsPrivate,
		MaxParticipants: createRoomReq.MaxParticipants,
		OwnerId:         identity.Id,
		RoomCode:        code,
	}

	newRoom, err := s.db.CreateRoom(params)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusCreated, roomResponse(newRoom))
}

func (s *SpatialMeetApp) listPublicRooms(w http.ResponseWriter, r *http.Request) {
	dbRooms, err := s.db.ListPublicRooms()
	if err != nil {
		s.log.Println("list public rooms:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, roomsResponse(dbRooms))
}

func (s *SpatialMeetApp) listMyRooms(w http.ResponseWriter, r *http.Request) {
	identity, ok := Identity(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	dbRooms, err := s.db.ListRoomsByOwner(identity.Id)
	if err != nil {
		s.log.Println("list rooms by owner:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, roomsResponse(dbRooms))
}

func (s *SpatialMeetApp) getRoom(w http.ResponseWriter, r *http.Request) {
	room, errResp := s.roomByCode(r.PathValue("roomCode"))
	if errResp != nil {
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, roomResponse(room))
}

func (s *SpatialMeetApp) getRoomParticipants(w http.ResponseWriter, r *http.Request) {
	room, errResp := s.roomByCode(r.PathValue("roomCode"))
	if errResp != nil {
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	dbParticipants, err := s.db.ListConnectedParticipants(room.Id)
	if err != nil {
		s.log.Println("list connected participants:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	participants := make([]types.Participant, len(dbParticipants))
	for i, p := range dbParticipants {
		participants[i] = types.Participant{
			Username:          p.Username,
			Position:          types.Position{X: p.PositionX, Y: p.PositionY, Z: p.PositionZ},
			MicrophoneEnabled: p.MicrophoneEnabled,
			SpeakerEnabled:    p.SpeakerEnabled,
			Volume:            p.Volume,
			Connected:         p.Connected,
			JoinedAt:          p.JoinedAt,
		}
	}

	s.writeJson(w, http.StatusOK, participants)
}

func (s *SpatialMeetApp) roomByCode(code string) (database.Room, *ApiError) {
	if code == "" {
		return database.Room{}, NewBadRequestError()
	}

	room, err := s.db.GetRoomByCode(code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return database.Room{}, NewNotFoundError()
		}
		return database.Room{}, NewInternalServerError(err)
	}

	return room, nil
}

func roomResponse(room database.Room) types.Room {
	return types.Room{
		Id:              room.Id,
		RoomCode:        room.RoomCode,
		Name:            room.Name,
		Description:     room.Description,
		IsPrivate:       room.IsPrivate,
		MaxParticipants: room.MaxParticipants,
		OwnerId:         room.OwnerId,
		CreatedAt:       room.CreatedAt,
		UpdatedAt:       room.UpdatedAt,
	}
}

func roomsResponse(dbRooms []database.Room) []types.Room {
	rooms := make([]types.Room, len(dbRooms))
	for i, room := range dbRooms {
		rooms[i] = roomResponse(room)
	}
	return rooms
}

func (s *SpatialMeetApp) serveWs(w http.ResponseWriter, r *http.Request) {
	identity, ok := Identity(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	user := identity
	if !identity.Guest {
		dbUser, err := s.db.GetAccountById(identity.Id)
		if err != nil {
			var errResp *ApiError
			if errors.Is(err, sql.ErrNoRows) {
				errResp = NewNotFoundError()
			} else {
				errResp = NewInternalServerError(err)
			}
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}

		user = types.User{
			Id:           dbUser.Id,
			Username:     dbUser.Username,
			EmailAddress: dbUser.EmailAddress,
			CreatedAt:    dbUser.CreatedAt,
			UpdatedAt:    dbUser.UpdatedAt,
		}
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}

			return slices.Contains(s.allowedOrigins, origin)
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Println("error upgrading connection:", err)
		return
	}

	client := server.NewClient(user, conn, s.ss, s.log)

	s.ss.RegisterClient(client)
	go client.Write()
	go client.Read()
}

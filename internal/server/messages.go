package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/spatialmeet/server/internal/types"
)

type BaseMessage struct {
	Id        int       `json:"id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type ClientMessage struct {
	BaseMessage
	Join     *Join           `json:"join,omitempty"`
	Leave    *Leave          `json:"leave,omitempty"`
	Position *PositionUpdate `json:"position,omitempty"`
	Audio    *AudioUpdate    `json:"audio_settings,omitempty"`
	Signal   *Signal         `json:"signal,omitempty"`
	client   *Client
	user     types.User
}

type Join struct {
	RoomCode string `json:"room_code"`
}

type Leave struct {
	RoomCode string `json:"room_code"`
}

// PositionUpdate carries new spatial coordinates. Absent fields leave the
// corresponding coordinate unchanged.
type PositionUpdate struct {
	RoomCode string   `json:"room_code"`
	X        *float64 `json:"x,omitempty"`
	Y        *float64 `json:"y,omitempty"`
	Z        *float64 `json:"z,omitempty"`
}

// AudioUpdate is a partial update: only present fields are applied.
type AudioUpdate struct {
	RoomCode          string   `json:"room_code"`
	MicrophoneEnabled *bool    `json:"microphoneEnabled,omitempty"`
	SpeakerEnabled    *bool    `json:"speakerEnabled,omitempty"`
	Volume            *float64 `json:"volume,omitempty"`
}

// Signal is a WebRTC negotiation message addressed to a single peer. Exactly
// one of Offer, Answer or Candidate is expected; the payload is opaque and
// forwarded unmodified.
type Signal struct {
	RoomCode  string          `json:"room_code"`
	Target    string          `json:"target"`
	Offer     json.RawMessage `json:"offer,omitempty"`
	Answer    json.RawMessage `json:"answer,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
}

// Kind returns the topic segment for the signal's message kind, or "" when
// no payload field is set.
func (s *Signal) Kind() string {
	switch {
	case s.Offer != nil:
		return "offer"
	case s.Answer != nil:
		return "answer"
	case s.Candidate != nil:
		return "ice-candidate"
	}
	return ""
}

type ServerMessage struct {
	BaseMessage
	Topic    string    `json:"topic,omitempty"`
	Data     any       `json:"data,omitempty"`
	Response *Response `json:"response,omitempty"`
}

type Response struct {
	ResponseCode int    `json:"response_code"`
	Error        string `json:"error,omitempty"`
	Data         any    `json:"data,omitempty"`
}

// UserEvent announces a membership change on a room topic.
type UserEvent struct {
	Username string `json:"username"`
}

// PositionEvent is the broadcast form of a position update.
type PositionEvent struct {
	Username string         `json:"username"`
	Position types.Position `json:"position"`
}

// AudioEvent carries the full post-merge audio settings, not the delta.
type AudioEvent struct {
	Username          string  `json:"username"`
	MicrophoneEnabled bool    `json:"microphoneEnabled"`
	SpeakerEnabled    bool    `json:"speakerEnabled"`
	Volume            float64 `json:"volume"`
}

// SignalEvent is the envelope delivered to a signaling target's inbox.
type SignalEvent struct {
	Offer     json.RawMessage `json:"offer,omitempty"`
	Answer    json.RawMessage `json:"answer,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
	Sender    string          `json:"sender"`
}

// RoomInfo is the response payload for a successful join.
type RoomInfo struct {
	Room         types.Room          `json:"room"`
	Participants []types.Participant `json:"participants"`
}

func roomTopic(roomCode, kind string) string {
	return "room/" + roomCode + "/" + kind
}

func NoErrOK(id int, data any) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusOK,
			Data:         data,
		},
	}
}

func ErrRoomNotFound(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusNotFound,
			Error:        "room not found",
		},
	}
}

func ErrRoomFull(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusConflict,
			Error:        "room is full",
		},
	}
}

func ErrUnauthenticated(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusUnauthorized,
			Error:        "unauthenticated",
		},
	}
}

func ErrInternalError(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusInternalServerError,
			Error:        "internal server error",
		},
	}
}

func ErrServiceUnavailable(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusServiceUnavailable,
			Error:        "service unavailable",
		},
	}
}

func ErrInvalidMessage(id int) *ServerMessage {
	msg := &ServerMessage{
		BaseMessage: BaseMessage{
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusBadRequest,
			Error:        "invalid message format",
		},
	}

	if id > 0 {
		msg.Id = id
	}
	return msg
}

func Now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}

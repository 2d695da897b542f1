package server

import (
	"net/http"
	"testing"

	"github.com/spatialmeet/server/internal/database"
	"github.com/spatialmeet/server/internal/stats"
	"github.com/spatialmeet/server/internal/testutil"
	"github.com/spatialmeet/server/internal/types"
	"github.com/stretchr/testify/assert"
)

func TestNewClient(t *testing.T) {
	ss := newTestSpatialServer(t, &database.MockSpatialMeetRepository{}, &stats.MockStatsUpdater{})
	user := types.User{Id: 1, Username: "testuser"}

	c := NewClient(user, nil, ss, testutil.TestLogger(t))
	assert.Equal(t, user, c.user, "expected user to be set")
	assert.Equal(t, ss, c.spatialServer, "expected spatial server to be set")
	assert.NotNil(t, c.send, "expected send channel to be initialized")
	assert.NotNil(t, c.rooms, "expected rooms map to be initialized")
	assert.NotNil(t, c.stop, "expected stop channel to be initialized")
}

func Test_queueMessage(t *testing.T) {
	c := &Client{
		send: make(chan *ServerMessage, 1),
		log:  testutil.TestLogger(t),
	}

	msg := &ServerMessage{}
	assert.True(t, c.queueMessage(msg), "expected message to be queued")
	assert.False(t, c.queueMessage(msg), "expected queue to fail when channel is full")
	assert.Len(t, c.send, 1, "expected only the first message to be queued")
}

func Test_addRoom_getRoom_delRoom(t *testing.T) {
	c := &Client{rooms: make(map[string]*Room)}
	room := &Room{roomCode: "ABC123"}

	c.addRoom(room)
	assert.Equal(t, room, c.getRoom("ABC123"), "expected room to be retrievable after adding")

	c.delRoom("ABC123")
	assert.Nil(t, c.getRoom("ABC123"), "expected room to be removed")
}

func Test_joinRoom(t *testing.T) {
	t.Run("forwards join to the server", func(t *testing.T) {
		ss := newTestSpatialServer(t, &database.MockSpatialMeetRepository{}, &stats.MockStatsUpdater{})
		c := &Client{spatialServer: ss, send: make(chan *ServerMessage, 1), log: ss.log}

		msg := &ClientMessage{
			BaseMessage: BaseMessage{Id: 1, Timestamp: Now()},
			Join:        &Join{RoomCode: "ABC123"},
			client:      c,
		}
		c.joinRoom(msg)

		select {
		case queued := <-ss.joinChan:
			assert.Equal(t, msg, queued, "expected join message to be forwarded to server")
		default:
			t.Error("expected join message on server join channel")
		}
	})

	t.Run("join channel full", func(t *testing.T) {
		ss := newTestSpatialServer(t, &database.MockSpatialMeetRepository{}, &stats.MockStatsUpdater{})
		ss.joinChan = make(chan *ClientMessage, 1)
		ss.joinChan <- &ClientMessage{}

		c := &Client{spatialServer: ss, send: make(chan *ServerMessage, 1), log: ss.log}
		c.joinRoom(&ClientMessage{
			BaseMessage: BaseMessage{Id: 1, Timestamp: Now()},
			Join:        &Join{RoomCode: "ABC123"},
			client:      c,
		})

		select {
		case msg := <-c.send:
			assert.NotNil(t, msg.Response, "expected response message")
			assert.Equal(t, http.StatusServiceUnavailable, msg.Response.ResponseCode, "expected response code 503")
		default:
			t.Error("expected client to receive error response")
		}
	})
}

func Test_leaveRoom(t *testing.T) {
	t.Run("forwards leave to the room", func(t *testing.T) {
		c := &Client{
			user:  types.User{Id: 1, Username: "testuser"},
			send:  make(chan *ServerMessage, 1),
			rooms: make(map[string]*Room),
			log:   testutil.TestLogger(t),
		}
		room := &Room{roomCode: "ABC123", leaveChan: make(chan *ClientMessage, 1)}
		c.addRoom(room)

		msg := &ClientMessage{
			BaseMessage: BaseMessage{Id: 1, Timestamp: Now()},
			Leave:       &Leave{RoomCode: "ABC123"},
			client:      c,
			user:        c.user,
		}
		c.leaveRoom(msg)

		select {
		case queued := <-room.leaveChan:
			assert.Equal(t, msg, queued, "expected leave message to be forwarded to room")
		default:
			t.Error("expected leave message on room leave channel")
		}
	})

	t.Run("leave for an unjoined room succeeds as a no-op", func(t *testing.T) {
		c := &Client{
			send:  make(chan *ServerMessage, 1),
			rooms: make(map[string]*Room),
			log:   testutil.TestLogger(t),
		}

		c.leaveRoom(&ClientMessage{
			BaseMessage: BaseMessage{Id: 1, Timestamp: Now()},
			Leave:       &Leave{RoomCode: "NOROOM"},
			client:      c,
		})

		select {
		case msg := <-c.send:
			assert.NotNil(t, msg.Response, "expected response message")
			assert.Equal(t, http.StatusOK, msg.Response.ResponseCode, "expected no-op leave to succeed")
		default:
			t.Error("expected client to receive response")
		}
	})
}

func Test_forwardUpdate(t *testing.T) {
	t.Run("forwards update to the room", func(t *testing.T) {
		c := &Client{
			user:  types.User{Id: 1, Username: "testuser"},
			send:  make(chan *ServerMessage, 1),
			rooms: make(map[string]*Room),
			log:   testutil.TestLogger(t),
		}
		room := &Room{roomCode: "ABC123", updateChan: make(chan *ClientMessage, 1)}
		c.addRoom(room)

		x := 1.0
		msg := &ClientMessage{
			BaseMessage: BaseMessage{Timestamp: Now()},
			Position:    &PositionUpdate{RoomCode: "ABC123", X: &x},
			client:      c,
			user:        c.user,
		}
		c.forwardUpdate(msg, msg.Position.RoomCode)

		select {
		case queued := <-room.updateChan:
			assert.Equal(t, msg, queued, "expected update message to be forwarded to room")
		default:
			t.Error("expected update message on room update channel")
		}
	})

	t.Run("update for an unjoined room is rejected", func(t *testing.T) {
		c := &Client{
			send:  make(chan *ServerMessage, 1),
			rooms: make(map[string]*Room),
			log:   testutil.TestLogger(t),
		}

		x := 1.0
		c.forwardUpdate(&ClientMessage{
			BaseMessage: BaseMessage{Id: 1, Timestamp: Now()},
			Position:    &PositionUpdate{RoomCode: "NOROOM", X: &x},
			client:      c,
		}, "NOROOM")

		select {
		case msg := <-c.send:
			assert.NotNil(t, msg.Response, "expected response message")
			assert.Equal(t, http.StatusNotFound, msg.Response.ResponseCode, "expected response code 404")
		default:
			t.Error("expected client to receive error response")
		}
	})

	t.Run("update channel full", func(t *testing.T) {
		c := &Client{
			user:  types.User{Id: 1, Username: "testuser"},
			send:  make(chan *ServerMessage, 1),
			rooms: make(map[string]*Room),
			log:   testutil.TestLogger(t),
		}
		room := &Room{roomCode: "ABC123", updateChan: make(chan *ClientMessage, 1), log: c.log}
		c.addRoom(room)
		room.updateChan <- &ClientMessage{}

		mic := false
		c.forwardUpdate(&ClientMessage{
			BaseMessage: BaseMessage{Id: 1, Timestamp: Now()},
			Audio:       &AudioUpdate{RoomCode: "ABC123", MicrophoneEnabled: &mic},
			client:      c,
		}, "ABC123")

		select {
		case msg := <-c.send:
			assert.NotNil(t, msg.Response, "expected response message")
			assert.Equal(t, http.StatusServiceUnavailable, msg.Response.ResponseCode, "expected response code 503")
		default:
			t.Error("expected client to receive error response")
		}
	})
}

func Test_leaveAllRooms(t *testing.T) {
	c := &Client{
		user:  types.User{Id: 1, Username: "testuser"},
		send:  make(chan *ServerMessage, 1),
		rooms: make(map[string]*Room),
		log:   testutil.TestLogger(t),
	}

	r1 := &Room{roomCode: "ABC123", leaveChan: make(chan *ClientMessage, 1)}
	r2 := &Room{roomCode: "XYZ789", leaveChan: make(chan *ClientMessage, 1)}
	c.addRoom(r1)
	c.addRoom(r2)

	c.leaveAllRooms()

	for _, room := range []*Room{r1, r2} {
		select {
		case msg := <-room.leaveChan:
			assert.NotNil(t, msg.Leave, "expected leave message")
			assert.Equal(t, room.roomCode, msg.Leave.RoomCode, "expected leave for room %q", room.roomCode)
			assert.Equal(t, c.user, msg.user, "expected leave to carry the client's user")
		default:
			t.Errorf("expected leave message for room %q", room.roomCode)
		}
	}
}

func Test_stopClient(t *testing.T) {
	c := &Client{stop: make(chan struct{})}

	c.stopClient()
	select {
	case <-c.stop:
	default:
		t.Error("expected stop channel to be closed")
	}

	// Repeated stops must not panic.
	c.stopClient()
}

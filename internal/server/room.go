package server

import (
	"log"
	"sync"
	"time"

	"github.com/spatialmeet/server/internal/database"
	"github.com/spatialmeet/server/internal/types"
)

const idleRoomTimeout = time.Second * 30

type exitReq struct {
	done chan string
}

// participant is the in-memory presence record for one user in one room. It
// is owned by the room goroutine; all mutation happens in the room's run
// loop, which linearizes concurrent joins, leaves and updates for the room.
type participant struct {
	accountId          int // 0 for guests, which are never persisted
	username           string
	x, y, z            float64
	micEnabled         bool
	speakerEnabled     bool
	volume             float64
	connected          bool
	joinedAt           time.Time
	lastPositionUpdate time.Time
}

func newParticipant(accountId int, username string) *participant {
	now := Now()
	return &participant{
		accountId:          accountId,
		username:           username,
		micEnabled:         true,
		speakerEnabled:     true,
		volume:             1.0,
		joinedAt:           now,
		lastPositionUpdate: now,
	}
}

func (p *participant) wire() types.Participant {
	return types.Participant{
		Username:          p.username,
		Position:          types.Position{X: p.x, Y: p.y, Z: p.z},
		MicrophoneEnabled: p.micEnabled,
		SpeakerEnabled:    p.speakerEnabled,
		Volume:            p.volume,
		Connected:         p.connected,
		JoinedAt:          p.joinedAt,
	}
}

type Room struct {
	id              int
	roomCode        string
	name            string
	description     string
	maxParticipants int

	cs *SpatialServer
	db database.SpatialMeetRepository

	joinChan   chan *ClientMessage
	leaveChan  chan *ClientMessage
	updateChan chan *ClientMessage

	// participants is the room's slice of the presence store, keyed by
	// username. Owned by the run loop.
	participants map[string]*participant

	clients    map[*Client]struct{}
	userMap    map[string]map[*Client]struct{}
	clientLock sync.RWMutex

	log *log.Logger
	// killTimer unloads the room when no clients remain; presence state
	// survives in the database.
	killTimer *time.Timer
	exit      chan exitReq
}

func (r *Room) start() {
	r.log.Printf("starting room %q", r.roomCode)
	r.killTimer = time.NewTimer(idleRoomTimeout)
	r.killTimer.Stop()

	for {
		select {
		case join := <-r.joinChan:
			r.handleJoin(join)
		case leaveMsg := <-r.leaveChan:
			r.handleLeave(leaveMsg)
		case msg := <-r.updateChan:
			if msg.Position != nil {
				r.handlePosition(msg)
			} else if msg.Audio != nil {
				r.handleAudio(msg)
			}
		case <-r.killTimer.C:
			r.handleRoomTimeout()
		case e := <-r.exit:
			r.handleRoomExit(e)
			return
		}
	}
}

// loadParticipants warms the in-memory presence cache from the database so
// rejoining users get their previous position and audio settings back.
func (r *Room) loadParticipants() error {
	records, err := r.db.ListParticipants(r.id)
	if err != nil {
		return err
	}

	for _, rec := range records {
		r.participants[rec.Username] = &participant{
			accountId:          rec.AccountId,
			username:           rec.Username,
			x:                  rec.PositionX,
			y:                  rec.PositionY,
			z:                  rec.PositionZ,
			micEnabled:         rec.MicrophoneEnabled,
			speakerEnabled:     rec.SpeakerEnabled,
			volume:             rec.Volume,
			connected:          rec.Connected,
			joinedAt:           rec.JoinedAt,
			lastPositionUpdate: rec.LastPositionUpdate,
		}
	}

	return nil
}

func (r *Room) connectedCount() int {
	var n int
	for _, p := range r.participants {
		if p.connected {
			n++
		}
	}
	return n
}

func (r *Room) connectedParticipants() []types.Participant {
	participants := make([]types.Participant, 0, len(r.participants))
	for _, p := range r.participants {
		if p.connected {
			participants = append(participants, p.wire())
		}
	}
	return participants
}

func (r *Room) handleJoin(join *ClientMessage) {
	r.killTimer.Stop()

	c := join.client
	username := join.user.Username

	p := r.participants[username]
	if p == nil || !p.connected {
		// The capacity check and the connect write below run in the same
		// loop iteration, so two joins racing at the boundary cannot both
		// be admitted. Already-connected users are not re-checked.
		if r.connectedCount() >= r.maxParticipants {
			r.log.Printf("room %q is full, rejecting %q", r.roomCode, username)
			c.queueMessage(ErrRoomFull(join.Id))
			if len(r.clients) == 0 {
				r.killTimer.Reset(idleRoomTimeout)
			}
			return
		}
	}

	if p == nil {
		p = newParticipant(join.user.Id, username)
		p.connected = true
		r.participants[username] = p
		if p.accountId != 0 {
			if _, err := r.db.CreateParticipant(p.accountId, r.id); err != nil {
				r.log.Println("CreateParticipant:", err)
				delete(r.participants, username)
				c.queueMessage(ErrInternalError(join.Id))
				if len(r.clients) == 0 {
					r.killTimer.Reset(idleRoomTimeout)
				}
				return
			}
		}
	} else if !p.connected {
		// Rejoin: reactivate in place, keeping position and audio settings.
		p.connected = true
		if p.accountId != 0 {
			if err := r.db.SetParticipantConnected(p.accountId, r.id, true); err != nil {
				r.log.Println("SetParticipantConnected:", err)
				p.connected = false
				c.queueMessage(ErrInternalError(join.Id))
				if len(r.clients) == 0 {
					r.killTimer.Reset(idleRoomTimeout)
				}
				return
			}
		}
	}

	r.addClient(c)

	c.queueMessage(NoErrOK(join.Id, RoomInfo{
		Room: types.Room{
			Id:              r.id,
			RoomCode:        r.roomCode,
			Name:            r.name,
			Description:     r.description,
			MaxParticipants: r.maxParticipants,
		},
		Participants: r.connectedParticipants(),
	}))

	r.cs.Broadcast(roomTopic(r.roomCode, "user-joined"), UserEvent{Username: username})
}

func (r *Room) handleLeave(leaveMsg *ClientMessage) {
	c := leaveMsg.client
	username := leaveMsg.user.Username

	if c != nil {
		r.removeClient(c)
	}

	p := r.participants[username]
	if p == nil || !p.connected {
		// Leaving a room the user never joined, or already left, is a no-op.
		if c != nil && leaveMsg.Id != 0 {
			c.queueMessage(NoErrOK(leaveMsg.Id, nil))
		}
		return
	}

	p.connected = false
	if p.accountId != 0 {
		if err := r.db.SetParticipantConnected(p.accountId, r.id, false); err != nil {
			r.log.Println("SetParticipantConnected:", err)
		}
	}

	if c != nil && leaveMsg.Id != 0 {
		c.queueMessage(NoErrOK(leaveMsg.Id, nil))
	}

	r.cs.Broadcast(roomTopic(r.roomCode, "user-left"), UserEvent{Username: username})
}

func (r *Room) handlePosition(msg *ClientMessage) {
	p := r.participants[msg.user.Username]
	if p == nil || !p.connected {
		return
	}

	// Absent coordinates are field-level no-ops.
	if msg.Position.X != nil {
		p.x = *msg.Position.X
	}
	if msg.Position.Y != nil {
		p.y = *msg.Position.Y
	}
	if msg.Position.Z != nil {
		p.z = *msg.Position.Z
	}
	p.lastPositionUpdate = Now()

	if p.accountId != 0 {
		if err := r.db.UpdateParticipantPosition(p.accountId, r.id, p.x, p.y, p.z); err != nil {
			r.log.Println("UpdateParticipantPosition:", err)
		}
	}

	r.cs.stats.Incr("NumPositionUpdates")
	r.cs.Broadcast(roomTopic(r.roomCode, "position"), PositionEvent{
		Username: p.username,
		Position: types.Position{X: p.x, Y: p.y, Z: p.z},
	})
}

func (r *Room) handleAudio(msg *ClientMessage) {
	p := r.participants[msg.user.Username]
	if p == nil || !p.connected {
		return
	}

	if msg.Audio.MicrophoneEnabled != nil {
		p.micEnabled = *msg.Audio.MicrophoneEnabled
	}
	if msg.Audio.SpeakerEnabled != nil {
		p.speakerEnabled = *msg.Audio.SpeakerEnabled
	}
	if msg.Audio.Volume != nil {
		p.volume = *msg.Audio.Volume
	}

	if p.accountId != 0 {
		if err := r.db.UpdateParticipantAudio(p.accountId, r.id, p.micEnabled, p.speakerEnabled, p.volume); err != nil {
			r.log.Println("UpdateParticipantAudio:", err)
		}
	}

	// The broadcast carries the full current settings, not the delta.
	r.cs.Broadcast(roomTopic(r.roomCode, "audio-settings"), AudioEvent{
		Username:          p.username,
		MicrophoneEnabled: p.micEnabled,
		SpeakerEnabled:    p.speakerEnabled,
		Volume:            p.volume,
	})
}

func (r *Room) handleRoomTimeout() {
	r.log.Printf("room %q timed out", r.roomCode)
	select {
	case r.cs.unloadRoomChan <- unloadRoomRequest{roomCode: r.roomCode}:
	default:
		r.log.Printf("unload channel full for room %q", r.roomCode)
		r.killTimer.Reset(idleRoomTimeout)
	}
}

func (r *Room) handleRoomExit(e exitReq) {
	r.log.Printf("room %q is exiting", r.roomCode)

	r.clientLock.Lock()
	for c := range r.clients {
		c.delRoom(r.roomCode)
	}
	r.clientLock.Unlock()

	if e.done != nil {
		e.done <- r.roomCode
	}
}

func (r *Room) addClient(c *Client) {
	r.clientLock.Lock()
	defer r.clientLock.Unlock()

	r.clients[c] = struct{}{}
	if r.userMap[c.user.Username] == nil {
		r.userMap[c.user.Username] = make(map[*Client]struct{})
	}
	r.userMap[c.user.Username][c] = struct{}{}

	c.addRoom(r)
}

func (r *Room) removeClient(c *Client) {
	r.clientLock.Lock()
	defer r.clientLock.Unlock()

	if _, ok := r.clients[c]; !ok {
		return
	}

	delete(r.clients, c)
	c.delRoom(r.roomCode)

	if userClients, ok := r.userMap[c.user.Username]; ok {
		delete(userClients, c)
		if len(userClients) == 0 {
			delete(r.userMap, c.user.Username)
		}
	}

	if len(r.clients) == 0 {
		r.log.Printf("no clients in %q, starting kill timer", r.roomCode)
		r.killTimer.Reset(idleRoomTimeout)
	}
}

// deliver queues a message to every client currently in the room, including
// the one it originated from; senders reconcile their own echo.
func (r *Room) deliver(msg *ServerMessage) {
	r.clientLock.RLock()
	defer r.clientLock.RUnlock()

	for client := range r.clients {
		client.queueMessage(msg)
	}
}

package server

import (
	"context"
	"log"
	"strings"
	"sync"

	"github.com/spatialmeet/server/internal/database"
	"github.com/spatialmeet/server/internal/stats"
)

// Messenger is the outbound side of the messaging substrate: per-room topic
// broadcast and per-user direct delivery. SpatialServer is the in-process
// implementation; anything with the same two operations could replace it.
type Messenger interface {
	Broadcast(topic string, data any)
	SendToUser(username, topic string, data any)
}

type unloadRoomRequest struct {
	roomCode string
}

type stopRequest struct {
	done chan struct{}
}

type SpatialServer struct {
	log   *log.Logger
	db    database.SpatialMeetRepository
	stats stats.StatsProvider

	joinChan       chan *ClientMessage
	unloadRoomChan chan unloadRoomRequest

	clients     map[*Client]struct{}
	userMap     map[string]map[*Client]struct{}
	clientsLock sync.Mutex

	rooms     map[string]*Room
	roomsLock sync.RWMutex

	stop chan stopRequest
}

func NewSpatialServer(logger *log.Logger, db database.SpatialMeetRepository, sp stats.StatsProvider) (*SpatialServer, error) {
	ss := &SpatialServer{
		log:            logger,
		db:             db,
		stats:          sp,
		joinChan:       make(chan *ClientMessage, 256),
		unloadRoomChan: make(chan unloadRoomRequest, 64),
		clients:        make(map[*Client]struct{}),
		userMap:        make(map[string]map[*Client]struct{}),
		rooms:          make(map[string]*Room),
		stop:           make(chan stopRequest),
	}

	for _, name := range []string{
		"NumConnections",
		"NumActiveRooms",
		"NumPositionUpdates",
		"NumSignalsRelayed",
	} {
		sp.RegisterMetric(name)
	}

	return ss, nil
}

func (ss *SpatialServer) Run() {
	for {
		select {
		case joinMsg := <-ss.joinChan:
			ss.handleJoin(joinMsg)
		case req := <-ss.unloadRoomChan:
			ss.unloadRoom(req.roomCode)
		case req := <-ss.stop:
			ss.log.Println("shutting down rooms")
			for _, r := range ss.roomList() {
				ss.unloadRoom(r.roomCode)
			}

			close(req.done)
			return
		}
	}
}

func (ss *SpatialServer) handleJoin(joinMsg *ClientMessage) {
	room := ss.getRoom(joinMsg.Join.RoomCode)
	if room == nil {
		dbRoom, err := ss.db.GetRoomByCode(joinMsg.Join.RoomCode)
		if err != nil {
			joinMsg.client.queueMessage(ErrRoomNotFound(joinMsg.Id))
			return
		}

		room = &Room{
			id:              dbRoom.Id,
			roomCode:        dbRoom.RoomCode,
			name:            dbRoom.Name,
			description:     dbRoom.Description,
			maxParticipants: dbRoom.MaxParticipants,
			cs:              ss,
			db:              ss.db,
			joinChan:        make(chan *ClientMessage, 256),
			leaveChan:       make(chan *ClientMessage, 256),
			updateChan:      make(chan *ClientMessage, 256),
			participants:    make(map[string]*participant),
			clients:         make(map[*Client]struct{}),
			userMap:         make(map[string]map[*Client]struct{}),
			log:             ss.log,
			exit:            make(chan exitReq),
		}

		if err := room.loadParticipants(); err != nil {
			ss.log.Println("loadParticipants:", err)
			joinMsg.client.queueMessage(ErrInternalError(joinMsg.Id))
			return
		}

		ss.roomsLock.Lock()
		ss.rooms[room.roomCode] = room
		ss.roomsLock.Unlock()

		ss.stats.Incr("NumActiveRooms")
		go room.start()
	}

	select {
	case room.joinChan <- joinMsg:
	default:
		ss.log.Printf("join channel full on room %q", room.roomCode)
		joinMsg.client.queueMessage(ErrServiceUnavailable(joinMsg.Id))
	}
}

func (ss *SpatialServer) unloadRoom(roomCode string) {
	ss.roomsLock.Lock()
	room, ok := ss.rooms[roomCode]
	if ok {
		delete(ss.rooms, roomCode)
	}
	ss.roomsLock.Unlock()

	if !ok {
		return
	}

	done := make(chan string)
	room.exit <- exitReq{done: done}
	<-done

	ss.stats.Decr("NumActiveRooms")
	ss.log.Printf("unloaded room %q", roomCode)
}

func (ss *SpatialServer) getRoom(roomCode string) *Room {
	ss.roomsLock.RLock()
	defer ss.roomsLock.RUnlock()
	return ss.rooms[roomCode]
}

func (ss *SpatialServer) roomList() []*Room {
	ss.roomsLock.RLock()
	defer ss.roomsLock.RUnlock()

	rooms := make([]*Room, 0, len(ss.rooms))
	for _, r := range ss.rooms {
		rooms = append(rooms, r)
	}
	return rooms
}

func (ss *SpatialServer) RegisterClient(c *Client) {
	ss.clientsLock.Lock()
	defer ss.clientsLock.Unlock()

	ss.clients[c] = struct{}{}
	if ss.userMap[c.user.Username] == nil {
		ss.userMap[c.user.Username] = make(map[*Client]struct{})
	}
	ss.userMap[c.user.Username][c] = struct{}{}

	ss.stats.Incr("NumConnections")
}

func (ss *SpatialServer) deregisterClient(c *Client) {
	ss.clientsLock.Lock()
	defer ss.clientsLock.Unlock()

	if _, ok := ss.clients[c]; !ok {
		return
	}

	delete(ss.clients, c)
	if userClients, ok := ss.userMap[c.user.Username]; ok {
		delete(userClients, c)
		if len(userClients) == 0 {
			delete(ss.userMap, c.user.Username)
		}
	}

	ss.stats.Decr("NumConnections")
}

// Broadcast publishes data on a room topic ("room/{code}/{kind}") to every
// client currently in the room.
func (ss *SpatialServer) Broadcast(topic string, data any) {
	room := ss.getRoom(roomCodeFromTopic(topic))
	if room == nil {
		return
	}

	room.deliver(&ServerMessage{
		BaseMessage: BaseMessage{Timestamp: Now()},
		Topic:       topic,
		Data:        data,
	})
}

// SendToUser delivers data on a topic to every connection of a single user.
// An offline target is not an error; the message is dropped.
func (ss *SpatialServer) SendToUser(username, topic string, data any) {
	msg := &ServerMessage{
		BaseMessage: BaseMessage{Timestamp: Now()},
		Topic:       topic,
		Data:        data,
	}

	ss.clientsLock.Lock()
	defer ss.clientsLock.Unlock()

	for c := range ss.userMap[username] {
		c.queueMessage(msg)
	}
}

// Relay forwards a WebRTC negotiation payload to the target peer's private
// inbox. It is stateless, best-effort, and deliberately does not check the
// target's room membership.
func (ss *SpatialServer) Relay(msg *ClientMessage) {
	if msg.user.Username == "" {
		msg.client.queueMessage(ErrUnauthenticated(msg.Id))
		return
	}

	kind := msg.Signal.Kind()
	if kind == "" || msg.Signal.Target == "" {
		msg.client.queueMessage(ErrInvalidMessage(msg.Id))
		return
	}

	event := SignalEvent{
		Offer:     msg.Signal.Offer,
		Answer:    msg.Signal.Answer,
		Candidate: msg.Signal.Candidate,
		Sender:    msg.user.Username,
	}

	ss.SendToUser(msg.Signal.Target, roomTopic(msg.Signal.RoomCode, kind), event)
	ss.stats.Incr("NumSignalsRelayed")
}

func (ss *SpatialServer) Shutdown(ctx context.Context) error {
	ss.clientsLock.Lock()
	for c := range ss.clients {
		c.stopClient()
	}
	ss.clientsLock.Unlock()

	req := stopRequest{done: make(chan struct{})}
	select {
	case ss.stop <- req:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-req.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func roomCodeFromTopic(topic string) string {
	parts := strings.SplitN(topic, "/", 3)
	if len(parts) < 3 || parts[0] != "room" {
		return ""
	}
	return parts[1]
}

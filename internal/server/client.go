package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/npezzotti/tactics-board/internal/types"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// Client is one websocket session. Its id doubles as the member id in
// every room it joins.
type Client struct {
	id        string
	conn      *websocket.Conn
	store     *RoomStore
	log       *log.Logger
	send      chan *ServerMessage
	rooms     map[string]*Room
	roomsLock sync.RWMutex
	stop      chan struct{}
	stopOnce  sync.Once
}

func NewClient(conn *websocket.Conn, rs *RoomStore, l *log.Logger) *Client {
	return &Client{
		id:    generateId(),
		conn:  conn,
		store: rs,
		log:   l,
		send:  make(chan *ServerMessage, 256),
		rooms: make(map[string]*Room),
		stop:  make(chan struct{}),
	}
}

func (c *Client) Id() string {
	return c.id
}

func (c *Client) Write() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		c.log.Printf("client %q: write exiting", c.id)
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}

			bytes, err := c.serializeMessage(msg)
			if err != nil {
				c.log.Println("failed to serialize message:", err)
				continue
			}

			if !c.sendMessage(websocket.TextMessage, bytes) {
				return
			}
		case <-c.stop:
			return
		case <-ticker.C:
			if !c.sendMessage(websocket.PingMessage, nil) {
				return
			}
		}
	}
}

func (c *Client) Read() {
	defer func() {
		c.conn.Close()
		c.cleanup()
		c.log.Printf("client %q: read exiting", c.id)
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				c.log.Printf("ws: read: %v", err)
			}
			break
		}

		var msg ClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.log.Println("error parsing message:", err)
			c.queueMessage(ErrInvalidMessage(-1))
			continue
		}

		c.handleMessage(&msg)
	}
}

// handleMessage verifies the sender's token and routes the message to
// the store or to the room it targets.
func (c *Client) handleMessage(msg *ClientMessage) {
	msg.client = c
	msg.Timestamp = Now()

	event := msg.Event()
	if event == "" {
		c.queueMessage(ErrInvalidMessage(msg.Id))
		return
	}

	if msg.Leave != nil {
		c.leaveRoom(msg)
		return
	}

	identity, err := c.store.verifier.Verify(context.Background(), msg.Token)
	if err != nil {
		c.log.Printf("client %q: verify token for %s: %v", c.id, event, err)
		if !errors.Is(err, types.ErrUnauthenticated) {
			err = fmt.Errorf("%w: %v", types.ErrUnauthenticated, err)
		}
		c.queueMessage(ErrResponse(msg.Id, event, err))
		return
	}
	msg.identity = identity

	switch {
	case msg.Create != nil:
		c.createRoom(msg)
	case msg.Join != nil:
		c.joinRoom(msg)
	default:
		c.forward(msg)
	}
}

func (c *Client) createRoom(msg *ClientMessage) {
	r, err := c.store.CreateRoom(CreateRoomParams{
		Id:        msg.Create.RoomId,
		Name:      msg.Create.Name,
		CreatorId: msg.identity.UserId,
		Formation: msg.Create.Formation,
	})
	if err != nil {
		c.log.Printf("client %q: create room: %v", c.id, err)
		c.queueMessage(ErrResponse(msg.Id, EventRoomCreated, err))
		return
	}

	c.queueMessage(NoErrOK(msg.Id, EventRoomCreated, r.State()))
}

func (c *Client) joinRoom(msg *ClientMessage) {
	r, ok := c.store.GetRoom(msg.Join.RoomId)
	if !ok {
		c.queueMessage(ErrRoomNotFound(msg.Id, EventRoomState))
		return
	}

	select {
	case r.joinChan <- msg:
	default:
		c.log.Printf("joinChan full for room %q", r.id)
		c.queueMessage(ErrServiceUnavailable(msg.Id, EventRoomState))
	}
}

func (c *Client) leaveRoom(msg *ClientMessage) {
	r := c.getRoom(msg.Leave.RoomId)
	if r == nil {
		c.queueMessage(ErrRoomNotFound(msg.Id, EventRoomLeft))
		return
	}

	select {
	case r.leaveChan <- msg:
	default:
		c.log.Printf("leaveChan full for room %q", r.id)
		c.queueMessage(ErrServiceUnavailable(msg.Id, EventRoomLeft))
	}
}

// forward hands a room scoped message to a room the client has joined.
func (c *Client) forward(msg *ClientMessage) {
	event := msg.Event()
	r := c.getRoom(msg.RoomId())
	if r == nil {
		c.queueMessage(ErrRoomNotFound(msg.Id, event))
		return
	}

	select {
	case r.clientMsgChan <- msg:
	default:
		c.log.Printf("clientMsgChan full for room %q", r.id)
		c.queueMessage(ErrServiceUnavailable(msg.Id, event))
	}
}

func (c *Client) queueMessage(msg *ServerMessage) bool {
	select {
	case c.send <- msg:
	default:
		c.log.Printf("client %q: send channel is full, dropping message", c.id)
		return false
	}

	return true
}

func (c *Client) serializeMessage(msg *ServerMessage) ([]byte, error) {
	return json.Marshal(msg)
}

func (c *Client) sendMessage(msgType int, msg []byte) bool {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))

	if err := c.conn.WriteMessage(msgType, msg); err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
			websocket.CloseNormalClosure) {
			c.log.Printf("write message: %s", err)
		}
		return false
	}

	return true
}

func (c *Client) stopClient() {
	c.stopOnce.Do(func() { close(c.stop) })
}

func (c *Client) cleanup() {
	c.store.removeClient(c)
	c.leaveAllRooms()
	c.stopClient()
}

// leaveAllRooms marks the client's memberships inactive after a
// disconnect.
func (c *Client) leaveAllRooms() {
	c.roomsLock.RLock()
	rooms := make([]*Room, 0, len(c.rooms))
	for _, r := range c.rooms {
		rooms = append(rooms, r)
	}
	c.roomsLock.RUnlock()

	for _, r := range rooms {
		msg := &ClientMessage{
			Leave:    &Leave{RoomId: r.id},
			client:   c,
			internal: true,
		}

		select {
		case r.leaveChan <- msg:
		case <-r.done:
		}
	}
}

func (c *Client) delRoom(id string) {
	c.roomsLock.Lock()
	defer c.roomsLock.Unlock()

	if _, ok := c.rooms[id]; ok {
		delete(c.rooms, id)
		c.log.Printf("removed room %q from client %q", id, c.id)
	}
}

func (c *Client) addRoom(r *Room) {
	c.roomsLock.Lock()
	defer c.roomsLock.Unlock()

	c.rooms[r.id] = r
	c.log.Printf("added client %q to room %q", c.id, r.id)
}

func (c *Client) getRoom(id string) *Room {
	c.roomsLock.RLock()
	defer c.roomsLock.RUnlock()

	return c.rooms[id]
}

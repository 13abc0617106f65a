package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/npezzotti/tactics-board/internal/auth"
	"github.com/npezzotti/tactics-board/internal/stats"
	"github.com/npezzotti/tactics-board/internal/suggest"
	"github.com/npezzotti/tactics-board/internal/types"
	"github.com/teris-io/shortid"
)

const (
	DefaultIdleTimeout       = 24 * time.Hour
	DefaultCleanupInterval   = time.Hour
	DefaultSuggestionTimeout = 20 * time.Second
)

// Archiver receives the final state of every destroyed room.
type Archiver interface {
	ArchiveRoom(state types.RoomState) error
}

type StoreConfig struct {
	IdleTimeout       time.Duration
	CleanupInterval   time.Duration
	SuggestionTimeout time.Duration
	Verifier          auth.TokenVerifier
	// Suggester and Archiver are optional.
	Suggester suggest.Suggester
	Archiver  Archiver
}

type CreateRoomParams struct {
	Id        string
	Name      string
	CreatorId string
	Formation types.Formation
}

type unloadRoomRequest struct {
	roomId string
}

type stopReq struct {
	done chan struct{}
}

// RoomStore owns every live room and the websocket clients connected to
// the process.
type RoomStore struct {
	log               *log.Logger
	stats             stats.StatsProvider
	verifier          auth.TokenVerifier
	suggester         suggest.Suggester
	archiver          Archiver
	idleTimeout       time.Duration
	cleanupInterval   time.Duration
	suggestionTimeout time.Duration
	now               func() time.Time
	rooms             map[string]*Room
	roomsLock         sync.RWMutex
	clients           map[*Client]struct{}
	clientsLock       sync.Mutex
	unloadRoomChan    chan unloadRoomRequest
	stop              chan stopReq
}

func NewRoomStore(logger *log.Logger, su stats.StatsProvider, cfg StoreConfig) (*RoomStore, error) {
	if cfg.Verifier == nil {
		return nil, errors.New("token verifier is required")
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = DefaultCleanupInterval
	}
	if cfg.SuggestionTimeout <= 0 {
		cfg.SuggestionTimeout = DefaultSuggestionTimeout
	}

	su.RegisterMetric(stats.NumActiveRooms)
	su.RegisterMetric(stats.NumActiveClients)
	su.RegisterMetric(stats.NumReapedRooms)

	return &RoomStore{
		log:               logger,
		stats:             su,
		verifier:          cfg.Verifier,
		suggester:         cfg.Suggester,
		archiver:          cfg.Archiver,
		idleTimeout:       cfg.IdleTimeout,
		cleanupInterval:   cfg.CleanupInterval,
		suggestionTimeout: cfg.SuggestionTimeout,
		now:               func() time.Time { return time.Now().UTC() },
		rooms:             make(map[string]*Room),
		clients:           make(map[*Client]struct{}),
		unloadRoomChan:    make(chan unloadRoomRequest, 64),
		stop:              make(chan stopReq),
	}, nil
}

// Run services unload requests from idle rooms and sweeps for inactive
// rooms until Shutdown is called.
func (rs *RoomStore) Run() {
	ticker := time.NewTicker(rs.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case req := <-rs.unloadRoomChan:
			rs.reapRoom(req.roomId)
		case <-ticker.C:
			if reaped := rs.CleanupInactiveRooms(); len(reaped) > 0 {
				rs.log.Printf("cleaned up %d inactive rooms: %v", len(reaped), reaped)
			}
		case req := <-rs.stop:
			rs.log.Println("shutting down rooms")
			for _, r := range rs.drainRooms() {
				rs.log.Println("shutting down room", r.id)
				rs.destroyRoom(r, false)
			}

			close(req.done)
			return
		}
	}
}

func (rs *RoomStore) Shutdown(ctx context.Context) error {
	rs.log.Println("received shutdown signal")
	rs.stopClients()

	req := stopReq{done: make(chan struct{})}
	select {
	case rs.stop <- req:
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

func generateId() string {
	id, err := shortid.Generate()
	if err != nil {
		return uuid.NewString()
	}
	return id
}

// CreateRoom registers and starts a new room. An empty id is replaced
// with a generated one.
func (rs *RoomStore) CreateRoom(params CreateRoomParams) (*Room, error) {
	params.Id = strings.TrimSpace(params.Id)
	params.Name = strings.TrimSpace(params.Name)
	if params.Name == "" {
		return nil, fmt.Errorf("%w: name: failed required", types.ErrValidation)
	}
	if err := types.ValidateFormation(params.Formation); err != nil {
		return nil, err
	}
	if params.Id == "" {
		params.Id = generateId()
	}

	rs.roomsLock.Lock()
	if _, ok := rs.rooms[params.Id]; ok {
		rs.roomsLock.Unlock()
		return nil, fmt.Errorf("%w: %q", ErrRoomExists, params.Id)
	}

	r := newRoom(rs, params)
	rs.rooms[r.id] = r
	rs.roomsLock.Unlock()

	rs.stats.Incr(stats.NumActiveRooms)
	rs.log.Printf("created room %q (%s) for %q", r.id, r.name, r.creatorId)

	go r.start()
	return r, nil
}

func (rs *RoomStore) GetRoom(id string) (*Room, bool) {
	rs.roomsLock.RLock()
	defer rs.roomsLock.RUnlock()

	r, ok := rs.rooms[id]
	return r, ok
}

func (rs *RoomStore) ListRooms() []types.RoomSummary {
	rs.roomsLock.RLock()
	rooms := make([]*Room, 0, len(rs.rooms))
	for _, r := range rs.rooms {
		rooms = append(rooms, r)
	}
	rs.roomsLock.RUnlock()

	summaries := make([]types.RoomSummary, 0, len(rooms))
	for _, r := range rooms {
		summaries = append(summaries, r.Summary())
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].Id < summaries[j].Id
	})
	return summaries
}

// DeleteRoom removes the room and notifies its members.
func (rs *RoomStore) DeleteRoom(id string) error {
	r := rs.removeRoom(id)
	if r == nil {
		return fmt.Errorf("%w: %q", ErrRoomMissing, id)
	}

	rs.destroyRoom(r, true)
	return nil
}

func (rs *RoomStore) RemoveUser(roomId, memberId string) error {
	r, ok := rs.GetRoom(roomId)
	if !ok {
		return fmt.Errorf("%w: %q", ErrRoomMissing, roomId)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.removeUser(memberId)
}

func (rs *RoomStore) UpdateUserStatus(roomId, memberId, action string) error {
	r, ok := rs.GetRoom(roomId)
	if !ok {
		return fmt.Errorf("%w: %q", ErrRoomMissing, roomId)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.updateUserStatus(memberId, action)
}

// BroadcastToRoom sends an event to every session in the room.
func (rs *RoomStore) BroadcastToRoom(roomId, event string, data any) error {
	r, ok := rs.GetRoom(roomId)
	if !ok {
		return fmt.Errorf("%w: %q", ErrRoomMissing, roomId)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	r.broadcast(NewEvent(roomId, event, data))
	return nil
}

// CleanupInactiveRooms deletes every room without active members whose
// last update is at least the idle timeout old, returning their ids.
func (rs *RoomStore) CleanupInactiveRooms() []string {
	now := rs.now()

	var idle []*Room
	rs.roomsLock.Lock()
	for id, r := range rs.rooms {
		if r.isIdle(now) {
			delete(rs.rooms, id)
			idle = append(idle, r)
		}
	}
	rs.roomsLock.Unlock()

	reaped := make([]string, 0, len(idle))
	for _, r := range idle {
		rs.log.Printf("reaping inactive room %q", r.id)
		rs.destroyRoom(r, false)
		rs.stats.Incr(stats.NumReapedRooms)
		reaped = append(reaped, r.id)
	}

	sort.Strings(reaped)
	return reaped
}

// reapRoom unloads a room whose kill timer fired, provided nobody came
// back in the meantime.
func (rs *RoomStore) reapRoom(id string) bool {
	rs.roomsLock.Lock()
	r, ok := rs.rooms[id]
	if !ok || r.ActiveMembers() > 0 {
		rs.roomsLock.Unlock()
		return false
	}
	delete(rs.rooms, id)
	rs.roomsLock.Unlock()

	rs.log.Printf("unloading idle room %q", id)
	rs.destroyRoom(r, false)
	rs.stats.Incr(stats.NumReapedRooms)
	return true
}

func (rs *RoomStore) removeRoom(id string) *Room {
	rs.roomsLock.Lock()
	defer rs.roomsLock.Unlock()

	r, ok := rs.rooms[id]
	if !ok {
		return nil
	}

	delete(rs.rooms, id)
	rs.log.Printf("removed room %q", id)
	return r
}

func (rs *RoomStore) drainRooms() []*Room {
	rs.roomsLock.Lock()
	defer rs.roomsLock.Unlock()

	rooms := make([]*Room, 0, len(rs.rooms))
	for id, r := range rs.rooms {
		rooms = append(rooms, r)
		delete(rs.rooms, id)
	}
	return rooms
}

// destroyRoom stops a room that is no longer registered and archives
// its final state.
func (rs *RoomStore) destroyRoom(r *Room, deleted bool) {
	done := make(chan string, 1)
	select {
	case r.exit <- exitReq{deleted: deleted, done: done}:
		<-done
	case <-r.done:
	}

	if rs.archiver != nil {
		if err := rs.archiver.ArchiveRoom(r.State()); err != nil {
			rs.log.Printf("archive room %q: %v", r.id, err)
		}
	}

	rs.stats.Decr(stats.NumActiveRooms)
}

func (rs *RoomStore) RegisterClient(c *Client) {
	rs.clientsLock.Lock()
	defer rs.clientsLock.Unlock()

	rs.clients[c] = struct{}{}
	rs.stats.Incr(stats.NumActiveClients)
}

func (rs *RoomStore) removeClient(c *Client) {
	rs.clientsLock.Lock()
	defer rs.clientsLock.Unlock()

	if _, ok := rs.clients[c]; !ok {
		return
	}

	delete(rs.clients, c)
	rs.stats.Decr(stats.NumActiveClients)
}

func (rs *RoomStore) stopClients() {
	rs.clientsLock.Lock()
	defer rs.clientsLock.Unlock()

	for c := range rs.clients {
		c.stopClient()
	}
}

package server

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/npezzotti/tactics-board/internal/policy"
	"github.com/npezzotti/tactics-board/internal/suggest"
	"github.com/npezzotti/tactics-board/internal/types"
)

const (
	// analyses with longer descriptions are sent for suggestions
	suggestionThreshold = 50
	maxChatHistory      = 200
	unloadRetryInterval = 5 * time.Second
)

type exitReq struct {
	deleted bool
	done    chan string
}

type suggestionResult struct {
	requestedBy types.Actor
	baseVersion int
	suggestions []string
	err         error
}

// JoinResult is the payload of a successful join response.
type JoinResult struct {
	Member types.Member    `json:"member"`
	Room   types.RoomState `json:"room"`
}

type Room struct {
	id          string
	name        string
	creatorId   string
	createdAt   time.Time
	store       *RoomStore
	log         *log.Logger
	idleTimeout time.Duration

	// mu guards everything below. The room goroutine holds it while
	// handling an event.
	mu         sync.RWMutex
	members    []*types.Member
	sessions   map[string]*Client
	clients    map[*Client]string
	formation  types.Formation
	analysis   types.Analysis
	chat       []types.ChatMessage
	lastUpdate time.Time

	joinChan      chan *ClientMessage
	leaveChan     chan *ClientMessage
	clientMsgChan chan *ClientMessage
	suggestChan   chan suggestionResult
	// killTimer asks the store to unload the room once it has had no
	// active members for idleTimeout
	killTimer *time.Timer
	exit      chan exitReq
	done      chan struct{}
	ctx       context.Context
	cancel    context.CancelFunc
}

func newRoom(rs *RoomStore, params CreateRoomParams) *Room {
	now := rs.now()
	ctx, cancel := context.WithCancel(context.Background())

	formation := params.Formation.Clone()
	formation.Version = 1

	r := &Room{
		id:          params.Id,
		name:        params.Name,
		creatorId:   params.CreatorId,
		createdAt:   now,
		store:       rs,
		log:         rs.log,
		idleTimeout: rs.idleTimeout,
		sessions:    make(map[string]*Client),
		clients:     make(map[*Client]string),
		formation:   formation,
		analysis: types.Analysis{
			Title:         params.Name,
			Tags:          []string{},
			AISuggestions: []string{},
			Version:       1,
		},
		lastUpdate:    now,
		joinChan:      make(chan *ClientMessage, 256),
		leaveChan:     make(chan *ClientMessage, 256),
		clientMsgChan: make(chan *ClientMessage, 256),
		suggestChan:   make(chan suggestionResult, 16),
		exit:          make(chan exitReq),
		done:          make(chan struct{}),
		ctx:           ctx,
		cancel:        cancel,
	}

	r.killTimer = time.NewTimer(r.idleTimeout)
	r.killTimer.Stop()

	return r
}

func (r *Room) start() {
	defer close(r.done)
	r.log.Printf("starting room %q", r.id)

	for {
		select {
		case join := <-r.joinChan:
			r.mu.Lock()
			r.handleJoin(join)
			r.mu.Unlock()
		case leave := <-r.leaveChan:
			r.mu.Lock()
			r.handleLeave(leave)
			r.mu.Unlock()
		case msg := <-r.clientMsgChan:
			r.mu.Lock()
			r.handleClientMessage(msg)
			r.mu.Unlock()
		case res := <-r.suggestChan:
			r.mu.Lock()
			r.handleSuggestionResult(res)
			r.mu.Unlock()
		case <-r.killTimer.C:
			r.mu.Lock()
			r.handleRoomTimeout()
			r.mu.Unlock()
		case e := <-r.exit:
			r.mu.Lock()
			r.handleRoomExit(e)
			r.mu.Unlock()
			return
		}
	}
}

func (r *Room) Id() string {
	return r.id
}

func (r *Room) CreatorId() string {
	return r.creatorId
}

// State returns a copy of the room that is safe to hand to other
// goroutines.
func (r *Room) State() types.RoomState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state()
}

func (r *Room) Summary() types.RoomSummary {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return types.RoomSummary{
		Id:            r.id,
		Name:          r.name,
		CreatorId:     r.creatorId,
		ActiveMembers: r.activeMembers(),
		LastUpdate:    r.lastUpdate,
	}
}

func (r *Room) ActiveMembers() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.activeMembers()
}

// isIdle reports whether the room has had no active members for at
// least the idle timeout.
func (r *Room) isIdle(now time.Time) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.activeMembers() == 0 && now.Sub(r.lastUpdate) >= r.idleTimeout
}

func (r *Room) state() types.RoomState {
	members := make([]types.Member, len(r.members))
	for i, m := range r.members {
		members[i] = *m
	}

	return types.RoomState{
		Id:         r.id,
		Name:       r.name,
		CreatorId:  r.creatorId,
		Members:    members,
		Formation:  r.formation.Clone(),
		Analysis:   r.analysis.Clone(),
		Chat:       append([]types.ChatMessage{}, r.chat...),
		CreatedAt:  r.createdAt,
		LastUpdate: r.lastUpdate,
	}
}

func (r *Room) activeMembers() int {
	n := 0
	for _, m := range r.members {
		if m.Active {
			n++
		}
	}
	return n
}

func (r *Room) getMember(id string) *types.Member {
	for _, m := range r.members {
		if m.Id == id {
			return m
		}
	}
	return nil
}

func (r *Room) memberForClient(c *Client) *types.Member {
	id, ok := r.clients[c]
	if !ok {
		return nil
	}
	return r.getMember(id)
}

func (r *Room) handleRoomTimeout() {
	if r.activeMembers() > 0 {
		return
	}

	r.log.Printf("room %q timed out", r.id)
	select {
	case r.store.unloadRoomChan <- unloadRoomRequest{roomId: r.id}:
	default:
		r.log.Printf("unload channel full, retrying room %q later", r.id)
		r.killTimer.Reset(unloadRetryInterval)
	}
}

func (r *Room) handleRoomExit(e exitReq) {
	r.log.Printf("room %q is exiting", r.id)
	r.cancel()
	r.killTimer.Stop()

	if e.deleted {
		r.broadcast(NewEvent(r.id, EventRoomDeleted, RoomDeletedEvent{RoomId: r.id}))
	}

	for c := range r.clients {
		c.delRoom(r.id)
	}

	// joins that raced with the exit never reach a live room
drain:
	for {
		select {
		case join := <-r.joinChan:
			join.client.queueMessage(ErrRoomNotFound(join.Id, EventRoomState))
		default:
			break drain
		}
	}

	if e.done != nil {
		e.done <- r.id
	}
}

func (r *Room) handleJoin(join *ClientMessage) {
	r.killTimer.Stop()

	c := join.client
	memberId := c.id
	if id, ok := r.clients[c]; ok {
		// the session already joined, keep its membership
		memberId = id
	} else if resume := join.Join.MemberId; resume != "" {
		if m := r.getMember(resume); m != nil && m.UserId == join.identity.UserId {
			memberId = m.Id
		}
	}

	member := r.addUser(c, types.Member{
		Id:     memberId,
		UserId: join.identity.UserId,
		Name:   join.identity.Name,
		Role:   join.identity.Role,
	})
	c.addRoom(r)

	// the snapshot goes to the joining session only
	c.queueMessage(NoErrOK(join.Id, EventRoomState, JoinResult{
		Member: member,
		Room:   r.state(),
	}))
}

// addUser records c as member m, reactivating an existing member with
// the same id instead of adding a duplicate.
func (r *Room) addUser(c *Client, m types.Member) types.Member {
	if existing := r.getMember(m.Id); existing != nil {
		r.log.Printf("reactivating member %q in room %q", m.Id, r.id)
		existing.Active = true
		existing.LastAction = ""
		existing.LastActionAt = time.Time{}
		if m.UserId != "" {
			existing.UserId = m.UserId
		}
		if m.Name != "" {
			existing.Name = m.Name
		}
		if m.Role != "" {
			existing.Role = m.Role
		}
		m = *existing
	} else {
		r.log.Printf("adding member %q (%s) to room %q", m.Id, m.Role, r.id)
		m.Active = true
		m.LastAction = ""
		m.LastActionAt = time.Time{}
		nm := m
		r.members = append(r.members, &nm)
	}

	r.bindSession(m.Id, c)
	r.lastUpdate = r.store.now()

	r.broadcast(NewEvent(r.id, EventUserJoined, MemberEvent{Member: m}))
	return m
}

func (r *Room) bindSession(memberId string, c *Client) {
	if c == nil {
		return
	}

	if old, ok := r.sessions[memberId]; ok && old != c {
		delete(r.clients, old)
		old.delRoom(r.id)
	}

	r.sessions[memberId] = c
	r.clients[c] = memberId
}

// removeUser marks the member inactive. The record is kept until the
// room is destroyed.
func (r *Room) removeUser(memberId string) error {
	m := r.getMember(memberId)
	if m == nil {
		return fmt.Errorf("%w: %q", ErrMemberMissing, memberId)
	}

	now := r.store.now()
	m.Active = false
	m.LastActionAt = now

	if c, ok := r.sessions[memberId]; ok {
		delete(r.sessions, memberId)
		delete(r.clients, c)
	}

	r.lastUpdate = now
	r.log.Printf("member %q left room %q", memberId, r.id)
	r.broadcast(NewEvent(r.id, EventUserLeft, MemberEvent{Member: *m}))

	if r.activeMembers() == 0 {
		r.log.Printf("no active members in %q, starting kill timer", r.id)
		r.killTimer.Reset(r.idleTimeout)
	}

	return nil
}

func (r *Room) updateUserStatus(memberId, action string) error {
	m := r.getMember(memberId)
	if m == nil {
		return fmt.Errorf("%w: %q", ErrMemberMissing, memberId)
	}

	action = strings.TrimSpace(action)
	if action == "" {
		return fmt.Errorf("%w: action: failed required", types.ErrValidation)
	}

	r.recordAction(m, action)
	r.broadcast(NewEvent(r.id, EventUserAction, MemberEvent{Member: *m}))
	return nil
}

func (r *Room) recordAction(m *types.Member, action string) {
	now := r.store.now()
	m.LastAction = action
	m.LastActionAt = now
	r.lastUpdate = now
}

func (r *Room) handleLeave(msg *ClientMessage) {
	c := msg.client
	memberId, ok := r.clients[c]
	if !ok {
		r.log.Printf("client %q not found in room %q", c.id, r.id)
		if !msg.internal {
			c.queueMessage(ErrResponse(msg.Id, EventRoomLeft, ErrMemberMissing))
		}
		return
	}

	if err := r.removeUser(memberId); err != nil {
		r.log.Println("removeUser:", err)
	}
	c.delRoom(r.id)

	if !msg.internal {
		c.queueMessage(NoErrOK(msg.Id, EventRoomLeft, nil))
	}
}

// handleClientMessage authorizes and applies a room scoped event.
// Failures are reported to the sender only.
func (r *Room) handleClientMessage(msg *ClientMessage) {
	event := msg.Event()

	member := r.memberForClient(msg.client)
	if member == nil {
		msg.client.queueMessage(ErrResponse(msg.Id, event, ErrMemberMissing))
		return
	}

	if err := policy.Authorize(member.Role, msg.Action()); err != nil {
		r.log.Printf("rejected %s from %q in room %q: %v", event, member.Id, r.id, err)
		msg.client.queueMessage(ErrResponse(msg.Id, event, err))
		return
	}

	var err error
	switch {
	case msg.Status != nil:
		err = r.handleStatus(msg, member)
	case msg.Formation != nil:
		err = r.handleFormation(msg, member)
	case msg.PlayerMove != nil:
		err = r.handlePlayerMove(msg, member)
	case msg.Tactics != nil:
		err = r.handleTactics(msg, member)
	case msg.Analysis != nil:
		err = r.handleAnalysis(msg, member)
	case msg.TagAdd != nil:
		err = r.handleTagAdd(msg, member)
	case msg.Chat != nil:
		err = r.handleChat(msg, member)
	case msg.Drawing != nil:
		err = r.handleDrawing(msg, member)
	default:
		err = fmt.Errorf("%w: unsupported message", types.ErrValidation)
	}

	if err != nil {
		msg.client.queueMessage(ErrResponse(msg.Id, event, err))
	}
}

func (r *Room) handleStatus(msg *ClientMessage, member *types.Member) error {
	if err := r.updateUserStatus(member.Id, msg.Status.Action); err != nil {
		return err
	}

	msg.client.queueMessage(NoErrOK(msg.Id, EventUserAction, MemberEvent{Member: *member}))
	return nil
}

func (r *Room) handleFormation(msg *ClientMessage, member *types.Member) error {
	f := msg.Formation.Formation
	if err := types.ValidateFormation(f); err != nil {
		return err
	}

	r.commitFormation(msg, member, f.Clone(), EventFormationUpdated)
	return nil
}

func (r *Room) handlePlayerMove(msg *ClientMessage, member *types.Member) error {
	mv := msg.PlayerMove.PlayerMovement
	if err := types.ValidateMovement(mv); err != nil {
		return err
	}

	i := r.formation.FindPlayer(mv.PlayerId)
	if i < 0 {
		return fmt.Errorf("%w: %q", ErrPlayerMissing, mv.PlayerId)
	}

	f := r.formation.Clone()
	f.Players[i].X = mv.X
	f.Players[i].Y = mv.Y

	r.commitFormation(msg, member, f, EventPlayerMoved)
	return nil
}

func (r *Room) handleTactics(msg *ClientMessage, member *types.Member) error {
	ti := msg.Tactics.Instruction
	if err := types.ValidateInstruction(ti); err != nil {
		return err
	}
	ti.Players = append([]string(nil), ti.Players...)

	r.commitFormation(msg, member, r.formation.UpsertInstruction(ti), EventTacticsUpdated)
	return nil
}

// commitFormation replaces the formation, bumping the version from the
// one held by the room, and fans the result out to the other members.
func (r *Room) commitFormation(msg *ClientMessage, member *types.Member, f types.Formation, event string) {
	f.Version = r.formation.Version + 1
	r.formation = f
	r.recordAction(member, event)

	payload := FormationEvent{
		Formation: f.Clone(),
		UpdatedBy: member.Actor(),
	}

	msg.client.queueMessage(NoErrOK(msg.Id, event, payload))

	ev := NewEvent(r.id, event, payload)
	ev.SkipClient = msg.client
	r.broadcast(ev)
}

func (r *Room) handleAnalysis(msg *ClientMessage, member *types.Member) error {
	a := msg.Analysis.Analysis.Clone()
	a.Tags = types.NormalizeTags(a.Tags)
	if err := types.ValidateAnalysis(a); err != nil {
		return err
	}

	r.commitAnalysis(msg, member, a, EventAnalysisUpdated)

	if r.store.suggester != nil && utf8.RuneCountInString(a.Description) > suggestionThreshold {
		r.requestSuggestions(msg.Analysis.Context, member)
	}
	return nil
}

// requestSuggestions asks the suggester about the committed analysis off
// the room goroutine. The result comes back through suggestChan.
func (r *Room) requestSuggestions(matchContext string, member *types.Member) {
	req := suggest.Request{
		Formation: r.formation.Clone(),
		Analysis:  r.analysis.Clone(),
		Context:   matchContext,
	}
	res := suggestionResult{
		requestedBy: member.Actor(),
		baseVersion: r.analysis.Version,
	}

	suggester := r.store.suggester
	timeout := r.store.suggestionTimeout

	go func() {
		ctx, cancel := context.WithTimeout(r.ctx, timeout)
		defer cancel()

		res.suggestions, res.err = suggester.Suggest(ctx, req)
		if r.ctx.Err() != nil {
			return
		}

		select {
		case r.suggestChan <- res:
		case <-r.ctx.Done():
		}
	}()
}

// handleSuggestionResult merges suggestions into the analysis as a new
// version. Suggestions for an analysis that has since changed are dropped.
func (r *Room) handleSuggestionResult(res suggestionResult) {
	if res.err != nil {
		r.log.Printf("generate suggestions for room %q: %v", r.id, res.err)
		return
	}

	if r.analysis.Version != res.baseVersion {
		r.log.Printf("dropping suggestions for room %q: analysis moved from version %d to %d",
			r.id, res.baseVersion, r.analysis.Version)
		return
	}

	a := r.analysis.Clone()
	a.AISuggestions = res.suggestions
	if a.AISuggestions == nil {
		a.AISuggestions = []string{}
	}
	a.Version = r.analysis.Version + 1
	r.analysis = a
	r.lastUpdate = r.store.now()

	r.broadcast(NewEvent(r.id, EventAnalysisUpdated, AnalysisEvent{
		Analysis:  a.Clone(),
		UpdatedBy: res.requestedBy,
	}))
}

func (r *Room) handleTagAdd(msg *ClientMessage, member *types.Member) error {
	tags := types.NormalizeTags(msg.TagAdd.Tags)
	if err := types.ValidateTags(tags); err != nil {
		return err
	}

	a := r.analysis.Clone()
	a.Tags = types.MergeTags(a.Tags, tags)

	r.commitAnalysis(msg, member, a, EventTagsAdded)
	return nil
}

func (r *Room) commitAnalysis(msg *ClientMessage, member *types.Member, a types.Analysis, event string) {
	a.Version = r.analysis.Version + 1
	r.analysis = a
	r.recordAction(member, event)

	payload := AnalysisEvent{
		Analysis:  a.Clone(),
		UpdatedBy: member.Actor(),
	}

	msg.client.queueMessage(NoErrOK(msg.Id, event, payload))

	ev := NewEvent(r.id, event, payload)
	ev.SkipClient = msg.client
	r.broadcast(ev)
}

func (r *Room) handleChat(msg *ClientMessage, member *types.Member) error {
	cm := types.ChatMessage{
		Id:        uuid.NewString(),
		MemberId:  member.Id,
		Name:      member.Name,
		Role:      member.Role,
		Text:      strings.TrimSpace(msg.Chat.Text),
		Timestamp: r.store.now(),
	}
	if err := types.ValidateChat(cm); err != nil {
		return err
	}

	r.chat = append(r.chat, cm)
	if len(r.chat) > maxChatHistory {
		r.chat = append([]types.ChatMessage(nil), r.chat[len(r.chat)-maxChatHistory:]...)
	}
	r.lastUpdate = cm.Timestamp

	msg.client.queueMessage(NoErrOK(msg.Id, EventChatMessage, cm))

	ev := NewEvent(r.id, EventChatMessage, cm)
	ev.SkipClient = msg.client
	r.broadcast(ev)
	return nil
}

// handleDrawing relays a board annotation. Drawings are not kept in the
// room state.
func (r *Room) handleDrawing(msg *ClientMessage, member *types.Member) error {
	if err := types.ValidateDrawing(msg.Drawing.Data); err != nil {
		return err
	}

	payload := DrawingEvent{
		Id:        uuid.NewString(),
		Data:      append([]byte(nil), msg.Drawing.Data...),
		UpdatedBy: member.Actor(),
	}
	r.recordAction(member, EventDrawingUpdated)

	msg.client.queueMessage(NoErrOK(msg.Id, EventDrawingUpdated, payload))

	ev := NewEvent(r.id, EventDrawingUpdated, payload)
	ev.SkipClient = msg.client
	r.broadcast(ev)
	return nil
}

// broadcast queues msg for every session in the room except
// msg.SkipClient. A full send buffer only drops the message for that
// session.
func (r *Room) broadcast(msg *ServerMessage) {
	if msg.Event != nil {
		r.log.Printf("broadcast %s to room %q", msg.Event.Name, r.id)
	}

	for client := range r.clients {
		if client == msg.SkipClient {
			continue
		}

		client.queueMessage(msg)
	}
}

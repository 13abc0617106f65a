package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/npezzotti/tactics-board/internal/policy"
	"github.com/npezzotti/tactics-board/internal/types"
)

// Event names sent to room members.
const (
	EventRoomState        = "room:state"
	EventRoomCreated      = "room:created"
	EventRoomLeft         = "room:left"
	EventRoomDeleted      = "room:deleted"
	EventRoomAnnouncement = "room:announcement"
	EventUserJoined       = "user:joined"
	EventUserLeft         = "user:left"
	EventUserAction       = "user:action"
	EventFormationUpdated = "formation:updated"
	EventPlayerMoved      = "player:moved"
	EventTacticsUpdated   = "tactics:updated"
	EventAnalysisUpdated  = "analysis:updated"
	EventTagsAdded        = "tags:added"
	EventChatMessage      = "chat:message"
	EventDrawingUpdated   = "drawing:updated"
)

type BaseMessage struct {
	Id        int       `json:"id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ClientMessage is one frame sent by a client. Exactly one payload is set.
type ClientMessage struct {
	BaseMessage
	Token      string          `json:"token,omitempty"`
	Create     *CreateRoom     `json:"create,omitempty"`
	Join       *Join           `json:"join,omitempty"`
	Leave      *Leave          `json:"leave,omitempty"`
	Status     *Status         `json:"status,omitempty"`
	Formation  *FormationSet   `json:"formation,omitempty"`
	PlayerMove *PlayerMove     `json:"player_move,omitempty"`
	Tactics    *TacticsUpsert  `json:"tactics,omitempty"`
	Analysis   *AnalysisSet    `json:"analysis,omitempty"`
	TagAdd     *TagAdd         `json:"tag_add,omitempty"`
	Chat       *ChatSend       `json:"chat,omitempty"`
	Drawing    *DrawingUpdate  `json:"drawing,omitempty"`
	identity   types.Identity  `json:"-"`
	client     *Client         `json:"-"`
	// internal is set on leave messages generated by a disconnect
	internal bool `json:"-"`
}

type CreateRoom struct {
	RoomId    string          `json:"room_id,omitempty"`
	Name      string          `json:"name"`
	Formation types.Formation `json:"formation"`
}

type Join struct {
	RoomId string `json:"room_id"`
	// MemberId resumes an inactive membership after a reconnect.
	MemberId string `json:"member_id,omitempty"`
}

type Leave struct {
	RoomId string `json:"room_id"`
}

type Status struct {
	RoomId string `json:"room_id"`
	Action string `json:"action"`
}

type FormationSet struct {
	RoomId    string          `json:"room_id"`
	Formation types.Formation `json:"formation"`
}

type PlayerMove struct {
	RoomId string `json:"room_id"`
	types.PlayerMovement
}

type TacticsUpsert struct {
	RoomId      string                    `json:"room_id"`
	Instruction types.TacticalInstruction `json:"instruction"`
}

type AnalysisSet struct {
	RoomId   string         `json:"room_id"`
	Analysis types.Analysis `json:"analysis"`
	// Context is free text forwarded to the suggestion provider.
	Context string `json:"context,omitempty"`
}

type TagAdd struct {
	RoomId string   `json:"room_id"`
	Tags   []string `json:"tags"`
}

type ChatSend struct {
	RoomId string `json:"room_id"`
	Text   string `json:"text"`
}

type DrawingUpdate struct {
	RoomId string          `json:"room_id"`
	Data   json.RawMessage `json:"data"`
}

// RoomId returns the room the message targets.
func (m *ClientMessage) RoomId() string {
	switch {
	case m.Create != nil:
		return m.Create.RoomId
	case m.Join != nil:
		return m.Join.RoomId
	case m.Leave != nil:
		return m.Leave.RoomId
	case m.Status != nil:
		return m.Status.RoomId
	case m.Formation != nil:
		return m.Formation.RoomId
	case m.PlayerMove != nil:
		return m.PlayerMove.RoomId
	case m.Tactics != nil:
		return m.Tactics.RoomId
	case m.Analysis != nil:
		return m.Analysis.RoomId
	case m.TagAdd != nil:
		return m.TagAdd.RoomId
	case m.Chat != nil:
		return m.Chat.RoomId
	case m.Drawing != nil:
		return m.Drawing.RoomId
	}

	return ""
}

// Action returns the policy action of a room scoped message, or "" for
// create, join and leave.
func (m *ClientMessage) Action() policy.Action {
	switch {
	case m.Status != nil:
		return policy.ActionUpdateStatus
	case m.Formation != nil:
		return policy.ActionUpdateFormation
	case m.PlayerMove != nil:
		return policy.ActionMovePlayer
	case m.Tactics != nil:
		return policy.ActionUpdateTactics
	case m.Analysis != nil:
		return policy.ActionUpdateAnalysis
	case m.TagAdd != nil:
		return policy.ActionAddTag
	case m.Chat != nil:
		return policy.ActionChat
	case m.Drawing != nil:
		return policy.ActionDraw
	}

	return ""
}

// Event names the event a response refers to.
func (m *ClientMessage) Event() string {
	switch {
	case m.Create != nil:
		return EventRoomCreated
	case m.Join != nil:
		return EventRoomState
	case m.Leave != nil:
		return EventRoomLeft
	case m.Status != nil:
		return EventUserAction
	case m.Formation != nil:
		return EventFormationUpdated
	case m.PlayerMove != nil:
		return EventPlayerMoved
	case m.Tactics != nil:
		return EventTacticsUpdated
	case m.Analysis != nil:
		return EventAnalysisUpdated
	case m.TagAdd != nil:
		return EventTagsAdded
	case m.Chat != nil:
		return EventChatMessage
	case m.Drawing != nil:
		return EventDrawingUpdated
	}

	return ""
}

type ServerMessage struct {
	BaseMessage
	Response   *Response `json:"response,omitempty"`
	Event      *Event    `json:"event,omitempty"`
	SkipClient *Client   `json:"-"`
}

type Response struct {
	ResponseCode int        `json:"response_code"`
	Event        string     `json:"event,omitempty"`
	Error        *ErrorInfo `json:"error,omitempty"`
	Data         any        `json:"data,omitempty"`
}

type ErrorInfo struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type Event struct {
	Name   string `json:"name"`
	RoomId string `json:"room_id"`
	Data   any    `json:"data,omitempty"`
}

// Broadcast payloads.

type MemberEvent struct {
	Member types.Member `json:"member"`
}

type FormationEvent struct {
	Formation types.Formation `json:"formation"`
	UpdatedBy types.Actor     `json:"updated_by"`
}

type AnalysisEvent struct {
	Analysis  types.Analysis `json:"analysis"`
	UpdatedBy types.Actor    `json:"updated_by"`
}

type DrawingEvent struct {
	Id        string          `json:"id"`
	Data      json.RawMessage `json:"data"`
	UpdatedBy types.Actor     `json:"updated_by"`
}

type AnnouncementEvent struct {
	Message string `json:"message"`
}

type RoomDeletedEvent struct {
	RoomId string `json:"room_id"`
}

func NewEvent(roomId, name string, data any) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Timestamp: Now(),
		},
		Event: &Event{
			Name:   name,
			RoomId: roomId,
			Data:   data,
		},
	}
}

func NoErrOK(id int, event string, data any) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusOK,
			Event:        event,
			Data:         data,
		},
	}
}

func errorMessage(id int, event string, code int, errType, msg string) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: code,
			Event:        event,
			Error: &ErrorInfo{
				Type:    errType,
				Message: msg,
			},
		},
	}
}

// ErrResponse maps err onto a typed error response for the originating
// session.
func ErrResponse(id int, event string, err error) *ServerMessage {
	switch {
	case errors.Is(err, types.ErrNotFound):
		return errorMessage(id, event, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, types.ErrUnauthenticated):
		return errorMessage(id, event, http.StatusUnauthorized, "unauthenticated", err.Error())
	case errors.Is(err, types.ErrUnauthorized):
		return errorMessage(id, event, http.StatusForbidden, "unauthorized", err.Error())
	case errors.Is(err, types.ErrValidation):
		return errorMessage(id, event, http.StatusBadRequest, "validation_error", err.Error())
	case errors.Is(err, types.ErrAlreadyExists):
		return errorMessage(id, event, http.StatusConflict, "already_exists", err.Error())
	case errors.Is(err, types.ErrConflict):
		return errorMessage(id, event, http.StatusConflict, "conflict", err.Error())
	}

	return ErrInternalError(id, event)
}

func ErrRoomNotFound(id int, event string) *ServerMessage {
	return ErrResponse(id, event, ErrRoomMissing)
}

func ErrInternalError(id int, event string) *ServerMessage {
	return errorMessage(id, event, http.StatusInternalServerError, "internal_error", "internal server error")
}

func ErrServiceUnavailable(id int, event string) *ServerMessage {
	return errorMessage(id, event, http.StatusServiceUnavailable, "service_unavailable", "service unavailable")
}

func ErrInvalidMessage(id int) *ServerMessage {
	msg := errorMessage(0, "", http.StatusBadRequest, "invalid_message", "invalid message format")
	if id > 0 {
		msg.Id = id
	}
	return msg
}

func Now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}

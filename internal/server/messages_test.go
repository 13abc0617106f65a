package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/npezzotti/tactics-board/internal/policy"
	"github.com/npezzotti/tactics-board/internal/types"
	"github.com/stretchr/testify/assert"
)

func TestClientMessage_decode(t *testing.T) {
	tcases := []struct {
		name   string
		raw    string
		roomId string
		event  string
		action policy.Action
	}{
		{
			name:   "join",
			raw:    `{"id":1,"token":"t","join":{"room_id":"r1","member_id":"m1"}}`,
			roomId: "r1",
			event:  EventRoomState,
		},
		{
			name:   "player move",
			raw:    `{"id":2,"token":"t","player_move":{"room_id":"r1","player_id":"p1","x":12.5,"y":80}}`,
			roomId: "r1",
			event:  EventPlayerMoved,
			action: policy.ActionMovePlayer,
		},
		{
			name:   "analysis",
			raw:    `{"id":3,"token":"t","analysis":{"room_id":"r2","analysis":{"title":"Plan","tags":["a"]},"context":"first half"}}`,
			roomId: "r2",
			event:  EventAnalysisUpdated,
			action: policy.ActionUpdateAnalysis,
		},
		{
			name:   "chat",
			raw:    `{"id":4,"token":"t","chat":{"room_id":"r3","text":"hello"}}`,
			roomId: "r3",
			event:  EventChatMessage,
			action: policy.ActionChat,
		},
		{
			name:   "drawing",
			raw:    `{"id":5,"token":"t","drawing":{"room_id":"r3","data":{"line":[0,0,10,10]}}}`,
			roomId: "r3",
			event:  EventDrawingUpdated,
			action: policy.ActionDraw,
		},
		{
			name: "empty",
			raw:  `{"id":6}`,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			var msg ClientMessage
			assert.NoError(t, json.Unmarshal([]byte(tc.raw), &msg))
			assert.Equal(t, tc.roomId, msg.RoomId())
			assert.Equal(t, tc.event, msg.Event())
			assert.Equal(t, tc.action, msg.Action())
		})
	}

	var msg ClientMessage
	assert.NoError(t, json.Unmarshal([]byte(tcases[1].raw), &msg))
	assert.Equal(t, types.PlayerMovement{PlayerId: "p1", X: 12.5, Y: 80}, msg.PlayerMove.PlayerMovement)
}

func TestErrResponse(t *testing.T) {
	tcases := []struct {
		err     error
		code    int
		errType string
	}{
		{ErrRoomMissing, http.StatusNotFound, "not_found"},
		{fmt.Errorf("%w: bad", types.ErrUnauthenticated), http.StatusUnauthorized, "unauthenticated"},
		{policy.Authorize(types.RoleViewer, policy.ActionUpdateFormation), http.StatusForbidden, "unauthorized"},
		{fmt.Errorf("%w: x: failed gte=0", types.ErrValidation), http.StatusBadRequest, "validation_error"},
		{ErrRoomExists, http.StatusConflict, "already_exists"},
		{fmt.Errorf("%w: version moved", types.ErrConflict), http.StatusConflict, "conflict"},
		{errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tc := range tcases {
		t.Run(tc.errType, func(t *testing.T) {
			msg := ErrResponse(12, EventFormationUpdated, tc.err)
			assert.Equal(t, 12, msg.Id)
			if assert.NotNil(t, msg.Response) {
				assert.Equal(t, tc.code, msg.Response.ResponseCode)
				assert.Equal(t, EventFormationUpdated, msg.Response.Event)
				assert.Equal(t, tc.errType, msg.Response.Error.Type)
			}
		})
	}

	internal := ErrResponse(1, "", errors.New("pq: connection refused"))
	assert.Equal(t, "internal server error", internal.Response.Error.Message, "expected internal details to be hidden")
}

func TestErrInvalidMessage(t *testing.T) {
	assert.Equal(t, 0, ErrInvalidMessage(-1).Id)
	assert.Equal(t, 7, ErrInvalidMessage(7).Id)
	assert.Equal(t, http.StatusBadRequest, ErrInvalidMessage(7).Response.ResponseCode)
}

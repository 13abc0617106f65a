// Package policy decides which room roles may perform which actions.
package policy

import (
	"fmt"

	"github.com/npezzotti/tactics-board/internal/types"
)

type Action string

const (
	ActionUpdateFormation Action = "formation:update"
	ActionMovePlayer      Action = "player:move"
	ActionUpdateTactics   Action = "tactics:update"
	ActionUpdateAnalysis  Action = "analysis:update"
	ActionAddTag          Action = "tags:add"
	ActionDraw            Action = "drawing:update"
	ActionChat            Action = "chat:send"
	ActionUpdateStatus    Action = "status:update"
)

// Mutates reports whether the action changes shared room state.
func (a Action) Mutates() bool {
	switch a {
	case ActionChat, ActionUpdateStatus:
		return false
	}
	return true
}

// Authorize returns types.ErrUnauthorized unless role may perform action.
// Only coaches and analysts may change shared state.
func Authorize(role types.Role, action Action) error {
	if !action.Mutates() {
		return nil
	}

	switch role {
	case types.RoleCoach, types.RoleAnalyst:
		return nil
	}

	return fmt.Errorf("%w: role %q may not perform %s", types.ErrUnauthorized, role, action)
}

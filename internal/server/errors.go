package server

import (
	"fmt"

	"github.com/npezzotti/tactics-board/internal/types"
)

var (
	ErrRoomMissing   = fmt.Errorf("room %w", types.ErrNotFound)
	ErrMemberMissing = fmt.Errorf("member %w", types.ErrNotFound)
	ErrPlayerMissing = fmt.Errorf("player %w", types.ErrNotFound)
	ErrRoomExists    = fmt.Errorf("room %w", types.ErrAlreadyExists)
)

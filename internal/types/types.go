package types

import (
	"strings"
	"time"
)

type Role string

const (
	RoleCoach   Role = "coach"
	RoleAnalyst Role = "analyst"
	RoleViewer  Role = "viewer"
)

// roleAssistant is the legacy spelling of RoleAnalyst.
const roleAssistant = "assistant"

// ParseRole maps a role claim onto one of the canonical roles.
func ParseRole(s string) (Role, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(RoleCoach):
		return RoleCoach, true
	case string(RoleAnalyst), roleAssistant:
		return RoleAnalyst, true
	case string(RoleViewer):
		return RoleViewer, true
	}

	return "", false
}

// Identity is the result of verifying a bearer token.
type Identity struct {
	UserId string `json:"id"`
	Name   string `json:"name"`
	Role   Role   `json:"role"`
}

type User struct {
	Id           int       `json:"id"`
	Username     string    `json:"username"`
	EmailAddress string    `json:"email_address,omitempty"`
	Role         Role      `json:"role"`
	Password     string    `json:"-"`
	CreatedAt    time.Time `json:"created_at,omitempty"`
	UpdatedAt    time.Time `json:"updated_at,omitempty"`
}

// Member is a participant of a live room. Its id is scoped to the
// websocket session that joined.
type Member struct {
	Id           string    `json:"id"`
	UserId       string    `json:"user_id"`
	Name         string    `json:"name"`
	Role         Role      `json:"role"`
	Active       bool      `json:"active"`
	LastAction   string    `json:"last_action,omitempty"`
	LastActionAt time.Time `json:"last_action_at,omitempty"`
}

// Actor identifies who performed an update in broadcasts.
type Actor struct {
	Id   string `json:"id"`
	Name string `json:"name"`
	Role Role   `json:"role"`
}

func (m Member) Actor() Actor {
	return Actor{Id: m.Id, Name: m.Name, Role: m.Role}
}

type ChatMessage struct {
	Id        string    `json:"id"`
	MemberId  string    `json:"member_id"`
	Name      string    `json:"name"`
	Role      Role      `json:"role"`
	Text      string    `json:"text" validate:"required,max=2000"`
	Timestamp time.Time `json:"timestamp"`
}

// RoomState is a point in time copy of a live room.
type RoomState struct {
	Id         string        `json:"id"`
	Name       string        `json:"name"`
	CreatorId  string        `json:"creator_id"`
	Members    []Member      `json:"members"`
	Formation  Formation     `json:"formation"`
	Analysis   Analysis      `json:"analysis"`
	Chat       []ChatMessage `json:"chat"`
	CreatedAt  time.Time     `json:"created_at"`
	LastUpdate time.Time     `json:"last_update"`
}

type RoomSummary struct {
	Id            string    `json:"id"`
	Name          string    `json:"name"`
	CreatorId     string    `json:"creator_id"`
	ActiveMembers int       `json:"active_members"`
	LastUpdate    time.Time `json:"last_update"`
}

// SavedFormation is a formation stored in a coach's library.
type SavedFormation struct {
	Id        int       `json:"id"`
	OwnerId   int       `json:"owner_id"`
	Formation Formation `json:"formation"`
	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// RoomArchive is the final state of a destroyed room.
type RoomArchive struct {
	Id         int       `json:"id"`
	RoomId     string    `json:"room_id"`
	State      RoomState `json:"state"`
	ArchivedAt time.Time `json:"archived_at"`
}

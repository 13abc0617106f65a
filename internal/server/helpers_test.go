package server

import (
	"testing"
	"time"

	"github.com/npezzotti/tactics-board/internal/auth"
	"github.com/npezzotti/tactics-board/internal/stats"
	"github.com/npezzotti/tactics-board/internal/testutil"
	"github.com/npezzotti/tactics-board/internal/types"
	"github.com/stretchr/testify/mock"
)

var (
	coach   = types.Identity{UserId: "u-coach", Name: "Pep", Role: types.RoleCoach}
	analyst = types.Identity{UserId: "u-analyst", Name: "Lillo", Role: types.RoleAnalyst}
	viewer  = types.Identity{UserId: "u-viewer", Name: "Fan", Role: types.RoleViewer}
)

type mockArchiver struct {
	mock.Mock
}

func (m *mockArchiver) ArchiveRoom(state types.RoomState) error {
	args := m.Called(state)
	return args.Error(0)
}

// newTestRoomStore creates a RoomStore whose stats calls are all optional.
func newTestRoomStore(t *testing.T, cfg StoreConfig) *RoomStore {
	su := &stats.MockStatsUpdater{}
	su.On("RegisterMetric", mock.Anything).Return()
	su.On("Incr", mock.Anything).Return().Maybe()
	su.On("Decr", mock.Anything).Return().Maybe()

	if cfg.Verifier == nil {
		cfg.Verifier = &auth.MockTokenVerifier{}
	}

	rs, err := NewRoomStore(testutil.TestLogger(t), su, cfg)
	if err != nil {
		t.Fatalf("failed to create test RoomStore: %v", err)
	}

	t.Cleanup(func() {
		for _, r := range rs.drainRooms() {
			rs.destroyRoom(r, false)
		}
	})
	return rs
}

func newTestClient(t *testing.T, rs *RoomStore, id string) *Client {
	return &Client{
		id:    id,
		store: rs,
		log:   testutil.TestLogger(t),
		send:  make(chan *ServerMessage, 256),
		rooms: make(map[string]*Room),
		stop:  make(chan struct{}),
	}
}

func testFormation() types.Formation {
	return types.Formation{
		Name: "4-3-3",
		Players: []types.PlayerPosition{
			{Id: "p1", Number: 9, Position: "ST", X: 50, Y: 15},
			{Id: "p2", Number: 10, Position: "CAM", X: 50, Y: 35},
			{Id: "p3", Number: 1, Position: "GK", X: 50, Y: 95},
		},
	}
}

// newTestRoom builds a room that is not running, so handlers can be
// called directly.
func newTestRoom(t *testing.T, rs *RoomStore) *Room {
	return newRoom(rs, CreateRoomParams{
		Id:        "room1",
		Name:      "Derby prep",
		CreatorId: coach.UserId,
		Formation: testFormation(),
	})
}

// join adds c to the room as identity and returns the member it was
// given. The client's send buffer is drained.
func join(t *testing.T, r *Room, c *Client, identity types.Identity) types.Member {
	t.Helper()

	r.handleJoin(&ClientMessage{
		BaseMessage: BaseMessage{Id: 1},
		Join:        &Join{RoomId: r.id},
		identity:    identity,
		client:      c,
	})

	var member types.Member
	for {
		select {
		case msg := <-c.send:
			if msg.Response != nil && msg.Response.Event == EventRoomState {
				member = msg.Response.Data.(JoinResult).Member
			}
		default:
			return member
		}
	}
}

func drain(c *Client) {
	for {
		select {
		case <-c.send:
		default:
			return
		}
	}
}

func nextMessage(t *testing.T, c *Client) *ServerMessage {
	t.Helper()

	select {
	case msg := <-c.send:
		return msg
	case <-time.After(time.Second):
		t.Fatalf("timeout: no message for client %q", c.id)
	}
	return nil
}

func assertNoMessage(t *testing.T, c *Client) {
	t.Helper()

	select {
	case msg := <-c.send:
		t.Errorf("expected no message for client %q, got %+v", c.id, msg)
	default:
	}
}

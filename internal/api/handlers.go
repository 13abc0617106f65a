package api

import (
	"encoding/json"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/npezzotti/tactics-board/internal/server"
	"github.com/npezzotti/tactics-board/internal/types"
)

func (s *TacticsApp) writeJson(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if v == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Printf("json encode: %v", err)
	}
}

func (s *TacticsApp) writeError(w http.ResponseWriter, err error) {
	errResp := errorFor(err)
	if errResp.StatusCode == http.StatusInternalServerError {
		s.log.Printf("internal error: %v", err)
	}
	s.writeJson(w, errResp.StatusCode, errResp)
}

func (s *TacticsApp) healthCheck(w http.ResponseWriter, _ *http.Request) {
	if err := s.db.Ping(); err != nil {
		s.log.Printf("health check: %v", err)
		errResp := newApiError(http.StatusServiceUnavailable)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

type CreateRoomRequest struct {
	Id          string           `json:"id"`
	Name        string           `json:"name"`
	Formation   *types.Formation `json:"formation,omitempty"`
	FormationId int              `json:"formation_id,omitempty"`
}

type AnnounceRequest struct {
	Message string `json:"message" validate:"required,max=500"`
}

// queryInt reads a positive integer query parameter.
func queryInt(r *http.Request, key string) (int, bool) {
	n, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

func (s *TacticsApp) createRoom(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFrom(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var req CreateRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var formation types.Formation
	switch {
	case req.FormationId > 0:
		saved, err := s.ownedFormation(r, req.FormationId)
		if err != nil {
			s.writeError(w, err)
			return
		}
		formation = saved.Formation
	case req.Formation != nil:
		formation = *req.Formation
	default:
		// an empty board named after the room
		formation = types.Formation{Name: strings.TrimSpace(req.Name)}
	}

	room, err := s.store.CreateRoom(server.CreateRoomParams{
		Id:        req.Id,
		Name:      req.Name,
		CreatorId: identity.UserId,
		Formation: formation,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJson(w, http.StatusCreated, room.State())
}

func (s *TacticsApp) getRoom(w http.ResponseWriter, r *http.Request) {
	room, ok := s.store.GetRoom(r.URL.Query().Get("id"))
	if !ok {
		errResp := NewNotFoundError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, room.State())
}

func (s *TacticsApp) listRooms(w http.ResponseWriter, _ *http.Request) {
	s.writeJson(w, http.StatusOK, s.store.ListRooms())
}

// creatorRoom looks up the room named by the id query parameter and
// checks that the caller created it.
func (s *TacticsApp) creatorRoom(w http.ResponseWriter, r *http.Request) (*server.Room, bool) {
	identity, ok := IdentityFrom(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return nil, false
	}

	room, ok := s.store.GetRoom(r.URL.Query().Get("id"))
	if !ok {
		errResp := NewNotFoundError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return nil, false
	}

	if room.CreatorId() != identity.UserId {
		errResp := NewForbiddenError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return nil, false
	}

	return room, true
}

func (s *TacticsApp) deleteRoom(w http.ResponseWriter, r *http.Request) {
	room, ok := s.creatorRoom(w, r)
	if !ok {
		return
	}

	if err := s.store.DeleteRoom(room.Id()); err != nil {
		s.writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *TacticsApp) announce(w http.ResponseWriter, r *http.Request) {
	room, ok := s.creatorRoom(w, r)
	if !ok {
		return
	}

	var req AnnounceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	req.Message = strings.TrimSpace(req.Message)
	if err := types.ValidateRequest(req); err != nil {
		s.writeError(w, err)
		return
	}

	err := s.store.BroadcastToRoom(room.Id(), server.EventRoomAnnouncement, server.AnnouncementEvent{Message: req.Message})
	if err != nil {
		s.writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

func (s *TacticsApp) ownedFormation(r *http.Request, id int) (types.SavedFormation, error) {
	owner, ok := accountId(r.Context())
	if !ok {
		return types.SavedFormation{}, types.ErrUnauthenticated
	}

	saved, err := s.db.GetFormation(id)
	if err != nil {
		return types.SavedFormation{}, err
	}

	// other coaches' formations are reported as missing
	if saved.OwnerId != owner {
		return types.SavedFormation{}, types.ErrNotFound
	}

	return saved, nil
}

func (s *TacticsApp) createFormation(w http.ResponseWriter, r *http.Request) {
	owner, ok := accountId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var f types.Formation
	if err := json.NewDecoder(r.Body).Decode(&f); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if err := types.ValidateFormation(f); err != nil {
		s.writeError(w, err)
		return
	}

	saved, err := s.db.CreateFormation(owner, f)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJson(w, http.StatusCreated, saved)
}

// listFormations returns the caller's library, or a single formation
// when an id is given.
func (s *TacticsApp) listFormations(w http.ResponseWriter, r *http.Request) {
	owner, ok := accountId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if r.URL.Query().Has("id") {
		id, ok := queryInt(r, "id")
		if !ok {
			errResp := NewBadRequestError()
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}

		saved, err := s.ownedFormation(r, id)
		if err != nil {
			s.writeError(w, err)
			return
		}

		s.writeJson(w, http.StatusOK, saved)
		return
	}

	formations, err := s.db.ListFormations(owner)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJson(w, http.StatusOK, formations)
}

func (s *TacticsApp) deleteFormation(w http.ResponseWriter, r *http.Request) {
	owner, ok := accountId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	id, ok := queryInt(r, "id")
	if !ok {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if err := s.db.DeleteFormation(id, owner); err != nil {
		s.writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *TacticsApp) listArchives(w http.ResponseWriter, r *http.Request) {
	roomId := strings.TrimSpace(r.URL.Query().Get("room_id"))
	if roomId == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	archives, err := s.db.ListRoomArchives(roomId)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJson(w, http.StatusOK, archives)
}

func (s *TacticsApp) serveWs(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				// non-browser clients
				return true
			}

			return slices.Contains(s.allowedOrigins, origin)
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Println("error upgrading connection:", err)
		return
	}

	client := server.NewClient(conn, s.store, s.log)

	s.store.RegisterClient(client)
	go client.Write()
	go client.Read()
}

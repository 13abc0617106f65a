package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/npezzotti/tactics-board/internal/auth"
	"github.com/npezzotti/tactics-board/internal/config"
	"github.com/npezzotti/tactics-board/internal/database"
	"github.com/npezzotti/tactics-board/internal/server"
	"github.com/npezzotti/tactics-board/internal/stats"
	"github.com/npezzotti/tactics-board/internal/testutil"
	"github.com/npezzotti/tactics-board/internal/types"
	"github.com/stretchr/testify/mock"
)

var (
	testSigningKey = []byte("test-signing-key")
	testOrigin     = "http://localhost:3000"

	coach  = types.Identity{UserId: "1", Name: "pep", Role: types.RoleCoach}
	rival  = types.Identity{UserId: "2", Name: "jose", Role: types.RoleCoach}
	viewer = types.Identity{UserId: "3", Name: "fan", Role: types.RoleViewer}
)

// newTestApp wires an app to the mock repository and a running room
// store that is shut down with the test.
func newTestApp(t *testing.T, repo database.TacticsRepository) *TacticsApp {
	t.Helper()

	su := &stats.MockStatsUpdater{}
	su.On("RegisterMetric", mock.Anything).Return()
	su.On("Incr", mock.Anything).Return().Maybe()
	su.On("Decr", mock.Anything).Return().Maybe()

	jwt := auth.NewJWT(testSigningKey)
	store, err := server.NewRoomStore(testutil.TestLogger(t), su, server.StoreConfig{Verifier: jwt})
	if err != nil {
		t.Fatalf("failed to create room store: %v", err)
	}
	go store.Run()

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := store.Shutdown(ctx); err != nil {
			t.Errorf("room store shutdown: %v", err)
		}
	})

	return NewTacticsApp(http.NewServeMux(), testutil.TestLogger(t), store, repo, jwt, &config.Config{
		ServerAddr:     ":0",
		AllowedOrigins: []string{testOrigin},
	})
}

func signToken(t *testing.T, app *TacticsApp, id types.Identity) string {
	t.Helper()

	token, err := app.jwt.Sign(id, time.Hour)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return token
}

// do sends the request through the full handler chain.
func do(app *TacticsApp, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	app.mux.Handler.ServeHTTP(rr, req)
	return rr
}

func newRequest(t *testing.T, method, target string, body any, id *types.Identity, app *TacticsApp) *http.Request {
	t.Helper()

	buf := &bytes.Buffer{}
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		if err := json.NewEncoder(buf).Encode(b); err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
	}

	req := httptest.NewRequest(method, target, buf)
	req.Header.Set("Content-Type", "application/json")
	if id != nil {
		req.Header.Set("Authorization", "Bearer "+signToken(t, app, *id))
	}
	return req
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	if err := json.NewDecoder(rr.Body).Decode(&v); err != nil {
		t.Fatalf("failed to decode response %q: %v", rr.Body.String(), err)
	}
	return v
}

// findCookie returns the named cookie set on the response, or nil.
func findCookie(rr *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, cookie := range rr.Result().Cookies() {
		if cookie.Name == name {
			return cookie
		}
	}
	return nil
}

func testFormation() types.Formation {
	return types.Formation{
		Name: "4-4-2",
		Players: []types.PlayerPosition{
			{Id: "p1", Number: 9, Position: "ST", X: 40, Y: 15},
			{Id: "p2", Number: 1, Position: "GK", X: 50, Y: 95},
		},
	}
}

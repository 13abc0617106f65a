package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/npezzotti/tactics-board/internal/database"
	"github.com/npezzotti/tactics-board/internal/types"
	"golang.org/x/crypto/bcrypt"
)

var (
	defaultExp     = time.Hour * 24
	tokenCookieKey = "token"
)

type contextKey string

const identityKey contextKey = "identity"

func WithIdentity(ctx context.Context, id types.Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

func IdentityFrom(ctx context.Context) (types.Identity, bool) {
	id, ok := ctx.Value(identityKey).(types.Identity)
	return id, ok
}

// accountId returns the numeric account id behind the request identity.
func accountId(ctx context.Context) (int, bool) {
	id, ok := IdentityFrom(ctx)
	if !ok {
		return 0, false
	}

	n, err := strconv.Atoi(id.UserId)
	if err != nil {
		return 0, false
	}
	return n, true
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Username string `json:"username" validate:"required,max=64"`
	Password string `json:"password" validate:"required,min=8"`
	Role     string `json:"role" validate:"omitempty,oneof=coach analyst assistant viewer"`
}

type LoginResponse struct {
	User  types.User `json:"user"`
	Token string     `json:"token"`
}

func (s *TacticsApp) createAccount(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	req.Email = strings.TrimSpace(req.Email)
	req.Username = strings.TrimSpace(req.Username)
	if err := types.ValidateRequest(req); err != nil {
		errResp := errorFor(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	role := types.RoleCoach
	if req.Role != "" {
		role, _ = types.ParseRole(req.Role)
	}

	pwdHash, err := hashPassword(req.Password)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	account, err := s.db.CreateAccount(database.CreateAccountParams{
		Username:     req.Username,
		EmailAddress: req.Email,
		Role:         role,
		PasswordHash: pwdHash,
	})
	if err != nil {
		errResp := errorFor(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusCreated, account.User())
}

func (s *TacticsApp) session(w http.ResponseWriter, r *http.Request) {
	id, ok := accountId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	account, err := s.db.GetAccountById(id)
	if err != nil {
		errResp := errorFor(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, account.User())
}

func (s *TacticsApp) login(w http.ResponseWriter, r *http.Request) {
	var lr LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&lr); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if err := types.ValidateRequest(lr); err != nil {
		errResp := errorFor(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	account, err := s.db.GetAccountByEmail(lr.Email)
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, types.ErrNotFound) {
			// same answer as a wrong password
			errResp = NewUnauthorizedError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if !verifyPassword(account.PasswordHash, lr.Password) {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	user := account.User()
	token, err := s.jwt.Sign(types.Identity{
		UserId: strconv.Itoa(user.Id),
		Name:   user.Username,
		Role:   user.Role,
	}, defaultExp)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	http.SetCookie(w, createJwtCookie(token, defaultExp))

	s.writeJson(w, http.StatusOK, LoginResponse{User: user, Token: token})
}

func createJwtCookie(tokenString string, exp time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     tokenCookieKey,
		Value:    tokenString,
		Path:     "/",
		Expires:  time.Now().Add(exp),
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	}
}

func (s *TacticsApp) logout(w http.ResponseWriter, _ *http.Request) {
	// overwrite the cookie with an already expired one
	c := createJwtCookie("", 0)
	c.Expires = time.Unix(0, 0)
	c.MaxAge = -1
	http.SetCookie(w, c)
	w.WriteHeader(http.StatusNoContent)
}

func hashPassword(passwd string) (string, error) {
	passwdHash, err := bcrypt.GenerateFromPassword([]byte(passwd), bcrypt.DefaultCost)
	return string(passwdHash), err
}

func verifyPassword(passwdHash, passwd string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(passwdHash), []byte(passwd))
	return err == nil
}

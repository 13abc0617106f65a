// Package auth issues and verifies the bearer tokens presented by
// websocket and HTTP clients.
package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/npezzotti/tactics-board/internal/types"
)

const (
	subClaim  = "sub"
	nameClaim = "name"
	roleClaim = "role"
	expClaim  = "exp"
)

// TokenVerifier resolves a bearer token to the identity it was issued for.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (types.Identity, error)
}

type JWT struct {
	signingKey []byte
}

func NewJWT(signingKey []byte) *JWT {
	return &JWT{signingKey: signingKey}
}

// Sign creates an HS256 token for the identity that expires after exp.
func (j *JWT) Sign(id types.Identity, exp time.Duration) (string, error) {
	if id.UserId == "" {
		return "", fmt.Errorf("empty user id")
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		subClaim:  id.UserId,
		nameClaim: id.Name,
		roleClaim: string(id.Role),
		expClaim:  time.Now().Add(exp).Unix(),
	})

	return token.SignedString(j.signingKey)
}

// Verify parses the token, with or without a "Bearer " prefix. Unknown
// role claims degrade to viewer.
func (j *JWT) Verify(_ context.Context, tokenString string) (types.Identity, error) {
	tokenString = strings.TrimSpace(strings.TrimPrefix(tokenString, "Bearer "))
	if tokenString == "" {
		return types.Identity{}, fmt.Errorf("%w: missing token", types.ErrUnauthenticated)
	}

	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return j.signingKey, nil
	})
	if err != nil {
		return types.Identity{}, fmt.Errorf("%w: parse token: %v", types.ErrUnauthenticated, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return types.Identity{}, fmt.Errorf("%w: invalid token", types.ErrUnauthenticated)
	}

	sub, _ := claims[subClaim].(string)
	if sub == "" {
		return types.Identity{}, fmt.Errorf("%w: missing subject claim", types.ErrUnauthenticated)
	}

	name, _ := claims[nameClaim].(string)
	roleClaimValue, _ := claims[roleClaim].(string)
	role, ok := types.ParseRole(roleClaimValue)
	if !ok {
		role = types.RoleViewer
	}

	return types.Identity{UserId: sub, Name: name, Role: role}, nil
}

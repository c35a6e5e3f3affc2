// Package auth verifies bearer tokens for the websocket authenticate event.
// Verification failures never hard-fail the connection; callers fall back
// to an anonymous identity.
package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v4"

	"github.com/promptdeck/promptdeck/internal/domain"
)

var (
	ErrEmptyToken    = errors.New("empty token")
	ErrInvalidToken  = errors.New("invalid token")
	ErrMissingUserID = errors.New("token carries no user id")
)

type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) (*Verifier, error) {
	if secret == "" {
		return nil, errors.New("jwt secret cannot be empty")
	}
	return &Verifier{secret: []byte(secret)}, nil
}

// Verify parses an HMAC-signed token and returns the identity it names.
// Accepted id claims, in order: "sub", "user_id". "email" is optional.
func (v *Verifier) Verify(tokenStr string) (*domain.User, error) {
	if tokenStr == "" {
		return nil, ErrEmptyToken
	}

	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return v.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	uid := stringClaim(claims, "sub")
	if uid == "" {
		uid = stringClaim(claims, "user_id")
	}
	if uid == "" {
		return nil, ErrMissingUserID
	}
	if len(uid) > domain.MaxUserIDLen {
		uid = uid[:domain.MaxUserIDLen]
	}

	return domain.NewUser(domain.UserID(uid), stringClaim(claims, "email"))
}

func stringClaim(claims jwt.MapClaims, key string) string {
	if v, ok := claims[key].(string); ok {
		return v
	}
	return ""
}

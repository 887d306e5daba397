package http

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"eloquence-server-go/internal/platform/errors"
)

// TokenIssuer mints and verifies the short-lived tokens that authorize
// a client to open the websocket for one session.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
}

func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &TokenIssuer{secret: []byte(secret), ttl: ttl}
}

type sessionClaims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// Mint issues a token bound to one session.
func (t *TokenIssuer) Mint(sessionID string) (string, error) {
	now := time.Now()
	claims := sessionClaims{
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "eloquence",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", errors.Wrap(errors.KindInternal, "token.mint", "sign token", err)
	}
	return signed, nil
}

// Verify checks the token and returns the session it authorizes.
func (t *TokenIssuer) Verify(raw string) (string, error) {
	const op = "token.verify"

	var claims sessionClaims
	token, err := jwt.ParseWithClaims(raw, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return t.secret, nil
	})
	if err != nil {
		return "", errors.Wrap(errors.KindAuth, op, "invalid token", err)
	}
	if !token.Valid || claims.SessionID == "" {
		return "", errors.New(errors.KindAuth, op, "invalid token claims")
	}
	return claims.SessionID, nil
}

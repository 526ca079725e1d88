package auth

import (
	"fmt"
	"quiz-lab/domain"
	"quiz-lab/errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "quiz-lab"

// CustomClaims is what a caller token carries about its bearer.
type CustomClaims struct {
	PlayerID string `json:"player_id"`
	Name     string `json:"name"`
	IsHost   bool   `json:"is_host"`
	jwt.RegisteredClaims
}

// Tokens issues and resolves caller tokens signed with HS256.
type Tokens struct {
	secret   []byte
	duration time.Duration
	now      func() time.Time
}

func NewTokens(secret string, duration time.Duration) *Tokens {
	return &Tokens{secret: []byte(secret), duration: duration, now: time.Now}
}

// GenerateToken creates a signed token for id.
func (t *Tokens) GenerateToken(id domain.Identity) (string, error) {
	now := t.now()
	claims := &CustomClaims{
		PlayerID: string(id.ID),
		Name:     id.Name,
		IsHost:   id.IsHost,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   string(id.ID),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.duration)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// Resolve validates the signature and expiry of a token and returns the
// identity it was issued for.
func (t *Tokens) Resolve(tokenString string) (domain.Identity, error) {
	token, err := jwt.ParseWithClaims(tokenString, &CustomClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return t.secret, nil
	}, jwt.WithIssuer(issuer), jwt.WithTimeFunc(t.now))
	if err != nil {
		return domain.Identity{}, fmt.Errorf("%w: %v", errors.ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*CustomClaims)
	if !ok || !token.Valid || claims.PlayerID == "" {
		return domain.Identity{}, errors.ErrInvalidToken
	}
	return domain.Identity{ID: domain.PlayerID(claims.PlayerID), Name: claims.Name, IsHost: claims.IsHost}, nil
}

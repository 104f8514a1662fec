package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrWrongGame means the token is valid but was issued for another game.
var ErrWrongGame = errors.New("token issued for another game")

// Claims bind a player token to the game it was issued with.
type Claims struct {
	GameID string `json:"gid"`
	jwt.RegisteredClaims
}

func Sign(secret []byte, gameID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		GameID: gameID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  gameID,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if ttl != 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(secret)
}

func Verify(secret []byte, token string) (*Claims, error) {
	t, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}

	claims, ok := t.Claims.(*Claims)
	if !ok || !t.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

// VerifyForGame checks the token and that it belongs to gameID.
func VerifyForGame(secret []byte, token, gameID string) error {
	claims, err := Verify(secret, token)
	if err != nil {
		return err
	}
	if claims.GameID != gameID {
		return ErrWrongGame
	}
	return nil
}

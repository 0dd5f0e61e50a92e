package auth

import (
	"errors"
	"fmt"
	"time"

	"chat-relay/internal/relay"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

// TokenService issues and verifies the signed credentials carried in the
// `token` cookie. It is the verification collaborator behind the relay's
// identity binder.
type TokenService struct {
	secret []byte
	expire time.Duration
}

func NewTokenService(secret string, expire time.Duration) *TokenService {
	return &TokenService{secret: []byte(secret), expire: expire}
}

// Issue mints a credential for an authenticated user.
func (s *TokenService) Issue(userID, username string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"userId":   userID,
		"username": username,
		"exp":      time.Now().Add(s.expire).Unix(),
	})

	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks a credential and resolves the identity it was issued for.
func (s *TokenService) Verify(tokenString string) (relay.Identity, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return relay.Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return relay.Identity{}, fmt.Errorf("%w: unexpected claims type", ErrInvalidToken)
	}

	userID, ok := claims["userId"].(string)
	if !ok || userID == "" {
		return relay.Identity{}, fmt.Errorf("%w: missing userId claim", ErrInvalidToken)
	}
	username, _ := claims["username"].(string)

	return relay.Identity{UserID: userID, Username: username}, nil
}

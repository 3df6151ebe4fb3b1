package httpapi

import (
	"errors"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"orderdesk/backend/internal/domain"
)

// AuthParser verifies bearer tokens issued by the identity service. This
// server never mints tokens itself; it only checks the signature and claims.
type AuthParser struct {
	secret []byte
}

type backofficeClaims struct {
	jwtlib.RegisteredClaims
	Role string `json:"role"`
}

func NewAuthParser(secret string) *AuthParser {
	if secret == "" {
		secret = "dev-change-me"
	}
	return &AuthParser{secret: []byte(secret)}
}

func (a *AuthParser) ParseToken(tokenStr string) (domain.Actor, error) {
	claims := &backofficeClaims{}
	token, err := jwtlib.ParseWithClaims(tokenStr, claims, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	}, jwtlib.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return domain.Actor{}, errors.New("invalid or expired token")
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return domain.Actor{}, errors.New("token missing subject")
	}
	if claims.Role == "" {
		return domain.Actor{}, errors.New("token missing role")
	}

	return domain.Actor{Username: sub, Role: claims.Role}, nil
}

package httpapi

import (
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

func signClaims(t *testing.T, secret string, method jwtlib.SigningMethod, claims jwtlib.Claims) string {
	t.Helper()
	token, err := jwtlib.NewWithClaims(method, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return token
}

func TestParseTokenAcceptsValidToken(t *testing.T) {
	parser := NewAuthParser("secret-a")
	token := signClaims(t, "secret-a", jwtlib.SigningMethodHS256, backofficeClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   "ops-user",
			ExpiresAt: jwtlib.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Role: "backoffice",
	})

	actor, err := parser.ParseToken(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if actor.Username != "ops-user" || actor.Role != "backoffice" {
		t.Fatalf("unexpected actor %+v", actor)
	}
}

func TestParseTokenRejections(t *testing.T) {
	parser := NewAuthParser("secret-a")

	expired := signClaims(t, "secret-a", jwtlib.SigningMethodHS256, backofficeClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   "ops-user",
			ExpiresAt: jwtlib.NewNumericDate(time.Now().Add(-time.Hour)),
		},
		Role: "backoffice",
	})
	if _, err := parser.ParseToken(expired); err == nil {
		t.Fatalf("expected expired token to fail")
	}

	wrongKey := signClaims(t, "secret-b", jwtlib.SigningMethodHS256, backofficeClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   "ops-user",
			ExpiresAt: jwtlib.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Role: "backoffice",
	})
	if _, err := parser.ParseToken(wrongKey); err == nil {
		t.Fatalf("expected wrong-key token to fail")
	}

	noRole := signClaims(t, "secret-a", jwtlib.SigningMethodHS256, jwtlib.RegisteredClaims{
		Subject:   "ops-user",
		ExpiresAt: jwtlib.NewNumericDate(time.Now().Add(time.Hour)),
	})
	if _, err := parser.ParseToken(noRole); err == nil {
		t.Fatalf("expected token without role to fail")
	}

	noSubject := signClaims(t, "secret-a", jwtlib.SigningMethodHS256, backofficeClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			ExpiresAt: jwtlib.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Role: "backoffice",
	})
	if _, err := parser.ParseToken(noSubject); err == nil {
		t.Fatalf("expected token without subject to fail")
	}

	if _, err := parser.ParseToken("not-a-token"); err == nil {
		t.Fatalf("expected garbage token to fail")
	}
}

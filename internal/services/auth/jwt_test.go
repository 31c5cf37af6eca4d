package auth

import (
	"errors"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

func TestJWTManagerRoundTripCarriesRole(t *testing.T) {
	m := NewJWTManager("secret", time.Minute)

	raw, expiresAt, err := m.GenerateAccessToken("u1", "sid-1", "moderator")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	claims, err := m.ParseAccessToken(raw)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if claims.UserID != "u1" || claims.SID != "sid-1" || claims.Role != "moderator" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if !claims.ExpiresAt.Equal(expiresAt.Truncate(time.Second)) {
		t.Fatalf("unexpected expiry: got %v want %v", claims.ExpiresAt, expiresAt)
	}
}

func TestJWTManagerRejectsForeignIssuer(t *testing.T) {
	m := NewJWTManager("secret", time.Minute)
	now := time.Now()

	foreign := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims{
		SID: "sid-1",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "someone-else",
			Subject:   "u1",
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute)),
		},
	})
	raw, err := foreign.SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	if _, err := m.ParseAccessToken(raw); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("foreign issuer: got %v want %v", err, ErrUnauthorized)
	}

	other := NewJWTManager("other-secret", time.Minute)
	raw, _, err = other.GenerateAccessToken("u1", "sid-1", "user")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	if _, err := m.ParseAccessToken(raw); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("wrong secret: got %v want %v", err, ErrUnauthorized)
	}
}

package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testJWTSecret = "holder-token-test-secret"

func newTokenService(clock *fixedClock) *JWTTokenService {
	return NewJWTTokenService(testJWTSecret, time.Hour, "nie-test").WithClock(clock)
}

func TestJWTTokenService_RoundTrip(t *testing.T) {
	clock := &fixedClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	svc := newTokenService(clock)

	token, expires, err := svc.Generate("alice")
	require.NoError(t, err)
	assert.Equal(t, clock.now.Add(time.Hour), expires)

	claims, err := svc.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Account)

	_, _, err = svc.Generate("")
	assert.Error(t, err)
}

func TestJWTTokenService_ExpiryFollowsClock(t *testing.T) {
	clock := &fixedClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	svc := newTokenService(clock)

	token, _, err := svc.Generate("alice")
	require.NoError(t, err)

	clock.Set(clock.Now().Add(59 * time.Minute))
	_, err = svc.Validate(token)
	require.NoError(t, err)

	clock.Set(clock.Now().Add(2 * time.Minute))
	_, err = svc.Validate(token)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestJWTTokenService_Rejects(t *testing.T) {
	clock := &fixedClock{now: time.Now()}
	svc := newTokenService(clock)

	sign := func(method jwt.SigningMethod, key any, claims jwt.Claims) string {
		t.Helper()
		s, err := jwt.NewWithClaims(method, claims).SignedString(key)
		require.NoError(t, err)
		return s
	}
	valid := func(scope, sub, iss string) holderClaims {
		return holderClaims{
			Scope: scope,
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   sub,
				Issuer:    iss,
				ExpiresAt: jwt.NewNumericDate(clock.now.Add(time.Hour)),
			},
		}
	}

	otherIssuer, _, err := NewJWTTokenService(testJWTSecret, time.Hour, "someone-else").Generate("alice")
	require.NoError(t, err)
	otherSecret, _, err := NewJWTTokenService("different", time.Hour, "nie-test").Generate("alice")
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not.a.jwt"},
		{"other issuer", otherIssuer},
		{"other secret", otherSecret},
		{"wrong scope", sign(jwt.SigningMethodHS256, []byte(testJWTSecret), valid("admin", "alice", "nie-test"))},
		{"no subject", sign(jwt.SigningMethodHS256, []byte(testJWTSecret), valid(holderScope, "", "nie-test"))},
		{"hs512", sign(jwt.SigningMethodHS512, []byte(testJWTSecret), valid(holderScope, "alice", "nie-test"))},
		{"no expiry", sign(jwt.SigningMethodHS256, []byte(testJWTSecret), holderClaims{
			Scope:            holderScope,
			RegisteredClaims: jwt.RegisteredClaims{Subject: "alice", Issuer: "nie-test"},
		})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Validate(tt.token)
			assert.Error(t, err)
		})
	}
}

package service

import (
	"errors"
	"fmt"
	"time"

	"note-issuance-engine/internal/core/ports"

	"github.com/golang-jwt/jwt/v5"
)

// holderScope is the only scope a holder token carries.
const holderScope = "note:redeem"

type holderClaims struct {
	Scope string `json:"scope"`
	jwt.RegisteredClaims
}

// JWTTokenService issues and checks HS256 bearer tokens for note holders.
type JWTTokenService struct {
	secret []byte
	expiry time.Duration
	issuer string
	clock  ports.Clock
}

func NewJWTTokenService(secret string, expiry time.Duration, issuer string) *JWTTokenService {
	return &JWTTokenService{
		secret: []byte(secret),
		expiry: expiry,
		issuer: issuer,
		clock:  SystemClock{},
	}
}

// WithClock replaces the time source used for issuing and checking tokens.
func (s *JWTTokenService) WithClock(clock ports.Clock) *JWTTokenService {
	s.clock = clock
	return s
}

// Generate signs a token whose subject is the holder account.
func (s *JWTTokenService) Generate(account string) (string, time.Time, error) {
	if account == "" {
		return "", time.Time{}, errors.New("empty account")
	}

	issued := s.clock.Now().Truncate(time.Second)
	expires := issued.Add(s.expiry)

	claims := holderClaims{
		Scope: holderScope,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   account,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(issued),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing holder token: %w", err)
	}
	return signed, expires, nil
}

// Validate checks signature, issuer, expiry and scope.
func (s *JWTTokenService) Validate(tokenString string) (*ports.TokenClaims, error) {
	var claims holderClaims
	_, err := jwt.ParseWithClaims(tokenString, &claims,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.clock.Now),
	)
	if err != nil {
		return nil, fmt.Errorf("parsing holder token: %w", err)
	}

	if claims.Scope != holderScope {
		return nil, fmt.Errorf("unexpected scope %q", claims.Scope)
	}
	if claims.Subject == "" {
		return nil, errors.New("missing subject claim")
	}
	return &ports.TokenClaims{Account: claims.Subject}, nil
}

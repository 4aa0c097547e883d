package identity

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/CodehubPriyanshu/taskhub-central-sub000/internal/guard"
	"github.com/CodehubPriyanshu/taskhub-central-sub000/pkg/models"
)

const tokenIssuer = "taskhub"

// Claims carried by API tokens.
type Claims struct {
	Role   string `json:"role"`
	TeamID string `json:"team_id,omitempty"`
	jwt.RegisteredClaims
}

// IssueToken signs an HS256 token for m, valid for ttl from now.
func IssueToken(secret []byte, m models.Member, ttl time.Duration, now time.Time) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("jwt secret is empty")
	}
	if err := Validate(m); err != nil {
		return "", err
	}
	claims := Claims{
		Role:   string(m.Role),
		TeamID: m.TeamID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   m.ID,
			Issuer:    tokenIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// VerifyToken parses and validates raw, returning the actor it names.
func VerifyToken(secret []byte, raw string) (guard.Actor, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(tokenIssuer), jwt.WithExpirationRequired())
	if err != nil {
		return guard.Actor{}, fmt.Errorf("invalid token: %w", err)
	}
	a := guard.Actor{ID: claims.Subject, Role: models.Role(claims.Role), TeamID: claims.TeamID}
	if a.ID == "" || !a.Role.Valid() {
		return guard.Actor{}, errors.New("invalid token: missing subject or role")
	}
	return a, nil
}

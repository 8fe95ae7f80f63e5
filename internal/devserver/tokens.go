package devserver

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "lexnova-dev"

// Issuer mints and verifies HS256 tokens.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewIssuer creates an Issuer signing with secret.
func NewIssuer(secret string) *Issuer {
	return &Issuer{secret: []byte(secret), ttl: 24 * time.Hour, now: time.Now}
}

// AccessToken mints a lawyer bearer token.
func (i *Issuer) AccessToken(userID string) (string, error) {
	now := i.now()
	claims := jwt.MapClaims{
		"iss": issuer,
		"sub": userID,
		"typ": "access",
		"iat": now.Unix(),
		"exp": now.Add(i.ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
}

// JoinToken mints a room token in the LiveKit claim layout: identity in
// sub, the room grant under video, and the role in the metadata string.
func (i *Issuer) JoinToken(room, identity, name, role string) (string, error) {
	metadata, err := json.Marshal(map[string]string{"role": role})
	if err != nil {
		return "", err
	}
	now := i.now()
	claims := jwt.MapClaims{
		"iss":      issuer,
		"sub":      identity,
		"name":     name,
		"metadata": string(metadata),
		"video": map[string]any{
			"room":     room,
			"roomJoin": true,
		},
		"nbf": now.Unix(),
		"exp": now.Add(i.ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
}

// Verify checks the signature and expiry of token and returns its claims.
func (i *Issuer) Verify(token string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return nil, fmt.Errorf("verify token: %w", err)
	}
	return claims, nil
}

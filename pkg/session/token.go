// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-passkey.
//
// go-passkey is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package session

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenGenerator mints bearer JWTs for API clients. The JWT wraps a
// server-side session token in the "sid" claim, so revoking the session
// invalidates the bearer token as well.
type TokenGenerator struct {
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey
	issuer     string
	audience   []string
	expiresIn  time.Duration
}

// TokenGeneratorConfig contains configuration for the token generator.
type TokenGeneratorConfig struct {
	// PrivateKey signs tokens. Generated when nil.
	PrivateKey ed25519.PrivateKey
	// Issuer is the JWT issuer claim (default: "go-passkey")
	Issuer string
	// Audience is the JWT audience claim (default: ["go-passkey"])
	Audience []string
	// ExpiresIn is how long tokens are valid (default: 1 hour)
	ExpiresIn time.Duration
}

// NewTokenGenerator creates a new bearer token generator.
func NewTokenGenerator(config *TokenGeneratorConfig) (*TokenGenerator, error) {
	if config == nil {
		config = &TokenGeneratorConfig{}
	}

	privateKey := config.PrivateKey
	if privateKey == nil {
		_, key, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("failed to generate signing key: %w", err)
		}
		privateKey = key
	}

	issuer := config.Issuer
	if issuer == "" {
		issuer = "go-passkey"
	}

	audience := config.Audience
	if len(audience) == 0 {
		audience = []string{"go-passkey"}
	}

	expiresIn := config.ExpiresIn
	if expiresIn == 0 {
		expiresIn = time.Hour
	}

	return &TokenGenerator{
		privateKey: privateKey,
		publicKey:  privateKey.Public().(ed25519.PublicKey),
		issuer:     issuer,
		audience:   audience,
		expiresIn:  expiresIn,
	}, nil
}

// Generate creates a bearer JWT wrapping the given session.
func (g *TokenGenerator) Generate(session *Session) (string, error) {
	if session == nil {
		return "", fmt.Errorf("session is required")
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"iss": g.issuer,
		"aud": g.audience,
		"sub": session.AccountID,
		"sid": session.Token,
		"iat": now.Unix(),
		"exp": now.Add(g.expiresIn).Unix(),
		"nbf": now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	return token.SignedString(g.privateKey)
}

// Verify checks a bearer JWT and returns the session token it wraps.
// The caller must still resolve the session token against the store.
func (g *TokenGenerator) Verify(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return g.publicKey, nil
	},
		jwt.WithIssuer(g.issuer),
		jwt.WithAudience(g.audience[0]),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return "", fmt.Errorf("token verification failed: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("invalid claims type")
	}
	sid, ok := claims["sid"].(string)
	if !ok || sid == "" {
		return "", fmt.Errorf("token missing session claim")
	}
	return sid, nil
}

// PublicKey returns the verification key.
func (g *TokenGenerator) PublicKey() ed25519.PublicKey {
	return g.publicKey
}

// ExpiresIn returns the token expiration duration.
func (g *TokenGenerator) ExpiresIn() time.Duration {
	return g.expiresIn
}

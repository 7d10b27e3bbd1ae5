package jwtinfra

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-pregnancy-family/internal/config"
	"github.com/go-pregnancy-family/internal/domain"
	"github.com/golang-jwt/jwt/v5"
)

// Issuer is stamped on every access token and required on verification.
const Issuer = "pregnancy-family"

// clockSkew tolerated on exp and iat between API instances.
const clockSkew = 30 * time.Second

// Claims is the access-token payload. The session id doubles as the JWT id.
type Claims struct {
	UserID    string `json:"uid"`
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// Provider signs and verifies RS256 access tokens.
type Provider struct {
	signKey   *rsa.PrivateKey
	verifyKey *rsa.PublicKey
	now       func() time.Time
}

func NewProvider(cfg *config.Config) (*Provider, error) {
	signKey, err := loadKey(cfg.JWTPrivateKeyPath, jwt.ParseRSAPrivateKeyFromPEM)
	if err != nil {
		return nil, fmt.Errorf("private key: %w", err)
	}
	verifyKey, err := loadKey(cfg.JWTPublicKeyPath, jwt.ParseRSAPublicKeyFromPEM)
	if err != nil {
		return nil, fmt.Errorf("public key: %w", err)
	}
	if signKey.PublicKey.N.Cmp(verifyKey.N) != 0 {
		return nil, errors.New("public key does not match private key")
	}
	return &Provider{signKey: signKey, verifyKey: verifyKey, now: time.Now}, nil
}

func loadKey[K any](path string, parse func([]byte) (K, error)) (K, error) {
	var zero K
	raw, err := os.ReadFile(path)
	if err != nil {
		return zero, err
	}
	key, err := parse(raw)
	if err != nil {
		return zero, fmt.Errorf("parse %s: %w", path, err)
	}
	return key, nil
}

// Sign issues a token for the session that expires at expiresAt.
func (p *Provider) Sign(userID, sessionID string, expiresAt time.Time) (string, error) {
	claims := Claims{
		UserID:    userID,
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   userID,
			ID:        sessionID,
			IssuedAt:  jwt.NewNumericDate(p.now()),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(p.signKey)
}

// Verify checks signature, issuer and expiry. An expired token wraps domain.ErrExpired;
// every other failure wraps domain.ErrUnauthorized.
func (p *Provider) Verify(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (interface{}, error) {
		return p.verifyKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(clockSkew),
		jwt.WithTimeFunc(p.now),
	)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, fmt.Errorf("verify token: %w", domain.ErrExpired)
	case err != nil:
		return nil, fmt.Errorf("verify token: %v: %w", err, domain.ErrUnauthorized)
	case claims.UserID == "" || claims.SessionID == "" || claims.Subject != claims.UserID:
		return nil, fmt.Errorf("verify token: incomplete claims: %w", domain.ErrUnauthorized)
	}
	return claims, nil
}

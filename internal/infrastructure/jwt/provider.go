package jwtinfra

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lab-access-api/internal/config"
)

// Claims is the payload of a signed activity token. The lab platform signs
// one per published activity; visitors present it to request a verification
// code, so this service mostly verifies.
type Claims struct {
	ActivityID string `json:"activity_id"`
	jwt.RegisteredClaims
}

// Provider signs and verifies RS256 activity tokens.
type Provider struct {
	privateKey *rsa.PrivateKey // nil on verify-only instances
	publicKey  *rsa.PublicKey
}

func NewProvider(cfg *config.Config) (*Provider, error) {
	pubBytes, err := os.ReadFile(cfg.ActivityTokenPublicKeyPath)
	if err != nil {
		return nil, fmt.Errorf("read public key: %w", err)
	}
	pubKey, err := jwt.ParseRSAPublicKeyFromPEM(pubBytes)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}

	p := &Provider{publicKey: pubKey}
	if cfg.ActivityTokenPrivateKeyPath != "" {
		privBytes, err := os.ReadFile(cfg.ActivityTokenPrivateKeyPath)
		if err != nil {
			return nil, fmt.Errorf("read private key: %w", err)
		}
		privKey, err := jwt.ParseRSAPrivateKeyFromPEM(privBytes)
		if err != nil {
			return nil, fmt.Errorf("parse private key: %w", err)
		}
		p.privateKey = privKey
	}
	return p, nil
}

// NewProviderFromKeys builds a provider from in-memory keys; tests use it.
func NewProviderFromKeys(privateKey *rsa.PrivateKey, publicKey *rsa.PublicKey) *Provider {
	return &Provider{privateKey: privateKey, publicKey: publicKey}
}

// Sign issues an activity token valid until expiresAt.
func (p *Provider) Sign(activityID string, expiresAt time.Time) (string, error) {
	if p.privateKey == nil {
		return "", errors.New("provider has no signing key")
	}
	claims := Claims{
		ActivityID: activityID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	return token.SignedString(p.privateKey)
}

func (p *Provider) Verify(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return p.publicKey, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}

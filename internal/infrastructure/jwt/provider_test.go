package jwtinfra

import (
	"crypto/rand"
	"crypto/rsa"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProvider(t *testing.T) *Provider {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return NewProviderFromKeys(key, &key.PublicKey)
}

func TestSignAndVerify(t *testing.T) {
	p := newTestProvider(t)

	tok, err := p.Sign("act-1", time.Now().Add(time.Hour))
	require.NoError(t, err)

	claims, err := p.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, "act-1", claims.ActivityID)
}

func TestVerify_ExpiredToken(t *testing.T) {
	p := newTestProvider(t)

	tok, err := p.Sign("act-1", time.Now().Add(-time.Minute))
	require.NoError(t, err)

	_, err = p.Verify(tok)
	assert.Error(t, err)
}

func TestVerify_ForeignKeyRejected(t *testing.T) {
	signer := newTestProvider(t)
	verifier := newTestProvider(t)

	tok, err := signer.Sign("act-1", time.Now().Add(time.Hour))
	require.NoError(t, err)

	_, err = verifier.Verify(tok)
	assert.Error(t, err)
}

func TestSign_VerifyOnlyProvider(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	p := NewProviderFromKeys(nil, &key.PublicKey)

	_, err = p.Sign("act-1", time.Now().Add(time.Hour))
	assert.Error(t, err)
}

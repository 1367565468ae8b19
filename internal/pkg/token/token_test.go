package token

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCode_SixDigits(t *testing.T) {
	re := regexp.MustCompile(`^\d{6}$`)
	for i := 0; i < 50; i++ {
		code, err := NewCode()
		require.NoError(t, err)
		assert.Regexp(t, re, code)
	}
}

func TestNewDesktopToken_ShortAlphanumeric(t *testing.T) {
	tok, err := NewDesktopToken()
	require.NoError(t, err)
	assert.Len(t, tok, DesktopTokenLength)
	assert.Regexp(t, `^[a-zA-Z0-9]+$`, tok)
}

func TestNewAppToken_Hex(t *testing.T) {
	tok, err := NewAppToken()
	require.NoError(t, err)
	assert.Len(t, tok, 64)
	assert.Regexp(t, `^[0-9a-f]+$`, tok)
}

func TestNewUploadID_EmbedsActivityAndRutFragment(t *testing.T) {
	uid := NewUploadID("lab-3", "11.111.111-1")
	assert.True(t, strings.HasPrefix(uid, "lab-3-11111111-"))
}

func TestNewUploadID_UniquePerCall(t *testing.T) {
	a := NewUploadID("lab-3", "11111111-1")
	b := NewUploadID("lab-3", "11111111-1")
	assert.NotEqual(t, a, b)
}

func TestRutFragment_SanitizesAndTruncates(t *testing.T) {
	assert.Equal(t, "11111111", rutFragment("11.111.111-1"))
	assert.Equal(t, "12345678", rutFragment("12.345.678-K"))
	assert.Equal(t, "anon", rutFragment("---"))
}

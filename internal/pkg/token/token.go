// Package token generates the credential strings the stores hand out.
package token

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/lab-access-api/internal/pkg/id"
)

const alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// DesktopTokenLength keeps desktop tokens typeable; the small character
// space is why their validation endpoint is rate limited.
const DesktopTokenLength = 12

// NewAppToken generates a cryptographically random 64-character hex token.
func NewAppToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate app token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// NewDesktopToken generates a short alphanumeric token.
func NewDesktopToken() (string, error) {
	return randomString(DesktopTokenLength)
}

// NewCode generates a 6-digit verification code, zero-padded.
func NewCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// NewUploadID builds a globally unique upload id that stays human-debuggable:
// the activity id and a sanitized rut fragment for traceability, plus a ULID
// carrying the millisecond timestamp and random bytes for uniqueness.
func NewUploadID(activityID, rut string) string {
	return fmt.Sprintf("%s-%s-%s", activityID, rutFragment(rut), id.New())
}

// rutFragment strips non-alphanumerics from a rut, lowercases it and keeps
// at most 8 characters.
func rutFragment(rut string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(rut) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			if b.Len() == 8 {
				break
			}
		}
	}
	if b.Len() == 0 {
		return "anon"
	}
	return b.String()
}

func randomString(n int) (string, error) {
	b := make([]byte, n)
	for i := range b {
		idx, err := rand.Int(rand.Reader, big.NewInt(int64(len(alphabet))))
		if err != nil {
			return "", err
		}
		b[i] = alphabet[idx.Int64()]
	}
	return string(b), nil
}

package id

import (
	"crypto/rand"

	"github.com/oklog/ulid/v2"
)

// New generates a new ULID string. ULIDs embed a millisecond timestamp plus
// random bytes and sort lexicographically by creation time, which makes them
// safe session identifiers and traceable upload id fragments.
func New() string {
	return ulid.MustNew(ulid.Now(), rand.Reader).String()
}

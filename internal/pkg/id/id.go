package id

import (
	"crypto/rand"

	"github.com/oklog/ulid/v2"
)

// New generates a new ULID string. ULIDs are lexicographically sortable
// by creation time and safe for use as DynamoDB partition keys.
func New() string {
	return ulid.MustNew(ulid.Now(), rand.Reader).String()
}

// Generator produces entity ids. Services take one so tests can pin ids.
type Generator func() string

// Sequence returns a Generator that yields the given ids in order and then falls back to New.
func Sequence(ids ...string) Generator {
	i := 0
	return func() string {
		if i < len(ids) {
			i++
			return ids[i-1]
		}
		return New()
	}
}

package common

import (
	"bytes"
	"crypto/rand"
	"crypto/sha256"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// NewULID returns a 26 char, time ordered id.
func NewULID() (string, error) {
	id, err := ulid.New(ulid.Timestamp(time.Now()), rand.Reader)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// DerivedULID returns the same ULID for the same inputs: t is the timestamp
// part and the entropy is a hash of parts. Times before the epoch map to zero.
func DerivedULID(t time.Time, parts ...string) (string, error) {
	var ms uint64
	if t.After(time.Unix(0, 0)) {
		ms = ulid.Timestamp(t)
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	id, err := ulid.New(ms, bytes.NewReader(sum[:]))
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

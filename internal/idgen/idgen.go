// Package idgen mints job identifiers on the submitting side, before any network round-trip.
package idgen

import "github.com/google/uuid"

// NewID returns a random (v4) UUID string. It is used as the bug record's primary key.
func NewID() string {
	return uuid.NewString()
}

// Valid reports whether id looks like something NewID produced.
func Valid(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

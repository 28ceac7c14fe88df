// Package idgen provides short, human-shareable random identifiers backed by nanoid.
package idgen

import (
	"fmt"

	nanoid "github.com/matoous/go-nanoid/v2"
)

// CodePrefix is prepended to every confirmation code.
var CodePrefix = "DKP-"

// CodeAlphabet is the character set of the random part of a confirmation code.
var CodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// CodeLength is the number of random characters in a confirmation code.
var CodeLength = 6

// SessionPrefix is prepended to every reading session ID.
var SessionPrefix = "ses-"

// SessionAlphabet defines the character set used for session IDs.
var SessionAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// SessionLength is the number of random characters in a session ID.
var SessionLength = 16

// ConfirmationCode returns a fresh code such as "DKP-7QX2ZB". Each call is
// drawn uniformly at random; collisions are possible and left to the store
// to detect.
func ConfirmationCode() (string, error) {
	return generate(CodePrefix, CodeAlphabet, CodeLength)
}

// SessionID returns a new reading session identifier.
func SessionID() (string, error) {
	return generate(SessionPrefix, SessionAlphabet, SessionLength)
}

func generate(prefix, alphabet string, length int) (string, error) {
	id, err := nanoid.Generate(alphabet, length)
	if err != nil {
		return "", fmt.Errorf("idgen: %w", err)
	}
	return prefix + id, nil
}

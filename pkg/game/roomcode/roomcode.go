package roomcode

import (
	"fmt"
	"math/rand/v2"
)

const (
	// Length is the number of digits in a room code
	Length = 4
	// Space is the number of distinct codes
	Space = 10000
)

// Generate returns a random zero-padded 4-digit code, "0000" to "9999".
// Codes are not unique; callers check for collisions and retry.
func Generate() string {
	return fmt.Sprintf("%0*d", Length, rand.IntN(Space))
}

// Valid reports whether code has the room code format.
func Valid(code string) bool {
	if len(code) != Length {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}

package domain

import (
	"fmt"
	"math/rand/v2"
	"time"
)

// NewNumber returns a display number: the UTC second followed by a random
// four digit suffix. It is not unique on its own.
func NewNumber(now time.Time) string {
	return fmt.Sprintf("%s%04d", now.UTC().Format("20060102150405"), rand.IntN(10000))
}

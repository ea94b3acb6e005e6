// Package ordercode mints the short human-typable order numbers printed on
// invoices and read over the phone. Uniqueness is not checked here: the
// orders table carries a unique index on order_number, and the creation path
// regenerates on a constraint violation.
package ordercode

import (
	"crypto/rand"
	"fmt"
)

// alphabet deliberately drops 0, O and I: customers dictate these codes over
// the phone, and those three are misread too often.
const alphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZ"

// Length is the fixed size of a generated order code.
const Length = 8

type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

// Generate returns a fresh random code. With 33^8 possible values the
// collision probability at realistic order volumes is negligible, but callers
// must still be prepared to retry on an insert conflict.
func (g *Generator) Generate() (string, error) {
	buf := make([]byte, Length)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("ordercode: failed to read random bytes: %w", err)
	}

	code := make([]byte, Length)
	for i, b := range buf {
		code[i] = alphabet[int(b)%len(alphabet)]
	}
	return string(code), nil
}

// IsWellFormed reports whether s could have been produced by Generate. Used
// to validate order-number lookups before hitting the store.
func IsWellFormed(s string) bool {
	if len(s) != Length {
		return false
	}
	for _, r := range s {
		found := false
		for _, a := range alphabet {
			if r == a {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

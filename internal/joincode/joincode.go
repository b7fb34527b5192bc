// Package joincode generates the short codes students type to open an exam.
package joincode

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

// Alphabet is the fixed set of characters a join code is drawn from.
const Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// DefaultLength is the length of generated codes.
const DefaultLength = 8

const (
	minLength = 4
	maxLength = 16
)

var alphabetSize = big.NewInt(int64(len(Alphabet)))

// Generate returns a uniformly random code of length n over Alphabet.
func Generate(n int) (string, error) {
	if n < minLength || n > maxLength {
		n = DefaultLength
	}
	var b strings.Builder
	b.Grow(n)
	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, alphabetSize)
		if err != nil {
			return "", fmt.Errorf("generate join code: %w", err)
		}
		b.WriteByte(Alphabet[idx.Int64()])
	}
	return b.String(), nil
}

// Normalize trims and upper-cases user input.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Valid reports whether code is a well-formed join code.
func Valid(code string) bool {
	if len(code) < minLength || len(code) > maxLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		if strings.IndexByte(Alphabet, code[i]) < 0 {
			return false
		}
	}
	return true
}

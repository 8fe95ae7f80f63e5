// Package joincode handles the six-character session codes participants use
// to join a verification session.
package joincode

import (
	"crypto/rand"
	"math/big"
	"strings"
)

// Length is the number of characters in a session code.
const Length = 6

const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Normalize keeps only ASCII letters and digits, upper-cases them, and
// truncates to Length. "abc-12 3x" becomes "ABC123".
func Normalize(s string) string {
	var b strings.Builder
	for _, r := range s {
		if b.Len() == Length {
			break
		}
		switch {
		case r >= 'a' && r <= 'z':
			b.WriteRune(r - 'a' + 'A')
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Format renders a normalized code for display, inserting a hyphen after the
// third character once more than three characters are present.
func Format(code string) string {
	if len(code) <= 3 {
		return code
	}
	return code[:3] + "-" + code[3:]
}

// Valid reports whether code is exactly six upper-case alphanumerics.
func Valid(code string) bool {
	if len(code) != Length {
		return false
	}
	for i := 0; i < len(code); i++ {
		if !strings.ContainsRune(alphabet, rune(code[i])) {
			return false
		}
	}
	return true
}

// Generate returns a random code drawn from A-Z and 0-9.
func Generate() (string, error) {
	buf := make([]byte, Length)
	max := big.NewInt(int64(len(alphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		buf[i] = alphabet[n.Int64()]
	}
	return string(buf), nil
}

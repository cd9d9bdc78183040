package event

import "math/rand/v2"

const (
	// ShareCodeAlphabet is the symbol set of share codes.
	ShareCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	DefaultShareCodeLength = 7
)

// NewShareCode returns a random code of length n over ShareCodeAlphabet.
func NewShareCode(n int) string {
	if n <= 0 {
		n = DefaultShareCodeLength
	}
	b := make([]byte, n)
	for i := range b {
		b[i] = ShareCodeAlphabet[rand.IntN(len(ShareCodeAlphabet))]
	}
	return string(b)
}

// ValidShareCode reports whether code is non-empty and drawn from ShareCodeAlphabet.
func ValidShareCode(code string) bool {
	if code == "" {
		return false
	}
	for i := 0; i < len(code); i++ {
		c := code[i]
		if (c < 'A' || c > 'Z') && (c < '0' || c > '9') {
			return false
		}
	}
	return true
}

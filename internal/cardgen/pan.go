package cardgen

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"
)

const panLen = 16

var (
	ErrInvalidPrefix       = fmt.Errorf("invalid prefix")
	ErrGenerationExhausted = fmt.Errorf("generation exhausted")
)

// ValidatePrefix checks that prefix is 6..15 digits, leaving room for at
// least one generated digit in a 16-digit PAN.
func ValidatePrefix(prefix string) error {
	if prefix == "" {
		return fmt.Errorf("%w: prefix is required", ErrInvalidPrefix)
	}
	if !IsDigits(prefix) {
		return fmt.Errorf("%w: prefix must contain digits only", ErrInvalidPrefix)
	}
	if l := len(prefix); l < 6 || l >= panLen {
		return fmt.Errorf("%w: prefix must be 6..%d digits (got %d)", ErrInvalidPrefix, panLen-1, l)
	}
	return nil
}

// samplePAN draws the suffix digits uniformly and truncates the result to
// panLen characters.
func samplePAN(r io.Reader, prefix string) (string, error) {
	suffix, err := randomDigits(r, panLen-len(prefix))
	if err != nil {
		return "", fmt.Errorf("rand: %w", err)
	}
	pan := prefix + suffix
	if len(pan) > panLen {
		pan = pan[:panLen]
	}
	return pan, nil
}

// randomDigits returns count uniform decimal digits. Bytes >= 250 are
// rejected so that b%10 stays unbiased.
func randomDigits(r io.Reader, count int) (string, error) {
	if count <= 0 {
		return "", nil
	}
	if r == nil {
		r = rand.Reader
	}
	const threshold = 250 // 256 - (256 % 10)
	var sb strings.Builder
	sb.Grow(count)
	buf := make([]byte, 64)
	for sb.Len() < count {
		n, err := r.Read(buf)
		if err != nil {
			return "", err
		}
		for i := 0; i < n && sb.Len() < count; i++ {
			if b := buf[i]; b < threshold {
				sb.WriteByte('0' + (b % 10))
			}
		}
	}
	return sb.String(), nil
}

// randomInt returns a uniform int in [min, max].
func randomInt(r io.Reader, min, max int) (int, error) {
	span := max - min + 1
	width := len(fmt.Sprint(span - 1))
	limit := 1
	for i := 0; i < width; i++ {
		limit *= 10
	}
	// Sample a width-digit number and reject values that would bias the modulo.
	bound := limit - limit%span
	for {
		s, err := randomDigits(r, width)
		if err != nil {
			return 0, err
		}
		v := 0
		for i := 0; i < len(s); i++ {
			v = v*10 + int(s[i]-'0')
		}
		if v < bound {
			return min + v%span, nil
		}
	}
}

// ValidatePAN checks PAN length, digits and the Luhn check digit. 13-19
// digits are accepted; generation always produces 16.
func ValidatePAN(pan string) error {
	if pan == "" {
		return fmt.Errorf("pan is required")
	}
	if !IsDigits(pan) {
		return fmt.Errorf("pan must contain digits only")
	}
	if l := len(pan); l < 13 || l > 19 {
		return fmt.Errorf("pan length must be 13..19 digits (got %d)", l)
	}
	if !LuhnValid(pan) {
		return fmt.Errorf("invalid luhn check digit")
	}
	return nil
}

func IsDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// MaskPAN keeps the first six and last four digits.
func MaskPAN(pan string) string {
	cleaned := NormalizePAN(pan)
	n := len(cleaned)
	if n == 0 {
		return ""
	}
	if n <= 4 {
		return strings.Repeat("*", n)
	}
	if n < 10 {
		return strings.Repeat("*", n-4) + cleaned[n-4:]
	}
	return cleaned[:6] + strings.Repeat("*", n-10) + cleaned[n-4:]
}

// NormalizePAN strips spaces, tabs and dashes.
func NormalizePAN(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '-':
			return -1
		default:
			return r
		}
	}, s)
}

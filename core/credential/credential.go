// Package credential generates tenant-prefixed external identifiers and
// random passwords for newly provisioned accounts.
package credential

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"unicode"
)

var (
	// ErrExhausted is returned when no unique identifier could be generated
	// within the retry budget; the identifier namespace is random, so
	// uniqueness is only probabilistic and must be re-checked against the
	// store before acceptance.
	ErrExhausted = errors.New("could not generate a unique identifier")

	prefixMaxLen  = 6
	prefixDefault = "SCH"
	suffixDigits  = 6
	maxAttempts   = 8
)

// ExistsFunc reports whether an identifier is already taken.
type ExistsFunc func(ctx context.Context, id string) (bool, error)

// ID produces a unique external identifier of the form <PREFIX><TAG><NNNNNN>,
// where PREFIX is a sanitized tenant-name prefix and TAG identifies the entity
// kind (e.g. STU, TCH). Uniqueness is enforced by re-querying through exists;
// after maxAttempts collisions it fails with ErrExhausted.
func ID(ctx context.Context, tenantName, tag string, exists ExistsFunc) (string, error) {
	prefix := SanitizePrefix(tenantName)
	for i := 0; i < maxAttempts; i++ {
		suffix, err := randomDigits(suffixDigits)
		if err != nil {
			return "", err
		}
		id := prefix + tag + suffix
		taken, err := exists(ctx, id)
		if err != nil {
			return "", err
		}
		if !taken {
			return id, nil
		}
	}
	return "", ErrExhausted
}

// SanitizePrefix reduces a tenant name to an upper-cased alphanumeric prefix
// of bounded length.
func SanitizePrefix(name string) string {
	var b strings.Builder
	for _, r := range name {
		if b.Len() >= prefixMaxLen {
			break
		}
		if r < 128 && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(unicode.ToUpper(r))
		}
	}
	if b.Len() == 0 {
		return prefixDefault
	}
	return b.String()
}

const (
	lowerChars   = "abcdefghijkmnopqrstuvwxyz"
	upperChars   = "ABCDEFGHJKLMNPQRSTUVWXYZ"
	digitChars   = "23456789"
	specialChars = "!@#$%&*+-"
)

// Password generates a random password of at least minLen characters with at
// least one of each: uppercase, lowercase, digit, special. Ambiguous glyphs
// (0/O, 1/l/I) are excluded. Randomness comes from crypto/rand on every call.
func Password(length int) (string, error) {
	const minLen = 10
	if length < minLen {
		length = minLen
	}

	all := lowerChars + upperChars + digitChars + specialChars
	chars := make([]byte, 0, length)

	for _, set := range []string{upperChars, lowerChars, digitChars, specialChars} {
		c, err := randomChar(set)
		if err != nil {
			return "", err
		}
		chars = append(chars, c)
	}
	for len(chars) < length {
		c, err := randomChar(all)
		if err != nil {
			return "", err
		}
		chars = append(chars, c)
	}

	// Fisher-Yates so the guaranteed characters do not always lead.
	for i := len(chars) - 1; i > 0; i-- {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(i+1)))
		if err != nil {
			return "", err
		}
		j := int(n.Int64())
		chars[i], chars[j] = chars[j], chars[i]
	}
	return string(chars), nil
}

func randomChar(set string) (byte, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(set))))
	if err != nil {
		return 0, err
	}
	return set[n.Int64()], nil
}

func randomDigits(n int) (string, error) {
	max := big.NewInt(1)
	for i := 0; i < n; i++ {
		max.Mul(max, big.NewInt(10))
	}
	v, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", n, v), nil
}

package voucher

import (
	"crypto/rand"
	"io"
	"regexp"

	"github.com/go-faster/errors"
)

// CodePattern is the format every coupon code must match.
var CodePattern = regexp.MustCompile(`^\w{4}-\w{4}-\w{4}-\w{4}$`)

// alphabet has 32 symbols so one random byte maps to one symbol without bias.
// Look-alike glyphs (0/O, 1/I) are left out.
const alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const (
	groups    = 4
	groupSize = 4
	codeLen   = groups*groupSize + groups - 1
)

// Generator produces fresh coupon codes.
type Generator interface {
	Generate() (string, error)
}

// RandomGenerator draws codes from a cryptographic random source.
type RandomGenerator struct {
	src io.Reader
}

// NewRandomGenerator returns a Generator backed by crypto/rand.
func NewRandomGenerator() *RandomGenerator {
	return &RandomGenerator{src: rand.Reader}
}

// Generate returns a new XXXX-XXXX-XXXX-XXXX code.
func (g *RandomGenerator) Generate() (string, error) {
	var raw [groups * groupSize]byte
	if _, err := io.ReadFull(g.src, raw[:]); err != nil {
		return "", errors.Wrap(err, "read random bytes")
	}

	out := make([]byte, 0, codeLen)
	for i, b := range raw {
		if i > 0 && i%groupSize == 0 {
			out = append(out, '-')
		}
		out = append(out, alphabet[b&31])
	}
	return string(out), nil
}

// ValidCode reports whether code has the coupon code format.
func ValidCode(code string) bool {
	return len(code) == codeLen && CodePattern.MatchString(code)
}

package cardgen

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/alovak/cardgen-bot/internal/expiry"
)

const (
	DefaultMaxAttempts = 1000
	// expiryYears is how many years past the current one an expiry may fall.
	expiryYears = 4
)

// SyntheticCard is a generated card. It is never persisted.
type SyntheticCard struct {
	Number      string
	ExpiryMonth string
	ExpiryYear  string
	CVV         string
}

// String formats the card as number|MM|YYYY|cvv.
func (c SyntheticCard) String() string {
	return strings.Join([]string{c.Number, c.ExpiryMonth, c.ExpiryYear, c.CVV}, "|")
}

// Generator synthesizes Luhn-valid cards by rejection sampling.
type Generator struct {
	// MaxAttempts bounds the sampling loop per card; <= 0 means DefaultMaxAttempts.
	MaxAttempts int
	Now         func() time.Time
	// Rand defaults to crypto/rand.
	Rand io.Reader
}

func NewGenerator(maxAttempts int) *Generator {
	return &Generator{MaxAttempts: maxAttempts}
}

// Synthesize generates one card under prefix.
func (g *Generator) Synthesize(prefix string) (SyntheticCard, error) {
	if err := ValidatePrefix(prefix); err != nil {
		return SyntheticCard{}, err
	}
	return g.synthesize(prefix)
}

// Batch returns n independent draws under prefix. Duplicates are kept.
func (g *Generator) Batch(prefix string, n int) ([]SyntheticCard, error) {
	if err := ValidatePrefix(prefix); err != nil {
		return nil, err
	}
	if n <= 0 {
		return nil, fmt.Errorf("batch size must be positive (got %d)", n)
	}
	cards := make([]SyntheticCard, 0, n)
	for i := 0; i < n; i++ {
		c, err := g.synthesize(prefix)
		if err != nil {
			return nil, err
		}
		cards = append(cards, c)
	}
	return cards, nil
}

func (g *Generator) synthesize(prefix string) (SyntheticCard, error) {
	pan, err := g.samplePAN(prefix)
	if err != nil {
		return SyntheticCard{}, err
	}

	month, err := randomInt(g.Rand, 1, 12)
	if err != nil {
		return SyntheticCard{}, fmt.Errorf("rand: %w", err)
	}
	first, last := expiry.YearRange(g.now(), expiryYears)
	year, err := randomInt(g.Rand, first, last)
	if err != nil {
		return SyntheticCard{}, fmt.Errorf("rand: %w", err)
	}
	cvv, err := randomInt(g.Rand, 100, 999)
	if err != nil {
		return SyntheticCard{}, fmt.Errorf("rand: %w", err)
	}

	return SyntheticCard{
		Number:      pan,
		ExpiryMonth: fmt.Sprintf("%02d", month),
		ExpiryYear:  fmt.Sprintf("%04d", year),
		CVV:         fmt.Sprintf("%03d", cvv),
	}, nil
}

func (g *Generator) samplePAN(prefix string) (string, error) {
	max := g.MaxAttempts
	if max <= 0 {
		max = DefaultMaxAttempts
	}
	for i := 0; i < max; i++ {
		pan, err := samplePAN(g.Rand, prefix)
		if err != nil {
			return "", err
		}
		if LuhnValid(pan) {
			return pan, nil
		}
	}
	return "", fmt.Errorf("%w: no valid number for prefix %s after %d attempts", ErrGenerationExhausted, prefix, max)
}

func (g *Generator) now() time.Time {
	if g.Now != nil {
		return g.Now()
	}
	return time.Now()
}

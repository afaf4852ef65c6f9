package cardgen

import (
	"errors"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type zeroReader struct{}

func (zeroReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 0
	}
	return len(p), nil
}

func TestLuhnValid(t *testing.T) {
	require.True(t, LuhnValid("4539148803436467"))
	require.False(t, LuhnValid("4539148803436468"))
	require.True(t, LuhnValid("4111111111111111"))
	require.True(t, LuhnValid("79927398713"))

	require.False(t, LuhnValid(""))
	require.False(t, LuhnValid("7"))
	require.False(t, LuhnValid("4539 1488 0343 6467"))
}

func TestLuhnValid_LastDigitIncremented(t *testing.T) {
	valid := "4539148803436467"
	last := valid[len(valid)-1] - '0'
	bumped := valid[:len(valid)-1] + strconv.Itoa(int((last+1)%10))
	require.False(t, LuhnValid(bumped))
}

func TestLuhnCheckDigit(t *testing.T) {
	require.Equal(t, byte('7'), LuhnCheckDigit("453914880343646"))
	require.Equal(t, byte('3'), LuhnCheckDigit("7992739871"))
}

func TestValidatePrefix(t *testing.T) {
	for _, ok := range []string{"515462", "51546212", "411111111111111"} {
		require.NoError(t, ValidatePrefix(ok), ok)
	}
	for _, bad := range []string{"", "12345", "51546a", "4111111111111111", " 515462"} {
		err := ValidatePrefix(bad)
		require.Error(t, err, bad)
		require.True(t, errors.Is(err, ErrInvalidPrefix), bad)
	}
}

func TestSynthesize(t *testing.T) {
	now := time.Date(2026, time.October, 19, 12, 0, 0, 0, time.UTC)
	g := &Generator{Now: func() time.Time { return now }}

	for _, prefix := range []string{"515462", "40128812", "411111111111111"} {
		for i := 0; i < 200; i++ {
			c, err := g.Synthesize(prefix)
			require.NoError(t, err)

			require.Len(t, c.Number, 16)
			require.True(t, strings.HasPrefix(c.Number, prefix))
			require.True(t, LuhnValid(c.Number), c.Number)

			m, err := strconv.Atoi(c.ExpiryMonth)
			require.NoError(t, err)
			require.Len(t, c.ExpiryMonth, 2)
			require.True(t, m >= 1 && m <= 12, c.ExpiryMonth)

			y, err := strconv.Atoi(c.ExpiryYear)
			require.NoError(t, err)
			require.True(t, y >= 2026 && y <= 2030, c.ExpiryYear)

			cvv, err := strconv.Atoi(c.CVV)
			require.NoError(t, err)
			require.True(t, cvv >= 100 && cvv <= 999, c.CVV)
		}
	}
}

func TestSynthesize_InvalidPrefix(t *testing.T) {
	g := NewGenerator(0)
	_, err := g.Synthesize("12ab56")
	require.ErrorIs(t, err, ErrInvalidPrefix)

	_, err = g.Batch("123", 10)
	require.ErrorIs(t, err, ErrInvalidPrefix)
}

func TestSynthesize_Exhausted(t *testing.T) {
	// 4111111111111110 is never valid, and a zero reader only ever draws 0.
	g := &Generator{MaxAttempts: 5, Rand: zeroReader{}}
	_, err := g.Synthesize("411111111111111")
	require.ErrorIs(t, err, ErrGenerationExhausted)
}

func TestBatch(t *testing.T) {
	g := NewGenerator(0)
	cards, err := g.Batch("515462", 20)
	require.NoError(t, err)
	require.Len(t, cards, 20)
	for _, c := range cards {
		require.True(t, LuhnValid(c.Number))
		require.Equal(t, c.Number+"|"+c.ExpiryMonth+"|"+c.ExpiryYear+"|"+c.CVV, c.String())
	}

	_, err = g.Batch("515462", 0)
	require.Error(t, err)
}

func TestValidatePAN(t *testing.T) {
	require.NoError(t, ValidatePAN("4539148803436467"))
	require.Error(t, ValidatePAN(""))
	require.Error(t, ValidatePAN("4539148803436468"))
	require.Error(t, ValidatePAN("453914880343"))
	require.Error(t, ValidatePAN("45391488034364x7"))
}

func TestMaskPAN(t *testing.T) {
	require.Equal(t, "453914******6467", MaskPAN("4539 1488 0343 6467"))
	require.Equal(t, "****", MaskPAN("1234"))
	require.Equal(t, "****5678", MaskPAN("12345678"))
	require.Equal(t, "", MaskPAN(""))
}

package domain

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOfferWindow(t *testing.T) {
	d, err := ParseOfferWindow("5m")
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, d)

	d, err = ParseOfferWindow("2h")
	require.NoError(t, err)
	assert.Equal(t, 2*time.Hour, d)

	d, err = ParseOfferWindow("10d")
	require.NoError(t, err)
	assert.Equal(t, 240*time.Hour, d)
}

func TestParseOfferWindow_Invalid(t *testing.T) {
	for _, s := range []string{"", "m", "5w", "-5m", "0h", "abc"} {
		_, err := ParseOfferWindow(s)
		assert.Error(t, err, "expr %q", s)
		assert.True(t, IsValidation(err), "expr %q", s)
	}
}

func TestParseDeadlineExpr(t *testing.T) {
	// 1h = 3600s = 300 blocks at 12s.
	b, err := ParseDeadlineExpr(1000, "1h")
	require.NoError(t, err)
	assert.Equal(t, uint64(1300), b)

	// 10d = 864000s = 72000 blocks.
	b, err = ParseDeadlineExpr(0, "10d")
	require.NoError(t, err)
	assert.Equal(t, uint64(72000), b)

	// 1mo = 2635200s = 219600 blocks.
	b, err = ParseDeadlineExpr(50, "1mo")
	require.NoError(t, err)
	assert.Equal(t, uint64(219650), b)

	// 30m = 1800s = 150 blocks.
	b, err = ParseDeadlineExpr(7, "30m")
	require.NoError(t, err)
	assert.Equal(t, uint64(157), b)
}

func TestParseDeadlineExpr_Invalid(t *testing.T) {
	for _, s := range []string{"", "h", "10x", "-1d", "0mo", "mo"} {
		_, err := ParseDeadlineExpr(100, s)
		assert.Error(t, err, "expr %q", s)
	}
}

func TestParseAmountExpr_Fiat(t *testing.T) {
	// $10 at 1800 USD per ETH is 10/1800 ETH in wei.
	want := new(big.Int).Div(new(big.Int).Mul(big.NewInt(10), big.NewInt(1e18)), big.NewInt(1800))

	got, err := ParseAmountExpr("$10", 1800)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	// Trailing dollar sign means the same thing.
	got, err = ParseAmountExpr("10$", 1800)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestParseAmountExpr_Native(t *testing.T) {
	// Native amounts ignore the reference price entirely.
	want := new(big.Int).Div(big.NewInt(1e18), big.NewInt(10))

	got, err := ParseAmountExpr("0.1ETH", 1800)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	got, err = ParseAmountExpr("0.1", 99999)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestParseAmountExpr_Invalid(t *testing.T) {
	_, err := ParseAmountExpr("abc", 1800)
	assert.Error(t, err)

	_, err = ParseAmountExpr("$10", 0)
	assert.Error(t, err)

	_, err = ParseAmountExpr("", 1800)
	assert.Error(t, err)
}

func TestParsePriceToFixed(t *testing.T) {
	v, err := ParsePriceToFixed(2)
	require.NoError(t, err)
	assert.Equal(t, new(big.Int).Mul(big.NewInt(2), big.NewInt(1e18)), v)

	_, err = ParsePriceToFixed(0)
	assert.Error(t, err)
	_, err = ParsePriceToFixed(-1.5)
	assert.Error(t, err)
}

func TestFixedToFloat_RoundTrips(t *testing.T) {
	v, err := ParsePriceToFixed(1.15)
	require.NoError(t, err)
	assert.InDelta(t, 1.15, FixedToFloat(v), 1e-9)
}

func TestClassifyRevert(t *testing.T) {
	assert.ErrorIs(t, ClassifyRevert("bet expiration too soon"), ErrMarginTooSmall)
	assert.ErrorIs(t, ClassifyRevert("revert: bet has already been settled or invalidated"), ErrAlreadySettled)
	assert.NoError(t, ClassifyRevert("insufficient balance"))
}

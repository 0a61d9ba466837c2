package ledger

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGasPriceWei(t *testing.T) {
	// A configured whole-gwei price converts exactly.
	got := gasPriceWei(3)
	require.NotNil(t, got)
	assert.Equal(t, 0, got.Cmp(big.NewInt(3_000_000_000)))

	// Fractional gwei survives the conversion instead of truncating to zero.
	got = gasPriceWei(0.5)
	require.NotNil(t, got)
	assert.Equal(t, 0, got.Cmp(big.NewInt(500_000_000)))

	// Zero means unset: the node's suggestion is used at submission time.
	assert.Nil(t, gasPriceWei(0))
	assert.Nil(t, gasPriceWei(-1))
}

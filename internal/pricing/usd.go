package pricing

import (
	"math/big"

	"github.com/dlnlabs/dln-indexer/internal/config"
)

// AliasMint rewrites the native-SOL sentinel address to the wrapped-SOL mint.
// Price providers only quote the wrapped form, so the alias must be applied
// before any price or decimals lookup.
func AliasMint(mint string) string {
	if mint == config.NativeSOLSentinel {
		return config.WrappedSOLMint
	}
	return mint
}

// CalculateUSD converts a raw token amount to a USD value. amount is the
// integer quantity in base units, decimals scales base units to whole tokens,
// price is USD per whole token.
//
// The whole and fractional parts are split with integer arithmetic so amounts
// beyond float64 range keep their magnitude.
func CalculateUSD(amount *big.Int, decimals uint8, price float64) float64 {
	if amount.Sign() == 0 {
		return 0
	}

	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	whole, rem := new(big.Int).QuoRem(amount, scale, new(big.Int))

	wholeF, _ := new(big.Float).SetInt(whole).Float64()
	remF, _ := new(big.Float).SetInt(rem).Float64()
	scaleF, _ := new(big.Float).SetInt(scale).Float64()

	return (wholeF + remF/scaleF) * price
}

package value

import (
	"math/big"

	"github.com/shopspring/decimal"
)

func decimalFromInt(n int64) decimal.Decimal   { return decimal.NewFromInt(n) }
func decimalFromUint(n uint64) decimal.Decimal { return decimal.NewFromBigInt(new(big.Int).SetUint64(n), 0) }
func decimalFromFloat(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func bigFromValue(v Value) *big.Int {
	switch {
	case isInt(v.Kind):
		return big.NewInt(v.Int)
	case isUint(v.Kind):
		return new(big.Int).SetUint64(v.Uint)
	case isFloatKind(v.Kind):
		bi, _ := big.NewFloat(v.Float).Int(nil)
		return bi
	default:
		return big.NewInt(0)
	}
}

// NewInt constructs an arbitrary-precision Int value (spec §3.1 "Int").
func NewInt(n *big.Int) Value { return Value{Kind: KindInt, Big: n, Defined: true} }

// NewUint constructs an arbitrary-precision Uint value (spec §3.1 "Uint").
func NewUint(n *big.Int) Value { return Value{Kind: KindUint, Big: n, Defined: true} }

// NewDecimal constructs a Decimal value.
func NewDecimal(d decimal.Decimal) Value { return Value{Kind: KindDecimal, Dec: d, Defined: true} }

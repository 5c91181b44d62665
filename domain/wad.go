package domain

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// WadDecimals is the fixed-point resolution shared by all token amounts.
const WadDecimals = 18

var wadUnit = new(big.Int).Exp(Big10, big.NewInt(WadDecimals), nil)

// Wad is an 18-decimal fixed-point amount backed by an arbitrary-precision
// integer. The zero value is zero. Wad values are immutable; arithmetic
// returns fresh values.
type Wad struct {
	v *big.Int
}

// NewWad wraps a raw integer amount expressed in the smallest (1e-18) unit.
func NewWad(v *big.Int) Wad {
	if v == nil {
		return Wad{}
	}
	return Wad{v: new(big.Int).Set(v)}
}

func NewWadFromInt64(v int64) Wad {
	return Wad{v: big.NewInt(v)}
}

// NewWadFromDecimal converts a human-unit decimal, e.g. 2.5 tokens, into its
// wad representation. Digits beyond 18 decimal places are truncated.
func NewWadFromDecimal(d decimal.Decimal) Wad {
	return Wad{v: d.Shift(WadDecimals).Truncate(0).BigInt()}
}

// ParseWad parses a base-10 integer string in the smallest unit, the
// encoding used by the order wire format.
func ParseWad(s string) (Wad, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return Wad{}, ErrInvalidNumberFormat
	}
	return Wad{v: v}, nil
}

func (w Wad) value() *big.Int {
	if w.v == nil {
		return new(big.Int)
	}
	return w.v
}

// Int returns a copy of the raw integer amount.
func (w Wad) Int() *big.Int {
	return new(big.Int).Set(w.value())
}

// RawString renders the amount as a base-10 integer in the smallest unit.
func (w Wad) RawString() string {
	return w.value().String()
}

// String renders the amount in human units with all 18 decimal places.
func (w Wad) String() string {
	return decimal.NewFromBigInt(w.value(), -WadDecimals).StringFixed(WadDecimals)
}

func (w Wad) Add(o Wad) Wad {
	return Wad{v: new(big.Int).Add(w.value(), o.value())}
}

func (w Wad) Sub(o Wad) Wad {
	return Wad{v: new(big.Int).Sub(w.value(), o.value())}
}

func (w Wad) Cmp(o Wad) int {
	return w.value().Cmp(o.value())
}

func (w Wad) Equals(o Wad) bool {
	return w.Cmp(o) == 0
}

func (w Wad) IsZero() bool {
	return w.value().Sign() == 0
}

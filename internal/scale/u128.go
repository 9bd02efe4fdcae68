package scale

import (
	"fmt"
	"math/big"
	"math/bits"
)

// U128 is an unsigned 128-bit integer, the widest fixed-width quantity the
// wire format carries (BigQuantity asset balances). Encoded little-endian,
// low quadword first.
type U128 struct {
	Lo uint64
	Hi uint64
}

// U128FromUint64 widens a uint64.
func U128FromUint64(v uint64) U128 {
	return U128{Lo: v}
}

// U128FromString parses a non-negative decimal string of up to 128 bits.
func U128FromString(s string) (U128, error) {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return U128{}, fmt.Errorf("invalid decimal %q", s)
	}
	if n.Sign() < 0 || n.BitLen() > 128 {
		return U128{}, fmt.Errorf("value %q out of range for u128", s)
	}
	var lo, hi uint64
	words := n.Bits()
	// big.Word is 64-bit on all supported platforms.
	if len(words) > 0 {
		lo = uint64(words[0])
	}
	if len(words) > 1 {
		hi = uint64(words[1])
	}
	return U128{Lo: lo, Hi: hi}, nil
}

// String renders the value in decimal.
func (v U128) String() string {
	n := new(big.Int).SetUint64(v.Hi)
	n.Lsh(n, 64)
	n.Or(n, new(big.Int).SetUint64(v.Lo))
	return n.String()
}

// IsZero reports whether the value is zero.
func (v U128) IsZero() bool {
	return v.Lo == 0 && v.Hi == 0
}

// Cmp returns -1, 0, or 1 comparing v against o.
func (v U128) Cmp(o U128) int {
	switch {
	case v.Hi != o.Hi:
		if v.Hi < o.Hi {
			return -1
		}
		return 1
	case v.Lo != o.Lo:
		if v.Lo < o.Lo {
			return -1
		}
		return 1
	default:
		return 0
	}
}

// AddChecked returns v+o, reporting overflow instead of wrapping.
func (v U128) AddChecked(o U128) (U128, bool) {
	lo, carry := bits.Add64(v.Lo, o.Lo, 0)
	hi, carry := bits.Add64(v.Hi, o.Hi, carry)
	return U128{Lo: lo, Hi: hi}, carry == 0
}

// SubChecked returns v-o, reporting underflow instead of wrapping.
func (v U128) SubChecked(o U128) (U128, bool) {
	lo, borrow := bits.Sub64(v.Lo, o.Lo, 0)
	hi, borrow := bits.Sub64(v.Hi, o.Hi, borrow)
	return U128{Lo: lo, Hi: hi}, borrow == 0
}

package model

import (
	"fmt"
	"strings"

	"github.com/ternledger/tern-go/internal/scale"
)

// AssetValueType fixes the numeric representation of every asset minted from
// a definition. Immutable for the lifetime of the definition.
type AssetValueType uint8

const (
	// AssetQuantity is an unsigned 32-bit count.
	AssetQuantity AssetValueType = iota
	// AssetBigQuantity is an unsigned 128-bit count.
	AssetBigQuantity
	// AssetFixed is a signed 64-bit fixed-point number with 9 fractional
	// decimal digits, restricted to non-negative values.
	AssetFixed
)

func (t AssetValueType) String() string {
	switch t {
	case AssetQuantity:
		return "quantity"
	case AssetBigQuantity:
		return "big-quantity"
	case AssetFixed:
		return "fixed"
	default:
		return fmt.Sprintf("asset-value-type(%d)", uint8(t))
	}
}

// AssetValueTypeFromString parses the CLI/config spelling of a value type.
func AssetValueTypeFromString(s string) (AssetValueType, error) {
	switch s {
	case "quantity":
		return AssetQuantity, nil
	case "big-quantity":
		return AssetBigQuantity, nil
	case "fixed":
		return AssetFixed, nil
	default:
		return 0, validationErr("asset value type", "unknown type %q", s)
	}
}

func (t AssetValueType) valid() bool {
	return t == AssetQuantity || t == AssetBigQuantity || t == AssetFixed
}

// AssetValue is the closed union of concrete asset amounts. The variant tag
// doubles as the AssetValueType, so a value always matches its declared type.
type AssetValue interface {
	// Type returns the AssetValueType this value instantiates.
	Type() AssetValueType
	encodeAssetValue(e *scale.Encoder)
}

// Quantity is an unsigned 32-bit asset amount.
type Quantity uint32

// Type implements AssetValue.
func (Quantity) Type() AssetValueType { return AssetQuantity }

func (v Quantity) encodeAssetValue(e *scale.Encoder) { e.PutU32(uint32(v)) }

// BigQuantity is an unsigned 128-bit asset amount.
type BigQuantity scale.U128

// Type implements AssetValue.
func (BigQuantity) Type() AssetValueType { return AssetBigQuantity }

func (v BigQuantity) encodeAssetValue(e *scale.Encoder) { e.PutU128(scale.U128(v)) }

// fixedScale is the base-10 scale of Fixed: 9 fractional digits.
const fixedScale = 1_000_000_000

// maxFixedInteger is the largest whole part representable in Fixed.
const maxFixedInteger = (1<<63 - 1) / fixedScale

// Fixed is a non-negative fixed-point amount with 9 fractional decimal
// digits, stored as a signed 64-bit count of billionths. Arithmetic that
// would produce a negative or overflowing result fails instead of clamping
// or wrapping.
type Fixed int64

// Type implements AssetValue.
func (Fixed) Type() AssetValueType { return AssetFixed }

func (v Fixed) encodeAssetValue(e *scale.Encoder) { e.PutI64(int64(v)) }

// FixedFromString parses a non-negative decimal like "1.25" with at most
// 9 fractional digits.
func FixedFromString(s string) (Fixed, error) {
	if s == "" {
		return 0, fmt.Errorf("%w: empty string", ErrFixedOutOfRange)
	}
	if strings.HasPrefix(s, "-") {
		return 0, fmt.Errorf("%w: %q is negative", ErrFixedOutOfRange, s)
	}

	intPart, fracPart, _ := strings.Cut(s, ".")
	if intPart == "" {
		intPart = "0"
	}
	if len(fracPart) > 9 {
		return 0, fmt.Errorf("%w: %q has more than 9 fractional digits", ErrFixedOutOfRange, s)
	}

	var whole int64
	for _, c := range intPart {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("%w: %q is not a decimal number", ErrFixedOutOfRange, s)
		}
		whole = whole*10 + int64(c-'0')
		if whole > maxFixedInteger {
			return 0, fmt.Errorf("%w: %q overflows", ErrFixedOutOfRange, s)
		}
	}

	var frac int64
	for _, c := range fracPart {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("%w: %q is not a decimal number", ErrFixedOutOfRange, s)
		}
		frac = frac*10 + int64(c-'0')
	}
	for i := len(fracPart); i < 9; i++ {
		frac *= 10
	}

	v := whole*fixedScale + frac
	if v < 0 {
		return 0, fmt.Errorf("%w: %q overflows", ErrFixedOutOfRange, s)
	}
	return Fixed(v), nil
}

// String renders the value in decimal, trimming trailing fractional zeroes.
func (v Fixed) String() string {
	whole := int64(v) / fixedScale
	frac := int64(v) % fixedScale
	if frac == 0 {
		return fmt.Sprintf("%d", whole)
	}
	s := strings.TrimRight(fmt.Sprintf("%09d", frac), "0")
	return fmt.Sprintf("%d.%s", whole, s)
}

// CheckedAdd returns v+o or ErrFixedOutOfRange on overflow.
func (v Fixed) CheckedAdd(o Fixed) (Fixed, error) {
	sum := int64(v) + int64(o)
	if sum < int64(v) {
		return 0, fmt.Errorf("%w: addition overflows", ErrFixedOutOfRange)
	}
	return Fixed(sum), nil
}

// CheckedSub returns v-o or ErrFixedOutOfRange when the result would be
// negative.
func (v Fixed) CheckedSub(o Fixed) (Fixed, error) {
	if o > v {
		return 0, fmt.Errorf("%w: subtraction result is negative", ErrFixedOutOfRange)
	}
	return Fixed(int64(v) - int64(o)), nil
}

// EncodeAssetValue writes the value type tag followed by the amount.
func EncodeAssetValue(e *scale.Encoder, v AssetValue) {
	e.PutTag(uint8(v.Type()))
	v.encodeAssetValue(e)
}

// DecodeAssetValue reads an asset value union.
func DecodeAssetValue(d *scale.Decoder) (AssetValue, error) {
	tag, err := d.Tag()
	if err != nil {
		return nil, err
	}
	switch AssetValueType(tag) {
	case AssetQuantity:
		v, err := d.U32()
		return Quantity(v), err
	case AssetBigQuantity:
		v, err := d.U128()
		return BigQuantity(v), err
	case AssetFixed:
		v, err := d.I64()
		if err != nil {
			return nil, err
		}
		if v < 0 {
			return nil, fmt.Errorf("%w: negative fixed on the wire", ErrFixedOutOfRange)
		}
		return Fixed(v), nil
	default:
		return nil, fmt.Errorf("%w: asset value tag %d", scale.ErrUnknownTag, tag)
	}
}

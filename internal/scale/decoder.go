package scale

import (
	"encoding/binary"
	"fmt"
)

// Decoder reads values back out of a canonical byte encoding. It tracks an
// offset into the input and fails with ErrShortBuffer on truncation.
// A top-level decode must end with Finish to reject trailing bytes.
type Decoder struct {
	data []byte
	off  int
}

// NewDecoder returns a decoder positioned at the start of data.
func NewDecoder(data []byte) *Decoder {
	return &Decoder{data: data}
}

// Remaining returns the number of unread bytes.
func (d *Decoder) Remaining() int {
	return len(d.data) - d.off
}

// Finish returns ErrTrailingBytes if any input remains unread.
func (d *Decoder) Finish() error {
	if d.off != len(d.data) {
		return fmt.Errorf("%w: %d remaining", ErrTrailingBytes, d.Remaining())
	}
	return nil
}

// take consumes n bytes or fails with ErrShortBuffer.
func (d *Decoder) take(n int) ([]byte, error) {
	if n < 0 || d.Remaining() < n {
		return nil, fmt.Errorf("%w: need %d bytes, have %d", ErrShortBuffer, n, d.Remaining())
	}
	b := d.data[d.off : d.off+n]
	d.off += n
	return b, nil
}

// U8 reads a single byte.
func (d *Decoder) U8() (uint8, error) {
	b, err := d.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// Tag reads a tagged-union discriminant byte. Range checking is the
// caller's job; the known set differs per union.
func (d *Decoder) Tag() (uint8, error) {
	return d.U8()
}

// U32 reads a fixed-width little-endian 32-bit unsigned integer.
func (d *Decoder) U32() (uint32, error) {
	b, err := d.take(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// U64 reads a fixed-width little-endian 64-bit unsigned integer.
func (d *Decoder) U64() (uint64, error) {
	b, err := d.take(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// I64 reads a fixed-width little-endian 64-bit signed integer.
func (d *Decoder) I64() (int64, error) {
	v, err := d.U64()
	return int64(v), err
}

// U128 reads a fixed-width little-endian 128-bit unsigned integer.
func (d *Decoder) U128() (U128, error) {
	b, err := d.take(16)
	if err != nil {
		return U128{}, err
	}
	return U128{
		Lo: binary.LittleEndian.Uint64(b[:8]),
		Hi: binary.LittleEndian.Uint64(b[8:]),
	}, nil
}

// Bool reads a boolean, rejecting any byte other than 0x00 or 0x01.
func (d *Decoder) Bool() (bool, error) {
	b, err := d.U8()
	if err != nil {
		return false, err
	}
	switch b {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, fmt.Errorf("%w: 0x%02x", ErrInvalidBool, b)
	}
}

// Option reads an option discriminant, rejecting any byte other than
// 0x00 (absent) or 0x01 (present).
func (d *Decoder) Option() (bool, error) {
	b, err := d.U8()
	if err != nil {
		return false, err
	}
	switch b {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, fmt.Errorf("%w: 0x%02x", ErrInvalidOption, b)
	}
}

// Compact reads a variable-length unsigned integer (see Encoder.PutCompact).
func (d *Decoder) Compact() (uint64, error) {
	first, err := d.U8()
	if err != nil {
		return 0, err
	}
	switch first & 0b11 {
	case 0b00:
		return uint64(first >> 2), nil
	case 0b01:
		b, err := d.take(1)
		if err != nil {
			return 0, err
		}
		return (uint64(first) | uint64(b[0])<<8) >> 2, nil
	case 0b10:
		b, err := d.take(3)
		if err != nil {
			return 0, err
		}
		v := uint64(first) | uint64(b[0])<<8 | uint64(b[1])<<16 | uint64(b[2])<<24
		return v >> 2, nil
	default:
		n := int(first>>2) + 4
		if n > 8 {
			return 0, fmt.Errorf("%w: %d-byte compact", ErrCompactOverflow, n)
		}
		b, err := d.take(n)
		if err != nil {
			return 0, err
		}
		var v uint64
		for i := 0; i < n; i++ {
			v |= uint64(b[i]) << (8 * i)
		}
		return v, nil
	}
}

// Length reads a compact container length and rejects values that exceed
// the remaining input, preventing attacker-chosen allocations from a
// corrupt prefix.
func (d *Decoder) Length() (int, error) {
	v, err := d.Compact()
	if err != nil {
		return 0, err
	}
	if v > uint64(d.Remaining()) {
		return 0, fmt.Errorf("%w: length %d, %d bytes remain", ErrLengthOverflow, v, d.Remaining())
	}
	return int(v), nil
}

// String reads a compact-length-prefixed UTF-8 string.
func (d *Decoder) String() (string, error) {
	n, err := d.Length()
	if err != nil {
		return "", err
	}
	b, err := d.take(n)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Bytes reads a compact-length-prefixed byte slice. The result is a copy;
// it does not alias the decoder input.
func (d *Decoder) Bytes() ([]byte, error) {
	n, err := d.Length()
	if err != nil {
		return nil, err
	}
	b, err := d.take(n)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, b)
	return out, nil
}

// Raw reads exactly n bytes without a length prefix.
func (d *Decoder) Raw(n int) ([]byte, error) {
	b, err := d.take(n)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, b)
	return out, nil
}

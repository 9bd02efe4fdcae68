// Package scale implements the deterministic binary codec used on the wire
// between the client and a ledger peer.
//
// Properties the rest of the system relies on:
//   - Determinism: equal logical values always encode to identical bytes.
//     Transaction hashes are computed over encoded payloads, so any
//     nondeterminism would break hash-based identification.
//   - Little-endian fixed-width integers (32, 64, 128 bit).
//   - Compact variable-length unsigned integers for container lengths:
//     a 2-bit mode in the low bits selects 1, 2, or 4 byte encodings, with a
//     length-prefixed mode for wider values.
//   - Tagged unions encode as a single discriminant byte followed by the
//     variant payload. Discriminant sets are closed; unknown tags are a hard
//     decode failure (ErrUnknownTag), never a best-effort fallback.
//   - Sequences preserve insertion order; mappings are encoded sorted by
//     encoded key bytes (see the model package).
//
// The codec performs no I/O and no reflection; every composite type in the
// model package writes itself through an Encoder and reads itself through a
// Decoder.
package scale

import "encoding/binary"

// Encoder accumulates the canonical byte encoding of a value.
// The zero value is ready to use.
type Encoder struct {
	buf []byte
}

// NewEncoder returns an empty encoder.
func NewEncoder() *Encoder {
	return &Encoder{}
}

// Bytes returns the accumulated encoding. The returned slice aliases the
// encoder's buffer; callers must not write to it while still encoding.
func (e *Encoder) Bytes() []byte {
	return e.buf
}

// Len returns the number of bytes encoded so far.
func (e *Encoder) Len() int {
	return len(e.buf)
}

// PutU8 appends a single byte.
func (e *Encoder) PutU8(v uint8) {
	e.buf = append(e.buf, v)
}

// PutTag appends a tagged-union discriminant byte.
func (e *Encoder) PutTag(tag uint8) {
	e.buf = append(e.buf, tag)
}

// PutU32 appends a fixed-width little-endian 32-bit unsigned integer.
func (e *Encoder) PutU32(v uint32) {
	e.buf = binary.LittleEndian.AppendUint32(e.buf, v)
}

// PutU64 appends a fixed-width little-endian 64-bit unsigned integer.
func (e *Encoder) PutU64(v uint64) {
	e.buf = binary.LittleEndian.AppendUint64(e.buf, v)
}

// PutI64 appends a fixed-width little-endian 64-bit signed integer
// (two's complement).
func (e *Encoder) PutI64(v int64) {
	e.buf = binary.LittleEndian.AppendUint64(e.buf, uint64(v))
}

// PutU128 appends a fixed-width little-endian 128-bit unsigned integer,
// low quadword first.
func (e *Encoder) PutU128(v U128) {
	e.buf = binary.LittleEndian.AppendUint64(e.buf, v.Lo)
	e.buf = binary.LittleEndian.AppendUint64(e.buf, v.Hi)
}

// PutBool appends 0x01 for true, 0x00 for false.
func (e *Encoder) PutBool(v bool) {
	if v {
		e.buf = append(e.buf, 1)
	} else {
		e.buf = append(e.buf, 0)
	}
}

// PutOption appends an option discriminant: 0x00 for absent, 0x01 for
// present. The caller encodes the payload after a present marker.
func (e *Encoder) PutOption(present bool) {
	e.PutBool(present)
}

// PutCompact appends a variable-length unsigned integer.
//
// Mode is carried in the two low bits of the first byte:
//
//	00  value < 2^6   single byte, value<<2
//	01  value < 2^14  two bytes LE, value<<2 | 0b01
//	10  value < 2^30  four bytes LE, value<<2 | 0b10
//	11  otherwise     first byte (n-4)<<2 | 0b11, then n LE value bytes
//
// The encoding of a given value is unique: the shortest mode is always
// chosen and mode 11 emits the minimal byte count.
func (e *Encoder) PutCompact(v uint64) {
	switch {
	case v < 1<<6:
		e.buf = append(e.buf, byte(v<<2))
	case v < 1<<14:
		e.buf = binary.LittleEndian.AppendUint16(e.buf, uint16(v<<2)|0b01)
	case v < 1<<30:
		e.buf = binary.LittleEndian.AppendUint32(e.buf, uint32(v<<2)|0b10)
	default:
		n := 4
		for tmp := v >> 32; tmp != 0; tmp >>= 8 {
			n++
		}
		e.buf = append(e.buf, byte((n-4)<<2)|0b11)
		for i := 0; i < n; i++ {
			e.buf = append(e.buf, byte(v>>(8*i)))
		}
	}
}

// PutString appends a compact length prefix followed by the UTF-8 bytes.
func (e *Encoder) PutString(s string) {
	e.PutCompact(uint64(len(s)))
	e.buf = append(e.buf, s...)
}

// PutBytes appends a compact length prefix followed by the raw bytes.
func (e *Encoder) PutBytes(b []byte) {
	e.PutCompact(uint64(len(b)))
	e.buf = append(e.buf, b...)
}

// PutRaw appends bytes verbatim, without a length prefix. Used for
// fixed-width fields such as hashes and for splicing pre-encoded values.
func (e *Encoder) PutRaw(b []byte) {
	e.buf = append(e.buf, b...)
}

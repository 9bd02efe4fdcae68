package scale

import "errors"

// Sentinel errors for codec failures. Callers wrap these with context via
// fmt.Errorf("...: %w", err) so errors.Is still matches.
var (
	// ErrShortBuffer indicates the byte stream ended before a complete value.
	ErrShortBuffer = errors.New("unexpected end of input")

	// ErrTrailingBytes indicates bytes remain after a complete top-level value.
	ErrTrailingBytes = errors.New("trailing bytes after value")

	// ErrCompactOverflow indicates a compact integer wider than 64 bits.
	ErrCompactOverflow = errors.New("compact integer overflows uint64")

	// ErrInvalidBool indicates a boolean byte other than 0x00 or 0x01.
	ErrInvalidBool = errors.New("invalid boolean byte")

	// ErrInvalidOption indicates an option byte other than 0x00 or 0x01.
	ErrInvalidOption = errors.New("invalid option byte")

	// ErrUnknownTag indicates a tagged-union discriminant outside the known
	// set. The discriminant sets are closed and versioned; decoding never
	// falls back to a default variant.
	ErrUnknownTag = errors.New("unknown union discriminant")

	// ErrUnknownVersion indicates an envelope format version this build
	// does not understand.
	ErrUnknownVersion = errors.New("unknown envelope version")

	// ErrLengthOverflow indicates a length prefix exceeding the remaining
	// input, used to fail fast instead of allocating attacker-chosen sizes.
	ErrLengthOverflow = errors.New("length prefix exceeds remaining input")
)

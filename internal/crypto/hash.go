package crypto

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// HashSize is the width of all content hashes on the wire.
const HashSize = 32

// Hash is a 32-byte BLAKE2b digest. Transactions are identified by the hash
// of their canonical payload encoding; pipeline events reference entities by
// this hash.
type Hash [HashSize]byte

// Sum256 computes the BLAKE2b-256 digest of data.
func Sum256(data []byte) Hash {
	return blake2b.Sum256(data)
}

// Hex renders the hash as lowercase hex.
func (h Hash) Hex() string {
	return hex.EncodeToString(h[:])
}

// HashFromHex parses a 64-char hex string into a Hash.
func HashFromHex(s string) (Hash, error) {
	var h Hash
	b, err := hex.DecodeString(s)
	if err != nil {
		return h, ErrInvalidKeyEncoding
	}
	if len(b) != HashSize {
		return h, ErrInvalidKeyLength
	}
	copy(h[:], b)
	return h, nil
}

// IsZero reports whether the hash is all zeroes.
func (h Hash) IsZero() bool {
	return h == Hash{}
}

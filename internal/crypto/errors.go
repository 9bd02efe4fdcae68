package crypto

import "errors"

// Sentinel errors for key handling and signing.
var (
	// ErrInvalidKeyLength indicates key material of the wrong size for the
	// ed25519 scheme.
	ErrInvalidKeyLength = errors.New("invalid key length")

	// ErrWeakKey indicates all-zero private key material, which can never
	// have come from a key generator.
	ErrWeakKey = errors.New("private key material is all zeroes")

	// ErrKeyReleased indicates a signing attempt after Close zeroized the
	// private key.
	ErrKeyReleased = errors.New("key pair has been released")

	// ErrInvalidKeyEncoding indicates key material that is not valid hex.
	ErrInvalidKeyEncoding = errors.New("invalid key encoding")
)

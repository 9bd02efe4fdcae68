// Package crypto wraps the ed25519 signature scheme and BLAKE2b hashing used
// to authenticate transactions and queries.
//
// A KeyPair exclusively owns its decoded private key bytes. Close zeroizes
// them and is safe to call on every exit path; signing after Close fails
// with ErrKeyReleased rather than producing a signature from stale memory.
// Public key material and signatures are plain values and may be copied
// freely.
package crypto

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
)

// PublicKeySize is the ed25519 public key width.
const PublicKeySize = ed25519.PublicKeySize

// SignatureSize is the ed25519 signature width.
const SignatureSize = ed25519.SignatureSize

// PublicKey is raw ed25519 public key material.
type PublicKey []byte

// Hex renders the key as lowercase hex.
func (pk PublicKey) Hex() string {
	return hex.EncodeToString(pk)
}

// Equal reports whether two public keys are identical.
func (pk PublicKey) Equal(other PublicKey) bool {
	return bytes.Equal(pk, other)
}

// PublicKeyFromHex parses hex-encoded public key material.
func PublicKeyFromHex(s string) (PublicKey, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKeyEncoding, err)
	}
	if len(b) != PublicKeySize {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrInvalidKeyLength, len(b), PublicKeySize)
	}
	return PublicKey(b), nil
}

// Signature is a detached signature over a message, carrying the public key
// needed to verify it.
type Signature struct {
	PublicKey PublicKey
	Payload   []byte
}

// KeyPair owns an ed25519 private key for its lifetime. Construct with
// GenerateKeyPair or KeyPairFromSeedHex, and release with Close.
// Signing is safe from concurrent goroutines.
type KeyPair struct {
	mu       sync.RWMutex
	pub      ed25519.PublicKey
	priv     ed25519.PrivateKey
	released bool
}

// GenerateKeyPair creates a fresh key pair from crypto/rand.
func GenerateKeyPair() (*KeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return &KeyPair{pub: pub, priv: priv}, nil
}

// KeyPairFromSeedHex builds a key pair from a 32-byte hex-encoded seed.
// All-zero seeds are rejected: they cannot have come from a key generator
// and almost certainly indicate unset configuration.
func KeyPairFromSeedHex(seedHex string) (*KeyPair, error) {
	seed, err := hex.DecodeString(seedHex)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKeyEncoding, err)
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrInvalidKeyLength, len(seed), ed25519.SeedSize)
	}
	zero := true
	for _, b := range seed {
		if b != 0 {
			zero = false
			break
		}
	}
	if zero {
		return nil, ErrWeakKey
	}

	priv := ed25519.NewKeyFromSeed(seed)
	pub := make(ed25519.PublicKey, PublicKeySize)
	copy(pub, priv.Public().(ed25519.PublicKey))

	for i := range seed {
		seed[i] = 0
	}
	return &KeyPair{pub: pub, priv: priv}, nil
}

// PublicKey returns a copy of the public key material. Valid after Close.
func (kp *KeyPair) PublicKey() PublicKey {
	out := make(PublicKey, len(kp.pub))
	copy(out, kp.pub)
	return out
}

// Sign produces a detached deterministic signature over message.
// Returns ErrKeyReleased after Close.
func (kp *KeyPair) Sign(message []byte) (Signature, error) {
	kp.mu.RLock()
	defer kp.mu.RUnlock()
	if kp.released {
		return Signature{}, ErrKeyReleased
	}
	return Signature{
		PublicKey: kp.PublicKey(),
		Payload:   ed25519.Sign(kp.priv, message),
	}, nil
}

// Close zeroizes the private key. Idempotent; subsequent Sign calls fail
// with ErrKeyReleased.
func (kp *KeyPair) Close() {
	kp.mu.Lock()
	defer kp.mu.Unlock()
	if kp.released {
		return
	}
	for i := range kp.priv {
		kp.priv[i] = 0
	}
	kp.released = true
}

// Verify reports whether sig is a valid signature of message under pub.
func Verify(pub PublicKey, message, sig []byte) bool {
	if len(pub) != PublicKeySize || len(sig) != SignatureSize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(pub), message, sig)
}

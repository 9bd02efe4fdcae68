// Package builder assembles, canonically encodes, and signs transaction and
// query payloads. Building is pure: no network I/O, no side effects beyond
// the returned envelope. The envelope is immutable after signing; the
// transport client only borrows it to read bytes.
package builder

import (
	"errors"
	"fmt"
	"time"

	"github.com/ternledger/tern-go/internal/crypto"
	"github.com/ternledger/tern-go/internal/model"
	"github.com/ternledger/tern-go/internal/scale"
)

// envelopeVersion is the wire format version byte prefixed to every signed
// envelope. Decoders reject anything else with scale.ErrUnknownVersion.
const envelopeVersion uint8 = 1

// DefaultTTL bounds how long a transaction stays eligible for inclusion.
const DefaultTTL = 100 * time.Second

// Sentinel errors for envelope construction.
var (
	// ErrNoInstructions indicates a transaction built with an empty
	// instruction list.
	ErrNoInstructions = errors.New("transaction has no instructions")

	// ErrNilKeyPair indicates a missing signing key.
	ErrNilKeyPair = errors.New("nil key pair")

	// ErrNoSignatures indicates a decoded envelope carrying no signatures.
	ErrNoSignatures = errors.New("envelope has no signatures")
)

// TransactionPayload is the canonical content of a transaction: who submits,
// what to execute, and inclusion bounds. Constructed once per submission and
// immutable after signing.
type TransactionPayload struct {
	Account        model.AccountID
	Instructions   []model.Instruction
	CreationTimeMs uint64
	TimeToLiveMs   uint64
	Nonce          *uint32
	Metadata       model.Metadata
}

// Encode produces the canonical payload bytes that are hashed and signed.
func (p *TransactionPayload) Encode() []byte {
	e := scale.NewEncoder()
	model.EncodeIDBox(e, p.Account)
	e.PutCompact(uint64(len(p.Instructions)))
	for _, isi := range p.Instructions {
		model.EncodeInstruction(e, isi)
	}
	e.PutU64(p.CreationTimeMs)
	e.PutU64(p.TimeToLiveMs)
	e.PutOption(p.Nonce != nil)
	if p.Nonce != nil {
		e.PutU32(*p.Nonce)
	}
	p.Metadata.Encode(e)
	return e.Bytes()
}

func decodeTransactionPayload(d *scale.Decoder) (TransactionPayload, error) {
	var p TransactionPayload

	id, err := model.DecodeIDBox(d)
	if err != nil {
		return p, err
	}
	account, ok := id.(model.AccountID)
	if !ok {
		return p, fmt.Errorf("%w: payload account is not an account id", scale.ErrUnknownTag)
	}
	p.Account = account

	n, err := d.Length()
	if err != nil {
		return p, err
	}
	p.Instructions = make([]model.Instruction, 0, n)
	for i := 0; i < n; i++ {
		isi, err := model.DecodeInstruction(d)
		if err != nil {
			return p, err
		}
		p.Instructions = append(p.Instructions, isi)
	}

	if p.CreationTimeMs, err = d.U64(); err != nil {
		return p, err
	}
	if p.TimeToLiveMs, err = d.U64(); err != nil {
		return p, err
	}
	hasNonce, err := d.Option()
	if err != nil {
		return p, err
	}
	if hasNonce {
		nonce, err := d.U32()
		if err != nil {
			return p, err
		}
		p.Nonce = &nonce
	}
	p.Metadata, err = model.DecodeMetadata(d)
	return p, err
}

// SignedTransaction is a submission-ready envelope: canonical payload plus
// detached signatures over its hash.
type SignedTransaction struct {
	Payload    TransactionPayload
	Signatures []crypto.Signature

	hash crypto.Hash
}

// Hash identifies the transaction: the BLAKE2b digest of the canonical
// payload bytes.
func (tx *SignedTransaction) Hash() crypto.Hash {
	return tx.hash
}

// Encode renders the envelope for the wire: version byte, payload,
// signature list.
func (tx *SignedTransaction) Encode() []byte {
	e := scale.NewEncoder()
	e.PutU8(envelopeVersion)
	e.PutRaw(tx.Payload.Encode())
	e.PutCompact(uint64(len(tx.Signatures)))
	for _, sig := range tx.Signatures {
		e.PutBytes(sig.PublicKey)
		e.PutBytes(sig.Payload)
	}
	return e.Bytes()
}

// DecodeSignedTransaction parses and re-hashes an envelope. The hash is
// recomputed from the re-encoded payload; codec determinism guarantees it
// matches the sender's.
func DecodeSignedTransaction(data []byte) (*SignedTransaction, error) {
	d := scale.NewDecoder(data)

	version, err := d.U8()
	if err != nil {
		return nil, err
	}
	if version != envelopeVersion {
		return nil, fmt.Errorf("%w: transaction envelope version %d", scale.ErrUnknownVersion, version)
	}

	payload, err := decodeTransactionPayload(d)
	if err != nil {
		return nil, err
	}

	n, err := d.Length()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, ErrNoSignatures
	}
	sigs := make([]crypto.Signature, 0, n)
	for i := 0; i < n; i++ {
		pub, err := d.Bytes()
		if err != nil {
			return nil, err
		}
		raw, err := d.Bytes()
		if err != nil {
			return nil, err
		}
		sigs = append(sigs, crypto.Signature{PublicKey: crypto.PublicKey(pub), Payload: raw})
	}
	if err := d.Finish(); err != nil {
		return nil, err
	}

	return &SignedTransaction{
		Payload:    payload,
		Signatures: sigs,
		hash:       crypto.Sum256(payload.Encode()),
	}, nil
}

// VerifySignatures reports whether every signature verifies over the
// transaction hash.
func (tx *SignedTransaction) VerifySignatures() bool {
	if len(tx.Signatures) == 0 {
		return false
	}
	h := tx.hash
	for _, sig := range tx.Signatures {
		if !crypto.Verify(sig.PublicKey, h[:], sig.Payload) {
			return false
		}
	}
	return true
}

// TransactionOption adjusts optional payload fields before signing.
type TransactionOption func(*TransactionPayload)

// WithTTL overrides the default time-to-live.
func WithTTL(ttl time.Duration) TransactionOption {
	return func(p *TransactionPayload) {
		p.TimeToLiveMs = uint64(ttl.Milliseconds())
	}
}

// WithNonce distinguishes otherwise identical transactions.
func WithNonce(nonce uint32) TransactionOption {
	return func(p *TransactionPayload) {
		n := nonce
		p.Nonce = &n
	}
}

// WithMetadata attaches transaction metadata.
func WithMetadata(md model.Metadata) TransactionOption {
	return func(p *TransactionPayload) {
		p.Metadata = md
	}
}

// WithCreationTime pins creation time, primarily for reproducible tests.
func WithCreationTime(t time.Time) TransactionOption {
	return func(p *TransactionPayload) {
		p.CreationTimeMs = uint64(t.UnixMilli())
	}
}

// BuildTransaction assembles the payload, stamps creation time, computes
// canonical bytes, and signs their hash. Fails with a model.ValidationError
// before any cryptography if the payload is malformed, and with the signer's
// error if the key cannot sign.
func BuildTransaction(kp *crypto.KeyPair, account model.AccountID, instructions []model.Instruction, opts ...TransactionOption) (*SignedTransaction, error) {
	if kp == nil {
		return nil, ErrNilKeyPair
	}
	if account.Name == "" || account.Domain.Name == "" {
		return nil, fmt.Errorf("invalid account id %q", account)
	}
	if len(instructions) == 0 {
		return nil, ErrNoInstructions
	}
	for i, isi := range instructions {
		if isi == nil {
			return nil, fmt.Errorf("instruction %d is nil", i)
		}
		if err := isi.Validate(); err != nil {
			return nil, fmt.Errorf("instruction %d: %w", i, err)
		}
	}

	payload := TransactionPayload{
		Account:        account,
		Instructions:   instructions,
		CreationTimeMs: uint64(time.Now().UnixMilli()),
		TimeToLiveMs:   uint64(DefaultTTL.Milliseconds()),
	}
	for _, opt := range opts {
		opt(&payload)
	}
	if err := payload.Metadata.Validate(); err != nil {
		return nil, err
	}
	if payload.TimeToLiveMs == 0 {
		return nil, fmt.Errorf("time to live must be positive")
	}

	hash := crypto.Sum256(payload.Encode())
	sig, err := kp.Sign(hash[:])
	if err != nil {
		return nil, fmt.Errorf("sign transaction: %w", err)
	}

	return &SignedTransaction{
		Payload:    payload,
		Signatures: []crypto.Signature{sig},
		hash:       hash,
	}, nil
}

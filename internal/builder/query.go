package builder

import (
	"fmt"
	"time"

	"github.com/ternledger/tern-go/internal/crypto"
	"github.com/ternledger/tern-go/internal/model"
	"github.com/ternledger/tern-go/internal/scale"
)

// QueryPayload is the canonical content of a signed query.
type QueryPayload struct {
	Account     model.AccountID
	Query       model.QueryBox
	TimestampMs uint64
}

// Encode produces the canonical payload bytes that are hashed and signed.
func (p *QueryPayload) Encode() []byte {
	e := scale.NewEncoder()
	model.EncodeIDBox(e, p.Account)
	model.EncodeQueryBox(e, p.Query)
	e.PutU64(p.TimestampMs)
	return e.Bytes()
}

func decodeQueryPayload(d *scale.Decoder) (QueryPayload, error) {
	var p QueryPayload

	id, err := model.DecodeIDBox(d)
	if err != nil {
		return p, err
	}
	account, ok := id.(model.AccountID)
	if !ok {
		return p, fmt.Errorf("%w: query account is not an account id", scale.ErrUnknownTag)
	}
	p.Account = account

	if p.Query, err = model.DecodeQueryBox(d); err != nil {
		return p, err
	}
	p.TimestampMs, err = d.U64()
	return p, err
}

// SignedQuery is a submission-ready query envelope.
type SignedQuery struct {
	Payload   QueryPayload
	Signature crypto.Signature
}

// Encode renders the envelope for the wire: version byte, payload,
// signature.
func (q *SignedQuery) Encode() []byte {
	e := scale.NewEncoder()
	e.PutU8(envelopeVersion)
	e.PutRaw(q.Payload.Encode())
	e.PutBytes(q.Signature.PublicKey)
	e.PutBytes(q.Signature.Payload)
	return e.Bytes()
}

// DecodeSignedQuery parses a query envelope.
func DecodeSignedQuery(data []byte) (*SignedQuery, error) {
	d := scale.NewDecoder(data)

	version, err := d.U8()
	if err != nil {
		return nil, err
	}
	if version != envelopeVersion {
		return nil, fmt.Errorf("%w: query envelope version %d", scale.ErrUnknownVersion, version)
	}

	payload, err := decodeQueryPayload(d)
	if err != nil {
		return nil, err
	}
	pub, err := d.Bytes()
	if err != nil {
		return nil, err
	}
	raw, err := d.Bytes()
	if err != nil {
		return nil, err
	}
	if err := d.Finish(); err != nil {
		return nil, err
	}

	return &SignedQuery{
		Payload:   payload,
		Signature: crypto.Signature{PublicKey: crypto.PublicKey(pub), Payload: raw},
	}, nil
}

// VerifySignature reports whether the signature verifies over the payload
// hash.
func (q *SignedQuery) VerifySignature() bool {
	h := crypto.Sum256(q.Payload.Encode())
	return crypto.Verify(q.Signature.PublicKey, h[:], q.Signature.Payload)
}

// QueryOption adjusts optional query payload fields before signing.
type QueryOption func(*QueryPayload)

// WithQueryTimestamp pins the query timestamp, primarily for reproducible
// tests.
func WithQueryTimestamp(t time.Time) QueryOption {
	return func(p *QueryPayload) {
		p.TimestampMs = uint64(t.UnixMilli())
	}
}

// BuildQuery assembles, stamps, and signs a query envelope. Same shape as
// BuildTransaction, without TTL or nonce.
func BuildQuery(kp *crypto.KeyPair, account model.AccountID, query model.QueryBox, opts ...QueryOption) (*SignedQuery, error) {
	if kp == nil {
		return nil, ErrNilKeyPair
	}
	if account.Name == "" || account.Domain.Name == "" {
		return nil, fmt.Errorf("invalid account id %q", account)
	}
	if query == nil {
		return nil, fmt.Errorf("nil query")
	}

	payload := QueryPayload{
		Account:     account,
		Query:       query,
		TimestampMs: uint64(time.Now().UnixMilli()),
	}
	for _, opt := range opts {
		opt(&payload)
	}

	h := crypto.Sum256(payload.Encode())
	sig, err := kp.Sign(h[:])
	if err != nil {
		return nil, fmt.Errorf("sign query: %w", err)
	}

	return &SignedQuery{Payload: payload, Signature: sig}, nil
}

package model

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/ternledger/tern-go/internal/scale"
)

// Value is the closed union of payloads carried by expressions, instructions,
// and query results. Immutable once constructed.
type Value interface {
	valueTag() uint8
	encodeValue(e *scale.Encoder)
}

// Value discriminants.
const (
	valueU32 uint8 = iota
	valueU128
	valueBool
	valueString
	valueVec
	valueID
	valueIdentifiable
)

// U32Value is an unsigned 32-bit integer value.
type U32Value uint32

func (U32Value) valueTag() uint8 { return valueU32 }

func (v U32Value) encodeValue(e *scale.Encoder) { e.PutU32(uint32(v)) }

// U128Value is an unsigned 128-bit integer value.
type U128Value scale.U128

func (U128Value) valueTag() uint8 { return valueU128 }

func (v U128Value) encodeValue(e *scale.Encoder) { e.PutU128(scale.U128(v)) }

// BoolValue is a boolean value.
type BoolValue bool

func (BoolValue) valueTag() uint8 { return valueBool }

func (v BoolValue) encodeValue(e *scale.Encoder) { e.PutBool(bool(v)) }

// StringValue is a UTF-8 string value.
type StringValue string

func (StringValue) valueTag() uint8 { return valueString }

func (v StringValue) encodeValue(e *scale.Encoder) { e.PutString(string(v)) }

// VecValue is an ordered sequence of values; insertion order is preserved
// on the wire.
type VecValue []Value

func (VecValue) valueTag() uint8 { return valueVec }

func (v VecValue) encodeValue(e *scale.Encoder) {
	e.PutCompact(uint64(len(v)))
	for _, item := range v {
		EncodeValue(e, item)
	}
}

// IDValue wraps an entity identifier as a value.
type IDValue struct {
	ID IDBox
}

func (IDValue) valueTag() uint8 { return valueID }

func (v IDValue) encodeValue(e *scale.Encoder) { EncodeIDBox(e, v.ID) }

// IdentifiableValue wraps full entity state as a value.
type IdentifiableValue struct {
	Box IdentifiableBox
}

func (IdentifiableValue) valueTag() uint8 { return valueIdentifiable }

func (v IdentifiableValue) encodeValue(e *scale.Encoder) { EncodeIdentifiableBox(e, v.Box) }

// EncodeValue writes the value union discriminant followed by the payload.
func EncodeValue(e *scale.Encoder, v Value) {
	e.PutTag(v.valueTag())
	v.encodeValue(e)
}

// DecodeValue reads a value union. Unknown discriminants fail with
// scale.ErrUnknownTag.
func DecodeValue(d *scale.Decoder) (Value, error) {
	tag, err := d.Tag()
	if err != nil {
		return nil, err
	}
	switch tag {
	case valueU32:
		v, err := d.U32()
		return U32Value(v), err
	case valueU128:
		v, err := d.U128()
		return U128Value(v), err
	case valueBool:
		v, err := d.Bool()
		return BoolValue(v), err
	case valueString:
		v, err := d.String()
		return StringValue(v), err
	case valueVec:
		n, err := d.Length()
		if err != nil {
			return nil, err
		}
		vec := make(VecValue, 0, n)
		for i := 0; i < n; i++ {
			item, err := DecodeValue(d)
			if err != nil {
				return nil, err
			}
			vec = append(vec, item)
		}
		return vec, nil
	case valueID:
		id, err := DecodeIDBox(d)
		if err != nil {
			return nil, err
		}
		return IDValue{ID: id}, nil
	case valueIdentifiable:
		box, err := DecodeIdentifiableBox(d)
		if err != nil {
			return nil, err
		}
		return IdentifiableValue{Box: box}, nil
	default:
		return nil, fmt.Errorf("%w: value tag %d", scale.ErrUnknownTag, tag)
	}
}

// Metadata size limits, enforced at construction so malformed metadata never
// reaches the wire.
const (
	// MaxMetadataPairs bounds iteration cost per entity.
	MaxMetadataPairs = 64

	// MaxMetadataKeyLength accommodates namespaced keys without unbounded
	// allocation.
	MaxMetadataKeyLength = 128
)

// Metadata is a string-keyed mapping of values attached to entities and
// transactions. Insertion order is irrelevant: the wire encoding sorts
// entries by encoded key bytes, so two maps with equal contents always
// produce identical bytes.
type Metadata map[string]Value

// Validate checks pair count and key lengths.
func (m Metadata) Validate() error {
	if len(m) > MaxMetadataPairs {
		return validationErr("metadata", "%d pairs exceeds maximum of %d", len(m), MaxMetadataPairs)
	}
	for k, v := range m {
		if k == "" {
			return validationErr("metadata key", "must not be empty")
		}
		if len(k) > MaxMetadataKeyLength {
			return validationErr("metadata key", "%q exceeds %d bytes", k, MaxMetadataKeyLength)
		}
		if v == nil {
			return validationErr("metadata value", "nil value for key %q", k)
		}
	}
	return nil
}

// Encode writes the mapping as a compact pair count followed by key/value
// pairs sorted by encoded key bytes.
func (m Metadata) Encode(e *scale.Encoder) {
	type entry struct {
		keyBytes []byte
		value    Value
	}
	entries := make([]entry, 0, len(m))
	for k, v := range m {
		ke := scale.NewEncoder()
		ke.PutString(k)
		entries = append(entries, entry{keyBytes: ke.Bytes(), value: v})
	}
	sort.Slice(entries, func(i, j int) bool {
		return bytes.Compare(entries[i].keyBytes, entries[j].keyBytes) < 0
	})

	e.PutCompact(uint64(len(entries)))
	for _, ent := range entries {
		e.PutRaw(ent.keyBytes)
		EncodeValue(e, ent.value)
	}
}

// DecodeMetadata reads a mapping. An empty mapping decodes to nil so that
// values built without metadata round-trip to equal values.
func DecodeMetadata(d *scale.Decoder) (Metadata, error) {
	n, err := d.Length()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	m := make(Metadata, n)
	for i := 0; i < n; i++ {
		k, err := d.String()
		if err != nil {
			return nil, err
		}
		v, err := DecodeValue(d)
		if err != nil {
			return nil, err
		}
		m[k] = v
	}
	return m, nil
}

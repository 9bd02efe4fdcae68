package model

import (
	"fmt"

	"github.com/ternledger/tern-go/internal/crypto"
	"github.com/ternledger/tern-go/internal/scale"
)

// IdentifiableBox is the closed union of full entity state, as opposed to
// IDBox which only names entities. Register instructions carry an
// IdentifiableBox; queries return them.
type IdentifiableBox interface {
	identifiableTag() uint8
	encodeIdentifiable(e *scale.Encoder)
	// EntityID returns the id embedded in the entity state.
	EntityID() IDBox
}

// IdentifiableBox discriminants.
const (
	identifiableDomain uint8 = iota
	identifiableAccount
	identifiableAssetDefinition
	identifiableAsset
)

// Domain is a namespace grouping accounts and asset definitions.
type Domain struct {
	ID       DomainID
	Metadata Metadata
}

// NewDomain validates and constructs a domain entity.
func NewDomain(name string, metadata Metadata) (Domain, error) {
	id, err := NewDomainID(name)
	if err != nil {
		return Domain{}, err
	}
	if err := metadata.Validate(); err != nil {
		return Domain{}, err
	}
	return Domain{ID: id, Metadata: metadata}, nil
}

// EntityID implements IdentifiableBox.
func (dom Domain) EntityID() IDBox { return dom.ID }

func (Domain) identifiableTag() uint8 { return identifiableDomain }

func (dom Domain) encodeIdentifiable(e *scale.Encoder) {
	dom.ID.encodeID(e)
	dom.Metadata.Encode(e)
}

func decodeDomain(d *scale.Decoder) (Domain, error) {
	id, err := decodeDomainID(d)
	if err != nil {
		return Domain{}, err
	}
	md, err := DecodeMetadata(d)
	if err != nil {
		return Domain{}, err
	}
	return Domain{ID: id, Metadata: md}, nil
}

// Account is an identity within a domain, holding signatories authorized to
// act on its behalf.
type Account struct {
	ID          AccountID
	Signatories []crypto.PublicKey
	Metadata    Metadata
}

// NewAccount validates and constructs an account entity. At least one
// signatory is required; an account nobody can sign for is unusable.
func NewAccount(id AccountID, signatories []crypto.PublicKey, metadata Metadata) (Account, error) {
	if id.Name == "" || id.Domain.Name == "" {
		return Account{}, validationErr("account id", "empty name or domain")
	}
	if len(signatories) == 0 {
		return Account{}, validationErr("signatories", "at least one public key required")
	}
	for i, pk := range signatories {
		if len(pk) != crypto.PublicKeySize {
			return Account{}, validationErr("signatories", "key %d has length %d, want %d", i, len(pk), crypto.PublicKeySize)
		}
	}
	if err := metadata.Validate(); err != nil {
		return Account{}, err
	}
	return Account{ID: id, Signatories: signatories, Metadata: metadata}, nil
}

// EntityID implements IdentifiableBox.
func (a Account) EntityID() IDBox { return a.ID }

func (Account) identifiableTag() uint8 { return identifiableAccount }

func (a Account) encodeIdentifiable(e *scale.Encoder) {
	a.ID.encodeID(e)
	e.PutCompact(uint64(len(a.Signatories)))
	for _, pk := range a.Signatories {
		e.PutBytes(pk)
	}
	a.Metadata.Encode(e)
}

func decodeAccount(d *scale.Decoder) (Account, error) {
	id, err := decodeAccountID(d)
	if err != nil {
		return Account{}, err
	}
	n, err := d.Length()
	if err != nil {
		return Account{}, err
	}
	sigs := make([]crypto.PublicKey, 0, n)
	for i := 0; i < n; i++ {
		pk, err := d.Bytes()
		if err != nil {
			return Account{}, err
		}
		sigs = append(sigs, crypto.PublicKey(pk))
	}
	md, err := DecodeMetadata(d)
	if err != nil {
		return Account{}, err
	}
	return Account{ID: id, Signatories: sigs, Metadata: md}, nil
}

// AssetDefinition is a named, typed template from which concrete asset
// balances are instantiated per account. ValueType and Mintable are fixed at
// creation and immutable for the lifetime of the definition.
type AssetDefinition struct {
	ID        AssetDefinitionID
	ValueType AssetValueType
	Mintable  bool
	Metadata  Metadata
}

// NewAssetDefinition validates and constructs an asset definition.
func NewAssetDefinition(id AssetDefinitionID, valueType AssetValueType, mintable bool, metadata Metadata) (AssetDefinition, error) {
	if id.Name == "" || id.Domain.Name == "" {
		return AssetDefinition{}, validationErr("asset definition id", "empty name or domain")
	}
	if !valueType.valid() {
		return AssetDefinition{}, validationErr("asset value type", "unknown type %d", uint8(valueType))
	}
	if err := metadata.Validate(); err != nil {
		return AssetDefinition{}, err
	}
	return AssetDefinition{ID: id, ValueType: valueType, Mintable: mintable, Metadata: metadata}, nil
}

// EntityID implements IdentifiableBox.
func (ad AssetDefinition) EntityID() IDBox { return ad.ID }

func (AssetDefinition) identifiableTag() uint8 { return identifiableAssetDefinition }

func (ad AssetDefinition) encodeIdentifiable(e *scale.Encoder) {
	ad.ID.encodeID(e)
	e.PutTag(uint8(ad.ValueType))
	e.PutBool(ad.Mintable)
	ad.Metadata.Encode(e)
}

func decodeAssetDefinition(d *scale.Decoder) (AssetDefinition, error) {
	id, err := decodeAssetDefinitionID(d)
	if err != nil {
		return AssetDefinition{}, err
	}
	tag, err := d.Tag()
	if err != nil {
		return AssetDefinition{}, err
	}
	vt := AssetValueType(tag)
	if !vt.valid() {
		return AssetDefinition{}, fmt.Errorf("%w: asset value type %d", scale.ErrUnknownTag, tag)
	}
	mintable, err := d.Bool()
	if err != nil {
		return AssetDefinition{}, err
	}
	md, err := DecodeMetadata(d)
	if err != nil {
		return AssetDefinition{}, err
	}
	return AssetDefinition{ID: id, ValueType: vt, Mintable: mintable, Metadata: md}, nil
}

// Asset is a concrete balance of a definition held by an account.
type Asset struct {
	ID    AssetID
	Value AssetValue
}

// NewAsset validates and constructs an asset balance.
func NewAsset(id AssetID, value AssetValue) (Asset, error) {
	if value == nil {
		return Asset{}, validationErr("asset value", "must not be nil")
	}
	return Asset{ID: id, Value: value}, nil
}

// EntityID implements IdentifiableBox.
func (a Asset) EntityID() IDBox { return a.ID }

func (Asset) identifiableTag() uint8 { return identifiableAsset }

func (a Asset) encodeIdentifiable(e *scale.Encoder) {
	a.ID.encodeID(e)
	EncodeAssetValue(e, a.Value)
}

func decodeAsset(d *scale.Decoder) (Asset, error) {
	id, err := decodeAssetID(d)
	if err != nil {
		return Asset{}, err
	}
	v, err := DecodeAssetValue(d)
	if err != nil {
		return Asset{}, err
	}
	return Asset{ID: id, Value: v}, nil
}

// EncodeIdentifiableBox writes the union discriminant followed by the entity
// state.
func EncodeIdentifiableBox(e *scale.Encoder, box IdentifiableBox) {
	e.PutTag(box.identifiableTag())
	box.encodeIdentifiable(e)
}

// DecodeIdentifiableBox reads an identifiable union. Unknown discriminants
// fail with scale.ErrUnknownTag.
func DecodeIdentifiableBox(d *scale.Decoder) (IdentifiableBox, error) {
	tag, err := d.Tag()
	if err != nil {
		return nil, err
	}
	switch tag {
	case identifiableDomain:
		return decodeDomain(d)
	case identifiableAccount:
		return decodeAccount(d)
	case identifiableAssetDefinition:
		return decodeAssetDefinition(d)
	case identifiableAsset:
		return decodeAsset(d)
	default:
		return nil, fmt.Errorf("%w: identifiable tag %d", scale.ErrUnknownTag, tag)
	}
}

// Package model defines the ledger data model: identifiers, entities,
// instructions, expressions, queries, and events, all expressed as closed
// tagged unions over the scale codec.
//
// Every union is a Go interface with an unexported discriminant method, so
// the variant set cannot grow outside this package. Decode functions reject
// unknown discriminants with scale.ErrUnknownTag. Constructors validate
// structural invariants up front and return *ValidationError naming the
// violated field; values are treated as immutable once constructed.
//
// The package is passive data: no I/O, no cryptography beyond referencing
// public key and hash value types.
package model

import (
	"fmt"
	"strings"

	"github.com/ternledger/tern-go/internal/scale"
)

// Name syntax shared by domains, accounts, and asset definitions.
// The separators '@' and '#' are reserved by the identity syntax
// (name@domain, name#domain), whitespace is rejected outright.
const nameSeparators = "@#"

func validateName(field, name string) error {
	if name == "" {
		return validationErr(field, "must not be empty")
	}
	if strings.ContainsAny(name, nameSeparators) {
		return validationErr(field, "must not contain '@' or '#'")
	}
	if strings.ContainsAny(name, " \t\r\n") {
		return validationErr(field, "must not contain whitespace")
	}
	return nil
}

// IDBox is the closed union of entity identifiers. An id uniquely names an
// entity without carrying its state.
type IDBox interface {
	idBoxTag() uint8
	encodeID(e *scale.Encoder)
}

// IDBox discriminants.
const (
	idBoxDomain uint8 = iota
	idBoxAccount
	idBoxAssetDefinition
	idBoxAsset
)

// DomainID names a domain.
type DomainID struct {
	Name string
}

// NewDomainID validates and constructs a domain id.
func NewDomainID(name string) (DomainID, error) {
	if err := validateName("domain name", name); err != nil {
		return DomainID{}, err
	}
	return DomainID{Name: name}, nil
}

func (id DomainID) String() string { return id.Name }

func (id DomainID) idBoxTag() uint8 { return idBoxDomain }

func (id DomainID) encodeID(e *scale.Encoder) {
	e.PutString(id.Name)
}

func decodeDomainID(d *scale.Decoder) (DomainID, error) {
	name, err := d.String()
	if err != nil {
		return DomainID{}, err
	}
	return DomainID{Name: name}, nil
}

// AccountID names an account within a domain, written name@domain.
type AccountID struct {
	Name   string
	Domain DomainID
}

// NewAccountID validates and constructs an account id.
func NewAccountID(name, domain string) (AccountID, error) {
	if err := validateName("account name", name); err != nil {
		return AccountID{}, err
	}
	dom, err := NewDomainID(domain)
	if err != nil {
		return AccountID{}, err
	}
	return AccountID{Name: name, Domain: dom}, nil
}

// ParseAccountID parses the name@domain form.
func ParseAccountID(s string) (AccountID, error) {
	name, domain, ok := strings.Cut(s, "@")
	if !ok {
		return AccountID{}, validationErr("account id", "%q is not of the form name@domain", s)
	}
	return NewAccountID(name, domain)
}

func (id AccountID) String() string {
	return fmt.Sprintf("%s@%s", id.Name, id.Domain.Name)
}

func (id AccountID) idBoxTag() uint8 { return idBoxAccount }

func (id AccountID) encodeID(e *scale.Encoder) {
	e.PutString(id.Name)
	id.Domain.encodeID(e)
}

func decodeAccountID(d *scale.Decoder) (AccountID, error) {
	name, err := d.String()
	if err != nil {
		return AccountID{}, err
	}
	dom, err := decodeDomainID(d)
	if err != nil {
		return AccountID{}, err
	}
	return AccountID{Name: name, Domain: dom}, nil
}

// AssetDefinitionID names an asset definition within a domain, written
// name#domain.
type AssetDefinitionID struct {
	Name   string
	Domain DomainID
}

// NewAssetDefinitionID validates and constructs an asset definition id.
func NewAssetDefinitionID(name, domain string) (AssetDefinitionID, error) {
	if err := validateName("asset definition name", name); err != nil {
		return AssetDefinitionID{}, err
	}
	dom, err := NewDomainID(domain)
	if err != nil {
		return AssetDefinitionID{}, err
	}
	return AssetDefinitionID{Name: name, Domain: dom}, nil
}

// ParseAssetDefinitionID parses the name#domain form.
func ParseAssetDefinitionID(s string) (AssetDefinitionID, error) {
	name, domain, ok := strings.Cut(s, "#")
	if !ok {
		return AssetDefinitionID{}, validationErr("asset definition id", "%q is not of the form name#domain", s)
	}
	return NewAssetDefinitionID(name, domain)
}

func (id AssetDefinitionID) String() string {
	return fmt.Sprintf("%s#%s", id.Name, id.Domain.Name)
}

func (id AssetDefinitionID) idBoxTag() uint8 { return idBoxAssetDefinition }

func (id AssetDefinitionID) encodeID(e *scale.Encoder) {
	e.PutString(id.Name)
	id.Domain.encodeID(e)
}

func decodeAssetDefinitionID(d *scale.Decoder) (AssetDefinitionID, error) {
	name, err := d.String()
	if err != nil {
		return AssetDefinitionID{}, err
	}
	dom, err := decodeDomainID(d)
	if err != nil {
		return AssetDefinitionID{}, err
	}
	return AssetDefinitionID{Name: name, Domain: dom}, nil
}

// AssetID names a concrete asset balance: a definition held by an account.
// Written definition#domain@account@domain.
type AssetID struct {
	Definition AssetDefinitionID
	Account    AccountID
}

// NewAssetID constructs an asset id from its parts.
func NewAssetID(definition AssetDefinitionID, account AccountID) AssetID {
	return AssetID{Definition: definition, Account: account}
}

func (id AssetID) String() string {
	return fmt.Sprintf("%s@%s", id.Definition, id.Account)
}

func (id AssetID) idBoxTag() uint8 { return idBoxAsset }

func (id AssetID) encodeID(e *scale.Encoder) {
	id.Definition.encodeID(e)
	id.Account.encodeID(e)
}

func decodeAssetID(d *scale.Decoder) (AssetID, error) {
	def, err := decodeAssetDefinitionID(d)
	if err != nil {
		return AssetID{}, err
	}
	acc, err := decodeAccountID(d)
	if err != nil {
		return AssetID{}, err
	}
	return AssetID{Definition: def, Account: acc}, nil
}

// EncodeIDBox writes the id union discriminant followed by the id payload.
func EncodeIDBox(e *scale.Encoder, id IDBox) {
	e.PutTag(id.idBoxTag())
	id.encodeID(e)
}

// DecodeIDBox reads an id union. Unknown discriminants fail with
// scale.ErrUnknownTag.
func DecodeIDBox(d *scale.Decoder) (IDBox, error) {
	tag, err := d.Tag()
	if err != nil {
		return nil, err
	}
	switch tag {
	case idBoxDomain:
		return decodeDomainID(d)
	case idBoxAccount:
		return decodeAccountID(d)
	case idBoxAssetDefinition:
		return decodeAssetDefinitionID(d)
	case idBoxAsset:
		return decodeAssetID(d)
	default:
		return nil, fmt.Errorf("%w: id box tag %d", scale.ErrUnknownTag, tag)
	}
}

package model

import (
	"fmt"

	"github.com/ternledger/tern-go/internal/scale"
)

// Instruction is the closed union of state-changing operations submitted in
// transactions. Instructions are pure data on the client: no side effects
// occur before submission, and ledger-level rules (mintability, existence)
// are enforced only by the peer.
type Instruction interface {
	instructionTag() uint8
	encodeInstruction(e *scale.Encoder)
	// Validate checks structural well-formedness before encoding.
	Validate() error
}

// Instruction discriminants.
const (
	instructionRegister uint8 = iota
	instructionUnregister
	instructionMint
	instructionBurn
	instructionTransfer
	instructionSetKeyValue
)

// Register introduces a new entity. Object must evaluate to an
// IdentifiableBox.
type Register struct {
	Object Expression
}

// NewRegister builds a Register carrying entity state literally.
func NewRegister(box IdentifiableBox) Register {
	return Register{Object: RawIdentifiable(box)}
}

func (Register) instructionTag() uint8 { return instructionRegister }

func (i Register) encodeInstruction(e *scale.Encoder) { EncodeExpression(e, i.Object) }

// Validate implements Instruction.
func (i Register) Validate() error { return validateExpression("register object", i.Object) }

// Unregister removes an entity. Object must evaluate to an IDBox.
type Unregister struct {
	Object Expression
}

// NewUnregister builds an Unregister naming the entity literally.
func NewUnregister(id IDBox) Unregister {
	return Unregister{Object: RawID(id)}
}

func (Unregister) instructionTag() uint8 { return instructionUnregister }

func (i Unregister) encodeInstruction(e *scale.Encoder) { EncodeExpression(e, i.Object) }

// Validate implements Instruction.
func (i Unregister) Validate() error { return validateExpression("unregister object", i.Object) }

// Mint increases the balance of the destination asset by Object.
type Mint struct {
	Object      Expression
	Destination Expression
}

// NewMintQuantity builds a Mint of an unsigned 32-bit amount into asset.
func NewMintQuantity(amount uint32, asset AssetID) Mint {
	return Mint{
		Object:      Raw{Value: U32Value(amount)},
		Destination: RawID(asset),
	}
}

// NewMintBigQuantity builds a Mint of an unsigned 128-bit amount into asset.
func NewMintBigQuantity(amount scale.U128, asset AssetID) Mint {
	return Mint{
		Object:      Raw{Value: U128Value(amount)},
		Destination: RawID(asset),
	}
}

func (Mint) instructionTag() uint8 { return instructionMint }

func (i Mint) encodeInstruction(e *scale.Encoder) {
	EncodeExpression(e, i.Object)
	EncodeExpression(e, i.Destination)
}

// Validate implements Instruction.
func (i Mint) Validate() error {
	if err := validateExpression("mint object", i.Object); err != nil {
		return err
	}
	return validateExpression("mint destination", i.Destination)
}

// Burn decreases the balance of the destination asset by Object.
type Burn struct {
	Object      Expression
	Destination Expression
}

// NewBurnQuantity builds a Burn of an unsigned 32-bit amount from asset.
func NewBurnQuantity(amount uint32, asset AssetID) Burn {
	return Burn{
		Object:      Raw{Value: U32Value(amount)},
		Destination: RawID(asset),
	}
}

func (Burn) instructionTag() uint8 { return instructionBurn }

func (i Burn) encodeInstruction(e *scale.Encoder) {
	EncodeExpression(e, i.Object)
	EncodeExpression(e, i.Destination)
}

// Validate implements Instruction.
func (i Burn) Validate() error {
	if err := validateExpression("burn object", i.Object); err != nil {
		return err
	}
	return validateExpression("burn destination", i.Destination)
}

// Transfer moves Object from the source asset to the destination asset.
type Transfer struct {
	Source      Expression
	Object      Expression
	Destination Expression
}

// NewTransferQuantity builds a Transfer of an unsigned 32-bit amount.
func NewTransferQuantity(amount uint32, source, destination AssetID) Transfer {
	return Transfer{
		Source:      RawID(source),
		Object:      Raw{Value: U32Value(amount)},
		Destination: RawID(destination),
	}
}

func (Transfer) instructionTag() uint8 { return instructionTransfer }

func (i Transfer) encodeInstruction(e *scale.Encoder) {
	EncodeExpression(e, i.Source)
	EncodeExpression(e, i.Object)
	EncodeExpression(e, i.Destination)
}

// Validate implements Instruction.
func (i Transfer) Validate() error {
	if err := validateExpression("transfer source", i.Source); err != nil {
		return err
	}
	if err := validateExpression("transfer object", i.Object); err != nil {
		return err
	}
	return validateExpression("transfer destination", i.Destination)
}

// SetKeyValue upserts a metadata entry on the entity named by Object.
type SetKeyValue struct {
	Object Expression
	Key    string
	Value  Expression
}

// NewSetKeyValue builds a SetKeyValue with literal operands.
func NewSetKeyValue(id IDBox, key string, value Value) SetKeyValue {
	return SetKeyValue{
		Object: RawID(id),
		Key:    key,
		Value:  Raw{Value: value},
	}
}

func (SetKeyValue) instructionTag() uint8 { return instructionSetKeyValue }

func (i SetKeyValue) encodeInstruction(e *scale.Encoder) {
	EncodeExpression(e, i.Object)
	e.PutString(i.Key)
	EncodeExpression(e, i.Value)
}

// Validate implements Instruction.
func (i SetKeyValue) Validate() error {
	if err := validateExpression("set key value object", i.Object); err != nil {
		return err
	}
	if i.Key == "" {
		return validationErr("set key value key", "must not be empty")
	}
	if len(i.Key) > MaxMetadataKeyLength {
		return validationErr("set key value key", "exceeds %d bytes", MaxMetadataKeyLength)
	}
	return validateExpression("set key value value", i.Value)
}

// EncodeInstruction writes the instruction union discriminant followed by
// the variant payload.
func EncodeInstruction(e *scale.Encoder, i Instruction) {
	e.PutTag(i.instructionTag())
	i.encodeInstruction(e)
}

// DecodeInstruction reads an instruction union. Unknown discriminants fail
// with scale.ErrUnknownTag.
func DecodeInstruction(d *scale.Decoder) (Instruction, error) {
	tag, err := d.Tag()
	if err != nil {
		return nil, err
	}
	switch tag {
	case instructionRegister:
		obj, err := DecodeExpression(d)
		if err != nil {
			return nil, err
		}
		return Register{Object: obj}, nil
	case instructionUnregister:
		obj, err := DecodeExpression(d)
		if err != nil {
			return nil, err
		}
		return Unregister{Object: obj}, nil
	case instructionMint:
		obj, dst, err := decodeObjectDestination(d)
		if err != nil {
			return nil, err
		}
		return Mint{Object: obj, Destination: dst}, nil
	case instructionBurn:
		obj, dst, err := decodeObjectDestination(d)
		if err != nil {
			return nil, err
		}
		return Burn{Object: obj, Destination: dst}, nil
	case instructionTransfer:
		src, err := DecodeExpression(d)
		if err != nil {
			return nil, err
		}
		obj, dst, err := decodeObjectDestination(d)
		if err != nil {
			return nil, err
		}
		return Transfer{Source: src, Object: obj, Destination: dst}, nil
	case instructionSetKeyValue:
		obj, err := DecodeExpression(d)
		if err != nil {
			return nil, err
		}
		key, err := d.String()
		if err != nil {
			return nil, err
		}
		val, err := DecodeExpression(d)
		if err != nil {
			return nil, err
		}
		return SetKeyValue{Object: obj, Key: key, Value: val}, nil
	default:
		return nil, fmt.Errorf("%w: instruction tag %d", scale.ErrUnknownTag, tag)
	}
}

func decodeObjectDestination(d *scale.Decoder) (Expression, Expression, error) {
	obj, err := DecodeExpression(d)
	if err != nil {
		return nil, nil, err
	}
	dst, err := DecodeExpression(d)
	if err != nil {
		return nil, nil, err
	}
	return obj, dst, nil
}

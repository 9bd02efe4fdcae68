package model

import (
	"fmt"

	"github.com/ternledger/tern-go/internal/scale"
)

// Expression is the closed union of instruction operands: either a literal
// Raw value or a deferred computation evaluated by the peer. The client never
// evaluates non-Raw expressions; it only encodes them.
type Expression interface {
	expressionTag() uint8
	encodeExpression(e *scale.Encoder)
}

// Expression discriminants.
const (
	expressionRaw uint8 = iota
	expressionContextValue
	expressionAdd
	expressionSubtract
	expressionMultiply
	expressionQuery
)

// Raw is a literal value.
type Raw struct {
	Value Value
}

func (Raw) expressionTag() uint8 { return expressionRaw }

func (r Raw) encodeExpression(e *scale.Encoder) { EncodeValue(e, r.Value) }

// RawID wraps an entity id as a literal expression.
func RawID(id IDBox) Raw {
	return Raw{Value: IDValue{ID: id}}
}

// RawIdentifiable wraps entity state as a literal expression.
func RawIdentifiable(box IdentifiableBox) Raw {
	return Raw{Value: IdentifiableValue{Box: box}}
}

// ContextValue looks a value up in the peer's evaluation context by name.
type ContextValue struct {
	Name string
}

func (ContextValue) expressionTag() uint8 { return expressionContextValue }

func (c ContextValue) encodeExpression(e *scale.Encoder) { e.PutString(c.Name) }

// Add is deferred addition of two numeric expressions.
type Add struct {
	Left  Expression
	Right Expression
}

func (Add) expressionTag() uint8 { return expressionAdd }

func (a Add) encodeExpression(e *scale.Encoder) {
	EncodeExpression(e, a.Left)
	EncodeExpression(e, a.Right)
}

// Subtract is deferred subtraction. For Fixed operands a negative result is
// defined to fail on the peer; the client encodes the expression faithfully
// either way.
type Subtract struct {
	Left  Expression
	Right Expression
}

func (Subtract) expressionTag() uint8 { return expressionSubtract }

func (s Subtract) encodeExpression(e *scale.Encoder) {
	EncodeExpression(e, s.Left)
	EncodeExpression(e, s.Right)
}

// Multiply is deferred multiplication.
type Multiply struct {
	Left  Expression
	Right Expression
}

func (Multiply) expressionTag() uint8 { return expressionMultiply }

func (m Multiply) encodeExpression(e *scale.Encoder) {
	EncodeExpression(e, m.Left)
	EncodeExpression(e, m.Right)
}

// QueryExpression defers a query to be executed during evaluation.
type QueryExpression struct {
	Query QueryBox
}

func (QueryExpression) expressionTag() uint8 { return expressionQuery }

func (q QueryExpression) encodeExpression(e *scale.Encoder) { EncodeQueryBox(e, q.Query) }

// EncodeExpression writes the expression union discriminant followed by the
// variant payload.
func EncodeExpression(e *scale.Encoder, expr Expression) {
	e.PutTag(expr.expressionTag())
	expr.encodeExpression(e)
}

// DecodeExpression reads an expression union. Unknown discriminants fail
// with scale.ErrUnknownTag.
func DecodeExpression(d *scale.Decoder) (Expression, error) {
	tag, err := d.Tag()
	if err != nil {
		return nil, err
	}
	switch tag {
	case expressionRaw:
		v, err := DecodeValue(d)
		if err != nil {
			return nil, err
		}
		return Raw{Value: v}, nil
	case expressionContextValue:
		name, err := d.String()
		if err != nil {
			return nil, err
		}
		return ContextValue{Name: name}, nil
	case expressionAdd:
		l, r, err := decodeBinaryOperands(d)
		if err != nil {
			return nil, err
		}
		return Add{Left: l, Right: r}, nil
	case expressionSubtract:
		l, r, err := decodeBinaryOperands(d)
		if err != nil {
			return nil, err
		}
		return Subtract{Left: l, Right: r}, nil
	case expressionMultiply:
		l, r, err := decodeBinaryOperands(d)
		if err != nil {
			return nil, err
		}
		return Multiply{Left: l, Right: r}, nil
	case expressionQuery:
		q, err := DecodeQueryBox(d)
		if err != nil {
			return nil, err
		}
		return QueryExpression{Query: q}, nil
	default:
		return nil, fmt.Errorf("%w: expression tag %d", scale.ErrUnknownTag, tag)
	}
}

func decodeBinaryOperands(d *scale.Decoder) (Expression, Expression, error) {
	l, err := DecodeExpression(d)
	if err != nil {
		return nil, nil, err
	}
	r, err := DecodeExpression(d)
	if err != nil {
		return nil, nil, err
	}
	return l, r, nil
}

func validateExpression(field string, expr Expression) error {
	if expr == nil {
		return validationErr(field, "nil expression")
	}
	switch x := expr.(type) {
	case Raw:
		if x.Value == nil {
			return validationErr(field, "raw expression with nil value")
		}
	case ContextValue:
		if x.Name == "" {
			return validationErr(field, "empty context value name")
		}
	case Add:
		if err := validateExpression(field, x.Left); err != nil {
			return err
		}
		return validateExpression(field, x.Right)
	case Subtract:
		if err := validateExpression(field, x.Left); err != nil {
			return err
		}
		return validateExpression(field, x.Right)
	case Multiply:
		if err := validateExpression(field, x.Left); err != nil {
			return err
		}
		return validateExpression(field, x.Right)
	case QueryExpression:
		if x.Query == nil {
			return validationErr(field, "nil query expression")
		}
	}
	return nil
}

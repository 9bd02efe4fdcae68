package model

import (
	"fmt"

	"github.com/ternledger/tern-go/internal/scale"
)

// QueryBox is the closed union of read-only queries. Each variant knows the
// shape of its result, so the transport client can decode responses without
// out-of-band schema information.
type QueryBox interface {
	queryTag() uint8
	encodeQuery(e *scale.Encoder)
	// checkResult validates the decoded result against the shape this query
	// variant implies.
	checkResult(v Value) error
}

// QueryBox discriminants.
const (
	queryFindAllDomains uint8 = iota
	queryFindDomainByID
	queryFindAllAccounts
	queryFindAccountByID
	queryFindAssetsByAccountID
	queryFindAssetQuantityByID
)

// FindAllDomains returns every registered domain.
type FindAllDomains struct{}

func (FindAllDomains) queryTag() uint8 { return queryFindAllDomains }

func (FindAllDomains) encodeQuery(*scale.Encoder) {}

func (FindAllDomains) checkResult(v Value) error {
	return checkVecOf(v, func(item Value) error {
		return checkIdentifiable(item, func(box IdentifiableBox) bool {
			_, ok := box.(Domain)
			return ok
		}, "domain")
	})
}

// FindDomainByID returns the state of one domain.
type FindDomainByID struct {
	ID DomainID
}

func (FindDomainByID) queryTag() uint8 { return queryFindDomainByID }

func (q FindDomainByID) encodeQuery(e *scale.Encoder) { q.ID.encodeID(e) }

func (FindDomainByID) checkResult(v Value) error {
	return checkIdentifiable(v, func(box IdentifiableBox) bool {
		_, ok := box.(Domain)
		return ok
	}, "domain")
}

// FindAllAccounts returns every registered account.
type FindAllAccounts struct{}

func (FindAllAccounts) queryTag() uint8 { return queryFindAllAccounts }

func (FindAllAccounts) encodeQuery(*scale.Encoder) {}

func (FindAllAccounts) checkResult(v Value) error {
	return checkVecOf(v, func(item Value) error {
		return checkIdentifiable(item, func(box IdentifiableBox) bool {
			_, ok := box.(Account)
			return ok
		}, "account")
	})
}

// FindAccountByID returns the state of one account.
type FindAccountByID struct {
	ID AccountID
}

func (FindAccountByID) queryTag() uint8 { return queryFindAccountByID }

func (q FindAccountByID) encodeQuery(e *scale.Encoder) { q.ID.encodeID(e) }

func (FindAccountByID) checkResult(v Value) error {
	return checkIdentifiable(v, func(box IdentifiableBox) bool {
		_, ok := box.(Account)
		return ok
	}, "account")
}

// FindAssetsByAccountID returns every asset balance held by an account.
type FindAssetsByAccountID struct {
	ID AccountID
}

func (FindAssetsByAccountID) queryTag() uint8 { return queryFindAssetsByAccountID }

func (q FindAssetsByAccountID) encodeQuery(e *scale.Encoder) { q.ID.encodeID(e) }

func (FindAssetsByAccountID) checkResult(v Value) error {
	return checkVecOf(v, func(item Value) error {
		return checkIdentifiable(item, func(box IdentifiableBox) bool {
			_, ok := box.(Asset)
			return ok
		}, "asset")
	})
}

// FindAssetQuantityByID returns the numeric balance of one asset.
type FindAssetQuantityByID struct {
	ID AssetID
}

func (FindAssetQuantityByID) queryTag() uint8 { return queryFindAssetQuantityByID }

func (q FindAssetQuantityByID) encodeQuery(e *scale.Encoder) { q.ID.encodeID(e) }

func (FindAssetQuantityByID) checkResult(v Value) error {
	switch v.(type) {
	case U32Value, U128Value:
		return nil
	default:
		return fmt.Errorf("%w: expected numeric balance, got tag %d", ErrShapeMismatch, v.valueTag())
	}
}

// EncodeQueryBox writes the query union discriminant followed by the
// variant payload.
func EncodeQueryBox(e *scale.Encoder, q QueryBox) {
	e.PutTag(q.queryTag())
	q.encodeQuery(e)
}

// DecodeQueryBox reads a query union. Unknown discriminants fail with
// scale.ErrUnknownTag.
func DecodeQueryBox(d *scale.Decoder) (QueryBox, error) {
	tag, err := d.Tag()
	if err != nil {
		return nil, err
	}
	switch tag {
	case queryFindAllDomains:
		return FindAllDomains{}, nil
	case queryFindDomainByID:
		id, err := decodeDomainID(d)
		if err != nil {
			return nil, err
		}
		return FindDomainByID{ID: id}, nil
	case queryFindAllAccounts:
		return FindAllAccounts{}, nil
	case queryFindAccountByID:
		id, err := decodeAccountID(d)
		if err != nil {
			return nil, err
		}
		return FindAccountByID{ID: id}, nil
	case queryFindAssetsByAccountID:
		id, err := decodeAccountID(d)
		if err != nil {
			return nil, err
		}
		return FindAssetsByAccountID{ID: id}, nil
	case queryFindAssetQuantityByID:
		id, err := decodeAssetID(d)
		if err != nil {
			return nil, err
		}
		return FindAssetQuantityByID{ID: id}, nil
	default:
		return nil, fmt.Errorf("%w: query tag %d", scale.ErrUnknownTag, tag)
	}
}

// DecodeQueryResult decodes a complete query response body and validates it
// against the shape implied by the query variant. Trailing bytes and shape
// mismatches are errors, not panics.
func DecodeQueryResult(q QueryBox, data []byte) (Value, error) {
	d := scale.NewDecoder(data)
	v, err := DecodeValue(d)
	if err != nil {
		return nil, err
	}
	if err := d.Finish(); err != nil {
		return nil, err
	}
	if err := q.checkResult(v); err != nil {
		return nil, err
	}
	return v, nil
}

func checkVecOf(v Value, check func(Value) error) error {
	vec, ok := v.(VecValue)
	if !ok {
		return fmt.Errorf("%w: expected sequence, got tag %d", ErrShapeMismatch, v.valueTag())
	}
	for _, item := range vec {
		if err := check(item); err != nil {
			return err
		}
	}
	return nil
}

func checkIdentifiable(v Value, pred func(IdentifiableBox) bool, want string) error {
	iv, ok := v.(IdentifiableValue)
	if !ok {
		return fmt.Errorf("%w: expected identifiable, got tag %d", ErrShapeMismatch, v.valueTag())
	}
	if !pred(iv.Box) {
		return fmt.Errorf("%w: expected %s entity", ErrShapeMismatch, want)
	}
	return nil
}

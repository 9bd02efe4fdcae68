package peer

import (
	"fmt"

	"github.com/ternledger/tern-go/internal/model"
)

// The executor evaluates only literal (Raw) operands. Deferred expressions
// (arithmetic, context lookups, nested queries) belong to a full evaluation
// engine; submitting them here rejects the transaction rather than silently
// misexecuting.

func literalValue(field string, expr model.Expression) (model.Value, error) {
	raw, ok := expr.(model.Raw)
	if !ok {
		return nil, fmt.Errorf("%w: %s is a deferred expression", ErrUnsupported, field)
	}
	if raw.Value == nil {
		return nil, fmt.Errorf("%w: %s is empty", ErrUnsupported, field)
	}
	return raw.Value, nil
}

func literalID(field string, expr model.Expression) (model.IDBox, error) {
	v, err := literalValue(field, expr)
	if err != nil {
		return nil, err
	}
	idv, ok := v.(model.IDValue)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not an entity id", ErrUnsupported, field)
	}
	return idv.ID, nil
}

func literalAssetID(field string, expr model.Expression) (model.AssetID, error) {
	id, err := literalID(field, expr)
	if err != nil {
		return model.AssetID{}, err
	}
	asset, ok := id.(model.AssetID)
	if !ok {
		return model.AssetID{}, fmt.Errorf("%w: %s is not an asset id", ErrUnsupported, field)
	}
	return asset, nil
}

func literalAmount(field string, expr model.Expression) (model.AssetValue, error) {
	v, err := literalValue(field, expr)
	if err != nil {
		return nil, err
	}
	switch x := v.(type) {
	case model.U32Value:
		return model.Quantity(x), nil
	case model.U128Value:
		return model.BigQuantity(x), nil
	default:
		return nil, fmt.Errorf("%w: %s is not a numeric amount", ErrUnsupported, field)
	}
}

// execute applies one instruction to the store and returns the data events
// describing the committed change.
func (s *Server) execute(isi model.Instruction) ([]model.DataEvent, error) {
	switch x := isi.(type) {
	case model.Register:
		return s.executeRegister(x)
	case model.Unregister:
		id, err := literalID("unregister object", x.Object)
		if err != nil {
			return nil, err
		}
		if err := s.store.Unregister(id); err != nil {
			return nil, err
		}
		return []model.DataEvent{{Entity: id, Kind: model.DataDeleted}}, nil
	case model.Mint:
		asset, err := literalAssetID("mint destination", x.Destination)
		if err != nil {
			return nil, err
		}
		amount, err := literalAmount("mint object", x.Object)
		if err != nil {
			return nil, err
		}
		if err := s.store.Mint(asset, amount); err != nil {
			return nil, err
		}
		return []model.DataEvent{{Entity: asset, Kind: model.DataUpdated}}, nil
	case model.Burn:
		asset, err := literalAssetID("burn destination", x.Destination)
		if err != nil {
			return nil, err
		}
		amount, err := literalAmount("burn object", x.Object)
		if err != nil {
			return nil, err
		}
		if err := s.store.Burn(asset, amount); err != nil {
			return nil, err
		}
		return []model.DataEvent{{Entity: asset, Kind: model.DataUpdated}}, nil
	case model.Transfer:
		src, err := literalAssetID("transfer source", x.Source)
		if err != nil {
			return nil, err
		}
		dst, err := literalAssetID("transfer destination", x.Destination)
		if err != nil {
			return nil, err
		}
		amount, err := literalAmount("transfer object", x.Object)
		if err != nil {
			return nil, err
		}
		if err := s.store.Transfer(src, amount, dst); err != nil {
			return nil, err
		}
		return []model.DataEvent{
			{Entity: src, Kind: model.DataUpdated},
			{Entity: dst, Kind: model.DataUpdated},
		}, nil
	case model.SetKeyValue:
		id, err := literalID("set key value object", x.Object)
		if err != nil {
			return nil, err
		}
		value, err := literalValue("set key value value", x.Value)
		if err != nil {
			return nil, err
		}
		if err := s.store.SetKeyValue(id, x.Key, value); err != nil {
			return nil, err
		}
		return []model.DataEvent{{Entity: id, Kind: model.DataUpdated}}, nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupported, isi)
	}
}

func (s *Server) executeRegister(isi model.Register) ([]model.DataEvent, error) {
	v, err := literalValue("register object", isi.Object)
	if err != nil {
		return nil, err
	}
	iv, ok := v.(model.IdentifiableValue)
	if !ok {
		return nil, fmt.Errorf("%w: register object is not entity state", ErrUnsupported)
	}
	switch box := iv.Box.(type) {
	case model.Domain:
		err = s.store.RegisterDomain(box)
	case model.Account:
		err = s.store.RegisterAccount(box)
	case model.AssetDefinition:
		err = s.store.RegisterAssetDefinition(box)
	case model.Asset:
		// Balances come from Mint and Transfer, never from Register.
		return nil, fmt.Errorf("%w: register asset balance", ErrUnsupported)
	default:
		return nil, fmt.Errorf("%w: register %T", ErrUnsupported, box)
	}
	if err != nil {
		return nil, err
	}
	return []model.DataEvent{{Entity: iv.Box.EntityID(), Kind: model.DataCreated}}, nil
}

// runQuery resolves a query against the store into a result value.
func (s *Server) runQuery(q model.QueryBox) (model.Value, error) {
	switch x := q.(type) {
	case model.FindAllDomains:
		domains, err := s.store.Domains()
		if err != nil {
			return nil, err
		}
		vec := make(model.VecValue, 0, len(domains))
		for _, dom := range domains {
			vec = append(vec, model.IdentifiableValue{Box: dom})
		}
		return vec, nil
	case model.FindDomainByID:
		dom, err := s.store.Domain(x.ID)
		if err != nil {
			return nil, err
		}
		return model.IdentifiableValue{Box: dom}, nil
	case model.FindAllAccounts:
		accounts, err := s.store.Accounts()
		if err != nil {
			return nil, err
		}
		vec := make(model.VecValue, 0, len(accounts))
		for _, acc := range accounts {
			vec = append(vec, model.IdentifiableValue{Box: acc})
		}
		return vec, nil
	case model.FindAccountByID:
		acc, err := s.store.Account(x.ID)
		if err != nil {
			return nil, err
		}
		return model.IdentifiableValue{Box: acc}, nil
	case model.FindAssetsByAccountID:
		assets, err := s.store.AssetsByAccount(x.ID)
		if err != nil {
			return nil, err
		}
		vec := make(model.VecValue, 0, len(assets))
		for _, asset := range assets {
			vec = append(vec, model.IdentifiableValue{Box: asset})
		}
		return vec, nil
	case model.FindAssetQuantityByID:
		asset, err := s.store.Asset(x.ID)
		if err != nil {
			return nil, err
		}
		switch v := asset.Value.(type) {
		case model.Quantity:
			return model.U32Value(v), nil
		case model.BigQuantity:
			return model.U128Value(v), nil
		default:
			return nil, fmt.Errorf("%w: %s holds a non-integer balance", ErrUnsupported, x.ID)
		}
	default:
		return nil, fmt.Errorf("%w: query %T", ErrUnsupported, q)
	}
}

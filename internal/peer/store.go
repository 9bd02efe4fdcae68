// Package peer implements a single-node development peer: a ledger state
// store backed by SQL, an instruction executor, an event hub, and the HTTP
// and WebSocket surface clients talk to.
//
// The peer is a test double for a real network, not a consensus node. It
// executes transactions synchronously, keeps no blocks, and enforces only
// the ledger rules clients can observe: existence, mintability, value type
// agreement, and non-negative balances.
package peer

import (
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/ternledger/tern-go/internal/crypto"
	"github.com/ternledger/tern-go/internal/db"
	"github.com/ternledger/tern-go/internal/model"
	"github.com/ternledger/tern-go/internal/scale"
)

// Store persists ledger entities. Entity payloads that the relational layer
// never needs to interpret (metadata, signatories, asset values) are stored
// as canonical codec bytes.
type Store struct {
	q *db.Queries
}

// NewStore wraps a query set.
func NewStore(q *db.Queries) (*Store, error) {
	if q == nil {
		return nil, fmt.Errorf("queries cannot be nil")
	}
	return &Store{q: q}, nil
}

type domainRow struct {
	Name     string `db:"name"`
	Metadata []byte `db:"metadata"`
}

type accountRow struct {
	ID          string `db:"id"`
	Name        string `db:"name"`
	Domain      string `db:"domain"`
	Signatories []byte `db:"signatories"`
	Metadata    []byte `db:"metadata"`
}

type assetDefinitionRow struct {
	ID        string `db:"id"`
	Name      string `db:"name"`
	Domain    string `db:"domain"`
	ValueType uint8  `db:"value_type"`
	Mintable  bool   `db:"mintable"`
	Metadata  []byte `db:"metadata"`
}

type assetRow struct {
	ID           string `db:"id"`
	DefinitionID string `db:"definition_id"`
	AccountID    string `db:"account_id"`
	Value        []byte `db:"value"`
}

func encodeMetadata(md model.Metadata) []byte {
	e := scale.NewEncoder()
	md.Encode(e)
	return e.Bytes()
}

func decodeMetadataBlob(blob []byte) (model.Metadata, error) {
	d := scale.NewDecoder(blob)
	md, err := model.DecodeMetadata(d)
	if err != nil {
		return nil, err
	}
	return md, d.Finish()
}

func encodeAssetValue(v model.AssetValue) []byte {
	e := scale.NewEncoder()
	model.EncodeAssetValue(e, v)
	return e.Bytes()
}

func decodeAssetValueBlob(blob []byte) (model.AssetValue, error) {
	d := scale.NewDecoder(blob)
	v, err := model.DecodeAssetValue(d)
	if err != nil {
		return nil, err
	}
	return v, d.Finish()
}

func encodeSignatories(keys []crypto.PublicKey) []byte {
	e := scale.NewEncoder()
	e.PutCompact(uint64(len(keys)))
	for _, pk := range keys {
		e.PutBytes(pk)
	}
	return e.Bytes()
}

func decodeSignatoriesBlob(blob []byte) ([]crypto.PublicKey, error) {
	d := scale.NewDecoder(blob)
	n, err := d.Length()
	if err != nil {
		return nil, err
	}
	keys := make([]crypto.PublicKey, 0, n)
	for i := 0; i < n; i++ {
		pk, err := d.Bytes()
		if err != nil {
			return nil, err
		}
		keys = append(keys, crypto.PublicKey(pk))
	}
	return keys, d.Finish()
}

func nowUTC() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// RegisterDomain stores a new domain. Fails with ErrAlreadyExists if the
// name is taken.
func (s *Store) RegisterDomain(dom model.Domain) error {
	var existing domainRow
	err := s.q.Get("get-domain", &existing, dom.ID.Name)
	if err == nil {
		return fmt.Errorf("%w: domain %s", ErrAlreadyExists, dom.ID)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("failed to check domain: %w", err)
	}

	_, err = s.q.Exec("insert-domain", dom.ID.Name, encodeMetadata(dom.Metadata), nowUTC())
	if err != nil {
		return fmt.Errorf("failed to insert domain: %w", err)
	}
	return nil
}

// RegisterAccount stores a new account. The account's domain must already
// exist.
func (s *Store) RegisterAccount(acc model.Account) error {
	if _, err := s.Domain(acc.ID.Domain); err != nil {
		return err
	}

	var existing accountRow
	err := s.q.Get("get-account", &existing, acc.ID.String())
	if err == nil {
		return fmt.Errorf("%w: account %s", ErrAlreadyExists, acc.ID)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("failed to check account: %w", err)
	}

	_, err = s.q.Exec("insert-account",
		acc.ID.String(), acc.ID.Name, acc.ID.Domain.Name,
		encodeSignatories(acc.Signatories), encodeMetadata(acc.Metadata), nowUTC())
	if err != nil {
		return fmt.Errorf("failed to insert account: %w", err)
	}
	return nil
}

// RegisterAssetDefinition stores a new asset definition. The definition's
// domain must already exist.
func (s *Store) RegisterAssetDefinition(def model.AssetDefinition) error {
	if _, err := s.Domain(def.ID.Domain); err != nil {
		return err
	}

	var existing assetDefinitionRow
	err := s.q.Get("get-asset-definition", &existing, def.ID.String())
	if err == nil {
		return fmt.Errorf("%w: asset definition %s", ErrAlreadyExists, def.ID)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("failed to check asset definition: %w", err)
	}

	_, err = s.q.Exec("insert-asset-definition",
		def.ID.String(), def.ID.Name, def.ID.Domain.Name,
		def.ValueType, def.Mintable, encodeMetadata(def.Metadata), nowUTC())
	if err != nil {
		return fmt.Errorf("failed to insert asset definition: %w", err)
	}
	return nil
}

// Unregister removes the named entity. Removing an entity that does not
// exist fails with ErrNotFound.
func (s *Store) Unregister(id model.IDBox) error {
	var (
		query string
		key   string
	)
	switch v := id.(type) {
	case model.DomainID:
		query, key = "delete-domain", v.Name
	case model.AccountID:
		query, key = "delete-account", v.String()
	case model.AssetDefinitionID:
		query, key = "delete-asset-definition", v.String()
	case model.AssetID:
		query, key = "delete-asset", v.String()
	default:
		return fmt.Errorf("%w: unregister target %T", ErrUnsupported, id)
	}

	res, err := s.q.Exec(query, key)
	if err != nil {
		return fmt.Errorf("failed to unregister: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to unregister: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return nil
}

// Domain returns the state of one domain.
func (s *Store) Domain(id model.DomainID) (model.Domain, error) {
	var row domainRow
	if err := s.q.Get("get-domain", &row, id.Name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Domain{}, fmt.Errorf("%w: domain %s", ErrNotFound, id)
		}
		return model.Domain{}, fmt.Errorf("failed to get domain: %w", err)
	}
	return domainFromRow(row)
}

// Domains lists every registered domain ordered by name.
func (s *Store) Domains() ([]model.Domain, error) {
	var rows []domainRow
	if err := s.q.Select("list-domains", &rows); err != nil {
		return nil, fmt.Errorf("failed to list domains: %w", err)
	}
	domains := make([]model.Domain, 0, len(rows))
	for _, row := range rows {
		dom, err := domainFromRow(row)
		if err != nil {
			return nil, err
		}
		domains = append(domains, dom)
	}
	return domains, nil
}

func domainFromRow(row domainRow) (model.Domain, error) {
	md, err := decodeMetadataBlob(row.Metadata)
	if err != nil {
		return model.Domain{}, fmt.Errorf("corrupt domain metadata for %s: %w", row.Name, err)
	}
	return model.Domain{ID: model.DomainID{Name: row.Name}, Metadata: md}, nil
}

// Account returns the state of one account.
func (s *Store) Account(id model.AccountID) (model.Account, error) {
	var row accountRow
	if err := s.q.Get("get-account", &row, id.String()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Account{}, fmt.Errorf("%w: account %s", ErrNotFound, id)
		}
		return model.Account{}, fmt.Errorf("failed to get account: %w", err)
	}
	return accountFromRow(row)
}

// Accounts lists every registered account ordered by id.
func (s *Store) Accounts() ([]model.Account, error) {
	var rows []accountRow
	if err := s.q.Select("list-accounts", &rows); err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	accounts := make([]model.Account, 0, len(rows))
	for _, row := range rows {
		acc, err := accountFromRow(row)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, acc)
	}
	return accounts, nil
}

func accountFromRow(row accountRow) (model.Account, error) {
	sigs, err := decodeSignatoriesBlob(row.Signatories)
	if err != nil {
		return model.Account{}, fmt.Errorf("corrupt signatories for %s: %w", row.ID, err)
	}
	md, err := decodeMetadataBlob(row.Metadata)
	if err != nil {
		return model.Account{}, fmt.Errorf("corrupt account metadata for %s: %w", row.ID, err)
	}
	return model.Account{
		ID:          model.AccountID{Name: row.Name, Domain: model.DomainID{Name: row.Domain}},
		Signatories: sigs,
		Metadata:    md,
	}, nil
}

// AssetDefinition returns the state of one asset definition.
func (s *Store) AssetDefinition(id model.AssetDefinitionID) (model.AssetDefinition, error) {
	var row assetDefinitionRow
	if err := s.q.Get("get-asset-definition", &row, id.String()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.AssetDefinition{}, fmt.Errorf("%w: asset definition %s", ErrNotFound, id)
		}
		return model.AssetDefinition{}, fmt.Errorf("failed to get asset definition: %w", err)
	}
	md, err := decodeMetadataBlob(row.Metadata)
	if err != nil {
		return model.AssetDefinition{}, fmt.Errorf("corrupt definition metadata for %s: %w", row.ID, err)
	}
	return model.AssetDefinition{
		ID:        model.AssetDefinitionID{Name: row.Name, Domain: model.DomainID{Name: row.Domain}},
		ValueType: model.AssetValueType(row.ValueType),
		Mintable:  row.Mintable,
		Metadata:  md,
	}, nil
}

// Asset returns one asset balance.
func (s *Store) Asset(id model.AssetID) (model.Asset, error) {
	var row assetRow
	if err := s.q.Get("get-asset", &row, id.String()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Asset{}, fmt.Errorf("%w: asset %s", ErrNotFound, id)
		}
		return model.Asset{}, fmt.Errorf("failed to get asset: %w", err)
	}
	return assetFromRow(id, row)
}

// AssetsByAccount lists the asset balances held by an account.
func (s *Store) AssetsByAccount(id model.AccountID) ([]model.Asset, error) {
	if _, err := s.Account(id); err != nil {
		return nil, err
	}
	var rows []assetRow
	if err := s.q.Select("list-assets-by-account", &rows, id.String()); err != nil {
		return nil, fmt.Errorf("failed to list assets: %w", err)
	}
	assets := make([]model.Asset, 0, len(rows))
	for _, row := range rows {
		def, err := model.ParseAssetDefinitionID(row.DefinitionID)
		if err != nil {
			return nil, fmt.Errorf("corrupt asset definition id %q: %w", row.DefinitionID, err)
		}
		acc, err := model.ParseAccountID(row.AccountID)
		if err != nil {
			return nil, fmt.Errorf("corrupt asset account id %q: %w", row.AccountID, err)
		}
		asset, err := assetFromRow(model.NewAssetID(def, acc), row)
		if err != nil {
			return nil, err
		}
		assets = append(assets, asset)
	}
	return assets, nil
}

func assetFromRow(id model.AssetID, row assetRow) (model.Asset, error) {
	v, err := decodeAssetValueBlob(row.Value)
	if err != nil {
		return model.Asset{}, fmt.Errorf("corrupt asset value for %s: %w", row.ID, err)
	}
	return model.Asset{ID: id, Value: v}, nil
}

// Mint increases the balance of an asset, creating the balance row on first
// mint. The definition must exist, be mintable, and declare the amount's
// value type; the destination account must exist.
func (s *Store) Mint(id model.AssetID, amount model.AssetValue) error {
	def, err := s.AssetDefinition(id.Definition)
	if err != nil {
		return err
	}
	if !def.Mintable {
		return fmt.Errorf("%w: %s", ErrNotMintable, id.Definition)
	}
	if amount.Type() != def.ValueType {
		return fmt.Errorf("%w: definition %s holds %s, got %s",
			ErrTypeMismatch, id.Definition, def.ValueType, amount.Type())
	}
	if _, err := s.Account(id.Account); err != nil {
		return err
	}

	var row assetRow
	err = s.q.Get("get-asset", &row, id.String())
	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = s.q.Exec("insert-asset",
			id.String(), id.Definition.String(), id.Account.String(), encodeAssetValue(amount))
		if err != nil {
			return fmt.Errorf("failed to insert asset: %w", err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("failed to get asset: %w", err)
	}

	current, err := decodeAssetValueBlob(row.Value)
	if err != nil {
		return fmt.Errorf("corrupt asset value for %s: %w", id, err)
	}
	sum, err := addAssetValues(current, amount)
	if err != nil {
		return err
	}
	if _, err := s.q.Exec("update-asset-value", encodeAssetValue(sum), id.String()); err != nil {
		return fmt.Errorf("failed to update asset: %w", err)
	}
	return nil
}

// Burn decreases the balance of an asset. The balance must exist and cover
// the amount; value types must agree.
func (s *Store) Burn(id model.AssetID, amount model.AssetValue) error {
	asset, err := s.Asset(id)
	if err != nil {
		return err
	}
	if amount.Type() != asset.Value.Type() {
		return fmt.Errorf("%w: asset %s holds %s, got %s",
			ErrTypeMismatch, id, asset.Value.Type(), amount.Type())
	}
	remaining, err := subAssetValues(asset.Value, amount)
	if err != nil {
		return err
	}
	if _, err := s.q.Exec("update-asset-value", encodeAssetValue(remaining), id.String()); err != nil {
		return fmt.Errorf("failed to update asset: %w", err)
	}
	return nil
}

// Transfer moves an amount between two balances of the same definition. The
// destination balance is created on first transfer.
func (s *Store) Transfer(src model.AssetID, amount model.AssetValue, dst model.AssetID) error {
	if src.Definition != dst.Definition {
		return fmt.Errorf("%w: transfer across definitions %s and %s",
			ErrTypeMismatch, src.Definition, dst.Definition)
	}
	if _, err := s.Account(dst.Account); err != nil {
		return err
	}

	source, err := s.Asset(src)
	if err != nil {
		return err
	}
	if amount.Type() != source.Value.Type() {
		return fmt.Errorf("%w: asset %s holds %s, got %s",
			ErrTypeMismatch, src, source.Value.Type(), amount.Type())
	}
	remaining, err := subAssetValues(source.Value, amount)
	if err != nil {
		return err
	}

	// Both balance writes commit together or not at all.
	tx, err := s.q.DB().Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin transfer: %w", err)
	}
	defer tx.Rollback()

	var dstRow assetRow
	err = s.q.GetTx(tx, "get-asset", &dstRow, dst.String())
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := s.q.ExecTx(tx, "insert-asset",
			dst.String(), dst.Definition.String(), dst.Account.String(), encodeAssetValue(amount)); err != nil {
			return fmt.Errorf("failed to insert asset: %w", err)
		}
	case err != nil:
		return fmt.Errorf("failed to get asset: %w", err)
	default:
		current, err := decodeAssetValueBlob(dstRow.Value)
		if err != nil {
			return fmt.Errorf("corrupt asset value for %s: %w", dst, err)
		}
		sum, err := addAssetValues(current, amount)
		if err != nil {
			return err
		}
		if _, err := s.q.ExecTx(tx, "update-asset-value", encodeAssetValue(sum), dst.String()); err != nil {
			return fmt.Errorf("failed to update asset: %w", err)
		}
	}

	if _, err := s.q.ExecTx(tx, "update-asset-value", encodeAssetValue(remaining), src.String()); err != nil {
		return fmt.Errorf("failed to update asset: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transfer: %w", err)
	}
	return nil
}

// SetKeyValue upserts a metadata entry on a domain or account.
func (s *Store) SetKeyValue(id model.IDBox, key string, value model.Value) error {
	switch v := id.(type) {
	case model.DomainID:
		dom, err := s.Domain(v)
		if err != nil {
			return err
		}
		md := dom.Metadata
		if md == nil {
			md = model.Metadata{}
		}
		md[key] = value
		if err := md.Validate(); err != nil {
			return err
		}
		if _, err := s.q.Exec("update-domain-metadata", encodeMetadata(md), v.Name); err != nil {
			return fmt.Errorf("failed to update domain metadata: %w", err)
		}
		return nil
	case model.AccountID:
		acc, err := s.Account(v)
		if err != nil {
			return err
		}
		md := acc.Metadata
		if md == nil {
			md = model.Metadata{}
		}
		md[key] = value
		if err := md.Validate(); err != nil {
			return err
		}
		if _, err := s.q.Exec("update-account-metadata", encodeMetadata(md), v.String()); err != nil {
			return fmt.Errorf("failed to update account metadata: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("%w: set key value target %T", ErrUnsupported, id)
	}
}

func addAssetValues(a, b model.AssetValue) (model.AssetValue, error) {
	if a.Type() != b.Type() {
		return nil, fmt.Errorf("%w: %s + %s", ErrTypeMismatch, a.Type(), b.Type())
	}
	switch x := a.(type) {
	case model.Quantity:
		y := b.(model.Quantity)
		if uint64(x)+uint64(y) > math.MaxUint32 {
			return nil, fmt.Errorf("%w: quantity", ErrOverflow)
		}
		return x + y, nil
	case model.BigQuantity:
		sum, ok := scale.U128(x).AddChecked(scale.U128(b.(model.BigQuantity)))
		if !ok {
			return nil, fmt.Errorf("%w: big quantity", ErrOverflow)
		}
		return model.BigQuantity(sum), nil
	case model.Fixed:
		sum, err := x.CheckedAdd(b.(model.Fixed))
		if err != nil {
			return nil, fmt.Errorf("%w: fixed", ErrOverflow)
		}
		return sum, nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupported, a)
	}
}

func subAssetValues(a, b model.AssetValue) (model.AssetValue, error) {
	if a.Type() != b.Type() {
		return nil, fmt.Errorf("%w: %s - %s", ErrTypeMismatch, a.Type(), b.Type())
	}
	switch x := a.(type) {
	case model.Quantity:
		y := b.(model.Quantity)
		if y > x {
			return nil, fmt.Errorf("%w: %d < %d", ErrInsufficientBalance, x, y)
		}
		return x - y, nil
	case model.BigQuantity:
		diff, ok := scale.U128(x).SubChecked(scale.U128(b.(model.BigQuantity)))
		if !ok {
			return nil, fmt.Errorf("%w: big quantity", ErrInsufficientBalance)
		}
		return model.BigQuantity(diff), nil
	case model.Fixed:
		diff, err := x.CheckedSub(b.(model.Fixed))
		if err != nil {
			return nil, fmt.Errorf("%w: fixed underflow", ErrInsufficientBalance)
		}
		return diff, nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupported, a)
	}
}

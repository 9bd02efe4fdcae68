package model

import (
	"bytes"
	"errors"
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/ternledger/tern-go/internal/crypto"
	"github.com/ternledger/tern-go/internal/scale"
)

func mustDomain(t *testing.T, name string) Domain {
	t.Helper()
	dom, err := NewDomain(name, nil)
	if err != nil {
		t.Fatalf("NewDomain(%q) error = %v", name, err)
	}
	return dom
}

func encodeValueBytes(v Value) []byte {
	e := scale.NewEncoder()
	EncodeValue(e, v)
	return e.Bytes()
}

func TestValue_RoundTrip(t *testing.T) {
	accountID, err := ParseAccountID("alice@wonderland")
	if err != nil {
		t.Fatalf("ParseAccountID() error = %v", err)
	}
	defID, err := ParseAssetDefinitionID("rose#wonderland")
	if err != nil {
		t.Fatalf("ParseAssetDefinitionID() error = %v", err)
	}

	tests := []struct {
		name  string
		value Value
	}{
		{"u32", U32Value(42)},
		{"u128", U128Value(scale.U128{Lo: 1, Hi: 2})},
		{"bool", BoolValue(true)},
		{"string", StringValue("looking_glass")},
		{"empty vec", VecValue{}},
		{"nested vec", VecValue{U32Value(1), VecValue{StringValue("x")}, BoolValue(false)}},
		{"domain id", IDValue{ID: DomainID{Name: "wonderland"}}},
		{"account id", IDValue{ID: accountID}},
		{"asset id", IDValue{ID: NewAssetID(defID, accountID)}},
		{"identifiable domain", IdentifiableValue{Box: mustDomain(t, "wonderland")}},
		{"identifiable asset", IdentifiableValue{Box: Asset{
			ID:    NewAssetID(defID, accountID),
			Value: Quantity(100),
		}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := encodeValueBytes(tt.value)
			d := scale.NewDecoder(data)
			got, err := DecodeValue(d)
			if err != nil {
				t.Fatalf("DecodeValue() error = %v", err)
			}
			if err := d.Finish(); err != nil {
				t.Fatalf("Finish() error = %v", err)
			}
			if !reflect.DeepEqual(normalize(got), normalize(tt.value)) {
				t.Errorf("round trip = %#v, want %#v", got, tt.value)
			}

			// Determinism: a second encode yields identical bytes.
			if !bytes.Equal(data, encodeValueBytes(tt.value)) {
				t.Error("encoding is not deterministic")
			}
		})
	}
}

// normalize maps nil and empty metadata to a comparable form; decode returns
// empty maps where construction may hold nil.
func normalize(v Value) Value {
	iv, ok := v.(IdentifiableValue)
	if !ok {
		return v
	}
	switch box := iv.Box.(type) {
	case Domain:
		if len(box.Metadata) == 0 {
			box.Metadata = Metadata{}
			return IdentifiableValue{Box: box}
		}
	case Account:
		if len(box.Metadata) == 0 {
			box.Metadata = Metadata{}
			return IdentifiableValue{Box: box}
		}
	case AssetDefinition:
		if len(box.Metadata) == 0 {
			box.Metadata = Metadata{}
			return IdentifiableValue{Box: box}
		}
	}
	return iv
}

func TestValue_UnknownTagRejected(t *testing.T) {
	d := scale.NewDecoder([]byte{0xf3})
	_, err := DecodeValue(d)
	if !errors.Is(err, scale.ErrUnknownTag) {
		t.Errorf("DecodeValue() error = %v, want ErrUnknownTag", err)
	}
}

func TestUnknownTags_AllUnions(t *testing.T) {
	junk := []byte{0x7f, 0x00, 0x00}

	tests := []struct {
		name   string
		decode func(*scale.Decoder) (any, error)
	}{
		{"id box", func(d *scale.Decoder) (any, error) { return DecodeIDBox(d) }},
		{"identifiable", func(d *scale.Decoder) (any, error) { return DecodeIdentifiableBox(d) }},
		{"instruction", func(d *scale.Decoder) (any, error) { return DecodeInstruction(d) }},
		{"expression", func(d *scale.Decoder) (any, error) { return DecodeExpression(d) }},
		{"query", func(d *scale.Decoder) (any, error) { return DecodeQueryBox(d) }},
		{"event", func(d *scale.Decoder) (any, error) { return DecodeEvent(d) }},
		{"event filter", func(d *scale.Decoder) (any, error) { return DecodeEventFilter(d) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.decode(scale.NewDecoder(junk))
			if !errors.Is(err, scale.ErrUnknownTag) {
				t.Errorf("decode error = %v, want ErrUnknownTag", err)
			}
		})
	}
}

func TestMetadata_OrderIndependentEncoding(t *testing.T) {
	a := Metadata{}
	b := Metadata{}
	keys := []string{"zebra", "alpha", "mid", "a", "zz"}
	for _, k := range keys {
		a[k] = StringValue(k)
	}
	for i := len(keys) - 1; i >= 0; i-- {
		b[keys[i]] = StringValue(keys[i])
	}

	ea := scale.NewEncoder()
	a.Encode(ea)
	eb := scale.NewEncoder()
	b.Encode(eb)

	if !bytes.Equal(ea.Bytes(), eb.Bytes()) {
		t.Error("metadata encoding depends on insertion order")
	}

	d := scale.NewDecoder(ea.Bytes())
	got, err := DecodeMetadata(d)
	if err != nil {
		t.Fatalf("DecodeMetadata() error = %v", err)
	}
	if !reflect.DeepEqual(got, a) {
		t.Errorf("round trip = %#v, want %#v", got, a)
	}
}

func TestMetadata_PropertyOrderIndependence(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("key order never affects encoded bytes", prop.ForAll(
		func(keys []string) bool {
			forward := Metadata{}
			backward := Metadata{}
			for _, k := range keys {
				if k == "" || len(k) > MaxMetadataKeyLength {
					continue
				}
				forward[k] = U32Value(uint32(len(k)))
			}
			for i := len(keys) - 1; i >= 0; i-- {
				k := keys[i]
				if k == "" || len(k) > MaxMetadataKeyLength {
					continue
				}
				backward[k] = U32Value(uint32(len(k)))
			}

			ef := scale.NewEncoder()
			forward.Encode(ef)
			eb := scale.NewEncoder()
			backward.Encode(eb)
			return bytes.Equal(ef.Bytes(), eb.Bytes())
		},
		gen.SliceOf(gen.AlphaString()),
	))

	properties.TestingRun(t)
}

func TestInstruction_RoundTrip(t *testing.T) {
	accountID, _ := ParseAccountID("alice@wonderland")
	defID, _ := ParseAssetDefinitionID("rose#wonderland")
	assetID := NewAssetID(defID, accountID)

	tests := []struct {
		name string
		isi  Instruction
	}{
		{"register domain", NewRegister(mustDomain(t, "looking_glass"))},
		{"unregister", NewUnregister(DomainID{Name: "looking_glass"})},
		{"mint quantity", NewMintQuantity(42, assetID)},
		{"mint big quantity", NewMintBigQuantity(scale.U128{Lo: 9, Hi: 1}, assetID)},
		{"burn", NewBurnQuantity(7, assetID)},
		{"transfer", NewTransferQuantity(5, assetID, assetID)},
		{"set key value", NewSetKeyValue(accountID, "note", StringValue("hi"))},
		{"deferred mint", Mint{
			Object: Add{
				Left:  Raw{Value: U32Value(1)},
				Right: ContextValue{Name: "bonus"},
			},
			Destination: RawID(assetID),
		}},
		{"query expression", Register{
			Object: QueryExpression{Query: FindDomainByID{ID: DomainID{Name: "wonderland"}}},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.isi.Validate(); err != nil {
				t.Fatalf("Validate() error = %v", err)
			}

			e := scale.NewEncoder()
			EncodeInstruction(e, tt.isi)
			d := scale.NewDecoder(e.Bytes())
			got, err := DecodeInstruction(d)
			if err != nil {
				t.Fatalf("DecodeInstruction() error = %v", err)
			}
			if err := d.Finish(); err != nil {
				t.Fatalf("Finish() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.isi) {
				t.Errorf("round trip = %#v, want %#v", got, tt.isi)
			}
		})
	}
}

func TestInstruction_Validation(t *testing.T) {
	tests := []struct {
		name string
		isi  Instruction
	}{
		{"nil register object", Register{}},
		{"raw nil value", Register{Object: Raw{}}},
		{"empty context name", Mint{Object: ContextValue{}, Destination: Raw{Value: U32Value(1)}}},
		{"empty set key", SetKeyValue{Object: Raw{Value: U32Value(1)}, Value: Raw{Value: U32Value(1)}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.isi.Validate()
			if err == nil {
				t.Fatal("Validate() = nil, want error")
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Errorf("Validate() error = %T, want *ValidationError", err)
			}
		})
	}
}

func TestEvent_RoundTrip(t *testing.T) {
	kind := EntityTransaction
	hash := crypto.Sum256([]byte("tx"))

	tests := []struct {
		name string
		ev   Event
	}{
		{"validating with hash", PipelineEvent{EntityKind: &kind, Hash: &hash, Status: StatusValidating{}}},
		{"committed bare", PipelineEvent{Status: StatusCommitted{}}},
		{"rejected", PipelineEvent{Hash: &hash, Status: StatusRejected{Reason: "not mintable"}}},
		{"data created", DataEvent{Entity: DomainID{Name: "wonderland"}, Kind: DataCreated}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := scale.NewEncoder()
			EncodeEvent(e, tt.ev)
			d := scale.NewDecoder(e.Bytes())
			got, err := DecodeEvent(d)
			if err != nil {
				t.Fatalf("DecodeEvent() error = %v", err)
			}
			if err := d.Finish(); err != nil {
				t.Fatalf("Finish() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.ev) {
				t.Errorf("round trip = %#v, want %#v", got, tt.ev)
			}
		})
	}
}

func TestEventFilter_Matches(t *testing.T) {
	txKind := EntityTransaction
	blockKind := EntityBlock
	hashA := crypto.Sum256([]byte("a"))
	hashB := crypto.Sum256([]byte("b"))

	evA := PipelineEvent{EntityKind: &txKind, Hash: &hashA, Status: StatusValidating{}}

	tests := []struct {
		name   string
		filter EventFilter
		want   bool
	}{
		{"wildcard pipeline", PipelineFilter{}, true},
		{"matching hash", PipelineFilter{Hash: &hashA}, true},
		{"other hash", PipelineFilter{Hash: &hashB}, false},
		{"matching kind", PipelineFilter{EntityKind: &txKind}, true},
		{"other kind", PipelineFilter{EntityKind: &blockKind}, false},
		{"data filter ignores pipeline", DataFilter{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.Matches(evA); got != tt.want {
				t.Errorf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestQueryResult_ShapeMismatch(t *testing.T) {
	// FindAllDomains expects a sequence of domains; hand it a bare u32.
	data := encodeValueBytes(U32Value(7))
	_, err := DecodeQueryResult(FindAllDomains{}, data)
	if !errors.Is(err, ErrShapeMismatch) {
		t.Errorf("DecodeQueryResult() error = %v, want ErrShapeMismatch", err)
	}

	// A sequence of the wrong element type is also a mismatch.
	data = encodeValueBytes(VecValue{U32Value(7)})
	_, err = DecodeQueryResult(FindAllDomains{}, data)
	if !errors.Is(err, ErrShapeMismatch) {
		t.Errorf("DecodeQueryResult() error = %v, want ErrShapeMismatch", err)
	}

	// Trailing bytes after a well-shaped result are rejected.
	data = append(encodeValueBytes(VecValue{}), 0x00)
	_, err = DecodeQueryResult(FindAllDomains{}, data)
	if !errors.Is(err, scale.ErrTrailingBytes) {
		t.Errorf("DecodeQueryResult() error = %v, want ErrTrailingBytes", err)
	}
}

package model

import (
	"errors"
	"testing"
)

func TestFixedFromString(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Fixed
		wantErr bool
	}{
		{"zero", "0", 0, false},
		{"integer", "12", 12_000_000_000, false},
		{"fraction", "1.25", 1_250_000_000, false},
		{"full precision", "0.000000001", 1, false},
		{"bare fraction", ".5", 500_000_000, false},
		{"negative", "-1", 0, true},
		{"too precise", "0.0000000001", 0, true},
		{"not a number", "12a", 0, true},
		{"empty", "", 0, true},
		{"overflow", "9999999999999999999", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FixedFromString(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrFixedOutOfRange) {
					t.Errorf("FixedFromString(%q) error = %v, want ErrFixedOutOfRange", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("FixedFromString(%q) error = %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("FixedFromString(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestFixed_String(t *testing.T) {
	tests := []struct {
		value Fixed
		want  string
	}{
		{0, "0"},
		{12_000_000_000, "12"},
		{1_250_000_000, "1.25"},
		{1, "0.000000001"},
	}

	for _, tt := range tests {
		if got := tt.value.String(); got != tt.want {
			t.Errorf("Fixed(%d).String() = %q, want %q", int64(tt.value), got, tt.want)
		}
	}
}

func TestFixed_CheckedArithmetic(t *testing.T) {
	a, _ := FixedFromString("1.5")
	b, _ := FixedFromString("2.5")

	sum, err := a.CheckedAdd(b)
	if err != nil || sum.String() != "4" {
		t.Errorf("CheckedAdd = %v, %v; want 4", sum, err)
	}

	// Subtraction that would go negative fails, never clamps to zero.
	if _, err := a.CheckedSub(b); !errors.Is(err, ErrFixedOutOfRange) {
		t.Errorf("CheckedSub underflow error = %v, want ErrFixedOutOfRange", err)
	}

	diff, err := b.CheckedSub(a)
	if err != nil || diff.String() != "1" {
		t.Errorf("CheckedSub = %v, %v; want 1", diff, err)
	}

	big := Fixed(1<<63 - 1)
	if _, err := big.CheckedAdd(Fixed(1)); !errors.Is(err, ErrFixedOutOfRange) {
		t.Errorf("CheckedAdd overflow error = %v, want ErrFixedOutOfRange", err)
	}
}

func TestNewAssetDefinition(t *testing.T) {
	id, err := ParseAssetDefinitionID("rose#wonderland")
	if err != nil {
		t.Fatalf("ParseAssetDefinitionID() error = %v", err)
	}

	def, err := NewAssetDefinition(id, AssetQuantity, false, nil)
	if err != nil {
		t.Fatalf("NewAssetDefinition() error = %v", err)
	}
	if def.Mintable {
		t.Error("Mintable = true, want false")
	}

	if _, err := NewAssetDefinition(id, AssetValueType(99), true, nil); err == nil {
		t.Error("NewAssetDefinition() accepted unknown value type")
	}
	var verr *ValidationError
	_, err = NewAssetDefinition(AssetDefinitionID{}, AssetQuantity, true, nil)
	if !errors.As(err, &verr) {
		t.Errorf("NewAssetDefinition(zero id) error = %T, want *ValidationError", err)
	}
}

func TestAssetValueTypeFromString(t *testing.T) {
	for _, s := range []string{"quantity", "big-quantity", "fixed"} {
		vt, err := AssetValueTypeFromString(s)
		if err != nil {
			t.Fatalf("AssetValueTypeFromString(%q) error = %v", s, err)
		}
		if vt.String() != s {
			t.Errorf("round trip %q -> %q", s, vt.String())
		}
	}
	if _, err := AssetValueTypeFromString("float"); err == nil {
		t.Error("AssetValueTypeFromString(float) succeeded")
	}
}

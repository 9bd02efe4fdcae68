package model

import (
	"errors"
	"testing"
)

func TestParseAccountID(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"simple", "alice@wonderland", "alice@wonderland", false},
		{"missing separator", "alice", "", true},
		{"empty name", "@wonderland", "", true},
		{"empty domain", "alice@", "", true},
		{"hash in name", "al#ce@wonderland", "", true},
		{"whitespace", "al ice@wonderland", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := ParseAccountID(tt.input)
			if tt.wantErr {
				var verr *ValidationError
				if !errors.As(err, &verr) {
					t.Errorf("ParseAccountID(%q) error = %v, want *ValidationError", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseAccountID(%q) error = %v", tt.input, err)
			}
			if id.String() != tt.want {
				t.Errorf("String() = %q, want %q", id.String(), tt.want)
			}
		})
	}
}

func TestParseAssetDefinitionID(t *testing.T) {
	id, err := ParseAssetDefinitionID("rose#wonderland")
	if err != nil {
		t.Fatalf("ParseAssetDefinitionID() error = %v", err)
	}
	if id.Name != "rose" || id.Domain.Name != "wonderland" {
		t.Errorf("parsed = %+v", id)
	}

	if _, err := ParseAssetDefinitionID("rose"); err == nil {
		t.Error("ParseAssetDefinitionID(rose) succeeded, want error")
	}
}

func TestAssetID_String(t *testing.T) {
	def, _ := ParseAssetDefinitionID("rose#wonderland")
	acc, _ := ParseAccountID("alice@wonderland")
	id := NewAssetID(def, acc)
	want := "rose#wonderland@alice@wonderland"
	if id.String() != want {
		t.Errorf("String() = %q, want %q", id.String(), want)
	}
}

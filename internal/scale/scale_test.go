package scale

import (
	"bytes"
	"errors"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestCompact_KnownEncodings(t *testing.T) {
	tests := []struct {
		name  string
		value uint64
		want  []byte
	}{
		{"zero", 0, []byte{0x00}},
		{"one", 1, []byte{0x04}},
		{"single byte max", 63, []byte{0xfc}},
		{"two byte min", 64, []byte{0x01, 0x01}},
		{"two byte max", 1<<14 - 1, []byte{0xfd, 0xff}},
		{"four byte min", 1 << 14, []byte{0x02, 0x00, 0x01, 0x00}},
		{"four byte max", 1<<30 - 1, []byte{0xfe, 0xff, 0xff, 0xff}},
		{"big mode min", 1 << 30, []byte{0x03, 0x00, 0x00, 0x00, 0x40}},
		{"u64 max", ^uint64(0), []byte{0x13, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEncoder()
			e.PutCompact(tt.value)
			if !bytes.Equal(e.Bytes(), tt.want) {
				t.Errorf("PutCompact(%d) = %x, want %x", tt.value, e.Bytes(), tt.want)
			}

			d := NewDecoder(e.Bytes())
			got, err := d.Compact()
			if err != nil {
				t.Fatalf("Compact() error = %v", err)
			}
			if got != tt.value {
				t.Errorf("Compact() = %d, want %d", got, tt.value)
			}
			if err := d.Finish(); err != nil {
				t.Errorf("Finish() error = %v", err)
			}
		})
	}
}

func TestDecoder_Truncation(t *testing.T) {
	e := NewEncoder()
	e.PutU32(0xdeadbeef)
	e.PutString("hello")
	full := e.Bytes()

	// Every strict prefix must fail cleanly, never panic.
	for i := 0; i < len(full); i++ {
		d := NewDecoder(full[:i])
		err := func() error {
			if _, err := d.U32(); err != nil {
				return err
			}
			_, err := d.String()
			return err
		}()
		if err == nil {
			t.Fatalf("prefix len %d decoded successfully", i)
		}
		if !errors.Is(err, ErrShortBuffer) && !errors.Is(err, ErrLengthOverflow) {
			t.Errorf("prefix len %d: unexpected error %v", i, err)
		}
	}
}

func TestDecoder_TrailingBytes(t *testing.T) {
	e := NewEncoder()
	e.PutU32(7)
	e.PutU8(0xff)

	d := NewDecoder(e.Bytes())
	if _, err := d.U32(); err != nil {
		t.Fatalf("U32() error = %v", err)
	}
	err := d.Finish()
	if !errors.Is(err, ErrTrailingBytes) {
		t.Errorf("Finish() error = %v, want ErrTrailingBytes", err)
	}
}

func TestDecoder_InvalidBool(t *testing.T) {
	d := NewDecoder([]byte{0x02})
	if _, err := d.Bool(); !errors.Is(err, ErrInvalidBool) {
		t.Errorf("Bool() error = %v, want ErrInvalidBool", err)
	}
}

func TestDecoder_LengthOverflow(t *testing.T) {
	// Length prefix claims 2^30-1 bytes follow; only one does.
	d := NewDecoder([]byte{0xfe, 0xff, 0xff, 0xff, 0x00})
	if _, err := d.Bytes(); !errors.Is(err, ErrLengthOverflow) {
		t.Errorf("Bytes() error = %v, want ErrLengthOverflow", err)
	}
}

func TestU128_StringRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{"zero", "0"},
		{"small", "42"},
		{"u64 boundary", "18446744073709551616"},
		{"u128 max", "340282366920938463463374607431768211455"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := U128FromString(tt.value)
			if err != nil {
				t.Fatalf("U128FromString(%q) error = %v", tt.value, err)
			}
			if v.String() != tt.value {
				t.Errorf("String() = %q, want %q", v.String(), tt.value)
			}
		})
	}

	if _, err := U128FromString("-1"); err == nil {
		t.Error("U128FromString(-1) succeeded, want error")
	}
	if _, err := U128FromString("340282366920938463463374607431768211456"); err == nil {
		t.Error("U128FromString(2^128) succeeded, want error")
	}
}

func TestU128_CheckedArithmetic(t *testing.T) {
	max := U128{Lo: ^uint64(0), Hi: ^uint64(0)}

	if _, ok := max.AddChecked(U128FromUint64(1)); ok {
		t.Error("AddChecked overflow not reported")
	}
	if _, ok := U128FromUint64(0).SubChecked(U128FromUint64(1)); ok {
		t.Error("SubChecked underflow not reported")
	}

	sum, ok := U128{Lo: ^uint64(0)}.AddChecked(U128FromUint64(1))
	if !ok || sum.Hi != 1 || sum.Lo != 0 {
		t.Errorf("AddChecked carry = %+v, ok=%v", sum, ok)
	}
}

func TestCompact_PropertyRoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("compact round-trips any uint64", prop.ForAll(
		func(v uint64) bool {
			e := NewEncoder()
			e.PutCompact(v)
			d := NewDecoder(e.Bytes())
			got, err := d.Compact()
			return err == nil && got == v && d.Finish() == nil
		},
		gen.UInt64(),
	))

	properties.Property("encoding is deterministic", prop.ForAll(
		func(v uint64) bool {
			a := NewEncoder()
			a.PutCompact(v)
			b := NewEncoder()
			b.PutCompact(v)
			return bytes.Equal(a.Bytes(), b.Bytes())
		},
		gen.UInt64(),
	))

	properties.TestingRun(t)
}

func TestScalars_PropertyRoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("string round-trips", prop.ForAll(
		func(s string) bool {
			e := NewEncoder()
			e.PutString(s)
			d := NewDecoder(e.Bytes())
			got, err := d.String()
			return err == nil && got == s && d.Finish() == nil
		},
		gen.AnyString(),
	))

	properties.Property("u128 round-trips", prop.ForAll(
		func(lo, hi uint64) bool {
			v := U128{Lo: lo, Hi: hi}
			e := NewEncoder()
			e.PutU128(v)
			d := NewDecoder(e.Bytes())
			got, err := d.U128()
			return err == nil && got == v && d.Finish() == nil
		},
		gen.UInt64(),
		gen.UInt64(),
	))

	properties.TestingRun(t)
}

func TestDecoder_PropertyNeverPanics(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("arbitrary bytes never panic the decoder", prop.ForAll(
		func(data []byte) bool {
			defer func() {
				if r := recover(); r != nil {
					t.Errorf("decoder panicked on %x: %v", data, r)
				}
			}()

			d := NewDecoder(data)
			_, _ = d.Compact()
			_, _ = d.String()
			_, _ = d.U128()
			_, _ = d.Bool()
			return true
		},
		gen.SliceOf(gen.UInt8()),
	))

	properties.TestingRun(t)
}

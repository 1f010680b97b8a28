package ggobject

import (
	"testing"

	"github.com/aws-greengrass/aws-greengrass-lite-sub001/pkg/ggerr"
)

func TestRoundTripScalars(t *testing.T) {
	tests := []Value{
		Null(),
		Bool(true),
		Bool(false),
		Int64(0),
		Int64(-1),
		Int64(1 << 40),
		Float64(3.5),
		BufString("hello"),
		BufString(""),
	}

	for _, v := range tests {
		data, err := Encode(v)
		if err != nil {
			t.Fatalf("Encode(%+v): %v", v, err)
		}
		arena := NewArena(256, 16, 16)
		got, err := Decode(data, arena)
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		if !Equal(v, got) {
			t.Errorf("round trip mismatch: got %+v, want %+v", got, v)
		}
	}
}

func TestRoundTripMap(t *testing.T) {
	m, err := Map(
		Pair("topic", BufString("a/b")),
		Pair("qos", Int64(1)),
		Pair("payload", BufString("hi")),
	)
	if err != nil {
		t.Fatalf("Map: %v", err)
	}

	data, err := Encode(m)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	arena := NewArena(256, 16, 16)
	got, err := Decode(data, arena)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if !Equal(m, got) {
		t.Errorf("round trip map mismatch: got %+v, want %+v", got, m)
	}
	if got.Keys()[0] != "topic" || got.Keys()[1] != "qos" || got.Keys()[2] != "payload" {
		t.Errorf("insertion order not preserved: %v", got.Keys())
	}
}

func TestMapRejectsDuplicateKeys(t *testing.T) {
	_, err := Map(Pair("a", Int64(1)), Pair("a", Int64(2)))
	if err == nil {
		t.Fatal("expected error for duplicate key")
	}
}

func TestDecodeExhaustedArenaFailsNoMem(t *testing.T) {
	v := List(BufString("aaaaaaaaaa"), BufString("bbbbbbbbbb"))
	data, err := Encode(v)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	arena := NewArena(4, 16, 16) // not enough room for either buffer
	_, err = Decode(data, arena)
	if ggerr.KindOf(err) != ggerr.NoMem {
		t.Fatalf("expected NoMem, got %v", err)
	}
}

func TestDepthLimit(t *testing.T) {
	// Build a list nested 11 deep: depth 10 should succeed, 11 should not.
	v := Null()
	for i := 0; i < 10; i++ {
		v = List(v)
	}
	if _, err := Encode(v); err != nil {
		t.Fatalf("depth 10 should encode: %v", err)
	}

	v = List(v) // depth 11
	if _, err := Encode(v); err == nil {
		t.Fatal("expected depth-11 encode to fail")
	}
}

func TestMapValidateMissingRequired(t *testing.T) {
	m := MustMap(Pair("topic", BufString("a/b")))
	var topic Value
	err := MapValidate(m, []FieldSchema{
		{Key: "topic", Required: true, Kind: KindBuf, Out: &topic},
		{Key: "qos", Required: true, Kind: KindInt64},
	})
	if err == nil {
		t.Fatal("expected missing-required error")
	}
}

func TestMapValidateTypeMismatch(t *testing.T) {
	m := MustMap(Pair("qos", BufString("not-an-int")))
	err := MapValidate(m, []FieldSchema{
		{Key: "qos", Required: true, Kind: KindInt64},
	})
	if err == nil {
		t.Fatal("expected type-mismatch error")
	}
}

// Package ggobject implements the tagged-variant object model and its
// length-prefixed binary codec (spec.md §4.1, component C1). Value is the
// payload type carried by every corebus frame.
package ggobject

import "github.com/aws-greengrass/aws-greengrass-lite-sub001/pkg/ggerr"

// Kind identifies which variant a Value holds.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt64
	KindFloat64
	KindBuf
	KindList
	KindMap
)

// mapEntry is one key/value pair in a Map, kept in insertion order.
type mapEntry struct {
	key []byte
	val Value
}

// Value is a tagged union over {null, bool, int64, float64, buffer,
// list-of-Value, map-of-buffer->Value} per spec.md §3.
type Value struct {
	kind    Kind
	boolean bool
	integer int64
	float   float64
	buf     []byte
	list    []Value
	entries []mapEntry
}

func Null() Value               { return Value{kind: KindNull} }
func Bool(b bool) Value         { return Value{kind: KindBool, boolean: b} }
func Int64(i int64) Value       { return Value{kind: KindInt64, integer: i} }
func Float64(f float64) Value   { return Value{kind: KindFloat64, float: f} }
func Buf(b []byte) Value        { return Value{kind: KindBuf, buf: b} }
func BufString(s string) Value  { return Value{kind: KindBuf, buf: []byte(s)} }
func List(items ...Value) Value { return Value{kind: KindList, list: items} }

// Map builds a Map value from keys and values given in the order they
// should be preserved. Duplicate keys are rejected, matching spec.md's
// "duplicate keys are rejected" invariant.
func Map(pairs ...KV) (Value, error) {
	entries := make([]mapEntry, 0, len(pairs))
	seen := make(map[string]struct{}, len(pairs))
	for _, p := range pairs {
		k := string(p.Key)
		if _, dup := seen[k]; dup {
			return Value{}, ggerr.New(ggerr.Invalid, "duplicate map key %q", k)
		}
		seen[k] = struct{}{}
		entries = append(entries, mapEntry{key: p.Key, val: p.Val})
	}
	return Value{kind: KindMap, entries: entries}, nil
}

// MustMap is Map but panics on duplicate keys; intended for constructing
// literal maps from code the author already knows are key-unique, the Go
// analogue of the source's GGL_MAP macro.
func MustMap(pairs ...KV) Value {
	v, err := Map(pairs...)
	if err != nil {
		panic(err)
	}
	return v
}

// KV is one key/value pair passed to Map.
type KV struct {
	Key []byte
	Val Value
}

func Pair(key string, val Value) KV { return KV{Key: []byte(key), Val: val} }

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsNull() bool { return v.kind == KindNull }

// AsBool returns the boolean value, or false if v is not a Bool. Callers
// that need to distinguish "false" from "not a bool" should check Kind
// first.
func (v Value) AsBool() bool {
	return v.kind == KindBool && v.boolean
}

// AsInt64 returns the integer value, or 0 if v is not an Int64.
func (v Value) AsInt64() int64 {
	if v.kind != KindInt64 {
		return 0
	}
	return v.integer
}

// AsFloat64 returns the float value, or 0 if v is not a Float64.
func (v Value) AsFloat64() float64 {
	if v.kind != KindFloat64 {
		return 0
	}
	return v.float
}

// AsBuf returns the buffer's bytes, or nil if v is not a Buf.
func (v Value) AsBuf() []byte {
	if v.kind != KindBuf {
		return nil
	}
	return v.buf
}

// AsList returns the list's elements, or nil if v is not a List.
func (v Value) AsList() []Value {
	if v.kind != KindList {
		return nil
	}
	return v.list
}

// Get looks up a key in a Map value. Returns false if v is not a Map or
// the key is absent.
func (v Value) Get(key string) (Value, bool) {
	if v.kind != KindMap {
		return Value{}, false
	}
	for _, e := range v.entries {
		if string(e.key) == key {
			return e.val, true
		}
	}
	return Value{}, false
}

// Keys returns the Map's keys in insertion order. Returns nil if v is not
// a Map.
func (v Value) Keys() []string {
	if v.kind != KindMap {
		return nil
	}
	keys := make([]string, len(v.entries))
	for i, e := range v.entries {
		keys[i] = string(e.key)
	}
	return keys
}

// Equal reports deep equality, used by round-trip tests (spec.md §8
// scenario 1).
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNull:
		return true
	case KindBool:
		return a.boolean == b.boolean
	case KindInt64:
		return a.integer == b.integer
	case KindFloat64:
		return a.float == b.float
	case KindBuf:
		return string(a.buf) == string(b.buf)
	case KindList:
		if len(a.list) != len(b.list) {
			return false
		}
		for i := range a.list {
			if !Equal(a.list[i], b.list[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(a.entries) != len(b.entries) {
			return false
		}
		for i := range a.entries {
			if string(a.entries[i].key) != string(b.entries[i].key) {
				return false
			}
			if !Equal(a.entries[i].val, b.entries[i].val) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

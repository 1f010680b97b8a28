package ggobject

import (
	"encoding/binary"
	"math"

	"github.com/aws-greengrass/aws-greengrass-lite-sub001/pkg/ggerr"
)

// DefaultMaxDepth is the default nesting-depth ceiling enforced on both
// encode and decode (spec.md §4.1: "default 10, for serialization
// safety").
const DefaultMaxDepth = 10

const (
	tagNull byte = iota
	tagBoolFalse
	tagBoolTrue
	tagInt64
	tagFloat64
	tagBuf
	tagList
	tagMap
)

// Codec bundles the depth limit used for Encode/Decode. The zero value
// uses DefaultMaxDepth.
type Codec struct {
	MaxDepth int
}

func (c Codec) maxDepth() int {
	if c.MaxDepth <= 0 {
		return DefaultMaxDepth
	}
	return c.MaxDepth
}

// Encode serializes v using the default depth limit.
func Encode(v Value) ([]byte, error) {
	return Codec{}.Encode(v)
}

// Encode serializes v, failing with ggerr.Unsupported if nesting exceeds
// the codec's MaxDepth.
func (c Codec) Encode(v Value) ([]byte, error) {
	buf := make([]byte, 0, 64)
	buf, err := c.encodeInto(buf, v, 0)
	if err != nil {
		return nil, err
	}
	return buf, nil
}

func (c Codec) encodeInto(buf []byte, v Value, depth int) ([]byte, error) {
	if depth > c.maxDepth() {
		return nil, ggerr.New(ggerr.Unsupported, "max nesting depth %d exceeded", c.maxDepth())
	}
	switch v.kind {
	case KindNull:
		return append(buf, tagNull), nil
	case KindBool:
		if v.boolean {
			return append(buf, tagBoolTrue), nil
		}
		return append(buf, tagBoolFalse), nil
	case KindInt64:
		buf = append(buf, tagInt64)
		var tmp [8]byte
		binary.LittleEndian.PutUint64(tmp[:], uint64(v.integer))
		return append(buf, tmp[:]...), nil
	case KindFloat64:
		buf = append(buf, tagFloat64)
		var tmp [8]byte
		binary.LittleEndian.PutUint64(tmp[:], math.Float64bits(v.float))
		return append(buf, tmp[:]...), nil
	case KindBuf:
		buf = append(buf, tagBuf)
		buf = appendUint32Prefixed(buf, v.buf)
		return buf, nil
	case KindList:
		buf = append(buf, tagList)
		buf = appendUint32(buf, uint32(len(v.list)))
		for _, item := range v.list {
			var err error
			buf, err = c.encodeInto(buf, item, depth+1)
			if err != nil {
				return nil, err
			}
		}
		return buf, nil
	case KindMap:
		buf = append(buf, tagMap)
		buf = appendUint32(buf, uint32(len(v.entries)))
		for _, e := range v.entries {
			buf = appendUint32Prefixed(buf, e.key)
			var err error
			buf, err = c.encodeInto(buf, e.val, depth+1)
			if err != nil {
				return nil, err
			}
		}
		return buf, nil
	default:
		return nil, ggerr.New(ggerr.Unsupported, "unknown value kind %d", v.kind)
	}
}

func appendUint32(buf []byte, n uint32) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], n)
	return append(buf, tmp[:]...)
}

func appendUint32Prefixed(buf, data []byte) []byte {
	buf = appendUint32(buf, uint32(len(data)))
	return append(buf, data...)
}

// Decode deserializes data into a Value using arena for all allocations,
// so the dispatch hot path never heap-allocates per field. Decoding into
// an exhausted arena fails with ggerr.NoMem (spec.md §4.1).
func Decode(data []byte, arena *Arena) (Value, error) {
	return Codec{}.Decode(data, arena)
}

func (c Codec) Decode(data []byte, arena *Arena) (Value, error) {
	v, rest, err := c.decodeOne(data, arena, 0)
	if err != nil {
		return Value{}, err
	}
	if len(rest) != 0 {
		return Value{}, ggerr.New(ggerr.Parse, "trailing %d bytes after value", len(rest))
	}
	return v, nil
}

func (c Codec) decodeOne(data []byte, arena *Arena, depth int) (Value, []byte, error) {
	if depth > c.maxDepth() {
		return Value{}, nil, ggerr.New(ggerr.Unsupported, "max nesting depth %d exceeded", c.maxDepth())
	}
	if len(data) < 1 {
		return Value{}, nil, ggerr.New(ggerr.Parse, "truncated value: missing tag")
	}
	tag := data[0]
	data = data[1:]
	switch tag {
	case tagNull:
		return Null(), data, nil
	case tagBoolFalse:
		return Bool(false), data, nil
	case tagBoolTrue:
		return Bool(true), data, nil
	case tagInt64:
		if len(data) < 8 {
			return Value{}, nil, ggerr.New(ggerr.Parse, "truncated int64")
		}
		i := int64(binary.LittleEndian.Uint64(data[:8]))
		return Int64(i), data[8:], nil
	case tagFloat64:
		if len(data) < 8 {
			return Value{}, nil, ggerr.New(ggerr.Parse, "truncated float64")
		}
		f := math.Float64frombits(binary.LittleEndian.Uint64(data[:8]))
		return Float64(f), data[8:], nil
	case tagBuf:
		b, rest, err := readPrefixed(data, arena)
		if err != nil {
			return Value{}, nil, err
		}
		return Buf(b), rest, nil
	case tagList:
		n, rest, err := readUint32(data)
		if err != nil {
			return Value{}, nil, err
		}
		items, err := arena.allocValues(int(n))
		if err != nil {
			return Value{}, nil, err
		}
		for i := uint32(0); i < n; i++ {
			var item Value
			item, rest, err = c.decodeOne(rest, arena, depth+1)
			if err != nil {
				return Value{}, nil, err
			}
			items[i] = item
		}
		return Value{kind: KindList, list: items}, rest, nil
	case tagMap:
		n, rest, err := readUint32(data)
		if err != nil {
			return Value{}, nil, err
		}
		entries, err := arena.allocEntries(int(n))
		if err != nil {
			return Value{}, nil, err
		}
		seen := make(map[string]struct{}, n)
		for i := uint32(0); i < n; i++ {
			var key []byte
			key, rest, err = readPrefixed(rest, arena)
			if err != nil {
				return Value{}, nil, err
			}
			if _, dup := seen[string(key)]; dup {
				return Value{}, nil, ggerr.New(ggerr.Invalid, "duplicate map key %q", key)
			}
			seen[string(key)] = struct{}{}
			var val Value
			val, rest, err = c.decodeOne(rest, arena, depth+1)
			if err != nil {
				return Value{}, nil, err
			}
			entries[i] = mapEntry{key: key, val: val}
		}
		return Value{kind: KindMap, entries: entries}, rest, nil
	default:
		return Value{}, nil, ggerr.New(ggerr.Parse, "unknown tag 0x%02x", tag)
	}
}

func readUint32(data []byte) (uint32, []byte, error) {
	if len(data) < 4 {
		return 0, nil, ggerr.New(ggerr.Parse, "truncated length prefix")
	}
	return binary.LittleEndian.Uint32(data[:4]), data[4:], nil
}

func readPrefixed(data []byte, arena *Arena) ([]byte, []byte, error) {
	n, rest, err := readUint32(data)
	if err != nil {
		return nil, nil, err
	}
	if uint64(len(rest)) < uint64(n) {
		return nil, nil, ggerr.New(ggerr.Parse, "truncated buffer: want %d bytes, have %d", n, len(rest))
	}
	dst, err := arena.allocBytes(int(n))
	if err != nil {
		return nil, nil, err
	}
	copy(dst, rest[:n])
	return dst, rest[n:], nil
}

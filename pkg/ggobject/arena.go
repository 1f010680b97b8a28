package ggobject

import "github.com/aws-greengrass/aws-greengrass-lite-sub001/pkg/ggerr"

// Arena is a bump allocator used by Decode so that repeated decodes on the
// corebus dispatch hot path do not put per-field pressure on the garbage
// collector. Callers size one Arena per connection buffer and reuse it
// across frames by calling Reset.
type Arena struct {
	bytes  []byte
	bused  int
	values []Value
	vused  int
	tags   []mapEntry
	tused  int
}

// NewArena allocates an Arena with room for byteCap bytes of buffer data,
// valueCap Value slots (list/map elements), and entryCap map entries.
func NewArena(byteCap, valueCap, entryCap int) *Arena {
	return &Arena{
		bytes:  make([]byte, byteCap),
		values: make([]Value, valueCap),
		tags:   make([]mapEntry, entryCap),
	}
}

// Reset rewinds the arena for reuse without reallocating its backing
// storage.
func (a *Arena) Reset() {
	a.bused, a.vused, a.tused = 0, 0, 0
}

func (a *Arena) allocBytes(n int) ([]byte, error) {
	if n == 0 {
		return nil, nil
	}
	if a.bused+n > len(a.bytes) {
		return nil, ggerr.New(ggerr.NoMem, "arena exhausted allocating %d bytes", n)
	}
	b := a.bytes[a.bused : a.bused+n : a.bused+n]
	a.bused += n
	return b, nil
}

func (a *Arena) allocValues(n int) ([]Value, error) {
	if n == 0 {
		return nil, nil
	}
	if a.vused+n > len(a.values) {
		return nil, ggerr.New(ggerr.NoMem, "arena exhausted allocating %d values", n)
	}
	v := a.values[a.vused : a.vused+n : a.vused+n]
	a.vused += n
	return v, nil
}

func (a *Arena) allocEntries(n int) ([]mapEntry, error) {
	if n == 0 {
		return nil, nil
	}
	if a.tused+n > len(a.tags) {
		return nil, ggerr.New(ggerr.NoMem, "arena exhausted allocating %d map entries", n)
	}
	e := a.tags[a.tused : a.tused+n : a.tused+n]
	a.tused += n
	return e, nil
}

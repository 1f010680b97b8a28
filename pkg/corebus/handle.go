package corebus

import "github.com/aws-greengrass/aws-greengrass-lite-sub001/pkg/ggerr"

// Handle is the 32-bit opaque identifier minted by the dispatcher
// (spec.md §3). It packs a slot index into the low 16 bits and a
// generation counter into the high 16 bits, so a handle whose slot has
// since been reused for something else resolves to "not found" rather
// than silently aliasing the new occupant (spec.md's "no use-after-free
// or ABA" re-architecture note in §9).
type Handle uint32

const slotBits = 16

func makeHandle(slot int, generation uint32) Handle {
	return Handle(uint32(slot) | (generation << slotBits))
}

func (h Handle) slot() int          { return int(uint32(h) & (1<<slotBits - 1)) }
func (h Handle) generation() uint32 { return uint32(h) >> slotBits }

// slotTable is the fixed-capacity arena-with-generations table described
// in spec.md §9: one slot per live resource, each slot tagged with a
// generation so handles are never ambiguous even after reuse. It is
// deliberately not safe for concurrent use on its own — its caller
// (Server) wraps it with its own sync.Mutex (handlesMu), matching spec.md §5's "subscription tables
// are protected by their own mutex" rather than baking locking into the
// arena itself.
type slotTable[T any] struct {
	generations []uint32
	occupied    []bool
	values      []T
	freeList    []int
}

func newSlotTable[T any](capacity int) *slotTable[T] {
	return &slotTable[T]{
		generations: make([]uint32, capacity),
		occupied:    make([]bool, capacity),
		values:      make([]T, capacity),
	}
}

// alloc reserves a slot for value and returns its Handle. Returns
// ggerr.NoMem if the table is at capacity (spec.md: "Exhaustion yields
// NoMem").
func (t *slotTable[T]) alloc(value T) (Handle, error) {
	var slot int
	if n := len(t.freeList); n > 0 {
		slot = t.freeList[n-1]
		t.freeList = t.freeList[:n-1]
	} else {
		slot = -1
		for i, occ := range t.occupied {
			if !occ {
				slot = i
				break
			}
		}
		if slot == -1 {
			return 0, ggerr.New(ggerr.NoMem, "handle table exhausted (capacity %d)", len(t.occupied))
		}
	}
	t.occupied[slot] = true
	t.values[slot] = value
	return makeHandle(slot, t.generations[slot]), nil
}

// get returns the value stored at h's slot, and false if h's generation
// no longer matches (stale handle) or the slot is not occupied.
func (t *slotTable[T]) get(h Handle) (T, bool) {
	var zero T
	slot := h.slot()
	if slot < 0 || slot >= len(t.occupied) {
		return zero, false
	}
	if !t.occupied[slot] || t.generations[slot] != h.generation() {
		return zero, false
	}
	return t.values[slot], true
}

// release frees h's slot, bumping its generation so any copy of h held
// elsewhere becomes permanently stale (spec.md's "never reissued while
// any code path still holds a live reference" is satisfied because
// holders compare generations, not just slot indices).
func (t *slotTable[T]) release(h Handle) (T, bool) {
	var zero T
	val, ok := t.get(h)
	if !ok {
		return zero, false
	}
	slot := h.slot()
	t.occupied[slot] = false
	t.values[slot] = zero
	t.generations[slot]++
	t.freeList = append(t.freeList, slot)
	return val, true
}

// forEach calls fn for every occupied slot. fn must not mutate the table.
func (t *slotTable[T]) forEach(fn func(Handle, T)) {
	for slot, occ := range t.occupied {
		if occ {
			fn(makeHandle(slot, t.generations[slot]), t.values[slot])
		}
	}
}

// Package ringbuf provides a fixed-capacity circular buffer over opaque
// fixed-size items, designed for bulk wraparound-aware writes and reads
// without per-item copies.
//
// Producers reserve space with [Ring.Tail], write directly into the backing
// storage, and commit with [Ring.Append]; consumers read through [Ring.Head]
// and release with [Ring.Remove]. [Ring.ContiguousSpan] reports how many
// items fit before the physical wrap boundary, so bulk transfers split into
// at most two copies.
package ringbuf

import "fmt"

// Ring is a fixed-capacity circular buffer holding count items of itemSize
// bytes each. A capacity of zero is legal and leaves the ring unallocated;
// all accessors then report an empty, unwritable buffer.
//
// Out-of-range arguments to Append, Remove, Head, and Tail are contract
// violations between producer and consumer, not runtime conditions: they
// panic rather than corrupt the head/tail invariants.
type Ring struct {
	data     []byte
	itemSize int
	capacity int

	head  int
	tail  int
	count int
}

// New creates a ring of capacity items of itemSize bytes each. itemSize must
// be positive. A capacity of zero allocates nothing and produces a disabled
// ring.
func New(itemSize, capacity int) *Ring {
	if itemSize <= 0 {
		panic(fmt.Sprintf("ringbuf: item size %d must be positive", itemSize))
	}
	if capacity < 0 {
		panic(fmt.Sprintf("ringbuf: capacity %d must not be negative", capacity))
	}

	r := &Ring{
		itemSize: itemSize,
		capacity: capacity,
	}
	if capacity > 0 {
		r.data = make([]byte, itemSize*capacity)
	}
	return r
}

// Destroy releases the backing storage and disables the ring. Calling it on
// an unallocated or already destroyed ring is a no-op.
func (r *Ring) Destroy() {
	r.data = nil
	r.capacity = 0
	r.head = 0
	r.tail = 0
	r.count = 0
}

// ItemSize returns the size in bytes of one item.
func (r *Ring) ItemSize() int { return r.itemSize }

// Capacity returns the capacity in items.
func (r *Ring) Capacity() int { return r.capacity }

// Count returns the number of live items.
func (r *Ring) Count() int { return r.count }

// Append commits n items previously written starting at Tail(0), advancing
// the tail. n must not exceed the free capacity.
func (r *Ring) Append(n int) {
	if n < 0 || n > r.capacity-r.count {
		panic(fmt.Sprintf("ringbuf: append %d with %d/%d items live", n, r.count, r.capacity))
	}
	if n == 0 {
		return
	}

	r.tail = (r.tail + n) % r.capacity
	r.count += n
}

// Remove releases the n oldest items, advancing the head. n must not exceed
// the live count.
func (r *Ring) Remove(n int) {
	if n < 0 || n > r.count {
		panic(fmt.Sprintf("ringbuf: remove %d with %d items live", n, r.count))
	}
	if n == 0 {
		return
	}

	r.head = (r.head + n) % r.capacity
	r.count -= n
}

// Head returns the storage starting at the item offset slots ahead of the
// oldest live item, extending to the physical end of the buffer. The ring
// must hold at least one item and offset must not exceed the live count
// (offset == count probes one slot past the live region).
func (r *Ring) Head(offset int) []byte {
	if r.count <= 0 || offset < 0 || offset > r.count {
		panic(fmt.Sprintf("ringbuf: head offset %d with %d items live", offset, r.count))
	}

	idx := (r.head + offset) % r.capacity
	return r.data[idx*r.itemSize:]
}

// Tail returns the storage starting at the item offset slots behind the
// write position, extending to the physical end of the buffer. Tail(0) is
// the next free write slot; Tail(1) is the most recently appended item.
// offset must not exceed the live count.
func (r *Ring) Tail(offset int) []byte {
	if r.capacity == 0 {
		panic("ringbuf: tail of unallocated ring")
	}
	if offset < 0 || offset > r.count {
		panic(fmt.Sprintf("ringbuf: tail offset %d with %d items live", offset, r.count))
	}

	idx := ((r.tail-offset)%r.capacity + r.capacity) % r.capacity
	return r.data[idx*r.itemSize:]
}

// Contiguous reports whether the live region occupies a single unbroken run
// of physical storage.
func (r *Ring) Contiguous() bool {
	return r.head+r.count == r.tail || r.head+r.count == r.capacity
}

// ContiguousSpan returns the maximum number of items that can be written
// starting at Tail(0) without crossing the physical wrap boundary. Writers
// wanting to queue more than this must split the transfer: write a span,
// call Append, and recompute.
func (r *Ring) ContiguousSpan() int {
	if r.Contiguous() {
		return r.capacity - r.tail
	}
	return r.head - r.tail
}

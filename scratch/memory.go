// Package scratch implements a LIFO scratch-memory arena: a single growable
// byte buffer that backs temporary, typed, dynamically-sized vectors whose
// lifetimes are strictly nested. It is meant for transient data built inside
// a unit of work — collect, read, throw away — without paying a heap
// allocation per element or per vector.
//
// A Memory is the backing buffer plus a high-water mark. A Stack is a thin
// handle used to open scopes on it. WithVec opens a scope: it hands the
// callback a fresh Vec positioned at the current top, and on every exit path
// (normal return or panic) finalizes the vector's elements and rolls the top
// back to where it was. Scopes nest: a Vec can hand out a Stack of its own,
// and the inner vector reuses the same buffer above the outer one.
//
// A Memory is a single exclusively-owned resource. It is not safe for
// concurrent use; thread one handle through the call graph instead of
// sharing it.
//
// The backing block is plain byte memory, which the garbage collector does
// not scan. Pointers stored inside pushed elements are therefore invisible
// to the collector: their referents must be kept reachable elsewhere for the
// duration of the scope.
package scratch

import (
	"unsafe"

	"github.com/dewert99/second-stack-vec/utils"
)

// DefaultMaxAlign is the maximum element alignment a Memory guarantees
// unless constructed with NewMemoryAligned.
const DefaultMaxAlign = 16

// minBlockSize is the smallest backing block ever allocated (64 B, the
// smallest pool class).
const minBlockSize = 64

// blockPool recycles backing blocks across growth generations and across
// Memory instances. sync.Pool-backed, safe to share.
var blockPool = utils.NewBufferPool()

// Memory owns one growable byte block and the high-water mark delimiting the
// live region. Bytes in [0, top) belong to the scoped vectors currently open
// on it, in creation order, with no gaps.
//
// Vectors never hold addresses into the block; they hold byte offsets and
// recompute addresses on each access, so growth (which relocates the whole
// block) is transparent to every open vector.
type Memory struct {
	raw      []byte // block as acquired from the pool, unaligned
	buf      []byte // maxAlign-aligned view into raw; len(buf) is the capacity
	top      int    // end of the live region, in bytes
	depth    int    // number of scopes currently open
	maxAlign int
	peak     int // high-water mark over the Memory's lifetime
	grows    int // number of block relocations
	released bool
}

// NewMemory creates a Memory with the default maximum alignment.
// capacity is a size hint in bytes; if capacity <= 0 the first block is
// allocated lazily on first use.
func NewMemory(capacity int) *Memory {
	return NewMemoryAligned(DefaultMaxAlign, capacity)
}

// NewMemoryAligned creates a Memory whose backing block is aligned to
// maxAlign bytes. Element types with a stricter alignment requirement than
// maxAlign are rejected at WithVec. maxAlign must be a power of two;
// if maxAlign <= 0, DefaultMaxAlign is used.
func NewMemoryAligned(maxAlign, capacity int) *Memory {
	if maxAlign <= 0 {
		maxAlign = DefaultMaxAlign
	}
	if maxAlign&(maxAlign-1) != 0 {
		panic("scratch: max alignment must be a power of two")
	}
	m := &Memory{maxAlign: maxAlign}
	if capacity > 0 {
		m.grow(capacity)
	}
	return m
}

// Stack returns the handle used to open scoped vectors on this Memory.
func (m *Memory) Stack() Stack {
	m.panicIfReleased()
	return Stack{mem: m}
}

// Release returns the backing block to the pool and makes the Memory
// unusable; any subsequent operation panics. Releasing while scoped vectors
// are still open is a logic error (a leaked scope) and panics.
func (m *Memory) Release() {
	m.panicIfReleased()
	if m.top != 0 || m.depth != 0 {
		panic("scratch: Release with scoped vectors still open")
	}
	if m.raw != nil {
		blockPool.Release(m.raw)
	}
	m.raw, m.buf = nil, nil
	m.released = true
}

// reserve rounds top up to align, grows if the rounded top plus n bytes
// would overflow capacity, advances top past the reservation and returns
// the rounded offset. align must already be validated against maxAlign.
func (m *Memory) reserve(n, align int) int {
	off := alignUp(m.top, align)
	if off+n < 0 {
		panic("scratch: allocation size overflow")
	}
	if off+n > len(m.buf) {
		m.grow(off + n)
	}
	m.top = off + n
	if m.top > m.peak {
		m.peak = m.top
	}
	return off
}

// releaseTo rolls the top back to mark. Elements above mark must already
// have been finalized; the Memory is type-agnostic raw storage.
func (m *Memory) releaseTo(mark int) {
	m.top = mark
}

// grow installs a new backing block of at least min bytes, copying the live
// region. Offsets are relative to the aligned base, so they stay valid
// unchanged. The old block is released to the pool only after the copy, so a
// failed allocation leaves the Memory untouched.
func (m *Memory) grow(min int) {
	if min < 0 {
		panic("scratch: allocation size overflow")
	}
	size := 2 * len(m.buf)
	if size < min {
		size = min
	}
	if size < minBlockSize {
		size = minBlockSize
	}
	// Over-allocate by maxAlign: make([]byte) carries no alignment
	// guarantee, so the usable view starts at the first aligned byte.
	raw := blockPool.Acquire(size + m.maxAlign)
	raw = raw[:cap(raw)]
	shift := 0
	if m.maxAlign > 1 {
		addr := uintptr(unsafe.Pointer(&raw[0]))
		shift = int((uintptr(m.maxAlign) - addr%uintptr(m.maxAlign)) % uintptr(m.maxAlign))
	}
	buf := raw[shift : shift+size]
	copy(buf, m.buf[:m.top])
	if m.raw != nil {
		blockPool.Release(m.raw)
	}
	m.raw, m.buf = raw, buf
	m.grows++
}

func (m *Memory) panicIfReleased() {
	if m.released {
		panic("scratch: use after Release()")
	}
}

// alignUp rounds n up to the next multiple of align (a power of two).
func alignUp(n, align int) int {
	return (n + align - 1) &^ (align - 1)
}

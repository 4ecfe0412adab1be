package scratch

import (
	"fmt"
	"unsafe"
)

// Stack is the handle used to open scoped vectors. It is obtained from
// Memory.Stack at the top level, or from Vec.Stack inside a scope to nest a
// further vector on the same buffer.
type Stack struct {
	mem *Memory
}

// Dropper is the finalizer protocol for scoped-vector elements. If the
// pointer type *T implements Dropper, WithVec teardown calls Drop exactly
// once per pushed element, in increasing index order, on every exit path of
// the unit of work — including a propagating panic.
type Dropper interface {
	Drop()
}

// Vec is a typed, growable, contiguous view into a Memory, valid only for
// the duration of the WithVec call that created it. It stores a byte offset,
// never an address: accessors recompute the address on each call, so buffer
// relocation during growth is invisible to it.
//
// Pointers obtained from At or Slice are valid only until the next Push,
// nested scope, or scope exit, whichever comes first.
type Vec[T any] struct {
	mem   *Memory
	base  int // byte offset of the first element
	len   int // element count
	size  int // unsafe.Sizeof(T), cached
	depth int // nesting depth at creation; the vector is innermost while mem.depth matches
}

// WithVec opens a scope: it creates a new vector at the Memory's current
// top, invokes f with it, and returns f's result. When f returns — normally
// or by panic — every pushed element is finalized (see Dropper) and the
// Memory's top is rolled back to where it was before the call. The vector
// handle must not be used after f returns; doing so panics.
//
// The element type must have a nonzero size and an alignment no stricter
// than the Memory's maximum; violations panic before f runs.
func WithVec[T any, U any](s Stack, f func(*Vec[T]) U) U {
	m := s.mem
	if m == nil {
		panic("scratch: zero Stack")
	}
	m.panicIfReleased()
	var zero T
	size := int(unsafe.Sizeof(zero))
	align := int(unsafe.Alignof(zero))
	if size == 0 {
		panic("scratch: zero-sized element types are not supported")
	}
	if align > m.maxAlign {
		panic(fmt.Sprintf("scratch: element alignment %d exceeds the memory's max alignment %d", align, m.maxAlign))
	}
	mark := m.top
	base := m.reserve(0, align)
	m.depth++
	v := &Vec[T]{mem: m, base: base, size: size, depth: m.depth}
	defer func() {
		// Restore the top and depth even if a user Drop panics.
		defer func() {
			m.releaseTo(mark)
			m.depth--
			v.mem = nil
		}()
		v.finalize()
	}()
	return f(v)
}

// Push appends val, extending this vector's reservation by one slot at the
// Memory's top. May relocate the whole backing block; all open vectors stay
// valid because they hold offsets, not addresses.
//
// Only the innermost open vector may grow. Pushing on an outer vector while
// a nested scope is open panics.
func (v *Vec[T]) Push(val T) {
	m := v.mem
	if m == nil {
		panic("scratch: use of scoped vector after its scope exited")
	}
	if m.depth != v.depth {
		panic("scratch: push on a scoped vector that is not innermost")
	}
	off := m.reserve(v.size, 1) // the top is already element-aligned
	*(*T)(unsafe.Pointer(&m.buf[off])) = val
	v.len++
}

// Append pushes each value in order.
func (v *Vec[T]) Append(vals ...T) {
	for _, val := range vals {
		v.Push(val)
	}
}

// Len returns the number of elements.
func (v *Vec[T]) Len() int {
	if v.mem == nil {
		panic("scratch: use of scoped vector after its scope exited")
	}
	return v.len
}

// IsEmpty reports whether the vector has no elements.
func (v *Vec[T]) IsEmpty() bool { return v.Len() == 0 }

// At returns a pointer to element i. Panics if i is out of range.
// The pointer is invalidated by the next Push, nested scope, or scope exit.
func (v *Vec[T]) At(i int) *T {
	m := v.mem
	if m == nil {
		panic("scratch: use of scoped vector after its scope exited")
	}
	if i < 0 || i >= v.len {
		panic(fmt.Sprintf("scratch: index %d out of range [0:%d]", i, v.len))
	}
	return (*T)(unsafe.Pointer(&m.buf[v.base+i*v.size]))
}

// Slice returns the elements as a []T sharing the vector's storage.
// The slice is invalidated by the next Push, nested scope, or scope exit.
func (v *Vec[T]) Slice() []T {
	m := v.mem
	if m == nil {
		panic("scratch: use of scoped vector after its scope exited")
	}
	if v.len == 0 {
		return nil
	}
	return unsafe.Slice((*T)(unsafe.Pointer(&m.buf[v.base])), v.len)
}

// Stack returns a handle for opening a nested vector above this one.
// While the nested scope is open this vector must not be pushed to;
// reads remain valid.
func (v *Vec[T]) Stack() Stack {
	if v.mem == nil {
		panic("scratch: use of scoped vector after its scope exited")
	}
	return Stack{mem: v.mem}
}

// String formats the vector like a Go slice.
func (v *Vec[T]) String() string {
	return fmt.Sprint(v.Slice())
}

// finalize runs element finalizers front-to-back, if *T implements Dropper.
func (v *Vec[T]) finalize() {
	if v.len == 0 {
		return
	}
	var zero T
	if _, ok := any(&zero).(Dropper); !ok {
		return
	}
	elems := unsafe.Slice((*T)(unsafe.Pointer(&v.mem.buf[v.base])), v.len)
	for i := range elems {
		any(&elems[i]).(Dropper).Drop()
	}
}

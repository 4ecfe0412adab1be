// Package utils provides the size-classed block pool that supplies and
// recycles arena backing blocks.
package utils

import (
	"math/bits"
	"sync"
)

// BlockSizeClass lists the pooled block sizes: powers of two from 64 B to
// 1 MiB. Arena blocks double on growth, so a relocating arena walks up
// these classes and its discarded blocks are reusable by the next one.
var BlockSizeClass = [...]int{
	64, 128, 256, 512, 1024, 2048, 4096, 8192, 16384, 32768,
	65536, 131072, 262144, 524288, 1048576,
}

const (
	minClass = 64
	maxClass = 1 << 20
)

// SizeIndex returns the index of the smallest class holding n bytes,
// or -1 if n is out of the pooled range.
func SizeIndex(n int) int {
	if n <= 0 || n > maxClass {
		return -1
	}
	idx := bits.Len(uint(n))
	if idx < 7 {
		return 0
	}
	if n&(n-1) == 0 {
		return idx - 7
	}
	return idx - 6
}

// BufferPool is a set of sync.Pools, one per block size class. It is safe
// for concurrent use, so one pool can serve many arenas.
type BufferPool struct {
	pools [len(BlockSizeClass)]sync.Pool
}

// NewBufferPool creates a pool covering every block size class.
func NewBufferPool() *BufferPool {
	var bp BufferPool
	for i, sz := range BlockSizeClass {
		size := sz
		bp.pools[i].New = func() any {
			b := make([]byte, size)
			return &b
		}
	}
	return &bp
}

// Acquire returns a block of at least n bytes; its capacity is the full
// size class. Sizes beyond the largest class fall through to make and are
// left to the garbage collector. Block contents are unspecified.
func (bp *BufferPool) Acquire(n int) []byte {
	idx := SizeIndex(n)
	if idx < 0 {
		return make([]byte, n)
	}
	bufPtr := bp.pools[idx].Get().(*[]byte)
	return (*bufPtr)[:n]
}

// Release returns a block to its pool if its capacity matches a class;
// out-of-class blocks are dropped.
func (bp *BufferPool) Release(buf []byte) {
	c := cap(buf)
	if c&(c-1) != 0 || c < minClass || c > maxClass {
		return // not a valid class
	}
	idx := bits.Len(uint(c)) - 7
	if BlockSizeClass[idx] == c {
		buf = buf[:c]
		bp.pools[idx].Put(&buf)
	}
}

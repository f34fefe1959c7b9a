// Package buffer provides pooled scratch buffers and the staged write used to
// persist program state: the value is serialized into a scratch buffer first and
// copied into account storage in a single step, so a failed or partial
// serialization never leaves half-written bytes behind.
package buffer

import (
	"errors"
	"io"
	"math/bits"
	"sync"
)

const (
	minClass = 64
	maxClass = 64 * 1024
)

// ErrShortBuffer is returned when staged output does not fit the destination.
var ErrShortBuffer = errors.New("buffer: staged output exceeds destination")

// Pool hands out buffers in power-of-two size classes.
type Pool struct {
	classes map[int]*sync.Pool
}

var globalPool = NewPool()

// NewPool creates a pool with classes from 64 bytes to 64 KiB.
func NewPool() *Pool {
	p := &Pool{
		classes: make(map[int]*sync.Pool),
	}
	for size := minClass; size <= maxClass; size <<= 1 {
		classSize := size
		p.classes[size] = &sync.Pool{
			New: func() any {
				buf := make([]byte, classSize)
				return &buf
			},
		}
	}
	return p
}

// Get returns a zeroed buffer of length size.
func (p *Pool) Get(size int) []byte {
	if size <= 0 {
		return nil
	}
	class := nextPowerOfTwo(size)
	if class < minClass {
		class = minClass
	}
	pool, ok := p.classes[class]
	if !ok {
		return make([]byte, size)
	}
	buf := *pool.Get().(*[]byte)
	return buf[:size]
}

// Put returns a buffer obtained from Get. Buffers of foreign capacity are dropped.
func (p *Pool) Put(buf []byte) {
	if cap(buf) == 0 {
		return
	}
	pool, ok := p.classes[cap(buf)]
	if !ok {
		return
	}
	buf = buf[:cap(buf)]
	clear(buf)
	pool.Put(&buf)
}

// Stage runs write against a scratch buffer sized like dst and, only if write
// succeeds, copies the produced bytes into dst. It returns the number of bytes
// written. Bytes of dst past the written length are left unchanged.
func (p *Pool) Stage(dst []byte, write func(w io.Writer) error) (int, error) {
	scratch := p.Get(len(dst))
	defer p.Put(scratch)

	w := &fixedWriter{buf: scratch}
	if err := write(w); err != nil {
		return 0, err
	}
	return copy(dst, scratch[:w.n]), nil
}

type fixedWriter struct {
	buf []byte
	n   int
}

func (w *fixedWriter) Write(b []byte) (int, error) {
	if w.n+len(b) > len(w.buf) {
		return 0, ErrShortBuffer
	}
	copy(w.buf[w.n:], b)
	w.n += len(b)
	return len(b), nil
}

func nextPowerOfTwo(n int) int {
	if n <= 0 {
		return 0
	}
	if n&(n-1) == 0 {
		return n
	}
	return 1 << bits.Len(uint(n))
}

// GetBuffer gets a buffer from the global pool.
func GetBuffer(size int) []byte {
	return globalPool.Get(size)
}

// PutBuffer returns a buffer to the global pool.
func PutBuffer(buf []byte) {
	globalPool.Put(buf)
}

// Stage stages a write through the global pool.
func Stage(dst []byte, write func(w io.Writer) error) (int, error) {
	return globalPool.Stage(dst, write)
}

package buffer

import (
	"github.com/valyala/bytebufferpool"
)

// Pool hands out reusable byte buffers for stream reads. Legacy captures read
// from a live socket thousands of times an hour; pooling the read buffers
// keeps that churn off the garbage collector.
type Pool struct {
	pool bytebufferpool.Pool
}

// NewPool returns an empty buffer pool.
func NewPool() *Pool {
	return &Pool{}
}

// Get returns a buffer with at least size bytes of usable capacity. The
// buffer's length is set to size so callers can hand B directly to Read.
func (p *Pool) Get(size int) *bytebufferpool.ByteBuffer {
	b := p.pool.Get()
	if cap(b.B) < size {
		b.B = make([]byte, size)
	}
	b.B = b.B[:size]
	return b
}

// Put resets the buffer and returns it to the pool.
func (p *Pool) Put(b *bytebufferpool.ByteBuffer) {
	b.Reset()
	p.pool.Put(b)
}

// Package bufferpool recycles the buffers backends read responses into.
package bufferpool

import (
	"bytes"
	"sync"
)

// DefaultMaxRetain is the largest buffer capacity a Pool created with New
// keeps for reuse.
const DefaultMaxRetain = 64 << 10

// Pool is a sync.Pool of *bytes.Buffer that drops buffers which have grown
// past a retention limit, so one oversized response does not pin memory.
type Pool struct {
	pool      sync.Pool
	maxRetain int
}

// New creates a Pool retaining buffers up to DefaultMaxRetain bytes.
func New() *Pool {
	return NewWithLimit(DefaultMaxRetain)
}

// NewWithLimit creates a Pool retaining buffers up to maxRetain bytes.
func NewWithLimit(maxRetain int) *Pool {
	return &Pool{
		pool: sync.Pool{
			New: func() interface{} {
				return new(bytes.Buffer)
			},
		},
		maxRetain: maxRetain,
	}
}

// Get returns an empty buffer.
func (p *Pool) Get() *bytes.Buffer {
	buf := p.pool.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

// Put returns buf to the pool. The caller must not use buf afterwards.
func (p *Pool) Put(buf *bytes.Buffer) {
	if buf == nil || buf.Cap() > p.maxRetain {
		return
	}
	p.pool.Put(buf)
}

// Package framebuf accumulates transport chunks for the protocol parser
// without concatenating them.
//
// Chunks are kept in arrival order in a queue. Consumption only ever trims or
// removes chunks at the front, so a long binary transfer costs O(1) amortized
// per byte instead of the quadratic cost of re-concatenating a flat buffer.
// Copies happen only in Peek, which must return a contiguous view.
package framebuf

import (
	"bytes"
	"errors"
	"fmt"
)

// ErrShortBuffer is returned when an operation asks for more bytes than are buffered.
var ErrShortBuffer = errors.New("framebuf: not enough buffered bytes")

// Buffer is an ordered queue of chunks with a cached total length.
// The zero value is an empty buffer ready to use. Buffer is not safe for
// concurrent use; a parser owns exactly one.
type Buffer struct {
	chunks [][]byte
	head   int // index of the first live chunk
	off    int // bytes already consumed from chunks[head]
	size   int
}

// Append takes ownership of chunk and queues it behind existing data.
// Empty chunks are ignored. The caller must not modify chunk afterwards.
func (b *Buffer) Append(chunk []byte) {
	if len(chunk) == 0 {
		return
	}
	b.chunks = append(b.chunks, chunk)
	b.size += len(chunk)
}

// Len returns the number of buffered bytes.
func (b *Buffer) Len() int {
	return b.size
}

// HasAtLeast reports whether at least n bytes are buffered.
func (b *Buffer) HasAtLeast(n int) bool {
	return b.size >= n
}

// Chunks returns the number of live chunks, for diagnostics.
func (b *Buffer) Chunks() int {
	return len(b.chunks) - b.head
}

// PeekFirstByte returns the first buffered byte; ok is false iff the buffer is empty.
func (b *Buffer) PeekFirstByte() (c byte, ok bool) {
	if b.size == 0 {
		return 0, false
	}
	return b.chunks[b.head][b.off], true
}

// Peek returns a copy of the first n bytes without consuming them.
func (b *Buffer) Peek(n int) ([]byte, error) {
	if n < 0 || n > b.size {
		return nil, fmt.Errorf("%w: peek %d, have %d", ErrShortBuffer, n, b.size)
	}
	out := make([]byte, 0, n)
	err := b.ForEachSlice(n, func(p []byte) error {
		out = append(out, p...)
		return nil
	})
	return out, err
}

// Consume removes the first n bytes. A partially consumed chunk keeps its
// remainder in place; nothing is copied.
func (b *Buffer) Consume(n int) error {
	if n < 0 || n > b.size {
		return fmt.Errorf("%w: consume %d, have %d", ErrShortBuffer, n, b.size)
	}
	b.size -= n
	for n > 0 {
		live := len(b.chunks[b.head]) - b.off
		if n < live {
			b.off += n
			break
		}
		n -= live
		b.popHead()
	}
	if b.size == 0 {
		b.reset()
	}
	return nil
}

// FindByte returns the offset of the first occurrence of target, or -1.
func (b *Buffer) FindByte(target byte) int {
	return b.FindByteFrom(target, 0)
}

// FindByteFrom is FindByte starting at offset from. Callers that rescan a
// growing buffer pass the length already searched to keep scanning linear.
func (b *Buffer) FindByteFrom(target byte, from int) int {
	if from < 0 {
		from = 0
	}
	offset := 0
	for i := b.head; i < len(b.chunks); i++ {
		c := b.live(i)
		if offset+len(c) <= from {
			offset += len(c)
			continue
		}
		skip := 0
		if from > offset {
			skip = from - offset
		}
		if idx := bytes.IndexByte(c[skip:], target); idx >= 0 {
			return offset + skip + idx
		}
		offset += len(c)
	}
	return -1
}

// ForEachSlice calls visit with the chunk-resident runs that together cover
// exactly the first n bytes, in order. The slices alias buffer memory and are
// valid only until the next Consume or Append. Iteration stops at the first
// error returned by visit.
func (b *Buffer) ForEachSlice(n int, visit func(p []byte) error) error {
	if n < 0 || n > b.size {
		return fmt.Errorf("%w: visit %d, have %d", ErrShortBuffer, n, b.size)
	}
	for i := b.head; n > 0; i++ {
		c := b.live(i)
		if len(c) > n {
			c = c[:n]
		}
		if err := visit(c); err != nil {
			return err
		}
		n -= len(c)
	}
	return nil
}

// Reset drops all buffered data.
func (b *Buffer) Reset() {
	b.reset()
}

func (b *Buffer) live(i int) []byte {
	if i == b.head {
		return b.chunks[i][b.off:]
	}
	return b.chunks[i]
}

func (b *Buffer) popHead() {
	b.chunks[b.head] = nil
	b.head++
	b.off = 0
	// Compact once the dead prefix dominates so the backing array does not
	// grow without bound on a long-lived connection.
	if b.head > 32 && b.head*2 >= len(b.chunks) {
		n := copy(b.chunks, b.chunks[b.head:])
		clear(b.chunks[n:])
		b.chunks = b.chunks[:n]
		b.head = 0
	}
}

func (b *Buffer) reset() {
	clear(b.chunks)
	b.chunks = b.chunks[:0]
	b.head = 0
	b.off = 0
	b.size = 0
}

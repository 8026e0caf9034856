// Package iobuf implements a chained byte buffer that can be shared and
// sliced without copying the underlying bytes.  The garbage collector takes
// the place of explicit reference counting: segments stay alive for as long
// as any Buf references them.
package iobuf

// Buf is a logically contiguous byte region stored as a chain of segments.
// The zero value is an empty buffer ready for use.
//
// A Buf is not safe for concurrent mutation; share clones, not the value.
type Buf struct {
	segs [][]byte
	size int

	// flat caches the coalesced view.  Reads populate it lazily without
	// changing the logical value.
	flat []byte
}

// New wraps the given segment without copying.  The caller must not modify
// b afterwards.
func New(b []byte) *Buf {
	if len(b) == 0 {
		return &Buf{}
	}
	return &Buf{segs: [][]byte{b}, size: len(b)}
}

// NewString wraps a copy of the string.
func NewString(s string) *Buf {
	return New([]byte(s))
}

// Len returns the total number of bytes in the buffer.
func (b *Buf) Len() int {
	return b.size
}

// Empty returns whether the buffer holds no bytes.
func (b *Buf) Empty() bool {
	return b.size == 0
}

// Append chains the given segment onto the buffer without copying.
func (b *Buf) Append(p []byte) {
	if len(p) == 0 {
		return
	}
	b.segs = append(b.segs, p)
	b.size += len(p)
	b.flat = nil
}

// Bytes returns a flat view of the buffer, coalescing the chain on first
// use.  A single-segment buffer is returned as-is with no copy.  The caller
// must treat the returned slice as read-only.
func (b *Buf) Bytes() []byte {
	if b.size == 0 {
		return nil
	}
	if len(b.segs) == 1 {
		return b.segs[0]
	}
	if b.flat == nil {
		flat := make([]byte, 0, b.size)
		for _, s := range b.segs {
			flat = append(flat, s...)
		}
		b.flat = flat
	}
	return b.flat
}

// String returns the buffer contents as a string, coalescing if needed.
func (b *Buf) String() string {
	return string(b.Bytes())
}

// Clone returns a new Buf sharing the same underlying segments.
func (b *Buf) Clone() *Buf {
	c := &Buf{size: b.size, flat: b.flat}
	c.segs = make([][]byte, len(b.segs))
	copy(c.segs, b.segs)
	return c
}

// Copy returns a deep copy whose bytes are independent of the source.
func (b *Buf) Copy() *Buf {
	if b.size == 0 {
		return &Buf{}
	}
	p := make([]byte, b.size)
	n := 0
	for _, s := range b.segs {
		n += copy(p[n:], s)
	}
	return &Buf{segs: [][]byte{p}, size: len(p)}
}

// Slice returns a view of bytes [i:j) sharing storage with the source.
// Bounds outside the buffer are clamped.
func (b *Buf) Slice(i, j int) *Buf {
	if i < 0 {
		i = 0
	}
	if j > b.size {
		j = b.size
	}
	if i >= j {
		return &Buf{}
	}

	out := &Buf{}
	off := 0
	for _, s := range b.segs {
		lo, hi := i-off, j-off
		off += len(s)
		if hi <= 0 {
			break
		}
		if lo < 0 {
			lo = 0
		}
		if lo >= len(s) {
			continue
		}
		if hi > len(s) {
			hi = len(s)
		}
		out.Append(s[lo:hi])
	}
	return out
}

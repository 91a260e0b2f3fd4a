package bmff

import (
	"errors"
	"fmt"
)

// ErrInsufficientData reports that a read needs more bytes than are
// currently buffered. It is recoverable: rewind to the step's Begin mark
// and retry once more data has been written.
var ErrInsufficientData = errors.New("bmff: insufficient data")

// Source is a transactional byte source addressed by absolute stream offsets.
//
// A demuxer step calls Begin before touching the source and Rollback when
// the step fails with ErrInsufficientData; Rollback must restore the cursor
// to where it was at Begin, however many reads happened in between.
type Source interface {
	// Offset returns the absolute cursor position.
	Offset() int64
	// Remaining returns how many bytes are buffered past the cursor.
	Remaining() int64
	// Closed reports whether the end of the stream has been signalled.
	Closed() bool
	// ReadFixed returns exactly n bytes and advances the cursor by n.
	ReadFixed(n int) ([]byte, error)
	// ReadUpTo returns at most n of the currently buffered bytes.
	ReadUpTo(n int) []byte
	// Advance moves the cursor forward by n bytes that must be buffered.
	Advance(n int64) error
	// Seek moves the cursor to an absolute offset.
	Seek(offset int64) error
	Begin()
	Rollback()
}

// Buffer is a Source fed with stream fragments through Write.
//
// Bytes handed out by ReadFixed and ReadUpTo are never modified afterwards,
// so callers may retain them. A Buffer is NOT safe for concurrent use.
type Buffer struct {
	data   []byte
	base   int64 // absolute offset of data[0]
	pos    int64 // absolute cursor
	mark   int64
	closed bool
}

// NewBuffer creates an empty Buffer.
func NewBuffer() *Buffer {
	return &Buffer{}
}

// Write appends a fragment. Implements io.Writer.
func (b *Buffer) Write(p []byte) (int, error) {
	if b.closed {
		return 0, errors.New("bmff: write to closed buffer")
	}
	b.data = append(b.data, p...)
	return len(p), nil
}

// Close signals that no more fragments will be written.
func (b *Buffer) Close() error {
	b.closed = true
	return nil
}

// Closed reports whether Close has been called.
func (b *Buffer) Closed() bool { return b.closed }

// Offset returns the absolute cursor position.
func (b *Buffer) Offset() int64 { return b.pos }

// End returns the absolute offset one past the last buffered byte.
func (b *Buffer) End() int64 { return b.base + int64(len(b.data)) }

// Retained returns how many bytes the buffer currently holds, including
// consumed bytes not yet released by Discard.
func (b *Buffer) Retained() int { return len(b.data) }

// Remaining returns how many bytes are buffered past the cursor.
func (b *Buffer) Remaining() int64 {
	return b.End() - b.pos
}

// ReadFixed returns exactly n bytes or ErrInsufficientData.
func (b *Buffer) ReadFixed(n int) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("bmff: negative read length %d", n)
	}
	if b.Remaining() < int64(n) {
		return nil, ErrInsufficientData
	}
	i := b.pos - b.base
	p := b.data[i : i+int64(n) : i+int64(n)]
	b.pos += int64(n)
	return p, nil
}

// ReadUpTo returns min(n, Remaining()) bytes.
func (b *Buffer) ReadUpTo(n int) []byte {
	avail := b.Remaining()
	if int64(n) > avail {
		n = int(avail)
	}
	if n <= 0 {
		return nil
	}
	p, _ := b.ReadFixed(n)
	return p
}

// Advance skips n buffered bytes.
func (b *Buffer) Advance(n int64) error {
	if n < 0 {
		return fmt.Errorf("bmff: negative advance %d", n)
	}
	if b.Remaining() < n {
		return ErrInsufficientData
	}
	b.pos += n
	return nil
}

// Seek moves the cursor to offset. Seeking past the buffered end yields
// ErrInsufficientData; seeking before discarded data is an error.
func (b *Buffer) Seek(offset int64) error {
	if offset < b.base {
		return fmt.Errorf("bmff: seek to %d before retained data at %d", offset, b.base)
	}
	if offset > b.End() {
		return ErrInsufficientData
	}
	b.pos = offset
	return nil
}

// Begin records the cursor for a later Rollback.
func (b *Buffer) Begin() { b.mark = b.pos }

// Rollback restores the cursor recorded by Begin.
func (b *Buffer) Rollback() { b.pos = b.mark }

// compactThreshold is the minimum number of releasable bytes before
// Discard copies the retained tail.
const compactThreshold = 1 << 16

// Discard releases buffered bytes before offset. Offsets at or past the
// cursor, or past the Begin mark, are clamped.
func (b *Buffer) Discard(offset int64) {
	offset = min(offset, b.pos, b.mark)
	n := offset - b.base
	if n <= 0 {
		return
	}
	if n < compactThreshold && n < int64(len(b.data))/2 {
		return
	}
	// Copy into a fresh slice: previously returned views stay intact.
	tail := make([]byte, int64(len(b.data))-n, max(int64(len(b.data))-n, 4096))
	copy(tail, b.data[n:])
	b.data = tail
	b.base = offset
}

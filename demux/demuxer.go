// Package demux incrementally parses an MP4 box tree from a bmff.Source and
// delivers track descriptions, metadata and raw sample payload to a Sink.
//
// A Demuxer is driven from outside: each call to Step does one unit of work
// (reads one box header, runs one handler, delivers one run of payload) and
// reports StatusNeedData when the bytes it needs have not arrived yet. The
// step is then retried from the same position once more data is written to
// the source, so input may be split into fragments of any size.
package demux

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"

	bmff "github.com/tetsuo/mp4demux"
)

// maxDepth limits box nesting.
const maxDepth = 16

// openEnd marks a box whose size field is 0: it extends to the end of the
// stream.
const openEnd = math.MaxInt64

// Status is the outcome of a Step.
type Status uint8

const (
	// StatusOK means the step made progress.
	StatusOK Status = iota
	// StatusNeedData means the step needs more input; nothing was consumed.
	StatusNeedData
	// StatusDone means the source is closed and fully consumed.
	StatusDone
	// StatusFailed means a fatal error occurred; it is returned alongside.
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusNeedData:
		return "need-data"
	case StatusDone:
		return "done"
	case StatusFailed:
		return "failed"
	}
	return "unknown"
}

// Discarder is implemented by sources that can release consumed bytes.
// The demuxer never seeks before the offset it last passed to Discard.
type Discarder interface {
	Discard(offset int64)
}

// frame is one open box.
type frame struct {
	typ   bmff.BoxType
	start int64 // header offset
	body  int64 // body offset
	end   int64 // openEnd for boxes extending to end of stream
	node  *node
	skip  bool // consume without hooks
}

// Option configures a Demuxer.
type Option func(*Demuxer)

// WithLogger sets the logger. Nil means slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(d *Demuxer) {
		if l != nil {
			d.log = l
		}
	}
}

// WithRegistry replaces StandardRegistry.
func WithRegistry(r *Registry) Option {
	return func(d *Demuxer) {
		if r != nil {
			d.reg = r
		}
	}
}

// Demuxer is a single parse session. It is NOT safe for concurrent use.
type Demuxer struct {
	src  bmff.Source
	sink Sink
	reg  *Registry
	log  *slog.Logger

	stack []frame
	open  bool // innermost box is being consumed across steps
	err   error

	track  *Track
	tracks []*Track
	meta   Metadata

	moovDone   bool
	mdatSeen   bool
	mdatStart  int64
	chunks     []Chunk
	chunkIndex int
	chunkPos   int64 // bytes of chunks[chunkIndex] already delivered
}

// New creates a Demuxer reading from src and delivering to sink.
func New(src bmff.Source, sink Sink, opts ...Option) *Demuxer {
	d := &Demuxer{
		src:   src,
		sink:  sink,
		reg:   StandardRegistry(),
		log:   slog.Default(),
		stack: make([]frame, 0, maxDepth),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Tracks returns the tracks registered so far, in file order.
func (d *Demuxer) Tracks() []*Track { return d.tracks }

// Chunks returns the chunk schedule. It is empty until the movie box has
// been consumed.
func (d *Demuxer) Chunks() []Chunk { return d.chunks }

// Err returns the fatal error, if any.
func (d *Demuxer) Err() error { return d.err }

// Run calls Step until it returns anything but StatusOK.
func (d *Demuxer) Run() (Status, error) {
	for {
		st, err := d.Step()
		if st != StatusOK {
			return st, err
		}
	}
}

// Step performs one unit of work.
//
// On StatusNeedData the source cursor and the parse state are exactly as
// they were before the call. A fatal error is returned with StatusFailed,
// and every later call returns it again.
func (d *Demuxer) Step() (Status, error) {
	if d.err != nil {
		return StatusFailed, d.err
	}
	if d.src.Closed() {
		if err := d.popCompleted(); err != nil {
			return d.fail(err)
		}
		if len(d.stack) == 0 && d.src.Remaining() == 0 {
			return StatusDone, nil
		}
	}

	depth, open := len(d.stack), d.open
	d.src.Begin()
	err := d.step()
	if errors.Is(err, bmff.ErrInsufficientData) {
		d.stack = d.stack[:depth]
		d.open = open
		d.src.Rollback()
		if d.src.Closed() {
			return d.fail(ErrTruncated)
		}
		return StatusNeedData, nil
	}
	if err != nil {
		return d.fail(err)
	}
	d.discard()
	return StatusOK, nil
}

func (d *Demuxer) fail(err error) (Status, error) {
	var se *StructureError
	if !errors.As(err, &se) {
		off := d.src.Offset()
		if len(d.stack) > 0 {
			off = d.stack[len(d.stack)-1].start
		}
		err = &StructureError{Path: d.Path(), Offset: off, Err: err}
	}
	d.err = err
	d.log.Debug("demux failed", "err", err)
	return StatusFailed, err
}

func (d *Demuxer) step() error {
	if !d.open {
		ok, err := d.readHeader()
		if err != nil {
			return err
		}
		if !ok {
			// an empty box may end its ancestors too
			return d.popCompleted()
		}
	}

	f := d.top()
	n := f.node
	switch {
	case f.skip:
		if err := d.skipBody(); err != nil {
			return err
		}
	case n != nil && n.decode != nil:
		if err := n.decode(d); err != nil {
			return err
		}
	case n == nil || !n.container:
		if err := d.skipBody(); err != nil {
			return err
		}
	}
	// the hook may have marked the frame skipped
	if n != nil && n.container && !d.top().skip {
		d.open = false
	}
	return d.popCompleted()
}

// readHeader reads the next box header and pushes its frame. It returns
// false for a box with an empty body, which is consumed and dropped.
func (d *Demuxer) readHeader() (bool, error) {
	start := d.src.Offset()
	hdr, err := d.src.ReadFixed(8)
	if err != nil {
		return false, err
	}
	h, err := bmff.ParseHeader(hdr)
	if errors.Is(err, bmff.ErrInsufficientData) {
		// 64-bit size
		ext, rerr := d.src.ReadFixed(8)
		if rerr != nil {
			return false, rerr
		}
		h, err = bmff.ParseHeader(append(slices.Clip(hdr), ext...))
	}
	typ, size, hsize := h.Type, h.Size, uint64(h.HeaderSize)
	if err != nil {
		return false, d.headerError(typ, start, size)
	}
	if size == hsize {
		d.log.Debug("empty box", "type", typ.String(), "offset", start)
		return false, nil
	}

	end := int64(openEnd)
	if size != 0 {
		if size > uint64(math.MaxInt64-start) {
			return false, d.headerError(typ, start, size)
		}
		end = start + int64(size)
	}
	var parent *node
	if len(d.stack) == 0 {
		parent = &d.reg.root
	} else {
		p := d.top()
		parent = p.node
		if end == openEnd {
			end = p.end
		} else if end > p.end {
			return false, &StructureError{Path: d.Path(), Offset: start, Err: ErrMalformedHeader}
		}
	}
	if len(d.stack) == maxDepth {
		return false, &StructureError{Path: d.Path(), Offset: start, Err: ErrMalformedHeader}
	}

	d.stack = append(d.stack, frame{
		typ:   typ,
		start: start,
		body:  start + int64(hsize),
		end:   end,
		node:  parent.child(typ),
	})
	d.open = true
	d.log.Debug("box", "path", d.Path().String(), "offset", start, "size", size)
	return true, nil
}

func (d *Demuxer) headerError(typ bmff.BoxType, start int64, size uint64) error {
	return &StructureError{
		Path:   append(d.Path(), typ),
		Offset: start,
		Err:    fmt.Errorf("%w: size %d", ErrMalformedHeader, size),
	}
}

// reached reports whether f has been consumed entirely.
func (d *Demuxer) reached(f *frame) bool {
	if f.end == openEnd {
		return d.src.Closed() && d.src.Remaining() == 0
	}
	return d.src.Offset() >= f.end
}

// popCompleted runs after hooks and pops every frame whose end the cursor
// has reached, innermost first.
func (d *Demuxer) popCompleted() error {
	for len(d.stack) > 0 {
		f := d.top()
		if !d.reached(f) {
			return nil
		}
		if n := f.node; n != nil && n.after != nil && !f.skip {
			if err := n.after(d); err != nil {
				return err
			}
		}
		d.stack = d.stack[:len(d.stack)-1]
		d.open = false
	}
	return nil
}

// skipBody consumes as much of the current box body as is buffered. The
// box stays open until all of it has been skipped.
func (d *Demuxer) skipBody() error {
	f := d.top()
	n := d.src.Remaining()
	if f.end != openEnd {
		n = min(n, f.end-d.src.Offset())
	}
	if n <= 0 {
		if d.reached(f) {
			return nil
		}
		return bmff.ErrInsufficientData
	}
	return d.src.Advance(n)
}

// discard tells a discarding source how far back the demuxer may still
// seek.
func (d *Demuxer) discard() {
	ds, ok := d.src.(Discarder)
	if !ok {
		return
	}
	low := d.src.Offset()
	switch {
	case d.mdatSeen && !d.moovDone:
		low = d.mdatStart
	case d.chunkIndex < len(d.chunks):
		low = min(low, d.chunks[d.chunkIndex].Offset+d.chunkPos)
	}
	ds.Discard(low)
}

func (d *Demuxer) top() *frame {
	return &d.stack[len(d.stack)-1]
}

// Path returns the types of the open boxes, outermost first.
func (d *Demuxer) Path() bmff.Path {
	p := make(bmff.Path, len(d.stack))
	for i := range d.stack {
		p[i] = d.stack[i].typ
	}
	return p
}

// Source returns the byte source, for use by handlers.
func (d *Demuxer) Source() bmff.Source { return d.src }

// Logger returns the demuxer's logger.
func (d *Demuxer) Logger() *slog.Logger { return d.log }

// BodyRemaining returns the unread length of the current box body, or -1
// when the box extends to the end of a stream that is still open.
func (d *Demuxer) BodyRemaining() int64 {
	f := d.top()
	if f.end == openEnd {
		if !d.src.Closed() {
			return -1
		}
		return d.src.Remaining()
	}
	return f.end - d.src.Offset()
}

// ReadBody reads the rest of the current box body in one fixed read, so a
// handler built on it either sees the whole body or nothing.
func (d *Demuxer) ReadBody() ([]byte, error) {
	n := d.BodyRemaining()
	if n < 0 {
		return nil, bmff.ErrInsufficientData
	}
	if n > math.MaxInt32 {
		return nil, ErrUnsupportedStructure
	}
	return d.src.ReadFixed(int(n))
}

// SkipBody consumes the rest of the current box body, possibly over
// several steps.
func (d *Demuxer) SkipBody() error { return d.skipBody() }

// CurrentTrack returns the track whose trak box is open, or nil.
func (d *Demuxer) CurrentTrack() *Track { return d.track }

package bmff

// maxDepth bounds box nesting for the Reader and the Writer.
const maxDepth = 16

// level is what Exit restores: the enclosing iteration bound and the end
// of the container being left.
type level struct {
	end       int
	container int
}

// Reader walks the boxes of an in-memory buffer, typically the body of a
// moov box located with a Scanner. Headers and full box bodies go through
// the same decoders the incremental demuxer uses.
type Reader struct {
	buf []byte
	pos int // start of the next header
	end int // end of the enclosing container

	boxType   BoxType
	boxSize   uint64
	boxStart  int
	boxEnd    int
	dataStart int // after the header and, for full boxes, version and flags
	version   uint8
	flags     uint32

	levels [maxDepth]level
	depth  int
}

// NewReader returns a Reader positioned before the first box of buf.
func NewReader(buf []byte) Reader {
	return Reader{buf: buf, end: len(buf)}
}

// Next advances to the next sibling box. It returns false at the end of
// the container or at a header that does not fit inside it.
func (r *Reader) Next() bool {
	if r.boxEnd > r.pos {
		r.pos = r.boxEnd
	}
	h, err := ParseHeader(r.buf[r.pos:r.end])
	if err != nil {
		return false
	}
	avail := uint64(r.end - r.pos)
	size := h.Size
	if size == 0 {
		size = avail
	}
	if size < uint64(h.HeaderSize) || size > avail {
		return false
	}

	r.boxType = h.Type
	r.boxSize = size
	r.boxStart = r.pos
	r.boxEnd = r.pos + int(size)
	ptr := r.pos + h.HeaderSize

	r.version, r.flags = 0, 0
	if IsFullBox(h.Type) {
		if r.boxEnd-ptr < 4 {
			return false
		}
		vf := be.Uint32(r.buf[ptr:])
		r.version = uint8(vf >> 24)
		r.flags = vf & 0x00ffffff
		ptr += 4
	}
	r.dataStart = ptr
	return true
}

// Type returns the type of the current box.
func (r *Reader) Type() BoxType { return r.boxType }

// Size returns the total size of the current box, header included.
func (r *Reader) Size() uint64 { return r.boxSize }

// Version and Flags return the full box fields, or zero for other boxes.
func (r *Reader) Version() uint8 { return r.version }

func (r *Reader) Flags() uint32 { return r.flags }

// Offset returns where the current box starts in the buffer.
func (r *Reader) Offset() int { return r.boxStart }

// DataOffset returns where the body of the current box starts.
func (r *Reader) DataOffset() int { return r.dataStart }

// HeaderSize counts the header bytes, version and flags included.
func (r *Reader) HeaderSize() int { return r.dataStart - r.boxStart }

// Data returns the body of the current box. It aliases the buffer.
func (r *Reader) Data() []byte { return r.buf[r.dataStart:r.boxEnd] }

// RawBox returns the current box with its header. It aliases the buffer.
func (r *Reader) RawBox() []byte { return r.buf[r.boxStart:r.boxEnd] }

// Depth returns how many containers have been entered.
func (r *Reader) Depth() int { return r.depth }

// Enter makes the children of the current box the iteration level; call
// Next for the first child and Exit to come back. It returns false at the
// nesting limit.
//
// Children of stsd and dref follow a 4-byte entry count, and those of an
// audio sample entry start at AudioSampleEntry.ChildOffset: Skip past
// them after Enter.
func (r *Reader) Enter() bool {
	if r.depth == maxDepth {
		return false
	}
	r.levels[r.depth] = level{end: r.end, container: r.boxEnd}
	r.depth++
	r.end = r.boxEnd
	r.pos = r.dataStart
	r.boxEnd = r.dataStart
	return true
}

// Exit leaves the level opened by Enter. The next Next call moves to the
// container's following sibling.
func (r *Reader) Exit() {
	r.depth--
	l := r.levels[r.depth]
	r.end = l.end
	r.pos = l.container
	r.boxEnd = l.container
}

// Skip moves past n bytes of the container body, without leaving it.
func (r *Reader) Skip(n int) {
	r.pos = min(r.pos+n, r.end)
	r.boxEnd = r.pos
}

// EntryCount returns the leading entry count of stsd, dref and the
// sample tables, or 0 when the body is too short.
func (r *Reader) EntryCount() uint32 {
	if d := r.Data(); len(d) >= 4 {
		return be.Uint32(d)
	}
	return 0
}

// ReadMvhd decodes the current mvhd box; see ParseMvhd.
func (r *Reader) ReadMvhd() MvhdInfo {
	m, _ := ParseMvhd(r.version, r.Data())
	return m
}

// ReadTkhd decodes the current tkhd box; see ParseTkhd.
func (r *Reader) ReadTkhd() TkhdInfo {
	t, _ := ParseTkhd(r.version, r.Data())
	return t
}

// ReadMdhd decodes the current mdhd box; see ParseMdhd.
func (r *Reader) ReadMdhd() MdhdInfo {
	m, _ := ParseMdhd(r.version, r.Data())
	return m
}

// ReadHdlr decodes the current hdlr box; see ParseHdlr.
func (r *Reader) ReadHdlr() HdlrInfo {
	h, _ := ParseHdlr(r.Data())
	return h
}

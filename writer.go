package bmff

import "math"

// writerFrame tracks the start offset of a box for size backpatching.
type writerFrame struct {
	offset int
}

// Writer encodes ISOBMFF boxes into a growable byte buffer. It is used to
// synthesize test streams and fixtures; box sizes are backpatched by EndBox.
type Writer struct {
	buf   []byte
	stack [maxDepth]writerFrame
	depth int
}

// NewWriter creates a Writer that appends to buf[:0].
func NewWriter(buf []byte) Writer {
	return Writer{buf: buf[:0]}
}

// Bytes returns the written data.
func (w *Writer) Bytes() []byte {
	return w.buf
}

// Len returns the number of bytes written.
func (w *Writer) Len() int { return len(w.buf) }

// Write appends raw bytes. Implements io.Writer.
func (w *Writer) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	return len(p), nil
}

func (w *Writer) putUint8(v byte) {
	w.buf = append(w.buf, v)
}

func (w *Writer) putUint16(v uint16) {
	w.buf = be.AppendUint16(w.buf, v)
}

func (w *Writer) putUint32(v uint32) {
	w.buf = be.AppendUint32(w.buf, v)
}

func (w *Writer) putUint64(v uint64) {
	w.buf = be.AppendUint64(w.buf, v)
}

func (w *Writer) putZeros(n int) {
	for range n {
		w.buf = append(w.buf, 0)
	}
}

func (w *Writer) putBytes(p []byte) {
	w.buf = append(w.buf, p...)
}

// Reset discards everything written so far.
func (w *Writer) Reset() {
	w.buf = w.buf[:0]
	w.depth = 0
}

// Depth returns the number of open boxes.
func (w *Writer) Depth() int { return w.depth }

// StartBox begins a new box. Write content, then call EndBox.
func (w *Writer) StartBox(t BoxType) {
	w.stack[w.depth] = writerFrame{offset: len(w.buf)}
	w.depth++
	w.putUint32(0) // placeholder size
	w.putBytes(t[:])
}

// StartFullBox begins a new full box with version and flags.
func (w *Writer) StartFullBox(t BoxType, version uint8, flags uint32) {
	w.StartBox(t)
	vf := (uint32(version) << 24) | (flags & 0x00ffffff)
	w.putUint32(vf)
}

// EndBox finishes the current box by backpatching its size.
func (w *Writer) EndBox() {
	w.depth--
	f := w.stack[w.depth]
	size := uint32(len(w.buf) - f.offset)
	be.PutUint32(w.buf[f.offset:], size)
}

// WriteBox writes a plain box with the given body.
func (w *Writer) WriteBox(t BoxType, body []byte) {
	w.StartBox(t)
	w.putBytes(body)
	w.EndBox()
}

// WriteLargeBox writes a box using the 64-bit size form.
func (w *Writer) WriteLargeBox(t BoxType, body []byte) {
	w.putUint32(1)
	w.putBytes(t[:])
	w.putUint64(uint64(16 + len(body)))
	w.putBytes(body)
}

// WriteOpenBox writes a box header with size 0 ("extends to end of
// stream") followed by body. Nothing may be written after it.
func (w *Writer) WriteOpenBox(t BoxType, body []byte) {
	w.putUint32(0)
	w.putBytes(t[:])
	w.putBytes(body)
}

// WriteFtyp writes a complete ftyp box.
func (w *Writer) WriteFtyp(brand BoxType, brandVersion uint32, compat []BoxType) {
	w.StartBox(TypeFtyp)
	w.putBytes(brand[:])
	w.putUint32(brandVersion)
	for _, c := range compat {
		w.putBytes(c[:])
	}
	w.EndBox()
}

// WriteMvhd writes a complete mvhd box.
func (w *Writer) WriteMvhd(timescale uint32, duration uint64, nextTrackId uint32) {
	if duration > math.MaxUint32 {
		w.StartFullBox(TypeMvhd, 1, 0)
		w.putUint64(0) // creation time
		w.putUint64(0) // modification time
		w.putUint32(timescale)
		w.putUint64(duration)
	} else {
		w.StartFullBox(TypeMvhd, 0, 0)
		w.putUint32(0) // creation time
		w.putUint32(0) // modification time
		w.putUint32(timescale)
		w.putUint32(uint32(duration))
	}
	w.putUint32(0x00010000) // rate 1.0
	w.putUint16(0x0100)     // volume 1.0
	w.putZeros(10)          // reserved
	w.putMatrix()
	w.putZeros(24) // predefined
	w.putUint32(nextTrackId)
	w.EndBox()
}

// WriteTkhd writes a complete tkhd box. Durations that do not fit 32 bits
// select version 1.
func (w *Writer) WriteTkhd(flags uint32, trackId uint32, duration uint64, width, height uint32) {
	if duration > math.MaxUint32 {
		w.StartFullBox(TypeTkhd, 1, flags)
		w.putUint64(0) // creation time
		w.putUint64(0) // modification time
		w.putUint32(trackId)
		w.putUint32(0) // reserved
		w.putUint64(duration)
	} else {
		w.StartFullBox(TypeTkhd, 0, flags)
		w.putUint32(0) // creation time
		w.putUint32(0) // modification time
		w.putUint32(trackId)
		w.putUint32(0) // reserved
		w.putUint32(uint32(duration))
	}
	w.putZeros(8)  // reserved
	w.putUint16(0) // layer
	w.putUint16(0) // alternate group
	w.putUint16(0) // volume
	w.putUint16(0) // reserved
	w.putMatrix()
	w.putUint32(width)
	w.putUint32(height)
	w.EndBox()
}

func (w *Writer) putMatrix() {
	w.putUint32(0x00010000)
	w.putZeros(12)
	w.putUint32(0x00010000)
	w.putZeros(12)
	w.putUint32(0x40000000)
}

// WriteMdhd writes a complete mdhd box.
func (w *Writer) WriteMdhd(timescale uint32, duration uint64, language uint16) {
	if duration > math.MaxUint32 {
		w.StartFullBox(TypeMdhd, 1, 0)
		w.putUint64(0) // creation time
		w.putUint64(0) // modification time
		w.putUint32(timescale)
		w.putUint64(duration)
	} else {
		w.StartFullBox(TypeMdhd, 0, 0)
		w.putUint32(0) // creation time
		w.putUint32(0) // modification time
		w.putUint32(timescale)
		w.putUint32(uint32(duration))
	}
	w.putUint16(language)
	w.putUint16(0) // quality
	w.EndBox()
}

// WriteHdlr writes a complete hdlr box.
func (w *Writer) WriteHdlr(handlerType BoxType, name string) {
	w.StartFullBox(TypeHdlr, 0, 0)
	w.putUint32(0) // predefined
	w.putBytes(handlerType[:])
	w.putZeros(12) // reserved
	w.putBytes([]byte(name))
	w.putUint8(0) // null terminator
	w.EndBox()
}

// WriteSmhd writes a complete smhd box.
func (w *Writer) WriteSmhd() {
	w.StartFullBox(TypeSmhd, 0, 0)
	w.putUint16(0) // balance
	w.putUint16(0) // reserved
	w.EndBox()
}

// WriteDref writes a dref box with a single self-referencing url entry.
func (w *Writer) WriteDref() {
	w.StartFullBox(TypeDref, 0, 0)
	w.putUint32(1) // entry count
	// url entry: self-contained
	w.StartFullBox(BoxType{'u', 'r', 'l', ' '}, 0, 1)
	w.EndBox()
	w.EndBox()
}

// StartStsd begins an stsd box declaring count sample entries. The caller
// writes the entries and then calls EndBox.
func (w *Writer) StartStsd(count uint32) {
	w.StartFullBox(TypeStsd, 0, 0)
	w.putUint32(count)
}

// WriteStsz writes a complete stsz box. With a nonzero sampleSize, count
// declares the number of samples and entries is ignored.
func (w *Writer) WriteStsz(sampleSize, count uint32, entries []uint32) {
	w.StartFullBox(TypeStsz, 0, 0)
	w.putUint32(sampleSize)
	if sampleSize == 0 {
		w.putUint32(uint32(len(entries)))
		for _, e := range entries {
			w.putUint32(e)
		}
	} else {
		w.putUint32(count)
	}
	w.EndBox()
}

// WriteStco writes a complete stco box.
func (w *Writer) WriteStco(entries []uint32) {
	w.StartFullBox(TypeStco, 0, 0)
	w.putUint32(uint32(len(entries)))
	for _, e := range entries {
		w.putUint32(e)
	}
	w.EndBox()
}

// WriteStts writes a complete stts box.
func (w *Writer) WriteStts(entries []SttsEntry) {
	w.StartFullBox(TypeStts, 0, 0)
	w.putUint32(uint32(len(entries)))
	for _, e := range entries {
		w.putUint32(e.Count)
		w.putUint32(e.Duration)
	}
	w.EndBox()
}

// WriteStsc writes a complete stsc box.
func (w *Writer) WriteStsc(entries []StscEntry) {
	w.StartFullBox(TypeStsc, 0, 0)
	w.putUint32(uint32(len(entries)))
	for _, e := range entries {
		w.putUint32(e.FirstChunk)
		w.putUint32(e.SamplesPerChunk)
		w.putUint32(e.SampleDescriptionId)
	}
	w.EndBox()
}

// WriteAudioSampleEntry writes the 28-byte audio sample entry header.
// The caller must start the box (e.g. mp4a) and end it after writing children.
func (w *Writer) WriteAudioSampleEntry(dataRefIdx, channelCount, sampleSize uint16, sampleRate uint32) {
	w.WriteAudioSampleEntryVersion(0, dataRefIdx, channelCount, sampleSize, sampleRate)
}

// WriteAudioSampleEntryVersion is like WriteAudioSampleEntry with a
// QuickTime sound description version. Version 1 must be followed by
// WriteSoundV1Fields.
func (w *Writer) WriteAudioSampleEntryVersion(version, dataRefIdx, channelCount, sampleSize uint16, sampleRate uint32) {
	w.putZeros(6)             // reserved
	w.putUint16(dataRefIdx)   // data reference index
	w.putUint16(version)      // version
	w.putZeros(6)             // revision, vendor
	w.putUint16(channelCount) // channel count
	w.putUint16(sampleSize)   // sample size
	w.putZeros(4)             // compression id + packet size
	w.putUint32(sampleRate)   // sample rate (16.16 fixed point)
}

// WriteSoundV1Fields writes the four fields a version 1 sound description
// adds after the sample rate.
func (w *Writer) WriteSoundV1Fields(samplesPerPacket, bytesPerPacket, bytesPerFrame, bytesPerSample uint32) {
	w.putUint32(samplesPerPacket)
	w.putUint32(bytesPerPacket)
	w.putUint32(bytesPerFrame)
	w.putUint32(bytesPerSample)
}

// WriteEsds writes an esds box carrying an ES descriptor with a decoder
// config for objectType and the given decoder specific info.
func (w *Writer) WriteEsds(objectType uint8, specificInfo []byte) {
	w.StartFullBox(TypeEsds, 0, 0)
	dsi := len(specificInfo)
	dcd := 13 + 2 + dsi
	es := 3 + 2 + dcd + 3
	w.putDescriptorHeader(TagESDescriptor, es)
	w.putUint16(1) // ES_ID
	w.putUint8(0)  // flags
	w.putDescriptorHeader(TagDecoderConfigDescriptor, dcd)
	w.putUint8(objectType)
	w.putUint8(0x15) // audio stream
	w.putZeros(3)    // buffer size
	w.putUint32(0)   // max bitrate
	w.putUint32(0)   // avg bitrate
	w.putDescriptorHeader(TagDecoderSpecificInfo, dsi)
	w.putBytes(specificInfo)
	w.putDescriptorHeader(0x06, 1) // SLConfigDescriptor
	w.putUint8(2)
	w.EndBox()
}

// putDescriptorHeader writes a tag and a one byte length. Longer payloads
// use the multi-byte form.
func (w *Writer) putDescriptorHeader(tag byte, n int) {
	w.putUint8(tag)
	if n < 0x80 {
		w.putUint8(byte(n))
		return
	}
	w.putUint8(byte(n>>21)&0x7f | 0x80)
	w.putUint8(byte(n>>14)&0x7f | 0x80)
	w.putUint8(byte(n>>7)&0x7f | 0x80)
	w.putUint8(byte(n) & 0x7f)
}

// WriteAlac writes the alac cookie box nested in an alac sample entry.
func (w *Writer) WriteAlac(cookie []byte) {
	w.StartFullBox(TypeAlac, 0, 0)
	w.putBytes(cookie)
	w.EndBox()
}

// WriteEnda writes an enda box; littleEndian selects a nonzero flag.
func (w *Writer) WriteEnda(littleEndian bool) {
	w.StartBox(TypeEnda)
	if littleEndian {
		w.putUint16(1)
	} else {
		w.putUint16(0)
	}
	w.EndBox()
}

// WriteTrefChap writes a tref box with a chap reference to trackIds.
func (w *Writer) WriteTrefChap(trackIds ...uint32) {
	w.StartBox(TypeTref)
	w.StartBox(TypeChap)
	for _, id := range trackIds {
		w.putUint32(id)
	}
	w.EndBox()
	w.EndBox()
}

// StartMeta begins a meta full box followed by an mdir handler, as iTunes
// writes it. The caller adds ilst and ends the box.
func (w *Writer) StartMeta() {
	w.StartFullBox(TypeMeta, 0, 0)
	w.WriteHdlr(NewBoxType("mdir"), "")
}

// WriteIlstItem writes an ilst item holding a single data box.
// typeIndicator is the well-known data type (1 UTF-8, 2 UTF-16, 21 integer, ...).
func (w *Writer) WriteIlstItem(t BoxType, typeIndicator uint32, value []byte) {
	w.StartBox(t)
	w.StartBox(TypeData)
	w.putUint32(typeIndicator)
	w.putUint32(0) // locale
	w.putBytes(value)
	w.EndBox()
	w.EndBox()
}

package bmff

import (
	"encoding/binary"
)

var be = binary.BigEndian

// The iterators below take box data after the version and flags field,
// starting at the entry count.

// SttsEntry is a time-to-sample run.
type SttsEntry struct {
	Count    uint32
	Duration uint32
}

// SttsIter iterates over stts entries.
type SttsIter struct {
	buf   []byte
	count uint32
	index uint32
}

// NewSttsIter creates an iterator from stts box data.
func NewSttsIter(data []byte) SttsIter {
	if len(data) < 4 {
		return SttsIter{}
	}
	return SttsIter{
		buf:   data,
		count: be.Uint32(data[0:4]),
	}
}

// Count returns the declared number of entries.
func (it *SttsIter) Count() uint32 { return it.count }

// Next returns the next entry. Returns false when done.
func (it *SttsIter) Next() (SttsEntry, bool) {
	if it.index >= it.count {
		return SttsEntry{}, false
	}
	offset := 4 + int(it.index)*8
	if offset+8 > len(it.buf) {
		return SttsEntry{}, false
	}
	e := SttsEntry{
		Count:    be.Uint32(it.buf[offset:]),
		Duration: be.Uint32(it.buf[offset+4:]),
	}
	it.index++
	return e, true
}

// Entries collects the remaining entries.
func (it *SttsIter) Entries() []SttsEntry {
	out := make([]SttsEntry, 0, entryCap(it.count, len(it.buf), 8))
	for e, ok := it.Next(); ok; e, ok = it.Next() {
		out = append(out, e)
	}
	return out
}

// StscEntry is a sample-to-chunk run.
type StscEntry struct {
	FirstChunk          uint32 // 1-based
	SamplesPerChunk     uint32
	SampleDescriptionId uint32
}

// StscIter iterates over stsc entries.
type StscIter struct {
	buf   []byte
	count uint32
	index uint32
}

// NewStscIter creates an iterator from stsc box data.
func NewStscIter(data []byte) StscIter {
	if len(data) < 4 {
		return StscIter{}
	}
	return StscIter{
		buf:   data,
		count: be.Uint32(data[0:4]),
	}
}

// Count returns the declared number of entries.
func (it *StscIter) Count() uint32 { return it.count }

// Next returns the next entry. Returns false when done.
func (it *StscIter) Next() (StscEntry, bool) {
	if it.index >= it.count {
		return StscEntry{}, false
	}
	offset := 4 + int(it.index)*12
	if offset+12 > len(it.buf) {
		return StscEntry{}, false
	}
	e := StscEntry{
		FirstChunk:          be.Uint32(it.buf[offset:]),
		SamplesPerChunk:     be.Uint32(it.buf[offset+4:]),
		SampleDescriptionId: be.Uint32(it.buf[offset+8:]),
	}
	it.index++
	return e, true
}

// Entries collects the remaining entries.
func (it *StscIter) Entries() []StscEntry {
	out := make([]StscEntry, 0, entryCap(it.count, len(it.buf), 12))
	for e, ok := it.Next(); ok; e, ok = it.Next() {
		out = append(out, e)
	}
	return out
}

// StszIter iterates over sample sizes in an stsz box.
type StszIter struct {
	buf        []byte
	sampleSize uint32
	count      uint32
	index      uint32
}

// NewStszIter creates an iterator from stsz box data (sample size, count, entries).
func NewStszIter(data []byte) StszIter {
	if len(data) < 8 {
		return StszIter{}
	}
	return StszIter{
		buf:        data,
		sampleSize: be.Uint32(data[0:4]),
		count:      be.Uint32(data[4:8]),
	}
}

// SampleSize returns the fixed sample size, or 0 when sizes are listed per sample.
func (it *StszIter) SampleSize() uint32 { return it.sampleSize }

// Count returns the total number of samples.
func (it *StszIter) Count() uint32 { return it.count }

// Next returns the next sample size. Returns (0, false) when done.
func (it *StszIter) Next() (uint32, bool) {
	if it.index >= it.count {
		return 0, false
	}
	var size uint32
	if it.sampleSize != 0 {
		size = it.sampleSize
	} else {
		offset := 8 + int(it.index)*4
		if offset+4 > len(it.buf) {
			return 0, false
		}
		size = be.Uint32(it.buf[offset:])
	}
	it.index++
	return size, true
}

// Sizes returns the explicit per-sample size list, or nil when the box
// declares a fixed sample size or no samples.
func (it *StszIter) Sizes() []uint32 {
	if it.sampleSize != 0 || it.count == 0 {
		return nil
	}
	out := make([]uint32, 0, entryCap(it.count, len(it.buf)-4, 4))
	for v, ok := it.Next(); ok; v, ok = it.Next() {
		out = append(out, v)
	}
	return out
}

// Uint32Iter iterates over uint32 entries (stco, stss).
type Uint32Iter struct {
	buf   []byte
	count uint32
	index uint32
}

// NewUint32Iter creates an iterator from box data containing a count + uint32 entries.
func NewUint32Iter(data []byte) Uint32Iter {
	if len(data) < 4 {
		return Uint32Iter{}
	}
	return Uint32Iter{
		buf:   data,
		count: be.Uint32(data[0:4]),
	}
}

// Count returns the declared number of entries.
func (it *Uint32Iter) Count() uint32 { return it.count }

// Next returns the next entry. Returns (0, false) when done.
func (it *Uint32Iter) Next() (uint32, bool) {
	if it.index >= it.count {
		return 0, false
	}
	offset := 4 + int(it.index)*4
	if offset+4 > len(it.buf) {
		return 0, false
	}
	v := be.Uint32(it.buf[offset:])
	it.index++
	return v, true
}

// Entries collects the remaining entries.
func (it *Uint32Iter) Entries() []uint32 {
	out := make([]uint32, 0, entryCap(it.count, len(it.buf), 4))
	for v, ok := it.Next(); ok; v, ok = it.Next() {
		out = append(out, v)
	}
	return out
}

// entryCap bounds a declared entry count by what the buffer can hold.
func entryCap(count uint32, bufLen, stride int) int {
	n := max(bufLen-4, 0) / stride
	return min(int(count), n)
}

// FtypInfo holds parsed fields from an ftyp box.
type FtypInfo struct {
	MajorBrand   BoxType
	MinorVersion uint32
	Compatible   []BoxType
}

// ReadFtyp parses ftyp box data.
func ReadFtyp(data []byte) FtypInfo {
	if len(data) < 8 {
		return FtypInfo{}
	}
	f := FtypInfo{
		MajorBrand:   BoxType(data[0:4]),
		MinorVersion: be.Uint32(data[4:8]),
	}
	for i := 8; i+4 <= len(data); i += 4 {
		f.Compatible = append(f.Compatible, BoxType(data[i:i+4]))
	}
	return f
}

// AudioSampleEntry holds parsed fields from an audio sample entry (e.g. mp4a).
type AudioSampleEntry struct {
	DataReferenceIndex uint16
	Version            uint16 // QuickTime sound description version
	ChannelCount       uint16
	SampleSize         uint16
	SampleRate         uint32 // 16.16 fixed point
	ChildOffset        int    // byte offset within data where child boxes begin
}

// ReadAudioSampleEntry parses an audio sample entry from box data.
// Child boxes (e.g. esds) start at ChildOffset within the data; QuickTime
// version 1 entries carry 16 more bytes before them.
func ReadAudioSampleEntry(data []byte) AudioSampleEntry {
	if len(data) < 28 {
		return AudioSampleEntry{}
	}
	e := AudioSampleEntry{
		DataReferenceIndex: be.Uint16(data[6:8]),
		Version:            be.Uint16(data[8:10]),
		ChannelCount:       be.Uint16(data[16:18]),
		SampleSize:         be.Uint16(data[18:20]),
		SampleRate:         be.Uint32(data[24:28]),
		ChildOffset:        28,
	}
	if e.Version == 1 {
		e.ChildOffset += 16
	}
	return e
}

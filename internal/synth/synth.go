// Package synth builds small but complete MP4 files in memory. Tests use
// them as fixtures and the gen command writes them out.
package synth

import (
	"math"

	"github.com/bluenviron/mediacommon/pkg/codecs/mpeg4audio"

	bmff "github.com/tetsuo/mp4demux"
)

// Item is one ilst entry.
type Item struct {
	Tag   string // four bytes, e.g. "\xa9nam"
	Type  uint32 // data box well-known type
	Value []byte
}

// Text returns a UTF-8 text item.
func Text(tag, s string) Item {
	return Item{Tag: tag, Type: 1, Value: []byte(s)}
}

// Integer returns a big-endian integer item.
func Integer(tag string, v ...byte) Item {
	return Item{Tag: tag, Type: 21, Value: v}
}

// Track describes one trak box and its samples.
type Track struct {
	ID      uint32
	Handler string // "soun", "vide", ...
	Format  string // sample entry type: "sowt", "twos", "mp4a", "alac", "avc1", ...

	Channels     uint16
	BitsPerCh    uint16
	SampleRate   uint32
	TimeScale    uint32
	EntryVersion uint16 // sound sample entry version
	// FramesPerPacket and BytesPerFrame are written for version 1 entries.
	FramesPerPacket uint32
	BytesPerFrame   uint32

	Cookie     []byte // alac cookie or AAC AudioSpecificConfig
	ObjectType uint8  // esds object type, 0x40 when zero
	Enda       *bool  // adds wave.enda when set

	Samples         [][]byte
	SampleDuration  uint32
	SamplesPerChunk int
	// ExplicitSizes forces a per-sample size table even when all samples
	// have the same size.
	ExplicitSizes bool
	// SampleEntries is the declared stsd entry count; 0 means 1.
	SampleEntries uint32

	Chapters []uint32
	Meta     []Item
}

// File describes a whole file.
type File struct {
	Brand      string // major brand, "M4A " when empty
	Tracks     []Track
	Meta       []Item
	MdatFirst  bool // write mdat before moov
	Interleave bool // alternate chunks of the tracks instead of one track after another
	// LargeMdat writes the media data box with a 64-bit size.
	LargeMdat bool
	// Free appends an unhandled box after the last top-level box.
	Free []byte
}

type chunk struct {
	track   int
	samples [][]byte
	offset  uint32 // relative to the mdat body until placed
}

// layout splits every track into chunks and orders them in the mdat body.
func (f *File) layout() [][]*chunk {
	perTrack := make([][]*chunk, len(f.Tracks))
	for i, t := range f.Tracks {
		spc := max(t.SamplesPerChunk, 1)
		for j := 0; j < len(t.Samples); j += spc {
			perTrack[i] = append(perTrack[i], &chunk{track: i, samples: t.Samples[j:min(j+spc, len(t.Samples))]})
		}
	}

	var order []*chunk
	if f.Interleave {
		for k := 0; ; k++ {
			added := false
			for i := range perTrack {
				if k < len(perTrack[i]) {
					order = append(order, perTrack[i][k])
					added = true
				}
			}
			if !added {
				break
			}
		}
	} else {
		for i := range perTrack {
			order = append(order, perTrack[i]...)
		}
	}

	var off uint32
	for _, c := range order {
		c.offset = off
		for _, s := range c.samples {
			off += uint32(len(s))
		}
	}
	return perTrack
}

// Bytes encodes the file.
func (f *File) Bytes() []byte {
	chunks := f.layout()

	var ordered []*chunk
	for _, cs := range chunks {
		ordered = append(ordered, cs...)
	}
	size := 0
	for _, c := range ordered {
		for _, s := range c.samples {
			size += len(s)
		}
	}
	body := make([]byte, size)
	for _, c := range ordered {
		off := int(c.offset)
		for _, s := range c.samples {
			off += copy(body[off:], s)
		}
	}

	brand := f.Brand
	if brand == "" {
		brand = "M4A "
	}
	ftyp := bmff.NewWriter(nil)
	ftyp.WriteFtyp(bmff.NewBoxType(brand), 0, []bmff.BoxType{
		bmff.NewBoxType(brand), bmff.NewBoxType("mp42"), bmff.NewBoxType("isom"),
	})

	mdatHeader := 8
	if f.LargeMdat {
		mdatHeader = 16
	}

	// stco sizes do not depend on offset values, so one pass with base 0
	// gives the moov size.
	moovSize := len(f.moov(chunks, 0))
	base := ftyp.Len() + mdatHeader
	if !f.MdatFirst {
		base += moovSize
	}
	moov := f.moov(chunks, uint32(base))

	w := bmff.NewWriter(make([]byte, 0, ftyp.Len()+moovSize+mdatHeader+len(body)+len(f.Free)+8))
	w.Write(ftyp.Bytes())
	if !f.MdatFirst {
		w.Write(moov)
	}
	if f.LargeMdat {
		w.WriteLargeBox(bmff.TypeMdat, body)
	} else {
		w.WriteBox(bmff.TypeMdat, body)
	}
	if f.MdatFirst {
		w.Write(moov)
	}
	if f.Free != nil {
		w.WriteBox(bmff.TypeFree, f.Free)
	}
	return w.Bytes()
}

func (f *File) moov(chunks [][]*chunk, base uint32) []byte {
	w := bmff.NewWriter(nil)
	w.StartBox(bmff.TypeMoov)
	var duration uint64
	for _, t := range f.Tracks {
		d := t.duration()
		if t.TimeScale != 0 {
			duration = max(duration, d*1000/uint64(t.TimeScale))
		}
	}
	w.WriteMvhd(1000, duration, uint32(len(f.Tracks)+1))
	for i := range f.Tracks {
		f.Tracks[i].write(&w, chunks[i], base)
	}
	if len(f.Meta) > 0 {
		writeUdta(&w, f.Meta)
	}
	w.EndBox()
	return w.Bytes()
}

func (t *Track) duration() uint64 {
	return uint64(len(t.Samples)) * uint64(t.SampleDuration)
}

func (t *Track) write(w *bmff.Writer, chunks []*chunk, base uint32) {
	w.StartBox(bmff.TypeTrak)
	w.WriteTkhd(3, t.ID, t.duration(), 0, 0)
	if len(t.Chapters) > 0 {
		w.WriteTrefChap(t.Chapters...)
	}
	w.StartBox(bmff.TypeMdia)
	w.WriteMdhd(t.TimeScale, t.duration(), 0x55c4) // "und"
	w.WriteHdlr(bmff.NewBoxType(t.Handler), "synth")
	w.StartBox(bmff.TypeMinf)
	if t.Handler == "soun" {
		w.WriteSmhd()
	}
	w.StartBox(bmff.TypeDinf)
	w.WriteDref()
	w.EndBox()
	w.StartBox(bmff.TypeStbl)
	t.writeStsd(w)
	w.WriteStts([]bmff.SttsEntry{{Count: uint32(len(t.Samples)), Duration: t.SampleDuration}})
	w.WriteStsc(t.stsc(chunks))
	if size, ok := t.fixedSize(); ok && !t.ExplicitSizes {
		w.WriteStsz(size, uint32(len(t.Samples)), nil)
	} else {
		sizes := make([]uint32, len(t.Samples))
		for i, s := range t.Samples {
			sizes[i] = uint32(len(s))
		}
		w.WriteStsz(0, 0, sizes)
	}
	offsets := make([]uint32, len(chunks))
	for i, c := range chunks {
		offsets[i] = base + c.offset
	}
	w.WriteStco(offsets)
	w.EndBox() // stbl
	w.EndBox() // minf
	w.EndBox() // mdia
	if len(t.Meta) > 0 {
		writeUdta(w, t.Meta)
	}
	w.EndBox() // trak
}

func (t *Track) fixedSize() (uint32, bool) {
	if len(t.Samples) == 0 {
		return 0, false
	}
	n := len(t.Samples[0])
	for _, s := range t.Samples[1:] {
		if len(s) != n {
			return 0, false
		}
	}
	return uint32(n), n > 0
}

// stsc encodes the chunk sizes as runs.
func (t *Track) stsc(chunks []*chunk) []bmff.StscEntry {
	var runs []bmff.StscEntry
	for i, c := range chunks {
		n := uint32(len(c.samples))
		if k := len(runs) - 1; k >= 0 && runs[k].SamplesPerChunk == n {
			continue
		}
		runs = append(runs, bmff.StscEntry{FirstChunk: uint32(i + 1), SamplesPerChunk: n, SampleDescriptionId: 1})
	}
	return runs
}

func (t *Track) writeStsd(w *bmff.Writer) {
	count := t.SampleEntries
	if count == 0 {
		count = 1
	}
	w.StartStsd(count)
	for range count {
		t.writeSampleEntry(w)
	}
	w.EndBox()
}

func (t *Track) writeSampleEntry(w *bmff.Writer) {
	w.StartBox(bmff.NewBoxType(t.Format))
	if t.Handler != "soun" {
		w.Write(make([]byte, 78)) // visual sample entry fields, all zero
		w.EndBox()
		return
	}
	w.WriteAudioSampleEntryVersion(t.EntryVersion, 1, t.Channels, t.BitsPerCh, t.SampleRate<<16)
	if t.EntryVersion == 1 {
		w.WriteSoundV1Fields(t.FramesPerPacket, uint32(t.BitsPerCh/8)*uint32(t.Channels), t.BytesPerFrame, uint32(t.BitsPerCh/8))
	}
	switch t.Format {
	case "alac":
		w.WriteAlac(t.Cookie)
	case "mp4a":
		oti := t.ObjectType
		if oti == 0 {
			oti = 0x40
		}
		w.WriteEsds(oti, t.Cookie)
	}
	if t.Enda != nil {
		w.StartBox(bmff.TypeWave)
		w.WriteEnda(*t.Enda)
		w.EndBox()
	}
	w.EndBox()
}

func writeUdta(w *bmff.Writer, items []Item) {
	w.StartBox(bmff.TypeUdta)
	w.StartMeta()
	w.StartBox(bmff.TypeIlst)
	for _, it := range items {
		w.WriteIlstItem(bmff.NewBoxType(it.Tag), it.Type, it.Value)
	}
	w.EndBox() // ilst
	w.EndBox() // meta
	w.EndBox() // udta
}

// PCMTone returns a 16-bit sine tone split into samples of framesPerSample
// frames each. bigEndian selects "twos" byte order instead of "sowt".
func PCMTone(hz float64, rate, channels, frames, framesPerSample int, bigEndian bool) [][]byte {
	frameSize := 2 * channels
	var samples [][]byte
	for start := 0; start < frames; start += framesPerSample {
		n := min(framesPerSample, frames-start)
		s := make([]byte, n*frameSize)
		for i := range n {
			v := int16(math.Sin(2*math.Pi*hz*float64(start+i)/float64(rate)) * 0.3 * math.MaxInt16)
			for ch := range channels {
				p := s[i*frameSize+ch*2:]
				if bigEndian {
					p[0], p[1] = byte(uint16(v)>>8), byte(v)
				} else {
					p[0], p[1] = byte(v), byte(uint16(v)>>8)
				}
			}
		}
		samples = append(samples, s)
	}
	return samples
}

// AACConfig returns the AudioSpecificConfig of an AAC-LC stream.
func AACConfig(rate, channels int) ([]byte, error) {
	conf := mpeg4audio.Config{
		Type:         mpeg4audio.ObjectTypeAACLC,
		SampleRate:   rate,
		ChannelCount: channels,
	}
	return conf.Marshal()
}

// silent AAC-LC raw frames
var (
	silentMono   = []byte{0x01, 0x40, 0x20, 0x07}
	silentStereo = []byte{0x21, 0x00, 0x49, 0x90, 0x02, 0x19, 0x00, 0x23, 0x80}
)

// AACSilence returns n silent AAC-LC frames of 1024 samples each.
func AACSilence(channels, n int) [][]byte {
	frame := silentStereo
	if channels == 1 {
		frame = silentMono
	}
	out := make([][]byte, n)
	for i := range out {
		out[i] = frame
	}
	return out
}

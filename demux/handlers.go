package demux

import (
	"bytes"
	"encoding/binary"
	"fmt"

	bmff "github.com/tetsuo/mp4demux"
)

var be = binary.BigEndian

const stbl = "moov.trak.mdia.minf.stbl"

func registerTrackHandlers(r *Registry) {
	r.Register("moov.trak", (*Demuxer).readTrak)
	r.After("moov.trak", (*Demuxer).afterTrak)
	r.Register("moov.trak.tkhd", (*Demuxer).readTkhd)
	r.Register("moov.trak.mdia.hdlr", (*Demuxer).readHdlr)
	r.Register("moov.trak.mdia.mdhd", (*Demuxer).readMdhd)
	r.Register("moov.trak.tref.chap", (*Demuxer).readChap)
	r.Register(stbl+".stsd", (*Demuxer).readStsd)
	r.Register(stbl+".stsd.alac", (*Demuxer).readAlac)
	r.Register(stbl+".stsd.esds", (*Demuxer).readEsds)
	r.Register(stbl+".stsd.wave.enda", (*Demuxer).readEnda)
	r.Register(stbl+".stts", (*Demuxer).readStts)
	r.Register(stbl+".stsc", (*Demuxer).readStsc)
	r.Register(stbl+".stsz", (*Demuxer).readStsz)
	r.Register(stbl+".stco", (*Demuxer).readStco)
}

// fullBody reads the rest of a full box body and returns its version and
// the bytes after the version and flags field.
func (d *Demuxer) fullBody(need int) (uint8, []byte, error) {
	body, err := d.ReadBody()
	if err != nil {
		return 0, nil, err
	}
	if len(body) < 4+need {
		return 0, nil, fmt.Errorf("%w: %s needs %d bytes, has %d", ErrMalformedBox, d.top().typ, 4+need, len(body))
	}
	return body[0], body[4:], nil
}

func (d *Demuxer) readMoov() error {
	if d.moovDone && len(d.stack) == 1 {
		d.log.Debug("skipping repeated movie box", "offset", d.top().start)
		d.top().skip = true
		return d.skipBody()
	}
	return nil
}

func (d *Demuxer) readTrak() error {
	d.track = &Track{}
	return nil
}

func (d *Demuxer) readTkhd() error {
	version, data, err := d.fullBody(0)
	if err != nil {
		return err
	}
	tk, ok := bmff.ParseTkhd(version, data)
	if !ok {
		return fmt.Errorf("%w: tkhd v%d has %d bytes", ErrMalformedBox, version, len(data))
	}
	d.track.ID = tk.TrackID
	return nil
}

func (d *Demuxer) readHdlr() error {
	_, data, err := d.fullBody(0)
	if err != nil {
		return err
	}
	h, ok := bmff.ParseHdlr(data)
	if !ok {
		return fmt.Errorf("%w: hdlr has %d bytes", ErrMalformedBox, len(data))
	}
	d.track.Type = handlerTypes[h.Type]
	return nil
}

func (d *Demuxer) readMdhd() error {
	version, data, err := d.fullBody(0)
	if err != nil {
		return err
	}
	m, ok := bmff.ParseMdhd(version, data)
	if !ok {
		return fmt.Errorf("%w: mdhd v%d has %d bytes", ErrMalformedBox, version, len(data))
	}
	d.track.TimeScale = m.TimeScale
	d.track.Duration = durationMillis(m.Duration, m.TimeScale)
	return nil
}

func (d *Demuxer) readChap() error {
	body, err := d.ReadBody()
	if err != nil {
		return err
	}
	for i := 0; i+4 <= len(body); i += 4 {
		d.track.ChapterTracks = append(d.track.ChapterTracks, be.Uint32(body[i:]))
	}
	return nil
}

// bitsPerChannel overrides the declared sample size for fixed width formats.
var bitsPerChannel = map[string]uint16{
	"ulaw": 8,
	"alaw": 8,
	"in24": 24,
	"in32": 32,
	"fl32": 32,
	"fl64": 64,
}

// lpcmFormats are the linear PCM sample entry types, normalized to "lpcm".
var lpcmFormats = map[string]bool{
	"twos": true,
	"sowt": true,
	"in24": true,
	"in32": true,
	"fl32": true,
	"fl64": true,
	"raw ": true,
	"NONE": true,
}

// sampleEntryHeader is the size, type and audio fields of a version 0
// sound sample entry.
const sampleEntryHeader = 8 + 28

// readStsd decodes the single audio sample entry and leaves the source at
// its first child box, so that alac, esds and wave appear as children of
// stsd. Other track types skip the box.
func (d *Demuxer) readStsd() error {
	hdr, err := d.src.ReadFixed(8)
	if err != nil {
		return err
	}
	count := be.Uint32(hdr[4:8])
	if d.track.Type != Audio {
		d.top().skip = true
		return d.skipBody()
	}
	if count != 1 {
		return fmt.Errorf("%w: %d sample descriptions in audio track", ErrUnsupportedStructure, count)
	}

	entry, err := d.src.ReadFixed(sampleEntryHeader)
	if err != nil {
		return err
	}
	ase := bmff.ReadAudioSampleEntry(entry[8:])
	var v1 []byte
	switch ase.Version {
	case 0:
	case 1:
		if v1, err = d.src.ReadFixed(16); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: sound sample entry version %d", ErrUnsupportedStructure, ase.Version)
	}
	if d.src.Offset() > d.top().end {
		return fmt.Errorf("%w: sample entry overruns stsd", ErrMalformedBox)
	}

	f := &d.track.Format
	f.ID = string(entry[4:8])
	f.ChannelsPerFrame = ase.ChannelCount
	f.BitsPerChannel = ase.SampleSize
	f.SampleRate = ase.SampleRate >> 16
	if v1 != nil {
		f.FramesPerPacket = be.Uint32(v1[0:4])
		f.BytesPerFrame = be.Uint32(v1[8:12])
	}
	if bits, ok := bitsPerChannel[f.ID]; ok {
		f.BitsPerChannel = bits
	}
	f.FloatingPoint = f.ID == "fl32" || f.ID == "fl64"
	f.LittleEndian = f.ID == "sowt" && f.BitsPerChannel > 8
	if lpcmFormats[f.ID] {
		f.ID = "lpcm"
	}
	return nil
}

func (d *Demuxer) readAlac() error {
	_, data, err := d.fullBody(0)
	if err != nil {
		return err
	}
	d.track.Format.Cookie = bytes.Clone(data)
	return nil
}

// readEsds keeps whatever the descriptor chain yields; anomalies inside it
// are not errors, and the whole box is consumed either way.
func (d *Demuxer) readEsds() error {
	_, data, err := d.fullBody(0)
	if err != nil {
		return err
	}
	desc := bmff.ReadESDescriptor(data)
	d.track.Format.ObjectType = desc.ObjectType
	if desc.DecoderSpecificInfo != nil {
		d.track.Format.Cookie = bytes.Clone(desc.DecoderSpecificInfo)
	}
	return nil
}

func (d *Demuxer) readEnda() error {
	body, err := d.ReadBody()
	if err != nil {
		return err
	}
	if len(body) < 2 {
		return fmt.Errorf("%w: enda too short", ErrMalformedBox)
	}
	d.track.Format.LittleEndian = be.Uint16(body) != 0
	return nil
}

func (d *Demuxer) readStts() error {
	_, data, err := d.fullBody(4)
	if err != nil {
		return err
	}
	it := bmff.NewSttsIter(data)
	d.track.stts = it.Entries()
	d.checkCount("stts", it.Count(), len(d.track.stts))
	return nil
}

func (d *Demuxer) readStsc() error {
	_, data, err := d.fullBody(4)
	if err != nil {
		return err
	}
	it := bmff.NewStscIter(data)
	d.track.stsc = it.Entries()
	d.checkCount("stsc", it.Count(), len(d.track.stsc))
	return nil
}

func (d *Demuxer) readStsz() error {
	_, data, err := d.fullBody(8)
	if err != nil {
		return err
	}
	it := bmff.NewStszIter(data)
	d.track.sampleSize = it.SampleSize()
	d.track.sampleCount = it.Count()
	d.track.sampleSizes = it.Sizes()
	if it.SampleSize() == 0 {
		d.checkCount("stsz", it.Count(), len(d.track.sampleSizes))
	}
	return nil
}

func (d *Demuxer) readStco() error {
	_, data, err := d.fullBody(4)
	if err != nil {
		return err
	}
	it := bmff.NewUint32Iter(data)
	d.track.chunkOffsets = it.Entries()
	d.checkCount("stco", it.Count(), len(d.track.chunkOffsets))
	return nil
}

func (d *Demuxer) checkCount(box string, declared uint32, got int) {
	if int(declared) != got {
		d.log.Warn("sample table shorter than its entry count",
			"box", box, "declared", declared, "entries", got)
	}
}

func (d *Demuxer) afterTrak() error {
	t := d.track
	d.track = nil
	buildSeekPoints(t, d.log)
	d.tracks = append(d.tracks, t)
	d.log.Debug("track",
		"id", t.ID,
		"type", t.Type.String(),
		"format", t.Format.ID,
		"samples", len(t.SeekPoints))
	if err := d.sink.AddTrack(t); err != nil {
		return fmt.Errorf("add track %d: %w", t.ID, err)
	}
	return nil
}

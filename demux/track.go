package demux

import (
	"fmt"
	"strings"

	"github.com/bluenviron/mediacommon/pkg/codecs/mpeg4audio"

	bmff "github.com/tetsuo/mp4demux"
)

// MediaType classifies a track by its handler subtype.
type MediaType uint8

const (
	Unsupported MediaType = iota
	Video
	Audio
	Subtitle
	Text
)

func (m MediaType) String() string {
	switch m {
	case Video:
		return "video"
	case Audio:
		return "audio"
	case Subtitle:
		return "subtitle"
	case Text:
		return "text"
	}
	return "unsupported"
}

// handlerTypes maps hdlr subtypes to media types.
var handlerTypes = map[bmff.BoxType]MediaType{
	bmff.NewBoxType("vide"): Video,
	bmff.NewBoxType("soun"): Audio,
	bmff.NewBoxType("sbtl"): Subtitle,
	bmff.NewBoxType("text"): Text,
}

// Format describes how a track's payload is encoded.
type Format struct {
	// ID is the sample entry type ("mp4a", "alac", ...). Linear PCM variants
	// are normalized to "lpcm".
	ID               string
	ChannelsPerFrame uint16
	BitsPerChannel   uint16
	SampleRate       uint32 // Hz, integer part of the sample entry rate
	FramesPerPacket  uint32 // version 1 sample entries only
	BytesPerFrame    uint32 // version 1 sample entries only
	FloatingPoint    bool
	LittleEndian     bool
	// Cookie is the opaque decoder configuration: the ALAC magic cookie or
	// the AAC AudioSpecificConfig.
	Cookie []byte
	// ObjectType is the esds object type indication, 0 when absent.
	ObjectType uint8
}

// Codec returns an RFC 6381 style codec string for the format.
func (f *Format) Codec() string {
	switch f.ID {
	case "mp4a":
		if len(f.Cookie) > 0 && (f.ObjectType == 0 || f.ObjectType == 0x40) {
			var conf mpeg4audio.Config
			if err := conf.Unmarshal(f.Cookie); err == nil {
				return fmt.Sprintf("mp4a.40.%d", int(conf.Type))
			}
		}
		if f.ObjectType != 0 {
			return fmt.Sprintf("mp4a.%02X", f.ObjectType)
		}
		return "mp4a"
	case "":
		return ""
	}
	return strings.TrimRight(f.ID, " ")
}

// SeekPoint locates one sample. Timestamp and Duration are in track
// timescale ticks; TimestampMs and DurationMs convert them.
type SeekPoint struct {
	Offset    int64
	Length    uint32
	Timestamp uint64
	Duration  uint32
}

// TimestampMs returns the sample start in milliseconds.
func (p SeekPoint) TimestampMs(timescale uint32) uint64 {
	return durationMillis(p.Timestamp, timescale)
}

// DurationMs returns the sample duration in milliseconds.
func (p SeekPoint) DurationMs(timescale uint32) uint64 {
	return durationMillis(uint64(p.Duration), timescale)
}

// Track is one trak box: identity, timing, format and the sample layout
// reconstructed from its sample tables. A Track handed to Sink.AddTrack is
// not modified again.
type Track struct {
	ID            uint32
	Type          MediaType
	TimeScale     uint32
	Duration      uint64 // milliseconds
	ChapterTracks []uint32
	Format        Format
	SeekPoints    []SeekPoint

	stts         []bmff.SttsEntry
	stsc         []bmff.StscEntry
	sampleSize   uint32
	sampleCount  uint32
	sampleSizes  []uint32
	chunkOffsets []uint32
}

// Millis converts timescale ticks to milliseconds, truncating.
func (t *Track) Millis(ticks uint64) uint64 {
	return durationMillis(ticks, t.TimeScale)
}

// PayloadSize returns the sum of all seek point lengths.
func (t *Track) PayloadSize() int64 {
	var n int64
	for _, p := range t.SeekPoints {
		n += int64(p.Length)
	}
	return n
}

// durationMillis computes floor(ticks*1000/timescale) without overflowing
// for 64-bit durations.
func durationMillis(ticks uint64, timescale uint32) uint64 {
	if timescale == 0 {
		return 0
	}
	ts := uint64(timescale)
	return ticks/ts*1000 + ticks%ts*1000/ts
}

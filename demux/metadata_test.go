package demux

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/text/encoding/unicode"

	"github.com/tetsuo/mp4demux/internal/synth"
)

func TestDemuxer_Metadata(t *testing.T) {
	r, err := feed(richFile().Bytes(), 33)
	if err != nil {
		t.Fatal(err)
	}
	want := []MetadataEvent{
		{TrackID: 2, Fields: Metadata{"title": "track two"}},
		{TrackID: 0, Fields: Metadata{
			"artist":      "someone",
			"genre":       "Hip-Hop",
			"trackNumber": "3 of 12",
			"compilation": true,
			"rating":      "Clean",
			"coverArt":    []byte{0xff, 0xd8, 0xff},
		}},
	}
	if diff := cmp.Diff(want, r.c.Events); diff != "" {
		t.Errorf("metadata mismatch (-want +got):\n%s", diff)
	}
}

func TestDemuxer_MetadataUTF16(t *testing.T) {
	enc := unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM).NewEncoder()
	title, err := enc.Bytes([]byte("Ünïcode ♪"))
	if err != nil {
		t.Fatal(err)
	}
	f := &synth.File{
		Tracks: []synth.Track{lpcmTrack(1, samples(1, 2, 0), 1)},
		Meta: []synth.Item{
			{Tag: "\xa9nam", Type: dataUTF16, Value: title},
			synth.Integer("tmpo", 0, 120),
			synth.Integer("disk", 0, 0, 0, 1, 0, 2),
			synth.Integer("stik", 1),
			// unknown items are skipped
			synth.Text("xxxx", "ignored"),
		},
	}
	r, err := feed(f.Bytes(), 7)
	if err != nil {
		t.Fatal(err)
	}
	want := []MetadataEvent{{Fields: Metadata{
		"title":      "Ünïcode ♪",
		"tempo":      uint16(120),
		"diskNumber": "1 of 2",
		"mediaKind":  uint8(1),
	}}}
	if diff := cmp.Diff(want, r.c.Events); diff != "" {
		t.Errorf("metadata mismatch (-want +got):\n%s", diff)
	}
}

func TestReadGenre(t *testing.T) {
	tests := []struct {
		n    uint16
		want any
		ok   bool
	}{
		{0, nil, false},
		{1, "Blues", true},
		{126, "Dance Hall", true},
		{127, "Goa", true},
		{148, "Synthpop", true},
		{149, nil, false},
	}
	for _, tt := range tests {
		got, ok := readGenre(0, []byte{byte(tt.n >> 8), byte(tt.n)})
		if ok != tt.ok || got != tt.want {
			t.Errorf("readGenre(%d) = %v, %t; want %v, %t", tt.n, got, ok, tt.want, tt.ok)
		}
	}
	if _, ok := readGenre(0, []byte{1}); ok {
		t.Error("readGenre accepted a one byte payload")
	}
}

func TestMetadataDecoders(t *testing.T) {
	tests := []struct {
		name   string
		decode func(uint32, []byte) (any, bool)
		kind   uint32
		in     []byte
		want   any
		ok     bool
	}{
		{"utf8", readString, dataUTF8, []byte("abc"), "abc", true},
		{"utf16", readString, dataUTF16, []byte{0, 'h', 0, 'i'}, "hi", true},
		{"utf16 bom", readString, dataUTF16, []byte{0xff, 0xfe, 'h', 0, 'i', 0}, "hi", true},
		{"uint8", readUint8, 21, []byte{7}, uint8(7), true},
		{"uint8 empty", readUint8, 21, nil, nil, false},
		{"uint16", readUint16, 21, []byte{1, 2}, uint16(0x0102), true},
		{"uint16 short", readUint16, 21, []byte{1}, nil, false},
		{"bool", readBool, 21, []byte{1}, true, true},
		{"bool false", readBool, 21, []byte{0}, false, true},
		{"pair", readPair, 0, []byte{0, 0, 0, 5, 0, 9, 0, 0}, "5 of 9", true},
		{"pair short", readPair, 0, []byte{0, 0, 0, 5}, nil, false},
		{"rating none", readRating, 21, []byte{0}, "None", true},
		{"rating explicit", readRating, 21, []byte{4}, "Explicit", true},
		{"binary", readBinary, 13, []byte{1, 2}, []byte{1, 2}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.decode(tt.kind, tt.in)
			if ok != tt.ok {
				t.Fatalf("ok = %t", ok)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("value mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDemuxer_MetadataOutsideIlstIgnored(t *testing.T) {
	// a track without metadata produces no events
	f := &synth.File{Tracks: []synth.Track{lpcmTrack(1, samples(2, 2, 0), 2)}}
	r, err := feed(f.Bytes(), 64)
	if err != nil {
		t.Fatal(err)
	}
	if len(r.c.Events) != 0 {
		t.Errorf("events = %v", r.c.Events)
	}
}

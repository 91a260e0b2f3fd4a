package synth

import (
	"bytes"
	"strings"
	"testing"

	"github.com/abema/go-mp4"
	"github.com/google/go-cmp/cmp"

	bmff "github.com/tetsuo/mp4demux"
)

func twoTracks() *File {
	asc, _ := AACConfig(44100, 2)
	return &File{
		Interleave: true,
		Tracks: []Track{
			{
				ID: 1, Handler: "soun", Format: "twos",
				Channels: 1, BitsPerCh: 16, SampleRate: 8000, TimeScale: 8000,
				Samples:         PCMTone(440, 8000, 1, 800, 160, true),
				SampleDuration:  160,
				SamplesPerChunk: 2,
			},
			{
				ID: 2, Handler: "soun", Format: "mp4a",
				Channels: 2, BitsPerCh: 16, SampleRate: 44100, TimeScale: 44100,
				Cookie:          asc,
				Samples:         AACSilence(2, 5),
				SampleDuration:  1024,
				SamplesPerChunk: 2,
				ExplicitSizes:   true,
			},
		},
	}
}

// TestFile_ReadByGoMp4 checks the generated structure and chunk offsets
// with an independent parser.
func TestFile_ReadByGoMp4(t *testing.T) {
	f := twoTracks()
	file := f.Bytes()

	var paths []string
	var offsets [][]uint64
	var sizes [][]uint32
	_, err := mp4.ReadBoxStructure(bytes.NewReader(file), func(h *mp4.ReadHandle) (interface{}, error) {
		var names []string
		for _, bt := range h.Path {
			names = append(names, bt.String())
		}
		paths = append(paths, strings.Join(names, "/"))
		switch h.BoxInfo.Type {
		case mp4.BoxTypeStco():
			box, _, err := h.ReadPayload()
			if err != nil {
				return nil, err
			}
			offsets = append(offsets, box.(*mp4.Stco).ChunkOffset)
		case mp4.BoxTypeStsz():
			box, _, err := h.ReadPayload()
			if err != nil {
				return nil, err
			}
			stsz := box.(*mp4.Stsz)
			sizes = append(sizes, stsz.EntrySize)
		case mp4.BoxTypeMoov(), mp4.BoxTypeTrak(), mp4.BoxTypeMdia(), mp4.BoxTypeMinf(), mp4.BoxTypeStbl():
			return h.Expand()
		}
		return nil, nil
	})
	if err != nil {
		t.Fatal(err)
	}

	for _, want := range []string{"ftyp", "moov", "mdat", "moov/trak/mdia/minf/stbl/stsd", "moov/trak/mdia/minf/stbl/stco"} {
		found := false
		for _, p := range paths {
			found = found || p == want
		}
		if !found {
			t.Errorf("no %s box in %v", want, paths)
		}
	}
	if len(offsets) != 2 {
		t.Fatalf("got %d stco boxes", len(offsets))
	}

	// every chunk offset points at the bytes of its first sample
	for i, tr := range f.Tracks {
		spc := tr.SamplesPerChunk
		for c, off := range offsets[i] {
			s := tr.Samples[c*spc]
			if got := file[off : off+uint64(len(s))]; !bytes.Equal(got, s) {
				t.Errorf("track %d chunk %d: offset %d holds %x, want %x", tr.ID, c, off, got, s)
			}
		}
	}

	// the PCM track uses a uniform size, the AAC track an explicit table
	if len(sizes[0]) != 0 {
		t.Errorf("track 1 has a size table: %v", sizes[0])
	}
	want := make([]uint32, 5)
	for i := range want {
		want[i] = uint32(len(silentStereo))
	}
	if diff := cmp.Diff(want, sizes[1]); diff != "" {
		t.Errorf("sizes mismatch (-want +got):\n%s", diff)
	}
}

func TestFile_MdatFirstOffsets(t *testing.T) {
	f := twoTracks()
	f.MdatFirst = true
	f.LargeMdat = true
	file := f.Bytes()

	r := bmff.NewReader(file)
	var types []string
	var mdat int
	for r.Next() {
		types = append(types, r.Type().String())
		if r.Type() == bmff.TypeMdat {
			mdat = r.DataOffset()
			if r.HeaderSize() != 16 {
				t.Errorf("mdat header size %d", r.HeaderSize())
			}
		}
	}
	if got := strings.Join(types, " "); got != "ftyp mdat moov" {
		t.Fatalf("top level = %q", got)
	}
	first := f.Tracks[0].Samples[0]
	if !bytes.Equal(file[mdat:mdat+len(first)], first) {
		t.Error("media data does not start with the first sample")
	}
}

func TestPCMTone(t *testing.T) {
	s := PCMTone(1000, 8000, 2, 100, 30, false)
	if len(s) != 4 {
		t.Fatalf("got %d samples", len(s))
	}
	if len(s[0]) != 30*4 || len(s[3]) != 10*4 {
		t.Errorf("sample sizes %d and %d", len(s[0]), len(s[3]))
	}
	// first frame is silence, second is not
	if s[0][0] != 0 || s[0][1] != 0 {
		t.Errorf("frame 0 = %x", s[0][:4])
	}
	if s[0][4] == 0 && s[0][5] == 0 {
		t.Error("frame 1 is silent")
	}
	// both channels carry the same value
	if !bytes.Equal(s[1][0:2], s[1][2:4]) {
		t.Errorf("channels differ: %x", s[1][:4])
	}
}

func TestAACConfig(t *testing.T) {
	asc, err := AACConfig(44100, 2)
	if err != nil {
		t.Fatal(err)
	}
	// object type 2, frequency index 4, channel configuration 2
	if diff := cmp.Diff([]byte{0x12, 0x10}, asc); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

package demux

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/tetsuo/mp4demux/internal/synth"
)

func TestBuildChunks(t *testing.T) {
	a := &Track{ID: 1, SeekPoints: []SeekPoint{
		{Offset: 100, Length: 10}, {Offset: 110, Length: 10}, {Offset: 300, Length: 5},
	}}
	b := &Track{ID: 2, SeekPoints: []SeekPoint{
		{Offset: 120, Length: 4}, {Offset: 124, Length: 4}, {Offset: 305, Length: 1},
	}}
	got := buildChunks([]*Track{a, b})
	want := []Chunk{
		{Track: a, Offset: 100, Length: 20},
		{Track: b, Offset: 120, Length: 8},
		{Track: a, Offset: 300, Length: 5},
		{Track: b, Offset: 305, Length: 1},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("chunks mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildChunks_TiesKeepTrackOrder(t *testing.T) {
	a := &Track{ID: 1, SeekPoints: []SeekPoint{{Offset: 0, Length: 0}}}
	b := &Track{ID: 2, SeekPoints: []SeekPoint{{Offset: 0, Length: 3}}}
	got := buildChunks([]*Track{a, b})
	if len(got) != 2 || got[0].Track != a || got[1].Track != b {
		t.Errorf("chunks = %+v", got)
	}
}

func TestDemuxer_ZeroSizeSample(t *testing.T) {
	// track 1 opens with an empty sample that shares its offset with the
	// first chunk of track 2
	t1 := lpcmTrack(1, [][]byte{{}, {0xa, 0xb}}, 1)
	t1.ExplicitSizes = true
	t2 := lpcmTrack(2, samples(2, 4, 0x40), 1)
	file := (&synth.File{Interleave: true, Tracks: []synth.Track{t1, t2}}).Bytes()

	for _, frag := range []int{1, 9, len(file)} {
		r, err := feed(file, frag)
		if err != nil {
			t.Fatalf("frag %d: %v", frag, err)
		}
		if c := r.d.Chunks(); len(c) == 0 || c[0].Length != 0 {
			t.Fatalf("frag %d: chunks = %+v", frag, c)
		}
		if diff := cmp.Diff([]byte{0xa, 0xb}, r.c.Payload(1)); diff != "" {
			t.Errorf("frag %d: track 1 payload mismatch (-want +got):\n%s", frag, diff)
		}
		if diff := cmp.Diff(concat(t2.Samples), r.c.Payload(2)); diff != "" {
			t.Errorf("frag %d: track 2 payload mismatch (-want +got):\n%s", frag, diff)
		}
	}
}

func TestDemuxer_ChunkSchedule(t *testing.T) {
	f := richFile()
	file := f.Bytes()
	r, err := feed(file, len(file))
	if err != nil {
		t.Fatal(err)
	}
	chunks := r.d.Chunks()
	var total int64
	for i, c := range chunks {
		total += c.Length
		if i > 0 && c.Offset < chunks[i-1].Offset {
			t.Errorf("chunk %d at %d precedes chunk %d at %d", i, c.Offset, i-1, chunks[i-1].Offset)
		}
		if i > 0 && c.Track == chunks[i-1].Track && chunks[i-1].Offset+chunks[i-1].Length == c.Offset {
			t.Errorf("chunks %d and %d were not joined", i-1, i)
		}
	}
	var payload int64
	for _, tr := range r.c.Tracks {
		payload += tr.PayloadSize()
	}
	if total != payload {
		t.Errorf("chunks cover %d bytes, seek points %d", total, payload)
	}
	body := mdatBody(file)
	if chunks[0].Offset != body {
		t.Errorf("first chunk at %d, media data body at %d", chunks[0].Offset, body)
	}
}

func TestDemuxer_SequentialTracksCoalesce(t *testing.T) {
	f := &synth.File{Tracks: []synth.Track{
		lpcmTrack(1, samples(10, 2, 0), 3),
		lpcmTrack(2, samples(10, 2, 100), 3),
	}}
	r, err := feed(f.Bytes(), 1<<16)
	if err != nil {
		t.Fatal(err)
	}
	if n := len(r.d.Chunks()); n != 2 {
		t.Errorf("got %d chunks, want one per track", n)
	}
}
